// Package testing prepares the process environment for test binaries.
// Import it for side effects from _test.go files.
package testing

import "os"

// Secrets installed when the environment provides none.
const (
	AccessSecret  = "test-access-secret-0123456789abcdef"
	RefreshSecret = "test-refresh-secret-0123456789abcdef"
)

func init() {
	setDefault("ECOGUARD_TEST_MODE", "1")
	setDefault("JWT_SECRET", AccessSecret)
	setDefault("JWT_REFRESH_SECRET", RefreshSecret)
}

func setDefault(key, value string) {
	if _, ok := os.LookupEnv(key); !ok {
		_ = os.Setenv(key, value)
	}
}
