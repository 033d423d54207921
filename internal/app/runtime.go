package app

import (
	"os"
	"strconv"
	"strings"
)

const testModeEnv = "ECOGUARD_TEST_MODE"

// InTestMode reports whether ECOGUARD_TEST_MODE is set to a true value, in
// which case binaries exit before dialing Postgres or Redis.
func InTestMode() bool {
	on, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(testModeEnv)))
	return err == nil && on
}
