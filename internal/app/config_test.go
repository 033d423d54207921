package app

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/ecoguard/ecoguard/testing"
)

func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	unsetEnv(t, "APP_ENV", "APP_ADDR", "JWT_SECRET", "JWT_REFRESH_SECRET", "JWT_EXPIRE", "BCRYPT_COST", "PUBLIC_BASE_URL",
		"WORKER_CONCURRENCY", "WORKER_METRICS_ADDR")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, 168*time.Hour, cfg.JWTExpire)
	assert.Equal(t, 12, cfg.BcryptCost)
	assert.Equal(t, 5, cfg.WorkerConcurrency)
	assert.Equal(t, ":9091", cfg.WorkerMetricsAddr)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, "http://localhost:8080/api/auth/verify-email", cfg.VerifyEmailURL())
}

func TestLoadConfigProductionSecrets(t *testing.T) {
	strong := "0123456789abcdef0123456789abcdef-access"
	cases := []struct {
		name    string
		access  string
		refresh string
		ok      bool
	}{
		{name: "defaults", ok: false},
		{name: "short", access: "short-secret", refresh: "another-short-secret", ok: false},
		{name: "equal", access: strong, refresh: strong, ok: false},
		{name: "default refresh", access: strong, refresh: defaultRefreshSecret, ok: false},
		{name: "strong", access: strong, refresh: "0123456789abcdef0123456789abcdef-refresh", ok: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			unsetEnv(t, "JWT_SECRET", "JWT_REFRESH_SECRET", "JWT_EXPIRE")
			t.Setenv("APP_ENV", "production")
			if tc.access != "" {
				t.Setenv("JWT_SECRET", tc.access)
			}
			if tc.refresh != "" {
				t.Setenv("JWT_REFRESH_SECRET", tc.refresh)
			}

			cfg, err := LoadConfig()
			if !tc.ok {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, cfg.IsProduction())
		})
	}
}

func TestSlogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, (&Config{LogLevel: "DEBUG"}).SlogLevel())
	assert.Equal(t, slog.LevelWarn, (&Config{LogLevel: "warning"}).SlogLevel())
	assert.Equal(t, slog.LevelInfo, (&Config{LogLevel: "chatty"}).SlogLevel())
	assert.Equal(t, slog.LevelInfo, (*Config)(nil).SlogLevel())
}

func TestInTestMode(t *testing.T) {
	assert.True(t, InTestMode())

	for value, want := range map[string]bool{"0": false, "false": false, "": false, "yes": false, "1": true, " TRUE ": true} {
		t.Setenv(testModeEnv, value)
		assert.Equal(t, want, InTestMode(), "value %q", value)
	}
}
