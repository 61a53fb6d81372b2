package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/loyalty-engine/auth"
	"github.com/warp/loyalty-engine/config"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "STORE_DRIVER", "SQLITE_PATH", "AUTH_TOKEN", "ID_MODE", "CORS_ALLOWED_ORIGINS", "SHUTDOWN_TIMEOUT"} {
		t.Setenv(key, "")
	}

	cfg, err := config.Load()

	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, config.DriverMemory, cfg.StoreDriver)
	assert.Equal(t, ":memory:", cfg.SQLitePath)
	assert.Equal(t, auth.DefaultToken, cfg.AuthToken)
	assert.Equal(t, "SAR", cfg.Defaults.Currency)
	assert.Equal(t, "wallet", cfg.Defaults.PaymentType)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("PORT", "8088")
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", "data/loyalty.db")
	t.Setenv("DEFAULT_CURRENCY", "AED")
	t.Setenv("ID_MODE", "sequence")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test, http://b.test,")
	t.Setenv("SHUTDOWN_TIMEOUT", "5s")

	cfg, err := config.Load()

	require.NoError(t, err)
	assert.Equal(t, 8088, cfg.Port)
	assert.Equal(t, config.DriverSQLite, cfg.StoreDriver)
	assert.Equal(t, "data/loyalty.db", cfg.SQLitePath)
	assert.Equal(t, "AED", cfg.Defaults.Currency)
	assert.Equal(t, "sequence", cfg.IDMode)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.AllowedOrigins)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"PORT", "abc"},
		{"PORT", "70000"},
		{"STORE_DRIVER", "postgres"},
		{"ID_MODE", "clock"},
		{"SHUTDOWN_TIMEOUT", "soon"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := config.Load()
			assert.Error(t, err)
		})
	}
}
