/*
config.go - Runtime configuration

PURPOSE:
  Reads server settings from the environment. A .env file, if present, is
  loaded into the environment by cmd/server before Load runs, and command
  line flags override whatever Load returns.

KEYS:
  PORT                   HTTP port (default 3000)
  STORE_DRIVER           memory | sqlite (default memory)
  SQLITE_PATH            SQLite path or ":memory:" (default :memory:)
  AUTH_TOKEN             Accepted Authorization value
  GUEST_USER_ID          Identity denied balance reads
  DEFAULT_CURRENCY       Currency when a request omits it (default SAR)
  DEFAULT_REGION         Region when a request omits it (default KSA)
  SEED_FILE              YAML scenario catalog replacing the built-in one
  ID_MODE                uuid | sequence (default uuid)
  LOG_LEVEL              debug | info | warn | error (default info)
  CORS_ALLOWED_ORIGINS   Comma-separated origins (default *)
  SHUTDOWN_TIMEOUT       Graceful shutdown budget (default 30s)

SEE ALSO:
  - cmd/server/main.go: Flag overrides
*/
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/warp/loyalty-engine/auth"
	"github.com/warp/loyalty-engine/ledger"
)

const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// Config is the full server configuration.
type Config struct {
	Port            int
	StoreDriver     string
	SQLitePath      string
	AuthToken       string
	GuestUserID     string
	Defaults        ledger.Defaults
	SeedFile        string
	IDMode          string
	LogLevel        string
	AllowedOrigins  []string
	ShutdownTimeout time.Duration
}

func Load() (*Config, error) {
	shutdownTimeout, err := getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	port, err := getEnvInt("PORT", 3000)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:        port,
		StoreDriver: getEnvString("STORE_DRIVER", DriverMemory),
		SQLitePath:  getEnvString("SQLITE_PATH", ":memory:"),
		AuthToken:   getEnvString("AUTH_TOKEN", auth.DefaultToken),
		GuestUserID: getEnvString("GUEST_USER_ID", auth.DefaultGuestID),
		Defaults: ledger.Defaults{
			Currency:    getEnvString("DEFAULT_CURRENCY", ledger.DefaultCurrency),
			Region:      getEnvString("DEFAULT_REGION", ledger.DefaultRegion),
			PaymentType: ledger.DefaultPaymentType,
		},
		SeedFile:        getEnvString("SEED_FILE", ""),
		IDMode:          getEnvString("ID_MODE", "uuid"),
		LogLevel:        getEnvString("LOG_LEVEL", "info"),
		AllowedOrigins:  getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		ShutdownTimeout: shutdownTimeout,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks enumerated settings. It is called again after flags are applied.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverMemory, DriverSQLite:
	default:
		return fmt.Errorf("invalid STORE_DRIVER %q: want %s or %s", c.StoreDriver, DriverMemory, DriverSQLite)
	}
	switch c.IDMode {
	case "uuid", "sequence":
	default:
		return fmt.Errorf("invalid ID_MODE %q: want uuid or sequence", c.IDMode)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Port)
	}
	return nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	if value := os.Getenv(key); value != "" {
		intValue, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("invalid integer for %s: %q (%w)", key, value, err)
		}
		return intValue, nil
	}
	return defaultValue, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
