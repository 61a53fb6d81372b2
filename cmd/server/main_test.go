package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/loyalty-engine/config"
	"github.com/warp/loyalty-engine/store/sqlite"
)

func TestLoadConfig_FlagsOverrideEnvironment(t *testing.T) {
	// GIVEN: The environment selects the memory store on port 4000
	t.Setenv("PORT", "4000")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("LOG_LEVEL", "warn")

	// WHEN: Flags pick sqlite and another port
	cmd := newRootCommand()
	require.NoError(t, cmd.ParseFlags([]string{"--port=4100", "--store=sqlite", "--db=:memory:"}))
	opts := &serverOptions{}
	opts.Port, _ = cmd.Flags().GetInt("port")
	opts.Store, _ = cmd.Flags().GetString("store")
	opts.DBPath, _ = cmd.Flags().GetString("db")

	cfg, err := loadConfig(opts)

	// THEN: Flags win, untouched keys keep their environment value
	require.NoError(t, err)
	assert.Equal(t, 4100, cfg.Port)
	assert.Equal(t, config.DriverSQLite, cfg.StoreDriver)
	assert.Equal(t, ":memory:", cfg.SQLitePath)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoadConfig_RejectsInvalidFlag(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")

	_, err := loadConfig(&serverOptions{Store: "postgres"})

	assert.Error(t, err)
}

func TestOpenStore(t *testing.T) {
	st, err := openStore(&config.Config{StoreDriver: config.DriverSQLite, SQLitePath: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	assert.IsType(t, &sqlite.Store{}, st)

	mem, err := openStore(&config.Config{StoreDriver: config.DriverMemory})
	require.NoError(t, err)
	assert.NotNil(t, mem)
}

func TestNewLogger(t *testing.T) {
	_, err := newLogger("debug")
	assert.NoError(t, err)

	_, err = newLogger("loud")
	assert.Error(t, err)
}

func TestLoadCatalog(t *testing.T) {
	c, err := loadCatalog("")
	require.NoError(t, err)
	assert.Equal(t, "default", c.Default().ID)

	_, err = loadCatalog("does-not-exist.yaml")
	assert.Error(t, err)
}
