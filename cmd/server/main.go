/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the loyalty and wallet checkout mock server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present) and environment configuration
  2. Apply command-line flag overrides
  3. Initialize logger and store (memory or SQLite)
  4. Seed the default scenario
  5. Configure HTTP router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  --port        HTTP server port (overrides PORT)
  --store       memory | sqlite (overrides STORE_DRIVER)
  --db          SQLite database path (overrides SQLITE_PATH)
                Use ":memory:" for an in-memory SQLite database
  --seed-file   YAML scenario catalog (overrides SEED_FILE)
  --log-level   debug | info | warn | error (overrides LOG_LEVEL)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (SHUTDOWN_TIMEOUT)
  3. Close the store
  4. Exit

EXAMPLES:
  # Run with defaults (memory store, port 3000)
  ./server

  # Run against a SQLite file
  ./server --store=sqlite --db=./data/loyalty.db

  # Run with a custom scenario catalog
  ./server --seed-file=./scenarios.yaml --log-level=debug

ENVIRONMENT:
  See config/config.go for the full key list.

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - config/config.go: Environment keys
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/warp/loyalty-engine/api"
	"github.com/warp/loyalty-engine/auth"
	"github.com/warp/loyalty-engine/config"
	"github.com/warp/loyalty-engine/ledger"
	"github.com/warp/loyalty-engine/ledger/store"
	"github.com/warp/loyalty-engine/seed"
	"github.com/warp/loyalty-engine/store/sqlite"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// serverOptions holds flag values. Empty or zero means "use config".
type serverOptions struct {
	Port     int
	Store    string
	DBPath   string
	SeedFile string
	LogLevel string
}

func newRootCommand() *cobra.Command {
	opts := &serverOptions{}

	cmd := &cobra.Command{
		Use:           "server",
		Short:         "Loyalty points and wallet checkout mock",
		Long:          "HTTP mock of a loyalty points and wallet checkout backend for integration tests.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().IntVar(&opts.Port, "port", 0, "HTTP server port")
	cmd.Flags().StringVar(&opts.Store, "store", "", "store driver (memory|sqlite)")
	cmd.Flags().StringVar(&opts.DBPath, "db", "", "SQLite database path")
	cmd.Flags().StringVar(&opts.SeedFile, "seed-file", "", "YAML scenario catalog")
	cmd.Flags().StringVar(&opts.LogLevel, "log-level", "", "log level (debug|info|warn|error)")

	return cmd
}

// loadConfig reads .env and the environment, then applies flag overrides.
func loadConfig(opts *serverOptions) (*config.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	opts.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (o *serverOptions) apply(cfg *config.Config) {
	if o.Port != 0 {
		cfg.Port = o.Port
	}
	if o.Store != "" {
		cfg.StoreDriver = o.Store
	}
	if o.DBPath != "" {
		cfg.SQLitePath = o.DBPath
	}
	if o.SeedFile != "" {
		cfg.SeedFile = o.SeedFile
	}
	if o.LogLevel != "" {
		cfg.LogLevel = o.LogLevel
	}
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", level, err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}

func openStore(cfg *config.Config) (ledger.Store, error) {
	if cfg.StoreDriver == config.DriverSQLite {
		return sqlite.New(cfg.SQLitePath)
	}
	return store.NewMemory(), nil
}

func loadCatalog(path string) (*seed.Catalog, error) {
	if path == "" {
		return seed.Builtin(), nil
	}
	return seed.LoadFile(path)
}

func run(ctx context.Context, cfg *config.Config) error {
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	ids, err := ledger.NewIDGenerator(cfg.IDMode)
	if err != nil {
		return err
	}
	catalog, err := loadCatalog(cfg.SeedFile)
	if err != nil {
		return fmt.Errorf("failed to load seed catalog: %w", err)
	}
	metrics, err := api.NewMetrics(prometheus.NewRegistry())
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	// Initialize store
	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer st.Close()

	// Initialize handler
	handler := api.NewHandler(st, api.Options{
		IDs:      ids,
		Defaults: cfg.Defaults,
		Checker:  auth.NewChecker(cfg.AuthToken, cfg.GuestUserID),
		Catalog:  catalog,
		Metrics:  metrics,
	})
	if err := handler.Seed(ctx, catalog.Default().ID); err != nil {
		return err
	}

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      api.NewRouter(handler, cfg.AllowedOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.Int("port", cfg.Port),
			zap.String("store", cfg.StoreDriver),
			zap.String("scenario", catalog.Default().ID))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for interrupt signal
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err, ok := <-serveErr:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-sigCtx.Done():
	}

	logger.Info("shutting down server", zap.Duration("timeout", cfg.ShutdownTimeout))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
