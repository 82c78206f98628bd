package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "sales-service",
		Short:        "Clients, products and sales API",
		SilenceUsage: true,
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConfig(cmd.Context(), serve)
		},
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConfig(cmd.Context(), runMigrations)
		},
	}

	root.AddCommand(serveCmd, migrateCmd)
	root.RunE = serveCmd.RunE
	return root
}

func withConfig(ctx context.Context, run func(ctx context.Context, cfg *Config) error) error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	logger, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	return run(ctx, cfg)
}

func serve(ctx context.Context, cfg *Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize OpenTelemetry
	tp, err := initTracer(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize tracer: %w", err)
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			zap.S().Errorf("Error shutting down tracer: %v", err)
		}
	}()

	mp, err := initMetrics(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}
	defer func() {
		if err := mp.Shutdown(context.Background()); err != nil {
			zap.S().Errorf("Error shutting down meter: %v", err)
		}
	}()

	// Initialize database
	pool, err := initDB(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer pool.Close()

	cache := initRedis(ctx, cfg.RedisURL)
	if cache != nil {
		defer cache.Close()
	}

	// Initialize dependencies
	repository := NewPostgresRepository(NewGateway(pool))
	ledger := NewStockLedger(repository, cfg.StockMaxRetries)
	handler := NewHandler(
		NewClientUseCase(repository),
		NewProductUseCase(repository),
		NewSaleUseCase(repository, repository, ledger),
		tp.Tracer(cfg.ServiceName),
	)
	verifier := NewIdentityClient(cfg.AuthURL, cfg.AuthAPIKey, cache, cfg.AuthCacheTTL)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      NewRouter(handler, verifier, cfg.ServiceName),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.S().Infof("🚀 Sales Service listening on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}

	zap.S().Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func initDB(ctx context.Context, cfg *Config) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(cfg.PostgresDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	// Configure connection pool
	config.MaxConns = cfg.DatabaseMaxConns
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute
	config.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := waitForDB(ctx, pool.Ping); err != nil {
		pool.Close()
		return nil, err
	}

	zap.S().Info("✅ Connected to sales database with connection pool")
	return pool, nil
}
