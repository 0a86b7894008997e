package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/reportstream/reportstream/internal/api"
	"github.com/reportstream/reportstream/internal/config"
	"github.com/reportstream/reportstream/internal/ingest"
	"github.com/reportstream/reportstream/internal/observability"
	"github.com/reportstream/reportstream/internal/store"
)

func main() {
	cfg := config.Load()

	logger, err := observability.InitLoggerWithService(cfg.ServiceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}

	defer func() {
		if err := logger.Sync(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to sync logger: %v\n", err)
		}
	}()

	if err := run(logger, cfg); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
}

func run(logger *zap.Logger, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var rows store.RowStore
	switch cfg.RowStoreBackend {
	case "clickhouse":
		ch, err := store.InitClickHouse(cfg.ClickHouseDSN, cfg.CHMaxOpenConns, cfg.CHMaxIdleConns, cfg.CHConnMaxLifetime, cfg.CHConnMaxIdleTime)
		if err != nil {
			return fmt.Errorf("failed to connect clickhouse: %w", err)
		}
		defer ch.Close()
		rows = ch
	case "postgres":
		pg, err := store.InitPostgres(cfg.PostgresDSN, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime, cfg.DBConnMaxIdleTime)
		if err != nil {
			return fmt.Errorf("failed to connect postgres: %w", err)
		}
		defer pg.Close()
		rows = pg
	default:
		return fmt.Errorf("unknown row store backend %q", cfg.RowStoreBackend)
	}

	redisStore, err := store.InitRedis(cfg.RedisAddr, cfg.ResultTTL)
	if err != nil {
		return fmt.Errorf("failed to connect redis: %w", err)
	}
	defer redisStore.Close()

	metricsRegistry := observability.NewPrometheusRegistry()

	orch := ingest.New(rows, redisStore, redisStore, metricsRegistry, logger, ingest.Config{
		BatchSize:         cfg.BatchSize,
		MaxUploadSize:     cfg.MaxUploadSize,
		SampleSize:        cfg.SampleSize,
		ProgressInterval:  cfg.ProgressInterval,
		BulkWriteTimeout:  cfg.BulkWriteTimeout,
		BulkWriteAttempts: cfg.BulkWriteAttempts,
	})

	srvDeps := api.NewServer(logger, orch, metricsRegistry, cfg)

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      srvDeps.Routes(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	logger.Info("Report ingestion server running",
		zap.String("addr", addr),
		zap.String("row_store", cfg.RowStoreBackend))

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("listen: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	return nil
}
