package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/infernocod3s/csv-splitter/internal/config"
	"github.com/infernocod3s/csv-splitter/internal/history"
	"github.com/infernocod3s/csv-splitter/internal/job"
	"github.com/infernocod3s/csv-splitter/internal/logging"
	"github.com/infernocod3s/csv-splitter/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"chunk_capacity", cfg.Split.Capacity,
		"max_file_size", cfg.Split.MaxFileSize,
		"max_concurrent", cfg.Split.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
		"history_enabled", cfg.HistoryEnabled(),
	)

	ctx := context.Background()

	// Job history is optional and only wired when a database is configured.
	var store *history.Store
	if cfg.HistoryEnabled() {
		poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
		if err != nil {
			slog.Error("failed to parse database URL", "error", err)
			os.Exit(1)
		}
		poolConfig.MaxConns = int32(cfg.Database.MaxConns)

		pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		if err := pool.Ping(ctx); err != nil {
			slog.Error("failed to ping database", "error", err)
			os.Exit(1)
		}

		store, err = history.New(ctx, pool)
		if err != nil {
			slog.Error("failed to initialize job history", "error", err)
			os.Exit(1)
		}

		if u, err := url.Parse(cfg.Database.URL); err == nil {
			slog.Info("job history enabled", "database", strings.TrimPrefix(u.Path, "/"))
		} else {
			slog.Info("job history enabled")
		}
	}

	service, err := job.NewService(job.Settings{
		Capacity:      cfg.Split.Capacity,
		MaxFileSize:   cfg.Split.MaxFileSize,
		MaxConcurrent: cfg.Split.MaxConcurrent,
		MaxWait:       cfg.Split.MaxWait,
		Timeout:       cfg.Split.Timeout,
		Retention:     cfg.Split.Retention,
		WorkDir:       cfg.Split.WorkDir,
	}, store)
	if err != nil {
		slog.Error("failed to create job service", "error", err)
		os.Exit(1)
	}

	server := web.NewServer(service, cfg)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Let running split jobs finish before closing the listener
		if active := service.ActiveJobs(); active > 0 {
			slog.Info("waiting for split jobs to complete", "active", active)
			if err := service.WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("split jobs did not complete in time", "error", err)
			} else {
				slog.Info("all split jobs completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil {
		slog.Info("server stopped", "error", err)
	}
}
