// Command raceviewer serves race results dashboards.
//
// It loads a delimited race results file (uploaded per session, or read from
// a path given at startup and reloaded when it changes), derives the set of
// distances, and exposes the filterable table and chart data over HTTP:
//
//	GET  /api/races?distance=10K       - table rows, optionally filtered
//	GET  /api/races/distances          - distinct distance values
//	GET  /api/races/chart/places       - place-by-type chart data
//	GET  /api/races/chart/percent      - age-graded percent chart data
//	POST /api/races                    - load race results (CSV body)
//	GET  /healthz                      - health check
//	GET  /metrics                      - Prometheus metrics
//
// Usage:
//
//	raceviewer -listen=:8080 -race-file=results.csv
//
// Environment variables:
//
//	LISTEN       - HTTP listen address (default :8080)
//	RACE_FILE    - Race results CSV to load at startup
//	STORAGE      - Session backend: memory or redis (default memory)
//	REDIS_ADDR   - Redis server address
//	SESSION_TTL  - Session expiry (default 30m)
//	LOG_LEVEL    - Logging level: debug, info, warn, error (default info)
//	LOG_FORMAT   - Logging format: text, json (default text)
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/josevnz/dashkit/cmd/raceviewer/config"
	"github.com/josevnz/dashkit/cmd/raceviewer/metrics"
	"github.com/josevnz/dashkit/cmd/raceviewer/router"
	"github.com/josevnz/dashkit/pkg/httpx"
	"github.com/josevnz/dashkit/pkg/logging"
	"github.com/josevnz/dashkit/pkg/session"
)

// version is set via ldflags at build time
var version = "dev"

func main() {
	cfg := config.ParseFlags()

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	logger.Info("starting raceviewer", "version", version, "storage", cfg.Storage)

	store := newStore(cfg, logger)
	if closer, ok := store.(interface{ Close() error }); ok {
		defer func() {
			if err := closer.Close(); err != nil {
				logger.Error("failed to close store", "error", err)
			}
		}()
	}

	m := metrics.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.RaceFile != "" {
		watcher := NewWatcher(cfg.RaceFile, store, m, logger)
		if err := watcher.LoadOnce(ctx, "file"); err != nil {
			logger.Error("failed to load race file", "path", cfg.RaceFile, "error", err)
			os.Exit(1)
		}
		go func() {
			if err := watcher.Run(ctx); err != nil && err != context.Canceled {
				logger.Error("file watcher failed", "error", err)
			}
		}()
	}

	mux := router.SetupRoutes(store, m, logger)
	handler := httpx.LoggingMiddleware(logger)(httpx.RecoveryMiddleware(logger)(mux))
	httpServer := httpx.NewServer(cfg.Listen, handler, logger)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- httpServer.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-serverErr:
		if err != nil {
			logger.Error("server failed", "error", err)
		}
	}

	logger.Info("shutting down")
	cancel()

	if err := httpServer.Stop(10 * time.Second); err != nil {
		logger.Error("server shutdown failed", "error", err)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}

func newStore(cfg *config.Config, logger *slog.Logger) session.Store {
	switch cfg.Storage {
	case "redis":
		store, err := session.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.SessionTTL)
		if err != nil {
			logger.Error("failed to connect to redis", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		return store
	default:
		return session.NewMemoryStoreWithTTL(cfg.SessionTTL, time.Minute)
	}
}
