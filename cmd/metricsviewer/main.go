// Command metricsviewer serves time-series data from a Prometheus server as
// a column-per-instance table ready for charting.
//
//	GET /api/query?query=node_load1&minutes=60 - run a range query
//	GET /healthz                               - health check
//	GET /metrics                               - Prometheus metrics
//
// Usage:
//
//	metricsviewer -prom-url=http://raspberrypi:9090
//
// Environment variables:
//
//	PROMETHEUS_URL - Prometheus server base URL (required)
//	LISTEN         - HTTP listen address (default :8081)
//	QUERY          - Default query expression (default node_memory_MemFree_bytes)
//	WINDOW         - Default query window (default 1h)
//	STEP           - Sampling step (default 30s)
//	LOG_LEVEL      - Logging level: debug, info, warn, error (default info)
//	LOG_FORMAT     - Logging format: text, json (default text)
package main

import (
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/josevnz/dashkit/cmd/metricsviewer/config"
	"github.com/josevnz/dashkit/cmd/metricsviewer/metrics"
	"github.com/josevnz/dashkit/cmd/metricsviewer/router"
	"github.com/josevnz/dashkit/pkg/httpx"
	"github.com/josevnz/dashkit/pkg/logging"
	"github.com/josevnz/dashkit/pkg/promrange"
)

// version is set via ldflags at build time
var version = "dev"

func main() {
	cfg := config.ParseFlags()

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	logger.Info("starting metricsviewer", "version", version, "prometheus", cfg.PromURL)

	client := &promrange.Client{
		BaseURL:    cfg.PromURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}

	m := metrics.New()

	mux := router.SetupRoutes(client, router.Options{
		Query:  cfg.Query,
		Window: cfg.Window,
		Step:   cfg.Step,
	}, m, logger)
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

	if err := httpServer.Stop(10 * time.Second); err != nil {
		logger.Error("server shutdown failed", "error", err)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}
