// Command flavorwheel serves the coffee flavor wheel hierarchy.
//
// It accepts the flavor wheel metadata file (a flat CSV with Basic, Middle
// and Final columns) and returns the nested three-level hierarchy in the
// JSON shape radial chart widgets consume:
//
//	POST /api/flavors - CSV body in, hierarchy JSON out
//	GET  /healthz     - health check
//	GET  /metrics     - Prometheus metrics
//
// Usage:
//
//	flavorwheel -listen=:8082
package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/josevnz/dashkit/cmd/flavorwheel/config"
	"github.com/josevnz/dashkit/cmd/flavorwheel/router"
	"github.com/josevnz/dashkit/pkg/httpx"
	"github.com/josevnz/dashkit/pkg/logging"
)

// version is set via ldflags at build time
var version = "dev"

func main() {
	cfg := config.ParseFlags()

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	logger.Info("starting flavorwheel", "version", version)

	mux := router.SetupRoutes(logger)
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
