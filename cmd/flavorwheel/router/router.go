// Package router configures HTTP routes for the flavorwheel's API.
//
// Routes configured:
//   - POST /api/flavors - Build the flavor hierarchy from CSV metadata
//   - GET  /healthz - Health check endpoint (returns 200 OK)
//   - GET  /metrics - Prometheus metrics endpoint
//
// The flavor endpoint is stateless: every upload is parsed in full and the
// nested tree returned directly, ready for a radial hierarchy widget.
package router

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/josevnz/dashkit/pkg/flavor"
	"github.com/josevnz/dashkit/pkg/httpx"
)

const maxUploadBytes = 4 << 20

var buildsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "flavorwheel_builds_total",
	Help: "Total number of hierarchy builds by outcome",
}, []string{"outcome"})

// SetupRoutes configures HTTP endpoints for the flavorwheel.
func SetupRoutes(logger *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("/healthz", httpx.HealthHandler())
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("POST /api/flavors", handleBuild(logger))

	return mux
}

func handleBuild(logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tree, err := flavor.Build(io.LimitReader(r.Body, maxUploadBytes))
		if err != nil {
			buildsTotal.WithLabelValues("error").Inc()
			logger.Warn("failed to build flavor hierarchy", "error", err)
			httpx.WriteError(w, http.StatusBadRequest, err)
			return
		}

		buildsTotal.WithLabelValues("ok").Inc()
		logger.Info("flavor hierarchy built", "basics", len(tree.Children))

		if err := httpx.WriteJSON(w, http.StatusOK, tree); err != nil {
			logger.Error("failed to write JSON response", "error", err)
		}
	}
}
