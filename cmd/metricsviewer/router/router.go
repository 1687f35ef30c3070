// Package router configures HTTP routes for the metricsviewer's API.
//
// Routes configured:
//   - GET /api/query?query=<expr>&minutes=<n> - Run a range query and
//     return the reshaped column-per-instance frame
//   - GET /healthz - Health check endpoint (returns 200 OK)
//   - GET /metrics - Prometheus metrics endpoint
//
// Each /api/query call performs exactly one synchronous upstream request;
// refreshing the chart is the client hitting the endpoint again. An upstream
// failure never turns into an empty chart: the offending payload comes back
// in the error response so the user can see what the server said.
package router

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/josevnz/dashkit/cmd/metricsviewer/metrics"
	"github.com/josevnz/dashkit/pkg/httpx"
	"github.com/josevnz/dashkit/pkg/promrange"
)

// Options carries the query defaults from configuration.
type Options struct {
	Query  string
	Window time.Duration
	Step   string
}

// SetupRoutes configures HTTP endpoints for the metricsviewer.
func SetupRoutes(client *promrange.Client, opts Options, m *metrics.Metrics, logger *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("/healthz", httpx.HealthHandler())
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("GET /api/query", handleQuery(client, opts, m, logger))

	return mux
}

// upstreamError tells the user what the metrics server answered, payload
// included, instead of silently rendering nothing.
type upstreamError struct {
	Error   string          `json:"error"`
	Status  int             `json:"status,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func handleQuery(client *promrange.Client, opts Options, m *metrics.Metrics, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("query")
		if query == "" {
			query = opts.Query
		}

		window := opts.Window
		if minutes := r.URL.Query().Get("minutes"); minutes != "" {
			n, err := strconv.Atoi(minutes)
			if err != nil || n <= 0 {
				httpx.WriteErrorMessage(w, http.StatusBadRequest, "minutes must be a positive integer")
				return
			}
			window = time.Duration(n) * time.Minute
		}

		end := time.Now()
		start := end.Add(-window)

		began := time.Now()
		body, status, err := client.QueryRange(r.Context(), query, start, end, opts.Step)
		elapsed := time.Since(began).Seconds()
		if err != nil {
			m.RecordQuery("transport_error", elapsed)
			logger.Error("range query failed", "query", query, "error", err)
			httpx.WriteError(w, http.StatusBadGateway, err)
			return
		}

		if status != http.StatusOK {
			m.RecordQuery("upstream_error", elapsed)
			logger.Warn("upstream returned non-200", "query", query, "status", status)
			writeUpstreamError(w, logger, upstreamError{
				Error:   fmt.Sprintf("invalid query? upstream returned status %d", status),
				Status:  status,
				Payload: rawPayload(body),
			})
			return
		}

		frame, err := promrange.Reshape(body)
		if err != nil {
			m.RecordQuery("reshape_error", elapsed)
			logger.Warn("failed to reshape response", "query", query, "error", err)
			writeUpstreamError(w, logger, upstreamError{
				Error:   err.Error(),
				Status:  status,
				Payload: rawPayload(body),
			})
			return
		}

		m.RecordQuery("ok", elapsed)
		logger.Info("metrics data refreshed",
			"query", query,
			"instances", len(frame.Columns),
			"samples", len(frame.Index),
		)

		resp := map[string]any{
			"status": status,
			"query":  query,
			"start":  start.UTC(),
			"end":    end.UTC(),
			"step":   opts.Step,
			"frame":  frame,
		}
		if err := httpx.WriteJSON(w, http.StatusOK, resp); err != nil {
			logger.Error("failed to write JSON response", "error", err)
		}
	}
}

func writeUpstreamError(w http.ResponseWriter, logger *slog.Logger, resp upstreamError) {
	if err := httpx.WriteJSON(w, http.StatusBadGateway, resp); err != nil {
		logger.Error("failed to write error response", "error", err)
	}
}

// rawPayload echoes the upstream body when it is valid JSON; anything else
// is quoted as a string so the response always encodes.
func rawPayload(body []byte) json.RawMessage {
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	quoted, err := json.Marshal(string(body))
	if err != nil {
		return nil
	}
	return json.RawMessage(quoted)
}
