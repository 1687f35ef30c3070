// Package router configures HTTP routes for the raceviewer's API.
//
// Routes configured:
//   - POST /api/races - Load race results from the request body (CSV)
//   - GET  /api/races?distance=<v> - Race results table, optionally filtered
//   - GET  /api/races/distances - Distinct distance values of the loaded set
//   - PUT  /api/races/distance?distance=<v> - Record the chosen distance
//   - GET  /api/races/chart/places - Place-by-type line chart data
//   - GET  /api/races/chart/percent - Age-graded percent line chart data
//   - GET  /healthz - Health check endpoint (returns 200 OK)
//   - GET  /metrics - Prometheus metrics endpoint
//
// Every /api/races route takes a "session" query parameter (default
// "default") selecting which user session the data belongs to. State moves
// between requests only through the session store handed to SetupRoutes.
package router

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/josevnz/dashkit/cmd/raceviewer/metrics"
	"github.com/josevnz/dashkit/pkg/dataframe"
	"github.com/josevnz/dashkit/pkg/httpx"
	"github.com/josevnz/dashkit/pkg/session"
)

// Race results schema constants.
const (
	DateColumn     = "Event Date"
	DistanceColumn = "Distance"

	// DefaultSession is used when the client does not name one.
	DefaultSession = "default"

	maxUploadBytes = 16 << 20
)

// PlaceColumns are the Y series of the place-by-type chart.
var PlaceColumns = []string{"Overall Place", "Gender Place", "Age-Group Place", "Age-Graded Place"}

// PercentColumns are the Y series of the age-graded percent chart.
var PercentColumns = []string{"Age-Graded Percent"}

var sessionIDRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9_-]{0,251}[a-zA-Z0-9])?$`)

// BuildState parses race results CSV into fresh session state: the raw
// bytes, the distinct distances and the load timestamp. The returned row
// count is informational. Empty input yields a valid zero-row state.
func BuildState(name string, data []byte) (session.State, int, error) {
	frame, err := dataframe.Load(data, dataframe.WithDateColumn(DateColumn))
	if err != nil {
		return session.State{}, 0, err
	}
	return session.State{
		Name:      name,
		RaceData:  data,
		Distances: frame.Distinct(DistanceColumn),
		LoadedAt:  time.Now().UTC(),
	}, len(frame.Rows), nil
}

// SetupRoutes configures HTTP endpoints for the raceviewer.
func SetupRoutes(store session.Store, m *metrics.Metrics, logger *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("/healthz", httpx.HealthHandler())
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("POST /api/races", handleLoad(store, m, logger))
	mux.HandleFunc("GET /api/races", handleTable(store, m, logger))
	mux.HandleFunc("GET /api/races/distances", handleDistances(store, logger))
	mux.HandleFunc("PUT /api/races/distance", handleChooseDistance(store, logger))
	mux.HandleFunc("GET /api/races/chart/places", handleChart(store, logger, PlaceColumns))
	mux.HandleFunc("GET /api/races/chart/percent", handleChart(store, logger, PercentColumns))

	return mux
}

func sessionID(r *http.Request) (string, error) {
	id := r.URL.Query().Get("session")
	if id == "" {
		id = DefaultSession
	}
	if !sessionIDRegex.MatchString(id) {
		return "", fmt.Errorf("invalid session id format")
	}
	return id, nil
}

func getState(w http.ResponseWriter, r *http.Request, store session.Store, logger *slog.Logger) (session.State, bool) {
	id, err := sessionID(r)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err)
		return session.State{}, false
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	st, found, err := store.Get(ctx, id)
	if err != nil {
		logger.Error("failed to get session", "session", id, "error", err)
		httpx.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
		return session.State{}, false
	}
	if !found {
		httpx.WriteErrorMessage(w, http.StatusNotFound, "no race results loaded, POST /api/races first")
		return session.State{}, false
	}
	return st, true
}

// handleLoad reads the CSV body, derives the distances and replaces the
// session state wholesale.
func handleLoad(store session.Store, m *metrics.Metrics, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := sessionID(r)
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, err)
			return
		}

		start := time.Now()
		data, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes))
		if err != nil {
			m.RecordError("load", "read_body")
			httpx.WriteError(w, http.StatusBadRequest, err)
			return
		}

		name := r.URL.Query().Get("name")
		if name == "" {
			name = "upload"
		}

		st, races, err := BuildState(name, data)
		if err != nil {
			m.RecordError("load", "parse")
			logger.Warn("failed to parse race results", "session", id, "error", err)
			httpx.WriteError(w, http.StatusBadRequest, err)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := store.Put(ctx, id, st); err != nil {
			m.RecordError("load", "store")
			logger.Error("failed to store session", "session", id, "error", err)
			httpx.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
			return
		}

		m.RecordLoad("upload", time.Since(start).Seconds())
		logger.Info("race data loaded", "session", id, "races", races, "distances", len(st.Distances))

		resp := map[string]any{
			"races":     races,
			"distances": st.Distances,
		}
		if err := httpx.WriteJSON(w, http.StatusOK, resp); err != nil {
			logger.Error("failed to write JSON response", "error", err)
		}
	}
}

func handleTable(store session.Store, m *metrics.Metrics, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, ok := getState(w, r, store, logger)
		if !ok {
			return
		}

		frame, err := dataframe.Load(st.RaceData, dataframe.WithDateColumn(DateColumn))
		if err != nil {
			logger.Error("failed to rebuild frame", "error", err)
			httpx.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
			return
		}

		if distance := r.URL.Query().Get("distance"); distance != "" {
			m.FilterRequestsTotal.Inc()
			frame = frame.Filter(DistanceColumn, distance)
		}

		if err := httpx.WriteJSON(w, http.StatusOK, frame); err != nil {
			logger.Error("failed to write JSON response", "error", err)
		}
	}
}

func handleDistances(store session.Store, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, ok := getState(w, r, store, logger)
		if !ok {
			return
		}

		resp := map[string]any{
			"distances": st.Distances,
			"chosen":    st.DistanceChosen,
		}
		if err := httpx.WriteJSON(w, http.StatusOK, resp); err != nil {
			logger.Error("failed to write JSON response", "error", err)
		}
	}
}

// handleChooseDistance records the user's distance selection. The state is
// re-written wholesale; a later reload clears the choice.
func handleChooseDistance(store session.Store, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		distance := r.URL.Query().Get("distance")
		if distance == "" {
			httpx.WriteErrorMessage(w, http.StatusBadRequest, "distance parameter required")
			return
		}

		st, ok := getState(w, r, store, logger)
		if !ok {
			return
		}

		valid := false
		for _, d := range st.Distances {
			if d == distance {
				valid = true
				break
			}
		}
		if !valid {
			httpx.WriteErrorMessage(w, http.StatusBadRequest, fmt.Sprintf("unknown distance %q", distance))
			return
		}

		st.DistanceChosen = distance

		id, _ := sessionID(r)
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := store.Put(ctx, id, st); err != nil {
			logger.Error("failed to store session", "session", id, "error", err)
			httpx.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
			return
		}

		if err := httpx.WriteJSON(w, http.StatusOK, map[string]string{"chosen": distance}); err != nil {
			logger.Error("failed to write JSON response", "error", err)
		}
	}
}

type chartSeries struct {
	Name   string    `json:"name"`
	Values []float64 `json:"values"`
}

type chartResponse struct {
	X      []time.Time   `json:"x"`
	Series []chartSeries `json:"series"`
}

// handleChart returns line chart data over the full (unfiltered) table:
// the date column as X and the given columns as Y series.
func handleChart(store session.Store, logger *slog.Logger, columns []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, ok := getState(w, r, store, logger)
		if !ok {
			return
		}

		frame, err := dataframe.Load(st.RaceData, dataframe.WithDateColumn(DateColumn))
		if err != nil {
			logger.Error("failed to rebuild frame", "error", err)
			httpx.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
			return
		}

		x, err := frame.Times(DateColumn)
		if err != nil {
			httpx.WriteError(w, http.StatusUnprocessableEntity, err)
			return
		}

		resp := chartResponse{X: x, Series: []chartSeries{}}
		for _, col := range columns {
			values, err := frame.Floats(col)
			if err != nil {
				httpx.WriteError(w, http.StatusUnprocessableEntity, err)
				return
			}
			resp.Series = append(resp.Series, chartSeries{Name: col, Values: values})
		}

		if err := httpx.WriteJSON(w, http.StatusOK, resp); err != nil {
			logger.Error("failed to write JSON response", "error", err)
		}
	}
}
