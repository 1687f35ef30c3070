package router

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/josevnz/dashkit/cmd/raceviewer/metrics"
	"github.com/josevnz/dashkit/pkg/session"
)

// Prometheus collectors register globally, so the test binary shares one set.
var testMetrics = metrics.New()

const raceCSV = `Event Date,Distance,Overall Place,Gender Place,Age-Group Place,Age-Graded Place,Age-Graded Percent
2023-02-04,10K,1432,1200,300,280,55.2
2023-03-19,Half-Marathon,2104,1800,400,390,57.8
2023-04-30,10K,1388,1150,290,270,56.1
`

func newMux(t *testing.T) (*http.ServeMux, *session.MemoryStore) {
	t.Helper()
	store := session.NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return SetupRoutes(store, testMetrics, logger), store
}

func loadRaces(t *testing.T, mux *http.ServeMux) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/races?name=results.csv", strings.NewReader(raceCSV))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("load status = %d: %s", w.Code, w.Body.String())
	}
}

func TestHealthEndpoint(t *testing.T) {
	mux, _ := newMux(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status code = %d, want %d", w.Code, http.StatusOK)
	}
	if w.Body.String() != "OK" {
		t.Errorf("body = %q, want %q", w.Body.String(), "OK")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	mux, _ := newMux(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status code = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestLoad(t *testing.T) {
	mux, store := newMux(t)

	req := httptest.NewRequest(http.MethodPost, "/api/races?name=results.csv", strings.NewReader(raceCSV))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Races     int      `json:"races"`
		Distances []string `json:"distances"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Races != 3 {
		t.Errorf("races = %d, want 3", resp.Races)
	}
	if len(resp.Distances) != 2 {
		t.Errorf("distances = %v", resp.Distances)
	}

	st, found, err := store.Get(context.Background(), DefaultSession)
	if err != nil || !found {
		t.Fatalf("session not stored: found=%v err=%v", found, err)
	}
	if st.Name != "results.csv" {
		t.Errorf("Name = %q", st.Name)
	}
}

func TestLoad_EmptyBodyIsNotAnError(t *testing.T) {
	mux, _ := newMux(t)

	req := httptest.NewRequest(http.MethodPost, "/api/races", strings.NewReader(""))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("empty input must load as zero rows, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Races     int      `json:"races"`
		Distances []string `json:"distances"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Races != 0 {
		t.Errorf("races = %d, want 0", resp.Races)
	}
}

func TestLoad_ReplacesChosenDistance(t *testing.T) {
	mux, _ := newMux(t)
	loadRaces(t, mux)

	req := httptest.NewRequest(http.MethodPut, "/api/races/distance?distance=10K", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("choose status = %d", w.Code)
	}

	// A reload wipes the whole session state, choice included.
	loadRaces(t, mux)

	req = httptest.NewRequest(http.MethodGet, "/api/races/distances", nil)
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	var resp struct {
		Chosen string `json:"chosen"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Chosen != "" {
		t.Errorf("chosen should reset on reload, got %q", resp.Chosen)
	}
}

func TestTable_Filtered(t *testing.T) {
	mux, _ := newMux(t)
	loadRaces(t, mux)

	req := httptest.NewRequest(http.MethodGet, "/api/races?distance=10K", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	var frame struct {
		Rows []map[string]any `json:"rows"`
	}
	if err := json.NewDecoder(w.Body).Decode(&frame); err != nil {
		t.Fatal(err)
	}
	if len(frame.Rows) != 2 {
		t.Fatalf("expected 2 filtered rows, got %d", len(frame.Rows))
	}
	for _, row := range frame.Rows {
		if row["Distance"] != "10K" {
			t.Errorf("row leaked through filter: %v", row)
		}
	}
}

func TestTable_NoSessionLoaded(t *testing.T) {
	mux, _ := newMux(t)

	req := httptest.NewRequest(http.MethodGet, "/api/races", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestTable_InvalidSessionID(t *testing.T) {
	mux, _ := newMux(t)

	req := httptest.NewRequest(http.MethodGet, "/api/races?session=bad%20id", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestChooseDistance_Unknown(t *testing.T) {
	mux, _ := newMux(t)
	loadRaces(t, mux)

	req := httptest.NewRequest(http.MethodPut, "/api/races/distance?distance=Marathon", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestChart_Places(t *testing.T) {
	mux, _ := newMux(t)
	loadRaces(t, mux)

	req := httptest.NewRequest(http.MethodGet, "/api/races/chart/places", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		X      []string `json:"x"`
		Series []struct {
			Name   string    `json:"name"`
			Values []float64 `json:"values"`
		} `json:"series"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.X) != 3 {
		t.Errorf("x length = %d, want 3", len(resp.X))
	}
	if len(resp.Series) != len(PlaceColumns) {
		t.Fatalf("series = %d, want %d", len(resp.Series), len(PlaceColumns))
	}
	if resp.Series[0].Name != "Overall Place" || resp.Series[0].Values[0] != 1432 {
		t.Errorf("unexpected first series: %+v", resp.Series[0])
	}
}

func TestChart_Percent(t *testing.T) {
	mux, _ := newMux(t)
	loadRaces(t, mux)

	req := httptest.NewRequest(http.MethodGet, "/api/races/chart/percent", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Series []struct {
			Name   string    `json:"name"`
			Values []float64 `json:"values"`
		} `json:"series"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Series) != 1 || resp.Series[0].Name != "Age-Graded Percent" {
		t.Fatalf("unexpected series: %+v", resp.Series)
	}
	if resp.Series[0].Values[1] != 57.8 {
		t.Errorf("values = %v", resp.Series[0].Values)
	}
}

func TestBuildState(t *testing.T) {
	st, races, err := BuildState("results.csv", []byte(raceCSV))
	if err != nil {
		t.Fatalf("BuildState error: %v", err)
	}
	if races != 3 {
		t.Errorf("races = %d", races)
	}
	if len(st.Distances) != 2 {
		t.Errorf("distances = %v", st.Distances)
	}
	if st.LoadedAt.IsZero() {
		t.Error("LoadedAt not set")
	}
}
