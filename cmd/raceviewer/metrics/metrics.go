// Package metrics provides Prometheus instrumentation for the raceviewer.
//
// Metrics exposed:
//   - raceviewer_load_seconds: Histogram of race results load duration
//   - raceviewer_loads_total: Counter of completed loads by source
//   - raceviewer_filter_requests_total: Counter of filtered table requests
//   - raceviewer_errors_total: Counter of errors by component and reason
//
// All metrics are exposed via the /metrics HTTP endpoint for scraping.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the raceviewer.
type Metrics struct {
	LoadSeconds         prometheus.Histogram
	LoadsTotal          *prometheus.CounterVec
	FilterRequestsTotal prometheus.Counter
	ErrorsTotal         *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		LoadSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "raceviewer_load_seconds",
			Help:    "Time spent loading and deriving race results",
			Buckets: prometheus.DefBuckets,
		}),

		LoadsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "raceviewer_loads_total",
			Help: "Total number of race result loads by source",
		}, []string{"source"}),

		FilterRequestsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "raceviewer_filter_requests_total",
			Help: "Total number of filtered table requests",
		}),

		ErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "raceviewer_errors_total",
			Help: "Total number of errors by component and reason",
		}, []string{"component", "reason"}),
	}
}

// RecordLoad records a completed load from the given source
// ("upload", "file", or "watch").
func (m *Metrics) RecordLoad(source string, seconds float64) {
	m.LoadSeconds.Observe(seconds)
	m.LoadsTotal.WithLabelValues(source).Inc()
}

// RecordError increments the error counter.
func (m *Metrics) RecordError(component, reason string) {
	m.ErrorsTotal.WithLabelValues(component, reason).Inc()
}
