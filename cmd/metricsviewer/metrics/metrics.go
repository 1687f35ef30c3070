// Package metrics provides Prometheus instrumentation for the metricsviewer.
//
// Metrics exposed:
//   - metricsviewer_query_seconds: Histogram of upstream range query duration
//   - metricsviewer_queries_total: Counter of range queries by outcome
//     (ok, upstream_error, reshape_error, transport_error)
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the metricsviewer.
type Metrics struct {
	QuerySeconds prometheus.Histogram
	QueriesTotal *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		QuerySeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "metricsviewer_query_seconds",
			Help:    "Time spent on upstream range queries",
			Buckets: prometheus.DefBuckets,
		}),

		QueriesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "metricsviewer_queries_total",
			Help: "Total number of range queries by outcome",
		}, []string{"outcome"}),
	}
}

// RecordQuery records a completed upstream query with its outcome.
func (m *Metrics) RecordQuery(outcome string, seconds float64) {
	m.QuerySeconds.Observe(seconds)
	m.QueriesTotal.WithLabelValues(outcome).Inc()
}
