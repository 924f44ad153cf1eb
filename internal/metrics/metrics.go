// Package metrics exposes Prometheus collectors for reindex runs and
// search queries.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Query result labels.
const (
	ResultHit   = "hit"
	ResultEmpty = "empty"
	ResultError = "error"
)

// Metrics holds all Prometheus collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	ReindexPagesTotal    *prometheus.CounterVec
	ReindexRunsTotal     *prometheus.CounterVec
	ReindexDuration      prometheus.Histogram
	IndexDocuments       prometheus.Gauge
	QueriesTotal         *prometheus.CounterVec
	QueryDuration        prometheus.Histogram
	QueryResultsReturned prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with registry.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: registry,
		ReindexPagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pagesearch_reindex_pages_total",
				Help: "Pages visited by reindex runs, by outcome",
			},
			[]string{"status", "reason"},
		),
		ReindexRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pagesearch_reindex_runs_total",
				Help: "Completed reindex runs",
			},
			[]string{"status"},
		),
		ReindexDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pagesearch_reindex_duration_seconds",
				Help:    "Reindex run duration in seconds",
				Buckets: []float64{.1, .5, 1, 5, 10, 30, 60, 300},
			},
		),
		IndexDocuments: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pagesearch_index_documents",
				Help: "Pages in the search index after the last reindex",
			},
		),
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pagesearch_queries_total",
				Help: "Search queries executed",
			},
			[]string{"result"},
		),
		QueryDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pagesearch_query_duration_seconds",
				Help:    "Search query duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
		),
		QueryResultsReturned: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pagesearch_query_results",
				Help:    "Total matches per search query",
				Buckets: prometheus.ExponentialBuckets(1, 4, 6),
			},
		),
	}

	registry.MustRegister(
		m.ReindexPagesTotal,
		m.ReindexRunsTotal,
		m.ReindexDuration,
		m.IndexDocuments,
		m.QueriesTotal,
		m.QueryDuration,
		m.QueryResultsReturned,
	)
	return m
}

// New creates collectors on a fresh private registry.
func New() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}

// RecordPage counts one page outcome of a reindex run.
func (m *Metrics) RecordPage(status, reason string) {
	if m == nil {
		return
	}
	m.ReindexPagesTotal.WithLabelValues(status, reason).Inc()
}

// ObserveReindex records a finished reindex run. indexed is ignored when
// err is non-nil.
func (m *Metrics) ObserveReindex(d time.Duration, indexed int, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.ReindexRunsTotal.WithLabelValues(status).Inc()
	m.ReindexDuration.Observe(d.Seconds())
	if err == nil {
		m.IndexDocuments.Set(float64(indexed))
	}
}

// ObserveQuery records one executed search.
func (m *Metrics) ObserveQuery(d time.Duration, total int, err error) {
	if m == nil {
		return
	}
	result := ResultHit
	switch {
	case err != nil:
		result = ResultError
	case total == 0:
		result = ResultEmpty
	}
	m.QueriesTotal.WithLabelValues(result).Inc()
	m.QueryDuration.Observe(d.Seconds())
	if err == nil {
		m.QueryResultsReturned.Observe(float64(total))
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RegisterEndpoint mounts /metrics on mux.
func (m *Metrics) RegisterEndpoint(mux *http.ServeMux) {
	mux.Handle("/metrics", m.Handler())
}
