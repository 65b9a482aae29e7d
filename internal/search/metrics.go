package search

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the gateway's prometheus collectors.
type Metrics struct {
	Requests      *prometheus.CounterVec
	Duration      *prometheus.HistogramVec
	BulkDocuments prometheus.Counter
	CacheLookups  *prometheus.CounterVec
}

// NewMetrics registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ragserve_search_requests_total",
			Help: "Search gateway operations by result.",
		}, []string{"op", "result"}),
		Duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ragserve_search_duration_seconds",
			Help:    "Search gateway operation latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		BulkDocuments: f.NewCounter(prometheus.CounterOpts{
			Name: "ragserve_bulk_documents_total",
			Help: "Chunks accepted by bulk indexing.",
		}),
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ragserve_search_cache_lookups_total",
			Help: "Hit cache lookups by outcome.",
		}, []string{"outcome"}),
	}
}

// Observe records one operation.
func (m *Metrics) Observe(op string, d time.Duration, err error) {
	result := "ok"
	switch {
	case errors.Is(err, ErrIndexNotFound):
		result = "not_found"
	case err != nil:
		result = "error"
	}
	m.Requests.WithLabelValues(op, result).Inc()
	m.Duration.WithLabelValues(op).Observe(d.Seconds())
}
