// Package observability exposes Prometheus instruments for the answer
// pipeline and cache tiers.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	Answers           *prometheus.CounterVec
	CacheHits         *prometheus.CounterVec
	GateRejections    prometheus.Counter
	ProviderErrors    *prometheus.CounterVec
	ProviderFallbacks prometheus.Counter
	CacheEvictions    prometheus.Counter
	AnswerLatency     prometheus.Histogram
}

// NewMetrics registers all instruments on reg. Tests pass a fresh
// prometheus.NewRegistry to avoid duplicate-registration panics.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Answers: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answers_total",
			Help:      "Answers by cache status.",
		}, []string{"status"}),
		CacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Cache hits by tier (permanent, shared).",
		}, []string{"tier"}),
		GateRejections: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gate_rejections_total",
			Help:      "Questions rejected by the relevance gate.",
		}),
		ProviderErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Generation failures by provider.",
		}, []string{"provider"}),
		ProviderFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_fallbacks_total",
			Help:      "Answers served by a non-primary provider.",
		}),
		CacheEvictions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_evictions_total",
			Help:      "Expired shared-cache entries removed by sweeps.",
		}),
		AnswerLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "answer_latency_seconds",
			Help:      "End-to-end answer latency in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		}),
	}
}

// ObserveAnswer records one completed answer with its terminal status.
func (m *Metrics) ObserveAnswer(status string, d time.Duration) {
	m.Answers.WithLabelValues(status).Inc()
	m.AnswerLatency.Observe(d.Seconds())
}

// MetricsHandler serves the default Prometheus registry.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
