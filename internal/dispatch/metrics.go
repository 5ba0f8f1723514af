package dispatch

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the evaluator-call collectors. A nil *Metrics records nothing.
type Metrics struct {
	calls     *prometheus.CounterVec
	errors    *prometheus.CounterVec
	retries   *prometheus.CounterVec
	cacheHits *prometheus.CounterVec
	latency   *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them on reg. A nil registerer leaves them
// unregistered, which keeps parallel tests independent.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		calls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bondfuzz_evaluator_calls_total",
			Help: "Evaluator calls by evaluator and result",
		}, []string{"evaluator", "result"}),
		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bondfuzz_evaluator_errors_total",
			Help: "Evaluator call failures by evaluator and kind",
		}, []string{"evaluator", "kind"}),
		retries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bondfuzz_evaluator_retries_total",
			Help: "Retried evaluator calls",
		}, []string{"evaluator"}),
		cacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bondfuzz_evaluator_cache_hits_total",
			Help: "Evaluations served from the memo cache",
		}, []string{"evaluator"}),
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bondfuzz_evaluator_call_duration_seconds",
			Help:    "Evaluator call latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10), // 0.1ms to ~26s
		}, []string{"evaluator"}),
	}
}

func (m *Metrics) observeCall(evaluator string, ok bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.calls.WithLabelValues(evaluator, result).Inc()
	m.latency.WithLabelValues(evaluator).Observe(elapsed.Seconds())
}

func (m *Metrics) observeError(evaluator, kind string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(evaluator, kind).Inc()
}

func (m *Metrics) observeRetry(evaluator string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(evaluator).Inc()
}

func (m *Metrics) observeCacheHit(evaluator string) {
	if m == nil {
		return
	}
	m.cacheHits.WithLabelValues(evaluator).Inc()
}
