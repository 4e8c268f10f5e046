// Package metrics exposes Prometheus instrumentation for the broker.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "shortshare"

// Metrics holds the collectors shared by the cache, limiter and broker.
type Metrics struct {
	cacheHits          prometheus.Counter
	cacheMisses        prometheus.Counter
	rateLimited        *prometheus.CounterVec
	allocationAttempts prometheus.Histogram
	submissions        *prometheus.CounterVec
	resolutions        *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Content cache hits.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Content cache misses, including expired entries.",
		}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ratelimit",
			Name:      "rejections_total",
			Help:      "Requests rejected by the rate limiter.",
		}, []string{"scope"}),
		allocationAttempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "allocator",
			Name:      "attempts",
			Help:      "Candidates drawn per short id allocation.",
			Buckets:   []float64{1, 2, 3, 5, 10, 20},
		}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broker",
			Name:      "submissions_total",
			Help:      "Submissions by content kind and outcome.",
		}, []string{"kind", "outcome"}),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broker",
			Name:      "resolutions_total",
			Help:      "Resolutions by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		m.cacheHits,
		m.cacheMisses,
		m.rateLimited,
		m.allocationAttempts,
		m.submissions,
		m.resolutions,
	)

	return m
}

func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}

	m.cacheHits.Inc()
}

func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}

	m.cacheMisses.Inc()
}

func (m *Metrics) RateLimited(scope string) {
	if m == nil {
		return
	}

	m.rateLimited.WithLabelValues(scope).Inc()
}

func (m *Metrics) AllocationAttempts(n int) {
	if m == nil {
		return
	}

	m.allocationAttempts.Observe(float64(n))
}

func (m *Metrics) Submission(kind, outcome string) {
	if m == nil {
		return
	}

	m.submissions.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) Resolution(outcome string) {
	if m == nil {
		return
	}

	m.resolutions.WithLabelValues(outcome).Inc()
}
