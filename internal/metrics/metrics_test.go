package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/serroba/shortshare/internal/metrics"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	t.Run("nil metrics is a no-op", func(t *testing.T) {
		var m *metrics.Metrics

		assert.NotPanics(t, func() {
			m.CacheHit()
			m.CacheMiss()
			m.RateLimited("code")
			m.AllocationAttempts(3)
			m.Submission("code", "ok")
			m.Resolution("ok")
		})
	})

	t.Run("registers and counts", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		m := metrics.New(reg)

		m.CacheHit()
		m.CacheHit()
		m.CacheMiss()
		m.RateLimited("image")

		count, err := testutil.GatherAndCount(reg,
			"shortshare_cache_hits_total",
			"shortshare_cache_misses_total",
			"shortshare_ratelimit_rejections_total",
		)

		assert.NoError(t, err)
		assert.Equal(t, 3, count)
	})
}
