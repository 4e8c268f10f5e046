package container

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/samber/do"
	"github.com/serroba/shortshare/internal/broker"
	"github.com/serroba/shortshare/internal/cache"
	"github.com/serroba/shortshare/internal/metrics"
	"github.com/serroba/shortshare/internal/objectstore"
	"github.com/serroba/shortshare/internal/ratelimit"
	"github.com/serroba/shortshare/internal/shortener"
	"github.com/serroba/shortshare/internal/store"
	"go.uber.org/zap"
)

const rateLimitKeys = 10_000

// MetricsPackage provides the Prometheus registry served on /metrics and
// the broker collectors registered in it.
func MetricsPackage(injector *do.Injector) {
	do.Provide(injector, func(_ *do.Injector) (*prometheus.Registry, error) {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)

		return reg, nil
	})

	do.Provide(injector, func(i *do.Injector) (*metrics.Metrics, error) {
		return metrics.New(do.MustInvoke[*prometheus.Registry](i)), nil
	})
}

// RateLimitPackage provides the counter store and the policy limiter.
func RateLimitPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (ratelimit.Store, error) {
		opts := do.MustInvoke[*Options](i)

		switch opts.RateLimitStore {
		case BackendMemory:
			return store.NewRateLimitMemoryStore(rateLimitKeys), nil
		case BackendRedis:
			client, err := do.Invoke[*Redis](i)
			if err != nil {
				return nil, err
			}

			return store.NewRateLimitRedisStore(client.Client), nil
		default:
			return nil, fmt.Errorf("unknown rate limit store %q", opts.RateLimitStore)
		}
	})

	do.Provide(injector, func(i *do.Injector) (*ratelimit.PolicyLimiter, error) {
		opts := do.MustInvoke[*Options](i)

		policy := ratelimit.DefaultPolicy()

		if opts.RateLimitPolicy != "" {
			loaded, err := ratelimit.LoadPolicy(opts.RateLimitPolicy)
			if err != nil {
				return nil, err
			}

			policy = loaded
		}

		counters, err := do.Invoke[ratelimit.Store](i)
		if err != nil {
			return nil, err
		}

		return ratelimit.NewPolicyLimiter(counters, policy, do.MustInvoke[*metrics.Metrics](i)), nil
	})

	do.Provide(injector, func(i *do.Injector) (ratelimit.Limiter, error) {
		opts := do.MustInvoke[*Options](i)

		counters, err := do.Invoke[ratelimit.Store](i)
		if err != nil {
			return nil, err
		}

		return ratelimit.NewFixedWindowLimiter(counters, int64(opts.GlobalRateLimit), time.Minute), nil
	})
}

// BrokerPackage provides *broker.Broker wired to the configured store,
// object store, cache and limiter.
func BrokerPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*broker.Broker, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)
		m := do.MustInvoke[*metrics.Metrics](i)

		repo, err := do.Invoke[*Repository](i)
		if err != nil {
			return nil, err
		}

		objects, err := do.Invoke[objectstore.Store](i)
		if err != nil {
			return nil, err
		}

		limiter, err := do.Invoke[*ratelimit.PolicyLimiter](i)
		if err != nil {
			return nil, err
		}

		gen, err := shortener.NewCodeGenerator(opts.IDLength)
		if err != nil {
			return nil, err
		}

		cfg := broker.DefaultConfig(opts.IDLength)
		cfg.ContentTTL = opts.ContentTTL
		cfg.StoreTimeout = opts.StoreTimeout

		logger.Info("content broker configured",
			zap.String("store", opts.Store),
			zap.String("object_store", opts.ObjectStore),
			zap.Int("id_length", opts.IDLength),
			zap.Duration("content_ttl", cfg.ContentTTL),
		)

		return broker.New(
			repo,
			shortener.NewAllocator(repo, gen, shortener.DefaultMaxAttempts, m),
			cache.NewContentCache(opts.CacheSize, opts.CacheTTL, m),
			cfg,
			logger,
			broker.WithObjectStore(objects),
			broker.WithAdmitter(limiter),
			broker.WithMetrics(m),
		), nil
	})
}
