package container

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	_ "github.com/danielgtaylor/huma/v2/formats/cbor" // CBOR format support for huma
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/do"
	"github.com/serroba/shortshare/internal/analytics"
	"github.com/serroba/shortshare/internal/broker"
	"github.com/serroba/shortshare/internal/handlers"
	"github.com/serroba/shortshare/internal/health"
	"github.com/serroba/shortshare/internal/middleware"
	"github.com/serroba/shortshare/internal/objectstore"
	"github.com/serroba/shortshare/internal/ratelimit"
	"go.uber.org/zap"
)

// HTTPPackage provides the chi router and the huma API with every route
// registered. Invoking huma.API is what mounts the routes.
func HTTPPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*chi.Mux, error) {
		logger := do.MustInvoke[*zap.Logger](i)

		router := chi.NewMux()
		router.Use(middleware.RequestID, middleware.AccessLog(logger), chimiddleware.Recoverer)

		return router, nil
	})

	do.Provide(injector, func(i *do.Injector) (huma.API, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)
		router := do.MustInvoke[*chi.Mux](i)

		b, err := do.Invoke[*broker.Broker](i)
		if err != nil {
			return nil, err
		}

		publishers, err := do.Invoke[analytics.Publishers](i)
		if err != nil {
			return nil, err
		}

		redisClient, err := optionalRedis(i)
		if err != nil {
			return nil, err
		}

		api := humachi.New(router, huma.DefaultConfig("Short Share", "1.0.0"))
		api.UseMiddleware(middleware.RequestMeta(api))

		if opts.GlobalRateLimit > 0 {
			api.UseMiddleware(middleware.RateLimiter(api, do.MustInvoke[ratelimit.Limiter](i), logger))
		}

		api.UseMiddleware(middleware.PolicyRateLimiter(
			api,
			do.MustInvoke[*ratelimit.PolicyLimiter](i),
			ratelimit.NewOperationScopeResolver(),
			logger,
		))

		var redisChecker health.Checker
		if redisClient != nil {
			redisChecker = health.NewRedisChecker(redisClient.Client)
		}

		health.RegisterRoutes(api, health.NewHandler(do.MustInvoke[*Repository](i), redisChecker))
		handlers.RegisterRoutes(api, handlers.NewContentHandler(b, opts.PublicBaseURL(), publishers, logger))

		router.Handle("/metrics", promhttp.HandlerFor(do.MustInvoke[*prometheus.Registry](i), promhttp.HandlerOpts{}))

		if fs, ok := do.MustInvoke[objectstore.Store](i).(*objectstore.FilesystemStore); ok {
			router.Handle("/files/*", fs.Handler())
		}

		return api, nil
	})
}
