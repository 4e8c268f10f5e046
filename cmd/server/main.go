package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/go-chi/chi/v5"
	"github.com/samber/do"
	"github.com/serroba/shortshare/internal/container"
	"github.com/serroba/shortshare/internal/messaging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const migrateTimeout = time.Minute

func registerPackages(injector *do.Injector, options *container.Options) {
	do.ProvideValue(injector, options)
	container.RegisterServer(injector)
}

func migrate(injector *do.Injector, logger *zap.Logger, store string) error {
	repo, err := do.Invoke[*container.Repository](injector)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), migrateTimeout)
	defer cancel()

	if err := repo.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate %s store: %w", store, err)
	}

	logger.Info("schema up to date", zap.String("store", store))

	return nil
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, options *container.Options) {
		injector := do.New()
		registerPackages(injector, options)

		logger := do.MustInvoke[*zap.Logger](injector)

		var server *http.Server

		hooks.OnStart(func() {
			if options.AutoMigrate {
				if err := migrate(injector, logger, options.Store); err != nil {
					logger.Fatal("migration failed", zap.Error(err))
				}
			}

			router := do.MustInvoke[*chi.Mux](injector)

			// Invoke API to trigger route registration
			_ = do.MustInvoke[huma.API](injector)

			// In-process events are only visible to consumers in this process.
			if options.Events == container.BackendMemory {
				group := do.MustInvoke[*messaging.ConsumerGroup](injector)
				if err := group.Start(context.Background()); err != nil {
					logger.Fatal("failed to start consumer group", zap.Error(err))
				}
			}

			server = &http.Server{
				Addr:              fmt.Sprintf(":%d", options.Port),
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			logger.Info("server starting",
				zap.Int("port", options.Port),
				zap.String("base_url", options.PublicBaseURL()),
			)

			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Fatal("server failed", zap.Error(err))
			}
		})

		hooks.OnStop(func() {
			logger.Info("shutting down")

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if server != nil {
				if err := server.Shutdown(ctx); err != nil {
					logger.Error("server shutdown error", zap.Error(err))
				}
			}

			if err := injector.Shutdown(); err != nil {
				logger.Error("service shutdown error", zap.Error(err))
			}

			logger.Info("shutdown complete")
		})
	})

	cli.Root().AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create or update the content store schema and exit",
		Run: humacli.WithOptions(func(_ *cobra.Command, _ []string, options *container.Options) {
			injector := do.New()
			registerPackages(injector, options)

			logger := do.MustInvoke[*zap.Logger](injector)

			err := migrate(injector, logger, options.Store)

			if shutdownErr := injector.Shutdown(); shutdownErr != nil {
				logger.Error("service shutdown error", zap.Error(shutdownErr))
			}

			if err != nil {
				logger.Fatal("migration failed", zap.Error(err))
			}
		}),
	})

	cli.Run()
}
