package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/do"
	"github.com/serroba/shortshare/internal/container"
	"github.com/serroba/shortshare/internal/messaging"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	opts := &container.Options{
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		LogFormat:      getEnv("LOG_FORMAT", "console"),
		Events:         container.BackendRedis,
		AnalyticsStore: getEnv("ANALYTICS_STORE", container.BackendLog),
	}

	metricsPort, err := strconv.Atoi(getEnv("METRICS_PORT", "9090"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid METRICS_PORT: %v\n", err)
		os.Exit(2)
	}

	injector := do.New()
	do.ProvideValue(injector, opts)
	container.LoggerPackage(injector)
	container.RedisPackage(injector)
	container.MetricsPackage(injector)
	container.ConsumerGroupPackage(injector)

	logger := do.MustInvoke[*zap.Logger](injector)
	group := do.MustInvoke[*messaging.ConsumerGroup](injector)
	reg := do.MustInvoke[*prometheus.Registry](injector)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := group.Start(ctx); err != nil {
		logger.Fatal("failed to start consumer group", zap.Error(err))
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", metricsPort),
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("metrics listening", zap.Int("port", metricsPort))

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("consumer stopped with error", zap.Error(err))
	}

	if err := injector.Shutdown(); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}

	logger.Info("shutdown complete")
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return defaultValue
}
