// Package health reports whether the service and its backends are reachable.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/redis/go-redis/v9"
)

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
	StatusDisabled  = "disabled"

	checkTimeout = 2 * time.Second
)

// Checker defines the interface for checking service health.
type Checker interface {
	Ping(ctx context.Context) error
}

// RedisChecker adapts redis.Client to Checker interface.
type RedisChecker struct {
	client *redis.Client
}

// NewRedisChecker creates a new Redis health checker.
func NewRedisChecker(client *redis.Client) *RedisChecker {
	return &RedisChecker{client: client}
}

// Ping checks Redis connectivity.
func (r *RedisChecker) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Handler handles health check operations.
type Handler struct {
	store Checker
	redis Checker
}

// NewHandler creates a new health handler. redis may be nil when no Redis
// is configured.
func NewHandler(store, redis Checker) *Handler {
	return &Handler{store: store, redis: redis}
}

// Response is the response for health check endpoint.
type Response struct {
	Status int
	Body   struct {
		Status string `doc:"ok, degraded or down"                 json:"status"`
		Store  string `doc:"Content store reachability"           json:"store"`
		Redis  string `doc:"Redis reachability, or disabled"      json:"redis"`
	}
}

// Check reports "down" with 503 when the content store is unreachable and
// "degraded" when only Redis is.
func (h *Handler) Check(ctx context.Context, _ *struct{}) (*Response, error) {
	resp := &Response{Status: http.StatusOK}
	resp.Body.Status = "ok"
	resp.Body.Store = probe(ctx, h.store)
	resp.Body.Redis = probe(ctx, h.redis)

	switch {
	case resp.Body.Store == StatusUnhealthy:
		resp.Body.Status = "down"
		resp.Status = http.StatusServiceUnavailable
	case resp.Body.Redis == StatusUnhealthy:
		resp.Body.Status = "degraded"
	}

	return resp, nil
}

func probe(ctx context.Context, c Checker) string {
	if c == nil {
		return StatusDisabled
	}

	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	if err := c.Ping(ctx); err != nil {
		return StatusUnhealthy
	}

	return StatusHealthy
}

// RegisterRoutes registers health check routes.
func RegisterRoutes(api huma.API, h *Handler) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Service health",
		Tags:        []string{"Health"},
	}, h.Check)
}
