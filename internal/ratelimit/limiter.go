package ratelimit

import (
	"context"
	"time"
)

// Limiter defines the interface for rate limiting.
type Limiter interface {
	// Allow checks if a request from the given key should be allowed.
	Allow(ctx context.Context, key string) (allowed bool, err error)
}

// FixedWindowLimiter admits up to limit requests per key per window.
//
// The window resets when the key's record expires in the store, not on
// wall-clock boundaries, so a client can push up to 2*limit requests through
// around the moment a window rolls over.
type FixedWindowLimiter struct {
	store  Store
	limit  int64
	window time.Duration
}

// NewFixedWindowLimiter creates a new fixed window rate limiter.
func NewFixedWindowLimiter(store Store, limit int64, window time.Duration) *FixedWindowLimiter {
	return &FixedWindowLimiter{
		store:  store,
		limit:  limit,
		window: window,
	}
}

func (l *FixedWindowLimiter) Allow(ctx context.Context, key string) (bool, error) {
	count, err := l.store.Record(ctx, key, l.window)
	if err != nil {
		return false, err
	}

	return count <= l.limit, nil
}
