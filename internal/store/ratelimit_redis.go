package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimitRedisStore is a Redis implementation of ratelimit.Store, shared by
// every instance pointing at the same Redis.
type RateLimitRedisStore struct {
	client *redis.Client
	prefix string
}

// NewRateLimitRedisStore creates a new Redis-backed rate limit store.
func NewRateLimitRedisStore(client *redis.Client) *RateLimitRedisStore {
	return &RateLimitRedisStore{
		client: client,
		prefix: "ratelimit:",
	}
}

func (s *RateLimitRedisStore) Record(ctx context.Context, key string, window time.Duration) (int64, error) {
	const op = "store.RateLimitRedisStore.Record"

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, s.prefix+key)
	// NX keeps the expiry set by the first request of the window.
	pipe.ExpireNX(ctx, s.prefix+key, window)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return incr.Val(), nil
}
