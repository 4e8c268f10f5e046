package store

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/serroba/shortshare/internal/analytics"
)

// Redis aggregates analytics events into counters:
//
//	analytics:created       hash kind -> submissions
//	analytics:views         sorted set short id -> views seen by the consumer
//	analytics:referrers     sorted set referrer -> views
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis creates a Redis-backed analytics store.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client, prefix: "analytics:"}
}

func (r *Redis) SaveContentCreated(ctx context.Context, event *analytics.ContentCreatedEvent) error {
	if err := r.client.HIncrBy(ctx, r.prefix+"created", event.Kind, 1).Err(); err != nil {
		return fmt.Errorf("analytics.store.Redis.SaveContentCreated: %w", err)
	}

	return nil
}

func (r *Redis) SaveContentViewed(ctx context.Context, event *analytics.ContentViewedEvent) error {
	pipe := r.client.TxPipeline()
	pipe.ZIncrBy(ctx, r.prefix+"views", 1, event.ShortID)

	if event.Referrer != "" {
		pipe.ZIncrBy(ctx, r.prefix+"referrers", 1, event.Referrer)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("analytics.store.Redis.SaveContentViewed: %w", err)
	}

	return nil
}
