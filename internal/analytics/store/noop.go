package store

import (
	"context"

	"github.com/serroba/shortshare/internal/analytics"
	"go.uber.org/zap"
)

// Noop is a no-op implementation of analytics.Store that logs events.
type Noop struct {
	logger *zap.Logger
}

// NewNoop creates a new no-op analytics store.
func NewNoop(logger *zap.Logger) *Noop {
	return &Noop{logger: logger}
}

func (n *Noop) SaveContentCreated(_ context.Context, event *analytics.ContentCreatedEvent) error {
	n.logger.Info("content created event received",
		zap.String("short_id", event.ShortID),
		zap.String("kind", event.Kind),
		zap.Int("size", event.Size),
		zap.Time("created_at", event.CreatedAt),
	)

	return nil
}

func (n *Noop) SaveContentViewed(_ context.Context, event *analytics.ContentViewedEvent) error {
	n.logger.Info("content viewed event received",
		zap.String("short_id", event.ShortID),
		zap.Int64("views", event.Views),
		zap.Time("viewed_at", event.ViewedAt),
		zap.String("referrer", event.Referrer),
	)

	return nil
}
