package analytics

import "context"

// Store defines the interface for persisting analytics events.
type Store interface {
	SaveContentCreated(ctx context.Context, event *ContentCreatedEvent) error
	SaveContentViewed(ctx context.Context, event *ContentViewedEvent) error
}
