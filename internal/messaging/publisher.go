package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

const (
	// MetadataRequestID carries the X-Request-ID of the request that caused the event.
	MetadataRequestID = "request_id"
	// MetadataTopic repeats the topic so consumers of shared streams can route.
	MetadataTopic = "topic"
)

// Publish is a function that publishes a typed event.
type Publish[T any] func(ctx context.Context, event *T) error

// NewPublishFunc creates a typed publish function for a specific topic.
func NewPublishFunc[T any](publisher message.Publisher, topic string) Publish[T] {
	return func(ctx context.Context, event *T) error {
		payload, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("messaging.Publish(%s): %w", topic, err)
		}

		msg := message.NewMessage(watermill.NewUUID(), payload)
		msg.SetContext(ctx)
		msg.Metadata.Set(MetadataTopic, topic)

		if reqID := chimiddleware.GetReqID(ctx); reqID != "" {
			msg.Metadata.Set(MetadataRequestID, reqID)
		}

		if err := publisher.Publish(topic, msg); err != nil {
			return fmt.Errorf("messaging.Publish(%s): %w", topic, err)
		}

		return nil
	}
}

// NopPublish discards events. It stands in when events are disabled.
func NopPublish[T any](context.Context, *T) error {
	return nil
}

// PublisherGroup manages the underlying publisher lifecycle.
type PublisherGroup struct {
	publisher message.Publisher
}

// NewPublisherGroup creates a new publisher group.
func NewPublisherGroup(publisher message.Publisher) *PublisherGroup {
	return &PublisherGroup{publisher: publisher}
}

// Publisher returns the underlying message publisher for creating typed publish functions.
func (g *PublisherGroup) Publisher() message.Publisher {
	return g.publisher
}

// Shutdown closes the underlying publisher.
func (g *PublisherGroup) Shutdown() error {
	return g.publisher.Close()
}
