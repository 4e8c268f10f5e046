package analytics

import (
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/serroba/shortshare/internal/messaging"
	"go.uber.org/zap"
)

// NewConsumers returns one consumer per analytics topic, each persisting
// into store.
func NewConsumers(subscriber message.Subscriber, store Store, logger *zap.Logger) []messaging.Runnable {
	return []messaging.Runnable{
		messaging.NewConsumer[ContentCreatedEvent](subscriber, TopicContentCreated, store.SaveContentCreated, logger),
		messaging.NewConsumer[ContentViewedEvent](subscriber, TopicContentViewed, store.SaveContentViewed, logger),
	}
}
