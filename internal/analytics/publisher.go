package analytics

import (
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/serroba/shortshare/internal/messaging"
)

// Publishers holds the typed publish functions for every analytics topic.
type Publishers struct {
	ContentCreated messaging.Publish[ContentCreatedEvent]
	ContentViewed  messaging.Publish[ContentViewedEvent]
}

// NewPublishers binds each topic to publisher.
func NewPublishers(publisher message.Publisher) Publishers {
	return Publishers{
		ContentCreated: messaging.NewPublishFunc[ContentCreatedEvent](publisher, TopicContentCreated),
		ContentViewed:  messaging.NewPublishFunc[ContentViewedEvent](publisher, TopicContentViewed),
	}
}

// NopPublishers discards every event.
func NopPublishers() Publishers {
	return Publishers{
		ContentCreated: messaging.NopPublish[ContentCreatedEvent],
		ContentViewed:  messaging.NopPublish[ContentViewedEvent],
	}
}
