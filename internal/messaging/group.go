package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/zap"
)

var errGroupStarted = errors.New("consumer group already started")

// Runnable is a consumer bound to a single topic.
type Runnable interface {
	Topic() string
	Start(ctx context.Context) error
	Shutdown() error
}

// ConsumerGroup runs the consumers that read from one subscriber and closes
// the subscriber once they have stopped. Consumers are added before Start.
type ConsumerGroup struct {
	name       string
	subscriber message.Subscriber
	logger     *zap.Logger
	consumers  []Runnable

	mu      sync.Mutex
	running []Runnable
}

// NewConsumerGroup creates a group. name identifies the group in logs and,
// for Redis streams, matches the stream consumer group.
func NewConsumerGroup(name string, subscriber message.Subscriber, logger *zap.Logger) *ConsumerGroup {
	return &ConsumerGroup{
		name:       name,
		subscriber: subscriber,
		logger:     logger.With(zap.String("consumer_group", name)),
	}
}

func (g *ConsumerGroup) Add(consumer Runnable) {
	g.consumers = append(g.consumers, consumer)
}

// Topics lists the topics of the registered consumers in order.
func (g *ConsumerGroup) Topics() []string {
	topics := make([]string, 0, len(g.consumers))
	for _, c := range g.consumers {
		topics = append(topics, c.Topic())
	}

	return topics
}

// Start subscribes every consumer. If one fails, those already running are
// stopped and the group can be started again.
func (g *ConsumerGroup) Start(ctx context.Context) error {
	const op = "messaging.ConsumerGroup.Start"

	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.running) > 0 {
		return fmt.Errorf("%s: %s: %w", op, g.name, errGroupStarted)
	}

	for _, consumer := range g.consumers {
		if err := consumer.Start(ctx); err != nil {
			if stopErr := g.stopRunning(); stopErr != nil {
				g.logger.Warn("rollback after failed start", zap.Error(stopErr))
			}

			return fmt.Errorf("%s: topic %s: %w", op, consumer.Topic(), err)
		}

		g.running = append(g.running, consumer)
	}

	g.logger.Info("consumer group started", zap.Strings("topics", g.Topics()))

	return nil
}

// Shutdown stops the running consumers, newest first, then closes the
// subscriber. Every step runs; the errors are joined.
func (g *ConsumerGroup) Shutdown() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	stopped := len(g.running)
	errs := []error{g.stopRunning()}

	if err := g.subscriber.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close subscriber: %w", err))
	}

	g.logger.Info("consumer group stopped", zap.Int("consumers", stopped))

	return errors.Join(errs...)
}

func (g *ConsumerGroup) stopRunning() error {
	var errs []error

	for i := len(g.running) - 1; i >= 0; i-- {
		consumer := g.running[i]
		if err := consumer.Shutdown(); err != nil {
			errs = append(errs, fmt.Errorf("topic %s: %w", consumer.Topic(), err))
		}
	}

	g.running = nil

	return errors.Join(errs...)
}
