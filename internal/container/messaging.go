package container

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/samber/do"
	"github.com/serroba/shortshare/internal/analytics"
	analyticsstore "github.com/serroba/shortshare/internal/analytics/store"
	"github.com/serroba/shortshare/internal/messaging"
	"go.uber.org/zap"
)

const (
	consumerGroupName   = "shortshare-analytics"
	channelBuffer int64 = 256
)

func watermillLogger(i *do.Injector) watermill.LoggerAdapter {
	return messaging.NewZapLogger(do.MustInvoke[*zap.Logger](i))
}

// PublisherGroupPackage provides analytics.Publishers for the configured
// events backend. With --events=none every event is discarded.
func PublisherGroupPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*gochannel.GoChannel, error) {
		return gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: channelBuffer}, watermillLogger(i)), nil
	})

	do.Provide(injector, func(i *do.Injector) (*messaging.PublisherGroup, error) {
		opts := do.MustInvoke[*Options](i)

		var (
			publisher message.Publisher
			err       error
		)

		switch opts.Events {
		case BackendMemory:
			publisher = do.MustInvoke[*gochannel.GoChannel](i)
		case BackendRedis:
			client, invokeErr := do.Invoke[*Redis](i)
			if invokeErr != nil {
				return nil, invokeErr
			}

			publisher, err = redisstream.NewPublisher(redisstream.PublisherConfig{
				Client:     client.Client,
				Marshaller: redisstream.DefaultMarshallerUnmarshaller{},
			}, watermillLogger(i))
			if err != nil {
				return nil, fmt.Errorf("failed to create redis stream publisher: %w", err)
			}
		default:
			return nil, fmt.Errorf("no publisher for events backend %q", opts.Events)
		}

		return messaging.NewPublisherGroup(publisher), nil
	})

	do.Provide(injector, func(i *do.Injector) (analytics.Publishers, error) {
		opts := do.MustInvoke[*Options](i)
		if opts.Events == BackendNone || opts.Events == "" {
			return analytics.NopPublishers(), nil
		}

		group, err := do.Invoke[*messaging.PublisherGroup](i)
		if err != nil {
			return analytics.Publishers{}, err
		}

		return analytics.NewPublishers(group.Publisher()), nil
	})
}

// ConsumerGroupPackage provides the analytics *messaging.ConsumerGroup.
// Memory events share the server's in-process channel.
func ConsumerGroupPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (analytics.Store, error) {
		opts := do.MustInvoke[*Options](i)

		switch opts.AnalyticsStore {
		case BackendLog, "":
			return analyticsstore.NewNoop(do.MustInvoke[*zap.Logger](i)), nil
		case BackendRedis:
			client, err := do.Invoke[*Redis](i)
			if err != nil {
				return nil, err
			}

			return analyticsstore.NewRedis(client.Client), nil
		default:
			return nil, fmt.Errorf("unknown analytics store %q", opts.AnalyticsStore)
		}
	})

	do.Provide(injector, func(i *do.Injector) (*messaging.ConsumerGroup, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)

		var subscriber message.Subscriber

		switch opts.Events {
		case BackendMemory:
			subscriber = do.MustInvoke[*gochannel.GoChannel](i)
		case BackendRedis:
			client, err := do.Invoke[*Redis](i)
			if err != nil {
				return nil, err
			}

			subscriber, err = redisstream.NewSubscriber(redisstream.SubscriberConfig{
				Client:        client.Client,
				Unmarshaller:  redisstream.DefaultMarshallerUnmarshaller{},
				ConsumerGroup: consumerGroupName,
			}, watermillLogger(i))
			if err != nil {
				return nil, fmt.Errorf("failed to create redis stream subscriber: %w", err)
			}
		default:
			return nil, fmt.Errorf("no subscriber for events backend %q", opts.Events)
		}

		sink, err := do.Invoke[analytics.Store](i)
		if err != nil {
			return nil, err
		}

		group := messaging.NewConsumerGroup(consumerGroupName, subscriber, logger)
		for _, consumer := range analytics.NewConsumers(subscriber, sink, logger) {
			group.Add(consumer)
		}

		return group, nil
	})
}
