package container

import "github.com/samber/do"

// RegisterServer provides every package the HTTP server needs. The caller
// provides *Options first.
func RegisterServer(injector *do.Injector) {
	LoggerPackage(injector)
	RedisPackage(injector)
	AWSPackage(injector)
	StorePackage(injector)
	ObjectStorePackage(injector)
	MetricsPackage(injector)
	RateLimitPackage(injector)
	BrokerPackage(injector)
	PublisherGroupPackage(injector)
	ConsumerGroupPackage(injector)
	HTTPPackage(injector)
}
