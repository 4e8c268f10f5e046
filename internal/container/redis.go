package container

import (
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
)

// Redis wraps the shared client so the injector closes it on shutdown.
type Redis struct {
	*redis.Client
}

func (r *Redis) Shutdown() error {
	return r.Close()
}

// RedisPackage provides *Redis. The client connects lazily, so providing it
// costs nothing when no component asks for it.
func RedisPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*Redis, error) {
		opts := do.MustInvoke[*Options](i)

		return &Redis{Client: redis.NewClient(&redis.Options{Addr: opts.RedisAddr})}, nil
	})
}

// optionalRedis returns the shared client when a component is configured
// to use Redis, nil otherwise.
func optionalRedis(i *do.Injector) (*Redis, error) {
	if !do.MustInvoke[*Options](i).usesRedis() {
		return nil, nil //nolint:nilnil // absent by configuration
	}

	return do.Invoke[*Redis](i)
}
