package kvstore

import (
	"github.com/redis/go-redis/v9"
)

// Driver identifies a Store implementation.
type Driver string

const (
	DriverMemory Driver = "memory"
	DriverRedis  Driver = "redis"
)

// Option configures a Store created by New.
type Option func(*options)

type options struct {
	redisClient *redis.Client
}

// WithRedisClient sets the client used by the Redis driver.
func WithRedisClient(client *redis.Client) Option {
	return func(o *options) {
		o.redisClient = client
	}
}

// New creates a Store for the given driver.
// The Redis driver requires WithRedisClient.
func New(driver Driver, opts ...Option) (Store, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	switch driver {
	case DriverMemory:
		return newMemoryStore(), nil
	case DriverRedis:
		if o.redisClient == nil {
			return nil, ErrInvalidConfig
		}
		return &redisStore{client: o.redisClient}, nil
	default:
		return nil, ErrInvalidDriver
	}
}
