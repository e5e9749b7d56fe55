package credstore

import (
	"time"

	"github.com/neilberkman/fieldhand/internal/core/db"
	"github.com/redis/go-redis/v9"
)

// StoreOption is a functional option for configuring a credential store.
type StoreOption func(*storeConfig)

// storeConfig holds configuration for credential stores.
type storeConfig struct {
	database    *db.DB
	redisClient *redis.Client
	redisPrefix string
	redisTTL    time.Duration
}

// WithDatabase sets the SQLite database for the sqlite store.
func WithDatabase(database *db.DB) StoreOption {
	return func(c *storeConfig) {
		c.database = database
	}
}

// WithRedisClient sets the Redis client for the Redis store.
func WithRedisClient(client *redis.Client) StoreOption {
	return func(c *storeConfig) {
		c.redisClient = client
	}
}

// WithRedisPrefix namespaces the Redis keys, e.g. per user profile.
func WithRedisPrefix(prefix string) StoreOption {
	return func(c *storeConfig) {
		c.redisPrefix = prefix
	}
}

// WithRedisTTL expires the Redis keys. Zero keeps them until cleared.
func WithRedisTTL(ttl time.Duration) StoreOption {
	return func(c *storeConfig) {
		c.redisTTL = ttl
	}
}
