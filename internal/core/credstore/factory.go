package credstore

// StoreType represents the type of credential store.
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeSQLite StoreType = "sqlite"
	StoreTypeRedis  StoreType = "redis"
)

// DefaultRedisPrefix namespaces keys when no prefix is configured.
const DefaultRedisPrefix = "fieldhand:"

// NewStore creates a Store of the given type.
// SQLite requires WithDatabase; Redis requires WithRedisClient.
func NewStore(storeType StoreType, opts ...StoreOption) (Store, error) {
	config := &storeConfig{}
	for _, opt := range opts {
		opt(config)
	}

	switch storeType {
	case StoreTypeMemory:
		return NewMemoryStore(), nil

	case StoreTypeSQLite:
		if config.database == nil {
			return nil, ErrInvalidConfig
		}
		return NewSQLiteStore(config.database), nil

	case StoreTypeRedis:
		if config.redisClient == nil {
			return nil, ErrInvalidConfig
		}
		prefix := config.redisPrefix
		if prefix == "" {
			prefix = DefaultRedisPrefix
		}
		return NewRedisStore(config.redisClient, prefix, config.redisTTL), nil

	default:
		return nil, ErrInvalidStoreType
	}
}
