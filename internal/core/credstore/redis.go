package credstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps credentials in Redis, for shared or containerised setups.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed store. A zero ttl never expires.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

// Load implements Store.
func (s *RedisStore) Load(ctx context.Context) (*Credentials, error) {
	vals, err := s.client.MGet(ctx, s.key(KeySessionID), s.key(KeyEmail)).Result()
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}

	creds, partial := fromValues(asString(vals[0]), asString(vals[1]))
	if partial {
		if err := s.Clear(ctx); err != nil {
			return nil, err
		}
	}
	return creds, nil
}

// Save implements Store.
func (s *RedisStore) Save(ctx context.Context, creds Credentials) error {
	if err := creds.Validate(); err != nil {
		return err
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(KeySessionID), creds.SessionID, s.ttl)
		pipe.Set(ctx, s.key(KeyEmail), creds.Email, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}
	return nil
}

// Clear implements Store.
func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key(KeySessionID), s.key(KeyEmail)).Err(); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// key constructs the Redis key for a credential field.
func (s *RedisStore) key(name string) string {
	return s.prefix + name
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}
