package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

// RedisStore implements Store on Redis. Expiry is native, so it has no
// purge step.
type RedisStore struct {
	client *redis.Client
}

// NewRedis creates a RedisStore for addr. Connectivity is checked by Ping.
func NewRedis(addr string) *RedisStore {
	return &RedisStore{client: redis.NewClient(&redis.Options{Addr: addr})}
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "redis: get %s", key)
	}
	return val, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	// go-redis treats -1 as KEEPTTL, so an already-expired write is a delete.
	if ttl < 0 {
		return s.Delete(ctx, key)
	}
	return eris.Wrapf(s.client.Set(ctx, key, value, ttl).Err(), "redis: set %s", key)
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return eris.Wrapf(s.client.Del(ctx, key).Err(), "redis: delete %s", key)
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.client.Ping(ctx).Err(), "redis: ping")
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
