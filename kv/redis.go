package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const compareAndSetScript = `
local current = redis.call("GET", KEYS[1])
if not current or current ~= ARGV[1] then
  return 0
end
redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
return 1
`

var compareAndSetLua = redis.NewScript(compareAndSetScript)

// RedisStore is a Store backed by Redis. Keys are namespaced with prefix.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisStore returns a RedisStore. An empty prefix leaves keys unchanged;
// otherwise keys are written as prefix + ":" + key.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{redis: client, prefix: prefix}
}

func (s *RedisStore) key(k string) string {
	if s.prefix == "" {
		return k
	}
	return s.prefix + ":" + k
}

// Get performs a single GET.
func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	value, err := s.redis.Get(ctx, s.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return value, nil
}

// Set performs a single SET with expiry.
func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	if err := s.redis.Set(ctx, s.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// CompareAndSet runs a Lua script so the read and the write happen as one
// server-side step.
func (s *RedisStore) CompareAndSet(ctx context.Context, key, expected, value string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, ErrInvalidTTL
	}
	ms := ttl.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	res, err := compareAndSetLua.Run(ctx, s.redis, []string{s.key(key)}, expected, value, ms).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return res == 1, nil
}
