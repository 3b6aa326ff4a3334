package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultKeyPrefix = "lms-assistant:cache:"

// RedisStore keeps entries in Redis so several instances share one cache.
// Expiry is delegated to Redis key TTLs.
type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
}

func NewRedisStore(rdb redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool) {
	val, err := s.rdb.Get(ctx, s.prefix+key).Result()
	if err != nil {
		return "", false
	}
	return val, true
}

func (s *RedisStore) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if err := s.rdb.Set(ctx, s.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) (int, error) {
	removed := 0
	iter := s.rdb.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	batch := make([]string, 0, 100)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := s.rdb.Del(ctx, batch...).Result()
		if err != nil {
			return err
		}
		removed += int(n)
		batch = batch[:0]
		return nil
	}
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := flush(); err != nil {
				return removed, fmt.Errorf("cache clear: %w", err)
			}
		}
	}
	if err := iter.Err(); err != nil && !errors.Is(err, redis.Nil) {
		return removed, fmt.Errorf("cache clear: %w", err)
	}
	if err := flush(); err != nil {
		return removed, fmt.Errorf("cache clear: %w", err)
	}
	return removed, nil
}

func (s *RedisStore) Len(ctx context.Context) int {
	n := 0
	iter := s.rdb.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		n++
	}
	return n
}
