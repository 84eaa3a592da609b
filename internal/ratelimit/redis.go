package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisStore shares window counters across processes through redis. Counter
// keys expire with their window, so state clears itself by TTL rather than by
// explicit cleanup.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an existing redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Incr implements [Store] with INCR + PEXPIRE. The expiry is only set when the
// increment opened a fresh window, so over-limit calls never extend it.
func (s *RedisStore) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("rate limit store incr: %w", err)
	}

	if count == 1 {
		if err := s.client.PExpire(ctx, key, window).Err(); err != nil {
			return 0, 0, fmt.Errorf("rate limit store expire: %w", err)
		}
		return count, window, nil
	}

	ttl, err := s.client.PTTL(ctx, key).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("rate limit store ttl: %w", err)
	}
	if ttl < 0 {
		// Counter lost its expiry (e.g. restored from a dump); re-arm it so
		// the key cannot leak forever.
		if err := s.client.PExpire(ctx, key, window).Err(); err != nil {
			return 0, 0, fmt.Errorf("rate limit store expire: %w", err)
		}
		ttl = window
	}

	return count, ttl, nil
}
