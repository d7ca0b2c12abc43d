package services

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisThrottlePrefix = "domus:throttle:"

// RedisThrottleStore keeps last-accepted timestamps in Redis so multiple
// processes share one debounce view. Entries carry a TTL of twice the
// interval, matching the memory store's retention.
type RedisThrottleStore struct {
	client *redis.Client
}

// NewRedisThrottleStore creates a store over an existing Redis client
func NewRedisThrottleStore(client *redis.Client) *RedisThrottleStore {
	return &RedisThrottleStore{client: client}
}

// LastAccepted returns the recorded acceptance time for a key
func (s *RedisThrottleStore) LastAccepted(ctx context.Context, key string) (time.Time, bool, error) {
	raw, err := s.client.Get(ctx, redisThrottlePrefix+key).Result()
	if err == redis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("redis get: %w", err)
	}

	at, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		// Unparseable entries are treated as absent rather than wedging
		// the gate shut
		return time.Time{}, false, nil
	}
	return at, true, nil
}

// Record stores an acceptance with a TTL bound to the interval
func (s *RedisThrottleStore) Record(ctx context.Context, key string, at time.Time, interval time.Duration) error {
	ttl := 2 * interval
	if ttl <= 0 {
		ttl = time.Hour
	}
	err := s.client.Set(ctx, redisThrottlePrefix+key, at.Format(time.RFC3339Nano), ttl).Err()
	if err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Reset forgets a key
func (s *RedisThrottleStore) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, redisThrottlePrefix+key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// ClearAll forgets every throttle key under the store's prefix
func (s *RedisThrottleStore) ClearAll(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, redisThrottlePrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("redis del %s: %w", iter.Val(), err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan: %w", err)
	}
	return nil
}
