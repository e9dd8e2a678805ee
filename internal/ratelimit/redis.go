package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore backs counters with a redis instance shared by every server
// process, making the ceiling global rather than per-process.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore constructs a RedisStore.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Increment performs INCR and binds the ttl on first touch. The pipeline
// keeps increment-and-read atomic so concurrent bursts never undercount.
func (s *RedisStore) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// Decrement refunds one event, never dropping below zero.
func (s *RedisStore) Decrement(ctx context.Context, key string) error {
	val, err := s.client.Decr(ctx, key).Result()
	if err != nil {
		return err
	}
	if val < 0 {
		return s.client.Set(ctx, key, 0, redis.KeepTTL).Err()
	}
	return nil
}
