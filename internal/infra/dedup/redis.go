package dedup

import (
	"context"
	"fmt"
	"time"

	"medinotify/internal/domain/notification"

	"github.com/redis/go-redis/v9"
)

var _ notification.SeenStore = (*RedisSeenStore)(nil)

// RedisSeenStore records classifier dedup keys in Redis with SETNX and a
// TTL. Keeping the seen-set out of process memory makes classification
// idempotent across restarts: a redelivered change observed before a restart
// still classifies as a duplicate after it.
type RedisSeenStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSeenStore creates a Redis-backed seen store.
func NewRedisSeenStore(redisAddr, password string, db int, ttl time.Duration) *RedisSeenStore {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}

	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: password,
		DB:       db,
	})

	return &RedisSeenStore{client: client, ttl: ttl}
}

// FirstObservation returns true exactly once per key within the TTL window.
// SETNX makes the check-and-record a single atomic step, so two concurrent
// deliveries of the same change cannot both observe "first".
func (r *RedisSeenStore) FirstObservation(ctx context.Context, key string) (bool, error) {
	set, err := r.client.SetNX(ctx, "medinotify:seen:"+key, 1, r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("recording observation: %w", err)
	}
	return set, nil
}

// Close closes the Redis connection.
func (r *RedisSeenStore) Close() error {
	return r.client.Close()
}
