package shared

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisIdempotencyStore keeps request keys in Redis with a retention TTL.
type RedisIdempotencyStore struct {
	client    *redis.Client
	retention time.Duration
}

// NewRedisIdempotencyStore constructs the store. Keys expire after retention.
func NewRedisIdempotencyStore(client *redis.Client, retention time.Duration) *RedisIdempotencyStore {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &RedisIdempotencyStore{client: client, retention: retention}
}

func redisIdempotencyKey(key string) string {
	return "idempotency:" + key
}

// CheckAndInsert claims key for module, failing when it was already claimed.
func (s *RedisIdempotencyStore) CheckAndInsert(ctx context.Context, key, module string) error {
	if s == nil || s.client == nil {
		return errIdempotencyUnset
	}
	if err := checkClaim(key, module); err != nil {
		return err
	}
	ok, err := s.client.SetNX(ctx, redisIdempotencyKey(key), module, s.retention).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrIdempotencyConflict
	}
	return nil
}

// Delete releases a key after failed processing.
func (s *RedisIdempotencyStore) Delete(ctx context.Context, key string) error {
	if s == nil || s.client == nil {
		return nil
	}
	if key == "" {
		return ErrIdempotencyKeyRequired
	}
	return s.client.Del(ctx, redisIdempotencyKey(key)).Err()
}
