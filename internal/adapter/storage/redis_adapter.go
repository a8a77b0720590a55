package storage

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	availabilityKeyPrefix = "availability:"

	// Snapshots carry a TTL so a missed invalidation heals itself.
	availabilityTTL = 10 * time.Minute
)

// RedisAvailabilityCache keeps per-SKU unreserved-quantity snapshots so
// availability reads stay off the relational store.
type RedisAvailabilityCache struct {
	client *redis.Client
}

func NewRedisAvailabilityCache(client *redis.Client) *RedisAvailabilityCache {
	return &RedisAvailabilityCache{client: client}
}

func (r *RedisAvailabilityCache) SetAvailability(ctx context.Context, sku string, quantity int) error {
	return r.client.Set(ctx, availabilityKeyPrefix+sku, quantity, availabilityTTL).Err()
}

func (r *RedisAvailabilityCache) GetAvailability(ctx context.Context, sku string) (int, bool, error) {
	quantity, err := r.client.Get(ctx, availabilityKeyPrefix+sku).Int()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return quantity, true, nil
}

func (r *RedisAvailabilityCache) Invalidate(ctx context.Context, sku string) error {
	return r.client.Del(ctx, availabilityKeyPrefix+sku).Err()
}
