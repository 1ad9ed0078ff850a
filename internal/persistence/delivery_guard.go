package persistence

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const deliveryKeyPrefix = "intake:delivery:"

// RedisDeliveryGuard remembers provider correlation ids so redelivered webhooks are not processed twice.
type RedisDeliveryGuard struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDeliveryGuard builds a guard whose claims expire after ttl.
func NewRedisDeliveryGuard(client *redis.Client, ttl time.Duration) *RedisDeliveryGuard {
	return &RedisDeliveryGuard{client: client, ttl: ttl}
}

// Claim records key and reports whether this caller is the first to see it.
func (g *RedisDeliveryGuard) Claim(ctx context.Context, key string) (bool, error) {
	return g.client.SetNX(ctx, deliveryKeyPrefix+key, time.Now().UTC().Format(time.RFC3339Nano), g.ttl).Result()
}

// Release forgets key so a provider retry is processed again.
func (g *RedisDeliveryGuard) Release(ctx context.Context, key string) error {
	return g.client.Del(ctx, deliveryKeyPrefix+key).Err()
}
