package notify

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"tradewatch/internal/storage"
)

// DefaultKeyTTL bounds how long an advisory key is held in Redis.
const DefaultKeyTTL = 24 * time.Hour

const redisKeyPrefix = "tradewatch:notify:"

// RedisKeyGuard reserves keys with SET NX.
type RedisKeyGuard struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisKeyGuard(client *redis.Client, ttl time.Duration) *RedisKeyGuard {
	if ttl <= 0 {
		ttl = DefaultKeyTTL
	}
	return &RedisKeyGuard{client: client, ttl: ttl}
}

func (g *RedisKeyGuard) Reserve(ctx context.Context, key string) (bool, error) {
	return g.client.SetNX(ctx, redisKeyPrefix+key, time.Now().Unix(), g.ttl).Result()
}

// StoreKeyGuard reserves keys in the notification_keys table.
type StoreKeyGuard struct {
	store storage.NotificationStore
}

func NewStoreKeyGuard(store storage.NotificationStore) *StoreKeyGuard {
	return &StoreKeyGuard{store: store}
}

func (g *StoreKeyGuard) Reserve(ctx context.Context, key string) (bool, error) {
	return g.store.ReserveKey(ctx, key)
}
