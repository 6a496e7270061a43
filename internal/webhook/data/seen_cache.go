package data

import (
	"context"
	"time"

	pkgredis "github.com/lk2023060901/coldvault-backend/internal/pkg/redis"
)

// RedisSeenCache remembers recently recorded deliveries so redeliveries
// skip the database. The event log stays authoritative.
type RedisSeenCache struct {
	redis *pkgredis.Client
	ttl   time.Duration
}

// NewRedisSeenCache creates the cache; ttl defaults to 24h
func NewRedisSeenCache(redis *pkgredis.Client, ttl time.Duration) *RedisSeenCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisSeenCache{redis: redis, ttl: ttl}
}

func (c *RedisSeenCache) key(source, id string) string {
	return c.redis.Key("webhook:seen:" + source + ":" + id)
}

// Seen reports whether the delivery was marked
func (c *RedisSeenCache) Seen(ctx context.Context, source, id string) (bool, error) {
	n, err := c.redis.Exists(ctx, c.key(source, id))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkSeen marks the delivery for ttl
func (c *RedisSeenCache) MarkSeen(ctx context.Context, source, id string) error {
	return c.redis.Set(ctx, c.key(source, id), "1", c.ttl)
}
