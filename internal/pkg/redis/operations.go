package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Keys passed to these helpers are used verbatim; call Key to namespace them.

// Set stores value with an optional expiration
func (c *Client) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	err := c.rdb.Set(ctx, key, value, expiration).Err()
	if err != nil {
		c.logger.Error("redis set failed", zap.String("key", key), zap.Error(err))
	}
	return err
}

// Get returns the value at key; a missing key yields ErrNil
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	val, err := c.rdb.Get(ctx, key).Result()
	if err != nil && !IsNil(err) {
		c.logger.Error("redis get failed", zap.String("key", key), zap.Error(err))
	}
	return val, err
}

// Del deletes keys
func (c *Client) Del(ctx context.Context, keys ...string) (int64, error) {
	n, err := c.rdb.Del(ctx, keys...).Result()
	if err != nil {
		c.logger.Error("redis del failed", zap.Strings("keys", keys), zap.Error(err))
	}
	return n, err
}

// Exists counts how many of keys exist
func (c *Client) Exists(ctx context.Context, keys ...string) (int64, error) {
	n, err := c.rdb.Exists(ctx, keys...).Result()
	if err != nil {
		c.logger.Error("redis exists failed", zap.Strings("keys", keys), zap.Error(err))
	}
	return n, err
}

// SetNX sets key only when absent
func (c *Client) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, key, value, expiration).Result()
	if err != nil {
		c.logger.Error("redis setnx failed", zap.String("key", key), zap.Error(err))
	}
	return ok, err
}

// LPush pushes values to the head of a list
func (c *Client) LPush(ctx context.Context, key string, values ...interface{}) (int64, error) {
	n, err := c.rdb.LPush(ctx, key, values...).Result()
	if err != nil {
		c.logger.Error("redis lpush failed", zap.String("key", key), zap.Error(err))
	}
	return n, err
}

// RPop pops from the tail of a list; an empty list yields ErrNil
func (c *Client) RPop(ctx context.Context, key string) (string, error) {
	val, err := c.rdb.RPop(ctx, key).Result()
	if err != nil && !IsNil(err) {
		c.logger.Error("redis rpop failed", zap.String("key", key), zap.Error(err))
	}
	return val, err
}

// LLen returns the length of a list
func (c *Client) LLen(ctx context.Context, key string) (int64, error) {
	n, err := c.rdb.LLen(ctx, key).Result()
	if err != nil {
		c.logger.Error("redis llen failed", zap.String("key", key), zap.Error(err))
	}
	return n, err
}

// SAdd adds members to a set
func (c *Client) SAdd(ctx context.Context, key string, members ...interface{}) (int64, error) {
	n, err := c.rdb.SAdd(ctx, key, members...).Result()
	if err != nil {
		c.logger.Error("redis sadd failed", zap.String("key", key), zap.Error(err))
	}
	return n, err
}

// SRem removes members from a set
func (c *Client) SRem(ctx context.Context, key string, members ...interface{}) (int64, error) {
	n, err := c.rdb.SRem(ctx, key, members...).Result()
	if err != nil {
		c.logger.Error("redis srem failed", zap.String("key", key), zap.Error(err))
	}
	return n, err
}

// SCard returns the size of a set
func (c *Client) SCard(ctx context.Context, key string) (int64, error) {
	return c.rdb.SCard(ctx, key).Result()
}

// Eval runs a Lua script
func (c *Client) Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error) {
	res, err := c.rdb.Eval(ctx, script, keys, args...).Result()
	if err != nil && !IsNil(err) {
		c.logger.Error("redis eval failed", zap.Strings("keys", keys), zap.Error(err))
	}
	return res, err
}

const unlockScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`

// Lock acquires a lease on key, returning the token needed to release it.
// ErrLockNotHeld means another holder owns the lease.
func (c *Client) Lock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	ok, err := c.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		c.logger.Error("redis lock failed", zap.String("key", key), zap.Error(err))
		return "", err
	}
	if !ok {
		return "", ErrLockNotHeld
	}
	return token, nil
}

// Unlock releases a lease if token still owns it
func (c *Client) Unlock(ctx context.Context, key, token string) error {
	n, err := c.rdb.Eval(ctx, unlockScript, []string{key}, token).Int64()
	if err != nil {
		c.logger.Error("redis unlock failed", zap.String("key", key), zap.Error(err))
		return err
	}
	if n == 0 {
		return ErrLockNotHeld
	}
	return nil
}

// WithLock runs fn while holding the lease on key
func (c *Client) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) error {
	token, err := c.Lock(ctx, key, ttl)
	if err != nil {
		return err
	}
	defer func() {
		if err := c.Unlock(context.WithoutCancel(ctx), key, token); err != nil {
			c.logger.Warn("failed to release lock", zap.String("key", key), zap.Error(err))
		}
	}()
	return fn(ctx)
}
