package redis

import (
	"errors"

	"github.com/redis/go-redis/v9"
)

var (
	ErrNil           = redis.Nil
	ErrInvalidConfig = errors.New("redis: invalid configuration")
	ErrLockNotHeld   = errors.New("redis: lock not acquired")
)

// IsNil reports a missing key
func IsNil(err error) bool {
	return errors.Is(err, redis.Nil)
}
