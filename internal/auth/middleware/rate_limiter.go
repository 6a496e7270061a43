package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lk2023060901/coldvault-backend/internal/pkg/logger"
	"github.com/lk2023060901/coldvault-backend/internal/pkg/redis"
	"github.com/lk2023060901/coldvault-backend/internal/pkg/validator"
	"go.uber.org/zap"
)

// RateLimiterConfig bounds requests per key in a sliding window
type RateLimiterConfig struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowSeconds int `mapstructure:"window_seconds"`
	// Strategy is "user" or "ip" (default)
	Strategy string `mapstructure:"strategy"`
}

const slidingWindowScript = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, 0, now - window)
local current = redis.call('ZCARD', key)
if current < limit then
	redis.call('ZADD', key, now, ARGV[4])
	redis.call('EXPIRE', key, window)
	return {1, limit - current - 1}
end
return {0, 0}`

// RateLimiter limits requests with a redis sliding window. Redis errors
// let the request through.
func RateLimiter(rdb *redis.Client, cfg RateLimiterConfig, log *logger.Logger) gin.HandlerFunc {
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = 100
	}
	if cfg.WindowSeconds <= 0 {
		cfg.WindowSeconds = 60
	}

	return func(c *gin.Context) {
		key := rdb.Key(rateLimitKey(c, cfg.Strategy))
		allowed, remaining, err := checkRateLimit(c.Request.Context(), rdb, key, cfg)
		if err != nil {
			log.Error("rate limiter error", zap.Error(err), zap.String("key", key))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.MaxRequests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			c.Header("Retry-After", strconv.Itoa(cfg.WindowSeconds))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

func rateLimitKey(c *gin.Context, strategy string) string {
	if strategy == "user" {
		if id, ok := GetUserID(c); ok {
			return "rate_limit:user:" + id
		}
	}
	return "rate_limit:ip:" + validator.ClientIP(c.ClientIP())
}

func checkRateLimit(ctx context.Context, rdb *redis.Client, key string, cfg RateLimiterConfig) (bool, int, error) {
	now := time.Now().Unix()
	res, err := rdb.Eval(ctx, slidingWindowScript, []string{key}, now, cfg.WindowSeconds, cfg.MaxRequests, uuid.NewString())
	if err != nil {
		return false, 0, err
	}

	vals, ok := res.([]interface{})
	if !ok || len(vals) != 2 {
		return false, 0, fmt.Errorf("invalid rate limit result %v", res)
	}
	allowed, _ := vals[0].(int64)
	remaining, _ := vals[1].(int64)
	return allowed == 1, int(remaining), nil
}
