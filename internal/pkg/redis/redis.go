package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/lk2023060901/coldvault-backend/internal/pkg/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Client wraps a go-redis universal client
type Client struct {
	config *Config
	logger *logger.Logger
	rdb    redis.UniversalClient
}

// New creates the client for the configured topology and pings it
func New(cfg *Config, log *logger.Logger) (*Client, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := &redis.UniversalOptions{
		Addrs:           cfg.addrs(),
		MasterName:      cfg.MasterName,
		Username:        cfg.Username,
		Password:        cfg.Password,
		DB:              cfg.DB,
		PoolSize:        cfg.PoolSize,
		MinIdleConns:    cfg.MinIdleConns,
		DialTimeout:     cfg.DialTimeout,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		PoolTimeout:     cfg.PoolTimeout,
		MaxRetries:      cfg.MaxRetries,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}

	var rdb redis.UniversalClient
	switch cfg.Mode {
	case ModeCluster:
		rdb = redis.NewClusterClient(opts.Cluster())
	case ModeSentinel:
		rdb = redis.NewFailoverClient(opts.Failover())
	default:
		rdb = redis.NewClient(opts.Simple())
	}

	c := &Client{config: cfg, logger: log.Named("redis"), rdb: rdb}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Ping(ctx); err != nil {
		_ = c.rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	c.logger.Info("redis client initialized",
		zap.String("mode", string(cfg.Mode)),
		zap.Strings("addrs", cfg.addrs()),
	)
	return c, nil
}

// Ping checks connectivity
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the client
func (c *Client) Close() error {
	c.logger.Info("closing redis client")
	return c.rdb.Close()
}

// Key prefixes k with the configured namespace
func (c *Client) Key(k string) string {
	return c.config.KeyPrefix + k
}

// Raw exposes the underlying client for commands without a helper
func (c *Client) Raw() redis.UniversalClient {
	return c.rdb
}
