package redis

import (
	"errors"
	"fmt"
	"time"
)

// DeployMode is the Redis topology
type DeployMode string

const (
	ModeSingle   DeployMode = "single"
	ModeSentinel DeployMode = "sentinel"
	ModeCluster  DeployMode = "cluster"
)

// Config is the Redis client configuration
type Config struct {
	Mode DeployMode `mapstructure:"mode"`

	// single
	Addr string `mapstructure:"addr"`

	// sentinel
	SentinelAddrs []string `mapstructure:"sentinel_addrs"`
	MasterName    string   `mapstructure:"master_name"`

	// cluster
	ClusterAddrs []string `mapstructure:"cluster_addrs"`

	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	PoolSize     int `mapstructure:"pool_size"`
	MinIdleConns int `mapstructure:"min_idle_conns"`

	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PoolTimeout  time.Duration `mapstructure:"pool_timeout"`

	MaxRetries      int           `mapstructure:"max_retries"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`

	// KeyPrefix namespaces every key written through Client helpers
	KeyPrefix string `mapstructure:"key_prefix"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Mode:            ModeSingle,
		Addr:            "localhost:6379",
		PoolSize:        10,
		MinIdleConns:    2,
		DialTimeout:     5 * time.Second,
		ReadTimeout:     3 * time.Second,
		WriteTimeout:    3 * time.Second,
		PoolTimeout:     4 * time.Second,
		MaxRetries:      3,
		ConnMaxIdleTime: 5 * time.Minute,
		KeyPrefix:       "coldvault:",
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeSingle:
		if c.Addr == "" {
			return errors.New("redis: addr is required in single mode")
		}
	case ModeSentinel:
		if len(c.SentinelAddrs) == 0 || c.MasterName == "" {
			return errors.New("redis: sentinel_addrs and master_name are required in sentinel mode")
		}
	case ModeCluster:
		if len(c.ClusterAddrs) == 0 {
			return errors.New("redis: cluster_addrs is required in cluster mode")
		}
		if c.DB != 0 {
			return errors.New("redis: cluster mode only supports db 0")
		}
	default:
		return fmt.Errorf("%w: unsupported mode %q", ErrInvalidConfig, c.Mode)
	}

	if c.DB < 0 || c.DB > 15 {
		return errors.New("redis: db must be between 0 and 15")
	}
	if c.PoolSize < 0 || c.MinIdleConns < 0 {
		return errors.New("redis: pool sizes must be >= 0")
	}
	return nil
}

func (c *Config) addrs() []string {
	switch c.Mode {
	case ModeSentinel:
		return c.SentinelAddrs
	case ModeCluster:
		return c.ClusterAddrs
	default:
		return []string{c.Addr}
	}
}
