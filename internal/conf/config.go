package conf

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lk2023060901/coldvault-backend/internal/archive/queue"
	"github.com/lk2023060901/coldvault-backend/internal/archive/types"
	"github.com/lk2023060901/coldvault-backend/internal/auth/middleware"
	"github.com/lk2023060901/coldvault-backend/internal/pkg/database"
	"github.com/lk2023060901/coldvault-backend/internal/pkg/logger"
	"github.com/lk2023060901/coldvault-backend/internal/pkg/minio"
	"github.com/lk2023060901/coldvault-backend/internal/pkg/redis"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. COLDVAULT_AUTH_JWT_SECRET
const EnvPrefix = "COLDVAULT"

const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"

	StorageDriverMinIO = "minio"
	StorageDriverS3    = "s3"
)

type Config struct {
	App       AppConfig                    `mapstructure:"app"`
	Server    ServerConfig                 `mapstructure:"server"`
	Database  database.Config              `mapstructure:"database"`
	Redis     redis.Config                 `mapstructure:"redis"`
	Log       logger.Config                `mapstructure:"log"`
	Storage   StorageConfig                `mapstructure:"storage"`
	MinIO     minio.Config                 `mapstructure:"minio"`
	S3        S3Config                     `mapstructure:"s3"`
	Webhook   WebhookConfig                `mapstructure:"webhook"`
	Auth      AuthConfig                   `mapstructure:"auth"`
	RateLimit middleware.RateLimiterConfig `mapstructure:"rate_limit"`
	Worker    queue.WorkerConfig           `mapstructure:"worker"`
	Sweeper   SweeperConfig                `mapstructure:"sweeper"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StorageConfig selects the object store and restore defaults
type StorageConfig struct {
	Driver        string        `mapstructure:"driver"` // minio, s3
	Bucket        string        `mapstructure:"bucket"`
	RestoreDays   int           `mapstructure:"restore_days"`
	DefaultTier   string        `mapstructure:"default_tier"`
	PresignExpiry time.Duration `mapstructure:"presign_expiry"`
}

type S3Config struct {
	Region          string `mapstructure:"region"`
	BaseEndpoint    string `mapstructure:"base_endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
}

// WebhookConfig configures the inbound notification endpoint
type WebhookConfig struct {
	Source string `mapstructure:"source"`
	// SkipVerification is honoured only when app.env is development
	SkipVerification bool          `mapstructure:"skip_verification"`
	AllowedTopicARNs []string      `mapstructure:"allowed_topic_arns"`
	CertCacheTTL     time.Duration `mapstructure:"cert_cache_ttl"`
	HTTPTimeout      time.Duration `mapstructure:"http_timeout"`
	DedupCacheTTL    time.Duration `mapstructure:"dedup_cache_ttl"`
	MaxBodyBytes     int64         `mapstructure:"max_body_bytes"`
}

type AuthConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	JWTIssuer      string        `mapstructure:"jwt_issuer"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

type SweeperConfig struct {
	Enabled             bool `mapstructure:"enabled"`
	Concurrency         int  `mapstructure:"concurrency"`
	queue.SweeperConfig `mapstructure:",squash"`
}

// Default returns a config with every default applied
func Default() *Config {
	minioCfg := minio.DefaultConfig()
	minioCfg.Endpoint = "localhost:9000"
	minioCfg.UseSSL = false
	minioCfg.CreateBucket = true

	return &Config{
		App: AppConfig{Name: "coldvault", Env: EnvDevelopment},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: *database.DefaultConfig(),
		Redis:    *redis.DefaultConfig(),
		Log:      *logger.DefaultConfig(),
		Storage: StorageConfig{
			Driver:        StorageDriverMinIO,
			Bucket:        "coldvault-archive",
			RestoreDays:   7,
			DefaultTier:   string(types.RestoreTierStandard),
			PresignExpiry: 15 * time.Minute,
		},
		MinIO: *minioCfg,
		S3:    S3Config{Region: "us-east-1"},
		Webhook: WebhookConfig{
			Source:        "sns",
			CertCacheTTL:  time.Hour,
			HTTPTimeout:   10 * time.Second,
			DedupCacheTTL: 24 * time.Hour,
			MaxBodyBytes:  256 << 10,
		},
		Auth: AuthConfig{JWTIssuer: "coldvault", AccessTokenTTL: time.Hour},
		RateLimit: middleware.RateLimiterConfig{
			MaxRequests:   120,
			WindowSeconds: 60,
			Strategy:      "user",
		},
		Worker: queue.WorkerConfig{Workers: 2, PollInterval: time.Second, MaxRetries: 3},
		Sweeper: SweeperConfig{
			Enabled:     true,
			Concurrency: 4,
			SweeperConfig: queue.SweeperConfig{
				Interval:   5 * time.Minute,
				StaleAfter: 30 * time.Minute,
				BatchSize:  100,
			},
		},
	}
}

// envKeys are registered so AutomaticEnv can override them without a
// matching entry in the config file
var envKeys = []string{
	"app.env",
	"server.port",
	"database.host", "database.port", "database.user", "database.password", "database.dbname",
	"database.sslmode", "database.automigrate",
	"redis.addr", "redis.password", "redis.db",
	"log.level", "log.format",
	"storage.driver", "storage.bucket",
	"minio.endpoint", "minio.accesskeyid", "minio.secretaccesskey", "minio.usessl",
	"s3.region", "s3.base_endpoint", "s3.access_key_id", "s3.secret_access_key",
	"webhook.skip_verification",
	"auth.jwt_secret", "auth.jwt_issuer",
}

// LoadConfig reads the YAML file at path, applies COLDVAULT_* environment
// overrides and validates the result.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, k := range envKeys {
		if err := v.BindEnv(k); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", k, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	config := Default()
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return config, nil
}

// IsDevelopment reports whether the app runs in the development environment
func (c *Config) IsDevelopment() bool {
	return c.App.Env == EnvDevelopment
}

// Validate checks every section
func (c *Config) Validate() error {
	switch c.App.Env {
	case EnvDevelopment, EnvStaging, EnvProduction:
	default:
		return fmt.Errorf("app.env must be one of development, staging, production, got %q", c.App.Env)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}

	if err := c.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Redis.Validate(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	if err := c.validateStorage(); err != nil {
		return err
	}

	if c.Webhook.SkipVerification && !c.IsDevelopment() {
		return errors.New("webhook.skip_verification is only allowed when app.env is development")
	}
	if c.Webhook.Source == "" {
		return errors.New("webhook.source is required")
	}

	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	if !c.IsDevelopment() && len(c.Auth.JWTSecret) < 32 {
		return errors.New("auth.jwt_secret must be at least 32 bytes outside development")
	}
	return nil
}

func (c *Config) validateStorage() error {
	if c.Storage.Bucket == "" {
		return errors.New("storage.bucket is required")
	}
	if !types.RestoreTier(c.Storage.DefaultTier).Valid() {
		return fmt.Errorf("storage.default_tier is invalid: %q", c.Storage.DefaultTier)
	}
	if c.Storage.RestoreDays <= 0 {
		return errors.New("storage.restore_days must be positive")
	}

	switch c.Storage.Driver {
	case StorageDriverMinIO:
		if err := c.MinIO.Validate(); err != nil {
			return err
		}
	case StorageDriverS3:
		if c.S3.Region == "" {
			return errors.New("s3.region is required")
		}
	default:
		return fmt.Errorf("storage.driver must be minio or s3, got %q", c.Storage.Driver)
	}
	return nil
}
