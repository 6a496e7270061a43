package minio

import (
	"context"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// Client wraps the MinIO client with logging and lifecycle handling
type Client struct {
	client *minio.Client
	config *Config
	logger *zap.Logger
	mu     sync.RWMutex
	closed bool
}

// NewClient creates a new MinIO client
func NewClient(cfg *Config, logger *zap.Logger) (*Client, error) {
	if cfg == nil {
		return nil, ErrInvalidArgument
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, WrapErrorWithMessage("NewClient", err, "invalid configuration")
	}

	opts := &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	}
	switch cfg.BucketLookup {
	case BucketLookupDNS:
		opts.BucketLookup = minio.BucketLookupDNS
	case BucketLookupPath:
		opts.BucketLookup = minio.BucketLookupPath
	default:
		opts.BucketLookup = minio.BucketLookupAuto
	}

	mc, err := minio.New(cfg.Endpoint, opts)
	if err != nil {
		return nil, WrapErrorWithMessage("NewClient", err, "failed to create minio client")
	}

	logger.Info("minio client initialized",
		zap.String("endpoint", cfg.Endpoint),
		zap.String("region", cfg.Region),
		zap.Bool("use_ssl", cfg.UseSSL),
	)

	return &Client{client: mc, config: cfg, logger: logger}, nil
}

// Ping checks that the server answers by probing the bucket
func (c *Client) Ping(ctx context.Context, bucket string) error {
	if err := c.checkClosed(); err != nil {
		return err
	}
	if _, err := c.client.BucketExists(ctx, bucket); err != nil {
		return WrapErrorWithMessage("Ping", err, "failed to connect to minio server")
	}
	return nil
}

// EnsureBucket creates bucket when it does not exist
func (c *Client) EnsureBucket(ctx context.Context, bucket string) error {
	if err := c.checkClosed(); err != nil {
		return err
	}

	exists, err := c.client.BucketExists(ctx, bucket)
	if err != nil {
		return WrapError("BucketExists", err, bucket, "")
	}
	if exists {
		return nil
	}

	if err := c.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: c.config.Region}); err != nil {
		if IsBucketAlreadyExists(err) {
			return nil
		}
		return WrapError("MakeBucket", err, bucket, "")
	}
	c.logger.Info("bucket created", zap.String("bucket", bucket))
	return nil
}

// Close marks the client closed; subsequent calls fail
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		c.logger.Info("minio client closed")
	}
	return nil
}

func (c *Client) checkClosed() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClientClosed
	}
	return nil
}
