package minio

import (
	"errors"
	"time"
)

// BucketLookupType represents the type of bucket lookup
type BucketLookupType string

const (
	BucketLookupAuto BucketLookupType = "auto"
	BucketLookupDNS  BucketLookupType = "dns"
	BucketLookupPath BucketLookupType = "path"
)

// Config represents the configuration for the MinIO client
type Config struct {
	// Endpoint is the S3-compatible endpoint, e.g. "localhost:9000"
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"accesskeyid"`
	SecretAccessKey string `mapstructure:"secretaccesskey"`
	SessionToken    string `mapstructure:"sessiontoken"`
	Region          string `mapstructure:"region"`
	UseSSL          bool   `mapstructure:"usessl"`

	// BucketLookup defaults to BucketLookupAuto
	BucketLookup BucketLookupType `mapstructure:"bucketlookup"`

	// CreateBucket creates the archive bucket on startup when missing
	CreateBucket bool `mapstructure:"createbucket"`

	RequestTimeout time.Duration `mapstructure:"requesttimeout"`
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("minio: endpoint is required")
	}
	if c.AccessKeyID == "" {
		return errors.New("minio: access key ID is required")
	}
	if c.SecretAccessKey == "" {
		return errors.New("minio: secret access key is required")
	}

	switch c.BucketLookup {
	case "", BucketLookupAuto, BucketLookupDNS, BucketLookupPath:
		return nil
	default:
		return errors.New("minio: invalid bucket lookup type")
	}
}

// SetDefaults fills unspecified fields
func (c *Config) SetDefaults() {
	if c.BucketLookup == "" {
		c.BucketLookup = BucketLookupAuto
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 30 * time.Second
	}
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		UseSSL:         true,
		BucketLookup:   BucketLookupAuto,
		RequestTimeout: 30 * time.Second,
	}
}
