package data

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/lk2023060901/coldvault-backend/internal/archive/biz"
	"github.com/lk2023060901/coldvault-backend/internal/archive/types"
	"github.com/lk2023060901/coldvault-backend/internal/pkg/logger"
	"go.uber.org/zap"
)

// S3Options configures the AWS S3 object store
type S3Options struct {
	Region          string
	Bucket          string
	Endpoint        string // empty uses the AWS default resolver
	AccessKeyID     string // empty falls back to the default credential chain
	SecretAccessKey string
	UsePathStyle    bool
}

type s3API interface {
	RestoreObject(ctx context.Context, params *s3.RestoreObjectInput, optFns ...func(*s3.Options)) (*s3.RestoreObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

type s3Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Replaced in tests.
var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// S3ObjectStore implements biz.ObjectStore on AWS S3 Glacier storage classes
type S3ObjectStore struct {
	api     s3API
	presign s3Presigner
	bucket  string
	logger  *logger.Logger
}

// NewS3ObjectStore loads AWS config and builds the S3 clients
func NewS3ObjectStore(ctx context.Context, opts S3Options, log *logger.Logger) (*S3ObjectStore, error) {
	if opts.Bucket == "" {
		return nil, errors.New("s3: bucket is required")
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, "")))
	}

	cfg, err := loadDefaultAWSConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.UsePathStyle
	})

	return &S3ObjectStore{
		api:     client,
		presign: s3.NewPresignClient(client),
		bucket:  opts.Bucket,
		logger:  log.Named("s3"),
	}, nil
}

// RequestRestore posts a restore request for key. A restore that is
// already running counts as accepted.
func (s *S3ObjectStore) RequestRestore(ctx context.Context, key string, tier types.RestoreTier, days int) error {
	_, err := s.api.RestoreObject(ctx, &s3.RestoreObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		RestoreRequest: &s3types.RestoreRequest{
			Days:                 aws.Int32(int32(days)),
			GlacierJobParameters: &s3types.GlacierJobParameters{Tier: s3Tier(tier)},
		},
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "RestoreAlreadyInProgress" {
			s.logger.Debug("restore already in progress", zap.String("key", key))
			return nil
		}
		return fmt.Errorf("s3 restore %s: %w", key, err)
	}

	s.logger.Info("restore requested",
		zap.String("key", key),
		zap.String("tier", tier.String()),
		zap.Int("days", days))
	return nil
}

// RestoreStatus reads the x-amz-restore header of key
func (s *S3ObjectStore) RestoreStatus(ctx context.Context, key string) (*biz.RestoreStatus, error) {
	out, err := s.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("s3 head %s: %w", key, err)
	}
	return parseRestoreHeader(aws.ToString(out.Restore))
}

// PresignDownload returns a GET URL for key valid for expiry
func (s *S3ObjectStore) PresignDownload(ctx context.Context, key string, expiry time.Duration) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("s3 presign %s: %w", key, err)
	}
	return req.URL, nil
}

// parseRestoreHeader decodes `ongoing-request="false", expiry-date="..."`.
// An empty header means no restore was ever requested.
func parseRestoreHeader(h string) (*biz.RestoreStatus, error) {
	st := &biz.RestoreStatus{}
	if strings.TrimSpace(h) == "" {
		return st, nil
	}
	st.Requested = true

	for _, part := range splitRestoreFields(h) {
		name, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		value = strings.Trim(strings.TrimSpace(value), `"`)
		switch strings.TrimSpace(name) {
		case "ongoing-request":
			st.Ongoing = value == "true"
		case "expiry-date":
			t, err := http.ParseTime(value)
			if err != nil {
				return nil, fmt.Errorf("parse restore expiry %q: %w", value, err)
			}
			t = t.UTC()
			st.ExpiresAt = &t
		}
	}
	return st, nil
}

// splitRestoreFields splits on commas outside quotes; the expiry date
// itself contains a comma.
func splitRestoreFields(h string) []string {
	var (
		fields  []string
		start   int
		inQuote bool
	)
	for i, c := range h {
		switch c {
		case '"':
			inQuote = !inQuote
		case ',':
			if !inQuote {
				fields = append(fields, h[start:i])
				start = i + 1
			}
		}
	}
	return append(fields, h[start:])
}

func s3Tier(t types.RestoreTier) s3types.Tier {
	switch t {
	case types.RestoreTierExpedited:
		return s3types.TierExpedited
	case types.RestoreTierBulk:
		return s3types.TierBulk
	default:
		return s3types.TierStandard
	}
}
