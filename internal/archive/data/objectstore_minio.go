package data

import (
	"context"
	"fmt"
	"time"

	"github.com/lk2023060901/coldvault-backend/internal/archive/biz"
	"github.com/lk2023060901/coldvault-backend/internal/archive/types"
	pkgminio "github.com/lk2023060901/coldvault-backend/internal/pkg/minio"
)

// MinIOObjectStore implements biz.ObjectStore on an S3-compatible endpoint
type MinIOObjectStore struct {
	client *pkgminio.Client
	bucket string
}

// NewMinIOObjectStore creates the store for bucket
func NewMinIOObjectStore(client *pkgminio.Client, bucket string) *MinIOObjectStore {
	return &MinIOObjectStore{client: client, bucket: bucket}
}

// RequestRestore asks the endpoint to thaw key
func (s *MinIOObjectStore) RequestRestore(ctx context.Context, key string, tier types.RestoreTier, days int) error {
	return s.client.RestoreObject(ctx, s.bucket, key, minioTier(tier), days)
}

// RestoreStatus reads the restore state of key
func (s *MinIOObjectStore) RestoreStatus(ctx context.Context, key string) (*biz.RestoreStatus, error) {
	st, err := s.client.StatRestore(ctx, s.bucket, key)
	if err != nil {
		return nil, err
	}

	out := &biz.RestoreStatus{Requested: st.Requested, Ongoing: st.Ongoing}
	if !st.ExpiresAt.IsZero() {
		exp := st.ExpiresAt.UTC()
		out.ExpiresAt = &exp
	}
	return out, nil
}

// PresignDownload returns a GET URL for key valid for expiry
func (s *MinIOObjectStore) PresignDownload(ctx context.Context, key string, expiry time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to presign download: %w", err)
	}
	return u.String(), nil
}

func minioTier(t types.RestoreTier) pkgminio.RestoreTier {
	switch t {
	case types.RestoreTierExpedited:
		return pkgminio.RestoreTierExpedited
	case types.RestoreTierBulk:
		return pkgminio.RestoreTierBulk
	default:
		return pkgminio.RestoreTierStandard
	}
}
