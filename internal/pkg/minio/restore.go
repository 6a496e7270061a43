package minio

import (
	"context"
	"time"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

// RestoreTier selects how fast the provider thaws an archived object
type RestoreTier string

const (
	RestoreTierExpedited RestoreTier = "Expedited"
	RestoreTierStandard  RestoreTier = "Standard"
	RestoreTierBulk      RestoreTier = "Bulk"
)

// RestoreState describes the restore status reported for an object
type RestoreState struct {
	StorageClass string
	// Requested is false when the object has never been restored
	Requested bool
	Ongoing   bool
	ExpiresAt time.Time
}

// NewRestoreRequest builds the restore request body for tier and days
func NewRestoreRequest(tier RestoreTier, days int) minio.RestoreRequest {
	req := minio.RestoreRequest{}
	req.SetDays(days)
	req.SetGlacierJobParameters(minio.GlacierJobParameters{Tier: minio.TierType(tier)})
	return req
}

// RestoreObject asks the provider to thaw an archived object for days.
// A restore already in flight is not an error.
func (c *Client) RestoreObject(ctx context.Context, bucket, object string, tier RestoreTier, days int) error {
	if err := c.checkClosed(); err != nil {
		return err
	}
	if bucket == "" {
		return WrapError("RestoreObject", ErrInvalidBucketName, bucket, object)
	}
	if object == "" {
		return WrapError("RestoreObject", ErrInvalidObjectName, bucket, object)
	}
	if days <= 0 {
		return WrapErrorWithMessage("RestoreObject", ErrInvalidArgument, "days must be greater than 0")
	}

	err := c.client.RestoreObject(ctx, bucket, object, "", NewRestoreRequest(tier, days))
	inProgress := IsRestoreInProgress(err)
	if err != nil && !inProgress && !IsRestoreAccepted(err) {
		return WrapError("RestoreObject", err, bucket, object)
	}

	c.logger.Info("restore requested",
		zap.String("bucket", bucket),
		zap.String("object", object),
		zap.String("tier", string(tier)),
		zap.Int("days", days),
		zap.Bool("already_in_progress", inProgress),
	)
	return nil
}

// StatRestore reads the restore status of an object
func (c *Client) StatRestore(ctx context.Context, bucket, object string) (*RestoreState, error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}

	info, err := c.client.StatObject(ctx, bucket, object, minio.StatObjectOptions{})
	if err != nil {
		return nil, WrapError("StatObject", err, bucket, object)
	}

	state := &RestoreState{StorageClass: info.StorageClass}
	if state.StorageClass == "" {
		// HEAD responses only carry the class as a header
		state.StorageClass = info.Metadata.Get("X-Amz-Storage-Class")
	}
	if info.Restore != nil {
		state.Requested = true
		state.Ongoing = info.Restore.OngoingRestore
		state.ExpiresAt = info.Restore.ExpiryTime
	}
	return state, nil
}
