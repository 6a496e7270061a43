package minio

import (
	"context"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// PresignedGetObject generates a presigned URL for HTTP GET operations
func (c *Client) PresignedGetObject(ctx context.Context, bucket, object string, expiry time.Duration, reqParams url.Values) (*url.URL, error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}
	if bucket == "" {
		return nil, WrapError("PresignedGetObject", ErrInvalidBucketName, bucket, object)
	}
	if object == "" {
		return nil, WrapError("PresignedGetObject", ErrInvalidObjectName, bucket, object)
	}
	if expiry <= 0 {
		return nil, WrapErrorWithMessage("PresignedGetObject", ErrInvalidArgument, "expiry must be greater than 0")
	}

	u, err := c.client.PresignedGetObject(ctx, bucket, object, expiry, reqParams)
	if err != nil {
		return nil, WrapError("PresignedGetObject", err, bucket, object)
	}

	c.logger.Debug("presigned GET URL generated",
		zap.String("bucket", bucket),
		zap.String("object", object),
		zap.Duration("expiry", expiry),
	)
	return u, nil
}
