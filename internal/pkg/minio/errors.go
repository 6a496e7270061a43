package minio

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/minio/minio-go/v7"
)

var (
	ErrObjectNotFound    = errors.New("minio: object not found")
	ErrInvalidArgument   = errors.New("minio: invalid argument")
	ErrInvalidBucketName = errors.New("minio: invalid bucket name")
	ErrInvalidObjectName = errors.New("minio: invalid object name")
	ErrClientClosed      = errors.New("minio: client is closed")
)

// Error represents a MinIO error with additional context
type Error struct {
	Op      string
	Err     error
	Bucket  string
	Object  string
	Message string
}

func (e *Error) Error() string {
	switch {
	case e.Bucket != "" && e.Object != "":
		return fmt.Sprintf("minio: %s failed for bucket=%s, object=%s: %v", e.Op, e.Bucket, e.Object, e.Err)
	case e.Bucket != "":
		return fmt.Sprintf("minio: %s failed for bucket=%s: %v", e.Op, e.Bucket, e.Err)
	case e.Message != "":
		return fmt.Sprintf("minio: %s failed: %s: %v", e.Op, e.Message, e.Err)
	default:
		return fmt.Sprintf("minio: %s failed: %v", e.Op, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

func responseCode(err error) string {
	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		return resp.Code
	}
	return ""
}

// IsNotFound checks if the error is a "not found" error
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrObjectNotFound) {
		return true
	}
	switch responseCode(err) {
	case "NoSuchBucket", "NoSuchKey":
		return true
	}
	return false
}

// IsBucketAlreadyExists checks if the error reports an existing bucket
func IsBucketAlreadyExists(err error) bool {
	switch responseCode(err) {
	case "BucketAlreadyExists", "BucketAlreadyOwnedByYou":
		return true
	}
	return false
}

// IsRestoreInProgress reports that a restore for the object was already
// accepted by the provider.
func IsRestoreInProgress(err error) bool {
	return responseCode(err) == "RestoreAlreadyInProgress"
}

// IsRestoreAccepted reports a 202 Accepted for a newly started restore.
// minio-go only treats 200, 204 and 206 as success and surfaces it as an error.
func IsRestoreAccepted(err error) bool {
	var resp minio.ErrorResponse
	return errors.As(err, &resp) && resp.StatusCode == http.StatusAccepted
}

// WrapError wraps an error with operation context
func WrapError(op string, err error, bucket, object string) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err, Bucket: bucket, Object: object}
}

// WrapErrorWithMessage wraps an error with operation context and a message
func WrapErrorWithMessage(op string, err error, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err, Message: message}
}
