package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// UnknownEventType labels a payload whose first record has no event name
const UnknownEventType = "unknown"

// S3Event is the JSON document embedded in a Notification's Message
type S3Event struct {
	Records []S3EventRecord `json:"Records"`
}

// S3EventRecord is one object-level event
type S3EventRecord struct {
	EventVersion     string            `json:"eventVersion,omitempty"`
	EventSource      string            `json:"eventSource,omitempty"`
	AWSRegion        string            `json:"awsRegion,omitempty"`
	EventTime        string            `json:"eventTime,omitempty"`
	EventName        string            `json:"eventName"`
	S3               S3Entity          `json:"s3"`
	GlacierEventData *GlacierEventData `json:"glacierEventData,omitempty"`
}

type S3Entity struct {
	Bucket S3Bucket `json:"bucket"`
	Object S3Object `json:"object"`
}

type S3Bucket struct {
	Name string `json:"name"`
	ARN  string `json:"arn,omitempty"`
}

type S3Object struct {
	// Key is URL-encoded, spaces arrive as '+'
	Key       string `json:"key"`
	Size      *int64 `json:"size,omitempty"`
	ETag      string `json:"eTag,omitempty"`
	VersionID string `json:"versionId,omitempty"`
	Sequencer string `json:"sequencer,omitempty"`
}

type GlacierEventData struct {
	RestoreEventData RestoreEventData `json:"restoreEventData"`
}

type RestoreEventData struct {
	LifecycleRestorationExpiryTime string `json:"lifecycleRestorationExpiryTime,omitempty"`
	LifecycleRestoreStorageClass   string `json:"lifecycleRestoreStorageClass,omitempty"`
}

// ParseS3Event decodes the embedded Message payload
func ParseS3Event(raw string) (*S3Event, error) {
	var ev S3Event
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		return nil, fmt.Errorf("decode storage event: %w", err)
	}
	return &ev, nil
}

// EventType is the name of the first record, or UnknownEventType
func (e *S3Event) EventType() string {
	if len(e.Records) == 0 || e.Records[0].EventName == "" {
		return UnknownEventType
	}
	return e.Records[0].EventName
}

// RestoreExpiry returns the time the restored copy is removed. ok is false
// when the record carries no expiry.
func (r S3EventRecord) RestoreExpiry() (t time.Time, ok bool, err error) {
	if r.GlacierEventData == nil {
		return time.Time{}, false, nil
	}
	raw := r.GlacierEventData.RestoreEventData.LifecycleRestorationExpiryTime
	if raw == "" {
		return time.Time{}, false, nil
	}
	t, err = time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse restore expiry %q: %w", raw, err)
	}
	return t.UTC(), true, nil
}
