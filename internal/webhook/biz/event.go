package biz

import (
	"context"
	"time"

	"github.com/lk2023060901/coldvault-backend/internal/webhook/types"
)

// Event is one entry of the webhook event log
type Event struct {
	ID           string
	Source       string
	ExternalID   string
	EventType    string
	Payload      string
	Status       types.WebhookEventStatus
	ErrorMessage string
	ProcessedAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// EventRepo is the append-only event log. (Source, ExternalID) is unique.
type EventRepo interface {
	Find(ctx context.Context, source, externalID string) (*Event, error)
	GetByID(ctx context.Context, id string) (*Event, error)
	Insert(ctx context.Context, ev *Event) error
	UpdateStatus(ctx context.Context, id string, status types.WebhookEventStatus, errMsg string) error
	ListByStatus(ctx context.Context, status types.WebhookEventStatus, limit int) ([]*Event, error)
}

// SeenCache short-circuits redeliveries before they reach the event log
type SeenCache interface {
	Seen(ctx context.Context, source, externalID string) (bool, error)
	MarkSeen(ctx context.Context, source, externalID string) error
}

// Reconciler applies one decoded storage record
type Reconciler interface {
	Reconcile(ctx context.Context, rec types.S3EventRecord) (handled bool, err error)
}
