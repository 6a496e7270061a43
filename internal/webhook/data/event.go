package data

import (
	"context"
	"fmt"
	"time"

	"github.com/lk2023060901/coldvault-backend/internal/pkg/database"
	"github.com/lk2023060901/coldvault-backend/internal/webhook/biz"
	"github.com/lk2023060901/coldvault-backend/internal/webhook/models"
	"github.com/lk2023060901/coldvault-backend/internal/webhook/types"
)

// EventRepo is the gorm implementation of biz.EventRepo
type EventRepo struct {
	db *database.DB
}

// NewEventRepo creates the webhook event log
func NewEventRepo(db *database.DB) *EventRepo {
	return &EventRepo{db: db}
}

// Find looks up a delivery by its provider message id
func (r *EventRepo) Find(ctx context.Context, source, externalID string) (*biz.Event, error) {
	var m models.WebhookEvent
	err := r.db.Conn(ctx).Where("source = ? AND external_id = ?", source, externalID).First(&m).Error
	if database.IsRecordNotFoundError(err) {
		return nil, biz.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find webhook event: %w", err)
	}
	return toDomain(&m), nil
}

// GetByID loads an event
func (r *EventRepo) GetByID(ctx context.Context, id string) (*biz.Event, error) {
	var m models.WebhookEvent
	err := r.db.Conn(ctx).Where("id = ?", id).First(&m).Error
	if database.IsRecordNotFoundError(err) {
		return nil, biz.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get webhook event: %w", err)
	}
	return toDomain(&m), nil
}

// Insert appends an event; a second insert of the same delivery returns
// ErrDuplicateEvent.
func (r *EventRepo) Insert(ctx context.Context, ev *biz.Event) error {
	err := r.db.Conn(ctx).Create(toModel(ev)).Error
	if database.IsDuplicateKeyError(err) {
		return biz.ErrDuplicateEvent
	}
	if err != nil {
		return fmt.Errorf("failed to insert webhook event: %w", err)
	}
	return nil
}

// UpdateStatus records the processing outcome of an event
func (r *EventRepo) UpdateStatus(ctx context.Context, id string, status types.WebhookEventStatus, errMsg string) error {
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":        string(status),
		"error_message": errMsg,
		"updated_at":    now,
	}
	if status != types.WebhookEventStatusReceived {
		updates["processed_at"] = now
	}

	res := r.db.Conn(ctx).Model(&models.WebhookEvent{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to update webhook event: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return biz.ErrEventNotFound
	}
	return nil
}

// ListByStatus returns the newest events, optionally filtered by status
func (r *EventRepo) ListByStatus(ctx context.Context, status types.WebhookEventStatus, limit int) ([]*biz.Event, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	query := r.db.Conn(ctx).Model(&models.WebhookEvent{})
	if status != "" {
		query = query.Where("status = ?", string(status))
	}

	var rows []models.WebhookEvent
	if err := query.Scopes(database.Newest).Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list webhook events: %w", err)
	}

	out := make([]*biz.Event, len(rows))
	for i := range rows {
		out[i] = toDomain(&rows[i])
	}
	return out, nil
}

func toModel(ev *biz.Event) *models.WebhookEvent {
	return &models.WebhookEvent{
		ID:           ev.ID,
		Source:       ev.Source,
		ExternalID:   ev.ExternalID,
		EventType:    ev.EventType,
		Payload:      ev.Payload,
		Status:       string(ev.Status),
		ErrorMessage: ev.ErrorMessage,
		ProcessedAt:  ev.ProcessedAt,
		CreatedAt:    ev.CreatedAt,
		UpdatedAt:    ev.UpdatedAt,
	}
}

func toDomain(m *models.WebhookEvent) *biz.Event {
	return &biz.Event{
		ID:           m.ID,
		Source:       m.Source,
		ExternalID:   m.ExternalID,
		EventType:    m.EventType,
		Payload:      m.Payload,
		Status:       types.WebhookEventStatus(m.Status),
		ErrorMessage: m.ErrorMessage,
		ProcessedAt:  m.ProcessedAt,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}
