package models

import (
	"context"
	"fmt"
	"time"

	"github.com/lk2023060901/coldvault-backend/internal/pkg/database"
)

// WebhookEvent is one inbound provider notification. (source, external_id)
// identifies a delivery; rows are never deleted.
type WebhookEvent struct {
	ID           string `gorm:"type:varchar(36);primaryKey"`
	Source       string `gorm:"type:varchar(32);not null;uniqueIndex:ux_webhook_events_source_external,priority:1"`
	ExternalID   string `gorm:"type:varchar(128);not null;uniqueIndex:ux_webhook_events_source_external,priority:2"`
	EventType    string `gorm:"type:varchar(64);not null"`
	Payload      string `gorm:"type:text;not null"`
	Status       string `gorm:"type:varchar(16);not null;default:'received';index"`
	ErrorMessage string `gorm:"type:text"`
	ProcessedAt  *time.Time

	CreatedAt time.Time `gorm:"not null;index"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (WebhookEvent) TableName() string {
	return "webhook_events"
}

// AutoMigrate creates the webhook tables
func AutoMigrate(_ context.Context, db *database.DB, force bool) error {
	if !force && !db.Config().AutoMigrate {
		return nil
	}
	if err := db.AutoMigrate(true, &WebhookEvent{}); err != nil {
		return fmt.Errorf("failed to migrate webhook tables: %w", err)
	}
	return nil
}
