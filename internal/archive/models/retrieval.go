package models

import "time"

// Retrieval tracks one request to thaw an archived file
type Retrieval struct {
	ID          string `gorm:"type:varchar(36);primaryKey"`
	FileID      string `gorm:"type:varchar(36);not null;index:idx_retrievals_file_created,priority:1"`
	UserID      string `gorm:"type:varchar(64);not null;index"`
	Status      string `gorm:"type:varchar(32);not null;default:'pending';index"`
	RestoreTier string `gorm:"type:varchar(32);not null"`

	InitiatedAt  *time.Time
	ReadyAt      *time.Time
	ExpiresAt    *time.Time
	FailedAt     *time.Time
	ErrorMessage string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null;index:idx_retrievals_file_created,priority:2"`
	UpdatedAt time.Time `gorm:"not null"`

	File *File `gorm:"foreignKey:FileID;constraint:OnDelete:CASCADE"`
}

// TableName sets the table name
func (Retrieval) TableName() string {
	return "retrievals"
}
