package models

import "time"

// File is an object the user stored in the archive bucket
type File struct {
	ID          string `gorm:"type:varchar(36);primaryKey"`
	UserID      string `gorm:"type:varchar(64);not null;index"`
	Name        string `gorm:"type:varchar(512);not null"`
	StorageKey  string `gorm:"type:varchar(1024);not null;uniqueIndex:ux_files_storage_key"`
	StorageTier string `gorm:"type:varchar(32);not null"`
	Status      string `gorm:"type:varchar(32);not null;default:'uploading';index"`
	Size        int64  `gorm:"not null;default:0"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName sets the table name
func (File) TableName() string {
	return "files"
}
