package biz

import (
	"context"
	"time"

	"github.com/lk2023060901/coldvault-backend/internal/archive/types"
)

// File is an object stored in the archive bucket
type File struct {
	ID          string
	UserID      string
	Name        string
	StorageKey  string // exact object key, spaces kept as spaces
	StorageTier types.StorageTier
	Status      types.FileStatus
	Size        int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Retrieval is one attempt to restore an archived file
type Retrieval struct {
	ID           string
	FileID       string
	UserID       string
	Status       types.RetrievalStatus
	RestoreTier  types.RestoreTier
	InitiatedAt  *time.Time
	ReadyAt      *time.Time
	ExpiresAt    *time.Time
	FailedAt     *time.Time
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Downloadable reports whether the restored copy can be fetched at now
func (r *Retrieval) Downloadable(now time.Time) bool {
	if r.Status != types.RetrievalStatusReady {
		return false
	}
	return r.ExpiresAt == nil || now.Before(*r.ExpiresAt)
}

// RetrievalUpdate carries the fields written with a status change.
// Nil pointers and an empty ErrorMessage leave the column untouched.
type RetrievalUpdate struct {
	InitiatedAt  *time.Time
	ReadyAt      *time.Time
	ExpiresAt    *time.Time
	FailedAt     *time.Time
	ErrorMessage string
}

// RestoreStatus is the provider's view of an object's restore
type RestoreStatus struct {
	Requested bool
	Ongoing   bool
	ExpiresAt *time.Time
}

// Restored reports whether a temporary copy is available
func (s *RestoreStatus) Restored() bool {
	return s != nil && s.Requested && !s.Ongoing
}

// FileRepo persists files
type FileRepo interface {
	Create(ctx context.Context, file *File) error
	GetByID(ctx context.Context, id string) (*File, error)
	// GetByStorageKey matches the key exactly; ErrFileNotFound when absent
	GetByStorageKey(ctx context.Context, key string) (*File, error)
}

// RetrievalRepo persists retrievals
type RetrievalRepo interface {
	// Create returns ErrRetrievalAlreadyActive when the file already has a
	// pending or in-progress retrieval.
	Create(ctx context.Context, r *Retrieval) error
	GetByID(ctx context.Context, id string) (*Retrieval, error)
	FindActiveForFile(ctx context.Context, fileID string) (*Retrieval, error)
	// FindLatestForFile returns the most recent retrieval in one of statuses
	FindLatestForFile(ctx context.Context, fileID string, statuses ...types.RetrievalStatus) (*Retrieval, error)
	// Transition moves id to `to` only while it is still in one of from.
	// It reports false when the row had already moved on.
	Transition(ctx context.Context, id string, from []types.RetrievalStatus, to types.RetrievalStatus, upd RetrievalUpdate) (bool, error)
	ListByFile(ctx context.Context, fileID string, page, pageSize int) ([]*Retrieval, int64, error)
	ListByStatus(ctx context.Context, status types.RetrievalStatus, updatedBefore time.Time, limit int) ([]*Retrieval, error)
	ListExpiredReady(ctx context.Context, now time.Time, limit int) ([]*Retrieval, error)
}

// ObjectStore issues restore commands against the storage provider
type ObjectStore interface {
	RequestRestore(ctx context.Context, key string, tier types.RestoreTier, days int) error
	RestoreStatus(ctx context.Context, key string) (*RestoreStatus, error)
	PresignDownload(ctx context.Context, key string, expiry time.Duration) (string, error)
}
