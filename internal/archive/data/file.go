package data

import (
	"context"
	"fmt"

	"github.com/lk2023060901/coldvault-backend/internal/archive/biz"
	"github.com/lk2023060901/coldvault-backend/internal/archive/models"
	"github.com/lk2023060901/coldvault-backend/internal/archive/types"
	"github.com/lk2023060901/coldvault-backend/internal/pkg/database"
)

// FileRepo is the gorm implementation of biz.FileRepo
type FileRepo struct {
	db *database.DB
}

// NewFileRepo creates a file repository
func NewFileRepo(db *database.DB) *FileRepo {
	return &FileRepo{db: db}
}

// Create inserts a file row
func (r *FileRepo) Create(ctx context.Context, file *biz.File) error {
	if err := r.db.Conn(ctx).Create(fileToModel(file)).Error; err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	return nil
}

// GetByID loads a file by id
func (r *FileRepo) GetByID(ctx context.Context, id string) (*biz.File, error) {
	var m models.File
	err := r.db.Conn(ctx).Where("id = ?", id).First(&m).Error
	if database.IsRecordNotFoundError(err) {
		return nil, biz.ErrFileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get file: %w", err)
	}
	return fileToDomain(&m), nil
}

// GetByStorageKey loads the file stored under key
func (r *FileRepo) GetByStorageKey(ctx context.Context, key string) (*biz.File, error) {
	var m models.File
	err := r.db.Conn(ctx).Where("storage_key = ?", key).First(&m).Error
	if database.IsRecordNotFoundError(err) {
		return nil, biz.ErrFileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get file by storage key: %w", err)
	}
	return fileToDomain(&m), nil
}

func fileToModel(f *biz.File) *models.File {
	return &models.File{
		ID:          f.ID,
		UserID:      f.UserID,
		Name:        f.Name,
		StorageKey:  f.StorageKey,
		StorageTier: string(f.StorageTier),
		Status:      string(f.Status),
		Size:        f.Size,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

func fileToDomain(m *models.File) *biz.File {
	return &biz.File{
		ID:          m.ID,
		UserID:      m.UserID,
		Name:        m.Name,
		StorageKey:  m.StorageKey,
		StorageTier: types.StorageTier(m.StorageTier),
		Status:      types.FileStatus(m.Status),
		Size:        m.Size,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}
