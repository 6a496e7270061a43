package data

import (
	"context"
	"fmt"
	"time"

	"github.com/lk2023060901/coldvault-backend/internal/archive/biz"
	"github.com/lk2023060901/coldvault-backend/internal/archive/models"
	"github.com/lk2023060901/coldvault-backend/internal/archive/types"
	"github.com/lk2023060901/coldvault-backend/internal/pkg/database"
	"gorm.io/gorm"
)

// RetrievalRepo is the gorm implementation of biz.RetrievalRepo
type RetrievalRepo struct {
	db *database.DB
}

// NewRetrievalRepo creates a retrieval repository
func NewRetrievalRepo(db *database.DB) *RetrievalRepo {
	return &RetrievalRepo{db: db}
}

// Create inserts a retrieval. The partial unique index on active
// retrievals turns a second active row into ErrRetrievalAlreadyActive.
func (r *RetrievalRepo) Create(ctx context.Context, ret *biz.Retrieval) error {
	err := r.db.Conn(ctx).Create(retrievalToModel(ret)).Error
	if database.IsDuplicateKeyError(err) {
		return biz.ErrRetrievalAlreadyActive
	}
	if err != nil {
		return fmt.Errorf("failed to create retrieval: %w", err)
	}
	return nil
}

// GetByID loads a retrieval by id
func (r *RetrievalRepo) GetByID(ctx context.Context, id string) (*biz.Retrieval, error) {
	var m models.Retrieval
	err := r.db.Conn(ctx).Where("id = ?", id).First(&m).Error
	if database.IsRecordNotFoundError(err) {
		return nil, biz.ErrRetrievalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get retrieval: %w", err)
	}
	return retrievalToDomain(&m), nil
}

// FindActiveForFile returns the most recent pending or in-progress retrieval
func (r *RetrievalRepo) FindActiveForFile(ctx context.Context, fileID string) (*biz.Retrieval, error) {
	return r.FindLatestForFile(ctx, fileID, types.ActiveRetrievalStatuses...)
}

// FindLatestForFile returns the most recent retrieval of fileID in statuses
func (r *RetrievalRepo) FindLatestForFile(ctx context.Context, fileID string, statuses ...types.RetrievalStatus) (*biz.Retrieval, error) {
	if len(statuses) == 0 {
		return nil, biz.ErrRetrievalNotFound
	}

	var m models.Retrieval
	err := r.db.Conn(ctx).
		Where("file_id = ? AND status IN ?", fileID, statusStrings(statuses)).
		Scopes(database.Newest).
		First(&m).Error
	if database.IsRecordNotFoundError(err) {
		return nil, biz.ErrRetrievalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find retrieval for file: %w", err)
	}
	return retrievalToDomain(&m), nil
}

// Transition updates status and the non-nil fields of upd, guarded by the
// current status being one of from.
func (r *RetrievalRepo) Transition(ctx context.Context, id string, from []types.RetrievalStatus, to types.RetrievalStatus, upd biz.RetrievalUpdate) (bool, error) {
	if len(from) == 0 {
		return false, nil
	}

	updates := map[string]interface{}{
		"status":     string(to),
		"updated_at": time.Now().UTC(),
	}
	if upd.InitiatedAt != nil {
		updates["initiated_at"] = *upd.InitiatedAt
	}
	if upd.ReadyAt != nil {
		updates["ready_at"] = *upd.ReadyAt
	}
	if upd.ExpiresAt != nil {
		updates["expires_at"] = *upd.ExpiresAt
	}
	if upd.FailedAt != nil {
		updates["failed_at"] = *upd.FailedAt
	}
	if upd.ErrorMessage != "" {
		updates["error_message"] = upd.ErrorMessage
	}

	result := r.db.Conn(ctx).Model(&models.Retrieval{}).
		Where("id = ? AND status IN ?", id, statusStrings(from)).
		Updates(updates)
	if result.Error != nil {
		return false, fmt.Errorf("failed to transition retrieval: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

// ListByFile pages through a file's retrievals, newest first
func (r *RetrievalRepo) ListByFile(ctx context.Context, fileID string, page, pageSize int) ([]*biz.Retrieval, int64, error) {
	query := r.db.Conn(ctx).Model(&models.Retrieval{}).Where("file_id = ?", fileID).Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count retrievals: %w", err)
	}

	var rows []models.Retrieval
	if err := query.Scopes(database.Newest, database.Paginate(page, pageSize)).Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list retrievals: %w", err)
	}
	return retrievalsToDomain(rows), total, nil
}

// ListByStatus returns up to limit retrievals in status not touched since
// updatedBefore, oldest first.
func (r *RetrievalRepo) ListByStatus(ctx context.Context, status types.RetrievalStatus, updatedBefore time.Time, limit int) ([]*biz.Retrieval, error) {
	var rows []models.Retrieval
	err := r.db.Conn(ctx).
		Where("status = ? AND updated_at < ?", string(status), updatedBefore.UTC()).
		Order("updated_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list retrievals by status: %w", err)
	}
	return retrievalsToDomain(rows), nil
}

// ListExpiredReady returns ready retrievals whose copy expired by now
func (r *RetrievalRepo) ListExpiredReady(ctx context.Context, now time.Time, limit int) ([]*biz.Retrieval, error) {
	var rows []models.Retrieval
	err := r.db.Conn(ctx).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at <= ?", string(types.RetrievalStatusReady), now.UTC()).
		Order("expires_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list expired retrievals: %w", err)
	}
	return retrievalsToDomain(rows), nil
}

func statusStrings(statuses []types.RetrievalStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func retrievalToModel(r *biz.Retrieval) *models.Retrieval {
	return &models.Retrieval{
		ID:           r.ID,
		FileID:       r.FileID,
		UserID:       r.UserID,
		Status:       string(r.Status),
		RestoreTier:  string(r.RestoreTier),
		InitiatedAt:  r.InitiatedAt,
		ReadyAt:      r.ReadyAt,
		ExpiresAt:    r.ExpiresAt,
		FailedAt:     r.FailedAt,
		ErrorMessage: r.ErrorMessage,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func retrievalToDomain(m *models.Retrieval) *biz.Retrieval {
	return &biz.Retrieval{
		ID:           m.ID,
		FileID:       m.FileID,
		UserID:       m.UserID,
		Status:       types.RetrievalStatus(m.Status),
		RestoreTier:  types.RestoreTier(m.RestoreTier),
		InitiatedAt:  utc(m.InitiatedAt),
		ReadyAt:      utc(m.ReadyAt),
		ExpiresAt:    utc(m.ExpiresAt),
		FailedAt:     utc(m.FailedAt),
		ErrorMessage: m.ErrorMessage,
		CreatedAt:    m.CreatedAt.UTC(),
		UpdatedAt:    m.UpdatedAt.UTC(),
	}
}

func retrievalsToDomain(rows []models.Retrieval) []*biz.Retrieval {
	out := make([]*biz.Retrieval, len(rows))
	for i := range rows {
		out[i] = retrievalToDomain(&rows[i])
	}
	return out
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
