package biz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lk2023060901/coldvault-backend/internal/archive/types"
	"github.com/lk2023060901/coldvault-backend/internal/pkg/logger"
	"go.uber.org/zap"
)

// RetrievalConfig holds restore defaults
type RetrievalConfig struct {
	DefaultTier       types.RestoreTier
	RestoreDays       int
	DownloadURLExpiry time.Duration
}

// DefaultRetrievalConfig returns the defaults used when config leaves them unset
func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		DefaultTier:       types.RestoreTierStandard,
		RestoreDays:       7,
		DownloadURLExpiry: 15 * time.Minute,
	}
}

// RetrievalUseCase handles the user-facing side of restores
type RetrievalUseCase struct {
	files      FileRepo
	retrievals RetrievalRepo
	store      ObjectStore
	config     RetrievalConfig
	logger     *logger.Logger
	now        func() time.Time
}

// NewRetrievalUseCase creates the use case
func NewRetrievalUseCase(files FileRepo, retrievals RetrievalRepo, store ObjectStore, cfg RetrievalConfig, log *logger.Logger) *RetrievalUseCase {
	def := DefaultRetrievalConfig()
	if !cfg.DefaultTier.Valid() {
		cfg.DefaultTier = def.DefaultTier
	}
	if cfg.RestoreDays <= 0 {
		cfg.RestoreDays = def.RestoreDays
	}
	if cfg.DownloadURLExpiry <= 0 {
		cfg.DownloadURLExpiry = def.DownloadURLExpiry
	}
	return &RetrievalUseCase{
		files:      files,
		retrievals: retrievals,
		store:      store,
		config:     cfg,
		logger:     log.Named("retrieval"),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// RequestRetrieval records a pending retrieval for an archived file owned by
// userID. The caller enqueues it for IssueRestore.
func (uc *RetrievalUseCase) RequestRetrieval(ctx context.Context, userID, fileID, tier string) (*Retrieval, error) {
	file, err := uc.ownedFile(ctx, userID, fileID)
	if err != nil {
		return nil, err
	}
	if file.Status != types.FileStatusAvailable || !file.StorageTier.IsArchival() {
		return nil, ErrFileNotRestorable
	}

	restoreTier, err := types.ParseRestoreTier(tier, uc.config.DefaultTier)
	if err != nil || !restoreTier.AllowedFor(file.StorageTier) {
		return nil, ErrInvalidRestoreTier
	}

	now := uc.now()
	r := &Retrieval{
		ID:          uuid.New().String(),
		FileID:      file.ID,
		UserID:      userID,
		Status:      types.RetrievalStatusPending,
		RestoreTier: restoreTier,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := uc.retrievals.Create(ctx, r); err != nil {
		return nil, err
	}

	uc.logger.WithContext(ctx).Info("retrieval requested",
		zap.String("retrieval_id", r.ID),
		zap.String("file_id", file.ID),
		zap.String("tier", restoreTier.String()))
	return r, nil
}

// IssueRestore sends the restore command for a pending retrieval and moves
// it to in_progress. Retrievals that already left pending are skipped.
func (uc *RetrievalUseCase) IssueRestore(ctx context.Context, retrievalID string) error {
	log := uc.logger.WithContext(ctx).With(zap.String("retrieval_id", retrievalID))

	r, err := uc.retrievals.GetByID(ctx, retrievalID)
	if err != nil {
		return err
	}
	if r.Status != types.RetrievalStatusPending {
		log.Debug("skipping restore, retrieval not pending", zap.String("status", r.Status.String()))
		return nil
	}

	file, err := uc.files.GetByID(ctx, r.FileID)
	if err != nil {
		return err
	}

	if err := uc.store.RequestRestore(ctx, file.StorageKey, r.RestoreTier, uc.config.RestoreDays); err != nil {
		return fmt.Errorf("%w: %v", ErrRestoreRequestFailed, err)
	}

	now := uc.now()
	applied, err := uc.retrievals.Transition(ctx, r.ID,
		[]types.RetrievalStatus{types.RetrievalStatusPending},
		types.RetrievalStatusInProgress,
		RetrievalUpdate{InitiatedAt: &now})
	if err != nil {
		return err
	}
	if !applied {
		log.Info("retrieval moved on before restore was recorded")
		return nil
	}

	log.Info("restore issued", zap.String("storage_key", file.StorageKey))
	return nil
}

// FailRetrieval marks an active retrieval failed with reason
func (uc *RetrievalUseCase) FailRetrieval(ctx context.Context, retrievalID, reason string) error {
	now := uc.now()
	applied, err := uc.retrievals.Transition(ctx, retrievalID,
		types.SourcesFor(types.RetrievalStatusFailed),
		types.RetrievalStatusFailed,
		RetrievalUpdate{FailedAt: &now, ErrorMessage: reason})
	if err != nil {
		return err
	}

	log := uc.logger.WithContext(ctx).With(zap.String("retrieval_id", retrievalID))
	if applied {
		log.Warn("retrieval failed", zap.String("reason", reason))
	} else {
		log.Info("retrieval no longer active, failure not recorded", zap.String("reason", reason))
	}
	return nil
}

// CancelRetrieval cancels a retrieval whose restore has not been issued yet
func (uc *RetrievalUseCase) CancelRetrieval(ctx context.Context, userID, retrievalID string) (*Retrieval, error) {
	r, err := uc.GetRetrieval(ctx, userID, retrievalID)
	if err != nil {
		return nil, err
	}

	applied, err := uc.retrievals.Transition(ctx, r.ID,
		[]types.RetrievalStatus{types.RetrievalStatusPending},
		types.RetrievalStatusCancelled,
		RetrievalUpdate{})
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, ErrRetrievalNotCancelable
	}

	uc.logger.WithContext(ctx).Info("retrieval cancelled", zap.String("retrieval_id", r.ID))
	return uc.retrievals.GetByID(ctx, r.ID)
}

// GetRetrieval returns a retrieval owned by userID
func (uc *RetrievalUseCase) GetRetrieval(ctx context.Context, userID, retrievalID string) (*Retrieval, error) {
	r, err := uc.retrievals.GetByID(ctx, retrievalID)
	if err != nil {
		return nil, err
	}
	if r.UserID != userID {
		return nil, ErrRetrievalNotFound
	}
	return r, nil
}

// ListForFile pages through the retrievals of a file, newest first
func (uc *RetrievalUseCase) ListForFile(ctx context.Context, userID, fileID string, page, pageSize int) ([]*Retrieval, int64, error) {
	if _, err := uc.ownedFile(ctx, userID, fileID); err != nil {
		return nil, 0, err
	}
	return uc.retrievals.ListByFile(ctx, fileID, page, pageSize)
}

// DownloadURL presigns a GET for a ready retrieval. The link never outlives
// the restored copy.
func (uc *RetrievalUseCase) DownloadURL(ctx context.Context, userID, retrievalID string) (string, time.Time, error) {
	r, err := uc.GetRetrieval(ctx, userID, retrievalID)
	if err != nil {
		return "", time.Time{}, err
	}

	now := uc.now()
	if !r.Downloadable(now) {
		return "", time.Time{}, ErrRetrievalNotReady
	}

	file, err := uc.files.GetByID(ctx, r.FileID)
	if err != nil {
		return "", time.Time{}, err
	}

	expiry := uc.config.DownloadURLExpiry
	if r.ExpiresAt != nil && r.ExpiresAt.Sub(now) < expiry {
		expiry = r.ExpiresAt.Sub(now)
	}

	u, err := uc.store.PresignDownload(ctx, file.StorageKey, expiry)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("presign download: %w", err)
	}
	return u, now.Add(expiry), nil
}

// SyncRestoreStatus polls the provider for a retrieval whose notification
// may have been lost. Pending retrievals are left to the queue.
func (uc *RetrievalUseCase) SyncRestoreStatus(ctx context.Context, r *Retrieval) error {
	log := uc.logger.WithContext(ctx).With(
		zap.String("retrieval_id", r.ID),
		zap.String("status", r.Status.String()))
	now := uc.now()

	switch r.Status {
	case types.RetrievalStatusReady:
		if r.Downloadable(now) {
			return nil
		}
		applied, err := uc.retrievals.Transition(ctx, r.ID,
			[]types.RetrievalStatus{types.RetrievalStatusReady},
			types.RetrievalStatusExpired,
			RetrievalUpdate{})
		if err != nil {
			return err
		}
		if applied {
			log.Info("restored copy expired")
		}
		return nil

	case types.RetrievalStatusInProgress:
		file, err := uc.files.GetByID(ctx, r.FileID)
		if err != nil {
			return err
		}
		st, err := uc.store.RestoreStatus(ctx, file.StorageKey)
		if err != nil {
			return fmt.Errorf("restore status of %s: %w", file.StorageKey, err)
		}

		switch {
		case st.Restored():
			applied, err := uc.retrievals.Transition(ctx, r.ID,
				types.SourcesFor(types.RetrievalStatusReady),
				types.RetrievalStatusReady,
				RetrievalUpdate{ReadyAt: &now, ExpiresAt: st.ExpiresAt})
			if err != nil {
				return err
			}
			if applied {
				log.Info("restore completed without notification")
			}
		case !st.Requested:
			return uc.FailRetrieval(ctx, r.ID, "storage provider reports no restore for this object")
		default:
			log.Debug("restore still running")
		}
		return nil
	}
	return nil
}

func (uc *RetrievalUseCase) ownedFile(ctx context.Context, userID, fileID string) (*File, error) {
	file, err := uc.files.GetByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if file.UserID != userID {
		return nil, ErrFileNotFound
	}
	return file, nil
}

// IsClientError reports whether err is a domain error caused by the request
func IsClientError(err error) bool {
	for _, target := range []error{
		ErrFileNotFound, ErrFileNotRestorable, ErrRetrievalNotFound, ErrRetrievalAlreadyActive,
		ErrRetrievalNotReady, ErrRetrievalNotCancelable, ErrInvalidRestoreTier,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
