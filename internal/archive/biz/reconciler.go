package biz

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/lk2023060901/coldvault-backend/internal/archive/types"
	"github.com/lk2023060901/coldvault-backend/internal/pkg/logger"
	webhooktypes "github.com/lk2023060901/coldvault-backend/internal/webhook/types"
	"go.uber.org/zap"
)

// restoreHandler describes how one storage event moves a retrieval
type restoreHandler struct {
	to     types.RetrievalStatus
	update func(rec webhooktypes.S3EventRecord, now time.Time, log *logger.Logger) RetrievalUpdate
}

// RestoreReconciler applies storage restore events to retrievals
type RestoreReconciler struct {
	files      FileRepo
	retrievals RetrievalRepo
	handlers   map[types.RestoreEvent]restoreHandler
	logger     *logger.Logger
	now        func() time.Time
}

// NewRestoreReconciler creates the reconciler with its event table
func NewRestoreReconciler(files FileRepo, retrievals RetrievalRepo, log *logger.Logger) *RestoreReconciler {
	return &RestoreReconciler{
		files:      files,
		retrievals: retrievals,
		logger:     log.Named("reconciler"),
		now:        func() time.Time { return time.Now().UTC() },
		handlers: map[types.RestoreEvent]restoreHandler{
			types.RestoreEventCompleted: {to: types.RetrievalStatusReady, update: completedUpdate},
			types.RestoreEventDeleted:   {to: types.RetrievalStatusExpired, update: expiredUpdate},
		},
	}
}

func completedUpdate(rec webhooktypes.S3EventRecord, now time.Time, log *logger.Logger) RetrievalUpdate {
	upd := RetrievalUpdate{ReadyAt: &now}
	expiry, ok, err := rec.RestoreExpiry()
	switch {
	case err != nil:
		log.Warn("ignoring unparseable restore expiry", zap.Error(err))
	case ok:
		upd.ExpiresAt = &expiry
	}
	return upd
}

func expiredUpdate(webhooktypes.S3EventRecord, time.Time, *logger.Logger) RetrievalUpdate {
	return RetrievalUpdate{}
}

// Handles reports whether eventName has a handler
func (r *RestoreReconciler) Handles(eventName string) bool {
	_, ok := r.handlers[types.RestoreEvent(eventName)]
	return ok
}

// Reconcile drives the retrieval behind rec. handled is false only for
// event names without a handler. A missing file or retrieval is a handled
// no-op.
func (r *RestoreReconciler) Reconcile(ctx context.Context, rec webhooktypes.S3EventRecord) (bool, error) {
	log := r.logger.WithContext(ctx).With(
		zap.String("event_name", rec.EventName),
		zap.String("bucket", rec.S3.Bucket.Name),
	)

	h, ok := r.handlers[types.RestoreEvent(rec.EventName)]
	if !ok {
		log.Debug("no handler for storage event")
		return false, nil
	}

	key := DecodeObjectKey(rec.S3.Object.Key)
	log = log.With(zap.String("storage_key", key))

	file, err := r.files.GetByStorageKey(ctx, key)
	if errors.Is(err, ErrFileNotFound) {
		log.Warn("no file for storage key")
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("find file by storage key: %w", err)
	}

	from := types.SourcesFor(h.to)
	ret, err := r.retrievals.FindLatestForFile(ctx, file.ID, from...)
	if errors.Is(err, ErrRetrievalNotFound) {
		log.Warn("no retrieval awaiting this event", zap.String("file_id", file.ID))
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("find retrieval for file %s: %w", file.ID, err)
	}

	log = log.With(zap.String("retrieval_id", ret.ID))
	applied, err := r.retrievals.Transition(ctx, ret.ID, from, h.to, h.update(rec, r.now(), log))
	if err != nil {
		return false, fmt.Errorf("transition retrieval %s to %s: %w", ret.ID, h.to, err)
	}
	if !applied {
		log.Info("retrieval already left source state", zap.String("target", h.to.String()))
		return true, nil
	}

	log.Info("retrieval reconciled",
		zap.String("from", ret.Status.String()),
		zap.String("to", h.to.String()))
	return true, nil
}

// DecodeObjectKey turns an event object key back into the stored key.
// Keys arrive URL-encoded with spaces as '+'.
func DecodeObjectKey(key string) string {
	decoded, err := url.QueryUnescape(key)
	if err != nil {
		return strings.ReplaceAll(key, "+", " ")
	}
	return decoded
}
