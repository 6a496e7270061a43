package data

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lk2023060901/coldvault-backend/internal/archive/biz"
	"github.com/lk2023060901/coldvault-backend/internal/archive/models"
	"github.com/lk2023060901/coldvault-backend/internal/archive/types"
	"github.com/lk2023060901/coldvault-backend/internal/pkg/database"
	"github.com/lk2023060901/coldvault-backend/internal/pkg/database/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func setupRepos(t *testing.T) (*FileRepo, *RetrievalRepo) {
	t.Helper()
	db := dbtest.New(t, func(db *database.DB) error {
		return models.AutoMigrate(context.Background(), db, true)
	})
	return NewFileRepo(db), NewRetrievalRepo(db)
}

func seedFile(t *testing.T, repo *FileRepo, id, key string) *biz.File {
	t.Helper()
	f := &biz.File{
		ID:          id,
		UserID:      "user-1",
		Name:        key,
		StorageKey:  key,
		StorageTier: types.StorageTierGlacierFlexible,
		Status:      types.FileStatusAvailable,
		Size:        42,
		CreatedAt:   t0,
		UpdatedAt:   t0,
	}
	require.NoError(t, repo.Create(context.Background(), f))
	return f
}

func newRetrieval(id, fileID string, status types.RetrievalStatus, created time.Time) *biz.Retrieval {
	return &biz.Retrieval{
		ID:          id,
		FileID:      fileID,
		UserID:      "user-1",
		Status:      status,
		RestoreTier: types.RestoreTierBulk,
		CreatedAt:   created,
		UpdatedAt:   created,
	}
}

func TestFileRepo(t *testing.T) {
	files, _ := setupRepos(t)
	ctx := context.Background()
	seedFile(t, files, "f1", "users/u1/my file.txt")

	got, err := files.GetByStorageKey(ctx, "users/u1/my file.txt")
	require.NoError(t, err)
	assert.Equal(t, "f1", got.ID)
	assert.Equal(t, types.StorageTierGlacierFlexible, got.StorageTier)
	assert.Equal(t, types.FileStatusAvailable, got.Status)

	_, err = files.GetByStorageKey(ctx, "users/u1/my+file.txt")
	assert.ErrorIs(t, err, biz.ErrFileNotFound)
	_, err = files.GetByID(ctx, "nope")
	assert.ErrorIs(t, err, biz.ErrFileNotFound)
}

func TestRetrievalRepoSingleActivePerFile(t *testing.T) {
	files, rets := setupRepos(t)
	ctx := context.Background()
	seedFile(t, files, "f1", "a.bin")

	require.NoError(t, rets.Create(ctx, newRetrieval("r1", "f1", types.RetrievalStatusPending, t0)))
	err := rets.Create(ctx, newRetrieval("r2", "f1", types.RetrievalStatusPending, t0.Add(time.Minute)))
	assert.ErrorIs(t, err, biz.ErrRetrievalAlreadyActive)

	// terminal rows do not count against the index
	require.NoError(t, rets.Create(ctx, newRetrieval("r3", "f1", types.RetrievalStatusExpired, t0.Add(-time.Hour))))

	active, err := rets.FindActiveForFile(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, "r1", active.ID)
}

func TestRetrievalRepoTransition(t *testing.T) {
	files, rets := setupRepos(t)
	ctx := context.Background()
	seedFile(t, files, "f1", "a.bin")
	require.NoError(t, rets.Create(ctx, newRetrieval("r1", "f1", types.RetrievalStatusInProgress, t0)))

	readyAt := t0.Add(time.Hour)
	expiresAt := t0.Add(7 * 24 * time.Hour)
	from := types.SourcesFor(types.RetrievalStatusReady)

	applied, err := rets.Transition(ctx, "r1", from, types.RetrievalStatusReady,
		biz.RetrievalUpdate{ReadyAt: &readyAt, ExpiresAt: &expiresAt})
	require.NoError(t, err)
	assert.True(t, applied)

	got, err := rets.GetByID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, types.RetrievalStatusReady, got.Status)
	require.NotNil(t, got.ReadyAt)
	assert.True(t, readyAt.Equal(*got.ReadyAt))
	require.NotNil(t, got.ExpiresAt)
	assert.True(t, expiresAt.Equal(*got.ExpiresAt))
	assert.Nil(t, got.FailedAt)

	// a replayed completion finds the row already ready
	applied, err = rets.Transition(ctx, "r1", from, types.RetrievalStatusReady, biz.RetrievalUpdate{})
	require.NoError(t, err)
	assert.False(t, applied)

	applied, err = rets.Transition(ctx, "missing", from, types.RetrievalStatusReady, biz.RetrievalUpdate{})
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestRetrievalRepoFindLatestForFile(t *testing.T) {
	files, rets := setupRepos(t)
	ctx := context.Background()
	seedFile(t, files, "f1", "a.bin")

	require.NoError(t, rets.Create(ctx, newRetrieval("old", "f1", types.RetrievalStatusReady, t0.Add(-48*time.Hour))))
	require.NoError(t, rets.Create(ctx, newRetrieval("new", "f1", types.RetrievalStatusReady, t0)))
	require.NoError(t, rets.Create(ctx, newRetrieval("gone", "f1", types.RetrievalStatusFailed, t0.Add(time.Hour))))

	got, err := rets.FindLatestForFile(ctx, "f1", types.RetrievalStatusReady, types.RetrievalStatusInProgress)
	require.NoError(t, err)
	assert.Equal(t, "new", got.ID)

	_, err = rets.FindLatestForFile(ctx, "f1", types.RetrievalStatusPending)
	assert.ErrorIs(t, err, biz.ErrRetrievalNotFound)
	_, err = rets.FindLatestForFile(ctx, "f1")
	assert.ErrorIs(t, err, biz.ErrRetrievalNotFound)
}

func TestRetrievalRepoListing(t *testing.T) {
	files, rets := setupRepos(t)
	ctx := context.Background()
	seedFile(t, files, "f1", "a.bin")
	seedFile(t, files, "f2", "b.bin")
	seedFile(t, files, "f3", "c.bin")

	past := t0.Add(-time.Hour)
	future := t0.Add(time.Hour)
	expired := newRetrieval("expired", "f1", types.RetrievalStatusReady, t0.Add(-72*time.Hour))
	expired.ExpiresAt = &past
	fresh := newRetrieval("fresh", "f2", types.RetrievalStatusReady, t0.Add(-2*time.Hour))
	fresh.ExpiresAt = &future
	stale := newRetrieval("stale", "f3", types.RetrievalStatusInProgress, t0.Add(-24*time.Hour))

	for _, r := range []*biz.Retrieval{expired, fresh, stale} {
		require.NoError(t, rets.Create(ctx, r))
	}

	list, err := rets.ListExpiredReady(ctx, t0, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "expired", list[0].ID)

	list, err = rets.ListByStatus(ctx, types.RetrievalStatusInProgress, t0.Add(-time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "stale", list[0].ID)

	list, err = rets.ListByStatus(ctx, types.RetrievalStatusInProgress, t0.Add(-48*time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, list)

	page, total, err := rets.ListByFile(ctx, "f1", 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, page, 1)
	assert.Equal(t, types.RestoreTierBulk, page[0].RestoreTier)
}

func TestRetrievalRepoTouchPendingInTransaction(t *testing.T) {
	db := dbtest.New(t, func(db *database.DB) error {
		return models.AutoMigrate(context.Background(), db, true)
	})
	files, rets := NewFileRepo(db), NewRetrievalRepo(db)
	ctx := context.Background()
	seedFile(t, files, "f1", "a.bin")
	require.NoError(t, rets.Create(ctx, newRetrieval("p1", "f1", types.RetrievalStatusPending, t0)))

	pending := []types.RetrievalStatus{types.RetrievalStatusPending}
	cutoff := time.Now().UTC().Add(-time.Minute)
	touch := func(ctx context.Context) (bool, error) {
		return rets.Transition(ctx, "p1", pending, types.RetrievalStatusPending, biz.RetrievalUpdate{})
	}

	errEnqueue := errors.New("enqueue failed")
	err := db.Transaction(ctx, func(ctx context.Context) error {
		ok, err := touch(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		return errEnqueue
	})
	require.ErrorIs(t, err, errEnqueue)

	stale, err := rets.ListByStatus(ctx, types.RetrievalStatusPending, cutoff, 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)

	require.NoError(t, db.Transaction(ctx, func(ctx context.Context) error {
		_, err := touch(ctx)
		return err
	}))

	stale, err = rets.ListByStatus(ctx, types.RetrievalStatusPending, cutoff, 10)
	require.NoError(t, err)
	assert.Empty(t, stale)

	got, err := rets.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, types.RetrievalStatusPending, got.Status)
}
