package biz

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lk2023060901/coldvault-backend/internal/archive/types"
	"github.com/lk2023060901/coldvault-backend/internal/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestUseCase(files *memFiles, rets *memRetrievals, store *fakeStore) *RetrievalUseCase {
	uc := NewRetrievalUseCase(files, rets, store, RetrievalConfig{}, logger.Nop())
	uc.now = func() time.Time { return fixedNow }
	return uc
}

func TestRequestRetrieval(t *testing.T) {
	rets := newMemRetrievals()
	uc := newTestUseCase(newMemFiles(archivedFile("f1", "a.bin")), rets, &fakeStore{})

	r, err := uc.RequestRetrieval(context.Background(), "user-1", "f1", "")
	require.NoError(t, err)
	assert.Equal(t, types.RetrievalStatusPending, r.Status)
	assert.Equal(t, types.RestoreTierStandard, r.RestoreTier)
	assert.NotEmpty(t, r.ID)

	_, err = uc.RequestRetrieval(context.Background(), "user-1", "f1", "bulk")
	assert.ErrorIs(t, err, ErrRetrievalAlreadyActive)
}

func TestRequestRetrievalRejections(t *testing.T) {
	standard := archivedFile("hot", "hot.bin")
	standard.StorageTier = types.StorageTierStandard
	uploading := archivedFile("up", "up.bin")
	uploading.Status = types.FileStatusUploading
	deep := archivedFile("deep", "deep.bin")
	deep.StorageTier = types.StorageTierGlacierDeepArchive

	uc := newTestUseCase(newMemFiles(archivedFile("f1", "a.bin"), standard, uploading, deep), newMemRetrievals(), &fakeStore{})
	ctx := context.Background()

	tests := []struct {
		name   string
		user   string
		file   string
		tier   string
		expect error
	}{
		{"missing file", "user-1", "nope", "", ErrFileNotFound},
		{"other owner", "user-2", "f1", "", ErrFileNotFound},
		{"hot tier", "user-1", "hot", "", ErrFileNotRestorable},
		{"still uploading", "user-1", "up", "", ErrFileNotRestorable},
		{"unknown tier", "user-1", "f1", "instant", ErrInvalidRestoreTier},
		{"expedited deep archive", "user-1", "deep", "expedited", ErrInvalidRestoreTier},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := uc.RequestRetrieval(ctx, tt.user, tt.file, tt.tier)
			assert.ErrorIs(t, err, tt.expect)
			assert.True(t, IsClientError(err))
		})
	}
}

func TestIssueRestore(t *testing.T) {
	rets := newMemRetrievals(retrievalFor("r1", "f1", types.RetrievalStatusPending, fixedNow))
	store := &fakeStore{}
	uc := newTestUseCase(newMemFiles(archivedFile("f1", "a b.bin")), rets, store)

	require.NoError(t, uc.IssueRestore(context.Background(), "r1"))
	got := rets.get("r1")
	assert.Equal(t, types.RetrievalStatusInProgress, got.Status)
	require.NotNil(t, got.InitiatedAt)
	assert.Equal(t, fixedNow, *got.InitiatedAt)
	assert.Equal(t, []string{"a b.bin"}, store.restored)

	// second delivery of the same job is a no-op
	require.NoError(t, uc.IssueRestore(context.Background(), "r1"))
	assert.Len(t, store.restored, 1)
}

func TestIssueRestoreProviderFailure(t *testing.T) {
	rets := newMemRetrievals(retrievalFor("r1", "f1", types.RetrievalStatusPending, fixedNow))
	uc := newTestUseCase(newMemFiles(archivedFile("f1", "a.bin")), rets, &fakeStore{restoreErr: errors.New("throttled")})

	err := uc.IssueRestore(context.Background(), "r1")
	require.ErrorIs(t, err, ErrRestoreRequestFailed)
	assert.Equal(t, types.RetrievalStatusPending, rets.get("r1").Status)

	require.NoError(t, uc.FailRetrieval(context.Background(), "r1", err.Error()))
	got := rets.get("r1")
	assert.Equal(t, types.RetrievalStatusFailed, got.Status)
	assert.NotNil(t, got.FailedAt)
	assert.Contains(t, got.ErrorMessage, "throttled")
}

func TestFailRetrievalIgnoresTerminal(t *testing.T) {
	rets := newMemRetrievals(retrievalFor("r1", "f1", types.RetrievalStatusReady, fixedNow))
	uc := newTestUseCase(newMemFiles(archivedFile("f1", "a.bin")), rets, &fakeStore{})

	require.NoError(t, uc.FailRetrieval(context.Background(), "r1", "late failure"))
	assert.Equal(t, types.RetrievalStatusReady, rets.get("r1").Status)
}

func TestCancelRetrieval(t *testing.T) {
	rets := newMemRetrievals(
		retrievalFor("pending", "f1", types.RetrievalStatusPending, fixedNow),
		retrievalFor("running", "f2", types.RetrievalStatusInProgress, fixedNow),
	)
	uc := newTestUseCase(newMemFiles(archivedFile("f1", "a.bin"), archivedFile("f2", "b.bin")), rets, &fakeStore{})
	ctx := context.Background()

	r, err := uc.CancelRetrieval(ctx, "user-1", "pending")
	require.NoError(t, err)
	assert.Equal(t, types.RetrievalStatusCancelled, r.Status)

	_, err = uc.CancelRetrieval(ctx, "user-1", "running")
	assert.ErrorIs(t, err, ErrRetrievalNotCancelable)

	_, err = uc.CancelRetrieval(ctx, "user-2", "running")
	assert.ErrorIs(t, err, ErrRetrievalNotFound)
}

func TestDownloadURL(t *testing.T) {
	ready := retrievalFor("ready", "f1", types.RetrievalStatusReady, fixedNow)
	soon := fixedNow.Add(5 * time.Minute)
	ready.ExpiresAt = &soon
	past := fixedNow.Add(-time.Minute)
	stale := retrievalFor("stale", "f1", types.RetrievalStatusReady, fixedNow.Add(-time.Hour))
	stale.ExpiresAt = &past

	store := &fakeStore{}
	uc := newTestUseCase(newMemFiles(archivedFile("f1", "a.bin")),
		newMemRetrievals(ready, stale, retrievalFor("pending", "f1", types.RetrievalStatusPending, fixedNow)), store)
	ctx := context.Background()

	u, until, err := uc.DownloadURL(ctx, "user-1", "ready")
	require.NoError(t, err)
	assert.Contains(t, u, "a.bin")
	assert.Equal(t, 5*time.Minute, store.presignedAt)
	assert.Equal(t, soon, until)

	_, _, err = uc.DownloadURL(ctx, "user-1", "stale")
	assert.ErrorIs(t, err, ErrRetrievalNotReady)
	_, _, err = uc.DownloadURL(ctx, "user-1", "pending")
	assert.ErrorIs(t, err, ErrRetrievalNotReady)
}

func TestSyncRestoreStatus(t *testing.T) {
	expiry := fixedNow.Add(72 * time.Hour)
	past := fixedNow.Add(-time.Minute)

	tests := []struct {
		name   string
		status types.RetrievalStatus
		expiry *time.Time
		remote *RestoreStatus
		want   types.RetrievalStatus
	}{
		{"restored remotely", types.RetrievalStatusInProgress, nil, &RestoreStatus{Requested: true, ExpiresAt: &expiry}, types.RetrievalStatusReady},
		{"still running", types.RetrievalStatusInProgress, nil, &RestoreStatus{Requested: true, Ongoing: true}, types.RetrievalStatusInProgress},
		{"no restore remotely", types.RetrievalStatusInProgress, nil, &RestoreStatus{}, types.RetrievalStatusFailed},
		{"ready past expiry", types.RetrievalStatusReady, &past, nil, types.RetrievalStatusExpired},
		{"ready in window", types.RetrievalStatusReady, &expiry, nil, types.RetrievalStatusReady},
		{"pending untouched", types.RetrievalStatusPending, nil, nil, types.RetrievalStatusPending},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := retrievalFor("r1", "f1", tt.status, fixedNow.Add(-time.Hour))
			r.ExpiresAt = tt.expiry
			rets := newMemRetrievals(r)
			uc := newTestUseCase(newMemFiles(archivedFile("f1", "a.bin")), rets, &fakeStore{status: tt.remote})

			require.NoError(t, uc.SyncRestoreStatus(context.Background(), rets.get("r1")))
			assert.Equal(t, tt.want, rets.get("r1").Status)
		})
	}
}

func TestListForFileChecksOwner(t *testing.T) {
	rets := newMemRetrievals(
		retrievalFor("a", "f1", types.RetrievalStatusExpired, fixedNow.Add(-time.Hour)),
		retrievalFor("b", "f1", types.RetrievalStatusPending, fixedNow),
	)
	uc := newTestUseCase(newMemFiles(archivedFile("f1", "a.bin")), rets, &fakeStore{})

	list, total, err := uc.ListForFile(context.Background(), "user-1", "f1", 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, "b", list[0].ID)

	_, _, err = uc.ListForFile(context.Background(), "user-2", "f1", 1, 20)
	assert.ErrorIs(t, err, ErrFileNotFound)
}
