package data

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/lk2023060901/coldvault-backend/internal/pkg/database"
	"github.com/lk2023060901/coldvault-backend/internal/pkg/database/dbtest"
	"github.com/lk2023060901/coldvault-backend/internal/pkg/logger"
	pkgredis "github.com/lk2023060901/coldvault-backend/internal/pkg/redis"
	"github.com/lk2023060901/coldvault-backend/internal/webhook/biz"
	"github.com/lk2023060901/coldvault-backend/internal/webhook/models"
	"github.com/lk2023060901/coldvault-backend/internal/webhook/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepo(t *testing.T) *EventRepo {
	t.Helper()
	db := dbtest.New(t, func(db *database.DB) error {
		return models.AutoMigrate(context.Background(), db, true)
	})
	return NewEventRepo(db)
}

func newEvent(id, externalID string, created time.Time) *biz.Event {
	return &biz.Event{
		ID:         id,
		Source:     "sns",
		ExternalID: externalID,
		EventType:  "ObjectRestore:Completed",
		Payload:    `{"Type":"Notification"}`,
		Status:     types.WebhookEventStatusReceived,
		CreatedAt:  created,
		UpdatedAt:  created,
	}
}

func TestEventRepoInsertAndFind(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	t0 := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Insert(ctx, newEvent("e-1", "m-1", t0)))

	got, err := repo.Find(ctx, "sns", "m-1")
	require.NoError(t, err)
	assert.Equal(t, "e-1", got.ID)
	assert.Equal(t, types.WebhookEventStatusReceived, got.Status)
	assert.Nil(t, got.ProcessedAt)

	_, err = repo.Find(ctx, "sns", "m-2")
	assert.ErrorIs(t, err, biz.ErrEventNotFound)

	_, err = repo.Find(ctx, "other", "m-1")
	assert.ErrorIs(t, err, biz.ErrEventNotFound)
}

func TestEventRepoInsertDuplicate(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	t0 := time.Now().UTC()

	require.NoError(t, repo.Insert(ctx, newEvent("e-1", "m-1", t0)))
	err := repo.Insert(ctx, newEvent("e-2", "m-1", t0))
	assert.ErrorIs(t, err, biz.ErrDuplicateEvent)

	other := newEvent("e-3", "m-1", t0)
	other.Source = "minio"
	assert.NoError(t, repo.Insert(ctx, other), "dedup key includes the source")
}

func TestEventRepoUpdateStatus(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Insert(ctx, newEvent("e-1", "m-1", time.Now().UTC())))

	require.NoError(t, repo.UpdateStatus(ctx, "e-1", types.WebhookEventStatusFailed, "database is closed"))
	got, err := repo.GetByID(ctx, "e-1")
	require.NoError(t, err)
	assert.Equal(t, types.WebhookEventStatusFailed, got.Status)
	assert.Equal(t, "database is closed", got.ErrorMessage)
	assert.NotNil(t, got.ProcessedAt)

	require.NoError(t, repo.UpdateStatus(ctx, "e-1", types.WebhookEventStatusProcessed, ""))
	got, err = repo.GetByID(ctx, "e-1")
	require.NoError(t, err)
	assert.Equal(t, types.WebhookEventStatusProcessed, got.Status)
	assert.Empty(t, got.ErrorMessage)

	assert.ErrorIs(t, repo.UpdateStatus(ctx, "missing", types.WebhookEventStatusProcessed, ""), biz.ErrEventNotFound)
	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, biz.ErrEventNotFound)
}

func TestEventRepoListByStatus(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	t0 := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)

	for i, id := range []string{"e-1", "e-2", "e-3"} {
		require.NoError(t, repo.Insert(ctx, newEvent(id, "m-"+id, t0.Add(time.Duration(i)*time.Minute))))
	}
	require.NoError(t, repo.UpdateStatus(ctx, "e-2", types.WebhookEventStatusFailed, "boom"))

	all, err := repo.ListByStatus(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "e-3", all[0].ID, "newest first")

	failed, err := repo.ListByStatus(ctx, types.WebhookEventStatusFailed, 10)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "e-2", failed[0].ID)

	limited, err := repo.ListByStatus(ctx, "", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestRedisSeenCache(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := pkgredis.DefaultConfig()
	cfg.Addr = mr.Addr()
	client, err := pkgredis.New(cfg, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	cache := NewRedisSeenCache(client, time.Hour)
	ctx := context.Background()

	seen, err := cache.Seen(ctx, "sns", "m-1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, cache.MarkSeen(ctx, "sns", "m-1"))
	seen, err = cache.Seen(ctx, "sns", "m-1")
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = cache.Seen(ctx, "minio", "m-1")
	require.NoError(t, err)
	assert.False(t, seen)

	assert.Equal(t, time.Hour, mr.TTL(client.Key("webhook:seen:sns:m-1")))

	mr.FastForward(2 * time.Hour)
	seen, err = cache.Seen(ctx, "sns", "m-1")
	require.NoError(t, err)
	assert.False(t, seen)
}
