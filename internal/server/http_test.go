package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	archivebiz "github.com/lk2023060901/coldvault-backend/internal/archive/biz"
	archivedata "github.com/lk2023060901/coldvault-backend/internal/archive/data"
	archiveservice "github.com/lk2023060901/coldvault-backend/internal/archive/service"
	"github.com/lk2023060901/coldvault-backend/internal/archive/types"
	"github.com/lk2023060901/coldvault-backend/internal/auth"
	"github.com/lk2023060901/coldvault-backend/internal/conf"
	"github.com/lk2023060901/coldvault-backend/internal/data"
	"github.com/lk2023060901/coldvault-backend/internal/pkg/database"
	"github.com/lk2023060901/coldvault-backend/internal/pkg/database/dbtest"
	"github.com/lk2023060901/coldvault-backend/internal/pkg/logger"
	"github.com/lk2023060901/coldvault-backend/internal/pkg/redis"
	webhookbiz "github.com/lk2023060901/coldvault-backend/internal/webhook/biz"
	webhookdata "github.com/lk2023060901/coldvault-backend/internal/webhook/data"
	webhookservice "github.com/lk2023060901/coldvault-backend/internal/webhook/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type nopStore struct{}

func (nopStore) RequestRestore(context.Context, string, types.RestoreTier, int) error { return nil }
func (nopStore) RestoreStatus(context.Context, string) (*archivebiz.RestoreStatus, error) {
	return &archivebiz.RestoreStatus{}, nil
}
func (nopStore) PresignDownload(context.Context, string, time.Duration) (string, error) {
	return "", nil
}

type nopEnqueuer struct{}

func (nopEnqueuer) Enqueue(context.Context, string) error { return nil }

func newTestServer(t *testing.T) (*HTTPServer, *auth.JWTManager, *miniredis.Miniredis) {
	t.Helper()
	log := logger.Nop()

	db := dbtest.New(t, func(db *database.DB) error {
		return data.Migrate(context.Background(), db, true)
	})

	mr := miniredis.RunT(t)
	rcfg := redis.DefaultConfig()
	rcfg.Addr = mr.Addr()
	rdb, err := redis.New(rcfg, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := conf.Default()
	cfg.App.Env = conf.EnvProduction

	files := archivedata.NewFileRepo(db)
	rets := archivedata.NewRetrievalRepo(db)
	retrievalUC := archivebiz.NewRetrievalUseCase(files, rets, nopStore{}, archivebiz.DefaultRetrievalConfig(), log)
	webhookUC := webhookbiz.NewWebhookUseCase(
		webhookdata.NewEventRepo(db),
		webhookdata.NewRedisSeenCache(rdb, time.Hour),
		archivebiz.NewRestoreReconciler(files, rets, log),
		webhookbiz.NoopVerifier{},
		nil,
		cfg.Webhook.Source,
		log,
	)

	jwt := auth.NewJWTManager("test-secret", "coldvault", time.Minute)
	srv := NewHTTPServer(cfg, log, jwt, db, rdb, Services{
		Retrievals: archiveservice.NewRetrievalService(retrievalUC, nopEnqueuer{}, zap.NewNop()),
		Webhooks:   webhookservice.NewWebhookService(webhookUC, 0, zap.NewNop()),
	})
	return srv, jwt, mr
}

func serve(srv *HTTPServer, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	srv, _, mr := newTestServer(t)

	w := serve(srv, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	mr.Close()
	w = serve(srv, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"database":"ok"`)
}

func TestWebhookRouteIsPublic(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/storage",
		strings.NewReader(`{"Type":"UnsubscribeConfirmation","MessageId":"u-1"}`))
	w := serve(srv, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"received":true}`, w.Body.String())
}

func TestAPIRequiresToken(t *testing.T) {
	srv, jwt, _ := newTestServer(t)

	w := serve(srv, httptest.NewRequest(http.MethodGet, "/api/v1/retrievals/missing", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := jwt.GenerateAccessToken("user-1")
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/retrievals/missing", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = serve(srv, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Limit"))
}
