package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/coldvault-backend/internal/archive/biz"
	"github.com/lk2023060901/coldvault-backend/internal/archive/data"
	"github.com/lk2023060901/coldvault-backend/internal/archive/models"
	"github.com/lk2023060901/coldvault-backend/internal/archive/types"
	"github.com/lk2023060901/coldvault-backend/internal/auth"
	"github.com/lk2023060901/coldvault-backend/internal/auth/middleware"
	"github.com/lk2023060901/coldvault-backend/internal/pkg/database"
	"github.com/lk2023060901/coldvault-backend/internal/pkg/database/dbtest"
	apperrors "github.com/lk2023060901/coldvault-backend/internal/pkg/errors"
	"github.com/lk2023060901/coldvault-backend/internal/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubStore struct{}

func (stubStore) RequestRestore(context.Context, string, types.RestoreTier, int) error { return nil }
func (stubStore) RestoreStatus(context.Context, string) (*biz.RestoreStatus, error) {
	return &biz.RestoreStatus{}, nil
}
func (stubStore) PresignDownload(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://downloads.example.com/" + key, nil
}

type recordingEnqueuer struct{ ids []string }

func (e *recordingEnqueuer) Enqueue(_ context.Context, id string) error {
	e.ids = append(e.ids, id)
	return nil
}

type fixture struct {
	router     *gin.Engine
	jwt        *auth.JWTManager
	files      *data.FileRepo
	retrievals *data.RetrievalRepo
	enqueuer   *recordingEnqueuer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.New(t, func(db *database.DB) error {
		return models.AutoMigrate(context.Background(), db, true)
	})
	files := data.NewFileRepo(db)
	rets := data.NewRetrievalRepo(db)
	uc := biz.NewRetrievalUseCase(files, rets, stubStore{}, biz.DefaultRetrievalConfig(), logger.Nop())
	enq := &recordingEnqueuer{}
	jwt := auth.NewJWTManager("secret", "coldvault", time.Minute)

	r := gin.New()
	api := r.Group("/api/v1", middleware.JWTAuth(jwt, logger.Nop()))
	NewRetrievalService(uc, enq, zap.NewNop()).RegisterRoutes(api)

	now := time.Now().UTC()
	require.NoError(t, files.Create(context.Background(), &biz.File{
		ID: "f1", UserID: "user-1", Name: "tax 2019.pdf", StorageKey: "users/user-1/tax 2019.pdf",
		StorageTier: types.StorageTierGlacierDeepArchive, Status: types.FileStatusAvailable,
		CreatedAt: now, UpdatedAt: now,
	}))
	return &fixture{router: r, jwt: jwt, files: files, retrievals: rets, enqueuer: enq}
}

func (f *fixture) do(t *testing.T, method, path, user, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		token, err := f.jwt.GenerateAccessToken(user)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var out map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func TestRetrievalLifecycleOverHTTP(t *testing.T) {
	f := newFixture(t)

	w, body := f.do(t, http.MethodPost, "/api/v1/files/f1/retrievals", "user-1", `{"tier":"bulk"}`)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	created := body["data"].(map[string]interface{})
	id := created["id"].(string)
	assert.Equal(t, "pending", created["status"])
	assert.Equal(t, "bulk", created["restore_tier"])
	assert.Equal(t, []string{id}, f.enqueuer.ids)

	w, body = f.do(t, http.MethodPost, "/api/v1/files/f1/retrievals", "user-1", "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.EqualValues(t, apperrors.ErrRetrievalAlreadyActive, body["code"])

	w, _ = f.do(t, http.MethodGet, "/api/v1/retrievals/"+id, "user-1", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = f.do(t, http.MethodGet, "/api/v1/retrievals/"+id, "user-2", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, body = f.do(t, http.MethodGet, "/api/v1/retrievals/"+id+"/download", "user-1", "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.EqualValues(t, apperrors.ErrRetrievalNotReady, body["code"])

	w, body = f.do(t, http.MethodPost, "/api/v1/retrievals/"+id+"/cancel", "user-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "cancelled", body["data"].(map[string]interface{})["status"])

	w, body = f.do(t, http.MethodGet, "/api/v1/files/f1/retrievals?page=1&page_size=10", "user-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, body["data"].(map[string]interface{})["total"])
}

func TestRequestRetrievalValidation(t *testing.T) {
	f := newFixture(t)

	w, body := f.do(t, http.MethodPost, "/api/v1/files/f1/retrievals", "user-1", `{"tier":"expedited"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.EqualValues(t, apperrors.ErrRetrievalInvalidTier, body["code"])

	w, _ = f.do(t, http.MethodPost, "/api/v1/files/f1/retrievals", "user-1", `{"tier":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = f.do(t, http.MethodPost, "/api/v1/files/missing/retrievals", "user-1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = f.do(t, http.MethodPost, "/api/v1/files/f1/retrievals", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, f.enqueuer.ids)
}

func TestDownloadReadyRetrieval(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()
	expires := now.Add(24 * time.Hour)
	require.NoError(t, f.retrievals.Create(ctx, &biz.Retrieval{
		ID: "r1", FileID: "f1", UserID: "user-1", Status: types.RetrievalStatusReady,
		RestoreTier: types.RestoreTierStandard, ReadyAt: &now, ExpiresAt: &expires,
		CreatedAt: now, UpdatedAt: now,
	}))

	w, body := f.do(t, http.MethodGet, "/api/v1/retrievals/r1/download", "user-1", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "https://downloads.example.com/users/user-1/tax 2019.pdf",
		body["data"].(map[string]interface{})["url"])

	w, _ = f.do(t, http.MethodGet, "/api/v1/retrievals/r1/download?redirect=true", "user-1", "")
	assert.Equal(t, http.StatusFound, w.Code)
}
