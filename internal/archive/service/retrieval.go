package service

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/coldvault-backend/internal/archive/biz"
	"github.com/lk2023060901/coldvault-backend/internal/auth/middleware"
	"github.com/lk2023060901/coldvault-backend/internal/pkg/response"
	"go.uber.org/zap"
)

// Enqueuer schedules the restore command for a new retrieval
type Enqueuer interface {
	Enqueue(ctx context.Context, retrievalID string) error
}

// RetrievalService exposes retrievals over HTTP
type RetrievalService struct {
	uc       *biz.RetrievalUseCase
	enqueuer Enqueuer
	logger   *zap.Logger
}

// NewRetrievalService creates the handlers
func NewRetrievalService(uc *biz.RetrievalUseCase, enqueuer Enqueuer, logger *zap.Logger) *RetrievalService {
	return &RetrievalService{uc: uc, enqueuer: enqueuer, logger: logger}
}

// RegisterRoutes mounts the retrieval routes on an authenticated group
func (s *RetrievalService) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/files/:id/retrievals", s.RequestRetrieval)
	rg.GET("/files/:id/retrievals", s.ListRetrievals)
	rg.GET("/retrievals/:id", s.GetRetrieval)
	rg.POST("/retrievals/:id/cancel", s.CancelRetrieval)
	rg.GET("/retrievals/:id/download", s.DownloadRetrieval)
}

// RetrievalResponse is the JSON view of a retrieval
type RetrievalResponse struct {
	ID           string     `json:"id"`
	FileID       string     `json:"file_id"`
	Status       string     `json:"status"`
	RestoreTier  string     `json:"restore_tier"`
	InitiatedAt  *time.Time `json:"initiated_at,omitempty"`
	ReadyAt      *time.Time `json:"ready_at,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	FailedAt     *time.Time `json:"failed_at,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func toRetrievalResponse(r *biz.Retrieval) RetrievalResponse {
	return RetrievalResponse{
		ID:           r.ID,
		FileID:       r.FileID,
		Status:       r.Status.String(),
		RestoreTier:  r.RestoreTier.String(),
		InitiatedAt:  r.InitiatedAt,
		ReadyAt:      r.ReadyAt,
		ExpiresAt:    r.ExpiresAt,
		FailedAt:     r.FailedAt,
		ErrorMessage: r.ErrorMessage,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

type requestRetrievalRequest struct {
	Tier string `json:"tier"`
}

// RequestRetrieval POST /files/:id/retrievals
func (s *RetrievalService) RequestRetrieval(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "missing user")
		return
	}

	var req requestRetrievalRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "invalid request body")
			return
		}
	}

	ctx := c.Request.Context()
	r, err := s.uc.RequestRetrieval(ctx, userID, c.Param("id"), req.Tier)
	if err != nil {
		response.HandleError(c, toAppError(err))
		return
	}

	if err := s.enqueuer.Enqueue(ctx, r.ID); err != nil {
		// the sweeper re-enqueues stale pending retrievals
		s.logger.Error("failed to enqueue restore", zap.String("retrieval_id", r.ID), zap.Error(err))
	}

	response.Accepted(c, toRetrievalResponse(r))
}

// ListRetrievals GET /files/:id/retrievals
func (s *RetrievalService) ListRetrievals(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "missing user")
		return
	}

	var q struct {
		Page     int `form:"page,default=1" binding:"min=1"`
		PageSize int `form:"page_size,default=20" binding:"min=1,max=100"`
	}
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, "invalid parameters")
		return
	}

	list, total, err := s.uc.ListForFile(c.Request.Context(), userID, c.Param("id"), q.Page, q.PageSize)
	if err != nil {
		response.HandleError(c, toAppError(err))
		return
	}

	items := make([]RetrievalResponse, len(list))
	for i, r := range list {
		items[i] = toRetrievalResponse(r)
	}
	response.Success(c, gin.H{
		"items":     items,
		"total":     total,
		"page":      q.Page,
		"page_size": q.PageSize,
	})
}

// GetRetrieval GET /retrievals/:id
func (s *RetrievalService) GetRetrieval(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "missing user")
		return
	}

	r, err := s.uc.GetRetrieval(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		response.HandleError(c, toAppError(err))
		return
	}
	response.Success(c, toRetrievalResponse(r))
}

// CancelRetrieval POST /retrievals/:id/cancel
func (s *RetrievalService) CancelRetrieval(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "missing user")
		return
	}

	r, err := s.uc.CancelRetrieval(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		response.HandleError(c, toAppError(err))
		return
	}
	response.Success(c, toRetrievalResponse(r))
}

// DownloadRetrieval GET /retrievals/:id/download. With ?redirect=true the
// caller is sent straight to the presigned URL.
func (s *RetrievalService) DownloadRetrieval(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "missing user")
		return
	}

	url, until, err := s.uc.DownloadURL(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		response.HandleError(c, toAppError(err))
		return
	}

	if c.Query("redirect") == "true" {
		c.Redirect(http.StatusFound, url)
		return
	}
	response.Success(c, gin.H{"url": url, "expires_at": until})
}
