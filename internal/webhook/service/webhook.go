package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/coldvault-backend/internal/webhook/biz"
	"github.com/lk2023060901/coldvault-backend/internal/webhook/types"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// DefaultMaxBodyBytes bounds a single delivery
const DefaultMaxBodyBytes = 256 << 10

type ackResponse struct {
	Received  bool `json:"received"`
	Duplicate bool `json:"duplicate,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// WebhookService is the inbound endpoint for storage notifications
type WebhookService struct {
	uc       *biz.WebhookUseCase
	maxBytes int64
	logger   *zap.Logger
}

// NewWebhookService creates the endpoint
func NewWebhookService(uc *biz.WebhookUseCase, maxBytes int64, logger *zap.Logger) *WebhookService {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}
	return &WebhookService{uc: uc, maxBytes: maxBytes, logger: logger}
}

// RegisterRoutes mounts the endpoint. It must not sit behind user auth.
func (s *WebhookService) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/webhooks/storage", s.HandleStorage)
}

// HandleStorage accepts one provider delivery. Anything past signature
// verification is acknowledged with 200 so the provider stops retrying.
func (s *WebhookService) HandleStorage(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, s.maxBytes))
	if err != nil {
		s.logger.Warn("failed to read webhook body", zap.Error(err))
		c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid JSON"})
		return
	}

	if !gjson.ValidBytes(body) || !gjson.ParseBytes(body).IsObject() {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid JSON"})
		return
	}

	var msg types.Message
	if err := json.Unmarshal(body, &msg); err != nil {
		s.logger.Warn("webhook body does not match the envelope",
			zap.String("type", gjson.GetBytes(body, "Type").String()),
			zap.Error(err),
		)
		c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid JSON"})
		return
	}

	if err := s.uc.Verify(c.Request.Context(), &msg); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid signature"})
		return
	}

	// The provider may hang up mid-delivery; the event must still reach a
	// terminal status, otherwise redeliveries are acknowledged as duplicates.
	ctx := context.WithoutCancel(c.Request.Context())
	out := s.uc.Handle(ctx, &msg, body)
	if out.Err != nil {
		s.logger.Error("webhook delivery acknowledged with internal failure",
			zap.String("message_id", msg.MessageID),
			zap.String("event_id", out.EventID),
			zap.Error(out.Err),
		)
	}

	c.JSON(http.StatusOK, ackResponse{Received: true, Duplicate: out.Duplicate()})
}
