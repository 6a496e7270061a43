package biz

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/lk2023060901/coldvault-backend/internal/pkg/httpclient"
	"github.com/lk2023060901/coldvault-backend/internal/pkg/logger"
	"github.com/lk2023060901/coldvault-backend/internal/webhook/types"
	"go.uber.org/zap"
)

// Confirmer completes a subscription handshake
type Confirmer interface {
	Confirm(ctx context.Context, msg *types.Message) error
}

// SubscriptionConfirmer visits the SubscribeURL of a confirmation message
type SubscriptionConfirmer struct {
	client *http.Client
	logger *logger.Logger
}

// NewSubscriptionConfirmer creates a confirmer using client
func NewSubscriptionConfirmer(client *http.Client, log *logger.Logger) *SubscriptionConfirmer {
	return &SubscriptionConfirmer{client: client, logger: log.Named("subscription")}
}

// Confirm issues a GET against msg.SubscribeURL
func (c *SubscriptionConfirmer) Confirm(ctx context.Context, msg *types.Message) error {
	log := c.logger.WithContext(ctx).With(zap.String("topic_arn", msg.TopicArn))

	if msg.SubscribeURL == "" {
		return errors.New("subscription confirmation without SubscribeURL")
	}
	u, err := url.Parse(msg.SubscribeURL)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") {
		return fmt.Errorf("invalid SubscribeURL %q", msg.SubscribeURL)
	}

	if _, err := httpclient.Get(ctx, c.client, msg.SubscribeURL, 0); err != nil {
		log.Error("subscription confirmation failed", zap.Error(err))
		return fmt.Errorf("confirm subscription: %w", err)
	}

	log.Info("subscription confirmed")
	return nil
}
