package biz

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lk2023060901/coldvault-backend/internal/pkg/logger"
	"github.com/lk2023060901/coldvault-backend/internal/webhook/types"
	"github.com/stretchr/testify/assert"
)

func TestSubscriptionConfirmer(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		assert.Equal(t, "ConfirmSubscription", r.URL.Query().Get("Action"))
		if r.URL.Query().Get("Token") == "bad" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_, _ = w.Write([]byte("<ConfirmSubscriptionResponse/>"))
	}))
	defer srv.Close()

	c := NewSubscriptionConfirmer(srv.Client(), logger.Nop())
	ctx := context.Background()

	assert.NoError(t, c.Confirm(ctx, &types.Message{SubscribeURL: srv.URL + "/?Action=ConfirmSubscription&Token=ok"}))
	assert.Error(t, c.Confirm(ctx, &types.Message{SubscribeURL: srv.URL + "/?Action=ConfirmSubscription&Token=bad"}))
	assert.Equal(t, 2, hits)

	assert.Error(t, c.Confirm(ctx, &types.Message{}))
	assert.Error(t, c.Confirm(ctx, &types.Message{SubscribeURL: "ftp://example.com/x"}))
	assert.Equal(t, 2, hits)
}
