package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	archiveservice "github.com/lk2023060901/coldvault-backend/internal/archive/service"
	"github.com/lk2023060901/coldvault-backend/internal/auth"
	"github.com/lk2023060901/coldvault-backend/internal/auth/middleware"
	"github.com/lk2023060901/coldvault-backend/internal/conf"
	"github.com/lk2023060901/coldvault-backend/internal/pkg/database"
	"github.com/lk2023060901/coldvault-backend/internal/pkg/logger"
	"github.com/lk2023060901/coldvault-backend/internal/pkg/redis"
	webhookservice "github.com/lk2023060901/coldvault-backend/internal/webhook/service"
	"go.uber.org/zap"
)

type HTTPServer struct {
	server *http.Server
	logger *logger.Logger
}

// Services are the handler sets mounted by the server
type Services struct {
	Retrievals *archiveservice.RetrievalService
	Webhooks   *webhookservice.WebhookService
}

// NewHTTPServer builds the gin engine. The webhook route is public; the
// /api/v1 group requires a bearer token.
func NewHTTPServer(
	config *conf.Config,
	log *logger.Logger,
	jwt *auth.JWTManager,
	db *database.DB,
	rdb *redis.Client,
	services Services,
) *HTTPServer {
	if config.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(logger.GinRecovery(log))
	router.Use(logger.GinLogger(log, "/health"))
	router.Use(middleware.CORS())

	router.GET("/health", healthHandler(db, rdb))

	services.Webhooks.RegisterRoutes(&router.RouterGroup)

	api := router.Group("/api/v1")
	api.Use(middleware.JWTAuth(jwt, log))
	api.Use(middleware.RateLimiter(rdb, config.RateLimit, log))
	services.Retrievals.RegisterRoutes(api)

	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)

	return &HTTPServer{
		server: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  config.Server.ReadTimeout,
			WriteTimeout: config.Server.WriteTimeout,
		},
		logger: log,
	}
}

func healthHandler(db *database.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		checks := gin.H{"database": "ok", "redis": "ok"}
		if err := db.HealthCheck(ctx); err != nil {
			status = http.StatusServiceUnavailable
			checks["database"] = err.Error()
		}
		if err := rdb.Ping(ctx); err != nil {
			status = http.StatusServiceUnavailable
			checks["redis"] = err.Error()
		}

		c.JSON(status, gin.H{
			"status": http.StatusText(status),
			"checks": checks,
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// Handler exposes the router for tests
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")
	return s.server.Shutdown(ctx)
}
