package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	archivebiz "github.com/lk2023060901/coldvault-backend/internal/archive/biz"
	archivedata "github.com/lk2023060901/coldvault-backend/internal/archive/data"
	archivequeue "github.com/lk2023060901/coldvault-backend/internal/archive/queue"
	archiveservice "github.com/lk2023060901/coldvault-backend/internal/archive/service"
	"github.com/lk2023060901/coldvault-backend/internal/archive/types"
	"github.com/lk2023060901/coldvault-backend/internal/auth"
	"github.com/lk2023060901/coldvault-backend/internal/conf"
	"github.com/lk2023060901/coldvault-backend/internal/data"
	"github.com/lk2023060901/coldvault-backend/internal/pkg/httpclient"
	"github.com/lk2023060901/coldvault-backend/internal/pkg/logger"
	"github.com/lk2023060901/coldvault-backend/internal/pkg/workerpool"
	"github.com/lk2023060901/coldvault-backend/internal/server"
	webhookbiz "github.com/lk2023060901/coldvault-backend/internal/webhook/biz"
	webhookdata "github.com/lk2023060901/coldvault-backend/internal/webhook/data"
	webhookservice "github.com/lk2023060901/coldvault-backend/internal/webhook/service"
	"go.uber.org/zap"
)

var (
	configFile = flag.String("config", "config.yaml", "config file path")
)

func main() {
	flag.Parse()

	// Load configuration
	config, err := conf.LoadConfig(*configFile)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log, err := logger.New(&config.Log)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer log.Sync()
	logger.ReplaceGlobal(log)

	log.Info("config loaded successfully",
		zap.String("env", config.App.Env),
		zap.String("storage_driver", config.Storage.Driver),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize data layer
	d, cleanup, err := data.NewData(ctx, config, log)
	if err != nil {
		log.Fatal("failed to initialize data layer", zap.Error(err))
	}
	defer cleanup()

	if err := data.Migrate(ctx, d.DB, false); err != nil {
		log.Fatal("failed to migrate database", zap.Error(err))
	}

	// Initialize repositories
	fileRepo := archivedata.NewFileRepo(d.DB)
	retrievalRepo := archivedata.NewRetrievalRepo(d.DB)
	eventRepo := webhookdata.NewEventRepo(d.DB)
	seenCache := webhookdata.NewRedisSeenCache(d.Redis, config.Webhook.DedupCacheTTL)

	// Initialize use cases
	retrievalUseCase := archivebiz.NewRetrievalUseCase(fileRepo, retrievalRepo, d.Store, archivebiz.RetrievalConfig{
		DefaultTier:       types.RestoreTier(config.Storage.DefaultTier),
		RestoreDays:       config.Storage.RestoreDays,
		DownloadURLExpiry: config.Storage.PresignExpiry,
	}, log)
	reconciler := archivebiz.NewRestoreReconciler(fileRepo, retrievalRepo, log)

	outbound := httpclient.New(config.Webhook.HTTPTimeout)
	verifier := webhookbiz.NewVerifier(webhookbiz.VerifierOptions{
		Env:              config.App.Env,
		SkipVerification: config.Webhook.SkipVerification,
		AllowedTopicARNs: config.Webhook.AllowedTopicARNs,
		CertCacheTTL:     config.Webhook.CertCacheTTL,
	}, webhookbiz.HTTPCertFetcher(outbound), log)
	webhookUseCase := webhookbiz.NewWebhookUseCase(
		eventRepo,
		seenCache,
		reconciler,
		verifier,
		webhookbiz.NewSubscriptionConfirmer(outbound, log),
		config.Webhook.Source,
		log,
	)

	// Restore worker
	restoreWorker := archivequeue.NewWorker(d.Redis, retrievalUseCase, config.Worker, log.Named("restore-worker").Logger)
	if err := restoreWorker.Start(ctx); err != nil {
		log.Fatal("failed to start restore worker", zap.Error(err))
	}
	defer restoreWorker.Stop()

	// Status sweeper
	if config.Sweeper.Enabled {
		pool, err := workerpool.New(&workerpool.Config{
			Workers:         config.Sweeper.Concurrency,
			ShutdownTimeout: config.Server.ShutdownTimeout,
		}, log.Named("sweeper-pool").Logger)
		if err != nil {
			log.Fatal("failed to create sweeper pool", zap.Error(err))
		}
		defer pool.Shutdown()

		sweeper := archivequeue.NewSweeper(retrievalRepo, d.DB, retrievalUseCase, restoreWorker, pool, d.Redis,
			config.Sweeper.SweeperConfig, log.Named("sweeper").Logger)
		sweeperDone := make(chan struct{})
		go func() {
			defer close(sweeperDone)
			sweeper.Run(ctx)
		}()
		// runs before pool.Shutdown and cleanup
		defer func() { <-sweeperDone }()
	}

	// Initialize services
	jwtManager := auth.NewJWTManager(config.Auth.JWTSecret, config.Auth.JWTIssuer, config.Auth.AccessTokenTTL)
	httpServer := server.NewHTTPServer(config, log, jwtManager, d.DB, d.Redis, server.Services{
		Retrievals: archiveservice.NewRetrievalService(retrievalUseCase, restoreWorker, log.Named("retrievals").Logger),
		Webhooks:   webhookservice.NewWebhookService(webhookUseCase, config.Webhook.MaxBodyBytes, log.Named("webhooks").Logger),
	})

	go func() {
		if err := httpServer.Start(); err != nil {
			log.Error("HTTP server failed", zap.Error(err))
			stop()
		}
	}()

	log.Info("server started successfully")

	<-ctx.Done()
	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		log.Error("HTTP server forced to shutdown", zap.Error(err))
	}

	log.Info("server exited")
}
