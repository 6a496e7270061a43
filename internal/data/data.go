package data

import (
	"context"
	"fmt"

	archivebiz "github.com/lk2023060901/coldvault-backend/internal/archive/biz"
	archivedata "github.com/lk2023060901/coldvault-backend/internal/archive/data"
	archivemodels "github.com/lk2023060901/coldvault-backend/internal/archive/models"
	"github.com/lk2023060901/coldvault-backend/internal/conf"
	"github.com/lk2023060901/coldvault-backend/internal/pkg/database"
	"github.com/lk2023060901/coldvault-backend/internal/pkg/logger"
	pkgminio "github.com/lk2023060901/coldvault-backend/internal/pkg/minio"
	"github.com/lk2023060901/coldvault-backend/internal/pkg/redis"
	webhookmodels "github.com/lk2023060901/coldvault-backend/internal/webhook/models"
	"go.uber.org/zap"
)

// Data holds the shared connections
type Data struct {
	DB     *database.DB
	Redis  *redis.Client
	Store  archivebiz.ObjectStore
	MinIO  *pkgminio.Client // nil unless storage.driver is minio
	Logger *logger.Logger
}

// NewData opens the database, redis and the configured object store
func NewData(ctx context.Context, config *conf.Config, log *logger.Logger) (*Data, func(), error) {
	db, err := database.New(&config.Database, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init database: %w", err)
	}

	redisClient, err := redis.New(&config.Redis, log)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	d := &Data{DB: db, Redis: redisClient, Logger: log}

	if err := d.initObjectStore(ctx, config); err != nil {
		_ = redisClient.Close()
		_ = db.Close()
		return nil, nil, err
	}

	cleanup := func() {
		log.Info("cleaning up data resources")
		if d.MinIO != nil {
			_ = d.MinIO.Close()
		}
		if err := redisClient.Close(); err != nil {
			log.Warn("failed to close redis", zap.Error(err))
		}
		if err := db.Close(); err != nil {
			log.Warn("failed to close database", zap.Error(err))
		}
	}
	return d, cleanup, nil
}

func (d *Data) initObjectStore(ctx context.Context, config *conf.Config) error {
	switch config.Storage.Driver {
	case conf.StorageDriverS3:
		store, err := archivedata.NewS3ObjectStore(ctx, archivedata.S3Options{
			Region:          config.S3.Region,
			Bucket:          config.Storage.Bucket,
			Endpoint:        config.S3.BaseEndpoint,
			AccessKeyID:     config.S3.AccessKeyID,
			SecretAccessKey: config.S3.SecretAccessKey,
			UsePathStyle:    config.S3.UsePathStyle,
		}, d.Logger)
		if err != nil {
			return fmt.Errorf("failed to init s3: %w", err)
		}
		d.Store = store
	default:
		client, err := pkgminio.NewClient(&config.MinIO, d.Logger.Logger)
		if err != nil {
			return fmt.Errorf("failed to init minio: %w", err)
		}
		if config.MinIO.CreateBucket {
			if err := client.EnsureBucket(ctx, config.Storage.Bucket); err != nil {
				return fmt.Errorf("failed to ensure bucket: %w", err)
			}
		}
		d.MinIO = client
		d.Store = archivedata.NewMinIOObjectStore(client, config.Storage.Bucket)
	}

	d.Logger.Info("object store ready",
		zap.String("driver", config.Storage.Driver),
		zap.String("bucket", config.Storage.Bucket),
	)
	return nil
}

// Migrate creates or updates every table. force ignores database.automigrate.
func Migrate(ctx context.Context, db *database.DB, force bool) error {
	if err := archivemodels.AutoMigrate(ctx, db, force); err != nil {
		return err
	}
	return webhookmodels.AutoMigrate(ctx, db, force)
}
