package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lk2023060901/coldvault-backend/internal/archive/biz"
	"github.com/lk2023060901/coldvault-backend/internal/archive/types"
	pkgredis "github.com/lk2023060901/coldvault-backend/internal/pkg/redis"
	"github.com/lk2023060901/coldvault-backend/internal/pkg/workerpool"
	"go.uber.org/zap"
)

const sweepLockKey = "lock:retrieval:sweep"

// SweeperConfig tunes the reconciliation sweep
type SweeperConfig struct {
	Interval   time.Duration `mapstructure:"interval"`
	StaleAfter time.Duration `mapstructure:"stale_after"`
	BatchSize  int           `mapstructure:"batch_size"`
	LockTTL    time.Duration `mapstructure:"lock_ttl"`
}

// Syncer polls the provider for one retrieval
type Syncer interface {
	SyncRestoreStatus(ctx context.Context, r *biz.Retrieval) error
}

// Enqueuer schedules a restore
type Enqueuer interface {
	Enqueue(ctx context.Context, retrievalID string) error
}

// Transactor runs fn in a database transaction carried by ctx
type Transactor interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Sweeper catches retrievals whose notification or queue task was lost
type Sweeper struct {
	retrievals biz.RetrievalRepo
	tx         Transactor
	syncer     Syncer
	enqueuer   Enqueuer
	pool       *workerpool.Pool
	redis      *pkgredis.Client
	config     SweeperConfig
	logger     *zap.Logger
	now        func() time.Time
}

// NewSweeper creates the sweeper
func NewSweeper(
	retrievals biz.RetrievalRepo,
	tx Transactor,
	syncer Syncer,
	enqueuer Enqueuer,
	pool *workerpool.Pool,
	redis *pkgredis.Client,
	cfg SweeperConfig,
	logger *zap.Logger,
) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 30 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = cfg.Interval
	}
	return &Sweeper{
		retrievals: retrievals,
		tx:         tx,
		syncer:     syncer,
		enqueuer:   enqueuer,
		pool:       pool,
		redis:      redis,
		config:     cfg,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Run sweeps every interval until ctx is done
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.logger.Info("retrieval sweeper started", zap.Duration("interval", s.config.Interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("retrieval sweeper stopped")
			return
		case <-ticker.C:
			if err := s.SweepOnce(ctx); err != nil {
				s.logger.Error("retrieval sweep failed", zap.Error(err))
			}
		}
	}
}

// SweepOnce runs one sweep unless another replica holds the lock
func (s *Sweeper) SweepOnce(ctx context.Context) error {
	err := s.redis.WithLock(ctx, s.redis.Key(sweepLockKey), s.config.LockTTL, s.sweep)
	if errors.Is(err, pkgredis.ErrLockNotHeld) {
		s.logger.Debug("sweep skipped, lock held elsewhere")
		return nil
	}
	return err
}

func (s *Sweeper) sweep(ctx context.Context) error {
	now := s.now()
	cutoff := now.Add(-s.config.StaleAfter)

	pending, err := s.retrievals.ListByStatus(ctx, types.RetrievalStatusPending, cutoff, s.config.BatchSize)
	if err != nil {
		return fmt.Errorf("list stale pending: %w", err)
	}
	requeued := 0
	for _, r := range pending {
		ok, err := s.requeue(ctx, r.ID)
		if err != nil {
			return err
		}
		if ok {
			requeued++
		}
	}

	running, err := s.retrievals.ListByStatus(ctx, types.RetrievalStatusInProgress, cutoff, s.config.BatchSize)
	if err != nil {
		return fmt.Errorf("list stale in-progress: %w", err)
	}
	expired, err := s.retrievals.ListExpiredReady(ctx, now, s.config.BatchSize)
	if err != nil {
		return fmt.Errorf("list expired ready: %w", err)
	}

	batch := s.pool.NewBatch(ctx)
	for _, r := range append(running, expired...) {
		batch.Go(func(ctx context.Context) error {
			if err := s.syncer.SyncRestoreStatus(ctx, r); err != nil {
				return fmt.Errorf("sync %s: %w", r.ID, err)
			}
			return nil
		})
	}
	err = batch.Wait()

	stats := s.pool.Stats()
	s.logger.Info("retrieval sweep finished",
		zap.Int("requeued", requeued),
		zap.Int("polled", len(running)),
		zap.Int("expired", len(expired)),
		zap.Int64("pool_failed", stats.Failed),
		zap.Int64("pool_panicked", stats.Panicked))
	return err
}

// requeue bumps updated_at of a stale pending retrieval and schedules it
// again. The bump keeps it out of the next sweeps while the task waits in the
// queue, and is rolled back when the enqueue fails.
func (s *Sweeper) requeue(ctx context.Context, id string) (bool, error) {
	queued := false
	err := s.tx.Transaction(ctx, func(ctx context.Context) error {
		pending := []types.RetrievalStatus{types.RetrievalStatusPending}
		ok, err := s.retrievals.Transition(ctx, id, pending, types.RetrievalStatusPending, biz.RetrievalUpdate{})
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := s.enqueuer.Enqueue(ctx, id); err != nil {
			return err
		}
		queued = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("re-enqueue %s: %w", id, err)
	}
	return queued, nil
}
