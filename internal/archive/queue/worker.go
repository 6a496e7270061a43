package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lk2023060901/coldvault-backend/internal/archive/biz"
	pkgredis "github.com/lk2023060901/coldvault-backend/internal/pkg/redis"
	"go.uber.org/zap"
)

const (
	RestoreQueue = "queue:retrieval:restore"
	InflightSet  = "set:retrieval:restoring"
)

// RestoreTask is one queued restore command
type RestoreTask struct {
	RetrievalID string `json:"retrieval_id"`
	RetryCount  int    `json:"retry_count"`
}

// Processor issues restores and records terminal failures
type Processor interface {
	IssueRestore(ctx context.Context, retrievalID string) error
	FailRetrieval(ctx context.Context, retrievalID, reason string) error
}

// WorkerConfig tunes the restore workers
type WorkerConfig struct {
	Workers      int           `mapstructure:"workers"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	MaxRetries   int           `mapstructure:"max_retries"`
}

// Worker pops restore tasks from a redis list
type Worker struct {
	redis     *pkgredis.Client
	processor Processor
	config    WorkerConfig
	logger    *zap.Logger
	wg        sync.WaitGroup
	stopCh    chan struct{}
	mu        sync.Mutex
	running   bool
}

// NewWorker creates the restore worker
func NewWorker(redis *pkgredis.Client, processor Processor, cfg WorkerConfig, logger *zap.Logger) *Worker {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &Worker{
		redis:     redis,
		processor: processor,
		config:    cfg,
		logger:    logger,
		stopCh:    make(chan struct{}),
	}
}

// Start launches the worker loops
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("worker already running")
	}

	w.running = true
	w.logger.Info("starting restore workers", zap.Int("worker_count", w.config.Workers))

	for i := 0; i < w.config.Workers; i++ {
		w.wg.Add(1)
		go w.processLoop(ctx, i)
	}
	return nil
}

// Stop waits for the loops to finish their current task
func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}

	w.logger.Info("stopping restore workers")
	close(w.stopCh)
	w.wg.Wait()
	w.running = false
	w.logger.Info("all restore workers stopped")
}

// Enqueue schedules IssueRestore for retrievalID
func (w *Worker) Enqueue(ctx context.Context, retrievalID string) error {
	return w.push(ctx, &RestoreTask{RetrievalID: retrievalID})
}

func (w *Worker) push(ctx context.Context, task *RestoreTask) error {
	taskJSON, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}
	if _, err := w.redis.LPush(ctx, w.redis.Key(RestoreQueue), string(taskJSON)); err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	w.logger.Debug("restore enqueued",
		zap.String("retrieval_id", task.RetrievalID),
		zap.Int("retry_count", task.RetryCount))
	return nil
}

func (w *Worker) processLoop(ctx context.Context, workerID int) {
	defer w.wg.Done()

	logger := w.logger.With(zap.Int("worker_id", workerID))
	logger.Info("worker started")

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			logger.Info("worker stopping")
			return
		case <-ctx.Done():
			logger.Info("context cancelled, worker stopping")
			return
		case <-ticker.C:
			w.processNext(ctx, logger)
		}
	}
}

// processNext handles at most one task; it reports whether one was found
func (w *Worker) processNext(ctx context.Context, logger *zap.Logger) bool {
	taskJSON, err := w.redis.RPop(ctx, w.redis.Key(RestoreQueue))
	if err != nil || taskJSON == "" {
		return false
	}

	var task RestoreTask
	if err := json.Unmarshal([]byte(taskJSON), &task); err != nil {
		logger.Error("failed to unmarshal task", zap.Error(err), zap.String("payload", taskJSON))
		return true
	}

	w.processTask(ctx, &task, logger)
	return true
}

func (w *Worker) processTask(ctx context.Context, task *RestoreTask, logger *zap.Logger) {
	logger = logger.With(zap.String("retrieval_id", task.RetrievalID))

	inflight := w.redis.Key(InflightSet)
	if _, err := w.redis.SAdd(ctx, inflight, task.RetrievalID); err != nil {
		logger.Warn("failed to mark retrieval in flight", zap.Error(err))
	}
	err := w.processor.IssueRestore(ctx, task.RetrievalID)
	_, _ = w.redis.SRem(ctx, inflight, task.RetrievalID)

	if err == nil {
		return
	}

	if biz.IsClientError(err) {
		logger.Warn("dropping restore task", zap.Error(err))
		return
	}

	logger.Error("failed to issue restore", zap.Error(err), zap.Int("retry_count", task.RetryCount))
	if task.RetryCount < w.config.MaxRetries {
		task.RetryCount++
		if perr := w.push(ctx, task); perr != nil {
			logger.Error("failed to re-enqueue restore", zap.Error(perr))
		}
		return
	}

	reason := err.Error()
	if !errors.Is(err, biz.ErrRestoreRequestFailed) {
		reason = fmt.Sprintf("restore not issued after %d attempts: %s", task.RetryCount+1, reason)
	}
	if ferr := w.processor.FailRetrieval(ctx, task.RetrievalID, reason); ferr != nil {
		logger.Error("failed to mark retrieval failed", zap.Error(ferr))
	}
}

// QueueSize returns the number of waiting tasks
func (w *Worker) QueueSize(ctx context.Context) (int64, error) {
	return w.redis.LLen(ctx, w.redis.Key(RestoreQueue))
}

// InflightCount returns the number of tasks being processed
func (w *Worker) InflightCount(ctx context.Context) (int64, error) {
	return w.redis.SCard(ctx, w.redis.Key(InflightSet))
}
