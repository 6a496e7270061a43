package workerpool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

var ErrPoolClosed = errors.New("worker pool is closed")

// Config sizes the pool
type Config struct {
	Workers int `mapstructure:"workers"`
	// MaxBlockingTasks bounds callers waiting for a free worker; 0 is unbounded
	MaxBlockingTasks int           `mapstructure:"max_blocking_tasks"`
	ShutdownTimeout  time.Duration `mapstructure:"shutdown_timeout"`
}

// DefaultConfig returns the default pool configuration
func DefaultConfig() *Config {
	return &Config{
		Workers:         8,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Statistics is a snapshot of task counters
type Statistics struct {
	Submitted int64
	Completed int64
	Failed    int64
	Panicked  int64
	Running   int
}

// Pool runs tasks on a bounded set of ants goroutines
type Pool struct {
	pool   *ants.Pool
	config *Config
	logger *zap.Logger

	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	panicked  atomic.Int64
}

// New creates a worker pool
func New(config *Config, logger *zap.Logger) (*Pool, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Workers <= 0 {
		return nil, fmt.Errorf("worker pool size must be > 0, got %d", config.Workers)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &Pool{config: config, logger: logger}
	antsPool, err := ants.NewPool(config.Workers,
		ants.WithMaxBlockingTasks(config.MaxBlockingTasks),
		ants.WithPanicHandler(func(r interface{}) {
			p.panicked.Add(1)
			logger.Error("worker panic", zap.Any("panic", r))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ants pool: %w", err)
	}
	p.pool = antsPool
	return p, nil
}

// Submit queues task, blocking while every worker is busy
func (p *Pool) Submit(task func()) error {
	if p.pool.IsClosed() {
		return ErrPoolClosed
	}
	p.submitted.Add(1)
	err := p.pool.Submit(func() {
		task()
		p.completed.Add(1)
	})
	if errors.Is(err, ants.ErrPoolClosed) {
		return ErrPoolClosed
	}
	return err
}

// Batch groups tasks submitted together so the caller can wait for all
type Batch struct {
	pool *Pool
	ctx  context.Context
	wg   sync.WaitGroup
	mu   sync.Mutex
	errs []error
}

// NewBatch starts a batch whose tasks receive ctx
func (p *Pool) NewBatch(ctx context.Context) *Batch {
	return &Batch{pool: p, ctx: ctx}
}

// Go submits fn. Tasks are skipped once ctx is done.
func (b *Batch) Go(fn func(ctx context.Context) error) {
	b.wg.Add(1)
	err := b.pool.Submit(func() {
		defer b.wg.Done()
		if err := b.ctx.Err(); err != nil {
			b.record(err)
			return
		}
		if err := fn(b.ctx); err != nil {
			b.pool.failed.Add(1)
			b.record(err)
		}
	})
	if err != nil {
		b.wg.Done()
		b.record(err)
	}
}

// Wait blocks until every task finished and joins their errors
func (b *Batch) Wait() error {
	b.wg.Wait()
	b.mu.Lock()
	defer b.mu.Unlock()
	return errors.Join(b.errs...)
}

func (b *Batch) record(err error) {
	b.mu.Lock()
	b.errs = append(b.errs, err)
	b.mu.Unlock()
}

// Stats returns a snapshot of the task counters
func (p *Pool) Stats() Statistics {
	return Statistics{
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
		Panicked:  p.panicked.Load(),
		Running:   p.pool.Running(),
	}
}

// Shutdown waits for running tasks up to the configured timeout
func (p *Pool) Shutdown() {
	timeout := p.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if err := p.pool.ReleaseTimeout(timeout); err != nil {
		p.logger.Warn("worker pool shutdown timed out", zap.Error(err))
	}
	p.logger.Info("worker pool stopped",
		zap.Int64("submitted", p.submitted.Load()),
		zap.Int64("failed", p.failed.Load()),
	)
}
