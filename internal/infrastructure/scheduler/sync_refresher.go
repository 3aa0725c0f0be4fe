package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Refresher re-syncs cached source data
type Refresher interface {
	RefreshAll(ctx context.Context) error
}

// SyncRefresherConfig holds configuration for the sync refresher
type SyncRefresherConfig struct {
	// Schedule is a cron spec with a leading seconds field, e.g. "0 0 3 * * *"
	Schedule string
	// JobTimeout bounds one refresh
	JobTimeout time.Duration
}

// SyncRefresher periodically refreshes the sync cache of every project.
// A tick that fires while the previous refresh is still running is skipped.
type SyncRefresher struct {
	config    SyncRefresherConfig
	refresher Refresher
	logger    *zap.Logger

	cron      *cron.Cron
	running   atomic.Bool
	baseCtx   context.Context
	cancel    context.CancelFunc
	mu        sync.Mutex
	isRunning bool
}

// NewSyncRefresher creates a refresher; the schedule is validated here
func NewSyncRefresher(config SyncRefresherConfig, refresher Refresher, logger *zap.Logger) (*SyncRefresher, error) {
	if config.JobTimeout <= 0 {
		config.JobTimeout = 30 * time.Minute
	}
	r := &SyncRefresher{
		config:    config,
		refresher: refresher,
		logger:    logger.Named("sync-refresher"),
		cron:      cron.New(cron.WithSeconds()),
	}
	if _, err := r.cron.AddFunc(config.Schedule, r.tick); err != nil {
		return nil, fmt.Errorf("%w: schedule %q: %v", ErrInvalidConfig, config.Schedule, err)
	}
	return r, nil
}

// Start starts the cron loop. Refreshes run under ctx.
func (r *SyncRefresher) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.isRunning {
		return nil
	}
	r.isRunning = true
	r.baseCtx, r.cancel = context.WithCancel(ctx)
	r.cron.Start()

	r.logger.Info("Sync refresher started", zap.String("schedule", r.config.Schedule))
	return nil
}

// Stop stops the cron loop, cancels a running refresh and waits for it
func (r *SyncRefresher) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.isRunning {
		r.mu.Unlock()
		return nil
	}
	r.isRunning = false
	cancel := r.cancel
	r.mu.Unlock()

	cancel()
	stopped := r.cron.Stop()
	select {
	case <-stopped.Done():
		r.logger.Info("Sync refresher stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *SyncRefresher) tick() {
	r.mu.Lock()
	ctx := r.baseCtx
	r.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := r.TriggerNow(ctx); err != nil && !errors.Is(err, ErrRefreshInProgress) {
		r.logger.Error("Scheduled sync refresh failed", zap.Error(err))
	}
}

// TriggerNow runs one refresh synchronously. It returns
// ErrRefreshInProgress if a refresh is already running.
func (r *SyncRefresher) TriggerNow(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		r.logger.Info("Skipping sync refresh, previous one still running")
		return ErrRefreshInProgress
	}
	defer r.running.Store(false)

	ctx, cancel := context.WithTimeout(ctx, r.config.JobTimeout)
	defer cancel()

	start := time.Now()
	r.logger.Info("Sync refresh started")
	if err := r.refresher.RefreshAll(ctx); err != nil {
		return err
	}
	r.logger.Info("Sync refresh finished", zap.Duration("elapsed", time.Since(start)))
	return nil
}
