package worker

import (
	"context"
	"sync"
	"time"

	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/observability"
	"github.com/Sajjad-Khoshdooni/exchange-core-sub000/internal/service"
	"go.uber.org/zap"
)

// LockSweeper periodically materializes expired balance locks as freed.
// Expired locks already stop counting against the available balance; the
// sweeper only keeps the table tidy. Safe for concurrent instances thanks to
// FOR UPDATE SKIP LOCKED.
type LockSweeper struct {
	svc       *service.LockService
	interval  time.Duration
	batchSize int32
	stopCh    chan struct{}
	stopOnce  sync.Once
}

func NewLockSweeper(svc *service.LockService) *LockSweeper {
	return &LockSweeper{
		svc:       svc,
		interval:  30 * time.Second,
		batchSize: 100,
		stopCh:    make(chan struct{}),
	}
}

// WithInterval updates the sweep interval.
func (w *LockSweeper) WithInterval(interval time.Duration) *LockSweeper {
	if interval > 0 {
		w.interval = interval
	}
	return w
}

// WithBatchSize sets the number of locks swept per pass.
func (w *LockSweeper) WithBatchSize(size int32) *LockSweeper {
	if size > 0 {
		w.batchSize = size
	}
	return w
}

// Start blocks and sweeps at the configured interval.
func (w *LockSweeper) Start(ctx context.Context) {
	zap.L().Info("lock sweeper starting", zap.Duration("interval", w.interval), zap.Int32("batch", w.batchSize))
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("lock sweeper context canceled")
			return
		case <-w.stopCh:
			zap.L().Info("lock sweeper stop signal received")
			return
		case <-ticker.C:
			w.sweepOnce(ctx)
		}
	}
}

// Stop stops the running sweep loop.
func (w *LockSweeper) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
}

// Run starts the sweeper in a goroutine and returns a stop function.
func (w *LockSweeper) Run(ctx context.Context) func() {
	go w.Start(ctx)
	return w.Stop
}

// SweepOnce runs a single sweep immediately. Useful for tests and manual
// triggering.
func (w *LockSweeper) SweepOnce(ctx context.Context) (int, error) {
	return w.svc.SweepExpired(ctx, w.batchSize)
}

func (w *LockSweeper) sweepOnce(ctx context.Context) {
	if _, err := w.svc.SweepExpired(ctx, w.batchSize); err != nil {
		observability.IncrementWorkerRun("lock_sweeper", "failed")
		zap.L().Error("lock sweep failed", zap.Error(err))
		return
	}
	observability.IncrementWorkerRun("lock_sweeper", "success")
}
