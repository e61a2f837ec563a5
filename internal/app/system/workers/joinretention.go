// internal/app/system/workers/joinretention.go
package workers

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Pruner deletes join records older than a cutoff.
type Pruner interface {
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// JoinRetention is a background worker that deletes join records once they
// are older than the retention period.
type JoinRetention struct {
	store     Pruner
	log       *zap.Logger
	interval  time.Duration
	retention time.Duration
	now       func() time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewJoinRetention creates the worker.
//
// Parameters:
//   - store: where join records live
//   - logger: zap logger for logging
//   - interval: how often to prune (e.g., 1 hour)
//   - retention: how long a record is kept (e.g., 90 days)
func NewJoinRetention(store Pruner, logger *zap.Logger, interval, retention time.Duration) *JoinRetention {
	return &JoinRetention{
		store:     store,
		log:       logger,
		interval:  interval,
		retention: retention,
		now:       time.Now,
		stopCh:    make(chan struct{}),
	}
}

// Start prunes once and then on every interval until Stop.
func (w *JoinRetention) Start() {
	w.wg.Add(1)
	go w.run()
	w.log.Info("join retention worker started",
		zap.Duration("interval", w.interval),
		zap.Duration("retention", w.retention))
}

// Stop signals the worker to stop and waits for it to finish. It is safe to
// call more than once, and on a worker that was never started.
func (w *JoinRetention) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}

func (w *JoinRetention) run() {
	defer w.wg.Done()

	w.prune()
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			w.log.Info("join retention worker stopped")
			return
		case <-ticker.C:
			w.prune()
		}
	}
}

func (w *JoinRetention) prune() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cutoff := w.now().UTC().Add(-w.retention)
	count, err := w.store.DeleteBefore(ctx, cutoff)
	if err != nil {
		w.log.Error("failed to prune join records", zap.Error(err))
		return
	}
	if count > 0 {
		w.log.Info("pruned join records", zap.Int64("count", count), zap.Time("cutoff", cutoff))
	}
}
