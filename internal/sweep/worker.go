// Package sweep periodically evicts expired shared-cache entries.
package sweep

import (
	"context"
	"log/slog"
	"time"
)

// Evictor removes expired cache entries and reports how many were deleted.
// Satisfied by *cache.Store.
type Evictor interface {
	EvictExpired() (int64, error)
}

// Worker runs the eviction sweep on a fixed interval. It is the only
// actor permitted to delete shared entries for age.
type Worker struct {
	evictor  Evictor
	interval time.Duration
	logger   *slog.Logger
	onSweep  func(count int64)
}

// NewWorker creates a Worker. If interval <= 0, it defaults to one hour.
// onSweep, if non-nil, receives the eviction count of each sweep (used
// to feed metrics).
func NewWorker(evictor Evictor, interval time.Duration, onSweep func(count int64)) *Worker {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Worker{
		evictor:  evictor,
		interval: interval,
		logger:   slog.Default(),
		onSweep:  onSweep,
	}
}

// Run sweeps on the configured interval until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.RunOnce()
		}
	}
}

// RunOnce performs a single sweep.
func (w *Worker) RunOnce() {
	count, err := w.evictor.EvictExpired()
	if err != nil {
		w.logger.Error("cache sweep failed", "error", err)
		return
	}
	if count > 0 {
		w.logger.Info("cache sweep complete", "evicted", count)
	}
	if w.onSweep != nil {
		w.onSweep(count)
	}
}
