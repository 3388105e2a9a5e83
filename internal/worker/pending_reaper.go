package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cinema-ticketing/pkg/telemetry"
	"cinema-ticketing/pkg/utils"

	"go.uber.org/zap"
)

// StaleExpirer cancels abandoned PENDING payments older than cutoff.
type StaleExpirer interface {
	ExpireStale(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

// PendingReaper periodically cancels PENDING payments that never reached
// the processor. Seats are untouched: they were never held.
type PendingReaper struct {
	expirer StaleExpirer
	config  utils.ReaperConfig
	log     *zap.Logger
	now     func() time.Time

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

func NewPendingReaper(expirer StaleExpirer, config utils.ReaperConfig, log *zap.Logger) *PendingReaper {
	if config.Interval <= 0 {
		config.Interval = 10 * time.Minute
	}
	if config.PendingTTL <= 0 {
		config.PendingTTL = 2 * time.Hour
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}

	return &PendingReaper{
		expirer: expirer,
		config:  config,
		log:     log.With(zap.String("worker", "pending_reaper")),
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}
}

func (w *PendingReaper) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("pending reaper already running")
	}
	w.running = true
	w.mu.Unlock()

	w.log.Info("Starting pending reaper",
		zap.Duration("interval", w.config.Interval),
		zap.Duration("pending_ttl", w.config.PendingTTL),
	)

	w.wg.Add(1)
	go w.loop(ctx)

	return nil
}

func (w *PendingReaper) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("Pending reaper stopped")
}

func (w *PendingReaper) loop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	w.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce reaps one batch and returns how many payments were cancelled.
func (w *PendingReaper) RunOnce(ctx context.Context) int {
	cutoff := w.now().Add(-w.config.PendingTTL)

	n, err := w.expirer.ExpireStale(ctx, cutoff, w.config.BatchSize)
	if err != nil {
		w.log.Error("Failed to reap pending payments", zap.Error(err))
		return 0
	}
	if n > 0 {
		telemetry.PendingReaped.Add(float64(n))
		w.log.Info("Reaped stale pending payments", zap.Int("count", n))
	}
	return n
}
