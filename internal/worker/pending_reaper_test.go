package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cinema-ticketing/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeExpirer struct {
	mu      sync.Mutex
	cutoffs []time.Time
	limits  []int
	result  int
	err     error
	calls   chan struct{}
}

func newFakeExpirer(result int, err error) *fakeExpirer {
	return &fakeExpirer{result: result, err: err, calls: make(chan struct{}, 16)}
}

func (f *fakeExpirer) ExpireStale(_ context.Context, cutoff time.Time, limit int) (int, error) {
	f.mu.Lock()
	f.cutoffs = append(f.cutoffs, cutoff)
	f.limits = append(f.limits, limit)
	f.mu.Unlock()

	select {
	case f.calls <- struct{}{}:
	default:
	}
	return f.result, f.err
}

func TestPendingReaper_RunOnce(t *testing.T) {
	expirer := newFakeExpirer(3, nil)
	reaper := NewPendingReaper(expirer, utils.ReaperConfig{PendingTTL: 30 * time.Minute, BatchSize: 25}, zaptest.NewLogger(t))

	now := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	reaper.now = func() time.Time { return now }

	assert.Equal(t, 3, reaper.RunOnce(context.Background()))
	require.Len(t, expirer.cutoffs, 1)
	assert.Equal(t, now.Add(-30*time.Minute), expirer.cutoffs[0])
	assert.Equal(t, 25, expirer.limits[0])
}

func TestPendingReaper_RunOnceError(t *testing.T) {
	expirer := newFakeExpirer(0, errors.New("db down"))
	reaper := NewPendingReaper(expirer, utils.ReaperConfig{}, zaptest.NewLogger(t))

	assert.Zero(t, reaper.RunOnce(context.Background()))
	assert.Equal(t, 100, expirer.limits[0])
}

func TestPendingReaper_StartStop(t *testing.T) {
	expirer := newFakeExpirer(0, nil)
	reaper := NewPendingReaper(expirer, utils.ReaperConfig{Interval: time.Hour}, zaptest.NewLogger(t))

	require.NoError(t, reaper.Start(context.Background()))
	assert.Error(t, reaper.Start(context.Background()))

	// the first sweep runs immediately
	select {
	case <-expirer.calls:
	case <-time.After(2 * time.Second):
		t.Fatal("reaper did not run on start")
	}

	reaper.Stop()
	reaper.Stop()
}

func TestPendingReaper_StopsWithContext(t *testing.T) {
	expirer := newFakeExpirer(0, nil)
	reaper := NewPendingReaper(expirer, utils.ReaperConfig{Interval: time.Hour}, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, reaper.Start(ctx))
	<-expirer.calls
	cancel()

	done := make(chan struct{})
	go func() {
		reaper.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("reaper ignored context cancellation")
	}
}
