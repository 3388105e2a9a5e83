package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeatInventory_Commit(t *testing.T) {
	f := newFixture(t)
	showtime := f.seedShowtime(t, 3, 3)

	change, err := f.svc.Inventory.Commit(context.Background(), showtime.ID, []string{"R1C1", "r2c3"})
	require.NoError(t, err)

	assert.Equal(t, []string{"R1C1", "R2C3"}, change.SeatCodes)
	assert.Equal(t, 7, change.AvailableCapacity)
	assert.Equal(t, 2, f.occupied(t, showtime.ID))
	f.assertCapacityInvariant(t, showtime.ID)
}

func TestSeatInventory_CommitIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	showtime := f.seedShowtime(t, 2, 2)
	ctx := context.Background()

	_, err := f.svc.Inventory.Commit(ctx, showtime.ID, []string{"R1C2"})
	require.NoError(t, err)

	_, err = f.svc.Inventory.Commit(ctx, showtime.ID, []string{"R1C1", "R1C2", "R2C2"})

	var capacity *CapacityExceededError
	require.True(t, errors.As(err, &capacity))
	assert.Equal(t, []string{"R1C2"}, capacity.Unavailable)
	assert.Equal(t, 1, f.occupied(t, showtime.ID))
	f.assertCapacityInvariant(t, showtime.ID)
}

func TestSeatInventory_CommitOutsideGrid(t *testing.T) {
	f := newFixture(t)
	showtime := f.seedShowtime(t, 2, 2)

	_, err := f.svc.Inventory.Commit(context.Background(), showtime.ID, []string{"R1C1", "R5C1", "R2C9"})

	var capacity *CapacityExceededError
	require.True(t, errors.As(err, &capacity))
	assert.Equal(t, []string{"R2C9", "R5C1"}, capacity.Unavailable)
	assert.Zero(t, f.occupied(t, showtime.ID))
}

func TestSeatInventory_CommitErrors(t *testing.T) {
	f := newFixture(t)
	showtime := f.seedShowtime(t, 2, 2)
	ctx := context.Background()

	t.Run("unknown showtime", func(t *testing.T) {
		_, err := f.svc.Inventory.Commit(ctx, uuid.New(), []string{"R1C1"})
		var notFound *NotFoundError
		assert.True(t, errors.As(err, &notFound))
	})

	t.Run("malformed code", func(t *testing.T) {
		_, err := f.svc.Inventory.Commit(ctx, showtime.ID, []string{"A1"})
		var validation *ValidationError
		assert.True(t, errors.As(err, &validation))
	})

	t.Run("duplicate code", func(t *testing.T) {
		_, err := f.svc.Inventory.Commit(ctx, showtime.ID, []string{"R1C1", "R1C1"})
		var validation *ValidationError
		assert.True(t, errors.As(err, &validation))
	})

	assert.Zero(t, f.occupied(t, showtime.ID))
}

func TestSeatInventory_ConcurrentOverlappingCommits(t *testing.T) {
	assertOneWinnerAmongOverlappingCommits(t, newFixture(t))
}

// assertOneWinnerAmongOverlappingCommits races batches that all share R1C1.
func assertOneWinnerAmongOverlappingCommits(t *testing.T, f *fixture) {
	t.Helper()
	showtime := f.seedShowtime(t, 4, 4)

	const workers = 16
	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		refused   atomic.Int32
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// every batch shares R1C1
			codes := []string{"R1C1", fmt.Sprintf("R%dC%d", i/4+1, i%4+1)}
			if codes[1] == "R1C1" {
				codes = codes[:1]
			}
			_, err := f.svc.Inventory.Commit(context.Background(), showtime.ID, codes)
			var capacity *CapacityExceededError
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.As(err, &capacity):
				refused.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), succeeded.Load())
	assert.Equal(t, int32(workers-1), refused.Load())
	f.assertCapacityInvariant(t, showtime.ID)
}

func TestSeatInventory_Release(t *testing.T) {
	f := newFixture(t)
	showtime := f.seedShowtime(t, 2, 3)
	ctx := context.Background()

	_, err := f.svc.Inventory.Commit(ctx, showtime.ID, []string{"R1C1", "R1C2", "R2C3"})
	require.NoError(t, err)

	change, err := f.svc.Inventory.Release(ctx, showtime.ID, []string{"R1C2", "R2C1", "R9C9"})
	require.NoError(t, err)
	assert.Equal(t, []string{"R1C2"}, change.SeatCodes)
	assert.Equal(t, 4, change.AvailableCapacity)
	f.assertCapacityInvariant(t, showtime.ID)

	again, err := f.svc.Inventory.Release(ctx, showtime.ID, []string{"R1C2"})
	require.NoError(t, err)
	assert.Empty(t, again.SeatCodes)
	assert.Equal(t, 4, again.AvailableCapacity)
}

func TestSeatInventory_SeatMap(t *testing.T) {
	f := newFixture(t)
	showtime := f.seedShowtime(t, 2, 2)
	ctx := context.Background()

	_, err := f.svc.Inventory.Commit(ctx, showtime.ID, []string{"R2C1"})
	require.NoError(t, err)

	seatMap, err := f.svc.Inventory.SeatMap(ctx, showtime.ID)
	require.NoError(t, err)
	require.Len(t, seatMap.Seats, 4)
	assert.Equal(t, 3, seatMap.Showtime.AvailableCapacity)

	occupied := map[string]bool{}
	for _, s := range seatMap.Seats {
		occupied[s.Code] = s.Occupied
	}
	assert.Equal(t, map[string]bool{"R1C1": false, "R1C2": false, "R2C1": true, "R2C2": false}, occupied)

	_, err = f.svc.Inventory.SeatMap(ctx, uuid.New())
	var notFound *NotFoundError
	assert.True(t, errors.As(err, &notFound))
}
