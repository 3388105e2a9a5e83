package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"cinema-ticketing/internal/dto/request"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShowtimeService_CreateShowtime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Showtime.CreateShowtime(ctx, &request.CreateShowtimeRequest{
		MovieID:          "tt0133093",
		RoomID:           "imax-1",
		StartsAt:         time.Now().Add(48 * time.Hour),
		RunLengthMinutes: 136,
		SeatRows:         8,
		SeatColumns:      12,
	})
	require.NoError(t, err)
	assert.Equal(t, 96, created.TotalCapacity)
	assert.Equal(t, 96, created.AvailableCapacity)

	seatMap, err := f.svc.Showtime.GetSeatMap(ctx, uuid.MustParse(created.ID))
	require.NoError(t, err)
	assert.Len(t, seatMap.Seats, 96)
}

func TestShowtimeService_CreateShowtimeValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Showtime.CreateShowtime(ctx, &request.CreateShowtimeRequest{
		MovieID:          "tt0133093",
		RoomID:           "imax-1",
		StartsAt:         time.Now().Add(-time.Hour),
		RunLengthMinutes: 136,
		SeatRows:         8,
		SeatColumns:      12,
	})
	var validation *ValidationError
	assert.True(t, errors.As(err, &validation))

	_, err = f.svc.Showtime.CreateShowtime(ctx, &request.CreateShowtimeRequest{
		MovieID:          "tt0133093",
		RoomID:           "imax-1",
		StartsAt:         time.Now().Add(time.Hour),
		RunLengthMinutes: 136,
		SeatRows:         0,
		SeatColumns:      12,
	})
	assert.True(t, errors.As(err, &validation))
}

func TestShowtimeService_GetShowtime(t *testing.T) {
	f := newFixture(t)
	showtime := f.seedShowtime(t, 2, 3)
	ctx := context.Background()

	got, err := f.svc.Showtime.GetShowtime(ctx, showtime.ID)
	require.NoError(t, err)
	assert.Equal(t, showtime.ID.String(), got.ID)
	assert.Equal(t, 6, got.TotalCapacity)
	assert.True(t, got.EndsAt.Equal(showtime.EndsAt()))

	_, err = f.svc.Showtime.GetShowtime(ctx, uuid.New())
	var notFound *NotFoundError
	assert.True(t, errors.As(err, &notFound))
}

func TestShowtimeService_DeleteShowtime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	empty := f.seedShowtime(t, 1, 1)
	require.NoError(t, f.svc.Showtime.DeleteShowtime(ctx, empty.ID))

	err := f.svc.Showtime.DeleteShowtime(ctx, empty.ID)
	var notFound *NotFoundError
	assert.True(t, errors.As(err, &notFound))

	sold := f.seedShowtime(t, 1, 2)
	paymentID := f.book(t, uuid.New(), sold.ID, "R1C1")
	f.settle("ext-sold", paymentID, "approved")
	_, err = f.svc.Webhook.Reconcile(ctx, "ext-sold")
	require.NoError(t, err)

	err = f.svc.Showtime.DeleteShowtime(ctx, sold.ID)
	var validation *ValidationError
	assert.True(t, errors.As(err, &validation))
}

func TestShowtimeService_ReleaseSeatsAndCapacity(t *testing.T) {
	f := newFixture(t)
	showtime := f.seedShowtime(t, 2, 2)
	ctx := context.Background()

	_, err := f.svc.Inventory.Commit(ctx, showtime.ID, []string{"R1C1", "R2C2"})
	require.NoError(t, err)

	change, err := f.svc.Showtime.ReleaseSeats(ctx, showtime.ID, &request.ReleaseSeatsRequest{SeatCodes: []string{"R2C2"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"R2C2"}, change.SeatCodes)
	assert.Equal(t, 3, change.AvailableCapacity)

	report, err := f.svc.Showtime.CheckCapacity(ctx, showtime.ID)
	require.NoError(t, err)
	assert.True(t, report.Consistent)
	assert.Equal(t, 1, report.OccupiedSeats)
	assert.Equal(t, 3, report.AvailableCapacity)

	_, err = f.svc.Showtime.ReleaseSeats(ctx, showtime.ID, &request.ReleaseSeatsRequest{})
	var validation *ValidationError
	assert.True(t, errors.As(err, &validation))
}

func TestShowtimeService_CheckCapacityDetectsDrift(t *testing.T) {
	f := newFixture(t)
	showtime := f.seedShowtime(t, 2, 2)
	ctx := context.Background()

	// counter moved without touching any seat
	_, err := f.store.Repos().Showtime.AdjustAvailable(ctx, showtime.ID, -1)
	require.NoError(t, err)

	report, err := f.svc.Showtime.CheckCapacity(ctx, showtime.ID)
	require.NoError(t, err)
	assert.False(t, report.Consistent)
	assert.Equal(t, 3, report.AvailableCapacity)
	assert.Zero(t, report.OccupiedSeats)
}
