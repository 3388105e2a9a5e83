package entity

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeatCode_RoundTrip(t *testing.T) {
	for row := 1; row <= 30; row++ {
		for col := 1; col <= 30; col++ {
			p, err := ParseSeatCode(SeatCode(row, col))
			require.NoError(t, err)
			assert.Equal(t, SeatPosition{Row: row, Column: col}, p)
		}
	}
}

func TestParseSeatCode(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		want    SeatPosition
		wantErr bool
	}{
		{name: "canonical", code: "R3C7", want: SeatPosition{Row: 3, Column: 7}},
		{name: "lowercase", code: "r12c4", want: SeatPosition{Row: 12, Column: 4}},
		{name: "surrounding space", code: " R1C1 ", want: SeatPosition{Row: 1, Column: 1}},
		{name: "zero row", code: "R0C1", wantErr: true},
		{name: "zero column", code: "R1C0", wantErr: true},
		{name: "missing column", code: "R1", wantErr: true},
		{name: "reversed", code: "C1R1", wantErr: true},
		{name: "negative", code: "R-1C2", wantErr: true},
		{name: "empty", code: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSeatCode(tt.code)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidSeatCode))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseSeatCodes(t *testing.T) {
	t.Run("keeps request order", func(t *testing.T) {
		got, err := ParseSeatCodes([]string{"R2C1", "R1C5"})
		require.NoError(t, err)
		assert.Equal(t, []string{"R2C1", "R1C5"}, SeatCodes(got))
	})

	t.Run("rejects duplicates across case", func(t *testing.T) {
		_, err := ParseSeatCodes([]string{"R1C1", "r1c1"})
		assert.ErrorIs(t, err, ErrDuplicateSeatCode)
	})

	t.Run("rejects empty batch", func(t *testing.T) {
		_, err := ParseSeatCodes(nil)
		assert.ErrorIs(t, err, ErrNoSeatCodes)
	})
}

func TestShowtime_GridAndSeats(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewShowtime("tt0111161", "room-1", now.Add(48*time.Hour), 142, 3, 4, now)

	assert.Equal(t, 12, s.TotalCapacity)
	assert.Equal(t, 12, s.AvailableCapacity)
	assert.Equal(t, now.Add(48*time.Hour+142*time.Minute), s.EndsAt())
	assert.False(t, s.HasStarted(now))
	assert.True(t, s.HasStarted(s.StartsAt))

	assert.True(t, s.Contains(SeatPosition{Row: 3, Column: 4}))
	assert.False(t, s.Contains(SeatPosition{Row: 4, Column: 1}))
	assert.False(t, s.Contains(SeatPosition{Row: 1, Column: 5}))

	seats := s.GenerateSeats(now)
	require.Len(t, seats, 12)
	assert.Equal(t, "R1C1", seats[0].Code())
	assert.Equal(t, "R3C4", seats[11].Code())
	for _, seat := range seats {
		assert.Equal(t, s.ID, seat.ShowtimeID)
		assert.False(t, seat.Occupied)
	}
}
