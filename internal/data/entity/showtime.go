package entity

import (
	"time"
)

type Showtime struct {
	Base
	MovieID           string    `db:"movie_id"` // catalog reference, e.g. an IMDb id
	RoomID            string    `db:"room_id"`
	StartsAt          time.Time `db:"starts_at"`
	RunLengthMinutes  int       `db:"run_length_minutes"`
	SeatRows          int       `db:"seat_rows"`
	SeatColumns       int       `db:"seat_columns"`
	TotalCapacity     int       `db:"total_capacity"`
	AvailableCapacity int       `db:"available_capacity"`
	Enabled           bool      `db:"enabled"`
}

// NewShowtime builds an enabled showtime whose capacity equals its seat grid.
func NewShowtime(movieID, roomID string, startsAt time.Time, runLength, rows, columns int, now time.Time) *Showtime {
	capacity := rows * columns
	return &Showtime{
		Base:              NewBase(now),
		MovieID:           movieID,
		RoomID:            roomID,
		StartsAt:          startsAt,
		RunLengthMinutes:  runLength,
		SeatRows:          rows,
		SeatColumns:       columns,
		TotalCapacity:     capacity,
		AvailableCapacity: capacity,
		Enabled:           true,
	}
}

func (s *Showtime) EndsAt() time.Time {
	return s.StartsAt.Add(time.Duration(s.RunLengthMinutes) * time.Minute)
}

func (s *Showtime) HasStarted(now time.Time) bool {
	return !now.Before(s.StartsAt)
}

// Contains reports whether the position lies inside the seat grid.
func (s *Showtime) Contains(p SeatPosition) bool {
	return p.Row >= 1 && p.Row <= s.SeatRows && p.Column >= 1 && p.Column <= s.SeatColumns
}

// GenerateSeats returns one free seat per grid position, row-major.
func (s *Showtime) GenerateSeats(now time.Time) []*Seat {
	seats := make([]*Seat, 0, s.SeatRows*s.SeatColumns)
	for row := 1; row <= s.SeatRows; row++ {
		for col := 1; col <= s.SeatColumns; col++ {
			seats = append(seats, &Seat{
				Base:       NewBase(now),
				ShowtimeID: s.ID,
				Row:        row,
				Column:     col,
			})
		}
	}
	return seats
}
