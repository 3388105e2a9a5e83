package response

import (
	"time"

	"cinema-ticketing/internal/data/entity"
)

type ShowtimeResponse struct {
	ID                string    `json:"id"`
	MovieID           string    `json:"movie_id"`
	RoomID            string    `json:"room_id"`
	StartsAt          time.Time `json:"starts_at"`
	EndsAt            time.Time `json:"ends_at"`
	SeatRows          int       `json:"seat_rows"`
	SeatColumns       int       `json:"seat_columns"`
	TotalCapacity     int       `json:"total_capacity"`
	AvailableCapacity int       `json:"available_capacity"`
	Enabled           bool      `json:"enabled"`
}

type SeatResponse struct {
	Code     string `json:"code"`
	Row      int    `json:"row"`
	Column   int    `json:"column"`
	Occupied bool   `json:"occupied"`
}

type SeatMapResponse struct {
	Showtime ShowtimeResponse `json:"showtime"`
	Seats    []SeatResponse   `json:"seats"`
}

// SeatChangeResponse reports a commit or release against one showtime.
type SeatChangeResponse struct {
	ShowtimeID        string   `json:"showtime_id"`
	SeatCodes         []string `json:"seat_codes"`
	AvailableCapacity int      `json:"available_capacity"`
}

func ShowtimeToResponse(s *entity.Showtime) ShowtimeResponse {
	return ShowtimeResponse{
		ID:                s.ID.String(),
		MovieID:           s.MovieID,
		RoomID:            s.RoomID,
		StartsAt:          s.StartsAt,
		EndsAt:            s.EndsAt(),
		SeatRows:          s.SeatRows,
		SeatColumns:       s.SeatColumns,
		TotalCapacity:     s.TotalCapacity,
		AvailableCapacity: s.AvailableCapacity,
		Enabled:           s.Enabled,
	}
}

func SeatToResponse(s *entity.Seat) SeatResponse {
	return SeatResponse{
		Code:     s.Code(),
		Row:      s.Row,
		Column:   s.Column,
		Occupied: s.Occupied,
	}
}

type CapacityReportResponse struct {
	ShowtimeID        string `json:"showtime_id"`
	TotalCapacity     int    `json:"total_capacity"`
	AvailableCapacity int    `json:"available_capacity"`
	OccupiedSeats     int    `json:"occupied_seats"`
	Consistent        bool   `json:"consistent"`
}
