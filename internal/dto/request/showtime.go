package request

import "time"

type CreateShowtimeRequest struct {
	MovieID          string    `json:"movie_id" validate:"required,max=64"`
	RoomID           string    `json:"room_id" validate:"required,max=64"`
	StartsAt         time.Time `json:"starts_at" validate:"required"`
	RunLengthMinutes int       `json:"run_length_minutes" validate:"required,min=1,max=600"`
	SeatRows         int       `json:"seat_rows" validate:"required,min=1,max=50"`
	SeatColumns      int       `json:"seat_columns" validate:"required,min=1,max=50"`
}

type ReleaseSeatsRequest struct {
	SeatCodes []string `json:"seat_codes" validate:"required,min=1,dive,seatcode"`
}
