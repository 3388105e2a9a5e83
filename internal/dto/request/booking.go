package request

import "github.com/shopspring/decimal"

type CreateBookingRequest struct {
	ShowtimeID string          `json:"showtime_id" validate:"required,uuid"`
	SeatCodes  []string        `json:"seat_codes" validate:"required,min=1,max=10,dive,seatcode"`
	Quantity   int             `json:"quantity" validate:"required,min=1,max=10"`
	UnitPrice  decimal.Decimal `json:"unit_price" validate:"dgt=0"`
	Title      string          `json:"title" validate:"omitempty,max=255"` // shown on the checkout page
}
