package response

import (
	"time"

	"cinema-ticketing/internal/data/entity"

	"github.com/shopspring/decimal"
)

type TicketResponse struct {
	ID          string          `json:"id"`
	PaymentID   string          `json:"payment_id"`
	ShowtimeID  string          `json:"showtime_id"`
	SeatCodes   []string        `json:"seat_codes"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	PurchasedAt time.Time       `json:"purchased_at"`
}

func TicketToResponse(t *entity.Ticket) TicketResponse {
	return TicketResponse{
		ID:          t.ID.String(),
		PaymentID:   t.PaymentID.String(),
		ShowtimeID:  t.ShowtimeID.String(),
		SeatCodes:   t.SeatCodes,
		Quantity:    t.Quantity,
		UnitPrice:   t.UnitPrice,
		TotalAmount: t.TotalAmount,
		PurchasedAt: t.PurchasedAt,
	}
}
