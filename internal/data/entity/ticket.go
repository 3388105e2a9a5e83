package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Ticket is written once, when its payment is approved, and never updated.
type Ticket struct {
	ID          uuid.UUID       `db:"id"`
	PaymentID   uuid.UUID       `db:"payment_id"`
	UserID      uuid.UUID       `db:"user_id"`
	ShowtimeID  uuid.UUID       `db:"showtime_id"`
	SeatCodes   []string        `db:"seat_codes"`
	Quantity    int             `db:"quantity"`
	UnitPrice   decimal.Decimal `db:"unit_price"`
	TotalAmount decimal.Decimal `db:"total_amount"`
	PurchasedAt time.Time       `db:"purchased_at"`
}

func (t *Ticket) Clone() *Ticket {
	c := *t
	c.SeatCodes = append([]string(nil), t.SeatCodes...)
	return &c
}
