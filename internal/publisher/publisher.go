// Package publisher announces issued tickets to downstream consumers.
// Delivery is best-effort: the ticket is already committed when an event is
// published.
package publisher

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type TicketIssued struct {
	TicketID    string          `json:"ticket_id"`
	PaymentID   string          `json:"payment_id"`
	UserID      string          `json:"user_id"`
	ShowtimeID  string          `json:"showtime_id"`
	SeatCodes   []string        `json:"seat_codes"`
	Quantity    int             `json:"quantity"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Currency    string          `json:"currency"`
	PurchasedAt time.Time       `json:"purchased_at"`
}

type TicketPublisher interface {
	PublishTicketIssued(ctx context.Context, event TicketIssued) error
	Close()
}

type noop struct{}

// NewNoop returns a publisher that drops every event.
func NewNoop() TicketPublisher {
	return noop{}
}

func (noop) PublishTicketIssued(context.Context, TicketIssued) error { return nil }

func (noop) Close() {}
