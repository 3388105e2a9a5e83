package response

import (
	"time"

	"cinema-ticketing/internal/data/entity"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentResponse struct {
	ID          string               `json:"id"`
	ExternalRef *string              `json:"external_ref,omitempty"`
	CheckoutID  *string              `json:"checkout_id,omitempty"`
	ShowtimeID  *string              `json:"showtime_id,omitempty"`
	SeatCodes   []string             `json:"seat_codes"`
	Quantity    int                  `json:"quantity"`
	UnitPrice   decimal.Decimal      `json:"unit_price"`
	TotalAmount decimal.Decimal      `json:"total_amount"`
	Currency    string               `json:"currency"`
	Status      entity.PaymentStatus `json:"status"`
	TicketID    *string              `json:"ticket_id,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

type PaymentEventResponse struct {
	ID              string                `json:"id"`
	PaymentID       *string               `json:"payment_id,omitempty"`
	ExternalRef     *string               `json:"external_ref,omitempty"`
	Source          entity.EventSource    `json:"source"`
	RawStatus       string                `json:"raw_status"`
	ResultingStatus *entity.PaymentStatus `json:"resulting_status,omitempty"`
	Error           *string               `json:"error,omitempty"`
	LoggedAt        time.Time             `json:"logged_at"`
}

// ReconcileResponse summarises one reconciliation or manual fulfilment.
type ReconcileResponse struct {
	PaymentID string               `json:"payment_id"`
	Status    entity.PaymentStatus `json:"status"`
	TicketID  *string              `json:"ticket_id,omitempty"`
	Duplicate bool                 `json:"duplicate"`
}

func PaymentToResponse(p *entity.Payment) PaymentResponse {
	seatCodes := p.SeatCodes
	if seatCodes == nil {
		seatCodes = []string{}
	}

	return PaymentResponse{
		ID:          p.ID.String(),
		ExternalRef: p.ExternalRef,
		CheckoutID:  p.CheckoutID,
		ShowtimeID:  uuidString(p.ShowtimeID),
		SeatCodes:   seatCodes,
		Quantity:    p.Quantity,
		UnitPrice:   p.UnitPrice,
		TotalAmount: p.TotalAmount,
		Currency:    p.Currency,
		Status:      p.Status,
		TicketID:    uuidString(p.TicketID),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func PaymentEventToResponse(e *entity.PaymentEvent) PaymentEventResponse {
	return PaymentEventResponse{
		ID:              e.ID.String(),
		PaymentID:       uuidString(e.PaymentID),
		ExternalRef:     e.ExternalRef,
		Source:          e.Source,
		RawStatus:       e.RawStatus,
		ResultingStatus: e.ResultingStatus,
		Error:           e.ErrorText,
		LoggedAt:        e.LoggedAt,
	}
}

func uuidString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}
