package entity

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending     PaymentStatus = "PENDING"
	PaymentStatusApproved    PaymentStatus = "APPROVED"
	PaymentStatusAuthorized  PaymentStatus = "AUTHORIZED"
	PaymentStatusInProcess   PaymentStatus = "IN_PROCESS"
	PaymentStatusInMediation PaymentStatus = "IN_MEDIATION"
	PaymentStatusRejected    PaymentStatus = "REJECTED"
	PaymentStatusCancelled   PaymentStatus = "CANCELLED"
	PaymentStatusRefunded    PaymentStatus = "REFUNDED"
	PaymentStatusChargedBack PaymentStatus = "CHARGED_BACK"
)

var knownStatuses = map[PaymentStatus]struct{}{
	PaymentStatusPending:     {},
	PaymentStatusApproved:    {},
	PaymentStatusAuthorized:  {},
	PaymentStatusInProcess:   {},
	PaymentStatusInMediation: {},
	PaymentStatusRejected:    {},
	PaymentStatusCancelled:   {},
	PaymentStatusRefunded:    {},
	PaymentStatusChargedBack: {},
}

// ParsePaymentStatus maps a processor status string onto the enum. Unknown
// strings come back as PENDING with known=false.
func ParsePaymentStatus(raw string) (status PaymentStatus, known bool) {
	s := PaymentStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if _, ok := knownStatuses[s]; ok {
		return s, true
	}
	return PaymentStatusPending, false
}

// ReversesApproval reports whether the status returns the buyer's money.
func (s PaymentStatus) ReversesApproval() bool {
	return s == PaymentStatusRefunded || s == PaymentStatusChargedBack
}

var (
	ErrTicketAlreadyLinked = errors.New("payment already has a ticket")
	ErrTicketNotApproved   = errors.New("ticket can only be linked to an approved payment")
)

type Payment struct {
	Base
	ExternalRef *string         `db:"external_ref"` // processor payment id, unique once set
	CheckoutID  *string         `db:"checkout_id"`  // preference / checkout session id
	UserID      *uuid.UUID      `db:"user_id"`      // nil for payments first seen via webhook
	ShowtimeID  *uuid.UUID      `db:"showtime_id"`
	SeatCodes   []string        `db:"seat_codes"`
	Quantity    int             `db:"quantity"`
	UnitPrice   decimal.Decimal `db:"unit_price"`
	TotalAmount decimal.Decimal `db:"total_amount"`
	Currency    string          `db:"currency"`
	PayerEmail  *string         `db:"payer_email"`
	Status      PaymentStatus   `db:"status"`
	TicketID    *uuid.UUID      `db:"ticket_id"`
}

func (p *Payment) HasTicket() bool {
	return p.TicketID != nil
}

// HasBookingContext reports whether the entry carries enough to commit seats
// and issue a ticket.
func (p *Payment) HasBookingContext() bool {
	return p.UserID != nil && p.ShowtimeID != nil && len(p.SeatCodes) > 0 && p.Quantity == len(p.SeatCodes)
}

// LinkTicket sets the ticket reference. It is allowed once, and only while
// the entry is APPROVED.
func (p *Payment) LinkTicket(ticketID uuid.UUID, now time.Time) error {
	if p.TicketID != nil {
		return ErrTicketAlreadyLinked
	}
	if p.Status != PaymentStatusApproved {
		return ErrTicketNotApproved
	}
	p.TicketID = &ticketID
	p.UpdatedAt = now
	return nil
}

// Clone returns a deep copy.
func (p *Payment) Clone() *Payment {
	c := *p
	c.SeatCodes = append([]string(nil), p.SeatCodes...)
	c.ExternalRef = clonePtr(p.ExternalRef)
	c.CheckoutID = clonePtr(p.CheckoutID)
	c.UserID = clonePtr(p.UserID)
	c.ShowtimeID = clonePtr(p.ShowtimeID)
	c.PayerEmail = clonePtr(p.PayerEmail)
	c.TicketID = clonePtr(p.TicketID)
	return &c
}

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
