package entity

import (
	"time"

	"github.com/google/uuid"
)

type EventSource string

const (
	EventSourceCheckout EventSource = "checkout"
	EventSourceWebhook  EventSource = "webhook"
	EventSourceReaper   EventSource = "reaper"
	EventSourceManual   EventSource = "manual"
)

// PaymentEvent is one append-only audit row. PaymentID is nil when the
// notification could not be resolved to a ledger entry.
type PaymentEvent struct {
	ID              uuid.UUID      `db:"id"`
	PaymentID       *uuid.UUID     `db:"payment_id"`
	ExternalRef     *string        `db:"external_ref"`
	Source          EventSource    `db:"source"`
	RawStatus       string         `db:"raw_status"`
	ResultingStatus *PaymentStatus `db:"resulting_status"`
	ErrorText       *string        `db:"error_text"`
	LoggedAt        time.Time      `db:"logged_at"`
}
