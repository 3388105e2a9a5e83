// Package processor talks to external payment processors. Every
// implementation is constructed with explicit credentials; none of them
// touch package-level SDK state.
package processor

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"
)

var (
	// ErrEventIgnored is returned for notifications that carry nothing to
	// reconcile, such as merchant order or test pings.
	ErrEventIgnored = errors.New("notification ignored")

	ErrInvalidSignature    = errors.New("invalid notification signature")
	ErrInvalidNotification = errors.New("invalid notification payload")
	ErrPaymentNotFound     = errors.New("payment not found at processor")
)

type BackURLs struct {
	Success string
	Pending string
	Failure string
}

type CheckoutRequest struct {
	// CorrelationToken is echoed back by GetPayment; the local payment id
	CorrelationToken string
	Title            string
	Description      string
	Quantity         int
	UnitPrice        decimal.Decimal
	Amount           decimal.Decimal
	Currency         string
	NotificationURL  string
	BackURLs         BackURLs
}

type Checkout struct {
	CheckoutID  string
	RedirectURL string
}

// PaymentInfo is the processor's canonical view of a payment.
type PaymentInfo struct {
	PaymentRef       string
	Status           string // raw processor status
	CorrelationToken string
	PayerEmail       string
	Amount           decimal.Decimal
	Currency         string
}

// Notification is an inbound webhook as received over HTTP.
type Notification struct {
	Body   []byte
	Header http.Header
	Query  url.Values
}

type Processor interface {
	Name() string
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error)

	// GetPayment fetches the canonical state for the id a notification
	// pointed at.
	GetPayment(ctx context.Context, externalEventID string) (*PaymentInfo, error)

	// ParseNotification authenticates a webhook and extracts the id to pass
	// to GetPayment.
	ParseNotification(n Notification) (string, error)
}
