package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Mock is an in-process processor for local runs and tests. Payments are
// registered with SetPayment and served back by GetPayment.
type Mock struct {
	mu          sync.Mutex
	payments    map[string]*PaymentInfo
	checkouts   []CheckoutRequest
	checkoutErr error
	fetchErr    error

	fetches atomic.Int64
}

func NewMock() *Mock {
	return &Mock{payments: make(map[string]*PaymentInfo)}
}

func (m *Mock) Name() string {
	return "mock"
}

func (m *Mock) CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.checkoutErr != nil {
		return nil, m.checkoutErr
	}

	m.checkouts = append(m.checkouts, req)
	id := "pref-" + uuid.NewString()
	return &Checkout{
		CheckoutID:  id,
		RedirectURL: "https://checkout.example.test/" + id,
	}, nil
}

func (m *Mock) GetPayment(ctx context.Context, externalEventID string) (*PaymentInfo, error) {
	m.fetches.Add(1)

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}

	info, ok := m.payments[externalEventID]
	if !ok {
		return nil, fmt.Errorf("get payment %s: %w", externalEventID, ErrPaymentNotFound)
	}
	cp := *info
	return &cp, nil
}

// ParseNotification reads {"data":{"id":"..."}}.
func (m *Mock) ParseNotification(n Notification) (string, error) {
	var body mpNotification
	if err := json.Unmarshal(n.Body, &body); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidNotification, err)
	}
	if body.Type != "" && body.Type != "payment" {
		return "", ErrEventIgnored
	}
	id := rawID(body.Data.ID)
	if id == "" {
		return "", fmt.Errorf("%w: missing payment id", ErrInvalidNotification)
	}
	return id, nil
}

// SetPayment registers (or replaces) what GetPayment returns for eventID.
func (m *Mock) SetPayment(eventID string, info PaymentInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments[eventID] = &info
}

func (m *Mock) FailCheckout(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkoutErr = err
}

func (m *Mock) FailFetch(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchErr = err
}

// Checkouts returns every checkout request received so far.
func (m *Mock) Checkouts() []CheckoutRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]CheckoutRequest(nil), m.checkouts...)
}

// Fetches counts GetPayment calls.
func (m *Mock) Fetches() int64 {
	return m.fetches.Load()
}
