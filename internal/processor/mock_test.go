package processor

import (
	"context"
	"errors"
	"testing"

	"cinema-ticketing/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestMock(t *testing.T) {
	ctx := context.Background()
	m := NewMock()

	checkout, err := m.CreateCheckout(ctx, CheckoutRequest{CorrelationToken: "tok-1", Quantity: 1})
	require.NoError(t, err)
	assert.NotEmpty(t, checkout.CheckoutID)
	require.Len(t, m.Checkouts(), 1)
	assert.Equal(t, "tok-1", m.Checkouts()[0].CorrelationToken)

	_, err = m.GetPayment(ctx, "missing")
	assert.ErrorIs(t, err, ErrPaymentNotFound)

	m.SetPayment("42", PaymentInfo{PaymentRef: "42", Status: "approved"})
	info, err := m.GetPayment(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, "approved", info.Status)
	assert.Equal(t, int64(2), m.Fetches())

	boom := errors.New("boom")
	m.FailCheckout(boom)
	_, err = m.CreateCheckout(ctx, CheckoutRequest{})
	assert.ErrorIs(t, err, boom)

	m.FailFetch(boom)
	_, err = m.GetPayment(ctx, "42")
	assert.ErrorIs(t, err, boom)
}

func TestNew(t *testing.T) {
	log := zaptest.NewLogger(t)

	p, err := New(utils.PaymentConfig{Provider: "mock"}, log)
	require.NoError(t, err)
	assert.Equal(t, "mock", p.Name())

	_, err = New(utils.PaymentConfig{Provider: "paypal"}, log)
	assert.Error(t, err)

	_, err = New(utils.PaymentConfig{Provider: "mercadopago"}, log)
	assert.Error(t, err)

	_, err = New(utils.PaymentConfig{Provider: "stripe"}, log)
	assert.Error(t, err)
}

func TestInstrumentPassesThrough(t *testing.T) {
	m := NewMock()
	m.SetPayment("7", PaymentInfo{PaymentRef: "7", Status: "pending"})

	p := Instrument(m)
	info, err := p.GetPayment(context.Background(), "7")
	require.NoError(t, err)
	assert.Equal(t, "pending", info.Status)
	assert.Equal(t, int64(1), m.Fetches())
}
