package entity

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePaymentStatus(t *testing.T) {
	tests := []struct {
		raw   string
		want  PaymentStatus
		known bool
	}{
		{"approved", PaymentStatusApproved, true},
		{"APPROVED", PaymentStatusApproved, true},
		{"in_process", PaymentStatusInProcess, true},
		{"in_mediation", PaymentStatusInMediation, true},
		{"charged_back", PaymentStatusChargedBack, true},
		{" rejected ", PaymentStatusRejected, true},
		{"refunded", PaymentStatusRefunded, true},
		{"something_new", PaymentStatusPending, false},
		{"", PaymentStatusPending, false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, known := ParsePaymentStatus(tt.raw)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.known, known)
		})
	}
}

func TestPaymentStatus_ReversesApproval(t *testing.T) {
	assert.True(t, PaymentStatusRefunded.ReversesApproval())
	assert.True(t, PaymentStatusChargedBack.ReversesApproval())
	for _, s := range []PaymentStatus{PaymentStatusPending, PaymentStatusApproved, PaymentStatusInProcess, PaymentStatusCancelled, PaymentStatusRejected} {
		assert.False(t, s.ReversesApproval(), s)
	}
}

func TestPayment_LinkTicket(t *testing.T) {
	now := time.Now()

	t.Run("requires approved", func(t *testing.T) {
		p := &Payment{Base: NewBase(now), Status: PaymentStatusPending}
		assert.ErrorIs(t, p.LinkTicket(uuid.New(), now), ErrTicketNotApproved)
		assert.Nil(t, p.TicketID)
	})

	t.Run("links once", func(t *testing.T) {
		p := &Payment{Base: NewBase(now), Status: PaymentStatusApproved}
		first := uuid.New()
		require.NoError(t, p.LinkTicket(first, now))
		assert.ErrorIs(t, p.LinkTicket(uuid.New(), now), ErrTicketAlreadyLinked)
		assert.Equal(t, first, *p.TicketID)
	})
}

func TestPayment_HasBookingContext(t *testing.T) {
	user, showtime := uuid.New(), uuid.New()

	full := &Payment{UserID: &user, ShowtimeID: &showtime, SeatCodes: []string{"R1C1"}, Quantity: 1}
	assert.True(t, full.HasBookingContext())

	outOfBand := &Payment{Quantity: 0}
	assert.False(t, outOfBand.HasBookingContext())

	mismatch := &Payment{UserID: &user, ShowtimeID: &showtime, SeatCodes: []string{"R1C1"}, Quantity: 2}
	assert.False(t, mismatch.HasBookingContext())
}

func TestPayment_CloneIsDeep(t *testing.T) {
	ref := "mp-1"
	p := &Payment{ExternalRef: &ref, SeatCodes: []string{"R1C1"}}
	c := p.Clone()

	*c.ExternalRef = "mp-2"
	c.SeatCodes[0] = "R9C9"

	assert.Equal(t, "mp-1", *p.ExternalRef)
	assert.Equal(t, "R1C1", p.SeatCodes[0])
}
