package wire

import (
	"cinema-ticketing/internal/adaptor"

	"github.com/go-chi/chi/v5"
)

func wireAdminPayment(r chi.Router, paymentHandler *adaptor.PaymentHandler, deps Dependencies) {
	// ==================== ADMIN ROUTES ====================
	r.Route("/api/admin/payments", func(r chi.Router) {
		adminOnly(r, deps)

		// GET /api/admin/payments/{id}/events - Reconciliation audit trail
		r.Get("/{id}/events", paymentHandler.GetPaymentEvents)

		// POST /api/admin/payments/{id}/fulfil - Retry seat commit and ticket
		// issue for an approved payment left without a ticket
		r.Post("/{id}/fulfil", paymentHandler.FulfilPayment)
	})
}
