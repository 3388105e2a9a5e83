package wire

import (
	"cinema-ticketing/internal/adaptor"
	"cinema-ticketing/pkg/middleware"

	"github.com/go-chi/chi/v5"
)

func wireBooking(
	r chi.Router,
	bookingHandler *adaptor.BookingHandler,
	paymentHandler *adaptor.PaymentHandler,
	deps Dependencies,
) {
	// ==================== PROTECTED ROUTES (require auth) ====================
	r.Group(func(r chi.Router) {
		authenticated(r, deps)

		// POST /api/bookings - Start a payment attempt and get a checkout URL.
		// A repeated X-Idempotency-Key replays the first response.
		r.With(middleware.Idempotency(middleware.IdempotencyConfig{
			Redis:  deps.Redis,
			TTL:    deps.Config.Redis.IdempotencyTTL,
			Logger: deps.Logger,
		})).Post("/api/bookings", bookingHandler.CreateBooking)

		// GET /api/user/payments - Payment history (user's own)
		r.Get("/api/user/payments", paymentHandler.GetUserPayments)

		// GET /api/user/payments/{id} - One payment (user's own)
		r.Get("/api/user/payments/{id}", paymentHandler.GetUserPayment)
	})
}
