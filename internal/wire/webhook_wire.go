package wire

import (
	"cinema-ticketing/internal/adaptor"

	"github.com/go-chi/chi/v5"
)

func wireWebhook(r chi.Router, webhookHandler *adaptor.WebhookHandler) {
	// ==================== PROCESSOR CALLBACKS (public) ====================
	r.Route("/api/payments/webhooks", func(r chi.Router) {
		// POST notification - asynchronous status change, always acknowledged
		r.Post("/notification", webhookHandler.Notification)

		// GET back URLs - the user's browser returning from checkout
		r.Get("/success", webhookHandler.Success)
		r.Get("/pending", webhookHandler.Pending)
		r.Get("/failure", webhookHandler.Failure)
	})
}
