package wire

import (
	"cinema-ticketing/internal/adaptor"

	"github.com/go-chi/chi/v5"
)

func wireTicket(r chi.Router, ticketHandler *adaptor.TicketHandler, deps Dependencies) {
	// ==================== PROTECTED ROUTES (require auth) ====================
	r.Group(func(r chi.Router) {
		authenticated(r, deps)

		r.Get("/api/user/tickets", ticketHandler.GetUserTickets)
		r.Get("/api/user/tickets/{id}", ticketHandler.GetUserTicket)
	})
}
