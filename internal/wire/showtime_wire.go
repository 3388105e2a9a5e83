package wire

import (
	"cinema-ticketing/internal/adaptor"

	"github.com/go-chi/chi/v5"
)

func wireShowtime(r chi.Router, showtimeHandler *adaptor.ShowtimeHandler, deps Dependencies) {
	// ==================== PUBLIC ROUTES ====================
	// GET /api/showtimes/{id} - Showtime details with live capacity
	r.Get("/api/showtimes/{id}", showtimeHandler.GetShowtime)

	// GET /api/showtimes/{id}/seats - Seat map with occupancy
	r.Get("/api/showtimes/{id}/seats", showtimeHandler.GetSeatMap)

	// ==================== ADMIN ROUTES ====================
	r.Route("/api/admin/showtimes", func(r chi.Router) {
		adminOnly(r, deps)

		r.Post("/", showtimeHandler.CreateShowtime)
		r.Delete("/{id}", showtimeHandler.DeleteShowtime)
		r.Post("/{id}/seats/release", showtimeHandler.ReleaseSeats)
		r.Get("/{id}/capacity", showtimeHandler.CheckCapacity)
	})
}
