package wire

import (
	"net/http"

	"cinema-ticketing/internal/adaptor"
	"cinema-ticketing/internal/data/repository"
	"cinema-ticketing/internal/processor"
	"cinema-ticketing/internal/publisher"
	"cinema-ticketing/internal/usecase"
	"cinema-ticketing/pkg/middleware"
	"cinema-ticketing/pkg/utils"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Dependencies are the constructed infrastructure clients. Redis may be nil,
// which disables idempotent replay of booking requests.
type Dependencies struct {
	Store     repository.Store
	Processor processor.Processor
	Publisher publisher.TicketPublisher
	Redis     middleware.RedisClient
	Config    *utils.Config
	Logger    *zap.Logger
}

// App holds the router and the services behind it
type App struct {
	Router  *chi.Mux
	Service *usecase.Service
}

// Wiring builds services, handlers and routes
func Wiring(deps Dependencies) *App {
	service := usecase.NewService(deps.Store, deps.Processor, deps.Publisher, deps.Config, deps.Logger)
	handler := adaptor.NewHandler(service, deps.Config, deps.Logger)

	router := setupRouter(handler, deps)

	return &App{
		Router:  router,
		Service: service,
	}
}

func setupRouter(handler *adaptor.Handler, deps Dependencies) *chi.Mux {
	r := chi.NewRouter()

	// Apply global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.Recover(deps.Logger))
	r.Use(middleware.CORS(deps.Config.App.FrontendURL))

	// Apply routes
	wireBooking(r, handler.Booking, handler.Payment, deps)
	wireTicket(r, handler.Ticket, deps)
	wireShowtime(r, handler.Showtime, deps)
	wireWebhook(r, handler.Webhook)
	wireAdminPayment(r, handler.Payment, deps)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}

func authenticated(r chi.Router, deps Dependencies) {
	r.Use(middleware.JWTAuth(deps.Config.JWT, deps.Logger))
}

func adminOnly(r chi.Router, deps Dependencies) {
	r.Use(middleware.JWTAuth(deps.Config.JWT, deps.Logger))
	r.Use(middleware.Admin(deps.Logger))
}
