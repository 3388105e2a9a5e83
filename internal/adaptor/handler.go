package adaptor

import (
	"errors"
	"net/http"

	"cinema-ticketing/internal/usecase"
	"cinema-ticketing/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Handler struct {
	Booking  *BookingHandler
	Payment  *PaymentHandler
	Ticket   *TicketHandler
	Showtime *ShowtimeHandler
	Webhook  *WebhookHandler
}

func NewHandler(service *usecase.Service, config *utils.Config, log *zap.Logger) *Handler {
	return &Handler{
		Booking:  NewBookingHandler(service.Payment, log),
		Payment:  NewPaymentHandler(service.Payment, service.Webhook, log),
		Ticket:   NewTicketHandler(service.Ticket, log),
		Showtime: NewShowtimeHandler(service.Showtime, log),
		Webhook:  NewWebhookHandler(service.Webhook, config.App.FrontendURL, log),
	}
}

// handleServiceError maps usecase errors onto HTTP responses
func handleServiceError(w http.ResponseWriter, log *zap.Logger, err error, operation string) {
	var (
		validation *usecase.ValidationError
		notFound   *usecase.NotFoundError
		capacity   *usecase.CapacityExceededError
		external   *usecase.ExternalServiceError
		consistent *usecase.ConsistencyError
	)

	switch {
	case errors.As(err, &validation):
		log.Warn(operation+" validation failed",
			zap.Error(err),
			zap.String("operation", operation))
		utils.ResponseBadRequest(w, err.Error(), validation.Fields)

	case errors.As(err, &notFound):
		log.Warn(operation+" failed - not found",
			zap.Error(err),
			zap.String("operation", operation))
		utils.ResponseNotFound(w, err.Error())

	// ConsistencyError wraps the seat refusal, so it is matched before capacity
	case errors.As(err, &consistent):
		log.Error(operation+" failed - approved payment not fulfilled",
			zap.Error(err),
			zap.String("operation", operation))
		var details any
		if errors.As(consistent.Err, &capacity) {
			details = map[string][]string{"unavailable": capacity.Unavailable}
		}
		utils.ResponseConflict(w, err.Error(), details)

	case errors.As(err, &capacity):
		log.Warn(operation+" failed - seats unavailable",
			zap.Error(err),
			zap.String("operation", operation))
		utils.ResponseConflict(w, "Seats unavailable", map[string][]string{"unavailable": capacity.Unavailable})

	case errors.As(err, &external):
		log.Error(operation+" failed - payment processor",
			zap.Error(err),
			zap.String("operation", operation))
		utils.ResponseBadGateway(w, "Payment processor unavailable, please retry")

	default:
		log.Error("Failed to "+operation,
			zap.Error(err),
			zap.String("operation", operation))
		utils.ResponseInternalError(w, "Internal server error")
	}
}

func parseIDParam(r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func paginationFromQuery(r *http.Request) (page, perPage int) {
	query := r.URL.Query()
	return utils.ParseInt(query.Get("page"), 1), utils.ParseInt(query.Get("per_page"), 10)
}
