package adaptor

import (
	"net/http"

	"cinema-ticketing/internal/dto/request"
	"cinema-ticketing/internal/usecase"
	"cinema-ticketing/pkg/utils"

	"go.uber.org/zap"
)

type PaymentHandler struct {
	payments usecase.PaymentService
	webhooks usecase.WebhookService
	log      *zap.Logger
}

func NewPaymentHandler(payments usecase.PaymentService, webhooks usecase.WebhookService, log *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		payments: payments,
		webhooks: webhooks,
		log:      log.With(zap.String("handler", "payment")),
	}
}

// GetUserPayments handles GET /api/user/payments (protected)
func (h *PaymentHandler) GetUserPayments(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return
	}

	page, perPage := paginationFromQuery(r)
	req := request.NewPaginatedRequest(page, perPage)

	payments, err := h.payments.GetUserPayments(r.Context(), userID, req)
	if err != nil {
		handleServiceError(w, h.log, err, "get user payments")
		return
	}

	utils.ResponseSuccess(w, "success", payments)
}

// GetUserPayment handles GET /api/user/payments/{id} (protected)
func (h *PaymentHandler) GetUserPayment(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return
	}

	paymentID, ok := parseIDParam(r, "id")
	if !ok {
		utils.ResponseBadRequest(w, "Invalid payment ID", nil)
		return
	}

	payment, err := h.payments.GetUserPayment(r.Context(), userID, paymentID)
	if err != nil {
		handleServiceError(w, h.log, err, "get user payment")
		return
	}

	utils.ResponseSuccess(w, "success", payment)
}

// ==================== ADMIN METHODS ====================

// GetPaymentEvents handles GET /api/admin/payments/{id}/events (admin only)
func (h *PaymentHandler) GetPaymentEvents(w http.ResponseWriter, r *http.Request) {
	paymentID, ok := parseIDParam(r, "id")
	if !ok {
		utils.ResponseBadRequest(w, "Invalid payment ID", nil)
		return
	}

	events, err := h.webhooks.GetPaymentEvents(r.Context(), paymentID)
	if err != nil {
		handleServiceError(w, h.log, err, "get payment events")
		return
	}

	utils.ResponseSuccess(w, "success", events)
}

// FulfilPayment handles POST /api/admin/payments/{id}/fulfil (admin only)
func (h *PaymentHandler) FulfilPayment(w http.ResponseWriter, r *http.Request) {
	paymentID, ok := parseIDParam(r, "id")
	if !ok {
		utils.ResponseBadRequest(w, "Invalid payment ID", nil)
		return
	}

	result, err := h.webhooks.Fulfil(r.Context(), paymentID)
	if err != nil {
		handleServiceError(w, h.log, err, "fulfil payment")
		return
	}

	utils.ResponseSuccess(w, "success", result.ToResponse())
}
