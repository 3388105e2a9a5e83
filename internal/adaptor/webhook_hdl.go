package adaptor

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"cinema-ticketing/internal/processor"
	"cinema-ticketing/internal/usecase"
	"cinema-ticketing/pkg/utils"

	"go.uber.org/zap"
)

const maxNotificationBytes = 1 << 20

type WebhookHandler struct {
	service     usecase.WebhookService
	frontendURL string
	log         *zap.Logger
}

func NewWebhookHandler(service usecase.WebhookService, frontendURL string, log *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		service:     service,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		log:         log.With(zap.String("handler", "webhook")),
	}
}

// Notification handles POST /api/payments/webhooks/notification (public).
// Receipt is always acknowledged; the processor redelivers on its own
// schedule and reconciliation is replay-safe.
func (h *WebhookHandler) Notification(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxNotificationBytes))
	if err != nil {
		h.log.Warn("Failed to read notification body", zap.Error(err))
		utils.ResponseSuccess(w, "received", nil)
		return
	}

	result, err := h.service.HandleNotification(r.Context(), processor.Notification{
		Body:   body,
		Header: r.Header,
		Query:  r.URL.Query(),
	})

	switch {
	case errors.Is(err, processor.ErrEventIgnored):
		h.log.Debug("Notification ignored", zap.String("query", r.URL.RawQuery))
	case errors.Is(err, processor.ErrInvalidSignature), errors.Is(err, processor.ErrInvalidNotification):
		h.log.Warn("Notification rejected", zap.Error(err), zap.String("ip", r.RemoteAddr))
	case usecase.IsConsistencyError(err):
		// already logged and audited by the reconciler
	case err != nil:
		h.log.Error("Notification processing failed", zap.Error(err))
	default:
		h.log.Info("Notification processed",
			zap.String("payment_id", result.PaymentID.String()),
			zap.String("status", string(result.Status)),
			zap.Bool("duplicate", result.Duplicate),
		)
	}

	utils.ResponseSuccess(w, "received", nil)
}

// Success handles GET /api/payments/webhooks/success
func (h *WebhookHandler) Success(w http.ResponseWriter, r *http.Request) {
	h.redirect(w, r, "/payment-success")
}

// Pending handles GET /api/payments/webhooks/pending
func (h *WebhookHandler) Pending(w http.ResponseWriter, r *http.Request) {
	h.redirect(w, r, "/payment-pending")
}

// Failure handles GET /api/payments/webhooks/failure
func (h *WebhookHandler) Failure(w http.ResponseWriter, r *http.Request) {
	h.redirect(w, r, "/payment-failure")
}

// redirect forwards the processor's query string so the frontend can show
// which payment the user returned from.
func (h *WebhookHandler) redirect(w http.ResponseWriter, r *http.Request, route string) {
	target := h.frontendURL + route
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}
	http.Redirect(w, r, target, http.StatusFound)
}
