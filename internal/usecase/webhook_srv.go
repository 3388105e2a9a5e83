package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cinema-ticketing/internal/data/entity"
	"cinema-ticketing/internal/data/repository"
	"cinema-ticketing/internal/dto/response"
	"cinema-ticketing/internal/processor"
	"cinema-ticketing/internal/publisher"
	"cinema-ticketing/pkg/telemetry"
	"cinema-ticketing/pkg/utils"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ReconcileResult describes what one notification (or manual fulfilment)
// did to the ledger.
type ReconcileResult struct {
	PaymentID uuid.UUID
	Status    entity.PaymentStatus
	TicketID  *uuid.UUID
	Created   bool // entry was first seen through this notification
	Duplicate bool // ticket already linked, nothing changed
	Warning   error
}

func (r *ReconcileResult) ToResponse() response.ReconcileResponse {
	resp := response.ReconcileResponse{
		PaymentID: r.PaymentID.String(),
		Status:    r.Status,
		Duplicate: r.Duplicate,
	}
	if r.TicketID != nil {
		id := r.TicketID.String()
		resp.TicketID = &id
	}
	return resp
}

type WebhookService interface {
	// HandleNotification authenticates an inbound webhook and reconciles
	// the payment it points at.
	HandleNotification(ctx context.Context, n processor.Notification) (*ReconcileResult, error)

	// Reconcile fetches the canonical payment state and applies it. Replays
	// of the same event are harmless.
	Reconcile(ctx context.Context, externalEventID string) (*ReconcileResult, error)

	// Fulfil retries seat commit and ticket issue for an APPROVED payment
	// that has no ticket.
	Fulfil(ctx context.Context, paymentID uuid.UUID) (*ReconcileResult, error)

	GetPaymentEvents(ctx context.Context, paymentID uuid.UUID) ([]response.PaymentEventResponse, error)
}

type webhookService struct {
	store     repository.Store
	inventory SeatInventory
	tickets   TicketService
	processor processor.Processor
	publisher publisher.TicketPublisher
	config    *utils.Config
	log       *zap.Logger

	fetches singleflight.Group
}

func NewWebhookService(
	store repository.Store,
	inventory SeatInventory,
	tickets TicketService,
	proc processor.Processor,
	pub publisher.TicketPublisher,
	config *utils.Config,
	log *zap.Logger,
) WebhookService {
	return &webhookService{
		store:     store,
		inventory: inventory,
		tickets:   tickets,
		processor: proc,
		publisher: pub,
		config:    config,
		log:       log.With(zap.String("service", "webhook")),
	}
}

func (s *webhookService) HandleNotification(ctx context.Context, n processor.Notification) (*ReconcileResult, error) {
	eventID, err := s.processor.ParseNotification(n)
	if err != nil {
		return nil, err
	}
	return s.Reconcile(ctx, eventID)
}

func (s *webhookService) Reconcile(ctx context.Context, externalEventID string) (*ReconcileResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "webhook.reconcile", attribute.String("external_event_id", externalEventID))
	defer span.End()

	info, err := s.fetch(ctx, externalEventID)
	if err != nil {
		s.log.Error("Failed to fetch payment from processor",
			zap.Error(err),
			zap.String("external_event_id", externalEventID),
		)
		s.recordFailure(ctx, nil, externalEventID, "", err)
		telemetry.WebhooksReconciled.WithLabelValues("", "fetch_failed").Inc()
		span.SetStatus(codes.Error, err.Error())
		return nil, &ExternalServiceError{Op: "get payment", Err: err}
	}

	status, known := entity.ParsePaymentStatus(info.Status)
	var warning error
	if !known {
		warning = &UnknownStatusWarning{Raw: info.Status}
		s.log.Warn("Unknown processor status",
			zap.String("raw_status", info.Status),
			zap.String("external_event_id", externalEventID),
		)
	}

	var (
		result      ReconcileResult
		issued      *entity.Ticket
		consistency *ConsistencyError
	)

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx *repository.Repository) error {
		result, issued, consistency = ReconcileResult{Warning: warning}, nil, nil

		payment, created, err := s.resolve(ctx, tx, info)
		if err != nil {
			return err
		}
		result.PaymentID = payment.ID
		result.Created = created

		if payment.HasTicket() {
			result.Duplicate = true
			result.Status = payment.Status
			result.TicketID = payment.TicketID
			return tx.PaymentEvent.Create(ctx, newPaymentEvent(payment, entity.EventSourceWebhook, info.Status, errorText(warning)))
		}

		previous := payment.Status
		next := status
		var held error
		// an approval without a ticket waits for an operator; only a
		// reversal of the money may move it
		if previous == entity.PaymentStatusApproved && next != entity.PaymentStatusApproved && !next.ReversesApproval() {
			held = fmt.Errorf("status %s not applied, approved payment awaits fulfilment", next)
			next = entity.PaymentStatusApproved
			s.log.Warn("Approved payment held",
				zap.String("payment_id", payment.ID.String()),
				zap.String("raw_status", info.Status),
			)
		}

		now := time.Now()
		payment.Status = next
		payment.UpdatedAt = now
		if info.PaymentRef != "" {
			payment.ExternalRef = utils.StringPtr(info.PaymentRef)
		}
		if info.PayerEmail != "" {
			payment.PayerEmail = utils.StringPtr(info.PayerEmail)
		}

		if next == entity.PaymentStatusApproved && previous != entity.PaymentStatusApproved && !previous.ReversesApproval() {
			issued, consistency, err = s.fulfilTx(ctx, tx, payment)
			if err != nil {
				return err
			}
		}

		if err := tx.Payment.Update(ctx, payment); err != nil {
			return err
		}

		result.Status = payment.Status
		result.TicketID = payment.TicketID

		note := errorText(warning)
		switch {
		case consistency != nil:
			note = errorText(consistency)
		case held != nil:
			note = errorText(held)
		}
		return tx.PaymentEvent.Create(ctx, newPaymentEvent(payment, entity.EventSourceWebhook, info.Status, note))
	})
	if err != nil {
		s.log.Error("Failed to reconcile payment",
			zap.Error(err),
			zap.String("external_event_id", externalEventID),
			zap.String("payment_ref", info.PaymentRef),
		)
		s.recordFailure(ctx, paymentIDFromToken(info.CorrelationToken), info.PaymentRef, info.Status, err)
		telemetry.WebhooksReconciled.WithLabelValues(string(status), "failed").Inc()
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("reconcile %s: %w", externalEventID, err)
	}

	return s.finish(ctx, &result, issued, consistency, "webhook")
}

func (s *webhookService) Fulfil(ctx context.Context, paymentID uuid.UUID) (*ReconcileResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "webhook.fulfil", attribute.String("payment_id", paymentID.String()))
	defer span.End()

	var (
		result      ReconcileResult
		issued      *entity.Ticket
		consistency *ConsistencyError
	)

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx *repository.Repository) error {
		result, issued, consistency = ReconcileResult{PaymentID: paymentID}, nil, nil

		payment, err := tx.Payment.FindByIDForUpdate(ctx, paymentID)
		if err != nil {
			return err
		}
		if payment == nil {
			return &NotFoundError{Resource: "payment", ID: paymentID.String()}
		}

		result.Status = payment.Status
		if payment.HasTicket() {
			result.Duplicate = true
			result.TicketID = payment.TicketID
			return nil
		}
		if payment.Status != entity.PaymentStatusApproved {
			return newValidationError("payment %s is %s, only APPROVED payments can be fulfilled", paymentID, payment.Status)
		}

		issued, consistency, err = s.fulfilTx(ctx, tx, payment)
		if err != nil {
			return err
		}
		if issued != nil {
			if err := tx.Payment.Update(ctx, payment); err != nil {
				return err
			}
		}
		result.TicketID = payment.TicketID

		var note *string
		if consistency != nil {
			note = errorText(consistency)
		}
		return tx.PaymentEvent.Create(ctx, newPaymentEvent(payment, entity.EventSourceManual, "fulfil", note))
	})
	if err != nil {
		if !isSeatDomainError(err) {
			s.log.Error("Failed to fulfil payment", zap.Error(err), zap.String("payment_id", paymentID.String()))
		}
		return nil, err
	}

	return s.finish(ctx, &result, issued, consistency, "manual")
}

// fulfilTx commits the seats and issues the ticket for an APPROVED payment.
// Refusals from the seat inventory come back as a ConsistencyError with the
// transaction still usable; any other error must abort it.
func (s *webhookService) fulfilTx(ctx context.Context, tx *repository.Repository, payment *entity.Payment) (*entity.Ticket, *ConsistencyError, error) {
	if !payment.HasBookingContext() {
		return nil, &ConsistencyError{PaymentID: payment.ID, Reason: "payment has no booking context"}, nil
	}

	if _, err := s.inventory.CommitTx(ctx, tx, *payment.ShowtimeID, payment.SeatCodes); err != nil {
		if isSeatDomainError(err) {
			return nil, &ConsistencyError{PaymentID: payment.ID, Reason: "seat commit refused", Err: err}, nil
		}
		return nil, nil, err
	}

	ticket, err := s.tickets.IssueTx(ctx, tx, IssueTicketRequest{
		PaymentID:   payment.ID,
		UserID:      *payment.UserID,
		ShowtimeID:  *payment.ShowtimeID,
		SeatCodes:   payment.SeatCodes,
		Quantity:    payment.Quantity,
		UnitPrice:   payment.UnitPrice,
		TotalAmount: payment.TotalAmount,
	})
	if err != nil {
		return nil, nil, err
	}

	if err := payment.LinkTicket(ticket.ID, time.Now()); err != nil {
		return nil, nil, err
	}

	return ticket, nil, nil
}

// finish runs the post-commit side effects.
func (s *webhookService) finish(ctx context.Context, result *ReconcileResult, issued *entity.Ticket, consistency *ConsistencyError, source string) (*ReconcileResult, error) {
	outcome := "updated"
	switch {
	case result.Duplicate:
		outcome = "duplicate"
	case consistency != nil:
		outcome = "inconsistent"
	case issued != nil:
		outcome = "fulfilled"
	}
	telemetry.WebhooksReconciled.WithLabelValues(string(result.Status), outcome).Inc()

	if issued != nil {
		telemetry.TicketsIssued.Inc()
		telemetry.SeatsCommitted.Add(float64(len(issued.SeatCodes)))
		s.publish(ctx, issued)
	}

	s.log.Info("Payment reconciled",
		zap.String("payment_id", result.PaymentID.String()),
		zap.String("status", string(result.Status)),
		zap.String("outcome", outcome),
		zap.String("source", source),
	)

	if consistency != nil {
		telemetry.ConsistencyErrors.Inc()
		s.log.Error("Approved payment could not be fulfilled",
			zap.Error(consistency),
			zap.String("payment_id", result.PaymentID.String()),
		)
		return result, consistency
	}
	return result, nil
}

// resolve locks the ledger entry the processor payment belongs to, creating
// one when the payment was started outside this service.
func (s *webhookService) resolve(ctx context.Context, tx *repository.Repository, info *processor.PaymentInfo) (*entity.Payment, bool, error) {
	if id := paymentIDFromToken(info.CorrelationToken); id != nil {
		payment, err := tx.Payment.FindByIDForUpdate(ctx, *id)
		if err != nil {
			return nil, false, err
		}
		if payment != nil {
			return payment, false, nil
		}
	}

	if info.PaymentRef == "" {
		return nil, false, fmt.Errorf("processor returned no payment reference")
	}

	payment, err := tx.Payment.FindByExternalRefForUpdate(ctx, info.PaymentRef)
	if err != nil {
		return nil, false, err
	}
	if payment != nil {
		return payment, false, nil
	}

	currency := info.Currency
	if currency == "" {
		currency = s.config.Payment.Currency
	}
	candidate := &entity.Payment{
		Base:        entity.NewBase(time.Now()),
		ExternalRef: utils.StringPtr(info.PaymentRef),
		TotalAmount: info.Amount,
		UnitPrice:   info.Amount,
		Currency:    currency,
		PayerEmail:  utils.StringPtr(info.PayerEmail),
		Status:      entity.PaymentStatusPending,
	}
	inserted, err := tx.Payment.CreateIfAbsentByExternalRef(ctx, candidate)
	if err != nil {
		return nil, false, err
	}

	// a concurrent delivery may have inserted first
	payment, err = tx.Payment.FindByExternalRefForUpdate(ctx, info.PaymentRef)
	if err != nil {
		return nil, false, err
	}
	if payment == nil {
		return nil, false, fmt.Errorf("payment %s vanished after insert", info.PaymentRef)
	}

	if inserted {
		s.log.Warn("Payment first seen via webhook",
			zap.String("payment_ref", info.PaymentRef),
			zap.String("payment_id", payment.ID.String()),
		)
	}
	return payment, inserted, nil
}

func (s *webhookService) fetch(ctx context.Context, externalEventID string) (*processor.PaymentInfo, error) {
	timeout := s.config.Payment.Timeout
	if timeout <= 0 {
		timeout = defaultProcessorTimeout
	}

	v, err, shared := s.fetches.Do(externalEventID, func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		return s.processor.GetPayment(ctx, externalEventID)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.log.Debug("Processor fetch shared", zap.String("external_event_id", externalEventID))
	}

	// callers mutate nothing, but each gets its own copy
	info := *v.(*processor.PaymentInfo)
	return &info, nil
}

func (s *webhookService) GetPaymentEvents(ctx context.Context, paymentID uuid.UUID) ([]response.PaymentEventResponse, error) {
	repos := s.store.Repos()

	payment, err := repos.Payment.FindByID(ctx, paymentID)
	if err != nil {
		s.log.Error("Failed to get payment", zap.Error(err), zap.String("payment_id", paymentID.String()))
		return nil, fmt.Errorf("get payment: %w", err)
	}
	if payment == nil {
		return nil, &NotFoundError{Resource: "payment", ID: paymentID.String()}
	}

	events, err := repos.PaymentEvent.FindByPaymentID(ctx, paymentID)
	if err != nil {
		s.log.Error("Failed to get payment events", zap.Error(err), zap.String("payment_id", paymentID.String()))
		return nil, fmt.Errorf("get payment events: %w", err)
	}

	data := make([]response.PaymentEventResponse, 0, len(events))
	for _, e := range events {
		data = append(data, response.PaymentEventToResponse(e))
	}
	return data, nil
}

func (s *webhookService) publish(ctx context.Context, ticket *entity.Ticket) {
	currency := s.config.Payment.Currency
	event := publisher.TicketIssued{
		TicketID:    ticket.ID.String(),
		PaymentID:   ticket.PaymentID.String(),
		UserID:      ticket.UserID.String(),
		ShowtimeID:  ticket.ShowtimeID.String(),
		SeatCodes:   ticket.SeatCodes,
		Quantity:    ticket.Quantity,
		TotalAmount: ticket.TotalAmount,
		Currency:    currency,
		PurchasedAt: ticket.PurchasedAt,
	}
	if err := s.publisher.PublishTicketIssued(ctx, event); err != nil {
		s.log.Warn("Failed to publish ticket issued event", zap.Error(err), zap.String("ticket_id", event.TicketID))
	}
}

// recordFailure writes an audit row outside the failed transaction.
func (s *webhookService) recordFailure(ctx context.Context, paymentID *uuid.UUID, externalRef, rawStatus string, cause error) {
	repos := s.store.Repos()

	// the token may name a payment that does not exist
	if paymentID != nil {
		if p, err := repos.Payment.FindByID(ctx, *paymentID); err != nil || p == nil {
			paymentID = nil
		}
	}

	event := &entity.PaymentEvent{
		ID:          uuid.New(),
		PaymentID:   paymentID,
		ExternalRef: utils.StringPtr(externalRef),
		Source:      entity.EventSourceWebhook,
		RawStatus:   rawStatus,
		ErrorText:   utils.StringPtr(cause.Error()),
		LoggedAt:    time.Now(),
	}
	if err := repos.PaymentEvent.Create(ctx, event); err != nil {
		s.log.Error("Failed to record payment event", zap.Error(err), zap.String("external_ref", externalRef))
	}
}

func newPaymentEvent(payment *entity.Payment, source entity.EventSource, rawStatus string, note *string) *entity.PaymentEvent {
	status := payment.Status
	return &entity.PaymentEvent{
		ID:              uuid.New(),
		PaymentID:       &payment.ID,
		ExternalRef:     payment.ExternalRef,
		Source:          source,
		RawStatus:       rawStatus,
		ResultingStatus: &status,
		ErrorText:       note,
		LoggedAt:        time.Now(),
	}
}

func paymentIDFromToken(token string) *uuid.UUID {
	id, err := uuid.Parse(token)
	if err != nil {
		return nil
	}
	return &id
}

func errorText(err error) *string {
	if err == nil {
		return nil
	}
	return utils.StringPtr(err.Error())
}

// IsConsistencyError reports whether err marks an approved payment left
// without a ticket.
func IsConsistencyError(err error) bool {
	var ce *ConsistencyError
	return errors.As(err, &ce)
}
