package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cinema-ticketing/internal/data/entity"
	"cinema-ticketing/internal/data/repository"
	"cinema-ticketing/internal/dto/request"
	"cinema-ticketing/internal/dto/response"
	"cinema-ticketing/internal/processor"
	"cinema-ticketing/pkg/telemetry"
	"cinema-ticketing/pkg/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	webhookNotificationPath = "/api/payments/webhooks/notification"
	webhookReturnPath       = "/api/payments/webhooks/"
	defaultProcessorTimeout = 15 * time.Second
)

type PaymentService interface {
	// CreateAttempt records a PENDING payment and opens a checkout at the
	// processor. Seats are not held until the payment is approved.
	CreateAttempt(ctx context.Context, userID uuid.UUID, req *request.CreateBookingRequest) (*response.PaymentHandleResponse, error)

	GetUserPayments(ctx context.Context, userID uuid.UUID, req *request.PaginatedRequest) (*response.PaginatedResponse[response.PaymentResponse], error)
	GetUserPayment(ctx context.Context, userID, paymentID uuid.UUID) (*response.PaymentResponse, error)

	// ExpireStale cancels PENDING payments that never reached the processor
	// and were created before cutoff. It returns how many were cancelled.
	ExpireStale(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

type paymentService struct {
	store     repository.Store
	inventory SeatInventory
	processor processor.Processor
	config    *utils.Config
	log       *zap.Logger
}

func NewPaymentService(store repository.Store, inventory SeatInventory, proc processor.Processor, config *utils.Config, log *zap.Logger) PaymentService {
	return &paymentService{
		store:     store,
		inventory: inventory,
		processor: proc,
		config:    config,
		log:       log.With(zap.String("service", "payment")),
	}
}

func (s *paymentService) CreateAttempt(ctx context.Context, userID uuid.UUID, req *request.CreateBookingRequest) (*response.PaymentHandleResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "payment.create_attempt", attribute.String("user_id", userID.String()))
	defer span.End()

	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Warn("Create booking validation failed", zap.Any("errors", errs))
		return nil, &ValidationError{Message: utils.FormatValidationErrors(errs), Fields: errs}
	}
	if req.Quantity != len(req.SeatCodes) {
		return nil, newValidationError("quantity %d does not match %d seat codes", req.Quantity, len(req.SeatCodes))
	}
	if !req.UnitPrice.IsPositive() {
		return nil, newValidationError("unit price must be greater than zero")
	}

	showtimeID, err := uuid.Parse(req.ShowtimeID)
	if err != nil {
		return nil, newValidationError("invalid showtime ID format %s", req.ShowtimeID)
	}

	positions, err := entity.ParseSeatCodes(req.SeatCodes)
	if err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}
	seatCodes := entity.SeatCodes(positions)

	repos := s.store.Repos()
	showtime, err := repos.Showtime.FindByID(ctx, showtimeID)
	if err != nil {
		s.log.Error("Failed to get showtime", zap.Error(err), zap.String("showtime_id", showtimeID.String()))
		return nil, fmt.Errorf("get showtime: %w", err)
	}
	if showtime == nil {
		return nil, &NotFoundError{Resource: "showtime", ID: showtimeID.String()}
	}
	if !showtime.Enabled {
		return nil, newValidationError("showtime %s is not open for booking", showtimeID)
	}
	if showtime.HasStarted(time.Now()) {
		return nil, newValidationError("showtime %s has already started", showtimeID)
	}

	if err := s.inventory.CheckAvailable(ctx, showtime, seatCodes); err != nil {
		return nil, err
	}

	now := time.Now()
	payment := &entity.Payment{
		Base:        entity.NewBase(now),
		UserID:      &userID,
		ShowtimeID:  &showtimeID,
		SeatCodes:   seatCodes,
		Quantity:    req.Quantity,
		UnitPrice:   req.UnitPrice,
		TotalAmount: req.UnitPrice.Mul(decimal.NewFromInt(int64(req.Quantity))),
		Currency:    s.currency(),
		Status:      entity.PaymentStatusPending,
	}

	if err := repos.Payment.Create(ctx, payment); err != nil {
		s.log.Error("Failed to create payment", zap.Error(err))
		return nil, fmt.Errorf("create payment: %w", err)
	}

	checkout, err := s.openCheckout(ctx, payment, showtime, req.Title)
	if err != nil {
		telemetry.CheckoutsCreated.WithLabelValues(s.processor.Name(), "failed").Inc()
		s.log.Error("Failed to create checkout",
			zap.Error(err),
			zap.String("payment_id", payment.ID.String()),
		)
		s.recordEvent(ctx, payment, "", err)
		return nil, &ExternalServiceError{Op: "create checkout", Err: err}
	}

	if err := repos.Payment.SetCheckout(ctx, payment.ID, checkout.CheckoutID); err != nil {
		s.log.Error("Failed to store checkout id", zap.Error(err), zap.String("payment_id", payment.ID.String()))
		return nil, fmt.Errorf("store checkout id: %w", err)
	}
	s.recordEvent(ctx, payment, "checkout_created", nil)

	telemetry.CheckoutsCreated.WithLabelValues(s.processor.Name(), "created").Inc()
	s.log.Info("Checkout created",
		zap.String("payment_id", payment.ID.String()),
		zap.String("checkout_id", checkout.CheckoutID),
		zap.String("total", payment.TotalAmount.String()),
	)

	return &response.PaymentHandleResponse{
		PaymentID:   payment.ID.String(),
		CheckoutID:  checkout.CheckoutID,
		RedirectURL: checkout.RedirectURL,
		Status:      payment.Status,
		TotalAmount: payment.TotalAmount,
		Currency:    payment.Currency,
	}, nil
}

// openCheckout calls the processor outside any transaction so no row locks
// are held across the network round trip.
func (s *paymentService) openCheckout(ctx context.Context, payment *entity.Payment, showtime *entity.Showtime, title string) (*processor.Checkout, error) {
	timeout := s.config.Payment.Timeout
	if timeout <= 0 {
		timeout = defaultProcessorTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if title == "" {
		title = fmt.Sprintf("Cinema ticket %s", showtime.MovieID)
	}
	base := strings.TrimRight(s.config.App.PublicURL, "/")

	return s.processor.CreateCheckout(ctx, processor.CheckoutRequest{
		CorrelationToken: payment.ID.String(),
		Title:            title,
		Description: fmt.Sprintf("%s, room %s, seats %s",
			showtime.StartsAt.Format(time.RFC1123), showtime.RoomID, strings.Join(payment.SeatCodes, " ")),
		Quantity:        payment.Quantity,
		UnitPrice:       payment.UnitPrice,
		Amount:          payment.TotalAmount,
		Currency:        payment.Currency,
		NotificationURL: base + webhookNotificationPath,
		BackURLs: processor.BackURLs{
			Success: base + webhookReturnPath + "success",
			Pending: base + webhookReturnPath + "pending",
			Failure: base + webhookReturnPath + "failure",
		},
	})
}

func (s *paymentService) GetUserPayments(ctx context.Context, userID uuid.UUID, req *request.PaginatedRequest) (*response.PaginatedResponse[response.PaymentResponse], error) {
	repos := s.store.Repos()

	payments, err := repos.Payment.FindByUserID(ctx, userID, req.Limit(), req.Offset())
	if err != nil {
		s.log.Error("Failed to get user payments", zap.Error(err), zap.String("user_id", userID.String()))
		return nil, fmt.Errorf("get user payments: %w", err)
	}

	total, err := repos.Payment.CountByUserID(ctx, userID)
	if err != nil {
		s.log.Error("Failed to count user payments", zap.Error(err), zap.String("user_id", userID.String()))
		return nil, fmt.Errorf("count user payments: %w", err)
	}

	data := make([]response.PaymentResponse, 0, len(payments))
	for _, p := range payments {
		data = append(data, response.PaymentToResponse(p))
	}

	return response.NewPaginatedResponse(data, req.Page, req.Limit(), total), nil
}

func (s *paymentService) GetUserPayment(ctx context.Context, userID, paymentID uuid.UUID) (*response.PaymentResponse, error) {
	payment, err := s.store.Repos().Payment.FindByID(ctx, paymentID)
	if err != nil {
		s.log.Error("Failed to get payment", zap.Error(err), zap.String("payment_id", paymentID.String()))
		return nil, fmt.Errorf("get payment: %w", err)
	}
	if payment == nil || payment.UserID == nil || *payment.UserID != userID {
		return nil, &NotFoundError{Resource: "payment", ID: paymentID.String()}
	}

	resp := response.PaymentToResponse(payment)
	return &resp, nil
}

func (s *paymentService) ExpireStale(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	stale, err := s.store.Repos().Payment.FindStalePending(ctx, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("find stale payments: %w", err)
	}

	cancelled := 0
	for _, candidate := range stale {
		ok, err := s.expireOne(ctx, candidate.ID, cutoff)
		if err != nil {
			s.log.Error("Failed to expire payment", zap.Error(err), zap.String("payment_id", candidate.ID.String()))
			continue
		}
		if ok {
			cancelled++
		}
	}

	return cancelled, nil
}

func (s *paymentService) expireOne(ctx context.Context, paymentID uuid.UUID, cutoff time.Time) (bool, error) {
	expired := false
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx *repository.Repository) error {
		payment, err := tx.Payment.FindByIDForUpdate(ctx, paymentID)
		if err != nil {
			return err
		}
		// a webhook may have landed since the scan
		if payment == nil || payment.Status != entity.PaymentStatusPending ||
			payment.ExternalRef != nil || payment.HasTicket() || !payment.CreatedAt.Before(cutoff) {
			return nil
		}

		payment.Status = entity.PaymentStatusCancelled
		payment.UpdatedAt = time.Now()
		if err := tx.Payment.Update(ctx, payment); err != nil {
			return err
		}

		status := payment.Status
		expired = true
		return tx.PaymentEvent.Create(ctx, &entity.PaymentEvent{
			ID:              uuid.New(),
			PaymentID:       &payment.ID,
			Source:          entity.EventSourceReaper,
			RawStatus:       "expired",
			ResultingStatus: &status,
			LoggedAt:        payment.UpdatedAt,
		})
	})
	if err != nil {
		return false, err
	}

	if expired {
		s.log.Info("Stale payment cancelled", zap.String("payment_id", paymentID.String()))
	}
	return expired, nil
}

// recordEvent appends a checkout audit row. Failures are logged only.
func (s *paymentService) recordEvent(ctx context.Context, payment *entity.Payment, raw string, cause error) {
	status := payment.Status
	event := &entity.PaymentEvent{
		ID:              uuid.New(),
		PaymentID:       &payment.ID,
		Source:          entity.EventSourceCheckout,
		RawStatus:       raw,
		ResultingStatus: &status,
		LoggedAt:        time.Now(),
	}
	if cause != nil {
		event.ErrorText = utils.StringPtr(cause.Error())
	}

	if err := s.store.Repos().PaymentEvent.Create(ctx, event); err != nil {
		s.log.Error("Failed to record payment event", zap.Error(err), zap.String("payment_id", payment.ID.String()))
	}
}

func (s *paymentService) currency() string {
	if s.config.Payment.Currency == "" {
		return "ARS"
	}
	return strings.ToUpper(s.config.Payment.Currency)
}
