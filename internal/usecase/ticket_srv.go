package usecase

import (
	"context"
	"fmt"
	"time"

	"cinema-ticketing/internal/data/entity"
	"cinema-ticketing/internal/data/repository"
	"cinema-ticketing/internal/dto/request"
	"cinema-ticketing/internal/dto/response"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type IssueTicketRequest struct {
	PaymentID   uuid.UUID
	UserID      uuid.UUID
	ShowtimeID  uuid.UUID
	SeatCodes   []string
	Quantity    int
	UnitPrice   decimal.Decimal
	TotalAmount decimal.Decimal
}

type TicketService interface {
	// IssueTx writes the ticket inside the caller's transaction.
	IssueTx(ctx context.Context, tx *repository.Repository, req IssueTicketRequest) (*entity.Ticket, error)

	GetUserTickets(ctx context.Context, userID uuid.UUID, req *request.PaginatedRequest) (*response.PaginatedResponse[response.TicketResponse], error)
	GetUserTicket(ctx context.Context, userID, ticketID uuid.UUID) (*response.TicketResponse, error)
}

type ticketService struct {
	store repository.Store
	log   *zap.Logger
}

func NewTicketService(store repository.Store, log *zap.Logger) TicketService {
	return &ticketService{
		store: store,
		log:   log.With(zap.String("service", "ticket")),
	}
}

func (s *ticketService) IssueTx(ctx context.Context, tx *repository.Repository, req IssueTicketRequest) (*entity.Ticket, error) {
	switch {
	case req.PaymentID == uuid.Nil:
		return nil, newValidationError("ticket needs a payment")
	case req.UserID == uuid.Nil:
		return nil, newValidationError("ticket needs a user")
	case req.ShowtimeID == uuid.Nil:
		return nil, newValidationError("ticket needs a showtime")
	case len(req.SeatCodes) == 0:
		return nil, newValidationError("ticket needs at least one seat")
	case req.Quantity != len(req.SeatCodes):
		return nil, newValidationError("quantity %d does not match %d seats", req.Quantity, len(req.SeatCodes))
	}

	ticket := &entity.Ticket{
		ID:          uuid.New(),
		PaymentID:   req.PaymentID,
		UserID:      req.UserID,
		ShowtimeID:  req.ShowtimeID,
		SeatCodes:   append([]string(nil), req.SeatCodes...),
		Quantity:    req.Quantity,
		UnitPrice:   req.UnitPrice,
		TotalAmount: req.TotalAmount,
		PurchasedAt: time.Now(),
	}

	if err := tx.Ticket.Create(ctx, ticket); err != nil {
		return nil, fmt.Errorf("issue ticket for payment %s: %w", req.PaymentID, err)
	}

	s.log.Info("Ticket issued",
		zap.String("ticket_id", ticket.ID.String()),
		zap.String("payment_id", req.PaymentID.String()),
		zap.Strings("seats", ticket.SeatCodes),
	)

	return ticket, nil
}

func (s *ticketService) GetUserTickets(ctx context.Context, userID uuid.UUID, req *request.PaginatedRequest) (*response.PaginatedResponse[response.TicketResponse], error) {
	repos := s.store.Repos()

	tickets, err := repos.Ticket.FindByUserID(ctx, userID, req.Limit(), req.Offset())
	if err != nil {
		s.log.Error("Failed to get user tickets", zap.Error(err), zap.String("user_id", userID.String()))
		return nil, fmt.Errorf("get user tickets: %w", err)
	}

	total, err := repos.Ticket.CountByUserID(ctx, userID)
	if err != nil {
		s.log.Error("Failed to count user tickets", zap.Error(err), zap.String("user_id", userID.String()))
		return nil, fmt.Errorf("count user tickets: %w", err)
	}

	data := make([]response.TicketResponse, 0, len(tickets))
	for _, t := range tickets {
		data = append(data, response.TicketToResponse(t))
	}

	return response.NewPaginatedResponse(data, req.Page, req.Limit(), total), nil
}

func (s *ticketService) GetUserTicket(ctx context.Context, userID, ticketID uuid.UUID) (*response.TicketResponse, error) {
	ticket, err := s.store.Repos().Ticket.FindByID(ctx, ticketID)
	if err != nil {
		s.log.Error("Failed to get ticket", zap.Error(err), zap.String("ticket_id", ticketID.String()))
		return nil, fmt.Errorf("get ticket: %w", err)
	}
	// other users' tickets are reported as missing
	if ticket == nil || ticket.UserID != userID {
		return nil, &NotFoundError{Resource: "ticket", ID: ticketID.String()}
	}

	resp := response.TicketToResponse(ticket)
	return &resp, nil
}
