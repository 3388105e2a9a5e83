package repository

import (
	"context"
	"errors"
	"fmt"

	"cinema-ticketing/internal/data/entity"
	"cinema-ticketing/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type TicketRepository interface {
	Create(ctx context.Context, ticket *entity.Ticket) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Ticket, error)
	FindByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entity.Ticket, error)
	CountByUserID(ctx context.Context, userID uuid.UUID) (int64, error)
	CountByShowtime(ctx context.Context, showtimeID uuid.UUID) (int64, error)
}

type ticketRepository struct {
	db  database.Querier
	log *zap.Logger
}

func NewTicketRepository(db database.Querier, log *zap.Logger) TicketRepository {
	return &ticketRepository{
		db:  db,
		log: log.With(zap.String("repository", "ticket")),
	}
}

const ticketColumns = `id, payment_id, user_id, showtime_id, seat_codes, quantity, unit_price, total_amount, purchased_at`

func scanTicket(row pgx.Row) (*entity.Ticket, error) {
	var t entity.Ticket
	if err := row.Scan(
		&t.ID,
		&t.PaymentID,
		&t.UserID,
		&t.ShowtimeID,
		&t.SeatCodes,
		&t.Quantity,
		&t.UnitPrice,
		&t.TotalAmount,
		&t.PurchasedAt,
	); err != nil {
		return nil, err
	}
	return &t, nil
}

// Create fails with ErrDuplicate when the payment already owns a ticket.
func (r *ticketRepository) Create(ctx context.Context, ticket *entity.Ticket) error {
	query := `
		INSERT INTO tickets (` + ticketColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.Exec(ctx, query,
		ticket.ID,
		ticket.PaymentID,
		ticket.UserID,
		ticket.ShowtimeID,
		ticket.SeatCodes,
		ticket.Quantity,
		ticket.UnitPrice,
		ticket.TotalAmount,
		ticket.PurchasedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("create ticket for payment %s: %w", ticket.PaymentID, ErrDuplicate)
	}
	if err != nil {
		r.log.Error("Failed to create ticket",
			zap.Error(err),
			zap.String("payment_id", ticket.PaymentID.String()),
		)
		return fmt.Errorf("create ticket for payment %s: %w", ticket.PaymentID, err)
	}

	return nil
}

func (r *ticketRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Ticket, error) {
	ticket, err := scanTicket(r.db.QueryRow(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find ticket by ID",
			zap.Error(err),
			zap.String("ticket_id", id.String()),
		)
		return nil, fmt.Errorf("find ticket by ID %s: %w", id, err)
	}

	return ticket, nil
}

func (r *ticketRepository) FindByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entity.Ticket, error) {
	query := `
		SELECT ` + ticketColumns + `
		FROM tickets
		WHERE user_id = $1
		ORDER BY purchased_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		r.log.Error("Failed to find tickets by user",
			zap.Error(err),
			zap.String("user_id", userID.String()),
		)
		return nil, fmt.Errorf("find tickets by user %s: %w", userID, err)
	}
	defer rows.Close()

	var tickets []*entity.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		tickets = append(tickets, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tickets: %w", err)
	}

	return tickets, nil
}

func (r *ticketRepository) CountByUserID(ctx context.Context, userID uuid.UUID) (int64, error) {
	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM tickets WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return 0, fmt.Errorf("count tickets by user %s: %w", userID, err)
	}
	return total, nil
}

func (r *ticketRepository) CountByShowtime(ctx context.Context, showtimeID uuid.UUID) (int64, error) {
	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM tickets WHERE showtime_id = $1`, showtimeID).Scan(&total); err != nil {
		return 0, fmt.Errorf("count tickets by showtime %s: %w", showtimeID, err)
	}
	return total, nil
}
