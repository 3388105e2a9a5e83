package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cinema-ticketing/internal/data/entity"
	"cinema-ticketing/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type PaymentRepository interface {
	Create(ctx context.Context, payment *entity.Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Payment, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Payment, error)
	FindByExternalRefForUpdate(ctx context.Context, externalRef string) (*entity.Payment, error)

	// CreateIfAbsentByExternalRef inserts unless the external reference is
	// already taken. It reports whether this call inserted the row.
	CreateIfAbsentByExternalRef(ctx context.Context, payment *entity.Payment) (bool, error)

	SetCheckout(ctx context.Context, id uuid.UUID, checkoutID string) error
	Update(ctx context.Context, payment *entity.Payment) error

	FindByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entity.Payment, error)
	CountByUserID(ctx context.Context, userID uuid.UUID) (int64, error)

	// FindStalePending lists PENDING entries created before cutoff that never
	// got a processor reference or a ticket.
	FindStalePending(ctx context.Context, cutoff time.Time, limit int) ([]*entity.Payment, error)
}

type paymentRepository struct {
	db  database.Querier
	log *zap.Logger
}

func NewPaymentRepository(db database.Querier, log *zap.Logger) PaymentRepository {
	return &paymentRepository{
		db:  db,
		log: log.With(zap.String("repository", "payment")),
	}
}

const paymentColumns = `id, external_ref, checkout_id, user_id, showtime_id, seat_codes, quantity,
		unit_price, total_amount, currency, payer_email, status, ticket_id, created_at, updated_at`

func scanPayment(row pgx.Row) (*entity.Payment, error) {
	var p entity.Payment
	err := row.Scan(
		&p.ID,
		&p.ExternalRef,
		&p.CheckoutID,
		&p.UserID,
		&p.ShowtimeID,
		&p.SeatCodes,
		&p.Quantity,
		&p.UnitPrice,
		&p.TotalAmount,
		&p.Currency,
		&p.PayerEmail,
		&p.Status,
		&p.TicketID,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func paymentArgs(p *entity.Payment) []any {
	seats := p.SeatCodes
	if seats == nil {
		seats = []string{}
	}
	return []any{
		p.ID,
		p.ExternalRef,
		p.CheckoutID,
		p.UserID,
		p.ShowtimeID,
		seats,
		p.Quantity,
		p.UnitPrice,
		p.TotalAmount,
		p.Currency,
		p.PayerEmail,
		p.Status,
		p.TicketID,
		p.CreatedAt,
		p.UpdatedAt,
	}
}

const insertPayment = `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

func (r *paymentRepository) Create(ctx context.Context, payment *entity.Payment) error {
	_, err := r.db.Exec(ctx, insertPayment, paymentArgs(payment)...)
	if isUniqueViolation(err) {
		return fmt.Errorf("create payment %s: %w", payment.ID, ErrDuplicate)
	}
	if err != nil {
		r.log.Error("Failed to create payment",
			zap.Error(err),
			zap.String("payment_id", payment.ID.String()),
		)
		return fmt.Errorf("create payment %s: %w", payment.ID, err)
	}

	return nil
}

func (r *paymentRepository) CreateIfAbsentByExternalRef(ctx context.Context, payment *entity.Payment) (bool, error) {
	if payment.ExternalRef == nil {
		return false, fmt.Errorf("create payment %s: external reference is required", payment.ID)
	}

	result, err := r.db.Exec(ctx, insertPayment+` ON CONFLICT (external_ref) DO NOTHING`, paymentArgs(payment)...)
	if err != nil {
		r.log.Error("Failed to insert payment by external reference",
			zap.Error(err),
			zap.String("external_ref", *payment.ExternalRef),
		)
		return false, fmt.Errorf("create payment for external ref %s: %w", *payment.ExternalRef, err)
	}

	return result.RowsAffected() == 1, nil
}

func (r *paymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Payment, error) {
	return r.findOne(ctx, "find payment by ID", `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
}

func (r *paymentRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Payment, error) {
	return r.findOne(ctx, "lock payment by ID", `SELECT `+paymentColumns+` FROM payments WHERE id = $1 FOR UPDATE`, id)
}

func (r *paymentRepository) FindByExternalRefForUpdate(ctx context.Context, externalRef string) (*entity.Payment, error) {
	return r.findOne(ctx, "lock payment by external ref",
		`SELECT `+paymentColumns+` FROM payments WHERE external_ref = $1 FOR UPDATE`, externalRef)
}

func (r *paymentRepository) findOne(ctx context.Context, op, query string, arg any) (*entity.Payment, error) {
	payment, err := scanPayment(r.db.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to "+op,
			zap.Error(err),
			zap.Any("key", arg),
		)
		return nil, fmt.Errorf("%s %v: %w", op, arg, err)
	}

	return payment, nil
}

func (r *paymentRepository) SetCheckout(ctx context.Context, id uuid.UUID, checkoutID string) error {
	query := `UPDATE payments SET checkout_id = $2, updated_at = $3 WHERE id = $1`

	result, err := r.db.Exec(ctx, query, id, checkoutID, time.Now())
	if err != nil {
		r.log.Error("Failed to store checkout id",
			zap.Error(err),
			zap.String("payment_id", id.String()),
		)
		return fmt.Errorf("set checkout for payment %s: %w", id, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("payment %s: %w", id, ErrNotFound)
	}

	return nil
}

func (r *paymentRepository) Update(ctx context.Context, payment *entity.Payment) error {
	query := `
		UPDATE payments
		SET external_ref = $2, checkout_id = $3, payer_email = $4, status = $5,
		    ticket_id = $6, updated_at = $7
		WHERE id = $1
	`

	result, err := r.db.Exec(ctx, query,
		payment.ID,
		payment.ExternalRef,
		payment.CheckoutID,
		payment.PayerEmail,
		payment.Status,
		payment.TicketID,
		payment.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("update payment %s: %w", payment.ID, ErrDuplicate)
	}
	if err != nil {
		r.log.Error("Failed to update payment",
			zap.Error(err),
			zap.String("payment_id", payment.ID.String()),
			zap.String("status", string(payment.Status)),
		)
		return fmt.Errorf("update payment %s: %w", payment.ID, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("payment %s: %w", payment.ID, ErrNotFound)
	}

	return nil
}

func (r *paymentRepository) FindByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entity.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		r.log.Error("Failed to find payments by user",
			zap.Error(err),
			zap.String("user_id", userID.String()),
		)
		return nil, fmt.Errorf("find payments by user %s: %w", userID, err)
	}

	return collectPayments(rows)
}

func (r *paymentRepository) CountByUserID(ctx context.Context, userID uuid.UUID) (int64, error) {
	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM payments WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return 0, fmt.Errorf("count payments by user %s: %w", userID, err)
	}
	return total, nil
}

func (r *paymentRepository) FindStalePending(ctx context.Context, cutoff time.Time, limit int) ([]*entity.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE status = 'PENDING' AND external_ref IS NULL AND ticket_id IS NULL AND created_at < $1
		ORDER BY created_at
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, cutoff, limit)
	if err != nil {
		r.log.Error("Failed to find stale pending payments", zap.Error(err))
		return nil, fmt.Errorf("find stale pending payments: %w", err)
	}

	return collectPayments(rows)
}

func collectPayments(rows pgx.Rows) ([]*entity.Payment, error) {
	defer rows.Close()

	var payments []*entity.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		payments = append(payments, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payments: %w", err)
	}

	return payments, nil
}
