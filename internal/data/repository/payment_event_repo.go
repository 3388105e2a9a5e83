package repository

import (
	"context"
	"fmt"

	"cinema-ticketing/internal/data/entity"
	"cinema-ticketing/pkg/database"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PaymentEventRepository is append-only.
type PaymentEventRepository interface {
	Create(ctx context.Context, event *entity.PaymentEvent) error
	FindByPaymentID(ctx context.Context, paymentID uuid.UUID) ([]*entity.PaymentEvent, error)
}

type paymentEventRepository struct {
	db  database.Querier
	log *zap.Logger
}

func NewPaymentEventRepository(db database.Querier, log *zap.Logger) PaymentEventRepository {
	return &paymentEventRepository{
		db:  db,
		log: log.With(zap.String("repository", "payment_event")),
	}
}

func (r *paymentEventRepository) Create(ctx context.Context, event *entity.PaymentEvent) error {
	query := `
		INSERT INTO payment_events (id, payment_id, external_ref, source, raw_status, resulting_status, error_text, logged_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.Exec(ctx, query,
		event.ID,
		event.PaymentID,
		event.ExternalRef,
		event.Source,
		event.RawStatus,
		event.ResultingStatus,
		event.ErrorText,
		event.LoggedAt,
	)
	if err != nil {
		r.log.Error("Failed to append payment event",
			zap.Error(err),
			zap.String("source", string(event.Source)),
		)
		return fmt.Errorf("append payment event: %w", err)
	}

	return nil
}

func (r *paymentEventRepository) FindByPaymentID(ctx context.Context, paymentID uuid.UUID) ([]*entity.PaymentEvent, error) {
	query := `
		SELECT id, payment_id, external_ref, source, raw_status, resulting_status, error_text, logged_at
		FROM payment_events
		WHERE payment_id = $1
		ORDER BY logged_at, id
	`

	rows, err := r.db.Query(ctx, query, paymentID)
	if err != nil {
		r.log.Error("Failed to find payment events",
			zap.Error(err),
			zap.String("payment_id", paymentID.String()),
		)
		return nil, fmt.Errorf("find events for payment %s: %w", paymentID, err)
	}
	defer rows.Close()

	var events []*entity.PaymentEvent
	for rows.Next() {
		var e entity.PaymentEvent
		if err := rows.Scan(
			&e.ID,
			&e.PaymentID,
			&e.ExternalRef,
			&e.Source,
			&e.RawStatus,
			&e.ResultingStatus,
			&e.ErrorText,
			&e.LoggedAt,
		); err != nil {
			return nil, fmt.Errorf("scan payment event: %w", err)
		}
		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payment events: %w", err)
	}

	return events, nil
}
