package repository

import (
	"context"
	"fmt"

	"cinema-ticketing/pkg/database"

	"go.uber.org/zap"
)

type Repository struct {
	Showtime     ShowtimeRepository
	Seat         SeatRepository
	Payment      PaymentRepository
	Ticket       TicketRepository
	PaymentEvent PaymentEventRepository
}

func NewRepository(db database.Querier, log *zap.Logger) *Repository {
	return &Repository{
		Showtime:     NewShowtimeRepository(db, log),
		Seat:         NewSeatRepository(db, log),
		Payment:      NewPaymentRepository(db, log),
		Ticket:       NewTicketRepository(db, log),
		PaymentEvent: NewPaymentEventRepository(db, log),
	}
}

// TxFunc runs against repositories bound to one transaction.
type TxFunc func(ctx context.Context, tx *Repository) error

// Store hands out repositories and runs units of work atomically. A TxFunc
// returning an error rolls back everything it wrote.
type Store interface {
	Repos() *Repository
	WithinTx(ctx context.Context, fn TxFunc) error
}

type pgStore struct {
	db    database.PgxIface
	log   *zap.Logger
	repos *Repository
}

func NewStore(db database.PgxIface, log *zap.Logger) Store {
	return &pgStore{
		db:    db,
		log:   log,
		repos: NewRepository(db, log),
	}
}

func (s *pgStore) Repos() *Repository {
	return s.repos
}

func (s *pgStore) WithinTx(ctx context.Context, fn TxFunc) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(ctx, NewRepository(tx, s.log)); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			s.log.Warn("Failed to roll back transaction", zap.Error(rbErr))
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
