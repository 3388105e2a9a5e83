package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"cinema-ticketing/internal/data/entity"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var showtimeRowColumns = []string{
	"id", "movie_id", "room_id", "starts_at", "run_length_minutes", "seat_rows", "seat_columns",
	"total_capacity", "available_capacity", "enabled", "created_at", "updated_at",
}

var seatRowColumns = []string{"id", "showtime_id", "seat_row", "seat_column", "occupied", "created_at", "updated_at"}

var paymentRowColumns = []string{
	"id", "external_ref", "checkout_id", "user_id", "showtime_id", "seat_codes", "quantity",
	"unit_price", "total_amount", "currency", "payer_email", "status", "ticket_id", "created_at", "updated_at",
}

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return mock
}

func showtimeRow(id uuid.UUID, total, available int) *pgxmock.Rows {
	now := time.Now()
	return pgxmock.NewRows(showtimeRowColumns).AddRow(
		id, "tt0068646", "room-1", now.Add(24*time.Hour), 175, 2, 2,
		total, available, true, now, now,
	)
}

func TestShowtimeRepository_FindByIDForUpdateLocksRow(t *testing.T) {
	mock := newMockPool(t)
	repo := NewShowtimeRepository(mock, zaptest.NewLogger(t))
	id := uuid.New()

	mock.ExpectQuery(`FROM showtimes WHERE id = \$1 FOR UPDATE`).
		WithArgs(id).
		WillReturnRows(showtimeRow(id, 4, 3))

	showtime, err := repo.FindByIDForUpdate(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, showtime)
	assert.Equal(t, id, showtime.ID)
	assert.Equal(t, 3, showtime.AvailableCapacity)
}

func TestShowtimeRepository_FindByIDMissing(t *testing.T) {
	mock := newMockPool(t)
	repo := NewShowtimeRepository(mock, zaptest.NewLogger(t))
	id := uuid.New()

	mock.ExpectQuery(`FROM showtimes WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(showtimeRowColumns))

	showtime, err := repo.FindByID(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, showtime)
}

func TestShowtimeRepository_AdjustAvailableCheckViolation(t *testing.T) {
	mock := newMockPool(t)
	repo := NewShowtimeRepository(mock, zaptest.NewLogger(t))
	id := uuid.New()

	mock.ExpectQuery(`UPDATE showtimes\s+SET available_capacity = available_capacity \+ \$2`).
		WithArgs(id, -3, pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23514", ConstraintName: "showtimes_available_capacity_check"})

	showtime, err := repo.AdjustAvailable(context.Background(), id, -3)
	assert.Nil(t, showtime)
	assert.ErrorIs(t, err, ErrCapacityBounds)
}

func TestShowtimeRepository_Delete(t *testing.T) {
	id := uuid.New()

	t.Run("referenced by tickets", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectExec(`DELETE FROM showtimes WHERE id = \$1`).
			WithArgs(id).
			WillReturnError(&pgconn.PgError{Code: "23503"})

		err := NewShowtimeRepository(mock, zaptest.NewLogger(t)).Delete(context.Background(), id)
		assert.ErrorIs(t, err, ErrInUse)
	})

	t.Run("missing", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectExec(`DELETE FROM showtimes WHERE id = \$1`).
			WithArgs(id).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		err := NewShowtimeRepository(mock, zaptest.NewLogger(t)).Delete(context.Background(), id)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestSeatRepository_LockByPositionsOrdersAndLocks(t *testing.T) {
	mock := newMockPool(t)
	repo := NewSeatRepository(mock, zaptest.NewLogger(t))
	showtimeID := uuid.New()
	now := time.Now()

	positions := []entity.SeatPosition{{Row: 2, Column: 1}, {Row: 1, Column: 2}}

	mock.ExpectQuery(`JOIN unnest\(\$2::int\[\], \$3::int\[\]\)[\s\S]+ORDER BY s\.id\s+FOR UPDATE OF s`).
		WithArgs(showtimeID, []int32{2, 1}, []int32{1, 2}).
		WillReturnRows(pgxmock.NewRows(seatRowColumns).
			AddRow(uuid.New(), showtimeID, 2, 1, false, now, now).
			AddRow(uuid.New(), showtimeID, 1, 2, true, now, now))

	seats, err := repo.LockByPositions(context.Background(), showtimeID, positions)
	require.NoError(t, err)
	require.Len(t, seats, 2)
	assert.Equal(t, "R2C1", seats[0].Code())
	assert.True(t, seats[1].Occupied)
}

func TestSeatRepository_FindByPositionsDoesNotLock(t *testing.T) {
	mock := newMockPool(t)
	repo := NewSeatRepository(mock, zaptest.NewLogger(t))
	showtimeID := uuid.New()

	mock.ExpectQuery(`ORDER BY s\.id\s*$`).
		WithArgs(showtimeID, []int32{1}, []int32{1}).
		WillReturnRows(pgxmock.NewRows(seatRowColumns))

	seats, err := repo.FindByPositions(context.Background(), showtimeID, []entity.SeatPosition{{Row: 1, Column: 1}})
	require.NoError(t, err)
	assert.Empty(t, seats)
}

func TestSeatRepository_SetOccupiedOnlyFlipsChangedSeats(t *testing.T) {
	mock := newMockPool(t)
	repo := NewSeatRepository(mock, zaptest.NewLogger(t))
	ids := []uuid.UUID{uuid.New(), uuid.New()}

	mock.ExpectExec(`UPDATE seats SET occupied = \$2, updated_at = \$3 WHERE id = ANY\(\$1\) AND occupied <> \$2`).
		WithArgs(ids, true, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	changed, err := repo.SetOccupied(context.Background(), ids, true)
	require.NoError(t, err)
	assert.Equal(t, int64(1), changed)
}

func TestPaymentRepository_FindByIDForUpdate(t *testing.T) {
	mock := newMockPool(t)
	repo := NewPaymentRepository(mock, zaptest.NewLogger(t))
	id, userID, showtimeID := uuid.New(), uuid.New(), uuid.New()
	ref := "mp-123"
	now := time.Now()

	mock.ExpectQuery(`FROM payments WHERE id = \$1 FOR UPDATE`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(paymentRowColumns).AddRow(
			id, &ref, nil, &userID, &showtimeID, []string{"R1C1"}, 1,
			decimal.RequireFromString("1500.00"), decimal.RequireFromString("1500.00"), "ARS",
			nil, entity.PaymentStatusApproved, nil, now, now,
		))

	payment, err := repo.FindByIDForUpdate(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, payment)
	assert.Equal(t, entity.PaymentStatusApproved, payment.Status)
	require.NotNil(t, payment.ExternalRef)
	assert.Equal(t, ref, *payment.ExternalRef)
	assert.False(t, payment.HasTicket())
}

func TestPaymentRepository_FindByExternalRefForUpdateLocksRow(t *testing.T) {
	mock := newMockPool(t)
	repo := NewPaymentRepository(mock, zaptest.NewLogger(t))

	mock.ExpectQuery(`FROM payments WHERE external_ref = \$1 FOR UPDATE`).
		WithArgs("mp-404").
		WillReturnRows(pgxmock.NewRows(paymentRowColumns))

	payment, err := repo.FindByExternalRefForUpdate(context.Background(), "mp-404")
	require.NoError(t, err)
	assert.Nil(t, payment)
}

func TestPaymentRepository_CreateIfAbsentByExternalRef(t *testing.T) {
	ref := "mp-777"
	newPayment := func() *entity.Payment {
		return &entity.Payment{
			Base:        entity.NewBase(time.Now()),
			ExternalRef: &ref,
			Currency:    "ARS",
			Status:      entity.PaymentStatusPending,
		}
	}

	t.Run("inserted", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectExec(`INSERT INTO payments[\s\S]+ON CONFLICT \(external_ref\) DO NOTHING`).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		inserted, err := NewPaymentRepository(mock, zaptest.NewLogger(t)).CreateIfAbsentByExternalRef(context.Background(), newPayment())
		require.NoError(t, err)
		assert.True(t, inserted)
	})

	t.Run("already present", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectExec(`INSERT INTO payments[\s\S]+ON CONFLICT \(external_ref\) DO NOTHING`).
			WillReturnResult(pgxmock.NewResult("INSERT", 0))

		inserted, err := NewPaymentRepository(mock, zaptest.NewLogger(t)).CreateIfAbsentByExternalRef(context.Background(), newPayment())
		require.NoError(t, err)
		assert.False(t, inserted)
	})

	t.Run("reference required", func(t *testing.T) {
		mock := newMockPool(t)
		p := newPayment()
		p.ExternalRef = nil

		_, err := NewPaymentRepository(mock, zaptest.NewLogger(t)).CreateIfAbsentByExternalRef(context.Background(), p)
		assert.Error(t, err)
	})
}

func TestPaymentRepository_UpdateUniqueViolation(t *testing.T) {
	mock := newMockPool(t)
	repo := NewPaymentRepository(mock, zaptest.NewLogger(t))
	p := &entity.Payment{Base: entity.NewBase(time.Now()), Status: entity.PaymentStatusApproved}

	mock.ExpectExec(`UPDATE payments`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "payments_ticket_id_key"})

	err := repo.Update(context.Background(), p)
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestTicketRepository_CreateDuplicatePayment(t *testing.T) {
	mock := newMockPool(t)
	repo := NewTicketRepository(mock, zaptest.NewLogger(t))
	ticket := &entity.Ticket{
		ID:          uuid.New(),
		PaymentID:   uuid.New(),
		UserID:      uuid.New(),
		ShowtimeID:  uuid.New(),
		SeatCodes:   []string{"R1C1"},
		Quantity:    1,
		UnitPrice:   decimal.RequireFromString("1500.00"),
		TotalAmount: decimal.RequireFromString("1500.00"),
		PurchasedAt: time.Now(),
	}

	mock.ExpectExec(`INSERT INTO tickets`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "tickets_payment_id_key"})

	err := repo.Create(context.Background(), ticket)
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestPgStore_WithinTxCommitsInLockOrder(t *testing.T) {
	mock := newMockPool(t)
	store := NewStore(mock, zaptest.NewLogger(t))
	showtimeID, seatID := uuid.New(), uuid.New()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM showtimes WHERE id = \$1 FOR UPDATE`).
		WithArgs(showtimeID).
		WillReturnRows(showtimeRow(showtimeID, 4, 4))
	mock.ExpectQuery(`FOR UPDATE OF s`).
		WithArgs(showtimeID, []int32{1}, []int32{1}).
		WillReturnRows(pgxmock.NewRows(seatRowColumns).AddRow(seatID, showtimeID, 1, 1, false, now, now))
	mock.ExpectExec(`UPDATE seats SET occupied`).
		WithArgs([]uuid.UUID{seatID}, true, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery(`UPDATE showtimes`).
		WithArgs(showtimeID, -1, pgxmock.AnyArg()).
		WillReturnRows(showtimeRow(showtimeID, 4, 3))
	mock.ExpectCommit()

	err := store.WithinTx(context.Background(), func(ctx context.Context, tx *Repository) error {
		if _, err := tx.Showtime.FindByIDForUpdate(ctx, showtimeID); err != nil {
			return err
		}
		seats, err := tx.Seat.LockByPositions(ctx, showtimeID, []entity.SeatPosition{{Row: 1, Column: 1}})
		if err != nil {
			return err
		}
		if _, err := tx.Seat.SetOccupied(ctx, []uuid.UUID{seats[0].ID}, true); err != nil {
			return err
		}
		_, err = tx.Showtime.AdjustAvailable(ctx, showtimeID, -1)
		return err
	})
	require.NoError(t, err)
}

func TestPgStore_WithinTxRollsBackOnError(t *testing.T) {
	mock := newMockPool(t)
	store := NewStore(mock, zaptest.NewLogger(t))
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO payment_events`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectRollback()

	err := store.WithinTx(context.Background(), func(ctx context.Context, tx *Repository) error {
		if err := tx.PaymentEvent.Create(ctx, &entity.PaymentEvent{
			ID:       uuid.New(),
			Source:   entity.EventSourceWebhook,
			LoggedAt: time.Now(),
		}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestPgStore_WithinTxBeginFailure(t *testing.T) {
	mock := newMockPool(t)
	store := NewStore(mock, zaptest.NewLogger(t))

	mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

	called := false
	err := store.WithinTx(context.Background(), func(context.Context, *Repository) error {
		called = true
		return nil
	})
	assert.Error(t, err)
	assert.False(t, called)
}
