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

// ErrCapacityBounds is returned when an adjustment would push available
// capacity below zero or above total.
var ErrCapacityBounds = errors.New("available capacity out of bounds")

type ShowtimeRepository interface {
	Create(ctx context.Context, showtime *entity.Showtime) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Showtime, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Showtime, error)
	AdjustAvailable(ctx context.Context, id uuid.UUID, delta int) (*entity.Showtime, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type showtimeRepository struct {
	db  database.Querier
	log *zap.Logger
}

func NewShowtimeRepository(db database.Querier, log *zap.Logger) ShowtimeRepository {
	return &showtimeRepository{
		db:  db,
		log: log.With(zap.String("repository", "showtime")),
	}
}

const showtimeColumns = `id, movie_id, room_id, starts_at, run_length_minutes, seat_rows, seat_columns,
		total_capacity, available_capacity, enabled, created_at, updated_at`

func scanShowtime(row pgx.Row) (*entity.Showtime, error) {
	var s entity.Showtime
	err := row.Scan(
		&s.ID,
		&s.MovieID,
		&s.RoomID,
		&s.StartsAt,
		&s.RunLengthMinutes,
		&s.SeatRows,
		&s.SeatColumns,
		&s.TotalCapacity,
		&s.AvailableCapacity,
		&s.Enabled,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *showtimeRepository) Create(ctx context.Context, showtime *entity.Showtime) error {
	query := `
		INSERT INTO showtimes (` + showtimeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.db.Exec(ctx, query,
		showtime.ID,
		showtime.MovieID,
		showtime.RoomID,
		showtime.StartsAt,
		showtime.RunLengthMinutes,
		showtime.SeatRows,
		showtime.SeatColumns,
		showtime.TotalCapacity,
		showtime.AvailableCapacity,
		showtime.Enabled,
		showtime.CreatedAt,
		showtime.UpdatedAt,
	)
	if err != nil {
		r.log.Error("Failed to create showtime",
			zap.Error(err),
			zap.String("movie_id", showtime.MovieID),
			zap.String("room_id", showtime.RoomID),
		)
		return fmt.Errorf("create showtime %s: %w", showtime.ID, err)
	}

	return nil
}

func (r *showtimeRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Showtime, error) {
	return r.find(ctx, `SELECT `+showtimeColumns+` FROM showtimes WHERE id = $1`, id)
}

// FindByIDForUpdate row-locks the showtime for the rest of the transaction.
func (r *showtimeRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Showtime, error) {
	return r.find(ctx, `SELECT `+showtimeColumns+` FROM showtimes WHERE id = $1 FOR UPDATE`, id)
}

func (r *showtimeRepository) find(ctx context.Context, query string, id uuid.UUID) (*entity.Showtime, error) {
	showtime, err := scanShowtime(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find showtime by ID",
			zap.Error(err),
			zap.String("showtime_id", id.String()),
		)
		return nil, fmt.Errorf("find showtime by ID %s: %w", id, err)
	}

	return showtime, nil
}

// AdjustAvailable shifts available capacity by delta, refusing to leave the
// [0, total] range. Returns nil when the showtime does not exist.
func (r *showtimeRepository) AdjustAvailable(ctx context.Context, id uuid.UUID, delta int) (*entity.Showtime, error) {
	query := `
		UPDATE showtimes
		SET available_capacity = available_capacity + $2, updated_at = $3
		WHERE id = $1
		RETURNING ` + showtimeColumns

	showtime, err := scanShowtime(r.db.QueryRow(ctx, query, id, delta, time.Now()))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if isCheckViolation(err) {
		return nil, fmt.Errorf("adjust showtime %s by %d: %w", id, delta, ErrCapacityBounds)
	}
	if err != nil {
		r.log.Error("Failed to adjust available capacity",
			zap.Error(err),
			zap.String("showtime_id", id.String()),
			zap.Int("delta", delta),
		)
		return nil, fmt.Errorf("adjust showtime %s capacity: %w", id, err)
	}

	return showtime, nil
}

func (r *showtimeRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM showtimes WHERE id = $1`, id)
	if isFKViolation(err) {
		return fmt.Errorf("delete showtime %s: %w", id, ErrInUse)
	}
	if err != nil {
		r.log.Error("Failed to delete showtime",
			zap.Error(err),
			zap.String("showtime_id", id.String()),
		)
		return fmt.Errorf("delete showtime %s: %w", id, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("showtime %s: %w", id, ErrNotFound)
	}

	r.log.Info("Showtime deleted", zap.String("showtime_id", id.String()))
	return nil
}
