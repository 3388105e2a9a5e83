package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cinema-ticketing/internal/data/entity"
	"cinema-ticketing/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type SeatRepository interface {
	CreateBatch(ctx context.Context, seats []*entity.Seat) error
	FindByShowtime(ctx context.Context, showtimeID uuid.UUID) ([]*entity.Seat, error)
	FindByPositions(ctx context.Context, showtimeID uuid.UUID, positions []entity.SeatPosition) ([]*entity.Seat, error)

	// LockByPositions is FindByPositions with FOR UPDATE, locking in id order
	LockByPositions(ctx context.Context, showtimeID uuid.UUID, positions []entity.SeatPosition) ([]*entity.Seat, error)

	// SetOccupied flips only seats whose flag differs and reports how many changed
	SetOccupied(ctx context.Context, seatIDs []uuid.UUID, occupied bool) (int64, error)
	CountOccupied(ctx context.Context, showtimeID uuid.UUID) (int, error)
}

type seatRepository struct {
	db  database.Querier
	log *zap.Logger
}

func NewSeatRepository(db database.Querier, log *zap.Logger) SeatRepository {
	return &seatRepository{
		db:  db,
		log: log.With(zap.String("repository", "seat")),
	}
}

const seatColumns = `s.id, s.showtime_id, s.seat_row, s.seat_column, s.occupied, s.created_at, s.updated_at`

func (r *seatRepository) CreateBatch(ctx context.Context, seats []*entity.Seat) error {
	if len(seats) == 0 {
		return nil
	}

	// Build batch insert
	var sb strings.Builder
	sb.WriteString(`INSERT INTO seats (id, showtime_id, seat_row, seat_column, occupied, created_at, updated_at) VALUES `)
	args := make([]any, 0, len(seats)*7)

	for i, seat := range seats {
		if i > 0 {
			sb.WriteString(", ")
		}
		n := i * 7
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4, n+5, n+6, n+7)
		args = append(args,
			seat.ID,
			seat.ShowtimeID,
			seat.Row,
			seat.Column,
			seat.Occupied,
			seat.CreatedAt,
			seat.UpdatedAt,
		)
	}

	if _, err := r.db.Exec(ctx, sb.String(), args...); err != nil {
		r.log.Error("Failed to create seats",
			zap.Error(err),
			zap.String("showtime_id", seats[0].ShowtimeID.String()),
			zap.Int("seat_count", len(seats)),
		)
		return fmt.Errorf("create %d seats: %w", len(seats), err)
	}

	return nil
}

func (r *seatRepository) FindByShowtime(ctx context.Context, showtimeID uuid.UUID) ([]*entity.Seat, error) {
	query := `
		SELECT ` + seatColumns + `
		FROM seats s
		WHERE s.showtime_id = $1
		ORDER BY s.seat_row, s.seat_column
	`

	rows, err := r.db.Query(ctx, query, showtimeID)
	if err != nil {
		r.log.Error("Failed to find seats by showtime",
			zap.Error(err),
			zap.String("showtime_id", showtimeID.String()),
		)
		return nil, fmt.Errorf("find seats by showtime %s: %w", showtimeID, err)
	}

	return collectSeats(rows)
}

func (r *seatRepository) FindByPositions(ctx context.Context, showtimeID uuid.UUID, positions []entity.SeatPosition) ([]*entity.Seat, error) {
	return r.findByPositions(ctx, showtimeID, positions, false)
}

func (r *seatRepository) LockByPositions(ctx context.Context, showtimeID uuid.UUID, positions []entity.SeatPosition) ([]*entity.Seat, error) {
	return r.findByPositions(ctx, showtimeID, positions, true)
}

func (r *seatRepository) findByPositions(ctx context.Context, showtimeID uuid.UUID, positions []entity.SeatPosition, lock bool) ([]*entity.Seat, error) {
	if len(positions) == 0 {
		return nil, nil
	}

	rowsArg := make([]int32, len(positions))
	colsArg := make([]int32, len(positions))
	for i, p := range positions {
		rowsArg[i] = int32(p.Row)
		colsArg[i] = int32(p.Column)
	}

	query := `
		SELECT ` + seatColumns + `
		FROM seats s
		JOIN unnest($2::int[], $3::int[]) AS p(seat_row, seat_column)
		  ON s.seat_row = p.seat_row AND s.seat_column = p.seat_column
		WHERE s.showtime_id = $1
		ORDER BY s.id
	`
	if lock {
		query += ` FOR UPDATE OF s`
	}

	rows, err := r.db.Query(ctx, query, showtimeID, rowsArg, colsArg)
	if err != nil {
		r.log.Error("Failed to find seats by position",
			zap.Error(err),
			zap.String("showtime_id", showtimeID.String()),
			zap.Int("seat_count", len(positions)),
			zap.Bool("lock", lock),
		)
		return nil, fmt.Errorf("find seats for showtime %s: %w", showtimeID, err)
	}

	return collectSeats(rows)
}

func (r *seatRepository) SetOccupied(ctx context.Context, seatIDs []uuid.UUID, occupied bool) (int64, error) {
	if len(seatIDs) == 0 {
		return 0, nil
	}

	query := `UPDATE seats SET occupied = $2, updated_at = $3 WHERE id = ANY($1) AND occupied <> $2`

	result, err := r.db.Exec(ctx, query, seatIDs, occupied, time.Now())
	if err != nil {
		r.log.Error("Failed to update seat occupancy",
			zap.Error(err),
			zap.Int("seat_count", len(seatIDs)),
			zap.Bool("occupied", occupied),
		)
		return 0, fmt.Errorf("set %d seats occupied=%t: %w", len(seatIDs), occupied, err)
	}

	return result.RowsAffected(), nil
}

func (r *seatRepository) CountOccupied(ctx context.Context, showtimeID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM seats WHERE showtime_id = $1 AND occupied`,
		showtimeID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count occupied seats for showtime %s: %w", showtimeID, err)
	}
	return count, nil
}

func collectSeats(rows pgx.Rows) ([]*entity.Seat, error) {
	defer rows.Close()

	var seats []*entity.Seat
	for rows.Next() {
		var seat entity.Seat
		if err := rows.Scan(
			&seat.ID,
			&seat.ShowtimeID,
			&seat.Row,
			&seat.Column,
			&seat.Occupied,
			&seat.CreatedAt,
			&seat.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan seat: %w", err)
		}
		seats = append(seats, &seat)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate seats: %w", err)
	}

	return seats, nil
}
