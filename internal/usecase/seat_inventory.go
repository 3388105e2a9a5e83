package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"cinema-ticketing/internal/data/entity"
	"cinema-ticketing/internal/data/repository"
	"cinema-ticketing/internal/dto/response"
	"cinema-ticketing/pkg/telemetry"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// SeatChange is the outcome of a commit or release.
type SeatChange struct {
	ShowtimeID        uuid.UUID
	SeatCodes         []string
	AvailableCapacity int
}

type SeatInventory interface {
	// Commit marks every requested seat occupied, or none of them.
	Commit(ctx context.Context, showtimeID uuid.UUID, seatCodes []string) (*SeatChange, error)
	CommitTx(ctx context.Context, tx *repository.Repository, showtimeID uuid.UUID, seatCodes []string) (*SeatChange, error)

	// Release frees the occupied seats among seatCodes. Seats that are
	// already free are skipped.
	Release(ctx context.Context, showtimeID uuid.UUID, seatCodes []string) (*SeatChange, error)
	ReleaseTx(ctx context.Context, tx *repository.Repository, showtimeID uuid.UUID, seatCodes []string) (*SeatChange, error)

	// CheckAvailable is a non-locking pre-check used before checkout.
	CheckAvailable(ctx context.Context, showtime *entity.Showtime, seatCodes []string) error

	SeatMap(ctx context.Context, showtimeID uuid.UUID) (*response.SeatMapResponse, error)
}

type seatInventory struct {
	store repository.Store
	log   *zap.Logger
}

func NewSeatInventory(store repository.Store, log *zap.Logger) SeatInventory {
	return &seatInventory{
		store: store,
		log:   log.With(zap.String("service", "seat_inventory")),
	}
}

func (s *seatInventory) Commit(ctx context.Context, showtimeID uuid.UUID, seatCodes []string) (*SeatChange, error) {
	var change *SeatChange
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx *repository.Repository) error {
		var err error
		change, err = s.CommitTx(ctx, tx, showtimeID, seatCodes)
		return err
	})
	if err != nil {
		return nil, err
	}

	telemetry.SeatsCommitted.Add(float64(len(change.SeatCodes)))
	return change, nil
}

func (s *seatInventory) CommitTx(ctx context.Context, tx *repository.Repository, showtimeID uuid.UUID, seatCodes []string) (*SeatChange, error) {
	ctx, span := telemetry.StartSpan(ctx, "seats.commit",
		attribute.String("showtime_id", showtimeID.String()),
		attribute.Int("seats", len(seatCodes)),
	)
	defer span.End()

	positions, err := entity.ParseSeatCodes(seatCodes)
	if err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}

	showtime, err := tx.Showtime.FindByIDForUpdate(ctx, showtimeID)
	if err != nil {
		return nil, fmt.Errorf("lock showtime %s: %w", showtimeID, err)
	}
	if showtime == nil {
		return nil, &NotFoundError{Resource: "showtime", ID: showtimeID.String()}
	}

	inGrid, unavailable := splitByGrid(showtime, positions)

	seats, err := tx.Seat.LockByPositions(ctx, showtimeID, inGrid)
	if err != nil {
		return nil, fmt.Errorf("lock seats: %w", err)
	}

	byPosition := make(map[entity.SeatPosition]*entity.Seat, len(seats))
	for _, seat := range seats {
		byPosition[seat.Position()] = seat
	}

	ids := make([]uuid.UUID, 0, len(inGrid))
	for _, p := range inGrid {
		seat, ok := byPosition[p]
		if !ok || seat.Occupied {
			unavailable = append(unavailable, p)
			continue
		}
		ids = append(ids, seat.ID)
	}

	if len(unavailable) > 0 {
		s.log.Info("Seat commit refused",
			zap.String("showtime_id", showtimeID.String()),
			zap.Strings("unavailable", sortedCodes(unavailable)),
		)
		return nil, &CapacityExceededError{ShowtimeID: showtimeID, Unavailable: sortedCodes(unavailable)}
	}

	changed, err := tx.Seat.SetOccupied(ctx, ids, true)
	if err != nil {
		return nil, fmt.Errorf("occupy seats: %w", err)
	}
	if changed != int64(len(ids)) {
		return nil, fmt.Errorf("occupy seats: expected %d rows, updated %d", len(ids), changed)
	}

	updated, err := tx.Showtime.AdjustAvailable(ctx, showtimeID, -len(ids))
	if err != nil {
		return nil, fmt.Errorf("decrement capacity: %w", err)
	}
	if updated == nil {
		return nil, &NotFoundError{Resource: "showtime", ID: showtimeID.String()}
	}

	return &SeatChange{
		ShowtimeID:        showtimeID,
		SeatCodes:         entity.SeatCodes(positions),
		AvailableCapacity: updated.AvailableCapacity,
	}, nil
}

func (s *seatInventory) Release(ctx context.Context, showtimeID uuid.UUID, seatCodes []string) (*SeatChange, error) {
	var change *SeatChange
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx *repository.Repository) error {
		var err error
		change, err = s.ReleaseTx(ctx, tx, showtimeID, seatCodes)
		return err
	})
	if err != nil {
		return nil, err
	}

	telemetry.SeatsReleased.Add(float64(len(change.SeatCodes)))
	s.log.Info("Seats released",
		zap.String("showtime_id", showtimeID.String()),
		zap.Strings("seats", change.SeatCodes),
	)
	return change, nil
}

func (s *seatInventory) ReleaseTx(ctx context.Context, tx *repository.Repository, showtimeID uuid.UUID, seatCodes []string) (*SeatChange, error) {
	positions, err := entity.ParseSeatCodes(seatCodes)
	if err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}

	showtime, err := tx.Showtime.FindByIDForUpdate(ctx, showtimeID)
	if err != nil {
		return nil, fmt.Errorf("lock showtime %s: %w", showtimeID, err)
	}
	if showtime == nil {
		return nil, &NotFoundError{Resource: "showtime", ID: showtimeID.String()}
	}

	inGrid, _ := splitByGrid(showtime, positions)
	seats, err := tx.Seat.LockByPositions(ctx, showtimeID, inGrid)
	if err != nil {
		return nil, fmt.Errorf("lock seats: %w", err)
	}

	var (
		ids      []uuid.UUID
		released []entity.SeatPosition
	)
	for _, seat := range seats {
		if seat.Occupied {
			ids = append(ids, seat.ID)
			released = append(released, seat.Position())
		}
	}

	change := &SeatChange{
		ShowtimeID:        showtimeID,
		SeatCodes:         sortedCodes(released),
		AvailableCapacity: showtime.AvailableCapacity,
	}
	if len(ids) == 0 {
		return change, nil
	}

	changed, err := tx.Seat.SetOccupied(ctx, ids, false)
	if err != nil {
		return nil, fmt.Errorf("free seats: %w", err)
	}
	if changed != int64(len(ids)) {
		return nil, fmt.Errorf("free seats: expected %d rows, updated %d", len(ids), changed)
	}

	updated, err := tx.Showtime.AdjustAvailable(ctx, showtimeID, len(ids))
	if err != nil {
		return nil, fmt.Errorf("increment capacity: %w", err)
	}
	if updated == nil {
		return nil, &NotFoundError{Resource: "showtime", ID: showtimeID.String()}
	}

	change.AvailableCapacity = updated.AvailableCapacity
	return change, nil
}

func (s *seatInventory) CheckAvailable(ctx context.Context, showtime *entity.Showtime, seatCodes []string) error {
	positions, err := entity.ParseSeatCodes(seatCodes)
	if err != nil {
		return &ValidationError{Message: err.Error()}
	}

	inGrid, unavailable := splitByGrid(showtime, positions)
	seats, err := s.store.Repos().Seat.FindByPositions(ctx, showtime.ID, inGrid)
	if err != nil {
		return fmt.Errorf("find seats: %w", err)
	}

	free := make(map[entity.SeatPosition]bool, len(seats))
	for _, seat := range seats {
		free[seat.Position()] = !seat.Occupied
	}
	for _, p := range inGrid {
		if !free[p] {
			unavailable = append(unavailable, p)
		}
	}

	if len(unavailable) > 0 {
		return &CapacityExceededError{ShowtimeID: showtime.ID, Unavailable: sortedCodes(unavailable)}
	}
	if len(positions) > showtime.AvailableCapacity {
		return &CapacityExceededError{ShowtimeID: showtime.ID, Unavailable: entity.SeatCodes(positions)}
	}
	return nil
}

func (s *seatInventory) SeatMap(ctx context.Context, showtimeID uuid.UUID) (*response.SeatMapResponse, error) {
	repos := s.store.Repos()

	showtime, err := repos.Showtime.FindByID(ctx, showtimeID)
	if err != nil {
		s.log.Error("Failed to get showtime", zap.Error(err), zap.String("showtime_id", showtimeID.String()))
		return nil, fmt.Errorf("get showtime: %w", err)
	}
	if showtime == nil {
		return nil, &NotFoundError{Resource: "showtime", ID: showtimeID.String()}
	}

	seats, err := repos.Seat.FindByShowtime(ctx, showtimeID)
	if err != nil {
		s.log.Error("Failed to get seats", zap.Error(err), zap.String("showtime_id", showtimeID.String()))
		return nil, fmt.Errorf("get seats: %w", err)
	}

	result := &response.SeatMapResponse{
		Showtime: response.ShowtimeToResponse(showtime),
		Seats:    make([]response.SeatResponse, 0, len(seats)),
	}
	for _, seat := range seats {
		result.Seats = append(result.Seats, response.SeatToResponse(seat))
	}

	return result, nil
}

// isSeatDomainError reports failures that leave the transaction usable:
// the request was refused before anything was written.
func isSeatDomainError(err error) bool {
	var (
		validation *ValidationError
		notFound   *NotFoundError
		capacity   *CapacityExceededError
	)
	return errors.As(err, &validation) || errors.As(err, &notFound) || errors.As(err, &capacity)
}

func splitByGrid(showtime *entity.Showtime, positions []entity.SeatPosition) (inGrid, outside []entity.SeatPosition) {
	for _, p := range positions {
		if showtime.Contains(p) {
			inGrid = append(inGrid, p)
		} else {
			outside = append(outside, p)
		}
	}
	return inGrid, outside
}

func sortedCodes(positions []entity.SeatPosition) []string {
	sorted := append([]entity.SeatPosition(nil), positions...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Row != sorted[j].Row {
			return sorted[i].Row < sorted[j].Row
		}
		return sorted[i].Column < sorted[j].Column
	})
	return entity.SeatCodes(sorted)
}
