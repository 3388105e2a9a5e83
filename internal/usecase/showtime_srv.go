package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cinema-ticketing/internal/data/entity"
	"cinema-ticketing/internal/data/repository"
	"cinema-ticketing/internal/dto/request"
	"cinema-ticketing/internal/dto/response"
	"cinema-ticketing/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ShowtimeService interface {
	// Public
	GetShowtime(ctx context.Context, showtimeID uuid.UUID) (*response.ShowtimeResponse, error)
	GetSeatMap(ctx context.Context, showtimeID uuid.UUID) (*response.SeatMapResponse, error)

	// Admin
	CreateShowtime(ctx context.Context, req *request.CreateShowtimeRequest) (*response.ShowtimeResponse, error)
	DeleteShowtime(ctx context.Context, showtimeID uuid.UUID) error
	ReleaseSeats(ctx context.Context, showtimeID uuid.UUID, req *request.ReleaseSeatsRequest) (*response.SeatChangeResponse, error)
	CheckCapacity(ctx context.Context, showtimeID uuid.UUID) (*response.CapacityReportResponse, error)
}

type showtimeService struct {
	store     repository.Store
	inventory SeatInventory
	log       *zap.Logger
}

func NewShowtimeService(store repository.Store, inventory SeatInventory, log *zap.Logger) ShowtimeService {
	return &showtimeService{
		store:     store,
		inventory: inventory,
		log:       log.With(zap.String("service", "showtime")),
	}
}

func (s *showtimeService) GetShowtime(ctx context.Context, showtimeID uuid.UUID) (*response.ShowtimeResponse, error) {
	showtime, err := s.store.Repos().Showtime.FindByID(ctx, showtimeID)
	if err != nil {
		s.log.Error("Failed to get showtime", zap.Error(err), zap.String("showtime_id", showtimeID.String()))
		return nil, fmt.Errorf("get showtime: %w", err)
	}
	if showtime == nil {
		return nil, &NotFoundError{Resource: "showtime", ID: showtimeID.String()}
	}

	resp := response.ShowtimeToResponse(showtime)
	return &resp, nil
}

func (s *showtimeService) GetSeatMap(ctx context.Context, showtimeID uuid.UUID) (*response.SeatMapResponse, error) {
	return s.inventory.SeatMap(ctx, showtimeID)
}

func (s *showtimeService) CreateShowtime(ctx context.Context, req *request.CreateShowtimeRequest) (*response.ShowtimeResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Warn("Create showtime validation failed", zap.Any("errors", errs))
		return nil, &ValidationError{Message: utils.FormatValidationErrors(errs), Fields: errs}
	}

	now := time.Now()
	if !req.StartsAt.After(now) {
		return nil, newValidationError("showtime must start in the future")
	}

	showtime := entity.NewShowtime(req.MovieID, req.RoomID, req.StartsAt, req.RunLengthMinutes, req.SeatRows, req.SeatColumns, now)

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx *repository.Repository) error {
		if err := tx.Showtime.Create(ctx, showtime); err != nil {
			return err
		}
		return tx.Seat.CreateBatch(ctx, showtime.GenerateSeats(now))
	})
	if err != nil {
		s.log.Error("Failed to create showtime", zap.Error(err))
		return nil, fmt.Errorf("create showtime: %w", err)
	}

	s.log.Info("Showtime created",
		zap.String("showtime_id", showtime.ID.String()),
		zap.String("movie_id", showtime.MovieID),
		zap.Int("capacity", showtime.TotalCapacity),
	)

	resp := response.ShowtimeToResponse(showtime)
	return &resp, nil
}

func (s *showtimeService) DeleteShowtime(ctx context.Context, showtimeID uuid.UUID) error {
	repos := s.store.Repos()

	tickets, err := repos.Ticket.CountByShowtime(ctx, showtimeID)
	if err != nil {
		s.log.Error("Failed to count showtime tickets", zap.Error(err), zap.String("showtime_id", showtimeID.String()))
		return fmt.Errorf("count tickets: %w", err)
	}
	if tickets > 0 {
		return newValidationError("showtime %s has %d issued tickets", showtimeID, tickets)
	}

	err = repos.Showtime.Delete(ctx, showtimeID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return &NotFoundError{Resource: "showtime", ID: showtimeID.String()}
	case errors.Is(err, repository.ErrInUse):
		// a ticket was issued between the count and the delete
		return newValidationError("showtime %s has issued tickets", showtimeID)
	case err != nil:
		return fmt.Errorf("delete showtime: %w", err)
	}

	return nil
}

func (s *showtimeService) ReleaseSeats(ctx context.Context, showtimeID uuid.UUID, req *request.ReleaseSeatsRequest) (*response.SeatChangeResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Warn("Release seats validation failed", zap.Any("errors", errs))
		return nil, &ValidationError{Message: utils.FormatValidationErrors(errs), Fields: errs}
	}

	change, err := s.inventory.Release(ctx, showtimeID, req.SeatCodes)
	if err != nil {
		return nil, err
	}

	return &response.SeatChangeResponse{
		ShowtimeID:        change.ShowtimeID.String(),
		SeatCodes:         change.SeatCodes,
		AvailableCapacity: change.AvailableCapacity,
	}, nil
}

// CheckCapacity compares the capacity counter against the seat rows it is
// supposed to mirror.
func (s *showtimeService) CheckCapacity(ctx context.Context, showtimeID uuid.UUID) (*response.CapacityReportResponse, error) {
	repos := s.store.Repos()

	showtime, err := repos.Showtime.FindByID(ctx, showtimeID)
	if err != nil {
		return nil, fmt.Errorf("get showtime: %w", err)
	}
	if showtime == nil {
		return nil, &NotFoundError{Resource: "showtime", ID: showtimeID.String()}
	}

	occupied, err := repos.Seat.CountOccupied(ctx, showtimeID)
	if err != nil {
		return nil, fmt.Errorf("count occupied seats: %w", err)
	}

	report := &response.CapacityReportResponse{
		ShowtimeID:        showtimeID.String(),
		TotalCapacity:     showtime.TotalCapacity,
		AvailableCapacity: showtime.AvailableCapacity,
		OccupiedSeats:     occupied,
		Consistent:        showtime.AvailableCapacity == showtime.TotalCapacity-occupied,
	}
	if !report.Consistent {
		s.log.Error("Capacity counter out of sync with seats",
			zap.String("showtime_id", showtimeID.String()),
			zap.Int("available", showtime.AvailableCapacity),
			zap.Int("occupied", occupied),
		)
	}

	return report, nil
}
