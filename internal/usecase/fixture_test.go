package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"cinema-ticketing/internal/data/entity"
	"cinema-ticketing/internal/data/repository"
	"cinema-ticketing/internal/dto/request"
	"cinema-ticketing/internal/processor"
	"cinema-ticketing/internal/publisher"
	"cinema-ticketing/pkg/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []publisher.TicketIssued
}

func (p *recordingPublisher) PublishTicketIssued(_ context.Context, event publisher.TicketIssued) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() {}

func (p *recordingPublisher) Published() []publisher.TicketIssued {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]publisher.TicketIssued(nil), p.events...)
}

type fixture struct {
	store     repository.Store
	memory    *repository.MemoryStore // nil when backed by Postgres
	processor *processor.Mock
	publisher *recordingPublisher
	config    *utils.Config
	svc       *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	memory := repository.NewMemoryStore()
	f := newFixtureWithStore(t, memory)
	f.memory = memory
	return f
}

func newFixtureWithStore(t *testing.T, store repository.Store) *fixture {
	t.Helper()

	config := &utils.Config{
		App: utils.AppConfig{
			Name:        "cinema-ticketing-test",
			PublicURL:   "https://api.example.test",
			FrontendURL: "https://app.example.test",
		},
		Payment: utils.PaymentConfig{
			Provider: "mock",
			Currency: "ARS",
			Timeout:  5 * time.Second,
		},
	}

	f := &fixture{
		store:     store,
		processor: processor.NewMock(),
		publisher: &recordingPublisher{},
		config:    config,
	}
	f.svc = NewService(f.store, f.processor, f.publisher, config, zaptest.NewLogger(t))
	return f
}

// seedShowtime creates a showtime starting tomorrow with a rows x cols grid
func (f *fixture) seedShowtime(t *testing.T, rows, cols int) *entity.Showtime {
	t.Helper()
	ctx := context.Background()
	now := time.Now()

	showtime := entity.NewShowtime("tt0068646", "room-1", now.Add(24*time.Hour), 175, rows, cols, now)
	require.NoError(t, f.store.Repos().Showtime.Create(ctx, showtime))
	require.NoError(t, f.store.Repos().Seat.CreateBatch(ctx, showtime.GenerateSeats(now)))
	return showtime
}

func (f *fixture) showtime(t *testing.T, id uuid.UUID) *entity.Showtime {
	t.Helper()
	s, err := f.store.Repos().Showtime.FindByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, s)
	return s
}

func (f *fixture) payment(t *testing.T, id uuid.UUID) *entity.Payment {
	t.Helper()
	p, err := f.store.Repos().Payment.FindByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, p)
	return p
}

func (f *fixture) occupied(t *testing.T, showtimeID uuid.UUID) int {
	t.Helper()
	n, err := f.store.Repos().Seat.CountOccupied(context.Background(), showtimeID)
	require.NoError(t, err)
	return n
}

// book creates a payment attempt for userID and returns the payment id
func (f *fixture) book(t *testing.T, userID uuid.UUID, showtimeID uuid.UUID, codes ...string) uuid.UUID {
	t.Helper()

	handle, err := f.svc.Payment.CreateAttempt(context.Background(), userID, &request.CreateBookingRequest{
		ShowtimeID: showtimeID.String(),
		SeatCodes:  codes,
		Quantity:   len(codes),
		UnitPrice:  decimal.RequireFromString("1500.00"),
	})
	require.NoError(t, err)
	return uuid.MustParse(handle.PaymentID)
}

// settle registers what the processor reports for eventID
func (f *fixture) settle(eventID string, paymentID uuid.UUID, status string) {
	f.processor.SetPayment(eventID, processor.PaymentInfo{
		PaymentRef:       eventID,
		Status:           status,
		CorrelationToken: paymentID.String(),
		PayerEmail:       "buyer@example.test",
		Currency:         "ARS",
	})
}

// assertCapacityInvariant checks available == total - occupied
func (f *fixture) assertCapacityInvariant(t *testing.T, showtimeID uuid.UUID) {
	t.Helper()
	s := f.showtime(t, showtimeID)
	require.Equal(t, s.TotalCapacity-f.occupied(t, showtimeID), s.AvailableCapacity)
}
