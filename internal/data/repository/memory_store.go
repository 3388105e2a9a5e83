package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"cinema-ticketing/internal/data/entity"

	"github.com/google/uuid"
)

// MemoryStore keeps every table in process memory. Transactions are
// serialized: WithinTx works on a copy of the state and swaps it in only
// when the TxFunc succeeds. It backs DB_DRIVER=memory and service tests.
type MemoryStore struct {
	mu    sync.Mutex
	state *memState
	repos *Repository
}

type memState struct {
	showtimes map[uuid.UUID]*entity.Showtime
	seats     map[uuid.UUID]*entity.Seat
	payments  map[uuid.UUID]*entity.Payment
	tickets   map[uuid.UUID]*entity.Ticket
	events    []*entity.PaymentEvent
}

func newMemState() *memState {
	return &memState{
		showtimes: make(map[uuid.UUID]*entity.Showtime),
		seats:     make(map[uuid.UUID]*entity.Seat),
		payments:  make(map[uuid.UUID]*entity.Payment),
		tickets:   make(map[uuid.UUID]*entity.Ticket),
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	for id, v := range s.showtimes {
		cp := *v
		c.showtimes[id] = &cp
	}
	for id, v := range s.seats {
		cp := *v
		c.seats[id] = &cp
	}
	for id, v := range s.payments {
		c.payments[id] = v.Clone()
	}
	for id, v := range s.tickets {
		c.tickets[id] = v.Clone()
	}
	// events are append-only, the rows themselves are never mutated
	c.events = append([]*entity.PaymentEvent(nil), s.events...)
	return c
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{state: newMemState()}
	s.repos = s.bind(nil)
	return s
}

func (s *MemoryStore) Repos() *Repository {
	return s.repos
}

func (s *MemoryStore) WithinTx(ctx context.Context, fn TxFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	work := s.state.clone()
	if err := fn(ctx, s.bind(work)); err != nil {
		return err
	}
	s.state = work
	return nil
}

func (s *MemoryStore) bind(tx *memState) *Repository {
	m := &memDB{store: s, tx: tx}
	return &Repository{
		Showtime:     &memShowtimeRepo{m},
		Seat:         &memSeatRepo{m},
		Payment:      &memPaymentRepo{m},
		Ticket:       &memTicketRepo{m},
		PaymentEvent: &memPaymentEventRepo{m},
	}
}

// memDB runs fn on the transaction's state, or on the live state under the
// store lock when not inside a transaction.
type memDB struct {
	store *MemoryStore
	tx    *memState
}

func (m *memDB) do(fn func(st *memState) error) error {
	if m.tx != nil {
		return fn(m.tx)
	}
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	return fn(m.store.state)
}

// ==================== SHOWTIMES ====================

type memShowtimeRepo struct{ *memDB }

func (r *memShowtimeRepo) Create(_ context.Context, showtime *entity.Showtime) error {
	return r.do(func(st *memState) error {
		if _, ok := st.showtimes[showtime.ID]; ok {
			return fmt.Errorf("create showtime %s: %w", showtime.ID, ErrDuplicate)
		}
		cp := *showtime
		st.showtimes[showtime.ID] = &cp
		return nil
	})
}

func (r *memShowtimeRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.Showtime, error) {
	var out *entity.Showtime
	err := r.do(func(st *memState) error {
		if s, ok := st.showtimes[id]; ok {
			cp := *s
			out = &cp
		}
		return nil
	})
	return out, err
}

func (r *memShowtimeRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Showtime, error) {
	return r.FindByID(ctx, id)
}

func (r *memShowtimeRepo) AdjustAvailable(_ context.Context, id uuid.UUID, delta int) (*entity.Showtime, error) {
	var out *entity.Showtime
	err := r.do(func(st *memState) error {
		s, ok := st.showtimes[id]
		if !ok {
			return nil
		}
		next := s.AvailableCapacity + delta
		if next < 0 || next > s.TotalCapacity {
			return fmt.Errorf("adjust showtime %s by %d: %w", id, delta, ErrCapacityBounds)
		}
		s.AvailableCapacity = next
		s.UpdatedAt = time.Now()
		cp := *s
		out = &cp
		return nil
	})
	return out, err
}

func (r *memShowtimeRepo) Delete(_ context.Context, id uuid.UUID) error {
	return r.do(func(st *memState) error {
		if _, ok := st.showtimes[id]; !ok {
			return fmt.Errorf("showtime %s: %w", id, ErrNotFound)
		}
		for _, t := range st.tickets {
			if t.ShowtimeID == id {
				return fmt.Errorf("delete showtime %s: %w", id, ErrInUse)
			}
		}
		delete(st.showtimes, id)
		for seatID, seat := range st.seats {
			if seat.ShowtimeID == id {
				delete(st.seats, seatID)
			}
		}
		for _, p := range st.payments {
			if p.ShowtimeID != nil && *p.ShowtimeID == id {
				p.ShowtimeID = nil
			}
		}
		return nil
	})
}

// ==================== SEATS ====================

type memSeatRepo struct{ *memDB }

func (r *memSeatRepo) CreateBatch(_ context.Context, seats []*entity.Seat) error {
	return r.do(func(st *memState) error {
		type key struct {
			showtime uuid.UUID
			pos      entity.SeatPosition
		}
		taken := make(map[key]struct{}, len(st.seats))
		for _, s := range st.seats {
			taken[key{s.ShowtimeID, s.Position()}] = struct{}{}
		}
		for _, seat := range seats {
			if _, ok := st.showtimes[seat.ShowtimeID]; !ok {
				return fmt.Errorf("create seat %s: showtime %s: %w", seat.Code(), seat.ShowtimeID, ErrNotFound)
			}
			k := key{seat.ShowtimeID, seat.Position()}
			if _, ok := taken[k]; ok {
				return fmt.Errorf("create seat %s: %w", seat.Code(), ErrDuplicate)
			}
			taken[k] = struct{}{}
		}
		for _, seat := range seats {
			cp := *seat
			st.seats[seat.ID] = &cp
		}
		return nil
	})
}

func (r *memSeatRepo) FindByShowtime(_ context.Context, showtimeID uuid.UUID) ([]*entity.Seat, error) {
	var out []*entity.Seat
	err := r.do(func(st *memState) error {
		for _, s := range st.seats {
			if s.ShowtimeID == showtimeID {
				cp := *s
				out = append(out, &cp)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Row != out[j].Row {
			return out[i].Row < out[j].Row
		}
		return out[i].Column < out[j].Column
	})
	return out, err
}

func (r *memSeatRepo) FindByPositions(_ context.Context, showtimeID uuid.UUID, positions []entity.SeatPosition) ([]*entity.Seat, error) {
	want := make(map[entity.SeatPosition]struct{}, len(positions))
	for _, p := range positions {
		want[p] = struct{}{}
	}

	var out []*entity.Seat
	err := r.do(func(st *memState) error {
		for _, s := range st.seats {
			if s.ShowtimeID != showtimeID {
				continue
			}
			if _, ok := want[s.Position()]; ok {
				cp := *s
				out = append(out, &cp)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, err
}

func (r *memSeatRepo) LockByPositions(ctx context.Context, showtimeID uuid.UUID, positions []entity.SeatPosition) ([]*entity.Seat, error) {
	return r.FindByPositions(ctx, showtimeID, positions)
}

func (r *memSeatRepo) SetOccupied(_ context.Context, seatIDs []uuid.UUID, occupied bool) (int64, error) {
	var changed int64
	err := r.do(func(st *memState) error {
		now := time.Now()
		for _, id := range seatIDs {
			s, ok := st.seats[id]
			if !ok || s.Occupied == occupied {
				continue
			}
			s.Occupied = occupied
			s.UpdatedAt = now
			changed++
		}
		return nil
	})
	return changed, err
}

func (r *memSeatRepo) CountOccupied(_ context.Context, showtimeID uuid.UUID) (int, error) {
	var count int
	err := r.do(func(st *memState) error {
		for _, s := range st.seats {
			if s.ShowtimeID == showtimeID && s.Occupied {
				count++
			}
		}
		return nil
	})
	return count, err
}

// ==================== PAYMENTS ====================

type memPaymentRepo struct{ *memDB }

func externalRefTaken(st *memState, ref *string, except uuid.UUID) bool {
	if ref == nil {
		return false
	}
	for id, p := range st.payments {
		if id != except && p.ExternalRef != nil && *p.ExternalRef == *ref {
			return true
		}
	}
	return false
}

func ticketLinkTaken(st *memState, ticketID *uuid.UUID, except uuid.UUID) bool {
	if ticketID == nil {
		return false
	}
	for id, p := range st.payments {
		if id != except && p.TicketID != nil && *p.TicketID == *ticketID {
			return true
		}
	}
	return false
}

func (r *memPaymentRepo) Create(_ context.Context, payment *entity.Payment) error {
	return r.do(func(st *memState) error {
		if _, ok := st.payments[payment.ID]; ok || externalRefTaken(st, payment.ExternalRef, payment.ID) {
			return fmt.Errorf("create payment %s: %w", payment.ID, ErrDuplicate)
		}
		st.payments[payment.ID] = payment.Clone()
		return nil
	})
}

func (r *memPaymentRepo) CreateIfAbsentByExternalRef(_ context.Context, payment *entity.Payment) (bool, error) {
	if payment.ExternalRef == nil {
		return false, fmt.Errorf("create payment %s: external reference is required", payment.ID)
	}
	var inserted bool
	err := r.do(func(st *memState) error {
		if externalRefTaken(st, payment.ExternalRef, payment.ID) {
			return nil
		}
		st.payments[payment.ID] = payment.Clone()
		inserted = true
		return nil
	})
	return inserted, err
}

func (r *memPaymentRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.Payment, error) {
	var out *entity.Payment
	err := r.do(func(st *memState) error {
		if p, ok := st.payments[id]; ok {
			out = p.Clone()
		}
		return nil
	})
	return out, err
}

func (r *memPaymentRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Payment, error) {
	return r.FindByID(ctx, id)
}

func (r *memPaymentRepo) FindByExternalRefForUpdate(_ context.Context, externalRef string) (*entity.Payment, error) {
	var out *entity.Payment
	err := r.do(func(st *memState) error {
		for _, p := range st.payments {
			if p.ExternalRef != nil && *p.ExternalRef == externalRef {
				out = p.Clone()
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (r *memPaymentRepo) SetCheckout(_ context.Context, id uuid.UUID, checkoutID string) error {
	return r.do(func(st *memState) error {
		p, ok := st.payments[id]
		if !ok {
			return fmt.Errorf("payment %s: %w", id, ErrNotFound)
		}
		p.CheckoutID = &checkoutID
		p.UpdatedAt = time.Now()
		return nil
	})
}

func (r *memPaymentRepo) Update(_ context.Context, payment *entity.Payment) error {
	return r.do(func(st *memState) error {
		current, ok := st.payments[payment.ID]
		if !ok {
			return fmt.Errorf("payment %s: %w", payment.ID, ErrNotFound)
		}
		if externalRefTaken(st, payment.ExternalRef, payment.ID) || ticketLinkTaken(st, payment.TicketID, payment.ID) {
			return fmt.Errorf("update payment %s: %w", payment.ID, ErrDuplicate)
		}
		// only the mutable columns are taken from the caller
		in := payment.Clone()
		current.ExternalRef = in.ExternalRef
		current.CheckoutID = in.CheckoutID
		current.PayerEmail = in.PayerEmail
		current.Status = in.Status
		current.TicketID = in.TicketID
		current.UpdatedAt = in.UpdatedAt
		return nil
	})
}

func (r *memPaymentRepo) FindByUserID(_ context.Context, userID uuid.UUID, limit, offset int) ([]*entity.Payment, error) {
	var all []*entity.Payment
	err := r.do(func(st *memState) error {
		for _, p := range st.payments {
			if p.UserID != nil && *p.UserID == userID {
				all = append(all, p.Clone())
			}
		}
		return nil
	})
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return page(all, limit, offset), err
}

func (r *memPaymentRepo) CountByUserID(_ context.Context, userID uuid.UUID) (int64, error) {
	var total int64
	err := r.do(func(st *memState) error {
		for _, p := range st.payments {
			if p.UserID != nil && *p.UserID == userID {
				total++
			}
		}
		return nil
	})
	return total, err
}

func (r *memPaymentRepo) FindStalePending(_ context.Context, cutoff time.Time, limit int) ([]*entity.Payment, error) {
	var out []*entity.Payment
	err := r.do(func(st *memState) error {
		for _, p := range st.payments {
			if p.Status == entity.PaymentStatusPending && p.ExternalRef == nil && p.TicketID == nil && p.CreatedAt.Before(cutoff) {
				out = append(out, p.Clone())
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return page(out, limit, 0), err
}

// ==================== TICKETS ====================

type memTicketRepo struct{ *memDB }

func (r *memTicketRepo) Create(_ context.Context, ticket *entity.Ticket) error {
	return r.do(func(st *memState) error {
		if _, ok := st.showtimes[ticket.ShowtimeID]; !ok {
			return fmt.Errorf("create ticket: showtime %s: %w", ticket.ShowtimeID, ErrNotFound)
		}
		for _, t := range st.tickets {
			if t.PaymentID == ticket.PaymentID || t.ID == ticket.ID {
				return fmt.Errorf("create ticket for payment %s: %w", ticket.PaymentID, ErrDuplicate)
			}
		}
		st.tickets[ticket.ID] = ticket.Clone()
		return nil
	})
}

func (r *memTicketRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.Ticket, error) {
	var out *entity.Ticket
	err := r.do(func(st *memState) error {
		if t, ok := st.tickets[id]; ok {
			out = t.Clone()
		}
		return nil
	})
	return out, err
}

func (r *memTicketRepo) FindByUserID(_ context.Context, userID uuid.UUID, limit, offset int) ([]*entity.Ticket, error) {
	var all []*entity.Ticket
	err := r.do(func(st *memState) error {
		for _, t := range st.tickets {
			if t.UserID == userID {
				all = append(all, t.Clone())
			}
		}
		return nil
	})
	sort.Slice(all, func(i, j int) bool { return all[i].PurchasedAt.After(all[j].PurchasedAt) })
	return page(all, limit, offset), err
}

func (r *memTicketRepo) CountByUserID(_ context.Context, userID uuid.UUID) (int64, error) {
	var total int64
	err := r.do(func(st *memState) error {
		for _, t := range st.tickets {
			if t.UserID == userID {
				total++
			}
		}
		return nil
	})
	return total, err
}

func (r *memTicketRepo) CountByShowtime(_ context.Context, showtimeID uuid.UUID) (int64, error) {
	var total int64
	err := r.do(func(st *memState) error {
		for _, t := range st.tickets {
			if t.ShowtimeID == showtimeID {
				total++
			}
		}
		return nil
	})
	return total, err
}

// ==================== PAYMENT EVENTS ====================

type memPaymentEventRepo struct{ *memDB }

func (r *memPaymentEventRepo) Create(_ context.Context, event *entity.PaymentEvent) error {
	return r.do(func(st *memState) error {
		cp := *event
		st.events = append(st.events, &cp)
		return nil
	})
}

func (r *memPaymentEventRepo) FindByPaymentID(_ context.Context, paymentID uuid.UUID) ([]*entity.PaymentEvent, error) {
	var out []*entity.PaymentEvent
	err := r.do(func(st *memState) error {
		for _, e := range st.events {
			if e.PaymentID != nil && *e.PaymentID == paymentID {
				cp := *e
				out = append(out, &cp)
			}
		}
		return nil
	})
	return out, err
}

// AllEvents returns every audit row in insertion order, including rows with
// no payment reference.
func (s *MemoryStore) AllEvents() []*entity.PaymentEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*entity.PaymentEvent, len(s.state.events))
	for i, e := range s.state.events {
		cp := *e
		out[i] = &cp
	}
	return out
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
