package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/travelika/forest-bookings/internal/domain"
)

// MemoryStore keeps all collections in process memory. It exists for tests
// and throwaway runs, and mirrors the other backends' behavior including
// the index-versus-scan lookup split: DisableIndexes forces the scan path
// so tests can prove both paths agree.
type MemoryStore struct {
	mu sync.RWMutex

	users    map[string]domain.Account
	bookings map[int64]domain.Booking
	payments map[int64]domain.Payment

	bookingsByCode  map[string]int64
	bookingsByEmail map[string][]int64
	paymentsByBkg   map[int64][]int64
	paymentsByEmail map[string][]int64

	nextBookingID int64
	nextPaymentID int64

	useIndexes bool
	closed     bool
}

// NewMemory returns an empty in-memory store at the current schema version.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		users:           map[string]domain.Account{},
		bookings:        map[int64]domain.Booking{},
		payments:        map[int64]domain.Payment{},
		bookingsByCode:  map[string]int64{},
		bookingsByEmail: map[string][]int64{},
		paymentsByBkg:   map[int64][]int64{},
		paymentsByEmail: map[string][]int64{},
		nextBookingID:   1,
		nextPaymentID:   1,
		useIndexes:      true,
	}
}

// DisableIndexes routes all lookups through full scans. Uniqueness is
// still enforced.
func (s *MemoryStore) DisableIndexes() {
	s.mu.Lock()
	s.useIndexes = false
	s.mu.Unlock()
}

func (s *MemoryStore) CreateAccount(_ context.Context, acc domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreUnavailable
	}
	if _, ok := s.users[acc.Email]; ok {
		return ErrDuplicateKey
	}
	s.users[acc.Email] = acc
	return nil
}

func (s *MemoryStore) GetAccount(_ context.Context, email string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreUnavailable
	}
	acc, ok := s.users[email]
	if !ok {
		return nil, nil
	}
	return &acc, nil
}

func (s *MemoryStore) InsertBooking(_ context.Context, b *domain.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreUnavailable
	}
	if _, ok := s.bookingsByCode[b.Code]; ok {
		return ErrDuplicateKey
	}
	b.ID = s.nextBookingID
	s.nextBookingID++
	s.bookings[b.ID] = *b
	s.bookingsByCode[b.Code] = b.ID
	s.bookingsByEmail[b.Email] = append(s.bookingsByEmail[b.Email], b.ID)
	return nil
}

func (s *MemoryStore) GetBooking(_ context.Context, id int64) (*domain.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreUnavailable
	}
	b, ok := s.bookings[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (s *MemoryStore) PutBooking(_ context.Context, b domain.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreUnavailable
	}
	prev, ok := s.bookings[b.ID]
	if !ok {
		return nil
	}
	if b.Code != prev.Code {
		if id, exists := s.bookingsByCode[b.Code]; exists && id != b.ID {
			return ErrDuplicateKey
		}
		delete(s.bookingsByCode, prev.Code)
		s.bookingsByCode[b.Code] = b.ID
	}
	if b.Email != prev.Email {
		s.bookingsByEmail[prev.Email] = removeID(s.bookingsByEmail[prev.Email], b.ID)
		s.bookingsByEmail[b.Email] = append(s.bookingsByEmail[b.Email], b.ID)
	}
	s.bookings[b.ID] = b
	return nil
}

func (s *MemoryStore) BookingsByEmail(_ context.Context, email string) ([]domain.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreUnavailable
	}

	out := []domain.Booking{}
	if s.useIndexes {
		for _, id := range s.bookingsByEmail[email] {
			out = append(out, s.bookings[id])
		}
	} else {
		for _, b := range s.bookings {
			if b.Email == email {
				out = append(out, b)
			}
		}
	}
	sortBookingsNewestFirst(out)
	return out, nil
}

func (s *MemoryStore) BookingByCode(_ context.Context, code string) (*domain.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreUnavailable
	}

	if s.useIndexes {
		id, ok := s.bookingsByCode[code]
		if !ok {
			return nil, nil
		}
		b := s.bookings[id]
		return &b, nil
	}
	for _, b := range s.bookings {
		if b.Code == code {
			b := b
			return &b, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) InsertPayment(_ context.Context, p *domain.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreUnavailable
	}
	p.ID = s.nextPaymentID
	s.nextPaymentID++
	s.payments[p.ID] = *p
	s.paymentsByBkg[p.BookingID] = append(s.paymentsByBkg[p.BookingID], p.ID)
	s.paymentsByEmail[p.Email] = append(s.paymentsByEmail[p.Email], p.ID)
	return nil
}

func (s *MemoryStore) PaymentsByBooking(_ context.Context, bookingID int64) ([]domain.Payment, error) {
	return s.listPayments(func(p domain.Payment) bool { return p.BookingID == bookingID },
		func() []int64 { return s.paymentsByBkg[bookingID] })
}

func (s *MemoryStore) PaymentsByEmail(_ context.Context, email string) ([]domain.Payment, error) {
	return s.listPayments(func(p domain.Payment) bool { return p.Email == email },
		func() []int64 { return s.paymentsByEmail[email] })
}

func (s *MemoryStore) listPayments(match func(domain.Payment) bool, indexed func() []int64) ([]domain.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreUnavailable
	}

	out := []domain.Payment{}
	if s.useIndexes {
		for _, id := range indexed() {
			out = append(out, s.payments[id])
		}
	} else {
		for _, p := range s.payments {
			if match(p) {
				out = append(out, p)
			}
		}
	}
	sortPaymentsNewestFirst(out)
	return out, nil
}

func (s *MemoryStore) Clear(_ context.Context, collections ...Collection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreUnavailable
	}
	for _, c := range collections {
		switch c {
		case Users:
			s.users = map[string]domain.Account{}
		case Bookings:
			s.bookings = map[int64]domain.Booking{}
			s.bookingsByCode = map[string]int64{}
			s.bookingsByEmail = map[string][]int64{}
		case Payments:
			s.payments = map[int64]domain.Payment{}
			s.paymentsByBkg = map[int64][]int64{}
			s.paymentsByEmail = map[string][]int64{}
		default:
			return fmt.Errorf("clear: unknown collection %q", c)
		}
	}
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func removeID(ids []int64, id int64) []int64 {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
