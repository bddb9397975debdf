// Package booking drives the booking lifecycle: create a pending booking
// from a priced trip, list and show a visitor's bookings, mark one paid,
// and reset the demo ledger.
package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/travelika/forest-bookings/internal/domain"
	"github.com/travelika/forest-bookings/internal/ledger"
	"github.com/travelika/forest-bookings/internal/pricing"
	"github.com/travelika/forest-bookings/pkg/events"
	"github.com/travelika/forest-bookings/pkg/logger"
)

const (
	// DefaultPayMethod is recorded when the client names no method.
	DefaultPayMethod = "CARD"

	// codeAttempts bounds the re-roll loop on booking code collision.
	codeAttempts = 5
)

type Service struct {
	store ledger.Store
	bus   events.Publisher

	// payLocks serializes pay attempts per booking so two concurrent
	// requests cannot both pass the already-paid check.
	mu       sync.Mutex
	payLocks map[int64]*sync.Mutex

	now     func() time.Time
	newCode func(time.Time) string
}

func NewService(store ledger.Store, bus events.Publisher) *Service {
	return &Service{
		store:    store,
		bus:      bus,
		payLocks: map[int64]*sync.Mutex{},
		now:      time.Now,
		newCode:  NewCode,
	}
}

// Detail is a booking together with its recorded payments, newest first.
type Detail struct {
	Booking  domain.Booking   `json:"booking"`
	Payments []domain.Payment `json:"payments"`
}

// CreatePending prices the trip, assigns a unique booking code and stores
// the booking as pending under the session's email.
func (s *Service) CreatePending(ctx context.Context, sess *domain.Session, cfg domain.TripConfig) (*domain.Booking, error) {
	if sess == nil {
		return nil, domain.ErrAuthRequired
	}
	if strings.TrimSpace(cfg.Forest) == "" {
		return nil, fmt.Errorf("%w: forest is required", domain.ErrValidation)
	}
	if strings.TrimSpace(cfg.DateIn) == "" {
		return nil, fmt.Errorf("%w: start date is required", domain.ErrValidation)
	}
	if cfg.Guests < 1 {
		cfg.Guests = 1
	}
	if cfg.DayTrip {
		cfg.DateOut = ""
	}

	quote := pricing.Compute(cfg)
	now := s.now().UTC()

	b := domain.Booking{
		Email:      sess.Email,
		Name:       sess.Name,
		Status:     domain.BookingPending,
		TripConfig: cfg,
		Subtotal:   quote.Total,
		CreatedAt:  now,
	}

	var err error
	for attempt := 0; attempt < codeAttempts; attempt++ {
		b.Code = s.newCode(now)
		err = s.store.InsertBooking(ctx, &b)
		if !errors.Is(err, ledger.ErrDuplicateKey) {
			break
		}
		logger.WarnContext(ctx, "booking code collision, retrying", "code", b.Code)
	}
	if err != nil {
		return nil, fmt.Errorf("store booking: %w", err)
	}

	s.publish(ctx, events.BookingCreated, events.BookingCreatedEvent{
		BookingID: b.ID,
		Code:      b.Code,
		Email:     b.Email,
		Forest:    b.Forest,
		DateIn:    b.DateIn,
		Guests:    b.Guests,
		Subtotal:  b.Subtotal,
		CreatedAt: b.CreatedAt,
	})

	logger.InfoContext(ctx, "booking created", "code", b.Code, "forest", b.Forest, "subtotal", b.Subtotal)
	return &b, nil
}

// ListByEmail returns the session's bookings, newest first.
func (s *Service) ListByEmail(ctx context.Context, sess *domain.Session) ([]domain.Booking, error) {
	if sess == nil {
		return nil, domain.ErrAuthRequired
	}
	return s.store.BookingsByEmail(ctx, sess.Email)
}

// Get loads one booking with its payments. A booking that does not exist
// and one owned by another visitor look identical to the caller.
func (s *Service) Get(ctx context.Context, sess *domain.Session, id int64) (*Detail, error) {
	if sess == nil {
		return nil, domain.ErrAuthRequired
	}

	b, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load booking: %w", err)
	}
	if b == nil || b.Email != sess.Email {
		return nil, domain.ErrBookingNotFound
	}

	payments, err := s.store.PaymentsByBooking(ctx, b.ID)
	if err != nil {
		return nil, fmt.Errorf("load payments: %w", err)
	}
	return &Detail{Booking: *b, Payments: payments}, nil
}

// MarkPaid transitions a pending booking to paid and appends a payment
// record. The booking update is the operation; the payment append is best
// effort and its failure only logs. Paying a paid booking fails with
// ErrAlreadyPaid no matter how the attempts interleave.
func (s *Service) MarkPaid(ctx context.Context, sess *domain.Session, id int64, method string) (*domain.Booking, error) {
	if sess == nil {
		return nil, domain.ErrAuthRequired
	}

	lock := s.payLock(id)
	lock.Lock()
	defer lock.Unlock()

	b, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load booking: %w", err)
	}
	if b == nil || b.Email != sess.Email {
		return nil, domain.ErrBookingNotFound
	}
	if b.Status == domain.BookingPaid {
		return nil, domain.ErrAlreadyPaid
	}

	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = DefaultPayMethod
	}

	paidAt := s.now().UTC()
	b.Status = domain.BookingPaid
	b.PaidAt = &paidAt
	b.PaidMethod = method

	if err := s.store.PutBooking(ctx, *b); err != nil {
		return nil, fmt.Errorf("update booking: %w", err)
	}

	payment := domain.Payment{
		BookingID: b.ID,
		Code:      b.Code,
		Email:     b.Email,
		Amount:    b.Subtotal,
		Method:    method,
		Status:    domain.BookingPaid,
		CreatedAt: paidAt,
	}
	if err := s.store.InsertPayment(ctx, &payment); err != nil {
		logger.ErrorContext(ctx, "payment record append failed", "code", b.Code, "error", err)
	}

	s.publish(ctx, events.BookingPaid, events.BookingPaidEvent{
		BookingID: b.ID,
		Code:      b.Code,
		Email:     b.Email,
		Name:      b.Name,
		Forest:    b.Forest,
		Amount:    b.Subtotal,
		Method:    method,
		PaidAt:    paidAt,
	})

	logger.InfoContext(ctx, "booking paid", "code", b.Code, "method", method, "amount", b.Subtotal)
	return b, nil
}

// Reset clears bookings and payments. Accounts survive.
func (s *Service) Reset(ctx context.Context, sess *domain.Session) error {
	if sess == nil {
		return domain.ErrAuthRequired
	}
	if err := s.store.Clear(ctx, ledger.Bookings, ledger.Payments); err != nil {
		return fmt.Errorf("reset ledger: %w", err)
	}

	s.publish(ctx, events.LedgerReset, events.LedgerResetEvent{
		Email:   sess.Email,
		ResetAt: s.now().UTC(),
	})
	return nil
}

func (s *Service) payLock(id int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.payLocks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.payLocks[id] = lock
	}
	return lock
}

func (s *Service) publish(ctx context.Context, subject string, payload any) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, subject, payload); err != nil {
		logger.ErrorContext(ctx, "event publish failed", "subject", subject, "error", err)
	}
}
