package booking

import (
	"context"
	"encoding/json"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/travelika/forest-bookings/internal/domain"
	"github.com/travelika/forest-bookings/internal/ledger"
	"github.com/travelika/forest-bookings/pkg/events"
)

var testSession = &domain.Session{Email: "sena@example.com", Name: "Sena", IssuedAt: time.Now()}

func newTestService(t *testing.T) (*Service, *ledger.MemoryStore, *events.MemoryEventBus) {
	t.Helper()
	store := ledger.NewMemory()
	bus := events.NewMemoryEventBus()
	t.Cleanup(func() {
		store.Close()
		bus.Close()
	})
	return NewService(store, bus), store, bus
}

func tripConfig() domain.TripConfig {
	return domain.TripConfig{
		Forest:        "AMAZON",
		Pickup:        "Manaus",
		DateIn:        "2026-03-10",
		DateOut:       "2026-03-13",
		Guests:        2,
		Package:       domain.PackageExplorer,
		NeedTransport: true,
		NeedLodging:   true,
	}
}

func TestNewCodeFormat(t *testing.T) {
	code := NewCode(time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC))
	assert.Regexp(t, regexp.MustCompile(`^TIKA-260310-[A-Z0-9]{4}$`), code)
}

func TestCreatePending(t *testing.T) {
	svc, _, bus := newTestService(t)
	ctx := context.Background()

	var created events.BookingCreatedEvent
	require.NoError(t, bus.Subscribe(events.BookingCreated, func(msg *events.Message) {
		require.NoError(t, json.Unmarshal(msg.Data, &created))
	}))

	b, err := svc.CreatePending(ctx, testSession, tripConfig())
	require.NoError(t, err)

	assert.Positive(t, b.ID)
	assert.Regexp(t, `^TIKA-\d{6}-[A-Z0-9]{4}$`, b.Code)
	assert.Equal(t, domain.BookingPending, b.Status)
	assert.Equal(t, "sena@example.com", b.Email)
	assert.Equal(t, int64(10_060_000), b.Subtotal)
	assert.Nil(t, b.PaidAt)

	assert.Equal(t, b.ID, created.BookingID)
	assert.Equal(t, b.Code, created.Code)
	assert.Equal(t, "AMAZON", created.Forest)
}

func TestCreatePendingRequiresSession(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.CreatePending(context.Background(), nil, tripConfig())
	assert.ErrorIs(t, err, domain.ErrAuthRequired)
}

func TestCreatePendingValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	noForest := tripConfig()
	noForest.Forest = ""
	_, err := svc.CreatePending(ctx, testSession, noForest)
	assert.ErrorIs(t, err, domain.ErrValidation)

	noDate := tripConfig()
	noDate.DateIn = ""
	_, err = svc.CreatePending(ctx, testSession, noDate)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCreatePendingNormalizesConfig(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	cfg := tripConfig()
	cfg.Guests = 0
	cfg.DayTrip = true

	b, err := svc.CreatePending(ctx, testSession, cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, b.Guests)
	assert.Empty(t, b.DateOut)
}

func TestCreatePendingRetriesOnCodeCollision(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	codes := []string{"TIKA-260310-SAME", "TIKA-260310-SAME", "TIKA-260310-NEXT"}
	i := 0
	svc.newCode = func(time.Time) string {
		c := codes[i]
		if i < len(codes)-1 {
			i++
		}
		return c
	}

	first, err := svc.CreatePending(ctx, testSession, tripConfig())
	require.NoError(t, err)
	assert.Equal(t, "TIKA-260310-SAME", first.Code)

	second, err := svc.CreatePending(ctx, testSession, tripConfig())
	require.NoError(t, err)
	assert.Equal(t, "TIKA-260310-NEXT", second.Code)
}

func TestListByEmailNewestFirst(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	ts := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		ts = ts.Add(time.Hour)
		return ts
	}

	first, err := svc.CreatePending(ctx, testSession, tripConfig())
	require.NoError(t, err)
	second, err := svc.CreatePending(ctx, testSession, tripConfig())
	require.NoError(t, err)

	list, err := svc.ListByEmail(ctx, testSession)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.Code, list[0].Code)
	assert.Equal(t, first.Code, list[1].Code)

	other := &domain.Session{Email: "rio@example.com"}
	empty, err := svc.ListByEmail(ctx, other)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestGetHidesOtherVisitorsBookings(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	b, err := svc.CreatePending(ctx, testSession, tripConfig())
	require.NoError(t, err)

	detail, err := svc.Get(ctx, testSession, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.Code, detail.Booking.Code)
	assert.Empty(t, detail.Payments)

	other := &domain.Session{Email: "rio@example.com"}
	_, err = svc.Get(ctx, other, b.ID)
	assert.ErrorIs(t, err, domain.ErrBookingNotFound)

	_, err = svc.Get(ctx, testSession, 9999)
	assert.ErrorIs(t, err, domain.ErrBookingNotFound)
}

func TestMarkPaid(t *testing.T) {
	svc, store, bus := newTestService(t)
	ctx := context.Background()

	var paid events.BookingPaidEvent
	require.NoError(t, bus.Subscribe(events.BookingPaid, func(msg *events.Message) {
		require.NoError(t, json.Unmarshal(msg.Data, &paid))
	}))

	b, err := svc.CreatePending(ctx, testSession, tripConfig())
	require.NoError(t, err)

	got, err := svc.MarkPaid(ctx, testSession, b.ID, "")
	require.NoError(t, err)
	assert.Equal(t, domain.BookingPaid, got.Status)
	assert.Equal(t, DefaultPayMethod, got.PaidMethod)
	require.NotNil(t, got.PaidAt)

	payments, err := store.PaymentsByBooking(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, b.Subtotal, payments[0].Amount)
	assert.Equal(t, DefaultPayMethod, payments[0].Method)
	assert.Equal(t, domain.BookingPaid, payments[0].Status)

	assert.Equal(t, b.Code, paid.Code)
	assert.Equal(t, b.Subtotal, paid.Amount)
}

func TestMarkPaidRejectsSecondAttempt(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	b, err := svc.CreatePending(ctx, testSession, tripConfig())
	require.NoError(t, err)

	_, err = svc.MarkPaid(ctx, testSession, b.ID, "qris")
	require.NoError(t, err)

	_, err = svc.MarkPaid(ctx, testSession, b.ID, "qris")
	assert.ErrorIs(t, err, domain.ErrAlreadyPaid)

	payments, err := store.PaymentsByBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, payments, 1)
}

func TestMarkPaidConcurrentAttempts(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	b, err := svc.CreatePending(ctx, testSession, tripConfig())
	require.NoError(t, err)

	const attempts = 8
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.MarkPaid(ctx, testSession, b.ID, "CARD")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, domain.ErrAlreadyPaid)
		}
	}
	assert.Equal(t, 1, succeeded)

	payments, err := store.PaymentsByBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, payments, 1)
}

func TestMarkPaidOwnershipAndMissing(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	b, err := svc.CreatePending(ctx, testSession, tripConfig())
	require.NoError(t, err)

	other := &domain.Session{Email: "rio@example.com"}
	_, err = svc.MarkPaid(ctx, other, b.ID, "CARD")
	assert.ErrorIs(t, err, domain.ErrBookingNotFound)

	_, err = svc.MarkPaid(ctx, testSession, 9999, "CARD")
	assert.ErrorIs(t, err, domain.ErrBookingNotFound)
}

func TestResetClearsBookingsKeepsAccounts(t *testing.T) {
	svc, store, bus := newTestService(t)
	ctx := context.Background()

	var reset events.LedgerResetEvent
	require.NoError(t, bus.Subscribe(events.LedgerReset, func(msg *events.Message) {
		require.NoError(t, json.Unmarshal(msg.Data, &reset))
	}))

	require.NoError(t, store.CreateAccount(ctx, domain.Account{
		Email: testSession.Email, PasswordHash: "x", CreatedAt: time.Now().UTC(),
	}))
	b, err := svc.CreatePending(ctx, testSession, tripConfig())
	require.NoError(t, err)
	_, err = svc.MarkPaid(ctx, testSession, b.ID, "CARD")
	require.NoError(t, err)

	require.NoError(t, svc.Reset(ctx, testSession))

	list, err := svc.ListByEmail(ctx, testSession)
	require.NoError(t, err)
	assert.Empty(t, list)

	payments, err := store.PaymentsByEmail(ctx, testSession.Email)
	require.NoError(t, err)
	assert.Empty(t, payments)

	acc, err := store.GetAccount(ctx, testSession.Email)
	require.NoError(t, err)
	assert.NotNil(t, acc)

	assert.Equal(t, testSession.Email, reset.Email)
}
