// Package ledger is the versioned local record store behind the booking
// engine. Three backends share one contract: SQLite for a single machine,
// Postgres for shared deployments, and an in-memory store for tests.
//
// Schema changes are declared once in Migrations and applied in order on
// open; each backend records applied versions so reopening an existing
// store only runs what is missing.
package ledger

import (
	"context"
	"errors"

	"github.com/travelika/forest-bookings/internal/domain"
)

// Collection names the three record sets a store manages.
type Collection string

const (
	Users    Collection = "users"
	Bookings Collection = "bookings"
	Payments Collection = "payments"
)

var (
	// ErrDuplicateKey reports a write that collides with an existing
	// primary key or unique index.
	ErrDuplicateKey = errors.New("ledger: duplicate key")

	// ErrStoreUnavailable reports an operation on a closed or unreachable
	// store.
	ErrStoreUnavailable = errors.New("ledger: store unavailable")
)

// Migration is one ordered, idempotent schema step. Statements carries the
// SQL per dialect; the memory backend applies versions structurally.
type Migration struct {
	Version int
	Name    string
	SQLite  []string
	PG      []string
}

// Migrations is the full ordered schema history. Append only; never edit
// a shipped entry.
var Migrations = []Migration{
	{
		Version: 1,
		Name:    "base tables",
		SQLite: []string{
			`CREATE TABLE IF NOT EXISTS users (
				email TEXT PRIMARY KEY,
				name TEXT NOT NULL DEFAULT '',
				password_hash TEXT NOT NULL,
				created_at TIMESTAMP NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS bookings (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				code TEXT NOT NULL,
				email TEXT NOT NULL,
				name TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL,
				forest TEXT NOT NULL DEFAULT '',
				pickup TEXT NOT NULL DEFAULT '',
				date_in TEXT NOT NULL DEFAULT '',
				date_out TEXT NOT NULL DEFAULT '',
				day_trip INTEGER NOT NULL DEFAULT 0,
				guests INTEGER NOT NULL DEFAULT 1,
				package TEXT NOT NULL DEFAULT 'base',
				need_transport INTEGER NOT NULL DEFAULT 0,
				need_lodging INTEGER NOT NULL DEFAULT 0,
				subtotal INTEGER NOT NULL DEFAULT 0,
				paid_at TIMESTAMP,
				paid_method TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS payments (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				booking_id INTEGER NOT NULL,
				code TEXT NOT NULL,
				email TEXT NOT NULL,
				amount INTEGER NOT NULL,
				method TEXT NOT NULL,
				status TEXT NOT NULL,
				created_at TIMESTAMP NOT NULL
			)`,
		},
		PG: []string{
			`CREATE TABLE IF NOT EXISTS users (
				email TEXT PRIMARY KEY,
				name TEXT NOT NULL DEFAULT '',
				password_hash TEXT NOT NULL,
				created_at TIMESTAMPTZ NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS bookings (
				id BIGSERIAL PRIMARY KEY,
				code TEXT NOT NULL,
				email TEXT NOT NULL,
				name TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL,
				forest TEXT NOT NULL DEFAULT '',
				pickup TEXT NOT NULL DEFAULT '',
				date_in TEXT NOT NULL DEFAULT '',
				date_out TEXT NOT NULL DEFAULT '',
				day_trip BOOLEAN NOT NULL DEFAULT FALSE,
				guests INTEGER NOT NULL DEFAULT 1,
				package TEXT NOT NULL DEFAULT 'base',
				need_transport BOOLEAN NOT NULL DEFAULT FALSE,
				need_lodging BOOLEAN NOT NULL DEFAULT FALSE,
				subtotal BIGINT NOT NULL DEFAULT 0,
				paid_at TIMESTAMPTZ,
				paid_method TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMPTZ NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS payments (
				id BIGSERIAL PRIMARY KEY,
				booking_id BIGINT NOT NULL,
				code TEXT NOT NULL,
				email TEXT NOT NULL,
				amount BIGINT NOT NULL,
				method TEXT NOT NULL,
				status TEXT NOT NULL,
				created_at TIMESTAMPTZ NOT NULL
			)`,
		},
	},
	{
		Version: 2,
		Name:    "lookup indexes",
		SQLite: []string{
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_bookings_code ON bookings(code)`,
			`CREATE INDEX IF NOT EXISTS idx_bookings_email ON bookings(email)`,
			`CREATE INDEX IF NOT EXISTS idx_payments_booking_id ON payments(booking_id)`,
			`CREATE INDEX IF NOT EXISTS idx_payments_email ON payments(email)`,
		},
		PG: []string{
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_bookings_code ON bookings(code)`,
			`CREATE INDEX IF NOT EXISTS idx_bookings_email ON bookings(email)`,
			`CREATE INDEX IF NOT EXISTS idx_payments_booking_id ON payments(booking_id)`,
			`CREATE INDEX IF NOT EXISTS idx_payments_email ON payments(email)`,
		},
	},
}

// SchemaVersion is the version a freshly migrated store reports.
func SchemaVersion() int {
	return Migrations[len(Migrations)-1].Version
}

// Store is the record contract every backend satisfies. Reads return
// (nil, nil) or an empty slice when nothing matches; callers never see a
// not-found error from the store itself. List results come back newest
// first.
type Store interface {
	CreateAccount(ctx context.Context, acc domain.Account) error
	GetAccount(ctx context.Context, email string) (*domain.Account, error)

	// InsertBooking assigns b.ID on success.
	InsertBooking(ctx context.Context, b *domain.Booking) error
	GetBooking(ctx context.Context, id int64) (*domain.Booking, error)
	// PutBooking replaces the booking with the same ID.
	PutBooking(ctx context.Context, b domain.Booking) error
	BookingsByEmail(ctx context.Context, email string) ([]domain.Booking, error)
	BookingByCode(ctx context.Context, code string) (*domain.Booking, error)

	// InsertPayment assigns p.ID on success.
	InsertPayment(ctx context.Context, p *domain.Payment) error
	PaymentsByBooking(ctx context.Context, bookingID int64) ([]domain.Payment, error)
	PaymentsByEmail(ctx context.Context, email string) ([]domain.Payment, error)

	// Clear empties the named collections, leaving the rest untouched.
	Clear(ctx context.Context, collections ...Collection) error

	Close() error
}
