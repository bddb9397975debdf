package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/travelika/forest-bookings/internal/domain"
	"github.com/travelika/forest-bookings/pkg/logger"
)

// SQLiteStore is the default backend: a single local file, WAL mode, no
// server to run. Suited to one booking desk per machine.
type SQLiteStore struct {
	db        *sql.DB
	opTimeout time.Duration

	mu      sync.RWMutex
	indexes map[string]bool
	closed  bool
}

// OpenSQLite opens (creating if needed) the ledger file at path and brings
// its schema up to date. Pass ":memory:" for an ephemeral store.
func OpenSQLite(path string, opTimeout time.Duration) (*SQLiteStore, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create ledger directory: %w", err)
			}
		}
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	// A single writer keeps SQLITE_BUSY out of the picture.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	s := &SQLiteStore{db: db, opTimeout: opTimeout}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.loadIndexes(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("ledger opened", "driver", "sqlite", "path", path, "schema_version", SchemaVersion())
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMP NOT NULL
	)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	applied := map[int]bool{}
	rows, err := s.db.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("read schema_migrations: %w", err)
	}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return fmt.Errorf("scan schema_migrations: %w", err)
		}
		applied[v] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("read schema_migrations: %w", err)
	}

	for _, m := range Migrations {
		if applied[m.Version] {
			continue
		}
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("migration %d: %w", m.Version, err)
		}
		for _, stmt := range m.SQLite {
			if _, err := tx.Exec(stmt); err != nil {
				tx.Rollback()
				return fmt.Errorf("migration %d (%s): %w", m.Version, m.Name, err)
			}
		}
		if _, err := tx.Exec(
			`INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)`,
			m.Version, m.Name, time.Now().UTC(),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
		logger.Info("ledger migration applied", "version", m.Version, "name", m.Name)
	}
	return nil
}

func (s *SQLiteStore) loadIndexes() error {
	rows, err := s.db.Query(`SELECT name FROM sqlite_master WHERE type = 'index'`)
	if err != nil {
		return fmt.Errorf("inspect indexes: %w", err)
	}
	defer rows.Close()

	idx := map[string]bool{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("inspect indexes: %w", err)
		}
		idx[name] = true
	}
	s.mu.Lock()
	s.indexes = idx
	s.mu.Unlock()
	return rows.Err()
}

func (s *SQLiteStore) hasIndex(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexes[name]
}

func (s *SQLiteStore) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opTimeout)
}

func (s *SQLiteStore) available() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreUnavailable
	}
	return nil
}

func isSQLiteDuplicate(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (s *SQLiteStore) CreateAccount(ctx context.Context, acc domain.Account) error {
	if err := s.available(); err != nil {
		return err
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (email, name, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		acc.Email, acc.Name, acc.PasswordHash, acc.CreatedAt.UTC(),
	)
	if isSQLiteDuplicate(err) {
		return ErrDuplicateKey
	}
	if err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetAccount(ctx context.Context, email string) (*domain.Account, error) {
	if err := s.available(); err != nil {
		return nil, err
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var acc domain.Account
	err := s.db.QueryRowContext(ctx,
		`SELECT email, name, password_hash, created_at FROM users WHERE email = ?`, email,
	).Scan(&acc.Email, &acc.Name, &acc.PasswordHash, &acc.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		logger.ErrorContext(ctx, "ledger read failed", "collection", Users, "error", err)
		return nil, nil
	}
	return &acc, nil
}

func (s *SQLiteStore) InsertBooking(ctx context.Context, b *domain.Booking) error {
	if err := s.available(); err != nil {
		return err
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO bookings (code, email, name, status, forest, pickup, date_in, date_out,
			day_trip, guests, package, need_transport, need_lodging, subtotal,
			paid_at, paid_method, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.Code, b.Email, b.Name, string(b.Status), b.Forest, b.Pickup, b.DateIn, b.DateOut,
		b.DayTrip, b.Guests, string(b.Package), b.NeedTransport, b.NeedLodging, b.Subtotal,
		nullableTime(b.PaidAt), b.PaidMethod, b.CreatedAt.UTC(),
	)
	if isSQLiteDuplicate(err) {
		return ErrDuplicateKey
	}
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	b.ID = id
	return nil
}

func (s *SQLiteStore) GetBooking(ctx context.Context, id int64) (*domain.Booking, error) {
	return s.oneBooking(ctx, `WHERE id = ?`, id)
}

func (s *SQLiteStore) BookingByCode(ctx context.Context, code string) (*domain.Booking, error) {
	return s.oneBooking(ctx, `WHERE code = ?`, code)
}

const bookingColumns = `id, code, email, name, status, forest, pickup, date_in, date_out,
	day_trip, guests, package, need_transport, need_lodging, subtotal,
	paid_at, paid_method, created_at`

func (s *SQLiteStore) oneBooking(ctx context.Context, where string, arg any) (*domain.Booking, error) {
	if err := s.available(); err != nil {
		return nil, err
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	row := s.db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings `+where, arg)
	b, err := scanBooking(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		logger.ErrorContext(ctx, "ledger read failed", "collection", Bookings, "error", err)
		return nil, nil
	}
	return b, nil
}

func (s *SQLiteStore) PutBooking(ctx context.Context, b domain.Booking) error {
	if err := s.available(); err != nil {
		return err
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx,
		`UPDATE bookings SET code = ?, email = ?, name = ?, status = ?, forest = ?, pickup = ?,
			date_in = ?, date_out = ?, day_trip = ?, guests = ?, package = ?,
			need_transport = ?, need_lodging = ?, subtotal = ?, paid_at = ?, paid_method = ?
		 WHERE id = ?`,
		b.Code, b.Email, b.Name, string(b.Status), b.Forest, b.Pickup,
		b.DateIn, b.DateOut, b.DayTrip, b.Guests, string(b.Package),
		b.NeedTransport, b.NeedLodging, b.Subtotal, nullableTime(b.PaidAt), b.PaidMethod,
		b.ID,
	)
	if isSQLiteDuplicate(err) {
		return ErrDuplicateKey
	}
	if err != nil {
		return fmt.Errorf("put booking: %w", err)
	}
	return nil
}

// BookingsByEmail lists a visitor's bookings newest first. The email index
// is used when present; without it the store falls back to a full scan
// with the same result.
func (s *SQLiteStore) BookingsByEmail(ctx context.Context, email string) ([]domain.Booking, error) {
	if err := s.available(); err != nil {
		return nil, err
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := `SELECT ` + bookingColumns + ` FROM bookings`
	args := []any{}
	indexed := s.hasIndex("idx_bookings_email")
	if indexed {
		query += ` WHERE email = ?`
		args = append(args, email)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		logger.ErrorContext(ctx, "ledger read failed", "collection", Bookings, "error", err)
		return []domain.Booking{}, nil
	}
	defer rows.Close()

	out := []domain.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			logger.ErrorContext(ctx, "ledger read failed", "collection", Bookings, "error", err)
			return []domain.Booking{}, nil
		}
		if !indexed && b.Email != email {
			continue
		}
		out = append(out, *b)
	}
	if err := rows.Err(); err != nil {
		logger.ErrorContext(ctx, "ledger read failed", "collection", Bookings, "error", err)
		return []domain.Booking{}, nil
	}
	return out, nil
}

func (s *SQLiteStore) InsertPayment(ctx context.Context, p *domain.Payment) error {
	if err := s.available(); err != nil {
		return err
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO payments (booking_id, code, email, amount, method, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.BookingID, p.Code, p.Email, p.Amount, p.Method, string(p.Status), p.CreatedAt.UTC(),
	)
	if isSQLiteDuplicate(err) {
		return ErrDuplicateKey
	}
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	p.ID = id
	return nil
}

func (s *SQLiteStore) PaymentsByBooking(ctx context.Context, bookingID int64) ([]domain.Payment, error) {
	return s.listPayments(ctx, "idx_payments_booking_id", "booking_id", bookingID,
		func(p domain.Payment) bool { return p.BookingID == bookingID })
}

func (s *SQLiteStore) PaymentsByEmail(ctx context.Context, email string) ([]domain.Payment, error) {
	return s.listPayments(ctx, "idx_payments_email", "email", email,
		func(p domain.Payment) bool { return p.Email == email })
}

func (s *SQLiteStore) listPayments(ctx context.Context, index, column string, arg any, match func(domain.Payment) bool) ([]domain.Payment, error) {
	if err := s.available(); err != nil {
		return nil, err
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := `SELECT id, booking_id, code, email, amount, method, status, created_at FROM payments`
	args := []any{}
	indexed := s.hasIndex(index)
	if indexed {
		query += ` WHERE ` + column + ` = ?`
		args = append(args, arg)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		logger.ErrorContext(ctx, "ledger read failed", "collection", Payments, "error", err)
		return []domain.Payment{}, nil
	}
	defer rows.Close()

	out := []domain.Payment{}
	for rows.Next() {
		var p domain.Payment
		var status string
		if err := rows.Scan(&p.ID, &p.BookingID, &p.Code, &p.Email, &p.Amount, &p.Method, &status, &p.CreatedAt); err != nil {
			logger.ErrorContext(ctx, "ledger read failed", "collection", Payments, "error", err)
			return []domain.Payment{}, nil
		}
		p.Status = domain.BookingStatus(status)
		if !indexed && !match(p) {
			continue
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		logger.ErrorContext(ctx, "ledger read failed", "collection", Payments, "error", err)
		return []domain.Payment{}, nil
	}
	return out, nil
}

func (s *SQLiteStore) Clear(ctx context.Context, collections ...Collection) error {
	if err := s.available(); err != nil {
		return err
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	for _, c := range collections {
		switch c {
		case Users, Bookings, Payments:
		default:
			tx.Rollback()
			return fmt.Errorf("clear: unknown collection %q", c)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+string(c)); err != nil {
			tx.Rollback()
			return fmt.Errorf("clear %s: %w", c, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	logger.InfoContext(ctx, "ledger cleared", "collections", collections)
	return nil
}

// Close releases the database handle. Further calls on the store return
// ErrStoreUnavailable.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(r rowScanner) (*domain.Booking, error) {
	var (
		b      domain.Booking
		status string
		pkg    string
		paidAt sql.NullTime
	)
	err := r.Scan(&b.ID, &b.Code, &b.Email, &b.Name, &status, &b.Forest, &b.Pickup,
		&b.DateIn, &b.DateOut, &b.DayTrip, &b.Guests, &pkg,
		&b.NeedTransport, &b.NeedLodging, &b.Subtotal,
		&paidAt, &b.PaidMethod, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	b.Status = domain.BookingStatus(status)
	b.Package = domain.PackageTier(pkg)
	if paidAt.Valid {
		t := paidAt.Time
		b.PaidAt = &t
	}
	return &b, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

// Sort order shared with the memory backend so index and scan paths agree.
func sortBookingsNewestFirst(bs []domain.Booking) {
	sort.SliceStable(bs, func(i, j int) bool {
		if bs[i].CreatedAt.Equal(bs[j].CreatedAt) {
			return bs[i].ID > bs[j].ID
		}
		return bs[i].CreatedAt.After(bs[j].CreatedAt)
	})
}

func sortPaymentsNewestFirst(ps []domain.Payment) {
	sort.SliceStable(ps, func(i, j int) bool {
		if ps[i].CreatedAt.Equal(ps[j].CreatedAt) {
			return ps[i].ID > ps[j].ID
		}
		return ps[i].CreatedAt.After(ps[j].CreatedAt)
	})
}
