package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/travelika/forest-bookings/internal/domain"
	"github.com/travelika/forest-bookings/pkg/logger"
)

// PostgresStore backs the ledger with a shared Postgres database for
// deployments where several desks work against one record set.
type PostgresStore struct {
	pool      *pgxpool.Pool
	opTimeout time.Duration
	indexes   map[string]bool
}

// OpenPostgres connects to databaseURL and brings the schema up to date.
func OpenPostgres(ctx context.Context, databaseURL string, opTimeout time.Duration) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	s := &PostgresStore{pool: pool, opTimeout: opTimeout}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if err := s.loadIndexes(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info("ledger opened", "driver", "postgres", "schema_version", SchemaVersion())
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL
	)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	applied := map[int]bool{}
	rows, err := s.pool.Query(ctx, `SELECT version FROM schema_migrations`)
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
		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("migration %d: %w", m.Version, err)
		}
		for _, stmt := range m.PG {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				tx.Rollback(ctx)
				return fmt.Errorf("migration %d (%s): %w", m.Version, m.Name, err)
			}
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO schema_migrations (version, name, applied_at) VALUES ($1, $2, $3)`,
			m.Version, m.Name, time.Now().UTC(),
		); err != nil {
			tx.Rollback(ctx)
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
		logger.Info("ledger migration applied", "version", m.Version, "name", m.Name)
	}
	return nil
}

func (s *PostgresStore) loadIndexes(ctx context.Context) error {
	rows, err := s.pool.Query(ctx, `SELECT indexname FROM pg_indexes WHERE schemaname = current_schema()`)
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
	s.indexes = idx
	return rows.Err()
}

func (s *PostgresStore) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opTimeout)
}

func isPGDuplicate(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (s *PostgresStore) CreateAccount(ctx context.Context, acc domain.Account) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (email, name, password_hash, created_at) VALUES ($1, $2, $3, $4)`,
		acc.Email, acc.Name, acc.PasswordHash, acc.CreatedAt.UTC(),
	)
	if isPGDuplicate(err) {
		return ErrDuplicateKey
	}
	if err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAccount(ctx context.Context, email string) (*domain.Account, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var acc domain.Account
	err := s.pool.QueryRow(ctx,
		`SELECT email, name, password_hash, created_at FROM users WHERE email = $1`, email,
	).Scan(&acc.Email, &acc.Name, &acc.PasswordHash, &acc.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		logger.ErrorContext(ctx, "ledger read failed", "collection", Users, "error", err)
		return nil, nil
	}
	return &acc, nil
}

func (s *PostgresStore) InsertBooking(ctx context.Context, b *domain.Booking) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	err := s.pool.QueryRow(ctx,
		`INSERT INTO bookings (code, email, name, status, forest, pickup, date_in, date_out,
			day_trip, guests, package, need_transport, need_lodging, subtotal,
			paid_at, paid_method, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		 RETURNING id`,
		b.Code, b.Email, b.Name, string(b.Status), b.Forest, b.Pickup, b.DateIn, b.DateOut,
		b.DayTrip, b.Guests, string(b.Package), b.NeedTransport, b.NeedLodging, b.Subtotal,
		b.PaidAt, b.PaidMethod, b.CreatedAt.UTC(),
	).Scan(&b.ID)
	if isPGDuplicate(err) {
		return ErrDuplicateKey
	}
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetBooking(ctx context.Context, id int64) (*domain.Booking, error) {
	return s.oneBooking(ctx, `WHERE id = $1`, id)
}

func (s *PostgresStore) BookingByCode(ctx context.Context, code string) (*domain.Booking, error) {
	return s.oneBooking(ctx, `WHERE code = $1`, code)
}

func (s *PostgresStore) oneBooking(ctx context.Context, where string, arg any) (*domain.Booking, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	row := s.pool.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings `+where, arg)
	b, err := scanBooking(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		logger.ErrorContext(ctx, "ledger read failed", "collection", Bookings, "error", err)
		return nil, nil
	}
	return b, nil
}

func (s *PostgresStore) PutBooking(ctx context.Context, b domain.Booking) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	_, err := s.pool.Exec(ctx,
		`UPDATE bookings SET code = $1, email = $2, name = $3, status = $4, forest = $5,
			pickup = $6, date_in = $7, date_out = $8, day_trip = $9, guests = $10,
			package = $11, need_transport = $12, need_lodging = $13, subtotal = $14,
			paid_at = $15, paid_method = $16
		 WHERE id = $17`,
		b.Code, b.Email, b.Name, string(b.Status), b.Forest,
		b.Pickup, b.DateIn, b.DateOut, b.DayTrip, b.Guests,
		string(b.Package), b.NeedTransport, b.NeedLodging, b.Subtotal,
		b.PaidAt, b.PaidMethod,
		b.ID,
	)
	if isPGDuplicate(err) {
		return ErrDuplicateKey
	}
	if err != nil {
		return fmt.Errorf("put booking: %w", err)
	}
	return nil
}

func (s *PostgresStore) BookingsByEmail(ctx context.Context, email string) ([]domain.Booking, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := `SELECT ` + bookingColumns + ` FROM bookings`
	args := []any{}
	indexed := s.indexes["idx_bookings_email"]
	if indexed {
		query += ` WHERE email = $1`
		args = append(args, email)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.pool.Query(ctx, query, args...)
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

func (s *PostgresStore) InsertPayment(ctx context.Context, p *domain.Payment) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	err := s.pool.QueryRow(ctx,
		`INSERT INTO payments (booking_id, code, email, amount, method, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		p.BookingID, p.Code, p.Email, p.Amount, p.Method, string(p.Status), p.CreatedAt.UTC(),
	).Scan(&p.ID)
	if isPGDuplicate(err) {
		return ErrDuplicateKey
	}
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (s *PostgresStore) PaymentsByBooking(ctx context.Context, bookingID int64) ([]domain.Payment, error) {
	return s.listPayments(ctx, "idx_payments_booking_id", "booking_id", bookingID,
		func(p domain.Payment) bool { return p.BookingID == bookingID })
}

func (s *PostgresStore) PaymentsByEmail(ctx context.Context, email string) ([]domain.Payment, error) {
	return s.listPayments(ctx, "idx_payments_email", "email", email,
		func(p domain.Payment) bool { return p.Email == email })
}

func (s *PostgresStore) listPayments(ctx context.Context, index, column string, arg any, match func(domain.Payment) bool) ([]domain.Payment, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := `SELECT id, booking_id, code, email, amount, method, status, created_at FROM payments`
	args := []any{}
	indexed := s.indexes[index]
	if indexed {
		query += ` WHERE ` + column + ` = $1`
		args = append(args, arg)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.pool.Query(ctx, query, args...)
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

func (s *PostgresStore) Clear(ctx context.Context, collections ...Collection) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	for _, c := range collections {
		switch c {
		case Users, Bookings, Payments:
		default:
			tx.Rollback(ctx)
			return fmt.Errorf("clear: unknown collection %q", c)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM `+string(c)); err != nil {
			tx.Rollback(ctx)
			return fmt.Errorf("clear %s: %w", c, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	logger.InfoContext(ctx, "ledger cleared", "collections", collections)
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
