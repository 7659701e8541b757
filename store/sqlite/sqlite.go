/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements generic.TxStore using SQLite. In production, the same patterns
  apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  users:       Directory records plus the wallet balance
  cafes:       Directory records (rate, capacity, hours)
  bookings:    One row per reservation; status moves by guarded UPDATE
  slot_blocks: UNIQUE(cafe_id, date, slot) - the slot mutual-exclusion gate
  payments:    Append-only wallet movements
  reviews:     UNIQUE(booking_id) - one review per booking

GUARDED WRITES:
  No write trusts an earlier read:
  - wallet:   UPDATE ... WHERE wallet_balance = <expected>
  - bookings: UPDATE ... WHERE status IN (<from>)
  - reviewed: UPDATE ... WHERE reviewed = 0
  A zero row count means another unit got there first and is reported as
  generic.ErrConcurrentModification.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety plus BEGIN IMMEDIATE transactions, so
  WithTx units run one at a time even across connections.

AMOUNTS:
  Stored as the canonical decimal string (Amount.String()). The wallet guard
  compares strings, which is exact because the form is canonical.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/cafe.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - generic/store.go: Interface definitions
  - generic/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/warp/cafe-booking/generic"
)

// Store implements generic.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_txlock=immediate&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Every connection to ":memory:" is its own database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT 'user',
		wallet_balance TEXT NOT NULL DEFAULT '0'
	);

	CREATE TABLE IF NOT EXISTS cafes (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		city TEXT NOT NULL DEFAULT '',
		hourly_rate TEXT NOT NULL,
		capacity INTEGER NOT NULL,
		opening_time TEXT NOT NULL,
		closing_time TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS bookings (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		cafe_id TEXT NOT NULL REFERENCES cafes(id),
		date TEXT NOT NULL,
		slot TEXT NOT NULL,
		players INTEGER NOT NULL,
		total_amount TEXT NOT NULL,
		status TEXT NOT NULL,
		payment_status TEXT NOT NULL,
		cancellation_reason TEXT NOT NULL DEFAULT '',
		refund_amount TEXT NOT NULL DEFAULT '0',
		reviewed INTEGER NOT NULL DEFAULT 0,
		seq INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Capacity aggregation (hot path)
	CREATE INDEX IF NOT EXISTS idx_bookings_cafe_date_status
		ON bookings(cafe_id, date, status);
	CREATE INDEX IF NOT EXISTS idx_bookings_user ON bookings(user_id, seq);
	CREATE INDEX IF NOT EXISTS idx_bookings_status ON bookings(status);

	-- CRITICAL: at most one block per slot identity
	CREATE TABLE IF NOT EXISTS slot_blocks (
		id TEXT PRIMARY KEY,
		cafe_id TEXT NOT NULL REFERENCES cafes(id),
		date TEXT NOT NULL,
		slot TEXT NOT NULL,
		reason TEXT NOT NULL,
		booking_id TEXT,
		blocked_by TEXT,
		created_at TEXT NOT NULL,
		UNIQUE(cafe_id, date, slot)
	);

	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		booking_id TEXT,
		amount TEXT NOT NULL,
		type TEXT NOT NULL,
		method TEXT NOT NULL,
		status TEXT NOT NULL,
		seq INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payments_user ON payments(user_id, seq);

	CREATE TABLE IF NOT EXISTS reviews (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		cafe_id TEXT NOT NULL REFERENCES cafes(id),
		booking_id TEXT NOT NULL UNIQUE REFERENCES bookings(id),
		rating INTEGER NOT NULL,
		comment TEXT NOT NULL DEFAULT '',
		seq INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reviews_cafe ON reviews(cafe_id, seq);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// LOCKED ACCESS - Store satisfies generic.Store outside transactions
// =============================================================================

func (s *Store) read() (*queries, func()) {
	s.mu.RLock()
	return &queries{q: s.db}, s.mu.RUnlock
}

func (s *Store) write() (*queries, func()) {
	s.mu.Lock()
	return &queries{q: s.db}, s.mu.Unlock
}

func (s *Store) GetUser(ctx context.Context, id generic.UserID) (generic.User, error) {
	q, done := s.read()
	defer done()
	return q.GetUser(ctx, id)
}

func (s *Store) UserExists(ctx context.Context, id generic.UserID) (bool, error) {
	q, done := s.read()
	defer done()
	return q.UserExists(ctx, id)
}

func (s *Store) SaveUser(ctx context.Context, u generic.User) error {
	q, done := s.write()
	defer done()
	return q.SaveUser(ctx, u)
}

func (s *Store) SetWalletBalance(ctx context.Context, id generic.UserID, expected, next generic.Amount) error {
	q, done := s.write()
	defer done()
	return q.SetWalletBalance(ctx, id, expected, next)
}

func (s *Store) GetCafe(ctx context.Context, id generic.CafeID) (generic.Cafe, error) {
	q, done := s.read()
	defer done()
	return q.GetCafe(ctx, id)
}

func (s *Store) ListCafes(ctx context.Context) ([]generic.Cafe, error) {
	q, done := s.read()
	defer done()
	return q.ListCafes(ctx)
}

func (s *Store) SaveCafe(ctx context.Context, c generic.Cafe) error {
	q, done := s.write()
	defer done()
	return q.SaveCafe(ctx, c)
}

func (s *Store) InsertBooking(ctx context.Context, b generic.Booking) error {
	q, done := s.write()
	defer done()
	return q.InsertBooking(ctx, b)
}

func (s *Store) GetBooking(ctx context.Context, id generic.BookingID) (generic.Booking, error) {
	q, done := s.read()
	defer done()
	return q.GetBooking(ctx, id)
}

func (s *Store) ActiveBookings(ctx context.Context, cafeID generic.CafeID, date time.Time) ([]generic.Booking, error) {
	q, done := s.read()
	defer done()
	return q.ActiveBookings(ctx, cafeID, date)
}

func (s *Store) BookingsByUser(ctx context.Context, userID generic.UserID) ([]generic.Booking, error) {
	q, done := s.read()
	defer done()
	return q.BookingsByUser(ctx, userID)
}

func (s *Store) BookingsByCafe(ctx context.Context, cafeID generic.CafeID) ([]generic.Booking, error) {
	q, done := s.read()
	defer done()
	return q.BookingsByCafe(ctx, cafeID)
}

func (s *Store) BookingsByStatus(ctx context.Context, status generic.BookingStatus) ([]generic.Booking, error) {
	q, done := s.read()
	defer done()
	return q.BookingsByStatus(ctx, status)
}

func (s *Store) UpdateBooking(ctx context.Context, b generic.Booking, from ...generic.BookingStatus) error {
	q, done := s.write()
	defer done()
	return q.UpdateBooking(ctx, b, from...)
}

func (s *Store) MarkReviewed(ctx context.Context, id generic.BookingID) error {
	q, done := s.write()
	defer done()
	return q.MarkReviewed(ctx, id)
}

func (s *Store) InsertBlock(ctx context.Context, b generic.SlotBlock) error {
	q, done := s.write()
	defer done()
	return q.InsertBlock(ctx, b)
}

func (s *Store) GetBlock(ctx context.Context, id generic.BlockID) (generic.SlotBlock, error) {
	q, done := s.read()
	defer done()
	return q.GetBlock(ctx, id)
}

func (s *Store) FindBlock(ctx context.Context, cafeID generic.CafeID, date time.Time, slot string) (generic.SlotBlock, bool, error) {
	q, done := s.read()
	defer done()
	return q.FindBlock(ctx, cafeID, date, slot)
}

func (s *Store) BlocksFor(ctx context.Context, cafeID generic.CafeID, date time.Time) ([]generic.SlotBlock, error) {
	q, done := s.read()
	defer done()
	return q.BlocksFor(ctx, cafeID, date)
}

func (s *Store) RelinkBlock(ctx context.Context, id generic.BlockID, bookingID generic.BookingID) error {
	q, done := s.write()
	defer done()
	return q.RelinkBlock(ctx, id, bookingID)
}

func (s *Store) DeleteBlock(ctx context.Context, id generic.BlockID) error {
	q, done := s.write()
	defer done()
	return q.DeleteBlock(ctx, id)
}

func (s *Store) InsertPayment(ctx context.Context, p generic.Payment) error {
	q, done := s.write()
	defer done()
	return q.InsertPayment(ctx, p)
}

func (s *Store) PaymentsByUser(ctx context.Context, userID generic.UserID) ([]generic.Payment, error) {
	q, done := s.read()
	defer done()
	return q.PaymentsByUser(ctx, userID)
}

func (s *Store) InsertReview(ctx context.Context, r generic.Review) error {
	q, done := s.write()
	defer done()
	return q.InsertReview(ctx, r)
}

func (s *Store) ReviewsByCafe(ctx context.Context, cafeID generic.CafeID) ([]generic.Review, error) {
	q, done := s.read()
	defer done()
	return q.ReviewsByCafe(ctx, cafeID)
}

// =============================================================================
// TRANSACTIONAL STORE (generic.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store generic.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&queries{q: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// =============================================================================
// QUERIES - Shared by the plain store and the transaction view
// =============================================================================

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries runs statements against a *sql.DB or *sql.Tx. Callers hold the lock.
type queries struct {
	q querier
}

// ---- users ----

func (qs *queries) GetUser(ctx context.Context, id generic.UserID) (generic.User, error) {
	var (
		u       generic.User
		balance string
	)
	err := qs.q.QueryRowContext(ctx,
		`SELECT id, name, email, role, wallet_balance FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.Name, &u.Email, &u.Role, &balance)
	if errors.Is(err, sql.ErrNoRows) {
		return generic.User{}, generic.NotFound("user", id)
	}
	if err != nil {
		return generic.User{}, fmt.Errorf("failed to get user: %w", err)
	}
	u.WalletBalance = parseAmount(balance)
	return u, nil
}

func (qs *queries) UserExists(ctx context.Context, id generic.UserID) (bool, error) {
	var count int
	err := qs.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE id = ?`, id).Scan(&count)
	return count > 0, err
}

func (qs *queries) SaveUser(ctx context.Context, u generic.User) error {
	role := u.Role
	if role == "" {
		role = generic.RoleUser
	}
	_, err := qs.q.ExecContext(ctx, `
		INSERT INTO users (id, name, email, role, wallet_balance)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			role = excluded.role,
			wallet_balance = excluded.wallet_balance
	`, u.ID, u.Name, u.Email, role, u.WalletBalance.String())
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

func (qs *queries) SetWalletBalance(ctx context.Context, id generic.UserID, expected, next generic.Amount) error {
	res, err := qs.q.ExecContext(ctx,
		`UPDATE users SET wallet_balance = ? WHERE id = ? AND wallet_balance = ?`,
		next.String(), id, expected.String())
	if err != nil {
		return fmt.Errorf("failed to update wallet: %w", err)
	}
	return qs.guarded(ctx, res, "SELECT COUNT(*) FROM users WHERE id = ?", id, generic.NotFound("user", id))
}

// guarded turns a zero-row guarded UPDATE into NotFound or a conflict.
func (qs *queries) guarded(ctx context.Context, res sql.Result, existsQuery string, id any, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var count int
	if err := qs.q.QueryRowContext(ctx, existsQuery, id).Scan(&count); err != nil {
		return err
	}
	if count == 0 {
		return notFound
	}
	return generic.ErrConcurrentModification
}

// ---- cafes ----

const cafeColumns = `id, name, city, hourly_rate, capacity, opening_time, closing_time`

func scanCafe(row interface{ Scan(...any) error }) (generic.Cafe, error) {
	var (
		c    generic.Cafe
		rate string
	)
	if err := row.Scan(&c.ID, &c.Name, &c.City, &rate, &c.Capacity, &c.OpeningTime, &c.ClosingTime); err != nil {
		return c, err
	}
	c.HourlyRate = parseAmount(rate)
	return c, nil
}

func (qs *queries) GetCafe(ctx context.Context, id generic.CafeID) (generic.Cafe, error) {
	c, err := scanCafe(qs.q.QueryRowContext(ctx, `SELECT `+cafeColumns+` FROM cafes WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return generic.Cafe{}, generic.NotFound("cafe", id)
	}
	if err != nil {
		return generic.Cafe{}, fmt.Errorf("failed to get cafe: %w", err)
	}
	return c, nil
}

func (qs *queries) ListCafes(ctx context.Context) ([]generic.Cafe, error) {
	rows, err := qs.q.QueryContext(ctx, `SELECT `+cafeColumns+` FROM cafes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list cafes: %w", err)
	}
	defer rows.Close()

	out := []generic.Cafe{}
	for rows.Next() {
		c, err := scanCafe(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cafe: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (qs *queries) SaveCafe(ctx context.Context, c generic.Cafe) error {
	_, err := qs.q.ExecContext(ctx, `
		INSERT INTO cafes (`+cafeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			city = excluded.city,
			hourly_rate = excluded.hourly_rate,
			capacity = excluded.capacity,
			opening_time = excluded.opening_time,
			closing_time = excluded.closing_time
	`, c.ID, c.Name, c.City, c.HourlyRate.String(), c.Capacity, c.OpeningTime, c.ClosingTime)
	if err != nil {
		return fmt.Errorf("failed to save cafe: %w", err)
	}
	return nil
}

// ---- bookings ----

const bookingColumns = `id, user_id, cafe_id, date, slot, players, total_amount, status,
	payment_status, cancellation_reason, refund_amount, reviewed, created_at, updated_at`

func scanBooking(row interface{ Scan(...any) error }) (generic.Booking, error) {
	var (
		b                    generic.Booking
		date, total, refund  string
		createdAt, updatedAt string
		reviewed             int
	)
	err := row.Scan(&b.ID, &b.UserID, &b.CafeID, &date, &b.Slot, &b.Players, &total, &b.Status,
		&b.PaymentStatus, &b.CancellationReason, &refund, &reviewed, &createdAt, &updatedAt)
	if err != nil {
		return b, err
	}
	b.Date, _ = time.Parse(generic.DateLayout, date)
	b.TotalAmount = parseAmount(total)
	b.RefundAmount = parseAmount(refund)
	b.Reviewed = reviewed != 0
	b.CreatedAt = parseTime(createdAt)
	b.UpdatedAt = parseTime(updatedAt)
	return b, nil
}

func (qs *queries) queryBookings(ctx context.Context, query string, args ...any) ([]generic.Booking, error) {
	rows, err := qs.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	out := []generic.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (qs *queries) InsertBooking(ctx context.Context, b generic.Booking) error {
	_, err := qs.q.ExecContext(ctx, `
		INSERT INTO bookings (`+bookingColumns+`, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?,
			(SELECT COALESCE(MAX(seq), 0) + 1 FROM bookings))
	`, b.ID, b.UserID, b.CafeID, generic.FormatDate(b.Date), b.Slot, b.Players,
		b.TotalAmount.String(), b.Status, b.PaymentStatus, b.CancellationReason,
		b.RefundAmount.String(), boolInt(b.Reviewed), formatTime(b.CreatedAt), formatTime(b.UpdatedAt))
	if err != nil {
		if isUniqueConstraintError(err) {
			return generic.ErrConcurrentModification
		}
		return fmt.Errorf("failed to insert booking: %w", err)
	}
	return nil
}

func (qs *queries) GetBooking(ctx context.Context, id generic.BookingID) (generic.Booking, error) {
	b, err := scanBooking(qs.q.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return generic.Booking{}, generic.NotFound("booking", id)
	}
	if err != nil {
		return generic.Booking{}, fmt.Errorf("failed to get booking: %w", err)
	}
	return b, nil
}

func (qs *queries) ActiveBookings(ctx context.Context, cafeID generic.CafeID, date time.Time) ([]generic.Booking, error) {
	return qs.queryBookings(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE cafe_id = ? AND date = ? AND status IN (?, ?)
		ORDER BY seq ASC
	`, cafeID, generic.FormatDate(date), generic.StatusPending, generic.StatusConfirmed)
}

func (qs *queries) BookingsByUser(ctx context.Context, userID generic.UserID) ([]generic.Booking, error) {
	return qs.queryBookings(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE user_id = ? ORDER BY seq DESC`, userID)
}

func (qs *queries) BookingsByCafe(ctx context.Context, cafeID generic.CafeID) ([]generic.Booking, error) {
	return qs.queryBookings(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE cafe_id = ? ORDER BY seq DESC`, cafeID)
}

func (qs *queries) BookingsByStatus(ctx context.Context, status generic.BookingStatus) ([]generic.Booking, error) {
	return qs.queryBookings(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE status = ? ORDER BY seq DESC`, status)
}

func (qs *queries) UpdateBooking(ctx context.Context, b generic.Booking, from ...generic.BookingStatus) error {
	if len(from) == 0 {
		return generic.ErrConcurrentModification
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(from)), ", ")
	args := []any{b.Status, b.PaymentStatus, b.CancellationReason, b.RefundAmount.String(), formatTime(b.UpdatedAt), b.ID}
	for _, st := range from {
		args = append(args, st)
	}

	res, err := qs.q.ExecContext(ctx, `
		UPDATE bookings
		SET status = ?, payment_status = ?, cancellation_reason = ?, refund_amount = ?, updated_at = ?
		WHERE id = ? AND status IN (`+placeholders+`)
	`, args...)
	if err != nil {
		return fmt.Errorf("failed to update booking: %w", err)
	}
	return qs.guarded(ctx, res, "SELECT COUNT(*) FROM bookings WHERE id = ?", b.ID, generic.NotFound("booking", b.ID))
}

func (qs *queries) MarkReviewed(ctx context.Context, id generic.BookingID) error {
	res, err := qs.q.ExecContext(ctx, `UPDATE bookings SET reviewed = 1 WHERE id = ? AND reviewed = 0`, id)
	if err != nil {
		return fmt.Errorf("failed to mark reviewed: %w", err)
	}
	return qs.guarded(ctx, res, "SELECT COUNT(*) FROM bookings WHERE id = ?", id, generic.NotFound("booking", id))
}

// ---- slot blocks ----

const blockColumns = `id, cafe_id, date, slot, reason, booking_id, blocked_by, created_at`

func scanBlock(row interface{ Scan(...any) error }) (generic.SlotBlock, error) {
	var (
		b                    generic.SlotBlock
		date, createdAt      string
		bookingID, blockedBy sql.NullString
	)
	if err := row.Scan(&b.ID, &b.CafeID, &date, &b.Slot, &b.Reason, &bookingID, &blockedBy, &createdAt); err != nil {
		return b, err
	}
	b.Date, _ = time.Parse(generic.DateLayout, date)
	b.BookingID = generic.BookingID(bookingID.String)
	b.BlockedBy = generic.UserID(blockedBy.String)
	b.CreatedAt = parseTime(createdAt)
	return b, nil
}

func (qs *queries) InsertBlock(ctx context.Context, b generic.SlotBlock) error {
	_, err := qs.q.ExecContext(ctx, `
		INSERT INTO slot_blocks (`+blockColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, b.ID, b.CafeID, generic.FormatDate(b.Date), b.Slot, b.Reason,
		nullString(string(b.BookingID)), nullString(string(b.BlockedBy)), formatTime(b.CreatedAt))
	if err != nil {
		if isUniqueConstraintError(err) {
			return generic.ErrDuplicateSlotBlock
		}
		return fmt.Errorf("failed to insert slot block: %w", err)
	}
	return nil
}

func (qs *queries) GetBlock(ctx context.Context, id generic.BlockID) (generic.SlotBlock, error) {
	b, err := scanBlock(qs.q.QueryRowContext(ctx, `SELECT `+blockColumns+` FROM slot_blocks WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return generic.SlotBlock{}, generic.NotFound("slot block", id)
	}
	if err != nil {
		return generic.SlotBlock{}, fmt.Errorf("failed to get slot block: %w", err)
	}
	return b, nil
}

func (qs *queries) FindBlock(ctx context.Context, cafeID generic.CafeID, date time.Time, slot string) (generic.SlotBlock, bool, error) {
	b, err := scanBlock(qs.q.QueryRowContext(ctx,
		`SELECT `+blockColumns+` FROM slot_blocks WHERE cafe_id = ? AND date = ? AND slot = ?`,
		cafeID, generic.FormatDate(date), slot))
	if errors.Is(err, sql.ErrNoRows) {
		return generic.SlotBlock{}, false, nil
	}
	if err != nil {
		return generic.SlotBlock{}, false, fmt.Errorf("failed to find slot block: %w", err)
	}
	return b, true, nil
}

func (qs *queries) BlocksFor(ctx context.Context, cafeID generic.CafeID, date time.Time) ([]generic.SlotBlock, error) {
	rows, err := qs.q.QueryContext(ctx,
		`SELECT `+blockColumns+` FROM slot_blocks WHERE cafe_id = ? AND date = ? ORDER BY slot`,
		cafeID, generic.FormatDate(date))
	if err != nil {
		return nil, fmt.Errorf("failed to query slot blocks: %w", err)
	}
	defer rows.Close()

	var out []generic.SlotBlock
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan slot block: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (qs *queries) RelinkBlock(ctx context.Context, id generic.BlockID, bookingID generic.BookingID) error {
	res, err := qs.q.ExecContext(ctx, `UPDATE slot_blocks SET booking_id = ? WHERE id = ?`, bookingID, id)
	if err != nil {
		return fmt.Errorf("failed to relink slot block: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return generic.NotFound("slot block", id)
	}
	return nil
}

func (qs *queries) DeleteBlock(ctx context.Context, id generic.BlockID) error {
	res, err := qs.q.ExecContext(ctx, `DELETE FROM slot_blocks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete slot block: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return generic.NotFound("slot block", id)
	}
	return nil
}

// ---- payments ----

func (qs *queries) InsertPayment(ctx context.Context, p generic.Payment) error {
	_, err := qs.q.ExecContext(ctx, `
		INSERT INTO payments (id, user_id, booking_id, amount, type, method, status, created_at, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM payments))
	`, p.ID, p.UserID, nullString(string(p.BookingID)), p.Amount.String(), p.Type, p.Method, p.Status, formatTime(p.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	return nil
}

func (qs *queries) PaymentsByUser(ctx context.Context, userID generic.UserID) ([]generic.Payment, error) {
	rows, err := qs.q.QueryContext(ctx, `
		SELECT id, user_id, booking_id, amount, type, method, status, created_at
		FROM payments WHERE user_id = ? ORDER BY seq DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	out := []generic.Payment{}
	for rows.Next() {
		var (
			p                 generic.Payment
			bookingID         sql.NullString
			amount, createdAt string
		)
		if err := rows.Scan(&p.ID, &p.UserID, &bookingID, &amount, &p.Type, &p.Method, &p.Status, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		p.BookingID = generic.BookingID(bookingID.String)
		p.Amount = parseAmount(amount)
		p.CreatedAt = parseTime(createdAt)
		out = append(out, p)
	}
	return out, rows.Err()
}

// ---- reviews ----

func (qs *queries) InsertReview(ctx context.Context, r generic.Review) error {
	_, err := qs.q.ExecContext(ctx, `
		INSERT INTO reviews (id, user_id, cafe_id, booking_id, rating, comment, created_at, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM reviews))
	`, r.ID, r.UserID, r.CafeID, r.BookingID, r.Rating, r.Comment, formatTime(r.CreatedAt))
	if err != nil {
		if isUniqueConstraintError(err) {
			return generic.ErrDuplicateReview
		}
		return fmt.Errorf("failed to insert review: %w", err)
	}
	return nil
}

func (qs *queries) ReviewsByCafe(ctx context.Context, cafeID generic.CafeID) ([]generic.Review, error) {
	rows, err := qs.q.QueryContext(ctx, `
		SELECT id, user_id, cafe_id, booking_id, rating, comment, created_at
		FROM reviews WHERE cafe_id = ? ORDER BY seq DESC
	`, cafeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query reviews: %w", err)
	}
	defer rows.Close()

	out := []generic.Review{}
	for rows.Next() {
		var (
			r         generic.Review
			createdAt string
		)
		if err := rows.Scan(&r.ID, &r.UserID, &r.CafeID, &r.BookingID, &r.Rating, &r.Comment, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		r.CreatedAt = parseTime(createdAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func parseAmount(value string) generic.Amount {
	return generic.MustParseAmount(value)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
