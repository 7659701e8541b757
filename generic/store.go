/*
store.go - Persistence interfaces for bookings, wallets and slot blocks

PURPOSE:
  Defines the interface between the domain logic and the database.
  Each entity type has exactly one logically-owned store; there is no
  shared mutable state outside these interfaces. Implementations can use
  SQLite or in-memory storage.

KEY INTERFACES:
  UserStore:    User directory (wallet balance is mutated only by the Ledger)
  CafeStore:    Café directory
  BookingStore: Booking records and guarded status transitions
  BlockStore:   Slot blocks, unique per (café, date, slot)
  PaymentStore: Append-only payment records
  ReviewStore:  One review per booking
  TxStore:      All of the above plus WithTx for atomic multi-table writes

ATOMIC UNITS:
  Creating and cancelling a booking each touch the wallet, the payment log,
  the booking and the slot block. WithTx makes that one all-or-nothing unit:
  a debit without a booking is structurally impossible.

CONCURRENCY PRIMITIVES:
  - InsertBlock fails with ErrDuplicateSlotBlock on an occupied identity.
    That unique key is the designed mutual-exclusion gate for a slot.
  - UpdateBooking only writes when the stored status is in the expected set
    (compare-and-swap); otherwise ErrConcurrentModification.
  - SetWalletBalance only writes when the stored balance equals the expected
    value; otherwise ErrConcurrentModification.
  WithTx implementations serialize their units, so inside one unit a read
  followed by a guarded write cannot interleave with another unit.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite
  - generic/store/memory.go: In-memory for testing

SEE ALSO:
  - ledger.go: Wallet operations on top of a Store
  - booking/engine.go: The atomic create/cancel units
*/
package generic

import (
	"context"
	"time"
)

// =============================================================================
// DIRECTORIES - External collaborators, referenced by id
// =============================================================================

type UserStore interface {
	GetUser(ctx context.Context, id UserID) (User, error)
	UserExists(ctx context.Context, id UserID) (bool, error)
	SaveUser(ctx context.Context, u User) error

	// SetWalletBalance writes next only if the stored balance equals expected.
	// Only the Ledger calls this.
	SetWalletBalance(ctx context.Context, id UserID, expected, next Amount) error
}

type CafeStore interface {
	GetCafe(ctx context.Context, id CafeID) (Cafe, error)
	ListCafes(ctx context.Context) ([]Cafe, error)
	SaveCafe(ctx context.Context, c Cafe) error
}

// =============================================================================
// BOOKINGS
// =============================================================================

type BookingStore interface {
	InsertBooking(ctx context.Context, b Booking) error
	GetBooking(ctx context.Context, id BookingID) (Booking, error)

	// ActiveBookings returns pending and confirmed bookings for (café, date),
	// oldest first.
	ActiveBookings(ctx context.Context, cafeID CafeID, date time.Time) ([]Booking, error)

	// BookingsByUser and BookingsByCafe return newest first.
	BookingsByUser(ctx context.Context, userID UserID) ([]Booking, error)
	BookingsByCafe(ctx context.Context, cafeID CafeID) ([]Booking, error)
	BookingsByStatus(ctx context.Context, status BookingStatus) ([]Booking, error)

	// UpdateBooking writes the mutable fields of b (status, payment status,
	// cancellation reason, refund amount, updated at) if the stored status is
	// one of from.
	UpdateBooking(ctx context.Context, b Booking, from ...BookingStatus) error

	// MarkReviewed flips reviewed false -> true exactly once.
	MarkReviewed(ctx context.Context, id BookingID) error
}

// =============================================================================
// SLOT BLOCKS
// =============================================================================

type BlockStore interface {
	InsertBlock(ctx context.Context, b SlotBlock) error
	GetBlock(ctx context.Context, id BlockID) (SlotBlock, error)
	FindBlock(ctx context.Context, cafeID CafeID, date time.Time, slot string) (SlotBlock, bool, error)
	BlocksFor(ctx context.Context, cafeID CafeID, date time.Time) ([]SlotBlock, error)

	// RelinkBlock points a booked_by_user block at another booking.
	RelinkBlock(ctx context.Context, id BlockID, bookingID BookingID) error
	DeleteBlock(ctx context.Context, id BlockID) error
}

// =============================================================================
// PAYMENTS AND REVIEWS - Append-only
// =============================================================================

type PaymentStore interface {
	InsertPayment(ctx context.Context, p Payment) error

	// PaymentsByUser returns newest first.
	PaymentsByUser(ctx context.Context, userID UserID) ([]Payment, error)
}

type ReviewStore interface {
	InsertReview(ctx context.Context, r Review) error
	ReviewsByCafe(ctx context.Context, cafeID CafeID) ([]Review, error)
}

// =============================================================================
// STORE / TRANSACTIONAL STORE
// =============================================================================

type Store interface {
	UserStore
	CafeStore
	BookingStore
	BlockStore
	PaymentStore
	ReviewStore
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
