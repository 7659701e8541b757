/*
Package generic provides the shared vocabulary of the booking engine.

PURPOSE:
  This package contains the types every other package speaks: money amounts,
  identifiers, the persisted records (Booking, Payment, SlotBlock, Review) and
  the external directory records (User, Cafe) the core only references by id.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: A money quantity backed by decimal.Decimal (never float64)
  - Booking: One reservation of one hour-slot at one café
  - Payment: An immutable wallet movement linked to its cause
  - SlotBlock: A record marking a (café, date, slot) identity as occupied

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point errors in money
  2. Type Safety: Strong typing for IDs prevents mixing user/café/booking IDs
  3. Explicit lifecycles: status enums carry their own transition rules
  4. Auditability: every wallet change has exactly one Payment

USAGE:
  rate := generic.NewAmountFromInt(100)
  b := generic.Booking{
      CafeID:      "cafe-1",
      Slot:        "10:00-11:00",
      TotalAmount: rate,
      Status:      generic.StatusConfirmed,
  }

SEE ALSO:
  - errors.go: Error kinds shared by every layer
  - ledger.go: Wallet debit/credit paired with Payment records
  - store.go: Persistence interfaces
*/
package generic

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Money value
// =============================================================================

type Amount struct {
	Value decimal.Decimal
}

func NewAmount(value float64) Amount {
	return Amount{Value: decimal.NewFromFloat(value)}
}

func NewAmountFromInt(value int64) Amount {
	return Amount{Value: decimal.NewFromInt(value)}
}

// ParseAmount parses a decimal string such as "250.50".
func ParseAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, err
	}
	return Amount{Value: d}, nil
}

func MustParseAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		return Amount{Value: decimal.Zero}
	}
	return a
}

func ZeroAmount() Amount { return Amount{Value: decimal.Zero} }

func (a Amount) Add(b Amount) Amount          { return Amount{Value: a.Value.Add(b.Value)} }
func (a Amount) Sub(b Amount) Amount          { return Amount{Value: a.Value.Sub(b.Value)} }
func (a Amount) Mul(s decimal.Decimal) Amount { return Amount{Value: a.Value.Mul(s)} }
func (a Amount) Neg() Amount                  { return Amount{Value: a.Value.Neg()} }
func (a Amount) Round(places int32) Amount    { return Amount{Value: a.Value.Round(places)} }
func (a Amount) IsNegative() bool             { return a.Value.IsNegative() }
func (a Amount) IsZero() bool                 { return a.Value.IsZero() }
func (a Amount) IsPositive() bool             { return a.Value.IsPositive() }
func (a Amount) Equal(b Amount) bool          { return a.Value.Equal(b.Value) }
func (a Amount) GreaterThan(b Amount) bool    { return a.Value.GreaterThan(b.Value) }
func (a Amount) LessThan(b Amount) bool       { return a.Value.LessThan(b.Value) }

// String returns the canonical form (trailing zeros trimmed). Stores rely on
// it being canonical for guarded balance updates.
func (a Amount) String() string { return a.Value.String() }

// Float64 is for presentation only.
func (a Amount) Float64() float64 {
	f, _ := a.Value.Float64()
	return f
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UserID string
type CafeID string
type BookingID string
type PaymentID string
type BlockID string
type ReviewID string

// =============================================================================
// DIRECTORY RECORDS - Owned by external collaborators, referenced by id
// =============================================================================

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type User struct {
	ID            UserID
	Name          string
	Email         string
	Role          Role
	WalletBalance Amount
}

// Cafe is the booking-relevant projection of a café listing.
// OpeningTime and ClosingTime are "HH:MM" times of day; ClosingTime may be "24:00".
type Cafe struct {
	ID          CafeID
	Name        string
	City        string
	HourlyRate  Amount
	Capacity    int
	OpeningTime string
	ClosingTime string
}

// =============================================================================
// BOOKING
// =============================================================================

type BookingStatus string

const (
	StatusPending   BookingStatus = "pending"
	StatusConfirmed BookingStatus = "confirmed"
	StatusCancelled BookingStatus = "cancelled"
	StatusCompleted BookingStatus = "completed"
)

// ActiveStatuses are the statuses that occupy slot capacity.
var ActiveStatuses = []BookingStatus{StatusPending, StatusConfirmed}

func (s BookingStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

func (s BookingStatus) IsTerminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

func (s BookingStatus) IsActive() bool {
	return s == StatusPending || s == StatusConfirmed
}

// CanTransition reports whether s -> to is a legal lifecycle step:
// pending -> confirmed -> completed, and pending|confirmed -> cancelled.
func (s BookingStatus) CanTransition(to BookingStatus) bool {
	switch s {
	case StatusPending:
		return to == StatusConfirmed || to == StatusCancelled
	case StatusConfirmed:
		return to == StatusCompleted || to == StatusCancelled
	}
	return false
}

// ChargeStatus is the booking's view of its payment.
type ChargeStatus string

const (
	ChargePending  ChargeStatus = "pending"
	ChargePaid     ChargeStatus = "paid"
	ChargeRefunded ChargeStatus = "refunded"
)

type Booking struct {
	ID                 BookingID
	UserID             UserID
	CafeID             CafeID
	Date               time.Time // civil date, midnight UTC
	Slot               string    // "14:00-15:00"
	Players            int
	TotalAmount        Amount
	Status             BookingStatus
	PaymentStatus      ChargeStatus
	CancellationReason string
	RefundAmount       Amount
	Reviewed           bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// =============================================================================
// SLOT BLOCK
// =============================================================================

type BlockReason string

const (
	ReasonBookedByUser BlockReason = "booked_by_user"
	ReasonAdminBlocked BlockReason = "admin_blocked"
	ReasonMaintenance  BlockReason = "maintenance"
	ReasonPrivateEvent BlockReason = "private_event"
)

func (r BlockReason) Valid() bool {
	switch r {
	case ReasonBookedByUser, ReasonAdminBlocked, ReasonMaintenance, ReasonPrivateEvent:
		return true
	}
	return false
}

// IsBooking reports whether the block only marks booking occupancy.
// Every other reason closes the slot outright.
func (r BlockReason) IsBooking() bool { return r == ReasonBookedByUser }

type SlotBlock struct {
	ID        BlockID
	CafeID    CafeID
	Date      time.Time
	Slot      string
	Reason    BlockReason
	BookingID BookingID // set for ReasonBookedByUser; lookup only
	BlockedBy UserID    // admin who blocked it, if any
	CreatedAt time.Time
}

// =============================================================================
// PAYMENT - Immutable wallet movement
// =============================================================================

type PaymentType string

const (
	PaymentRecharge PaymentType = "recharge"
	PaymentBooking  PaymentType = "booking_payment"
	PaymentRefund   PaymentType = "booking_refund"
)

// IsDebit reports whether the payment type takes money out of the wallet.
func (t PaymentType) IsDebit() bool { return t == PaymentBooking }

type PaymentMethod string

const (
	MethodWallet PaymentMethod = "wallet"
	MethodCard   PaymentMethod = "card"
	MethodUPI    PaymentMethod = "upi"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

type Payment struct {
	ID        PaymentID
	UserID    UserID
	BookingID BookingID // empty for recharges
	Amount    Amount    // always >= 0; direction comes from Type
	Type      PaymentType
	Method    PaymentMethod
	Status    PaymentStatus
	CreatedAt time.Time
}

// Signed returns the payment's effect on the wallet balance.
func (p Payment) Signed() Amount {
	if p.Type.IsDebit() {
		return p.Amount.Neg()
	}
	return p.Amount
}

// =============================================================================
// REVIEW
// =============================================================================

type Review struct {
	ID        ReviewID
	UserID    UserID
	CafeID    CafeID
	BookingID BookingID
	Rating    int
	Comment   string
	CreatedAt time.Time
}
