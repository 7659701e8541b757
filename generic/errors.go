/*
errors.go - Centralized error types for the booking engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Every precondition failure surfaces to the caller as one of eight kinds;
  the HTTP layer maps kinds to status codes and nothing is swallowed.

ERROR CATEGORIES:
  1. Kind sentinels - NotFound, Configuration, CapacityExceeded,
     InsufficientFunds, SlotUnavailable, AlreadyFinalized, Unauthorized,
     Validation
  2. Store sentinels - Uniqueness and optimistic-update conflicts raised by
     the persistence layer and translated by the booking engine
  3. Structured errors - Carry context and Unwrap to a kind sentinel

USAGE:
  if errors.Is(err, generic.ErrCapacityExceeded) {
      var capErr *generic.CapacityExceededError
      if errors.As(err, &capErr) {
          fmt.Println(capErr.Remaining())
      }
  }

SEE ALSO:
  - store.go: Which store methods return which store sentinel
  - booking/engine.go: Translates store sentinels into kinds
*/
package generic

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// KIND SENTINELS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a café, booking, user or block is absent.
	ErrNotFound = errors.New("not found")

	// ErrConfiguration is returned when café hours cannot produce slots.
	ErrConfiguration = errors.New("configuration error")

	// ErrCapacityExceeded is returned when a slot cannot seat the requested players.
	ErrCapacityExceeded = errors.New("capacity exceeded")

	// ErrInsufficientFunds is returned when a wallet cannot cover a debit.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrSlotUnavailable is returned for blocked or past slots.
	ErrSlotUnavailable = errors.New("slot unavailable")

	// ErrAlreadyFinalized is returned when a booking is already cancelled or completed.
	ErrAlreadyFinalized = errors.New("booking already finalized")

	// ErrUnauthorized is returned when the caller neither owns the record nor is an admin.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrValidation is returned for missing or out-of-range fields.
	ErrValidation = errors.New("validation error")
)

// =============================================================================
// STORE SENTINELS
// =============================================================================

var (
	// ErrDuplicateSlotBlock is returned when a block already occupies the
	// (café, date, slot) identity. The unique key is the concurrency gate for
	// slot ownership: losing the insert means losing the race.
	ErrDuplicateSlotBlock = errors.New("slot block already exists")

	// ErrConcurrentModification is returned when a guarded update finds the
	// row no longer in the expected state (status CAS, balance guard, reviewed flag).
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrDuplicateReview is returned when the booking already has a review.
	ErrDuplicateReview = errors.New("duplicate review")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// CapacityExceededError provides details about a slot shortage.
type CapacityExceededError struct {
	CafeID    CafeID
	Date      time.Time
	Slot      string
	Capacity  int
	Occupied  int
	Requested int
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("capacity exceeded: %s on %s has %d of %d seats taken, requested %d",
		e.Slot, e.Date.Format(DateLayout), e.Occupied, e.Capacity, e.Requested)
}

func (e *CapacityExceededError) Unwrap() error { return ErrCapacityExceeded }

// Remaining returns the seats still free in the slot.
func (e *CapacityExceededError) Remaining() int {
	if r := e.Capacity - e.Occupied; r > 0 {
		return r
	}
	return 0
}

// SlotBlockedError is returned when a non-booking block closes the slot.
// It unwraps to ErrCapacityExceeded and also matches ErrSlotUnavailable:
// a closed slot has no capacity, and it is unavailable.
type SlotBlockedError struct {
	CafeID CafeID
	Date   time.Time
	Slot   string
	Reason BlockReason
}

func (e *SlotBlockedError) Error() string {
	return fmt.Sprintf("slot %s on %s is blocked (%s)", e.Slot, e.Date.Format(DateLayout), e.Reason)
}

func (e *SlotBlockedError) Unwrap() error { return ErrCapacityExceeded }

func (e *SlotBlockedError) Is(target error) bool { return target == ErrSlotUnavailable }

// InsufficientFundsError provides details about a wallet shortage.
type InsufficientFundsError struct {
	UserID    UserID
	Available Amount
	Requested Amount
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: available %s, requested %s, shortfall %s",
		e.Available, e.Requested, e.Shortfall())
}

func (e *InsufficientFundsError) Unwrap() error { return ErrInsufficientFunds }

func (e *InsufficientFundsError) Shortfall() Amount { return e.Requested.Sub(e.Available) }

// AlreadyFinalizedError reports the terminal status that blocked the operation.
type AlreadyFinalizedError struct {
	BookingID BookingID
	Status    BookingStatus
}

func (e *AlreadyFinalizedError) Error() string {
	return fmt.Sprintf("booking %s is already %s", e.BookingID, e.Status)
}

func (e *AlreadyFinalizedError) Unwrap() error { return ErrAlreadyFinalized }

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation error: " + e.Message
	}
	return fmt.Sprintf("validation error: %s %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalid is shorthand for a *ValidationError.
func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// ConfigurationError reports café hours that cannot produce slots.
type ConfigurationError struct {
	CafeID  CafeID
	Opening string
	Closing string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: cafe %q hours %s-%s: %s", e.CafeID, e.Opening, e.Closing, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// NotFound wraps ErrNotFound with the missing record.
func NotFound(kind string, id any) error {
	return fmt.Errorf("%w: %s %v", ErrNotFound, kind, id)
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// Kind returns the user-facing kind of err, or "internal" when err carries none.
// SlotBlockedError reports as slot_unavailable.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrAlreadyFinalized):
		return "already_finalized"
	case errors.Is(err, ErrSlotUnavailable):
		return "slot_unavailable"
	case errors.Is(err, ErrCapacityExceeded):
		return "capacity_exceeded"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrConfiguration):
		return "configuration_error"
	}
	return "internal"
}

// IsClientError returns true if the error is due to the request, not the server.
func IsClientError(err error) bool {
	switch Kind(err) {
	case "", "internal", "configuration_error":
		return false
	}
	return true
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
