/*
ledger.go - Wallet ledger

PURPOSE:
  The Ledger is the only code allowed to change a user's wallet balance.
  Every debit and credit writes the new balance AND exactly one Payment
  record with matching amount and direction, inside the caller's atomic unit.

CRITICAL INVARIANTS:
  1. PAIRED: balance change <=> one Payment (same amount, same direction)
  2. NON-NEGATIVE: a debit never takes the balance below zero
  3. LATE CHECK: the balance is validated at the moment of mutation, in the
     same unit as the write, never from an earlier read
  4. REPLAYABLE: balance == initial + sum(credits) - sum(debits)

USAGE:
  err := store.WithTx(ctx, func(tx generic.Store) error {
      payment, balance, err := ledger.Debit(ctx, tx, userID, price, generic.Cause{
          Type:      generic.PaymentBooking,
          BookingID: bookingID,
      })
      ...
  })

SEE ALSO:
  - store.go: SetWalletBalance guard
  - booking/engine.go: Debit on create, Credit on refund
*/
package generic

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Cause links a wallet movement to what triggered it.
type Cause struct {
	Type      PaymentType
	BookingID BookingID
	Method    PaymentMethod
}

type Ledger struct {
	clock Clock
	newID func() string
}

func NewLedger(clock Clock) *Ledger {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Ledger{clock: clock, newID: uuid.NewString}
}

// Debit takes amount out of the wallet. Fails with *InsufficientFundsError
// without writing anything when the balance cannot cover it.
func (l *Ledger) Debit(ctx context.Context, s Store, userID UserID, amount Amount, cause Cause) (Payment, Amount, error) {
	if !cause.Type.IsDebit() {
		return Payment{}, Amount{}, fmt.Errorf("debit with %s: %w", cause.Type, ErrValidation)
	}
	return l.apply(ctx, s, userID, amount, cause)
}

// Credit adds amount to the wallet.
func (l *Ledger) Credit(ctx context.Context, s Store, userID UserID, amount Amount, cause Cause) (Payment, Amount, error) {
	if cause.Type.IsDebit() {
		return Payment{}, Amount{}, fmt.Errorf("credit with %s: %w", cause.Type, ErrValidation)
	}
	return l.apply(ctx, s, userID, amount, cause)
}

func (l *Ledger) apply(ctx context.Context, s Store, userID UserID, amount Amount, cause Cause) (Payment, Amount, error) {
	if amount.IsNegative() {
		return Payment{}, Amount{}, Invalid("amount", "must not be negative")
	}

	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return Payment{}, Amount{}, err
	}

	p := Payment{
		ID:        PaymentID(l.newID()),
		UserID:    userID,
		BookingID: cause.BookingID,
		Amount:    amount,
		Type:      cause.Type,
		Method:    cause.Method,
		Status:    PaymentCompleted,
		CreatedAt: l.clock.Now().UTC(),
	}
	if p.Method == "" {
		p.Method = MethodWallet
	}

	next := user.WalletBalance.Add(p.Signed())
	if next.IsNegative() {
		return Payment{}, Amount{}, &InsufficientFundsError{
			UserID:    userID,
			Available: user.WalletBalance,
			Requested: amount,
		}
	}

	if err := s.SetWalletBalance(ctx, userID, user.WalletBalance, next); err != nil {
		return Payment{}, Amount{}, fmt.Errorf("set wallet balance: %w", err)
	}
	if err := s.InsertPayment(ctx, p); err != nil {
		return Payment{}, Amount{}, fmt.Errorf("record payment: %w", err)
	}
	return p, next, nil
}

// ReplayBalance recomputes a balance from its payment history.
// Pending and failed payments never moved money and are skipped.
func ReplayBalance(initial Amount, payments []Payment) Amount {
	balance := initial
	for _, p := range payments {
		if p.Status != PaymentCompleted {
			continue
		}
		balance = balance.Add(p.Signed())
	}
	return balance
}
