package sqlite_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/cafe-booking/generic"
	"github.com/warp/cafe-booking/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var day = time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	require.NoError(t, store.SaveUser(ctx, generic.User{ID: "u1", Name: "Asha", WalletBalance: generic.MustParseAmount("500.50")}))
	require.NoError(t, store.SaveCafe(ctx, generic.Cafe{
		ID: "c1", Name: "Pixel Den", City: "Pune", HourlyRate: generic.NewAmountFromInt(100),
		Capacity: 4, OpeningTime: "10:00", ClosingTime: "24:00",
	}))
	return store
}

func booking(id string, status generic.BookingStatus) generic.Booking {
	now := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)
	return generic.Booking{
		ID: generic.BookingID(id), UserID: "u1", CafeID: "c1", Date: day,
		Slot: "14:00-15:00", Players: 2, TotalAmount: generic.MustParseAmount("100.00"),
		Status: status, PaymentStatus: generic.ChargePaid, CreatedAt: now, UpdatedAt: now,
	}
}

// =============================================================================
// ROUND TRIPS
// =============================================================================

func TestStore_BookingRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	b := booking("b1", generic.StatusConfirmed)
	require.NoError(t, store.InsertBooking(ctx, b))

	got, err := store.GetBooking(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, day, got.Date)
	assert.Equal(t, "14:00-15:00", got.Slot)
	assert.Equal(t, 2, got.Players)
	assert.True(t, got.TotalAmount.Equal(generic.NewAmountFromInt(100)))
	assert.Equal(t, b.CreatedAt, got.CreatedAt)

	_, err = store.GetBooking(ctx, "missing")
	assert.ErrorIs(t, err, generic.ErrNotFound)
}

func TestStore_CafeClosingAtMidnight(t *testing.T) {
	store := newTestStore(t)
	c, err := store.GetCafe(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "24:00", c.ClosingTime)
	assert.Equal(t, 4, c.Capacity)
}

// =============================================================================
// GUARDED WRITES
// =============================================================================

func TestStore_SetWalletBalance_Guarded(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// "500.5" and "500.50" are the same amount; the stored form is canonical.
	require.NoError(t, store.SetWalletBalance(ctx, "u1", generic.MustParseAmount("500.50"), generic.MustParseAmount("400.5")))

	err := store.SetWalletBalance(ctx, "u1", generic.MustParseAmount("500.5"), generic.ZeroAmount())
	assert.ErrorIs(t, err, generic.ErrConcurrentModification)

	err = store.SetWalletBalance(ctx, "ghost", generic.ZeroAmount(), generic.ZeroAmount())
	assert.ErrorIs(t, err, generic.ErrNotFound)

	u, err := store.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "400.5", u.WalletBalance.String())
}

func TestStore_UpdateBooking_CompareAndSwap(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.InsertBooking(ctx, booking("b1", generic.StatusConfirmed)))

	cancelled := booking("b1", generic.StatusCancelled)
	cancelled.PaymentStatus = generic.ChargeRefunded
	cancelled.RefundAmount = generic.NewAmountFromInt(100)
	require.NoError(t, store.UpdateBooking(ctx, cancelled, generic.ActiveStatuses...))

	assert.ErrorIs(t, store.UpdateBooking(ctx, cancelled, generic.ActiveStatuses...), generic.ErrConcurrentModification)
	assert.ErrorIs(t, store.UpdateBooking(ctx, booking("nope", generic.StatusCancelled), generic.StatusConfirmed), generic.ErrNotFound)

	got, err := store.GetBooking(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, generic.StatusCancelled, got.Status)
	assert.Equal(t, generic.ChargeRefunded, got.PaymentStatus)
	assert.True(t, got.RefundAmount.Equal(generic.NewAmountFromInt(100)))
}

func TestStore_InsertBlock_UniquePerSlot(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	block := generic.SlotBlock{ID: "k1", CafeID: "c1", Date: day, Slot: "14:00-15:00", Reason: generic.ReasonMaintenance, BlockedBy: "admin"}
	require.NoError(t, store.InsertBlock(ctx, block))

	dup := block
	dup.ID = "k2"
	assert.ErrorIs(t, store.InsertBlock(ctx, dup), generic.ErrDuplicateSlotBlock)

	blocks, err := store.BlocksFor(ctx, "c1", day)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, generic.ReasonMaintenance, blocks[0].Reason)
	assert.Equal(t, generic.UserID("admin"), blocks[0].BlockedBy)
}

func TestStore_DuplicateReview(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.InsertBooking(ctx, booking("b1", generic.StatusCompleted)))

	r := generic.Review{ID: "r1", UserID: "u1", CafeID: "c1", BookingID: "b1", Rating: 4, Comment: "good pcs"}
	require.NoError(t, store.InsertReview(ctx, r))
	r.ID = "r2"
	assert.ErrorIs(t, store.InsertReview(ctx, r), generic.ErrDuplicateReview)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestStore_WithTx_Rollback(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(tx generic.Store) error {
		require.NoError(t, tx.InsertBooking(ctx, booking("b1", generic.StatusConfirmed)))
		require.NoError(t, tx.InsertPayment(ctx, generic.Payment{
			ID: "p1", UserID: "u1", BookingID: "b1", Amount: generic.NewAmountFromInt(100),
			Type: generic.PaymentBooking, Method: generic.MethodWallet, Status: generic.PaymentCompleted,
		}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = store.GetBooking(ctx, "b1")
	assert.ErrorIs(t, err, generic.ErrNotFound)
	payments, err := store.PaymentsByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, payments)
}

func TestStore_WithTx_SerializesBlockRace(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
		dups int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := store.WithTx(ctx, func(tx generic.Store) error {
				return tx.InsertBlock(ctx, generic.SlotBlock{
					ID: generic.BlockID(string(rune('a' + i))), CafeID: "c1", Date: day,
					Slot: "18:00-19:00", Reason: generic.ReasonBookedByUser,
				})
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, generic.ErrDuplicateSlotBlock):
				dups++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, 7, dups)
}
