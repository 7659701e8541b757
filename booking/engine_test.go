package booking_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/cafe-booking/booking"
	"github.com/warp/cafe-booking/events"
	"github.com/warp/cafe-booking/generic"
	"github.com/warp/cafe-booking/generic/store"
	"github.com/warp/cafe-booking/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var (
	// 08:00 on March 10th; "today" for every test unless the clock moves.
	start    = time.Date(2026, time.March, 10, 8, 0, 0, 0, time.UTC)
	today    = time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)
	tomorrow = today.AddDate(0, 0, 1)

	admin = booking.Caller{UserID: "admin", Admin: true}
)

type fixture struct {
	engine *booking.Engine
	store  generic.TxStore
	clock  *generic.ManualClock
	events *events.Recorder
}

func backends() map[string]func(t *testing.T) generic.TxStore {
	return map[string]func(t *testing.T) generic.TxStore{
		"memory": func(t *testing.T) generic.TxStore { return store.NewTxMemory() },
		"sqlite": func(t *testing.T) generic.TxStore {
			s, err := sqlite.New(":memory:")
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		},
	}
}

// newFixture seeds café c1 (capacity 5, rate 100, 10:00-22:00) and users
// u1..u9 with 1000 each.
func newFixture(t *testing.T, s generic.TxStore) *fixture {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, s.SaveCafe(ctx, generic.Cafe{
		ID: "c1", Name: "Pixel Den", City: "Pune", HourlyRate: generic.NewAmountFromInt(100),
		Capacity: 5, OpeningTime: "10:00", ClosingTime: "22:00",
	}))
	require.NoError(t, s.SaveUser(ctx, generic.User{ID: "admin", Name: "Admin", Role: generic.RoleAdmin, WalletBalance: generic.ZeroAmount()}))
	for i := 1; i <= 9; i++ {
		require.NoError(t, s.SaveUser(ctx, generic.User{
			ID: generic.UserID(fmt.Sprintf("u%d", i)), Name: fmt.Sprintf("Player %d", i),
			Role: generic.RoleUser, WalletBalance: generic.NewAmountFromInt(1000),
		}))
	}

	clock := generic.NewManualClock(start)
	rec := &events.Recorder{}
	return &fixture{
		engine: booking.NewEngine(s, booking.WithClock(clock), booking.WithPublisher(rec)),
		store:  s,
		clock:  clock,
		events: rec,
	}
}

func (f *fixture) book(t *testing.T, user string, date time.Time, slot string, players int) (booking.CreateResult, error) {
	t.Helper()
	return f.engine.CreateBooking(context.Background(), booking.CreateRequest{
		UserID: generic.UserID(user), CafeID: "c1", Date: date, Slot: slot, Players: players,
	})
}

func (f *fixture) balance(t *testing.T, user string) generic.Amount {
	t.Helper()
	u, err := f.store.GetUser(context.Background(), generic.UserID(user))
	require.NoError(t, err)
	return u.WalletBalance
}

func forEachBackend(t *testing.T, fn func(t *testing.T, f *fixture)) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			fn(t, newFixture(t, open(t)))
		})
	}
}

func amount(n int64) generic.Amount { return generic.NewAmountFromInt(n) }

// =============================================================================
// END-TO-END SCENARIO
// =============================================================================

func TestEngine_BookCancelRebook(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()

		// GIVEN: u1 books 3 players on tomorrow's 10:00 slot
		first, err := f.book(t, "u1", tomorrow, "10:00-11:00", 3)
		require.NoError(t, err)

		// THEN: Confirmed, billed per booking, wallet debited, block created
		assert.Equal(t, generic.StatusConfirmed, first.Booking.Status)
		assert.Equal(t, generic.ChargePaid, first.Booking.PaymentStatus)
		assert.True(t, first.Booking.TotalAmount.Equal(amount(100)))
		assert.True(t, first.WalletBalance.Equal(amount(900)))
		assert.Equal(t, generic.PaymentBooking, first.Payment.Type)

		block, ok, err := f.store.FindBlock(ctx, "c1", tomorrow, "10:00-11:00")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, generic.ReasonBookedByUser, block.Reason)
		assert.Equal(t, first.Booking.ID, block.BookingID)

		// WHEN: u2 asks for 3 more players (3+3 > 5)
		_, err = f.book(t, "u2", tomorrow, "10:00-11:00", 3)

		// THEN: CapacityExceeded with the numbers
		var capErr *generic.CapacityExceededError
		require.ErrorAs(t, err, &capErr)
		assert.Equal(t, 3, capErr.Occupied)
		assert.Equal(t, 2, capErr.Remaining())

		// WHEN: u1 cancels well ahead of the slot
		res, err := f.engine.CancelBooking(ctx, booking.Caller{UserID: "u1"}, first.Booking.ID, "")
		require.NoError(t, err)

		// THEN: Full refund, block released
		assert.Equal(t, booking.TierFull, res.Tier)
		assert.True(t, res.RefundAmount.Equal(amount(100)))
		assert.True(t, res.CancellationCharge.IsZero())
		assert.True(t, res.WalletBalance.Equal(amount(1000)))
		assert.Equal(t, "Full refund.", res.PolicyDescription)
		assert.Equal(t, generic.ChargeRefunded, res.Booking.PaymentStatus)
		assert.Equal(t, "User cancelled", res.Booking.CancellationReason)

		_, ok, err = f.store.FindBlock(ctx, "c1", tomorrow, "10:00-11:00")
		require.NoError(t, err)
		assert.False(t, ok)

		// AND: u2's request now succeeds
		_, err = f.book(t, "u2", tomorrow, "10:00-11:00", 3)
		require.NoError(t, err)

		assert.Equal(t, []string{events.BookingCreated, events.BookingCancelled, events.BookingCreated}, f.events.Types())
	})
}

// =============================================================================
// PRECONDITIONS
// =============================================================================

func TestEngine_CreatePreconditions(t *testing.T) {
	f := newFixture(t, store.NewTxMemory())

	cases := []struct {
		name    string
		user    string
		cafe    generic.CafeID
		date    time.Time
		slot    string
		players int
		want    error
	}{
		{"unknown cafe", "u1", "nope", tomorrow, "10:00-11:00", 1, generic.ErrNotFound},
		{"malformed slot", "u1", "c1", tomorrow, "ten", 1, generic.ErrValidation},
		{"past date", "u1", "c1", today.AddDate(0, 0, -1), "10:00-11:00", 1, generic.ErrSlotUnavailable},
		{"started today", "u1", "c1", today, "07:00-08:00", 1, generic.ErrSlotUnavailable},
		{"past beats players", "u1", "c1", today.AddDate(0, 0, -1), "10:00-11:00", 0, generic.ErrSlotUnavailable},
		{"zero players", "u1", "c1", tomorrow, "10:00-11:00", 0, generic.ErrValidation},
		{"slot not offered", "u1", "c1", tomorrow, "23:00-24:00", 1, generic.ErrValidation},
		{"unknown user", "ghost", "c1", tomorrow, "10:00-11:00", 1, generic.ErrNotFound},
		{"more players than seats", "u1", "c1", tomorrow, "10:00-11:00", 6, generic.ErrCapacityExceeded},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.engine.CreateBooking(context.Background(), booking.CreateRequest{
				UserID: generic.UserID(tc.user), CafeID: tc.cafe, Date: tc.date, Slot: tc.slot, Players: tc.players,
			})
			assert.ErrorIs(t, err, tc.want)
		})
	}

	// Nothing was written by any failed attempt.
	assert.True(t, f.balance(t, "u1").Equal(amount(1000)))
	assert.Empty(t, f.events.Events())
}

func TestEngine_InsufficientFunds_NoMutation(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		require.NoError(t, f.store.SaveUser(ctx, generic.User{ID: "poor", Name: "Poor", WalletBalance: amount(50)}))

		_, err := f.book(t, "poor", tomorrow, "12:00-13:00", 1)

		var fundsErr *generic.InsufficientFundsError
		require.ErrorAs(t, err, &fundsErr)
		assert.Equal(t, "50", fundsErr.Shortfall().String())

		assert.True(t, f.balance(t, "poor").Equal(amount(50)))
		mine, err := f.store.BookingsByUser(ctx, "poor")
		require.NoError(t, err)
		assert.Empty(t, mine)
		payments, err := f.store.PaymentsByUser(ctx, "poor")
		require.NoError(t, err)
		assert.Empty(t, payments)
		_, ok, err := f.store.FindBlock(ctx, "c1", tomorrow, "12:00-13:00")
		require.NoError(t, err)
		assert.False(t, ok, "no slot block left behind")
	})
}

func TestEngine_AdminBlockIsAbsolute(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()

		_, err := f.engine.BlockSlot(ctx, admin, booking.BlockRequest{
			CafeID: "c1", Date: tomorrow, Slot: "15:00-16:00", Reason: generic.ReasonMaintenance,
		})
		require.NoError(t, err)

		_, err = f.book(t, "u1", tomorrow, "15:00-16:00", 1)
		assert.ErrorIs(t, err, generic.ErrCapacityExceeded)
		assert.ErrorIs(t, err, generic.ErrSlotUnavailable)
		assert.Equal(t, "slot_unavailable", generic.Kind(err))

		rows, err := f.engine.Availability(ctx, "c1", tomorrow)
		require.NoError(t, err)
		for _, row := range rows {
			if row.Slot == "15:00-16:00" {
				assert.True(t, row.IsBlocked)
				assert.False(t, row.IsAvailable)
			}
		}
	})
}

// =============================================================================
// CANCELLATION
// =============================================================================

func TestEngine_CancelRefundTiers(t *testing.T) {
	cases := []struct {
		at     time.Time
		tier   booking.RefundTier
		refund int64
	}{
		{time.Date(2026, time.March, 11, 12, 0, 0, 0, time.UTC), booking.TierFull, 100},
		{time.Date(2026, time.March, 11, 12, 1, 0, 0, time.UTC), booking.TierPartial, 50},
		{time.Date(2026, time.March, 11, 13, 1, 0, 0, time.UTC), booking.TierNone, 0},
	}
	for _, tc := range cases {
		t.Run(string(tc.tier), func(t *testing.T) {
			f := newFixture(t, store.NewTxMemory())
			created, err := f.book(t, "u1", tomorrow, "14:00-15:00", 2)
			require.NoError(t, err)

			f.clock.Set(tc.at)
			res, err := f.engine.CancelBooking(context.Background(), booking.Caller{UserID: "u1"}, created.Booking.ID, "plans changed")
			require.NoError(t, err)

			assert.Equal(t, tc.tier, res.Tier)
			assert.True(t, res.RefundAmount.Equal(amount(tc.refund)))
			assert.True(t, res.WalletBalance.Equal(amount(900+tc.refund)))
			if tc.refund == 0 {
				assert.Nil(t, res.Refund)
				assert.Equal(t, generic.ChargePaid, res.Booking.PaymentStatus, "unchanged without a refund")
			} else {
				require.NotNil(t, res.Refund)
				assert.Equal(t, generic.PaymentRefund, res.Refund.Type)
			}
		})
	}
}

func TestEngine_CancelAuthorization(t *testing.T) {
	f := newFixture(t, store.NewTxMemory())
	ctx := context.Background()
	created, err := f.book(t, "u1", tomorrow, "10:00-11:00", 1)
	require.NoError(t, err)

	_, err = f.engine.CancelBooking(ctx, booking.Caller{UserID: "u2"}, created.Booking.ID, "")
	assert.ErrorIs(t, err, generic.ErrUnauthorized)

	_, err = f.engine.CancelBooking(ctx, booking.Caller{UserID: "u1"}, "missing", "")
	assert.ErrorIs(t, err, generic.ErrNotFound)

	// Admins bypass ownership; the refund goes to the owner.
	res, err := f.engine.CancelBooking(ctx, admin, created.Booking.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "Cancelled by admin", res.Booking.CancellationReason)
	assert.True(t, f.balance(t, "u1").Equal(amount(1000)))
}

func TestEngine_DoubleCancel_SingleRefund(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		created, err := f.book(t, "u1", tomorrow, "10:00-11:00", 1)
		require.NoError(t, err)

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			ok        int
			finalized int
		)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := f.engine.CancelBooking(ctx, booking.Caller{UserID: "u1"}, created.Booking.ID, "")
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					ok++
				case errors.Is(err, generic.ErrAlreadyFinalized):
					finalized++
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, ok)
		assert.Equal(t, 7, finalized)

		// And once more, sequentially.
		_, err = f.engine.CancelBooking(ctx, booking.Caller{UserID: "u1"}, created.Booking.ID, "")
		assert.ErrorIs(t, err, generic.ErrAlreadyFinalized)

		payments, err := f.store.PaymentsByUser(ctx, "u1")
		require.NoError(t, err)
		refunds := 0
		for _, p := range payments {
			if p.Type == generic.PaymentRefund {
				refunds++
			}
		}
		assert.Equal(t, 1, refunds)
		assert.True(t, f.balance(t, "u1").Equal(amount(1000)))
	})
}

func TestEngine_SharedBlockRelinksOnCancel(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		first, err := f.book(t, "u1", tomorrow, "16:00-17:00", 2)
		require.NoError(t, err)
		second, err := f.book(t, "u2", tomorrow, "16:00-17:00", 2)
		require.NoError(t, err)

		blocks, err := f.store.BlocksFor(ctx, "c1", tomorrow)
		require.NoError(t, err)
		require.Len(t, blocks, 1, "one block per slot identity")

		_, err = f.engine.CancelBooking(ctx, booking.Caller{UserID: "u1"}, first.Booking.ID, "")
		require.NoError(t, err)

		block, ok, err := f.store.FindBlock(ctx, "c1", tomorrow, "16:00-17:00")
		require.NoError(t, err)
		require.True(t, ok, "still held by the second booking")
		assert.Equal(t, second.Booking.ID, block.BookingID)

		_, err = f.engine.CancelBooking(ctx, booking.Caller{UserID: "u2"}, second.Booking.ID, "")
		require.NoError(t, err)
		_, ok, err = f.store.FindBlock(ctx, "c1", tomorrow, "16:00-17:00")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

// =============================================================================
// CONCURRENCY
// =============================================================================

func TestEngine_ConcurrentBookings_NeverOverbook(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()

		// 9 users ask for 2 seats each on a 5-seat slot: exactly 2 fit.
		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			won      int
			capacity int
			other    []error
		)
		for i := 1; i <= 9; i++ {
			wg.Add(1)
			go func(user string) {
				defer wg.Done()
				_, err := f.book(t, user, tomorrow, "18:00-19:00", 2)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					won++
				case errors.Is(err, generic.ErrCapacityExceeded):
					capacity++
				default:
					other = append(other, err)
				}
			}(fmt.Sprintf("u%d", i))
		}
		wg.Wait()

		assert.Empty(t, other)
		assert.Equal(t, 2, won)
		assert.Equal(t, 7, capacity)

		rows, err := f.engine.Availability(ctx, "c1", tomorrow)
		require.NoError(t, err)
		for _, row := range rows {
			if row.Slot == "18:00-19:00" {
				assert.Equal(t, 4, row.OccupiedCount)
				assert.Equal(t, 1, row.RemainingCapacity)
			}
		}
	})
}

func TestEngine_ConcurrentWalletDebits(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		require.NoError(t, f.store.SaveUser(ctx, generic.User{ID: "solo", Name: "Solo", WalletBalance: amount(300)}))

		// 8 one-seat bookings on different slots, funds for 3.
		slots := []string{"10:00-11:00", "11:00-12:00", "12:00-13:00", "13:00-14:00", "14:00-15:00", "15:00-16:00", "16:00-17:00", "17:00-18:00"}
		var (
			wg    sync.WaitGroup
			mu    sync.Mutex
			won   int
			funds int
		)
		for _, slot := range slots {
			wg.Add(1)
			go func(slot string) {
				defer wg.Done()
				_, err := f.book(t, "solo", tomorrow, slot, 1)
				mu.Lock()
				defer mu.Unlock()
				if err == nil {
					won++
				} else if errors.Is(err, generic.ErrInsufficientFunds) {
					funds++
				}
			}(slot)
		}
		wg.Wait()

		assert.Equal(t, 3, won)
		assert.Equal(t, 5, funds)
		assert.True(t, f.balance(t, "solo").IsZero())
	})
}

// =============================================================================
// WALLET INVARIANT
// =============================================================================

func TestEngine_WalletReplaysFromPayments(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		u1 := booking.Caller{UserID: "u1"}

		a, err := f.book(t, "u1", tomorrow, "10:00-11:00", 1)
		require.NoError(t, err)
		_, err = f.book(t, "u1", tomorrow, "11:00-12:00", 1)
		require.NoError(t, err)
		_, _, err = f.engine.Recharge(ctx, u1, "u1", generic.MustParseAmount("49.50"), generic.MethodUPI)
		require.NoError(t, err)

		f.clock.Set(time.Date(2026, time.March, 11, 8, 30, 0, 0, time.UTC)) // 1h30 before 10:00
		_, err = f.engine.CancelBooking(ctx, u1, a.Booking.ID, "")
		require.NoError(t, err)

		payments, err := f.engine.Payments(ctx, u1, "u1")
		require.NoError(t, err)
		require.Len(t, payments, 4)
		assert.Equal(t, generic.PaymentRefund, payments[0].Type, "newest first")

		replayed := generic.ReplayBalance(amount(1000), payments)
		assert.True(t, replayed.Equal(f.balance(t, "u1")), "replayed %s, stored %s", replayed, f.balance(t, "u1"))
		assert.Equal(t, "899.5", f.balance(t, "u1").String()) // 1000 - 100 - 100 + 49.5 + 50
	})
}

func TestEngine_RechargeValidation(t *testing.T) {
	f := newFixture(t, store.NewTxMemory())
	ctx := context.Background()
	u1 := booking.Caller{UserID: "u1"}

	_, _, err := f.engine.Recharge(ctx, u1, "u1", generic.ZeroAmount(), generic.MethodCard)
	assert.ErrorIs(t, err, generic.ErrValidation)
	_, _, err = f.engine.Recharge(ctx, u1, "u1", amount(10), "cheque")
	assert.ErrorIs(t, err, generic.ErrValidation)
	_, _, err = f.engine.Recharge(ctx, u1, "u2", amount(10), generic.MethodCard)
	assert.ErrorIs(t, err, generic.ErrUnauthorized)

	_, balance, err := f.engine.Recharge(ctx, u1, "u1", amount(10), "")
	require.NoError(t, err)
	assert.True(t, balance.Equal(amount(1010)))
	assert.Contains(t, f.events.Types(), events.WalletRecharged)
}

// =============================================================================
// AVAILABILITY
// =============================================================================

func TestEngine_Availability(t *testing.T) {
	f := newFixture(t, store.NewTxMemory())
	ctx := context.Background()

	// Past date: empty, not an error.
	rows, err := f.engine.Availability(ctx, "c1", today.AddDate(0, 0, -1))
	require.NoError(t, err)
	assert.Empty(t, rows)

	// Today at 13:20: slots from 14:00.
	f.clock.Set(time.Date(2026, time.March, 10, 13, 20, 0, 0, time.UTC))
	rows, err = f.engine.Availability(ctx, "c1", today)
	require.NoError(t, err)
	require.NotEmpty(t, rows)
	assert.Equal(t, "14:00-15:00", rows[0].Slot)
	assert.Len(t, rows, 8)

	// Tomorrow: the whole day.
	rows, err = f.engine.Availability(ctx, "c1", tomorrow)
	require.NoError(t, err)
	assert.Len(t, rows, 12)

	_, err = f.engine.Availability(ctx, "nope", tomorrow)
	assert.ErrorIs(t, err, generic.ErrNotFound)
}

func TestEngine_AvailabilityBadHours(t *testing.T) {
	f := newFixture(t, store.NewTxMemory())
	ctx := context.Background()
	require.NoError(t, f.store.SaveCafe(ctx, generic.Cafe{ID: "broken", Name: "Broken", Capacity: 1, OpeningTime: "22:00", ClosingTime: "10:00"}))

	_, err := f.engine.Availability(ctx, "broken", tomorrow)
	assert.ErrorIs(t, err, generic.ErrConfiguration)
}

// =============================================================================
// LISTINGS AND LIFECYCLE
// =============================================================================

func TestEngine_Listings(t *testing.T) {
	f := newFixture(t, store.NewTxMemory())
	ctx := context.Background()
	_, err := f.book(t, "u1", tomorrow, "10:00-11:00", 1)
	require.NoError(t, err)
	second, err := f.book(t, "u1", tomorrow, "12:00-13:00", 1)
	require.NoError(t, err)

	mine, err := f.engine.ListUserBookings(ctx, booking.Caller{UserID: "u1"}, "u1")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, second.Booking.ID, mine[0].ID)

	_, err = f.engine.ListUserBookings(ctx, booking.Caller{UserID: "u2"}, "u1")
	assert.ErrorIs(t, err, generic.ErrUnauthorized)

	_, err = f.engine.ListCafeBookings(ctx, booking.Caller{UserID: "u1"}, "c1")
	assert.ErrorIs(t, err, generic.ErrUnauthorized)
	all, err := f.engine.ListCafeBookings(ctx, admin, "c1")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = f.engine.GetBooking(ctx, booking.Caller{UserID: "u2"}, second.Booking.ID)
	assert.ErrorIs(t, err, generic.ErrUnauthorized)
}

func TestEngine_CompleteElapsed(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		early, err := f.book(t, "u1", today, "10:00-11:00", 1)
		require.NoError(t, err)
		late, err := f.book(t, "u2", today, "20:00-21:00", 1)
		require.NoError(t, err)

		f.clock.Set(time.Date(2026, time.March, 10, 11, 0, 0, 0, time.UTC))
		n, err := f.engine.CompleteElapsed(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		got, _ := f.store.GetBooking(ctx, early.Booking.ID)
		assert.Equal(t, generic.StatusCompleted, got.Status)
		got, _ = f.store.GetBooking(ctx, late.Booking.ID)
		assert.Equal(t, generic.StatusConfirmed, got.Status)

		_, err = f.engine.CancelBooking(ctx, booking.Caller{UserID: "u1"}, early.Booking.ID, "")
		assert.ErrorIs(t, err, generic.ErrAlreadyFinalized)
		assert.Contains(t, f.events.Types(), events.BookingCompleted)
	})
}

func TestEngine_UpdateStatus(t *testing.T) {
	f := newFixture(t, store.NewTxMemory())
	ctx := context.Background()
	created, err := f.book(t, "u1", tomorrow, "10:00-11:00", 1)
	require.NoError(t, err)
	id := created.Booking.ID

	_, err = f.engine.UpdateStatus(ctx, booking.Caller{UserID: "u1"}, id, generic.StatusCompleted)
	assert.ErrorIs(t, err, generic.ErrUnauthorized)

	_, err = f.engine.UpdateStatus(ctx, admin, id, generic.StatusCancelled)
	assert.ErrorIs(t, err, generic.ErrValidation, "refunds go through cancel")

	_, err = f.engine.UpdateStatus(ctx, admin, id, generic.StatusPending)
	assert.ErrorIs(t, err, generic.ErrValidation, "no backwards moves")

	f.clock.Set(time.Date(2026, time.March, 11, 11, 0, 0, 0, time.UTC))
	updated, err := f.engine.UpdateStatus(ctx, admin, id, generic.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, generic.StatusCompleted, updated.Status)

	_, err = f.engine.UpdateStatus(ctx, admin, id, generic.StatusCompleted)
	assert.ErrorIs(t, err, generic.ErrAlreadyFinalized)
}

func TestEngine_UpdateStatusKeepsSeatsUntilSlotEnds(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()

		// GIVEN: u1 fills all 5 seats of tomorrow's 10:00 slot
		full, err := f.book(t, "u1", tomorrow, "10:00-11:00", 5)
		require.NoError(t, err)

		// WHEN: An admin tries to complete it before the slot ends
		f.clock.Set(time.Date(2026, time.March, 11, 10, 30, 0, 0, time.UTC))
		_, err = f.engine.UpdateStatus(ctx, admin, full.Booking.ID, generic.StatusCompleted)

		// THEN: Rejected, and the seats stay held
		assert.ErrorIs(t, err, generic.ErrValidation)
		got, err := f.store.GetBooking(ctx, full.Booking.ID)
		require.NoError(t, err)
		assert.Equal(t, generic.StatusConfirmed, got.Status)

		f.clock.Set(start)
		_, err = f.book(t, "u2", tomorrow, "10:00-11:00", 5)
		assert.ErrorIs(t, err, generic.ErrCapacityExceeded)
		assert.True(t, f.balance(t, "u2").Equal(amount(1000)))
	})
}

// outsideReads records availability reads made on the store directly rather
// than through a WithTx unit.
type outsideReads struct {
	generic.TxStore
	calls []string
}

func (s *outsideReads) ActiveBookings(ctx context.Context, cafeID generic.CafeID, date time.Time) ([]generic.Booking, error) {
	s.calls = append(s.calls, "ActiveBookings")
	return s.TxStore.ActiveBookings(ctx, cafeID, date)
}

func (s *outsideReads) BlocksFor(ctx context.Context, cafeID generic.CafeID, date time.Time) ([]generic.SlotBlock, error) {
	s.calls = append(s.calls, "BlocksFor")
	return s.TxStore.BlocksFor(ctx, cafeID, date)
}

func TestEngine_AvailabilityReadsOneSnapshot(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			// GIVEN: A booked slot and an admin block on tomorrow
			wrapped := &outsideReads{TxStore: open(t)}
			f := newFixture(t, wrapped)
			ctx := context.Background()
			_, err := f.book(t, "u1", tomorrow, "10:00-11:00", 2)
			require.NoError(t, err)
			_, err = f.engine.BlockSlot(ctx, admin, booking.BlockRequest{CafeID: "c1", Date: tomorrow, Slot: "11:00-12:00", Reason: generic.ReasonMaintenance})
			require.NoError(t, err)
			wrapped.calls = nil

			// WHEN: Availability is resolved
			rows, err := f.engine.Availability(ctx, "c1", tomorrow)
			require.NoError(t, err)

			// THEN: Bookings and blocks both came from inside one unit
			assert.Empty(t, wrapped.calls)
			assert.Equal(t, 2, rows[0].OccupiedCount)
			assert.True(t, rows[1].IsBlocked)
			assert.Equal(t, 5, rows[1].RemainingCapacity)
			assert.False(t, rows[1].IsAvailable)
		})
	}
}
