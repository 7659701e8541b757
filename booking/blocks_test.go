package booking_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/cafe-booking/booking"
	"github.com/warp/cafe-booking/generic"
)

func TestBlocks_AdminLifecycle(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()

		// GIVEN: An admin block with the default reason
		block, err := f.engine.BlockSlot(ctx, admin, booking.BlockRequest{CafeID: "c1", Date: tomorrow, Slot: "18:00 - 19:00"})
		require.NoError(t, err)
		assert.Equal(t, generic.ReasonAdminBlocked, block.Reason)
		assert.Equal(t, "18:00-19:00", block.Slot)
		assert.Equal(t, generic.UserID("admin"), block.BlockedBy)

		// THEN: Blocking the same slot again is refused
		_, err = f.engine.BlockSlot(ctx, admin, booking.BlockRequest{CafeID: "c1", Date: tomorrow, Slot: "18:00-19:00", Reason: generic.ReasonPrivateEvent})
		assert.ErrorIs(t, err, generic.ErrSlotUnavailable)

		blocks, err := f.engine.Blocks(ctx, "c1", tomorrow)
		require.NoError(t, err)
		require.Len(t, blocks, 1)

		// WHEN: The admin removes it
		require.NoError(t, f.engine.UnblockSlot(ctx, admin, block.ID))

		// THEN: The slot books again
		_, err = f.book(t, "u1", tomorrow, "18:00-19:00", 1)
		require.NoError(t, err)
	})
}

func TestBlocks_Rejections(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		user := booking.Caller{UserID: "u1"}

		_, err := f.engine.BlockSlot(ctx, user, booking.BlockRequest{CafeID: "c1", Date: tomorrow, Slot: "18:00-19:00"})
		assert.ErrorIs(t, err, generic.ErrUnauthorized)

		_, err = f.engine.BlockSlot(ctx, admin, booking.BlockRequest{CafeID: "c1", Date: tomorrow, Slot: "18:00-19:00", Reason: generic.ReasonBookedByUser})
		assert.ErrorIs(t, err, generic.ErrValidation)

		_, err = f.engine.BlockSlot(ctx, admin, booking.BlockRequest{CafeID: "c1", Date: tomorrow, Slot: "23:00-24:00"})
		assert.ErrorIs(t, err, generic.ErrValidation)

		_, err = f.engine.BlockSlot(ctx, admin, booking.BlockRequest{CafeID: "c1", Date: today.AddDate(0, 0, -1), Slot: "18:00-19:00"})
		assert.ErrorIs(t, err, generic.ErrSlotUnavailable)

		_, err = f.engine.BlockSlot(ctx, admin, booking.BlockRequest{CafeID: "nope", Date: tomorrow, Slot: "18:00-19:00"})
		assert.True(t, generic.IsNotFound(err))

		assert.True(t, generic.IsNotFound(f.engine.UnblockSlot(ctx, admin, "missing")))
	})
}

func TestBlocks_BookingBlockCannotBeRemovedOrOverridden(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		_, err := f.book(t, "u1", tomorrow, "12:00-13:00", 2)
		require.NoError(t, err)

		block, ok, err := f.store.FindBlock(ctx, "c1", tomorrow, "12:00-13:00")
		require.NoError(t, err)
		require.True(t, ok)

		err = f.engine.UnblockSlot(ctx, admin, block.ID)
		assert.ErrorIs(t, err, generic.ErrValidation)

		_, err = f.engine.BlockSlot(ctx, admin, booking.BlockRequest{CafeID: "c1", Date: tomorrow, Slot: "12:00-13:00", Reason: generic.ReasonMaintenance})
		assert.ErrorIs(t, err, generic.ErrSlotUnavailable)
	})
}
