package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/warp/cafe-booking/generic"
)

// =============================================================================
// ADMIN SLOT BLOCKS
// =============================================================================

type BlockRequest struct {
	CafeID generic.CafeID
	Date   time.Time
	Slot   string
	Reason generic.BlockReason
}

// BlockSlot closes a slot outright. booked_by_user is reserved for bookings.
// Any existing block on the slot, including one held by bookings, makes the
// request fail with SlotUnavailable.
func (e *Engine) BlockSlot(ctx context.Context, caller Caller, req BlockRequest) (generic.SlotBlock, error) {
	if !caller.Admin {
		return generic.SlotBlock{}, fmt.Errorf("%w: admin only", generic.ErrUnauthorized)
	}
	if req.Reason == "" {
		req.Reason = generic.ReasonAdminBlocked
	}
	if !req.Reason.Valid() || req.Reason.IsBooking() {
		return generic.SlotBlock{}, generic.Invalid("reason", fmt.Sprintf("%q cannot be set by an admin", req.Reason))
	}

	cafe, err := e.store.GetCafe(ctx, req.CafeID)
	if err != nil {
		return generic.SlotBlock{}, err
	}
	slots, err := SlotsFor(cafe)
	if err != nil {
		return generic.SlotBlock{}, err
	}
	parsed, err := ParseSlot(req.Slot)
	if err != nil {
		return generic.SlotBlock{}, err
	}
	slot, ok := findSlot(slots, parsed.Label)
	if !ok {
		return generic.SlotBlock{}, generic.Invalid("slot", fmt.Sprintf("%s is not offered by cafe %s", parsed.Label, cafe.ID))
	}

	date := generic.CivilDate(req.Date)
	now := e.now()
	if slot.StartOn(date, e.loc).Before(now) {
		return generic.SlotBlock{}, fmt.Errorf("%w: %s on %s has already started",
			generic.ErrSlotUnavailable, slot.Label, generic.FormatDate(date))
	}

	block := generic.SlotBlock{
		ID:        generic.BlockID(e.newID()),
		CafeID:    cafe.ID,
		Date:      date,
		Slot:      slot.Label,
		Reason:    req.Reason,
		BlockedBy: caller.UserID,
		CreatedAt: now.UTC(),
	}
	err = e.store.WithTx(ctx, func(tx generic.Store) error {
		return tx.InsertBlock(ctx, block)
	})
	if errors.Is(err, generic.ErrDuplicateSlotBlock) {
		return generic.SlotBlock{}, fmt.Errorf("%w: %s on %s is already blocked",
			generic.ErrSlotUnavailable, slot.Label, generic.FormatDate(date))
	}
	if err != nil {
		return generic.SlotBlock{}, err
	}

	e.log.Info().
		Str("block_id", string(block.ID)).
		Str("cafe_id", string(block.CafeID)).
		Str("date", generic.FormatDate(date)).
		Str("slot", block.Slot).
		Str("reason", string(block.Reason)).
		Str("admin", string(caller.UserID)).
		Msg("slot blocked")
	e.invalidate(ctx, cafe.ID, date)
	return block, nil
}

// UnblockSlot removes an admin block. Blocks held by bookings are released
// only by cancelling those bookings.
func (e *Engine) UnblockSlot(ctx context.Context, caller Caller, id generic.BlockID) error {
	if !caller.Admin {
		return fmt.Errorf("%w: admin only", generic.ErrUnauthorized)
	}

	var removed generic.SlotBlock
	err := e.store.WithTx(ctx, func(tx generic.Store) error {
		block, err := tx.GetBlock(ctx, id)
		if err != nil {
			return err
		}
		if block.Reason.IsBooking() {
			return generic.Invalid("block", "held by bookings; cancel them instead")
		}
		removed = block
		return tx.DeleteBlock(ctx, id)
	})
	if err != nil {
		return err
	}

	e.log.Info().
		Str("block_id", string(id)).
		Str("cafe_id", string(removed.CafeID)).
		Str("slot", removed.Slot).
		Str("admin", string(caller.UserID)).
		Msg("slot unblocked")
	e.invalidate(ctx, removed.CafeID, removed.Date)
	return nil
}

// Blocks lists the blocks of a café on date.
func (e *Engine) Blocks(ctx context.Context, cafeID generic.CafeID, date time.Time) ([]generic.SlotBlock, error) {
	if _, err := e.store.GetCafe(ctx, cafeID); err != nil {
		return nil, err
	}
	blocks, err := e.store.BlocksFor(ctx, cafeID, generic.CivilDate(date))
	if err != nil {
		return nil, err
	}
	if blocks == nil {
		blocks = []generic.SlotBlock{}
	}
	return blocks, nil
}
