package booking

import (
	"context"
	"time"

	"github.com/warp/cafe-booking/generic"
)

// =============================================================================
// AVAILABILITY RESOLVER
// =============================================================================

// SlotAvailability is one row of a café's availability for a date.
type SlotAvailability struct {
	Slot              string              `json:"slot"`
	IsBlocked         bool                `json:"is_blocked"`
	BlockReason       generic.BlockReason `json:"block_reason,omitempty"`
	OccupiedCount     int                 `json:"occupied_count"`
	RemainingCapacity int                 `json:"remaining_capacity"`
	IsAvailable       bool                `json:"is_available"`
}

// AvailabilityCache stores resolved availability keyed by (café, date, cutoff).
// cutoff is the earliest slot start included, 0 for dates after today.
//
// Every Invalidate bumps the generation of (café, date). Callers read the
// generation before reading the store and pass it to Set, which stores the
// rows only while the generation is unchanged and reports whether it did.
type AvailabilityCache interface {
	Get(ctx context.Context, cafeID generic.CafeID, date time.Time, cutoff generic.TimeOfDay) ([]SlotAvailability, bool, error)
	Generation(ctx context.Context, cafeID generic.CafeID, date time.Time) (int64, error)
	Set(ctx context.Context, cafeID generic.CafeID, date time.Time, cutoff generic.TimeOfDay, gen int64, rows []SlotAvailability) (bool, error)
	Invalidate(ctx context.Context, cafeID generic.CafeID, date time.Time) error
}

// Resolve computes availability for slots from the active bookings and blocks
// of one (café, date). It does not filter by time; see Cutoff.
//
// Only non-booking blocks mark a slot blocked. A booked_by_user block shows
// its reason but leaves the remaining seats bookable. RemainingCapacity counts
// seats only; a blocked slot reports its free seats but is not available.
func Resolve(capacity int, slots []Slot, bookings []generic.Booking, blocks []generic.SlotBlock) []SlotAvailability {
	occupied := make(map[string]int)
	for _, b := range bookings {
		if b.Status.IsActive() {
			occupied[b.Slot] += b.Players
		}
	}
	reasons := make(map[string]generic.BlockReason, len(blocks))
	for _, bl := range blocks {
		reasons[bl.Slot] = bl.Reason
	}

	out := make([]SlotAvailability, 0, len(slots))
	for _, s := range slots {
		reason, hasBlock := reasons[s.Label]
		blocked := hasBlock && !reason.IsBooking()

		remaining := capacity - occupied[s.Label]
		if remaining < 0 {
			remaining = 0
		}
		out = append(out, SlotAvailability{
			Slot:              s.Label,
			IsBlocked:         blocked,
			BlockReason:       reason,
			OccupiedCount:     occupied[s.Label],
			RemainingCapacity: remaining,
			IsAvailable:       !blocked && remaining > 0,
		})
	}
	return out
}

// Cutoff decides which slots of date are still open at now.
// past is true when date is before today; then nothing is bookable.
// For today, cutoff is now rounded up to the next full hour.
func Cutoff(date, now time.Time, loc *time.Location) (cutoff generic.TimeOfDay, past bool) {
	local := now.In(loc)
	today := generic.CivilDate(local)
	day := generic.CivilDate(date)

	switch {
	case day.Before(today):
		return 0, true
	case day.After(today):
		return 0, false
	}

	minutes := local.Hour()*60 + local.Minute()
	if local.Minute() > 0 || local.Second() > 0 || local.Nanosecond() > 0 {
		minutes = (local.Hour() + 1) * 60
	}
	return generic.TimeOfDay(minutes), false
}

// openSlots drops slots starting before cutoff.
func openSlots(slots []Slot, cutoff generic.TimeOfDay) []Slot {
	out := make([]Slot, 0, len(slots))
	for _, s := range slots {
		if s.Start >= cutoff {
			out = append(out, s)
		}
	}
	return out
}
