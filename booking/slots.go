/*
slots.go - Slot Model

PURPOSE:
  Decomposes a café's operating window into bookable hour slots.
  Pure functions of café configuration: the same hours always yield the
  same ordered sequence.

RULES:
  - Slots cover the half-open interval [opening, closing) in 1-hour steps
  - A final window shorter than an hour ends at closing time
  - closing <= opening is a ConfigurationError (no slots span midnight)
  - Labels are "HH:MM-HH:MM"; "24:00" is a valid end

EXAMPLE:
  EnumerateSlots("10:00", "13:30")
  → 10:00-11:00, 11:00-12:00, 12:00-13:00, 13:00-13:30
*/
package booking

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/warp/cafe-booking/generic"
)

// SlotLength is the fixed bookable window.
const SlotLength = 60 // minutes

type Slot struct {
	Label string
	Start generic.TimeOfDay
	End   generic.TimeOfDay
}

// StartOn returns the slot's start instant on date in loc.
func (s Slot) StartOn(date time.Time, loc *time.Location) time.Time {
	return s.Start.On(date, loc)
}

// EndOn returns the slot's end instant on date in loc.
func (s Slot) EndOn(date time.Time, loc *time.Location) time.Time {
	return s.End.On(date, loc)
}

func label(start, end generic.TimeOfDay) string {
	return start.String() + "-" + end.String()
}

// EnumerateSlots returns the ordered slots for the window [opening, closing).
func EnumerateSlots(opening, closing string) ([]Slot, error) {
	openAt, err := generic.ParseTimeOfDay(opening)
	if err != nil {
		return nil, &generic.ConfigurationError{Opening: opening, Closing: closing, Reason: err.Error()}
	}
	closeAt, err := generic.ParseTimeOfDay(closing)
	if err != nil {
		return nil, &generic.ConfigurationError{Opening: opening, Closing: closing, Reason: err.Error()}
	}
	if closeAt <= openAt {
		return nil, &generic.ConfigurationError{Opening: opening, Closing: closing, Reason: "closing time must be after opening time"}
	}

	slots := make([]Slot, 0, (int(closeAt-openAt)+SlotLength-1)/SlotLength)
	for start := openAt; start < closeAt; start += SlotLength {
		end := start + SlotLength
		if end > closeAt {
			end = closeAt
		}
		slots = append(slots, Slot{Label: label(start, end), Start: start, End: end})
	}
	return slots, nil
}

// SlotsFor enumerates a café's slots, tagging configuration errors with its id.
func SlotsFor(c generic.Cafe) ([]Slot, error) {
	slots, err := EnumerateSlots(c.OpeningTime, c.ClosingTime)
	if err != nil {
		var cfgErr *generic.ConfigurationError
		if errors.As(err, &cfgErr) {
			cfgErr.CafeID = c.ID
		}
		return nil, err
	}
	return slots, nil
}

// ParseSlot parses a "HH:MM-HH:MM" label.
func ParseSlot(s string) (Slot, error) {
	from, to, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return Slot{}, generic.Invalid("slot", fmt.Sprintf("must be HH:MM-HH:MM, got %q", s))
	}
	start, err := generic.ParseTimeOfDay(from)
	if err != nil {
		return Slot{}, generic.Invalid("slot", err.Error())
	}
	end, err := generic.ParseTimeOfDay(to)
	if err != nil {
		return Slot{}, generic.Invalid("slot", err.Error())
	}
	if end <= start {
		return Slot{}, generic.Invalid("slot", fmt.Sprintf("%q ends before it starts", s))
	}
	return Slot{Label: label(start, end), Start: start, End: end}, nil
}

// findSlot returns the enumerated slot matching label.
func findSlot(slots []Slot, label string) (Slot, bool) {
	for _, s := range slots {
		if s.Label == label {
			return s, true
		}
	}
	return Slot{}, false
}

// ValidateCafe checks a café listing before it is saved.
func ValidateCafe(c generic.Cafe) error {
	if strings.TrimSpace(string(c.ID)) == "" {
		return generic.Invalid("id", "is required")
	}
	if strings.TrimSpace(c.Name) == "" {
		return generic.Invalid("name", "is required")
	}
	if c.Capacity < 1 {
		return generic.Invalid("capacity", "must be at least 1")
	}
	if c.HourlyRate.IsNegative() {
		return generic.Invalid("hourly_rate", "must not be negative")
	}
	if _, err := EnumerateSlots(c.OpeningTime, c.ClosingTime); err != nil {
		return generic.Invalid("hours", err.Error())
	}
	return nil
}
