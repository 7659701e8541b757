package generic_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/warp/cafe-booking/generic"
)

func TestKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"not found", generic.NotFound("booking", "b1"), "not_found"},
		{"wrapped not found", fmt.Errorf("load: %w", generic.NotFound("cafe", "c1")), "not_found"},
		{"validation", generic.Invalid("players", "must be at least 1"), "validation_error"},
		{"unauthorized", fmt.Errorf("%w: admin only", generic.ErrUnauthorized), "unauthorized"},
		{"finalized", &generic.AlreadyFinalizedError{BookingID: "b1", Status: generic.StatusCompleted}, "already_finalized"},
		{"capacity", &generic.CapacityExceededError{Capacity: 5, Occupied: 4, Requested: 2}, "capacity_exceeded"},
		{"blocked slot", &generic.SlotBlockedError{Reason: generic.ReasonPrivateEvent}, "slot_unavailable"},
		{"past slot", fmt.Errorf("%w: slot has started", generic.ErrSlotUnavailable), "slot_unavailable"},
		{"funds", &generic.InsufficientFundsError{Available: generic.NewAmountFromInt(10), Requested: generic.NewAmountFromInt(100)}, "insufficient_funds"},
		{"configuration", &generic.ConfigurationError{CafeID: "c1", Opening: "22:00", Closing: "10:00", Reason: "closing before opening"}, "configuration_error"},
		{"other", errors.New("boom"), "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, generic.Kind(tt.err))
		})
	}
}

func TestSlotBlockedError_MatchesBothKinds(t *testing.T) {
	err := fmt.Errorf("create: %w", &generic.SlotBlockedError{Slot: "18:00-19:00", Reason: generic.ReasonMaintenance})

	assert.ErrorIs(t, err, generic.ErrCapacityExceeded)
	assert.ErrorIs(t, err, generic.ErrSlotUnavailable)
	assert.NotErrorIs(t, err, generic.ErrInsufficientFunds)
}

func TestCapacityExceededError_Remaining(t *testing.T) {
	assert.Equal(t, 1, (&generic.CapacityExceededError{Capacity: 5, Occupied: 4}).Remaining())
	assert.Equal(t, 0, (&generic.CapacityExceededError{Capacity: 5, Occupied: 7}).Remaining())
}

func TestIsClientError(t *testing.T) {
	assert.True(t, generic.IsClientError(generic.Invalid("date", "bad")))
	assert.True(t, generic.IsClientError(&generic.InsufficientFundsError{}))
	assert.False(t, generic.IsClientError(&generic.ConfigurationError{}))
	assert.False(t, generic.IsClientError(errors.New("boom")))
	assert.False(t, generic.IsClientError(nil))
}
