package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/warp/cafe-booking/generic"
)

func TestComputeRefund_Boundaries(t *testing.T) {
	slotStart := time.Date(2026, time.March, 10, 14, 0, 0, 0, time.UTC)
	total := generic.NewAmountFromInt(100)

	cases := []struct {
		name   string
		notice time.Duration
		tier   RefundTier
		refund string
		charge string
		desc   string
	}{
		{"3h before", 3 * time.Hour, TierFull, "100", "0", "Full refund."},
		{"exactly 2h", 2 * time.Hour, TierFull, "100", "0", "Full refund."},
		{"1h59m", time.Hour + 59*time.Minute, TierPartial, "50", "50", "Partial refund."},
		{"1h59m59s", 2*time.Hour - time.Second, TierPartial, "50", "50", "Partial refund."},
		{"exactly 1h", time.Hour, TierPartial, "50", "50", "Partial refund."},
		{"59m", 59 * time.Minute, TierNone, "0", "100", "No refund."},
		{"after start", -10 * time.Minute, TierNone, "0", "100", "No refund."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := ComputeRefund(slotStart, slotStart.Add(-tc.notice), total)
			assert.Equal(t, tc.tier, r.Tier)
			assert.Equal(t, tc.refund, r.Amount.String())
			assert.Equal(t, tc.charge, r.Charge.String())
			assert.Equal(t, tc.desc, r.Description)
			assert.True(t, r.Amount.Add(r.Charge).Equal(total), "refund + charge == total")
		})
	}
}

func TestComputeRefund_PartialRounding(t *testing.T) {
	slotStart := time.Date(2026, time.March, 10, 14, 0, 0, 0, time.UTC)
	r := ComputeRefund(slotStart, slotStart.Add(-90*time.Minute), generic.MustParseAmount("99.99"))

	assert.Equal(t, "50", r.Amount.String())
	assert.Equal(t, "49.99", r.Charge.String())
}
