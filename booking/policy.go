package booking

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/cafe-booking/generic"
)

// =============================================================================
// CANCELLATION POLICY - Refund tiers by notice given
// =============================================================================

type RefundTier string

const (
	TierFull    RefundTier = "full"
	TierPartial RefundTier = "partial"
	TierNone    RefundTier = "none"
)

const (
	FullRefundNotice    = 2 * time.Hour
	PartialRefundNotice = 1 * time.Hour
)

var partialFraction = decimal.NewFromFloat(0.5)

// Refund is the outcome of applying the policy to one booking.
// Amount + Charge always equals the booking total.
type Refund struct {
	Amount      generic.Amount
	Charge      generic.Amount
	Fraction    decimal.Decimal
	Tier        RefundTier
	Description string
}

// ComputeRefund applies the tiers on the notice (slotStart - now):
//
//	notice >= 2h      → 100%
//	1h <= notice < 2h → 50%, rounded to 2 places
//	notice < 1h       → 0%
func ComputeRefund(slotStart, now time.Time, total generic.Amount) Refund {
	notice := slotStart.Sub(now)

	switch {
	case notice >= FullRefundNotice:
		return Refund{
			Amount:      total,
			Charge:      generic.ZeroAmount(),
			Fraction:    decimal.NewFromInt(1),
			Tier:        TierFull,
			Description: "Full refund.",
		}
	case notice >= PartialRefundNotice:
		refund := total.Mul(partialFraction).Round(2)
		return Refund{
			Amount:      refund,
			Charge:      total.Sub(refund),
			Fraction:    partialFraction,
			Tier:        TierPartial,
			Description: "Partial refund.",
		}
	default:
		return Refund{
			Amount:      generic.ZeroAmount(),
			Charge:      total,
			Fraction:    decimal.Zero,
			Tier:        TierNone,
			Description: "No refund.",
		}
	}
}
