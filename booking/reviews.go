package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/warp/cafe-booking/generic"
)

// =============================================================================
// REVIEWS - One per booking, after the slot has started
// =============================================================================

const MaxCommentLength = 500

type ReviewRequest struct {
	BookingID generic.BookingID
	Rating    int
	Comment   string
}

// Rating summarizes a café's reviews. Average is rounded to 1 decimal place.
type Rating struct {
	Average decimal.Decimal
	Count   int
}

var errAlreadyReviewed = generic.Invalid("booking", "has already been reviewed")

func (e *Engine) SubmitReview(ctx context.Context, caller Caller, req ReviewRequest) (generic.Review, error) {
	if req.Rating < 1 || req.Rating > 5 {
		return generic.Review{}, generic.Invalid("rating", "must be between 1 and 5")
	}
	comment := strings.TrimSpace(req.Comment)
	if utf8.RuneCountInString(comment) > MaxCommentLength {
		return generic.Review{}, generic.Invalid("comment", fmt.Sprintf("must be at most %d characters", MaxCommentLength))
	}

	var review generic.Review
	err := e.store.WithTx(ctx, func(tx generic.Store) error {
		b, err := tx.GetBooking(ctx, req.BookingID)
		if err != nil {
			return err
		}
		if b.UserID != caller.UserID {
			return fmt.Errorf("%w: booking %s belongs to another user", generic.ErrUnauthorized, b.ID)
		}
		if b.Status == generic.StatusCancelled {
			return generic.Invalid("booking", "cancelled bookings cannot be reviewed")
		}
		slot, err := ParseSlot(b.Slot)
		if err != nil {
			return err
		}
		now := e.now()
		if now.Before(slot.StartOn(b.Date, e.loc)) {
			return generic.Invalid("booking", "cannot review an upcoming booking")
		}
		if b.Reviewed {
			return errAlreadyReviewed
		}

		if err := tx.MarkReviewed(ctx, b.ID); err != nil {
			return err
		}
		review = generic.Review{
			ID:        generic.ReviewID(e.newID()),
			UserID:    b.UserID,
			CafeID:    b.CafeID,
			BookingID: b.ID,
			Rating:    req.Rating,
			Comment:   comment,
			CreatedAt: now.UTC(),
		}
		return tx.InsertReview(ctx, review)
	})
	if errors.Is(err, generic.ErrConcurrentModification) || errors.Is(err, generic.ErrDuplicateReview) {
		return generic.Review{}, errAlreadyReviewed
	}
	if err != nil {
		return generic.Review{}, err
	}

	e.log.Info().
		Str("review_id", string(review.ID)).
		Str("booking_id", string(review.BookingID)).
		Str("cafe_id", string(review.CafeID)).
		Int("rating", review.Rating).
		Msg("review submitted")
	return review, nil
}

// CafeReviews lists a café's reviews, newest first.
func (e *Engine) CafeReviews(ctx context.Context, cafeID generic.CafeID) ([]generic.Review, error) {
	if _, err := e.store.GetCafe(ctx, cafeID); err != nil {
		return nil, err
	}
	return e.store.ReviewsByCafe(ctx, cafeID)
}

func (e *Engine) CafeRating(ctx context.Context, cafeID generic.CafeID) (Rating, error) {
	reviews, err := e.CafeReviews(ctx, cafeID)
	if err != nil {
		return Rating{}, err
	}
	if len(reviews) == 0 {
		return Rating{Average: decimal.Zero}, nil
	}
	sum := 0
	for _, r := range reviews {
		sum += r.Rating
	}
	avg := decimal.NewFromInt(int64(sum)).Div(decimal.NewFromInt(int64(len(reviews)))).Round(1)
	return Rating{Average: avg, Count: len(reviews)}, nil
}
