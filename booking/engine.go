/*
engine.go - Slot-booking and cancellation engine

PURPOSE:
  Allocates a café's hour slots across concurrent users. Each booking and
  each cancellation is ONE atomic unit (Store.WithTx) touching the wallet,
  the payment log, the booking and the slot block together, so a debit
  without a booking (or a refund without a cancellation) cannot exist.

CREATE FLOW (first failure wins):
  1. café exists                        → NotFound
  2. slot label well-formed             → ValidationError
  3. slot start not in the past         → SlotUnavailable
  4. players >= 1                       → ValidationError
  5. slot offered by the café           → ValidationError
  --- inside the unit ---
  6. user exists                        → NotFound
  7. no admin/maintenance/event block   → SlotBlockedError (CapacityExceeded + SlotUnavailable)
  8. occupied + players <= capacity     → CapacityExceeded
  9. wallet covers hourly rate          → InsufficientFunds (nothing written)
  10. debit, insert booking, insert/share booked_by_user block

CANCEL FLOW:
  booking exists → caller owns it or is admin → not terminal →
  ComputeRefund → CAS status active→cancelled → release block → credit refund

CONCURRENCY:
  Units are serialized by the store. Inside a unit every write is guarded:
  the booking status is a compare-and-swap, the wallet write checks the
  balance it read, and the slot block insert hits a unique key. A guarded
  write that loses surfaces as the typed error for the race:
  ErrDuplicateSlotBlock → CapacityExceeded, booking CAS miss → AlreadyFinalized.

SEE ALSO:
  - slots.go, availability.go, policy.go: the pure parts
  - blocks.go: admin slot blocks
  - reviews.go: post-visit reviews
  - generic/ledger.go: wallet debit/credit
*/
package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/warp/cafe-booking/events"
	"github.com/warp/cafe-booking/generic"
	"github.com/warp/cafe-booking/metrics"
)

// Caller is the authenticated identity behind a request.
type Caller struct {
	UserID generic.UserID
	Admin  bool
}

func (c Caller) owns(userID generic.UserID) bool {
	return c.Admin || c.UserID == userID
}

type Engine struct {
	store  generic.TxStore
	ledger *generic.Ledger
	clock  generic.Clock
	loc    *time.Location
	log    zerolog.Logger
	pub    events.Publisher
	cache  AvailabilityCache
	newID  func() string
}

type Option func(*Engine)

func WithClock(c generic.Clock) Option { return func(e *Engine) { e.clock = c } }

// WithLocation sets the timezone slot times are interpreted in.
func WithLocation(loc *time.Location) Option { return func(e *Engine) { e.loc = loc } }

func WithLogger(l zerolog.Logger) Option { return func(e *Engine) { e.log = l } }

func WithPublisher(p events.Publisher) Option { return func(e *Engine) { e.pub = p } }

func WithCache(c AvailabilityCache) Option { return func(e *Engine) { e.cache = c } }

func WithIDGenerator(fn func() string) Option { return func(e *Engine) { e.newID = fn } }

func NewEngine(store generic.TxStore, opts ...Option) *Engine {
	e := &Engine{
		store: store,
		clock: generic.SystemClock{},
		loc:   time.UTC,
		log:   zerolog.Nop(),
		pub:   events.Noop{},
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.ledger = generic.NewLedger(e.clock)
	return e
}

func (e *Engine) now() time.Time { return e.clock.Now().In(e.loc) }

// Location is the timezone slot labels are read in.
func (e *Engine) Location() *time.Location { return e.loc }

// =============================================================================
// CREATE
// =============================================================================

type CreateRequest struct {
	UserID  generic.UserID
	CafeID  generic.CafeID
	Date    time.Time
	Slot    string
	Players int
}

type CreateResult struct {
	Booking       generic.Booking
	Payment       generic.Payment
	WalletBalance generic.Amount
}

func (e *Engine) CreateBooking(ctx context.Context, req CreateRequest) (CreateResult, error) {
	res, err := e.createBooking(ctx, req)
	outcome := "ok"
	if err != nil {
		outcome = generic.Kind(err)
		e.log.Debug().Err(err).
			Str("user_id", string(req.UserID)).
			Str("cafe_id", string(req.CafeID)).
			Str("slot", req.Slot).
			Msg("booking rejected")
	}
	metrics.IncBookingCreated(outcome)
	return res, err
}

func (e *Engine) createBooking(ctx context.Context, req CreateRequest) (CreateResult, error) {
	cafe, err := e.store.GetCafe(ctx, req.CafeID)
	if err != nil {
		return CreateResult{}, err
	}
	slots, err := SlotsFor(cafe)
	if err != nil {
		return CreateResult{}, err
	}
	slot, err := ParseSlot(req.Slot)
	if err != nil {
		return CreateResult{}, err
	}

	date := generic.CivilDate(req.Date)
	now := e.now()
	if slot.StartOn(date, e.loc).Before(now) {
		return CreateResult{}, fmt.Errorf("%w: %s on %s has already started",
			generic.ErrSlotUnavailable, slot.Label, generic.FormatDate(date))
	}
	if req.Players < 1 {
		return CreateResult{}, generic.Invalid("number_of_players", "must be at least 1")
	}
	if _, ok := findSlot(slots, slot.Label); !ok {
		return CreateResult{}, generic.Invalid("slot", fmt.Sprintf("%s is not offered by cafe %s", slot.Label, cafe.ID))
	}

	var res CreateResult
	err = e.store.WithTx(ctx, func(tx generic.Store) error {
		exists, err := tx.UserExists(ctx, req.UserID)
		if err != nil {
			return err
		}
		if !exists {
			return generic.NotFound("user", req.UserID)
		}

		block, blocked, err := tx.FindBlock(ctx, cafe.ID, date, slot.Label)
		if err != nil {
			return err
		}
		if blocked && !block.Reason.IsBooking() {
			return &generic.SlotBlockedError{CafeID: cafe.ID, Date: date, Slot: slot.Label, Reason: block.Reason}
		}

		occupied, err := occupiedSeats(ctx, tx, cafe.ID, date, slot.Label)
		if err != nil {
			return err
		}
		if occupied+req.Players > cafe.Capacity {
			return &generic.CapacityExceededError{
				CafeID:    cafe.ID,
				Date:      date,
				Slot:      slot.Label,
				Capacity:  cafe.Capacity,
				Occupied:  occupied,
				Requested: req.Players,
			}
		}

		b := generic.Booking{
			ID:            generic.BookingID(e.newID()),
			UserID:        req.UserID,
			CafeID:        cafe.ID,
			Date:          date,
			Slot:          slot.Label,
			Players:       req.Players,
			TotalAmount:   cafe.HourlyRate,
			Status:        generic.StatusConfirmed,
			PaymentStatus: generic.ChargePaid,
			RefundAmount:  generic.ZeroAmount(),
			CreatedAt:     now.UTC(),
			UpdatedAt:     now.UTC(),
		}

		payment, balance, err := e.ledger.Debit(ctx, tx, req.UserID, b.TotalAmount, generic.Cause{
			Type:      generic.PaymentBooking,
			BookingID: b.ID,
		})
		if err != nil {
			return err
		}
		if err := tx.InsertBooking(ctx, b); err != nil {
			return err
		}
		if !blocked {
			err := tx.InsertBlock(ctx, generic.SlotBlock{
				ID:        generic.BlockID(e.newID()),
				CafeID:    cafe.ID,
				Date:      date,
				Slot:      slot.Label,
				Reason:    generic.ReasonBookedByUser,
				BookingID: b.ID,
				CreatedAt: now.UTC(),
			})
			if err != nil {
				return err
			}
		}

		res = CreateResult{Booking: b, Payment: payment, WalletBalance: balance}
		return nil
	})
	if err != nil {
		return CreateResult{}, translate(err, "")
	}

	e.log.Info().
		Str("booking_id", string(res.Booking.ID)).
		Str("user_id", string(res.Booking.UserID)).
		Str("cafe_id", string(res.Booking.CafeID)).
		Str("date", generic.FormatDate(date)).
		Str("slot", res.Booking.Slot).
		Int("players", res.Booking.Players).
		Str("amount", res.Booking.TotalAmount.String()).
		Str("wallet_balance", res.WalletBalance.String()).
		Msg("booking confirmed")
	metrics.IncWalletPayment(string(generic.PaymentBooking))

	e.invalidate(ctx, cafe.ID, date)
	e.publish(ctx, events.Event{
		Type:      events.BookingCreated,
		UserID:    string(res.Booking.UserID),
		BookingID: string(res.Booking.ID),
		CafeID:    string(res.Booking.CafeID),
		Date:      generic.FormatDate(date),
		Slot:      res.Booking.Slot,
		Players:   res.Booking.Players,
		Amount:    res.Booking.TotalAmount.String(),
		Status:    string(res.Booking.Status),
	})
	return res, nil
}

// occupiedSeats sums the players of active bookings in one slot.
func occupiedSeats(ctx context.Context, s generic.Store, cafeID generic.CafeID, date time.Time, slot string) (int, error) {
	active, err := s.ActiveBookings(ctx, cafeID, date)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, b := range active {
		if b.Slot == slot {
			total += b.Players
		}
	}
	return total, nil
}

// =============================================================================
// CANCEL
// =============================================================================

type CancelResult struct {
	Booking            generic.Booking
	RefundAmount       generic.Amount
	CancellationCharge generic.Amount
	WalletBalance      generic.Amount
	PolicyDescription  string
	Tier               RefundTier
	Refund             *generic.Payment
}

const (
	defaultUserReason  = "User cancelled"
	defaultAdminReason = "Cancelled by admin"
)

func (e *Engine) CancelBooking(ctx context.Context, caller Caller, id generic.BookingID, reason string) (CancelResult, error) {
	res, err := e.cancelBooking(ctx, caller, id, reason)
	outcome := string(res.Tier)
	if err != nil {
		outcome = generic.Kind(err)
		e.log.Debug().Err(err).
			Str("booking_id", string(id)).
			Str("caller", string(caller.UserID)).
			Msg("cancellation rejected")
	}
	metrics.IncBookingCancelled(outcome)
	return res, err
}

func (e *Engine) cancelBooking(ctx context.Context, caller Caller, id generic.BookingID, reason string) (CancelResult, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = defaultUserReason
		if caller.Admin {
			reason = defaultAdminReason
		}
	}

	var res CancelResult
	err := e.store.WithTx(ctx, func(tx generic.Store) error {
		b, err := tx.GetBooking(ctx, id)
		if err != nil {
			return err
		}
		if !caller.owns(b.UserID) {
			return fmt.Errorf("%w: booking %s belongs to another user", generic.ErrUnauthorized, id)
		}
		if b.Status.IsTerminal() {
			return &generic.AlreadyFinalizedError{BookingID: id, Status: b.Status}
		}

		slot, err := ParseSlot(b.Slot)
		if err != nil {
			return err
		}
		now := e.now()
		refund := ComputeRefund(slot.StartOn(b.Date, e.loc), now, b.TotalAmount)

		previous := b.Status
		b.Status = generic.StatusCancelled
		b.CancellationReason = reason
		b.RefundAmount = refund.Amount
		if refund.Amount.IsPositive() {
			b.PaymentStatus = generic.ChargeRefunded
		}
		b.UpdatedAt = now.UTC()

		if err := tx.UpdateBooking(ctx, b, generic.ActiveStatuses...); err != nil {
			if errors.Is(err, generic.ErrConcurrentModification) {
				return &generic.AlreadyFinalizedError{BookingID: id, Status: previous}
			}
			return err
		}
		if err := releaseBlock(ctx, tx, b); err != nil {
			return err
		}

		res = CancelResult{
			Booking:            b,
			RefundAmount:       refund.Amount,
			CancellationCharge: refund.Charge,
			PolicyDescription:  refund.Description,
			Tier:               refund.Tier,
		}
		if refund.Amount.IsPositive() {
			payment, balance, err := e.ledger.Credit(ctx, tx, b.UserID, refund.Amount, generic.Cause{
				Type:      generic.PaymentRefund,
				BookingID: b.ID,
			})
			if err != nil {
				return err
			}
			res.Refund = &payment
			res.WalletBalance = balance
			return nil
		}

		owner, err := tx.GetUser(ctx, b.UserID)
		if err != nil {
			return err
		}
		res.WalletBalance = owner.WalletBalance
		return nil
	})
	if err != nil {
		return CancelResult{}, translate(err, id)
	}

	b := res.Booking
	e.log.Info().
		Str("booking_id", string(b.ID)).
		Str("user_id", string(b.UserID)).
		Str("cafe_id", string(b.CafeID)).
		Str("slot", b.Slot).
		Str("refund", res.RefundAmount.String()).
		Str("charge", res.CancellationCharge.String()).
		Str("tier", string(res.Tier)).
		Msg("booking cancelled")
	if res.Refund != nil {
		metrics.IncWalletPayment(string(generic.PaymentRefund))
	}

	e.invalidate(ctx, b.CafeID, b.Date)
	e.publish(ctx, events.Event{
		Type:      events.BookingCancelled,
		UserID:    string(b.UserID),
		BookingID: string(b.ID),
		CafeID:    string(b.CafeID),
		Date:      generic.FormatDate(b.Date),
		Slot:      b.Slot,
		Players:   b.Players,
		Amount:    b.TotalAmount.String(),
		Refund:    res.RefundAmount.String(),
		Status:    string(b.Status),
		Reason:    b.CancellationReason,
	})
	return res, nil
}

// releaseBlock frees the booked_by_user block of a cancelled booking's slot.
// The shared block moves to the oldest booking still holding the slot, or is
// deleted when none remain.
func releaseBlock(ctx context.Context, tx generic.Store, cancelled generic.Booking) error {
	block, ok, err := tx.FindBlock(ctx, cancelled.CafeID, cancelled.Date, cancelled.Slot)
	if err != nil || !ok || !block.Reason.IsBooking() {
		return err
	}

	active, err := tx.ActiveBookings(ctx, cancelled.CafeID, cancelled.Date)
	if err != nil {
		return err
	}
	for _, other := range active {
		if other.Slot != cancelled.Slot || other.ID == cancelled.ID {
			continue
		}
		if block.BookingID == cancelled.ID {
			return tx.RelinkBlock(ctx, block.ID, other.ID)
		}
		return nil
	}
	return tx.DeleteBlock(ctx, block.ID)
}

// translate maps store sentinels of a lost race to user-facing kinds.
func translate(err error, id generic.BookingID) error {
	switch {
	case errors.Is(err, generic.ErrDuplicateSlotBlock):
		return fmt.Errorf("%w: slot was taken concurrently", generic.ErrCapacityExceeded)
	case errors.Is(err, generic.ErrConcurrentModification) && id != "":
		return &generic.AlreadyFinalizedError{BookingID: id, Status: generic.StatusCancelled}
	}
	return err
}

// =============================================================================
// QUERIES
// =============================================================================

// Availability resolves a café's slots for date. Past dates yield an empty list;
// for today only slots from the next full hour are listed.
func (e *Engine) Availability(ctx context.Context, cafeID generic.CafeID, date time.Time) ([]SlotAvailability, error) {
	cafe, err := e.store.GetCafe(ctx, cafeID)
	if err != nil {
		return nil, err
	}
	slots, err := SlotsFor(cafe)
	if err != nil {
		return nil, err
	}

	date = generic.CivilDate(date)
	cutoff, past := Cutoff(date, e.clock.Now(), e.loc)
	if past {
		return []SlotAvailability{}, nil
	}

	cacheable := false
	var gen int64
	if e.cache != nil {
		rows, hit, err := e.cache.Get(ctx, cafeID, date, cutoff)
		switch {
		case err != nil:
			e.log.Warn().Err(err).Str("cafe_id", string(cafeID)).Msg("availability cache read failed")
			metrics.IncCacheLookup("error")
		case hit:
			metrics.IncCacheLookup("hit")
			return rows, nil
		default:
			metrics.IncCacheLookup("miss")
		}
		if gen, err = e.cache.Generation(ctx, cafeID, date); err != nil {
			e.log.Warn().Err(err).Str("cafe_id", string(cafeID)).Msg("availability cache generation read failed")
		} else {
			cacheable = true
		}
	}

	// Bookings and blocks are read in one unit so a concurrent write is seen
	// by both or by neither.
	var (
		bookings []generic.Booking
		blocks   []generic.SlotBlock
	)
	err = e.store.WithTx(ctx, func(tx generic.Store) error {
		var err error
		if bookings, err = tx.ActiveBookings(ctx, cafeID, date); err != nil {
			return err
		}
		blocks, err = tx.BlocksFor(ctx, cafeID, date)
		return err
	})
	if err != nil {
		return nil, err
	}
	rows := Resolve(cafe.Capacity, openSlots(slots, cutoff), bookings, blocks)

	if cacheable {
		stored, err := e.cache.Set(ctx, cafeID, date, cutoff, gen, rows)
		switch {
		case err != nil:
			e.log.Warn().Err(err).Str("cafe_id", string(cafeID)).Msg("availability cache write failed")
		case !stored:
			e.log.Debug().Str("cafe_id", string(cafeID)).Str("date", generic.FormatDate(date)).Msg("availability changed while resolving, not cached")
		}
	}
	return rows, nil
}

func (e *Engine) GetBooking(ctx context.Context, caller Caller, id generic.BookingID) (generic.Booking, error) {
	b, err := e.store.GetBooking(ctx, id)
	if err != nil {
		return generic.Booking{}, err
	}
	if !caller.owns(b.UserID) {
		return generic.Booking{}, fmt.Errorf("%w: booking %s belongs to another user", generic.ErrUnauthorized, id)
	}
	return b, nil
}

// ListUserBookings returns a user's bookings, newest first.
func (e *Engine) ListUserBookings(ctx context.Context, caller Caller, userID generic.UserID) ([]generic.Booking, error) {
	if !caller.owns(userID) {
		return nil, fmt.Errorf("%w: cannot list bookings of %s", generic.ErrUnauthorized, userID)
	}
	return e.store.BookingsByUser(ctx, userID)
}

// ListCafeBookings returns a café's bookings, newest first. Admin only.
func (e *Engine) ListCafeBookings(ctx context.Context, caller Caller, cafeID generic.CafeID) ([]generic.Booking, error) {
	if !caller.Admin {
		return nil, fmt.Errorf("%w: admin only", generic.ErrUnauthorized)
	}
	if _, err := e.store.GetCafe(ctx, cafeID); err != nil {
		return nil, err
	}
	return e.store.BookingsByCafe(ctx, cafeID)
}

// =============================================================================
// LIFECYCLE - completion and admin status changes
// =============================================================================

// CompleteElapsed moves confirmed bookings whose slot has ended to completed.
// Returns how many were completed.
func (e *Engine) CompleteElapsed(ctx context.Context) (int, error) {
	confirmed, err := e.store.BookingsByStatus(ctx, generic.StatusConfirmed)
	if err != nil {
		return 0, err
	}

	now := e.now()
	completed := 0
	for _, b := range confirmed {
		slot, err := ParseSlot(b.Slot)
		if err != nil {
			e.log.Warn().Err(err).Str("booking_id", string(b.ID)).Msg("skipping booking with bad slot")
			continue
		}
		if slot.EndOn(b.Date, e.loc).After(now) {
			continue
		}

		b.Status = generic.StatusCompleted
		b.UpdatedAt = now.UTC()
		err = e.store.WithTx(ctx, func(tx generic.Store) error {
			return tx.UpdateBooking(ctx, b, generic.StatusConfirmed)
		})
		if errors.Is(err, generic.ErrConcurrentModification) {
			// cancelled since it was listed
			continue
		}
		if err != nil {
			return completed, err
		}
		completed++
		e.publishCompleted(ctx, b)
	}

	if completed > 0 {
		metrics.AddBookingsCompleted(completed)
		e.log.Info().Int("completed", completed).Msg("elapsed bookings completed")
	}
	return completed, nil
}

// UpdateStatus applies an admin's forward transition (pending→confirmed,
// confirmed→completed). A booking completes only once its slot has ended.
// Cancellation must go through CancelBooking so the refund policy applies.
func (e *Engine) UpdateStatus(ctx context.Context, caller Caller, id generic.BookingID, to generic.BookingStatus) (generic.Booking, error) {
	if !caller.Admin {
		return generic.Booking{}, fmt.Errorf("%w: admin only", generic.ErrUnauthorized)
	}
	if !to.Valid() {
		return generic.Booking{}, generic.Invalid("status", fmt.Sprintf("unknown status %q", to))
	}
	if to == generic.StatusCancelled {
		return generic.Booking{}, generic.Invalid("status", "use the cancel operation to cancel a booking")
	}

	var updated generic.Booking
	err := e.store.WithTx(ctx, func(tx generic.Store) error {
		b, err := tx.GetBooking(ctx, id)
		if err != nil {
			return err
		}
		if b.Status.IsTerminal() {
			return &generic.AlreadyFinalizedError{BookingID: id, Status: b.Status}
		}
		if !b.Status.CanTransition(to) {
			return generic.Invalid("status", fmt.Sprintf("cannot move from %s to %s", b.Status, to))
		}
		if to == generic.StatusCompleted {
			slot, err := ParseSlot(b.Slot)
			if err != nil {
				return err
			}
			// completed bookings stop holding seats
			if slot.EndOn(b.Date, e.loc).After(e.now()) {
				return generic.Invalid("status", fmt.Sprintf("%s on %s has not ended yet", b.Slot, generic.FormatDate(b.Date)))
			}
		}
		from := b.Status
		b.Status = to
		b.UpdatedAt = e.now().UTC()
		if err := tx.UpdateBooking(ctx, b, from); err != nil {
			return err
		}
		updated = b
		return nil
	})
	if err != nil {
		return generic.Booking{}, translate(err, id)
	}

	e.log.Info().
		Str("booking_id", string(id)).
		Str("status", string(to)).
		Str("admin", string(caller.UserID)).
		Msg("booking status updated")
	if to == generic.StatusCompleted {
		metrics.AddBookingsCompleted(1)
		e.publishCompleted(ctx, updated)
	}
	return updated, nil
}

func (e *Engine) publishCompleted(ctx context.Context, b generic.Booking) {
	e.publish(ctx, events.Event{
		Type:      events.BookingCompleted,
		UserID:    string(b.UserID),
		BookingID: string(b.ID),
		CafeID:    string(b.CafeID),
		Date:      generic.FormatDate(b.Date),
		Slot:      b.Slot,
		Status:    string(b.Status),
	})
}

// =============================================================================
// WALLET
// =============================================================================

// Recharge tops up a user's wallet. The payment instrument is external; this
// records the completed top-up.
func (e *Engine) Recharge(ctx context.Context, caller Caller, userID generic.UserID, amount generic.Amount, method generic.PaymentMethod) (generic.Payment, generic.Amount, error) {
	if !caller.owns(userID) {
		return generic.Payment{}, generic.Amount{}, fmt.Errorf("%w: cannot recharge wallet of %s", generic.ErrUnauthorized, userID)
	}
	if !amount.IsPositive() {
		return generic.Payment{}, generic.Amount{}, generic.Invalid("amount", "must be greater than zero")
	}
	switch method {
	case "":
		method = generic.MethodCard
	case generic.MethodWallet, generic.MethodCard, generic.MethodUPI:
	default:
		return generic.Payment{}, generic.Amount{}, generic.Invalid("payment_method", fmt.Sprintf("unknown method %q", method))
	}

	var (
		payment generic.Payment
		balance generic.Amount
	)
	err := e.store.WithTx(ctx, func(tx generic.Store) error {
		var err error
		payment, balance, err = e.ledger.Credit(ctx, tx, userID, amount, generic.Cause{
			Type:   generic.PaymentRecharge,
			Method: method,
		})
		return err
	})
	if err != nil {
		return generic.Payment{}, generic.Amount{}, err
	}

	e.log.Info().
		Str("user_id", string(userID)).
		Str("amount", amount.String()).
		Str("wallet_balance", balance.String()).
		Msg("wallet recharged")
	metrics.IncWalletPayment(string(generic.PaymentRecharge))
	e.publish(ctx, events.Event{
		Type:   events.WalletRecharged,
		UserID: string(userID),
		Amount: amount.String(),
	})
	return payment, balance, nil
}

// Payments lists a user's wallet movements, newest first.
func (e *Engine) Payments(ctx context.Context, caller Caller, userID generic.UserID) ([]generic.Payment, error) {
	if !caller.owns(userID) {
		return nil, fmt.Errorf("%w: cannot list payments of %s", generic.ErrUnauthorized, userID)
	}
	return e.store.PaymentsByUser(ctx, userID)
}

// =============================================================================
// POST-COMMIT SIDE EFFECTS
// =============================================================================

func (e *Engine) publish(ctx context.Context, ev events.Event) {
	ev.OccurredAt = e.clock.Now().UTC()
	if err := e.pub.Publish(ctx, ev); err != nil {
		e.log.Error().Err(err).Str("event", ev.Type).Str("booking_id", ev.BookingID).Msg("publish failed")
	}
}

func (e *Engine) invalidate(ctx context.Context, cafeID generic.CafeID, date time.Time) {
	if e.cache == nil {
		return
	}
	if err := e.cache.Invalidate(ctx, cafeID, date); err != nil {
		e.log.Warn().Err(err).Str("cafe_id", string(cafeID)).Msg("availability cache invalidation failed")
	}
}
