// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/cafe-booking/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu sync.RWMutex
	st *state
}

type slotKey struct {
	CafeID generic.CafeID
	Date   string
	Slot   string
}

func keyOf(cafeID generic.CafeID, date time.Time, slot string) slotKey {
	return slotKey{CafeID: cafeID, Date: generic.FormatDate(date), Slot: slot}
}

// state holds every table. Its methods assume the caller holds the lock.
type state struct {
	users           map[generic.UserID]generic.User
	cafes           map[generic.CafeID]generic.Cafe
	bookings        []generic.Booking
	bookingIndex    map[generic.BookingID]int
	blocks          map[generic.BlockID]generic.SlotBlock
	blockKeys       map[slotKey]generic.BlockID
	payments        []generic.Payment
	reviews         []generic.Review
	reviewByBooking map[generic.BookingID]bool
}

func newState() *state {
	return &state{
		users:           make(map[generic.UserID]generic.User),
		cafes:           make(map[generic.CafeID]generic.Cafe),
		bookingIndex:    make(map[generic.BookingID]int),
		blocks:          make(map[generic.BlockID]generic.SlotBlock),
		blockKeys:       make(map[slotKey]generic.BlockID),
		reviewByBooking: make(map[generic.BookingID]bool),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.cafes {
		c.cafes[k] = v
	}
	c.bookings = append([]generic.Booking{}, s.bookings...)
	for k, v := range s.bookingIndex {
		c.bookingIndex[k] = v
	}
	for k, v := range s.blocks {
		c.blocks[k] = v
	}
	for k, v := range s.blockKeys {
		c.blockKeys[k] = v
	}
	c.payments = append([]generic.Payment{}, s.payments...)
	c.reviews = append([]generic.Review{}, s.reviews...)
	for k, v := range s.reviewByBooking {
		c.reviewByBooking[k] = v
	}
	return c
}

func NewMemory() *Memory {
	return &Memory{st: newState()}
}

// ---- users ----

func (s *state) GetUser(_ context.Context, id generic.UserID) (generic.User, error) {
	u, ok := s.users[id]
	if !ok {
		return generic.User{}, generic.NotFound("user", id)
	}
	return u, nil
}

func (s *state) UserExists(_ context.Context, id generic.UserID) (bool, error) {
	_, ok := s.users[id]
	return ok, nil
}

func (s *state) SaveUser(_ context.Context, u generic.User) error {
	s.users[u.ID] = u
	return nil
}

func (s *state) SetWalletBalance(_ context.Context, id generic.UserID, expected, next generic.Amount) error {
	u, ok := s.users[id]
	if !ok {
		return generic.NotFound("user", id)
	}
	if !u.WalletBalance.Equal(expected) {
		return generic.ErrConcurrentModification
	}
	u.WalletBalance = next
	s.users[id] = u
	return nil
}

// ---- cafes ----

func (s *state) GetCafe(_ context.Context, id generic.CafeID) (generic.Cafe, error) {
	c, ok := s.cafes[id]
	if !ok {
		return generic.Cafe{}, generic.NotFound("cafe", id)
	}
	return c, nil
}

func (s *state) ListCafes(_ context.Context) ([]generic.Cafe, error) {
	out := make([]generic.Cafe, 0, len(s.cafes))
	for _, c := range s.cafes {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *state) SaveCafe(_ context.Context, c generic.Cafe) error {
	s.cafes[c.ID] = c
	return nil
}

// ---- bookings ----

func (s *state) InsertBooking(_ context.Context, b generic.Booking) error {
	if _, ok := s.bookingIndex[b.ID]; ok {
		return generic.ErrConcurrentModification
	}
	s.bookingIndex[b.ID] = len(s.bookings)
	s.bookings = append(s.bookings, b)
	return nil
}

func (s *state) GetBooking(_ context.Context, id generic.BookingID) (generic.Booking, error) {
	i, ok := s.bookingIndex[id]
	if !ok {
		return generic.Booking{}, generic.NotFound("booking", id)
	}
	return s.bookings[i], nil
}

func (s *state) ActiveBookings(_ context.Context, cafeID generic.CafeID, date time.Time) ([]generic.Booking, error) {
	day := generic.FormatDate(date)
	var out []generic.Booking
	for _, b := range s.bookings {
		if b.CafeID == cafeID && generic.FormatDate(b.Date) == day && b.Status.IsActive() {
			out = append(out, b)
		}
	}
	return out, nil
}

// newestFirst walks bookings in reverse insertion order.
func (s *state) newestFirst(match func(generic.Booking) bool) []generic.Booking {
	out := []generic.Booking{}
	for i := len(s.bookings) - 1; i >= 0; i-- {
		if match(s.bookings[i]) {
			out = append(out, s.bookings[i])
		}
	}
	return out
}

func (s *state) BookingsByUser(_ context.Context, userID generic.UserID) ([]generic.Booking, error) {
	return s.newestFirst(func(b generic.Booking) bool { return b.UserID == userID }), nil
}

func (s *state) BookingsByCafe(_ context.Context, cafeID generic.CafeID) ([]generic.Booking, error) {
	return s.newestFirst(func(b generic.Booking) bool { return b.CafeID == cafeID }), nil
}

func (s *state) BookingsByStatus(_ context.Context, status generic.BookingStatus) ([]generic.Booking, error) {
	return s.newestFirst(func(b generic.Booking) bool { return b.Status == status }), nil
}

func (s *state) UpdateBooking(_ context.Context, b generic.Booking, from ...generic.BookingStatus) error {
	i, ok := s.bookingIndex[b.ID]
	if !ok {
		return generic.NotFound("booking", b.ID)
	}
	cur := s.bookings[i]
	matched := false
	for _, st := range from {
		if cur.Status == st {
			matched = true
			break
		}
	}
	if !matched {
		return generic.ErrConcurrentModification
	}
	cur.Status = b.Status
	cur.PaymentStatus = b.PaymentStatus
	cur.CancellationReason = b.CancellationReason
	cur.RefundAmount = b.RefundAmount
	cur.UpdatedAt = b.UpdatedAt
	s.bookings[i] = cur
	return nil
}

func (s *state) MarkReviewed(_ context.Context, id generic.BookingID) error {
	i, ok := s.bookingIndex[id]
	if !ok {
		return generic.NotFound("booking", id)
	}
	if s.bookings[i].Reviewed {
		return generic.ErrConcurrentModification
	}
	s.bookings[i].Reviewed = true
	return nil
}

// ---- blocks ----

func (s *state) InsertBlock(_ context.Context, b generic.SlotBlock) error {
	k := keyOf(b.CafeID, b.Date, b.Slot)
	if _, taken := s.blockKeys[k]; taken {
		return generic.ErrDuplicateSlotBlock
	}
	s.blocks[b.ID] = b
	s.blockKeys[k] = b.ID
	return nil
}

func (s *state) GetBlock(_ context.Context, id generic.BlockID) (generic.SlotBlock, error) {
	b, ok := s.blocks[id]
	if !ok {
		return generic.SlotBlock{}, generic.NotFound("slot block", id)
	}
	return b, nil
}

func (s *state) FindBlock(_ context.Context, cafeID generic.CafeID, date time.Time, slot string) (generic.SlotBlock, bool, error) {
	id, ok := s.blockKeys[keyOf(cafeID, date, slot)]
	if !ok {
		return generic.SlotBlock{}, false, nil
	}
	return s.blocks[id], true, nil
}

func (s *state) BlocksFor(_ context.Context, cafeID generic.CafeID, date time.Time) ([]generic.SlotBlock, error) {
	day := generic.FormatDate(date)
	var out []generic.SlotBlock
	for _, b := range s.blocks {
		if b.CafeID == cafeID && generic.FormatDate(b.Date) == day {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slot < out[j].Slot })
	return out, nil
}

func (s *state) RelinkBlock(_ context.Context, id generic.BlockID, bookingID generic.BookingID) error {
	b, ok := s.blocks[id]
	if !ok {
		return generic.NotFound("slot block", id)
	}
	b.BookingID = bookingID
	s.blocks[id] = b
	return nil
}

func (s *state) DeleteBlock(_ context.Context, id generic.BlockID) error {
	b, ok := s.blocks[id]
	if !ok {
		return generic.NotFound("slot block", id)
	}
	delete(s.blocks, id)
	delete(s.blockKeys, keyOf(b.CafeID, b.Date, b.Slot))
	return nil
}

// ---- payments / reviews ----

func (s *state) InsertPayment(_ context.Context, p generic.Payment) error {
	s.payments = append(s.payments, p)
	return nil
}

func (s *state) PaymentsByUser(_ context.Context, userID generic.UserID) ([]generic.Payment, error) {
	out := []generic.Payment{}
	for i := len(s.payments) - 1; i >= 0; i-- {
		if s.payments[i].UserID == userID {
			out = append(out, s.payments[i])
		}
	}
	return out, nil
}

func (s *state) InsertReview(_ context.Context, r generic.Review) error {
	if s.reviewByBooking[r.BookingID] {
		return generic.ErrDuplicateReview
	}
	s.reviews = append(s.reviews, r)
	s.reviewByBooking[r.BookingID] = true
	return nil
}

func (s *state) ReviewsByCafe(_ context.Context, cafeID generic.CafeID) ([]generic.Review, error) {
	out := []generic.Review{}
	for i := len(s.reviews) - 1; i >= 0; i-- {
		if s.reviews[i].CafeID == cafeID {
			out = append(out, s.reviews[i])
		}
	}
	return out, nil
}

// =============================================================================
// LOCKED ACCESSORS - Memory satisfies generic.Store
// =============================================================================

func (m *Memory) read(fn func(*state)) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fn(m.st)
}

func (m *Memory) write(fn func(*state)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m.st)
}

func (m *Memory) GetUser(ctx context.Context, id generic.UserID) (u generic.User, err error) {
	m.read(func(s *state) { u, err = s.GetUser(ctx, id) })
	return
}

func (m *Memory) UserExists(ctx context.Context, id generic.UserID) (ok bool, err error) {
	m.read(func(s *state) { ok, err = s.UserExists(ctx, id) })
	return
}

func (m *Memory) SaveUser(ctx context.Context, u generic.User) (err error) {
	m.write(func(s *state) { err = s.SaveUser(ctx, u) })
	return
}

func (m *Memory) SetWalletBalance(ctx context.Context, id generic.UserID, expected, next generic.Amount) (err error) {
	m.write(func(s *state) { err = s.SetWalletBalance(ctx, id, expected, next) })
	return
}

func (m *Memory) GetCafe(ctx context.Context, id generic.CafeID) (c generic.Cafe, err error) {
	m.read(func(s *state) { c, err = s.GetCafe(ctx, id) })
	return
}

func (m *Memory) ListCafes(ctx context.Context) (cs []generic.Cafe, err error) {
	m.read(func(s *state) { cs, err = s.ListCafes(ctx) })
	return
}

func (m *Memory) SaveCafe(ctx context.Context, c generic.Cafe) (err error) {
	m.write(func(s *state) { err = s.SaveCafe(ctx, c) })
	return
}

func (m *Memory) InsertBooking(ctx context.Context, b generic.Booking) (err error) {
	m.write(func(s *state) { err = s.InsertBooking(ctx, b) })
	return
}

func (m *Memory) GetBooking(ctx context.Context, id generic.BookingID) (b generic.Booking, err error) {
	m.read(func(s *state) { b, err = s.GetBooking(ctx, id) })
	return
}

func (m *Memory) ActiveBookings(ctx context.Context, cafeID generic.CafeID, date time.Time) (bs []generic.Booking, err error) {
	m.read(func(s *state) { bs, err = s.ActiveBookings(ctx, cafeID, date) })
	return
}

func (m *Memory) BookingsByUser(ctx context.Context, userID generic.UserID) (bs []generic.Booking, err error) {
	m.read(func(s *state) { bs, err = s.BookingsByUser(ctx, userID) })
	return
}

func (m *Memory) BookingsByCafe(ctx context.Context, cafeID generic.CafeID) (bs []generic.Booking, err error) {
	m.read(func(s *state) { bs, err = s.BookingsByCafe(ctx, cafeID) })
	return
}

func (m *Memory) BookingsByStatus(ctx context.Context, status generic.BookingStatus) (bs []generic.Booking, err error) {
	m.read(func(s *state) { bs, err = s.BookingsByStatus(ctx, status) })
	return
}

func (m *Memory) UpdateBooking(ctx context.Context, b generic.Booking, from ...generic.BookingStatus) (err error) {
	m.write(func(s *state) { err = s.UpdateBooking(ctx, b, from...) })
	return
}

func (m *Memory) MarkReviewed(ctx context.Context, id generic.BookingID) (err error) {
	m.write(func(s *state) { err = s.MarkReviewed(ctx, id) })
	return
}

func (m *Memory) InsertBlock(ctx context.Context, b generic.SlotBlock) (err error) {
	m.write(func(s *state) { err = s.InsertBlock(ctx, b) })
	return
}

func (m *Memory) GetBlock(ctx context.Context, id generic.BlockID) (b generic.SlotBlock, err error) {
	m.read(func(s *state) { b, err = s.GetBlock(ctx, id) })
	return
}

func (m *Memory) FindBlock(ctx context.Context, cafeID generic.CafeID, date time.Time, slot string) (b generic.SlotBlock, ok bool, err error) {
	m.read(func(s *state) { b, ok, err = s.FindBlock(ctx, cafeID, date, slot) })
	return
}

func (m *Memory) BlocksFor(ctx context.Context, cafeID generic.CafeID, date time.Time) (bs []generic.SlotBlock, err error) {
	m.read(func(s *state) { bs, err = s.BlocksFor(ctx, cafeID, date) })
	return
}

func (m *Memory) RelinkBlock(ctx context.Context, id generic.BlockID, bookingID generic.BookingID) (err error) {
	m.write(func(s *state) { err = s.RelinkBlock(ctx, id, bookingID) })
	return
}

func (m *Memory) DeleteBlock(ctx context.Context, id generic.BlockID) (err error) {
	m.write(func(s *state) { err = s.DeleteBlock(ctx, id) })
	return
}

func (m *Memory) InsertPayment(ctx context.Context, p generic.Payment) (err error) {
	m.write(func(s *state) { err = s.InsertPayment(ctx, p) })
	return
}

func (m *Memory) PaymentsByUser(ctx context.Context, userID generic.UserID) (ps []generic.Payment, err error) {
	m.read(func(s *state) { ps, err = s.PaymentsByUser(ctx, userID) })
	return
}

func (m *Memory) InsertReview(ctx context.Context, r generic.Review) (err error) {
	m.write(func(s *state) { err = s.InsertReview(ctx, r) })
	return
}

func (m *Memory) ReviewsByCafe(ctx context.Context, cafeID generic.CafeID) (rs []generic.Review, err error) {
	m.read(func(s *state) { rs, err = s.ReviewsByCafe(ctx, cafeID) })
	return
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
// The write lock is held for the whole unit, so units never interleave.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(generic.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.st.clone()

	if err := fn(tm.st); err != nil {
		tm.st = snapshot
		return err
	}
	return nil
}
