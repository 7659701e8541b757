/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract: amounts travel
  as decimal strings, dates as YYYY-MM-DD, instants as RFC 3339.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Café:     CafeDTO, SaveCafeRequest, AvailabilityResponse, ReviewsResponse
  Booking:  BookingDTO, CreateBookingRequest, CreateBookingResponse,
            CancelBookingRequest, CancelBookingResponse, UpdateStatusRequest
  Wallet:   PaymentDTO, RechargeRequest, RechargeResponse
  Blocks:   BlockDTO, BlockRequest
  Users:    UserDTO, SaveUserRequest
  Reviews:  ReviewDTO, SubmitReviewRequest

VALIDATION:
  Request bodies are decoded strictly (decodeJSON): unknown fields are
  rejected and each *Request reports its required fields via validate().
  Everything else (ranges, hours, ownership) is checked by the booking engine.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/warp/cafe-booking/booking"
	"github.com/warp/cafe-booking/generic"
)

// =============================================================================
// CAFÉ DTOs
// =============================================================================

type CafeDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	City        string `json:"city,omitempty"`
	HourlyRate  string `json:"hourly_rate"`
	Capacity    int    `json:"capacity"`
	OpeningTime string `json:"opening_time"`
	ClosingTime string `json:"closing_time"`
}

// SaveCafeRequest creates or replaces a café listing.
type SaveCafeRequest struct {
	Name        string `json:"name"`
	City        string `json:"city"`
	HourlyRate  string `json:"hourly_rate"`
	Capacity    int    `json:"capacity"`
	OpeningTime string `json:"opening_time"`
	ClosingTime string `json:"closing_time"`
}

type AvailabilityResponse struct {
	CafeID string                     `json:"cafe_id"`
	Date   string                     `json:"date"`
	Slots  []booking.SlotAvailability `json:"slots"`
}

type ReviewsResponse struct {
	CafeID        string      `json:"cafe_id"`
	AverageRating string      `json:"average_rating"`
	ReviewCount   int         `json:"review_count"`
	Reviews       []ReviewDTO `json:"reviews"`
}

// =============================================================================
// BOOKING DTOs
// =============================================================================

type BookingDTO struct {
	ID                 string `json:"id"`
	UserID             string `json:"user_id"`
	CafeID             string `json:"cafe_id"`
	Date               string `json:"date"`
	Slot               string `json:"slot"`
	Players            int    `json:"players"`
	TotalAmount        string `json:"total_amount"`
	Status             string `json:"status"`
	PaymentStatus      string `json:"payment_status"`
	CancellationReason string `json:"cancellation_reason,omitempty"`
	RefundAmount       string `json:"refund_amount"`
	Reviewed           bool   `json:"reviewed"`
	CreatedAt          string `json:"created_at"`
	UpdatedAt          string `json:"updated_at"`
}

// CreateBookingRequest books a slot for the authenticated user.
type CreateBookingRequest struct {
	CafeID  string `json:"cafe_id"`
	Date    string `json:"date"` // YYYY-MM-DD
	Slot    string `json:"slot"` // "14:00-15:00"
	Players int    `json:"players"`
}

type CreateBookingResponse struct {
	Booking       BookingDTO `json:"booking"`
	Payment       PaymentDTO `json:"payment"`
	WalletBalance string     `json:"wallet_balance"`
}

type CancelBookingRequest struct {
	Reason string `json:"reason,omitempty"`
}

type CancelBookingResponse struct {
	Booking            BookingDTO  `json:"booking"`
	RefundAmount       string      `json:"refund_amount"`
	CancellationCharge string      `json:"cancellation_charge"`
	RefundPolicy       string      `json:"refund_policy"`
	Tier               string      `json:"tier"`
	WalletBalance      string      `json:"wallet_balance"`
	Refund             *PaymentDTO `json:"refund,omitempty"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// =============================================================================
// WALLET DTOs
// =============================================================================

type PaymentDTO struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	BookingID string `json:"booking_id,omitempty"`
	Amount    string `json:"amount"`
	Type      string `json:"type"`
	Method    string `json:"method"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

type RechargeRequest struct {
	Amount string `json:"amount"`
	Method string `json:"method,omitempty"` // card (default), upi
}

type RechargeResponse struct {
	Payment       PaymentDTO `json:"payment"`
	WalletBalance string     `json:"wallet_balance"`
}

// =============================================================================
// BLOCK DTOs
// =============================================================================

type BlockDTO struct {
	ID        string `json:"id"`
	CafeID    string `json:"cafe_id"`
	Date      string `json:"date"`
	Slot      string `json:"slot"`
	Reason    string `json:"reason"`
	BookingID string `json:"booking_id,omitempty"`
	BlockedBy string `json:"blocked_by,omitempty"`
	CreatedAt string `json:"created_at"`
}

type BlockRequest struct {
	CafeID string `json:"cafe_id"`
	Date   string `json:"date"`
	Slot   string `json:"slot"`
	Reason string `json:"reason,omitempty"` // admin_blocked (default), maintenance, private_event
}

// =============================================================================
// USER DTOs
// =============================================================================

type UserDTO struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Email         string `json:"email,omitempty"`
	Role          string `json:"role"`
	WalletBalance string `json:"wallet_balance"`
}

// SaveUserRequest creates or updates a user. The wallet balance is not
// writable here; it only moves through recharges, bookings and refunds.
type SaveUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// =============================================================================
// REVIEW DTOs
// =============================================================================

type ReviewDTO struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	CafeID    string `json:"cafe_id"`
	BookingID string `json:"booking_id"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment,omitempty"`
	CreatedAt string `json:"created_at"`
}

type SubmitReviewRequest struct {
	BookingID string `json:"booking_id"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment"`
}

// =============================================================================
// COMMON
// =============================================================================

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// REQUIRED FIELDS
// =============================================================================

type field struct {
	name    string
	missing bool
}

// firstMissing reports the first missing field by its JSON name.
func firstMissing(fields ...field) error {
	for _, f := range fields {
		if f.missing {
			return generic.Invalid(f.name, "is required")
		}
	}
	return nil
}

func (r CreateBookingRequest) validate() error {
	return firstMissing(
		field{"cafe_id", r.CafeID == ""},
		field{"date", r.Date == ""},
		field{"slot", r.Slot == ""},
		field{"players", r.Players == 0},
	)
}

func (r UpdateStatusRequest) validate() error {
	return firstMissing(field{"status", r.Status == ""})
}

func (r RechargeRequest) validate() error {
	return firstMissing(field{"amount", r.Amount == ""})
}

func (r BlockRequest) validate() error {
	return firstMissing(
		field{"cafe_id", r.CafeID == ""},
		field{"date", r.Date == ""},
		field{"slot", r.Slot == ""},
	)
}

func (r SubmitReviewRequest) validate() error {
	return firstMissing(
		field{"booking_id", r.BookingID == ""},
		field{"rating", r.Rating == 0},
	)
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func stamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func toCafeDTO(c generic.Cafe) CafeDTO {
	return CafeDTO{
		ID:          string(c.ID),
		Name:        c.Name,
		City:        c.City,
		HourlyRate:  c.HourlyRate.String(),
		Capacity:    c.Capacity,
		OpeningTime: c.OpeningTime,
		ClosingTime: c.ClosingTime,
	}
}

func toBookingDTO(b generic.Booking) BookingDTO {
	return BookingDTO{
		ID:                 string(b.ID),
		UserID:             string(b.UserID),
		CafeID:             string(b.CafeID),
		Date:               generic.FormatDate(b.Date),
		Slot:               b.Slot,
		Players:            b.Players,
		TotalAmount:        b.TotalAmount.String(),
		Status:             string(b.Status),
		PaymentStatus:      string(b.PaymentStatus),
		CancellationReason: b.CancellationReason,
		RefundAmount:       b.RefundAmount.String(),
		Reviewed:           b.Reviewed,
		CreatedAt:          stamp(b.CreatedAt),
		UpdatedAt:          stamp(b.UpdatedAt),
	}
}

func toBookingDTOs(bs []generic.Booking) []BookingDTO {
	out := make([]BookingDTO, 0, len(bs))
	for _, b := range bs {
		out = append(out, toBookingDTO(b))
	}
	return out
}

func toPaymentDTO(p generic.Payment) PaymentDTO {
	return PaymentDTO{
		ID:        string(p.ID),
		UserID:    string(p.UserID),
		BookingID: string(p.BookingID),
		Amount:    p.Amount.String(),
		Type:      string(p.Type),
		Method:    string(p.Method),
		Status:    string(p.Status),
		CreatedAt: stamp(p.CreatedAt),
	}
}

func toBlockDTO(b generic.SlotBlock) BlockDTO {
	return BlockDTO{
		ID:        string(b.ID),
		CafeID:    string(b.CafeID),
		Date:      generic.FormatDate(b.Date),
		Slot:      b.Slot,
		Reason:    string(b.Reason),
		BookingID: string(b.BookingID),
		BlockedBy: string(b.BlockedBy),
		CreatedAt: stamp(b.CreatedAt),
	}
}

func toUserDTO(u generic.User) UserDTO {
	return UserDTO{
		ID:            string(u.ID),
		Name:          u.Name,
		Email:         u.Email,
		Role:          string(u.Role),
		WalletBalance: u.WalletBalance.String(),
	}
}

func toReviewDTO(r generic.Review) ReviewDTO {
	return ReviewDTO{
		ID:        string(r.ID),
		UserID:    string(r.UserID),
		CafeID:    string(r.CafeID),
		BookingID: string(r.BookingID),
		Rating:    r.Rating,
		Comment:   r.Comment,
		CreatedAt: stamp(r.CreatedAt),
	}
}
