/*
handlers.go - HTTP API handlers for the café booking service

PURPOSE:
  Exposes the booking engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates every rule to booking.Engine.

ENDPOINTS:
  Public:
    GET    /api/cafes                          List cafés
    GET    /api/cafes/{id}                     Café details
    GET    /api/cafes/{id}/availability?date=  Slot availability for a date
    GET    /api/cafes/{id}/reviews             Reviews and average rating

  Authenticated (bearer token):
    POST   /api/bookings                       Book a slot
    GET    /api/bookings/me                    Caller's bookings
    GET    /api/bookings/{id}                  Booking details (owner or admin)
    POST   /api/bookings/{id}/cancel           Cancel with tiered refund
    POST   /api/wallet/recharge                Top up the caller's wallet
    GET    /api/wallet/payments                Caller's wallet movements
    GET    /api/me                             Caller's profile and balance
    POST   /api/reviews                        Review a past booking

  Admin:
    GET    /api/admin/cafes/{id}/bookings         All bookings of a café
    GET    /api/admin/cafes/{id}/bookings/export  Same, as XLSX
    GET    /api/admin/cafes/{id}/blocks?date=     Slot blocks of a date
    PUT    /api/admin/cafes/{id}                  Create or replace a café
    PUT    /api/admin/users/{id}                  Create or update a user
    PUT    /api/admin/bookings/{id}/status        Lifecycle transition
    POST   /api/admin/blocks                      Block a slot
    DELETE /api/admin/blocks/{id}                 Remove an admin block

REQUEST FLOW:
  1. Parse HTTP request
  2. Resolve the caller (auth middleware)
  3. Call the engine
  4. Serialize response
  5. Map the error kind to a status

ERROR HANDLING:
  Errors are returned as JSON with the kind in "code":
  - 400: validation_error
  - 402: insufficient_funds
  - 403: unauthorized
  - 404: not_found
  - 409: capacity_exceeded, slot_unavailable, already_finalized
  - 500: configuration_error, internal

SEE ALSO:
  - dto.go: Request/response data structures
  - auth.go: Bearer token validation
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"
	"github.com/warp/cafe-booking/booking"
	"github.com/warp/cafe-booking/generic"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine *booking.Engine
}

func NewHandler(engine *booking.Engine) *Handler {
	return &Handler{Engine: engine}
}

// caller is set by the auth middleware on every authenticated route.
func caller(r *http.Request) booking.Caller {
	c, _ := CallerFrom(r.Context())
	return c
}

// =============================================================================
// CAFÉ HANDLERS
// =============================================================================

func (h *Handler) ListCafes(w http.ResponseWriter, r *http.Request) {
	cafes, err := h.Engine.ListCafes(r.Context())
	if err != nil {
		respondError(w, r, "Failed to list cafés", err)
		return
	}
	dtos := make([]CafeDTO, 0, len(cafes))
	for _, c := range cafes {
		dtos = append(dtos, toCafeDTO(c))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetCafe(w http.ResponseWriter, r *http.Request) {
	cafe, err := h.Engine.GetCafe(r.Context(), generic.CafeID(chi.URLParam(r, "id")))
	if err != nil {
		respondError(w, r, "Failed to get café", err)
		return
	}
	writeJSON(w, http.StatusOK, toCafeDTO(cafe))
}

// GetAvailability returns the slots of a date. Past dates yield an empty list;
// today only lists slots that have not started.
func (h *Handler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	cafeID := chi.URLParam(r, "id")
	date, err := generic.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}

	rows, err := h.Engine.Availability(r.Context(), generic.CafeID(cafeID), date)
	if err != nil {
		respondError(w, r, "Failed to resolve availability", err)
		return
	}
	if rows == nil {
		rows = []booking.SlotAvailability{}
	}
	writeJSON(w, http.StatusOK, AvailabilityResponse{
		CafeID: cafeID,
		Date:   generic.FormatDate(date),
		Slots:  rows,
	})
}

func (h *Handler) GetReviews(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cafeID := generic.CafeID(chi.URLParam(r, "id"))

	reviews, err := h.Engine.CafeReviews(ctx, cafeID)
	if err != nil {
		respondError(w, r, "Failed to list reviews", err)
		return
	}
	rating, err := h.Engine.CafeRating(ctx, cafeID)
	if err != nil {
		respondError(w, r, "Failed to compute rating", err)
		return
	}

	dtos := make([]ReviewDTO, 0, len(reviews))
	for _, rv := range reviews {
		dtos = append(dtos, toReviewDTO(rv))
	}
	writeJSON(w, http.StatusOK, ReviewsResponse{
		CafeID:        string(cafeID),
		AverageRating: rating.Average.StringFixed(1),
		ReviewCount:   rating.Count,
		Reviews:       dtos,
	})
}

// =============================================================================
// BOOKING HANDLERS
// =============================================================================

// CreateBooking books a slot for the caller. The hourly rate is debited from
// the caller's wallet in the same unit.
func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req CreateBookingRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, "Invalid request body", err)
		return
	}
	date, err := generic.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}

	res, err := h.Engine.CreateBooking(r.Context(), booking.CreateRequest{
		UserID:  caller(r).UserID,
		CafeID:  generic.CafeID(req.CafeID),
		Date:    date,
		Slot:    req.Slot,
		Players: req.Players,
	})
	if err != nil {
		respondError(w, r, "Failed to create booking", err)
		return
	}

	writeJSON(w, http.StatusCreated, CreateBookingResponse{
		Booking:       toBookingDTO(res.Booking),
		Payment:       toPaymentDTO(res.Payment),
		WalletBalance: res.WalletBalance.String(),
	})
}

func (h *Handler) MyBookings(w http.ResponseWriter, r *http.Request) {
	c := caller(r)
	bookings, err := h.Engine.ListUserBookings(r.Context(), c, c.UserID)
	if err != nil {
		respondError(w, r, "Failed to list bookings", err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingDTOs(bookings))
}

func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	b, err := h.Engine.GetBooking(r.Context(), caller(r), generic.BookingID(chi.URLParam(r, "id")))
	if err != nil {
		respondError(w, r, "Failed to get booking", err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingDTO(b))
}

// CancelBooking cancels a booking. The body is optional.
func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	var req CancelBookingRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, r, "Invalid request body", err)
			return
		}
	}

	res, err := h.Engine.CancelBooking(r.Context(), caller(r), generic.BookingID(chi.URLParam(r, "id")), req.Reason)
	if err != nil {
		respondError(w, r, "Failed to cancel booking", err)
		return
	}

	resp := CancelBookingResponse{
		Booking:            toBookingDTO(res.Booking),
		RefundAmount:       res.RefundAmount.String(),
		CancellationCharge: res.CancellationCharge.String(),
		RefundPolicy:       res.PolicyDescription,
		Tier:               string(res.Tier),
		WalletBalance:      res.WalletBalance.String(),
	}
	if res.Refund != nil {
		p := toPaymentDTO(*res.Refund)
		resp.Refund = &p
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// WALLET HANDLERS
// =============================================================================

func (h *Handler) Recharge(w http.ResponseWriter, r *http.Request) {
	var req RechargeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, "Invalid request body", err)
		return
	}
	amount, err := generic.ParseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	c := caller(r)
	payment, balance, err := h.Engine.Recharge(r.Context(), c, c.UserID, amount, generic.PaymentMethod(req.Method))
	if err != nil {
		respondError(w, r, "Failed to recharge wallet", err)
		return
	}
	writeJSON(w, http.StatusCreated, RechargeResponse{
		Payment:       toPaymentDTO(payment),
		WalletBalance: balance.String(),
	})
}

func (h *Handler) Payments(w http.ResponseWriter, r *http.Request) {
	c := caller(r)
	payments, err := h.Engine.Payments(r.Context(), c, c.UserID)
	if err != nil {
		respondError(w, r, "Failed to list payments", err)
		return
	}
	dtos := make([]PaymentDTO, 0, len(payments))
	for _, p := range payments {
		dtos = append(dtos, toPaymentDTO(p))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	c := caller(r)
	u, err := h.Engine.GetUser(r.Context(), c, c.UserID)
	if err != nil {
		respondError(w, r, "Failed to get user", err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(u))
}

// =============================================================================
// REVIEW HANDLERS
// =============================================================================

func (h *Handler) SubmitReview(w http.ResponseWriter, r *http.Request) {
	var req SubmitReviewRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, "Invalid request body", err)
		return
	}

	rv, err := h.Engine.SubmitReview(r.Context(), caller(r), booking.ReviewRequest{
		BookingID: generic.BookingID(req.BookingID),
		Rating:    req.Rating,
		Comment:   req.Comment,
	})
	if err != nil {
		respondError(w, r, "Failed to submit review", err)
		return
	}
	writeJSON(w, http.StatusCreated, toReviewDTO(rv))
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

func (h *Handler) CafeBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := h.Engine.ListCafeBookings(r.Context(), caller(r), generic.CafeID(chi.URLParam(r, "id")))
	if err != nil {
		respondError(w, r, "Failed to list bookings", err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingDTOs(bookings))
}

// ExportCafeBookings streams a café's bookings as an XLSX workbook.
func (h *Handler) ExportCafeBookings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cafeID := generic.CafeID(chi.URLParam(r, "id"))

	cafe, err := h.Engine.GetCafe(ctx, cafeID)
	if err != nil {
		respondError(w, r, "Failed to get café", err)
		return
	}
	bookings, err := h.Engine.ListCafeBookings(ctx, caller(r), cafeID)
	if err != nil {
		respondError(w, r, "Failed to list bookings", err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="bookings-%s.xlsx"`, cafeID))
	if err := writeBookingsWorkbook(w, cafe, bookings); err != nil {
		// Headers are gone; all we can do is log.
		hlog.FromRequest(r).Error().Err(err).Str("cafe_id", string(cafeID)).Msg("export failed")
	}
}

func (h *Handler) CafeBlocks(w http.ResponseWriter, r *http.Request) {
	date, err := generic.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}
	blocks, err := h.Engine.Blocks(r.Context(), generic.CafeID(chi.URLParam(r, "id")), date)
	if err != nil {
		respondError(w, r, "Failed to list blocks", err)
		return
	}
	dtos := make([]BlockDTO, 0, len(blocks))
	for _, b := range blocks {
		dtos = append(dtos, toBlockDTO(b))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) SaveCafe(w http.ResponseWriter, r *http.Request) {
	var req SaveCafeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, "Invalid request body", err)
		return
	}
	rate, err := generic.ParseAmount(req.HourlyRate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid hourly_rate", err)
		return
	}

	cafe, err := h.Engine.SaveCafe(r.Context(), caller(r), generic.Cafe{
		ID:          generic.CafeID(chi.URLParam(r, "id")),
		Name:        req.Name,
		City:        req.City,
		HourlyRate:  rate,
		Capacity:    req.Capacity,
		OpeningTime: req.OpeningTime,
		ClosingTime: req.ClosingTime,
	})
	if err != nil {
		respondError(w, r, "Failed to save café", err)
		return
	}
	writeJSON(w, http.StatusOK, toCafeDTO(cafe))
}

func (h *Handler) SaveUser(w http.ResponseWriter, r *http.Request) {
	var req SaveUserRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, "Invalid request body", err)
		return
	}

	u, err := h.Engine.SaveUser(r.Context(), caller(r), generic.User{
		ID:    generic.UserID(chi.URLParam(r, "id")),
		Name:  req.Name,
		Email: req.Email,
		Role:  generic.Role(strings.ToLower(req.Role)),
	})
	if err != nil {
		respondError(w, r, "Failed to save user", err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(u))
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, "Invalid request body", err)
		return
	}

	b, err := h.Engine.UpdateStatus(r.Context(), caller(r), generic.BookingID(chi.URLParam(r, "id")), generic.BookingStatus(req.Status))
	if err != nil {
		respondError(w, r, "Failed to update booking status", err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingDTO(b))
}

func (h *Handler) BlockSlot(w http.ResponseWriter, r *http.Request) {
	var req BlockRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, "Invalid request body", err)
		return
	}
	date, err := generic.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}

	block, err := h.Engine.BlockSlot(r.Context(), caller(r), booking.BlockRequest{
		CafeID: generic.CafeID(req.CafeID),
		Date:   date,
		Slot:   req.Slot,
		Reason: generic.BlockReason(req.Reason),
	})
	if err != nil {
		respondError(w, r, "Failed to block slot", err)
		return
	}
	writeJSON(w, http.StatusCreated, toBlockDTO(block))
}

func (h *Handler) UnblockSlot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Engine.UnblockSlot(r.Context(), caller(r), generic.BlockID(id)); err != nil {
		respondError(w, r, "Failed to unblock slot", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "unblocked",
		"block_id": id,
	})
}

// =============================================================================
// HELPERS
// =============================================================================

// decodeJSON reads one JSON object into v. Unknown fields, trailing data and
// a missing body are validation errors, as is any required field v reports
// missing.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return generic.Invalid("body", "is required")
		}
		if name, ok := strings.CutPrefix(err.Error(), "json: unknown field "); ok {
			return generic.Invalid(strings.Trim(name, `"`), "is not a known field")
		}
		return generic.Invalid("body", err.Error())
	}
	if dec.More() {
		return generic.Invalid("body", "must hold a single JSON object")
	}
	if req, ok := v.(interface{ validate() error }); ok {
		return req.validate()
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// statusFor maps an engine error kind to an HTTP status.
func statusFor(kind string) int {
	switch kind {
	case "not_found":
		return http.StatusNotFound
	case "validation_error":
		return http.StatusBadRequest
	case "unauthorized":
		return http.StatusForbidden
	case "capacity_exceeded", "slot_unavailable", "already_finalized":
		return http.StatusConflict
	case "insufficient_funds":
		return http.StatusPaymentRequired
	}
	return http.StatusInternalServerError
}

// respondError writes err with its kind as the code. Internal details are
// logged, not returned.
func respondError(w http.ResponseWriter, r *http.Request, message string, err error) {
	kind := generic.Kind(err)
	status := statusFor(kind)
	resp := ErrorResponse{Error: message, Code: kind}
	if status < http.StatusInternalServerError {
		resp.Details = err.Error()
	} else {
		hlog.FromRequest(r).Error().Err(err).Str("kind", kind).Msg(message)
	}
	writeJSON(w, status, resp)
}
