package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/travelika/forest-bookings/internal/booking"
	"github.com/travelika/forest-bookings/internal/domain"
	"github.com/travelika/forest-bookings/internal/http/middleware"
	"github.com/travelika/forest-bookings/internal/http/response"
	"github.com/travelika/forest-bookings/internal/pricing"
	"github.com/travelika/forest-bookings/internal/session"
)

// BookingService is what the booking endpoints need from the orchestrator.
type BookingService interface {
	CreatePending(ctx context.Context, sess *domain.Session, cfg domain.TripConfig) (*domain.Booking, error)
	ListByEmail(ctx context.Context, sess *domain.Session) ([]domain.Booking, error)
	Get(ctx context.Context, sess *domain.Session, id int64) (*booking.Detail, error)
	MarkPaid(ctx context.Context, sess *domain.Session, id int64, method string) (*domain.Booking, error)
	Reset(ctx context.Context, sess *domain.Session) error
}

// VisitCookier issues and clears the trip-prefill cookie.
type VisitCookier interface {
	VisitCookie(value string) *http.Cookie
	ClearVisitCookie() *http.Cookie
}

type BookingsHandler struct {
	bookings BookingService
	cookies  VisitCookier
}

func NewBookingsHandler(bookings BookingService, cookies VisitCookier) *BookingsHandler {
	return &BookingsHandler{bookings: bookings, cookies: cookies}
}

type quoteResponse struct {
	Breakdown    pricing.Breakdown          `json:"breakdown"`
	Destinations []pricing.DestinationQuote `json:"destinations"`
}

type visitRecord struct {
	domain.TripConfig
	Subtotal int64 `json:"subtotal"`
}

// Quote prices a trip without storing anything, and remembers the config
// plus its subtotal in the visit cookie so the form can be prefilled next
// time.
func (h *BookingsHandler) Quote(w http.ResponseWriter, r *http.Request) {
	var cfg domain.TripConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	breakdown := pricing.Compute(cfg)

	if raw, err := json.Marshal(visitRecord{TripConfig: cfg, Subtotal: breakdown.Total}); err == nil {
		http.SetCookie(w, h.cookies.VisitCookie(url.QueryEscape(string(raw))))
	}

	response.WriteJSON(w, http.StatusOK, quoteResponse{
		Breakdown:    breakdown,
		Destinations: pricing.Destinations(cfg),
	})
}

// LastVisit returns the trip remembered by the visit cookie.
func (h *BookingsHandler) LastVisit(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(session.VisitCookieName)
	if err != nil || cookie.Value == "" {
		response.NotFound(w, "no remembered trip")
		return
	}
	raw, err := url.QueryUnescape(cookie.Value)
	if err != nil {
		response.NotFound(w, "no remembered trip")
		return
	}
	var visit visitRecord
	if err := json.Unmarshal([]byte(raw), &visit); err != nil {
		response.NotFound(w, "no remembered trip")
		return
	}
	response.WriteJSON(w, http.StatusOK, visit)
}

func (h *BookingsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var cfg domain.TripConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	b, err := h.bookings.CreatePending(r.Context(), middleware.SessionFrom(r.Context()), cfg)
	if err != nil {
		response.FromError(w, err)
		return
	}

	// The prefill has served its purpose once the booking exists.
	http.SetCookie(w, h.cookies.ClearVisitCookie())
	response.WriteJSON(w, http.StatusCreated, b)
}

func (h *BookingsHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.bookings.ListByEmail(r.Context(), middleware.SessionFrom(r.Context()))
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, list)
}

func (h *BookingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := bookingID(w, r)
	if !ok {
		return
	}
	detail, err := h.bookings.Get(r.Context(), middleware.SessionFrom(r.Context()), id)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, detail)
}

type payRequest struct {
	Method string `json:"method"`
}

func (h *BookingsHandler) Pay(w http.ResponseWriter, r *http.Request) {
	id, ok := bookingID(w, r)
	if !ok {
		return
	}

	var req payRequest
	if r.Body != nil {
		// Empty or absent body means the default method.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	b, err := h.bookings.MarkPaid(r.Context(), middleware.SessionFrom(r.Context()), id, req.Method)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, b)
}

func (h *BookingsHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.bookings.Reset(r.Context(), middleware.SessionFrom(r.Context())); err != nil {
		response.FromError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func bookingID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		response.BadRequest(w, "invalid booking id")
		return 0, false
	}
	return id, true
}
