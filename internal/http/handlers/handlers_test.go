package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/travelika/forest-bookings/internal/booking"
	"github.com/travelika/forest-bookings/internal/domain"
	"github.com/travelika/forest-bookings/internal/ledger"
	"github.com/travelika/forest-bookings/internal/session"
	"github.com/travelika/forest-bookings/pkg/events"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	store := ledger.NewMemory()
	bus := events.NewMemoryEventBus()
	t.Cleanup(func() {
		store.Close()
		bus.Close()
	})

	sessions := session.NewManager(store, "test-secret", 7*24*time.Hour, false)
	svc := booking.NewService(store, bus)

	return NewRouter(NewAuthHandler(sessions), NewBookingsHandler(svc, sessions), sessions)
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func registerAndLogin(t *testing.T, router http.Handler) *http.Cookie {
	t.Helper()

	rec := doJSON(t, router, http.MethodPost, "/v1/auth/register", map[string]string{
		"name": "Sena", "email": "sena@example.com", "password": "hutan123",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	// Registration signs the account in straight away.
	registered := false
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName && c.Value != "" {
			registered = true
		}
	}
	require.True(t, registered, "register set no session cookie")

	rec = doJSON(t, router, http.MethodPost, "/v1/auth/login", map[string]string{
		"email": "sena@example.com", "password": "hutan123",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName {
			return c
		}
	}
	t.Fatal("login set no session cookie")
	return nil
}

func tripPayload() map[string]any {
	return map[string]any{
		"forest":         "AMAZON",
		"pickup":         "Manaus",
		"date_in":        "2026-03-10",
		"date_out":       "2026-03-13",
		"guests":         2,
		"package":        "explorer",
		"need_transport": true,
		"need_lodging":   true,
	}
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(t)
	rec := doJSON(t, router, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestRegisterLoginMe(t *testing.T) {
	router := newTestRouter(t)
	cookie := registerAndLogin(t, router)

	rec := doJSON(t, router, http.MethodGet, "/v1/auth/me", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	var sess domain.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	assert.Equal(t, "sena@example.com", sess.Email)
	assert.Equal(t, "Sena", sess.Name)

	rec = doJSON(t, router, http.MethodGet, "/v1/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegisterRejectsBadInput(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/v1/auth/register", map[string]string{
		"name": "Sena", "email": "not-an-email", "password": "hutan123",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_INPUT")
}

func TestRegisterDuplicateEmailConflicts(t *testing.T) {
	router := newTestRouter(t)
	registerAndLogin(t, router)

	rec := doJSON(t, router, http.MethodPost, "/v1/auth/register", map[string]string{
		"name": "Other", "email": "SENA@example.com", "password": "lainnya1",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "EMAIL_EXISTS")
}

func TestLoginBadCredentials(t *testing.T) {
	router := newTestRouter(t)
	registerAndLogin(t, router)

	rec := doJSON(t, router, http.MethodPost, "/v1/auth/login", map[string]string{
		"email": "sena@example.com", "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginEchoesNextHint(t *testing.T) {
	router := newTestRouter(t)
	registerAndLogin(t, router)

	rec := doJSON(t, router, http.MethodPost, "/v1/auth/login", map[string]string{
		"email": "sena@example.com", "password": "hutan123", "next": "/mybookings",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Next string `json:"next"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "/mybookings", resp.Next)
}

func TestLogoutExpiresCookie(t *testing.T) {
	router := newTestRouter(t)
	cookie := registerAndLogin(t, router)

	rec := doJSON(t, router, http.MethodPost, "/v1/auth/logout", nil, cookie)
	require.Equal(t, http.StatusNoContent, rec.Code)

	var cleared *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName {
			cleared = c
		}
	}
	require.NotNil(t, cleared)
	assert.Negative(t, cleared.MaxAge)
}

func TestQuoteIsOpenAndRemembersVisit(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/v1/quote", tripPayload())
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Breakdown struct {
			Days  int   `json:"days"`
			Total int64 `json:"total"`
		} `json:"breakdown"`
		Destinations []struct {
			Forest string `json:"forest"`
		} `json:"destinations"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Breakdown.Days)
	assert.Equal(t, int64(10_060_000), resp.Breakdown.Total)
	require.Len(t, resp.Destinations, 7)

	var visit *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.VisitCookieName {
			visit = c
		}
	}
	require.NotNil(t, visit)

	rec = doJSON(t, router, http.MethodGet, "/v1/visit", nil, visit)
	require.Equal(t, http.StatusOK, rec.Code)

	var remembered struct {
		domain.TripConfig
		Subtotal int64 `json:"subtotal"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &remembered))
	assert.Equal(t, "AMAZON", remembered.Forest)
	assert.Equal(t, 2, remembered.Guests)
	assert.Equal(t, int64(10_060_000), remembered.Subtotal)
}

func TestLastVisitWithoutCookie(t *testing.T) {
	router := newTestRouter(t)
	rec := doJSON(t, router, http.MethodGet, "/v1/visit", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBookingEndpointsRequireSession(t *testing.T) {
	router := newTestRouter(t)

	paths := []struct{ method, path string }{
		{http.MethodPost, "/v1/bookings"},
		{http.MethodGet, "/v1/bookings"},
		{http.MethodGet, "/v1/bookings/1"},
		{http.MethodPost, "/v1/bookings/1/pay"},
		{http.MethodPost, "/v1/reset"},
	}
	for _, p := range paths {
		rec := doJSON(t, router, p.method, p.path, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", p.method, p.path)
	}

	// The 401 body names the path to come back to after login.
	rec := doJSON(t, router, http.MethodGet, "/v1/bookings", nil)
	var resp struct {
		Next string `json:"next"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "/v1/bookings", resp.Next)
}

func TestBookingLifecycle(t *testing.T) {
	router := newTestRouter(t)
	cookie := registerAndLogin(t, router)

	rec := doJSON(t, router, http.MethodPost, "/v1/bookings", tripPayload(), cookie)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created domain.Booking
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Regexp(t, `^TIKA-\d{6}-[A-Z0-9]{4}$`, created.Code)
	assert.Equal(t, domain.BookingPending, created.Status)
	assert.Equal(t, int64(10_060_000), created.Subtotal)

	rec = doJSON(t, router, http.MethodGet, "/v1/bookings", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []domain.Booking
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)

	payPath := fmt.Sprintf("/v1/bookings/%d/pay", created.ID)
	rec = doJSON(t, router, http.MethodPost, payPath, map[string]string{"method": "qris"}, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	var paid domain.Booking
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &paid))
	assert.Equal(t, domain.BookingPaid, paid.Status)
	assert.Equal(t, "QRIS", paid.PaidMethod)
	assert.NotNil(t, paid.PaidAt)

	rec = doJSON(t, router, http.MethodPost, payPath, map[string]string{"method": "qris"}, cookie)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "ALREADY_PAID")

	detailPath := fmt.Sprintf("/v1/bookings/%d", created.ID)
	rec = doJSON(t, router, http.MethodGet, detailPath, nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	var detail booking.Detail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.Equal(t, created.Code, detail.Booking.Code)
	require.Len(t, detail.Payments, 1)
	assert.Equal(t, created.Subtotal, detail.Payments[0].Amount)

	rec = doJSON(t, router, http.MethodPost, "/v1/reset", nil, cookie)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/v1/bookings", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	list = nil
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Empty(t, list)

	// Account survives the reset.
	rec = doJSON(t, router, http.MethodGet, "/v1/auth/me", nil, cookie)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetBookingBadID(t *testing.T) {
	router := newTestRouter(t)
	cookie := registerAndLogin(t, router)

	rec := doJSON(t, router, http.MethodGet, "/v1/bookings/abc", nil, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetBookingNotFound(t *testing.T) {
	router := newTestRouter(t)
	cookie := registerAndLogin(t, router)

	rec := doJSON(t, router, http.MethodGet, "/v1/bookings/404", nil, cookie)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuthRateLimit(t *testing.T) {
	router := newTestRouter(t)

	var last int
	for i := 0; i < 11; i++ {
		rec := doJSON(t, router, http.MethodPost, "/v1/auth/login", map[string]string{
			"email": "sena@example.com", "password": "wrong",
		})
		last = rec.Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}
