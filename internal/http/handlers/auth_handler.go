package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/travelika/forest-bookings/internal/domain"
	"github.com/travelika/forest-bookings/internal/http/middleware"
	"github.com/travelika/forest-bookings/internal/http/response"
)

// SessionManager is what the auth endpoints need from the session layer.
type SessionManager interface {
	Register(ctx context.Context, name, email, password string) (*domain.Account, error)
	Login(ctx context.Context, email, password string) (*domain.Session, string, error)
	Cookie(token string) *http.Cookie
	ClearCookie() *http.Cookie
}

type AuthHandler struct {
	sessions SessionManager
}

func NewAuthHandler(sessions SessionManager) *AuthHandler {
	return &AuthHandler{sessions: sessions}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	acc, err := h.sessions.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		response.FromError(w, err)
		return
	}

	// Fresh accounts are signed in immediately.
	if _, token, err := h.sessions.Login(r.Context(), acc.Email, req.Password); err == nil {
		http.SetCookie(w, h.sessions.Cookie(token))
	}

	response.WriteJSON(w, http.StatusCreated, acc)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	// Next is an optional client-side destination echoed back after login.
	Next string `json:"next,omitempty"`
}

type loginResponse struct {
	*domain.Session
	Next string `json:"next,omitempty"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	sess, token, err := h.sessions.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		response.FromError(w, err)
		return
	}

	http.SetCookie(w, h.sessions.Cookie(token))
	response.WriteJSON(w, http.StatusOK, loginResponse{Session: sess, Next: req.Next})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, h.sessions.ClearCookie())
	w.WriteHeader(http.StatusNoContent)
}

// Me reports who the cookie says is signed in.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFrom(r.Context())
	if sess == nil {
		response.Unauthorized(w, "sign in required")
		return
	}
	response.WriteJSON(w, http.StatusOK, sess)
}
