package middleware

import (
	"context"
	"net/http"

	"github.com/travelika/forest-bookings/internal/domain"
	"github.com/travelika/forest-bookings/internal/http/response"
	"github.com/travelika/forest-bookings/internal/session"
	"github.com/travelika/forest-bookings/pkg/logger"
)

type contextKey string

const sessionKey contextKey = "session"

// Session resolves the session cookie into a *domain.Session on the
// request context. Requests without a valid cookie pass through
// anonymously; endpoints that need identity add RequireSession.
func Session(manager *session.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(session.CookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			sess, err := manager.Verify(cookie.Value)
			if err != nil {
				// Expired or tampered: treat as anonymous.
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), sessionKey, sess)
			ctx = context.WithValue(ctx, logger.EmailKey, sess.Email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireSession rejects anonymous requests with a 401. The body carries
// the requested path as a next hint so a client can return after login.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if SessionFrom(r.Context()) == nil {
			response.WriteJSON(w, http.StatusUnauthorized, struct {
				Error string `json:"error"`
				Code  string `json:"code"`
				Next  string `json:"next"`
			}{
				Error: "sign in required",
				Code:  response.CodeUnauthorized,
				Next:  r.URL.RequestURI(),
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SessionFrom returns the request's session, or nil when anonymous.
func SessionFrom(ctx context.Context) *domain.Session {
	sess, _ := ctx.Value(sessionKey).(*domain.Session)
	return sess
}
