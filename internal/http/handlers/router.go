package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	httpmw "github.com/travelika/forest-bookings/internal/http/middleware"
	"github.com/travelika/forest-bookings/internal/session"
	pkgmw "github.com/travelika/forest-bookings/pkg/middleware"
)

// NewRouter assembles the full HTTP surface. Everything under /v1/bookings
// and /v1/reset requires a session; quote and the visit cookie are open.
func NewRouter(auth *AuthHandler, bookings *BookingsHandler, sessions *session.Manager) http.Handler {
	r := chi.NewRouter()

	r.Use(pkgmw.RequestID)
	r.Use(pkgmw.Logging)
	r.Use(pkgmw.Health)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(httpmw.Session(sessions))

	authLimiter := httpmw.NewRateLimiter(10, time.Minute)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(authLimiter.Middleware()).Post("/register", auth.Register)
			r.With(authLimiter.Middleware()).Post("/login", auth.Login)
			r.Post("/logout", auth.Logout)
			r.Get("/me", auth.Me)
		})

		r.Post("/quote", bookings.Quote)
		r.Get("/visit", bookings.LastVisit)

		r.Group(func(r chi.Router) {
			r.Use(httpmw.RequireSession)
			r.Post("/bookings", bookings.Create)
			r.Get("/bookings", bookings.List)
			r.Get("/bookings/{id}", bookings.Get)
			r.Post("/bookings/{id}/pay", bookings.Pay)
			r.Post("/reset", bookings.Reset)
		})
	})

	return r
}
