/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Recoverer:  Panic recovery (500 instead of crash)
  2. RequestID:  Unique ID per request for tracing
  3. hlog:       Request-scoped zerolog logger and access log
  4. CORS:       Cross-origin requests for frontends

ROUTE GROUPS:
  /healthz              Liveness plus store ping
  /metrics              Prometheus scrape endpoint
  /api/cafes/*          Public café, availability and review reads
  /api/bookings/*       Authenticated + rate limited
  /api/wallet/*         Authenticated + rate limited
  /api/admin/*          Authenticated + admin role

SEE ALSO:
  - handlers.go: Handler implementations
  - auth.go, ratelimit.go: Route-group middleware
  - cmd/server/main.go: Server startup
*/
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// RouterConfig carries the cross-cutting pieces the routes need.
type RouterConfig struct {
	Logger      zerolog.Logger
	Auth        *Authenticator
	Limiter     *RateLimiter
	CORSOrigins []string
	// Ready is called by /healthz; nil means always ready.
	Ready func(ctx context.Context) error
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(hlog.NewHandler(cfg.Logger))
	r.Use(hlog.RequestIDHandler("request_id", "X-Request-Id"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, d time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", d).
			Msg("request")
	}))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if cfg.Ready != nil {
			if err := cfg.Ready(r.Context()); err != nil {
				writeError(w, http.StatusServiceUnavailable, "Not ready", err)
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Route("/cafes", func(r chi.Router) {
			r.Get("/", h.ListCafes)
			r.Get("/{id}", h.GetCafe)
			r.Get("/{id}/availability", h.GetAvailability)
			r.Get("/{id}/reviews", h.GetReviews)
		})

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(cfg.Auth.Middleware)
			if cfg.Limiter != nil {
				r.Use(cfg.Limiter.Middleware)
			}

			r.Route("/bookings", func(r chi.Router) {
				r.Post("/", h.CreateBooking)
				r.Get("/me", h.MyBookings)
				r.Get("/{id}", h.GetBooking)
				r.Post("/{id}/cancel", h.CancelBooking)
			})

			r.Route("/wallet", func(r chi.Router) {
				r.Post("/recharge", h.Recharge)
				r.Get("/payments", h.Payments)
			})

			r.Get("/me", h.Me)
			r.Post("/reviews", h.SubmitReview)

			// Admin routes
			r.Route("/admin", func(r chi.Router) {
				r.Use(RequireAdmin)
				r.Get("/cafes/{id}/bookings", h.CafeBookings)
				r.Get("/cafes/{id}/bookings/export", h.ExportCafeBookings)
				r.Get("/cafes/{id}/blocks", h.CafeBlocks)
				r.Put("/cafes/{id}", h.SaveCafe)
				r.Put("/users/{id}", h.SaveUser)
				r.Put("/bookings/{id}/status", h.UpdateStatus)
				r.Post("/blocks", h.BlockSlot)
				r.Delete("/blocks/{id}", h.UnblockSlot)
			})
		})
	})

	return r
}
