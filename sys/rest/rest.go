package rest

import (
	"log"
	"net/http"

	"tinedy-api/res/auth"
	"tinedy-api/res/ratelimit"
	"tinedy-api/res/store"
	"tinedy-api/sys/booking"
	"tinedy-api/sys/http/middleware"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

type Config struct {
	Logger   *log.Logger
	Store    store.Store
	Bookings *booking.Service
	Auth     auth.Auth
	Limiter  ratelimit.Limiter
	CORS     middleware.CORSOptions
}

type Server struct {
	*Config
}

// New returns the HTTP API with its middleware stack
func New(cfg *Config) http.Handler {
	s := &Server{Config: cfg}
	mutators := []auth.Role{auth.RoleAdmin, auth.RoleOperator}

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CSPMiddleware())
	r.Use(middleware.CORSMiddleware(cfg.CORS))

	r.Get("/healthz", s.Health)

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(cfg.Logger, cfg.Auth))

		// Any authenticated principal
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRoles(cfg.Logger))

			r.Get("/bookings", s.ListBookings)
			r.Get("/bookings/{id}", s.GetBooking)
			r.Get("/bookings/{id}/duplicate", s.PrepareDuplicate)
			r.Get("/bookings/{id}/links", s.GetLinks)
			r.Get("/rate-limit", s.RateLimitStatus)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRoles(cfg.Logger, mutators...))

			r.Post("/bookings", s.CreateBooking)
			r.Patch("/bookings/{id}", s.EditBooking)
			r.Post("/bookings/{id}/assign", s.AssignStaff)

			r.With(middleware.RateLimitMiddleware(cfg.Logger, cfg.Limiter)).
				Patch("/bookings/{id}/status", s.UpdateStatus)
		})

		r.With(middleware.RequireRoles(cfg.Logger, auth.RoleAdmin)).
			Delete("/rate-limit/{principalId}", s.ResetRateLimit)
	})

	return r
}

func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	if err := s.Store.Ping(r.Context()); err != nil {
		s.Logger.Printf("Health check failed: %v", err)
		middleware.WriteError(w, s.Logger, http.StatusServiceUnavailable, "UNAVAILABLE", "database unavailable", nil)
		return
	}
	middleware.WriteJSON(w, s.Logger, http.StatusOK, map[string]any{"status": "ok"})
}
