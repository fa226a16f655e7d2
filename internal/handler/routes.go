package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"clinic-booking/internal/grpcfeed"
	"clinic-booking/internal/middleware"
	"clinic-booking/internal/model"
)

type RouterConfig struct {
	Auth        *middleware.Authenticator
	Limiter     *middleware.RateLimiter
	CORSOrigins []string
	Metrics     http.Handler
	// GRPCWeb, when set, serves the feed to browsers under its gRPC path.
	GRPCWeb http.Handler
	Timeout time.Duration
}

// Router wires every endpoint with its auth and rate limit policy.
func (h *Handler) Router(cfg RouterConfig) http.Handler {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(h.log))
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(chimw.Timeout(cfg.Timeout))

	limited := func(next http.Handler) http.Handler { return next }
	if cfg.Limiter != nil {
		limited = middleware.RateLimit(cfg.Limiter)
	}

	r.Get("/health", h.Health)
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}
	if cfg.GRPCWeb != nil {
		r.Handle("/"+grpcfeed.ServiceName+"/*", cfg.GRPCWeb)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/catalog", h.Catalog)
		r.With(limited).Post("/auth/login", h.Login)
		r.With(limited).Post("/appointments", h.CreateAppointment)

		r.Group(func(r chi.Router) {
			r.Use(cfg.Auth.HTTP)
			r.Post("/auth/logout", h.Logout)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(model.RoleAdmin))
				r.Post("/auth/register", h.Register)
				r.Get("/appointments", h.ListAppointments)
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(model.RoleDoctor, model.RoleAdmin))
				r.Get("/appointments/{id}", h.ListDoctorAppointments)
				r.Patch("/appointments/{id}/status", h.UpdateStatus)
			})
		})
	})
	return r
}
