package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

type RouterConfig struct {
	Service  Scheduler
	Postgres Check
	Redis    Check
	Metrics  HTTPObserver
	Logger   zerolog.Logger
	Env      string
	Version  string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger, cfg.Metrics))
	r.Use(middleware.Recoverer)

	// Health endpoints
	health := NewHealthHandler(cfg.Postgres, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	svc := cfg.Service
	r.Route("/orgs/{orgID}", func(r chi.Router) {
		r.Get("/slots", slotsHandler(svc))
		r.Get("/week", weekHandler(svc))
		r.Get("/conflicts", conflictsHandler(svc))
		r.Get("/capacity/overlaps", capacityOverlapsHandler(svc))
		r.Post("/rules/refresh", refreshRulesHandler(svc))

		r.Post("/moves", beginMoveHandler(svc))
		r.Get("/moves/{appointmentID}", moveStatusHandler(svc))
		r.Post("/moves/{appointmentID}/drop", dropHandler(svc))
		r.Post("/moves/{appointmentID}/confirm", confirmHandler(svc))
		r.Post("/moves/{appointmentID}/cancel", cancelHandler(svc))
		r.Post("/appointments/{appointmentID}/no-show", noShowHandler(svc))

		r.Get("/waitlist/matches", matchesHandler(svc))
		r.Post("/waitlist/{entryID}/response", offerResponseHandler(svc))
	})

	return r
}
