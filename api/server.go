/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client address behind a proxy
  3. Logger:     One logrus entry per request (logger.Middleware)
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. Metrics:    Prometheus request count and latency per route
  6. CORS:       Cross-origin requests for a frontend

ROUTE GROUPS:
  /api/duties/*         Duty CRUD and legality
  /api/rolling, /api/flags, /api/stats, /api/whatif
  /api/monitor          Last rolling monitor run (scheduler.go)
  /api/sleep/*          Sleep log
  /api/settings         Fatigue settings
  /api/rules            Active rules document
  /api/scenarios/*      Demo scenarios
  /metrics              Prometheus scrape endpoint
  /healthz              Store liveness

SECURITY NOTE:
  No authentication middleware. The service is meant for one crew member on
  their own device.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/dutyengine: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/warp/duty-engine/logger"
)

// RouterConfig carries the HTTP options that come from configuration.
type RouterConfig struct {
	CORSOrigins    []string
	MetricsEnabled bool
	Monitor        *RollingMonitor // nil leaves /api/monitor unmounted
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logger.Middleware(h.Log))
	r.Use(middleware.Recoverer)
	if cfg.MetricsEnabled {
		r.Use(h.Metrics.Middleware)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/healthz", h.Health)
	if cfg.MetricsEnabled {
		r.Method(http.MethodGet, "/metrics", h.Metrics.Handler())
	}

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Route("/duties", func(r chi.Router) {
			r.Get("/", h.ListDuties)
			r.Post("/", h.CreateDuty)
			r.Get("/{id}", h.GetDuty)
			r.Put("/{id}", h.UpdateDuty)
			r.Delete("/{id}", h.DeleteDuty)
			r.Get("/{id}/legality", h.GetLegality)
		})

		r.Get("/rolling", h.GetRolling)
		r.Get("/flags", h.GetFlags)
		r.Get("/stats", h.GetStats)
		r.Post("/whatif", h.WhatIf)
		if cfg.Monitor != nil {
			r.Get("/monitor", cfg.Monitor.ServeLast)
		}

		r.Route("/sleep", func(r chi.Router) {
			r.Get("/", h.ListSleep)
			r.Post("/", h.CreateSleep)
			r.Delete("/{id}", h.DeleteSleep)
		})

		r.Get("/settings", h.GetSettings)
		r.Put("/settings", h.UpdateSettings)
		r.Get("/rules", h.GetRules)

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	return r
}
