// Package http assembles the admin HTTP route tree: health probes, metrics,
// and CRUD endpoints over the engine's four Config Store aggregates.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/webhookd/engine/internal/infrastructure/monitoring/logging"
	"github.com/webhookd/engine/internal/infrastructure/monitoring/prometheus"
	"github.com/webhookd/engine/internal/interfaces/http/handlers"
	"github.com/webhookd/engine/internal/interfaces/http/middleware"
)

// RouterConfig aggregates all handler and middleware dependencies required
// to construct the complete HTTP route tree.
type RouterConfig struct {
	// Handlers
	HealthHandler       *handlers.HealthHandler
	CallbackHandler     *handlers.CallbackHandler
	AuthDomainHandler   *handlers.AuthDomainHandler
	SubscriptionHandler *handlers.SubscriptionHandler
	ExecutionHandler    *handlers.ExecutionHandler

	// Middleware
	AuthMiddleware *middleware.AuthMiddleware
	CORSMiddleware *middleware.CORSMiddleware
	RateLimiter    middleware.RateLimiter

	// MetricsHandler serves the Prometheus scrape endpoint, if configured.
	MetricsHandler http.Handler

	// MaxBodyBytes caps every request body, if positive. Zero leaves bodies
	// unbounded (net/http's own default).
	MaxBodyBytes int64

	// AppMetrics, if set, records per-request counters/histograms for every
	// request passing through the router.
	AppMetrics *prometheus.AppMetrics

	Logger logging.Logger
}

// NewRouter constructs the complete HTTP route tree from the given
// configuration. It wires global middleware, public health/metrics
// endpoints, and authenticated admin resource groups into a single
// http.Handler suitable for use with http.Server.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// --- Global middleware (applied to every request) ---
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.MaxBodyBytes(cfg.MaxBodyBytes))

	if cfg.CORSMiddleware != nil {
		r.Use(cfg.CORSMiddleware.Handler)
	}
	if cfg.AppMetrics != nil {
		r.Use(middleware.Metrics(cfg.AppMetrics))
	}
	if cfg.Logger != nil {
		r.Use(middleware.RequestLogging(cfg.Logger, middleware.DefaultLoggingConfig()))
	}
	if cfg.RateLimiter != nil {
		r.Use(middleware.RateLimit(cfg.RateLimiter, middleware.DefaultRateLimitConfig()))
	}

	// --- Public endpoints (no auth) ---
	r.Group(func(pub chi.Router) {
		if cfg.HealthHandler != nil {
			pub.Get("/healthz", cfg.HealthHandler.Liveness)
			pub.Get("/readyz", cfg.HealthHandler.Readiness)
			pub.Get("/healthz/detail", cfg.HealthHandler.Detailed)
		}
		if cfg.MetricsHandler != nil {
			pub.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// --- Admin API (authenticated) ---
	r.Route("/api/v1", func(api chi.Router) {
		if cfg.AuthMiddleware != nil {
			api.Use(cfg.AuthMiddleware.Handler)
		}

		registerCallbackRoutes(api, cfg.CallbackHandler, cfg.ExecutionHandler)
		registerAuthDomainRoutes(api, cfg.AuthDomainHandler)
		registerSubscriptionRoutes(api, cfg.SubscriptionHandler)
		registerExecutionRoutes(api, cfg.ExecutionHandler)
	})

	return r
}

// registerCallbackRoutes mounts CallbackConfiguration endpoints under
// /callback-configurations, including the nested executions read path.
func registerCallbackRoutes(r chi.Router, h *handlers.CallbackHandler, exec *handlers.ExecutionHandler) {
	if h == nil {
		return
	}
	r.Route("/callback-configurations", func(cr chi.Router) {
		cr.Get("/", h.List)
		cr.Post("/", h.Create)

		cr.Route("/{id}", func(item chi.Router) {
			item.Get("/", h.Get)
			item.Delete("/", h.Delete)
			item.Patch("/status", h.UpdateStatus)
			if exec != nil {
				item.Get("/executions", exec.ListByConfiguration)
			}
		})
	})
}

// registerAuthDomainRoutes mounts AuthorizedDomain endpoints under
// /authorized-domains.
func registerAuthDomainRoutes(r chi.Router, h *handlers.AuthDomainHandler) {
	if h == nil {
		return
	}
	r.Route("/authorized-domains", func(dr chi.Router) {
		dr.Get("/", h.List)
		dr.Post("/", h.Create)

		dr.Route("/{id}", func(item chi.Router) {
			item.Get("/", h.Get)
			item.Delete("/", h.Delete)
		})
	})
}

// registerSubscriptionRoutes mounts Subscription endpoints under
// /subscriptions.
func registerSubscriptionRoutes(r chi.Router, h *handlers.SubscriptionHandler) {
	if h == nil {
		return
	}
	r.Route("/subscriptions", func(sr chi.Router) {
		sr.Get("/", h.List)
		sr.Post("/", h.Create)

		sr.Route("/{id}", func(item chi.Router) {
			item.Get("/", h.Get)
			item.Delete("/", h.Delete)
			item.Post("/activate", h.Activate)
			item.Post("/deactivate", h.Deactivate)
		})
	})
}

// registerExecutionRoutes mounts the read-only CallbackExecution endpoint
// under /callback-executions.
func registerExecutionRoutes(r chi.Router, h *handlers.ExecutionHandler) {
	if h == nil {
		return
	}
	r.Route("/callback-executions", func(er chi.Router) {
		er.Get("/{id}", h.Get)
	})
}
