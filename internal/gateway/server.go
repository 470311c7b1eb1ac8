package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(accessLog(g.logger))
	r.Use(g.metrics.Middleware)
	r.Use(middleware.Recoverer)

	// Public routes.
	r.Get("/", g.handleRoot())
	r.Post("/echo", g.handleEcho())
	r.Get("/user", g.handleUser())
	r.Get("/health", g.handleHealth())
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(g.gatherer, promhttp.HandlerOpts{}))

	// Admin routes, mounted only when auth is configured.
	if g.config.Auth.IsConfigured() {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware(g.config.Auth, g.audit, g.limiter))
			r.Get("/status", g.handleStatus())
			r.Route("/api", func(r chi.Router) {
				r.Get("/jobs", g.handleListJobs())
				r.Get("/jobs/{id}", g.handleGetJob())
			})
		})
	}

	return r
}
