// Boston 311 Explorer - Service Request Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/boston311

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/boston311/internal/middleware"
)

// compressionLevel is the gzip level for JSON payloads. Record lists are
// large and repetitive, so a middle level already shrinks them a lot.
const compressionLevel = 5

// NewRouter wires every route onto a chi router.
//
// Global middleware order:
//  1. RequestID: request and correlation IDs for logs and responses
//  2. RealIP: trust X-Forwarded-For / X-Real-IP for rate limit keys
//  3. AccessLog and PrometheusMetrics: observe the final status
//  4. Recoverer: turn handler panics into 500s the observers still see
//  5. CORS
//
// The /api/v1 group adds rate limiting, security headers and compression.
func NewRouter(h *Handler, mw *ChiMiddleware) http.Handler {
	if mw == nil {
		mw = NewChiMiddleware(nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.AccessLog)
	r.Use(middleware.PrometheusMetrics)
	r.Use(chimiddleware.Recoverer)
	r.Use(mw.CORS())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NewResponseWriter(w, r).NotFound("No route for " + r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
	})

	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.RateLimit())
		r.Use(APISecurityHeaders())
		r.Use(chimiddleware.Compress(compressionLevel, "application/json"))

		r.Get("/periods", h.Periods)
		r.Get("/requests", h.Requests)
		r.Get("/selection", h.Selection)
		r.Get("/options/{column}", h.Options)
		r.Get("/counts/{column}", h.Counts)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", h.CreateSession)
			r.Delete("/{id}", h.DeleteSession)
			r.Post("/{id}/reset", h.ResetSession)
			r.Get("/{id}/legend/{column}", h.SessionLegend)
		})

		r.Delete("/cache", h.ClearCache)
	})

	return r
}
