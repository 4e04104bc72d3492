// Boston 311 Explorer - Service Request Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/boston311

/*
Package middleware provides the infrastructure middleware of the HTTP API.

Key Components:

  - RequestID: UUID request tracking, mirrored into the logging context
  - AccessLog: one structured log line per request
  - PrometheusMetrics: request count, latency and in-flight instrumentation

All middleware use the standard func(http.Handler) http.Handler shape so they
plug directly into chi:

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.AccessLog)
	r.Use(middleware.PrometheusMetrics)

Metrics are labelled with the chi route pattern ("/api/v1/options/{column}")
rather than the raw path, so path parameters never explode label cardinality.
*/
package middleware
