// Boston 311 Explorer - Service Request Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/boston311

// Package metrics declares the Prometheus collectors for the explorer.
//
// Collectors register on the default registry at init through promauto and are
// served by promhttp.Handler on /metrics.
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tomtom215/boston311/internal/models"
)

var (
	// Store
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table", "error_type"},
	)

	DBRowsReturned = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_rows_returned",
			Help:    "Rows returned per DuckDB query",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		},
		[]string{"operation"},
	)

	DatasetRows = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dataset_rows",
			Help: "Service requests loaded into the store",
		},
	)

	DatasetLoadDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dataset_load_duration_seconds",
			Help: "Time taken by the last dataset load",
		},
	)

	// Query cache
	QueryCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "query_cache_hits_total",
			Help: "Lookups answered from a fresh cache entry",
		},
		[]string{"cache"},
	)

	QueryCacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "query_cache_misses_total",
			Help: "Lookups that started a store execution",
		},
		[]string{"cache"},
	)

	QueryCacheShared = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "query_cache_shared_total",
			Help: "Lookups that joined an in-flight execution",
		},
		[]string{"cache"},
	)

	QueryCacheEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "query_cache_entries",
			Help: "Current number of cached results",
		},
		[]string{"cache"},
	)

	QueryCacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "query_cache_evictions_total",
			Help: "Cache entries removed before reuse",
		},
		[]string{"cache", "reason"}, // "expired", "capacity", "invalidated"
	)

	// Palette
	PaletteAssignments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "palette_assignments_total",
			Help: "New category values assigned a color",
		},
		[]string{"column"},
	)

	PaletteFallback = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "palette_fallback_total",
			Help: "Assignments made after the base palette was exhausted",
		},
		[]string{"column", "kind"}, // "shade", "shared", "skipped"
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "palette_sessions_active",
			Help: "Live color sessions",
		},
	)

	// API
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request latency in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Number of requests currently being processed",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"endpoint"},
	)

	// Circuit breaker
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)
)

// RecordDBQuery records one store call. Errors are bucketed by kind so the
// label set stays bounded.
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table, ErrorType(err)).Inc()
	}
}

// ErrorType classifies err for metric labels.
func ErrorType(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, models.ErrStoreTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, models.ErrInvalidFilter):
		return "invalid"
	case errors.Is(err, models.ErrStore):
		return "store"
	default:
		return "other"
	}
}

// RecordAPIRequest records a completed API request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest adjusts the in-flight request gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}
