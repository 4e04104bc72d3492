// Boston 311 Explorer - Service Request Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/boston311

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/boston311/internal/cache"
)

// healthPingTimeout bounds the store ping of /health.
const healthPingTimeout = 2 * time.Second

// HealthStatus is the /health payload.
type HealthStatus struct {
	Status         string                `json:"status"`
	StoreConnected bool                  `json:"store_connected"`
	Sessions       int                   `json:"sessions"`
	Uptime         float64               `json:"uptime_seconds"`
	Caches         map[string]CacheStats `json:"caches"`
}

// CacheStats reports the counters of one query cache.
type CacheStats struct {
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Shared    int64   `json:"shared"`
	Evictions int64   `json:"evictions"`
	Entries   int     `json:"entries"`
	HitRate   float64 `json:"hit_rate"`
}

func newCacheStats(s cache.Stats) CacheStats {
	return CacheStats{
		Hits:      s.Hits,
		Misses:    s.Misses,
		Shared:    s.Shared,
		Evictions: s.Evictions,
		Entries:   s.Entries,
		HitRate:   s.HitRate(),
	}
}

// Health handles GET /health. A store that does not answer a ping marks the
// service degraded and returns 503 so load balancers stop routing to it.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	connected := false
	if h.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
		connected = h.store.Ping(ctx) == nil
		cancel()
	}

	stats := h.explorer.CacheStats()
	caches := make(map[string]CacheStats, len(stats))
	for name, s := range stats {
		caches[name] = newCacheStats(s)
	}

	health := HealthStatus{
		Status:         "healthy",
		StoreConnected: connected,
		Sessions:       h.explorer.SessionCount(),
		Uptime:         time.Since(h.startTime).Seconds(),
		Caches:         caches,
	}

	rw := NewResponseWriter(w, r)
	if !connected {
		health.Status = "degraded"
		rw.writeJSON(http.StatusServiceUnavailable, APIResponse{Success: false, Data: health, Meta: rw.meta()})
		return
	}
	rw.Success(health)
}
