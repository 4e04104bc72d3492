// Boston 311 Explorer - Service Request Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/boston311

package services

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/boston311/internal/logging"
)

// Pinger reports store reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StoreProbe pings the store and logs when it becomes unreachable or
// recovers. Run Check from a PeriodicService.
type StoreProbe struct {
	store   Pinger
	timeout time.Duration
	healthy atomic.Bool
	log     zerolog.Logger
}

// NewStoreProbe creates a probe that assumes the store starts healthy, since
// the server only starts once the dataset is loaded.
func NewStoreProbe(store Pinger, timeout time.Duration) *StoreProbe {
	p := &StoreProbe{store: store, timeout: timeout, log: logging.WithComponent("store-probe")}
	p.healthy.Store(true)
	return p
}

// Check pings once. Failures are logged, never returned: an unreachable
// store is reported by /health and must not restart the probe.
func (p *StoreProbe) Check(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.store.Ping(pingCtx)
	if ctx.Err() != nil {
		// Shutting down.
		return nil
	}

	healthy := err == nil
	if was := p.healthy.Swap(healthy); was != healthy {
		if healthy {
			p.log.Info().Msg("Store reachable again")
		} else {
			p.log.Warn().Err(err).Msg("Store unreachable")
		}
	}
	return nil
}

// Healthy reports the outcome of the last check.
func (p *StoreProbe) Healthy() bool {
	return p.healthy.Load()
}
