// Boston 311 Explorer - Service Request Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/boston311

package services

import (
	"context"
	"fmt"
	"time"
)

// PeriodicService runs a task on a fixed interval under supervision.
// A task error ends Serve so the supervisor restarts the service with its
// usual backoff; a task that only wants to report a problem logs it and
// returns nil.
type PeriodicService struct {
	name     string
	interval time.Duration
	task     func(ctx context.Context) error
}

// NewPeriodicService creates a service running task every interval.
func NewPeriodicService(name string, interval time.Duration, task func(ctx context.Context) error) *PeriodicService {
	return &PeriodicService{name: name, interval: interval, task: task}
}

// Serve implements suture.Service.
func (p *PeriodicService) Serve(ctx context.Context) error {
	if p.interval <= 0 {
		return fmt.Errorf("%s: interval must be positive, got %v", p.name, p.interval)
	}
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.task(ctx); err != nil {
				return fmt.Errorf("%s: %w", p.name, err)
			}
		}
	}
}

// String names the service in supervisor events.
func (p *PeriodicService) String() string {
	return p.name
}
