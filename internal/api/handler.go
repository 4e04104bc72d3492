// Boston 311 Explorer - Service Request Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/boston311

package api

import (
	"context"
	"time"

	"github.com/tomtom215/boston311/internal/cache"
	"github.com/tomtom215/boston311/internal/database/query"
	"github.com/tomtom215/boston311/internal/explorer"
	"github.com/tomtom215/boston311/internal/models"
	"github.com/tomtom215/boston311/internal/palette"
	"github.com/tomtom215/boston311/internal/timeperiod"
)

// Explorer is the dashboard facade the handlers serve. *explorer.Explorer
// implements it.
type Explorer interface {
	Query(ctx context.Context, fs query.FilterSet) ([]models.Record, error)
	Select(ctx context.Context, fs query.FilterSet) ([]models.Record, error)
	Options(ctx context.Context, column string, fs query.FilterSet) ([]string, error)
	Counts(ctx context.Context, column string, fs query.FilterSet) ([]models.CategoryCount, error)
	Periods(now time.Time) []timeperiod.Option
	Now() time.Time
	Dataset() timeperiod.Range
	Columns() []string
	DefaultAlpha() float64

	NewSession(ctx context.Context) (*palette.Session, error)
	Session(id string) (*palette.Session, error)
	ResetSession(ctx context.Context, id string) (*palette.Session, error)
	CloseSession(id string)
	SessionCount() int
	Legend(id, column string, records []models.Record) ([]palette.LegendEntry, error)
	Colors(id, column string, records []models.Record, alpha float64) ([]palette.RGBA, error)

	CacheStats() map[string]cache.Stats
	ClearCaches()
}

var _ Explorer = (*explorer.Explorer)(nil)

// Pinger reports store reachability for /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves the API routes.
type Handler struct {
	explorer  Explorer
	store     Pinger
	startTime time.Time
}

// NewHandler creates a Handler. store may be nil, in which case /health
// reports the store as disconnected.
func NewHandler(e Explorer, store Pinger) *Handler {
	return &Handler{
		explorer:  e,
		store:     store,
		startTime: time.Now(),
	}
}
