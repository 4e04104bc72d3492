// Boston 311 Explorer - Service Request Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/boston311

// Package explorer is the facade the rendering layer talks to. It turns
// filter selections into plans, serves them through per-kind query caches
// and keeps the color tables of each dashboard session.
package explorer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/boston311/internal/cache"
	"github.com/tomtom215/boston311/internal/config"
	"github.com/tomtom215/boston311/internal/database/query"
	"github.com/tomtom215/boston311/internal/logging"
	"github.com/tomtom215/boston311/internal/models"
	"github.com/tomtom215/boston311/internal/palette"
	"github.com/tomtom215/boston311/internal/timeperiod"
)

// Store executes compiled plans. *database.Store implements it.
type Store interface {
	Records(ctx context.Context, plan query.Plan) ([]models.Record, error)
	Values(ctx context.Context, plan query.Plan) ([]string, error)
	Counts(ctx context.Context, plan query.Plan) ([]models.CategoryCount, error)
	Bounds(ctx context.Context, plan query.Plan) (timeperiod.Range, error)
}

// Option customizes an Explorer.
type Option func(*Explorer)

// WithClock replaces time.Now for period evaluation, cache ages and sessions.
func WithClock(now func() time.Time) Option {
	return func(e *Explorer) {
		e.now = now
	}
}

// Explorer is safe for concurrent use.
type Explorer struct {
	store    Store
	resolver *timeperiod.Resolver
	builder  *query.Builder
	now      func() time.Time
	timeout  time.Duration

	records   *cache.QueryCache[[]models.Record]
	selection *cache.QueryCache[[]models.Record]
	distinct  *cache.QueryCache[[]string]
	counts    *cache.QueryCache[[]models.CategoryCount]

	columns    []string
	palette    []palette.RGBA
	nullColor  palette.RGBA
	pointColor palette.RGBA
	alpha      float64
	seed       bool
	sessions   *sessionRegistry
}

// New wires an Explorer over store. When no dataset bounds are configured,
// all_time is pinned to the bounds discovered from the store; a failed
// discovery is logged and all_time falls back to [min_year, now).
func New(ctx context.Context, store Store, cfg *config.Config, opts ...Option) (*Explorer, error) {
	colors, err := palette.ParseHexList(cfg.Colors.Palette)
	if err != nil {
		return nil, fmt.Errorf("invalid palette: %w", err)
	}
	nullColor, err := palette.ParseHex(cfg.Colors.NullColor)
	if err != nil {
		return nil, fmt.Errorf("invalid null color: %w", err)
	}
	pointColor, err := palette.ParseHex(cfg.Colors.PointColor)
	if err != nil {
		return nil, fmt.Errorf("invalid point color: %w", err)
	}
	start, end, err := cfg.DatasetBounds()
	if err != nil {
		return nil, err
	}

	e := &Explorer{
		store:      store,
		now:        time.Now,
		timeout:    cfg.Store.QueryTimeout,
		columns:    cfg.Colors.Columns,
		palette:    colors,
		nullColor:  nullColor,
		pointColor: pointColor,
		alpha:      cfg.Colors.Alpha,
		seed:       cfg.Colors.SeedSessions,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.resolver = timeperiod.NewResolver(timeperiod.Config{
		Tokens:      cfg.Periods.Tokens,
		MinYear:     cfg.Periods.MinYear,
		RecentYears: cfg.Periods.RecentYears,
		Location:    cfg.Location(),
		Dataset:     timeperiod.Range{Start: start, End: end},
	})
	if err := e.rebuild(cfg.Data.Table, cfg.Query); err != nil {
		return nil, err
	}

	if e.resolver.Dataset().IsZero() {
		e.discoverDataset(ctx, cfg)
	}

	cacheOpts := func(name string) cache.Options {
		return cache.Options{
			Name:          name,
			TTL:           cfg.Cache.TTL,
			MaxEntries:    cfg.Cache.MaxEntries,
			SweepInterval: cfg.Cache.SweepInterval,
			Now:           e.now,
		}
	}
	e.records = cache.New[[]models.Record](cacheOpts(string(query.KindRecords)))
	e.selection = cache.New[[]models.Record](cacheOpts(string(query.KindSelection)))
	e.distinct = cache.New[[]string](cacheOpts(string(query.KindDistinct)))
	e.counts = cache.New[[]models.CategoryCount](cacheOpts(string(query.KindCounts)))

	e.sessions = newSessionRegistry(cfg.Colors.SessionTTL, cfg.Colors.MaxSessions, e.now)

	logging.Info().
		Str("all_time", formatRange(e.resolver.Dataset())).
		Strs("color_columns", e.columns).
		Dur("cache_ttl", cfg.Cache.TTL).
		Msg("Explorer ready")
	return e, nil
}

func (e *Explorer) rebuild(table string, q config.QueryConfig) error {
	b, err := query.NewBuilder(e.resolver, query.Options{
		Table:          table,
		TextColumns:    q.TextColumns,
		MaxRows:        q.MaxRows,
		SelectionLimit: q.SelectionLimit,
		Now:            e.now,
	})
	if err != nil {
		return fmt.Errorf("invalid query configuration: %w", err)
	}
	e.builder = b
	return nil
}

// discoverDataset pins all_time to the stored data's bounds.
func (e *Explorer) discoverDataset(ctx context.Context, cfg *config.Config) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	rng, err := e.store.Bounds(ctx, e.builder.BuildBounds())
	if err != nil {
		logging.Warn().Err(err).Msg("Dataset bounds unavailable, all_time falls back to min_year")
		return
	}
	if rng.IsZero() {
		logging.Warn().Msg("Dataset is empty, all_time falls back to min_year")
		return
	}

	e.resolver = e.resolver.WithDataset(rng)
	if err := e.rebuild(cfg.Data.Table, cfg.Query); err != nil {
		// The same options were accepted a moment ago.
		logging.Error().Err(err).Msg("Failed to rebuild query builder")
	}
}

func (e *Explorer) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, e.timeout)
}

// key addresses a cached result. Relative periods add the evaluation day so
// an entry never survives a calendar-day boundary.
func (e *Explorer) key(kind query.Kind, fs query.FilterSet, column string, now time.Time) (string, error) {
	day := ""
	if fs.Range == nil && fs.Period != "" && e.resolver.DependsOnNow(fs.Period) {
		day = now.In(e.resolver.Location()).Format(time.DateOnly)
	}
	k, err := cache.Key(string(kind), fs, column, day)
	if err != nil {
		return "", fmt.Errorf("%w: %w", models.ErrInvalidFilter, err)
	}
	return k, nil
}

// cached serves a plan through c. The store call is shared by every caller
// waiting on the same key and runs under the configured store timeout, not
// under any one caller's deadline; a caller whose own deadline expires first
// stops waiting and gets ErrStoreTimeout.
func cached[V any](ctx context.Context, e *Explorer, c *cache.QueryCache[V], key string, exec func(context.Context) (V, error)) (V, error) {
	v, err := c.GetOrExecute(ctx, key, func(ctx context.Context) (V, error) {
		ctx, cancel := e.withTimeout(ctx)
		defer cancel()
		return exec(ctx)
	})
	if err != nil {
		var zero V
		return zero, storeErr(err)
	}
	return v, nil
}

// storeErr keeps deadline expiry inside the error taxonomy.
func storeErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, models.ErrStoreTimeout) {
		return fmt.Errorf("%w: %w", models.ErrStoreTimeout, err)
	}
	return err
}

// Query returns the requests matching fs, newest first.
func (e *Explorer) Query(ctx context.Context, fs query.FilterSet) ([]models.Record, error) {
	now := e.now()
	fs = fs.Canonical()
	plan, err := e.builder.BuildAt(fs, now)
	if err != nil {
		return nil, err
	}
	key, err := e.key(plan.Kind, fs, "", now)
	if err != nil {
		return nil, err
	}
	return cached(ctx, e, e.records, key, func(ctx context.Context) ([]models.Record, error) {
		return e.store.Records(ctx, plan)
	})
}

// Select returns the requests inside fs.BBox, capped at the selection limit.
func (e *Explorer) Select(ctx context.Context, fs query.FilterSet) ([]models.Record, error) {
	if fs.BBox == nil {
		return nil, fmt.Errorf("%w: selection requires a bounding box", models.ErrInvalidFilter)
	}
	now := e.now()
	fs = fs.Canonical()
	plan, err := e.builder.BuildSelection(fs, now)
	if err != nil {
		return nil, err
	}
	key, err := e.key(plan.Kind, fs, "", now)
	if err != nil {
		return nil, err
	}
	return cached(ctx, e, e.selection, key, func(ctx context.Context) ([]models.Record, error) {
		return e.store.Records(ctx, plan)
	})
}

// Options lists the sorted distinct values of column under fs, for filter
// widgets.
func (e *Explorer) Options(ctx context.Context, column string, fs query.FilterSet) ([]string, error) {
	now := e.now()
	fs = fs.Canonical()
	plan, err := e.builder.BuildDistinct(column, fs, now)
	if err != nil {
		return nil, err
	}
	key, err := e.key(plan.Kind, fs, column, now)
	if err != nil {
		return nil, err
	}
	return cached(ctx, e, e.distinct, key, func(ctx context.Context) ([]string, error) {
		return e.store.Values(ctx, plan)
	})
}

// Counts aggregates requests per value of column under fs, largest first.
func (e *Explorer) Counts(ctx context.Context, column string, fs query.FilterSet) ([]models.CategoryCount, error) {
	now := e.now()
	fs = fs.Canonical()
	plan, err := e.builder.BuildCounts(column, fs, now)
	if err != nil {
		return nil, err
	}
	key, err := e.key(plan.Kind, fs, column, now)
	if err != nil {
		return nil, err
	}
	return cached(ctx, e, e.counts, key, func(ctx context.Context) ([]models.CategoryCount, error) {
		return e.store.Counts(ctx, plan)
	})
}

// Periods lists the period picker entries at now.
func (e *Explorer) Periods(now time.Time) []timeperiod.Option {
	return e.resolver.Options(now)
}

// Now returns the explorer clock's current instant.
func (e *Explorer) Now() time.Time {
	return e.now()
}

// Dataset returns the all_time range, zero when it tracks now.
func (e *Explorer) Dataset() timeperiod.Range {
	return e.resolver.Dataset()
}

// Columns returns the color columns.
func (e *Explorer) Columns() []string {
	return e.columns
}

// DefaultAlpha is the configured point opacity.
func (e *Explorer) DefaultAlpha() float64 {
	return e.alpha
}

// CacheStats returns the counters of each query cache by name.
func (e *Explorer) CacheStats() map[string]cache.Stats {
	return map[string]cache.Stats{
		string(query.KindRecords):   e.records.Stats(),
		string(query.KindSelection): e.selection.Stats(),
		string(query.KindDistinct):  e.distinct.Stats(),
		string(query.KindCounts):    e.counts.Stats(),
	}
}

// ClearCaches drops every cached result.
func (e *Explorer) ClearCaches() {
	e.records.Clear()
	e.selection.Clear()
	e.distinct.Clear()
	e.counts.Clear()
	logging.Info().Msg("Query caches cleared")
}

// Close stops background sweeps. The Explorer must not be used afterwards.
func (e *Explorer) Close() {
	e.records.Close()
	e.selection.Close()
	e.distinct.Close()
	e.counts.Close()
}

func formatRange(r timeperiod.Range) string {
	if r.IsZero() {
		return "unbounded"
	}
	return r.Start.Format(time.RFC3339) + "/" + r.End.Format(time.RFC3339)
}
