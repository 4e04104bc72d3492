// Boston 311 Explorer - Service Request Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/boston311

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tomtom215/boston311/internal/database/query"
	"github.com/tomtom215/boston311/internal/logging"
	"github.com/tomtom215/boston311/internal/metrics"
	"github.com/tomtom215/boston311/internal/models"
	"github.com/tomtom215/boston311/internal/timeperiod"
)

// scanner consumes a result set. It must not retain rows.
type scanner func(rows *sql.Rows) (any, error)

// Records executes a records or selection plan. Rows come back in the plan's
// order; an empty match is an empty, non-nil slice.
func (s *Store) Records(ctx context.Context, plan query.Plan) ([]models.Record, error) {
	if plan.Kind != query.KindRecords && plan.Kind != query.KindSelection {
		return nil, wrongKind(plan, "records")
	}
	v, err := s.run(ctx, plan, s.scanRecords)
	if err != nil {
		return nil, err
	}
	records := v.([]models.Record)
	metrics.DBRowsReturned.WithLabelValues(string(plan.Kind)).Observe(float64(len(records)))
	return records, nil
}

// Values executes a distinct-values plan.
func (s *Store) Values(ctx context.Context, plan query.Plan) ([]string, error) {
	if plan.Kind != query.KindDistinct {
		return nil, wrongKind(plan, "values")
	}
	v, err := s.run(ctx, plan, scanValues)
	if err != nil {
		return nil, err
	}
	values := v.([]string)
	metrics.DBRowsReturned.WithLabelValues(string(plan.Kind)).Observe(float64(len(values)))
	return values, nil
}

// Counts executes a per-category count plan.
func (s *Store) Counts(ctx context.Context, plan query.Plan) ([]models.CategoryCount, error) {
	if plan.Kind != query.KindCounts {
		return nil, wrongKind(plan, "counts")
	}
	v, err := s.run(ctx, plan, scanCounts)
	if err != nil {
		return nil, err
	}
	counts := v.([]models.CategoryCount)
	metrics.DBRowsReturned.WithLabelValues(string(plan.Kind)).Observe(float64(len(counts)))
	return counts, nil
}

// Bounds executes a bounds plan and returns the half-open range covering
// every request: [first, last+1µs). An empty table yields a zero Range.
func (s *Store) Bounds(ctx context.Context, plan query.Plan) (timeperiod.Range, error) {
	if plan.Kind != query.KindBounds {
		return timeperiod.Range{}, wrongKind(plan, "bounds")
	}
	v, err := s.run(ctx, plan, s.scanBounds)
	if err != nil {
		return timeperiod.Range{}, err
	}
	return v.(timeperiod.Range), nil
}

func wrongKind(plan query.Plan, want string) error {
	return fmt.Errorf("%w: %s plan cannot be executed as %s", models.ErrInvalidFilter, plan.Kind, want)
}

// run validates plan, executes it under the breaker and the store timeout and
// maps failures onto the error taxonomy.
func (s *Store) run(ctx context.Context, plan query.Plan, scan scanner) (any, error) {
	op := string(plan.Kind)
	if err := plan.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrInvalidFilter, err)
	}

	ctx, cancel := s.ensureContext(ctx)
	defer cancel()

	// Parameter values are user data and stay out of the logs.
	logging.Ctx(ctx).Debug().
		Str("operation", op).
		Str("sql", plan.SQL).
		Int("params", len(plan.Args)).
		Msg("Executing query")

	start := time.Now()
	result, err := s.execute(func() (any, error) {
		return s.queryWithDeadline(ctx, plan, scan)
	})
	err = classify(ctx, op, err)
	elapsed := time.Since(start)
	metrics.RecordDBQuery(op, s.table, elapsed, err)

	if err != nil {
		event := logging.Ctx(ctx).Debug()
		if models.IsTransient(err) {
			event = logging.Ctx(ctx).Warn()
		}
		event.Err(err).Str("operation", op).Dur("duration", elapsed).Msg("Query failed")
		return nil, err
	}
	return result, nil
}

// queryWithDeadline runs the query on a goroutine so a CGO call that ignores
// cancellation cannot hold the caller past its deadline.
func (s *Store) queryWithDeadline(ctx context.Context, plan query.Plan, scan scanner) (any, error) {
	type outcome struct {
		value any
		err   error
	}
	done := make(chan outcome, 1)
	args := s.bindArgs(plan.Args)

	go func() {
		rows, err := s.conn.QueryContext(ctx, plan.SQL, args...)
		if err != nil {
			done <- outcome{err: err}
			return
		}
		defer closeQuietly(rows)

		v, err := scan(rows)
		if err == nil {
			err = rows.Err()
		}
		done <- outcome{value: v, err: err}
	}()

	select {
	case o := <-done:
		return o.value, o.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// bindArgs converts time arguments to the naive wall clock stored in open_dt.
func (s *Store) bindArgs(args []any) []any {
	out := make([]any, len(args))
	for i, a := range args {
		if t, ok := a.(time.Time); ok {
			out[i] = toWallClock(t, s.loc)
			continue
		}
		out[i] = a
	}
	return out
}

// toWallClock expresses t as loc's wall clock labelled UTC.
func toWallClock(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// fromWallClock re-attaches loc to a naive timestamp read from the store.
func fromWallClock(t time.Time, loc *time.Location) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
}

// Passthrough attribute names on models.Record.
const (
	AttrCaseTitle = "case_title"
	AttrReason    = "reason"
	AttrType      = "type"
)

func (s *Store) scanRecords(rows *sql.Rows) (any, error) {
	records := make([]models.Record, 0)
	for rows.Next() {
		var (
			id, source, subject, neighborhood sql.NullString
			title, reason, typ                sql.NullString
			opened                            sql.NullTime
			lon, lat                          sql.NullFloat64
		)
		if err := rows.Scan(&id, &opened, &source, &subject, &neighborhood, &title, &reason, &typ, &lon, &lat); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}

		r := models.Record{
			ID:           id.String,
			Source:       source.String,
			Subject:      subject.String,
			Neighborhood: neighborhood.String,
			Longitude:    lon.Float64,
			Latitude:     lat.Float64,
		}
		if opened.Valid {
			r.OpenedAt = fromWallClock(opened.Time, s.loc)
		}
		r.Attributes = attributes(title, reason, typ)
		records = append(records, r)
	}
	return records, nil
}

func attributes(title, reason, typ sql.NullString) map[string]string {
	if !title.Valid && !reason.Valid && !typ.Valid {
		return nil
	}
	attrs := make(map[string]string, 3)
	if title.Valid {
		attrs[AttrCaseTitle] = title.String
	}
	if reason.Valid {
		attrs[AttrReason] = reason.String
	}
	if typ.Valid {
		attrs[AttrType] = typ.String
	}
	return attrs
}

func scanValues(rows *sql.Rows) (any, error) {
	values := make([]string, 0)
	for rows.Next() {
		var v sql.NullString
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan value: %w", err)
		}
		if v.Valid {
			values = append(values, v.String)
		}
	}
	return values, nil
}

func scanCounts(rows *sql.Rows) (any, error) {
	counts := make([]models.CategoryCount, 0)
	for rows.Next() {
		var c models.CategoryCount
		if err := rows.Scan(&c.Value, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, nil
}

func (s *Store) scanBounds(rows *sql.Rows) (any, error) {
	var first, last sql.NullTime
	if rows.Next() {
		if err := rows.Scan(&first, &last); err != nil {
			return nil, fmt.Errorf("failed to scan bounds: %w", err)
		}
	}
	if !first.Valid || !last.Valid {
		return timeperiod.Range{}, nil
	}
	return timeperiod.Range{
		Start: fromWallClock(first.Time, s.loc),
		End:   fromWallClock(last.Time, s.loc).Add(time.Microsecond),
	}, nil
}
