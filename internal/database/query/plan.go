// Boston 311 Explorer - Service Request Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/boston311

package query

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/tomtom215/boston311/internal/models"
	"github.com/tomtom215/boston311/internal/timeperiod"
)

// Kind names what a Plan returns.
type Kind string

const (
	KindRecords   Kind = "records"
	KindSelection Kind = "selection"
	KindDistinct  Kind = "distinct"
	KindCounts    Kind = "counts"
	KindBounds    Kind = "bounds"
)

// Plan is a parameterized query: a fixed template with ? placeholders and the
// values bound to them, in order.
type Plan struct {
	Kind   Kind
	SQL    string
	Args   []any
	Column string

	// Range is the resolved time window, zero when unrestricted.
	Range timeperiod.Range
}

// Placeholders counts the ? markers in the template.
func (p Plan) Placeholders() int {
	return strings.Count(p.SQL, "?")
}

// Validate checks that every placeholder has exactly one bound value.
func (p Plan) Validate() error {
	if n := p.Placeholders(); n != len(p.Args) {
		return fmt.Errorf("query plan has %d placeholders but %d args", n, len(p.Args))
	}
	return nil
}

// Column names of the requests table.
const (
	ColumnID       = "case_enquiry_id"
	ColumnOpenedAt = "open_dt"
	ColumnGeometry = "geometry"
)

// Options configures a Builder.
type Options struct {
	// Table is the relation holding the requests.
	Table string

	// TextColumns are searched by the free-text filter.
	TextColumns []string

	// MaxRows caps record queries; 0 means unlimited.
	MaxRows int

	// SelectionLimit caps bbox selection queries.
	SelectionLimit int

	// Now supplies the evaluation instant for period tokens.
	Now func() time.Time
}

// DefaultOptions returns the settings of the Boston 311 dataset.
func DefaultOptions() Options {
	return Options{
		Table:          "requests",
		TextColumns:    []string{"case_title"},
		SelectionLimit: 1000,
		Now:            time.Now,
	}
}

var identifierPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Builder compiles FilterSets into Plans. It is pure and safe for concurrent use.
type Builder struct {
	resolver  *timeperiod.Resolver
	opts      Options
	selectSQL string
}

// NewBuilder validates the configured identifiers and returns a Builder.
func NewBuilder(resolver *timeperiod.Resolver, opts Options) (*Builder, error) {
	if opts.Table == "" {
		opts.Table = "requests"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.MaxRows < 0 || opts.SelectionLimit < 0 {
		return nil, fmt.Errorf("row limits must not be negative")
	}
	if !identifierPattern.MatchString(opts.Table) {
		return nil, fmt.Errorf("invalid table name %q", opts.Table)
	}
	for _, col := range opts.TextColumns {
		if !identifierPattern.MatchString(col) {
			return nil, fmt.Errorf("invalid text column %q", col)
		}
	}

	b := &Builder{resolver: resolver, opts: opts}
	b.selectSQL = `SELECT CAST(` + ColumnID + ` AS VARCHAR) AS id, ` + ColumnOpenedAt + `, source, subject, neighborhood, ` +
		`case_title, reason, "type", ST_X(` + ColumnGeometry + `) AS lon, ST_Y(` + ColumnGeometry + `) AS lat ` +
		`FROM ` + opts.Table
	return b, nil
}

// Resolver returns the period resolver used for time predicates.
func (b *Builder) Resolver() *timeperiod.Resolver {
	return b.resolver
}

// Now returns the builder clock's current instant.
func (b *Builder) Now() time.Time {
	return b.opts.Now()
}

// Build compiles fs into the records query, evaluated at the builder clock.
func (b *Builder) Build(fs FilterSet) (Plan, error) {
	return b.BuildAt(fs, b.opts.Now())
}

// BuildAt compiles fs into the records query evaluated at now.
//
// Predicates follow a fixed order: time, neighborhood, source, subject, bbox,
// text. Set values are sorted before binding, so equal filters compile to
// identical templates and argument lists.
func (b *Builder) BuildAt(fs FilterSet, now time.Time) (Plan, error) {
	return b.records(KindRecords, fs, now, b.opts.MaxRows)
}

// BuildSelection compiles fs into a capped records query for map selections.
func (b *Builder) BuildSelection(fs FilterSet, now time.Time) (Plan, error) {
	return b.records(KindSelection, fs, now, b.opts.SelectionLimit)
}

func (b *Builder) records(kind Kind, fs FilterSet, now time.Time, limit int) (Plan, error) {
	wb, rng, err := b.where(fs, now)
	if err != nil {
		return Plan{}, err
	}
	where, args := wb.BuildWithPrefix()

	sql := b.selectSQL + " " + where + " ORDER BY " + ColumnOpenedAt + " DESC, id"
	if limit > 0 {
		sql += " LIMIT ?"
		args = append(args, limit)
	}
	return Plan{Kind: kind, SQL: sql, Args: args, Range: rng}, nil
}

// BuildDistinct lists the distinct non-null values of a category column under
// fs, sorted. The column must be a whitelisted category column.
func (b *Builder) BuildDistinct(column string, fs FilterSet, now time.Time) (Plan, error) {
	if !models.IsCategoryColumn(column) {
		return Plan{}, fmt.Errorf("%w: unknown column %q", models.ErrInvalidFilter, column)
	}
	wb, rng, err := b.where(fs, now)
	if err != nil {
		return Plan{}, err
	}
	wb.AddClause(column + " IS NOT NULL")
	where, args := wb.BuildWithPrefix()

	sql := "SELECT DISTINCT " + column + " FROM " + b.opts.Table + " " + where + " ORDER BY " + column
	return Plan{Kind: KindDistinct, SQL: sql, Args: args, Column: column, Range: rng}, nil
}

// BuildCounts aggregates row counts per value of a category column under fs,
// largest first. NULL values are counted under an empty string.
func (b *Builder) BuildCounts(column string, fs FilterSet, now time.Time) (Plan, error) {
	if !models.IsCategoryColumn(column) {
		return Plan{}, fmt.Errorf("%w: unknown column %q", models.ErrInvalidFilter, column)
	}
	wb, rng, err := b.where(fs, now)
	if err != nil {
		return Plan{}, err
	}
	where, args := wb.BuildWithPrefix()

	sql := "SELECT COALESCE(" + column + ", '') AS value, COUNT(*) AS n FROM " + b.opts.Table + " " + where +
		" GROUP BY 1 ORDER BY n DESC, value"
	return Plan{Kind: KindCounts, SQL: sql, Args: args, Column: column, Range: rng}, nil
}

// BuildBounds returns the dataset's first and last request timestamps.
func (b *Builder) BuildBounds() Plan {
	return Plan{
		Kind: KindBounds,
		SQL:  "SELECT MIN(" + ColumnOpenedAt + "), MAX(" + ColumnOpenedAt + ") FROM " + b.opts.Table,
		Args: []any{},
	}
}

// ResolveRange returns the time window of fs at now and whether fs restricts
// time at all.
func (b *Builder) ResolveRange(fs FilterSet, now time.Time) (timeperiod.Range, bool, error) {
	switch {
	case fs.Range != nil:
		return *fs.Range, true, nil
	case fs.Period != "":
		rng, err := b.resolver.Resolve(fs.Period, now)
		if err != nil {
			return timeperiod.Range{}, false, err
		}
		return rng, true, nil
	default:
		return timeperiod.Range{}, false, nil
	}
}

func (b *Builder) where(fs FilterSet, now time.Time) (*WhereBuilder, timeperiod.Range, error) {
	fs = fs.Canonical()
	if err := fs.Validate(); err != nil {
		return nil, timeperiod.Range{}, err
	}

	rng, restricted, err := b.ResolveRange(fs, now)
	if err != nil {
		return nil, timeperiod.Range{}, err
	}

	wb := NewWhereBuilder()
	if restricted {
		wb.AddRange(ColumnOpenedAt, rng.Start, rng.End)
	}
	wb.AddIn(models.ColumnNeighborhood, fs.Neighborhoods)
	wb.AddIn(models.ColumnSource, fs.Sources)
	wb.AddIn(models.ColumnSubject, fs.Subjects)
	if fs.BBox != nil {
		wb.AddBBox(ColumnGeometry, fs.BBox.MinLon, fs.BBox.MinLat, fs.BBox.MaxLon, fs.BBox.MaxLat)
	}
	wb.AddTextMatch(b.opts.TextColumns, fs.Text)

	return wb, rng, nil
}
