// Boston 311 Explorer - Service Request Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/boston311

package query

import (
	"strings"
	"time"
)

// WhereBuilder constructs SQL WHERE clauses with positional arguments.
// Column names passed to it are trusted identifiers; every value goes to the
// argument list, never into the clause text.
//
// Example usage:
//
//	wb := query.NewWhereBuilder()
//	wb.AddRange("open_dt", start, end)
//	wb.AddIn("neighborhood", []string{"Dorchester", "Roxbury"})
//	whereClause, args := wb.Build()
//	// open_dt >= ? AND open_dt < ? AND neighborhood IN (?, ?)
type WhereBuilder struct {
	clauses []string
	args    []any
}

// NewWhereBuilder creates a new WhereBuilder instance.
func NewWhereBuilder() *WhereBuilder {
	return &WhereBuilder{
		clauses: []string{},
		args:    []any{},
	}
}

// AddClause adds a raw clause with its arguments.
// The clause must be a fixed string; values belong in args.
func (wb *WhereBuilder) AddClause(clause string, args ...any) *WhereBuilder {
	wb.clauses = append(wb.clauses, clause)
	wb.args = append(wb.args, args...)
	return wb
}

// AddRange adds a half-open time predicate: column >= start AND column < end.
func (wb *WhereBuilder) AddRange(column string, start, end time.Time) *WhereBuilder {
	wb.clauses = append(wb.clauses, column+" >= ?", column+" < ?")
	wb.args = append(wb.args, start, end)
	return wb
}

// AddIn adds "column IN (?, ...)". An empty slice adds nothing.
func (wb *WhereBuilder) AddIn(column string, values []string) *WhereBuilder {
	if len(values) == 0 {
		return wb
	}
	for _, v := range values {
		wb.args = append(wb.args, v)
	}
	wb.clauses = append(wb.clauses, column+" IN ("+placeholders(len(values))+")")
	return wb
}

// AddBBox adds point containment for a geometry column.
// Bounds are inclusive on all sides.
func (wb *WhereBuilder) AddBBox(geomColumn string, minLon, minLat, maxLon, maxLat float64) *WhereBuilder {
	wb.clauses = append(wb.clauses,
		"ST_X("+geomColumn+") BETWEEN ? AND ?",
		"ST_Y("+geomColumn+") BETWEEN ? AND ?",
	)
	wb.args = append(wb.args, minLon, maxLon, minLat, maxLat)
	return wb
}

// AddTextMatch adds a case-insensitive substring match against any of the
// columns. The needle must already be lower-cased; it is bound once per column.
func (wb *WhereBuilder) AddTextMatch(columns []string, needle string) *WhereBuilder {
	if needle == "" || len(columns) == 0 {
		return wb
	}
	parts := make([]string, len(columns))
	for i, col := range columns {
		parts[i] = "contains(lower(COALESCE(" + col + ", '')), ?)"
		wb.args = append(wb.args, needle)
	}
	wb.clauses = append(wb.clauses, "("+strings.Join(parts, " OR ")+")")
	return wb
}

// Build joins the clauses with AND. Returns ("1=1", []) when empty so the
// result can always follow WHERE.
func (wb *WhereBuilder) Build() (string, []any) {
	if len(wb.clauses) == 0 {
		return "1=1", []any{}
	}
	return strings.Join(wb.clauses, " AND "), wb.args
}

// BuildWithPrefix returns the clause with a "WHERE " prefix.
func (wb *WhereBuilder) BuildWithPrefix() (string, []any) {
	whereClause, args := wb.Build()
	return "WHERE " + whereClause, args
}

// Count returns the number of clauses added.
func (wb *WhereBuilder) Count() int {
	return len(wb.clauses)
}

// IsEmpty returns true if no clauses have been added.
func (wb *WhereBuilder) IsEmpty() bool {
	return len(wb.clauses) == 0
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}
