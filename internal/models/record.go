// Boston 311 Explorer - Service Request Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/boston311

package models

import "time"

// Record is one 311 service request as returned by the store.
// Records are read-only once produced; consumers must not mutate them.
type Record struct {
	ID           string    `json:"id"`
	OpenedAt     time.Time `json:"open_dt"`
	Source       string    `json:"source"`
	Subject      string    `json:"subject"`
	Neighborhood string    `json:"neighborhood"`
	Longitude    float64   `json:"lon"`
	Latitude     float64   `json:"lat"`

	// Attributes holds passthrough columns (case_title, reason, type).
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Category returns the value of a color column for this record.
// Unknown columns return an empty string.
func (r *Record) Category(column string) string {
	switch column {
	case ColumnSource:
		return r.Source
	case ColumnSubject:
		return r.Subject
	case ColumnNeighborhood:
		return r.Neighborhood
	default:
		return ""
	}
}

// Category columns that may be filtered on and colored by.
const (
	ColumnSource       = "source"
	ColumnSubject      = "subject"
	ColumnNeighborhood = "neighborhood"
)

// CategoryColumns lists the category columns in canonical order.
var CategoryColumns = []string{ColumnSource, ColumnSubject, ColumnNeighborhood}

// IsCategoryColumn reports whether column is a whitelisted category column.
func IsCategoryColumn(column string) bool {
	for _, c := range CategoryColumns {
		if c == column {
			return true
		}
	}
	return false
}

// CategoryCount is one row of a per-category aggregate.
type CategoryCount struct {
	Value string `json:"value"`
	Count int64  `json:"count"`
}
