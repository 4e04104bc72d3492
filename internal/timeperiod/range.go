// Boston 311 Explorer - Service Request Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/boston311

package timeperiod

import (
	"fmt"
	"time"

	"github.com/tomtom215/boston311/internal/models"
)

// Range is a half-open time interval: Start inclusive, End exclusive.
// A Range with Start == End is empty and matches no rows; it is not an error.
type Range struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewRange builds a Range and rejects anything Validate rejects.
func NewRange(start, end time.Time) (Range, error) {
	r := Range{Start: start, End: end}
	if err := r.Validate(); err != nil {
		return Range{}, err
	}
	return r, nil
}

// Bounds outside these UTC years have no RFC 3339 form.
const (
	minYear = 0
	maxYear = 9999
)

// Validate checks the Start <= End invariant and that both bounds have an
// RFC 3339 form in UTC.
func (r Range) Validate() error {
	for _, t := range [...]time.Time{r.Start, r.End} {
		if y := t.UTC().Year(); y < minYear || y > maxYear {
			return fmt.Errorf("%w: range bound year %d outside %d-%d",
				models.ErrInvalidFilter, y, minYear, maxYear)
		}
	}
	if r.End.Before(r.Start) {
		return fmt.Errorf("%w: range start %s is after end %s",
			models.ErrInvalidFilter, r.Start.Format(time.RFC3339), r.End.Format(time.RFC3339))
	}
	return nil
}

// IsZero reports whether neither bound is set.
func (r Range) IsZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

// Empty reports whether the range contains no instants.
func (r Range) Empty() bool {
	return !r.Start.Before(r.End)
}

// Contains reports whether t falls inside [Start, End).
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// Duration returns End - Start, or zero for an empty range.
func (r Range) Duration() time.Duration {
	if r.Empty() {
		return 0
	}
	return r.End.Sub(r.Start)
}
