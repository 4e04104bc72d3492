// Boston 311 Explorer - Service Request Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/boston311

package query

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tomtom215/boston311/internal/models"
	"github.com/tomtom215/boston311/internal/timeperiod"
	"github.com/tomtom215/boston311/internal/validation"
)

// BBox is a map viewport in WGS84 degrees.
type BBox struct {
	MinLon float64 `json:"min_lon" validate:"longitude"`
	MinLat float64 `json:"min_lat" validate:"latitude"`
	MaxLon float64 `json:"max_lon" validate:"longitude,gtefield=MinLon"`
	MaxLat float64 `json:"max_lat" validate:"latitude,gtefield=MinLat"`
}

// Validate rejects NaN, out-of-range and inverted coordinates.
func (b BBox) Validate() error {
	for _, v := range []float64{b.MinLon, b.MinLat, b.MaxLon, b.MaxLat} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: bbox coordinates must be finite", models.ErrInvalidFilter)
		}
	}
	if verr := validation.ValidateStruct(&b); verr != nil {
		return fmt.Errorf("%w: bbox: %s", models.ErrInvalidFilter, verr.Error())
	}
	return nil
}

// FilterSet is the full set of dashboard filter selections.
//
// All fields are optional and combine with AND. Set-valued fields match any
// of their values (IN). An empty set means "no restriction", exactly like an
// absent field: an unchecked filter shows everything.
//
// Time selection is either a period token (Period) or an explicit Range,
// never both. Neither means no time restriction.
//
// FilterSet is treated as an immutable value: Canonical returns a normalized
// copy and never modifies the receiver.
type FilterSet struct {
	Period        string            `json:"period,omitempty"`
	Range         *timeperiod.Range `json:"range,omitempty"`
	Neighborhoods []string          `json:"neighborhoods,omitempty"`
	Sources       []string          `json:"sources,omitempty"`
	Subjects      []string          `json:"subjects,omitempty"`
	BBox          *BBox             `json:"bbox,omitempty"`
	Text          string            `json:"text,omitempty"`
}

// Canonical returns the normalized form used for query building and cache
// keys: set values sorted and de-duplicated, empty sets dropped, free text
// trimmed and lower-cased.
func (f FilterSet) Canonical() FilterSet {
	out := FilterSet{
		Period:        strings.TrimSpace(f.Period),
		Neighborhoods: canonicalSet(f.Neighborhoods),
		Sources:       canonicalSet(f.Sources),
		Subjects:      canonicalSet(f.Subjects),
		Text:          strings.ToLower(strings.TrimSpace(f.Text)),
	}
	if f.Range != nil {
		r := timeperiod.Range{Start: f.Range.Start.UTC(), End: f.Range.End.UTC()}
		out.Range = &r
	}
	if f.BBox != nil {
		b := *f.BBox
		out.BBox = &b
	}
	return out
}

// Validate checks the filter for caller errors. Unknown period tokens are
// reported by the builder when it resolves them.
func (f FilterSet) Validate() error {
	if f.Period != "" && f.Range != nil {
		return fmt.Errorf("%w: period and explicit range are mutually exclusive", models.ErrInvalidFilter)
	}
	if f.Range != nil {
		if err := f.Range.Validate(); err != nil {
			return err
		}
	}
	if f.BBox != nil {
		if err := f.BBox.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// IsEmpty reports whether the canonical filter restricts nothing.
func (f FilterSet) IsEmpty() bool {
	c := f.Canonical()
	return c.Period == "" && c.Range == nil && c.Neighborhoods == nil &&
		c.Sources == nil && c.Subjects == nil && c.BBox == nil && c.Text == ""
}

// CanonicalJSON serializes the canonical form. Field order is fixed by the
// struct, so semantically equal filters serialize identically.
func (f FilterSet) CanonicalJSON() ([]byte, error) {
	return json.Marshal(f.Canonical())
}

// Equal reports whether f and o are the same filter after canonicalization.
func (f FilterSet) Equal(o FilterSet) bool {
	a, errA := f.CanonicalJSON()
	b, errB := o.CanonicalJSON()
	return errA == nil && errB == nil && string(a) == string(b)
}

func canonicalSet(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := slices.Clone(values)
	slices.Sort(out)
	return slices.Compact(out)
}
