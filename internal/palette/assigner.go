// Boston 311 Explorer - Service Request Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/boston311

package palette

import (
	"sync"

	"github.com/tomtom215/boston311/internal/logging"
	"github.com/tomtom215/boston311/internal/metrics"
)

// shades are applied to the base palette on cycles 1..len(shades).
var shades = []float64{0.35, -0.35, 0.6, -0.6, 0.8, -0.8}

// Assignment describes how a value got its color.
type Assignment struct {
	Color RGBA `json:"color"`

	// Index is the base palette slot, -1 for the null color.
	Index int `json:"index"`

	// Cycle is 0 for base colors and k for the k-th shade cycle.
	Cycle int `json:"cycle"`

	// Shared is set when the palette and every shade were exhausted and the
	// color is also held by another value.
	Shared bool `json:"shared,omitempty"`
}

// LegendEntry is one row of a rendered legend.
type LegendEntry struct {
	Value string `json:"value"`
	Hex   string `json:"hex"`
}

// Assigner maps the values of one category column to colors.
type Assigner struct {
	column  string
	palette []RGBA
	null    RGBA

	// colors holds value -> Assignment; reads are lock-free.
	colors sync.Map

	// mu serializes first sightings and guards the fields below.
	mu    sync.Mutex
	seq   int
	used  map[RGBA]struct{}
	order []string
}

// NewAssigner creates an Assigner for column. Duplicate palette entries are
// dropped so two values can never receive the same base color. An empty
// palette falls back to DefaultPalette.
func NewAssigner(column string, palette []RGBA, null RGBA) *Assigner {
	if len(palette) == 0 {
		palette = DefaultPalette
	}
	seen := make(map[RGBA]struct{}, len(palette))
	uniq := make([]RGBA, 0, len(palette))
	for _, c := range palette {
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		uniq = append(uniq, c)
	}
	return &Assigner{
		column:  column,
		palette: uniq,
		null:    null,
		used:    make(map[RGBA]struct{}),
	}
}

// Column returns the category column this assigner serves.
func (a *Assigner) Column() string {
	return a.column
}

// ColorFor returns the color of value, assigning one on first sighting.
func (a *Assigner) ColorFor(value string) RGBA {
	return a.Assign(value).Color
}

// Assign returns the Assignment of value, creating it on first sighting.
// Empty values get the null color and never consume a palette slot.
func (a *Assigner) Assign(value string) Assignment {
	if value == "" {
		return Assignment{Color: a.null, Index: -1}
	}
	if v, ok := a.colors.Load(value); ok {
		return v.(Assignment)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	// Another goroutine may have assigned it while we waited.
	if v, ok := a.colors.Load(value); ok {
		return v.(Assignment)
	}

	asg := a.next(value)
	a.colors.Store(value, asg)
	a.order = append(a.order, value)
	metrics.PaletteAssignments.WithLabelValues(a.column).Inc()
	return asg
}

// Lookup returns the Assignment of value without assigning.
func (a *Assigner) Lookup(value string) (Assignment, bool) {
	if value == "" {
		return Assignment{Color: a.null, Index: -1}, true
	}
	v, ok := a.colors.Load(value)
	if !ok {
		return Assignment{}, false
	}
	return v.(Assignment), true
}

// next picks the color for a new value. Must be called with mu held.
func (a *Assigner) next(value string) Assignment {
	n := len(a.palette)
	for {
		idx := a.seq % n
		cycle := a.seq / n
		a.seq++

		base := a.palette[idx]
		if cycle > len(shades) {
			metrics.PaletteFallback.WithLabelValues(a.column, "shared").Inc()
			logging.Warn().
				Str("column", a.column).
				Str("value", value).
				Str("color", base.Hex()).
				Int("palette_size", n).
				Msg("Palette exhausted, color shared with another value")
			return Assignment{Color: base, Index: idx, Cycle: cycle, Shared: true}
		}

		c := base
		if cycle > 0 {
			c = base.Shade(shades[cycle-1])
		}
		if _, taken := a.used[c]; taken {
			metrics.PaletteFallback.WithLabelValues(a.column, "skipped").Inc()
			continue
		}
		a.used[c] = struct{}{}
		if cycle > 0 {
			metrics.PaletteFallback.WithLabelValues(a.column, "shade").Inc()
		}
		return Assignment{Color: c, Index: idx, Cycle: cycle}
	}
}

// Seed assigns values in order, skipping ones already assigned.
// Seeding with the dataset's sorted distinct values makes colors identical
// across sessions.
func (a *Assigner) Seed(values []string) {
	for _, v := range values {
		a.Assign(v)
	}
}

// Reset forgets every assignment. It is only called on explicit session reset.
func (a *Assigner) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.colors.Clear()
	a.seq = 0
	a.used = make(map[RGBA]struct{})
	a.order = nil
}

// Len returns the number of assigned values.
func (a *Assigner) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.order)
}

// Values returns assigned values in assignment order.
func (a *Assigner) Values() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.order))
	copy(out, a.order)
	return out
}

// Legend returns value -> hex for values, in first-seen order without
// duplicates. Unseen values are assigned.
func (a *Assigner) Legend(values []string) []LegendEntry {
	seen := make(map[string]struct{}, len(values))
	out := make([]LegendEntry, 0, len(values))
	for _, v := range values {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, LegendEntry{Value: v, Hex: a.ColorFor(v).Hex()})
	}
	return out
}
