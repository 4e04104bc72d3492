// Boston 311 Explorer - Service Request Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/boston311

package palette

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// RGBA is an 8-bit-per-channel color.
type RGBA struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
	A uint8 `json:"a"`
}

// Gray is used for missing category values.
var Gray = RGBA{R: 128, G: 128, B: 128, A: 255}

// DefaultPalette is category10 followed by its light companions from category20.
var DefaultPalette = MustParseHexList([]string{
	"#1f77b4", "#ff7f0e", "#2ca02c", "#d62728", "#9467bd",
	"#8c564b", "#e377c2", "#7f7f7f", "#bcbd22", "#17becf",
	"#aec7e8", "#ffbb78", "#98df8a", "#ff9896", "#c5b0d5",
	"#c49c94", "#f7b6d2", "#c7c7c7", "#dbdb8d", "#9edae5",
})

// ParseHex parses "#rrggbb" or "#rrggbbaa" (the leading # is optional).
func ParseHex(s string) (RGBA, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) != 6 && len(h) != 8 {
		return RGBA{}, fmt.Errorf("invalid hex color %q: want 6 or 8 hex digits", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return RGBA{}, fmt.Errorf("invalid hex color %q: %w", s, err)
	}
	if len(h) == 6 {
		return RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
	}
	return RGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

// ParseHexList parses an ordered list of hex colors.
func ParseHexList(hexes []string) ([]RGBA, error) {
	out := make([]RGBA, 0, len(hexes))
	for _, h := range hexes {
		c, err := ParseHex(h)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// MustParseHexList is ParseHexList for package-level literals.
func MustParseHexList(hexes []string) []RGBA {
	out, err := ParseHexList(hexes)
	if err != nil {
		panic(err)
	}
	return out
}

// HexList formats colors as "#rrggbb" strings.
func HexList(colors []RGBA) []string {
	out := make([]string, len(colors))
	for i, c := range colors {
		out[i] = c.Hex()
	}
	return out
}

// Hex returns "#rrggbb", dropping alpha, as legends expect.
func (c RGBA) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Slice returns [r, g, b, a] for renderers that take color arrays.
func (c RGBA) Slice() []uint8 {
	return []uint8{c.R, c.G, c.B, c.A}
}

// WithAlpha returns c with alpha set from a 0..1 opacity.
func (c RGBA) WithAlpha(alpha float64) RGBA {
	alpha = math.Max(0, math.Min(1, alpha))
	c.A = uint8(math.Round(alpha * 255))
	return c
}

// Shade mixes c toward white (f > 0) or black (f < 0) by |f|.
func (c RGBA) Shade(f float64) RGBA {
	f = math.Max(-1, math.Min(1, f))
	mix := func(v uint8) uint8 {
		x := float64(v)
		if f > 0 {
			x += (255 - x) * f
		} else {
			x += x * f
		}
		return uint8(math.Round(x))
	}
	return RGBA{R: mix(c.R), G: mix(c.G), B: mix(c.B), A: c.A}
}
