// Boston 311 Explorer - Service Request Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/boston311

package timeperiod

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tomtom215/boston311/internal/models"
)

// Well-known tokens.
const (
	AllTime    = "all_time"
	ThisYear   = "this_year"
	LastYear   = "last_year"
	YearToDate = "year_to_date"
)

// maxRelativeCount bounds N in last_<N>_<unit> tokens.
const maxRelativeCount = 10000

// Config holds the injected resolver settings.
type Config struct {
	// Tokens restricts the recognized tokens. Empty means the full grammar.
	// year_<YYYY> tokens inside [MinYear, current year] are always accepted.
	Tokens []string

	// MinYear is the first year with data (2011 for Boston 311).
	MinYear int

	// RecentYears is how many calendar years Options lists.
	RecentYears int

	// Location fixes calendar boundaries. Nil uses the location of "now".
	Location *time.Location

	// Dataset is the all_time range. Zero falls back to [MinYear-01-01, now).
	Dataset Range
}

// Resolver resolves period tokens into concrete ranges.
// It holds no mutable state and is safe for concurrent use.
type Resolver struct {
	tokens      map[string]struct{}
	minYear     int
	recentYears int
	loc         *time.Location
	dataset     Range
}

// NewResolver creates a Resolver from cfg.
func NewResolver(cfg Config) *Resolver {
	r := &Resolver{
		minYear:     cfg.MinYear,
		recentYears: cfg.RecentYears,
		loc:         cfg.Location,
		dataset:     cfg.Dataset,
	}
	if len(cfg.Tokens) > 0 {
		r.tokens = make(map[string]struct{}, len(cfg.Tokens))
		for _, t := range cfg.Tokens {
			r.tokens[strings.TrimSpace(t)] = struct{}{}
		}
	}
	return r
}

// WithDataset returns a copy of r whose all_time range is dataset.
func (r *Resolver) WithDataset(dataset Range) *Resolver {
	cp := *r
	cp.dataset = dataset
	return &cp
}

// Dataset returns the configured all_time range (possibly zero).
func (r *Resolver) Dataset() Range {
	return r.dataset
}

// Location returns the calendar location used for now, falling back to UTC.
func (r *Resolver) Location() *time.Location {
	if r.loc == nil {
		return time.UTC
	}
	return r.loc
}

// Resolve converts token into a Range relative to now.
// Unknown or disabled tokens fail with models.ErrUnknownPeriod.
func (r *Resolver) Resolve(token string, now time.Time) (Range, error) {
	if r.loc != nil {
		now = now.In(r.loc)
	}

	if year, ok := parseYearToken(token); ok {
		if !r.yearAllowed(year, now) {
			return Range{}, fmt.Errorf("%w: %q", models.ErrUnknownPeriod, token)
		}
		return calendarYear(year, now.Location()), nil
	}

	if !r.enabled(token) {
		return Range{}, fmt.Errorf("%w: %q", models.ErrUnknownPeriod, token)
	}

	switch token {
	case AllTime:
		if !r.dataset.IsZero() {
			return r.dataset, nil
		}
		return Range{Start: time.Date(r.minYear, time.January, 1, 0, 0, 0, 0, now.Location()), End: now}, nil
	case ThisYear:
		return calendarYear(now.Year(), now.Location()), nil
	case LastYear:
		return calendarYear(now.Year()-1, now.Location()), nil
	case YearToDate:
		return Range{Start: time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location()), End: now}, nil
	}

	n, unit, ok := parseRelative(token)
	if !ok {
		return Range{}, fmt.Errorf("%w: %q", models.ErrUnknownPeriod, token)
	}

	var start time.Time
	switch unit {
	case "days":
		start = now.AddDate(0, 0, -n)
	case "weeks":
		start = now.AddDate(0, 0, -7*n)
	case "months":
		start = addMonthsClamped(now, -n)
	case "years":
		start = addMonthsClamped(now, -12*n)
	}
	return Range{Start: start, End: now}, nil
}

// IsKnown reports whether token would resolve at now.
func (r *Resolver) IsKnown(token string, now time.Time) bool {
	_, err := r.Resolve(token, now)
	return err == nil
}

// DependsOnNow reports whether the range for token moves with the evaluation
// instant. Only explicit calendar years and bounded all_time are fixed.
func (r *Resolver) DependsOnNow(token string) bool {
	if _, ok := parseYearToken(token); ok {
		return false
	}
	if token == AllTime && !r.dataset.IsZero() {
		return false
	}
	return true
}

func (r *Resolver) enabled(token string) bool {
	if r.tokens == nil {
		return true
	}
	_, ok := r.tokens[token]
	return ok
}

func (r *Resolver) yearAllowed(year int, now time.Time) bool {
	if year > now.Year() {
		return false
	}
	if r.minYear > 0 {
		return year >= r.minYear
	}
	return r.enabled(YearToken(year))
}

// YearToken returns the token for a calendar year.
func YearToken(year int) string {
	return "year_" + strconv.Itoa(year)
}

func parseYearToken(token string) (int, bool) {
	rest, ok := strings.CutPrefix(token, "year_")
	if !ok || len(rest) != 4 {
		return 0, false
	}
	year, err := strconv.Atoi(rest)
	if err != nil || year <= 0 {
		return 0, false
	}
	return year, true
}

// parseRelative splits last_<N>_<unit>. N must be a canonical positive integer.
func parseRelative(token string) (int, string, bool) {
	rest, ok := strings.CutPrefix(token, "last_")
	if !ok {
		return 0, "", false
	}
	num, unit, ok := strings.Cut(rest, "_")
	if !ok {
		return 0, "", false
	}
	n, err := strconv.Atoi(num)
	if err != nil || n <= 0 || n > maxRelativeCount || strconv.Itoa(n) != num {
		return 0, "", false
	}
	switch unit {
	case "days", "weeks", "months", "years":
		return n, unit, true
	}
	return 0, "", false
}

func calendarYear(year int, loc *time.Location) Range {
	return Range{
		Start: time.Date(year, time.January, 1, 0, 0, 0, 0, loc),
		End:   time.Date(year+1, time.January, 1, 0, 0, 0, 0, loc),
	}
}

// addMonthsClamped shifts t by months, clamping the day to the target month's
// length. time.AddDate would normalize Mar 31 - 1 month to Mar 2/3.
func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	if last := daysIn(first.Year(), first.Month()); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
