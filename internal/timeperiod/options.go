// Boston 311 Explorer - Service Request Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/boston311

package timeperiod

import (
	"fmt"
	"strconv"
	"time"
)

// Option is one selectable entry of the period picker.
type Option struct {
	Token string `json:"token"`
	Label string `json:"label"`
	Range Range  `json:"range"`
}

// Options lists the period picker entries for now: recent calendar years
// (newest first, never before MinYear), then the relative periods, then the
// complete dataset. Entries whose token is disabled are omitted.
func (r *Resolver) Options(now time.Time) []Option {
	if r.loc != nil {
		now = now.In(r.loc)
	}

	var opts []Option
	add := func(token, label string) {
		rng, err := r.Resolve(token, now)
		if err != nil {
			return
		}
		opts = append(opts, Option{Token: token, Label: label, Range: rng})
	}

	floor := now.Year() - r.recentYears
	if r.minYear > floor {
		floor = r.minYear
	}
	for year := now.Year(); year > floor; year-- {
		add(YearToken(year), strconv.Itoa(year))
	}

	add("last_30_days", "Last 30 Days")
	add("last_90_days", "Last 90 Days")
	add("last_6_months", "Last 6 Months")
	add(YearToDate, "Year to Date")
	add(AllTime, fmt.Sprintf("Complete Dataset (%d-Present)", r.minYear))

	return opts
}

// DefaultToken is the period selected when the dashboard opens.
const DefaultToken = YearToDate
