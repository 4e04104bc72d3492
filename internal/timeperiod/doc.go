// Boston 311 Explorer - Service Request Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/boston311

/*
Package timeperiod turns named dashboard periods into concrete date ranges.

A period token such as "last_30_days" or "this_year" is resolved against an
evaluation instant into a half-open Range [Start, End). Resolution is pure:
the same token and instant always produce the same range, and nothing is
cached between calls, so a relative period re-resolves on every query.

# Token Grammar

	all_time            dataset bounds (injected), or [min_year-01-01, now)
	this_year           [Jan 1 this year, Jan 1 next year)
	last_year           [Jan 1 last year, Jan 1 this year)
	year_to_date        [Jan 1 this year, now)
	year_<YYYY>         [Jan 1 YYYY, Jan 1 YYYY+1)
	last_<N>_days       [now - N calendar days, now)
	last_<N>_weeks      [now - 7N calendar days, now)
	last_<N>_months     [now - N months, now), clamped to month end
	last_<N>_years      [now - N years, now), clamped to month end

Month and year arithmetic uses the calendar, not a fixed day count:
March 31 minus one month is February 29 in a leap year and February 28
otherwise.

# Usage

	r := timeperiod.NewResolver(timeperiod.Config{MinYear: 2011, RecentYears: 6})
	rng, err := r.Resolve("last_7_days", time.Now())
	if errors.Is(err, models.ErrUnknownPeriod) {
	    // ask the user to pick another period
	}
*/
package timeperiod
