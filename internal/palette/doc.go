// Boston 311 Explorer - Service Request Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/boston311

/*
Package palette assigns stable colors to categorical values.

An Assigner maps the values of one category column (source, subject or
neighborhood) onto a finite ordered palette. The first sighting of a value
takes the next unused palette color; every later lookup returns the same
color for the lifetime of the session, even when the value is absent from
later results. Only Reset clears assignments.

# Exhaustion

When every palette color is taken, assignment cycles through the palette
again with an alternating shade (+35%, -35%, +60%, -60%, +80%, -80%). A shade
that coincides with a color already in use is skipped. Once all shade cycles
are used up a base color is reused; the Assignment is flagged Shared, a
warning is logged and palette_fallback_total{kind="shared"} is incremented.

# Concurrency

Lookups of assigned values read a sync.Map and take no lock. First sightings
are serialized by a mutex with a re-check, so two goroutines racing on the
same new value both receive the color chosen by whichever got the lock first.

# Sessions

A Session groups one Assigner per color column and is the unit a dashboard
user owns. Seeding a session with the dataset's sorted distinct values makes
colors reproducible across sessions.
*/
package palette
