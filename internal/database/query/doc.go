// Boston 311 Explorer - Service Request Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/boston311

// Package query compiles dashboard filter selections into parameterized SQL.
//
// # Overview
//
// A FilterSet carries every filter the dashboard offers: a time period or
// explicit range, neighborhood/source/subject sets, a map bounding box and
// free text. The Builder turns it into a Plan, a fixed SQL template with ?
// placeholders plus the ordered values bound to them:
//
//	b, _ := query.NewBuilder(resolver, query.DefaultOptions())
//	plan, err := b.Build(query.FilterSet{
//	    Period:        "last_30_days",
//	    Neighborhoods: []string{"Roxbury", "Dorchester"},
//	    Text:          "pothole",
//	})
//	rows, err := conn.QueryContext(ctx, plan.SQL, plan.Args...)
//
// # Safety
//
// User-supplied values (names, free text, coordinates, dates) only ever
// appear in Plan.Args. The template is assembled from constant fragments and
// configured identifiers, which are checked against ^[a-z_][a-z0-9_]*$ when
// the Builder is created.
//
// # Canonical Form
//
// FilterSet.Canonical sorts and de-duplicates set values, drops empty sets,
// and trims and lower-cases free text. Predicates are emitted in a fixed
// order (time, neighborhood, source, subject, bbox, text), so two filters
// that differ only in insertion order or duplicates compile to the same Plan
// and share a cache key.
//
// An empty set is the same as an absent field: no restriction. A completely
// empty FilterSet compiles to WHERE 1=1.
//
// # Available Plans
//
//   - Build / BuildAt: records, newest first, optional LIMIT
//   - BuildSelection: records capped for map selections
//   - BuildDistinct: sorted distinct values of a category column
//   - BuildCounts: per-value counts of a category column
//   - BuildBounds: first and last request timestamps
package query
