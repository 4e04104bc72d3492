// Boston 311 Explorer - Service Request Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/boston311

// Package database is the DuckDB-backed Store for 311 service requests.
//
// # Overview
//
// The dataset is immutable once loaded: Open reads the configured parquet
// files into a single table and every later operation is a read. Queries
// arrive as query.Plan values compiled by the query subpackage, so this
// package never builds SQL from user input.
//
// Files:
//   - store.go: lifecycle (open, pool configuration, ping, close)
//   - load.go: extension loading and the parquet import
//   - breaker.go: circuit breaker around every query
//   - queries.go: Records, Values, Counts and Bounds
//   - errors.go: mapping driver failures onto the models error taxonomy
//
// # Timestamps
//
// open_dt holds naive wall-clock times in the city's time zone. Bound time
// arguments are converted to that wall clock before execution and scanned
// values are re-attached to the configured location.
//
// # Errors
//
// A query that outlives its deadline fails with models.ErrStoreTimeout. Any
// other driver failure, and a rejection by the open circuit breaker, fails
// with models.ErrStore. An empty result is never an error.
package database
