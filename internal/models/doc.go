// Boston 311 Explorer - Service Request Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/boston311

/*
Package models defines the data shared by the store, the explorer and the API.

Key Components:

  - Record: one 311 service request with its location and category columns
  - CategoryCount: one row of a per-category aggregate
  - CategoryColumns: the whitelisted columns that can be filtered and colored by
  - Error taxonomy: ErrInvalidFilter, ErrUnknownPeriod, ErrStoreTimeout, ErrStore

Usage Example:

	import "github.com/tomtom215/boston311/internal/models"

	if models.IsCategoryColumn(column) {
		value := record.Category(column)
	}

	if errors.Is(err, models.ErrInvalidFilter) {
		// caller error, respond 400
	}
*/
package models
