// Boston 311 Explorer - Service Request Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/boston311

/*
Package validation wraps go-playground/validator v10 with a shared instance,
domain rules and readable messages.

Custom tags:

  - category_column: one of the whitelisted category columns
  - period_token: the lexical shape of a period token

ValidateStruct returns *RequestValidationError, which unwraps to
models.ErrInvalidFilter so API handlers can map it to 400 without a type switch:

	if verr := validation.ValidateStruct(&req); verr != nil {
	    return fmt.Errorf("colors request: %w", verr)
	}
*/
package validation
