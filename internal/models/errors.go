// Boston 311 Explorer - Service Request Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/boston311

package models

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by every layer. Classify with errors.Is.
//
// Caller errors (never retried automatically):
//   - ErrInvalidFilter: malformed bbox, bad column, bad explicit range
//   - ErrUnknownPeriod: unrecognized period token (also matches ErrInvalidFilter)
//
// Collaborator errors (transient, safe to retry):
//   - ErrStoreTimeout: the store did not answer within the query timeout
//   - ErrStore: any other store failure, including an open circuit breaker
var (
	ErrInvalidFilter = errors.New("invalid filter")
	ErrUnknownPeriod = fmt.Errorf("%w: unknown time period", ErrInvalidFilter)
	ErrStoreTimeout  = errors.New("store timeout")
	ErrStore         = errors.New("store error")
)

// IsTransient reports whether err is a store failure the caller may retry.
func IsTransient(err error) bool {
	return errors.Is(err, ErrStoreTimeout) || errors.Is(err, ErrStore)
}
