// Boston 311 Explorer - Service Request Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/boston311

package config

import (
	"fmt"
	"regexp"
	"time"

	"github.com/tomtom215/boston311/internal/validation"
)

var identifierPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Validate checks field rules first, then the cross-field constraints the
// tags cannot express.
func (c *Config) Validate() error {
	if verr := validation.ValidateStruct(c); verr != nil {
		return verr
	}

	validators := []func() error{
		c.validateData,
		c.validatePeriods,
		c.validateQuery,
		c.validateServer,
	}
	for _, validate := range validators {
		if err := validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateData() error {
	if !identifierPattern.MatchString(c.Data.Table) {
		return fmt.Errorf("DATA_TABLE %q is not a valid identifier", c.Data.Table)
	}
	return nil
}

func (c *Config) validatePeriods() error {
	if _, err := time.LoadLocation(c.Periods.Location); err != nil {
		return fmt.Errorf("PERIODS_LOCATION %q: %w", c.Periods.Location, err)
	}
	if (c.Periods.DatasetStart == "") != (c.Periods.DatasetEnd == "") {
		return fmt.Errorf("DATASET_START and DATASET_END must be set together")
	}
	if c.Periods.DatasetStart == "" {
		return nil
	}
	start, end, err := c.DatasetBounds()
	if err != nil {
		return err
	}
	if end.Before(start) {
		return fmt.Errorf("DATASET_END %s is before DATASET_START %s", c.Periods.DatasetEnd, c.Periods.DatasetStart)
	}
	return nil
}

func (c *Config) validateQuery() error {
	for _, col := range c.Query.TextColumns {
		if !identifierPattern.MatchString(col) {
			return fmt.Errorf("QUERY_TEXT_COLUMNS entry %q is not a valid identifier", col)
		}
	}
	return nil
}

func (c *Config) validateServer() error {
	if !c.Server.RateLimitDisabled && c.Server.RateLimitReqs > 0 && c.Server.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive when rate limiting is enabled")
	}
	return nil
}

// Location returns the configured calendar location.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Periods.Location)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DatasetBounds parses the pinned all_time range. Zero times mean unset.
func (c *Config) DatasetBounds() (start, end time.Time, err error) {
	if c.Periods.DatasetStart == "" {
		return time.Time{}, time.Time{}, nil
	}
	start, err = time.Parse(time.RFC3339, c.Periods.DatasetStart)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("DATASET_START: %w", err)
	}
	end, err = time.Parse(time.RFC3339, c.Periods.DatasetEnd)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("DATASET_END: %w", err)
	}
	return start, end, nil
}
