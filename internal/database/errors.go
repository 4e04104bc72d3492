// Boston 311 Explorer - Service Request Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/boston311

package database

import (
	"context"
	"errors"
	"fmt"
	"io"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/boston311/internal/models"
)

// classify maps a failure of operation op onto the models error taxonomy.
// ctx is the context the operation ran under; its error decides between a
// timeout and a cancellation when the driver reports something vaguer.
func classify(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, models.ErrInvalidFilter),
		errors.Is(err, models.ErrStoreTimeout),
		errors.Is(err, models.ErrStore):
		return err
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return fmt.Errorf("%w: %s rejected: %w", models.ErrStore, op, err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: %s: %w", models.ErrStoreTimeout, op, err)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%s: %w", op, err)
	case errors.Is(ctx.Err(), context.Canceled):
		return fmt.Errorf("%s: %w: %v", op, context.Canceled, err)
	default:
		return fmt.Errorf("%w: %s: %w", models.ErrStore, op, err)
	}
}

// closeQuietly closes a resource in an error path where Close errors are not
// actionable.
func closeQuietly(closer io.Closer) {
	if closer != nil {
		_ = closer.Close()
	}
}
