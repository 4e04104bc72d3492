// Boston 311 Explorer - Service Request Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/boston311

package database

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/tomtom215/boston311/internal/logging"
	"github.com/tomtom215/boston311/internal/metrics"
)

// extensionTimeout bounds INSTALL and LOAD. Override with DUCKDB_EXTENSION_TIMEOUT.
var extensionTimeout = getExtensionTimeout()

func getExtensionTimeout() time.Duration {
	if v := os.Getenv("DUCKDB_EXTENSION_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return 30 * time.Second
}

// execWithHardTimeout runs a statement with a goroutine-based deadline.
// DuckDB CGO calls do not always honor context cancellation.
func (s *Store) execWithHardTimeout(query string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		_, err := s.conn.ExecContext(ctx, query)
		errCh <- err
	}()

	select {
	case err := <-errCh:
		return err
	case <-time.After(timeout):
		return fmt.Errorf("%q timed out after %v", query, timeout)
	}
}

// loadSpatial installs and loads the spatial extension. LOAD is attempted
// even when INSTALL fails because the extension may already be cached locally.
func (s *Store) loadSpatial(optional bool) error {
	installErr := s.execWithHardTimeout("INSTALL spatial;", extensionTimeout)
	if installErr != nil {
		logging.Debug().Err(installErr).Msg("INSTALL spatial failed, trying LOAD")
	}

	if err := s.execWithHardTimeout("LOAD spatial;", extensionTimeout); err != nil {
		if optional {
			logging.Warn().Err(err).Msg("Spatial extension unavailable; bounding box filters and coordinates will fail")
			return nil
		}
		return fmt.Errorf("failed to load spatial extension: %w", err)
	}

	s.spatialAvailable = true
	logging.Debug().Msg("Spatial extension loaded")
	return nil
}

// loadDataset replaces the table with the contents of the parquet glob and
// records the row count.
func (s *Store) loadDataset(ctx context.Context, path string) error {
	start := time.Now()

	// The path comes from configuration, never from a request, but it is still
	// quoted as a literal because read_parquet does not take parameters.
	stmt := fmt.Sprintf("CREATE OR REPLACE TABLE %s AS SELECT * FROM read_parquet(%s)", s.table, quoteLiteral(path))
	if _, err := s.conn.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to load dataset from %s: %w", path, err)
	}

	if s.spatialAvailable {
		if err := s.normalizeGeometry(ctx); err != nil {
			return err
		}
	}

	var rows int64
	if err := s.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+s.table).Scan(&rows); err != nil {
		return fmt.Errorf("failed to count dataset rows: %w", err)
	}
	s.rows = rows

	elapsed := time.Since(start)
	metrics.DatasetRows.Set(float64(rows))
	metrics.DatasetLoadDuration.Set(elapsed.Seconds())
	logging.Info().
		Str("path", path).
		Str("table", s.table).
		Int64("rows", rows).
		Dur("duration", elapsed).
		Msg("Dataset loaded")
	return nil
}

// normalizeGeometry converts a WKB blob geometry column, as written by files
// without GeoParquet metadata, into a GEOMETRY column.
func (s *Store) normalizeGeometry(ctx context.Context) error {
	var dataType string
	err := s.conn.QueryRowContext(ctx,
		"SELECT data_type FROM information_schema.columns WHERE table_name = ? AND column_name = 'geometry'",
		s.table).Scan(&dataType)
	if err != nil {
		return fmt.Errorf("dataset has no geometry column: %w", err)
	}

	if dataType != "BLOB" {
		return nil
	}

	stmt := "ALTER TABLE " + s.table + " ALTER geometry TYPE GEOMETRY USING ST_GeomFromWKB(geometry)"
	if _, err := s.conn.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to convert geometry column: %w", err)
	}
	logging.Debug().Str("table", s.table).Msg("Converted WKB geometry column")
	return nil
}

// quoteLiteral renders s as a single-quoted SQL string literal.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
