// Boston 311 Explorer - Service Request Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/boston311

package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/boston311/internal/config"
	"github.com/tomtom215/boston311/internal/logging"
)

// Store executes compiled query plans against the loaded dataset.
// It is safe for concurrent use.
type Store struct {
	conn    *sql.DB
	table   string
	loc     *time.Location
	timeout time.Duration
	cb      *gobreaker.CircuitBreaker[any]

	spatialAvailable bool
	rows             int64
}

// Open connects to DuckDB, loads the spatial extension and imports the
// dataset. The returned Store must be closed.
func Open(ctx context.Context, cfg *config.Config) (*Store, error) {
	s, err := connect(cfg)
	if err != nil {
		return nil, err
	}

	if err := s.loadSpatial(cfg.Data.SpatialOptional); err != nil {
		closeQuietly(s.conn)
		return nil, err
	}

	if err := s.loadDataset(ctx, cfg.Data.Path); err != nil {
		closeQuietly(s.conn)
		return nil, err
	}

	return s, nil
}

// connect opens the database and configures the pool without loading data.
func connect(cfg *config.Config) (*Store, error) {
	threads := cfg.Data.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}

	if cfg.Data.Database != "" {
		// 0750 per gosec G301
		if dir := filepath.Dir(cfg.Data.Database); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
			}
		}
	}

	// Extensions are loaded explicitly by loadSpatial so a restricted network
	// cannot hang the first query on an implicit download.
	dsn := fmt.Sprintf("%s?threads=%d&autoinstall_known_extensions=false&autoload_known_extensions=false",
		cfg.Data.Database, threads)
	if cfg.Data.MaxMemory != "" {
		dsn += "&max_memory=" + cfg.Data.MaxMemory
	}

	conn, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{
		conn:    conn,
		table:   cfg.Data.Table,
		loc:     cfg.Location(),
		timeout: cfg.Store.QueryTimeout,
	}
	s.configureConnectionPool()
	s.cb = newBreaker("duckdb-"+s.table, cfg.Store)

	logging.Info().
		Str("database", displayPath(cfg.Data.Database)).
		Int("threads", threads).
		Str("max_memory", cfg.Data.MaxMemory).
		Msg("DuckDB opened")
	return s, nil
}

// configureConnectionPool sizes the pool for parallel read queries.
func (s *Store) configureConnectionPool() {
	s.conn.SetMaxOpenConns(runtime.NumCPU())
	s.conn.SetMaxIdleConns(2)
	s.conn.SetConnMaxLifetime(time.Hour)
	s.conn.SetConnMaxIdleTime(5 * time.Minute)
}

// ensureContext applies the store timeout when ctx carries no deadline.
func (s *Store) ensureContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return ctx, func() {}
}

// Ping verifies the connection is usable.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := s.ensureContext(ctx)
	defer cancel()
	if err := s.conn.PingContext(ctx); err != nil {
		return classify(ctx, "ping", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// Table returns the name of the loaded table.
func (s *Store) Table() string {
	return s.table
}

// Rows returns the number of rows loaded by Open.
func (s *Store) Rows() int64 {
	return s.rows
}

// IsSpatialAvailable reports whether the spatial extension loaded.
func (s *Store) IsSpatialAvailable() bool {
	return s.spatialAvailable
}

// Location returns the time zone of the stored wall-clock timestamps.
func (s *Store) Location() *time.Location {
	return s.loc
}

func displayPath(path string) string {
	if path == "" {
		return ":memory:"
	}
	return path
}
