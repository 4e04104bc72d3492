// Boston 311 Explorer - Service Request Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/boston311

// Package config loads the explorer configuration from defaults, an optional
// YAML file and environment variables, in that order of precedence.
package config

import (
	"time"
)

// Config is the complete process configuration.
type Config struct {
	Data    DataConfig    `koanf:"data"`
	Store   StoreConfig   `koanf:"store"`
	Cache   CacheConfig   `koanf:"cache"`
	Periods PeriodsConfig `koanf:"periods"`
	Query   QueryConfig   `koanf:"query"`
	Colors  ColorsConfig  `koanf:"colors"`
	Server  ServerConfig  `koanf:"server"`
	Logging LoggingConfig `koanf:"logging"`
}

// DataConfig locates the service request dataset and tunes DuckDB.
type DataConfig struct {
	// Path is a parquet file or glob loaded into Table at startup.
	Path string `koanf:"path" validate:"required"`

	// Table is the relation the dataset is loaded into.
	Table string `koanf:"table" validate:"required"`

	// Database is the DuckDB file; empty keeps everything in memory.
	Database string `koanf:"database"`

	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads" validate:"min=0"` // 0 = runtime.NumCPU()

	// SpatialOptional lets the store start without the spatial extension.
	// Bounding box filters and coordinates then fail at query time.
	SpatialOptional bool `koanf:"spatial_optional"`
}

// StoreConfig bounds store calls.
type StoreConfig struct {
	QueryTimeout time.Duration `koanf:"query_timeout" validate:"gt=0"`

	// Circuit breaker
	BreakerMaxRequests  uint32        `koanf:"breaker_max_requests" validate:"min=1"`
	BreakerInterval     time.Duration `koanf:"breaker_interval" validate:"min=0"`
	BreakerTimeout      time.Duration `koanf:"breaker_timeout" validate:"gt=0"`
	BreakerMinRequests  uint32        `koanf:"breaker_min_requests" validate:"min=1"`
	BreakerFailureRatio float64       `koanf:"breaker_failure_ratio" validate:"gt=0,lte=1"`
}

// CacheConfig configures the query result caches.
type CacheConfig struct {
	TTL           time.Duration `koanf:"ttl" validate:"gt=0"`
	MaxEntries    int           `koanf:"max_entries" validate:"min=0"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

// PeriodsConfig configures period tokens.
type PeriodsConfig struct {
	// Tokens restricts the recognized tokens; empty enables the full grammar.
	Tokens      []string `koanf:"tokens" validate:"omitempty,dive,period_token"`
	RecentYears int      `koanf:"recent_years" validate:"min=0,max=50"`
	MinYear     int      `koanf:"min_year" validate:"min=1900"`

	// Location is the IANA zone used for calendar boundaries.
	Location string `koanf:"location" validate:"required"`

	// DatasetStart and DatasetEnd (RFC3339) pin the all_time range. Both
	// empty means the bounds are read from the store.
	DatasetStart string `koanf:"dataset_start"`
	DatasetEnd   string `koanf:"dataset_end"`
}

// QueryConfig configures query building.
type QueryConfig struct {
	MaxRows        int      `koanf:"max_rows" validate:"min=0"`
	SelectionLimit int      `koanf:"selection_limit" validate:"min=1"`
	TextColumns    []string `koanf:"text_columns" validate:"min=1"`
}

// ColorsConfig configures palettes and sessions.
type ColorsConfig struct {
	Palette    []string `koanf:"palette" validate:"omitempty,dive,hexcolor"`
	NullColor  string   `koanf:"null_color" validate:"hexcolor"`
	PointColor string   `koanf:"point_color" validate:"hexcolor"`
	Columns    []string `koanf:"columns" validate:"min=1,dive,category_column"`
	Alpha      float64  `koanf:"alpha" validate:"gte=0,lte=1"`

	// SeedSessions pre-assigns every known value in sorted order so a value
	// keeps its color across sessions.
	SeedSessions bool `koanf:"seed_sessions"`

	SessionTTL  time.Duration `koanf:"session_ttl" validate:"gt=0"`
	MaxSessions int           `koanf:"max_sessions" validate:"min=1"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gt=0"`
	IdleTimeout     time.Duration `koanf:"idle_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`

	RateLimitReqs     int           `koanf:"rate_limit_requests" validate:"min=0"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// LoggingConfig mirrors logging.Config for file and env loading.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn warning error fatal panic disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}
