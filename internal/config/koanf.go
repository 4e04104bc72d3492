// Boston 311 Explorer - Service Request Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/boston311

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/tomtom215/boston311/internal/palette"
)

// DefaultConfigPaths lists where a config file is looked for, first match wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/boston311/config.yaml",
	"/etc/boston311/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// DotEnvFile is loaded into the process environment before env vars are read.
// Variables already set in the environment win.
var DotEnvFile = ".env"

// Default returns the built-in configuration, the lowest-priority layer of Load.
func Default() *Config {
	return &Config{
		Data: DataConfig{
			Path:      "data/raw/*.parquet",
			Table:     "requests",
			Database:  "",
			MaxMemory: "2GB",
			Threads:   0,
		},
		Store: StoreConfig{
			QueryTimeout:        30 * time.Second,
			BreakerMaxRequests:  3,
			BreakerInterval:     time.Minute,
			BreakerTimeout:      30 * time.Second,
			BreakerMinRequests:  10,
			BreakerFailureRatio: 0.6,
		},
		Cache: CacheConfig{
			TTL:           5 * time.Minute,
			MaxEntries:    1000,
			SweepInterval: time.Minute,
		},
		Periods: PeriodsConfig{
			RecentYears: 5,
			MinYear:     2011,
			Location:    "America/New_York",
		},
		Query: QueryConfig{
			MaxRows:        0,
			SelectionLimit: 1000,
			TextColumns:    []string{"case_title"},
		},
		Colors: ColorsConfig{
			Palette:      palette.HexList(palette.DefaultPalette),
			NullColor:    "#808080",
			PointColor:   "#1f77b4",
			Columns:      []string{"source", "subject", "neighborhood"},
			Alpha:        0.8,
			SeedSessions: true,
			SessionTTL:   24 * time.Hour,
			MaxSessions:  10000,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            5006,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     2 * time.Minute,
			ShutdownTimeout: 30 * time.Second,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads configuration with layered sources:
//  1. Defaults
//  2. Optional YAML file (CONFIG_PATH or DefaultConfigPaths)
//  3. Environment variables, after loading DotEnvFile if present
//
// The result is validated before it is returned.
func Load() (*Config, error) {
	if DotEnvFile != "" {
		if err := godotenv.Load(DotEnvFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load %s: %w", DotEnvFile, err)
		}
	}

	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths are split on commas when they arrive as a single string.
var sliceConfigPaths = []string{
	"periods.tokens",
	"query.text_columns",
	"colors.palette",
	"colors.columns",
	"server.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envMappings maps environment variable names (lower-cased) to koanf paths.
// Unmapped variables are ignored.
var envMappings = map[string]string{
	"data_path":               "data.path",
	"data_table":              "data.table",
	"duckdb_path":             "data.database",
	"duckdb_max_memory":       "data.max_memory",
	"duckdb_threads":          "data.threads",
	"duckdb_spatial_optional": "data.spatial_optional",

	"store_query_timeout":         "store.query_timeout",
	"store_breaker_max_requests":  "store.breaker_max_requests",
	"store_breaker_interval":      "store.breaker_interval",
	"store_breaker_timeout":       "store.breaker_timeout",
	"store_breaker_min_requests":  "store.breaker_min_requests",
	"store_breaker_failure_ratio": "store.breaker_failure_ratio",

	"cache_ttl":            "cache.ttl",
	"cache_max_entries":    "cache.max_entries",
	"cache_sweep_interval": "cache.sweep_interval",

	"periods_tokens":       "periods.tokens",
	"periods_recent_years": "periods.recent_years",
	"periods_min_year":     "periods.min_year",
	"periods_location":     "periods.location",
	"dataset_start":        "periods.dataset_start",
	"dataset_end":          "periods.dataset_end",

	"query_max_rows":        "query.max_rows",
	"query_selection_limit": "query.selection_limit",
	"query_text_columns":    "query.text_columns",

	"colors_palette":       "colors.palette",
	"colors_null_color":    "colors.null_color",
	"colors_point_color":   "colors.point_color",
	"colors_columns":       "colors.columns",
	"colors_alpha":         "colors.alpha",
	"colors_seed_sessions": "colors.seed_sessions",
	"session_ttl":          "colors.session_ttl",
	"max_sessions":         "colors.max_sessions",

	"http_host":           "server.host",
	"http_port":           "server.port",
	"http_read_timeout":   "server.read_timeout",
	"http_write_timeout":  "server.write_timeout",
	"http_idle_timeout":   "server.idle_timeout",
	"shutdown_timeout":    "server.shutdown_timeout",
	"rate_limit_requests": "server.rate_limit_requests",
	"rate_limit_window":   "server.rate_limit_window",
	"disable_rate_limit":  "server.rate_limit_disabled",
	"cors_origins":        "server.cors_origins",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
