// Boston 311 Explorer - Service Request Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/boston311

/*
Package main is the entry point for the Boston 311 explorer server.

The server loads the 311 service request dataset into DuckDB and serves the
dashboard API: period options, filtered requests with per-session colors,
bounding box selections, filter options and category counts.

# Application Architecture

Services run under Suture v4 supervision:

	RootSupervisor ("boston311")
	├── MaintenanceSupervisor ("maintenance-layer")
	│   ├── session-pruner (drops idle color sessions)
	│   └── store-probe (logs store reachability changes)
	└── APISupervisor ("api-layer")
	    └── http-server (chi router)

Startup order:

 1. Configuration: Koanf v2 over defaults, config.yaml, .env and environment
 2. Logging: zerolog with JSON or console output
 3. Store: DuckDB with the spatial extension and the dataset loaded
 4. Explorer: period resolver, query builder, caches and session registry
 5. Supervisor tree and HTTP server

# Configuration

Environment variables use the config key path in upper case with underscores,
for example DATA_PATH, PERIODS_LOCATION, CACHE_TTL or SERVER_PORT.

# Signal Handling

SIGINT and SIGTERM cancel the supervisor tree. The HTTP server drains in-flight
requests for up to server.shutdown_timeout, then the store is closed.

# Example Usage

	export DATA_PATH=/data/boston311/*.parquet
	export LOGGING_FORMAT=console
	./boston311
*/
package main
