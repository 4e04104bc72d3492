// Boston 311 Explorer - Service Request Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/boston311

/*
Package api serves the dashboard's HTTP surface on top of an Explorer.

Routes (all JSON, wrapped in the APIResponse envelope):

	GET    /health                              store, cache and session status
	GET    /metrics                             Prometheus exposition
	GET    /api/v1/periods                      period picker entries
	GET    /api/v1/requests                     filtered requests, newest first
	GET    /api/v1/selection                    requests inside bbox, capped
	GET    /api/v1/options/{column}             distinct values for a filter widget
	GET    /api/v1/counts/{column}              per-value request counts
	POST   /api/v1/sessions                     start a color session
	DELETE /api/v1/sessions/{id}                end a color session
	POST   /api/v1/sessions/{id}/reset          clear and reseed session colors
	GET    /api/v1/sessions/{id}/legend/{column} legend for the filtered requests
	DELETE /api/v1/cache                        drop every cached query result

Filter parameters shared by the query routes:

	period        period token (year_2024, last_30_days, all_time, ...)
	start, end    explicit RFC3339 range [start, end); mutually exclusive with period
	neighborhood  repeatable; matches any listed value
	source        repeatable
	subject       repeatable
	bbox          minLon,minLat,maxLon,maxLat
	q             case-insensitive free text

/requests and /selection also accept session, color_by and alpha to return
one RGBA color per record plus the legend.

Error mapping:

	invalid filter or unknown period   400
	unknown or expired session         404
	store failure or open breaker      502
	store timeout                      504
*/
package api
