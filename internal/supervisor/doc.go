// Boston 311 Explorer - Service Request Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/boston311

/*
Package supervisor runs the server's long-lived services under a suture v4
supervisor tree.

	RootSupervisor ("boston311")
	├── MaintenanceSupervisor ("maintenance-layer")
	│   ├── session-pruner   drops idle color sessions
	│   └── store-probe      pings the store and logs state changes
	└── APISupervisor ("api-layer")
	    └── http-server

A crashing maintenance task is restarted with backoff without touching the
HTTP server, and the reverse. Cancelling the context passed to Serve stops
every service; HTTPServerService then drains in-flight requests.

Supervisor events (service failures, restarts, backoff) are logged through
sutureslog using the zerolog-backed slog handler from the logging package.
*/
package supervisor
