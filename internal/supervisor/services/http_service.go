// Boston 311 Explorer - Service Request Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/boston311

package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/boston311/internal/logging"
)

const defaultDrainTimeout = 10 * time.Second

// HTTPServer is the part of *http.Server the service drives.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPServerService serves the dashboard API under the supervisor. When the
// Serve context ends, in-flight requests get shutdownTimeout to complete.
type HTTPServerService struct {
	server          HTTPServer
	addr            string
	shutdownTimeout time.Duration
	log             zerolog.Logger
}

// NewHTTPServerService wraps server. addr only labels log lines.
func NewHTTPServerService(server HTTPServer, addr string, shutdownTimeout time.Duration) *HTTPServerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultDrainTimeout
	}
	return &HTTPServerService{
		server:          server,
		addr:            addr,
		shutdownTimeout: shutdownTimeout,
		log:             logging.WithComponent("http-server"),
	}
}

// listen starts the server. The channel yields the listener's terminal error,
// nil after a clean Shutdown, and is then closed.
func (h *HTTPServerService) listen() <-chan error {
	stopped := make(chan error, 1)
	go func() {
		defer close(stopped)
		err := h.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		stopped <- err
	}()
	return stopped
}

// Serve implements suture.Service. A listener that stops on its own is
// reported as a failure so the supervisor restarts it.
func (h *HTTPServerService) Serve(ctx context.Context) error {
	stopped := h.listen()
	h.log.Info().Str("addr", h.addr).Msg("Serving dashboard API")

	select {
	case err := <-stopped:
		if err != nil {
			return fmt.Errorf("listen on %s: %w", h.addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	if err := h.drain(); err != nil {
		return err
	}
	<-stopped
	return ctx.Err()
}

// drain shuts the server down on a fresh deadline, since the Serve context is
// already done by the time it runs.
func (h *HTTPServerService) drain() error {
	drainCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
	defer cancel()

	start := time.Now()
	if err := h.server.Shutdown(drainCtx); err != nil {
		h.log.Warn().Err(err).Dur("timeout", h.shutdownTimeout).Msg("HTTP drain incomplete")
		return fmt.Errorf("drain %s: %w", h.addr, err)
	}
	h.log.Info().Dur("duration", time.Since(start)).Msg("HTTP server drained")
	return nil
}

// String names the service in supervisor events.
func (h *HTTPServerService) String() string {
	return "http-server"
}
