// Boston 311 Explorer - Service Request Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/boston311

package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/tomtom215/boston311/internal/api"
	"github.com/tomtom215/boston311/internal/config"
	"github.com/tomtom215/boston311/internal/database"
	"github.com/tomtom215/boston311/internal/explorer"
	"github.com/tomtom215/boston311/internal/logging"
	"github.com/tomtom215/boston311/internal/supervisor"
	"github.com/tomtom215/boston311/internal/supervisor/services"
)

const (
	sessionPruneInterval = 5 * time.Minute
	storeProbeInterval   = 30 * time.Second
	storeProbeTimeout    = 5 * time.Second
)

func main() {
	os.Exit(run())
}

// run returns the process exit code so deferred cleanup always happens.
func run() int {
	cfg, err := config.Load()
	if err != nil {
		logging.Error().Err(err).Msg("Failed to load configuration")
		return 1
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	logging.Info().
		Str("data_path", cfg.Data.Path).
		Str("table", cfg.Data.Table).
		Str("location", cfg.Periods.Location).
		Msg("Starting Boston 311 explorer")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := database.Open(ctx, cfg)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to open store")
		return 1
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing store")
		}
	}()
	logging.Info().
		Int64("rows", store.Rows()).
		Bool("spatial", store.IsSpatialAvailable()).
		Msg("Store ready")

	ex, err := explorer.New(ctx, store, cfg)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to initialize explorer")
		return 1
	}
	defer ex.Close()

	router := api.NewRouter(
		api.NewHandler(ex, store),
		api.NewChiMiddleware(api.ChiMiddlewareConfigFromServer(cfg.Server)),
	)

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		logging.Error().Err(err).Msg("Failed to create supervisor tree")
		return 1
	}

	probe := services.NewStoreProbe(store, storeProbeTimeout)
	tree.AddMaintenanceService(services.NewPeriodicService("session-pruner", sessionPruneInterval,
		func(context.Context) error {
			ex.PruneSessions()
			return nil
		}))
	tree.AddMaintenanceService(services.NewPeriodicService("store-probe", storeProbeInterval, probe.Check))
	tree.AddAPIService(services.NewHTTPServerService(server, addr, cfg.Server.ShutdownTimeout))

	logging.Info().Str("addr", addr).Msg("Supervisor tree starting")

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree stopped with error")
		return 1
	}

	if report, err := tree.UnstoppedServiceReport(); err == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().Str("service", svc.Name).Msg("Service did not stop within the shutdown timeout")
		}
	}

	logging.Info().Msg("Shutdown complete")
	return 0
}
