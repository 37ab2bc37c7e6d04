// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/uplift/api"
	"github.com/AleutianAI/uplift/engine"
	"github.com/AleutianAI/uplift/pkg/telemetry"
	"github.com/AleutianAI/uplift/storage/badger"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	serveAddr         string // Listen address
	serveExperimentID string // Experiment id within the database
	serveNoOptimize   bool   // Start with adaptive allocation off
	serveTraces       string // Trace exporter: stdout or none
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

// serveCmd runs the experiment HTTP service.
//
// # Description
//
// Opens the local BadgerDB, loads (or initializes) the experiment
// state, and serves the allocation and administration API until
// interrupted. Statistics survive restarts through the database.
//
// # Examples
//
//	uplift serve --catalog variants.json
//	uplift serve --catalog variants.json --addr :9480 --traces stdout
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the experiment allocation HTTP service",
	Long: `Runs the experiment service.

The service allocates variants to sessions, records engagement events,
and exposes statistics, win probabilities, and pool administration.

Examples:
  uplift serve --catalog variants.json
  uplift serve --catalog variants.json --addr :9480
  uplift serve --catalog variants.json --no-optimize`,
	RunE: runServeCommand,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":9480",
		"HTTP listen address")
	serveCmd.Flags().StringVar(&serveExperimentID, "experiment", "default",
		"Experiment id within the state database")
	serveCmd.Flags().BoolVar(&serveNoOptimize, "no-optimize", false,
		"Start with adaptive allocation disabled (uniform split)")
	serveCmd.Flags().StringVar(&serveTraces, "traces", "none",
		"Trace exporter: stdout or none")

	rootCmd.AddCommand(serveCmd)
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runServeCommand(cmd *cobra.Command, _ []string) error {
	logger := newLogger("serve")
	defer logger.Close()

	catalog, err := loadCatalog(flagCatalog)
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	tcfg := telemetry.DefaultConfig("uplift-experiment")
	tcfg.Exporter = serveTraces
	shutdownTraces, err := telemetry.Init(ctx, tcfg)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() { _ = shutdownTraces(context.Background()) }()

	store, err := badger.Open(badger.DefaultConfig(expandHome(flagDBPath)), serveExperimentID)
	if err != nil {
		return fmt.Errorf("open state database: %w", err)
	}
	defer store.Close()

	eng, err := engine.New(catalog, store,
		engine.WithAutoOptimize(!serveNoOptimize),
		engine.WithLogger(logger.Slog()),
	)
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}
	eng.Init(ctx)

	router := api.NewRouter(eng, logger.Slog())
	server := &http.Server{
		Addr:              serveAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("experiment service listening", "addr", serveAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// expandHome expands a leading ~ in the database path.
func expandHome(path string) string {
	if len(path) > 0 && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
