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
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/uplift/engine"
	"github.com/AleutianAI/uplift/engine/sampling"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	simSessions int
	simVariants int
	simSeed     uint64
	simCTRs     string
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

// simulateCmd drives synthetic traffic through an in-memory engine.
//
// # Description
//
// Runs a full experiment in memory: each synthetic session is assigned
// a variant, clicks with that variant's configured probability, and
// ends with random scroll depth and dwell time. The final report shows
// how quickly allocation converged and whether a winner was declared.
// Nothing is written to the state database.
var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run synthetic traffic through an in-memory experiment",
	Long: `Runs synthetic sessions against an in-memory experiment and prints
the resulting report.

Per-variant click-through rates come from --ctrs, matched to catalog
order. With no --catalog a generic n-variant catalog is generated.

Examples:
  uplift simulate --sessions 2000 --ctrs 0.05,0.09,0.05
  uplift simulate --catalog variants.json --ctrs 0.04,0.11 --seed 7`,
	RunE: runSimulateCommand,
}

func init() {
	simulateCmd.Flags().IntVar(&simSessions, "sessions", 1000,
		"Number of synthetic sessions")
	simulateCmd.Flags().IntVar(&simVariants, "variants", 3,
		"Variant count when no --catalog is given")
	simulateCmd.Flags().Uint64Var(&simSeed, "seed", 1,
		"Random seed for reproducible runs")
	simulateCmd.Flags().StringVar(&simCTRs, "ctrs", "",
		"Comma-separated per-variant click probabilities, catalog order")

	rootCmd.AddCommand(simulateCmd)
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runSimulateCommand(cmd *cobra.Command, _ []string) error {
	logger := newLogger("simulate")
	defer logger.Close()

	catalog, err := simulationCatalog()
	if err != nil {
		return err
	}
	ctrs, err := parseCTRs(simCTRs, catalog)
	if err != nil {
		return err
	}

	eng, err := engine.New(catalog, engine.NewMemoryPort(),
		engine.WithSource(sampling.NewLCGSource(simSeed)),
		engine.WithLogger(logger.Slog()),
	)
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}

	ctx := cmd.Context()
	eng.Init(ctx)

	// Independent source for visitor behavior so the traffic model does
	// not perturb the engine's own draws.
	visitor := sampling.NewLCGSource(simSeed ^ 0x9e3779b97f4a7c15)

	for i := 0; i < simSessions; i++ {
		sessionID := uuid.NewString()
		variantID, err := eng.Assign(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("assign session %d: %w", i, err)
		}

		ctr := ctrs[variantID]
		if visitor.Uniform() < ctr {
			_ = eng.RecordClick(ctx, variantID)
			// Clicking sessions open the detail view about half the time.
			if visitor.Uniform() < 0.5 {
				_ = eng.RecordDetailOpen(ctx, variantID)
			}
		}

		scroll := uint64(20 + sampling.Intn(visitor, 81))
		duration := uint64(5 + sampling.Intn(visitor, 116))
		eng.EndSession(ctx, sessionID, scroll, duration)
	}

	rows, err := eng.ExportTable()
	if err != nil {
		return fmt.Errorf("build report: %w", err)
	}

	color := isatty.IsTerminal(os.Stdout.Fd())
	fmt.Printf("Simulated %d sessions (seed %d)\n\n", simSessions, simSeed)
	fmt.Print(renderReport(rows, color))

	if winner, ok := eng.GetWinner(); ok {
		fmt.Printf("\nWinner declared: %s\n", winner)
	} else {
		fmt.Println("\nNo winner declared")
	}
	return nil
}

// simulationCatalog uses --catalog when given, a generated one otherwise.
func simulationCatalog() (*engine.Catalog, error) {
	if flagCatalog != "" {
		return loadCatalog(flagCatalog)
	}
	if simVariants < 1 {
		return nil, fmt.Errorf("--variants must be at least 1")
	}
	return defaultCatalog(simVariants)
}

// parseCTRs maps the --ctrs list onto catalog order. Missing entries
// default to 0.05; extras are a configuration error.
func parseCTRs(spec string, catalog *engine.Catalog) (map[string]float64, error) {
	ids := catalog.IDs()
	ctrs := make(map[string]float64, len(ids))
	for _, id := range ids {
		ctrs[id] = 0.05
	}
	if spec == "" {
		return ctrs, nil
	}

	parts := strings.Split(spec, ",")
	if len(parts) > len(ids) {
		return nil, fmt.Errorf("--ctrs has %d entries for %d variants", len(parts), len(ids))
	}
	for i, part := range parts {
		rate, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("parse --ctrs entry %q: %w", part, err)
		}
		if rate < 0 || rate > 1 {
			return nil, fmt.Errorf("--ctrs entry %q outside [0, 1]", part)
		}
		ctrs[ids[i]] = rate
	}
	return ctrs, nil
}
