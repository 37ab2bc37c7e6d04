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
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/uplift/engine"
	"github.com/AleutianAI/uplift/storage/badger"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var reportExperimentID string

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

// reportCmd prints the experiment report for the local database.
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the experiment statistics report",
	Long: `Prints per-variant statistics from the local state database:
impressions, clicks, CTR, engagement averages, and the Monte Carlo
win probability for each enabled variant.

Examples:
  uplift report --catalog variants.json
  uplift report --catalog variants.json --experiment homepage`,
	RunE: runReportCommand,
}

func init() {
	reportCmd.Flags().StringVar(&reportExperimentID, "experiment", "default",
		"Experiment id within the state database")

	rootCmd.AddCommand(reportCmd)
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runReportCommand(cmd *cobra.Command, _ []string) error {
	logger := newLogger("report")
	defer logger.Close()

	catalog, err := loadCatalog(flagCatalog)
	if err != nil {
		return err
	}

	store, err := badger.Open(badger.DefaultConfig(expandHome(flagDBPath)), reportExperimentID)
	if err != nil {
		return fmt.Errorf("open state database: %w", err)
	}
	defer store.Close()

	eng, err := engine.New(catalog, store, engine.WithLogger(logger.Slog()))
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}
	eng.Init(cmd.Context())

	rows, err := eng.ExportTable()
	if err != nil {
		return fmt.Errorf("build report: %w", err)
	}

	color := isatty.IsTerminal(os.Stdout.Fd())
	fmt.Print(renderReport(rows, color))
	return nil
}

// =============================================================================
// TABLE RENDERING
// =============================================================================

var (
	reportHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	reportWinnerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	reportDimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// renderReport formats the report rows as an aligned table. With color
// off (piped output) the same layout is emitted without escape codes.
func renderReport(rows []engine.ReportRow, color bool) string {
	headers := engine.ReportHeaders()

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	cells := make([][]string, len(rows))
	for r, row := range rows {
		cells[r] = row.Fields()
		for i, cell := range cells[r] {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var b strings.Builder
	writeLine := func(fields []string, style lipgloss.Style, styled bool) {
		parts := make([]string, len(fields))
		for i, f := range fields {
			parts[i] = pad(f, widths[i])
		}
		line := strings.Join(parts, "  ")
		if styled {
			line = style.Render(line)
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}

	writeLine(headers, reportHeaderStyle, color)
	for r, row := range rows {
		switch {
		case color && row.Winner:
			writeLine(cells[r], reportWinnerStyle, true)
		case color && !row.Enabled:
			writeLine(cells[r], reportDimStyle, true)
		default:
			writeLine(cells[r], lipgloss.Style{}, false)
		}
	}
	return b.String()
}

func pad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}
