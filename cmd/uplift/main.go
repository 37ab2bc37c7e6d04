// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command uplift runs the device-local experiment allocator: an HTTP
// service for hosts that embed it out of process, a traffic simulator
// for tuning, and a report viewer for the accumulated statistics.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/uplift/pkg/logging"
)

// =============================================================================
// ROOT COMMAND
// =============================================================================

var (
	flagDBPath   string
	flagCatalog  string
	flagLogLevel string
	flagLogDir   string
)

var rootCmd = &cobra.Command{
	Use:   "uplift",
	Short: "Device-local A/B experiment allocator",
	Long: `uplift allocates UI variants to browsing sessions with Thompson
Sampling, tracks engagement, and declares a winner once one variant is
convincingly ahead.

State lives in a local BadgerDB; no data leaves the device.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDBPath, "db", "~/.uplift/db",
		"BadgerDB directory for experiment state")
	rootCmd.PersistentFlags().StringVar(&flagCatalog, "catalog", "",
		"Path to the variant catalog JSON file")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info",
		"Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&flagLogDir, "log-dir", "",
		"Directory for JSON log files (disabled when empty)")
}

// newLogger builds the process logger from the persistent flags.
func newLogger(service string) *logging.Logger {
	level := logging.LevelInfo
	switch flagLogLevel {
	case "debug":
		level = logging.LevelDebug
	case "warn":
		level = logging.LevelWarn
	case "error":
		level = logging.LevelError
	}
	return logging.New(logging.Config{
		Level:   level,
		LogDir:  flagLogDir,
		Service: service,
	})
}
