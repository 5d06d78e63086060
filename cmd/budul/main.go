// Copyright (C) 2025 Budul AI (engineering@budul.ai)
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
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/BudulAI/BudulGo/cmd/budul/config"
	"github.com/BudulAI/BudulGo/pkg/logging"
	"github.com/BudulAI/BudulGo/pkg/telemetry"
	"github.com/BudulAI/BudulGo/pkg/ux"
)

var (
	appLogger         *logging.Logger
	telemetryShutdown func(context.Context) error
)

func main() {
	// Execute the root command. Cobra handles parsing the arguments.
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}

func init() {
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if err := config.Load(); err != nil {
			log.Fatalf("Error loading configuration: %v", err)
		}
		cfg := config.Get()

		// Diagnostics go to the log file under logging.dir. stderr stays
		// quiet unless JSON diagnostics were requested, so the chat UI on
		// stdout is never interleaved with log lines.
		appLogger = logging.New(logging.Config{
			Level:   logging.ParseLevel(cfg.Logging.Level),
			LogDir:  cfg.Logging.Dir,
			Service: "budul",
			JSON:    cfg.Logging.JSON,
			Quiet:   !cfg.Logging.JSON,
		})

		// Initialize UX output level from flag, config, or environment
		if outputMode != "" {
			ux.SetModeLevel(ux.ParseModeLevel(outputMode))
		} else if cfg.Output.Mode != "" {
			ux.SetModeLevel(ux.ParseModeLevel(cfg.Output.Mode))
		} else {
			ux.InitMode()
		}
		if !cfg.Output.Greeting {
			mode := ux.GetMode()
			mode.ShowGreeting = false
			ux.SetMode(mode)
		}

		tcfg := telemetry.DefaultConfig()
		if cfg.Telemetry.Traces != "" {
			tcfg.TraceExporter = cfg.Telemetry.Traces
		}
		if cfg.Telemetry.Metrics != "" {
			tcfg.MetricExporter = cfg.Telemetry.Metrics
		}
		if cfg.Telemetry.OTLPEndpoint != "" {
			tcfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
		}

		// A broken collector must not take the CLI down with it.
		shutdown, err := telemetry.Init(cmd.Context(), tcfg)
		if err != nil {
			appLogger.Slog().Warn("telemetry disabled", "error", err)
		} else {
			telemetryShutdown = shutdown
		}
	}

	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		if telemetryShutdown != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := telemetryShutdown(ctx); err != nil {
				appLogger.Slog().Warn("telemetry shutdown failed", "error", err)
			}
		}
		if appLogger != nil {
			appLogger.Close()
		}
	}
}
