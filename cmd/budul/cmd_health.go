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
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/BudulAI/BudulGo/cmd/budul/config"
	"github.com/BudulAI/BudulGo/pkg/api"
	"github.com/BudulAI/BudulGo/pkg/ux"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	healthWatch      bool // Repeat the probe until interrupted
	healthIntervalMs int  // Milliseconds between watch probes
	healthJSONOutput bool // Output as JSON
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

// healthCmd probes backend connectivity.
//
// # Description
//
// Sends a single health probe to the configured backend and reports the
// normalized status. With --watch the probe repeats on an interval until
// the process is interrupted, which is handy while a deployment rolls.
//
// # Examples
//
//	budul health              # One probe, exit 0 when healthy
//	budul health --json       # JSON output for scripting
//	budul health --watch      # Probe repeatedly until Ctrl+C
//
// # Limitations
//
//   - backend.optimistic_health makes every probe report assumed_healthy
//     without any I/O; unset it before diagnosing connectivity
//
// # Assumptions
//
//   - The health endpoint lives at GET {base_url}/
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check connectivity to the Budul backend",
	Long: `Probes the Budul backend health endpoint and reports the result.

A healthy backend answers with one of the healthy-equivalent status
strings (healthy, operational, ok, up, online); anything else, or a
transport failure, exits non-zero.

Examples:
  budul health              # Basic connectivity check
  budul health --json       # JSON output for automation
  budul health --watch      # Keep probing until interrupted`,
	Run: runHealthCommand,
}

// =============================================================================
// COMMAND INITIALIZATION
// =============================================================================

func init() {
	healthCmd.Flags().BoolVarP(&healthWatch, "watch", "w", false,
		"Probe repeatedly until interrupted")
	healthCmd.Flags().IntVar(&healthIntervalMs, "interval", 10000,
		"Milliseconds between probes in watch mode")
	healthCmd.Flags().BoolVar(&healthJSONOutput, "json", false,
		"Output as JSON for scripting")

	rootCmd.AddCommand(healthCmd)
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

// runHealthCommand executes one probe, or a probe loop in watch mode.
//
// # Outputs
//
// Prints the normalized status to stdout. Exits with code 1 when a
// single probe fails; watch mode keeps running through failures.
func runHealthCommand(cmd *cobra.Command, args []string) {
	cfg := config.Get()
	client := newAPIClient(cfg)

	if !healthWatch {
		if !probeBackend(client, cfg.Backend.MetaTimeout()) {
			os.Exit(1)
		}
		return
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(time.Duration(healthIntervalMs) * time.Millisecond)
	defer ticker.Stop()

	for {
		probeBackend(client, cfg.Backend.MetaTimeout())
		select {
		case <-sigCh:
			return
		case <-ticker.C:
		}
	}
}

// probeBackend runs one health check and renders the result. Returns
// true when the backend reported a healthy-equivalent status.
func probeBackend(client *api.Client, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	status, err := client.HealthCheck(ctx)

	if healthJSONOutput || ux.GetMode().Level == ux.ModeMachine {
		out := map[string]string{"status": status.Status}
		if status.Service != "" {
			out["service"] = status.Service
		}
		if err != nil {
			out["status"] = "unreachable"
			out["error"] = err.Error()
		}
		line, _ := json.Marshal(out)
		fmt.Println(string(line))
		return err == nil && status.Healthy()
	}

	if err != nil {
		ux.HealthStatus("unreachable", err.Error())
		return false
	}

	message := fmt.Sprintf("Backend reports %q", status.Status)
	if status.Service != "" {
		message = fmt.Sprintf("%s reports %q", status.Service, status.Status)
	}
	if !status.Healthy() {
		ux.HealthStatus("degraded", message)
		return false
	}
	ux.HealthStatus("healthy", message)
	return true
}
