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
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/BudulAI/BudulGo/cmd/budul/config"
	"github.com/BudulAI/BudulGo/pkg/api"
	"github.com/BudulAI/BudulGo/pkg/telemetry"
	"github.com/BudulAI/BudulGo/pkg/ux"
)

// runListenCommand follows a chat session over the backend websocket.
//
// # Description
//
// Opens the push socket for a user/session pair and prints every frame
// until interrupted. The configuration file is watched while listening,
// so edits to budul.yaml are picked up without a restart (they apply to
// the next connection, not the open one). When telemetry.metrics is
// "prometheus" a /metrics listener is served on telemetry.metrics_addr
// for scraping during long listens.
//
// # Inputs
//
//   - cmd: Cobra command (unused)
//   - args: Command arguments (unused)
//
// # Limitations
//
//   - The open socket is not redialed when the backend drops it; the
//     command exits and is expected to be rerun
func runListenCommand(cmd *cobra.Command, args []string) {
	cfg := config.Get()
	logger := slogger()

	userID := listenUser
	if userID == "" {
		userID = "local"
	}
	sessionID := listenSession
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	// Set up graceful shutdown with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := config.Watch(ctx, logger, func(updated config.BudulConfig) {
		logger.Info("configuration reloaded", "base_url", updated.Backend.BaseURL)
	}); err != nil {
		logger.Warn("config watch unavailable", "error", err)
	}

	if cfg.Telemetry.Metrics == "prometheus" {
		go serveMetrics(ctx, cfg.Telemetry.MetricsAddr, logger)
	}

	client := newAPIClient(cfg)
	sock, err := client.OpenSocket(ctx, userID, sessionID)
	if err != nil {
		log.Fatalf("Failed to open the chat socket: %v", err)
	}
	defer sock.Close()

	ux.Info(fmt.Sprintf("Listening to session %s as %s (Ctrl+C to stop)", sessionID, userID))

	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-sock.Frames():
			if !ok {
				ux.Warning("Socket closed by the backend")
				return
			}
			printFrame(frame)
		}
	}
}

// printFrame renders one websocket frame. Machine mode emits the raw
// JSON frame per line so scripts can parse the full payload.
func printFrame(frame api.SocketFrame) {
	if ux.GetMode().Level == ux.ModeMachine {
		fmt.Println(string(frame.Raw))
		return
	}

	stamp := time.Now().Format("15:04:05")
	action := frame.Action
	if action == "" {
		action = "message"
	}
	if frame.Message != "" {
		fmt.Printf("%s %s %s\n", ux.Styles.Muted.Render(stamp), ux.Styles.Title.Render(action), frame.Message)
		return
	}
	fmt.Printf("%s %s %s\n", ux.Styles.Muted.Render(stamp), ux.Styles.Title.Render(action), ux.Styles.Muted.Render(string(frame.Raw)))
}

// serveMetrics exposes the Prometheus registry until ctx is canceled.
func serveMetrics(ctx context.Context, addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", telemetry.MetricsHandler())

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Warn("metrics listener failed", "error", err)
	}
}
