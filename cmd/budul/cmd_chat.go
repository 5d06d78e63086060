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
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/BudulAI/BudulGo/cmd/budul/config"
	"github.com/BudulAI/BudulGo/pkg/history"
)

// runChatCommand starts the interactive chat loop.
//
// # Description
//
// Builds a SessionChatRunner from the loaded configuration and the chat
// flags, opens the local history store unless disabled, and runs the
// loop until the user exits or the process receives SIGINT/SIGTERM.
//
// # Inputs
//
//   - cmd: Cobra command (unused)
//   - args: Command arguments (unused; questions are typed at the prompt)
//
// # Limitations
//
//   - A failed startup health probe ends the run; pass
//     --optimistic-health to skip the probe
func runChatCommand(cmd *cobra.Command, args []string) {
	cfg := config.Get()

	madhab := cfg.Chat.Madhab
	if madhabSchool != "" {
		madhab = madhabSchool
	}
	language := cfg.Chat.Language
	if chatLanguage != "" {
		language = chatLanguage
	}

	// Local history is best-effort: an unopenable store (another budul
	// process holding the BadgerDB lock, usually) must not block chat.
	var store *history.Store
	if cfg.History.Enabled && !noLocalHistory {
		st, err := openHistoryStore(cfg)
		if err != nil {
			slogger().Warn("local history unavailable, continuing without it", "error", err)
		} else {
			store = st
		}
	}

	runner := NewSessionChatRunner(SessionChatRunnerConfig{
		BaseURL:          cfg.Backend.BaseURL,
		AuthToken:        cfg.Backend.AuthToken,
		Madhab:           madhab,
		Language:         language,
		SessionID:        resumeSession,
		Streaming:        streamResponses || cfg.Chat.Streaming,
		OptimisticHealth: optimisticHealth || cfg.Backend.OptimisticHealth,
		ChatTimeout:      cfg.Backend.ChatTimeout(),
		MetaTimeout:      cfg.Backend.MetaTimeout(),
		HistoryStore:     store,
		Logger:           slogger(),
	})
	defer runner.Close()

	// Set up graceful shutdown with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	// Run the chat loop
	if err := runner.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("Chat error: %v", err)
	}
}
