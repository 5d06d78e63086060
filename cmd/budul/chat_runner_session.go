// Copyright (C) 2025 Budul AI (engineering@budul.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package main contains the SessionChatRunner implementation.
//
// This file implements the ChatRunner interface over the chat.Session
// state machine. It coordinates between the session, the ChatUI, the
// InputReader, and the local history store to provide the interactive
// chat experience for both synchronous and streaming modes.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"sync"
	"time"

	"github.com/BudulAI/BudulGo/pkg/api"
	"github.com/BudulAI/BudulGo/pkg/chat"
	"github.com/BudulAI/BudulGo/pkg/history"
	"github.com/BudulAI/BudulGo/pkg/ux"
)

// HistoryLoader fetches a session's server-side transcript. *api.Client
// satisfies it; tests substitute stubs.
type HistoryLoader interface {
	History(ctx context.Context, sessionID string) ([]api.HistoryEntry, error)
}

var _ HistoryLoader = (*api.Client)(nil)

// SessionChatRunnerConfig holds configuration for creating a
// SessionChatRunner.
//
// # Fields
//
//   - BaseURL: Required. Backend root (e.g. "https://api.budul.ai").
//   - AuthToken: Optional. Bearer token, empty for anonymous use.
//   - Madhab, Language: Optional. Forwarded on every request when set.
//   - SessionID: Optional. Resume an existing conversation by id.
//   - Streaming: Optional. Use the SSE endpoint and paint tokens live.
//   - OptimisticHealth: Optional. Skip the connectivity probe.
//   - HistoryStore: Optional. Local transcript store; nil disables
//     history recording. The runner takes ownership and closes it.
//
// # Examples
//
//	config := SessionChatRunnerConfig{
//	    BaseURL: "https://api.budul.ai",
//	    Madhab:  "hanafi",
//	}
//
//	// Resume an existing session with streaming
//	config := SessionChatRunnerConfig{
//	    BaseURL:   "https://api.budul.ai",
//	    SessionID: "550e8400-e29b-41d4-a716-446655440000",
//	    Streaming: true,
//	}
type SessionChatRunnerConfig struct {
	BaseURL          string
	AuthToken        string
	Madhab           string
	Language         string
	SessionID        string
	Streaming        bool
	OptimisticHealth bool
	ChatTimeout      time.Duration
	MetaTimeout      time.Duration
	HistoryStore     *history.Store
	Logger           *slog.Logger
}

// SessionChatRunner implements ChatRunner over chat.Session.
//
// # Description
//
// SessionChatRunner manages the interactive chat loop. It coordinates
// between the session state machine, the UI, user input, and the local
// history store. Transport failures are absorbed by the session into
// fallback messages, so the loop itself only ends on exit commands,
// EOF, context cancellation, or a malformed backend payload.
//
// # Thread Safety
//
// The runner is not designed for concurrent Run() calls. Close() is
// thread-safe and idempotent.
//
// # Limitations
//
//   - Single use: cannot restart after Run() completes
//   - Stdin reads cannot be interrupted mid-line (OS limitation)
type SessionChatRunner struct {
	session   *chat.Session
	histories HistoryLoader
	ui        ux.ChatUI
	input     InputReader
	store     *history.Store

	resumeID  string
	madhab    string
	language  string
	streaming bool

	sessionStartTime time.Time
	stats            ux.SessionStats

	closed bool
	mu     sync.Mutex
}

// NewSessionChatRunner creates a chat runner with production
// dependencies: a real API client, the terminal UI, and the interactive
// input reader (falling back to plain stdin off-TTY).
func NewSessionChatRunner(cfg SessionChatRunnerConfig) ChatRunner {
	ui := ux.NewChatUI()

	strategy := api.HealthStrategy(api.RealHealthCheck{})
	if cfg.OptimisticHealth {
		strategy = api.OptimisticHealthCheck{}
	}

	client := api.NewClient(api.Config{
		BaseURL:        cfg.BaseURL,
		AuthToken:      cfg.AuthToken,
		ChatTimeout:    cfg.ChatTimeout,
		MetaTimeout:    cfg.MetaTimeout,
		HealthStrategy: strategy,
		Logger:         cfg.Logger,
	})

	session := chat.NewSessionWithConfig(client, chat.SessionConfig{
		Madhab:    cfg.Madhab,
		Language:  cfg.Language,
		SessionID: cfg.SessionID,
		Logger:    cfg.Logger,
		OnChunk:   ui.StreamChunk,
	})

	return &SessionChatRunner{
		session:   session,
		histories: client,
		ui:        ui,
		input:     NewInteractiveInputReader(50),
		store:     cfg.HistoryStore,
		resumeID:  cfg.SessionID,
		madhab:    cfg.Madhab,
		language:  cfg.Language,
		streaming: cfg.Streaming,
	}
}

// NewSessionChatRunnerWithDeps creates a chat runner with injected
// dependencies for testing. Tests typically pass a session over a
// MockChatClient, a ChatUI over a bytes.Buffer, a MockInputReader, and
// an in-memory store (or nil).
func NewSessionChatRunnerWithDeps(
	session *chat.Session,
	ui ux.ChatUI,
	input InputReader,
	store *history.Store,
	resumeID string,
) *SessionChatRunner {
	return &SessionChatRunner{
		session:  session,
		ui:       ui,
		input:    input,
		store:    store,
		resumeID: resumeID,
		closed:   false,
	}
}

// Run executes the interactive chat loop.
//
// # Description
//
// The loop:
//  1. Probes backend health; the session refuses input until a check
//     passes, so a failed probe ends the run with the error displayed
//  2. Replays the server-side transcript when resuming
//  3. Displays the chat header
//  4. Prompts for input, checks for exit commands ("exit", "quit")
//  5. Submits through the session (spinner when synchronous, live
//     token painting when streaming)
//  6. Renders the committed turn, records it to local history
//  7. Repeats until exit, EOF, or context cancellation
//
// # Outputs
//
//   - error: nil on normal exit, context.Canceled on shutdown, the
//     health error when the backend is unreachable, or a read failure
func (r *SessionChatRunner) Run(ctx context.Context) error {
	r.sessionStartTime = time.Now()

	// Connectivity gate. The session rejects submissions until a
	// health check succeeds, so surface the failure here rather than
	// on the first message.
	status, err := r.session.CheckHealth(ctx)
	if err != nil {
		r.ui.Error(err)
		return fmt.Errorf("backend health check: %w", err)
	}
	if !status.Healthy() {
		ux.HealthStatus(status.Status, "responses may fall back while the backend recovers")
	}

	// Replay the server-side transcript when resuming so the user sees
	// where they left off.
	if r.resumeID != "" {
		if err := r.loadHistory(ctx); err != nil {
			// Fatal: the user asked to resume this conversation.
			log.Fatalf("Failed to load session history: %v", err)
		}
	}

	r.ui.Header(ux.HeaderConfig{
		SessionID:      r.resumeID,
		Madhab:         r.madhab,
		Language:       r.language,
		Streaming:      r.streaming,
		HistoryEnabled: r.store != nil,
	})

	for {
		// Check for context cancellation before blocking on input
		select {
		case <-ctx.Done():
			return r.handleShutdown(ctx)
		default:
		}

		// Prompting readers paint the prompt themselves; plain readers
		// need it printed first.
		if p, ok := r.input.(PromptingInputReader); ok {
			p.SetPrompt(r.ui.Prompt())
		} else {
			fmt.Print(r.ui.Prompt())
		}
		input, err := r.input.ReadLine()
		if err != nil {
			if err == io.EOF {
				// Input exhausted (e.g. piped input ended)
				r.displaySessionEnd()
				return nil
			}
			slog.Error("failed to read input", "error", err)
			return fmt.Errorf("read input: %w", err)
		}

		if input == "" {
			continue
		}

		if isExitCommand(input) {
			r.displaySessionEnd()
			return nil
		}

		if err := r.handleMessage(ctx, input); err != nil {
			if ctx.Err() != nil {
				return r.handleShutdown(ctx)
			}
			// Non-fatal: display and continue. Transport failures never
			// reach here; the session absorbs them into fallbacks.
			r.ui.Error(err)
			continue
		}
	}
}

// loadHistory replays the server-side transcript of the resumed
// session through the UI.
func (r *SessionChatRunner) loadHistory(ctx context.Context) error {
	entries, err := r.histories.History(ctx, r.resumeID)
	if err != nil {
		return err
	}

	msgs := make([]chat.Message, 0, len(entries))
	for _, e := range entries {
		role := chat.RoleAssistant
		if e.Role == string(chat.RoleUser) {
			role = chat.RoleUser
		}
		msgs = append(msgs, chat.Message{Role: role, Content: e.Content})
	}

	r.ui.SessionResume(r.resumeID, len(entries))
	r.ui.Transcript(msgs)
	return nil
}

// handleMessage submits one user turn and renders the outcome.
func (r *SessionChatRunner) handleMessage(ctx context.Context, message string) error {
	start := time.Now()

	var err error
	if r.streaming {
		// Tokens are painted live through the session's OnChunk hook.
		r.ui.StreamStart()
		err = r.session.SubmitStream(ctx, message)
		r.ui.StreamEnd()
	} else {
		err = ux.WithSpinner("Consulting the sources", func() error {
			return r.session.Submit(ctx, message)
		})
	}
	if err != nil {
		return err
	}

	msgs := r.session.Messages()
	if len(msgs) == 0 {
		return nil
	}
	last := msgs[len(msgs)-1]

	if r.streaming {
		// The answer is already on screen. Surface only what the stream
		// could not: a fallback that replaced an empty answer, or the
		// cutoff banner under a partial one.
		if last.Fallback {
			r.ui.Response(last)
		} else if banner := r.session.LastError(); banner != "" {
			r.ui.Banner(banner)
		}
	} else {
		r.ui.Response(last)
	}

	r.accumulateStats(last, start)
	r.persistTurn(ctx, msgs)
	return nil
}

// accumulateStats folds one committed turn into the session totals.
func (r *SessionChatRunner) accumulateStats(last chat.Message, start time.Time) {
	r.stats.MessageCount++
	r.stats.CitationCount += len(last.Citations)
	if last.Fallback {
		r.stats.FallbackCount++
	}
	if r.stats.MessageCount == 1 {
		r.stats.FirstResponseLatency = time.Since(start)
	}
}

// persistTurn records the turn that just committed to the local store.
// Failures degrade to warnings; history never blocks the conversation.
func (r *SessionChatRunner) persistTurn(ctx context.Context, msgs []chat.Message) {
	if r.store == nil {
		return
	}
	id := r.session.ID()
	if id == "" {
		return
	}

	// Seed the record before the first turn lands so the listing
	// carries the madhab. AppendMessage maintains counts and title.
	if len(msgs) <= 2 && r.resumeID == "" {
		rec := history.SessionRecord{
			ID:        id,
			Madhab:    r.madhab,
			StartedAt: time.Now().UTC(),
		}
		if err := r.store.SaveSession(ctx, rec); err != nil {
			slog.Warn("failed to seed session record", "session_id", id, "error", err)
		}
	}

	start := len(msgs) - 2
	if start < 0 {
		start = 0
	}
	for _, m := range msgs[start:] {
		if err := r.store.AppendMessage(ctx, id, m); err != nil {
			slog.Warn("failed to record history turn", "session_id", id, "error", err)
			return
		}
	}
}

// displaySessionEnd finalizes the statistics and shows the end summary.
func (r *SessionChatRunner) displaySessionEnd() {
	r.stats.Duration = time.Since(r.sessionStartTime)
	r.ui.SessionEnd(r.session.ID(), &r.stats)
}

// handleShutdown finishes the run after context cancellation. History
// is committed per turn, so there is nothing to flush here.
func (r *SessionChatRunner) handleShutdown(ctx context.Context) error {
	slog.Info("graceful shutdown initiated", "session_id", r.session.ID())

	fmt.Println() // New line after interrupted input
	r.displaySessionEnd()

	return ctx.Err()
}

// Close releases the runner's resources, closing the history store if
// one was attached. Safe to call multiple times.
func (r *SessionChatRunner) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	if r.store != nil {
		return r.store.Close()
	}
	return nil
}
