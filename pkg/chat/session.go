// Copyright (C) 2025 Budul AI (engineering@budul.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/BudulAI/BudulGo/pkg/api"
	"github.com/BudulAI/BudulGo/pkg/stream"
)

// FallbackText is the fixed apology appended to the transcript when a
// chat request fails, so the conversation never shows a silent gap.
const FallbackText = "I apologize, but I'm having trouble responding right now. Please try again in a moment, insha'Allah."

// Submission preconditions. A rejected submit appends nothing.
var (
	ErrEmptyMessage = errors.New("message is blank")
	ErrBusy         = errors.New("a response is already pending")
	ErrDisconnected = errors.New("backend is disconnected")
)

// State is the lifecycle position of a session.
type State string

const (
	StateIdle             State = "idle"
	StateAwaitingResponse State = "awaiting_response"
)

// ChatClient is the transport surface a session depends on. *api.Client
// satisfies it; tests substitute mocks.
type ChatClient interface {
	HealthCheck(ctx context.Context) (api.HealthStatus, error)
	Chat(ctx context.Context, req api.ChatRequest) (json.RawMessage, error)
	StreamChat(ctx context.Context, req api.ChatRequest, h stream.Handler) error
}

var _ ChatClient = (*api.Client)(nil)

// SessionConfig holds optional session settings.
type SessionConfig struct {
	// Madhab is forwarded on every request when set.
	Madhab string

	// Language is forwarded on every request when set.
	Language string

	// SessionID resumes an existing conversation. Empty mints a fresh
	// id on the first submission.
	SessionID string

	// Logger receives session diagnostics. Nil falls back to
	// slog.Default().
	Logger *slog.Logger

	// OnChunk, when set, observes each streamed chunk as it is folded
	// into the pending message. Rendering only; the transcript is the
	// source of truth. Called from the streaming goroutine.
	OnChunk func(chunk string)
}

// Session is the per-conversation controller.
//
// # Description
//
// Session tracks the transcript, the idle/awaiting lifecycle, and the
// disconnected overlay. It applies user input, invokes the transport
// client, and appends assistant output, absorbing transport failures
// into a fixed fallback message so the UI layer never handles them.
//
// # States
//
// idle and awaiting_response, with an orthogonal disconnected flag. A
// session starts disconnected until the first successful health check
// proves otherwise, failing safe. Submissions are rejected while
// awaiting, while disconnected, or when blank. Every exit path of a
// submission restores idle; a session is never left dangling in
// awaiting_response.
//
// # Thread Safety
//
// Session is safe for concurrent use. A submission holds the awaiting
// slot across the network call, so concurrent submissions observe
// ErrBusy rather than interleaving. Reset while a call is in flight
// discards that call's result when it lands.
type Session struct {
	client  ChatClient
	logger  *slog.Logger
	onChunk func(string)

	madhab   string
	language string

	mu           sync.Mutex
	state        State
	disconnected bool
	sessionID    string
	messages     []Message
	lastError    string

	// generation increments on Reset; in-flight results from an older
	// generation are discarded when they land.
	generation int
}

// NewSession creates a session over the given transport client.
func NewSession(client ChatClient) *Session {
	return NewSessionWithConfig(client, SessionConfig{})
}

// NewSessionWithConfig creates a session with explicit settings.
func NewSessionWithConfig(client ChatClient, cfg SessionConfig) *Session {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Session{
		client:       client,
		logger:       cfg.Logger,
		onChunk:      cfg.OnChunk,
		madhab:       cfg.Madhab,
		language:     cfg.Language,
		sessionID:    cfg.SessionID,
		state:        StateIdle,
		disconnected: true,
	}
}

// =============================================================================
// Accessors
// =============================================================================

// State returns the current lifecycle position.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Disconnected reports the connectivity overlay.
func (s *Session) Disconnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disconnected
}

// ID returns the session identifier, empty before the first send.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// LastError returns the banner text of the most recent failure, empty
// after a success.
func (s *Session) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

// Messages returns a copy of the transcript in insertion order.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Reset clears the transcript, banner, and session identity. The next
// submission mints a fresh session id; an in-flight call's result is
// discarded when it lands.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
	s.sessionID = ""
	s.lastError = ""
	s.state = StateIdle
	s.generation++
}

// =============================================================================
// Connectivity
// =============================================================================

// CheckHealth probes the backend and updates the disconnected overlay.
//
// The overlay toggles independently of message flow: a failure here
// disables submission until a later check succeeds. Nothing retries
// automatically; the caller owns the retry action.
func (s *Session) CheckHealth(ctx context.Context) (api.HealthStatus, error) {
	status, err := s.client.HealthCheck(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.disconnected = true
		s.lastError = err.Error()
		return api.HealthStatus{}, err
	}
	s.disconnected = false
	return status, nil
}

// =============================================================================
// Submission
// =============================================================================

// Submit applies one user turn through the synchronous chat endpoint.
//
// The user message is appended before any network I/O. Transport
// failures are absorbed: the fixed fallback message is appended, the
// banner records the failure, and Submit returns nil. A malformed
// backend payload is the one failure that aborts instead, with no
// fallback appended, because no safe text can be inferred; the user
// message stays in the transcript.
func (s *Session) Submit(ctx context.Context, text string) error {
	req, gen, _, err := s.begin(text, false)
	if err != nil {
		return err
	}

	raw, chatErr := s.client.Chat(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		// The session moved on while the call was in flight.
		return nil
	}
	defer func() { s.state = StateIdle }()

	if chatErr != nil {
		s.absorbFailure(chatErr)
		return nil
	}

	resp, err := Normalize(raw)
	if err != nil {
		s.lastError = err.Error()
		return err
	}

	assistant := newMessage(RoleAssistant, resp.ResponseText)
	assistant.Citations = resp.Citations
	assistant.Confidence = resp.ConfidenceScore
	assistant.Authenticity = resp.AuthenticityScore
	s.messages = append(s.messages, assistant)
	s.lastError = ""
	return nil
}

// SubmitStream applies one user turn through the streaming endpoint.
//
// An empty assistant message is appended alongside the user message and
// grows as chunks arrive, so renderers can paint the partial answer. A
// failure before any content arrived degrades exactly like Submit; once
// content has arrived the partial answer stands and the banner records
// the interruption.
func (s *Session) SubmitStream(ctx context.Context, text string) error {
	req, gen, pending, err := s.begin(text, true)
	if err != nil {
		return err
	}

	var backendErr string
	streamErr := s.client.StreamChat(ctx, req, stream.Handler{
		OnChunk: func(chunk string) {
			s.mu.Lock()
			live := s.generation == gen
			if live {
				s.messages[pending].Content += chunk
			}
			s.mu.Unlock()
			// Invoke the render hook outside the lock.
			if live && s.onChunk != nil {
				s.onChunk(chunk)
			}
		},
		OnError: func(message string) {
			backendErr = message
		},
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		return nil
	}
	defer func() { s.state = StateIdle }()

	content := s.messages[pending].Content
	failure := failureText(streamErr, backendErr)

	switch {
	case failure == "":
		s.lastError = ""
	case content == "":
		// Nothing arrived; degrade to the fixed fallback in place of
		// the pending message.
		fallback := newMessage(RoleAssistant, FallbackText)
		fallback.Fallback = true
		s.messages[pending] = fallback
		s.lastError = failure
	default:
		// The partial answer stands; the banner records the cutoff.
		s.lastError = failure
	}
	return nil
}

// begin enforces the submission preconditions, appends the user message
// (plus the pending assistant placeholder for streams), mints or reuses
// the session id, and takes the awaiting slot.
func (s *Session) begin(text string, withPending bool) (req api.ChatRequest, gen, pending int, err error) {
	text = strings.TrimSpace(text)

	s.mu.Lock()
	defer s.mu.Unlock()

	if text == "" {
		return api.ChatRequest{}, 0, 0, ErrEmptyMessage
	}
	if s.state == StateAwaitingResponse {
		return api.ChatRequest{}, 0, 0, ErrBusy
	}
	if s.disconnected {
		return api.ChatRequest{}, 0, 0, ErrDisconnected
	}

	if s.sessionID == "" {
		s.sessionID = uuid.New().String()
		s.logger.Debug("minted session id", "session_id", s.sessionID)
	}

	s.messages = append(s.messages, newMessage(RoleUser, text))
	if withPending {
		s.messages = append(s.messages, newMessage(RoleAssistant, ""))
		pending = len(s.messages) - 1
	}
	s.state = StateAwaitingResponse

	req = api.ChatRequest{
		Message:   text,
		SessionID: s.sessionID,
		Madhab:    s.madhab,
		Language:  s.language,
	}
	return req, s.generation, pending, nil
}

// absorbFailure appends the fixed fallback message and records the
// banner text. Caller holds the lock.
func (s *Session) absorbFailure(err error) {
	fallback := newMessage(RoleAssistant, FallbackText)
	fallback.Fallback = true
	s.messages = append(s.messages, fallback)
	s.lastError = err.Error()
	s.logger.Warn("chat request failed, fallback appended", "error", err)
}

// failureText flattens the two stream failure channels into one banner
// string, favoring the backend's own message.
func failureText(err error, backendMessage string) string {
	if backendMessage != "" {
		return backendMessage
	}
	if err != nil {
		return err.Error()
	}
	return ""
}
