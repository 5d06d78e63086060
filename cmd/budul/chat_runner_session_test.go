// Copyright (C) 2025 Budul AI (engineering@budul.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/BudulAI/BudulGo/pkg/api"
	"github.com/BudulAI/BudulGo/pkg/chat"
	"github.com/BudulAI/BudulGo/pkg/history"
	"github.com/BudulAI/BudulGo/pkg/stream"
	"github.com/BudulAI/BudulGo/pkg/ux"
)

// =============================================================================
// Test Helpers
// =============================================================================

// fakeHistoryLoader implements HistoryLoader for resume tests.
type fakeHistoryLoader struct {
	entries []api.HistoryEntry
	err     error
	calls   int
}

func (f *fakeHistoryLoader) History(ctx context.Context, sessionID string) ([]api.HistoryEntry, error) {
	f.calls++
	return f.entries, f.err
}

// newTestRunner wires a runner over a mock backend, buffered UI, and
// scripted input. The returned buffer collects everything the UI wrote.
func newTestRunner(mock *chat.MockChatClient, inputs []string, store *history.Store) (*SessionChatRunner, *bytes.Buffer) {
	var buf bytes.Buffer
	ui := ux.NewChatUIWithWriter(&buf, ux.ModeStandard)
	session := chat.NewSessionWithConfig(mock, chat.SessionConfig{Madhab: "general"})
	runner := NewSessionChatRunnerWithDeps(session, ui, NewMockInputReader(inputs), store, "")
	return runner, &buf
}

// =============================================================================
// InputReader Tests
// =============================================================================

func TestStdinReader_ImplementsInterface(t *testing.T) {
	var _ InputReader = &StdinReader{}
	var _ InputReader = &MockInputReader{}
}

func TestMockInputReader_ReadLine_ReturnsInputsInOrder(t *testing.T) {
	inputs := []string{"first", "second", "third"}
	reader := NewMockInputReader(inputs)

	for i, expected := range inputs {
		got, err := reader.ReadLine()
		if err != nil {
			t.Fatalf("ReadLine() %d: unexpected error: %v", i, err)
		}
		if got != expected {
			t.Errorf("ReadLine() %d: got %q, want %q", i, got, expected)
		}
	}

	if _, err := reader.ReadLine(); err != io.EOF {
		t.Errorf("exhausted ReadLine(): got error %v, want io.EOF", err)
	}
}

// =============================================================================
// isExitCommand Tests
// =============================================================================

func TestIsExitCommand(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"exit", true},
		{"quit", true},
		{"EXIT", false}, // Case-sensitive
		{"Exit", false},
		{"hello", false},
		{"", false},
		{"exit please", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := isExitCommand(tt.input)
			if got != tt.want {
				t.Errorf("isExitCommand(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

// =============================================================================
// SessionChatRunner Tests
// =============================================================================

func TestSessionChatRunner_Run_ExitCommand(t *testing.T) {
	mock := &chat.MockChatClient{}
	runner, _ := newTestRunner(mock, []string{"exit"}, nil)

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run() returned error: %v", err)
	}

	// Exit before any message: nothing should have hit the backend
	if mock.RequestCount() != 0 {
		t.Errorf("expected 0 chat requests, got %d", mock.RequestCount())
	}
}

func TestSessionChatRunner_Run_SendsMessage(t *testing.T) {
	mock := &chat.MockChatClient{
		ChatFunc: func(ctx context.Context, req api.ChatRequest) (json.RawMessage, error) {
			return json.RawMessage(`{"response_text": "Zakat purifies wealth.", "confidence": "high"}`), nil
		},
	}
	runner, buf := newTestRunner(mock, []string{"what is zakat?", "exit"}, nil)

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run() returned error: %v", err)
	}

	if mock.RequestCount() != 1 {
		t.Fatalf("expected 1 chat request, got %d", mock.RequestCount())
	}
	if got := mock.LastRequest().Message; got != "what is zakat?" {
		t.Errorf("request message = %q, want %q", got, "what is zakat?")
	}

	output := buf.String()
	if !strings.Contains(output, "Zakat purifies wealth.") {
		t.Errorf("output missing response, got: %s", output)
	}
}

func TestSessionChatRunner_Run_HealthGateFailure(t *testing.T) {
	mock := &chat.MockChatClient{
		HealthCheckFunc: func(ctx context.Context) (api.HealthStatus, error) {
			return api.HealthStatus{}, api.NewConnectivityError("backend unreachable", nil)
		},
	}
	input := NewMockInputReader([]string{"should never be read"})
	var buf bytes.Buffer
	ui := ux.NewChatUIWithWriter(&buf, ux.ModeStandard)
	session := chat.NewSessionWithConfig(mock, chat.SessionConfig{})
	runner := NewSessionChatRunnerWithDeps(session, ui, input, nil, "")

	err := runner.Run(context.Background())
	if err == nil {
		t.Fatal("Run() should fail when the health gate fails")
	}
	if !strings.Contains(err.Error(), "health check") {
		t.Errorf("error should mention the health check, got: %v", err)
	}
	if mock.RequestCount() != 0 {
		t.Errorf("no chat request should be issued, got %d", mock.RequestCount())
	}
}

func TestSessionChatRunner_Run_TransportFailureBecomesFallback(t *testing.T) {
	mock := &chat.MockChatClient{
		ChatFunc: func(ctx context.Context, req api.ChatRequest) (json.RawMessage, error) {
			return nil, api.NewChatRequestError("backend returned status 502", 502, "", nil)
		},
	}
	runner, buf := newTestRunner(mock, []string{"a question", "exit"}, nil)

	// The session absorbs transport failures into a fallback turn, so
	// the run must finish cleanly.
	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run() returned error: %v", err)
	}

	if !strings.Contains(buf.String(), chat.FallbackText) {
		t.Errorf("output missing fallback apology, got: %s", buf.String())
	}
}

func TestSessionChatRunner_Run_SkipsEmptyInput(t *testing.T) {
	mock := &chat.MockChatClient{}
	runner, _ := newTestRunner(mock, []string{"", "", "exit"}, nil)

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run() returned error: %v", err)
	}
	if mock.RequestCount() != 0 {
		t.Errorf("empty lines must not reach the backend, got %d requests", mock.RequestCount())
	}
}

func TestSessionChatRunner_Run_EOFEndsRun(t *testing.T) {
	mock := &chat.MockChatClient{}
	runner, buf := newTestRunner(mock, []string{}, nil)

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run() on EOF returned error: %v", err)
	}
	if !strings.Contains(buf.String(), "Ma'a salama") {
		t.Errorf("session end summary missing, got: %s", buf.String())
	}
}

func TestSessionChatRunner_Run_CanceledContext(t *testing.T) {
	mock := &chat.MockChatClient{}
	runner, _ := newTestRunner(mock, []string{"never read"}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := runner.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() = %v, want context.Canceled", err)
	}
}

func TestSessionChatRunner_Run_PersistsTurns(t *testing.T) {
	store, err := history.Open(history.InMemoryConfig())
	if err != nil {
		t.Fatalf("failed to open in-memory store: %v", err)
	}

	mock := &chat.MockChatClient{}
	runner, _ := newTestRunner(mock, []string{"first question", "exit"}, store)
	defer runner.Close()

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run() returned error: %v", err)
	}

	ctx := context.Background()
	sessions, err := store.Sessions(ctx)
	if err != nil {
		t.Fatalf("Sessions() failed: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected 1 persisted session, got %d", len(sessions))
	}

	msgs, err := store.Messages(ctx, sessions[0].ID)
	if err != nil {
		t.Fatalf("Messages() failed: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected a user and an assistant message, got %d", len(msgs))
	}
	if msgs[0].Role != chat.RoleUser || msgs[0].Content != "first question" {
		t.Errorf("first persisted message = %+v", msgs[0])
	}
	if msgs[1].Role != chat.RoleAssistant {
		t.Errorf("second persisted message role = %q, want assistant", msgs[1].Role)
	}
}

func TestSessionChatRunner_Run_ResumeReplaysHistory(t *testing.T) {
	mock := &chat.MockChatClient{}
	loader := &fakeHistoryLoader{
		entries: []api.HistoryEntry{
			{Role: "user", Content: "earlier question"},
			{Role: "assistant", Content: "earlier answer"},
		},
	}

	var buf bytes.Buffer
	ui := ux.NewChatUIWithWriter(&buf, ux.ModeStandard)
	session := chat.NewSessionWithConfig(mock, chat.SessionConfig{SessionID: "resume-1"})
	runner := NewSessionChatRunnerWithDeps(session, ui, NewMockInputReader([]string{"exit"}), nil, "resume-1")
	runner.histories = loader

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run() returned error: %v", err)
	}

	if loader.calls != 1 {
		t.Errorf("expected 1 history fetch, got %d", loader.calls)
	}
	output := buf.String()
	if !strings.Contains(output, "earlier question") || !strings.Contains(output, "earlier answer") {
		t.Errorf("replayed transcript missing, got: %s", output)
	}
}

func TestSessionChatRunner_Run_StreamingFallbackRendered(t *testing.T) {
	mock := &chat.MockChatClient{
		StreamChatFunc: func(ctx context.Context, req api.ChatRequest, h stream.Handler) error {
			return api.NewStreamError("stream failed before any content", nil)
		},
	}
	runner, buf := newTestRunner(mock, []string{"a question", "exit"}, nil)
	runner.streaming = true

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run() returned error: %v", err)
	}
	if !strings.Contains(buf.String(), chat.FallbackText) {
		t.Errorf("streaming failure should render the fallback, got: %s", buf.String())
	}
}

func TestSessionChatRunner_Close_Idempotent(t *testing.T) {
	store, err := history.Open(history.InMemoryConfig())
	if err != nil {
		t.Fatalf("failed to open in-memory store: %v", err)
	}

	mock := &chat.MockChatClient{}
	runner, _ := newTestRunner(mock, []string{"exit"}, store)

	if err := runner.Close(); err != nil {
		t.Errorf("first Close() returned error: %v", err)
	}
	if err := runner.Close(); err != nil {
		t.Errorf("second Close() returned error: %v", err)
	}
}
