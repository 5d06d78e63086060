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
	"sync"

	"github.com/BudulAI/BudulGo/pkg/api"
	"github.com/BudulAI/BudulGo/pkg/stream"
)

// MockChatClient is a test double for ChatClient. Zero value behaves as
// a healthy backend that answers every request; set the Func fields to
// override individual calls.
type MockChatClient struct {
	HealthCheckFunc func(ctx context.Context) (api.HealthStatus, error)
	ChatFunc        func(ctx context.Context, req api.ChatRequest) (json.RawMessage, error)
	StreamChatFunc  func(ctx context.Context, req api.ChatRequest, h stream.Handler) error

	mu       sync.Mutex
	Requests []api.ChatRequest
}

var _ ChatClient = (*MockChatClient)(nil)

// HealthCheck invokes HealthCheckFunc, defaulting to a healthy status.
func (m *MockChatClient) HealthCheck(ctx context.Context) (api.HealthStatus, error) {
	if m.HealthCheckFunc != nil {
		return m.HealthCheckFunc(ctx)
	}
	return api.HealthStatus{Status: "healthy"}, nil
}

// Chat records the request and invokes ChatFunc, defaulting to a
// minimal valid payload.
func (m *MockChatClient) Chat(ctx context.Context, req api.ChatRequest) (json.RawMessage, error) {
	m.record(req)
	if m.ChatFunc != nil {
		return m.ChatFunc(ctx, req)
	}
	return json.RawMessage(`{"response_text": "mock answer"}`), nil
}

// StreamChat records the request and invokes StreamChatFunc, defaulting
// to a single chunk followed by completion.
func (m *MockChatClient) StreamChat(ctx context.Context, req api.ChatRequest, h stream.Handler) error {
	m.record(req)
	if m.StreamChatFunc != nil {
		return m.StreamChatFunc(ctx, req, h)
	}
	if h.OnChunk != nil {
		h.OnChunk("mock answer")
	}
	if h.OnComplete != nil {
		h.OnComplete()
	}
	return nil
}

// RequestCount returns how many chat requests were issued.
func (m *MockChatClient) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}

// LastRequest returns the most recent chat request, or a zero request
// when none were issued.
func (m *MockChatClient) LastRequest() api.ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Requests) == 0 {
		return api.ChatRequest{}
	}
	return m.Requests[len(m.Requests)-1]
}

func (m *MockChatClient) record(req api.ChatRequest) {
	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	m.mu.Unlock()
}
