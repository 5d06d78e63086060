// Copyright (C) 2025 Budul AI (engineering@budul.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package api is the transport client for the Budul backend.
//
// It owns base URL resolution, the optional bearer token, and typed
// access to the chat HTTP and WebSocket surface. The client performs
// network I/O only and never mutates conversation state; synchronous
// chat bodies are returned raw and normalized by pkg/chat.
//
// There is no package-level singleton. Construct a Client once and pass
// it to whatever owns a conversation:
//
//	client := api.NewClient(api.DefaultConfig("https://api.budul.ai"))
//	client.SetAuthToken(token)
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/BudulAI/BudulGo/pkg/telemetry"
)

var tracer = otel.Tracer("budul.api.client")

const (
	// DefaultChatTimeout bounds a single synchronous chat call.
	DefaultChatTimeout = 30 * time.Second

	// DefaultMetaTimeout bounds health, history, and metadata calls.
	DefaultMetaTimeout = 10 * time.Second

	// maxBodyBytes caps how much of any response body is read.
	maxBodyBytes = 4 << 20
)

// =============================================================================
// Client
// =============================================================================

// HTTPDoer executes HTTP requests. *http.Client satisfies it; tests
// substitute recording fakes.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

var _ HTTPDoer = (*http.Client)(nil)

// Config holds settings for a Client.
type Config struct {
	// BaseURL is the backend root, e.g. "https://api.budul.ai".
	// A trailing slash is tolerated.
	BaseURL string

	// AuthToken is the optional bearer token. May also be set later
	// through SetAuthToken.
	AuthToken string

	// ChatTimeout bounds a synchronous chat call. Zero means
	// DefaultChatTimeout. Expiry surfaces as a chat request error.
	ChatTimeout time.Duration

	// MetaTimeout bounds health, history, and metadata calls. Zero means
	// DefaultMetaTimeout.
	MetaTimeout time.Duration

	// HealthStrategy decides how connectivity is probed. Nil means
	// RealHealthCheck.
	HealthStrategy HealthStrategy

	// Logger receives fail-soft notices and socket diagnostics. Nil
	// falls back to slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns a Config with production timeouts.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:     baseURL,
		ChatTimeout: DefaultChatTimeout,
		MetaTimeout: DefaultMetaTimeout,
	}
}

// Client is the single point of contact with the Budul backend.
//
// Thread Safety:
//
//	Client is safe for concurrent use. The bearer token is guarded; all
//	other fields are immutable after construction.
type Client struct {
	baseURL     string
	httpClient  HTTPDoer
	chatTimeout time.Duration
	metaTimeout time.Duration
	health      HealthStrategy
	logger      *slog.Logger

	mu    sync.RWMutex
	token string

	healthGroup singleflight.Group
}

// NewClient creates a client backed by a plain *http.Client.
func NewClient(cfg Config) *Client {
	return NewClientWithHTTPClient(cfg, &http.Client{})
}

// NewClientWithHTTPClient creates a client with an injected HTTP
// dependency.
//
// Inputs:
//
//	cfg - Client settings. Zero timeouts take the package defaults.
//	httpClient - The HTTP executor. Must not be nil.
//
// Outputs:
//
//	*Client - The configured client.
func NewClientWithHTTPClient(cfg Config, httpClient HTTPDoer) *Client {
	if cfg.ChatTimeout <= 0 {
		cfg.ChatTimeout = DefaultChatTimeout
	}
	if cfg.MetaTimeout <= 0 {
		cfg.MetaTimeout = DefaultMetaTimeout
	}
	if cfg.HealthStrategy == nil {
		cfg.HealthStrategy = RealHealthCheck{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:  httpClient,
		chatTimeout: cfg.ChatTimeout,
		metaTimeout: cfg.MetaTimeout,
		health:      cfg.HealthStrategy,
		logger:      cfg.Logger,
		token:       cfg.AuthToken,
	}
}

// BaseURL returns the resolved backend root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetAuthToken replaces the bearer token used on subsequent requests.
// An empty token disables the Authorization header.
func (c *Client) SetAuthToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) authToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// =============================================================================
// Chat
// =============================================================================

// Chat sends a synchronous chat request and returns the raw backend
// payload.
//
// # Description
//
// Posts to /api/v1/chat/islamic under the configured chat timeout. The
// body is returned unparsed so that normalization stays a separate,
// pure step (chat.Normalize). Failures are chat request errors: a
// non-2xx response carries the backend's detail string when one was
// provided, transport errors and timeout expiry carry a generic
// message.
//
// # Inputs
//
//	ctx - Context for cancellation; the chat timeout is layered on top.
//	req - The chat request. Validated before any I/O.
//
// # Outputs
//
//	json.RawMessage - The raw 2xx response body.
//	error - A *ClientError on any failure.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (json.RawMessage, error) {
	ctx, span := tracer.Start(ctx, "api.Chat",
		trace.WithAttributes(attribute.Int("message_bytes", len(req.Message))))
	defer span.End()

	if err := req.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		chatRequests.WithLabelValues("invalid").Inc()
		return nil, NewChatRequestError("invalid chat request", 0, "", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.chatTimeout)
	defer cancel()

	httpReq, err := c.newRequest(ctx, http.MethodPost, "/api/v1/chat/islamic", req)
	if err != nil {
		return nil, NewChatRequestError("failed to build chat request", 0, "", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "chat transport failure")
		chatRequests.WithLabelValues("transport_error").Inc()
		return nil, NewChatRequestError("failed to get response", 0, "", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "chat body read failure")
		chatRequests.WithLabelValues("transport_error").Inc()
		return nil, NewChatRequestError("failed to get response", resp.StatusCode, "", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		span.SetStatus(codes.Error, "chat rejected")
		chatRequests.WithLabelValues("http_error").Inc()
		return nil, NewChatRequestError("failed to get response", resp.StatusCode, extractDetail(body), nil)
	}

	chatLatency.Observe(time.Since(start).Seconds())
	chatRequests.WithLabelValues("success").Inc()
	return json.RawMessage(body), nil
}

// =============================================================================
// History and Metadata
// =============================================================================

// History fetches the prior turns of a session.
func (c *Client) History(ctx context.Context, sessionID string) ([]HistoryEntry, error) {
	ctx, span := tracer.Start(ctx, "api.History")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.metaTimeout)
	defer cancel()

	var raw json.RawMessage
	path := "/api/v1/chat/history/" + url.PathEscape(sessionID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &raw); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "history fetch failed")
		return nil, err
	}
	return decodeHistory(raw)
}

// decodeHistory tolerates both the bare-array and wrapped shapes the
// backend has shipped for history payloads.
func decodeHistory(raw json.RawMessage) ([]HistoryEntry, error) {
	var entries []HistoryEntry
	if err := json.Unmarshal(raw, &entries); err == nil {
		return entries, nil
	}

	var wrapped struct {
		History  []HistoryEntry `json:"history"`
		Messages []HistoryEntry `json:"messages"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, NewMalformedResponseError(err)
	}
	if wrapped.History != nil {
		return wrapped.History, nil
	}
	return wrapped.Messages, nil
}

// Topics fetches the available discussion topics.
//
// Fail-soft: any failure logs a warning and yields an empty list with a
// nil error, so callers never gate on this endpoint.
func (c *Client) Topics(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.metaTimeout)
	defer cancel()

	list, err := c.fetchList(ctx, "/api/v1/chat/topics", "topics")
	if err != nil {
		c.logger.Warn("topics fetch failed, continuing with empty list", "error", err)
		return []string{}, nil
	}
	return list, nil
}

// Madhabs fetches the supported schools of jurisprudence.
//
// Fail-soft: any failure logs a warning and yields ["general"] with a
// nil error.
func (c *Client) Madhabs(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.metaTimeout)
	defer cancel()

	list, err := c.fetchList(ctx, "/api/v1/chat/madhabs", "madhabs")
	if err != nil {
		c.logger.Warn("madhabs fetch failed, continuing with default", "error", err)
		return []string{"general"}, nil
	}
	return list, nil
}

// Metadata fetches topics and madhabs in parallel. Both endpoints are
// fail-soft, so the error is always nil; the signature keeps room for
// strict variants.
func (c *Client) Metadata(ctx context.Context) (topics, madhabs []string, err error) {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		topics, err = c.Topics(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		madhabs, err = c.Madhabs(gctx)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return topics, madhabs, nil
}

// fetchList reads a string-list endpoint, accepting both bare arrays
// and {"<key>": [...]} wrappers.
func (c *Client) fetchList(ctx context.Context, path, key string) ([]string, error) {
	var raw json.RawMessage
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}

	var bare []string
	if err := json.Unmarshal(raw, &bare); err == nil {
		return bare, nil
	}

	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, err
	}
	inner, ok := wrapped[key]
	if !ok {
		return nil, fmt.Errorf("payload has no %q field", key)
	}
	if err := json.Unmarshal(inner, &bare); err != nil {
		return nil, err
	}
	return bare, nil
}

// SavePreferences stores chat preferences for the authenticated user.
func (c *Client) SavePreferences(ctx context.Context, prefs Preferences) error {
	ctx, span := tracer.Start(ctx, "api.SavePreferences")
	defer span.End()

	if err := prefs.Validate(); err != nil {
		return NewChatRequestError("invalid preferences", 0, "", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.metaTimeout)
	defer cancel()

	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/chat/preferences", prefs, nil); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "preferences save failed")
		return err
	}
	return nil
}

// =============================================================================
// Request Plumbing
// =============================================================================

// newRequest builds a request against the backend with auth and content
// headers applied.
func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.authToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return telemetry.PropagateToRequest(ctx, req), nil
}

// doJSON executes a request and decodes a 2xx body into out (skipped
// when out is nil). Failures come back as *ClientError.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return NewChatRequestError("failed to build request", 0, "", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return NewChatRequestError("request failed", 0, "", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return NewChatRequestError("failed to read response", resp.StatusCode, "", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		generic := fmt.Sprintf("request to %s failed", path)
		return NewChatRequestError(generic, resp.StatusCode, extractDetail(data), nil)
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return NewMalformedResponseError(err)
		}
	}
	return nil
}

// extractDetail pulls the backend's detail string out of an error body.
// FastAPI-style backends send {"detail": "..."}; validation failures
// arrive as structured lists and are flattened to their JSON text.
func extractDetail(body []byte) string {
	var payload struct {
		Detail any `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}

	switch d := payload.Detail.(type) {
	case string:
		return d
	case nil:
		return ""
	default:
		raw, err := json.Marshal(d)
		if err != nil {
			return ""
		}
		return string(raw)
	}
}
