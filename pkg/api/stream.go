// Copyright (C) 2025 Budul AI (engineering@budul.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package api

import (
	"context"
	"io"
	"net/http"

	"go.opentelemetry.io/otel/codes"

	"github.com/BudulAI/BudulGo/pkg/stream"
)

// StreamChat opens the streaming chat endpoint and dispatches decoded
// events to h as they arrive.
//
// The request is posted with stream enabled regardless of req.Stream.
// A backend-reported error event arrives through h.OnError; the
// returned error covers request construction, rejection, and mid-stream
// I/O failures. Cancel ctx to abandon the stream; no timeout is layered
// on (streams are long-lived by design).
func (c *Client) StreamChat(ctx context.Context, req ChatRequest, h stream.Handler) error {
	ctx, span := tracer.Start(ctx, "api.StreamChat")
	defer span.End()

	resp, err := c.openStream(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "stream open failed")
		return err
	}
	defer resp.Body.Close()

	counted := stream.Handler{
		OnChunk: func(chunk string) {
			streamEvents.WithLabelValues("content").Inc()
			if h.OnChunk != nil {
				h.OnChunk(chunk)
			}
		},
		OnComplete: func() {
			streamEvents.WithLabelValues("complete").Inc()
			if h.OnComplete != nil {
				h.OnComplete()
			}
		},
		OnError: func(message string) {
			streamEvents.WithLabelValues("error").Inc()
			if h.OnError != nil {
				h.OnError(message)
			}
		},
	}

	if err := stream.NewDecoderWithLogger(c.logger).Run(ctx, resp.Body, counted); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "stream interrupted")
		return NewStreamError("stream interrupted", err)
	}
	return nil
}

// StreamChatChan is the channel-shaped variant of StreamChat for
// select-based consumers.
//
// The returned channel closes when the stream terminates; a mid-stream
// failure arrives as a final error event before the close. The response
// body is released when the channel closes.
func (c *Client) StreamChatChan(ctx context.Context, req ChatRequest) (<-chan stream.Event, error) {
	resp, err := c.openStream(ctx, req)
	if err != nil {
		return nil, err
	}

	events := make(chan stream.Event)
	go func() {
		defer close(events)
		defer resp.Body.Close()

		for ev := range stream.NewDecoderWithLogger(c.logger).Events(ctx, resp.Body) {
			streamEvents.WithLabelValues(string(ev.Type)).Inc()
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return events, nil
}

// openStream validates the request and opens the chunked response.
func (c *Client) openStream(ctx context.Context, req ChatRequest) (*http.Response, error) {
	if err := req.Validate(); err != nil {
		return nil, NewChatRequestError("invalid chat request", 0, "", err)
	}
	req.Stream = true

	httpReq, err := c.newRequest(ctx, http.MethodPost, "/api/v1/chat/stream", req)
	if err != nil {
		return nil, NewStreamError("failed to build stream request", err)
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, NewStreamError("failed to open stream", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		resp.Body.Close()
		return nil, NewChatRequestError("stream request rejected", resp.StatusCode, extractDetail(body), nil)
	}
	return resp, nil
}
