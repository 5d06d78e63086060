// Copyright (C) 2025 Budul AI (engineering@budul.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package stream decodes the chat streaming wire format into typed events.
//
// The backend delivers assistant responses as Server-Sent-Events-style
// lines (`data: <json>\n`). This package turns that byte stream into a
// sequence of content/complete/error events, consumed either through
// callbacks (Handler) or through a channel (Decoder.Events).
//
// Single Responsibility:
//
//	Decoding only. No HTTP, no rendering, no session state. The
//	transport layer owns the request; the session layer owns what the
//	events mean for a conversation.
package stream

// =============================================================================
// Event Types
// =============================================================================

// EventType identifies the kind of a decoded stream event.
type EventType string

const (
	// EventContent carries a partial piece of the assistant response.
	EventContent EventType = "content"

	// EventComplete marks the end of a successful stream.
	EventComplete EventType = "complete"

	// EventError carries a backend-reported stream failure.
	EventError EventType = "error"
)

// Event is one decoded frame from the chat stream.
//
// Exactly one of Chunk or Message is meaningful, depending on Type:
// content events populate Chunk, error events populate Message.
// Complete events may carry the backend's SessionID.
type Event struct {
	Type      EventType `json:"type"`
	Chunk     string    `json:"chunk,omitempty"`
	Message   string    `json:"message,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
}

// IsTerminal reports whether this event ends the stream.
func (e Event) IsTerminal() bool {
	return e.Type == EventComplete || e.Type == EventError
}

// =============================================================================
// Handler
// =============================================================================

// Handler receives decoded events during Decoder.Run.
//
// All fields are optional; nil callbacks are skipped. OnComplete and
// OnError are mutually exclusive and fire at most once per stream.
//
// Example:
//
//	h := stream.Handler{
//	    OnChunk:    func(chunk string) { fmt.Print(chunk) },
//	    OnComplete: func() { fmt.Println() },
//	    OnError:    func(msg string) { fmt.Fprintln(os.Stderr, msg) },
//	}
type Handler struct {
	// OnChunk is invoked for each content event, in wire order.
	OnChunk func(chunk string)

	// OnComplete is invoked once when the stream finishes cleanly,
	// including the implicit completion at end-of-stream.
	OnComplete func()

	// OnError is invoked once when the backend reports a stream error
	// or the underlying reader fails mid-stream.
	OnError func(message string)
}

func (h Handler) chunk(chunk string) {
	if h.OnChunk != nil {
		h.OnChunk(chunk)
	}
}

func (h Handler) complete() {
	if h.OnComplete != nil {
		h.OnComplete()
	}
}

func (h Handler) error(message string) {
	if h.OnError != nil {
		h.OnError(message)
	}
}
