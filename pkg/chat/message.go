// Copyright (C) 2025 Budul AI (engineering@budul.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package chat holds the conversation model: the message types, the
// response normalizer, and the session state machine.
//
// The normalizer is a pure function over loosely-typed backend payloads;
// all shape-guessing lives there and nowhere else. The session is the
// stateful controller that owns the transcript and drives the transport
// client. Neither performs rendering.
package chat

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Citation is a reference backing part of an assistant response.
//
// Reference is never empty: entries without one are dropped during
// normalization. Type is one of "quran", "hadith", "scholar", or
// "source"; unknown backend types are coerced to "source".
type Citation struct {
	Type      string  `json:"type"`
	Reference string  `json:"reference"`
	Text      string  `json:"text,omitempty"`
	Relevance float64 `json:"relevance,omitempty"`
}

// Message is one turn in a conversation.
//
// Messages are immutable after creation, with one exception: while a
// streamed response is in flight, chunks are appended to the pending
// assistant message's Content. Fallback marks the fixed apology
// message injected when a request fails.
type Message struct {
	ID           string     `json:"id"`
	Role         Role       `json:"role"`
	Content      string     `json:"content"`
	CreatedAt    time.Time  `json:"created_at"`
	Citations    []Citation `json:"citations,omitempty"`
	Confidence   float64    `json:"confidence,omitempty"`
	Authenticity float64    `json:"authenticity,omitempty"`
	Fallback     bool       `json:"fallback,omitempty"`
}

// newMessage mints a message with a fresh id and UTC timestamp.
func newMessage(role Role, content string) Message {
	return Message{
		ID:        uuid.New().String(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}

// ChatResponse is the stable, normalized shape of a backend chat
// payload. See Normalize for the mapping rules.
type ChatResponse struct {
	ResponseID        string     `json:"response_id"`
	SessionID         string     `json:"session_id,omitempty"`
	ResponseText      string     `json:"response_text"`
	ConfidenceScore   float64    `json:"confidence_score"`
	AuthenticityScore float64    `json:"authenticity_score"`
	Citations         []Citation `json:"citations,omitempty"`
	Sources           []string   `json:"sources,omitempty"`
	GeneratedAt       string     `json:"generated_at,omitempty"`
	ProcessingTimeMs  float64    `json:"processing_time_ms,omitempty"`
}
