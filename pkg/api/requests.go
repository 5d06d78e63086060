// Copyright (C) 2025 Budul AI (engineering@budul.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package api

import (
	"github.com/go-playground/validator/v10"
)

const (
	// MaxMessageBytes is the maximum size of a single chat message.
	// Checked in bytes, not runes, to bound request payloads.
	MaxMessageBytes = 8 * 1024
)

// apiValidate is the shared validator instance for request types.
var apiValidate *validator.Validate

func init() {
	apiValidate = validator.New()
	_ = apiValidate.RegisterValidation("maxbytes", validateMaxBytes)
}

// validateMaxBytes checks that a string field does not exceed
// MaxMessageBytes.
func validateMaxBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxMessageBytes
}

// =============================================================================
// Chat Request Types
// =============================================================================

// ChatRequest is the body for the synchronous and streaming chat
// endpoints.
//
// # Fields
//
//   - Message: Required. The user's question or statement.
//   - SessionID: Optional. Conversation identifier; the backend groups
//     turns under it. Minted client-side by the session layer on first
//     send when absent.
//   - Context: Optional. Extra conversational context forwarded verbatim.
//   - Madhab: Optional. Preferred school of jurisprudence for rulings.
//   - Language: Optional. BCP 47 tag for the response language.
//   - Stream: Set by StreamChat; selects chunked delivery.
//
// # Validation
//
// Uses go-playground/validator:
//   - Message: required, max 8KB
//   - Language: valid BCP 47 tag when set
//
// # Examples
//
//	req := api.ChatRequest{Message: "What breaks the fast?"}
//	if err := req.Validate(); err != nil {
//	    return err
//	}
type ChatRequest struct {
	Message   string `json:"message" validate:"required,maxbytes"`
	SessionID string `json:"session_id,omitempty"`
	Context   string `json:"context,omitempty"`
	Madhab    string `json:"madhab,omitempty" validate:"omitempty,max=64"`
	Language  string `json:"language,omitempty" validate:"omitempty,bcp47_language_tag"`
	Stream    bool   `json:"stream,omitempty"`
}

// Validate checks the request against its validation tags.
func (r *ChatRequest) Validate() error {
	return apiValidate.Struct(r)
}

// =============================================================================
// Auxiliary Types
// =============================================================================

// HistoryEntry is one prior turn returned by the history endpoint.
type HistoryEntry struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Preferences is the body for the preferences endpoint.
type Preferences struct {
	Madhab   string   `json:"madhab,omitempty" validate:"omitempty,max=64"`
	Language string   `json:"language,omitempty" validate:"omitempty,bcp47_language_tag"`
	Topics   []string `json:"topics,omitempty" validate:"omitempty,max=32,dive,max=128"`
}

// Validate checks the preferences against their validation tags.
func (p *Preferences) Validate() error {
	return apiValidate.Struct(p)
}
