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
	"errors"
	"fmt"
)

// =============================================================================
// Error Taxonomy
// =============================================================================

// ErrorType classifies a ClientError.
type ErrorType string

const (
	// ErrorTypeConnectivity means the health check found the backend
	// unreachable or unhealthy.
	ErrorTypeConnectivity ErrorType = "connectivity"

	// ErrorTypeChatRequest means a synchronous chat call failed:
	// transport error, timeout, or a non-2xx response.
	ErrorTypeChatRequest ErrorType = "chat_request"

	// ErrorTypeMalformedResponse means the backend returned unparsable
	// JSON. This is the only error with no safe local fallback.
	ErrorTypeMalformedResponse ErrorType = "malformed_response"

	// ErrorTypeStream means a streaming request failed mid-flight.
	ErrorTypeStream ErrorType = "stream"
)

// ClientError is the typed error returned by all Client operations.
//
// Message is the user-presentable text: for chat request failures it is
// the backend's detail string when one was provided, else a generic
// description. Callers branch on Type (or the Is* helpers), render
// Message, and unwrap Cause for diagnostics.
type ClientError struct {
	Type    ErrorType
	Message string

	// Status is the HTTP status code for chat_request errors, zero when
	// the request never reached the backend.
	Status int

	// Detail is the backend's verbatim detail string, when present.
	Detail string

	Cause error
}

func (e *ClientError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// =============================================================================
// Constructors
// =============================================================================

// NewConnectivityError builds a connectivity-class error.
func NewConnectivityError(message string, cause error) *ClientError {
	return &ClientError{
		Type:    ErrorTypeConnectivity,
		Message: message,
		Cause:   cause,
	}
}

// NewChatRequestError builds a chat-request-class error.
//
// When the backend supplied a detail string it becomes the
// user-presentable Message; the generic message passed by the caller is
// used otherwise.
func NewChatRequestError(generic string, status int, detail string, cause error) *ClientError {
	message := generic
	if detail != "" {
		message = detail
	}
	return &ClientError{
		Type:    ErrorTypeChatRequest,
		Message: message,
		Status:  status,
		Detail:  detail,
		Cause:   cause,
	}
}

// NewMalformedResponseError builds a malformed-response-class error.
func NewMalformedResponseError(cause error) *ClientError {
	return &ClientError{
		Type:    ErrorTypeMalformedResponse,
		Message: "backend returned an unparsable response",
		Cause:   cause,
	}
}

// NewStreamError builds a stream-class error.
func NewStreamError(message string, cause error) *ClientError {
	return &ClientError{
		Type:    ErrorTypeStream,
		Message: message,
		Cause:   cause,
	}
}

// =============================================================================
// Predicates
// =============================================================================

// IsConnectivityError reports whether err is a connectivity failure.
func IsConnectivityError(err error) bool {
	return hasType(err, ErrorTypeConnectivity)
}

// IsChatRequestError reports whether err is a chat request failure.
func IsChatRequestError(err error) bool {
	return hasType(err, ErrorTypeChatRequest)
}

// IsMalformedResponseError reports whether err is a malformed response.
func IsMalformedResponseError(err error) bool {
	return hasType(err, ErrorTypeMalformedResponse)
}

// IsStreamError reports whether err is a streaming failure.
func IsStreamError(err error) bool {
	return hasType(err, ErrorTypeStream)
}

func hasType(err error, t ErrorType) bool {
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce.Type == t
	}
	return false
}
