// Copyright (C) 2025 Budul AI (engineering@budul.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package chat

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/BudulAI/BudulGo/pkg/api"
)

// defaultConfidence is assumed when the backend provides neither a
// categorical confidence nor a numeric authenticity score.
const defaultConfidence = 0.9

// Normalize converts a raw backend chat payload into the stable
// ChatResponse shape.
//
// The backend has shipped several incompatible payload shapes over the
// product's life; every shape-guessing rule lives here so new shapes
// only ever require edits to this file. The function is pure apart from
// reading the clock for generated identifiers.
//
// Mapping rules:
//
//   - Text: "response_text", else "response", else "".
//   - Confidence: categorical "confidence" of high/medium/low maps to
//     0.9/0.7/0.5; otherwise a numeric "authenticity_score" is used;
//     otherwise 0.9. When both are present the categorical value wins,
//     and the authenticity score remains visible on its own field.
//   - Citations: entries are coerced defensively; one without a
//     reference is dropped, an unknown type becomes "source". Sources
//     is the flat list of surviving references.
//   - Identifiers: "resp_" + current millis and a UTC timestamp are
//     minted when the backend omits them.
//
// The only failure is a payload that does not parse as a JSON object;
// that returns a malformed response error, since no safe default text
// can be inferred from garbage.
func Normalize(raw json.RawMessage) (ChatResponse, error) {
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ChatResponse{}, api.NewMalformedResponseError(err)
	}

	resp := ChatResponse{
		ResponseText: stringField(payload, "response_text"),
	}
	if resp.ResponseText == "" {
		resp.ResponseText = stringField(payload, "response")
	}

	confidence, haveCategory := confidenceFromCategory(stringField(payload, "confidence"))
	authenticity, haveAuthenticity := floatField(payload, "authenticity_score")

	switch {
	case haveCategory:
		resp.ConfidenceScore = confidence
	case haveAuthenticity:
		resp.ConfidenceScore = authenticity
	default:
		resp.ConfidenceScore = defaultConfidence
	}
	if haveAuthenticity {
		resp.AuthenticityScore = authenticity
	} else {
		resp.AuthenticityScore = defaultConfidence
	}

	resp.Citations, resp.Sources = normalizeCitations(payload["citations"])

	resp.ResponseID = stringField(payload, "response_id")
	if resp.ResponseID == "" {
		resp.ResponseID = fmt.Sprintf("resp_%d", time.Now().UnixMilli())
	}
	resp.SessionID = stringField(payload, "session_id")
	resp.GeneratedAt = stringField(payload, "generated_at")
	if resp.GeneratedAt == "" {
		resp.GeneratedAt = time.Now().UTC().Format(time.RFC3339)
	}
	if ms, ok := floatField(payload, "processing_time_ms"); ok {
		resp.ProcessingTimeMs = ms
	}

	return resp, nil
}

// normalizeCitations coerces the citations value defensively. Malformed
// entries are dropped, never fatal to the whole response.
func normalizeCitations(value any) ([]Citation, []string) {
	list, ok := value.([]any)
	if !ok {
		return nil, nil
	}

	citations := make([]Citation, 0, len(list))
	sources := make([]string, 0, len(list))

	for _, item := range list {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}

		reference := stringField(entry, "reference")
		if reference == "" {
			// A citation that cannot be located is worthless; drop it.
			continue
		}

		citation := Citation{
			Type:      normalizeCitationType(stringField(entry, "type")),
			Reference: reference,
			Text:      stringField(entry, "text"),
		}
		if citation.Text == "" {
			citation.Text = stringField(entry, "source")
		}
		if relevance, ok := floatField(entry, "relevance"); ok {
			citation.Relevance = relevance
		}

		citations = append(citations, citation)
		sources = append(sources, reference)
	}

	return citations, sources
}

func normalizeCitationType(t string) string {
	switch strings.ToLower(t) {
	case "quran", "hadith", "scholar", "source":
		return strings.ToLower(t)
	}
	return "source"
}

func confidenceFromCategory(category string) (float64, bool) {
	switch strings.ToLower(category) {
	case "high":
		return 0.9, true
	case "medium":
		return 0.7, true
	case "low":
		return 0.5, true
	}
	return 0, false
}

func stringField(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func floatField(m map[string]any, key string) (float64, bool) {
	if v, ok := m[key].(float64); ok {
		return v, true
	}
	return 0, false
}
