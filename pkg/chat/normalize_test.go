// Copyright (C) 2025 Budul AI (engineering@budul.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package chat

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/BudulAI/BudulGo/pkg/api"
)

func normalize(t *testing.T, payload string) ChatResponse {
	t.Helper()
	resp, err := Normalize(json.RawMessage(payload))
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	return resp
}

// =============================================================================
// Response Text
// =============================================================================

func TestNormalize_ResponseTextWins(t *testing.T) {
	resp := normalize(t, `{"response_text": "primary", "response": "legacy"}`)
	if resp.ResponseText != "primary" {
		t.Errorf("ResponseText = %q, want %q", resp.ResponseText, "primary")
	}
}

func TestNormalize_LegacyResponseField(t *testing.T) {
	resp := normalize(t, `{"response": "legacy"}`)
	if resp.ResponseText != "legacy" {
		t.Errorf("ResponseText = %q, want %q", resp.ResponseText, "legacy")
	}
}

func TestNormalize_MissingTextIsEmpty(t *testing.T) {
	resp := normalize(t, `{}`)
	if resp.ResponseText != "" {
		t.Errorf("ResponseText = %q, want empty", resp.ResponseText)
	}
}

// =============================================================================
// Confidence and Authenticity
// =============================================================================

func TestNormalize_ConfidenceCategories(t *testing.T) {
	cases := []struct {
		category string
		want     float64
	}{
		{"high", 0.9},
		{"High", 0.9},
		{"medium", 0.7},
		{"low", 0.5},
		{"unheard_of", 0.9},
	}
	for _, tc := range cases {
		resp := normalize(t, `{"response_text": "x", "confidence": "`+tc.category+`"}`)
		if resp.ConfidenceScore != tc.want {
			t.Errorf("confidence %q: ConfidenceScore = %v, want %v", tc.category, resp.ConfidenceScore, tc.want)
		}
	}
}

func TestNormalize_CategoricalConfidenceWinsOverAuthenticity(t *testing.T) {
	resp := normalize(t, `{"response_text": "x", "confidence": "low", "authenticity_score": 0.97}`)
	if resp.ConfidenceScore != 0.5 {
		t.Errorf("ConfidenceScore = %v, want 0.5", resp.ConfidenceScore)
	}
	if resp.AuthenticityScore != 0.97 {
		t.Errorf("AuthenticityScore = %v, want 0.97", resp.AuthenticityScore)
	}
}

func TestNormalize_AuthenticityBacksConfidence(t *testing.T) {
	resp := normalize(t, `{"response_text": "x", "authenticity_score": 0.82}`)
	if resp.ConfidenceScore != 0.82 {
		t.Errorf("ConfidenceScore = %v, want 0.82", resp.ConfidenceScore)
	}
}

func TestNormalize_ScoreDefaults(t *testing.T) {
	resp := normalize(t, `{"response_text": "x"}`)
	if resp.ConfidenceScore != 0.9 {
		t.Errorf("ConfidenceScore = %v, want 0.9", resp.ConfidenceScore)
	}
	if resp.AuthenticityScore != 0.9 {
		t.Errorf("AuthenticityScore = %v, want 0.9", resp.AuthenticityScore)
	}
}

// =============================================================================
// Citations
// =============================================================================

func TestNormalize_CitationFields(t *testing.T) {
	resp := normalize(t, `{
		"response_text": "x",
		"citations": [
			{"type": "quran", "reference": "2:255", "text": "Ayat al-Kursi", "relevance": 0.98}
		]
	}`)
	if len(resp.Citations) != 1 {
		t.Fatalf("len(Citations) = %d, want 1", len(resp.Citations))
	}
	c := resp.Citations[0]
	if c.Type != "quran" || c.Reference != "2:255" || c.Text != "Ayat al-Kursi" || c.Relevance != 0.98 {
		t.Errorf("citation = %+v", c)
	}
}

func TestNormalize_DropsCitationsWithoutReference(t *testing.T) {
	resp := normalize(t, `{
		"response_text": "x",
		"citations": [
			{"type": "quran", "reference": "2:255", "text": "kept"},
			{"type": "hadith", "text": "no reference at all"},
			{"type": "hadith", "reference": "", "text": "empty reference"},
			{"type": "scholar", "reference": "Ibn Kathir", "text": "kept too"}
		]
	}`)
	if len(resp.Citations) != 2 {
		t.Fatalf("len(Citations) = %d, want 2", len(resp.Citations))
	}
	if resp.Citations[0].Reference != "2:255" || resp.Citations[1].Reference != "Ibn Kathir" {
		t.Errorf("citations = %+v", resp.Citations)
	}
}

func TestNormalize_UnknownCitationTypeBecomesSource(t *testing.T) {
	resp := normalize(t, `{
		"response_text": "x",
		"citations": [{"type": "fatwa_db", "reference": "ref-1", "text": "t"}]
	}`)
	if got := resp.Citations[0].Type; got != "source" {
		t.Errorf("Type = %q, want %q", got, "source")
	}
}

func TestNormalize_CitationTextFallsBackToSource(t *testing.T) {
	resp := normalize(t, `{
		"response_text": "x",
		"citations": [{"type": "hadith", "reference": "Bukhari 1", "source": "Sahih al-Bukhari"}]
	}`)
	if got := resp.Citations[0].Text; got != "Sahih al-Bukhari" {
		t.Errorf("Text = %q, want %q", got, "Sahih al-Bukhari")
	}
}

func TestNormalize_SourcesMirrorSurvivingReferences(t *testing.T) {
	resp := normalize(t, `{
		"response_text": "x",
		"citations": [
			{"type": "quran", "reference": "2:255"},
			{"type": "hadith", "text": "dropped"},
			{"type": "hadith", "reference": "Muslim 2564"}
		]
	}`)
	want := []string{"2:255", "Muslim 2564"}
	if len(resp.Sources) != len(want) {
		t.Fatalf("Sources = %v, want %v", resp.Sources, want)
	}
	for i := range want {
		if resp.Sources[i] != want[i] {
			t.Errorf("Sources[%d] = %q, want %q", i, resp.Sources[i], want[i])
		}
	}
}

func TestNormalize_NonArrayCitationsIgnored(t *testing.T) {
	resp := normalize(t, `{"response_text": "x", "citations": "oops"}`)
	if resp.Citations != nil {
		t.Errorf("Citations = %+v, want nil", resp.Citations)
	}
}

// =============================================================================
// Identity and Metadata Defaults
// =============================================================================

func TestNormalize_GeneratesResponseID(t *testing.T) {
	resp := normalize(t, `{"response_text": "x"}`)
	if !strings.HasPrefix(resp.ResponseID, "resp_") {
		t.Errorf("ResponseID = %q, want resp_ prefix", resp.ResponseID)
	}
}

func TestNormalize_KeepsBackendIdentity(t *testing.T) {
	resp := normalize(t, `{
		"response_text": "x",
		"response_id": "resp_backend",
		"session_id": "sess-42",
		"generated_at": "2025-06-01T10:00:00Z",
		"processing_time_ms": 312.5
	}`)
	if resp.ResponseID != "resp_backend" {
		t.Errorf("ResponseID = %q", resp.ResponseID)
	}
	if resp.SessionID != "sess-42" {
		t.Errorf("SessionID = %q", resp.SessionID)
	}
	if resp.GeneratedAt != "2025-06-01T10:00:00Z" {
		t.Errorf("GeneratedAt = %q", resp.GeneratedAt)
	}
	if resp.ProcessingTimeMs != 312.5 {
		t.Errorf("ProcessingTimeMs = %v", resp.ProcessingTimeMs)
	}
}

func TestNormalize_DefaultGeneratedAtIsRFC3339(t *testing.T) {
	resp := normalize(t, `{"response_text": "x"}`)
	if _, err := time.Parse(time.RFC3339, resp.GeneratedAt); err != nil {
		t.Errorf("GeneratedAt %q is not RFC3339: %v", resp.GeneratedAt, err)
	}
}

// =============================================================================
// Failure Mode
// =============================================================================

func TestNormalize_UnparsablePayload(t *testing.T) {
	_, err := Normalize(json.RawMessage(`{"response_text": `))
	if err == nil {
		t.Fatal("Normalize() error = nil, want malformed response error")
	}
	if !api.IsMalformedResponseError(err) {
		t.Errorf("error %v is not a malformed response error", err)
	}
}

func TestNormalize_NonObjectPayload(t *testing.T) {
	_, err := Normalize(json.RawMessage(`["not", "an", "object"]`))
	if err == nil {
		t.Fatal("Normalize() error = nil, want malformed response error")
	}
	if !api.IsMalformedResponseError(err) {
		t.Errorf("error %v is not a malformed response error", err)
	}
}
