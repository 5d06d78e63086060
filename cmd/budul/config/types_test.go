// Copyright (C) 2025 Budul AI (engineering@budul.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"testing"
	"time"
)

// ============================================================================
// Default values
// ============================================================================

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Backend.BaseURL != "https://api.budul.ai" {
		t.Errorf("Backend.BaseURL = %q", cfg.Backend.BaseURL)
	}
	if cfg.Chat.Madhab != "general" {
		t.Errorf("Chat.Madhab = %q", cfg.Chat.Madhab)
	}
	if cfg.Chat.Language != "en" {
		t.Errorf("Chat.Language = %q", cfg.Chat.Language)
	}
	if !cfg.History.Enabled {
		t.Error("History.Enabled should default to true")
	}
	if cfg.History.Path != "~/.budul/history" {
		t.Errorf("History.Path = %q", cfg.History.Path)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q", cfg.Logging.Level)
	}
	if cfg.Telemetry.Traces != "none" || cfg.Telemetry.Metrics != "none" {
		t.Errorf("telemetry should default off, got traces=%q metrics=%q",
			cfg.Telemetry.Traces, cfg.Telemetry.Metrics)
	}
	if !cfg.Output.Greeting {
		t.Error("Output.Greeting should default to true")
	}
}

// ============================================================================
// Timeout conversion
// ============================================================================

func TestBackendConfig_Timeouts(t *testing.T) {
	tests := []struct {
		name     string
		backend  BackendConfig
		wantChat time.Duration
		wantMeta time.Duration
	}{
		{
			name:     "explicit values",
			backend:  BackendConfig{ChatTimeoutSeconds: 60, MetaTimeoutSeconds: 5},
			wantChat: 60 * time.Second,
			wantMeta: 5 * time.Second,
		},
		{
			name:     "zero falls back to defaults",
			backend:  BackendConfig{},
			wantChat: 30 * time.Second,
			wantMeta: 10 * time.Second,
		},
		{
			name:     "negative falls back to defaults",
			backend:  BackendConfig{ChatTimeoutSeconds: -1, MetaTimeoutSeconds: -10},
			wantChat: 30 * time.Second,
			wantMeta: 10 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.backend.ChatTimeout(); got != tt.wantChat {
				t.Errorf("ChatTimeout() = %v, want %v", got, tt.wantChat)
			}
			if got := tt.backend.MetaTimeout(); got != tt.wantMeta {
				t.Errorf("MetaTimeout() = %v, want %v", got, tt.wantMeta)
			}
		})
	}
}
