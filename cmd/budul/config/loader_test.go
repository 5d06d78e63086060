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
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/BudulAI/BudulGo/pkg/logging"
)

// TestCreateDefault verifies default config creation.
func TestCreateDefault(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, ".budul", "budul.yaml")

	if err := createDefault(configPath); err != nil {
		t.Fatalf("createDefault() failed: %v", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Fatal("config file was not created")
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("failed to read config file: %v", err)
	}

	var cfg BudulConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("failed to parse config: %v", err)
	}

	if cfg.Chat.Madhab != "general" {
		t.Errorf("Chat.Madhab = %q, want %q", cfg.Chat.Madhab, "general")
	}
	if !cfg.History.Enabled {
		t.Error("History.Enabled should default to true")
	}
	if cfg.Backend.BaseURL == "" {
		t.Error("Backend.BaseURL should have a default")
	}
	if cfg.Telemetry.Traces != "none" {
		t.Errorf("Telemetry.Traces = %q, want %q", cfg.Telemetry.Traces, "none")
	}
}

// TestCreateDefault_DirectoryCreation verifies directory is created.
func TestCreateDefault_DirectoryCreation(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "deep", "nested", "path", "budul.yaml")

	if err := createDefault(configPath); err != nil {
		t.Fatalf("createDefault() failed with nested path: %v", err)
	}

	if _, err := os.Stat(filepath.Dir(configPath)); os.IsNotExist(err) {
		t.Fatal("nested directories were not created")
	}
}

// TestDefaultConfig_BaseURLOverride verifies the development override.
func TestDefaultConfig_BaseURLOverride(t *testing.T) {
	t.Setenv("BUDUL_BASE_URL", "http://localhost:8000")

	cfg := DefaultConfig()

	if cfg.Backend.BaseURL != "http://localhost:8000" {
		t.Errorf("Backend.BaseURL = %q, want the env override", cfg.Backend.BaseURL)
	}
}

// TestReload verifies a file on disk replaces Global.
func TestReload(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "budul.yaml")

	custom := BudulConfig{
		Backend: BackendConfig{BaseURL: "https://staging.budul.ai", ChatTimeoutSeconds: 45},
		Chat:    ChatConfig{Madhab: "hanafi", Language: "ar", Streaming: true},
	}
	data, err := yaml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := reload(configPath); err != nil {
		t.Fatalf("reload() failed: %v", err)
	}

	got := Get()
	if got.Backend.BaseURL != "https://staging.budul.ai" {
		t.Errorf("BaseURL = %q", got.Backend.BaseURL)
	}
	if got.Chat.Madhab != "hanafi" {
		t.Errorf("Madhab = %q", got.Chat.Madhab)
	}
	if !got.Chat.Streaming {
		t.Error("Streaming should be true")
	}
	if got.Backend.ChatTimeout() != 45*time.Second {
		t.Errorf("ChatTimeout() = %v, want 45s", got.Backend.ChatTimeout())
	}
}

// TestReload_BadYAMLKeepsPrevious verifies parse failures do not
// clobber a working configuration.
func TestReload_BadYAMLKeepsPrevious(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "budul.yaml")

	good, _ := yaml.Marshal(BudulConfig{Chat: ChatConfig{Madhab: "maliki"}})
	if err := os.WriteFile(configPath, good, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := reload(configPath); err != nil {
		t.Fatalf("reload() failed: %v", err)
	}

	if err := os.WriteFile(configPath, []byte("backend: [not: valid"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := reload(configPath); err == nil {
		t.Fatal("reload() should fail on malformed yaml")
	}

	if got := Get(); got.Chat.Madhab != "maliki" {
		t.Errorf("Madhab = %q, previous config should survive a bad reload", got.Chat.Madhab)
	}
}

// TestLoad_FirstRunCreatesFile verifies the first-run path end to end.
// This is the only test allowed to call Load: the sync.Once makes a
// second call a no-op for the life of the test binary.
func TestLoad_FirstRunCreatesFile(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	if err := Load(); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	configPath := filepath.Join(tempHome, ".budul", "budul.yaml")
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Fatal("first run did not create the config file")
	}

	if got := Get(); got.Chat.Madhab != "general" {
		t.Errorf("Madhab = %q, want default", got.Chat.Madhab)
	}
}

// TestWatch_ReloadsOnWrite verifies the fsnotify loop picks up edits.
func TestWatch_ReloadsOnWrite(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	configPath := filepath.Join(tempHome, ".budul", "budul.yaml")
	if err := createDefault(configPath); err != nil {
		t.Fatalf("createDefault: %v", err)
	}
	if err := reload(configPath); err != nil {
		t.Fatalf("reload: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan BudulConfig, 1)
	err := Watch(ctx, logging.Discard(), func(cfg BudulConfig) {
		select {
		case changed <- cfg:
		default:
		}
	})
	if err != nil {
		t.Fatalf("Watch() failed: %v", err)
	}

	edited, _ := yaml.Marshal(BudulConfig{Chat: ChatConfig{Madhab: "shafi"}})
	if err := os.WriteFile(configPath, edited, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case cfg := <-changed:
		if cfg.Chat.Madhab != "shafi" {
			t.Errorf("Madhab = %q, want shafi", cfg.Chat.Madhab)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the config watcher")
	}
}
