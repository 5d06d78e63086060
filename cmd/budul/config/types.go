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
	"os"
	"time"
)

// BudulConfig is the persisted CLI configuration, stored at
// ~/.budul/budul.yaml and created with defaults on first run.
type BudulConfig struct {
	// Backend: where the Budul API lives and how to reach it
	Backend BackendConfig `yaml:"backend"`

	// Chat: default conversation preferences
	Chat ChatConfig `yaml:"chat"`

	// History: local transcript recording
	History HistoryConfig `yaml:"history"`

	// Logging: CLI log destination and level
	Logging LoggingConfig `yaml:"logging"`

	// Telemetry: trace and metric exporters
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Output: terminal presentation
	Output OutputConfig `yaml:"output"`

	// Export: transcript export destinations
	Export ExportConfig `yaml:"export"`
}

// Client-side request deadlines when the config leaves them unset.
// These mirror the pkg/api defaults so the yaml file can omit them.
const (
	defaultChatTimeoutSeconds = 30
	defaultMetaTimeoutSeconds = 10
)

type BackendConfig struct {
	BaseURL            string `yaml:"base_url"`                       // e.g. https://api.budul.ai
	AuthToken          string `yaml:"auth_token,omitempty"`           // bearer token, empty for anonymous
	ChatTimeoutSeconds int    `yaml:"chat_timeout_seconds,omitempty"` // 0 uses the client default
	MetaTimeoutSeconds int    `yaml:"meta_timeout_seconds,omitempty"` // 0 uses the client default

	// OptimisticHealth skips the connectivity probe and assumes the
	// backend is reachable. For deployments where the health root sits
	// behind cross-origin or proxy rules.
	OptimisticHealth bool `yaml:"optimistic_health,omitempty"`
}

// ChatTimeout converts the configured seconds to a duration.
func (b BackendConfig) ChatTimeout() time.Duration {
	if b.ChatTimeoutSeconds <= 0 {
		return defaultChatTimeoutSeconds * time.Second
	}
	return time.Duration(b.ChatTimeoutSeconds) * time.Second
}

// MetaTimeout converts the configured seconds to a duration.
func (b BackendConfig) MetaTimeout() time.Duration {
	if b.MetaTimeoutSeconds <= 0 {
		return defaultMetaTimeoutSeconds * time.Second
	}
	return time.Duration(b.MetaTimeoutSeconds) * time.Second
}

type ChatConfig struct {
	Madhab    string `yaml:"madhab"`    // e.g. general, hanafi, maliki, shafi, hanbali
	Language  string `yaml:"language"`  // e.g. en, ar
	Streaming bool   `yaml:"streaming"` // stream responses by default
}

type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"` // badger directory, ~ is expanded
}

type LoggingConfig struct {
	Level string `yaml:"level"`          // debug, info, warn, error
	Dir   string `yaml:"dir"`            // log file directory, ~ is expanded
	JSON  bool   `yaml:"json,omitempty"` // JSON on stderr instead of text
}

type TelemetryConfig struct {
	Traces       string `yaml:"traces"`                  // none, stdout, otlp
	Metrics      string `yaml:"metrics"`                 // none, stdout, prometheus
	OTLPEndpoint string `yaml:"otlp_endpoint,omitempty"` // host:port for the otlp exporter

	// MetricsAddr is where long-running commands serve /metrics when
	// the prometheus exporter is selected. The library side only builds
	// the handler; the CLI owns the listener.
	MetricsAddr string `yaml:"metrics_addr,omitempty"`
}

type OutputConfig struct {
	Mode     string `yaml:"mode"`     // empty for auto-detect, or full/standard/minimal/machine
	Greeting bool   `yaml:"greeting"` // show the salam greeting on chat start
}

type ExportConfig struct {
	GCSProject string `yaml:"gcs_project,omitempty"`
	GCSBucket  string `yaml:"gcs_bucket,omitempty"`
	GCSKeyFile string `yaml:"gcs_key_file,omitempty"` // service account key path
}

// DefaultConfig returns the configuration written on first run.
// BUDUL_BASE_URL overrides the backend root for development setups.
func DefaultConfig() BudulConfig {
	baseURL := "https://api.budul.ai"
	if env := os.Getenv("BUDUL_BASE_URL"); env != "" {
		baseURL = env
	}

	return BudulConfig{
		Backend: BackendConfig{
			BaseURL: baseURL,
		},
		Chat: ChatConfig{
			Madhab:   "general",
			Language: "en",
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    "~/.budul/history",
		},
		Logging: LoggingConfig{
			Level: "info",
			Dir:   "~/.budul/logs",
		},
		Telemetry: TelemetryConfig{
			Traces:      "none",
			Metrics:     "none",
			MetricsAddr: ":9464",
		},
		Output: OutputConfig{
			Greeting: true,
		},
	}
}
