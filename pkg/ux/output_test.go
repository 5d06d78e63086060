// Copyright (C) 2025 Budul AI (engineering@budul.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"bytes"
	"io"
	"os"
	"strings"
	"testing"
)

// captureStdout redirects os.Stdout while fn runs and returns what was
// written.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()

	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	os.Stdout = w

	fn()

	if err := w.Close(); err != nil {
		t.Fatalf("close pipe: %v", err)
	}
	os.Stdout = old

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		t.Fatalf("read pipe: %v", err)
	}
	return buf.String()
}

// =============================================================================
// Print Helper Tests
// =============================================================================

func TestTitle_MachineModeSuppressed(t *testing.T) {
	restoreMode(t)
	SetModeLevel(ModeMachine)

	out := captureStdout(t, func() { Title("Budul") })

	if out != "" {
		t.Errorf("machine mode should suppress titles, got %q", out)
	}
}

func TestTitle_FullMode(t *testing.T) {
	restoreMode(t)
	SetModeLevel(ModeFull)

	out := captureStdout(t, func() { Title("Budul") })

	if !strings.Contains(out, "Budul") {
		t.Errorf("expected title text, got %q", out)
	}
}

func TestSuccess_MachineMode(t *testing.T) {
	restoreMode(t)
	SetModeLevel(ModeMachine)

	out := captureStdout(t, func() { Success("connected") })

	if !strings.Contains(out, "OK: connected") {
		t.Errorf("expected OK prefix, got %q", out)
	}
}

func TestSuccess_MinimalModeHasIcon(t *testing.T) {
	restoreMode(t)
	SetModeLevel(ModeMinimal)

	out := captureStdout(t, func() { Success("connected") })

	if !strings.Contains(out, "✓") {
		t.Errorf("expected checkmark icon, got %q", out)
	}
	if !strings.Contains(out, "connected") {
		t.Errorf("expected message text, got %q", out)
	}
}

func TestInfo_MachineModePlain(t *testing.T) {
	restoreMode(t)
	SetModeLevel(ModeMachine)

	out := captureStdout(t, func() { Info("fetching topics") })

	if out != "fetching topics\n" {
		t.Errorf("expected plain line, got %q", out)
	}
}

func TestMuted_MachineModeSuppressed(t *testing.T) {
	restoreMode(t)
	SetModeLevel(ModeMachine)

	out := captureStdout(t, func() { Muted("aside") })

	if out != "" {
		t.Errorf("machine mode should suppress muted text, got %q", out)
	}
}

func TestBox_MachineMode(t *testing.T) {
	restoreMode(t)
	SetModeLevel(ModeMachine)

	out := captureStdout(t, func() { Box("Topics", "prayer, fasting") })

	if !strings.Contains(out, "Topics: prayer, fasting") {
		t.Errorf("expected flattened box, got %q", out)
	}
}

func TestBox_FullModeHasBorder(t *testing.T) {
	restoreMode(t)
	SetModeLevel(ModeFull)

	out := captureStdout(t, func() { Box("Topics", "prayer") })

	if !strings.Contains(out, "Topics") || !strings.Contains(out, "prayer") {
		t.Errorf("expected box content, got %q", out)
	}
	if !strings.Contains(out, "─") {
		t.Errorf("expected border characters, got %q", out)
	}
}

// =============================================================================
// HealthStatus Tests
// =============================================================================

func TestHealthStatus_MachineMode(t *testing.T) {
	restoreMode(t)
	SetModeLevel(ModeMachine)

	out := captureStdout(t, func() { HealthStatus("healthy", "") })

	if !strings.Contains(out, "HEALTH: status=healthy") {
		t.Errorf("expected HEALTH line, got %q", out)
	}
}

func TestHealthStatus_StatusIcons(t *testing.T) {
	restoreMode(t)
	SetModeLevel(ModeFull)

	tests := []struct {
		status string
		icon   string
	}{
		{"healthy", "✓"},
		{"degraded", "⚠"},
		{"unreachable", "✗"},
	}

	for _, tt := range tests {
		out := captureStdout(t, func() { HealthStatus(tt.status, "") })
		if !strings.Contains(out, tt.icon) {
			t.Errorf("HealthStatus(%q): expected icon %q, got %q", tt.status, tt.icon, out)
		}
		if !strings.Contains(out, tt.status) {
			t.Errorf("HealthStatus(%q): expected status text, got %q", tt.status, out)
		}
	}
}

func TestHealthStatus_IncludesMessage(t *testing.T) {
	restoreMode(t)
	SetModeLevel(ModeFull)

	out := captureStdout(t, func() { HealthStatus("unreachable", "connection refused") })

	if !strings.Contains(out, "connection refused") {
		t.Errorf("expected probe message, got %q", out)
	}
}

// =============================================================================
// Icon Tests
// =============================================================================

func TestIcon_Render(t *testing.T) {
	tests := []struct {
		icon Icon
		want string
	}{
		{IconSuccess, "✓"},
		{IconWarning, "⚠"},
		{IconError, "✗"},
		{IconPending, "○"},
		{IconArrow, "→"},
		{IconCrescent, "☪"},
	}

	for _, tt := range tests {
		if got := tt.icon.Render(); !strings.Contains(got, tt.want) {
			t.Errorf("Icon(%q).Render() = %q, want containing %q", tt.icon, got, tt.want)
		}
	}
}
