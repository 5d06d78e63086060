// Copyright (C) 2025 Budul AI (engineering@budul.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"os"
	"strings"
	"sync"
)

// ModeLevel defines the verbosity and richness of CLI output
type ModeLevel string

const (
	// ModeFull enables all visual flourishes and rich formatting
	ModeFull ModeLevel = "full"

	// ModeStandard enables colors, icons, and boxes but minimal theming
	ModeStandard ModeLevel = "standard"

	// ModeMinimal uses icons and basic formatting only
	ModeMinimal ModeLevel = "minimal"

	// ModeMachine outputs plain text suitable for scripting and parsing
	ModeMachine ModeLevel = "machine"
)

// OutputMode holds the current output configuration
type OutputMode struct {
	// Level controls overall verbosity (full, standard, minimal, machine)
	Level ModeLevel

	// ShowGreeting enables the salam greeting on chat start
	ShowGreeting bool
}

var (
	currentMode = OutputMode{
		Level:        ModeFull,
		ShowGreeting: true,
	}
	modeMu sync.RWMutex
)

// GetMode returns the current output mode
func GetMode() OutputMode {
	modeMu.RLock()
	defer modeMu.RUnlock()
	return currentMode
}

// SetMode updates the current output mode
func SetMode(m OutputMode) {
	modeMu.Lock()
	defer modeMu.Unlock()
	currentMode = m
}

// SetModeLevel updates just the output level
func SetModeLevel(level ModeLevel) {
	modeMu.Lock()
	defer modeMu.Unlock()
	currentMode.Level = level
}

// ParseModeLevel converts a string to ModeLevel
func ParseModeLevel(s string) ModeLevel {
	switch strings.ToLower(s) {
	case "full", "f":
		return ModeFull
	case "standard", "std", "s":
		return ModeStandard
	case "minimal", "min", "m":
		return ModeMinimal
	case "machine", "plain", "quiet", "q":
		return ModeMachine
	default:
		return ModeStandard
	}
}

// InitMode initializes the output mode from environment and defaults
func InitMode() {
	if envLevel := os.Getenv("BUDUL_OUTPUT"); envLevel != "" {
		SetModeLevel(ParseModeLevel(envLevel))
		return
	}

	// Piped or redirected output gets the scripting format
	if !isTerminal() {
		SetModeLevel(ModeMachine)
		return
	}

	SetModeLevel(ModeFull)
}

// isTerminal checks if stdout is a terminal
func isTerminal() bool {
	fileInfo, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}

// IsInteractive returns true if we should show interactive prompts
func IsInteractive() bool {
	return GetMode().Level != ModeMachine && isTerminal()
}

// ShouldShowProgress returns true if we should show progress indicators
func ShouldShowProgress() bool {
	return GetMode().Level != ModeMachine
}

// DefaultMode returns the default output settings
func DefaultMode() OutputMode {
	return OutputMode{
		Level:        ModeFull,
		ShowGreeting: true,
	}
}
