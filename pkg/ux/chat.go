// Copyright (C) 2025 Budul AI (engineering@budul.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/BudulAI/BudulGo/pkg/chat"
)

// Confidence tag thresholds. Scores at or above ConfidenceHigh render
// as "high", at or above ConfidenceMedium as "medium", otherwise "low".
const (
	ConfidenceHigh   = 0.85
	ConfidenceMedium = 0.6
)

// HeaderConfig contains configuration for displaying the chat header.
//
// # Description
//
// HeaderConfig groups all optional parameters for the chat header
// display. This allows extending the header with new fields without
// breaking existing callers of the Header() method.
//
// # Fields
//
//   - SessionID: Session identifier. May be empty for new sessions.
//   - Madhab: School of jurisprudence the backend was asked to follow.
//   - Language: Response language code (e.g., "en", "ar").
//   - Streaming: True when responses arrive incrementally.
//   - HistoryEnabled: True when turns are recorded to the local store.
type HeaderConfig struct {
	SessionID      string
	Madhab         string
	Language       string
	Streaming      bool
	HistoryEnabled bool
}

// SessionStats aggregates metrics from a chat session for display.
//
// # Fields
//
//   - MessageCount: Number of user messages sent
//   - CitationCount: Total citations across all responses
//   - FallbackCount: Responses replaced by the fallback text
//   - Duration: Total session duration
//   - FirstResponseLatency: Time to the first completed response
type SessionStats struct {
	MessageCount         int
	CitationCount        int
	FallbackCount        int
	Duration             time.Duration
	FirstResponseLatency time.Duration
}

// ChatUI defines the interface for chat user interface operations.
// Implementations handle rendering chat elements to different outputs.
type ChatUI interface {
	// Header displays the chat session header with configuration.
	Header(config HeaderConfig)

	// Prompt returns the styled input prompt string
	Prompt() string

	// Response displays a completed assistant message with its
	// confidence tag and citations. Fallback messages render as a
	// degradation banner instead.
	Response(msg chat.Message)

	// StreamStart prints the prefix before streamed chunks.
	StreamStart()

	// StreamChunk prints one streamed content fragment without a
	// trailing newline.
	StreamChunk(text string)

	// StreamEnd terminates the streamed response line.
	StreamEnd()

	// Banner displays a degradation notice.
	Banner(text string)

	// Citations displays the references backing a response.
	Citations(citations []chat.Citation)

	// Error displays a chat error message
	Error(err error)

	// SessionResume displays session resume information
	SessionResume(sessionID string, turnCount int)

	// SessionEnd displays session end information with optional stats.
	SessionEnd(sessionID string, stats *SessionStats)

	// Transcript renders a stored conversation in order.
	Transcript(messages []chat.Message)
}

// terminalChatUI implements ChatUI for terminal output
type terminalChatUI struct {
	writer io.Writer
	level  ModeLevel
}

// write is a helper that writes formatted output and handles errors.
// Errors are silently ignored as there's no meaningful recovery for
// terminal output.
func (u *terminalChatUI) write(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(u.writer, format, args...); err != nil {
		return
	}
}

// writeln is a helper that writes a line and handles errors.
func (u *terminalChatUI) writeln(args ...interface{}) {
	if _, err := fmt.Fprintln(u.writer, args...); err != nil {
		return
	}
}

// NewChatUI creates a new terminal-based ChatUI
func NewChatUI() ChatUI {
	return &terminalChatUI{
		writer: os.Stdout,
		level:  GetMode().Level,
	}
}

// NewChatUIWithWriter creates a ChatUI with a custom writer (for testing)
func NewChatUIWithWriter(w io.Writer, level ModeLevel) ChatUI {
	return &terminalChatUI{
		writer: w,
		level:  level,
	}
}

// Header displays the chat session header.
func (u *terminalChatUI) Header(config HeaderConfig) {
	switch u.level {
	case ModeMachine:
		u.headerMachine(config)
	case ModeMinimal:
		u.headerMinimal(config)
	default:
		u.headerFull(config)
	}
}

// headerMachine renders the header in machine-readable format.
func (u *terminalChatUI) headerMachine(config HeaderConfig) {
	parts := []string{fmt.Sprintf("madhab=%s", config.Madhab)}
	if config.Language != "" {
		parts = append(parts, fmt.Sprintf("language=%s", config.Language))
	}
	if config.SessionID != "" {
		parts = append(parts, fmt.Sprintf("session=%s", config.SessionID))
	}
	if config.Streaming {
		parts = append(parts, "stream=true")
	}
	if !config.HistoryEnabled {
		parts = append(parts, "history=off")
	}
	u.write("CHAT_START: %s\n", strings.Join(parts, " "))
}

// headerMinimal renders the header in minimal format.
func (u *terminalChatUI) headerMinimal(config HeaderConfig) {
	u.write("Budul Chat (madhab: %s)\n", config.Madhab)
	if config.Streaming {
		u.writeln("Streaming enabled.")
	}
	u.writeln("Type 'exit' to end.")
}

// headerFull renders the header with full styling.
func (u *terminalChatUI) headerFull(config HeaderConfig) {
	var content strings.Builder
	if GetMode().ShowGreeting {
		content.WriteString(Styles.Highlight.Render("As-salamu alaykum"))
		content.WriteString("\n")
	}
	content.WriteString(fmt.Sprintf("Madhab: %s", Styles.Success.Render(config.Madhab)))
	if config.Language != "" {
		content.WriteString(fmt.Sprintf(" | Language: %s", Styles.Success.Render(config.Language)))
	}
	if config.Streaming {
		content.WriteString("\n")
		content.WriteString(Styles.Muted.Render("Streaming responses"))
	}
	if !config.HistoryEnabled {
		content.WriteString("\n")
		content.WriteString(Styles.Muted.Render("History disabled for this session"))
	}
	if config.SessionID != "" {
		content.WriteString("\n")
		content.WriteString(fmt.Sprintf("Session: %s", Styles.Muted.Render(config.SessionID)))
	}

	boxStyle := Styles.Box.Width(60)
	u.writeln(boxStyle.Render(content.String()))
	u.writeln()
	u.writeln(Styles.Muted.Render("Type 'exit' to end the conversation."))
	u.writeln()
}

// Prompt returns the styled input prompt string
func (u *terminalChatUI) Prompt() string {
	if u.level == ModeMachine {
		return "> "
	}
	return Styles.User.Render("> ")
}

// Response displays a completed assistant message.
func (u *terminalChatUI) Response(msg chat.Message) {
	if msg.Fallback {
		u.Banner(msg.Content)
		return
	}

	if u.level == ModeMachine {
		u.write("RESPONSE: %s\n", msg.Content)
		u.write("CONFIDENCE: %s score=%.2f authenticity=%.2f\n",
			ConfidenceTag(msg.Confidence), msg.Confidence, msg.Authenticity)
		u.Citations(msg.Citations)
		return
	}

	u.writeln()
	u.writeln(Styles.Assistant.Render(msg.Content))
	u.writeln(u.renderTag(msg.Confidence, msg.Authenticity))
	u.Citations(msg.Citations)
}

// StreamStart prints the prefix before streamed chunks.
func (u *terminalChatUI) StreamStart() {
	if u.level == ModeMachine {
		return
	}
	u.writeln()
}

// StreamChunk prints one streamed content fragment.
func (u *terminalChatUI) StreamChunk(text string) {
	if u.level == ModeMachine {
		u.write("%s", text)
		return
	}
	u.write("%s", Styles.Assistant.Render(text))
}

// StreamEnd terminates the streamed response line.
func (u *terminalChatUI) StreamEnd() {
	u.writeln()
}

// Banner displays a degradation notice.
func (u *terminalChatUI) Banner(text string) {
	if u.level == ModeMachine {
		u.write("FALLBACK: %s\n", text)
		return
	}
	u.writeln()
	u.write("%s %s\n", IconWarning.Render(), Styles.Banner.Render(text))
}

// Citations displays the references backing a response.
func (u *terminalChatUI) Citations(citations []chat.Citation) {
	if len(citations) == 0 {
		return
	}

	if u.level == ModeMachine {
		for _, c := range citations {
			u.write("CITATION: type=%s ref=%s relevance=%.2f\n", c.Type, c.Reference, c.Relevance)
		}
		return
	}

	u.writeln()
	if u.level == ModeMinimal {
		u.writeln("References:")
		for i, c := range citations {
			u.write("  %d. %s %s\n", i+1, c.Type, c.Reference)
		}
		return
	}

	var content strings.Builder
	for i, c := range citations {
		relevance := ""
		if c.Relevance != 0 {
			relevance = Styles.Muted.Render(fmt.Sprintf(" (%.2f)", c.Relevance))
		}
		content.WriteString(fmt.Sprintf("%d. %s%s",
			i+1, Styles.Citation.Render(c.Type+" "+c.Reference), relevance))
		if c.Text != "" {
			content.WriteString("\n   " + Styles.Muted.Render(truncate(c.Text, 70)))
		}
		if i < len(citations)-1 {
			content.WriteString("\n")
		}
	}

	boxStyle := Styles.InfoBox.Width(60)
	titleLine := Styles.Subtitle.Render("References")
	u.writeln(boxStyle.Render(titleLine + "\n" + content.String()))
}

// Error displays a chat error message
func (u *terminalChatUI) Error(err error) {
	if u.level == ModeMachine {
		u.write("CHAT_ERROR: %v\n", err)
		return
	}
	u.write("%s %s\n", IconError.Render(), Styles.Error.Render(fmt.Sprintf("Chat error: %v", err)))
}

// SessionResume displays session resume information
func (u *terminalChatUI) SessionResume(sessionID string, turnCount int) {
	if u.level == ModeMachine {
		u.write("SESSION_RESUME: session=%s turns=%d\n", sessionID, turnCount)
		return
	}
	u.write("%s %s\n", IconSuccess.Render(),
		Styles.Success.Render(fmt.Sprintf("Resumed session %s (%d previous turns)", sessionID, turnCount)))
}

// SessionEnd displays session end information.
//
// # Description
//
// Displays a session summary on exit. With stats, the full mode renders
// a bordered box with message counts, citation totals, duration, and a
// resume hint; without stats it falls back to a simple goodbye.
//
// # Inputs
//
//   - sessionID: The session identifier. May be empty for anonymous sessions.
//   - stats: Session statistics. Nil selects the simple goodbye.
//
// # Outputs
//
// None. Writes directly to the configured writer.
func (u *terminalChatUI) SessionEnd(sessionID string, stats *SessionStats) {
	if stats == nil {
		u.sessionEndSimple(sessionID)
		return
	}

	switch u.level {
	case ModeMachine:
		u.write("CHAT_END: session=%s messages=%d citations=%d fallbacks=%d duration=%s\n",
			sessionID, stats.MessageCount, stats.CitationCount, stats.FallbackCount,
			stats.Duration.Round(time.Millisecond))
	case ModeMinimal:
		u.writeln()
		if sessionID != "" {
			u.write("Session: %s\n", sessionID)
		}
		u.write("Messages: %d | Citations: %d | Duration: %s\n",
			stats.MessageCount, stats.CitationCount, formatDuration(stats.Duration))
		u.writeln("Ma'a salama!")
	default:
		u.sessionEndFull(sessionID, stats)
	}
}

func (u *terminalChatUI) sessionEndSimple(sessionID string) {
	if u.level == ModeMachine {
		u.write("CHAT_END: session=%s\n", sessionID)
		return
	}
	if sessionID != "" {
		u.writeln(Styles.Muted.Render(fmt.Sprintf("Session: %s", sessionID)))
	}
	u.writeln("Ma'a salama!")
}

func (u *terminalChatUI) sessionEndFull(sessionID string, stats *SessionStats) {
	u.writeln()

	var content strings.Builder
	content.WriteString(Styles.Subtitle.Render("Session Summary"))
	content.WriteString("\n\n")

	if sessionID != "" {
		content.WriteString(fmt.Sprintf("  %s  %s\n",
			Styles.Muted.Render("ID:"),
			Styles.Highlight.Render(sessionID)))
		content.WriteString("\n")
	}

	content.WriteString(fmt.Sprintf("  %s  %d messages exchanged\n",
		IconBullet.Render(), stats.MessageCount))
	if stats.CitationCount > 0 {
		content.WriteString(fmt.Sprintf("  %s  %d references cited\n",
			IconBook.Render(), stats.CitationCount))
	}
	if stats.FallbackCount > 0 {
		content.WriteString(fmt.Sprintf("  %s  %d fallback responses\n",
			IconWarning.Render(), stats.FallbackCount))
	}
	content.WriteString(fmt.Sprintf("  %s  %s session duration\n",
		IconArrow.Render(), formatDuration(stats.Duration)))
	if stats.FirstResponseLatency > 0 {
		content.WriteString(fmt.Sprintf("  %s  %s to first response\n",
			IconStar.Render(), formatDuration(stats.FirstResponseLatency)))
	}

	if sessionID != "" {
		content.WriteString("\n")
		content.WriteString(Styles.Subtitle.Render("Continue Later"))
		content.WriteString("\n\n")
		content.WriteString(fmt.Sprintf("  %s\n",
			Styles.Muted.Render("Resume this conversation:")))
		content.WriteString(fmt.Sprintf("  %s\n",
			Styles.Success.Render(fmt.Sprintf("budul chat --session %s", sessionID))))
	}

	// Width 68 accommodates the resume command with a UUID session id
	boxStyle := Styles.Box.Width(68)
	u.writeln(boxStyle.Render(content.String()))
	u.writeln()
	u.writeln(Styles.Highlight.Render("Ma'a salama!"))
}

// Transcript renders a stored conversation in order.
//
// User turns carry the user style, assistant turns the assistant style
// with confidence tags, fallback turns the banner style. Machine mode
// emits one ROLE: line per message.
func (u *terminalChatUI) Transcript(messages []chat.Message) {
	for _, msg := range messages {
		if u.level == ModeMachine {
			u.write("%s: %s\n", strings.ToUpper(string(msg.Role)), msg.Content)
			continue
		}

		switch {
		case msg.Role == chat.RoleUser:
			u.write("%s %s\n", Styles.User.Render(">"), msg.Content)
		case msg.Fallback:
			u.write("%s %s\n", IconWarning.Render(), Styles.Banner.Render(msg.Content))
		default:
			u.writeln(Styles.Assistant.Render(msg.Content))
			if msg.Confidence > 0 {
				u.writeln(u.renderTag(msg.Confidence, msg.Authenticity))
			}
		}
		u.writeln()
	}
}

// renderTag formats the confidence tag with its score detail.
func (u *terminalChatUI) renderTag(confidence, authenticity float64) string {
	tag := ConfidenceTag(confidence)
	detail := Styles.Muted.Render(fmt.Sprintf(" confidence %.2f, authenticity %.2f", confidence, authenticity))

	var styled string
	switch tag {
	case "high":
		styled = Styles.Success.Render("[high]")
	case "medium":
		styled = Styles.Warning.Render("[medium]")
	default:
		styled = Styles.Error.Render("[low]")
	}
	return styled + detail
}

// ConfidenceTag buckets a confidence score into high, medium, or low.
func ConfidenceTag(score float64) string {
	switch {
	case score >= ConfidenceHigh:
		return "high"
	case score >= ConfidenceMedium:
		return "medium"
	default:
		return "low"
	}
}

// truncate shortens s to max runes with an ellipsis.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

// formatDuration formats a duration for human-readable display.
//
//	formatDuration(500*time.Millisecond) // "500ms"
//	formatDuration(5*time.Second)        // "5.0s"
//	formatDuration(90*time.Second)       // "1m 30s"
//	formatDuration(2*time.Hour)          // "2h 0m"
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		mins := int(d.Minutes())
		secs := int(d.Seconds()) % 60
		if secs == 0 {
			return fmt.Sprintf("%dm", mins)
		}
		return fmt.Sprintf("%dm %ds", mins, secs)
	}
	hours := int(d.Hours())
	mins := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh %dm", hours, mins)
}

// RelativeTime converts a timestamp to a human-friendly relative string
// like "2h ago" or "3 days ago". Times older than a month show the date.
func RelativeTime(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}

	diff := time.Since(t)
	if diff < time.Minute {
		return "just now"
	}
	if diff < time.Hour {
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1 min ago"
		}
		return fmt.Sprintf("%d mins ago", mins)
	}
	if diff < 24*time.Hour {
		hours := int(diff.Hours())
		if hours == 1 {
			return "1h ago"
		}
		return fmt.Sprintf("%dh ago", hours)
	}
	if diff < 7*24*time.Hour {
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	}
	if diff < 30*24*time.Hour {
		weeks := int(diff.Hours() / (24 * 7))
		if weeks == 1 {
			return "1 week ago"
		}
		return fmt.Sprintf("%d weeks ago", weeks)
	}

	return t.Format("Jan 2, 2006")
}
