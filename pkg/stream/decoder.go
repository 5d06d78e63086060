// Copyright (C) 2025 Budul AI (engineering@budul.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// ErrDecoderUsed is returned when Run is called on a decoder that has
// already consumed a stream. Streams are one-shot; re-issue the request
// with a fresh decoder to stream again.
var ErrDecoderUsed = errors.New("stream: decoder already consumed")

// =============================================================================
// Decoder
// =============================================================================

// Decoder incrementally decodes one chat stream.
//
// Decoding algorithm:
//
//	Bytes are buffered until a full line is available, so input may
//	arrive at arbitrary chunk boundaries; a trailing partial line is
//	retained until its newline arrives. Each complete line is handled:
//
//	  - blank lines and ":" comments are event delimiters, skipped
//	  - lines without a "data:" prefix are ignored
//	  - "data: <json>" lines dispatch by their "type" field
//	  - a data line whose payload is not valid JSON is logged and
//	    skipped; the stream continues
//
// Termination:
//
//	The loop ends on a complete or error event, on end-of-stream
//	(treated as an implicit completion when no complete event was
//	seen), on a reader failure, or on context cancellation.
//
// A Decoder is one-shot: it processes exactly one stream. A second Run
// returns ErrDecoderUsed.
type Decoder struct {
	logger *slog.Logger

	mu   sync.Mutex
	used bool
}

// NewDecoder creates a decoder that logs through slog.Default().
func NewDecoder() *Decoder {
	return NewDecoderWithLogger(nil)
}

// NewDecoderWithLogger creates a decoder with an injected logger.
//
// Parameters:
//   - logger: Destination for skipped-line warnings. Nil falls back to
//     slog.Default().
func NewDecoderWithLogger(logger *slog.Logger) *Decoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Decoder{logger: logger}
}

// Run decodes the stream from r, invoking h's callbacks as events arrive.
//
// Parameters:
//   - ctx: Cancels decoding between lines. Cancellation returns ctx.Err()
//     without invoking OnComplete or OnError.
//   - r: The stream source. The caller is responsible for closing it.
//   - h: Callbacks for decoded events.
//
// Returns:
//   - nil on clean termination (complete event, backend error event, or
//     implicit end-of-stream completion)
//   - ErrDecoderUsed if this decoder already consumed a stream
//   - ctx.Err() on cancellation
//   - the reader's error on a mid-stream I/O failure (also surfaced
//     through OnError)
//
// A backend error event is delivered through OnError only; Run still
// returns nil because the stream itself terminated in an orderly way.
func (d *Decoder) Run(ctx context.Context, r io.Reader, h Handler) error {
	d.mu.Lock()
	if d.used {
		d.mu.Unlock()
		return ErrDecoderUsed
	}
	d.used = true
	d.mu.Unlock()

	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		event, ok := d.decodeLine(scanner.Text())
		if !ok {
			continue
		}

		switch event.Type {
		case EventContent:
			h.chunk(event.Chunk)

		case EventComplete:
			h.complete()
			return nil

		case EventError:
			h.error(event.Message)
			return nil

		default:
			d.logger.Debug("ignoring unknown stream event type", "type", string(event.Type))
		}
	}

	if err := scanner.Err(); err != nil {
		h.error(err.Error())
		return err
	}

	// End-of-stream without a complete event is an implicit completion.
	h.complete()
	return nil
}

// Events decodes the stream from r into a channel.
//
// This is the channel-shaped equivalent of Run for select-based
// consumers. The channel is closed when the stream terminates; a
// mid-stream reader failure is delivered as a final error event before
// the close. The goroutine exits when the stream ends or ctx is
// cancelled.
//
// Example:
//
//	for ev := range dec.Events(ctx, resp.Body) {
//	    switch ev.Type {
//	    case stream.EventContent:
//	        fmt.Print(ev.Chunk)
//	    case stream.EventError:
//	        return errors.New(ev.Message)
//	    }
//	}
func (d *Decoder) Events(ctx context.Context, r io.Reader) <-chan Event {
	events := make(chan Event)

	send := func(ev Event) {
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	}

	go func() {
		defer close(events)
		_ = d.Run(ctx, r, Handler{
			OnChunk:    func(chunk string) { send(Event{Type: EventContent, Chunk: chunk}) },
			OnComplete: func() { send(Event{Type: EventComplete}) },
			OnError:    func(message string) { send(Event{Type: EventError, Message: message}) },
		})
	}()

	return events
}

// decodeLine parses a single stream line into an Event.
//
// The second return is false for lines that carry no event: blanks,
// comments, non-data lines, and data lines with unparsable payloads.
func (d *Decoder) decodeLine(line string) (Event, bool) {
	line = strings.TrimSpace(line)

	if line == "" {
		return Event{}, false
	}

	if strings.HasPrefix(line, ":") {
		return Event{}, false
	}

	var payload string
	switch {
	case strings.HasPrefix(line, "data: "):
		payload = strings.TrimPrefix(line, "data: ")
	case strings.HasPrefix(line, "data:"):
		// Some servers omit the space after the colon.
		payload = strings.TrimPrefix(line, "data:")
	default:
		return Event{}, false
	}

	// The wire has shipped both "chunk" and "content" as the text field
	// over the product's life; accept either.
	var raw struct {
		Type      string `json:"type"`
		Chunk     string `json:"chunk"`
		Content   string `json:"content"`
		Message   string `json:"message"`
		Error     string `json:"error"`
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		d.logger.Warn("skipping unparsable stream line", "error", err)
		return Event{}, false
	}

	event := Event{
		Type:      EventType(raw.Type),
		Chunk:     raw.Chunk,
		Message:   raw.Message,
		SessionID: raw.SessionID,
	}
	if event.Chunk == "" {
		event.Chunk = raw.Content
	}
	if event.Message == "" {
		event.Message = raw.Error
	}

	return event, true
}
