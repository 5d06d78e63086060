// Copyright (C) 2025 Budul AI (engineering@budul.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package history persists conversation transcripts in an embedded
// BadgerDB so past sessions survive restarts and can be listed,
// replayed, and exported without the backend.
//
// Keys are scoped per session:
//
//	session:{id}          -> SessionRecord (JSON)
//	msg:{id}:{seq %016d}  -> chat.Message (JSON)
//
// The zero-padded sequence keeps messages in insertion order under
// Badger's lexicographic iteration.
//
// License: BadgerDB is Apache 2.0 licensed (github.com/dgraph-io/badger).
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/BudulAI/BudulGo/pkg/chat"
)

var tracer = otel.Tracer("budul.history")

var (
	// ErrStoreClosed is returned when operations are called on a closed
	// store.
	ErrStoreClosed = errors.New("history store is closed")

	// ErrSessionNotFound is returned when a session id has no record.
	ErrSessionNotFound = errors.New("session not found")
)

// Config holds configuration for the history store.
type Config struct {
	// Path is the directory for BadgerDB files.
	// Required unless InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence).
	// Useful for testing.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// Logger receives store and BadgerDB diagnostics.
	// If nil, BadgerDB's internal logging is disabled.
	Logger *slog.Logger

	// GCInterval is how often to run value log garbage collection.
	// Set to 0 to disable. Ignored for in-memory stores.
	GCInterval time.Duration

	// GCDiscardRatio is the minimum ratio of discardable data before GC.
	GCDiscardRatio float64
}

// DefaultConfig returns production defaults for a store at path.
func DefaultConfig(path string) Config {
	return Config{
		Path:           path,
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns configuration for testing. Data is lost when
// the store closes.
func InMemoryConfig() Config {
	return Config{
		InMemory:   true,
		SyncWrites: false,
		GCInterval: 0,
	}
}

// SessionRecord is the listing entry for one stored conversation.
type SessionRecord struct {
	ID        string    `json:"id"`
	Title     string    `json:"title,omitempty"`
	Madhab    string    `json:"madhab,omitempty"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Messages  int       `json:"messages"`
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Store is a BadgerDB-backed transcript store.
//
// Thread Safety: Safe for concurrent use from multiple goroutines.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
	closed atomic.Bool

	// seq tracks the next message sequence per session, recovered
	// lazily from the last stored key.
	mu  sync.Mutex
	seq map[string]uint64

	gcStop chan struct{}
	gcDone chan struct{}
}

// Open creates and opens a history store with the given configuration.
//
// # Description
//
// Opens a BadgerDB at the configured path, or in memory if InMemory is
// true. Creates the directory if it doesn't exist and starts the value
// log GC loop when GCInterval is set.
//
// # Inputs
//
//	cfg - Store configuration. Path is required unless InMemory is true.
//
// # Outputs
//
//	*Store - The opened store. Caller must call Close() when done.
//	error - Non-nil if the path is invalid or the database cannot open.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create store directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)
	opts = opts.WithNumVersionsToKeep(1)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open history store: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		db:     db,
		logger: logger,
		seq:    make(map[string]uint64),
	}

	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.gcStop = make(chan struct{})
		s.gcDone = make(chan struct{})
		go s.runGC(cfg.GCInterval, cfg.GCDiscardRatio)
	}
	return s, nil
}

// Close stops garbage collection and closes the database. Safe to call
// multiple times.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	if s.gcStop != nil {
		close(s.gcStop)
		<-s.gcDone
	}
	return s.db.Close()
}

func (s *Store) runGC(interval time.Duration, ratio float64) {
	defer close(s.gcDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.gcStop:
			return
		case <-ticker.C:
			err := s.db.RunValueLogGC(ratio)
			if err == nil {
				s.logger.Debug("history value log GC completed")
			} else if !errors.Is(err, badger.ErrNoRewrite) {
				// ErrNoRewrite means no GC was needed, not an error.
				s.logger.Warn("history value log GC error", slog.String("error", err.Error()))
			}
		}
	}
}

// =============================================================================
// Keys
// =============================================================================

func sessionKey(id string) []byte {
	return []byte("session:" + id)
}

func messagePrefix(sessionID string) string {
	return fmt.Sprintf("msg:%s:", sessionID)
}

func messageKey(sessionID string, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%016d", messagePrefix(sessionID), seq))
}

// =============================================================================
// Sessions
// =============================================================================

// SaveSession upserts a session record.
func (s *Store) SaveSession(ctx context.Context, rec SessionRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if rec.ID == "" {
		return errors.New("session id must not be empty")
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode session record: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(sessionKey(rec.ID), data)
	})
}

// Session returns the record for one session id.
func (s *Store) Session(ctx context.Context, id string) (SessionRecord, error) {
	if err := s.ready(ctx); err != nil {
		return SessionRecord{}, err
	}

	var rec SessionRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(sessionKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrSessionNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	return rec, err
}

// Sessions lists all stored sessions, most recently updated first.
func (s *Store) Sessions(ctx context.Context) ([]SessionRecord, error) {
	ctx, span := tracer.Start(ctx, "history.Sessions")
	defer span.End()

	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	records := []SessionRecord{}
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte("session:")
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rec SessionRecord
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				s.logger.Warn("skipping undecodable session record",
					slog.String("key", string(it.Item().Key())),
					slog.String("error", err.Error()))
				continue
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].UpdatedAt.After(records[j].UpdatedAt)
	})
	span.SetAttributes(attribute.Int("session_count", len(records)))
	return records, nil
}

// DeleteSession removes a session record and all of its messages.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "history.DeleteSession",
		trace.WithAttributes(attribute.String("session_id", id)))
	defer span.End()

	if err := s.ready(ctx); err != nil {
		return err
	}

	// Collect message keys first; deleting while iterating the same
	// transaction invalidates the iterator.
	var keys [][]byte
	prefix := []byte(messagePrefix(id))
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return txn.Delete(sessionKey(id))
	})
	if err != nil {
		span.RecordError(err)
		return err
	}

	s.mu.Lock()
	delete(s.seq, id)
	s.mu.Unlock()
	return nil
}

// =============================================================================
// Messages
// =============================================================================

// AppendMessage stores one transcript message and touches the session
// record in the same transaction.
//
// # Description
//
// Appends the message under the next sequence key for the session. The
// session record's message count and UpdatedAt are bumped atomically;
// a record is created on first append if SaveSession was never called.
//
// # Inputs
//
//	ctx - Context for cancellation. Must not be nil.
//	sessionID - The owning session. Must not be empty.
//	msg - The message to persist.
//
// # Outputs
//
//	error - Non-nil if encoding or the write fails.
func (s *Store) AppendMessage(ctx context.Context, sessionID string, msg chat.Message) error {
	ctx, span := tracer.Start(ctx, "history.AppendMessage",
		trace.WithAttributes(
			attribute.String("session_id", sessionID),
			attribute.String("role", string(msg.Role)),
		))
	defer span.End()

	if err := s.ready(ctx); err != nil {
		return err
	}
	if sessionID == "" {
		return errors.New("session id must not be empty")
	}

	data, err := json.Marshal(msg)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("encode message: %w", err)
	}

	seq, err := s.nextSeq(sessionID)
	if err != nil {
		span.RecordError(err)
		return err
	}

	now := time.Now().UTC()
	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(messageKey(sessionID, seq), data); err != nil {
			return err
		}

		rec := SessionRecord{ID: sessionID, StartedAt: now}
		item, err := txn.Get(sessionKey(sessionID))
		if err == nil {
			decodeErr := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if decodeErr != nil {
				return decodeErr
			}
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		rec.Messages++
		rec.UpdatedAt = now
		if rec.Title == "" && msg.Role == chat.RoleUser {
			rec.Title = titleFrom(msg.Content)
		}

		recData, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return txn.Set(sessionKey(sessionID), recData)
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// Messages returns a session's transcript in insertion order.
func (s *Store) Messages(ctx context.Context, sessionID string) ([]chat.Message, error) {
	ctx, span := tracer.Start(ctx, "history.Messages",
		trace.WithAttributes(attribute.String("session_id", sessionID)))
	defer span.End()

	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	msgs := []chat.Message{}
	prefix := []byte(messagePrefix(sessionID))
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var msg chat.Message
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &msg)
			})
			if err != nil {
				s.logger.Warn("skipping undecodable message",
					slog.String("key", string(it.Item().Key())),
					slog.String("error", err.Error()))
				continue
			}
			msgs = append(msgs, msg)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("message_count", len(msgs)))
	return msgs, nil
}

// nextSeq hands out the next sequence number for a session, recovering
// from the last stored key on first use.
func (s *Store) nextSeq(sessionID string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if next, ok := s.seq[sessionID]; ok {
		s.seq[sessionID] = next + 1
		return next, nil
	}

	var last uint64
	var found bool
	prefix := []byte(messagePrefix(sessionID))
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration needs a seek target past the last key.
		seek := append(append([]byte{}, prefix...), 0xFF)
		it.Seek(seek)
		if it.ValidForPrefix(prefix) {
			key := string(it.Item().Key())
			seq, err := strconv.ParseUint(key[len(prefix):], 10, 64)
			if err != nil {
				return fmt.Errorf("parse sequence from key %s: %w", key, err)
			}
			last = seq
			found = true
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	next := uint64(0)
	if found {
		next = last + 1
	}
	s.seq[sessionID] = next + 1
	return next, nil
}

// ready rejects operations on a closed store or cancelled context.
func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.closed.Load() {
		return ErrStoreClosed
	}
	return nil
}

// titleFrom derives a listing title from the first user message.
func titleFrom(content string) string {
	const maxTitle = 60
	if len(content) <= maxTitle {
		return content
	}
	return content[:maxTitle] + "..."
}
