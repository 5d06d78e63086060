// Copyright (C) 2025 Budul AI (engineering@budul.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package history

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BudulAI/BudulGo/pkg/chat"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func userMessage(content string) chat.Message {
	return chat.Message{ID: "m-" + content, Role: chat.RoleUser, Content: content, CreatedAt: time.Now().UTC()}
}

func assistantMessage(content string) chat.Message {
	return chat.Message{ID: "m-" + content, Role: chat.RoleAssistant, Content: content, CreatedAt: time.Now().UTC()}
}

// TestOpenInMemory verifies the in-memory store round-trips a message.
func TestOpenInMemory(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendMessage(ctx, "sess-1", userMessage("hello")))

	msgs, err := s.Messages(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.Equal(t, chat.RoleUser, msgs[0].Role)
}

// TestOpenRequiresPath verifies that persistent mode requires a path.
func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "path is required")
}

// TestStore_AppendPreservesOrder verifies messages come back in
// insertion order even past single-digit sequence numbers.
func TestStore_AppendPreservesOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	const n = 25
	for i := 0; i < n; i++ {
		require.NoError(t, s.AppendMessage(ctx, "sess-1", userMessage(fmt.Sprintf("turn %02d", i))))
	}

	msgs, err := s.Messages(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, msgs, n)
	for i, msg := range msgs {
		assert.Equal(t, fmt.Sprintf("turn %02d", i), msg.Content)
	}
}

// TestStore_AppendTouchesSessionRecord verifies the session record is
// created and bumped alongside each append.
func TestStore_AppendTouchesSessionRecord(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendMessage(ctx, "sess-1", userMessage("What is zakat?")))
	require.NoError(t, s.AppendMessage(ctx, "sess-1", assistantMessage("Zakat purifies wealth.")))

	rec, err := s.Session(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "sess-1", rec.ID)
	assert.Equal(t, 2, rec.Messages)
	assert.Equal(t, "What is zakat?", rec.Title)
	assert.False(t, rec.UpdatedAt.IsZero())
}

// TestStore_TitleTruncated verifies long first messages are shortened
// for the listing.
func TestStore_TitleTruncated(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	long := strings.Repeat("salah ", 30)
	require.NoError(t, s.AppendMessage(ctx, "sess-1", userMessage(long)))

	rec, err := s.Session(ctx, "sess-1")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(rec.Title, "..."))
	assert.LessOrEqual(t, len(rec.Title), 63)
}

// TestStore_SessionsSortedByRecency verifies listing order.
func TestStore_SessionsSortedByRecency(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	old := SessionRecord{ID: "sess-old", UpdatedAt: time.Now().UTC().Add(-time.Hour)}
	recent := SessionRecord{ID: "sess-recent", UpdatedAt: time.Now().UTC()}
	require.NoError(t, s.SaveSession(ctx, old))
	require.NoError(t, s.SaveSession(ctx, recent))

	records, err := s.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "sess-recent", records[0].ID)
	assert.Equal(t, "sess-old", records[1].ID)
}

// TestStore_SessionNotFound verifies the sentinel for unknown ids.
func TestStore_SessionNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Session(context.Background(), "no-such-session")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

// TestStore_DeleteSession verifies deletion removes the record and its
// messages without touching other sessions.
func TestStore_DeleteSession(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendMessage(ctx, "sess-1", userMessage("one")))
	require.NoError(t, s.AppendMessage(ctx, "sess-2", userMessage("two")))

	require.NoError(t, s.DeleteSession(ctx, "sess-1"))

	msgs, err := s.Messages(ctx, "sess-1")
	require.NoError(t, err)
	assert.Empty(t, msgs)
	_, err = s.Session(ctx, "sess-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	survivors, err := s.Messages(ctx, "sess-2")
	require.NoError(t, err)
	assert.Len(t, survivors, 1)
}

// TestStore_ClosedStoreRejectsOperations verifies the closed sentinel
// and that Close is idempotent.
func TestStore_ClosedStoreRejectsOperations(t *testing.T) {
	s, err := Open(InMemoryConfig())
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	ctx := context.Background()
	assert.ErrorIs(t, s.AppendMessage(ctx, "sess-1", userMessage("late")), ErrStoreClosed)
	_, err = s.Messages(ctx, "sess-1")
	assert.ErrorIs(t, err, ErrStoreClosed)
	_, err = s.Sessions(ctx)
	assert.ErrorIs(t, err, ErrStoreClosed)
}

// TestStore_SequenceSurvivesReopen verifies appends after a restart
// continue the sequence instead of overwriting.
func TestStore_SequenceSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	cfg := DefaultConfig(dir)
	cfg.SyncWrites = false
	cfg.GCInterval = 0

	s, err := Open(cfg)
	require.NoError(t, err)
	require.NoError(t, s.AppendMessage(ctx, "sess-1", userMessage("first")))
	require.NoError(t, s.AppendMessage(ctx, "sess-1", assistantMessage("second")))
	require.NoError(t, s.Close())

	s2, err := Open(cfg)
	require.NoError(t, err)
	defer s2.Close()
	require.NoError(t, s2.AppendMessage(ctx, "sess-1", userMessage("third")))

	msgs, err := s2.Messages(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "first", msgs[0].Content)
	assert.Equal(t, "third", msgs[2].Content)
}

// TestStore_ContextCancelled verifies operations respect cancellation.
func TestStore_ContextCancelled(t *testing.T) {
	s := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.AppendMessage(ctx, "sess-1", userMessage("never"))
	assert.ErrorIs(t, err, context.Canceled)
}
