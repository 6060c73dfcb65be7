// Copyright (C) 2026 The Selene Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0> for the full license text.

package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/innacampo/selene-demo/services/selene/datatypes"
)

func newTestSessionStore(t *testing.T) *SessionStore {
	t.Helper()
	store, err := NewSessionStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// TestSessionStore_AppendAndHistory covers ordered round trips and session
// isolation.
func TestSessionStore_AppendAndHistory(t *testing.T) {
	store := newTestSessionStore(t)

	require.NoError(t, store.AppendTurn("s1", datatypes.ChatTurn{Role: "user", Content: "hello"}))
	require.NoError(t, store.AppendTurn("s1", datatypes.ChatTurn{Role: "assistant", Content: "hi"}))
	require.NoError(t, store.AppendTurn("s2", datatypes.ChatTurn{Role: "user", Content: "other"}))

	turns, err := store.History("s1")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "user", turns[0].Role)
	assert.Equal(t, "hello", turns[0].Content)
	assert.Equal(t, "assistant", turns[1].Role)

	other, err := store.History("s2")
	require.NoError(t, err)
	assert.Len(t, other, 1)
}

// TestSessionStore_RecentTurns covers the tail window used by query
// contextualization.
func TestSessionStore_RecentTurns(t *testing.T) {
	store := newTestSessionStore(t)

	for _, content := range []string{"a", "b", "c", "d"} {
		require.NoError(t, store.AppendTurn("s1", datatypes.ChatTurn{Role: "user", Content: content}))
	}

	turns, err := store.RecentTurns("s1", 2)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "c", turns[0].Content)
	assert.Equal(t, "d", turns[1].Content)
}

// TestSessionStore_DeleteSession covers removing one session without
// touching another.
func TestSessionStore_DeleteSession(t *testing.T) {
	store := newTestSessionStore(t)

	require.NoError(t, store.AppendTurn("s1", datatypes.ChatTurn{Role: "user", Content: "x"}))
	require.NoError(t, store.AppendTurn("s2", datatypes.ChatTurn{Role: "user", Content: "y"}))
	require.NoError(t, store.DeleteSession("s1"))

	turns, err := store.History("s1")
	require.NoError(t, err)
	assert.Empty(t, turns)

	kept, err := store.History("s2")
	require.NoError(t, err)
	assert.Len(t, kept, 1)
}

// TestSessionStore_EmptySessionId covers the guard against unkeyed writes.
func TestSessionStore_EmptySessionId(t *testing.T) {
	store := newTestSessionStore(t)
	assert.Error(t, store.AppendTurn("", datatypes.ChatTurn{Role: "user", Content: "x"}))
}
