// Copyright (C) 2026 The Selene Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0> for the full license text.

package storage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/innacampo/selene-demo/services/selene/datatypes"
)

// SessionStore keeps chat turns in an embedded badger database so
// conversations survive restarts without an external service.
//
// Keys are "session/<id>/<nanosecond timestamp>", which makes a prefix
// scan return a session's turns in order.
type SessionStore struct {
	db *badger.DB
}

// NewSessionStore opens (or creates) the badger database at dir.
func NewSessionStore(dir string) (*SessionStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}
	return &SessionStore{db: db}, nil
}

// Close releases the database. Must be called on shutdown; badger holds a
// directory lock.
func (s *SessionStore) Close() error {
	return s.db.Close()
}

// AppendTurn records one turn at the end of a session.
func (s *SessionStore) AppendTurn(sessionId string, turn datatypes.ChatTurn) error {
	if sessionId == "" {
		return fmt.Errorf("session id is required")
	}
	value, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("failed to encode chat turn: %w", err)
	}
	key := fmt.Sprintf("session/%s/%020d", sessionId, time.Now().UnixNano())
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("failed to store chat turn: %w", err)
	}
	return nil
}

// History returns every stored turn of a session in order.
func (s *SessionStore) History(sessionId string) ([]datatypes.ChatTurn, error) {
	prefix := []byte(fmt.Sprintf("session/%s/", sessionId))
	var turns []datatypes.ChatTurn

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var turn datatypes.ChatTurn
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &turn)
			})
			if err != nil {
				slog.Warn("Skipping unreadable chat turn", "error", err)
				continue
			}
			turns = append(turns, turn)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read session history: %w", err)
	}
	return turns, nil
}

// RecentTurns returns the last n turns of a session.
func (s *SessionStore) RecentTurns(sessionId string, n int) ([]datatypes.ChatTurn, error) {
	turns, err := s.History(sessionId)
	if err != nil {
		return nil, err
	}
	if len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	return turns, nil
}

// DeleteSession removes every turn of a session.
func (s *SessionStore) DeleteSession(sessionId string) error {
	prefix := []byte(fmt.Sprintf("session/%s/", sessionId))
	keys := [][]byte{}

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to scan session: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return fmt.Errorf("failed to delete turn: %w", err)
			}
		}
		return nil
	})
}
