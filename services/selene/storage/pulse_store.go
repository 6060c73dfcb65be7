// Copyright (C) 2026 The Selene Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0> for the full license text.

// Package storage provides Selene's local persistence: the pulse history
// and user profile as JSON files with atomic writes and rotating backups,
// chat sessions in an embedded badger store, and a filesystem watcher that
// turns external edits into cache invalidations.
package storage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/innacampo/selene-demo/services/selene/datatypes"
)

// MaxBackups is how many timestamped pulse-file backups are retained.
const MaxBackups = 10

// PulseStore persists the pulse history as a single JSON array on disk.
//
// # Description
//
// Writes go through a temp file in the same directory followed by a
// rename, so a crash mid-write never leaves a truncated history. Every
// successful write first snapshots the previous file into backups/. The
// file's mtime doubles as the data-state signal for the context cache, so
// the store never rewrites the file when nothing changed.
//
// # Thread Safety
//
// All methods are safe for concurrent use; a RWMutex serializes writers.
type PulseStore struct {
	mu   sync.RWMutex
	path string
}

// NewPulseStore creates a store at path, creating the parent and backup
// directories as needed.
func NewPulseStore(path string) (*PulseStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(filepath.Join(dir, "backups"), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data directories: %w", err)
	}
	return &PulseStore{path: path}, nil
}

// Path returns the pulse file location.
func (s *PulseStore) Path() string {
	return s.path
}

// ModTime returns the pulse file's last modification time stamp, or the
// zero time when no history exists yet.
func (s *PulseStore) ModTime() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info, err := os.Stat(s.path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

// Load reads the full pulse history in stored order.
func (s *PulseStore) Load() ([]datatypes.PulseEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadLocked()
}

func (s *PulseStore) loadLocked() ([]datatypes.PulseEntry, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return []datatypes.PulseEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read pulse history: %w", err)
	}
	var entries []datatypes.PulseEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("pulse history is corrupted: %w", err)
	}
	return entries, nil
}

// Append validates and appends one entry, rewriting the history file
// atomically.
func (s *PulseStore) Append(entry datatypes.PulseEntry) error {
	if err := entry.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.loadLocked()
	if err != nil {
		return err
	}
	entries = append(entries, entry)
	return s.saveLocked(entries)
}

// Save replaces the whole history. Every entry must validate.
func (s *PulseStore) Save(entries []datatypes.PulseEntry) error {
	for i := range entries {
		if err := entries[i].Validate(); err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(entries)
}

func (s *PulseStore) saveLocked(entries []datatypes.PulseEntry) error {
	s.backupLocked()

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode pulse history: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".pulse-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write pulse history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to flush pulse history: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace pulse history: %w", err)
	}
	return nil
}

// backupLocked snapshots the current file into backups/ and prunes old
// snapshots past MaxBackups. Backup failure is logged, not fatal; losing a
// backup must not block a check-in.
func (s *PulseStore) backupLocked() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return // nothing to back up
	}
	dir := filepath.Join(filepath.Dir(s.path), "backups")
	name := fmt.Sprintf("pulse_%s.json", time.Now().UTC().Format("20060102T150405.000000000"))
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o600); err != nil {
		slog.Warn("Failed to write pulse backup", "error", err)
		return
	}
	s.pruneBackups(dir)
}

func (s *PulseStore) pruneBackups(dir string) {
	matches, err := filepath.Glob(filepath.Join(dir, "pulse_*.json"))
	if err != nil || len(matches) <= MaxBackups {
		return
	}
	sort.Strings(matches)
	for _, stale := range matches[:len(matches)-MaxBackups] {
		if err := os.Remove(stale); err != nil {
			slog.Warn("Failed to prune pulse backup", "file", stale, "error", err)
		}
	}
}

// RestoreLatestBackup replaces the history with the most recent backup.
func (s *PulseStore) RestoreLatestBackup() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Join(filepath.Dir(s.path), "backups")
	matches, err := filepath.Glob(filepath.Join(dir, "pulse_*.json"))
	if err != nil || len(matches) == 0 {
		return fmt.Errorf("no pulse backups available")
	}
	sort.Strings(matches)
	latest := matches[len(matches)-1]

	data, err := os.ReadFile(latest)
	if err != nil {
		return fmt.Errorf("failed to read backup %s: %w", latest, err)
	}
	var entries []datatypes.PulseEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("backup %s is corrupted: %w", latest, err)
	}
	slog.Info("Restoring pulse history from backup", "backup", latest, "entries", len(entries))
	return s.saveLocked(entries)
}

// LoadSince returns entries with a timestamp at or after cutoff, in stored
// order. Entries with unparseable timestamps are skipped.
func (s *PulseStore) LoadSince(cutoff time.Time) ([]datatypes.PulseEntry, error) {
	entries, err := s.Load()
	if err != nil {
		return nil, err
	}
	filtered := make([]datatypes.PulseEntry, 0, len(entries))
	for _, e := range entries {
		t, err := time.Parse(time.RFC3339, e.Timestamp)
		if err != nil {
			continue
		}
		if !t.Before(cutoff) {
			filtered = append(filtered, e)
		}
	}
	return filtered, nil
}

// LoadRecent returns the last n entries.
func (s *PulseStore) LoadRecent(n int) ([]datatypes.PulseEntry, error) {
	entries, err := s.Load()
	if err != nil {
		return nil, err
	}
	if len(entries) > n {
		entries = entries[len(entries)-n:]
	}
	return entries, nil
}
