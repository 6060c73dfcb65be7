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
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/innacampo/selene-demo/services/selene/datatypes"
)

// ProfileStore persists the single local user profile as a JSON file.
// Same atomic-replace discipline as the pulse store.
type ProfileStore struct {
	mu   sync.RWMutex
	path string
}

// NewProfileStore creates a store at path, creating the parent directory
// as needed.
func NewProfileStore(path string) (*ProfileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &ProfileStore{path: path}, nil
}

// Load reads the profile. A missing file returns an empty profile, not an
// error, so first-run flows do not special-case it.
func (s *ProfileStore) Load() (datatypes.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return datatypes.UserProfile{}, nil
	}
	if err != nil {
		return datatypes.UserProfile{}, fmt.Errorf("failed to read profile: %w", err)
	}
	var profile datatypes.UserProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		return datatypes.UserProfile{}, fmt.Errorf("profile is corrupted: %w", err)
	}
	return profile, nil
}

// Save writes the profile, stamping LastUpdated with the current time.
func (s *ProfileStore) Save(profile datatypes.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	profile.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	data, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".profile-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write profile: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to flush profile: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace profile: %w", err)
	}
	return nil
}
