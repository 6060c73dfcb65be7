// Copyright (C) 2026 The Selene Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0> for the full license text.

package datatypes

// UserProfile is the persisted profile of the single local user.
type UserProfile struct {
	Name        string            `json:"name"`
	Stage       string            `json:"stage"`
	Preferences map[string]string `json:"preferences,omitempty"`
	LastUpdated string            `json:"last_updated"`
}

// Stage describes one menopause stage as presented to the user and to the
// LLM context. Loaded from the stage metadata file at startup.
type Stage struct {
	Key     string `yaml:"key" json:"key"`
	Title   string `yaml:"title" json:"title"`
	Cycle   string `yaml:"cycle" json:"cycle"`
	Science string `yaml:"science" json:"science"`
}
