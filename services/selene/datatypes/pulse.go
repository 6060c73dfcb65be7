// Copyright (C) 2026 The Selene Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0> for the full license text.

// Package datatypes provides data structures for the Selene service.
//
// This file contains the pulse entry (daily symptom check-in) types and
// their validation. For chat types see chat.go, for analysis result types
// see insights.go.
package datatypes

import (
	"fmt"
	"time"
)

// =============================================================================
// Symptom Label Sets
// =============================================================================

// ValidRestValues are the accepted labels for the rest (sleep) dimension.
var ValidRestValues = map[string]bool{
	"Restorative":    true,
	"Fragmented":     true,
	"3 AM Awakening": true,
}

// ValidClimateValues are the accepted labels for the climate (vasomotor)
// dimension.
var ValidClimateValues = map[string]bool{
	"Cool":     true,
	"Warm":     true,
	"Flashing": true,
	"Heavy":    true,
}

// ValidClarityValues are the accepted labels for the clarity (cognition)
// dimension.
var ValidClarityValues = map[string]bool{
	"Focused":   true,
	"Neutral":   true,
	"Brain Fog": true,
}

// =============================================================================
// Pulse Entry
// =============================================================================

// PulseEntry is a single daily symptom check-in.
//
// # Description
//
// Each dimension is optional and carries either a label from its valid set
// or nothing. Timestamp is RFC 3339. A valid entry records at least one
// dimension; an entry with all three empty carries no signal and is
// rejected at the storage boundary.
type PulseEntry struct {
	Timestamp string `json:"timestamp"`
	Rest      string `json:"rest,omitempty"`
	Climate   string `json:"climate,omitempty"`
	Clarity   string `json:"clarity,omitempty"`
	Notes     string `json:"notes,omitempty"`
}

// Validate reports the first structural problem with the entry, or nil.
func (p *PulseEntry) Validate() error {
	if p.Rest == "" && p.Climate == "" && p.Clarity == "" {
		return fmt.Errorf("pulse entry must record at least one symptom dimension")
	}
	if p.Rest != "" && !ValidRestValues[p.Rest] {
		return fmt.Errorf("invalid rest value %q", p.Rest)
	}
	if p.Climate != "" && !ValidClimateValues[p.Climate] {
		return fmt.Errorf("invalid climate value %q", p.Climate)
	}
	if p.Clarity != "" && !ValidClarityValues[p.Clarity] {
		return fmt.Errorf("invalid clarity value %q", p.Clarity)
	}
	if p.Timestamp == "" {
		return fmt.Errorf("pulse entry missing timestamp")
	}
	if _, err := time.Parse(time.RFC3339, p.Timestamp); err != nil {
		return fmt.Errorf("invalid timestamp %q: %w", p.Timestamp, err)
	}
	return nil
}

// Time returns the parsed timestamp. Call Validate first; on a malformed
// timestamp this returns the zero time.
func (p *PulseEntry) Time() time.Time {
	t, _ := time.Parse(time.RFC3339, p.Timestamp)
	return t
}

// PulseRequest is the wire form of a pulse check-in submission. Timestamp is
// optional; the handler stamps the current time when it is absent.
type PulseRequest struct {
	Timestamp string `json:"timestamp" binding:"omitempty"`
	Rest      string `json:"rest" binding:"omitempty,max=64"`
	Climate   string `json:"climate" binding:"omitempty,max=64"`
	Clarity   string `json:"clarity" binding:"omitempty,max=64"`
	Notes     string `json:"notes" binding:"omitempty,max=4096"`
}
