// Copyright (C) 2026 The Selene Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0> for the full license text.

package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/innacampo/selene-demo/services/selene/datatypes"
)

func labeledEntries(n int, rest, climate, clarity, notes string) []datatypes.PulseEntry {
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	entries := make([]datatypes.PulseEntry, n)
	for i := range entries {
		entries[i] = datatypes.PulseEntry{
			Timestamp: base.AddDate(0, 0, i).Format(time.RFC3339),
			Rest:      rest,
			Climate:   climate,
			Clarity:   clarity,
			Notes:     notes,
		}
	}
	return entries
}

// TestAssessRiskLevel_InsufficientData checks that fewer than 7 entries
// yields the sentinel level with no flags and no rationale.
func TestAssessRiskLevel_InsufficientData(t *testing.T) {
	t.Parallel()
	a := NewAnalyzer()

	risk := a.AssessRiskLevel(labeledEntries(6, "3 AM Awakening", "Heavy", "Brain Fog", ""))

	assert.Equal(t, datatypes.RiskLevelInsufficient, risk.Level)
	assert.Equal(t, 0, risk.Score)
	assert.Empty(t, risk.Flags)
	assert.Empty(t, risk.Rationale)
}

// TestAssessRiskLevel_Low checks a calm week: no flags, score 0.
func TestAssessRiskLevel_Low(t *testing.T) {
	t.Parallel()
	a := NewAnalyzer()

	risk := a.AssessRiskLevel(labeledEntries(7, "Restorative", "Cool", "Focused", "feeling fine"))

	assert.Equal(t, datatypes.RiskLevelLow, risk.Level)
	assert.Equal(t, 0, risk.Score)
	assert.Empty(t, risk.Flags)
	assert.Contains(t, risk.Rationale, "Risk level: LOW (score: 0/10).")
}

// TestAssessRiskLevel_Moderate checks severe sleep plus a distress note:
// 2 + 1 = 3 points, moderate.
func TestAssessRiskLevel_Moderate(t *testing.T) {
	t.Parallel()
	a := NewAnalyzer()

	entries := labeledEntries(7, "3 AM Awakening", "Cool", "Focused", "")
	entries[4].Notes = "The nights are unbearable lately"

	risk := a.AssessRiskLevel(entries)

	assert.Equal(t, datatypes.RiskLevelModerate, risk.Level)
	assert.Equal(t, 3, risk.Score)
	assert.Equal(t, []string{"persistent_poor_sleep", "concerning_user_notes"}, risk.Flags)
}

// TestAssessRiskLevel_High checks a two-dimension severe week: poor sleep
// (+2), hot flashes (+2), and the multi-symptom cluster (+2) reach 6.
func TestAssessRiskLevel_High(t *testing.T) {
	t.Parallel()
	a := NewAnalyzer()

	risk := a.AssessRiskLevel(labeledEntries(7, "3 AM Awakening", "Heavy", "Focused", ""))

	assert.Equal(t, datatypes.RiskLevelHigh, risk.Level)
	assert.Equal(t, 6, risk.Score)
	assert.Equal(t,
		[]string{"persistent_poor_sleep", "severe_hot_flashes", "multiple_severe_symptoms"},
		risk.Flags)
	assert.Contains(t, risk.Rationale, "Risk level: HIGH (score: 6/10).")
	assert.Contains(t, risk.Rationale, "Sleep disruption severity above 7/10 for past week")
	assert.Contains(t, risk.Rationale, "; ")
}

// TestAssessRiskLevel_RapidDeterioration checks the week-over-week delta
// rule: a calm week followed by a severe one adds +3.
func TestAssessRiskLevel_RapidDeterioration(t *testing.T) {
	t.Parallel()
	a := NewAnalyzer()

	entries := labeledEntries(14, "Restorative", "Cool", "Focused", "")
	for i := 7; i < 14; i++ {
		entries[i].Rest = "3 AM Awakening"
	}

	risk := a.AssessRiskLevel(entries)

	// persistent_poor_sleep (+2) and rapid_deterioration (+3).
	assert.Equal(t, 5, risk.Score)
	assert.Equal(t, datatypes.RiskLevelModerate, risk.Level)
	assert.Contains(t, risk.Flags, "rapid_deterioration")
}

// TestAssessRiskLevel_NoteKeywordScoresOnce checks that several alarming
// notes still score a single point.
func TestAssessRiskLevel_NoteKeywordScoresOnce(t *testing.T) {
	t.Parallel()
	a := NewAnalyzer()

	risk := a.AssessRiskLevel(labeledEntries(7, "Restorative", "Cool", "Focused",
		"this is terrible, awful, an emergency"))

	assert.Equal(t, 1, risk.Score)
	assert.Equal(t, []string{"concerning_user_notes"}, risk.Flags)
}

// TestAssessRiskLevel_KeywordCaseInsensitive checks case folding on notes.
func TestAssessRiskLevel_KeywordCaseInsensitive(t *testing.T) {
	t.Parallel()
	a := NewAnalyzer()

	risk := a.AssessRiskLevel(labeledEntries(7, "Restorative", "Cool", "Focused",
		"I CAN'T take this"))

	assert.Contains(t, risk.Flags, "concerning_user_notes")
}

// TestAssessRiskLevel_OnlyLastWeekCounts checks that severe entries older
// than the last 7 days do not raise severity flags.
func TestAssessRiskLevel_OnlyLastWeekCounts(t *testing.T) {
	t.Parallel()
	a := NewAnalyzer()

	entries := labeledEntries(14, "3 AM Awakening", "Cool", "Focused", "")
	for i := 7; i < 14; i++ {
		entries[i].Rest = "Restorative"
	}

	risk := a.AssessRiskLevel(entries)

	assert.NotContains(t, risk.Flags, "persistent_poor_sleep")
	assert.Equal(t, datatypes.RiskLevelLow, risk.Level)
}
