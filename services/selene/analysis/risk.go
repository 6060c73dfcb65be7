// Copyright (C) 2026 The Selene Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0> for the full license text.

package analysis

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/innacampo/selene-demo/services/selene/datatypes"
)

// concerningKeywords trigger the distress flag when found in recent notes.
// Matching is case-insensitive substring; the first matching entry scores
// and the scan stops.
var concerningKeywords = []string{
	"unbearable",
	"emergency",
	"extreme",
	"can't",
	"terrible",
	"awful",
}

var riskRationale = map[string]string{
	"persistent_poor_sleep":    "Sleep disruption severity above 7/10 for past week",
	"severe_hot_flashes":       "Hot flash severity above 7/10 average",
	"severe_brain_fog":         "Brain fog severity above 7/10 average",
	"rapid_deterioration":      "Symptom severity increased by >2 points in past week",
	"multiple_severe_symptoms": "Two or more severe symptoms occurring simultaneously",
	"concerning_user_notes":    "User notes indicate extreme distress",
}

// AssessRiskLevel applies the urgency scoring rules to the last one to two
// weeks of data.
//
// # Description
//
// Rules, evaluated in order over the last 7 entries:
//
//   - persistent_poor_sleep (+2): mean rest severity above 7.
//   - severe_hot_flashes (+2): mean climate severity above 7.
//   - severe_brain_fog (+1): mean clarity severity above 7.
//   - rapid_deterioration (+3): rest severity rose by more than 2 points
//     against the week before (needs at least 14 entries).
//   - multiple_severe_symptoms (+2): two or more dimensions severe at once.
//   - concerning_user_notes (+1): distress keyword in any recent note.
//
// A score of 6 or more is high risk, 3 or more moderate, otherwise low.
// Fewer than 7 entries yields level "insufficient_data" with no rationale.
// This is a guardrail layer; it flags patterns for attention and is not a
// diagnosis.
func (a *Analyzer) AssessRiskLevel(entries []datatypes.PulseEntry) datatypes.RiskAssessment {
	if len(entries) < 7 {
		return datatypes.RiskAssessment{
			Level: datatypes.RiskLevelInsufficient,
			Flags: []string{},
		}
	}

	recent := entries[len(entries)-7:]
	flags := []string{}
	score := 0

	restValues := scoredValues(recent, "rest")
	climateValues := scoredValues(recent, "climate")
	clarityValues := scoredValues(recent, "clarity")

	restSevere := len(restValues) > 0 && stat.Mean(restValues, nil) > 7
	climateSevere := len(climateValues) > 0 && stat.Mean(climateValues, nil) > 7
	claritySevere := len(clarityValues) > 0 && stat.Mean(clarityValues, nil) > 7

	if restSevere {
		flags = append(flags, "persistent_poor_sleep")
		score += 2
	}
	if climateSevere {
		flags = append(flags, "severe_hot_flashes")
		score += 2
	}
	if claritySevere {
		flags = append(flags, "severe_brain_fog")
		score += 1
	}

	if len(entries) >= 14 {
		prevWeek := entries[len(entries)-14 : len(entries)-7]
		prevRestValues := scoredValues(prevWeek, "rest")
		prevRest := 0.0
		if len(prevRestValues) > 0 {
			prevRest = stat.Mean(prevRestValues, nil)
		}
		recentRest := 0.0
		if len(restValues) > 0 {
			recentRest = stat.Mean(restValues, nil)
		}
		if recentRest-prevRest > 2 {
			flags = append(flags, "rapid_deterioration")
			score += 3
		}
	}

	severeCount := 0
	for _, severe := range []bool{restSevere, climateSevere, claritySevere} {
		if severe {
			severeCount++
		}
	}
	if severeCount >= 2 {
		flags = append(flags, "multiple_severe_symptoms")
		score += 2
	}

	for _, e := range recent {
		note := strings.ToLower(e.Notes)
		matched := false
		for _, keyword := range concerningKeywords {
			if strings.Contains(note, keyword) {
				matched = true
				break
			}
		}
		if matched {
			flags = append(flags, "concerning_user_notes")
			score += 1
			break
		}
	}

	level := datatypes.RiskLevelLow
	switch {
	case score >= 6:
		level = datatypes.RiskLevelHigh
	case score >= 3:
		level = datatypes.RiskLevelModerate
	}

	return datatypes.RiskAssessment{
		Level:     level,
		Score:     score,
		Flags:     flags,
		Rationale: generateRiskRationale(level, flags, score),
	}
}

func generateRiskRationale(level string, flags []string, score int) string {
	rationales := make([]string, len(flags))
	for i, flag := range flags {
		if r, ok := riskRationale[flag]; ok {
			rationales[i] = r
		} else {
			rationales[i] = flag
		}
	}
	return fmt.Sprintf("Risk level: %s (score: %d/10). ", strings.ToUpper(level), score) +
		strings.Join(rationales, "; ")
}
