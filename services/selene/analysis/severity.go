// Copyright (C) 2026 The Selene Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0> for the full license text.

// Package analysis implements Selene's deterministic inference engine:
// severity mapping, time-series statistics, pattern detection, and
// rule-based risk scoring. Everything here is pure computation so results
// are reproducible and free of LLM involvement.
package analysis

import (
	"strconv"

	"github.com/innacampo/selene-demo/services/selene/datatypes"
)

// =============================================================================
// Severity Scale
// =============================================================================

// SeverityMap maps qualitative symptom labels onto a 0-10 severity scale,
// where 0 is no symptoms and 10 is severe.
var SeverityMap = map[string]float64{
	// Rest (sleep quality)
	"Restorative":    0,
	"Fragmented":     5,
	"3 AM Awakening": 9,
	// Climate (vasomotor)
	"Cool":     0,
	"Warm":     4,
	"Flashing": 7,
	"Heavy":    10,
	// Clarity (cognition)
	"Focused":   0,
	"Neutral":   4,
	"Brain Fog": 9,
}

// =============================================================================
// SeverityValue
// =============================================================================

type severityKind int

const (
	severityNull severityKind = iota
	severityNumber
	severityLabel
)

// SeverityValue is a symptom observation before scoring: a number, a label,
// or nothing. It replaces loosely typed "whatever the caller had" inputs so
// the mapping rules live in exactly one place.
type SeverityValue struct {
	kind   severityKind
	number float64
	label  string
}

// SeverityNull returns the absent observation.
func SeverityNull() SeverityValue {
	return SeverityValue{kind: severityNull}
}

// SeverityNumber wraps an already numeric observation.
func SeverityNumber(v float64) SeverityValue {
	return SeverityValue{kind: severityNumber, number: v}
}

// SeverityLabel wraps a qualitative label. An empty string is the absent
// observation.
func SeverityLabel(s string) SeverityValue {
	if s == "" {
		return SeverityNull()
	}
	return SeverityValue{kind: severityLabel, label: s}
}

// SeverityFromAny classifies a dynamically typed observation, as arrives
// from decoded JSON. Unsupported types map to the absent observation; this
// function never panics.
func SeverityFromAny(v any) SeverityValue {
	switch t := v.(type) {
	case nil:
		return SeverityNull()
	case float64:
		return SeverityNumber(t)
	case float32:
		return SeverityNumber(float64(t))
	case int:
		return SeverityNumber(float64(t))
	case int64:
		return SeverityNumber(float64(t))
	case string:
		return SeverityLabel(t)
	default:
		return SeverityNull()
	}
}

// Score resolves the observation to a numeric severity.
//
// Numbers pass through unchanged. Labels resolve through SeverityMap, then
// as a numeric string. Anything unrecognized, and the absent observation,
// yields ok=false.
func (v SeverityValue) Score() (float64, bool) {
	switch v.kind {
	case severityNumber:
		return v.number, true
	case severityLabel:
		if score, ok := SeverityMap[v.label]; ok {
			return score, true
		}
		if num, err := strconv.ParseFloat(v.label, 64); err == nil {
			return num, true
		}
		return 0, false
	default:
		return 0, false
	}
}

// ScoreOrDefault resolves the observation, substituting def when it has no
// score. Pattern detection uses this with the scale midpoint so unscored
// days do not shorten the series.
func (v SeverityValue) ScoreOrDefault(def float64) float64 {
	if score, ok := v.Score(); ok {
		return score
	}
	return def
}

// symptomValue extracts the named dimension from a pulse entry.
func symptomValue(e datatypes.PulseEntry, key string) SeverityValue {
	switch key {
	case "rest":
		return SeverityLabel(e.Rest)
	case "climate":
		return SeverityLabel(e.Climate)
	case "clarity":
		return SeverityLabel(e.Clarity)
	default:
		return SeverityNull()
	}
}

// scoredValues maps the named dimension across entries, dropping entries
// with no resolvable score.
func scoredValues(entries []datatypes.PulseEntry, key string) []float64 {
	values := make([]float64, 0, len(entries))
	for _, e := range entries {
		if score, ok := symptomValue(e, key).Score(); ok {
			values = append(values, score)
		}
	}
	return values
}
