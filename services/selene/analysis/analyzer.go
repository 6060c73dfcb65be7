// Copyright (C) 2026 The Selene Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0> for the full license text.

package analysis

import (
	"log/slog"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/innacampo/selene-demo/services/selene/datatypes"
)

// =============================================================================
// Analyzer
// =============================================================================

// Analyzer is the core statistical engine for Selene.
//
// # Description
//
// Implements the math layer of the hybrid system: descriptive statistics,
// trend detection, cycle identification, correlation, outlier and
// change-point detection, and rule-based risk scoring. Results feed both
// the insights report and the LLM prompt context, keeping numeric claims
// grounded in actual computation rather than model output.
//
// # Thread Safety
//
// Analyzer holds no mutable state. A single instance may be shared by any
// number of goroutines.
type Analyzer struct {
	minDataPoints int
}

// NewAnalyzer returns an Analyzer with the standard 7-entry minimum for
// any analysis to run.
func NewAnalyzer() *Analyzer {
	return &Analyzer{minDataPoints: 7}
}

// AnalyzeSymptomStatistics calculates the descriptive statistics for one
// symptom dimension.
//
// # Description
//
// Entries with no resolvable score for the dimension are dropped before
// analysis. The scored series is split at its midpoint into previous and
// recent halves for the period comparison; percent change is zero whenever
// the previous average is not positive. The trend classification uses the
// ordinary least squares slope with a +/-0.05 stable band; higher scores
// are worse, so a positive slope means worsening.
//
// # Inputs
//
//   - entries: Pulse history in chronological order.
//   - symptomKey: "rest", "climate", or "clarity".
//
// # Outputs
//
//   - *datatypes.SymptomStatistics: nil when fewer than 7 scored values
//     remain after mapping.
func (a *Analyzer) AnalyzeSymptomStatistics(
	entries []datatypes.PulseEntry,
	symptomKey string,
) *datatypes.SymptomStatistics {
	values := scoredValues(entries, symptomKey)
	if len(values) < a.minDataPoints {
		slog.Debug("Insufficient data for symptom statistics",
			"symptom", symptomKey, "scored", len(values), "required", a.minDataPoints)
		return nil
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	mean := stat.Mean(values, nil)
	median := percentile(sorted, 50)
	stdDev := stat.PopStdDev(values, nil)
	minVal := sorted[0]
	maxVal := sorted[len(sorted)-1]

	mid := len(values) / 2
	previousAvg := stat.Mean(values[:mid], nil)
	recentAvg := stat.Mean(values[mid:], nil)
	percentChange := 0.0
	if previousAvg > 0 {
		percentChange = (recentAvg - previousAvg) / previousAvg * 100
	}

	slope := regressionSlope(values)
	trend := datatypes.TrendStable
	switch {
	case slope > 0.05:
		trend = datatypes.TrendWorsening
	case slope < -0.05:
		trend = datatypes.TrendImproving
	}

	return &datatypes.SymptomStatistics{
		Mean:          round(mean, 2),
		Median:        round(median, 2),
		StdDev:        round(stdDev, 2),
		MinVal:        round(minVal, 2),
		MaxVal:        round(maxVal, 2),
		Trend:         trend,
		TrendSlope:    round(slope, 4),
		RecentAvg:     round(recentAvg, 2),
		PreviousAvg:   round(previousAvg, 2),
		PercentChange: round(percentChange, 2),
	}
}

// AnalyzeAllStatistics runs AnalyzeSymptomStatistics over every dimension
// and collects the non-nil results.
func (a *Analyzer) AnalyzeAllStatistics(entries []datatypes.PulseEntry) datatypes.StatisticsReport {
	report := datatypes.StatisticsReport{
		DataPoints: len(entries),
		Symptoms:   map[string]datatypes.SymptomStatistics{},
	}
	for _, key := range []string{"rest", "climate", "clarity"} {
		if stats := a.AnalyzeSymptomStatistics(entries, key); stats != nil {
			report.Symptoms[key] = *stats
		}
	}
	return report
}

// =============================================================================
// Numeric Helpers
// =============================================================================

// round rounds half away from zero to the given number of decimal places.
func round(v float64, decimals int) float64 {
	scale := math.Pow(10, float64(decimals))
	return math.Round(v*scale) / scale
}

// percentile computes the p-th percentile of a sorted series with linear
// interpolation between adjacent order statistics. gonum's Quantile kinds
// do not interpolate the same way, and the outlier fences depend on this
// exact definition, so it is computed directly.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// regressionSlope fits y against its index positions and returns the OLS
// slope.
func regressionSlope(values []float64) float64 {
	x := make([]float64, len(values))
	for i := range x {
		x[i] = float64(i)
	}
	_, slope := stat.LinearRegression(x, values, nil, false)
	return slope
}
