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
	"time"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/innacampo/selene-demo/services/selene/datatypes"
)

// neutralScore substitutes for unscored days in pattern detection so gaps
// do not shorten or shift the series. Statistics drop such days instead.
const neutralScore = 5.0

// DetectPatterns runs the full pattern-detection pipeline over a pulse
// history.
//
// # Description
//
// Builds per-dimension score series (unscored days become the neutral
// midpoint), then detects weekly and monthly cycles in the rest series via
// autocorrelation, pairwise Pearson correlations between dimensions, the
// overall rest trend, IQR outlier dates, and t-test change points. With
// fewer than 7 entries the result is empty with trend "unknown".
//
// # Inputs
//
//   - entries: Pulse history in chronological order.
//
// # Outputs
//
//   - datatypes.PatternAnalysis: Never an error; degraded sub-results are
//     simply absent.
func (a *Analyzer) DetectPatterns(entries []datatypes.PulseEntry) datatypes.PatternAnalysis {
	rest := mappedOrNeutral(entries, "rest")
	climate := mappedOrNeutral(entries, "climate")
	clarity := mappedOrNeutral(entries, "clarity")

	if len(entries) < a.minDataPoints {
		slog.Debug("Insufficient data for pattern detection", "entries", len(entries))
		return emptyPatternAnalysis()
	}

	hasWeekly, weeklyConf := a.detectCycle(rest, 7)
	hasMonthly, monthlyConf := a.detectCycle(rest, 28)
	correlations := a.calculateCorrelations(rest, climate, clarity)
	trendDir, trendStrength := a.analyzeTrend(rest)
	outliers := a.detectOutliers(entries, rest)
	changePoints := a.detectChangePoints(entries, rest)

	return datatypes.PatternAnalysis{
		HasWeeklyCycle:    hasWeekly,
		WeeklyConfidence:  weeklyConf,
		HasMonthlyCycle:   hasMonthly,
		MonthlyConfidence: monthlyConf,
		Correlations:      correlations,
		TrendDirection:    trendDir,
		TrendStrength:     trendStrength,
		OutlierDates:      outliers,
		ChangePoints:      changePoints,
	}
}

func mappedOrNeutral(entries []datatypes.PulseEntry, key string) []float64 {
	values := make([]float64, len(entries))
	for i, e := range entries {
		values[i] = symptomValue(e, key).ScoreOrDefault(neutralScore)
	}
	return values
}

func emptyPatternAnalysis() datatypes.PatternAnalysis {
	return datatypes.PatternAnalysis{
		Correlations:   map[string]float64{},
		TrendDirection: datatypes.TrendUnknown,
		OutlierDates:   []string{},
		ChangePoints:   []string{},
	}
}

// =============================================================================
// Cycle Detection
// =============================================================================

// detectCycle tests for a cyclical pattern at the given period using
// autocorrelation. The series is mean-centered and the non-negative-lag
// autocorrelation is normalized by its zero-lag value; the absolute value
// at the period lag is the cycle strength, significant above 0.3.
//
// Requires at least two full periods of data. A near-constant series has a
// zero-lag value near zero and reports no cycle.
func (a *Analyzer) detectCycle(values []float64, period int) (bool, float64) {
	if len(values) < period*2 {
		return false, 0.0
	}

	mean := stat.Mean(values, nil)
	centered := make([]float64, len(values))
	for i, v := range values {
		centered[i] = v - mean
	}

	var baseline float64
	for _, c := range centered {
		baseline += c * c
	}
	if math.Abs(baseline) < 1e-8 {
		return false, 0.0
	}

	if len(centered) <= period {
		return false, 0.0
	}
	var acf float64
	for i := 0; i+period < len(centered); i++ {
		acf += centered[i] * centered[i+period]
	}

	strength := math.Abs(acf / baseline)
	return strength > 0.3, round(strength, 3)
}

// =============================================================================
// Correlations and Trend
// =============================================================================

// calculateCorrelations computes pairwise Pearson correlations between the
// three dimensions. A zero-variance series makes the coefficient undefined
// and is reported as 0.0.
func (a *Analyzer) calculateCorrelations(rest, climate, clarity []float64) map[string]float64 {
	correlations := map[string]float64{}
	if len(rest) <= 2 {
		return correlations
	}
	correlations["rest-climate"] = round(safeCorrelation(rest, climate), 3)
	correlations["rest-clarity"] = round(safeCorrelation(rest, clarity), 3)
	correlations["climate-clarity"] = round(safeCorrelation(climate, clarity), 3)
	return correlations
}

func safeCorrelation(a, b []float64) float64 {
	if stat.PopStdDev(a, nil) == 0 || stat.PopStdDev(b, nil) == 0 {
		return 0.0
	}
	return stat.Correlation(a, b, nil)
}

// analyzeTrend classifies the overall direction of the series and measures
// strength as the regression R squared.
func (a *Analyzer) analyzeTrend(values []float64) (string, float64) {
	if len(values) < a.minDataPoints {
		return datatypes.TrendUnknown, 0.0
	}

	slope := regressionSlope(values)
	direction := datatypes.TrendStable
	if math.Abs(slope) >= 0.05 {
		if slope > 0 {
			direction = datatypes.TrendWorsening
		} else {
			direction = datatypes.TrendImproving
		}
	}

	// A flat series has an undefined correlation; treat it as no trend.
	strength := 0.0
	if stat.PopStdDev(values, nil) != 0 {
		x := make([]float64, len(values))
		for i := range x {
			x[i] = float64(i)
		}
		r := stat.Correlation(x, values, nil)
		strength = r * r
	}
	return direction, round(strength, 3)
}

// =============================================================================
// Outliers and Change Points
// =============================================================================

// detectOutliers flags days whose score falls outside the 1.5 IQR fences,
// returning at most 5 dates.
func (a *Analyzer) detectOutliers(entries []datatypes.PulseEntry, values []float64) []string {
	if len(values) < a.minDataPoints {
		return []string{}
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	q1 := percentile(sorted, 25)
	q3 := percentile(sorted, 75)
	iqr := q3 - q1
	lower := q1 - 1.5*iqr
	upper := q3 + 1.5*iqr

	outliers := []string{}
	for i, v := range values {
		if v < lower || v > upper {
			if date, ok := entryDate(entries, i); ok {
				outliers = append(outliers, date)
			}
		}
	}
	if len(outliers) > 5 {
		outliers = outliers[:5]
	}
	return outliers
}

// detectChangePoints finds days where the mean of the preceding week
// differs significantly from the following week, using a two-sample t-test
// with pooled variance at p < 0.05. Returns at most 3 dates and requires
// at least two weeks of data.
func (a *Analyzer) detectChangePoints(entries []datatypes.PulseEntry, values []float64) []string {
	const window = 7
	if len(values) < 2*window {
		return []string{}
	}

	tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(2*window - 2)}
	changePoints := []string{}
	for i := window; i < len(values)-window; i++ {
		t := twoSampleT(values[i-window:i], values[i:i+window])
		if math.IsNaN(t) {
			continue
		}
		p := 2 * tDist.CDF(-math.Abs(t))
		if p < 0.05 {
			if date, ok := entryDate(entries, i); ok {
				changePoints = append(changePoints, date)
			}
		}
	}
	if len(changePoints) > 3 {
		changePoints = changePoints[:3]
	}
	return changePoints
}

// twoSampleT computes the equal-variance two-sample t statistic. Zero
// pooled variance gives NaN for equal means and an infinite statistic
// otherwise, so a hard level shift between two flat windows still counts
// as significant.
func twoSampleT(a, b []float64) float64 {
	na := float64(len(a))
	nb := float64(len(b))
	meanA, varA := stat.MeanVariance(a, nil)
	meanB, varB := stat.MeanVariance(b, nil)
	pooled := ((na-1)*varA + (nb-1)*varB) / (na + nb - 2)
	denom := math.Sqrt(pooled * (1/na + 1/nb))
	if denom == 0 {
		if meanA == meanB {
			return math.NaN()
		}
		return math.Copysign(math.Inf(1), meanA-meanB)
	}
	return (meanA - meanB) / denom
}

func entryDate(entries []datatypes.PulseEntry, i int) (string, bool) {
	if i < 0 || i >= len(entries) {
		return "", false
	}
	t, err := time.Parse(time.RFC3339, entries[i].Timestamp)
	if err != nil {
		return "", false
	}
	return t.Format("2006-01-02"), true
}
