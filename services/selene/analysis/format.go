// Copyright (C) 2026 The Selene Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0> for the full license text.

package analysis

import (
	"fmt"
	"math"
	"strings"

	"github.com/innacampo/selene-demo/services/selene/datatypes"
)

// FormatStatisticsSummary renders one symptom's statistics as markdown for
// LLM prompts and report text.
func FormatStatisticsSummary(stats datatypes.SymptomStatistics, symptomName string) string {
	lines := []string{
		fmt.Sprintf("**%s ANALYSIS:**", strings.ToUpper(symptomName)),
		fmt.Sprintf("- Average: %.2f/10 (Range: %.2f-%.2f)", stats.Mean, stats.MinVal, stats.MaxVal),
		fmt.Sprintf("- Trend: %s (slope: %.4f)", strings.ToUpper(stats.Trend), stats.TrendSlope),
		fmt.Sprintf("- Recent week: %.2f/10 (vs previous: %.2f/10)", stats.RecentAvg, stats.PreviousAvg),
		fmt.Sprintf("- Change: %+.1f%%", stats.PercentChange),
		fmt.Sprintf("- Variability: %.1f (standard deviation)", stats.StdDev),
	}
	return strings.Join(lines, "\n")
}

// FormatPatternSummary renders a pattern analysis as markdown.
func FormatPatternSummary(patterns datatypes.PatternAnalysis) string {
	parts := []string{"**PATTERN ANALYSIS:**"}

	if patterns.HasWeeklyCycle {
		parts = append(parts,
			fmt.Sprintf("- Weekly cycle detected (confidence: %.0f%%)", patterns.WeeklyConfidence*100))
	}
	if patterns.HasMonthlyCycle {
		parts = append(parts,
			fmt.Sprintf("- Monthly cycle detected (confidence: %.0f%%)", patterns.MonthlyConfidence*100))
	}

	if len(patterns.Correlations) > 0 {
		parts = append(parts, "- Symptom correlations:")
		for _, pair := range []string{"rest-climate", "rest-clarity", "climate-clarity"} {
			corr, ok := patterns.Correlations[pair]
			if !ok {
				continue
			}
			strength := "weak"
			if math.Abs(corr) > 0.7 {
				strength = "strong"
			} else if math.Abs(corr) > 0.4 {
				strength = "moderate"
			}
			direction := "negative"
			if corr > 0 {
				direction = "positive"
			}
			parts = append(parts,
				fmt.Sprintf("  - %s: %s %s (%+.2f)", pair, strength, direction, corr))
		}
	}

	parts = append(parts,
		fmt.Sprintf("- Overall trend: %s (strength: %.0f%%)", patterns.TrendDirection, patterns.TrendStrength*100))

	if len(patterns.OutlierDates) > 0 {
		parts = append(parts,
			fmt.Sprintf("- Outlier dates: %s", strings.Join(patterns.OutlierDates, ", ")))
	}
	if len(patterns.ChangePoints) > 0 {
		parts = append(parts,
			fmt.Sprintf("- Significant changes detected on: %s", strings.Join(patterns.ChangePoints, ", ")))
	}

	return strings.Join(parts, "\n")
}
