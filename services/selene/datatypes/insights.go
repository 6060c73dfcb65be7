// Copyright (C) 2026 The Selene Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0> for the full license text.

package datatypes

// Risk levels. Insufficient data is reported as its own level rather than
// an error so callers can render it directly.
const (
	RiskLevelLow          = "low"
	RiskLevelModerate     = "moderate"
	RiskLevelHigh         = "high"
	RiskLevelInsufficient = "insufficient_data"
)

// Trend directions. Higher severity scores are worse, so a rising series
// is "worsening".
const (
	TrendImproving = "improving"
	TrendStable    = "stable"
	TrendWorsening = "worsening"
	TrendUnknown   = "unknown"
)

// SymptomStatistics is the descriptive-statistics summary for one symptom
// dimension over an analysis window. All values are rounded to 2 decimal
// places except TrendSlope, which keeps 4.
type SymptomStatistics struct {
	Mean          float64 `json:"mean"`
	Median        float64 `json:"median"`
	StdDev        float64 `json:"std_dev"`
	MinVal        float64 `json:"min_val"`
	MaxVal        float64 `json:"max_val"`
	Trend         string  `json:"trend"`
	TrendSlope    float64 `json:"trend_slope"`
	RecentAvg     float64 `json:"recent_avg"`
	PreviousAvg   float64 `json:"previous_avg"`
	PercentChange float64 `json:"percent_change"`
}

// StatisticsReport aggregates per-symptom statistics for the API surface.
// Symptoms omits dimensions with too few scored values.
type StatisticsReport struct {
	DataPoints int                          `json:"data_points"`
	Symptoms   map[string]SymptomStatistics `json:"statistics,omitempty"`
}

// PatternAnalysis is the pattern-detection result: cyclical structure,
// cross-symptom correlations, overall trend, outlier dates, and change
// points. Dates are formatted YYYY-MM-DD.
type PatternAnalysis struct {
	HasWeeklyCycle    bool               `json:"has_weekly_cycle"`
	WeeklyConfidence  float64            `json:"weekly_confidence"`
	HasMonthlyCycle   bool               `json:"has_monthly_cycle"`
	MonthlyConfidence float64            `json:"monthly_confidence"`
	Correlations      map[string]float64 `json:"correlations"`
	TrendDirection    string             `json:"trend_direction"`
	TrendStrength     float64            `json:"trend_strength"`
	OutlierDates      []string           `json:"outlier_dates"`
	ChangePoints      []string           `json:"change_points"`
}

// RiskAssessment is the rule-based risk scoring result. Flags lists the
// rules that fired in evaluation order. Rationale is empty when there was
// not enough history to score.
type RiskAssessment struct {
	Level     string   `json:"level"`
	Score     int      `json:"score"`
	Flags     []string `json:"flags"`
	Rationale string   `json:"rationale,omitempty"`
}

// InsightsReport is the assembled report: deterministic sections plus an
// optional LLM narrative. Narrative is empty when generation failed and
// the report degraded to its deterministic core.
type InsightsReport struct {
	GeneratedAt string           `json:"generated_at"`
	Statistics  StatisticsReport `json:"statistics"`
	Patterns    PatternAnalysis  `json:"patterns"`
	Risk        RiskAssessment   `json:"risk"`
	Narrative   string           `json:"narrative,omitempty"`
}
