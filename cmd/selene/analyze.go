// Copyright (C) 2026 The Selene Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0> for the full license text.

package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/innacampo/selene-demo/services/selene/analysis"
	"github.com/innacampo/selene-demo/services/selene/config"
	"github.com/innacampo/selene-demo/services/selene/report"
	"github.com/innacampo/selene-demo/services/selene/storage"
)

var analyzeJSON bool

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run deterministic analysis over your check-in history",
	Long: `Loads the local pulse history and prints symptom statistics, detected
patterns, and the rule-based risk assessment. Runs entirely offline: no
model is consulted and nothing leaves your machine.`,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "emit the report as JSON")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	settings := config.Load()

	pulses, err := storage.NewPulseStore(settings.PulseFile)
	if err != nil {
		return fmt.Errorf("failed to open pulse store: %w", err)
	}

	// A nil model client yields the deterministic sections only.
	generator := report.NewGenerator(pulses, nil)
	insights, err := generator.Generate(cmd.Context())
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	if analyzeJSON {
		out, err := json.MarshalIndent(insights, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
		cmd.Println(string(out))
		return nil
	}

	cmd.Println("Selene check-in analysis")
	cmd.Println("Generated:", insights.GeneratedAt)
	cmd.Println()
	for _, name := range []string{"rest", "climate", "clarity"} {
		stats, ok := insights.Statistics.Symptoms[name]
		if !ok {
			continue
		}
		cmd.Println(analysis.FormatStatisticsSummary(stats, name))
	}
	cmd.Println(analysis.FormatPatternSummary(insights.Patterns))
	cmd.Printf("Risk: %s (score %d/10)\n", insights.Risk.Level, insights.Risk.Score)
	for _, flag := range insights.Risk.Flags {
		cmd.Println("  -", flag)
	}
	if insights.Risk.Rationale != "" {
		cmd.Println(insights.Risk.Rationale)
	}
	return nil
}
