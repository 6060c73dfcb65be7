// Copyright (C) 2026 The Selene Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0> for the full license text.

// Package report assembles the insights report: deterministic
// statistics, pattern, and risk sections computed locally, plus an
// optional LLM narrative stitched on top. The deterministic core never
// depends on the model; a narrative failure degrades to a partial
// report instead of an error.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/innacampo/selene-demo/services/llm"
	"github.com/innacampo/selene-demo/services/selene/analysis"
	"github.com/innacampo/selene-demo/services/selene/datatypes"
)

var tracer = otel.Tracer("selene.report")

const (
	// maxNarrativeRetries is the number of retry attempts after the
	// first narrative call fails.
	maxNarrativeRetries = 3

	// initialRetryDelay is the delay before the first retry. Doubles
	// each attempt.
	initialRetryDelay = 1 * time.Second

	narrativeTemperature = 0.4
	narrativeMaxTokens   = 512
)

const narrativePrompt = `You are Selene, a supportive menopause health assistant.
Below are deterministic findings computed from the user's symptom check-ins.
Write a short, warm narrative summary (2-3 paragraphs) of what the data shows.
Do not invent numbers; only restate the findings below. Do not give medical advice.

%s`

// PulseSource yields the full pulse history for analysis.
type PulseSource interface {
	Load() ([]datatypes.PulseEntry, error)
}

// Generator builds insights reports.
type Generator struct {
	pulses   PulseSource
	analyzer *analysis.Analyzer
	llm      llm.LLMClient
	now      func() time.Time
	sleep    func(context.Context, time.Duration) error
}

// Option customizes a Generator.
type Option func(*Generator)

// WithClock substitutes the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// WithSleeper substitutes the retry delay, so tests do not wait out
// real backoff.
func WithSleeper(sleep func(context.Context, time.Duration) error) Option {
	return func(g *Generator) { g.sleep = sleep }
}

// NewGenerator wires a report generator. llmClient may be nil, in which
// case reports carry no narrative.
func NewGenerator(pulses PulseSource, llmClient llm.LLMClient, opts ...Option) *Generator {
	g := &Generator{
		pulses:   pulses,
		analyzer: analysis.NewAnalyzer(),
		llm:      llmClient,
		now:      time.Now,
		sleep:    sleepCtx,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// Generate assembles the full report from the stored pulse history.
//
// # Description
//
// The three deterministic sections compute concurrently; each is pure
// CPU over the same immutable slice. The narrative is attempted last,
// with retries, and its failure only costs the narrative.
func (g *Generator) Generate(ctx context.Context) (datatypes.InsightsReport, error) {
	ctx, span := tracer.Start(ctx, "report.Generate")
	defer span.End()

	entries, err := g.pulses.Load()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return datatypes.InsightsReport{}, fmt.Errorf("loading pulse history: %w", err)
	}
	span.SetAttributes(attribute.Int("selene.pulse.entries", len(entries)))

	report := datatypes.InsightsReport{
		GeneratedAt: g.now().UTC().Format(time.RFC3339),
	}

	eg, _ := errgroup.WithContext(ctx)
	eg.Go(func() error {
		report.Statistics = g.analyzer.AnalyzeAllStatistics(entries)
		return nil
	})
	eg.Go(func() error {
		report.Patterns = g.analyzer.DetectPatterns(entries)
		return nil
	})
	eg.Go(func() error {
		report.Risk = g.analyzer.AssessRiskLevel(entries)
		return nil
	})
	if err := eg.Wait(); err != nil {
		return datatypes.InsightsReport{}, err
	}

	narrative, err := g.generateNarrative(ctx, report)
	if err != nil {
		slog.Warn("Narrative generation failed, returning partial report", "error", err)
		span.RecordError(err)
		return report, nil
	}
	report.Narrative = narrative
	return report, nil
}

// generateNarrative calls the model with retries and exponential
// backoff. Returns an error only after every attempt fails.
func (g *Generator) generateNarrative(ctx context.Context, report datatypes.InsightsReport) (string, error) {
	if g.llm == nil {
		return "", fmt.Errorf("no llm client configured")
	}

	ctx, span := tracer.Start(ctx, "report.generateNarrative")
	defer span.End()

	prompt := fmt.Sprintf(narrativePrompt, g.findingsText(report))
	temp := float32(narrativeTemperature)
	maxTokens := narrativeMaxTokens
	params := llm.GenerationParams{Temperature: &temp, MaxTokens: &maxTokens}

	var lastErr error
	retryDelay := initialRetryDelay
	for attempt := 0; attempt <= maxNarrativeRetries; attempt++ {
		if attempt > 0 {
			slog.Info("Retrying narrative generation",
				"attempt", attempt, "delay", retryDelay, "lastError", lastErr)
			if err := g.sleep(ctx, retryDelay); err != nil {
				return "", err
			}
			retryDelay *= 2
		}

		out, err := g.llm.Generate(ctx, prompt, params)
		if err == nil {
			span.SetAttributes(attribute.Int("selene.narrative.attempts", attempt+1))
			return strings.TrimSpace(out), nil
		}
		lastErr = err
		if !llm.IsRetryable(err) {
			return "", err
		}
	}
	return "", fmt.Errorf("narrative failed after %d attempts: %w", maxNarrativeRetries+1, lastErr)
}

// findingsText renders the deterministic sections for the prompt.
func (g *Generator) findingsText(report datatypes.InsightsReport) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Data points: %d\n\n", report.Statistics.DataPoints)
	for _, symptom := range []string{"rest", "climate", "clarity"} {
		if stats, ok := report.Statistics.Symptoms[symptom]; ok {
			sb.WriteString(analysis.FormatStatisticsSummary(stats, symptom))
			sb.WriteString("\n")
		}
	}

	sb.WriteString(analysis.FormatPatternSummary(report.Patterns))
	sb.WriteString("\n")

	fmt.Fprintf(&sb, "Risk: %s (score %d/10)\n", report.Risk.Level, report.Risk.Score)
	if report.Risk.Rationale != "" {
		sb.WriteString(report.Risk.Rationale)
		sb.WriteString("\n")
	}
	return sb.String()
}
