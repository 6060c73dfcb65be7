// Copyright (C) 2026 The Selene Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0> for the full license text.

// Package contextbuilder assembles the personal context block injected
// into every chat prompt: who the user is, what stage they are in, and
// what their recent check-ins look like.
//
// Assembly touches the profile store, the stage metadata, and the pulse
// history, so the result is cached and keyed by a hash of the underlying
// data state. When any single collaborator fails, the builder degrades
// to a partial context instead of failing the chat.
package contextbuilder

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/innacampo/selene-demo/services/selene/analysis"
	"github.com/innacampo/selene-demo/services/selene/cache"
	"github.com/innacampo/selene-demo/services/selene/config"
	"github.com/innacampo/selene-demo/services/selene/datatypes"
	"github.com/innacampo/selene-demo/services/selene/observability"
)

var tracer = otel.Tracer("selene.contextbuilder")

// recentWindow is how far back the pulse summary looks.
const recentWindow = 7 * 24 * time.Hour

// ProfileSource yields the current user profile.
type ProfileSource interface {
	Load() (datatypes.UserProfile, error)
}

// PulseSource yields recent pulse history and its freshness marker.
// ModTime returns the zero time when the pulse file does not exist yet.
type PulseSource interface {
	LoadSince(cutoff time.Time) ([]datatypes.PulseEntry, error)
	ModTime() time.Time
}

// Builder assembles and caches the user context block.
type Builder struct {
	profiles ProfileSource
	pulses   PulseSource
	stages   []datatypes.Stage
	analyzer *analysis.Analyzer
	cache    *cache.TTLCache
	now      func() time.Time
	metrics  *observability.Metrics
}

// Option customizes a Builder.
type Option func(*Builder)

// WithClock substitutes the time source.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

// WithMetrics records cache counters for the context tier. Nil
// disables them.
func WithMetrics(m *observability.Metrics) Option {
	return func(b *Builder) { b.metrics = m }
}

// NewBuilder wires a Builder with its own context cache tier.
func NewBuilder(profiles ProfileSource, pulses PulseSource, stages []datatypes.Stage, opts ...Option) *Builder {
	b := &Builder{
		profiles: profiles,
		pulses:   pulses,
		stages:   stages,
		analyzer: analysis.NewAnalyzer(),
		cache:    cache.New(config.UserContextCacheSize, config.UserContextCacheTTL),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// BuildUserContext returns the assembled context block, served from
// cache when the underlying data has not changed.
//
// # Description
//
// The cache key hashes the profile's last-updated stamp, the stage key,
// and the pulse file's modification time, so any check-in or profile
// edit naturally produces a fresh key and the stale entry ages out.
func (b *Builder) BuildUserContext(ctx context.Context) string {
	_, span := tracer.Start(ctx, "contextbuilder.BuildUserContext")
	defer span.End()

	profile, profileErr := b.profiles.Load()
	key := b.stateKey(profile, profileErr)

	if cached, ok := b.cache.Get(key); ok {
		span.SetAttributes(attribute.Bool("selene.cache.hit", true))
		b.recordCacheLookup(ctx, true)
		return cached.(string)
	}
	span.SetAttributes(attribute.Bool("selene.cache.hit", false))
	b.recordCacheLookup(ctx, false)

	built := b.assemble(profile, profileErr)
	b.cache.Set(key, built)
	return built
}

// Invalidate drops every cached context. Called when the pulse file
// changes on disk out from under us.
func (b *Builder) Invalidate() {
	b.cache.Clear()
}

// Stats reports the context cache tier's counters.
func (b *Builder) Stats() cache.Stats {
	return b.cache.Stats()
}

func (b *Builder) recordCacheLookup(ctx context.Context, hit bool) {
	if b.metrics == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("tier", "user_ctx"))
	if hit {
		b.metrics.CacheHitsTotal.Add(ctx, 1, attrs)
	} else {
		b.metrics.CacheMissesTotal.Add(ctx, 1, attrs)
	}
}

func (b *Builder) stateKey(profile datatypes.UserProfile, profileErr error) string {
	mtime := b.pulses.ModTime().UTC().Format(time.RFC3339Nano)
	lastUpdated := profile.LastUpdated
	if profileErr != nil {
		lastUpdated = "profile-error"
	}
	return cache.Key("user_ctx", lastUpdated, profile.Stage, mtime)
}

func (b *Builder) assemble(profile datatypes.UserProfile, profileErr error) string {
	var sections []string

	if profileErr != nil {
		slog.Warn("Building context without profile", "error", profileErr)
	} else {
		sections = append(sections, b.profileSection(profile))
		if stage, ok := config.StageByKey(b.stages, profile.Stage); ok {
			sections = append(sections, stageSection(stage))
		}
	}

	if pulse := b.pulseSection(); pulse != "" {
		sections = append(sections, pulse)
	}

	return strings.Join(sections, "\n\n")
}

func (b *Builder) profileSection(profile datatypes.UserProfile) string {
	var sb strings.Builder
	sb.WriteString("=== USER PROFILE ===\n")
	if profile.Name != "" {
		fmt.Fprintf(&sb, "Name: %s\n", profile.Name)
	}
	if profile.Stage != "" {
		fmt.Fprintf(&sb, "Stage: %s\n", profile.Stage)
	}
	for k, v := range profile.Preferences {
		fmt.Fprintf(&sb, "Preference %s: %s\n", k, v)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func stageSection(stage datatypes.Stage) string {
	var sb strings.Builder
	sb.WriteString("=== STAGE SCIENCE ===\n")
	fmt.Fprintf(&sb, "%s: %s\n", stage.Title, stage.Cycle)
	sb.WriteString(stage.Science)
	return sb.String()
}

func (b *Builder) pulseSection() string {
	cutoff := b.now().Add(-recentWindow)
	entries, err := b.pulses.LoadSince(cutoff)
	if err != nil {
		slog.Warn("Building context without pulse history", "error", err)
		return ""
	}
	if len(entries) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("=== RECENT CHECK-INS (last 7 days) ===\n")
	fmt.Fprintf(&sb, "Entries: %d\n", len(entries))
	for _, symptom := range []string{"rest", "climate", "clarity"} {
		if line := b.symptomLine(entries, symptom); line != "" {
			sb.WriteString(line)
			sb.WriteString("\n")
		}
	}
	if notes := latestNotes(entries); notes != "" {
		fmt.Fprintf(&sb, "Latest note: %s\n", notes)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (b *Builder) symptomLine(entries []datatypes.PulseEntry, symptom string) string {
	stats := b.analyzer.AnalyzeSymptomStatistics(entries, symptom)
	if stats != nil {
		return fmt.Sprintf("%s: avg severity %.1f/10, trend %s",
			capitalize(symptom), stats.Mean, stats.Trend)
	}
	// Too few points for the full statistics pass. A plain average of
	// whatever scored values exist still helps the model.
	sum, count := 0.0, 0
	for _, e := range entries {
		v := analysis.SeverityFromAny(entryField(e, symptom))
		if score, ok := v.Score(); ok {
			sum += score
			count++
		}
	}
	if count == 0 {
		return ""
	}
	return fmt.Sprintf("%s: avg severity %.1f/10 (%d entries)",
		capitalize(symptom), sum/float64(count), count)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func entryField(e datatypes.PulseEntry, symptom string) any {
	switch symptom {
	case "rest":
		return e.Rest
	case "climate":
		return e.Climate
	case "clarity":
		return e.Clarity
	}
	return nil
}

func latestNotes(entries []datatypes.PulseEntry) string {
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Notes != "" {
			return entries[i].Notes
		}
	}
	return ""
}
