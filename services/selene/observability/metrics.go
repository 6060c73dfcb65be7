// Copyright (C) 2026 The Selene Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0> for the full license text.

package observability

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// Metrics contains pre-defined metrics for the Selene service.
//
// All metrics use the "selene_" prefix. Safe for concurrent use after
// creation.
type Metrics struct {
	// --- HTTP Metrics ---

	// HTTPRequestsTotal counts total HTTP requests by method, path, and status.
	HTTPRequestsTotal metric.Int64Counter

	// HTTPRequestDuration records HTTP request duration in seconds.
	HTTPRequestDuration metric.Float64Histogram

	// --- Cache Metrics ---

	// CacheHitsTotal counts cache hits by tier.
	CacheHitsTotal metric.Int64Counter

	// CacheMissesTotal counts cache misses by tier.
	CacheMissesTotal metric.Int64Counter

	// CacheInvalidationsTotal counts explicit cache invalidations by tier.
	CacheInvalidationsTotal metric.Int64Counter

	// --- Retrieval Metrics ---

	// RetrievalsTotal counts knowledge-base retrievals by status.
	RetrievalsTotal metric.Int64Counter

	// RetrievalDuration records retrieval duration in seconds.
	RetrievalDuration metric.Float64Histogram

	// --- LLM Metrics ---

	// LLMRequestsTotal counts model calls by operation and status.
	LLMRequestsTotal metric.Int64Counter

	// LLMRequestDuration records model call duration in seconds.
	LLMRequestDuration metric.Float64Histogram

	// LLMStreamTokensTotal counts streamed tokens.
	LLMStreamTokensTotal metric.Int64Counter

	// --- Pulse Metrics ---

	// PulseEntriesTotal counts accepted pulse check-ins.
	PulseEntriesTotal metric.Int64Counter

	// --- Report Metrics ---

	// ReportsTotal counts insights reports by completeness (full, partial).
	ReportsTotal metric.Int64Counter
}

// NewMetrics registers all Selene metrics with the provided meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.HTTPRequestsTotal, err = meter.Int64Counter(
		"selene_http_requests_total",
		metric.WithDescription("Total HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create http_requests_total: %w", err)
	}

	m.HTTPRequestDuration, err = meter.Float64Histogram(
		"selene_http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create http_request_duration: %w", err)
	}

	m.CacheHitsTotal, err = meter.Int64Counter(
		"selene_cache_hits_total",
		metric.WithDescription("Cache hits by tier"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create cache_hits_total: %w", err)
	}

	m.CacheMissesTotal, err = meter.Int64Counter(
		"selene_cache_misses_total",
		metric.WithDescription("Cache misses by tier"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create cache_misses_total: %w", err)
	}

	m.CacheInvalidationsTotal, err = meter.Int64Counter(
		"selene_cache_invalidations_total",
		metric.WithDescription("Explicit cache invalidations by tier"),
		metric.WithUnit("{invalidation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create cache_invalidations_total: %w", err)
	}

	m.RetrievalsTotal, err = meter.Int64Counter(
		"selene_retrievals_total",
		metric.WithDescription("Knowledge-base retrievals by status"),
		metric.WithUnit("{retrieval}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create retrievals_total: %w", err)
	}

	m.RetrievalDuration, err = meter.Float64Histogram(
		"selene_retrieval_duration_seconds",
		metric.WithDescription("Knowledge-base retrieval duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create retrieval_duration: %w", err)
	}

	m.LLMRequestsTotal, err = meter.Int64Counter(
		"selene_llm_requests_total",
		metric.WithDescription("Model calls by operation and status"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create llm_requests_total: %w", err)
	}

	m.LLMRequestDuration, err = meter.Float64Histogram(
		"selene_llm_request_duration_seconds",
		metric.WithDescription("Model call duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create llm_request_duration: %w", err)
	}

	m.LLMStreamTokensTotal, err = meter.Int64Counter(
		"selene_llm_stream_tokens_total",
		metric.WithDescription("Streamed tokens"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create llm_stream_tokens_total: %w", err)
	}

	m.PulseEntriesTotal, err = meter.Int64Counter(
		"selene_pulse_entries_total",
		metric.WithDescription("Accepted pulse check-ins"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create pulse_entries_total: %w", err)
	}

	m.ReportsTotal, err = meter.Int64Counter(
		"selene_reports_total",
		metric.WithDescription("Insights reports by completeness"),
		metric.WithUnit("{report}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create reports_total: %w", err)
	}

	return m, nil
}
