// Copyright (C) 2026 The Selene Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0> for the full license text.

// Package rag orchestrates retrieval for chat: rewriting follow-up
// questions into standalone queries, searching the knowledge base, and
// recalling relevant turns from earlier in the session. Retrieval
// results are cached per tier; concurrent misses for the same key are
// collapsed through singleflight so the vector store sees one query.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/singleflight"

	"github.com/innacampo/selene-demo/services/llm"
	"github.com/innacampo/selene-demo/services/selene/cache"
	"github.com/innacampo/selene-demo/services/selene/config"
	"github.com/innacampo/selene-demo/services/selene/datatypes"
	"github.com/innacampo/selene-demo/services/selene/observability"
)

var tracer = otel.Tracer("selene.rag")

// User-facing degradation messages for retrieval failures.
const (
	MsgRetrievalTimeout     = "Knowledge search timed out. Please try again."
	MsgRetrievalUnavailable = "The knowledge base is unreachable. Is Weaviate running?"
)

// rewritePrompt instructs the model to produce a standalone question.
const rewritePrompt = "Rewrite the follow-up as a standalone question. Output ONLY the rewritten text."

const (
	rewriteTemperature = 0.1
	rewriteMaxTokens   = 128

	// rewriteHistoryTurns is how much conversation the rewrite sees.
	rewriteHistoryTurns = 2

	// minRewriteLength rejects degenerate rewrites like "?" or "ok".
	minRewriteLength = 3
)

// RetrievedContext is the formatted knowledge-base result for a query.
type RetrievedContext struct {
	Context string   `json:"context"`
	Sources []string `json:"sources"`
}

// Orchestrator coordinates query rewriting and retrieval with caching.
type Orchestrator struct {
	search     SearchClient
	llm        llm.LLMClient
	queryCache *cache.TTLCache
	ragCache   *cache.TTLCache
	flight     singleflight.Group
	metrics    *observability.Metrics
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithMetrics records cache and retrieval counters. Nil disables them.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// NewOrchestrator wires an Orchestrator with its own cache tiers.
func NewOrchestrator(search SearchClient, llmClient llm.LLMClient, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		search:     search,
		llm:        llmClient,
		queryCache: cache.New(config.DefaultMaxCacheSize, config.QueryCacheTTL),
		ragCache:   cache.New(config.DefaultMaxCacheSize, config.RAGCacheTTL),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) recordCacheLookup(ctx context.Context, tier string, hit bool) {
	if o.metrics == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("tier", tier))
	if hit {
		o.metrics.CacheHitsTotal.Add(ctx, 1, attrs)
	} else {
		o.metrics.CacheMissesTotal.Add(ctx, 1, attrs)
	}
}

// ContextualizeQuery rewrites a follow-up question into a standalone one
// using the most recent turns of conversation.
//
// # Description
//
// With no history the query is already standalone and comes back
// untouched. Rewrites are cached under the query plus the history that
// shaped it. A failed or degenerate rewrite falls back to the raw query
// and is not cached, so a transient model failure does not pin the
// fallback for the TTL.
func (o *Orchestrator) ContextualizeQuery(ctx context.Context, query string, history []datatypes.ChatTurn) string {
	ctx, span := tracer.Start(ctx, "rag.ContextualizeQuery")
	defer span.End()

	if len(history) == 0 {
		return query
	}

	recent := history
	if len(recent) > rewriteHistoryTurns {
		recent = recent[len(recent)-rewriteHistoryTurns:]
	}

	keyParts := []any{query}
	for _, t := range recent {
		keyParts = append(keyParts, t.Role, t.Content)
	}
	key := cache.Key("ctx_query", keyParts...)

	if cached, ok := o.queryCache.Get(key); ok {
		span.SetAttributes(attribute.Bool("selene.cache.hit", true))
		o.recordCacheLookup(ctx, "ctx_query", true)
		return cached.(string)
	}
	span.SetAttributes(attribute.Bool("selene.cache.hit", false))
	o.recordCacheLookup(ctx, "ctx_query", false)

	var prompt strings.Builder
	prompt.WriteString("Conversation:\n")
	for _, t := range recent {
		fmt.Fprintf(&prompt, "%s: %s\n", t.Role, t.Content)
	}
	fmt.Fprintf(&prompt, "\nFollow-up: %s\n\n%s", query, rewritePrompt)

	temp := float32(rewriteTemperature)
	maxTokens := rewriteMaxTokens
	rewritten, err := o.llm.Generate(ctx, prompt.String(), llm.GenerationParams{
		Temperature: &temp,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		slog.Warn("Query rewrite failed, using raw query", "error", err)
		span.RecordError(err)
		return query
	}

	rewritten = strings.TrimSpace(rewritten)
	if len(rewritten) <= minRewriteLength {
		slog.Warn("Query rewrite degenerate, using raw query", "rewritten", rewritten)
		return query
	}

	o.queryCache.Set(key, rewritten)
	return rewritten
}

// QueryKnowledgeBase retrieves and formats knowledge chunks for a query.
//
// # Description
//
// Results are cached; errors never are. Concurrent misses for the same
// query collapse into a single vector-store round trip. Timeout and
// connection failures come back as distinct user-facing messages so the
// chat layer can degrade without exposing transport internals.
func (o *Orchestrator) QueryKnowledgeBase(ctx context.Context, query string) (RetrievedContext, error) {
	ctx, span := tracer.Start(ctx, "rag.QueryKnowledgeBase")
	defer span.End()

	key := cache.Key("rag", query, config.RAGTopK)
	if cached, ok := o.ragCache.Get(key); ok {
		span.SetAttributes(attribute.Bool("selene.cache.hit", true))
		o.recordCacheLookup(ctx, "rag", true)
		return cached.(RetrievedContext), nil
	}
	span.SetAttributes(attribute.Bool("selene.cache.hit", false))
	o.recordCacheLookup(ctx, "rag", false)

	result, err, shared := o.flight.Do(key, func() (any, error) {
		start := time.Now()
		chunks, err := o.search.SearchKnowledge(ctx, query, config.RAGTopK)
		if o.metrics != nil {
			status := "ok"
			if err != nil {
				status = "error"
			}
			o.metrics.RetrievalsTotal.Add(ctx, 1,
				metric.WithAttributes(attribute.String("status", status)))
			o.metrics.RetrievalDuration.Record(ctx, time.Since(start).Seconds())
		}
		if err != nil {
			return RetrievedContext{}, classifyRetrievalError(err)
		}
		retrieved := formatChunks(chunks)
		o.ragCache.Set(key, retrieved)
		return retrieved, nil
	})
	span.SetAttributes(attribute.Bool("selene.singleflight.shared", shared))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return RetrievedContext{}, err
	}
	return result.(RetrievedContext), nil
}

// RecallChatHistory returns the most relevant earlier turn from this
// session, or empty strings when nothing is close enough.
func (o *Orchestrator) RecallChatHistory(ctx context.Context, sessionID, query string) (question, answer string) {
	ctx, span := tracer.Start(ctx, "rag.RecallChatHistory")
	defer span.End()

	turns, err := o.search.SearchChatHistory(ctx, sessionID, query, config.ChatHistoryTopK)
	if err != nil {
		// Recall is an enrichment, never a hard dependency.
		slog.Warn("Chat-history recall failed", "error", err)
		span.RecordError(err)
		return "", ""
	}
	if len(turns) == 0 || turns[0].Distance > config.ChatHistoryDistanceThreshold {
		return "", ""
	}
	return turns[0].Question, turns[0].Answer
}

// RememberTurn indexes a completed turn for future recall. Failures are
// logged and swallowed.
func (o *Orchestrator) RememberTurn(ctx context.Context, sessionID, question, answer string) {
	if err := o.search.StoreChatTurn(ctx, sessionID, question, answer); err != nil {
		slog.Warn("Failed to store chat turn for recall", "error", err)
	}
}

// InvalidateRAGCache drops every cached retrieval result.
func (o *Orchestrator) InvalidateRAGCache() {
	o.ragCache.Clear()
}

// InvalidateQueryCache drops every cached query rewrite.
func (o *Orchestrator) InvalidateQueryCache() {
	o.queryCache.Clear()
}

// ClearAllCaches drops both the query-rewrite and retrieval tiers.
func (o *Orchestrator) ClearAllCaches() {
	o.queryCache.Clear()
	o.ragCache.Clear()
}

// CacheStats reports counters for the orchestrator's tiers.
func (o *Orchestrator) CacheStats() map[string]cache.Stats {
	return map[string]cache.Stats{
		"ctx_query": o.queryCache.Stats(),
		"rag":       o.ragCache.Stats(),
	}
}

func classifyRetrievalError(err error) error {
	switch {
	case llm.IsTimeout(err):
		return fmt.Errorf("%s: %w", MsgRetrievalTimeout, err)
	case llm.IsConnectionRefused(err):
		return fmt.Errorf("%s: %w", MsgRetrievalUnavailable, err)
	default:
		return err
	}
}

func formatChunks(chunks []KnowledgeChunk) RetrievedContext {
	if len(chunks) == 0 {
		return RetrievedContext{Sources: []string{}}
	}

	formatted := make([]string, 0, len(chunks))
	seen := make(map[string]bool)
	sources := make([]string, 0, len(chunks))
	for _, c := range chunks {
		formatted = append(formatted, fmt.Sprintf("[SOURCE: %s | SECTION: %s]\n%s",
			c.Source, strings.ToUpper(c.Section), c.Text))
		if c.Source != "" && !seen[c.Source] {
			seen[c.Source] = true
			sources = append(sources, c.Source)
		}
	}
	return RetrievedContext{
		Context: strings.Join(formatted, "\n\n---\n\n"),
		Sources: sources,
	}
}

// IsRetrievalDegraded reports whether err carries one of the user-facing
// degradation messages.
func IsRetrievalDegraded(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.HasPrefix(msg, MsgRetrievalTimeout) || strings.HasPrefix(msg, MsgRetrievalUnavailable)
}
