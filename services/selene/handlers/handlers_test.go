// Copyright (C) 2026 The Selene Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0> for the full license text.

package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/innacampo/selene-demo/services/llm"
	"github.com/innacampo/selene-demo/services/selene/config"
	"github.com/innacampo/selene-demo/services/selene/contextbuilder"
	"github.com/innacampo/selene-demo/services/selene/datatypes"
	"github.com/innacampo/selene-demo/services/selene/observability"
	"github.com/innacampo/selene-demo/services/selene/rag"
	"github.com/innacampo/selene-demo/services/selene/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// =============================================================================
// Fakes
// =============================================================================

type fakeProfiles struct {
	profile datatypes.UserProfile
}

func (f *fakeProfiles) Load() (datatypes.UserProfile, error) { return f.profile, nil }

type fakeSearch struct {
	chunks []rag.KnowledgeChunk
	err    error
}

func (f *fakeSearch) SearchKnowledge(ctx context.Context, query string, topK int) ([]rag.KnowledgeChunk, error) {
	return f.chunks, f.err
}

func (f *fakeSearch) SearchChatHistory(ctx context.Context, sessionID, query string, topK int) ([]rag.RecalledTurn, error) {
	return nil, nil
}

func (f *fakeSearch) StoreChatTurn(ctx context.Context, sessionID, question, answer string) error {
	return nil
}

type fakeLLM struct{ response string }

func (f *fakeLLM) Generate(ctx context.Context, prompt string, params llm.GenerationParams) (string, error) {
	return f.response, nil
}

func (f *fakeLLM) Chat(ctx context.Context, messages []datatypes.ChatTurn, params llm.GenerationParams) (string, error) {
	return f.response, nil
}

type fakeStreamer struct {
	tokens   []string
	err      error
	messages []datatypes.ChatTurn
}

func (f *fakeStreamer) ChatStream(ctx context.Context, messages []datatypes.ChatTurn,
	params llm.GenerationParams, callback llm.StreamCallback) error {
	f.messages = messages
	if f.err != nil {
		return f.err
	}
	for _, tok := range f.tokens {
		if err := callback(llm.StreamEvent{Type: llm.StreamEventToken, Content: tok}); err != nil {
			return err
		}
	}
	return callback(llm.StreamEvent{Type: llm.StreamEventDone})
}

// =============================================================================
// Helpers
// =============================================================================

func newPulseStore(t *testing.T) *storage.PulseStore {
	t.Helper()
	store, err := storage.NewPulseStore(filepath.Join(t.TempDir(), "pulse_history.json"))
	require.NoError(t, err)
	return store
}

func newBuilder(t *testing.T, pulses *storage.PulseStore) *contextbuilder.Builder {
	t.Helper()
	stages, err := config.LoadStages("/nonexistent/stages.yaml")
	require.NoError(t, err)
	return contextbuilder.NewBuilder(&fakeProfiles{}, pulses, stages)
}

type sseEvent struct {
	Type    string
	Payload map[string]any
}

// parseSSE splits a recorded SSE body into typed events.
func parseSSE(t *testing.T, body string) []sseEvent {
	t.Helper()
	var events []sseEvent
	for _, block := range strings.Split(body, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" || strings.HasPrefix(block, ":") {
			continue
		}
		var ev sseEvent
		for _, line := range strings.Split(block, "\n") {
			if name, ok := strings.CutPrefix(line, "event: "); ok {
				ev.Type = name
			}
			if data, ok := strings.CutPrefix(line, "data: "); ok {
				require.NoError(t, json.Unmarshal([]byte(data), &ev.Payload))
			}
		}
		events = append(events, ev)
	}
	return events
}

func eventTypes(events []sseEvent) []string {
	var types []string
	for _, ev := range events {
		types = append(types, ev.Type)
	}
	return types
}

// =============================================================================
// Pulse Handlers
// =============================================================================

func TestCreatePulseEntry_StampsTimestamp(t *testing.T) {
	store := newPulseStore(t)
	router := gin.New()
	router.POST("/v1/pulse", CreatePulseEntry(store, newBuilder(t, store), nil))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/pulse",
		strings.NewReader(`{"rest":"Fragmented","notes":"rough night"}`))
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	entries, err := store.Load()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Fragmented", entries[0].Rest)
	assert.NotEmpty(t, entries[0].Timestamp)
}

func TestCreatePulseEntry_RejectsInvalidLabel(t *testing.T) {
	store := newPulseStore(t)
	router := gin.New()
	router.POST("/v1/pulse", CreatePulseEntry(store, newBuilder(t, store), nil))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/pulse",
		strings.NewReader(`{"rest":"Amazing"}`))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	entries, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCreatePulseEntry_RejectsEmptyEntry(t *testing.T) {
	store := newPulseStore(t)
	router := gin.New()
	router.POST("/v1/pulse", CreatePulseEntry(store, newBuilder(t, store), nil))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/pulse", strings.NewReader(`{"notes":"only notes"}`))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListPulseEntries_DaysFilter(t *testing.T) {
	store := newPulseStore(t)
	now := time.Now().UTC()
	for _, age := range []time.Duration{time.Hour, 10 * 24 * time.Hour} {
		require.NoError(t, store.Append(datatypes.PulseEntry{
			Timestamp: now.Add(-age).Format(time.RFC3339),
			Rest:      "Restorative",
		}))
	}

	router := gin.New()
	router.GET("/v1/pulse", ListPulseEntries(store))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/pulse?days=7", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
}

func TestRestorePulseBackup_RollsBack(t *testing.T) {
	store := newPulseStore(t)
	ts := time.Now().UTC().Format(time.RFC3339)
	require.NoError(t, store.Append(datatypes.PulseEntry{Timestamp: ts, Rest: "Restorative"}))
	require.NoError(t, store.Append(datatypes.PulseEntry{Timestamp: ts, Rest: "Fragmented"}))

	router := gin.New()
	router.POST("/v1/pulse/restore", RestorePulseBackup(store, newBuilder(t, store)))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/pulse/restore", nil))

	require.Equal(t, http.StatusOK, w.Code)
	entries, err := store.Load()
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

// =============================================================================
// Cache Handlers
// =============================================================================

func TestCacheStats_IncludesAllTiers(t *testing.T) {
	store := newPulseStore(t)
	orch := rag.NewOrchestrator(&fakeSearch{}, &fakeLLM{})
	router := gin.New()
	router.GET("/v1/cache/stats", CacheStats(orch, newBuilder(t, store)))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/cache/stats", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Caches map[string]json.RawMessage `json:"caches"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Caches, "ctx_query")
	assert.Contains(t, resp.Caches, "rag")
	assert.Contains(t, resp.Caches, "user_ctx")
}

func TestInvalidateCache_UnknownTier(t *testing.T) {
	store := newPulseStore(t)
	orch := rag.NewOrchestrator(&fakeSearch{}, &fakeLLM{})
	router := gin.New()
	router.POST("/v1/cache/invalidate", InvalidateCache(orch, newBuilder(t, store), nil))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/cache/invalidate",
		strings.NewReader(`{"tier":"bogus"}`))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInvalidateCache_RagTier(t *testing.T) {
	store := newPulseStore(t)
	search := &fakeSearch{chunks: []rag.KnowledgeChunk{{Text: "t", Source: "s"}}}
	orch := rag.NewOrchestrator(search, &fakeLLM{})
	_, err := orch.QueryKnowledgeBase(context.Background(), "q")
	require.NoError(t, err)
	require.Equal(t, 1, orch.CacheStats()["rag"].Size)

	router := gin.New()
	router.POST("/v1/cache/invalidate", InvalidateCache(orch, newBuilder(t, store), nil))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/cache/invalidate",
		strings.NewReader(`{"tier":"rag"}`))
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, orch.CacheStats()["rag"].Size)
}

// =============================================================================
// Streaming Chat Handler
// =============================================================================

func streamDeps(t *testing.T, search rag.SearchClient, streamer llm.StreamingClient) ChatStreamDeps {
	t.Helper()
	store := newPulseStore(t)
	return ChatStreamDeps{
		Orchestrator: rag.NewOrchestrator(search, &fakeLLM{response: "standalone question?"}),
		Builder:      newBuilder(t, store),
		Stream:       streamer,
	}
}

func TestHandleChatStream_HappyPath(t *testing.T) {
	search := &fakeSearch{chunks: []rag.KnowledgeChunk{
		{Text: "Magnesium may help sleep.", Source: "nih_sleep", Section: "minerals"},
	}}
	streamer := &fakeStreamer{tokens: []string{"Magnesium ", "may ", "help."}}

	router := gin.New()
	router.POST("/v1/chat/stream", HandleChatStream(streamDeps(t, search, streamer)))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/stream",
		strings.NewReader(`{"query":"what helps sleep?"}`))
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	events := parseSSE(t, w.Body.String())
	types := eventTypes(events)

	assert.Contains(t, types, "status")
	assert.Contains(t, types, "sources")
	assert.Contains(t, types, "token")
	assert.Equal(t, "done", types[len(types)-1])
	assert.NotContains(t, types, "error")

	var answer strings.Builder
	for _, ev := range events {
		if ev.Type == "token" {
			answer.WriteString(ev.Payload["content"].(string))
		}
	}
	assert.Equal(t, "Magnesium may help.", answer.String())

	// The model prompt should carry the knowledge block.
	require.NotEmpty(t, streamer.messages)
	assert.Equal(t, "system", streamer.messages[0].Role)
	assert.Contains(t, streamer.messages[0].Content, "[SOURCE: nih_sleep | SECTION: MINERALS]")
}

func TestHandleChatStream_AssignsSessionId(t *testing.T) {
	streamer := &fakeStreamer{tokens: []string{"hi"}}
	router := gin.New()
	router.POST("/v1/chat/stream", HandleChatStream(streamDeps(t, &fakeSearch{}, streamer)))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/stream",
		strings.NewReader(`{"query":"hello"}`))
	router.ServeHTTP(w, req)

	events := parseSSE(t, w.Body.String())
	done := events[len(events)-1]
	require.Equal(t, "done", done.Type)
	assert.NotEmpty(t, done.Payload["session_id"])
}

func TestHandleChatStream_RetrievalFailureDegrades(t *testing.T) {
	search := &fakeSearch{err: fmt.Errorf("weaviate down")}
	streamer := &fakeStreamer{tokens: []string{"General ", "guidance."}}

	router := gin.New()
	router.POST("/v1/chat/stream", HandleChatStream(streamDeps(t, search, streamer)))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/stream",
		strings.NewReader(`{"query":"what helps?"}`))
	router.ServeHTTP(w, req)

	types := eventTypes(parseSSE(t, w.Body.String()))
	assert.NotContains(t, types, "sources")
	assert.NotContains(t, types, "error")
	assert.Equal(t, "done", types[len(types)-1])
}

func TestHandleChatStream_ModelFailureEmitsError(t *testing.T) {
	streamer := &fakeStreamer{err: &llm.BackendError{StatusCode: 503, Message: "overloaded", Retryable: true}}

	router := gin.New()
	router.POST("/v1/chat/stream", HandleChatStream(streamDeps(t, &fakeSearch{}, streamer)))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/stream",
		strings.NewReader(`{"query":"hello"}`))
	router.ServeHTTP(w, req)

	events := parseSSE(t, w.Body.String())
	last := events[len(events)-1]
	require.Equal(t, "error", last.Type)
	assert.Equal(t, "overloaded", last.Payload["error"])
}

func TestHandleChatStream_RejectsMissingQuery(t *testing.T) {
	router := gin.New()
	router.POST("/v1/chat/stream", HandleChatStream(streamDeps(t, &fakeSearch{}, &fakeStreamer{})))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/stream", strings.NewReader(`{}`))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthCheck(t *testing.T) {
	router := gin.New()
	router.GET("/health", HealthCheck)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestHandleChatStream_CountsStreamedTokens(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	metrics, err := observability.NewMetrics(provider.Meter("test"))
	require.NoError(t, err)

	streamer := &fakeStreamer{tokens: []string{"one ", "two ", "three"}}
	deps := streamDeps(t, &fakeSearch{}, streamer)
	deps.Metrics = metrics

	router := gin.New()
	router.POST("/v1/chat/stream", HandleChatStream(deps))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/stream",
		strings.NewReader(`{"query":"hi"}`))
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	var tokens int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "selene_llm_stream_tokens_total" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				tokens += dp.Value
			}
		}
	}
	assert.Equal(t, int64(3), tokens)
}
