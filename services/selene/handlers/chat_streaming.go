// Copyright (C) 2026 The Selene Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0> for the full license text.

package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/innacampo/selene-demo/services/llm"
	"github.com/innacampo/selene-demo/services/selene/contextbuilder"
	"github.com/innacampo/selene-demo/services/selene/datatypes"
	"github.com/innacampo/selene-demo/services/selene/observability"
	"github.com/innacampo/selene-demo/services/selene/rag"
	"github.com/innacampo/selene-demo/services/selene/storage"
)

var tracer = otel.Tracer("selene.handlers")

// historyTurnsForPrompt bounds how much session history feeds the model.
const historyTurnsForPrompt = 10

// ChatStreamDeps bundles the collaborators of the streaming chat handler.
type ChatStreamDeps struct {
	Orchestrator *rag.Orchestrator
	Builder      *contextbuilder.Builder
	Sessions     *storage.SessionStore
	Stream       llm.StreamingClient
	Metrics      *observability.Metrics
}

// HandleChatStream answers a chat query over SSE.
//
// # Description
//
// The pipeline: contextualize the query against recent history, retrieve
// knowledge chunks and any relevant earlier turn, assemble the personal
// context block, then stream the model's answer token by token. Retrieval
// failure degrades to an answer without citations; only a model failure
// terminates the stream with an error event.
//
// # Events
//
//   - status: pipeline progress messages
//   - sources: contributing knowledge-base sources
//   - thinking / token: model output
//   - done: stream complete, carries the session id
//   - error: terminal failure, stream closes after
func HandleChatStream(deps ChatStreamDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.ChatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		sessionID := req.SessionId
		if sessionID == "" {
			sessionID = uuid.NewString()
		}

		ctx, span := tracer.Start(c.Request.Context(), "handlers.HandleChatStream")
		defer span.End()
		span.SetAttributes(attribute.String("session_id", sessionID))

		SetSSEHeaders(c.Writer)
		writer, err := NewSSEWriter(c.Writer)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
			return
		}

		start := time.Now()
		answer, streamErr := runChatPipeline(ctx, deps, writer, req, sessionID)
		if deps.Metrics != nil {
			status := "ok"
			if streamErr != nil {
				status = "error"
			}
			deps.Metrics.LLMRequestsTotal.Add(ctx, 1, metric.WithAttributes(
				attribute.String("operation", "chat_stream"),
				attribute.String("status", status)))
			deps.Metrics.LLMRequestDuration.Record(ctx, time.Since(start).Seconds())
		}
		if streamErr != nil {
			span.RecordError(streamErr)
			span.SetStatus(codes.Error, streamErr.Error())
			_ = writer.WriteError(sanitizeStreamError(streamErr))
			return
		}

		_ = writer.WriteDone(sessionID)
		persistTurn(deps, sessionID, req.Query, answer)
	}
}

// runChatPipeline executes retrieval and streaming, returning the full
// accumulated answer.
func runChatPipeline(ctx context.Context, deps ChatStreamDeps, writer SSEWriter,
	req datatypes.ChatRequest, sessionID string) (string, error) {

	_ = writer.WriteStatus("Understanding your question...")

	history := req.History
	if len(history) == 0 && deps.Sessions != nil {
		stored, err := deps.Sessions.RecentTurns(sessionID, historyTurnsForPrompt)
		if err != nil {
			slog.Warn("Failed to load session history", "error", err, "sessionId", sessionID)
		} else {
			history = stored
		}
	}

	query := deps.Orchestrator.ContextualizeQuery(ctx, req.Query, history)

	_ = writer.WriteStatus("Searching the knowledge base...")
	retrieved, err := deps.Orchestrator.QueryKnowledgeBase(ctx, query)
	if err != nil {
		// Degrade: answer without citations rather than failing the chat.
		slog.Warn("Knowledge retrieval failed, answering without citations", "error", err)
		_ = writer.WriteStatus("Knowledge base unavailable, answering from general guidance...")
		retrieved = rag.RetrievedContext{}
	}
	if len(retrieved.Sources) > 0 {
		sources := make([]datatypes.SourceInfo, 0, len(retrieved.Sources))
		for _, s := range retrieved.Sources {
			sources = append(sources, datatypes.SourceInfo{Source: s})
		}
		_ = writer.WriteSources(sources)
	}

	recalledQ, recalledA := deps.Orchestrator.RecallChatHistory(ctx, sessionID, query)
	userContext := deps.Builder.BuildUserContext(ctx)

	messages := buildPromptMessages(userContext, retrieved.Context, recalledQ, recalledA, history, req.Query)

	_ = writer.WriteStatus("Generating response...")
	var answer strings.Builder
	err = deps.Stream.ChatStream(ctx, messages, llm.GenerationParams{}, func(event llm.StreamEvent) error {
		switch event.Type {
		case llm.StreamEventToken:
			answer.WriteString(event.Content)
			if deps.Metrics != nil {
				deps.Metrics.LLMStreamTokensTotal.Add(ctx, 1)
			}
			return writer.WriteToken(event.Content)
		case llm.StreamEventThinking:
			return writer.WriteThinking(event.Content)
		}
		// Error events surface through ChatStream's return value.
		return nil
	})
	if err != nil {
		return "", err
	}
	return answer.String(), nil
}

// buildPromptMessages assembles the chat transcript sent to the model.
// Context blocks ride in a leading system turn.
func buildPromptMessages(userContext, knowledge, recalledQ, recalledA string,
	history []datatypes.ChatTurn, query string) []datatypes.ChatTurn {

	var system strings.Builder
	if userContext != "" {
		system.WriteString(userContext)
		system.WriteString("\n\n")
	}
	if knowledge != "" {
		system.WriteString("=== KNOWLEDGE BASE ===\n")
		system.WriteString(knowledge)
		system.WriteString("\n\n")
	}
	if recalledQ != "" {
		system.WriteString("=== EARLIER IN THIS CONVERSATION ===\n")
		fmt.Fprintf(&system, "User asked: %s\nYou answered: %s\n\n", recalledQ, recalledA)
	}

	messages := make([]datatypes.ChatTurn, 0, len(history)+2)
	if system.Len() > 0 {
		messages = append(messages, datatypes.ChatTurn{Role: "system", Content: strings.TrimRight(system.String(), "\n")})
	}
	if len(history) > historyTurnsForPrompt {
		history = history[len(history)-historyTurnsForPrompt:]
	}
	messages = append(messages, history...)
	messages = append(messages, datatypes.ChatTurn{Role: "user", Content: query})
	return messages
}

// persistTurn records the exchange in the session store and the vector
// store. Both are best-effort.
func persistTurn(deps ChatStreamDeps, sessionID, question, answer string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if deps.Sessions != nil {
		if err := deps.Sessions.AppendTurn(sessionID, datatypes.ChatTurn{Role: "user", Content: question}); err != nil {
			slog.Warn("Failed to persist user turn", "error", err)
		}
		if err := deps.Sessions.AppendTurn(sessionID, datatypes.ChatTurn{Role: "assistant", Content: answer}); err != nil {
			slog.Warn("Failed to persist assistant turn", "error", err)
		}
	}
	deps.Orchestrator.RememberTurn(ctx, sessionID, question, answer)
}

// sanitizeStreamError maps internal failures to client-safe messages.
func sanitizeStreamError(err error) string {
	switch {
	case llm.IsTimeout(err):
		return llm.MsgTimeout
	case llm.IsConnectionRefused(err):
		return llm.MsgConnectionRefused
	case rag.IsRetrievalDegraded(err):
		return err.Error()
	default:
		var backendErr *llm.BackendError
		if errors.As(err, &backendErr) {
			return backendErr.Message
		}
		return "Something went wrong generating the response. Please try again."
	}
}
