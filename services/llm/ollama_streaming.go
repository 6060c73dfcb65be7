// Copyright (C) 2026 The Selene Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0> for the full license text.

package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"

	"github.com/innacampo/selene-demo/services/selene/datatypes"
)

// =============================================================================
// Stream Types
// =============================================================================

// Stream event types emitted by ChatStream.
const (
	StreamEventToken    = "token"
	StreamEventThinking = "thinking"
	StreamEventDone     = "done"
	StreamEventError    = "error"
)

// StreamEvent is one unit of streamed model output.
type StreamEvent struct {
	Type    string
	Content string
	Error   error
}

// StreamCallback receives stream events in order. Returning a non-nil
// error aborts the stream.
type StreamCallback func(StreamEvent) error

// StreamConfig bounds what a stream may deliver.
type StreamConfig struct {
	// RedactThinking drops model reasoning chunks instead of forwarding
	// them to the client.
	RedactThinking bool

	// MaxThinkingLength caps total forwarded thinking bytes. 0 disables
	// the cap.
	MaxThinkingLength int

	// MaxResponseLength caps total response bytes before the stream is
	// aborted.
	MaxResponseLength int

	// RateLimitPerSecond caps forwarded events per second. 0 disables
	// rate limiting.
	RateLimitPerSecond int
}

// DefaultStreamConfig returns the production configuration.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		RedactThinking:     true,
		MaxThinkingLength:  8 * 1024,
		MaxResponseLength:  100 * 1024,
		RateLimitPerSecond: 0,
	}
}

// ollamaStreamChunk is one NDJSON line of Ollama's streaming chat reply.
type ollamaStreamChunk struct {
	Message struct {
		Role     string `json:"role"`
		Content  string `json:"content"`
		Thinking string `json:"thinking,omitempty"`
	} `json:"message"`
	Done          bool   `json:"done"`
	DoneReason    string `json:"done_reason,omitempty"`
	TotalDuration int64  `json:"total_duration,omitempty"`
	Error         string `json:"error,omitempty"`
}

// parseStreamChunk decodes one NDJSON line. Blank lines return nil, nil.
func parseStreamChunk(line []byte) (*ollamaStreamChunk, error) {
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 {
		return nil, nil
	}
	var chunk ollamaStreamChunk
	if err := json.Unmarshal(trimmed, &chunk); err != nil {
		return nil, fmt.Errorf("malformed stream chunk: %w", err)
	}
	return &chunk, nil
}

// =============================================================================
// Streaming Chat
// =============================================================================

// ChatStream streams a chat completion with the default configuration.
func (o *OllamaClient) ChatStream(ctx context.Context, messages []datatypes.ChatTurn,
	params GenerationParams, callback StreamCallback) error {
	return o.ChatStreamWithConfig(ctx, messages, params, DefaultStreamConfig(), callback)
}

// ChatStreamWithConfig streams a chat completion through Ollama's NDJSON
// chat endpoint.
//
// # Description
//
// Each received chunk becomes a token (or thinking) event delivered to the
// callback on the calling goroutine, in order. The stream ends with a done
// event. An in-band error from Ollama, a malformed chunk, or a breached
// response cap aborts the stream with an error; the callback receives a
// final error event first so a connected client sees why the stream died.
//
// # Limitations
//
//   - The callback must not block; it gates the read loop.
func (o *OllamaClient) ChatStreamWithConfig(ctx context.Context, messages []datatypes.ChatTurn,
	params GenerationParams, config StreamConfig, callback StreamCallback) error {

	ctx, span := tracer.Start(ctx, "OllamaClient.ChatStream")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.model", o.model),
		attribute.Int("llm.num_messages", len(messages)),
	)

	payload := ollamaChatRequest{
		Model:    o.model,
		Messages: toOllamaMessages(messages),
		Stream:   true,
		Options:  o.options(params),
	}
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal stream request to Ollama: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/chat",
		bytes.NewBuffer(reqBody))
	if err != nil {
		return fmt.Errorf("failed to create stream request to Ollama: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		classified := ClassifyError(err)
		span.RecordError(classified)
		span.SetStatus(codes.Error, classified.Error())
		return classified
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body := new(bytes.Buffer)
		body.ReadFrom(resp.Body)
		err := &BackendError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(body.String()),
			Retryable:  resp.StatusCode >= 500,
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	var limiter *rate.Limiter
	if config.RateLimitPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RateLimitPerSecond), config.RateLimitPerSecond)
	}

	fail := func(err error) error {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		// Best effort: the client gets the reason before the stream dies.
		_ = callback(StreamEvent{Type: StreamEventError, Error: err})
		return err
	}

	emit := func(event StreamEvent) error {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return err
			}
		}
		return callback(event)
	}

	var responseBytes, thinkingBytes int
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		chunk, err := parseStreamChunk(scanner.Bytes())
		if err != nil {
			return fail(err)
		}
		if chunk == nil {
			continue
		}
		if chunk.Error != "" {
			return fail(&BackendError{Message: chunk.Error})
		}

		if chunk.Message.Thinking != "" && !config.RedactThinking {
			thinkingBytes += len(chunk.Message.Thinking)
			if config.MaxThinkingLength > 0 && thinkingBytes > config.MaxThinkingLength {
				return fail(fmt.Errorf("thinking output exceeded %d bytes", config.MaxThinkingLength))
			}
			if err := emit(StreamEvent{Type: StreamEventThinking, Content: chunk.Message.Thinking}); err != nil {
				return err
			}
		}

		if chunk.Message.Content != "" {
			responseBytes += len(chunk.Message.Content)
			if config.MaxResponseLength > 0 && responseBytes > config.MaxResponseLength {
				return fail(fmt.Errorf("response exceeded %d bytes", config.MaxResponseLength))
			}
			if err := emit(StreamEvent{Type: StreamEventToken, Content: chunk.Message.Content}); err != nil {
				return err
			}
		}

		if chunk.Done {
			slog.Debug("Ollama stream complete",
				"done_reason", chunk.DoneReason, "response_bytes", responseBytes)
			return emit(StreamEvent{Type: StreamEventDone})
		}
	}
	if err := scanner.Err(); err != nil {
		return fail(fmt.Errorf("stream read failed: %w", err))
	}
	return fail(fmt.Errorf("stream ended without a done chunk"))
}
