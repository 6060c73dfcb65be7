// Copyright (C) 2026 The Selene Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0> for the full license text.

package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/innacampo/selene-demo/services/selene/datatypes"
)

// SSEWriter writes typed Server-Sent Events to an HTTP response.
//
// # Description
//
// Implementations handle the SSE wire format (event: type\ndata: json\n\n)
// and flush after every event so tokens reach the client as they arrive.
// Safe for concurrent use; streaming handlers emit keepalives from a
// separate goroutine.
type SSEWriter interface {
	// WriteEvent serializes and writes a single event, then flushes.
	WriteEvent(event datatypes.StreamEvent) error

	// WriteStatus writes a "status" event with a display message.
	WriteStatus(message string) error

	// WriteToken writes a "token" event with partial answer text.
	WriteToken(content string) error

	// WriteThinking writes a "thinking" event with model reasoning text.
	WriteThinking(content string) error

	// WriteSources writes a "sources" event listing contributing chunks.
	WriteSources(sources []datatypes.SourceInfo) error

	// WriteError writes an "error" event. The message must already be
	// sanitized for client display.
	WriteError(errMsg string) error

	// WriteDone writes the final "done" event carrying the session id.
	WriteDone(sessionID string) error

	// WriteKeepAlive writes an SSE comment to hold the connection open
	// during long operations. Comments are ignored by clients.
	WriteKeepAlive() error
}

type sseWriter struct {
	writer  http.ResponseWriter
	flusher http.Flusher
	mu      sync.Mutex
}

// NewSSEWriter wraps a ResponseWriter for SSE output. The caller must
// have set SSE headers via SetSSEHeaders first.
func NewSSEWriter(w http.ResponseWriter) (SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("ResponseWriter does not support http.Flusher")
	}
	return &sseWriter{writer: w, flusher: flusher}, nil
}

func (w *sseWriter) WriteEvent(event datatypes.StreamEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(w.writer, "event: %s\ndata: %s\n\n", event.Type, data); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	w.flusher.Flush()
	return nil
}

func (w *sseWriter) WriteStatus(message string) error {
	return w.WriteEvent(datatypes.NewStreamEvent("status").WithMessage(message))
}

func (w *sseWriter) WriteToken(content string) error {
	return w.WriteEvent(datatypes.NewStreamEvent("token").WithContent(content))
}

func (w *sseWriter) WriteThinking(content string) error {
	return w.WriteEvent(datatypes.NewStreamEvent("thinking").WithContent(content))
}

func (w *sseWriter) WriteSources(sources []datatypes.SourceInfo) error {
	return w.WriteEvent(datatypes.NewStreamEvent("sources").WithSources(sources))
}

func (w *sseWriter) WriteError(errMsg string) error {
	return w.WriteEvent(datatypes.NewStreamEvent("error").WithError(errMsg))
}

func (w *sseWriter) WriteDone(sessionID string) error {
	return w.WriteEvent(datatypes.NewStreamEvent("done").WithSessionId(sessionID))
}

func (w *sseWriter) WriteKeepAlive() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := fmt.Fprintf(w.writer, ": ping\n\n"); err != nil {
		return fmt.Errorf("write keepalive: %w", err)
	}
	w.flusher.Flush()
	return nil
}

// SetSSEHeaders configures response headers for SSE streaming. Must be
// called before any body writes.
func SetSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

var _ SSEWriter = (*sseWriter)(nil)
