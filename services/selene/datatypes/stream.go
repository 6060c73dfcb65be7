// Copyright (C) 2026 The Selene Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0> for the full license text.

package datatypes

import (
	"time"

	"github.com/google/uuid"
)

// SourceInfo identifies one knowledge-base chunk that contributed to an
// answer.
type SourceInfo struct {
	Source   string  `json:"source"`
	Section  string  `json:"section,omitempty"`
	Distance float64 `json:"distance,omitempty"`
	Score    float64 `json:"score,omitempty"`
}

// StreamEvent is one event on the chat SSE stream.
//
// # Description
//
// Type is one of "status", "token", "thinking", "sources", "done", "error".
// Exactly one of the payload fields is normally set, matching the type.
// Id and CreatedAt are assigned at construction for client-side ordering
// and deduplication.
type StreamEvent struct {
	Id        string       `json:"id"`
	Type      string       `json:"type"`
	CreatedAt int64        `json:"created_at"`
	Message   string       `json:"message,omitempty"`
	Content   string       `json:"content,omitempty"`
	Sources   []SourceInfo `json:"sources,omitempty"`
	SessionId string       `json:"session_id,omitempty"`
	Error     string       `json:"error,omitempty"`
}

// NewStreamEvent creates an event of the given type with a fresh id and a
// millisecond timestamp.
func NewStreamEvent(eventType string) StreamEvent {
	return StreamEvent{
		Id:        uuid.NewString(),
		Type:      eventType,
		CreatedAt: time.Now().UnixMilli(),
	}
}

// WithMessage sets the human-readable status message.
func (e StreamEvent) WithMessage(message string) StreamEvent {
	e.Message = message
	return e
}

// WithContent sets the token content.
func (e StreamEvent) WithContent(content string) StreamEvent {
	e.Content = content
	return e
}

// WithSources attaches the contributing sources.
func (e StreamEvent) WithSources(sources []SourceInfo) StreamEvent {
	e.Sources = sources
	return e
}

// WithSessionId tags the event with its session.
func (e StreamEvent) WithSessionId(sessionId string) StreamEvent {
	e.SessionId = sessionId
	return e
}

// WithError sets the error description.
func (e StreamEvent) WithError(errMsg string) StreamEvent {
	e.Error = errMsg
	return e
}
