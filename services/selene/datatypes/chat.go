// Copyright (C) 2026 The Selene Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0> for the full license text.

package datatypes

import (
	"github.com/go-playground/validator/v10"
)

// =============================================================================
// Limits
// =============================================================================

const (
	// MaxQueryBytes is the maximum size of a single chat query.
	MaxQueryBytes = 32 * 1024 // 32KB

	// MaxHistoryTurns is the maximum number of history turns accepted in a
	// request. Contextualization only ever reads the last two.
	MaxHistoryTurns = 100
)

var chatValidate *validator.Validate

func init() {
	chatValidate = validator.New()
	_ = chatValidate.RegisterValidation("maxbytes", validateQueryBytes)
}

// validateQueryBytes checks byte length, not rune count, so multibyte text
// cannot slip past the limit.
func validateQueryBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxQueryBytes
}

// =============================================================================
// Chat Types
// =============================================================================

// ChatTurn is one question/answer exchange in a conversation.
type ChatTurn struct {
	Role    string `json:"role" validate:"required,oneof=user assistant"`
	Content string `json:"content" validate:"maxbytes"`
}

// ChatRequest is a chat submission, optionally continuing a session.
type ChatRequest struct {
	Query     string     `json:"query" validate:"required,maxbytes"`
	SessionId string     `json:"session_id,omitempty"`
	History   []ChatTurn `json:"history,omitempty" validate:"max=100,dive"`
}

// Validate runs structural validation over the request.
func (r *ChatRequest) Validate() error {
	return chatValidate.Struct(r)
}

// ChatResponse is the non-streaming chat reply.
type ChatResponse struct {
	Answer    string       `json:"answer"`
	SessionId string       `json:"session_id"`
	Sources   []SourceInfo `json:"sources,omitempty"`
}
