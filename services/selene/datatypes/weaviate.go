// Copyright (C) 2026 The Selene Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0> for the full license text.

package datatypes

import (
	"encoding/json"
	"fmt"

	"github.com/weaviate/weaviate/entities/models"
)

// =============================================================================
// Weaviate Class Names
// =============================================================================

const (
	// KnowledgeClass holds the menopause knowledge-base chunks.
	KnowledgeClass = "SeleneKnowledge"

	// ChatMemoryClass holds past conversation turns for semantic recall.
	ChatMemoryClass = "SeleneChatMemory"
)

// =============================================================================
// Typed GraphQL Parsing
// =============================================================================

// ParseGraphQLResponse unmarshals a Weaviate GraphQL response's Data field
// into a concrete typed structure.
//
// # Limitations
//
//   - Type mismatches produce zero values, not errors.
func ParseGraphQLResponse[T any](resp *models.GraphQLResponse) (*T, error) {
	if resp == nil {
		return nil, fmt.Errorf("nil GraphQL response")
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %s", resp.Errors[0].Message)
	}

	respBytes, err := json.Marshal(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal GraphQL response data: %w", err)
	}

	var result T
	if err := json.Unmarshal(respBytes, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal into target type: %w", err)
	}
	return &result, nil
}

// KnowledgeQueryResponse is the Get result shape for KnowledgeClass.
type KnowledgeQueryResponse struct {
	Get struct {
		SeleneKnowledge []KnowledgeResult `json:"SeleneKnowledge"`
	} `json:"Get"`
}

// KnowledgeResult is a single retrieved knowledge chunk.
type KnowledgeResult struct {
	Text       string `json:"text"`
	Source     string `json:"source"`
	Section    string `json:"section"`
	Additional struct {
		Distance *float64 `json:"distance"`
	} `json:"_additional"`
}

// ChatMemoryQueryResponse is the Get result shape for ChatMemoryClass.
type ChatMemoryQueryResponse struct {
	Get struct {
		SeleneChatMemory []ChatMemoryResult `json:"SeleneChatMemory"`
	} `json:"Get"`
}

// ChatMemoryResult is a single recalled conversation turn.
type ChatMemoryResult struct {
	Question   string `json:"question"`
	Answer     string `json:"answer"`
	SessionID  string `json:"session_id"`
	Additional struct {
		Distance *float64 `json:"distance"`
	} `json:"_additional"`
}
