// Copyright (C) 2026 The Selene Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0> for the full license text.

package rag

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/innacampo/selene-demo/services/selene/datatypes"
)

// KnowledgeChunk is one retrieved knowledge-base passage.
type KnowledgeChunk struct {
	Text     string
	Source   string
	Section  string
	Distance float64
}

// RecalledTurn is a past conversation turn recovered by semantic recall.
type RecalledTurn struct {
	Question string
	Answer   string
	Distance float64
}

// SearchClient abstracts the vector store behind the orchestrator.
type SearchClient interface {
	SearchKnowledge(ctx context.Context, query string, topK int) ([]KnowledgeChunk, error)
	SearchChatHistory(ctx context.Context, sessionID, query string, topK int) ([]RecalledTurn, error)
	StoreChatTurn(ctx context.Context, sessionID, question, answer string) error
}

// WeaviateSearcher implements SearchClient against a Weaviate instance
// with a text2vec module configured, so queries embed server-side.
type WeaviateSearcher struct {
	client *weaviate.Client
}

// NewWeaviateSearcher wraps an existing connected client.
func NewWeaviateSearcher(client *weaviate.Client) *WeaviateSearcher {
	return &WeaviateSearcher{client: client}
}

// EnsureSchema creates the knowledge and chat-memory classes if they do
// not exist. Idempotent.
func (s *WeaviateSearcher) EnsureSchema(ctx context.Context) error {
	for _, class := range []*models.Class{knowledgeSchema(), chatMemorySchema()} {
		if _, err := s.client.Schema().ClassGetter().WithClassName(class.Class).Do(ctx); err == nil {
			continue
		}
		slog.Info("Creating Weaviate schema", "class", class.Class)
		if err := s.client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
			return fmt.Errorf("creating %s schema: %w", class.Class, err)
		}
	}
	return nil
}

func knowledgeSchema() *models.Class {
	return &models.Class{
		Class:       datatypes.KnowledgeClass,
		Description: "Menopause knowledge-base passages",
		Properties: []*models.Property{
			{Name: "text", DataType: []string{"text"}, Tokenization: "word"},
			{Name: "source", DataType: []string{"text"}, Tokenization: "field"},
			{Name: "section", DataType: []string{"text"}, Tokenization: "field"},
		},
	}
}

func chatMemorySchema() *models.Class {
	return &models.Class{
		Class:       datatypes.ChatMemoryClass,
		Description: "Past conversation turns for semantic recall",
		Properties: []*models.Property{
			{Name: "question", DataType: []string{"text"}, Tokenization: "word"},
			{Name: "answer", DataType: []string{"text"}, Tokenization: "word"},
			{Name: "session_id", DataType: []string{"text"}, Tokenization: "field"},
		},
	}
}

// SearchKnowledge retrieves the topK nearest knowledge chunks.
func (s *WeaviateSearcher) SearchKnowledge(ctx context.Context, query string, topK int) ([]KnowledgeChunk, error) {
	nearText := s.client.GraphQL().NearTextArgBuilder().
		WithConcepts([]string{query})

	fields := []graphql.Field{
		{Name: "text"},
		{Name: "source"},
		{Name: "section"},
		{Name: "_additional", Fields: []graphql.Field{
			{Name: "distance"},
		}},
	}

	result, err := s.client.GraphQL().Get().
		WithClassName(datatypes.KnowledgeClass).
		WithFields(fields...).
		WithNearText(nearText).
		WithLimit(topK).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("weaviate knowledge search failed: %w", err)
	}

	parsed, err := datatypes.ParseGraphQLResponse[datatypes.KnowledgeQueryResponse](result)
	if err != nil {
		return nil, fmt.Errorf("failed to parse knowledge results: %w", err)
	}

	chunks := make([]KnowledgeChunk, 0, len(parsed.Get.SeleneKnowledge))
	for _, r := range parsed.Get.SeleneKnowledge {
		chunk := KnowledgeChunk{Text: r.Text, Source: r.Source, Section: r.Section}
		if r.Additional.Distance != nil {
			chunk.Distance = *r.Additional.Distance
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

// SearchChatHistory retrieves semantically similar turns from this session.
func (s *WeaviateSearcher) SearchChatHistory(ctx context.Context, sessionID, query string, topK int) ([]RecalledTurn, error) {
	sessionFilter := filters.Where().
		WithPath([]string{"session_id"}).
		WithOperator(filters.Equal).
		WithValueString(sessionID)

	nearText := s.client.GraphQL().NearTextArgBuilder().
		WithConcepts([]string{query})

	fields := []graphql.Field{
		{Name: "question"},
		{Name: "answer"},
		{Name: "session_id"},
		{Name: "_additional", Fields: []graphql.Field{
			{Name: "distance"},
		}},
	}

	result, err := s.client.GraphQL().Get().
		WithClassName(datatypes.ChatMemoryClass).
		WithFields(fields...).
		WithWhere(sessionFilter).
		WithNearText(nearText).
		WithLimit(topK).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("weaviate chat-history search failed: %w", err)
	}

	parsed, err := datatypes.ParseGraphQLResponse[datatypes.ChatMemoryQueryResponse](result)
	if err != nil {
		return nil, fmt.Errorf("failed to parse chat-history results: %w", err)
	}

	turns := make([]RecalledTurn, 0, len(parsed.Get.SeleneChatMemory))
	for _, r := range parsed.Get.SeleneChatMemory {
		turn := RecalledTurn{Question: r.Question, Answer: r.Answer}
		if r.Additional.Distance != nil {
			turn.Distance = *r.Additional.Distance
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

// StoreChatTurn indexes a completed turn for later semantic recall.
func (s *WeaviateSearcher) StoreChatTurn(ctx context.Context, sessionID, question, answer string) error {
	_, err := s.client.Data().Creator().
		WithClassName(datatypes.ChatMemoryClass).
		WithProperties(map[string]interface{}{
			"question":   question,
			"answer":     answer,
			"session_id": sessionID,
		}).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("storing chat turn: %w", err)
	}
	return nil
}
