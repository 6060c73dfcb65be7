package llm

import (
	"context"

	"github.com/innacampo/selene-demo/services/selene/datatypes"
)

type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopK        *int     `json:"top_k"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// LLMClient defines the standard interface for any LLM backend
type LLMClient interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)
	Chat(ctx context.Context, messages []datatypes.ChatTurn, params GenerationParams) (string, error)
}

// StreamingClient is implemented by backends that can stream chat tokens.
type StreamingClient interface {
	ChatStream(ctx context.Context, messages []datatypes.ChatTurn, params GenerationParams,
		callback StreamCallback) error
}
