package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/innacampo/selene-demo/services/selene/datatypes"
)

// ChatStream streams a chat completion through the OpenAI API.
//
// Each delta becomes a token event delivered to the callback on the
// calling goroutine, in order. The stream ends with a done event. The
// OpenAI API never exposes reasoning chunks, so thinking events are
// never emitted.
func (o *OpenAIClient) ChatStream(ctx context.Context, messages []datatypes.ChatTurn,
	params GenerationParams, callback StreamCallback) error {

	ctx, span := tracer.Start(ctx, "OpenAIClient.ChatStream")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.model", o.model),
		attribute.Int("llm.num_messages", len(messages)),
	)

	req := openai.ChatCompletionRequest{
		Model:    o.model,
		Messages: openAIMessages(messages),
		Stream:   true,
	}
	if params.Temperature != nil {
		req.Temperature = *params.Temperature
	}
	if params.MaxTokens != nil {
		req.MaxCompletionTokens = *params.MaxTokens
	}
	if params.TopP != nil {
		req.TopP = *params.TopP
	}
	if len(params.Stop) > 0 {
		req.Stop = params.Stop
	}

	stream, err := o.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		classified := ClassifyError(err)
		span.RecordError(classified)
		span.SetStatus(codes.Error, classified.Error())
		return classified
	}
	defer stream.Close()

	fail := func(err error) error {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		// Best effort: the client gets the reason before the stream dies.
		_ = callback(StreamEvent{Type: StreamEventError, Error: err})
		return err
	}

	var responseBytes int
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			slog.Debug("OpenAI stream complete", "response_bytes", responseBytes)
			return callback(StreamEvent{Type: StreamEventDone})
		}
		if err != nil {
			return fail(fmt.Errorf("stream read failed: %w", ClassifyError(err)))
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if content := resp.Choices[0].Delta.Content; content != "" {
			responseBytes += len(content)
			if err := callback(StreamEvent{Type: StreamEventToken, Content: content}); err != nil {
				return err
			}
		}
	}
}
