// Package llmclient adapts internal/providers.LLMClient to the two entry
// points the ToC pipeline needs (spec.md §6): a plain completion call and
// one that also reports whether the model's output was truncated. Every
// call runs at temperature 0 for determinism, is tagged with a UUID
// correlation ID for call recording and log correlation, and is retried
// on transport failure via github.com/avast/retry-go/v4.
package llmclient

import (
	"context"
	"errors"
	"time"

	retry "github.com/avast/retry-go/v4"
	"github.com/google/uuid"

	"github.com/jackzampolin/shelf/internal/providers"
	"github.com/jackzampolin/shelf/internal/tocpipe/pipectx"
	"github.com/jackzampolin/shelf/internal/tocpipe/tocerrors"
)

// FinishReason normalizes provider-specific stop reasons into the two
// values the spec cares about.
type FinishReason string

const (
	Finished          FinishReason = "finished"
	MaxOutputReached  FinishReason = "max_output_reached"
)

// normalize maps an upstream finish_reason ("stop", "length", "tool_calls",
// ...) onto the spec's two-valued vocabulary.
func normalize(raw string) FinishReason {
	switch raw {
	case "length", "max_tokens", "MAX_TOKENS":
		return MaxOutputReached
	default:
		return Finished
	}
}

// ChatMessage is one turn of conversation history.
type ChatMessage struct {
	Role    string // "system", "user", "assistant"
	Content string
}

// Request describes one completion call.
type Request struct {
	Model     string
	Prompt    string
	History   []ChatMessage
	PromptKey string // for call recording/logging only
}

// Client is the LLM transport surface the pipeline depends on.
type Client interface {
	// Complete returns the model's text response.
	Complete(ctx context.Context, req Request) (string, error)

	// CompleteWithFinish additionally reports whether output was truncated.
	CompleteWithFinish(ctx context.Context, req Request) (text string, finish FinishReason, err error)
}

// MaxAttempts is the transport retry budget from spec.md §6 ("up to 10
// attempts, ~1s between").
const MaxAttempts = 10

// RetryDelay is the base delay between transport retry attempts.
const RetryDelay = time.Second

// providerClient wraps a providers.LLMClient with the pipeline's retry and
// finish-reason normalization policy.
type providerClient struct {
	inner providers.LLMClient
}

// New wraps an existing providers.LLMClient (OpenRouter, the test mock,
// ...) as a pipeline Client.
func New(inner providers.LLMClient) Client {
	return &providerClient{inner: inner}
}

func (c *providerClient) Complete(ctx context.Context, req Request) (string, error) {
	text, _, err := c.CompleteWithFinish(ctx, req)
	return text, err
}

func (c *providerClient) CompleteWithFinish(ctx context.Context, req Request) (string, FinishReason, error) {
	logger := pipectx.LoggerFrom(ctx)
	recorder := pipectx.RecorderFrom(ctx)
	requestID := uuid.New().String()

	messages := make([]providers.Message, 0, len(req.History)+1)
	for _, m := range req.History {
		messages = append(messages, providers.Message{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, providers.Message{Role: "user", Content: req.Prompt})

	chatReq := &providers.ChatRequest{
		Messages:    messages,
		Model:       req.Model,
		Temperature: 0,
	}

	var result *providers.ChatResult
	start := time.Now()

	err := retry.Do(
		func() error {
			res, chatErr := c.inner.Chat(ctx, chatReq)
			if chatErr != nil {
				return chatErr
			}
			if !res.Success {
				return errors.New(res.ErrorMessage)
			}
			result = res
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(MaxAttempts),
		retry.Delay(RetryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			if logger != nil {
				logger.Warn("llm transport retry",
					"request_id", requestID,
					"attempt", n+1,
					"prompt_key", req.PromptKey,
					"error", err)
			}
		}),
	)

	latencyMs := int(time.Since(start).Milliseconds())

	if err != nil {
		if recorder != nil {
			recorder.RecordCall(ctx, requestID, req.PromptKey, latencyMs, 0, 0, false, err.Error())
		}
		return "", Finished, errors.Join(tocerrors.ErrTransportExhausted, err)
	}

	if recorder != nil {
		recorder.RecordCall(ctx, requestID, req.PromptKey, latencyMs, result.PromptTokens, result.CompletionTokens, true, "")
	}

	return result.Content, normalize(result.FinishReason), nil
}
