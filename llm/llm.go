// Package llm defines the opaque language-model oracle the bot consumes.
//
// The oracle is request/response only: messages in, text out. It performs
// no retries of its own; timeout and retry policy belong to the caller.
package llm

import (
	"context"
	"errors"

	"github.com/jaidee-care/jaidee/types"
)

// Sentinel errors the oracle may surface.
var (
	// ErrTimeout indicates the model call exceeded its deadline.
	ErrTimeout = errors.New("llm: request timed out")

	// ErrRateLimited indicates the provider rejected the call for rate.
	ErrRateLimited = errors.New("llm: rate limited")

	// ErrEmptyResponse indicates the model returned no text.
	ErrEmptyResponse = errors.New("llm: empty response")
)

// GenerateConfig holds per-call sampling parameters.
// Conversational generation and summarization use different configs.
type GenerateConfig struct {
	Model       string
	Temperature float64
	MaxTokens   int
	TopP        float64
}

// ChatConfig returns the default configuration for conversational turns.
func ChatConfig(model string) GenerateConfig {
	return GenerateConfig{
		Model:       model,
		Temperature: 0.7,
		MaxTokens:   1024,
		TopP:        0.95,
	}
}

// SummaryConfig returns the low-temperature, token-capped configuration
// used for compaction summaries. Summaries must be terse and deterministic
// relative to normal chat.
func SummaryConfig(model string) GenerateConfig {
	return GenerateConfig{
		Model:       model,
		Temperature: 0.2,
		MaxTokens:   512,
		TopP:        0.9,
	}
}

// Oracle generates a reply for an ordered message list.
type Oracle interface {
	// Generate returns the model's text for messages. The messages must
	// already be dispatch-filtered: no synthetic roles. It honors ctx
	// cancellation and deadlines.
	Generate(ctx context.Context, messages []types.Message, cfg GenerateConfig) (string, error)
}
