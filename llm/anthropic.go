package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/jaidee-care/jaidee/types"
)

// AnthropicOracle implements Oracle using the Anthropic Messages API.
type AnthropicOracle struct {
	client *anthropic.Client
}

// NewAnthropicOracle creates an oracle from an existing client.
// The caller owns the client lifecycle.
func NewAnthropicOracle(client *anthropic.Client) *AnthropicOracle {
	return &AnthropicOracle{client: client}
}

// Generate sends the messages to the Messages API and returns the text of
// the response.
func (o *AnthropicOracle) Generate(ctx context.Context, messages []types.Message, cfg GenerateConfig) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(cfg.Model),
		MaxTokens: int64(cfg.MaxTokens),
	}
	if cfg.Temperature > 0 {
		params.Temperature = anthropic.Float(cfg.Temperature)
	}
	if cfg.TopP > 0 {
		params.TopP = anthropic.Float(cfg.TopP)
	}

	var system []string
	for _, m := range messages {
		switch m.Role {
		case types.RoleSystem:
			system = append(system, m.Content)
		case types.RoleUser:
			params.Messages = append(params.Messages,
				anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		case types.RoleAssistant:
			params.Messages = append(params.Messages,
				anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			return "", fmt.Errorf("llm: role %q must not reach the API", m.Role)
		}
	}
	if len(system) > 0 {
		params.System = []anthropic.TextBlockParam{{Text: strings.Join(system, "\n\n")}}
	}

	response, err := o.client.Messages.New(ctx, params)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return "", fmt.Errorf("llm: generate: %w", err)
	}

	var out strings.Builder
	for _, block := range response.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			out.WriteString(text.Text)
		}
	}
	if out.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return out.String(), nil
}
