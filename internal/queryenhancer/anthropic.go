package queryenhancer

import (
	"context"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicLLM calls the Anthropic Messages API for a single completion
// turn. Selected as the LLM backend when the configured LLM provider is
// "anthropic".
type AnthropicLLM struct {
	sdk       anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropicLLM constructs an AnthropicLLM against model (defaulting to
// Claude 3.7 Sonnet when model is empty).
func NewAnthropicLLM(apiKey, model string) *AnthropicLLM {
	opts := []option.RequestOption{option.WithAPIKey(strings.TrimSpace(apiKey))}
	m := strings.TrimSpace(model)
	if m == "" {
		m = string(anthropic.ModelClaude3_7SonnetLatest)
	}
	return &AnthropicLLM{
		sdk:       anthropic.NewClient(opts...),
		model:     m,
		maxTokens: 512,
	}
}

// Complete sends one user-turn message (with an optional system prompt) and
// returns the concatenated text content of the reply.
func (a *AnthropicLLM) Complete(ctx context.Context, system, prompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: a.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if strings.TrimSpace(system) != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := a.sdk.Messages.New(ctx, params)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(text.Text)
		}
	}
	return strings.TrimSpace(sb.String()), nil
}
