package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicMaxTokens = 1024

// AnthropicLLM implements Completer using the Anthropic Messages API.
// System messages are lifted into the request's system prompt.
type AnthropicLLM struct {
	client *anthropic.Client
	model  anthropic.Model
	config Config
}

func NewAnthropicLLM(config Config) (*AnthropicLLM, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("%w: missing Anthropic API key (set ANTHROPIC_API_KEY)", ErrInvalidConfig)
	}

	model := anthropic.ModelClaudeHaiku4_5
	if config.Model != "" && !strings.HasPrefix(config.Model, "gpt-") {
		model = anthropic.Model(config.Model)
	}

	client := anthropic.NewClient(option.WithAPIKey(config.APIKey))
	return &AnthropicLLM{
		client: &client,
		model:  model,
		config: config,
	}, nil
}

func (a *AnthropicLLM) Complete(ctx context.Context, messages []Message, p Params) (string, error) {
	if err := validateMessages(messages); err != nil {
		return "", err
	}

	maxTokens := int64(defaultAnthropicMaxTokens)
	if p.MaxTokens > 0 {
		maxTokens = int64(p.MaxTokens)
	}

	params := anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: maxTokens,
	}
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			params.System = append(params.System, anthropic.TextBlockParam{Text: m.Content})
		case RoleAssistant:
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	if len(params.Messages) == 0 {
		return "", fmt.Errorf("%w: at least one user message is required", ErrInvalidConfig)
	}
	if p.Temperature > 0 {
		params.Temperature = anthropic.Float(p.Temperature)
	}

	ctx, cancel := withTimeout(ctx, a.config.Timeout)
	defer cancel()

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%w: anthropic: %w", ErrCompletionFailed, err)
	}
	if len(resp.Content) == 0 {
		return "", fmt.Errorf("%w: no response from anthropic", ErrCompletionFailed)
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String(), nil
}
