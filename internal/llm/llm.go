// Package llm defines the completion capability used by the summarizer and
// the RAG orchestrator. Implementations exist for OpenAI and Anthropic, plus a
// deterministic mock for tests.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Yates-Labs/reseek/internal/apperr"
)

var (
	ErrCompletionFailed = fmt.Errorf("%w: completion request failed", apperr.ErrCapability)
	ErrInvalidConfig    = fmt.Errorf("%w: invalid LLM configuration", apperr.ErrInvalidConfiguration)
)

// Role is the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a chat prompt.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

func System(content string) Message    { return Message{Role: RoleSystem, Content: content} }
func User(content string) Message      { return Message{Role: RoleUser, Content: content} }
func Assistant(content string) Message { return Message{Role: RoleAssistant, Content: content} }

// Params are the per-call sampling options.
type Params struct {
	// Temperature controls randomness (0.0 = provider default)
	Temperature float64

	// MaxTokens limits the response length (0 = provider default)
	MaxTokens int
}

// Completer produces a completion for an ordered list of messages.
// Implementations must be safe for concurrent use.
type Completer interface {
	Complete(ctx context.Context, messages []Message, params Params) (string, error)
}

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config holds provider selection and credentials.
type Config struct {
	Provider string
	Model    string
	APIKey   string

	// Timeout bounds each call. Zero disables the limit.
	Timeout time.Duration
}

// DefaultConfig returns the OpenAI configuration used when nothing else is set.
func DefaultConfig() Config {
	return Config{
		Provider: ProviderOpenAI,
		Model:    "gpt-4o-mini",
		Timeout:  60 * time.Second,
	}
}

// New builds the Completer named by cfg.Provider.
func New(cfg Config) (Completer, error) {
	switch strings.ToLower(cfg.Provider) {
	case ProviderOpenAI, "":
		return NewOpenAILLM(cfg)
	case ProviderAnthropic:
		return NewAnthropicLLM(cfg)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
}

func validateMessages(messages []Message) error {
	if len(messages) == 0 {
		return fmt.Errorf("%w: messages cannot be empty", ErrInvalidConfig)
	}
	return nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
