// Package agent talks to the LLM provider behind the chat assistant and
// parses the task directive out of its replies.
package agent

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/imkarma/logiri/internal/config"
	"github.com/imkarma/logiri/internal/errors"
)

// Roles used in a conversation history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of the conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Assistant is the interface every provider adapter implements.
type Assistant interface {
	// Chat sends the system prompt and history and returns the reply text.
	Chat(ctx context.Context, system string, history []Message) (string, error)

	// Name returns the provider name.
	Name() string
}

// NewAssistant creates the adapter for the configured provider. The API key
// must be present in the environment.
func NewAssistant(ctx context.Context, cfg config.Assistant, log zerolog.Logger) (Assistant, error) {
	key := cfg.APIKey()
	if key == "" {
		return nil, errors.Wrapf(errors.ErrMissingCredentials, "assistant: %s is not set", cfg.APIKeyEnv)
	}
	hc := &http.Client{Timeout: cfg.DefaultTimeout()}
	log = log.With().Str("provider", cfg.Provider).Str("model", cfg.Model).Logger()

	switch cfg.Provider {
	case "anthropic":
		return NewAnthropic(hc, cfg, key, log), nil
	case "openai":
		return NewOpenAI(hc, cfg, key, log), nil
	case "google":
		return NewGemini(ctx, hc, cfg, key, log)
	default:
		return nil, errors.Wrapf(errors.ErrConfigInvalid, "unsupported assistant provider: %s", cfg.Provider)
	}
}

func maxTokens(cfg config.Assistant) int {
	if cfg.MaxTokens > 0 {
		return cfg.MaxTokens
	}
	return 2048
}

func validHistory(history []Message) error {
	if len(history) == 0 {
		return errors.Wrap(errors.ErrInvalidArgument, "empty conversation")
	}
	for _, m := range history {
		if m.Role != RoleUser && m.Role != RoleAssistant {
			return errors.Wrapf(errors.ErrInvalidArgument, "unknown message role %q", m.Role)
		}
	}
	return nil
}
