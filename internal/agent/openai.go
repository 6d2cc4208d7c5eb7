package agent

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/imkarma/logiri/internal/config"
	"github.com/imkarma/logiri/internal/errors"
)

// DefaultOpenAIURL is the OpenAI API root. Any compatible server works.
const DefaultOpenAIURL = "https://api.openai.com"

// OpenAI calls an OpenAI-compatible chat completions endpoint.
type OpenAI struct {
	hc        *http.Client
	baseURL   string
	model     string
	apiKey    string
	maxTokens int
	log       zerolog.Logger
}

// NewOpenAI creates an OpenAI-compatible adapter.
func NewOpenAI(hc *http.Client, cfg config.Assistant, apiKey string, log zerolog.Logger) *OpenAI {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultOpenAIURL
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4o"
	}
	return &OpenAI{
		hc:        hc,
		baseURL:   strings.TrimSuffix(base, "/"),
		model:     model,
		apiKey:    apiKey,
		maxTokens: maxTokens(cfg),
		log:       log,
	}
}

func (o *OpenAI) Name() string { return "openai" }

// Chat sends the system prompt as the leading system message.
func (o *OpenAI) Chat(ctx context.Context, system string, history []Message) (string, error) {
	if err := validHistory(history); err != nil {
		return "", err
	}
	start := time.Now()

	msgs := make([]Message, 0, len(history)+1)
	msgs = append(msgs, Message{Role: "system", Content: system})
	msgs = append(msgs, history...)

	body := map[string]any{
		"model":      o.model,
		"messages":   msgs,
		"max_tokens": o.maxTokens,
	}
	headers := map[string]string{"Authorization": "Bearer " + o.apiKey}

	var resp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := postJSON(ctx, o.hc, o.baseURL+"/v1/chat/completions", headers, body, &resp); err != nil {
		o.log.Warn().Err(err).Dur("duration", time.Since(start)).Msg("assistant call failed")
		return "", err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", errors.Wrap(errors.ErrAssistant, "empty response")
	}

	o.log.Debug().Dur("duration", time.Since(start)).Msg("assistant replied")
	return resp.Choices[0].Message.Content, nil
}
