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

// DefaultAnthropicURL is the Messages API root.
const DefaultAnthropicURL = "https://api.anthropic.com"

// Anthropic calls the Messages API. The system prompt goes in its own
// field rather than the message list.
type Anthropic struct {
	hc        *http.Client
	baseURL   string
	model     string
	apiKey    string
	maxTokens int
	log       zerolog.Logger
}

// NewAnthropic creates an Anthropic adapter.
func NewAnthropic(hc *http.Client, cfg config.Assistant, apiKey string, log zerolog.Logger) *Anthropic {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultAnthropicURL
	}
	model := cfg.Model
	if model == "" {
		model = "claude-sonnet-4-6"
	}
	return &Anthropic{
		hc:        hc,
		baseURL:   strings.TrimSuffix(base, "/"),
		model:     model,
		apiKey:    apiKey,
		maxTokens: maxTokens(cfg),
		log:       log,
	}
}

func (a *Anthropic) Name() string { return "anthropic" }

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Chat sends one Messages API request.
func (a *Anthropic) Chat(ctx context.Context, system string, history []Message) (string, error) {
	if err := validHistory(history); err != nil {
		return "", err
	}
	start := time.Now()

	body := map[string]any{
		"model":      a.model,
		"max_tokens": a.maxTokens,
		"system":     system,
		"messages":   history,
	}
	headers := map[string]string{
		"x-api-key":         a.apiKey,
		"anthropic-version": "2023-06-01",
	}

	var resp anthropicResponse
	if err := postJSON(ctx, a.hc, a.baseURL+"/v1/messages", headers, body, &resp); err != nil {
		a.log.Warn().Err(err).Dur("duration", time.Since(start)).Msg("assistant call failed")
		return "", err
	}

	var sb strings.Builder
	for _, c := range resp.Content {
		if c.Type == "" || c.Type == "text" {
			sb.WriteString(c.Text)
		}
	}
	if sb.Len() == 0 {
		return "", errors.Wrap(errors.ErrAssistant, "empty response")
	}

	a.log.Debug().
		Int("input_tokens", resp.Usage.InputTokens).
		Int("output_tokens", resp.Usage.OutputTokens).
		Str("stop_reason", resp.StopReason).
		Dur("duration", time.Since(start)).
		Msg("assistant replied")
	return sb.String(), nil
}
