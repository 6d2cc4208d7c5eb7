package agent

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/imkarma/logiri/internal/config"
	"github.com/imkarma/logiri/internal/errors"
)

// contextAck is the synthetic model turn that follows the folded context.
const contextAck = "Understood. I will use this context and follow these instructions."

// Gemini calls the Gemini API through the genai SDK.
type Gemini struct {
	client    *genai.Client
	model     string
	maxTokens int
	log       zerolog.Logger
}

// NewGemini creates a Gemini adapter.
func NewGemini(ctx context.Context, hc *http.Client, cfg config.Assistant, apiKey string, log zerolog.Logger) (*Gemini, error) {
	cc := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: hc,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrAssistant, "create genai client: %v", err)
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-2.5-pro"
	}
	return &Gemini{client: client, model: model, maxTokens: maxTokens(cfg), log: log}, nil
}

func (g *Gemini) Name() string { return "google" }

// foldContents places the system prompt in a leading user turn answered
// by a short model acknowledgement, then appends the history.
func foldContents(system string, history []Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history)+2)
	contents = append(contents,
		genai.NewContentFromText(system, genai.RoleUser),
		genai.NewContentFromText(contextAck, genai.RoleModel),
	)
	for _, m := range history {
		role := genai.Role(genai.RoleUser)
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}
	return contents
}

// Chat runs one GenerateContent call.
func (g *Gemini) Chat(ctx context.Context, system string, history []Message) (string, error) {
	if err := validHistory(history); err != nil {
		return "", err
	}
	start := time.Now()

	resp, err := g.client.Models.GenerateContent(ctx, g.model, foldContents(system, history),
		&genai.GenerateContentConfig{MaxOutputTokens: int32(g.maxTokens)})
	if err != nil {
		g.log.Warn().Err(err).Dur("duration", time.Since(start)).Msg("assistant call failed")
		return "", errors.Wrapf(errors.ErrAssistant, "generate content: %v", err)
	}

	text := resp.Text()
	if text == "" {
		return "", errors.Wrap(errors.ErrAssistant, "empty response")
	}

	ev := g.log.Debug().Dur("duration", time.Since(start))
	if u := resp.UsageMetadata; u != nil {
		ev = ev.Int32("input_tokens", u.PromptTokenCount).Int32("output_tokens", u.CandidatesTokenCount)
	}
	ev.Msg("assistant replied")
	return text, nil
}
