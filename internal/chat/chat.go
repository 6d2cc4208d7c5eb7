// Package chat runs one assistant turn: build the prompt, ask the
// assistant, strip the task directive and create the tasks it proposes.
package chat

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/imkarma/logiri/internal/agent"
	"github.com/imkarma/logiri/internal/board"
	"github.com/imkarma/logiri/internal/errors"
	"github.com/imkarma/logiri/internal/prompt"
	"github.com/imkarma/logiri/internal/store"
)

// DefaultHours is used when a proposed task has no usable estimate.
const DefaultHours = 1.0

// Skipped reports a proposed task that was not created.
type Skipped struct {
	Title  string `json:"title"`
	Reason string `json:"reason"`
}

// Reply is the outcome of one chat turn.
type Reply struct {
	Text    string       `json:"response"`
	Created []store.Task `json:"created_tasks"`
	Skipped []Skipped    `json:"skipped_tasks,omitempty"`
}

// PromptBuilder renders the system prompt for a user.
type PromptBuilder interface {
	Build(ctx context.Context, user prompt.User) (string, error)
}

// Service wires the prompt, the assistant and the task board together.
type Service struct {
	board     *board.Service
	store     *store.Store
	prompt    PromptBuilder
	assistant agent.Assistant
	log       zerolog.Logger
}

// New creates a chat service.
func New(s *store.Store, b *board.Service, p PromptBuilder, a agent.Assistant, log zerolog.Logger) *Service {
	return &Service{store: s, board: b, prompt: p, assistant: a, log: log}
}

// Ask runs one turn. When the assistant fails no task is touched and the
// error wraps ErrAssistant.
func (s *Service) Ask(ctx context.Context, user prompt.User, history []agent.Message) (*Reply, error) {
	start := time.Now()

	system, err := s.prompt.Build(ctx, user)
	if err != nil {
		return nil, err
	}

	raw, err := s.assistant.Chat(ctx, system, history)
	if err != nil {
		if !errors.Is(err, errors.ErrAssistant) && !errors.Is(err, errors.ErrInvalidArgument) {
			err = errors.Wrapf(errors.ErrAssistant, "%v", err)
		}
		return nil, err
	}

	text, proposed, perr := agent.ParseTaskDirective(raw)
	if perr != nil {
		s.log.Warn().Err(perr).Msg("ignoring malformed task directive")
	}

	reply := &Reply{Text: text}
	reply.Created, reply.Skipped, err = s.Apply(ctx, proposed)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("user", user.Name).
		Int("proposed", len(proposed)).
		Int("created", len(reply.Created)).
		Dur("duration", time.Since(start)).
		Msg("chat turn complete")
	return reply, nil
}

// Apply creates the proposed tasks. Untitled tasks and titles that match
// an open task, or an earlier task in the same batch, are skipped.
func (s *Service) Apply(ctx context.Context, proposed []agent.ProposedTask) ([]store.Task, []Skipped, error) {
	created := []store.Task{}
	var skipped []Skipped
	seen := map[string]bool{}

	for _, p := range proposed {
		title := strings.TrimSpace(p.Title)
		if title == "" {
			skipped = append(skipped, Skipped{Reason: "empty title"})
			continue
		}
		if seen[title] {
			skipped = append(skipped, Skipped{Title: title, Reason: "duplicate in reply"})
			continue
		}
		seen[title] = true

		existing, err := s.store.FindOpenTaskByTitle(ctx, title)
		if err != nil {
			return created, skipped, err
		}
		if existing != nil {
			skipped = append(skipped, Skipped{Title: title, Reason: "already open as #" + strconv.FormatInt(existing.ID, 10)})
			continue
		}

		t, err := s.board.Create(ctx, store.NewTask{
			Title:          title,
			Description:    strings.TrimSpace(p.Description),
			RuleID:         strings.TrimSpace(p.RuleID),
			AssignedTo:     strings.TrimSpace(p.AssignedTo),
			Priority:       store.ClampPriority(p.Priority),
			EstimatedHours: Hours(p.EstimatedHours),
			DueDate:        strings.TrimSpace(p.DueDate),
			RecheckType:    store.RecheckType(strings.ToLower(strings.TrimSpace(p.RecheckType))),
		})
		if errors.Is(err, errors.ErrInvalidArgument) {
			s.log.Warn().Err(err).Str("title", title).Msg("skipping proposed task")
			skipped = append(skipped, Skipped{Title: title, Reason: err.Error()})
			continue
		}
		if err != nil {
			return created, skipped, err
		}
		s.log.Info().Int64("task", t.ID).Str("title", t.Title).Msg("created task from chat")
		created = append(created, *t)
	}
	return created, skipped, nil
}

// Hours reads estimated_hours as a number or a numeric string. Anything
// else, including non-positive and non-finite values, is DefaultHours.
func Hours(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return DefaultHours
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return DefaultHours
	}
	var h float64
	switch t := v.(type) {
	case float64:
		h = t
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return DefaultHours
		}
		h = f
	default:
		return DefaultHours
	}
	if !(h > 0) || math.IsInf(h, 0) {
		return DefaultHours
	}
	return h
}
