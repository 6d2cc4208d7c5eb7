package chat

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imkarma/logiri/internal/agent"
	"github.com/imkarma/logiri/internal/board"
	"github.com/imkarma/logiri/internal/clock"
	"github.com/imkarma/logiri/internal/config"
	"github.com/imkarma/logiri/internal/errors"
	"github.com/imkarma/logiri/internal/prompt"
	"github.com/imkarma/logiri/internal/store"
)

type fakeAssistant struct {
	reply   string
	err     error
	system  string
	history []agent.Message
}

func (f *fakeAssistant) Name() string { return "fake" }

func (f *fakeAssistant) Chat(_ context.Context, system string, history []agent.Message) (string, error) {
	f.system, f.history = system, history
	return f.reply, f.err
}

type staticPrompt string

func (p staticPrompt) Build(context.Context, prompt.User) (string, error) { return string(p), nil }

var ask = []agent.Message{{Role: agent.RoleUser, Content: "What now?"}}

func testService(t *testing.T, a agent.Assistant) (*Service, *store.Store) {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "t.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	c := clock.Fixed(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	roster := []config.Member{{Name: "Lee", Role: "Developer"}}
	b := board.New(s, roster, c, zerolog.Nop())
	return New(s, b, staticPrompt("SYSTEM"), a, zerolog.Nop()), s
}

func TestAsk_StripsDirectiveAndCreates(t *testing.T) {
	fa := &fakeAssistant{reply: "Briefing...\n<!-- TASKS_JSON -->\n[{\"title\":\"T\"}]\n<!-- /TASKS_JSON -->\n"}
	svc, s := testService(t, fa)

	reply, err := svc.Ask(context.Background(), prompt.User{Name: "Dana"}, ask)
	require.NoError(t, err)
	assert.Equal(t, "Briefing...", reply.Text)
	assert.Equal(t, "SYSTEM", fa.system)
	assert.Equal(t, ask, fa.history)

	require.Len(t, reply.Created, 1)
	task := reply.Created[0]
	assert.Equal(t, "T", task.Title)
	assert.Equal(t, store.PriorityMedium, task.Priority)
	assert.Equal(t, 1.0, task.EstimatedHours)
	assert.Equal(t, store.StatusPending, task.Status)

	all, err := s.ListTasks(context.Background(), store.TaskFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestAsk_AssistantErrorMutatesNothing(t *testing.T) {
	fa := &fakeAssistant{err: errors.New("connection reset")}
	svc, s := testService(t, fa)

	_, err := svc.Ask(context.Background(), prompt.User{}, ask)
	assert.ErrorIs(t, err, errors.ErrAssistant)

	all, err := s.ListTasks(context.Background(), store.TaskFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestAsk_MalformedDirective(t *testing.T) {
	fa := &fakeAssistant{reply: "Hi.\n<!-- TASKS_JSON -->\n[{oops}]\n<!-- /TASKS_JSON -->"}
	svc, _ := testService(t, fa)

	reply, err := svc.Ask(context.Background(), prompt.User{}, ask)
	require.NoError(t, err)
	assert.Equal(t, "Hi.", reply.Text)
	assert.Empty(t, reply.Created)
}

func TestApply_Dedup(t *testing.T) {
	svc, s := testService(t, &fakeAssistant{})
	ctx := context.Background()

	open, err := s.CreateTask(ctx, store.NewTask{Title: "Fix 404s"})
	require.NoError(t, err)
	finished, err := s.CreateTask(ctx, store.NewTask{Title: "Old work"})
	require.NoError(t, err)
	require.NoError(t, s.UpdateTaskStatus(ctx, finished.ID, store.StatusDone))

	created, skipped, err := svc.Apply(ctx, []agent.ProposedTask{
		{Title: "Fix 404s"},
		{Title: "Old work"},
		{Title: "New page"},
		{Title: "New page"},
		{Title: "   "},
	})
	require.NoError(t, err)

	var titles []string
	for _, c := range created {
		titles = append(titles, c.Title)
	}
	assert.Equal(t, []string{"Old work", "New page"}, titles, "done tasks do not block a new one")
	require.Len(t, skipped, 3)
	assert.Equal(t, "already open as #"+strconv.FormatInt(open.ID, 10), skipped[0].Reason)
	assert.Equal(t, "duplicate in reply", skipped[1].Reason)
	assert.Equal(t, "empty title", skipped[2].Reason)

	// Running the same batch again creates nothing.
	created, _, err = svc.Apply(ctx, []agent.ProposedTask{{Title: "New page"}, {Title: "Old work"}})
	require.NoError(t, err)
	assert.Empty(t, created)
}

func TestApply_Fields(t *testing.T) {
	svc, _ := testService(t, &fakeAssistant{})

	created, skipped, err := svc.Apply(context.Background(), []agent.ProposedTask{
		{
			Title:          "Merge trailer pages",
			AssignedTo:     "Lee",
			Priority:       "URGENT",
			EstimatedHours: json.RawMessage(`"2.5"`),
			RecheckType:    "Cannibalization_Fix",
			DueDate:        "2026-03-20",
		},
		{Title: "Bad due", DueDate: "next week"},
		{Title: "Odd priority", Priority: "whenever", EstimatedHours: json.RawMessage(`4`)},
	})
	require.NoError(t, err)
	require.Len(t, created, 2)
	require.Len(t, skipped, 1)
	assert.Equal(t, "Bad due", skipped[0].Title)

	m := created[0]
	assert.Equal(t, store.PriorityCritical, m.Priority)
	assert.Equal(t, 2.5, m.EstimatedHours)
	assert.Equal(t, "Developer", m.AssignedRole)
	assert.Equal(t, store.RecheckCannibalizationFix, m.RecheckType)
	assert.Equal(t, "2026-03-20", m.DueDate)

	assert.Equal(t, store.PriorityMedium, created[1].Priority)
	assert.Equal(t, 4.0, created[1].EstimatedHours)
}

func TestHours(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
	}{
		{"", 1},
		{"3", 3},
		{"1.5", 1.5},
		{`"2"`, 2},
		{`" 0.5 "`, 0.5},
		{`"two"`, 1},
		{"0", 1},
		{"-2", 1},
		{"null", 1},
		{"true", 1},
		{`"NaN"`, 1},
		{`"Infinity"`, 1},
		{`"-Inf"`, 1},
		{`"1e999"`, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Hours(json.RawMessage(tt.raw)), tt.raw)
	}
}
