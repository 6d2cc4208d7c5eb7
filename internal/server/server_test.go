package server

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imkarma/logiri/internal/agent"
	"github.com/imkarma/logiri/internal/board"
	"github.com/imkarma/logiri/internal/chat"
	"github.com/imkarma/logiri/internal/clock"
	"github.com/imkarma/logiri/internal/config"
	"github.com/imkarma/logiri/internal/errors"
	"github.com/imkarma/logiri/internal/prompt"
	"github.com/imkarma/logiri/internal/store"
)

type fakeChat struct {
	user  prompt.User
	reply *chat.Reply
	err   error
}

func (f *fakeChat) Ask(_ context.Context, u prompt.User, _ []agent.Message) (*chat.Reply, error) {
	f.user = u
	return f.reply, f.err
}

type fakeIngest struct{ err error }

func (f fakeIngest) Run(_ context.Context, src store.Source) (*store.IngestRun, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &store.IngestRun{ID: "run-1", Source: src, Status: "completed"}, nil
}

type fixture struct {
	srv   *httptest.Server
	store *store.Store
	chat  *fakeChat
}

func newFixture(t *testing.T, ing Ingester) *fixture {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "t.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	c := clock.Fixed(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	s.SetClock(c)

	cfg := config.DefaultConfig()
	cfg.Team = []config.Member{{Name: "Lee", Role: "Developer"}}
	b := board.New(s, cfg.Team, c, zerolog.Nop())

	fc := &fakeChat{reply: &chat.Reply{Text: "hi"}}
	srv := httptest.NewServer(New(cfg, s, b, fc, ing, zerolog.Nop()).Handler())
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, store: s, chat: fc}
}

func (f *fixture) do(t *testing.T, method, path, body string) (int, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, f.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func errorBody(t *testing.T, data []byte) string {
	t.Helper()
	var e map[string]string
	require.NoError(t, json.Unmarshal(data, &e))
	require.Len(t, e, 1)
	return e["error"]
}

func TestTaskLifecycle(t *testing.T) {
	f := newFixture(t, fakeIngest{})

	code, data := f.do(t, http.MethodPost, "/api/tasks",
		`{"title":"Fix 404s","assigned_to":"Lee","priority":"urgent","estimated_hours":"3","recheck_type":"404_fix"}`)
	require.Equal(t, http.StatusCreated, code, string(data))
	var task store.Task
	require.NoError(t, json.Unmarshal(data, &task))
	assert.Equal(t, store.PriorityCritical, task.Priority)
	assert.Equal(t, 3.0, task.EstimatedHours)
	assert.Equal(t, "Developer", task.AssignedRole)

	code, data = f.do(t, http.MethodPost, "/api/tasks/1/log-time", `{"hours":1.5}`)
	require.Equal(t, http.StatusOK, code, string(data))
	require.NoError(t, json.Unmarshal(data, &task))
	assert.Equal(t, 1.5, task.LoggedHours)

	code, data = f.do(t, http.MethodPost, "/api/tasks/1/log-time", `{"hours":0}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.NotEmpty(t, errorBody(t, data))

	code, data = f.do(t, http.MethodPost, "/api/tasks/1/complete", ``)
	require.Equal(t, http.StatusOK, code, string(data))
	var done board.Completion
	require.NoError(t, json.Unmarshal(data, &done))
	assert.Equal(t, "2026-03-17", done.RecheckDate)
	assert.Equal(t, 7, done.RecheckDays)

	code, data = f.do(t, http.MethodGet, "/api/rechecks", "")
	require.Equal(t, http.StatusOK, code)
	var rechecks []store.Task
	require.NoError(t, json.Unmarshal(data, &rechecks))
	assert.Len(t, rechecks, 1)

	code, data = f.do(t, http.MethodGet, "/api/rechecks/due", "")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `[]`, string(data))

	code, data = f.do(t, http.MethodPost, "/api/tasks/1/verify", `{"passed":true}`)
	require.Equal(t, http.StatusOK, code, string(data))
	require.NoError(t, json.Unmarshal(data, &task))
	assert.True(t, task.RecheckVerified)
	assert.Equal(t, store.RecheckPass, task.RecheckResult)

	code, data = f.do(t, http.MethodGet, "/api/tasks/1/events", "")
	require.Equal(t, http.StatusOK, code)
	var events []store.Event
	require.NoError(t, json.Unmarshal(data, &events))
	assert.GreaterOrEqual(t, len(events), 4)
}

func TestListTasks_Filters(t *testing.T) {
	f := newFixture(t, fakeIngest{})
	ctx := context.Background()
	_, err := f.store.CreateTask(ctx, store.NewTask{Title: "a", AssignedTo: "Lee"})
	require.NoError(t, err)
	_, err = f.store.CreateTask(ctx, store.NewTask{Title: "b"})
	require.NoError(t, err)

	code, data := f.do(t, http.MethodGet, "/api/tasks?assignee=Lee", "")
	require.Equal(t, http.StatusOK, code)
	var tasks []store.Task
	require.NoError(t, json.Unmarshal(data, &tasks))
	require.Len(t, tasks, 1)
	assert.Equal(t, "a", tasks[0].Title)

	code, data = f.do(t, http.MethodGet, "/api/tasks?status=done", "")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `[]`, string(data))

	code, _ = f.do(t, http.MethodGet, "/api/tasks?status=archived", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestErrorMapping(t *testing.T) {
	f := newFixture(t, fakeIngest{err: errors.Wrap(errors.ErrIngestLocked, "ga4")})

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"missing task", http.MethodGet, "/api/tasks/99", "", http.StatusNotFound},
		{"bad id", http.MethodPost, "/api/tasks/abc/complete", "", http.StatusBadRequest},
		{"bad json", http.MethodPost, "/api/tasks", "{", http.StatusBadRequest},
		{"bad status", http.MethodPost, "/api/tasks/1/status", `{"status":"archived"}`, http.StatusBadRequest},
		{"unknown source", http.MethodPost, "/api/ingest/bing", "", http.StatusNotFound},
		{"locked", http.MethodPost, "/api/ingest/ga4", "", http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, data := f.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, code, string(data))
			assert.NotEmpty(t, errorBody(t, data))
		})
	}
}

func TestWriteJSON_UnencodableValueIs500(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, http.StatusOK, map[string]float64{"hours": math.Inf(1)})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, errorBody(t, rec.Body.Bytes()), "encode response")

	rec = httptest.NewRecorder()
	writeJSON(rec, http.StatusCreated, map[string]int{"id": 7})
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"id":7}`, rec.Body.String())
}

func TestChat(t *testing.T) {
	f := newFixture(t, fakeIngest{})

	code, data := f.do(t, http.MethodPost, "/api/chat", `{"user":"Lee","messages":[{"role":"user","content":"hi"}]}`)
	require.Equal(t, http.StatusOK, code, string(data))
	assert.JSONEq(t, `{"response":"hi","created_tasks":[]}`, string(data))
	assert.Equal(t, prompt.User{Name: "Lee", Role: "Developer"}, f.chat.user)

	f.chat.err = errors.Wrap(errors.ErrAssistant, "API returned status 529: overloaded")
	code, data = f.do(t, http.MethodPost, "/api/chat", `{"messages":[{"role":"user","content":"hi"}]}`)
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Contains(t, errorBody(t, data), "overloaded")
}

func TestChat_NotConfigured(t *testing.T) {
	s, err := store.New(filepath.Join(t.TempDir(), "t.db"))
	require.NoError(t, err)
	defer s.Close()
	cfg := config.DefaultConfig()
	b := board.New(s, nil, clock.RealClock{}, zerolog.Nop())
	srv := httptest.NewServer(New(cfg, s, b, nil, fakeIngest{}, zerolog.Nop()).Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/chat", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestIngestAndDashboard(t *testing.T) {
	f := newFixture(t, fakeIngest{})

	code, data := f.do(t, http.MethodPost, "/api/ingest/GSC", "")
	require.Equal(t, http.StatusOK, code, string(data))
	var run store.IngestRun
	require.NoError(t, json.Unmarshal(data, &run))
	assert.Equal(t, store.SourceGSC, run.Source)

	_, err := f.store.CreateTask(context.Background(), store.NewTask{Title: "x", Priority: store.PriorityHigh, AssignedTo: "Lee", EstimatedHours: 35})
	require.NoError(t, err)

	code, data = f.do(t, http.MethodGet, "/api/dashboard", "")
	require.Equal(t, http.StatusOK, code)
	var d dashboard
	require.NoError(t, json.Unmarshal(data, &d))
	assert.Equal(t, 1, d.Summary.Urgent)
	assert.Len(t, d.Tasks, 1)
	require.Len(t, d.Workload, 1)
	assert.Equal(t, board.WorkloadHigh, d.Workload[0].Level)

	code, data = f.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"status":"ok"}`, string(data))
}
