package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/imkarma/logiri/internal/agent"
	"github.com/imkarma/logiri/internal/board"
	"github.com/imkarma/logiri/internal/chat"
	"github.com/imkarma/logiri/internal/errors"
	"github.com/imkarma/logiri/internal/prompt"
	"github.com/imkarma/logiri/internal/store"
)

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	var f store.TaskFilter
	if v := r.URL.Query().Get("status"); v != "" {
		st, ok := store.ParseStatus(v)
		if !ok {
			s.writeError(w, r, errors.Wrapf(errors.ErrInvalidArgument, "unknown status %q", v))
			return
		}
		f.Status = st
	}
	f.Assignee = r.URL.Query().Get("assignee")

	tasks, err := s.board.List(r.Context(), f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(tasks))
}

type createTaskRequest struct {
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	RuleID         string          `json:"rule_id"`
	AssignedTo     string          `json:"assigned_to"`
	AssignedRole   string          `json:"assigned_role"`
	Priority       string          `json:"priority"`
	EstimatedHours json.RawMessage `json:"estimated_hours"`
	DueDate        string          `json:"due_date"`
	RecheckType    string          `json:"recheck_type"`
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	t, err := s.board.Create(r.Context(), store.NewTask{
		Title:          req.Title,
		Description:    req.Description,
		RuleID:         req.RuleID,
		AssignedTo:     req.AssignedTo,
		AssignedRole:   req.AssignedRole,
		Priority:       store.ClampPriority(req.Priority),
		EstimatedHours: chat.Hours(req.EstimatedHours),
		DueDate:        req.DueDate,
		RecheckType:    store.RecheckType(strings.ToLower(req.RecheckType)),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id, err := taskID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	t, err := s.board.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id, err := taskID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	t, err := s.board.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request) {
	id, err := taskID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req struct {
		Assignee string `json:"assignee"`
	}
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.board.Assign(r.Context(), id, strings.TrimSpace(req.Assignee)); err != nil {
		s.writeError(w, r, err)
		return
	}
	t, err := s.board.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleLogTime(w http.ResponseWriter, r *http.Request) {
	id, err := taskID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req struct {
		Hours float64 `json:"hours"`
	}
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	t, err := s.board.LogTime(r.Context(), id, req.Hours)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	id, err := taskID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	c, err := s.board.Complete(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	id, err := taskID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req struct {
		Passed bool `json:"passed"`
	}
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	t, err := s.board.Verify(r.Context(), id, req.Passed)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	id, err := taskID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if _, err := s.board.Get(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	events, err := s.store.GetEvents(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(events))
}

func (s *Server) handleRechecks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.board.AllRechecks(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(tasks))
}

func (s *Server) handleRechecksDue(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.board.PendingRechecks(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(tasks))
}

func (s *Server) handleWorkload(w http.ResponseWriter, r *http.Request) {
	wl, err := s.board.Workload(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(wl))
}

type dashboard struct {
	Summary   *board.Summary      `json:"summary"`
	Tasks     []store.Task        `json:"tasks"`
	Rechecks  []store.Task        `json:"rechecks"`
	Workload  []board.Workload    `json:"workload"`
	Snapshots []store.SegmentInfo `json:"snapshots"`
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var (
		d   dashboard
		err error
	)
	if d.Summary, err = s.board.Summary(ctx); err != nil {
		s.writeError(w, r, err)
		return
	}
	if d.Tasks, err = s.store.ListOpenTasks(ctx, 0); err != nil {
		s.writeError(w, r, err)
		return
	}
	if d.Rechecks, err = s.board.PendingRechecks(ctx); err != nil {
		s.writeError(w, r, err)
		return
	}
	if d.Workload, err = s.board.Workload(ctx); err != nil {
		s.writeError(w, r, err)
		return
	}
	if d.Snapshots, err = s.store.SnapshotInventory(ctx); err != nil {
		s.writeError(w, r, err)
		return
	}
	d.Tasks, d.Rechecks = orEmpty(d.Tasks), orEmpty(d.Rechecks)
	d.Workload, d.Snapshots = orEmpty(d.Workload), orEmpty(d.Snapshots)
	writeJSON(w, http.StatusOK, d)
}

type chatRequest struct {
	User     string          `json:"user"`
	Messages []agent.Message `json:"messages"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.chat == nil {
		s.writeError(w, r, errors.Wrap(errors.ErrMissingCredentials, "assistant is not configured"))
		return
	}
	var req chatRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	user := prompt.User{Name: req.User}
	if m, ok := s.cfg.Member(req.User); ok {
		user.Role = m.Role
	}

	reply, err := s.chat.Ask(r.Context(), user, req.Messages)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	reply.Created = orEmpty(reply.Created)
	writeJSON(w, http.StatusOK, reply)
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	src, ok := store.ParseSource(chi.URLParam(r, "source"))
	if !ok {
		s.writeError(w, r, errors.Wrapf(errors.ErrUnknownSource, "%q", chi.URLParam(r, "source")))
		return
	}
	run, err := s.ingest.Run(r.Context(), src)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleIngestRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.ListIngestRuns(r.Context(), store.Source(r.URL.Query().Get("source")), 50)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(runs))
}

func (s *Server) handleInventory(w http.ResponseWriter, r *http.Request) {
	inv, err := s.store.SnapshotInventory(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(inv))
}
