// Package board implements the task and recheck lifecycle on top of the
// store: completion scheduling, the due-recheck window and team workload.
package board

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/imkarma/logiri/internal/clock"
	"github.com/imkarma/logiri/internal/config"
	"github.com/imkarma/logiri/internal/errors"
	"github.com/imkarma/logiri/internal/store"
)

// RecheckLookahead is how many days ahead a recheck counts as due.
const RecheckLookahead = 3

// Service is the task board.
type Service struct {
	store  *store.Store
	clock  clock.Clock
	roster []config.Member
	log    zerolog.Logger
}

// New creates a board over s. roster is the configured team.
func New(s *store.Store, roster []config.Member, c clock.Clock, log zerolog.Logger) *Service {
	if c == nil {
		c = clock.RealClock{}
	}
	return &Service{store: s, clock: c, roster: roster, log: log}
}

// Roster returns the team the board computes workload for.
func (b *Service) Roster() []config.Member {
	return b.roster
}

// Create inserts a task. When the assignee is on the roster and no role was
// given, the roster role is used.
func (b *Service) Create(ctx context.Context, nt store.NewTask) (*store.Task, error) {
	if nt.AssignedTo != "" && nt.AssignedRole == "" {
		if m, ok := b.member(nt.AssignedTo); ok {
			nt.AssignedRole = m.Role
		}
	}
	if nt.DueDate != "" {
		if _, err := time.Parse(store.DateLayout, nt.DueDate); err != nil {
			return nil, errors.Wrapf(errors.ErrInvalidArgument, "due date %q is not YYYY-MM-DD", nt.DueDate)
		}
	}
	t, err := b.store.CreateTask(ctx, nt)
	if err != nil {
		return nil, err
	}
	b.log.Info().Int64("task", t.ID).Str("priority", string(t.Priority)).Str("assignee", t.AssignedTo).Msg("task created")
	return t, nil
}

// List returns tasks matching f in board order.
func (b *Service) List(ctx context.Context, f store.TaskFilter) ([]store.Task, error) {
	return b.store.ListTasks(ctx, f)
}

// Get returns one task.
func (b *Service) Get(ctx context.Context, id int64) (*store.Task, error) {
	return b.store.GetTask(ctx, id)
}

// UpdateStatus sets a task's status from its name. Moving a task to done
// goes through Complete so it always gets a recheck date.
func (b *Service) UpdateStatus(ctx context.Context, id int64, status string) (*store.Task, error) {
	st, ok := store.ParseStatus(status)
	if !ok {
		return nil, errors.Wrapf(errors.ErrInvalidArgument, "unknown status %q", status)
	}
	if st == store.StatusDone {
		c, err := b.Complete(ctx, id)
		if err != nil {
			return nil, err
		}
		return c.Task, nil
	}
	if err := b.store.UpdateTaskStatus(ctx, id, st); err != nil {
		return nil, err
	}
	return b.store.GetTask(ctx, id)
}

// Assign hands a task to a team member.
func (b *Service) Assign(ctx context.Context, id int64, assignee string) error {
	role := ""
	if m, ok := b.member(assignee); ok {
		role = m.Role
	}
	return b.store.AssignTask(ctx, id, assignee, role)
}

// LogTime adds hours to a task.
func (b *Service) LogTime(ctx context.Context, id int64, hours float64) (*store.Task, error) {
	if err := b.store.LogTime(ctx, id, hours); err != nil {
		return nil, err
	}
	return b.store.GetTask(ctx, id)
}

// Completion is the outcome of finishing a task.
type Completion struct {
	Task        *store.Task `json:"task"`
	RecheckDate string      `json:"recheck_date"`
	RecheckDays int         `json:"recheck_days"`
}

// Complete marks a task done and schedules its recheck by recheck type.
func (b *Service) Complete(ctx context.Context, id int64) (*Completion, error) {
	t, err := b.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	days := t.RecheckType.IntervalDays()
	date := clock.Today(b.clock).AddDate(0, 0, days)

	done, err := b.store.CompleteTask(ctx, id, date)
	if err != nil {
		return nil, err
	}
	b.log.Info().Int64("task", id).Str("recheck_date", done.RecheckDate).Int("days", days).Msg("task completed")
	return &Completion{Task: done, RecheckDate: done.RecheckDate, RecheckDays: days}, nil
}

// Verify records a recheck outcome.
func (b *Service) Verify(ctx context.Context, id int64, passed bool) (*store.Task, error) {
	if err := b.store.VerifyRecheck(ctx, id, passed); err != nil {
		return nil, err
	}
	return b.store.GetTask(ctx, id)
}

// PendingRechecks lists unverified rechecks due within the lookahead window.
func (b *Service) PendingRechecks(ctx context.Context) ([]store.Task, error) {
	dueBy := clock.Today(b.clock).AddDate(0, 0, RecheckLookahead).Format(store.DateLayout)
	return b.store.ListRechecks(ctx, dueBy, 0)
}

// AllRechecks lists every unverified recheck regardless of date.
func (b *Service) AllRechecks(ctx context.Context) ([]store.Task, error) {
	return b.store.ListRechecks(ctx, "", 0)
}

// Summary holds the dashboard header counts.
type Summary struct {
	Urgent      int `json:"urgent"`
	Active      int `json:"active"`
	Pending     int `json:"pending"`
	Blocked     int `json:"blocked"`
	Done        int `json:"done"`
	RechecksDue int `json:"rechecks_due"`
}

// Summary counts tasks for the dashboard header. Urgent means open and high
// priority or above.
func (b *Service) Summary(ctx context.Context) (*Summary, error) {
	counts, err := b.store.StatusCounts(ctx)
	if err != nil {
		return nil, err
	}
	urgent, err := b.store.CountOpenAtLeast(ctx, store.PriorityHigh)
	if err != nil {
		return nil, err
	}
	due, err := b.PendingRechecks(ctx)
	if err != nil {
		return nil, err
	}
	return &Summary{
		Urgent:      urgent,
		Active:      counts[store.StatusInProgress],
		Pending:     counts[store.StatusPending],
		Blocked:     counts[store.StatusBlocked],
		Done:        counts[store.StatusDone],
		RechecksDue: len(due),
	}, nil
}

func (b *Service) member(name string) (config.Member, bool) {
	for _, m := range b.roster {
		if m.Name == name {
			return m, true
		}
	}
	return config.Member{}, false
}
