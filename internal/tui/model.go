// Package tui is the interactive dashboard: the task board by status, the
// header counts, the rechecks due and team workload.
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/imkarma/logiri/internal/board"
	"github.com/imkarma/logiri/internal/store"
)

// view represents which screen the TUI is on.
type view int

const (
	viewBoard  view = iota // board columns (main)
	viewDetail             // task detail with events
	viewCreate             // new task form
	viewLog                // log time on the selected task
)

const numColumns = 4

var columnStatuses = [numColumns]store.TaskStatus{
	store.StatusPending,
	store.StatusInProgress,
	store.StatusBlocked,
	store.StatusDone,
}

var columnLabels = [numColumns]string{
	"PENDING",
	"IN PROGRESS",
	"BLOCKED",
	"DONE",
}

// refreshEvery is the auto-refresh interval.
const refreshEvery = 5 * time.Second

// Model is the top-level bubbletea model.
type Model struct {
	board  *board.Service
	store  *store.Store
	width  int
	height int

	currentView view

	columns   [numColumns][]store.Task
	cursorCol int
	cursorRow int

	summary  *board.Summary
	rechecks []store.Task
	workload []board.Workload

	titleInput     textinput.Model
	assignInput    textinput.Model
	hoursInput     textinput.Model
	inputFocused   int // 0=title, 1=assignee
	createPriority store.Priority

	selectedTask *store.Task
	detail       viewport.Model

	statusMsg  string
	statusErr  bool
	statusTime time.Time
	refreshing bool
	quitting   bool
}

// New creates the dashboard model.
func New(b *board.Service, s *store.Store) Model {
	ti := textinput.New()
	ti.Placeholder = "Task title..."
	ti.CharLimit = 120
	ti.Width = 50

	ai := textinput.New()
	ai.Placeholder = "Assignee (optional)..."
	ai.CharLimit = 60
	ai.Width = 50

	hi := textinput.New()
	hi.Placeholder = "Hours, e.g. 1.5"
	hi.CharLimit = 8
	hi.Width = 20

	return Model{
		board:          b,
		store:          s,
		currentView:    viewBoard,
		titleInput:     ti,
		assignInput:    ai,
		hoursInput:     hi,
		createPriority: store.PriorityMedium,
		detail:         viewport.New(80, 20),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.refresh(), tickCmd())
}

type dataMsg struct {
	tasks    []store.Task
	summary  *board.Summary
	rechecks []store.Task
	workload []board.Workload
	err      error
}

type detailMsg struct {
	task   *store.Task
	events []store.Event
	err    error
}

// actionMsg reports the outcome of a mutation.
type actionMsg struct {
	text string
	err  error
}

type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(refreshEvery, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) refresh() tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		var (
			d   dataMsg
			err error
		)
		if d.tasks, err = m.board.List(ctx, store.TaskFilter{}); err != nil {
			return dataMsg{err: err}
		}
		if d.summary, err = m.board.Summary(ctx); err != nil {
			return dataMsg{err: err}
		}
		if d.rechecks, err = m.board.PendingRechecks(ctx); err != nil {
			return dataMsg{err: err}
		}
		if d.workload, err = m.board.Workload(ctx); err != nil {
			return dataMsg{err: err}
		}
		return d
	}
}

func (m Model) loadDetail(id int64) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		t, err := m.board.Get(ctx, id)
		if err != nil {
			return detailMsg{err: err}
		}
		events, err := m.store.GetEvents(ctx, id)
		return detailMsg{task: t, events: events, err: err}
	}
}

func (m *Model) rebuildColumns(tasks []store.Task) {
	for i := range m.columns {
		m.columns[i] = nil
	}
	for _, t := range tasks {
		for i, status := range columnStatuses {
			if t.Status == status {
				m.columns[i] = append(m.columns[i], t)
				break
			}
		}
	}
	m.clampCursor()
}

func (m *Model) clampCursor() {
	m.cursorCol = max(0, min(m.cursorCol, numColumns-1))
	col := m.columns[m.cursorCol]
	m.cursorRow = max(0, min(m.cursorRow, len(col)-1))
}

func (m *Model) selectedTaskFromBoard() *store.Task {
	col := m.columns[m.cursorCol]
	if m.cursorRow < len(col) {
		t := col[m.cursorRow]
		return &t
	}
	return nil
}

func (m *Model) setStatus(text string, isErr bool) {
	m.statusMsg = text
	m.statusErr = isErr
	m.statusTime = time.Now()
}
