package tui

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/imkarma/logiri/internal/store"
)

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch m.currentView {
		case viewCreate:
			return m.handleCreateKey(msg)
		case viewLog:
			return m.handleLogKey(msg)
		case viewDetail:
			return m.handleDetailKey(msg)
		}
		return m.handleBoardKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.detail.Width = max(20, m.width-4)
		m.detail.Height = max(6, m.height-6)
		return m, nil

	case dataMsg:
		m.refreshing = false
		if msg.err != nil {
			m.setStatus("Refresh failed: "+msg.err.Error(), true)
			return m, nil
		}
		m.rebuildColumns(msg.tasks)
		m.summary = msg.summary
		m.rechecks = msg.rechecks
		m.workload = msg.workload
		return m, nil

	case detailMsg:
		if msg.err != nil {
			m.setStatus("Load failed: "+msg.err.Error(), true)
			return m, nil
		}
		m.selectedTask = msg.task
		m.detail.SetContent(renderDetail(msg.task, msg.events))
		m.detail.GotoTop()
		m.currentView = viewDetail
		return m, nil

	case actionMsg:
		if msg.err != nil {
			m.setStatus(msg.err.Error(), true)
		} else {
			m.setStatus(msg.text, false)
		}
		return m, m.refresh()

	case tickMsg:
		cmds := []tea.Cmd{tickCmd()}
		if m.statusMsg != "" && time.Since(m.statusTime) > refreshEvery {
			m.statusMsg = ""
		}
		if !m.refreshing {
			m.refreshing = true
			cmds = append(cmds, m.refresh())
		}
		return m, tea.Batch(cmds...)
	}

	if m.currentView == viewDetail {
		var cmd tea.Cmd
		m.detail, cmd = m.detail.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleBoardKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "left", "h":
		if m.cursorCol > 0 {
			m.cursorCol--
			m.clampCursor()
		}
	case "right", "l":
		if m.cursorCol < numColumns-1 {
			m.cursorCol++
			m.clampCursor()
		}
	case "up", "k":
		if m.cursorRow > 0 {
			m.cursorRow--
		}
	case "down", "j":
		if m.cursorRow < len(m.columns[m.cursorCol])-1 {
			m.cursorRow++
		}

	case "enter":
		if t := m.selectedTaskFromBoard(); t != nil {
			return m, m.loadDetail(t.ID)
		}

	case "n":
		m.currentView = viewCreate
		m.inputFocused = 0
		m.createPriority = store.PriorityMedium
		m.titleInput.Reset()
		m.assignInput.Reset()
		m.assignInput.Blur()
		m.titleInput.Focus()
		return m, textinput.Blink

	case "s":
		if t := m.selectedTaskFromBoard(); t != nil {
			if t.Status == store.StatusDone {
				m.setStatus("Task is already done", true)
				return m, nil
			}
			return m, m.updateStatus(t.ID, nextStatus(t.Status))
		}

	case "d":
		if t := m.selectedTaskFromBoard(); t != nil && t.Status != store.StatusDone {
			return m, m.complete(t.ID)
		}

	case "t":
		if t := m.selectedTaskFromBoard(); t != nil {
			m.selectedTask = t
			m.currentView = viewLog
			m.hoursInput.Reset()
			m.hoursInput.Focus()
			return m, textinput.Blink
		}

	case "v", "x":
		if len(m.rechecks) > 0 {
			return m, m.verify(m.rechecks[0].ID, msg.String() == "v")
		}
		m.setStatus("No rechecks due", false)

	case "r":
		m.refreshing = true
		return m, m.refresh()
	}
	return m, nil
}

func (m Model) handleDetailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "q", "backspace":
		m.currentView = viewBoard
		m.selectedTask = nil
		return m, nil
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.detail, cmd = m.detail.Update(msg)
	return m, cmd
}

func (m Model) handleCreateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.currentView = viewBoard
		return m, nil
	case "tab", "shift+tab":
		if m.inputFocused == 0 {
			m.inputFocused = 1
			m.titleInput.Blur()
			m.assignInput.Focus()
			return m, textinput.Blink
		}
		m.inputFocused = 0
		m.assignInput.Blur()
		m.titleInput.Focus()
		return m, textinput.Blink
	case "ctrl+p":
		m.createPriority = nextPriority(m.createPriority)
		return m, nil
	case "enter":
		title := strings.TrimSpace(m.titleInput.Value())
		if title == "" {
			m.setStatus("Title is required", true)
			return m, nil
		}
		m.currentView = viewBoard
		return m, m.create(store.NewTask{
			Title:      title,
			AssignedTo: strings.TrimSpace(m.assignInput.Value()),
			Priority:   m.createPriority,
		})
	}

	var cmd tea.Cmd
	if m.inputFocused == 0 {
		m.titleInput, cmd = m.titleInput.Update(msg)
	} else {
		m.assignInput, cmd = m.assignInput.Update(msg)
	}
	return m, cmd
}

func (m Model) handleLogKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.currentView = viewBoard
		return m, nil
	case "enter":
		hours, err := strconv.ParseFloat(strings.TrimSpace(m.hoursInput.Value()), 64)
		if err != nil || !(hours > 0) || math.IsInf(hours, 0) {
			m.setStatus("Hours must be a positive number", true)
			return m, nil
		}
		m.currentView = viewBoard
		return m, m.logTime(m.selectedTask.ID, hours)
	}
	var cmd tea.Cmd
	m.hoursInput, cmd = m.hoursInput.Update(msg)
	return m, cmd
}

// nextStatus cycles pending -> in_progress -> blocked -> pending. Done is
// reached through completion only.
func nextStatus(s store.TaskStatus) store.TaskStatus {
	switch s {
	case store.StatusPending:
		return store.StatusInProgress
	case store.StatusInProgress:
		return store.StatusBlocked
	}
	return store.StatusPending
}

func nextPriority(p store.Priority) store.Priority {
	switch p {
	case store.PriorityLow:
		return store.PriorityMedium
	case store.PriorityMedium:
		return store.PriorityHigh
	case store.PriorityHigh:
		return store.PriorityCritical
	}
	return store.PriorityLow
}

func (m Model) create(nt store.NewTask) tea.Cmd {
	return func() tea.Msg {
		t, err := m.board.Create(context.Background(), nt)
		if err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{text: fmt.Sprintf("Created #%d", t.ID)}
	}
}

func (m Model) updateStatus(id int64, status store.TaskStatus) tea.Cmd {
	return func() tea.Msg {
		if _, err := m.board.UpdateStatus(context.Background(), id, string(status)); err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{text: fmt.Sprintf("#%d -> %s", id, status)}
	}
}

func (m Model) complete(id int64) tea.Cmd {
	return func() tea.Msg {
		c, err := m.board.Complete(context.Background(), id)
		if err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{text: fmt.Sprintf("#%d done, recheck %s", id, c.RecheckDate)}
	}
}

func (m Model) logTime(id int64, hours float64) tea.Cmd {
	return func() tea.Msg {
		t, err := m.board.LogTime(context.Background(), id, hours)
		if err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{text: fmt.Sprintf("#%d logged %.1fh (total %.1fh)", id, hours, t.LoggedHours)}
	}
}

func (m Model) verify(id int64, passed bool) tea.Cmd {
	return func() tea.Msg {
		t, err := m.board.Verify(context.Background(), id, passed)
		if err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{text: fmt.Sprintf("#%d recheck %s", id, t.RecheckResult)}
	}
}
