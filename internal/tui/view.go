package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/imkarma/logiri/internal/board"
	"github.com/imkarma/logiri/internal/store"
)

// --- Color palette ---
var (
	clrSubtle    = lipgloss.AdaptiveColor{Light: "#555555", Dark: "#666666"}
	clrHighlight = lipgloss.AdaptiveColor{Light: "#0F766E", Dark: "#2DD4BF"}
	clrGreen     = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	clrYellow    = lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#F59E0B"}
	clrRed       = lipgloss.AdaptiveColor{Light: "#B91C1C", Dark: "#F87171"}
	clrBlue      = lipgloss.AdaptiveColor{Light: "#1D4ED8", Dark: "#60A5FA"}
	clrCyan      = lipgloss.AdaptiveColor{Light: "#0E7490", Dark: "#22D3EE"}
	clrWhite     = lipgloss.AdaptiveColor{Light: "#333333", Dark: "#DDDDDD"}
	clrDim       = lipgloss.AdaptiveColor{Light: "#999999", Dark: "#555555"}
)

// --- Styles ---
var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(clrHighlight)
	dimStyle    = lipgloss.NewStyle().Foreground(clrDim)
	subtleStyle = lipgloss.NewStyle().Foreground(clrSubtle)
	textStyle   = lipgloss.NewStyle().Foreground(clrWhite)

	columnStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(clrSubtle).
			Padding(0, 1)

	columnSelectedStyle = columnStyle.BorderForeground(clrHighlight)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(clrSubtle).
			Padding(0, 1)

	popupStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(clrHighlight).
			Padding(1, 2).
			Width(60)

	statusStyle = lipgloss.NewStyle().Foreground(clrGreen).Bold(true)
	errorStyle  = lipgloss.NewStyle().Foreground(clrRed).Bold(true)

	footerKeyStyle  = lipgloss.NewStyle().Bold(true).Foreground(clrHighlight)
	footerDescStyle = lipgloss.NewStyle().Foreground(clrSubtle)
)

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	switch m.currentView {
	case viewDetail:
		return m.viewDetail()
	case viewCreate:
		return m.viewBoard() + "\n" + m.viewCreatePopup()
	case viewLog:
		return m.viewBoard() + "\n" + m.viewLogPopup()
	}
	return m.viewBoard()
}

func (m Model) viewBoard() string {
	var b strings.Builder

	b.WriteString(m.header())
	b.WriteString("\n\n")

	colWidth := 30
	if m.width > 0 {
		colWidth = max(20, m.width/numColumns-4)
	}
	cols := make([]string, numColumns)
	for i := range numColumns {
		cols[i] = m.renderColumn(i, colWidth)
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cols...))
	b.WriteString("\n")

	panels := lipgloss.JoinHorizontal(lipgloss.Top,
		panelStyle.Render(m.rechecksPanel()),
		panelStyle.Render(m.workloadPanel()))
	b.WriteString(panels)
	b.WriteString("\n")

	if m.statusMsg != "" {
		if m.statusErr {
			b.WriteString(errorStyle.Render("  " + m.statusMsg))
		} else {
			b.WriteString(statusStyle.Render("  " + m.statusMsg))
		}
		b.WriteString("\n")
	}
	b.WriteString(renderFooter([]struct{ key, desc string }{
		{"←↓↑→", "navigate"},
		{"enter", "details"},
		{"n", "new"},
		{"s", "cycle status"},
		{"d", "done"},
		{"t", "log time"},
		{"v/x", "verify pass/fail"},
		{"r", "refresh"},
		{"q", "quit"},
	}))
	return b.String()
}

func (m Model) header() string {
	title := titleStyle.Render("logiri")
	if m.summary == nil {
		return title + dimStyle.Render("  loading...")
	}
	s := m.summary
	parts := []string{
		countLabel(s.Urgent, "urgent", clrRed),
		countLabel(s.Active, "active", clrBlue),
		countLabel(s.Pending, "pending", clrWhite),
		countLabel(s.Blocked, "blocked", clrYellow),
		countLabel(s.Done, "done", clrGreen),
		countLabel(s.RechecksDue, "rechecks due", clrCyan),
	}
	return title + "  " + strings.Join(parts, dimStyle.Render(" · "))
}

func countLabel(n int, label string, c lipgloss.AdaptiveColor) string {
	return lipgloss.NewStyle().Bold(true).Foreground(c).Render(fmt.Sprint(n)) + " " + subtleStyle.Render(label)
}

func (m Model) renderColumn(col, width int) string {
	var b strings.Builder
	tasks := m.columns[col]
	b.WriteString(titleStyle.Render(fmt.Sprintf("%s (%d)", columnLabels[col], len(tasks))))
	b.WriteString("\n")

	if len(tasks) == 0 {
		b.WriteString(dimStyle.Render("(empty)"))
	}
	for i, t := range tasks {
		selected := col == m.cursorCol && i == m.cursorRow
		b.WriteString(m.renderTaskLine(t, selected, width))
		if i < len(tasks)-1 {
			b.WriteString("\n")
		}
	}

	style := columnStyle
	if col == m.cursorCol {
		style = columnSelectedStyle
	}
	return style.Width(width).Render(b.String())
}

func (m Model) renderTaskLine(t store.Task, selected bool, width int) string {
	marker := "  "
	if selected {
		marker = "▸ "
	}
	id := dimStyle.Render(fmt.Sprintf("#%d ", t.ID))
	title := truncate(t.Title, max(8, width-10))
	line := marker + priorityStyle(t.Priority).Render("●") + " " + id + textStyle.Render(title)
	if selected {
		line = lipgloss.NewStyle().Bold(true).Render(line)
	}
	if t.AssignedTo != "" {
		line += "\n    " + subtleStyle.Render("@"+t.AssignedTo)
	}
	return line
}

func (m Model) rechecksPanel() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("RECHECKS DUE"))
	if len(m.rechecks) == 0 {
		b.WriteString("\n" + dimStyle.Render("none"))
		return b.String()
	}
	for _, t := range m.rechecks {
		fmt.Fprintf(&b, "\n%s %s %s",
			lipgloss.NewStyle().Foreground(clrCyan).Render(t.RecheckDate),
			dimStyle.Render(fmt.Sprintf("#%d", t.ID)),
			truncate(t.Title, 40))
	}
	return b.String()
}

func (m Model) workloadPanel() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("WORKLOAD"))
	if len(m.workload) == 0 {
		b.WriteString("\n" + dimStyle.Render("no team configured"))
		return b.String()
	}
	for _, w := range m.workload {
		fmt.Fprintf(&b, "\n%-14s %5.1fh/%.0fh %s",
			truncate(w.Name, 14), w.Hours, w.Capacity, levelStyle(w.Level).Render(string(w.Level)))
	}
	return b.String()
}

func (m Model) viewDetail() string {
	title := "task"
	if m.selectedTask != nil {
		title = fmt.Sprintf("#%d %s", m.selectedTask.ID, m.selectedTask.Title)
	}
	return titleStyle.Render(truncate(title, max(20, m.width-4))) + "\n\n" +
		m.detail.View() + "\n" +
		renderFooter([]struct{ key, desc string }{{"↑↓", "scroll"}, {"esc", "back"}})
}

func renderDetail(t *store.Task, events []store.Event) string {
	var b strings.Builder
	row := func(k, v string) {
		if v != "" {
			fmt.Fprintf(&b, "%s %s\n", subtleStyle.Render(fmt.Sprintf("%-14s", k)), v)
		}
	}
	row("Status", string(t.Status))
	row("Priority", priorityStyle(t.Priority).Render(string(t.Priority)))
	row("Assigned", strings.TrimSpace(t.AssignedTo+" "+roleSuffix(t.AssignedRole)))
	row("Hours", fmt.Sprintf("%.1f logged / %.1f estimated", t.LoggedHours, t.EstimatedHours))
	row("Due", t.DueDate)
	row("Rule", t.RuleID)
	row("Recheck type", string(t.RecheckType))
	row("Recheck date", t.RecheckDate)
	row("Recheck", string(t.RecheckResult))
	if t.Description != "" {
		b.WriteString("\n" + t.Description + "\n")
	}

	b.WriteString("\n" + titleStyle.Render("HISTORY") + "\n")
	if len(events) == 0 {
		b.WriteString(dimStyle.Render("no events") + "\n")
	}
	for _, e := range events {
		fmt.Fprintf(&b, "%s %s %s\n",
			dimStyle.Render(e.Timestamp.Format("2006-01-02 15:04")),
			lipgloss.NewStyle().Foreground(clrBlue).Render(fmt.Sprintf("%-16s", e.Type)),
			e.Content)
	}
	return b.String()
}

func (m Model) viewCreatePopup() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("New task") + "\n\n")
	b.WriteString(m.titleInput.View() + "\n")
	b.WriteString(m.assignInput.View() + "\n\n")
	b.WriteString(subtleStyle.Render("Priority: ") + priorityStyle(m.createPriority).Render(string(m.createPriority)) + "\n\n")
	b.WriteString(renderFooter([]struct{ key, desc string }{
		{"tab", "next field"}, {"ctrl+p", "priority"}, {"enter", "create"}, {"esc", "cancel"},
	}))
	return popupStyle.Render(b.String())
}

func (m Model) viewLogPopup() string {
	var b strings.Builder
	title := "Log time"
	if m.selectedTask != nil {
		title = fmt.Sprintf("Log time on #%d", m.selectedTask.ID)
	}
	b.WriteString(titleStyle.Render(title) + "\n\n")
	b.WriteString(m.hoursInput.View() + "\n\n")
	b.WriteString(renderFooter([]struct{ key, desc string }{{"enter", "log"}, {"esc", "cancel"}}))
	return popupStyle.Render(b.String())
}

// ════════════════════════════════════════════════
// SHARED HELPERS
// ════════════════════════════════════════════════

func renderFooter(keys []struct{ key, desc string }) string {
	var parts []string
	for _, k := range keys {
		parts = append(parts, footerKeyStyle.Render(k.key)+" "+footerDescStyle.Render(k.desc))
	}
	return "  " + strings.Join(parts, "  ")
}

func priorityStyle(p store.Priority) lipgloss.Style {
	switch p {
	case store.PriorityCritical:
		return lipgloss.NewStyle().Foreground(clrRed).Bold(true)
	case store.PriorityHigh:
		return lipgloss.NewStyle().Foreground(clrYellow)
	case store.PriorityMedium:
		return lipgloss.NewStyle().Foreground(clrBlue)
	}
	return dimStyle
}

func levelStyle(l board.WorkloadLevel) lipgloss.Style {
	switch l {
	case board.WorkloadOverloaded:
		return errorStyle
	case board.WorkloadHigh:
		return lipgloss.NewStyle().Foreground(clrYellow).Bold(true)
	}
	return statusStyle
}

func roleSuffix(role string) string {
	if role == "" {
		return ""
	}
	return "(" + role + ")"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
