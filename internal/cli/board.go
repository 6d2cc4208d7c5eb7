package cli

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/imkarma/logiri/internal/store"
)

// ANSI color codes.
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
	colorWhite  = "\033[37m"
)

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Show the task board",
	RunE:  runBoard,
}

func runBoard(cmd *cobra.Command, args []string) error {
	s, err := mustStore()
	if err != nil {
		return err
	}
	defer s.Close()

	tasks, err := newBoard(s).List(cmd.Context(), store.TaskFilter{})
	if err != nil {
		return err
	}

	if len(tasks) == 0 {
		fmt.Printf("%sBoard is empty.%s Create a task: %slogiri task create \"title\"%s\n",
			colorDim, colorReset, colorCyan, colorReset)
		return nil
	}

	columns := map[store.TaskStatus][]store.Task{}
	for _, t := range tasks {
		columns[t.Status] = append(columns[t.Status], t)
	}

	type col struct {
		status store.TaskStatus
		label  string
		color  string
	}
	order := []col{
		{store.StatusPending, "PENDING", colorWhite},
		{store.StatusInProgress, "IN PROGRESS", colorBlue},
		{store.StatusBlocked, "BLOCKED", colorRed},
		{store.StatusDone, "DONE", colorGreen},
	}

	colWidth := 30
	headerLine := ""
	sepLine := ""
	for _, c := range order {
		count := len(columns[c.status])
		header := fmt.Sprintf(" %s%s%s (%d)", c.color+colorBold, c.label, colorReset, count)
		visibleLen := len(fmt.Sprintf(" %s (%d)", c.label, count))
		headerLine += header + strings.Repeat(" ", max(0, colWidth-visibleLen))
		sepLine += strings.Repeat("─", colWidth)
	}
	fmt.Println(headerLine)
	fmt.Println(colorDim + sepLine + colorReset)

	maxRows := 0
	for _, c := range order {
		maxRows = max(maxRows, len(columns[c.status]))
	}

	for i := range maxRows {
		line := ""
		detailLine := ""
		for _, c := range order {
			tasks := columns[c.status]
			if i >= len(tasks) {
				line += strings.Repeat(" ", colWidth)
				detailLine += strings.Repeat(" ", colWidth)
				continue
			}
			t := tasks[i]
			idStr := fmt.Sprintf("#%d", t.ID)
			titleStr := truncate(t.Title, colWidth-len(idStr)-3)
			line += fmt.Sprintf(" %s%s%s %s", priorityColor(t.Priority), idStr, colorReset, titleStr)
			line += strings.Repeat(" ", max(0, colWidth-visibleWidth(" "+idStr+" "+titleStr)))

			detail := ""
			if t.AssignedTo != "" {
				detail = "    [" + truncate(t.AssignedTo, colWidth-7) + "]"
			}
			if t.Status == store.StatusDone && t.RecheckDate != "" && !t.RecheckVerified {
				detail = "    recheck " + t.RecheckDate
			}
			detailLine += colorCyan + detail + colorReset + strings.Repeat(" ", max(0, colWidth-visibleWidth(detail)))
		}
		fmt.Println(line)
		fmt.Println(detailLine)
		fmt.Println()
	}

	total := len(tasks)
	fmt.Printf("%s%d tasks%s", colorBold, total, colorReset)
	if n := len(columns[store.StatusDone]); n > 0 {
		fmt.Printf("  %s✓ %d done%s", colorGreen, n, colorReset)
	}
	if n := len(columns[store.StatusInProgress]); n > 0 {
		fmt.Printf("  %s● %d in progress%s", colorBlue, n, colorReset)
	}
	if n := len(columns[store.StatusBlocked]); n > 0 {
		fmt.Printf("  %s⚠ %d blocked%s", colorRed, n, colorReset)
	}
	fmt.Println()
	return nil
}

func priorityColor(p store.Priority) string {
	switch p {
	case store.PriorityCritical:
		return colorRed + colorBold
	case store.PriorityHigh:
		return colorRed
	case store.PriorityMedium:
		return colorYellow
	case store.PriorityLow:
		return colorDim
	default:
		return ""
	}
}

func visibleWidth(s string) int {
	return utf8.RuneCountInString(s)
}

func truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	r := []rune(s)
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
