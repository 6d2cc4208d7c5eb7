package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/imkarma/logiri/internal/store"
)

var (
	taskPriority    string
	taskDescription string
	taskAssign      string
	taskHours       float64
	taskDue         string
	taskRecheck     string
	taskRule        string
	taskListAssign  string
	taskVerifyFail  bool
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Create or manage tasks",
	Long:  "Create new remediation tasks or move existing ones through the board.",
}

var taskCreateCmd = &cobra.Command{
	Use:   "create [title]",
	Short: "Create a new task",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTaskCreate,
}

var taskListCmd = &cobra.Command{
	Use:   "list [status]",
	Short: "List tasks, optionally filtered by status",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTaskList,
}

var taskShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show task details",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskShow,
}

var taskStatusCmd = &cobra.Command{
	Use:   "status [id] [status]",
	Short: "Set a task's status: pending, in_progress, blocked, done",
	Args:  cobra.ExactArgs(2),
	RunE:  runTaskStatus,
}

var taskAssignCmd = &cobra.Command{
	Use:   "assign [id] [member]",
	Short: "Assign a task to a team member",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runTaskAssign,
}

var taskLogCmd = &cobra.Command{
	Use:   "log [id] [hours]",
	Short: "Log hours worked on a task",
	Args:  cobra.ExactArgs(2),
	RunE:  runTaskLog,
}

var taskDoneCmd = &cobra.Command{
	Use:   "done [id]",
	Short: "Complete a task and schedule its recheck",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskDone,
}

var taskVerifyCmd = &cobra.Command{
	Use:   "verify [id]",
	Short: "Record that a completed task's fix held (or not, with --fail)",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskVerify,
}

func init() {
	taskCreateCmd.Flags().StringVarP(&taskPriority, "priority", "p", "medium", "Priority: critical, high, medium, low")
	taskCreateCmd.Flags().StringVarP(&taskDescription, "desc", "d", "", "Task description")
	taskCreateCmd.Flags().StringVarP(&taskAssign, "assign", "a", "", "Team member to assign")
	taskCreateCmd.Flags().Float64VarP(&taskHours, "hours", "e", 0, "Estimated hours")
	taskCreateCmd.Flags().StringVar(&taskDue, "due", "", "Due date, YYYY-MM-DD")
	taskCreateCmd.Flags().StringVar(&taskRecheck, "recheck", "", "Recheck type, e.g. 404_fix, cannibalization_fix")
	taskCreateCmd.Flags().StringVar(&taskRule, "rule", "", "Rule ID that produced the task")

	taskListCmd.Flags().StringVarP(&taskListAssign, "assignee", "a", "", "Only tasks assigned to this member")

	taskVerifyCmd.Flags().BoolVar(&taskVerifyFail, "fail", false, "The fix did not hold")

	taskCmd.AddCommand(taskCreateCmd)
	taskCmd.AddCommand(taskListCmd)
	taskCmd.AddCommand(taskShowCmd)
	taskCmd.AddCommand(taskStatusCmd)
	taskCmd.AddCommand(taskAssignCmd)
	taskCmd.AddCommand(taskLogCmd)
	taskCmd.AddCommand(taskDoneCmd)
	taskCmd.AddCommand(taskVerifyCmd)
}

func runTaskCreate(cmd *cobra.Command, args []string) error {
	s, err := mustStore()
	if err != nil {
		return err
	}
	defer s.Close()

	p, ok := store.ParsePriority(taskPriority)
	if !ok {
		return fmt.Errorf("invalid priority %q (want critical, high, medium or low)", taskPriority)
	}

	task, err := newBoard(s).Create(cmd.Context(), store.NewTask{
		Title:          strings.Join(args, " "),
		Description:    taskDescription,
		RuleID:         taskRule,
		AssignedTo:     taskAssign,
		Priority:       p,
		EstimatedHours: taskHours,
		DueDate:        taskDue,
		RecheckType:    store.RecheckType(strings.ToLower(taskRecheck)),
	})
	if err != nil {
		return err
	}

	fmt.Printf("Created task #%d: %s [%s]\n", task.ID, task.Title, task.Priority)
	return nil
}

func runTaskList(cmd *cobra.Command, args []string) error {
	s, err := mustStore()
	if err != nil {
		return err
	}
	defer s.Close()

	f := store.TaskFilter{Assignee: taskListAssign}
	if len(args) > 0 {
		st, ok := store.ParseStatus(args[0])
		if !ok {
			return fmt.Errorf("invalid status %q", args[0])
		}
		f.Status = st
	}

	tasks, err := newBoard(s).List(cmd.Context(), f)
	if err != nil {
		return err
	}

	if len(tasks) == 0 {
		fmt.Println("No tasks found.")
		return nil
	}

	for _, t := range tasks {
		who := ""
		if t.AssignedTo != "" {
			who = fmt.Sprintf(" [%s]", t.AssignedTo)
		}
		fmt.Printf("#%-4d %-12s %s%-8s%s %s%s\n", t.ID, t.Status, priorityColor(t.Priority), t.Priority, colorReset, t.Title, who)
	}
	return nil
}

func runTaskShow(cmd *cobra.Command, args []string) error {
	s, err := mustStore()
	if err != nil {
		return err
	}
	defer s.Close()

	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	task, err := newBoard(s).Get(cmd.Context(), id)
	if err != nil {
		return err
	}

	fmt.Printf("Task #%d\n", task.ID)
	fmt.Printf("  Title:    %s\n", task.Title)
	fmt.Printf("  Status:   %s\n", task.Status)
	fmt.Printf("  Priority: %s\n", task.Priority)
	if task.Description != "" {
		fmt.Printf("  Desc:     %s\n", task.Description)
	}
	if task.AssignedTo != "" {
		if task.AssignedRole != "" {
			fmt.Printf("  Assigned: %s (%s)\n", task.AssignedTo, task.AssignedRole)
		} else {
			fmt.Printf("  Assigned: %s\n", task.AssignedTo)
		}
	}
	fmt.Printf("  Hours:    %.1f logged / %.1f estimated\n", task.LoggedHours, task.EstimatedHours)
	if task.DueDate != "" {
		fmt.Printf("  Due:      %s\n", task.DueDate)
	}
	if task.RuleID != "" {
		fmt.Printf("  Rule:     %s\n", task.RuleID)
	}
	if task.RecheckType != store.RecheckNone {
		fmt.Printf("  Recheck:  %s\n", task.RecheckType)
	}
	if task.RecheckDate != "" {
		state := "pending"
		if task.RecheckVerified {
			state = string(task.RecheckResult)
		}
		fmt.Printf("  Recheck:  %s (%s)\n", task.RecheckDate, state)
	}
	fmt.Printf("  Created:  %s\n", task.CreatedAt.Local().Format("2006-01-02 15:04"))
	fmt.Printf("  Updated:  %s\n", task.UpdatedAt.Local().Format("2006-01-02 15:04"))

	events, err := s.GetEvents(cmd.Context(), id)
	if err != nil {
		return err
	}
	if len(events) > 0 {
		fmt.Println("\n  Events:")
		for _, e := range events {
			fmt.Printf("    %s %s: %s\n", e.Timestamp.Local().Format("01-02 15:04"), e.Type, e.Content)
		}
	}
	return nil
}

func runTaskStatus(cmd *cobra.Command, args []string) error {
	s, err := mustStore()
	if err != nil {
		return err
	}
	defer s.Close()

	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	task, err := newBoard(s).UpdateStatus(cmd.Context(), id, args[1])
	if err != nil {
		return err
	}
	fmt.Printf("Task #%d is now %s\n", id, task.Status)
	if task.Status == store.StatusDone {
		fmt.Printf("  Recheck scheduled for %s\n", task.RecheckDate)
	}
	return nil
}

func runTaskAssign(cmd *cobra.Command, args []string) error {
	s, err := mustStore()
	if err != nil {
		return err
	}
	defer s.Close()

	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	member := strings.Join(args[1:], " ")
	if _, ok := cfg.Member(member); !ok && len(cfg.Team) > 0 {
		fmt.Printf("%snote:%s %s is not on the team roster\n", colorYellow, colorReset, member)
	}
	if err := newBoard(s).Assign(cmd.Context(), id, member); err != nil {
		return err
	}

	fmt.Printf("Assigned task #%d to %s\n", id, member)
	return nil
}

func runTaskLog(cmd *cobra.Command, args []string) error {
	s, err := mustStore()
	if err != nil {
		return err
	}
	defer s.Close()

	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	hours, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("invalid hours: %s", args[1])
	}

	task, err := newBoard(s).LogTime(cmd.Context(), id, hours)
	if err != nil {
		return err
	}
	fmt.Printf("Logged %gh on task #%d (%.1fh total)\n", hours, id, task.LoggedHours)
	return nil
}

func runTaskDone(cmd *cobra.Command, args []string) error {
	s, err := mustStore()
	if err != nil {
		return err
	}
	defer s.Close()

	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	c, err := newBoard(s).Complete(cmd.Context(), id)
	if err != nil {
		return err
	}

	fmt.Printf("Task #%d marked as done\n", id)
	fmt.Printf("  Recheck in %d days: %s%s%s\n", c.RecheckDays, colorCyan, c.RecheckDate, colorReset)
	return nil
}

func runTaskVerify(cmd *cobra.Command, args []string) error {
	s, err := mustStore()
	if err != nil {
		return err
	}
	defer s.Close()

	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	task, err := newBoard(s).Verify(cmd.Context(), id, !taskVerifyFail)
	if err != nil {
		return err
	}
	color := colorGreen
	if task.RecheckResult == store.RecheckFail {
		color = colorRed
	}
	fmt.Printf("Recheck for task #%d: %s%s%s\n", id, color, task.RecheckResult, colorReset)
	return nil
}
