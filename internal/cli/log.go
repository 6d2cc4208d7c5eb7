package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/imkarma/logiri/internal/store"
)

var logLimit int

var logCmd = &cobra.Command{
	Use:   "log [task-id]",
	Short: "Show the event log for a task, or recent events across the board",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLog,
}

func init() {
	logCmd.Flags().IntVarP(&logLimit, "limit", "n", 20, "Number of recent events when no task is given")
}

func runLog(cmd *cobra.Command, args []string) error {
	s, err := mustStore()
	if err != nil {
		return err
	}
	defer s.Close()

	if len(args) == 0 {
		events, err := s.RecentEvents(cmd.Context(), logLimit)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			fmt.Println("No events yet.")
			return nil
		}
		printEvents(events, true)
		return nil
	}

	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	events, err := s.GetEvents(cmd.Context(), id)
	if err != nil {
		return err
	}

	if len(events) == 0 {
		fmt.Printf("No events for task #%d\n", id)
		return nil
	}

	fmt.Printf("Events for task #%d:\n\n", id)
	printEvents(events, false)
	return nil
}

func printEvents(events []store.Event, withTask bool) {
	for _, e := range events {
		task := ""
		if withTask {
			task = fmt.Sprintf("%s#%-4d%s ", colorYellow, e.TaskID, colorReset)
		}
		actor := ""
		if e.Actor != "" {
			actor = fmt.Sprintf("[%s] ", e.Actor)
		}
		fmt.Printf("  %s  %s%s%-16s %s\n", e.Timestamp.Local().Format("2006-01-02 15:04:05"), task, actor, e.Type, e.Content)
	}
}
