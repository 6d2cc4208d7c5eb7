package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/imkarma/logiri/internal/board"
	"github.com/imkarma/logiri/internal/store"
)

var rechecksAll bool

var rechecksCmd = &cobra.Command{
	Use:   "rechecks",
	Short: "List completed tasks waiting to be verified",
	Long: fmt.Sprintf("Lists unverified rechecks due within %d days. Use --all for every\n"+
		"unverified recheck regardless of date.", board.RecheckLookahead),
	RunE: runRechecks,
}

var workloadCmd = &cobra.Command{
	Use:   "workload",
	Short: "Show open estimated hours per team member",
	RunE:  runWorkload,
}

func init() {
	rechecksCmd.Flags().BoolVarP(&rechecksAll, "all", "a", false, "Include rechecks not yet due")
}

func runRechecks(cmd *cobra.Command, args []string) error {
	s, err := mustStore()
	if err != nil {
		return err
	}
	defer s.Close()

	b := newBoard(s)
	var tasks []store.Task
	if rechecksAll {
		tasks, err = b.AllRechecks(cmd.Context())
	} else {
		tasks, err = b.PendingRechecks(cmd.Context())
	}
	if err != nil {
		return err
	}

	if len(tasks) == 0 {
		fmt.Println("No rechecks due.")
		return nil
	}
	for _, t := range tasks {
		typ := string(t.RecheckType)
		if typ == "" {
			typ = "general"
		}
		fmt.Printf("%s%s%s  #%-4d %-26s %s\n", colorCyan, t.RecheckDate, colorReset, t.ID, typ, t.Title)
	}
	fmt.Printf("\nVerify with: %slogiri task verify <id>%s (add --fail if the fix did not hold)\n", colorCyan, colorReset)
	return nil
}

func runWorkload(cmd *cobra.Command, args []string) error {
	s, err := mustStore()
	if err != nil {
		return err
	}
	defer s.Close()

	loads, err := newBoard(s).Workload(cmd.Context())
	if err != nil {
		return err
	}
	if len(loads) == 0 {
		fmt.Printf("No team configured. Add members under %steam:%s in %s\n", colorCyan, colorReset, flagConfig)
		return nil
	}

	fmt.Printf("%s%-20s %-18s %8s %10s  %s%s\n", colorBold, "MEMBER", "ROLE", "HOURS", "AVAILABLE", "LEVEL", colorReset)
	for _, w := range loads {
		fmt.Printf("%-20s %-18s %7.1fh %9.1fh  %s%s%s\n",
			truncate(w.Name, 20), truncate(w.Role, 18), w.Hours, w.Available,
			levelColor(w.Level), w.Level, colorReset)
	}
	return nil
}

func levelColor(l board.WorkloadLevel) string {
	switch l {
	case board.WorkloadOverloaded:
		return colorRed + colorBold
	case board.WorkloadHigh:
		return colorYellow
	}
	return colorGreen
}
