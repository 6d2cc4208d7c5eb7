package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Quick overview of tasks and stored data",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	s, err := mustStore()
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	sum, err := newBoard(s).Summary(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("%s%s%s\n", colorBold, cfg.Site.Name, colorReset)
	fmt.Printf("  %-14s %s%d%s\n", "urgent:", colorRed, sum.Urgent, colorReset)
	fmt.Printf("  %-14s %s%d%s\n", "in_progress:", colorBlue, sum.Active, colorReset)
	fmt.Printf("  %-14s %s%d%s\n", "pending:", colorWhite, sum.Pending, colorReset)
	fmt.Printf("  %-14s %s%d%s\n", "blocked:", colorYellow, sum.Blocked, colorReset)
	fmt.Printf("  %-14s %s%d%s\n", "done:", colorGreen, sum.Done, colorReset)
	fmt.Printf("  %-14s %s%d%s\n", "rechecks due:", colorCyan, sum.RechecksDue, colorReset)

	inv, err := s.SnapshotInventory(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("\n%sData%s\n", colorBold, colorReset)
	if len(inv) == 0 {
		fmt.Printf("  No snapshots. Run: %slogiri fetch%s\n", colorCyan, colorReset)
		return nil
	}

	p := message.NewPrinter(language.English)
	for _, seg := range inv {
		age := ""
		if !seg.FetchedAt.IsZero() {
			age = formatAge(time.Since(seg.FetchedAt))
		}
		fmt.Printf("  %-8s %-24s %s  %s%s%s\n",
			seg.Source, seg.Segment, p.Sprintf("%8d rows", seg.Rows), colorDim, age, colorReset)
	}
	return nil
}

func formatAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	}
	return fmt.Sprintf("%dd ago", int(d.Hours()/24))
}
