package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/imkarma/logiri/internal/ingest"
	"github.com/imkarma/logiri/internal/store"
)

var runsLimit int

var fetchCmd = &cobra.Command{
	Use:   "fetch [source...]",
	Short: "Ingest data from ga4, gsc, ads and semrush",
	Long: "Fetches every report segment of the named sources (all when none are\n" +
		"given) and replaces the stored snapshot per segment.",
	RunE: runFetch,
}

var runsCmd = &cobra.Command{
	Use:   "runs [source]",
	Short: "Show recent ingestion runs",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRuns,
}

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 10, "Number of runs to show")
}

func runFetch(cmd *cobra.Command, args []string) error {
	sources := store.Sources
	if len(args) > 0 {
		sources = nil
		for _, a := range args {
			src, ok := store.ParseSource(a)
			if !ok {
				return fmt.Errorf("unknown source %q (want ga4, gsc, ads or semrush)", a)
			}
			sources = append(sources, src)
		}
	}

	s, err := mustStore()
	if err != nil {
		return err
	}
	defer s.Close()

	outcomes := newPipeline(s).RunAll(cmd.Context(), sources)

	failed := 0
	for _, o := range outcomes {
		printOutcome(o)
		if o.Err != nil {
			failed++
		}
	}
	if failed == len(outcomes) {
		return fmt.Errorf("every source failed")
	}
	return nil
}

func printOutcome(o ingest.Outcome) {
	status := "failed"
	if o.Run != nil {
		status = o.Run.Status
	}
	fmt.Printf("%s%-8s%s %s%s%s\n", colorBold, o.Source, colorReset, runColor(status), status, colorReset)
	if o.Err != nil {
		fmt.Printf("  %s%v%s\n", colorRed, o.Err, colorReset)
	}
	if o.Run == nil {
		return
	}
	for _, seg := range o.Run.Segments {
		line := fmt.Sprintf("  %-24s %6d rows  %s", seg.Segment, seg.Rows, seg.Status)
		if seg.Error != "" {
			line += "  " + colorDim + truncate(seg.Error, 60) + colorReset
		}
		fmt.Println(line)
	}
}

func runRuns(cmd *cobra.Command, args []string) error {
	var src store.Source
	if len(args) == 1 {
		var ok bool
		if src, ok = store.ParseSource(args[0]); !ok {
			return fmt.Errorf("unknown source %q", args[0])
		}
	}

	s, err := mustStore()
	if err != nil {
		return err
	}
	defer s.Close()

	runs, err := s.ListIngestRuns(cmd.Context(), src, runsLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Printf("No ingestion runs yet. Run: %slogiri fetch%s\n", colorCyan, colorReset)
		return nil
	}
	for _, r := range runs {
		fmt.Printf("%s  %-8s %s%-10s%s %s%s%s\n",
			r.StartedAt.Local().Format("2006-01-02 15:04"), r.Source,
			runColor(r.Status), r.Status, colorReset,
			colorDim, r.ID, colorReset)
		if r.Error != "" {
			fmt.Printf("    %s%s%s\n", colorRed, truncate(r.Error, 80), colorReset)
		}
	}
	return nil
}

func runColor(status string) string {
	switch status {
	case ingest.RunCompleted:
		return colorGreen
	case ingest.RunPartial:
		return colorYellow
	}
	return colorRed
}
