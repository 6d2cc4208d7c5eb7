package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var envCheckCmd = &cobra.Command{
	Use:   "env-check",
	Short: "Report which credentials are set",
	RunE:  runEnvCheck,
}

func runEnvCheck(cmd *cobra.Command, args []string) error {
	missing := 0
	for _, e := range cfg.EnvCheck() {
		mark := colorGreen + "✓" + colorReset
		if !e.Found {
			mark = colorRed + "✗" + colorReset
			missing++
		}
		fmt.Printf("  %s %s\n", mark, e.Name)
	}
	if missing > 0 {
		fmt.Printf("\n%s%d missing.%s Sources without credentials are skipped.\n", colorYellow, missing, colorReset)
	}
	return nil
}
