package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/imkarma/logiri/internal/config"
	"github.com/imkarma/logiri/internal/store"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize logiri in the current directory",
	Long:  "Creates a .logiri/ directory with a default config and database.",
	RunE:  runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(flagConfig); err == nil && !initForce {
		return fmt.Errorf("logiri already initialized (%s exists). Use --force to overwrite", flagConfig)
	}

	if err := os.MkdirAll(filepath.Join(dataDirName, "locks"), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dataDirName, err)
	}
	if err := ensureDir(flagConfig); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	// Keep any values already resolved from the environment out of the file.
	def := config.DefaultConfig()
	if err := config.Save(flagConfig, def); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	if err := ensureDir(def.Database); err != nil {
		return fmt.Errorf("create database directory: %w", err)
	}
	s, err := store.New(def.Database)
	if err != nil {
		return fmt.Errorf("create database: %w", err)
	}
	s.Close()

	fmt.Printf("Initialized logiri in %s/\n", dataDirName)
	fmt.Println("")
	fmt.Println("Next steps:")
	fmt.Printf("  1. Edit %s to set your site and team\n", flagConfig)
	fmt.Println("  2. Export credentials, then run: logiri env-check")
	fmt.Println("  3. Run: logiri fetch")
	fmt.Println("  4. Run: logiri chat \"what should we fix first?\"")
	return nil
}
