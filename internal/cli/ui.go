package cli

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/imkarma/logiri/internal/tui"
)

var uiCmd = &cobra.Command{
	Use:   "ui",
	Short: "Interactive task dashboard",
	RunE:  runUI,
}

func runUI(cmd *cobra.Command, args []string) error {
	if !isTerminal() {
		return fmt.Errorf("ui needs an interactive terminal")
	}

	s, err := mustStore()
	if err != nil {
		return err
	}
	defer s.Close()

	model := tui.New(newBoard(s), s)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("ui error: %w", err)
	}
	return nil
}
