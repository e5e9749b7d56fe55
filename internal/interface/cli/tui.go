package cli

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/neilberkman/fieldhand/internal/core/app"
	"github.com/neilberkman/fieldhand/internal/interface/tui"
	"github.com/spf13/cobra"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive dashboard",
	Long:  "Launch an interactive terminal UI for sign in, soil analysis, crop advice, weather and market prices",
	RunE:  withApp(runTUI),
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, a *app.App, args []string) error {
	err := tui.Run(tui.Deps{
		Session:        a.Session,
		Farm:           a.Farm,
		Advisory:       a.Advisory,
		ReportTemplate: a.Config.ReportTemplate,
	}, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	if err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
