package cli

import (
	"fmt"
	"strings"

	"github.com/neilberkman/fieldhand/internal/core/app"
	"github.com/neilberkman/fieldhand/internal/core/report"
	"github.com/neilberkman/fieldhand/internal/core/route"
	"github.com/spf13/cobra"
)

var weatherCmd = &cobra.Command{
	Use:   "weather [location]",
	Short: "Show the weather advisory for a location",
	Long: `Show current conditions and farming alerts.

Examples:
  fieldhand weather
  fieldhand weather Guntur -o json`,
	RunE: withApp(runWeather),
}

var weatherOutput string

func init() {
	rootCmd.AddCommand(weatherCmd)

	weatherCmd.Flags().StringVarP(&weatherOutput, "output", "o", "text", "Output format: text, json or yaml")
}

func runWeather(cmd *cobra.Command, a *app.App, args []string) error {
	format, err := report.ParseFormat(weatherOutput)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if _, err := a.RequireSession(ctx, route.Weather); err != nil {
		return err
	}

	w, err := a.Advisory.Weather(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}

	if format != report.Text {
		return report.Encode(cmd.OutOrStdout(), w, format)
	}
	fmt.Fprint(cmd.OutOrStdout(), report.Weather(w))
	return nil
}
