package cli

import (
	"bytes"
	"fmt"
	"time"

	"github.com/atotto/clipboard"
	"github.com/neilberkman/fieldhand/internal/core/advisory"
	"github.com/neilberkman/fieldhand/internal/core/app"
	"github.com/neilberkman/fieldhand/internal/core/report"
	"github.com/neilberkman/fieldhand/internal/core/route"
	"github.com/spf13/cobra"
)

var soilCmd = &cobra.Command{
	Use:   "soil",
	Short: "Soil analysis",
}

var soilAnalyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze a soil sample and recommend crops",
	Long: `Submit a soil test and get the soil health, a fertilizer recommendation and
the crops best suited to it, ranked.

Examples:
  fieldhand soil analyze --ph 6.5 --nitrogen 40 --phosphorus 20 --potassium 35 --moisture 25
  fieldhand soil analyze --ph 5.2 --region Telangana --season winter -o json
  fieldhand soil analyze --ph 7.1 --copy`,
	RunE: withApp(runSoilAnalyze),
}

var soilFertilizerCmd = &cobra.Command{
	Use:   "fertilizer",
	Short: "Recommend a fertilizer for a soil sample",
	Long: `Get a fertilizer recommendation without recording a soil analysis.

Examples:
  fieldhand soil fertilizer --ph 6.5 --nitrogen 40 --phosphorus 20 --potassium 35 --moisture 25
  fieldhand soil fertilizer --ph 5.2 --region Telangana -o json`,
	RunE: withApp(runSoilFertilizer),
}

var (
	fertInput  advisory.SoilInput
	fertOutput string
)

var (
	soilInput  advisory.SoilInput
	soilOutput string
	soilCopy   bool
)

func init() {
	rootCmd.AddCommand(soilCmd)
	soilCmd.AddCommand(soilAnalyzeCmd)

	f := soilAnalyzeCmd.Flags()
	f.Float64Var(&soilInput.PH, "ph", 0, "Soil pH (0-14)")
	f.Float64Var(&soilInput.Nitrogen, "nitrogen", 0, "Nitrogen (kg/ha)")
	f.Float64Var(&soilInput.Phosphorus, "phosphorus", 0, "Phosphorus (kg/ha)")
	f.Float64Var(&soilInput.Potassium, "potassium", 0, "Potassium (kg/ha)")
	f.Float64Var(&soilInput.Moisture, "moisture", 0, "Moisture (%)")
	f.StringVar(&soilInput.Region, "region", "", "Region (default from config)")
	f.StringVar(&soilInput.Season, "season", "", "Season: summer, winter or rainy (default from config)")
	f.StringVarP(&soilOutput, "output", "o", "text", "Output format: text, json or yaml")
	f.BoolVar(&soilCopy, "copy", false, "Also copy the text report to the clipboard")
	_ = soilAnalyzeCmd.MarkFlagRequired("ph")

	soilCmd.AddCommand(soilFertilizerCmd)
	f = soilFertilizerCmd.Flags()
	f.Float64Var(&fertInput.PH, "ph", 0, "Soil pH (0-14)")
	f.Float64Var(&fertInput.Nitrogen, "nitrogen", 0, "Nitrogen (kg/ha)")
	f.Float64Var(&fertInput.Phosphorus, "phosphorus", 0, "Phosphorus (kg/ha)")
	f.Float64Var(&fertInput.Potassium, "potassium", 0, "Potassium (kg/ha)")
	f.Float64Var(&fertInput.Moisture, "moisture", 0, "Moisture (%)")
	f.StringVar(&fertInput.Region, "region", "", "Region")
	f.StringVarP(&fertOutput, "output", "o", "text", "Output format: text, json or yaml")
	_ = soilFertilizerCmd.MarkFlagRequired("ph")
}

func runSoilFertilizer(cmd *cobra.Command, a *app.App, args []string) error {
	format, err := report.ParseFormat(fertOutput)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if _, err := a.RequireSession(ctx, route.FarmSetup); err != nil {
		return err
	}

	rec, err := a.Advisory.Fertilizer(ctx, fertInput)
	if err != nil {
		return err
	}

	if format != report.Text {
		return report.Encode(cmd.OutOrStdout(), rec, format)
	}
	fmt.Fprint(cmd.OutOrStdout(), report.Fertilizer(rec))
	return nil
}

func runSoilAnalyze(cmd *cobra.Command, a *app.App, args []string) error {
	format, err := report.ParseFormat(soilOutput)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if _, err := a.RequireSession(ctx, route.FarmSetup); err != nil {
		return err
	}

	var res *advisory.SoilResult
	err = spin(cmd.ErrOrStderr(), "Analyzing soil...", func() error {
		var err error
		res, err = a.Advisory.AnalyzeSoil(ctx, soilInput)
		return err
	})
	if err != nil {
		return err
	}

	r := report.Soil{
		Analysis:   res.Soil,
		Crops:      res.Crops,
		Region:     res.Region,
		Season:     res.Season,
		AnalyzedAt: a.Farm.State().RecordedAt,
	}

	var buf bytes.Buffer
	if err := report.WriteSoil(&buf, r, format, a.Config.ReportTemplate, time.Now()); err != nil {
		return err
	}
	if _, err := cmd.OutOrStdout().Write(buf.Bytes()); err != nil {
		return err
	}

	if soilCopy {
		text := buf.String()
		if format != report.Text {
			text = report.RenderSoil(r, a.Config.ReportTemplate, time.Now())
		}
		if err := clipboard.WriteAll(text); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Could not copy to clipboard: %v\n", err)
		} else {
			fmt.Fprintln(cmd.ErrOrStderr(), "Report copied to clipboard")
		}
	}
	return nil
}
