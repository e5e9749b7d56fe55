package cli

import (
	"fmt"

	"github.com/neilberkman/fieldhand/internal/core/app"
	"github.com/neilberkman/fieldhand/internal/core/report"
	"github.com/neilberkman/fieldhand/internal/core/route"
	"github.com/spf13/cobra"
)

var cropsCmd = &cobra.Command{
	Use:   "crops",
	Short: "Recommend crops for a region, season and soil pH",
	Long: `Ask for crop recommendations without a full soil analysis.

Examples:
  fieldhand crops --ph 6.5
  fieldhand crops --ph 7.2 --region Karnataka --season summer`,
	RunE: withApp(runCrops),
}

var (
	cropsRegion string
	cropsSeason string
	cropsPH     float64
	cropsOutput string
)

func init() {
	rootCmd.AddCommand(cropsCmd)

	cropsCmd.Flags().Float64Var(&cropsPH, "ph", 0, "Soil pH (0-14)")
	cropsCmd.Flags().StringVar(&cropsRegion, "region", "", "Region (default from config)")
	cropsCmd.Flags().StringVar(&cropsSeason, "season", "", "Season: summer, winter or rainy (default from config)")
	cropsCmd.Flags().StringVarP(&cropsOutput, "output", "o", "text", "Output format: text, json or yaml")
	_ = cropsCmd.MarkFlagRequired("ph")
}

func runCrops(cmd *cobra.Command, a *app.App, args []string) error {
	format, err := report.ParseFormat(cropsOutput)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if _, err := a.RequireSession(ctx, route.CropAdvisory); err != nil {
		return err
	}

	crops, err := a.Advisory.RecommendCrops(ctx, cropsRegion, cropsSeason, cropsPH)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if format != report.Text {
		return report.Encode(out, crops, format)
	}
	if len(crops) == 0 {
		fmt.Fprintln(out, "No crops recommended for these conditions.")
		return nil
	}
	for i, c := range crops {
		fmt.Fprintf(out, "%2d. %-16s water %-8s pH %-9s %s, %s\n", i+1, c.Crop, c.WaterNeed, c.PHRange, c.Region, c.Season)
	}
	return nil
}
