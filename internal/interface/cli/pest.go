package cli

import (
	"fmt"
	"os"

	"github.com/neilberkman/fieldhand/internal/core/advisoryapi"
	"github.com/neilberkman/fieldhand/internal/core/app"
	"github.com/neilberkman/fieldhand/internal/core/report"
	"github.com/neilberkman/fieldhand/internal/core/route"
	"github.com/spf13/cobra"
)

var pestCmd = &cobra.Command{
	Use:   "pest",
	Short: "Crop pest and disease detection",
}

var pestDetectCmd = &cobra.Command{
	Use:   "detect <image>",
	Short: "Identify a disease from a leaf photo",
	Long: `Upload a photo of an affected leaf and get the likely disease with
control measures.

Examples:
  fieldhand pest detect ~/photos/leaf.jpg`,
	Args: cobra.ExactArgs(1),
	RunE: withApp(runPestDetect),
}

var pestOutput string

func init() {
	rootCmd.AddCommand(pestCmd)
	pestCmd.AddCommand(pestDetectCmd)

	pestDetectCmd.Flags().StringVarP(&pestOutput, "output", "o", "text", "Output format: text, json or yaml")
}

func runPestDetect(cmd *cobra.Command, a *app.App, args []string) error {
	format, err := report.ParseFormat(pestOutput)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if _, err := a.RequireSession(ctx, route.PestDetection); err != nil {
		return err
	}

	f, err := os.Open(args[0])
	if err != nil {
		return advisoryapi.Validation("cannot read %s: %v", args[0], err)
	}
	defer f.Close()

	var det *advisoryapi.PestDetection
	err = spin(cmd.ErrOrStderr(), "Examining image...", func() error {
		var err error
		det, err = a.Advisory.DetectPest(ctx, args[0], f)
		return err
	})
	if err != nil {
		return err
	}

	if format != report.Text {
		return report.Encode(cmd.OutOrStdout(), det, format)
	}
	fmt.Fprint(cmd.OutOrStdout(), report.Pest(det))
	return nil
}
