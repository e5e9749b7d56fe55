package cli

import (
	"fmt"

	"github.com/neilberkman/fieldhand/internal/core/app"
	"github.com/neilberkman/fieldhand/internal/core/report"
	"github.com/neilberkman/fieldhand/internal/core/route"
	"github.com/spf13/cobra"
)

var marketCmd = &cobra.Command{
	Use:   "market [crop]",
	Short: "List market prices",
	Long: `List mandi prices per quintal, optionally for one crop and since a date.

Dates can be natural language (yesterday, "3 days ago") or calendar
dates (2026-10-01, 01/10/2026).

Examples:
  fieldhand market
  fieldhand market rice --since "last week"
  fieldhand market price cotton --trends`,
	Args: cobra.MaximumNArgs(1),
	RunE: withApp(runMarket),
}

var marketPriceCmd = &cobra.Command{
	Use:   "price <crop>",
	Short: "Show the current price of one crop",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runMarketPrice),
}

var (
	marketSince  string
	marketTrends bool
	marketOutput string
)

func init() {
	rootCmd.AddCommand(marketCmd)
	marketCmd.AddCommand(marketPriceCmd)

	marketCmd.PersistentFlags().StringVarP(&marketOutput, "output", "o", "text", "Output format: text, json or yaml")
	marketCmd.Flags().StringVar(&marketSince, "since", "", "Only prices since this date")
	marketPriceCmd.Flags().BoolVar(&marketTrends, "trends", false, "Include price history")
}

func runMarket(cmd *cobra.Command, a *app.App, args []string) error {
	format, err := report.ParseFormat(marketOutput)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if _, err := a.RequireSession(ctx, route.MarketPrices); err != nil {
		return err
	}

	var crop string
	if len(args) == 1 {
		crop = args[0]
	}
	prices, err := a.Advisory.MarketPrices(ctx, crop, marketSince)
	if err != nil {
		return err
	}

	if format != report.Text {
		return report.Encode(cmd.OutOrStdout(), prices, format)
	}
	fmt.Fprint(cmd.OutOrStdout(), report.Market(prices))
	return nil
}

func runMarketPrice(cmd *cobra.Command, a *app.App, args []string) error {
	format, err := report.ParseFormat(marketOutput)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if _, err := a.RequireSession(ctx, route.MarketPrices); err != nil {
		return err
	}

	price, err := a.Advisory.CropPrice(ctx, args[0], marketTrends)
	if err != nil {
		return err
	}

	if format != report.Text {
		return report.Encode(cmd.OutOrStdout(), price, format)
	}
	fmt.Fprint(cmd.OutOrStdout(), report.CropPrice(price))
	return nil
}
