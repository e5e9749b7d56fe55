package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/neilberkman/fieldhand/internal/core/advisory"
	"github.com/neilberkman/fieldhand/internal/core/app"
	"github.com/neilberkman/fieldhand/internal/core/report"
	"github.com/neilberkman/fieldhand/internal/core/route"
)

// AnalyzeSoilArgs defines arguments for the analyze_soil tool
type AnalyzeSoilArgs struct {
	PH         float64 `json:"ph"`
	Nitrogen   float64 `json:"nitrogen"`
	Phosphorus float64 `json:"phosphorus"`
	Potassium  float64 `json:"potassium"`
	Moisture   float64 `json:"moisture"`
	Region     string  `json:"region,omitempty"`
	Season     string  `json:"season,omitempty"`
}

// FertilizerArgs defines arguments for the recommend_fertilizer tool
type FertilizerArgs struct {
	PH         float64 `json:"ph"`
	Nitrogen   float64 `json:"nitrogen"`
	Phosphorus float64 `json:"phosphorus"`
	Potassium  float64 `json:"potassium"`
	Moisture   float64 `json:"moisture"`
	Region     string  `json:"region,omitempty"`
}

// RecommendCropsArgs defines arguments for the recommend_crops tool
type RecommendCropsArgs struct {
	PH     float64 `json:"ph"`
	Region string  `json:"region,omitempty"`
	Season string  `json:"season,omitempty"`
}

// WeatherArgs defines arguments for the weather_advisory tool
type WeatherArgs struct {
	Location string `json:"location,omitempty"`
}

// MarketPricesArgs defines arguments for the market_prices tool
type MarketPricesArgs struct {
	Crop  string `json:"crop,omitempty"`
	Since string `json:"since,omitempty"`
}

// CropPriceArgs defines arguments for the crop_price tool
type CropPriceArgs struct {
	Crop   string `json:"crop"`
	Trends bool   `json:"trends,omitempty"`
}

// FarmStatus is the farm_status result.
type FarmStatus struct {
	SignedIn bool         `json:"signed_in"`
	Email    string       `json:"email,omitempty"`
	Farm     *report.Soil `json:"farm,omitempty"`
}

type handler = func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

// StartServer serves the advisory tools over stdio until the client
// disconnects.
func StartServer(a *app.App) error {
	return server.ServeStdio(NewServer(a))
}

// NewServer registers every tool against a.
func NewServer(a *app.App) *server.MCPServer {
	s := server.NewMCPServer(
		"Fieldhand",
		"1.0.0",
	)

	statusTool := mcp.NewTool("farm_status",
		mcp.WithDescription("Report whether a farmer is signed in and the latest soil analysis with its crop recommendations"),
	)
	s.AddTool(statusTool, makeFarmStatusHandler(a))

	soilTool := mcp.NewTool("analyze_soil",
		mcp.WithDescription("Analyze a soil test and recommend fertilizer and crops. The result becomes the farm's current soil analysis."),
		mcp.WithNumber("ph", mcp.Required(), mcp.Description("Soil pH, 0 to 14")),
		mcp.WithNumber("nitrogen", mcp.Required(), mcp.Description("Nitrogen in kg/ha")),
		mcp.WithNumber("phosphorus", mcp.Required(), mcp.Description("Phosphorus in kg/ha")),
		mcp.WithNumber("potassium", mcp.Required(), mcp.Description("Potassium in kg/ha")),
		mcp.WithNumber("moisture", mcp.Required(), mcp.Description("Soil moisture percentage, 0 to 100")),
		mcp.WithString("region", mcp.Description("Region for crop recommendations (default from config)")),
		mcp.WithString("season", mcp.Description("summer, winter or rainy (default from config)")),
	)
	s.AddTool(soilTool, makeAnalyzeSoilHandler(a))

	fertTool := mcp.NewTool("recommend_fertilizer",
		mcp.WithDescription("Recommend a fertilizer for a soil test without recording a soil analysis"),
		mcp.WithNumber("ph", mcp.Required(), mcp.Description("Soil pH, 0 to 14")),
		mcp.WithNumber("nitrogen", mcp.Description("Nitrogen in kg/ha")),
		mcp.WithNumber("phosphorus", mcp.Description("Phosphorus in kg/ha")),
		mcp.WithNumber("potassium", mcp.Description("Potassium in kg/ha")),
		mcp.WithNumber("moisture", mcp.Description("Soil moisture percentage, 0 to 100")),
		mcp.WithString("region", mcp.Description("Region")),
	)
	s.AddTool(fertTool, makeFertilizerHandler(a))

	cropsTool := mcp.NewTool("recommend_crops",
		mcp.WithDescription("Recommend crops for a region, season and soil pH without recording a soil analysis"),
		mcp.WithNumber("ph", mcp.Required(), mcp.Description("Soil pH, 0 to 14")),
		mcp.WithString("region", mcp.Description("Region (default from config)")),
		mcp.WithString("season", mcp.Description("summer, winter or rainy (default from config)")),
	)
	s.AddTool(cropsTool, makeRecommendCropsHandler(a))

	weatherTool := mcp.NewTool("weather_advisory",
		mcp.WithDescription("Current weather and farming alerts for a location"),
		mcp.WithString("location", mcp.Description("Location name (default from config)")),
	)
	s.AddTool(weatherTool, makeWeatherHandler(a))

	marketTool := mcp.NewTool("market_prices",
		mcp.WithDescription("Mandi prices per quintal, optionally for one crop and since a date"),
		mcp.WithString("crop", mcp.Description("Crop name filter")),
		mcp.WithString("since", mcp.Description("Only prices since this date, e.g. '2026-10-01' or 'last week'")),
	)
	s.AddTool(marketTool, makeMarketPricesHandler(a))

	priceTool := mcp.NewTool("crop_price",
		mcp.WithDescription("Current price of one crop, optionally with its recent history"),
		mcp.WithString("crop", mcp.Required(), mcp.Description("Crop name")),
		mcp.WithBoolean("trends", mcp.Description("Include price history")),
	)
	s.AddTool(priceTool, makeCropPriceHandler(a))

	return s
}

func decodeArgs(request mcp.CallToolRequest, v any) error {
	argsBytes, _ := json.Marshal(request.Params.Arguments)
	if err := json.Unmarshal(argsBytes, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	resultJSON, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(resultJSON)), nil
}

// protected checks the session for path before running fn. Failures are
// tool errors, not protocol errors.
func protected(a *app.App, path string, fn handler) handler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if _, err := a.RequireSession(ctx, path); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return fn(ctx, request)
	}
}

func makeFarmStatusHandler(a *app.App) handler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		snap, _, _ := a.Gate(ctx, route.Dashboard)

		status := FarmStatus{SignedIn: snap.Authenticated(), Email: snap.Email}
		if state := a.Farm.State(); status.SignedIn && state.Soil != nil {
			status.Farm = &report.Soil{
				Analysis:   state.Soil,
				Crops:      state.Crops,
				AnalyzedAt: state.RecordedAt,
			}
		}
		return jsonResult(status)
	}
}

func makeAnalyzeSoilHandler(a *app.App) handler {
	return protected(a, route.FarmSetup, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args AnalyzeSoilArgs
		if err := decodeArgs(request, &args); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		res, err := a.Advisory.AnalyzeSoil(ctx, advisory.SoilInput{
			PH:         args.PH,
			Nitrogen:   args.Nitrogen,
			Phosphorus: args.Phosphorus,
			Potassium:  args.Potassium,
			Moisture:   args.Moisture,
			Region:     args.Region,
			Season:     args.Season,
		})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		return jsonResult(report.Soil{
			Analysis:   res.Soil,
			Crops:      res.Crops,
			Region:     res.Region,
			Season:     res.Season,
			AnalyzedAt: a.Farm.State().RecordedAt,
		})
	})
}

func makeFertilizerHandler(a *app.App) handler {
	return protected(a, route.FarmSetup, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args FertilizerArgs
		if err := decodeArgs(request, &args); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		rec, err := a.Advisory.Fertilizer(ctx, advisory.SoilInput{
			PH:         args.PH,
			Nitrogen:   args.Nitrogen,
			Phosphorus: args.Phosphorus,
			Potassium:  args.Potassium,
			Moisture:   args.Moisture,
			Region:     args.Region,
		})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(rec)
	})
}

func makeRecommendCropsHandler(a *app.App) handler {
	return protected(a, route.CropAdvisory, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args RecommendCropsArgs
		if err := decodeArgs(request, &args); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		crops, err := a.Advisory.RecommendCrops(ctx, args.Region, args.Season, args.PH)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(map[string]interface{}{
			"recommendations": crops,
		})
	})
}

func makeWeatherHandler(a *app.App) handler {
	return protected(a, route.Weather, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args WeatherArgs
		if err := decodeArgs(request, &args); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		w, err := a.Advisory.Weather(ctx, args.Location)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(w)
	})
}

func makeMarketPricesHandler(a *app.App) handler {
	return protected(a, route.MarketPrices, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args MarketPricesArgs
		if err := decodeArgs(request, &args); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		prices, err := a.Advisory.MarketPrices(ctx, args.Crop, args.Since)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(prices)
	})
}

func makeCropPriceHandler(a *app.App) handler {
	return protected(a, route.MarketPrices, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args CropPriceArgs
		if err := decodeArgs(request, &args); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		price, err := a.Advisory.CropPrice(ctx, args.Crop, args.Trends)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(price)
	})
}
