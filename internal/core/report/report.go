// Package report renders advisory results for terminals, clipboards and
// machine consumers.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cbroglie/mustache"
	"github.com/dustin/go-humanize"
	"github.com/neilberkman/fieldhand/internal/core/advisoryapi"
	"github.com/neilberkman/fieldhand/internal/core/config"
	"gopkg.in/yaml.v3"
)

type Format string

const (
	Text Format = "text"
	JSON Format = "json"
	YAML Format = "yaml"
)

// ParseFormat accepts text, json and yaml (case-insensitive). Empty means text.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", Text:
		return Text, nil
	case JSON, YAML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, json or yaml)", s)
	}
}

// Soil is one soil analysis with the crops recommended for it.
type Soil struct {
	Analysis   *advisoryapi.SoilAnalysis        `json:"analysis" yaml:"analysis"`
	Crops      []advisoryapi.CropRecommendation `json:"crop_recommendations" yaml:"crop_recommendations"`
	Region     string                           `json:"region,omitempty" yaml:"region,omitempty"`
	Season     string                           `json:"season,omitempty" yaml:"season,omitempty"`
	AnalyzedAt time.Time                        `json:"analyzed_at" yaml:"analyzed_at"`
}

// SoilData flattens r into mustache template data.
func SoilData(r Soil, now time.Time) map[string]interface{} {
	data := map[string]interface{}{
		"region":    r.Region,
		"season":    r.Season,
		"has_crops": len(r.Crops) > 0,
	}
	if !r.AnalyzedAt.IsZero() {
		data["analyzed"] = humanize.RelTime(r.AnalyzedAt, now, "ago", "from now")
	}

	if a := r.Analysis; a != nil {
		data["health"] = a.OverallHealth
		data["ph"] = humanize.Ftoa(a.Soil.PH.Value)
		data["ph_status"] = a.Soil.PH.Status
		data["ph_advice"] = a.Soil.PH.Recommendation
		data["nitrogen"] = a.Soil.Nutrients.Nitrogen.String()
		data["phosphorus"] = a.Soil.Nutrients.Phosphorus.String()
		data["potassium"] = a.Soil.Nutrients.Potassium.String()
		data["moisture"] = a.Soil.Nutrients.Moisture.String()
		if a.Fertilizer != nil {
			data["fertilizer"] = map[string]interface{}{
				"type":       a.Fertilizer.FertilizerType,
				"confidence": a.Fertilizer.ConfidencePercent(),
			}
		}
	}

	crops := make([]map[string]interface{}, len(r.Crops))
	for i, c := range r.Crops {
		crops[i] = map[string]interface{}{
			"rank":       i + 1,
			"crop":       c.Crop,
			"water_need": c.WaterNeed.String(),
			"ph_range":   c.PHRange.String(),
			"season":     c.Season,
			"region":     c.Region,
		}
	}
	data["crops"] = crops
	return data
}

// RenderSoil renders r with tmpl, falling back to the built-in template
// when tmpl is empty or broken.
func RenderSoil(r Soil, tmpl string, now time.Time) string {
	if tmpl == "" {
		tmpl = config.DefaultReportTemplate
	}
	data := SoilData(r, now)
	out, err := mustache.Render(tmpl, data)
	if err != nil {
		out, _ = mustache.Render(config.DefaultReportTemplate, data)
	}
	return out
}

// WriteSoil writes r to w in format.
func WriteSoil(w io.Writer, r Soil, format Format, tmpl string, now time.Time) error {
	if format == Text || format == "" {
		_, err := io.WriteString(w, RenderSoil(r, tmpl, now))
		return err
	}
	return Encode(w, r, format)
}

// Encode writes v as JSON or YAML.
func Encode(w io.Writer, v any, format Format) error {
	switch format {
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case YAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("format %q is not a structured format", format)
	}
}

// Rupees formats a price per quintal.
func Rupees(v float64) string {
	return "₹" + humanize.CommafWithDigits(v, 2)
}

// Weather renders an advisory as plain text.
func Weather(a *advisoryapi.WeatherAdvisory) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Weather for %s\n", a.Location)
	fmt.Fprintf(&b, "  Temperature %s°C  Humidity %s%%  Rainfall %s mm\n",
		humanize.Ftoa(a.Weather.Temperature), humanize.Ftoa(a.Weather.Humidity), humanize.Ftoa(a.Weather.RainfallMM))
	if len(a.Alerts) == 0 {
		b.WriteString("No alerts.\n")
		return b.String()
	}
	b.WriteString("Alerts:\n")
	for _, alert := range a.Alerts {
		fmt.Fprintf(&b, "  [%s] %s\n", strings.ToUpper(alert.Priority), alert.Message)
	}
	return b.String()
}

func Fertilizer(f *advisoryapi.FertilizerRecommendation) string {
	return fmt.Sprintf("Recommended fertilizer: %s (%s confidence)\n", f.FertilizerType, f.ConfidencePercent())
}

// Market renders a price list as plain text.
func Market(p *advisoryapi.MarketPrices) string {
	if len(p.Prices) == 0 {
		return "No prices found.\n"
	}
	var b strings.Builder
	for _, price := range p.Prices {
		fmt.Fprintf(&b, "%-16s %-16s %12s/quintal", price.Crop, price.Market, Rupees(price.PricePerQuintal))
		if price.Date != "" {
			fmt.Fprintf(&b, "  %s", price.Date)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// CropPrice renders one crop's price and its history.
func CropPrice(p *advisoryapi.CropPrice) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s/quintal", p.Crop, Rupees(p.PricePerQuintal))
	if p.Market != "" {
		fmt.Fprintf(&b, " at %s", p.Market)
	}
	if p.Trend != "" {
		fmt.Fprintf(&b, " (%s)", p.Trend)
	}
	b.WriteString("\n")
	for _, pt := range p.History {
		fmt.Fprintf(&b, "  %s  %s\n", pt.Date, Rupees(pt.PricePerQuintal))
	}
	return b.String()
}

// Pest renders a detection, flagging unreliable or unclassified results.
func Pest(d *advisoryapi.PestDetection) string {
	var b strings.Builder
	if !d.Classified() {
		b.WriteString("Could not identify a disease in this image.\n")
	} else {
		fmt.Fprintf(&b, "Detected: %s (%s confidence)\n", d.DiseaseDetected, d.ConfidenceLabel())
	}
	if !d.Reliable() {
		b.WriteString("Low confidence: confirm with a local agronomist before treating.\n")
	}
	if d.Warning != "" {
		fmt.Fprintf(&b, "Note: %s\n", d.Warning)
	}
	if len(d.ControlMeasures) > 0 {
		b.WriteString("Control measures:\n")
		for _, m := range d.ControlMeasures {
			fmt.Fprintf(&b, "  - %s\n", m)
		}
	}
	return b.String()
}
