package advisoryapi

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Reading is a display value the server may send as a string, a number, or
// a numeric range such as [6.0, 7.5].
type Reading string

func (r *Reading) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*r = ""
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = Reading(s)
	case '[':
		var parts []json.Number
		if err := json.Unmarshal(data, &parts); err != nil {
			return err
		}
		strs := make([]string, len(parts))
		for i, p := range parts {
			strs[i] = p.String()
		}
		*r = Reading(strings.Join(strs, "-"))
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*r = Reading(n.String())
	}
	return nil
}

func (r Reading) String() string {
	return string(r)
}

// SoilSample is the soil-analysis request body.
type SoilSample struct {
	PH         float64 `json:"ph"`
	Nitrogen   float64 `json:"nitrogen"`
	Phosphorus float64 `json:"phosphorus"`
	Potassium  float64 `json:"potassium"`
	Moisture   float64 `json:"moisture"`
	Region     string  `json:"region"`
}

// SoilAnalysis is the soil-analysis response.
type SoilAnalysis struct {
	Soil          SoilReadings              `json:"soil_analysis" yaml:"soil_analysis"`
	OverallHealth string                    `json:"overall_health" yaml:"overall_health"`
	Fertilizer    *FertilizerRecommendation `json:"fertilizer_recommendation,omitempty" yaml:"fertilizer_recommendation,omitempty"`
}

// Clone returns a deep copy.
func (a *SoilAnalysis) Clone() *SoilAnalysis {
	if a == nil {
		return nil
	}
	cp := *a
	if a.Fertilizer != nil {
		f := *a.Fertilizer
		cp.Fertilizer = &f
	}
	return &cp
}

type SoilReadings struct {
	PH        PHStatus  `json:"ph" yaml:"ph"`
	Nutrients Nutrients `json:"nutrients" yaml:"nutrients"`
}

type PHStatus struct {
	Value          float64 `json:"value" yaml:"value"`
	Status         string  `json:"status" yaml:"status"`
	Recommendation string  `json:"recommendation,omitempty" yaml:"recommendation,omitempty"`
}

type Nutrients struct {
	Nitrogen   Reading `json:"nitrogen" yaml:"nitrogen"`
	Phosphorus Reading `json:"phosphorus" yaml:"phosphorus"`
	Potassium  Reading `json:"potassium" yaml:"potassium"`
	Moisture   Reading `json:"moisture" yaml:"moisture"`
}

type FertilizerRecommendation struct {
	FertilizerType string  `json:"fertilizer_type" yaml:"fertilizer_type"`
	Confidence     float64 `json:"confidence" yaml:"confidence"`
}

// ConfidencePercent formats Confidence (0..1) as a percentage with one decimal.
func (f FertilizerRecommendation) ConfidencePercent() string {
	return strconv.FormatFloat(f.Confidence*100, 'f', 1, 64) + "%"
}

// CropQuery is the crop-recommendation request body.
type CropQuery struct {
	Region string  `json:"region"`
	Season string  `json:"season"`
	SoilPH float64 `json:"soil_ph"`
}

// CropRecommendation is one ranked crop. Order in a response is rank order.
type CropRecommendation struct {
	Crop      string  `json:"crop" yaml:"crop"`
	WaterNeed Reading `json:"water_need" yaml:"water_need"`
	PHRange   Reading `json:"ph_range" yaml:"ph_range"`
	Season    string  `json:"season" yaml:"season"`
	Region    string  `json:"region" yaml:"region"`
}

type CropRecommendations struct {
	Recommendations []CropRecommendation `json:"recommendations"`
	Count           int                  `json:"count"`
}

type WeatherAdvisory struct {
	Location string         `json:"location,omitempty"`
	Weather  WeatherReading `json:"weather"`
	Alerts   []WeatherAlert `json:"alerts"`
}

type WeatherReading struct {
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	RainfallMM  float64 `json:"rainfall_mm"`
}

type WeatherAlert struct {
	Message  string `json:"message"`
	Priority string `json:"priority"`
}

type MarketPrice struct {
	Crop            string  `json:"crop"`
	Market          string  `json:"market"`
	PricePerQuintal float64 `json:"price_per_quintal"`
	Date            string  `json:"date,omitempty"`
}

type MarketPrices struct {
	Prices []MarketPrice `json:"prices"`
}

// PricePoint is one sample of a crop's price history.
type PricePoint struct {
	Date            string  `json:"date"`
	PricePerQuintal float64 `json:"price_per_quintal"`
}

type CropPrice struct {
	Crop            string       `json:"crop"`
	Market          string       `json:"market,omitempty"`
	PricePerQuintal float64      `json:"price_per_quintal"`
	Trend           string       `json:"trend,omitempty"`
	History         []PricePoint `json:"trends,omitempty"`
}

type PestDetection struct {
	DiseaseDetected      string   `json:"disease_detected"`
	Confidence           float64  `json:"confidence"`
	ConfidencePercentage float64  `json:"confidence_percentage,omitempty"`
	IsReliable           *bool    `json:"is_reliable,omitempty"`
	ControlMeasures      []string `json:"control_measures,omitempty"`
	Warning              string   `json:"warning,omitempty"`
	ImagePath            string   `json:"image_path,omitempty"`
}

// Reliable treats a missing is_reliable flag as reliable.
func (p PestDetection) Reliable() bool {
	return p.IsReliable == nil || *p.IsReliable
}

// Classified is false when the model could not name a disease.
func (p PestDetection) Classified() bool {
	switch p.DiseaseDetected {
	case "", "Unable to Classify", "Unknown / Uncertain":
		return false
	}
	return true
}

// ConfidenceLabel prefers the server's percentage and falls back to Confidence.
func (p PestDetection) ConfidenceLabel() string {
	pct := p.ConfidencePercentage
	if pct == 0 {
		pct = p.Confidence * 100
	}
	return strconv.FormatFloat(pct, 'f', 1, 64) + "%"
}
