package advisoryapi

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"time"
)

func (c *Client) AnalyzeSoil(ctx context.Context, sample SoilSample) (*SoilAnalysis, error) {
	var out SoilAnalysis
	if err := c.doJSON(ctx, http.MethodPost, "/api/soil/analyze", nil, sample, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RecommendFertilizer(ctx context.Context, sample SoilSample) (*FertilizerRecommendation, error) {
	var out FertilizerRecommendation
	if err := c.doJSON(ctx, http.MethodPost, "/api/fertilizer/recommend", nil, sample, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RecommendCrops(ctx context.Context, q CropQuery) (*CropRecommendations, error) {
	var out CropRecommendations
	if err := c.doJSON(ctx, http.MethodPost, "/api/crops/recommend", nil, q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) WeatherAdvisory(ctx context.Context, location string) (*WeatherAdvisory, error) {
	var out WeatherAdvisory
	q := url.Values{"location": {location}}
	if err := c.doJSON(ctx, http.MethodGet, "/api/weather/advisory", q, nil, &out); err != nil {
		return nil, err
	}
	if out.Location == "" {
		out.Location = location
	}
	return &out, nil
}

// MarketPrices lists prices, optionally filtered by crop and start date.
func (c *Client) MarketPrices(ctx context.Context, crop string, since time.Time) (*MarketPrices, error) {
	q := url.Values{}
	if crop != "" {
		q.Set("crop", crop)
	}
	if !since.IsZero() {
		q.Set("since", since.Format("2006-01-02"))
	}
	var out MarketPrices
	if err := c.doJSON(ctx, http.MethodGet, "/api/market/prices", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CropPrice(ctx context.Context, crop string, includeTrends bool) (*CropPrice, error) {
	q := url.Values{"trends": {strconv.FormatBool(includeTrends)}}
	var out CropPrice
	if err := c.doJSON(ctx, http.MethodGet, "/api/market/price/"+url.PathEscape(crop), q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DetectPest uploads an image as multipart field "image".
func (c *Client) DetectPest(ctx context.Context, filename string, image io.Reader) (*PestDetection, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", filepath.Base(filename))
	if err != nil {
		return nil, Internal("failed to build upload", err)
	}
	if _, err := io.Copy(part, image); err != nil {
		return nil, Internal("failed to read image", err)
	}
	if err := mw.Close(); err != nil {
		return nil, Internal("failed to build upload", err)
	}

	var out PestDetection
	if err := c.do(ctx, http.MethodPost, "/api/pest/detect", nil, mw.FormDataContentType(), &buf, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
