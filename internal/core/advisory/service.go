// Package advisory runs the protected advisory requests on behalf of the
// signed-in user and publishes soil results to the shared farm store.
package advisory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/neilberkman/fieldhand/internal/core/advisoryapi"
	"github.com/neilberkman/fieldhand/internal/core/farmstate"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// API is the subset of the advisory client the service calls.
type API interface {
	AnalyzeSoil(ctx context.Context, sample advisoryapi.SoilSample) (*advisoryapi.SoilAnalysis, error)
	RecommendFertilizer(ctx context.Context, sample advisoryapi.SoilSample) (*advisoryapi.FertilizerRecommendation, error)
	RecommendCrops(ctx context.Context, q advisoryapi.CropQuery) (*advisoryapi.CropRecommendations, error)
	WeatherAdvisory(ctx context.Context, location string) (*advisoryapi.WeatherAdvisory, error)
	MarketPrices(ctx context.Context, crop string, since time.Time) (*advisoryapi.MarketPrices, error)
	CropPrice(ctx context.Context, crop string, includeTrends bool) (*advisoryapi.CropPrice, error)
	DetectPest(ctx context.Context, filename string, image io.Reader) (*advisoryapi.PestDetection, error)
}

// Session grants and revokes access. *session.Manager satisfies it.
type Session interface {
	Authorize(ctx context.Context) (context.Context, error)
	Invalidate(ctx context.Context, cause error)
}

// Defaults fill in what a request leaves blank.
type Defaults struct {
	Region          string
	Season          string
	WeatherLocation string
}

// Seasons accepted by the crop recommender.
var Seasons = []string{"summer", "winter", "rainy"}

// SoilInput is the farm-setup form.
type SoilInput struct {
	PH         float64
	Nitrogen   float64
	Phosphorus float64
	Potassium  float64
	Moisture   float64
	Region     string
	Season     string
}

// Validate rejects values the server would reject anyway.
func (in SoilInput) Validate() error {
	if in.PH < 0 || in.PH > 14 {
		return advisoryapi.Validation("pH must be between 0 and 14, got %g", in.PH)
	}
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"nitrogen", in.Nitrogen},
		{"phosphorus", in.Phosphorus},
		{"potassium", in.Potassium},
		{"moisture", in.Moisture},
	} {
		if f.v < 0 {
			return advisoryapi.Validation("%s cannot be negative", f.name)
		}
	}
	if in.Moisture > 100 {
		return advisoryapi.Validation("moisture is a percentage, got %g", in.Moisture)
	}
	if in.Season != "" && !validSeason(in.Season) {
		return advisoryapi.Validation("season must be one of %s", strings.Join(Seasons, ", "))
	}
	return nil
}

func validSeason(s string) bool {
	for _, v := range Seasons {
		if v == s {
			return true
		}
	}
	return false
}

// SoilResult is what one farm-setup submission produced.
type SoilResult struct {
	Soil   *advisoryapi.SoilAnalysis
	Crops  []advisoryapi.CropRecommendation
	Region string
	Season string
}

type Option func(*Service)

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithDefaults(d Defaults) Option {
	return func(s *Service) { s.defaults = d }
}

// Service is shared by every front end. It holds no state of its own
// beyond its collaborators.
type Service struct {
	api      API
	sess     Session
	farm     *farmstate.Store
	defaults Defaults
	logger   *zap.Logger
	now      func() time.Time
}

func New(api API, sess Session, farm *farmstate.Store, opts ...Option) *Service {
	s := &Service{
		api:  api,
		sess: sess,
		farm: farm,
		defaults: Defaults{
			Region:          "Andhra Pradesh",
			Season:          "rainy",
			WeatherLocation: "Visakhapatnam",
		},
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AnalyzeSoil submits the soil sample and the matching crop query
// together and records both in the farm store as one update. Nothing is
// recorded unless both succeed, and nothing is recorded if the store was
// cleared (logout) while the requests were running.
func (s *Service) AnalyzeSoil(ctx context.Context, in SoilInput) (*SoilResult, error) {
	if in.Season == "" {
		in.Season = s.defaults.Season
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	cropRegion := in.Region
	if cropRegion == "" {
		cropRegion = s.defaults.Region
	}

	epoch := s.farm.Epoch()

	authed, err := s.sess.Authorize(ctx)
	if err != nil {
		return nil, err
	}

	var (
		soil  *advisoryapi.SoilAnalysis
		crops *advisoryapi.CropRecommendations
	)
	g, gctx := errgroup.WithContext(authed)
	g.Go(func() error {
		var err error
		soil, err = s.api.AnalyzeSoil(gctx, advisoryapi.SoilSample{
			PH:         in.PH,
			Nitrogen:   in.Nitrogen,
			Phosphorus: in.Phosphorus,
			Potassium:  in.Potassium,
			Moisture:   in.Moisture,
			Region:     in.Region,
		})
		return err
	})
	g.Go(func() error {
		var err error
		crops, err = s.api.RecommendCrops(gctx, advisoryapi.CropQuery{
			Region: cropRegion,
			Season: in.Season,
			SoilPH: in.PH,
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, s.fail(authed, err)
	}

	res := &SoilResult{
		Soil:   soil,
		Crops:  crops.Recommendations,
		Region: cropRegion,
		Season: in.Season,
	}
	if res.Crops == nil {
		res.Crops = []advisoryapi.CropRecommendation{}
	}

	err = s.farm.RecordResultAt(epoch, farmstate.Result{Soil: res.Soil, Crops: res.Crops, CropsProvided: true})
	if errors.Is(err, farmstate.ErrStale) {
		s.logger.Info("discarding soil result from a session that has ended")
		return nil, err
	}
	if err != nil {
		return nil, advisoryapi.Internal("Could not record the analysis", err)
	}

	s.logger.Info("soil analysis recorded",
		zap.String("health", soil.OverallHealth),
		zap.Int("crops", len(res.Crops)))
	return res, nil
}

// RecommendCrops is a one-off crop query. It does not touch the farm store,
// since the crops would not belong to the stored soil analysis.
func (s *Service) RecommendCrops(ctx context.Context, region, season string, ph float64) ([]advisoryapi.CropRecommendation, error) {
	if region == "" {
		region = s.defaults.Region
	}
	if season == "" {
		season = s.defaults.Season
	}
	if err := (SoilInput{PH: ph, Season: season}).Validate(); err != nil {
		return nil, err
	}

	authed, err := s.sess.Authorize(ctx)
	if err != nil {
		return nil, err
	}
	out, err := s.api.RecommendCrops(authed, advisoryapi.CropQuery{Region: region, Season: season, SoilPH: ph})
	if err != nil {
		return nil, s.fail(authed, err)
	}
	return out.Recommendations, nil
}

// Fertilizer asks for a fertilizer recommendation without a full analysis.
func (s *Service) Fertilizer(ctx context.Context, in SoilInput) (*advisoryapi.FertilizerRecommendation, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	authed, err := s.sess.Authorize(ctx)
	if err != nil {
		return nil, err
	}
	out, err := s.api.RecommendFertilizer(authed, advisoryapi.SoilSample{
		PH:         in.PH,
		Nitrogen:   in.Nitrogen,
		Phosphorus: in.Phosphorus,
		Potassium:  in.Potassium,
		Moisture:   in.Moisture,
		Region:     in.Region,
	})
	if err != nil {
		return nil, s.fail(authed, err)
	}
	return out, nil
}

// Weather fetches the advisory for location, or the configured default.
func (s *Service) Weather(ctx context.Context, location string) (*advisoryapi.WeatherAdvisory, error) {
	if location = strings.TrimSpace(location); location == "" {
		location = s.defaults.WeatherLocation
	}
	authed, err := s.sess.Authorize(ctx)
	if err != nil {
		return nil, err
	}
	out, err := s.api.WeatherAdvisory(authed, location)
	if err != nil {
		return nil, s.fail(authed, err)
	}
	return out, nil
}

// MarketPrices lists prices for crop (all crops when empty) since a
// natural-language or calendar date such as "last week" or "2026-10-01".
func (s *Service) MarketPrices(ctx context.Context, crop, since string) (*advisoryapi.MarketPrices, error) {
	var from time.Time
	if since = strings.TrimSpace(since); since != "" {
		t, ok := ParseSince(since, s.now())
		if !ok {
			return nil, advisoryapi.Validation("could not understand date %q", since)
		}
		from = t
	}

	authed, err := s.sess.Authorize(ctx)
	if err != nil {
		return nil, err
	}
	out, err := s.api.MarketPrices(authed, strings.ToLower(strings.TrimSpace(crop)), from)
	if err != nil {
		return nil, s.fail(authed, err)
	}
	return out, nil
}

// CropPrice fetches the current price of one crop, with history when trends
// is set.
func (s *Service) CropPrice(ctx context.Context, crop string, trends bool) (*advisoryapi.CropPrice, error) {
	crop = strings.ToLower(strings.TrimSpace(crop))
	if crop == "" {
		return nil, advisoryapi.Validation("Please name a crop")
	}
	authed, err := s.sess.Authorize(ctx)
	if err != nil {
		return nil, err
	}
	out, err := s.api.CropPrice(authed, crop, trends)
	if err != nil {
		return nil, s.fail(authed, err)
	}
	return out, nil
}

var imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".bmp": true, ".gif": true}

// DetectPest uploads a leaf photo for classification.
func (s *Service) DetectPest(ctx context.Context, filename string, image io.Reader) (*advisoryapi.PestDetection, error) {
	if !imageExts[strings.ToLower(filepath.Ext(filename))] {
		return nil, advisoryapi.Validation("%s is not an image (want jpg, png, webp, bmp or gif)", filepath.Base(filename))
	}
	authed, err := s.sess.Authorize(ctx)
	if err != nil {
		return nil, err
	}
	out, err := s.api.DetectPest(authed, filename, image)
	if err != nil {
		return nil, s.fail(authed, err)
	}
	return out, nil
}

// fail ends the session on a 401 and passes err through.
func (s *Service) fail(authed context.Context, err error) error {
	if advisoryapi.IsAuth(err) {
		s.sess.Invalidate(authed, err)
	}
	if advisoryapi.KindOf(err) == advisoryapi.KindInternal {
		return fmt.Errorf("advisory request failed: %w", err)
	}
	return err
}
