package advisory

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/neilberkman/fieldhand/internal/core/advisoryapi"
	"github.com/neilberkman/fieldhand/internal/core/credstore"
	"github.com/neilberkman/fieldhand/internal/core/farmstate"
	"github.com/neilberkman/fieldhand/internal/core/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const soilJSON = `{
	"soil_analysis": {
		"ph": {"value": 6.5, "status": "Neutral"},
		"nutrients": {"nitrogen": "Medium", "phosphorus": "Low", "potassium": "High", "moisture": "Adequate"}
	},
	"overall_health": "Good",
	"fertilizer_recommendation": {"fertilizer_type": "DAP", "confidence": 0.9}
}`

const cropsJSON = `{"count": 2, "recommendations": [
	{"crop": "Rice", "water_need": "High", "ph_range": "5.5-7.0", "season": "rainy", "region": "Andhra Pradesh"},
	{"crop": "Cotton", "water_need": "Medium", "ph_range": "6.0-8.0", "season": "rainy", "region": "Andhra Pradesh"}
]}`

// fakeServer is the advisory API with a session cookie check on every
// protected route.
type fakeServer struct {
	mu        sync.Mutex
	cropQuery advisoryapi.CropQuery
	soilHits  int
	hold      chan struct{} // when set, soil analysis waits on it
	soilFail  int           // status to fail soil analysis with

	fertSample advisoryapi.SoilSample
}

func (f *fakeServer) router(t *testing.T) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/auth/check-session", func(w http.ResponseWriter, req *http.Request) {
		if c, err := req.Cookie(advisoryapi.SessionCookie); err == nil && c.Value == "abc" {
			_, _ = io.WriteString(w, `{"authenticated": true, "email": "farmer@example.com"}`)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	})
	r.HandleFunc("/api/auth/logout", func(w http.ResponseWriter, req *http.Request) {
		_, _ = io.WriteString(w, `{"message": "Logged out"}`)
	})

	protected := r.PathPrefix("/api").Subrouter()
	protected.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if c, err := req.Cookie(advisoryapi.SessionCookie); err != nil || c.Value != "abc" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = io.WriteString(w, `{"error": "Not authenticated"}`)
				return
			}
			next.ServeHTTP(w, req)
		})
	})
	protected.HandleFunc("/soil/analyze", func(w http.ResponseWriter, req *http.Request) {
		f.mu.Lock()
		f.soilHits++
		hold, fail := f.hold, f.soilFail
		f.mu.Unlock()
		if hold != nil {
			<-hold
		}
		if fail != 0 {
			w.WriteHeader(fail)
			_, _ = io.WriteString(w, `{"error": "Soil model unavailable"}`)
			return
		}
		_, _ = io.WriteString(w, soilJSON)
	}).Methods(http.MethodPost)
	protected.HandleFunc("/fertilizer/recommend", func(w http.ResponseWriter, req *http.Request) {
		var sample advisoryapi.SoilSample
		require.NoError(t, json.NewDecoder(req.Body).Decode(&sample))
		f.mu.Lock()
		f.fertSample = sample
		f.mu.Unlock()
		_, _ = io.WriteString(w, `{"fertilizer_type": "Urea", "confidence": 0.75}`)
	}).Methods(http.MethodPost)
	protected.HandleFunc("/crops/recommend", func(w http.ResponseWriter, req *http.Request) {
		f.mu.Lock()
		require.NoError(t, json.NewDecoder(req.Body).Decode(&f.cropQuery))
		f.mu.Unlock()
		_, _ = io.WriteString(w, cropsJSON)
	}).Methods(http.MethodPost)
	protected.HandleFunc("/weather/advisory", func(w http.ResponseWriter, req *http.Request) {
		_, _ = io.WriteString(w, `{"weather": {"temperature": 31, "humidity": 80, "rainfall_mm": 12}, "alerts": [{"message": "Heavy rain expected", "priority": "high"}]}`)
	})
	protected.HandleFunc("/market/prices", func(w http.ResponseWriter, req *http.Request) {
		_ = json.NewEncoder(w).Encode(advisoryapi.MarketPrices{Prices: []advisoryapi.MarketPrice{
			{Crop: req.URL.Query().Get("crop"), Market: "Guntur", PricePerQuintal: 2100, Date: req.URL.Query().Get("since")},
		}})
	})
	protected.HandleFunc("/pest/detect", func(w http.ResponseWriter, req *http.Request) {
		_, _ = io.WriteString(w, `{"disease_detected": "Leaf Blight", "confidence": 0.82}`)
	})
	return r
}

type fixture struct {
	server  *fakeServer
	manager *session.Manager
	farm    *farmstate.Store
	svc     *Service
	store   credstore.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fs := &fakeServer{}
	srv := httptest.NewServer(fs.router(t))
	t.Cleanup(srv.Close)

	client, err := advisoryapi.New(srv.URL, advisoryapi.WithTimeout(5*time.Second))
	require.NoError(t, err)

	store := credstore.NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), credstore.Credentials{SessionID: "abc", Email: "farmer@example.com"}))

	farm := farmstate.New()
	manager := session.New(client, store, session.WithFarmState(farm))
	snap, err := manager.CheckSession(context.Background())
	require.NoError(t, err)
	require.True(t, snap.Authenticated())

	return &fixture{
		server:  fs,
		manager: manager,
		farm:    farm,
		svc:     New(client, manager, farm),
		store:   store,
	}
}

func TestAnalyzeSoil_RecordsBothTogether(t *testing.T) {
	f := newFixture(t)

	var seen []farmstate.State
	f.farm.Subscribe(func(s farmstate.State) { seen = append(seen, s) })

	res, err := f.svc.AnalyzeSoil(context.Background(), SoilInput{PH: 6.5, Nitrogen: 40, Phosphorus: 20, Potassium: 30, Moisture: 25})
	require.NoError(t, err)

	assert.Equal(t, "Good", res.Soil.OverallHealth)
	require.Len(t, res.Crops, 2)
	assert.Equal(t, "Andhra Pradesh", res.Region)

	// Crop query used the defaults and the form's pH
	f.server.mu.Lock()
	assert.Equal(t, advisoryapi.CropQuery{Region: "Andhra Pradesh", Season: "rainy", SoilPH: 6.5}, f.server.cropQuery)
	f.server.mu.Unlock()

	require.Len(t, seen, 1, "one notification for the whole result")
	assert.Equal(t, "Good", seen[0].Soil.OverallHealth)
	assert.Equal(t, "Rice", seen[0].Crops[0].Crop)
	assert.Equal(t, "Cotton", seen[0].Crops[1].Crop)
	assert.True(t, seen[0].CropsCurrent())
}

func TestAnalyzeSoil_ValidationSkipsNetwork(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		in   SoilInput
	}{
		{"ph too high", SoilInput{PH: 14.5}},
		{"negative nitrogen", SoilInput{PH: 6, Nitrogen: -1}},
		{"moisture over 100", SoilInput{PH: 6, Moisture: 120}},
		{"bad season", SoilInput{PH: 6, Season: "monsoon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.AnalyzeSoil(context.Background(), tt.in)
			require.Error(t, err)
			assert.Equal(t, advisoryapi.KindValidation, advisoryapi.KindOf(err))
		})
	}
	assert.Zero(t, f.server.soilHits)
}

func TestValidate_ReportsFieldsInOrder(t *testing.T) {
	for i := 0; i < 20; i++ {
		err := SoilInput{PH: 6, Nitrogen: -1, Phosphorus: -1, Potassium: -1, Moisture: -1}.Validate()
		require.Error(t, err)
		assert.Equal(t, "nitrogen cannot be negative", err.Error())
	}

	err := SoilInput{PH: 6, Potassium: -3, Moisture: -1}.Validate()
	require.Error(t, err)
	assert.Equal(t, "potassium cannot be negative", err.Error())
}

func TestFertilizer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.svc.Fertilizer(ctx, SoilInput{PH: 5.8, Nitrogen: 12, Phosphorus: 20, Potassium: 30, Moisture: 40, Region: "Punjab"})
	require.NoError(t, err)
	assert.Equal(t, "Urea", rec.FertilizerType)
	assert.Equal(t, "75.0%", rec.ConfidencePercent())

	f.server.mu.Lock()
	sample := f.server.fertSample
	f.server.mu.Unlock()
	assert.Equal(t, 5.8, sample.PH)
	assert.Equal(t, "Punjab", sample.Region)
	assert.True(t, f.farm.State().Empty(), "a fertilizer query is not a soil analysis")

	_, err = f.svc.Fertilizer(ctx, SoilInput{PH: 6, Moisture: -5})
	assert.Equal(t, advisoryapi.KindValidation, advisoryapi.KindOf(err))

	require.NoError(t, f.manager.Logout(ctx))
	_, err = f.svc.Fertilizer(ctx, SoilInput{PH: 6})
	assert.True(t, advisoryapi.IsAuth(err))
}

func TestAnalyzeSoil_FailureRecordsNothing(t *testing.T) {
	f := newFixture(t)
	f.server.mu.Lock()
	f.server.soilFail = http.StatusInternalServerError
	f.server.mu.Unlock()

	_, err := f.svc.AnalyzeSoil(context.Background(), SoilInput{PH: 6.5})
	require.Error(t, err)
	assert.Equal(t, "Soil model unavailable", err.Error())
	assert.True(t, f.farm.State().Empty())
	assert.True(t, f.manager.Snapshot().Authenticated())
}

func TestAnalyzeSoil_LogoutWhileInFlight(t *testing.T) {
	f := newFixture(t)
	hold := make(chan struct{})
	f.server.mu.Lock()
	f.server.hold = hold
	f.server.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		_, err := f.svc.AnalyzeSoil(context.Background(), SoilInput{PH: 6.5})
		done <- err
	}()

	require.Eventually(t, func() bool {
		f.server.mu.Lock()
		defer f.server.mu.Unlock()
		return f.server.soilHits == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, f.manager.Logout(context.Background()))
	close(hold)

	assert.ErrorIs(t, <-done, farmstate.ErrStale)
	assert.True(t, f.farm.State().Empty(), "result from the ended session must not be recorded")
}

func TestProtectedCallsRequireSession(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.manager.Logout(context.Background()))

	_, err := f.svc.Weather(context.Background(), "")
	assert.True(t, advisoryapi.IsAuth(err))
	_, err = f.svc.AnalyzeSoil(context.Background(), SoilInput{PH: 6.5})
	assert.True(t, advisoryapi.IsAuth(err))
}

func TestUnauthorizedResponseInvalidatesSession(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.farm.RecordResult(farmstate.Result{Soil: &advisoryapi.SoilAnalysis{OverallHealth: "Good"}}))

	// The server forgets the session
	svc := New(revokedAPI{}, f.manager, f.farm)

	_, err := svc.Weather(context.Background(), "Guntur")
	require.True(t, advisoryapi.IsAuth(err))

	assert.Equal(t, session.StateUnauthenticated, f.manager.Snapshot().State)
	assert.True(t, f.farm.State().Empty())
	creds, err := f.store.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, creds)
}

// revokedAPI answers every call with a 401.
type revokedAPI struct{ API }

func (revokedAPI) WeatherAdvisory(context.Context, string) (*advisoryapi.WeatherAdvisory, error) {
	return nil, &advisoryapi.Error{Kind: advisoryapi.KindAuth, Status: 401, Message: "Not authenticated"}
}

func TestWeatherMarketPest(t *testing.T) {
	f := newFixture(t)
	f.svc.now = func() time.Time { return time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	w, err := f.svc.Weather(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "Visakhapatnam", w.Location)
	require.Len(t, w.Alerts, 1)

	prices, err := f.svc.MarketPrices(ctx, " Rice ", "2026-10-01")
	require.NoError(t, err)
	require.Len(t, prices.Prices, 1)
	assert.Equal(t, "rice", prices.Prices[0].Crop)
	assert.Equal(t, "2026-10-01", prices.Prices[0].Date)

	_, err = f.svc.MarketPrices(ctx, "rice", "whenever the rains come")
	assert.Equal(t, advisoryapi.KindValidation, advisoryapi.KindOf(err))

	_, err = f.svc.DetectPest(ctx, "notes.txt", strings.NewReader("x"))
	assert.Equal(t, advisoryapi.KindValidation, advisoryapi.KindOf(err))

	pest, err := f.svc.DetectPest(ctx, "leaf.JPG", strings.NewReader("fake"))
	require.NoError(t, err)
	assert.Equal(t, "Leaf Blight", pest.DiseaseDetected)
}

func TestParseSince(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		in   string
		want string
	}{
		{"2026-10-01", "2026-10-01"},
		{"2026/09/30", "2026-09-30"},
		{"05/10/2026", "2026-10-05"},
		{"yesterday", "2026-10-15"},
		{"3 days ago", "2026-10-13"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseSince(tt.in, now)
			require.True(t, ok)
			assert.Equal(t, tt.want, got.Format("2006-01-02"))
		})
	}

	_, ok := ParseSince("after the harvest festival", now)
	assert.False(t, ok)
}
