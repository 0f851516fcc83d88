package providers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-assistant/internal/common"
	"github.com/i474232898/weather-assistant/internal/weather"
)

const openWeatherPune = `{
  "name": "Pune",
  "timezone": 19800,
  "visibility": 6000,
  "main": {"temp": 28.4, "feels_like": 30.1, "temp_min": 27, "temp_max": 29, "pressure": 1008, "humidity": 62},
  "wind": {"speed": 4.6, "deg": 270},
  "rain": {"1h": 0.4},
  "sys": {"country": "IN", "sunrise": 1717201800, "sunset": 1717249200},
  "weather": [{"main": "Haze", "description": "haze"}]
}`

func serve(t *testing.T, status int, body string, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenWeatherFetchCurrent(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query().Get("q")
		assert.Equal(t, "metric", r.URL.Query().Get("units"))
		_, _ = w.Write([]byte(openWeatherPune))
	}))
	defer srv.Close()

	p := NewOpenWeatherProvider(srv.Client(), "key", WithBaseURL(srv.URL))
	snap, err := p.FetchCurrent(context.Background(), weather.Location{City: "Pune", Country: "IN"})
	require.NoError(t, err)

	assert.Equal(t, "Pune,IN", query)
	assert.Equal(t, "Pune", snap.Location.City)
	assert.Equal(t, "IN", snap.Location.Country)
	assert.Equal(t, 28.4, snap.Metrics.TemperatureC)
	assert.Equal(t, 62.0, snap.Metrics.HumidityPct)
	assert.Equal(t, 6.0, snap.Metrics.VisibilityKm)
	assert.Equal(t, 0.4, snap.Metrics.PrecipMm)
	assert.Equal(t, weather.ConditionMist, snap.Metrics.Condition)
	assert.Equal(t, "Haze", snap.Metrics.Description)
	assert.Equal(t, weather.SolarCycle{Sunrise: "06:00", Sunset: "19:10"}, snap.Metrics.Solar)
	assert.Equal(t, "openweather", snap.Provider)
}

func TestOpenWeatherErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"unknown city", http.StatusNotFound, `{"cod":"404","message":"city not found"}`, weather.ErrLocationNotFound},
		{"server error", http.StatusInternalServerError, `oops`, weather.ErrTelemetryUnavailable},
		{"rate limited", http.StatusTooManyRequests, `slow down`, weather.ErrTelemetryUnavailable},
		{"bad key", http.StatusUnauthorized, `{"cod":401}`, weather.ErrTelemetryUnavailable},
		{"garbage", http.StatusOK, `not json`, weather.ErrTelemetryUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := serve(t, tt.status, tt.body, nil)
			p := NewOpenWeatherProvider(srv.Client(), "key", WithBaseURL(srv.URL))

			_, err := p.FetchCurrent(context.Background(), weather.Location{City: "Atlantis"})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestOpenWeatherMissingKey(t *testing.T) {
	var hits atomic.Int32
	srv := serve(t, http.StatusOK, openWeatherPune, &hits)
	p := NewOpenWeatherProvider(srv.Client(), "", WithBaseURL(srv.URL))

	_, err := p.FetchCurrent(context.Background(), weather.Location{City: "Pune"})
	assert.ErrorIs(t, err, weather.ErrTelemetryUnavailable)
	assert.Zero(t, hits.Load())
}

func TestOpenWeatherTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(openWeatherPune))
	}))
	defer srv.Close()

	p := NewOpenWeatherProvider(srv.Client(), "key", WithBaseURL(srv.URL))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := p.FetchCurrent(ctx, weather.Location{City: "Pune"})
	assert.ErrorIs(t, err, common.ErrTransportTimeout)
}

type joinedErr []string

func (j joinedErr) Error() string { return strings.Join(j, "; ") }

type failingTransport struct{ err error }

func (f failingTransport) RoundTrip(*http.Request) (*http.Response, error) { return nil, f.err }

func TestTransportErrorWithUncomparableType(t *testing.T) {
	client := &http.Client{Transport: failingTransport{err: joinedErr{"tls handshake", "reset by peer"}}}
	p := NewOpenWeatherProvider(client, "key")

	_, err := p.FetchCurrent(context.Background(), weather.Location{City: "Pune"})
	assert.ErrorIs(t, err, weather.ErrTelemetryUnavailable)
	assert.NotErrorIs(t, err, common.ErrTransportTimeout)
}

func TestCircuitOpensAfterServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := serve(t, http.StatusBadGateway, "down", &hits)
	p := NewOpenWeatherProvider(srv.Client(), "key", WithBaseURL(srv.URL))

	// gobreaker's default policy trips after more than five consecutive failures.
	for range 10 {
		_, err := p.FetchCurrent(context.Background(), weather.Location{City: "Pune"})
		assert.ErrorIs(t, err, weather.ErrTelemetryUnavailable)
	}
	assert.Equal(t, int32(6), hits.Load())

	_, err := p.FetchCurrent(context.Background(), weather.Location{City: "Pune"})
	assert.ErrorIs(t, err, errCircuitOpen)
}

func TestWeatherAPIFetchCurrent(t *testing.T) {
	srv := serve(t, http.StatusOK, `{
	  "location": {"name": "London", "country": "United Kingdom"},
	  "current": {"temp_c": 14, "feelslike_c": 12.5, "humidity": 81, "wind_kph": 18, "wind_degree": 200,
	    "pressure_mb": 1012, "precip_mm": 0.2, "vis_km": 10, "condition": {"text": "Light rain shower"}}
	}`, nil)

	p := NewWeatherAPIProvider(srv.Client(), "key", WithBaseURL(srv.URL))
	snap, err := p.FetchCurrent(context.Background(), weather.Location{City: "London"})
	require.NoError(t, err)

	assert.Equal(t, "London", snap.Location.City)
	assert.Equal(t, weather.ConditionRain, snap.Metrics.Condition)
	assert.InDelta(t, 5.0, snap.Metrics.WindSpeedMS, 1e-9)
	assert.Equal(t, 10.0, snap.Metrics.VisibilityKm)
}

func TestWeatherAPINoMatchingLocation(t *testing.T) {
	srv := serve(t, http.StatusBadRequest, `{"error":{"code":1006,"message":"No matching location found."}}`, nil)
	p := NewWeatherAPIProvider(srv.Client(), "key", WithBaseURL(srv.URL))

	_, err := p.FetchCurrent(context.Background(), weather.Location{City: "Atlantis"})
	assert.ErrorIs(t, err, weather.ErrLocationNotFound)
}

func TestWeatherAPIOtherBadRequest(t *testing.T) {
	srv := serve(t, http.StatusBadRequest, `{"error":{"code":1003,"message":"Parameter q is missing."}}`, nil)
	p := NewWeatherAPIProvider(srv.Client(), "key", WithBaseURL(srv.URL))

	_, err := p.FetchCurrent(context.Background(), weather.Location{City: "Pune"})
	assert.ErrorIs(t, err, weather.ErrTelemetryUnavailable)
	assert.NotErrorIs(t, err, weather.ErrLocationNotFound)
}

func TestOpenMeteoFetchCurrent(t *testing.T) {
	var lat, lon string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lat, lon = r.URL.Query().Get("latitude"), r.URL.Query().Get("longitude")
		_, _ = w.Write([]byte(`{
		  "utc_offset_seconds": 19800,
		  "current": {"time": "2024-06-01T12:00", "temperature_2m": 31.2, "relative_humidity_2m": 45,
		    "apparent_temperature": 33, "pressure_msl": 1006, "wind_speed_10m": 3.1, "wind_direction_10m": 250,
		    "visibility": 24140, "precipitation": 0, "weather_code": 0},
		  "daily": {"sunrise": ["2024-06-01T05:59"], "sunset": ["2024-06-01T19:08"],
		    "temperature_2m_max": [34.5], "temperature_2m_min": [24.1]}
		}`))
	}))
	defer srv.Close()

	geocode := func(_ context.Context, loc weather.Location) (float64, float64, error) {
		assert.Equal(t, "Pune", loc.City)
		return 18.52, 73.86, nil
	}
	p := NewOpenMeteoProvider(srv.Client(), geocode, WithBaseURL(srv.URL))

	snap, err := p.FetchCurrent(context.Background(), weather.Location{City: "Pune"})
	require.NoError(t, err)

	assert.Equal(t, "18.520000", lat)
	assert.Equal(t, "73.860000", lon)
	assert.Equal(t, "Pune", snap.Location.City)
	assert.Equal(t, weather.ConditionClear, snap.Metrics.Condition)
	assert.Equal(t, 24.1, snap.Metrics.MinTemperatureC)
	assert.Equal(t, 34.5, snap.Metrics.MaxTemperatureC)
	assert.InDelta(t, 24.14, snap.Metrics.VisibilityKm, 1e-9)
	assert.Equal(t, weather.SolarCycle{Sunrise: "05:59", Sunset: "19:08"}, snap.Metrics.Solar)
}

func TestOpenMeteoGeocodeNotFound(t *testing.T) {
	var hits atomic.Int32
	srv := serve(t, http.StatusOK, `{}`, &hits)
	geocode := func(context.Context, weather.Location) (float64, float64, error) {
		return 0, 0, weather.ErrLocationNotFound
	}
	p := NewOpenMeteoProvider(srv.Client(), geocode, WithBaseURL(srv.URL))

	_, err := p.FetchCurrent(context.Background(), weather.Location{City: "Atlantis"})
	assert.ErrorIs(t, err, weather.ErrLocationNotFound)
	assert.Zero(t, hits.Load())
}

func TestMapOpenMeteoCondition(t *testing.T) {
	assert.Equal(t, weather.ConditionClear, mapOpenMeteoCondition(0))
	assert.Equal(t, weather.ConditionCloudy, mapOpenMeteoCondition(2))
	assert.Equal(t, weather.ConditionMist, mapOpenMeteoCondition(45))
	assert.Equal(t, weather.ConditionRain, mapOpenMeteoCondition(61))
	assert.Equal(t, weather.ConditionSnow, mapOpenMeteoCondition(73))
	assert.Equal(t, weather.ConditionStorm, mapOpenMeteoCondition(95))
	assert.Equal(t, weather.ConditionUnknown, mapOpenMeteoCondition(30))
}

type flakyProvider struct {
	errs  []error
	calls int
}

func (f *flakyProvider) Name() string { return "flaky" }

func (f *flakyProvider) FetchCurrent(context.Context, weather.Location) (weather.Snapshot, error) {
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return weather.Snapshot{}, err
	}
	return weather.Snapshot{Location: weather.Location{City: "Pune"}}, nil
}

func fastBackoff(n int) BackoffConfig {
	return BackoffConfig{MaxRetries: n, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond}
}

func TestWithRetry(t *testing.T) {
	unavailable := weather.ErrTelemetryUnavailable

	f := &flakyProvider{errs: []error{unavailable, unavailable}}
	snap, err := WithRetry(f, fastBackoff(2)).FetchCurrent(context.Background(), weather.Location{City: "Pune"})
	require.NoError(t, err)
	assert.Equal(t, "Pune", snap.Location.City)
	assert.Equal(t, 3, f.calls)

	f = &flakyProvider{errs: []error{unavailable, unavailable, unavailable}}
	_, err = WithRetry(f, fastBackoff(1)).FetchCurrent(context.Background(), weather.Location{City: "Pune"})
	assert.ErrorIs(t, err, unavailable)
	assert.Equal(t, 2, f.calls)
}

func TestWithRetrySkipsPermanentErrors(t *testing.T) {
	for _, perm := range []error{weather.ErrLocationNotFound, errors.Join(weather.ErrTelemetryUnavailable, errCircuitOpen)} {
		f := &flakyProvider{errs: []error{perm}}
		_, err := WithRetry(f, fastBackoff(3)).FetchCurrent(context.Background(), weather.Location{City: "Atlantis"})
		assert.ErrorIs(t, err, perm)
		assert.Equal(t, 1, f.calls)
	}
}

func TestWithRetryDisabled(t *testing.T) {
	f := &flakyProvider{}
	assert.Same(t, weather.Provider(f), WithRetry(f, fastBackoff(0)))
}
