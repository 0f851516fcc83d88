package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/kelvins/geocoder"
	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-assistant/internal/weather"
)

// GeocodeFunc resolves a location name to coordinates.
type GeocodeFunc func(ctx context.Context, loc weather.Location) (lat, lon float64, err error)

var geocoderKeyOnce sync.Once

// GoogleGeocoder returns a GeocodeFunc backed by the Google geocoding API.
// The geocoder package keeps its key in a package variable, so the first key wins.
func GoogleGeocoder(apiKey string) GeocodeFunc {
	geocoderKeyOnce.Do(func() {
		geocoder.ApiKey = apiKey
	})

	return func(ctx context.Context, loc weather.Location) (float64, float64, error) {
		if apiKey == "" {
			return 0, 0, fmt.Errorf("%w: geocoder %v", weather.ErrTelemetryUnavailable, errNoAPIKey)
		}

		type result struct {
			loc geocoder.Location
			err error
		}
		ch := make(chan result, 1)
		go func() {
			l, err := geocoder.Geocoding(geocoder.Address{
				City:    loc.City,
				Country: loc.Country,
			})
			ch <- result{loc: l, err: err}
		}()

		select {
		case <-ctx.Done():
			return 0, 0, ctx.Err()
		case r := <-ch:
			if r.err != nil {
				if strings.Contains(r.err.Error(), "ZERO_RESULTS") {
					return 0, 0, fmt.Errorf("%w: %s", weather.ErrLocationNotFound, loc.Query())
				}
				return 0, 0, fmt.Errorf("%w: geocoding: %v", weather.ErrTelemetryUnavailable, r.err)
			}
			return r.loc.Latitude, r.loc.Longitude, nil
		}
	}
}

// OpenMeteoProvider implements the weather.Provider interface for Open-Meteo.
// Open-Meteo is keyed by coordinates, so names are geocoded first.
type OpenMeteoProvider struct {
	name    string
	baseURL string
	client  *http.Client
	circuit *gobreaker.CircuitBreaker
	geocode GeocodeFunc
}

func NewOpenMeteoProvider(client *http.Client, geocode GeocodeFunc, opts ...Option) *OpenMeteoProvider {
	o := applyOptions("https://api.open-meteo.com/v1/forecast", opts)
	return &OpenMeteoProvider{
		name:    "openmeteo",
		baseURL: o.baseURL,
		client:  client,
		circuit: newCircuitBreaker("openmeteo"),
		geocode: geocode,
	}
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

type openMeteoPayload struct {
	UTCOffsetSeconds int `json:"utc_offset_seconds"`
	Current          *struct {
		Time                string  `json:"time"`
		Temperature         float64 `json:"temperature_2m"`
		RelativeHumidity    float64 `json:"relative_humidity_2m"`
		ApparentTemperature float64 `json:"apparent_temperature"`
		PressureMSL         float64 `json:"pressure_msl"`
		WindSpeed           float64 `json:"wind_speed_10m"`
		WindDirection       float64 `json:"wind_direction_10m"`
		Visibility          float64 `json:"visibility"`
		Precipitation       float64 `json:"precipitation"`
		WeatherCode         int     `json:"weather_code"`
	} `json:"current"`
	Daily struct {
		Sunrise []string  `json:"sunrise"`
		Sunset  []string  `json:"sunset"`
		TempMax []float64 `json:"temperature_2m_max"`
		TempMin []float64 `json:"temperature_2m_min"`
	} `json:"daily"`
}

func (p *OpenMeteoProvider) FetchCurrent(ctx context.Context, loc weather.Location) (weather.Snapshot, error) {
	if loc.Lat == nil || loc.Lon == nil {
		if p.geocode == nil {
			return weather.Snapshot{}, fmt.Errorf("%w: openmeteo requires latitude and longitude", weather.ErrTelemetryUnavailable)
		}
		lat, lon, err := p.geocode(ctx, loc)
		if err != nil {
			return weather.Snapshot{}, err
		}
		loc.Lat, loc.Lon = &lat, &lon
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("latitude", fmt.Sprintf("%f", *loc.Lat))
		values.Set("longitude", fmt.Sprintf("%f", *loc.Lon))
		values.Set("current", "temperature_2m,relative_humidity_2m,apparent_temperature,pressure_msl,wind_speed_10m,wind_direction_10m,visibility,precipitation,weather_code")
		values.Set("daily", "sunrise,sunset,temperature_2m_max,temperature_2m_min")
		values.Set("wind_speed_unit", "ms")
		values.Set("timezone", "auto")
		values.Set("forecast_days", "1")

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequest(ctx, p.client, p.circuit, buildRequest)
	if err != nil {
		return weather.Snapshot{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return weather.Snapshot{}, unexpectedStatus(resp)
	}
	defer resp.Body.Close()

	var payload openMeteoPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.Snapshot{}, decodeError(p.name, err)
	}
	if payload.Current == nil {
		return weather.Snapshot{}, decodeError(p.name, fmt.Errorf("missing current block"))
	}
	cur := payload.Current

	m := weather.Metrics{
		TemperatureC:     cur.Temperature,
		FeelsLikeC:       cur.ApparentTemperature,
		MinTemperatureC:  first(payload.Daily.TempMin, cur.Temperature),
		MaxTemperatureC:  first(payload.Daily.TempMax, cur.Temperature),
		PressureHpa:      cur.PressureMSL,
		HumidityPct:      cur.RelativeHumidity,
		WindSpeedMS:      cur.WindSpeed,
		WindDirectionDeg: cur.WindDirection,
		VisibilityKm:     cur.Visibility / 1000,
		PrecipMm:         cur.Precipitation,
		Condition:        mapOpenMeteoCondition(cur.WeatherCode),
	}
	m.Description = string(m.Condition)
	if len(payload.Daily.Sunrise) > 0 && len(payload.Daily.Sunset) > 0 {
		m.Solar = weather.SolarCycle{
			Sunrise: clockOf(payload.Daily.Sunrise[0]),
			Sunset:  clockOf(payload.Daily.Sunset[0]),
		}
	}

	return weather.Snapshot{
		Location:  loc,
		Metrics:   m,
		FetchedAt: time.Now().UTC(),
		Provider:  p.name,
	}, nil
}

// clockOf extracts HH:MM from an ISO local timestamp such as 2024-06-01T05:59.
func clockOf(ts string) string {
	if i := strings.Index(ts, "T"); i >= 0 && len(ts) >= i+6 {
		return ts[i+1 : i+6]
	}
	return ts
}

func first(vals []float64, def float64) float64 {
	if len(vals) == 0 {
		return def
	}
	return vals[0]
}

func mapOpenMeteoCondition(code int) weather.Condition {
	// Mapping based on Open-Meteo weather codes (simplified).
	switch {
	case code == 0:
		return weather.ConditionClear
	case code >= 1 && code <= 3:
		return weather.ConditionCloudy
	case code == 45 || code == 48:
		return weather.ConditionMist
	case (code >= 51 && code <= 67) || (code >= 80 && code <= 82):
		return weather.ConditionRain
	case (code >= 71 && code <= 77) || code == 85 || code == 86:
		return weather.ConditionSnow
	case code >= 95:
		return weather.ConditionStorm
	default:
		return weather.ConditionUnknown
	}
}
