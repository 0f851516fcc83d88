package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-assistant/internal/weather"
)

// weatherAPINoMatch is the WeatherAPI error code for "No matching location found."
const weatherAPINoMatch = 1006

// WeatherAPIProvider implements the weather.Provider interface for WeatherAPI.com.
type WeatherAPIProvider struct {
	name    string
	apiKey  string
	baseURL string
	client  *http.Client
	circuit *gobreaker.CircuitBreaker
}

func NewWeatherAPIProvider(client *http.Client, apiKey string, opts ...Option) *WeatherAPIProvider {
	o := applyOptions("https://api.weatherapi.com/v1/current.json", opts)
	return &WeatherAPIProvider{
		name:    "weatherapi",
		apiKey:  apiKey,
		baseURL: o.baseURL,
		client:  client,
		circuit: newCircuitBreaker("weatherapi"),
	}
}

func (p *WeatherAPIProvider) Name() string {
	return p.name
}

type weatherAPIPayload struct {
	Location struct {
		Name           string `json:"name"`
		Country        string `json:"country"`
		LocaltimeEpoch int64  `json:"localtime_epoch"`
	} `json:"location"`
	Current struct {
		TempC      float64 `json:"temp_c"`
		FeelsLikeC float64 `json:"feelslike_c"`
		Humidity   float64 `json:"humidity"`
		WindKph    float64 `json:"wind_kph"`
		WindDegree float64 `json:"wind_degree"`
		PressureMb float64 `json:"pressure_mb"`
		PrecipMm   float64 `json:"precip_mm"`
		VisKm      float64 `json:"vis_km"`
		Condition  struct {
			Text string `json:"text"`
		} `json:"condition"`
	} `json:"current"`
}

type weatherAPIError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (p *WeatherAPIProvider) FetchCurrent(ctx context.Context, loc weather.Location) (weather.Snapshot, error) {
	if p.apiKey == "" {
		return weather.Snapshot{}, fmt.Errorf("%w: weatherapi %v", weather.ErrTelemetryUnavailable, errNoAPIKey)
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("key", p.apiKey)
		// WeatherAPI uses "q" for location; it accepts "city,country" or "lat,lon".
		if loc.Lat != nil && loc.Lon != nil {
			values.Set("q", fmt.Sprintf("%f,%f", *loc.Lat, *loc.Lon))
		} else {
			values.Set("q", loc.Query())
		}

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequest(ctx, p.client, p.circuit, buildRequest)
	if err != nil {
		return weather.Snapshot{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusNotFound {
		var apiErr weatherAPIError
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error.Code == weatherAPINoMatch {
			return weather.Snapshot{}, fmt.Errorf("%w: %s: %s", weather.ErrLocationNotFound, loc.Query(), apiErr.Error.Message)
		}
		return weather.Snapshot{}, fmt.Errorf("%w: %w: %d", weather.ErrTelemetryUnavailable, errUnexpected, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return weather.Snapshot{}, unexpectedStatus(resp)
	}

	var payload weatherAPIPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.Snapshot{}, decodeError(p.name, err)
	}
	if payload.Location.Name == "" {
		return weather.Snapshot{}, decodeError(p.name, fmt.Errorf("missing location"))
	}

	return weather.Snapshot{
		Location: weather.Location{
			City:    payload.Location.Name,
			Country: payload.Location.Country,
		},
		Metrics: weather.Metrics{
			TemperatureC:     payload.Current.TempC,
			FeelsLikeC:       payload.Current.FeelsLikeC,
			MinTemperatureC:  payload.Current.TempC,
			MaxTemperatureC:  payload.Current.TempC,
			PressureHpa:      payload.Current.PressureMb,
			HumidityPct:      payload.Current.Humidity,
			WindSpeedMS:      payload.Current.WindKph / 3.6, // kph to m/s
			WindDirectionDeg: payload.Current.WindDegree,
			VisibilityKm:     payload.Current.VisKm,
			PrecipMm:         payload.Current.PrecipMm,
			Condition:        mapWeatherAPICondition(payload.Current.Condition.Text),
			Description:      payload.Current.Condition.Text,
		},
		FetchedAt: time.Now().UTC(),
		Provider:  p.name,
	}, nil
}

func mapWeatherAPICondition(text string) weather.Condition {
	switch {
	case text == "":
		return weather.ConditionUnknown
	case contains(text, "thunder") || contains(text, "storm"):
		return weather.ConditionStorm
	case contains(text, "rain") || contains(text, "shower") || contains(text, "drizzle"):
		return weather.ConditionRain
	case contains(text, "snow") || contains(text, "sleet") || contains(text, "blizzard"):
		return weather.ConditionSnow
	case contains(text, "mist") || contains(text, "fog"):
		return weather.ConditionMist
	case contains(text, "cloud") || contains(text, "overcast"):
		return weather.ConditionCloudy
	case contains(text, "sunny") || contains(text, "clear"):
		return weather.ConditionClear
	default:
		return weather.ConditionUnknown
	}
}

func contains(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
