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

// OpenWeatherProvider implements the weather.Provider interface for OpenWeatherMap.
type OpenWeatherProvider struct {
	name    string
	apiKey  string
	baseURL string
	client  *http.Client
	circuit *gobreaker.CircuitBreaker
}

func NewOpenWeatherProvider(client *http.Client, apiKey string, opts ...Option) *OpenWeatherProvider {
	o := applyOptions("https://api.openweathermap.org/data/2.5/weather", opts)
	return &OpenWeatherProvider{
		name:    "openweathermap",
		apiKey:  apiKey,
		baseURL: o.baseURL,
		client:  client,
		circuit: newCircuitBreaker("openweather"),
	}
}

func (p *OpenWeatherProvider) Name() string {
	return p.name
}

type openWeatherPayload struct {
	Name     string `json:"name"`
	Dt       int64  `json:"dt"`
	Timezone int    `json:"timezone"`
	Main     struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		TempMin   float64 `json:"temp_min"`
		TempMax   float64 `json:"temp_max"`
		Humidity  float64 `json:"humidity"`
		Pressure  float64 `json:"pressure"`
	} `json:"main"`
	Visibility float64 `json:"visibility"`
	Wind       struct {
		Speed float64 `json:"speed"`
		Deg   float64 `json:"deg"`
	} `json:"wind"`
	Rain struct {
		OneH   float64 `json:"1h"`
		ThreeH float64 `json:"3h"`
	} `json:"rain"`
	Sys struct {
		Country string `json:"country"`
		Sunrise int64  `json:"sunrise"`
		Sunset  int64  `json:"sunset"`
	} `json:"sys"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
}

func (p *OpenWeatherProvider) FetchCurrent(ctx context.Context, loc weather.Location) (weather.Snapshot, error) {
	if p.apiKey == "" {
		return weather.Snapshot{}, fmt.Errorf("%w: openweather %v", weather.ErrTelemetryUnavailable, errNoAPIKey)
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("appid", p.apiKey)
		values.Set("units", "metric")
		values.Set("q", loc.Query())

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequest(ctx, p.client, p.circuit, buildRequest)
	if err != nil {
		return weather.Snapshot{}, err
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		body := drain(resp)
		return weather.Snapshot{}, fmt.Errorf("%w: %s: %s", weather.ErrLocationNotFound, loc.Query(), body)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return weather.Snapshot{}, unexpectedStatus(resp)
	}
	defer resp.Body.Close()

	var payload openWeatherPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.Snapshot{}, decodeError(p.name, err)
	}
	if len(payload.Weather) == 0 && payload.Name == "" {
		return weather.Snapshot{}, decodeError(p.name, fmt.Errorf("empty payload"))
	}

	precip := payload.Rain.OneH
	if precip == 0 {
		precip = payload.Rain.ThreeH
	}

	var description string
	if len(payload.Weather) > 0 {
		description = capitalize(payload.Weather[0].Description)
	}

	return weather.Snapshot{
		Location: weather.Location{
			City:    payload.Name,
			Country: payload.Sys.Country,
		},
		Metrics: weather.Metrics{
			TemperatureC:     payload.Main.Temp,
			FeelsLikeC:       payload.Main.FeelsLike,
			MinTemperatureC:  payload.Main.TempMin,
			MaxTemperatureC:  payload.Main.TempMax,
			PressureHpa:      payload.Main.Pressure,
			HumidityPct:      payload.Main.Humidity,
			WindSpeedMS:      payload.Wind.Speed,
			WindDirectionDeg: payload.Wind.Deg,
			VisibilityKm:     payload.Visibility / 1000,
			PrecipMm:         precip,
			Condition:        mapOpenWeatherCondition(payload.Weather),
			Description:      description,
			Solar:            weather.NewSolarCycle(payload.Sys.Sunrise, payload.Sys.Sunset, payload.Timezone),
		},
		FetchedAt: time.Now().UTC(),
		Provider:  p.name,
	}, nil
}

func mapOpenWeatherCondition(items []struct {
	Main        string `json:"main"`
	Description string `json:"description"`
}) weather.Condition {
	if len(items) == 0 {
		return weather.ConditionUnknown
	}
	switch items[0].Main {
	case "Clear":
		return weather.ConditionClear
	case "Clouds":
		return weather.ConditionCloudy
	case "Rain", "Drizzle":
		return weather.ConditionRain
	case "Snow":
		return weather.ConditionSnow
	case "Thunderstorm":
		return weather.ConditionStorm
	case "Mist", "Fog", "Haze", "Smoke":
		return weather.ConditionMist
	default:
		return weather.ConditionUnknown
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
