package weather

import (
	"context"
	"errors"
)

var (
	// ErrLocationNotFound is returned when the provider reports that the
	// requested place does not exist.
	ErrLocationNotFound = errors.New("location not found")

	// ErrTelemetryUnavailable is returned when the provider answered with a
	// non-success status or a payload that could not be parsed.
	ErrTelemetryUnavailable = errors.New("telemetry unavailable")
)

// Provider abstracts a weather data source (e.g. OpenWeatherMap, WeatherAPI, Open-Meteo).
type Provider interface {
	Name() string
	FetchCurrent(ctx context.Context, loc Location) (Snapshot, error)
}
