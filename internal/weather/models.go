package weather

import (
	"strings"
	"time"
)

// Condition represents a normalized high-level weather condition.
type Condition string

const (
	ConditionUnknown Condition = "unknown"
	ConditionClear   Condition = "clear"
	ConditionCloudy  Condition = "cloudy"
	ConditionRain    Condition = "rain"
	ConditionSnow    Condition = "snow"
	ConditionStorm   Condition = "storm"
	ConditionMist    Condition = "mist"
)

// Location represents a place a user asked about.
// City is required, Country and coordinates are optional.
type Location struct {
	City    string   `json:"city"`
	Country string   `json:"country,omitempty"`
	Lat     *float64 `json:"lat,omitempty"`
	Lon     *float64 `json:"lon,omitempty"`
}

// ParseLocation turns free text such as "Pune" or "Paris, FR" into a Location.
// The part after the last comma is treated as the country.
func ParseLocation(s string) Location {
	s = strings.TrimSpace(s)
	if i := strings.LastIndex(s, ","); i > 0 {
		return Location{
			City:    strings.TrimSpace(s[:i]),
			Country: strings.TrimSpace(s[i+1:]),
		}
	}
	return Location{City: s}
}

// Key returns a canonical string key for indexing this location in stores.
func (l Location) Key() string {
	return strings.ToLower(l.City) + ":" + strings.ToLower(l.Country)
}

// Query returns the "city,country" form accepted by most providers.
func (l Location) Query() string {
	if l.Country == "" {
		return l.City
	}
	return l.City + "," + l.Country
}

// SolarCycle holds local sunrise and sunset times formatted as HH:MM.
type SolarCycle struct {
	Sunrise string `json:"sunrise,omitempty"`
	Sunset  string `json:"sunset,omitempty"`
}

// Metrics is the normalized set of measurements for one observation.
type Metrics struct {
	TemperatureC     float64    `json:"temperatureC"`
	FeelsLikeC       float64    `json:"feelsLikeC"`
	MinTemperatureC  float64    `json:"minTemperatureC"`
	MaxTemperatureC  float64    `json:"maxTemperatureC"`
	PressureHpa      float64    `json:"pressureHpa"`
	HumidityPct      float64    `json:"humidityPercent"`
	WindSpeedMS      float64    `json:"windSpeed"`
	WindDirectionDeg float64    `json:"windDirectionDeg"`
	VisibilityKm     float64    `json:"visibilityKm"`
	PrecipMm         float64    `json:"precipMm"`
	Condition        Condition  `json:"condition"`
	Description      string     `json:"description,omitempty"`
	Solar            SolarCycle `json:"solarCycle"`
}

// Snapshot is one live telemetry reading. It is built fresh on every fetch
// and never cached by the telemetry layer.
type Snapshot struct {
	Location  Location  `json:"location"`
	Metrics   Metrics   `json:"metrics"`
	FetchedAt time.Time `json:"fetchedAt"` // always UTC
	Provider  string    `json:"provider"`
}

// localClock formats a unix timestamp as HH:MM in a zone offset given in seconds.
func localClock(unix int64, offsetSeconds int) string {
	if unix == 0 {
		return ""
	}
	zone := time.FixedZone("local", offsetSeconds)
	return time.Unix(unix, 0).In(zone).Format("15:04")
}

// NewSolarCycle builds a SolarCycle from unix timestamps and a zone offset.
func NewSolarCycle(sunrise, sunset int64, offsetSeconds int) SolarCycle {
	return SolarCycle{
		Sunrise: localClock(sunrise, offsetSeconds),
		Sunset:  localClock(sunset, offsetSeconds),
	}
}
