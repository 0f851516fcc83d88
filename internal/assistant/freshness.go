package assistant

import (
	"strings"
	"time"

	"github.com/i474232898/weather-assistant/internal/knowledge"
	"github.com/i474232898/weather-assistant/internal/weather"
)

// DefaultStalenessThreshold is how old a cached observation may be before
// live telemetry is fetched again.
const DefaultStalenessThreshold = 30 * time.Minute

// FreshnessPolicy decides whether retrieved knowledge can answer a query.
type FreshnessPolicy struct {
	Threshold time.Duration
}

// NeedsFreshData reports whether live telemetry must be fetched. Only the
// most relevant entry is considered. The decision depends on nothing but
// the arguments.
func (p FreshnessPolicy) NeedsFreshData(entries []knowledge.Entry, intent Intent, now time.Time) bool {
	if len(entries) == 0 {
		return true
	}

	top := entries[0]
	if !sameLocation(top, intent.Location) {
		return true
	}

	threshold := p.Threshold
	if threshold <= 0 {
		threshold = DefaultStalenessThreshold
	}
	return now.Sub(top.ObservedAt) > threshold
}

// sameLocation matches an entry against a "City" or "City, Country" location.
// Entries store the bare city, so the country is compared only when both
// sides carry one.
func sameLocation(e knowledge.Entry, location string) bool {
	want := weather.ParseLocation(location)
	city := strings.TrimSpace(e.Location)
	if city == "" || !strings.EqualFold(city, want.City) {
		return false
	}
	country := strings.TrimSpace(e.Country)
	return want.Country == "" || country == "" || strings.EqualFold(country, want.Country)
}
