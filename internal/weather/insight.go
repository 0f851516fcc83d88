package weather

import (
	"fmt"
	"strings"
)

// Describe renders a snapshot as a single descriptive paragraph. The text is
// what gets embedded into the knowledge base and later handed to the
// language engine as retrieved context.
func Describe(s Snapshot) string {
	m := s.Metrics
	place := s.Location.City
	if s.Location.Country != "" {
		place += ", " + s.Location.Country
	}

	desc := m.Description
	if desc == "" {
		desc = string(m.Condition)
	}
	if desc == "" {
		desc = "unobserved"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Weather observation for %s at %s. ", place, s.FetchedAt.UTC().Format("2006-01-02 15:04 MST"))
	fmt.Fprintf(&b, "Conditions are %s with a temperature of %.1f°C (feels like %.1f°C). ", strings.ToLower(desc), m.TemperatureC, m.FeelsLikeC)
	fmt.Fprintf(&b, "Pressure is %.0f hPa and relative humidity is %.0f%%. ", m.PressureHpa, m.HumidityPct)
	fmt.Fprintf(&b, "Visibility extends to %.1f km. ", m.VisibilityKm)
	fmt.Fprintf(&b, "Wind is %.1f m/s from %.0f°.", m.WindSpeedMS, m.WindDirectionDeg)
	if m.Solar.Sunrise != "" || m.Solar.Sunset != "" {
		fmt.Fprintf(&b, " Sunrise at %s and sunset at %s local time.", orNA(m.Solar.Sunrise), orNA(m.Solar.Sunset))
	}
	return b.String()
}

func orNA(s string) string {
	if s == "" {
		return "n/a"
	}
	return s
}
