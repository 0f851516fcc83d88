package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-assistant/internal/weather"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir()) // no .env
	t.Setenv("WEATHER_LOCATION_CITY", "")
	t.Setenv("WEATHER_LOCATION_COUNTRY", "")
	t.Setenv("LLM_API_KEY", "")
	t.Setenv("OPENROUTER_API_KEY", "or-key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "openweather", cfg.TelemetryProvider)
	assert.Equal(t, "or-key", cfg.LLMAPIKey)
	assert.Equal(t, cfg.LLMModel, cfg.LLMIntentModel)
	assert.Equal(t, 30*time.Minute, cfg.StalenessThreshold)
	assert.Equal(t, 3, cfg.RetrievalK)
	assert.Equal(t, "sqlite", cfg.KBBackend)
	assert.Equal(t, DefaultKBMinSimilarity, cfg.KBMinSimilarity)
	assert.Empty(t, cfg.Locations)
}

func TestLoadOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("TELEMETRY_PROVIDER", "OpenMeteo")
	t.Setenv("STALENESS_THRESHOLD", "10m")
	t.Setenv("LLM_TEMPERATURE", "0.7")
	t.Setenv("WEATHER_LOCATION_CITY", "Pune, London")
	t.Setenv("WEATHER_LOCATION_COUNTRY", "IN, GB")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "openmeteo", cfg.TelemetryProvider)
	assert.Equal(t, 10*time.Minute, cfg.StalenessThreshold)
	assert.InDelta(t, 0.7, cfg.LLMTemperature, 1e-9)
	assert.Equal(t, []weather.Location{
		{City: "Pune", Country: "IN"},
		{City: "London", Country: "GB"},
	}, cfg.Locations)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string][2]string{
		"bad duration":  {"STALENESS_THRESHOLD", "soon"},
		"bad provider":  {"TELEMETRY_PROVIDER", "darksky"},
		"bad backend":   {"KB_BACKEND", "postgres"},
		"bad k":         {"RETRIEVAL_K", "0"},
		"bad intent":    {"INTENT_MODE", "regex"},
		"bad float":     {"KB_MIN_SIMILARITY", "high"},
		"hot engine":    {"LLM_TEMPERATURE", "3"},
		"bad embedding": {"EMBEDDING_PROVIDER", "cohere"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			t.Setenv(kv[0], kv[1])
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadMismatchedLocations(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("WEATHER_LOCATION_CITY", "Pune,London")
	t.Setenv("WEATHER_LOCATION_COUNTRY", "IN")

	_, err := Load()
	assert.Error(t, err)
}
