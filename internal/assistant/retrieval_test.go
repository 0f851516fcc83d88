package assistant

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-assistant/internal/config"
	"github.com/i474232898/weather-assistant/internal/knowledge"
	"github.com/i474232898/weather-assistant/internal/store"
	"github.com/i474232898/weather-assistant/internal/weather"
)

func observation(city, country string, temp float64, at time.Time) weather.Snapshot {
	return weather.Snapshot{
		Location: weather.Location{City: city, Country: country},
		Metrics: weather.Metrics{
			TemperatureC: temp, FeelsLikeC: temp + 1.5, PressureHpa: 1008, HumidityPct: 62,
			VisibilityKm: 6, WindSpeedMS: 4.6, WindDirectionDeg: 270,
			Condition: weather.ConditionClear, Description: "Haze",
			Solar: weather.SolarCycle{Sunrise: "06:00", Sunset: "19:10"},
		},
		FetchedAt: at,
		Provider:  "test",
	}
}

// seededHarness wires the orchestrator to a real knowledge base holding a
// recent Pune observation plus nearby cities.
func seededHarness(t *testing.T, location string) *harness {
	t.Helper()
	ctx := context.Background()
	kb := knowledge.NewBase(store.NewMemoryStore(0, 0), knowledge.NewHashingEmbedder(256), config.DefaultKBMinSimilarity)
	require.NoError(t, kb.Upsert(ctx, knowledge.EntryFromSnapshot(observation("Pune", "IN", 28.4, testNow.Add(-5*time.Minute)))))
	require.NoError(t, kb.Upsert(ctx, knowledge.EntryFromSnapshot(observation("Mumbai", "IN", 31, testNow.Add(-2*time.Minute)))))
	require.NoError(t, kb.Upsert(ctx, knowledge.EntryFromSnapshot(observation("London", "GB", 14, testNow.Add(-time.Minute)))))
	require.NoError(t, kb.Upsert(ctx, knowledge.EntryFromSnapshot(observation("Paris", "FR", 19, testNow.Add(-3*time.Minute)))))

	h := newHarness(location)
	h.orch = New(Deps{
		Intents:     h.intents,
		Knowledge:   kb,
		Telemetry:   h.telemetry,
		Synthesizer: h.synth,
		Recorder:    h.rec,
	}, Config{Freshness: FreshnessPolicy{Threshold: 30 * time.Minute}})
	h.orch.now = func() time.Time { return testNow }
	return h
}

func TestHandleWarmCacheWithStoredKnowledge(t *testing.T) {
	tests := []struct {
		location string
		query    string
		city     string
	}{
		{"Pune", "Pune weather", "Pune"},
		{"Pune", "What's the weather like in Pune right now?", "Pune"},
		{"Pune", "Should I carry an umbrella in Pune today?", "Pune"},
		{"Pune", "Is it a good day for a picnic in Pune?", "Pune"},
		{"Pune", "I'm planning an evening walk with my dog around the lake, should I carry an umbrella or a light jacket in Pune today?", "Pune"},
		{"Mumbai", "Will I need sunscreen if I go cycling in Mumbai?", "Mumbai"},
		{"Paris, FR", "How humid is it in Paris this afternoon?", "Paris"},
		{"paris , fr", "Tell me about current conditions in Paris, is it safe to drive?", "Paris"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			h := seededHarness(t, tt.location)

			reply := h.orch.Handle(context.Background(), tt.query)

			assert.Equal(t, StateSynthesized, reply.State)
			assert.False(t, reply.UsedFresh)
			assert.Empty(t, h.telemetry.calls)
			assert.Equal(t, []bool{false}, h.rec.fresh)
			require.Len(t, h.synth.got, 1)
			retrieved := h.synth.got[0].Retrieved
			require.NotEmpty(t, retrieved)
			for _, e := range retrieved {
				assert.Equal(t, tt.city, e.Location)
			}
		})
	}
}

func TestHandleUncachedCityWithStoredKnowledge(t *testing.T) {
	h := seededHarness(t, "Oslo")

	reply := h.orch.Handle(context.Background(), "Should I carry an umbrella in Oslo today?")

	assert.Equal(t, StateSynthesized, reply.State)
	assert.True(t, reply.UsedFresh)
	assert.Zero(t, reply.Retrieved)
	assert.Equal(t, []string{"Oslo"}, h.telemetry.calls)
}
