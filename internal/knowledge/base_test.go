package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-assistant/internal/store"
	"github.com/i474232898/weather-assistant/internal/weather"
)

func snapshot(city, country string, temp float64, at time.Time) weather.Snapshot {
	return weather.Snapshot{
		Location:  weather.Location{City: city, Country: country},
		Metrics:   weather.Metrics{TemperatureC: temp, HumidityPct: 60, Condition: weather.ConditionClear, Description: "Clear sky"},
		FetchedAt: at,
		Provider:  "test",
	}
}

func TestQuerySimilarEmptyStore(t *testing.T) {
	b := NewBase(store.NewMemoryStore(0, 0), NewHashingEmbedder(64), 0.1)

	entries, err := b.QuerySimilar(context.Background(), "What's the weather in Pune?", 3)
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)

	entries, err = b.QuerySimilar(context.Background(), "weather in Pune", 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUpsertThenQuerySimilar(t *testing.T) {
	ctx := context.Background()
	b := NewBase(store.NewMemoryStore(0, 0), NewHashingEmbedder(256), 0.1)
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	pune := EntryFromSnapshot(snapshot("Pune", "IN", 28, at))
	require.NoError(t, b.Upsert(ctx, pune))
	require.NoError(t, b.Upsert(ctx, EntryFromSnapshot(snapshot("Reykjavik", "IS", 7, at))))

	entries, err := b.QuerySimilar(ctx, "What's the weather in Pune?", 3)
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	top := entries[0]
	assert.Equal(t, pune.ID, top.ID)
	assert.Equal(t, "Pune", top.Location)
	assert.Equal(t, "IN", top.Country)
	assert.Equal(t, 28.0, top.Metrics.TemperatureC)
	assert.Equal(t, pune.Text, top.Text)
	assert.True(t, at.Equal(top.ObservedAt))
}

func TestQuerySimilarPrefersRecentOnTies(t *testing.T) {
	ctx := context.Background()
	b := NewBase(store.NewMemoryStore(0, 0), NewHashingEmbedder(256), 0)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	older := Entry{ID: "older", Location: "Pune", Text: "Pune observation", ObservedAt: base.Add(-time.Hour)}
	newer := Entry{ID: "newer", Location: "Pune", Text: "Pune observation", ObservedAt: base}
	require.NoError(t, b.Upsert(ctx, older))
	require.NoError(t, b.Upsert(ctx, newer))

	entries, err := b.QuerySimilar(ctx, "Pune", 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "newer", entries[0].ID)
}

type failingCollection struct{}

func (failingCollection) Upsert(context.Context, store.Record) error {
	return errors.New("disk full")
}

func (failingCollection) Query(context.Context, []float32, int, float64) ([]store.Match, error) {
	return nil, errors.New("disk gone")
}

func (failingCollection) QueryKey(context.Context, string, []float32, int, float64) ([]store.Match, error) {
	return nil, errors.New("disk gone")
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("model offline")
}
func (failingEmbedder) Dimensions() int { return 0 }

func TestUpsertFailuresArePersistenceErrors(t *testing.T) {
	ctx := context.Background()
	entry := EntryFromSnapshot(snapshot("Pune", "IN", 28, time.Now()))

	err := NewBase(failingCollection{}, NewHashingEmbedder(32), 0).Upsert(ctx, entry)
	assert.ErrorIs(t, err, ErrPersistence)

	err = NewBase(store.NewMemoryStore(0, 0), failingEmbedder{}, 0).Upsert(ctx, entry)
	assert.ErrorIs(t, err, ErrPersistence)

	err = NewBase(store.NewMemoryStore(0, 0), NewHashingEmbedder(32), 0).Upsert(ctx, Entry{Location: "Pune"})
	assert.ErrorIs(t, err, ErrPersistence)
}

func TestQuerySimilarFailure(t *testing.T) {
	_, err := NewBase(failingCollection{}, NewHashingEmbedder(32), 0).QuerySimilar(context.Background(), "Pune", 3)
	assert.Error(t, err)
}

func TestQueryLocation(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	b := NewBase(store.NewMemoryStore(0, 0), NewHashingEmbedder(256), 0.1)

	require.NoError(t, b.Upsert(ctx, EntryFromSnapshot(snapshot("Pune", "IN", 28, now.Add(-5*time.Minute)))))
	require.NoError(t, b.Upsert(ctx, EntryFromSnapshot(snapshot("Mumbai", "IN", 31, now.Add(-2*time.Minute)))))
	require.NoError(t, b.Upsert(ctx, EntryFromSnapshot(snapshot("Paris", "FR", 19, now.Add(-time.Minute)))))
	require.NoError(t, b.Upsert(ctx, EntryFromSnapshot(snapshot("Paris", "US", 24, now))))

	tests := []struct {
		name      string
		location  string
		query     string
		wantCity  []string
		wantCount int
	}{
		{"long question", "Pune", "Should I carry an umbrella in Pune today?", []string{"Pune"}, 1},
		{"bare city spans countries", "paris", "Is it a good day for a picnic in Paris?", []string{"Paris", "Paris"}, 2},
		{"country narrows", "Paris, FR", "How humid is it in Paris this afternoon?", []string{"Paris"}, 1},
		{"unknown city", "Oslo", "Weather in Oslo?", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := b.QueryLocation(ctx, tt.location, tt.query, 3)
			require.NoError(t, err)
			require.Len(t, entries, tt.wantCount)
			for i, e := range entries {
				assert.Equal(t, tt.wantCity[i], e.Location)
			}
		})
	}

	entries, err := b.QueryLocation(ctx, "Paris, FR", "Paris weather", 3)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "FR", entries[0].Country)
}

func TestQueryLocationWithoutCityFallsBack(t *testing.T) {
	ctx := context.Background()
	b := NewBase(store.NewMemoryStore(0, 0), NewHashingEmbedder(256), 0.1)
	require.NoError(t, b.Upsert(ctx, EntryFromSnapshot(snapshot("Pune", "IN", 28, time.Now()))))

	scoped, err := b.QueryLocation(ctx, " ", "Pune weather", 3)
	require.NoError(t, err)
	plain, err := b.QuerySimilar(ctx, "Pune weather", 3)
	require.NoError(t, err)
	assert.Equal(t, plain, scoped)
}

func TestEntryFromSnapshot(t *testing.T) {
	at := time.Date(2025, 6, 1, 17, 30, 0, 0, time.FixedZone("IST", 19800))
	e := EntryFromSnapshot(snapshot("Pune", "IN", 28, at))

	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "Pune", e.Location)
	assert.Equal(t, time.UTC, e.ObservedAt.Location())
	assert.Contains(t, e.Text, "Pune, IN")
	assert.NotEqual(t, e.ID, EntryFromSnapshot(snapshot("Pune", "IN", 28, at)).ID)
}

func TestHashingEmbedder(t *testing.T) {
	e := NewHashingEmbedder(0)
	assert.Equal(t, 256, e.Dimensions())

	a, err := e.Embed(context.Background(), "Weather in Pune")
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), "pune weather!")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, store.CosineSimilarity(a, b), 1e-6)

	empty, err := e.Embed(context.Background(), "the a an")
	require.NoError(t, err)
	assert.Len(t, empty, 256)
}

func TestOpenAIEmbedder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		assert.Equal(t, "text-embedding-3-small", req["model"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  "text-embedding-3-small",
			"data":   []map[string]any{{"object": "embedding", "index": 0, "embedding": []float32{0.5, -0.5}}},
			"usage":  map[string]any{"prompt_tokens": 2, "total_tokens": 2},
		})
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder(OpenAIEmbedderConfig{APIKey: "k", BaseURL: srv.URL, Dimensions: 2})
	vec, err := e.Embed(context.Background(), "weather in Pune")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, -0.5}, vec)
	assert.Equal(t, 2, e.Dimensions())
}
