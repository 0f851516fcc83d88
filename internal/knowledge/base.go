package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/i474232898/weather-assistant/internal/store"
	"github.com/i474232898/weather-assistant/internal/weather"
)

// ErrPersistence is returned when an entry could not be written.
var ErrPersistence = errors.New("knowledge persistence failed")

// Collection is the vector store capability the knowledge base is built on.
// Implementations do their own locking.
type Collection interface {
	Upsert(ctx context.Context, rec store.Record) error
	Query(ctx context.Context, vector []float32, k int, minScore float64) ([]store.Match, error)
	QueryKey(ctx context.Context, filter string, vector []float32, k int, minScore float64) ([]store.Match, error)
}

// Base maps knowledge entries onto a vector collection.
type Base struct {
	collection Collection
	embedder   Embedder
	minScore   float64
}

// NewBase creates a knowledge base. Matches scoring below minScore are never returned.
func NewBase(collection Collection, embedder Embedder, minScore float64) *Base {
	return &Base{
		collection: collection,
		embedder:   embedder,
		minScore:   minScore,
	}
}

// entryMeta is the JSON stored alongside each record.
type entryMeta struct {
	Location string          `json:"location"`
	Country  string          `json:"country,omitempty"`
	Metrics  weather.Metrics `json:"metrics"`
}

// QuerySimilar returns up to k entries most similar to text, best first and
// most recent first among equal scores. An empty store yields an empty slice.
func (b *Base) QuerySimilar(ctx context.Context, text string, k int) ([]Entry, error) {
	return b.query(ctx, "", text, k, b.minScore)
}

// QueryLocation is QuerySimilar scoped to entries stored for location, given
// as "City" or "City, Country". A bare city matches that city in any country.
// The similarity threshold is not applied inside the scope; an empty location
// falls back to QuerySimilar.
func (b *Base) QueryLocation(ctx context.Context, location, text string, k int) ([]Entry, error) {
	loc := weather.ParseLocation(location)
	if loc.City == "" {
		return b.QuerySimilar(ctx, text, k)
	}
	return b.query(ctx, loc.Key(), text, k, -1)
}

func (b *Base) query(ctx context.Context, filter, text string, k int, minScore float64) ([]Entry, error) {
	if k <= 0 || strings.TrimSpace(text) == "" {
		return []Entry{}, nil
	}

	vec, err := b.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	matches, err := b.collection.QueryKey(ctx, filter, vec, k, minScore)
	if err != nil {
		return nil, fmt.Errorf("query collection: %w", err)
	}

	entries := make([]Entry, 0, len(matches))
	for _, m := range matches {
		var meta entryMeta
		if len(m.Metadata) > 0 {
			if err := json.Unmarshal(m.Metadata, &meta); err != nil {
				slog.Warn("knowledge: skipping entry with unreadable metadata", "id", m.ID, "error", err)
				continue
			}
		}
		entries = append(entries, Entry{
			ID:         m.ID,
			Location:   meta.Location,
			Country:    meta.Country,
			Text:       m.Text,
			Metrics:    meta.Metrics,
			ObservedAt: m.ObservedAt,
		})
	}
	return entries, nil
}

// Upsert embeds and stores an entry. Every failure is reported as ErrPersistence.
func (b *Base) Upsert(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.ObservedAt.IsZero() {
		e.ObservedAt = time.Now().UTC()
	}
	if strings.TrimSpace(e.Text) == "" {
		return fmt.Errorf("%w: entry %s has no text", ErrPersistence, e.ID)
	}

	vec, err := b.embedder.Embed(ctx, e.Text)
	if err != nil {
		return fmt.Errorf("%w: embed entry: %v", ErrPersistence, err)
	}

	meta, err := json.Marshal(entryMeta{Location: e.Location, Country: e.Country, Metrics: e.Metrics})
	if err != nil {
		return fmt.Errorf("%w: encode metadata: %v", ErrPersistence, err)
	}

	rec := store.Record{
		ID:         e.ID,
		Key:        weather.Location{City: e.Location, Country: e.Country}.Key(),
		Text:       e.Text,
		Metadata:   meta,
		Vector:     vec,
		ObservedAt: e.ObservedAt,
	}
	if err := b.collection.Upsert(ctx, rec); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	slog.Info("knowledge: entry persisted", "id", e.ID, "location", e.Location)
	return nil
}
