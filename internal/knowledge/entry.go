package knowledge

import (
	"time"

	"github.com/google/uuid"

	"github.com/i474232898/weather-assistant/internal/weather"
)

// Entry is one unit of stored weather knowledge. Entries are append-only:
// they are written once and never edited in place.
type Entry struct {
	ID         string          `json:"id"`
	Location   string          `json:"location"`
	Country    string          `json:"country,omitempty"`
	Text       string          `json:"text"`
	Metrics    weather.Metrics `json:"metrics"`
	ObservedAt time.Time       `json:"observedAt"`
}

// EntryFromSnapshot converts a freshly fetched snapshot into a new entry.
func EntryFromSnapshot(s weather.Snapshot) Entry {
	return Entry{
		ID:         uuid.New().String(),
		Location:   s.Location.City,
		Country:    s.Location.Country,
		Text:       weather.Describe(s),
		Metrics:    s.Metrics,
		ObservedAt: s.FetchedAt.UTC(),
	}
}
