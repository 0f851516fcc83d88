package store

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a concurrency-safe in-memory vector collection.
type MemoryStore struct {
	mu sync.RWMutex

	// key: record id
	records map[string]Record
	// key: grouping key, value: ids in insertion order
	byKey map[string][]string

	// retention configuration
	maxPerKey int           // max number of records per grouping key
	maxAge    time.Duration // optional max age for records
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxPerKey or maxAge is <= 0, it is treated as unlimited.
func NewMemoryStore(maxPerKey int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		records:   make(map[string]Record),
		byKey:     make(map[string][]string),
		maxPerKey: maxPerKey,
		maxAge:    maxAge,
	}
}

// Upsert stores a record, replacing any record with the same id, and enforces retention.
func (s *MemoryStore) Upsert(ctx context.Context, rec Record) error {
	if err := rec.validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[rec.ID]; !exists {
		s.byKey[rec.Key] = append(s.byKey[rec.Key], rec.ID)
	}
	rec.Vector = append([]float32(nil), rec.Vector...)
	s.records[rec.ID] = rec

	// Enforce retention by count.
	ids := s.byKey[rec.Key]
	if s.maxPerKey > 0 && len(ids) > s.maxPerKey {
		over := len(ids) - s.maxPerKey
		for _, id := range ids[:over] {
			delete(s.records, id)
		}
		s.byKey[rec.Key] = ids[over:]
	}
	return nil
}

// Query returns up to k records whose similarity to vector is at least minScore.
func (s *MemoryStore) Query(ctx context.Context, vector []float32, k int, minScore float64) ([]Match, error) {
	return s.QueryKey(ctx, "", vector, k, minScore)
}

// QueryKey is Query restricted to records whose key matches filter (see MatchesKey).
func (s *MemoryStore) QueryKey(ctx context.Context, filter string, vector []float32, k int, minScore float64) ([]Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	matches := make([]Match, 0, len(s.records))
	cutoff := s.cutoff()
	for _, rec := range s.records {
		if !cutoff.IsZero() && rec.ObservedAt.Before(cutoff) {
			continue
		}
		if !MatchesKey(rec.Key, filter) {
			continue
		}
		matches = append(matches, Match{Record: rec, Score: CosineSimilarity(vector, rec.Vector)})
	}
	s.mu.RUnlock()

	return rank(matches, k, minScore), nil
}

// Count returns the number of stored records.
func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

// Prune removes records older than the configured max age.
func (s *MemoryStore) Prune(ctx context.Context) (int, error) {
	cutoff := s.cutoff()
	if cutoff.IsZero() {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, ids := range s.byKey {
		kept := ids[:0]
		for _, id := range ids {
			if s.records[id].ObservedAt.Before(cutoff) {
				delete(s.records, id)
				removed++
				continue
			}
			kept = append(kept, id)
		}
		if len(kept) == 0 {
			delete(s.byKey, key)
		} else {
			s.byKey[key] = kept
		}
	}
	return removed, nil
}

// Close is a no-op; it exists so MemoryStore and SQLiteStore are interchangeable.
func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) cutoff() time.Time {
	if s.maxAge <= 0 {
		return time.Time{}
	}
	return time.Now().Add(-s.maxAge)
}
