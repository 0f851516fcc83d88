package store

import (
	"errors"
	"math"
	"sort"
	"strings"
	"time"
)

// ErrInvalidRecord is returned when a record is missing its id or vector.
var ErrInvalidRecord = errors.New("invalid record")

// Record is one stored document with its embedding.
type Record struct {
	ID         string
	Key        string // grouping key used for retention, e.g. a location key
	Text       string
	Metadata   []byte // opaque JSON owned by the caller
	Vector     []float32
	ObservedAt time.Time
}

// Match is a Record scored against a query vector.
type Match struct {
	Record
	Score float64
}

func (r Record) validate() error {
	if r.ID == "" {
		return errors.Join(ErrInvalidRecord, errors.New("id is required"))
	}
	if len(r.Vector) == 0 {
		return errors.Join(ErrInvalidRecord, errors.New("vector is required"))
	}
	return nil
}

// MatchesKey reports whether a record key falls under filter. An empty filter
// matches everything and a filter ending in ':' matches every key with that prefix,
// so "pune:" covers both "pune:" and "pune:in".
func MatchesKey(key, filter string) bool {
	switch {
	case filter == "":
		return true
	case strings.HasSuffix(filter, ":"):
		return strings.HasPrefix(key, filter)
	default:
		return key == filter
	}
}

// CosineSimilarity computes cosine similarity between two vectors.
// Returns 0 if either vector has zero magnitude or lengths differ.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// rank drops matches below minScore and orders the rest by score, then by
// most recent observation, then by id so results are stable.
func rank(matches []Match, k int, minScore float64) []Match {
	kept := matches[:0]
	for _, m := range matches {
		if m.Score >= minScore {
			kept = append(kept, m)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		a, b := kept[i], kept[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.ObservedAt.Equal(b.ObservedAt) {
			return a.ObservedAt.After(b.ObservedAt)
		}
		return a.ID < b.ID
	})
	if k > 0 && len(kept) > k {
		kept = kept[:k]
	}
	return kept
}
