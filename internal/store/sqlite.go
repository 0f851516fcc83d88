package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// sqliteMaxCandidates bounds how many embeddings are scored per query.
// Rows are read newest first, so the most recent observations always compete.
const sqliteMaxCandidates = 10_000

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS knowledge_records (
	id          TEXT PRIMARY KEY,
	collection  TEXT NOT NULL,
	record_key  TEXT NOT NULL,
	text        TEXT NOT NULL,
	metadata    TEXT,
	embedding   BLOB NOT NULL,
	dimension   INTEGER NOT NULL,
	observed_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_knowledge_records_collection_observed
	ON knowledge_records(collection, observed_at DESC);
CREATE INDEX IF NOT EXISTS idx_knowledge_records_key
	ON knowledge_records(collection, record_key);
`

// SQLiteStore is a durable vector collection kept in a local SQLite file.
// Embeddings are stored as little-endian float32 BLOBs and ranked in Go.
type SQLiteStore struct {
	db         *sql.DB
	collection string
	maxAge     time.Duration
}

// NewSQLiteStore opens or creates the database at path.
func NewSQLiteStore(path, collection string, maxAge time.Duration) (*SQLiteStore, error) {
	if collection == "" {
		collection = "default"
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// SQLite has a single writer; one connection serialises writes and
	// WAL keeps readers from blocking it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteStore{db: db, collection: collection, maxAge: maxAge}, nil
}

// Upsert inserts or replaces a record keyed by its id.
func (s *SQLiteStore) Upsert(ctx context.Context, rec Record) error {
	if err := rec.validate(); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO knowledge_records (id, collection, record_key, text, metadata, embedding, dimension, observed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			record_key = excluded.record_key,
			text = excluded.text,
			metadata = excluded.metadata,
			embedding = excluded.embedding,
			dimension = excluded.dimension,
			observed_at = excluded.observed_at`,
		rec.ID, s.collection, rec.Key, rec.Text, string(rec.Metadata),
		encodeVector(rec.Vector), len(rec.Vector), rec.ObservedAt.UTC().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("upsert record %s: %w", rec.ID, err)
	}
	return nil
}

// Query scores stored records against vector and returns the best k.
func (s *SQLiteStore) Query(ctx context.Context, vector []float32, k int, minScore float64) ([]Match, error) {
	return s.QueryKey(ctx, "", vector, k, minScore)
}

// QueryKey is Query restricted to records whose key matches filter (see MatchesKey).
func (s *SQLiteStore) QueryKey(ctx context.Context, filter string, vector []float32, k int, minScore float64) ([]Match, error) {
	args := []any{s.collection}
	where := "collection = ?"
	switch {
	case filter == "":
	case strings.HasSuffix(filter, ":"):
		// Prefix range: ';' sorts right after ':'.
		where += " AND record_key >= ? AND record_key < ?"
		args = append(args, filter, strings.TrimSuffix(filter, ":")+";")
	default:
		where += " AND record_key = ?"
		args = append(args, filter)
	}
	if s.maxAge > 0 {
		where += " AND observed_at >= ?"
		args = append(args, time.Now().Add(-s.maxAge).UTC().UnixNano())
	}
	args = append(args, sqliteMaxCandidates)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, record_key, text, metadata, embedding, dimension, observed_at
		FROM knowledge_records
		WHERE `+where+`
		ORDER BY observed_at DESC
		LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var matches []Match
	for rows.Next() {
		var (
			rec      Record
			metadata sql.NullString
			blob     []byte
			dim      int
			observed int64
		)
		if err := rows.Scan(&rec.ID, &rec.Key, &rec.Text, &metadata, &blob, &dim, &observed); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		vec, err := decodeVector(blob, dim)
		if err != nil {
			slog.Warn("store: skipping record with corrupt embedding", "id", rec.ID, "error", err)
			continue
		}
		if metadata.Valid {
			rec.Metadata = []byte(metadata.String)
		}
		rec.Vector = vec
		rec.ObservedAt = time.Unix(0, observed).UTC()
		matches = append(matches, Match{Record: rec, Score: CosineSimilarity(vector, vec)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}

	return rank(matches, k, minScore), nil
}

// Count returns the number of records in the collection.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM knowledge_records WHERE collection = ?`, s.collection).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

// Prune deletes records older than the configured max age.
func (s *SQLiteStore) Prune(ctx context.Context) (int, error) {
	if s.maxAge <= 0 {
		return 0, nil
	}
	cutoff := time.Now().Add(-s.maxAge).UTC().UnixNano()
	res, err := s.db.ExecContext(ctx, `DELETE FROM knowledge_records WHERE collection = ? AND observed_at < ?`, s.collection, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune records: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune rows affected: %w", err)
	}
	return int(n), nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte, dim int) ([]float32, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("invalid dimension: %d", dim)
	}
	if len(buf) != dim*4 {
		return nil, fmt.Errorf("buffer size mismatch: expected %d bytes, got %d", dim*4, len(buf))
	}
	v := make([]float32, dim)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v, nil
}
