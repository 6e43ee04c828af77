// Package cache provides a SQLite-backed result cache for query responses.
//
// Information Hiding:
// - SQLite connection management hidden behind the Store type
// - Schema and eviction details encapsulated
// - Thread-safe via sql.DB's built-in connection pooling
package cache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	_ "github.com/mattn/go-sqlite3"
)

// ErrStoreUnavailable indicates the persistence layer failed. Callers are
// expected to treat it as a cache miss and proceed uncached.
var ErrStoreUnavailable = errors.New("cache store unavailable")

// DefaultTTL is how long an entry is served after creation. Entries older
// than the TTL are treated as absent on read but are only removed by the
// eviction sweep.
const DefaultTTL = 24 * time.Hour

// evictionTarget is the fraction of maxEntries the sweep shrinks back to.
// Shrinking below the limit avoids thrashing on entries hovering at the
// boundary.
const evictionTarget = 0.8

// Entry is a cached (query, response) pair with scoring metadata.
type Entry struct {
	Fingerprint  string
	Query        string
	Response     string
	CreatedAt    int64
	LastAccessAt int64
	AccessCount  int
	ResponseTime float64
	QualityScore float64
}

// Store persists cache entries in a SQLite database keyed by query
// fingerprint.
type Store struct {
	db         *sql.DB
	maxEntries int
	ttl        time.Duration
}

// Open opens or creates a cache database at the given path.
// Creates parent directories if they don't exist.
func Open(path string, maxEntries int, ttl time.Duration) (*Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	return newStore(db, maxEntries, ttl)
}

// OpenInMemory creates an in-memory cache database (useful for testing).
func OpenInMemory(maxEntries int, ttl time.Duration) (*Store, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory cache: %w", err)
	}

	return newStore(db, maxEntries, ttl)
}

func newStore(db *sql.DB, maxEntries int, ttl time.Duration) (*Store, error) {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	store := &Store{db: db, maxEntries: maxEntries, ttl: ttl}
	if err := store.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize cache schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS cache_entries (
			fingerprint TEXT PRIMARY KEY,
			query TEXT NOT NULL,
			response TEXT NOT NULL,
			response_hash TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			last_access_at INTEGER NOT NULL,
			access_count INTEGER DEFAULT 1,
			response_time REAL NOT NULL,
			quality_score REAL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_cache_created
		ON cache_entries(created_at);

		CREATE INDEX IF NOT EXISTS idx_cache_access
		ON cache_entries(access_count);
	`

	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Fingerprint computes the cache key for a query: the query is lower-cased
// and whitespace-trimmed, then hashed so the key is fixed-width and
// collision-resistant.
func Fingerprint(query string) string {
	normalized := strings.ToLower(strings.TrimSpace(query))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:8])
}

// QualityScore rates a response for eviction ranking. Longer responses score
// higher up to 1.0, fast responses earn up to 0.2, responses citing sources
// (containing "http") earn 0.2, and responses containing "error" lose 0.5.
// The result is floored at 0.
func QualityScore(response string, responseTime float64) float64 {
	length := float64(len(response)) / 1000
	if length > 1.0 {
		length = 1.0
	}

	speed := (10 - responseTime) / 10
	if speed < 0 {
		speed = 0
	}

	score := length + speed*0.2
	if strings.Contains(response, "http") {
		score += 0.2
	}
	if strings.Contains(strings.ToLower(response), "error") {
		score -= 0.5
	}

	if score < 0 {
		return 0
	}
	return score
}

// Get returns the cached response for query, if present and within the TTL.
// On a hit the entry's access count and last-access timestamp are updated.
// Expired entries are treated as absent but left for the eviction sweep.
func (s *Store) Get(ctx context.Context, query string) (string, bool, error) {
	fingerprint := Fingerprint(query)
	now := time.Now().Unix()
	oldest := now - int64(s.ttl.Seconds())

	var response string
	err := s.db.QueryRowContext(ctx, `
		SELECT response FROM cache_entries
		WHERE fingerprint = ? AND created_at > ?`,
		fingerprint, oldest).Scan(&response)

	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, storeErr("get entry", err)
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE cache_entries
		SET access_count = access_count + 1, last_access_at = ?
		WHERE fingerprint = ?`,
		now, fingerprint)
	if err != nil {
		return "", false, storeErr("update access tracking", err)
	}

	return response, true, nil
}

// Put stores a response for query, replacing any previous entry for the same
// fingerprint, then sweeps low-value entries if the table exceeds its size
// limit.
func (s *Store) Put(ctx context.Context, query, response string, responseTime float64) error {
	now := time.Now().Unix()

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO cache_entries
		(fingerprint, query, response, response_hash, created_at, last_access_at, access_count, response_time, quality_score)
		VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		Fingerprint(query),
		query,
		response,
		hashResponse(response),
		now,
		now,
		responseTime,
		QualityScore(response, responseTime),
	)
	if err != nil {
		return storeErr("store entry", err)
	}

	return s.evict(ctx)
}

// GetEntry returns the full entry for query regardless of TTL.
// Returns nil if the fingerprint is unknown.
func (s *Store) GetEntry(ctx context.Context, query string) (*Entry, error) {
	var e Entry
	err := s.db.QueryRowContext(ctx, `
		SELECT fingerprint, query, response, created_at, last_access_at, access_count, response_time, quality_score
		FROM cache_entries WHERE fingerprint = ?`,
		Fingerprint(query)).Scan(
		&e.Fingerprint,
		&e.Query,
		&e.Response,
		&e.CreatedAt,
		&e.LastAccessAt,
		&e.AccessCount,
		&e.ResponseTime,
		&e.QualityScore,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("get entry", err)
	}

	return &e, nil
}

// Len returns the number of entries in the table, expired ones included.
func (s *Store) Len(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM cache_entries").Scan(&count); err != nil {
		return 0, storeErr("count entries", err)
	}
	return count, nil
}

// Stats summarizes cache contents for operator inspection.
type Stats struct {
	Entries            int
	AvgQualityScore    float64
	AvgAccessCount     float64
	DuplicateResponses int
}

// Stats returns aggregate metrics over all entries. DuplicateResponses counts
// entries whose response body is shared with at least one other entry,
// detected via the stored response hash.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(AVG(quality_score), 0),
		       COALESCE(AVG(access_count), 0)
		FROM cache_entries`).Scan(&stats.Entries, &stats.AvgQualityScore, &stats.AvgAccessCount)
	if err != nil {
		return Stats{}, storeErr("aggregate stats", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(n), 0) FROM (
			SELECT COUNT(*) AS n FROM cache_entries
			GROUP BY response_hash HAVING COUNT(*) > 1
		)`).Scan(&stats.DuplicateResponses)
	if err != nil {
		return Stats{}, storeErr("duplicate stats", err)
	}

	return stats, nil
}

// evict removes the lowest-ranked entries when the table exceeds maxEntries,
// shrinking back to the eviction target. Rank is quality_score * access_count
// ascending, so the least valuable and least reused entries go first.
func (s *Store) evict(ctx context.Context) error {
	count, err := s.Len(ctx)
	if err != nil {
		return err
	}
	if count <= s.maxEntries {
		return nil
	}

	toRemove := count - int(float64(s.maxEntries)*evictionTarget)
	_, err = s.db.ExecContext(ctx, `
		DELETE FROM cache_entries
		WHERE fingerprint IN (
			SELECT fingerprint FROM cache_entries
			ORDER BY (quality_score * access_count) ASC
			LIMIT ?
		)`, toRemove)
	if err != nil {
		return storeErr("evict entries", err)
	}

	return nil
}

// hashResponse uses xxHash for fast response content hashing, used to spot
// duplicate responses across distinct queries in Stats.
func hashResponse(response string) string {
	sum := xxhash.Sum64String(response)
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(sum >> (56 - 8*i))
	}
	return hex.EncodeToString(buf[:])
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrStoreUnavailable, err)
}
