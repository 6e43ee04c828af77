package cache

import (
	"context"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"
)

func newTestStore(t *testing.T, maxEntries int) *Store {
	t.Helper()
	store, err := OpenInMemory(maxEntries, DefaultTTL)
	if err != nil {
		t.Fatalf("OpenInMemory failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestPutGetRoundTrip(t *testing.T) {
	store := newTestStore(t, 100)
	ctx := context.Background()

	if err := store.Put(ctx, "what is go", "Go is a programming language.", 1.5); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	response, hit, err := store.Get(ctx, "what is go")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !hit {
		t.Fatal("expected cache hit")
	}
	if response != "Go is a programming language." {
		t.Errorf("unexpected response: %q", response)
	}
}

func TestGetMiss(t *testing.T) {
	store := newTestStore(t, 100)

	_, hit, err := store.Get(context.Background(), "never stored")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if hit {
		t.Error("expected cache miss")
	}
}

func TestQueryNormalization(t *testing.T) {
	store := newTestStore(t, 100)
	ctx := context.Background()

	if err := store.Put(ctx, "What Is Go?", "answer", 1.0); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	for _, variant := range []string{"what is go?", "  What Is Go?  ", "WHAT IS GO?"} {
		_, hit, err := store.Get(ctx, variant)
		if err != nil {
			t.Fatalf("Get(%q) failed: %v", variant, err)
		}
		if !hit {
			t.Errorf("expected hit for variant %q", variant)
		}
	}

	_, hit, err := store.Get(ctx, "what is rust?")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if hit {
		t.Error("different query should not hit")
	}
}

func TestFingerprintStable(t *testing.T) {
	a := Fingerprint("  Hello World  ")
	b := Fingerprint("hello world")
	if a != b {
		t.Errorf("normalized fingerprints should match: %q vs %q", a, b)
	}
	if len(a) != 16 {
		t.Errorf("expected 16 hex chars, got %d", len(a))
	}
}

func TestAccessCountIncrements(t *testing.T) {
	store := newTestStore(t, 100)
	ctx := context.Background()

	if err := store.Put(ctx, "query", "response", 1.0); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, hit, err := store.Get(ctx, "query"); err != nil || !hit {
			t.Fatalf("Get %d: hit=%v err=%v", i+1, hit, err)
		}
	}

	entry, err := store.GetEntry(ctx, "query")
	if err != nil {
		t.Fatalf("GetEntry failed: %v", err)
	}
	if entry == nil {
		t.Fatal("expected entry")
	}
	if entry.AccessCount != 4 {
		t.Errorf("expected access count 4 (1 insert + 3 gets), got %d", entry.AccessCount)
	}
}

func TestExpiredEntryIsMiss(t *testing.T) {
	store := newTestStore(t, 100)
	ctx := context.Background()

	if err := store.Put(ctx, "stale query", "stale response", 1.0); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// Backdate the entry past the TTL.
	expired := time.Now().Add(-25 * time.Hour).Unix()
	if _, err := store.db.Exec("UPDATE cache_entries SET created_at = ?", expired); err != nil {
		t.Fatalf("backdating entry failed: %v", err)
	}

	_, hit, err := store.Get(ctx, "stale query")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if hit {
		t.Error("expired entry should be a miss")
	}

	// Expired entries stay in the table until the eviction sweep.
	count, err := store.Len(ctx)
	if err != nil {
		t.Fatalf("Len failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expired entry should not be deleted on read, count = %d", count)
	}
}

func TestPutReplacesExisting(t *testing.T) {
	store := newTestStore(t, 100)
	ctx := context.Background()

	if err := store.Put(ctx, "query", "first", 1.0); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := store.Put(ctx, "query", "second", 1.0); err != nil {
		t.Fatalf("second Put failed: %v", err)
	}

	response, hit, err := store.Get(ctx, "query")
	if err != nil || !hit {
		t.Fatalf("Get: hit=%v err=%v", hit, err)
	}
	if response != "second" {
		t.Errorf("expected replaced response, got %q", response)
	}

	count, err := store.Len(ctx)
	if err != nil {
		t.Fatalf("Len failed: %v", err)
	}
	if count != 1 {
		t.Errorf("replacement should not grow the table, count = %d", count)
	}
}

func TestEvictionShrinksToTarget(t *testing.T) {
	const maxEntries = 10
	store := newTestStore(t, maxEntries)
	ctx := context.Background()

	for i := 0; i < maxEntries+1; i++ {
		query := fmt.Sprintf("query number %d", i)
		response := strings.Repeat("x", 100*(i+1))
		if err := store.Put(ctx, query, response, 1.0); err != nil {
			t.Fatalf("Put %d failed: %v", i, err)
		}
	}

	count, err := store.Len(ctx)
	if err != nil {
		t.Fatalf("Len failed: %v", err)
	}
	// 11 entries minus (11 - floor(10*0.8)) removed leaves 8.
	if count != 8 {
		t.Errorf("expected 8 entries after eviction, got %d", count)
	}

	// The shortest (lowest quality) response was query 0; it should be gone.
	_, hit, err := store.Get(ctx, "query number 0")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if hit {
		t.Error("lowest-quality entry should have been evicted")
	}

	// The longest response scored highest and must survive.
	_, hit, err = store.Get(ctx, fmt.Sprintf("query number %d", maxEntries))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !hit {
		t.Error("highest-quality entry should have survived eviction")
	}
}

func TestEvictionPrefersUnaccessedEntries(t *testing.T) {
	const maxEntries = 4
	store := newTestStore(t, maxEntries)
	ctx := context.Background()

	// Same response quality everywhere; access count decides the ranking.
	for i := 0; i < maxEntries; i++ {
		query := fmt.Sprintf("query %d", i)
		if err := store.Put(ctx, query, strings.Repeat("y", 500), 1.0); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}
	for i := 0; i < 5; i++ {
		if _, _, err := store.Get(ctx, "query 1"); err != nil {
			t.Fatalf("Get failed: %v", err)
		}
	}

	if err := store.Put(ctx, "one more query", strings.Repeat("y", 500), 1.0); err != nil {
		t.Fatalf("overflow Put failed: %v", err)
	}

	_, hit, err := store.Get(ctx, "query 1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !hit {
		t.Error("frequently accessed entry should survive eviction")
	}
}

func TestQualityScore(t *testing.T) {
	tests := []struct {
		name         string
		response     string
		responseTime float64
		want         float64
	}{
		{
			name:         "short fast response",
			response:     strings.Repeat("a", 100),
			responseTime: 2.0,
			want:         0.1 + 0.8*0.2,
		},
		{
			name:         "long response caps at one",
			response:     strings.Repeat("a", 5000),
			responseTime: 10.0,
			want:         1.0,
		},
		{
			name:         "source link bonus",
			response:     strings.Repeat("a", 1000) + " https://example.com",
			responseTime: 10.0,
			want:         1.0 + 0.2,
		},
		{
			name:         "error penalty",
			response:     "An Error occurred while searching " + strings.Repeat("a", 966),
			responseTime: 10.0,
			want:         1.0 - 0.5,
		},
		{
			name:         "floored at zero",
			response:     "error",
			responseTime: 20.0,
			want:         0,
		},
		{
			name:         "slow response gets no speed bonus",
			response:     strings.Repeat("a", 500),
			responseTime: 15.0,
			want:         0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := QualityScore(tt.response, tt.responseTime)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("QualityScore() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStats(t *testing.T) {
	store := newTestStore(t, 100)
	ctx := context.Background()

	shared := strings.Repeat("z", 300)
	if err := store.Put(ctx, "query a", shared, 1.0); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := store.Put(ctx, "query b", shared, 1.0); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := store.Put(ctx, "query c", "unique response", 1.0); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Entries != 3 {
		t.Errorf("expected 3 entries, got %d", stats.Entries)
	}
	if stats.DuplicateResponses != 2 {
		t.Errorf("expected 2 duplicate responses, got %d", stats.DuplicateResponses)
	}
	if stats.AvgQualityScore <= 0 {
		t.Errorf("expected positive average quality, got %v", stats.AvgQualityScore)
	}
}

func TestStatsEmptyStore(t *testing.T) {
	store := newTestStore(t, 100)

	stats, err := store.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Entries != 0 || stats.AvgQualityScore != 0 {
		t.Errorf("expected zero stats, got %+v", stats)
	}
}
