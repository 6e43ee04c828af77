package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rfharris/delver/cache"
	"github.com/rfharris/delver/llm"
	"github.com/rfharris/delver/model"
	"github.com/rfharris/delver/ratelimit"
	"github.com/rfharris/delver/tools"
)

type stubSearch struct {
	err   error
	calls int
}

func (s *stubSearch) Search(ctx context.Context, query string, maxResults int) ([]model.SearchResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return []model.SearchResult{
		{Title: "Go", URL: "https://go.dev", Snippet: "The Go programming language"},
	}, nil
}

type stubFetch struct{}

func (stubFetch) Fetch(ctx context.Context, pageURL string, maxChars int) (string, error) {
	return "page text", nil
}

func newTestAgent(t *testing.T, provider llm.Provider, search tools.SearchService, config Config) *Agent {
	t.Helper()
	executor := tools.NewExecutor(search, stubFetch{}, tools.ExecutorConfig{})
	return New(config, provider, executor)
}

func planJSON(tool string) string {
	return `{"tool": "` + tool + `", "input": "go language", "reasoning": "test"}`
}

func TestRunEndToEndWithCacheHit(t *testing.T) {
	provider := &scriptProvider{responses: []string{
		planJSON("search"),
		"Go is a language from Google.",
	}}
	search := &stubSearch{}

	store, err := cache.OpenInMemory(100, time.Hour)
	if err != nil {
		t.Fatalf("OpenInMemory failed: %v", err)
	}
	defer store.Close()

	a := newTestAgent(t, provider, search, Config{MaxIterations: 1}).WithCache(store)
	ctx := context.Background()

	first, err := a.Run(ctx, "what is go")
	if err != nil {
		t.Fatalf("first Run failed: %v", err)
	}
	if first.Cached {
		t.Error("first run should not be a cache hit")
	}
	if first.Answer != "Go is a language from Google." {
		t.Errorf("unexpected answer: %q", first.Answer)
	}
	if first.Plan.Kind != model.ActionSearch {
		t.Errorf("unexpected plan kind: %v", first.Plan.Kind)
	}
	if first.RequestID == "" {
		t.Error("missing request ID")
	}

	callsAfterFirst := provider.callCount()

	second, err := a.Run(ctx, "  What Is Go  ")
	if err != nil {
		t.Fatalf("second Run failed: %v", err)
	}
	if !second.Cached {
		t.Error("second run should hit the cache")
	}
	if second.Answer != first.Answer {
		t.Errorf("cached answer differs: %q vs %q", second.Answer, first.Answer)
	}
	if provider.callCount() != callsAfterFirst {
		t.Error("cache hit should not call the LLM")
	}
	if search.calls != 1 {
		t.Errorf("cache hit should not search, got %d calls", search.calls)
	}

	stats := a.Stats()
	if stats.TotalQueries != 2 || stats.CacheHits != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestRunRateLimited(t *testing.T) {
	provider := &scriptProvider{responses: []string{planJSON("search"), "answer"}}
	a := newTestAgent(t, provider, &stubSearch{}, Config{
		MaxIterations: 1,
		RateLimit:     1,
		RateWindow:    time.Minute,
		ClientKey:     "tester",
	}).WithRateLimiter(ratelimit.New())
	ctx := context.Background()

	if _, err := a.Run(ctx, "first query"); err != nil {
		t.Fatalf("first Run failed: %v", err)
	}

	result, err := a.Run(ctx, "second query")
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if result.Answer != AdvisoryRateLimit {
		t.Errorf("expected rate limit advisory, got %q", result.Answer)
	}
}

func TestRunRateLimitedAnswerNotCached(t *testing.T) {
	provider := &scriptProvider{responses: []string{planJSON("search"), "answer"}}
	store, err := cache.OpenInMemory(100, time.Hour)
	if err != nil {
		t.Fatalf("OpenInMemory failed: %v", err)
	}
	defer store.Close()

	a := newTestAgent(t, provider, &stubSearch{}, Config{
		MaxIterations: 1,
		RateLimit:     1,
		RateWindow:    time.Minute,
	}).WithRateLimiter(ratelimit.New()).WithCache(store)
	ctx := context.Background()

	if _, err := a.Run(ctx, "query one"); err != nil {
		t.Fatalf("first Run failed: %v", err)
	}
	if _, err := a.Run(ctx, "query two"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	entry, err := store.GetEntry(ctx, "query two")
	if err != nil {
		t.Fatalf("GetEntry failed: %v", err)
	}
	if entry != nil {
		t.Error("rate limit advisory must not be cached")
	}
}

func TestRunActionFailureStillAnswers(t *testing.T) {
	provider := &scriptProvider{responses: []string{
		planJSON("search"),
		"I could not reach the web, but here is what I know.",
	}}
	search := &stubSearch{err: errors.New("connection refused")}

	a := newTestAgent(t, provider, search, Config{MaxIterations: 1})

	result, err := a.Run(context.Background(), "what is go")
	if err != nil {
		t.Fatalf("action failure alone should not surface an error: %v", err)
	}
	if result.Answer == "" {
		t.Fatal("answer must be non-empty")
	}
}

func TestRunRetriesFailedActions(t *testing.T) {
	provider := &scriptProvider{responses: []string{planJSON("search")}}
	search := &stubSearch{err: errors.New("connection refused")}

	a := newTestAgent(t, provider, search, Config{MaxIterations: 3})

	_, _ = a.Run(context.Background(), "what is go")
	if search.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", search.calls)
	}
}

func TestRunTotalFailure(t *testing.T) {
	provider := &scriptProvider{err: errors.New("llm down")}
	search := &stubSearch{err: errors.New("connection refused")}

	a := newTestAgent(t, provider, search, Config{MaxIterations: 1})

	result, err := a.Run(context.Background(), "what is go")
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
	if result.Answer != AdvisoryNetwork {
		t.Errorf("expected network advisory, got %q", result.Answer)
	}
}

func TestRunDegradedAnswerNotCached(t *testing.T) {
	// Planning works; the action fails; synthesis works on the failure
	// observation. The answer is usable but tainted, so it must not enter
	// the cache.
	provider := &scriptProvider{responses: []string{
		planJSON("search"),
		"Sorry, the web was unreachable.",
	}}
	search := &stubSearch{err: errors.New("connection refused")}

	store, err := cache.OpenInMemory(100, time.Hour)
	if err != nil {
		t.Fatalf("OpenInMemory failed: %v", err)
	}
	defer store.Close()

	a := newTestAgent(t, provider, search, Config{MaxIterations: 1}).WithCache(store)
	ctx := context.Background()

	if _, err := a.Run(ctx, "what is go"); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	entry, err := store.GetEntry(ctx, "what is go")
	if err != nil {
		t.Fatalf("GetEntry failed: %v", err)
	}
	if entry != nil {
		t.Error("answer produced from a failed action must not be cached")
	}
}

func TestRunEmptyQuery(t *testing.T) {
	provider := &scriptProvider{responses: []string{planJSON("search"), "answer"}}
	a := newTestAgent(t, provider, &stubSearch{}, Config{MaxIterations: 1})

	result, err := a.Run(context.Background(), "   ")
	if err != nil {
		t.Fatalf("empty query should not error: %v", err)
	}
	if result.Answer == "" {
		t.Fatal("answer must be non-empty for empty query")
	}
	if provider.callCount() != 0 {
		t.Error("empty query should not reach the LLM")
	}
}

func TestRunCacheUnavailableTreatedAsMiss(t *testing.T) {
	provider := &scriptProvider{responses: []string{
		planJSON("search"),
		"Answer without cache.",
	}}

	store, err := cache.OpenInMemory(100, time.Hour)
	if err != nil {
		t.Fatalf("OpenInMemory failed: %v", err)
	}
	store.Close() // Closed store makes every cache call fail.

	a := newTestAgent(t, provider, &stubSearch{}, Config{MaxIterations: 1}).WithCache(store)

	result, err := a.Run(context.Background(), "what is go")
	if err != nil {
		t.Fatalf("cache failure must not fail the run: %v", err)
	}
	if result.Answer != "Answer without cache." {
		t.Errorf("unexpected answer: %q", result.Answer)
	}
	if result.Cached {
		t.Error("run with broken cache cannot be a cache hit")
	}
}

func TestConfigNormalization(t *testing.T) {
	c := Config{MaxIterations: 10}.normalize()
	if c.MaxIterations != 3 {
		t.Errorf("MaxIterations should clamp to 3, got %d", c.MaxIterations)
	}

	c = Config{MaxIterations: -1}.normalize()
	if c.MaxIterations != 1 {
		t.Errorf("MaxIterations should clamp to 1, got %d", c.MaxIterations)
	}
	if c.MaxResponseChars != 2000 {
		t.Errorf("unexpected default MaxResponseChars: %d", c.MaxResponseChars)
	}
	if c.ClientKey != "default" {
		t.Errorf("unexpected default ClientKey: %q", c.ClientKey)
	}
}

func TestAdvisorySelection(t *testing.T) {
	if got := advisoryFor(tools.ErrActionTimeout); got != AdvisoryTimeout {
		t.Errorf("timeout advisory mismatch: %q", got)
	}
	if got := advisoryFor(tools.ErrActionUnavailable); got != AdvisoryNetwork {
		t.Errorf("network advisory mismatch: %q", got)
	}
	if got := advisoryFor(errors.New("other")); got != AdvisoryAPI {
		t.Errorf("api advisory mismatch: %q", got)
	}
}
