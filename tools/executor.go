// Action execution with per-kind timeouts and fail-soft observations.
//
// Information Hiding:
// - Timeout and truncation policy encapsulated
// - Concurrent fetch fan-out hidden from the caller

package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rfharris/delver/model"
)

// Typed execution failures. The observation returned alongside them is
// always non-empty, so the loop can keep reasoning even when an action
// fails.
var (
	ErrActionTimeout     = errors.New("action timed out")
	ErrActionUnavailable = errors.New("action backend unavailable")
)

// ExecutorConfig bounds action execution. The zero value gets sensible
// defaults from NewExecutor.
type ExecutorConfig struct {
	SearchTimeout       time.Duration
	FetchTimeout        time.Duration
	MaxSearchResults    int
	MaxFetchChars       int
	FetchTopN           int
	MaxObservationChars int
}

// DefaultExecutorConfig returns the executor defaults used by the standard
// reasoning loop.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		SearchTimeout:       10 * time.Second,
		FetchTimeout:        8 * time.Second,
		MaxSearchResults:    3,
		MaxFetchChars:       1500,
		FetchTopN:           2,
		MaxObservationChars: 4000,
	}
}

// Executor runs action plans against the search and fetch backends.
type Executor struct {
	search SearchService
	fetch  FetchService
	cfg    ExecutorConfig
}

// NewExecutor creates an executor. Zero config fields are replaced with
// defaults.
func NewExecutor(search SearchService, fetch FetchService, cfg ExecutorConfig) *Executor {
	defaults := DefaultExecutorConfig()
	if cfg.SearchTimeout <= 0 {
		cfg.SearchTimeout = defaults.SearchTimeout
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = defaults.FetchTimeout
	}
	if cfg.MaxSearchResults <= 0 {
		cfg.MaxSearchResults = defaults.MaxSearchResults
	}
	if cfg.MaxFetchChars <= 0 {
		cfg.MaxFetchChars = defaults.MaxFetchChars
	}
	if cfg.FetchTopN <= 0 {
		cfg.FetchTopN = defaults.FetchTopN
	}
	if cfg.MaxObservationChars <= 0 {
		cfg.MaxObservationChars = defaults.MaxObservationChars
	}
	return &Executor{search: search, fetch: fetch, cfg: cfg}
}

// Execute runs the plan and returns an observation for the reasoning loop.
// The observation is never empty: on failure it describes what went wrong in
// text the LLM can work with, and the returned error classifies the failure.
func (e *Executor) Execute(ctx context.Context, plan model.ActionPlan) (string, error) {
	var observation string
	var err error

	switch plan.Kind {
	case model.ActionSearch:
		observation, err = e.runSearch(ctx, plan.Input)
	case model.ActionFetch:
		observation, err = e.runFetch(ctx, plan.Input)
	case model.ActionSearchAndFetch:
		observation, err = e.runSearchAndFetch(ctx, plan.Input)
	default:
		return fmt.Sprintf("Unknown action %q; no information gathered.", plan.Kind), ErrActionUnavailable
	}

	if err != nil {
		return failureObservation(plan, err), classify(err)
	}
	return Truncate(observation, e.cfg.MaxObservationChars), nil
}

func (e *Executor) runSearch(ctx context.Context, query string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.SearchTimeout)
	defer cancel()

	results, err := e.search.Search(ctx, query, e.cfg.MaxSearchResults)
	if err != nil {
		return "", err
	}
	return FormatResults(results), nil
}

func (e *Executor) runFetch(ctx context.Context, input string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.FetchTimeout)
	defer cancel()

	content, err := e.fetch.Fetch(ctx, extractURL(input), e.cfg.MaxFetchChars)
	if err != nil {
		return "", err
	}
	return content, nil
}

// runSearchAndFetch searches first, then fetches the top results
// concurrently. Individual fetch failures are tolerated as long as the search
// itself and at least the result list succeed.
func (e *Executor) runSearchAndFetch(ctx context.Context, query string) (string, error) {
	searchCtx, cancel := context.WithTimeout(ctx, e.cfg.SearchTimeout)
	results, err := e.search.Search(searchCtx, query, e.cfg.MaxSearchResults)
	cancel()
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "No results found.", nil
	}

	topN := e.cfg.FetchTopN
	if topN > len(results) {
		topN = len(results)
	}

	contents := make([]string, topN)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < topN; i++ {
		i, result := i, results[i]
		g.Go(func() error {
			fetchCtx, cancel := context.WithTimeout(gctx, e.cfg.FetchTimeout)
			defer cancel()

			content, err := e.fetch.Fetch(fetchCtx, result.URL, e.cfg.MaxFetchChars)
			if err != nil {
				contents[i] = fmt.Sprintf("(could not retrieve %s)", result.URL)
				return nil
			}
			contents[i] = content
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("Search results:\n")
	b.WriteString(FormatResults(results))
	b.WriteString("\n\n")
	for i := 0; i < topN; i++ {
		fmt.Fprintf(&b, "Source %d (%s):\n%s\n\n", i+1, results[i].URL, contents[i])
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// extractURL pulls the first http(s) URL out of free text, so a plan whose
// input is a whole question containing a link still fetches the link.
func extractURL(input string) string {
	for _, field := range strings.Fields(input) {
		trimmed := strings.Trim(field, `.,;:!?"')(`)
		if strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") {
			return trimmed
		}
	}
	return strings.TrimSpace(input)
}

// classify maps transport errors onto the executor's typed failures.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrActionTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrActionUnavailable, err)
}

// failureObservation produces the text the loop reasons over when an action
// fails. Kept factual so the synthesizer can acknowledge the gap.
func failureObservation(plan model.ActionPlan, err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("The %s action timed out before returning results for %q.", plan.Kind, plan.Input)
	}
	return fmt.Sprintf("The %s action failed for %q: %v. No information was gathered.", plan.Kind, plan.Input, err)
}
