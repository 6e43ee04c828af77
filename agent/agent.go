// Plan-act-synthesize loop implementation.
//
// This is THE canonical implementation of the reasoning loop.
// All query answering goes through this module.
//
// Information Hiding:
// - Loop internals hidden
// - Cache and rate limiter coordination hidden
// - Failure classification and degradation policy hidden

package agent

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rfharris/delver/cache"
	"github.com/rfharris/delver/llm"
	"github.com/rfharris/delver/model"
	"github.com/rfharris/delver/ratelimit"
	"github.com/rfharris/delver/tools"
)

// Agent answers queries with a bounded plan-act-synthesize loop.
type Agent struct {
	config   Config
	planner  *Planner
	synth    *Synthesizer
	executor *tools.Executor
	store    *cache.Store
	limiter  *ratelimit.Limiter

	mu    sync.Mutex
	stats Stats
}

// New creates an agent from a provider and executor. Cache and rate limiter
// are off until enabled with the With methods.
func New(config Config, provider llm.Provider, executor *tools.Executor) *Agent {
	config = config.normalize()
	client := llm.NewClient(provider)

	return &Agent{
		config:   config,
		planner:  NewPlanner(client),
		synth:    NewSynthesizer(client, config.MaxResponseChars),
		executor: executor,
	}
}

// WithCache enables the result cache.
func (a *Agent) WithCache(store *cache.Store) *Agent {
	a.store = store
	return a
}

// WithRateLimiter enables per-client admission control.
func (a *Agent) WithRateLimiter(limiter *ratelimit.Limiter) *Agent {
	a.limiter = limiter
	return a
}

// Stats returns a snapshot of loop activity counters.
func (a *Agent) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

// Run answers a query. The returned answer is always non-empty. Only two
// failures surface as errors: rate limiting (ErrRateLimited) and the total
// loss of planning, execution, and synthesis (ErrBackendUnavailable);
// everything in between degrades into a best-effort answer.
func (a *Agent) Run(ctx context.Context, query string) (Result, error) {
	start := time.Now()
	requestID := uuid.New().String()

	a.mu.Lock()
	a.stats.TotalQueries++
	a.mu.Unlock()

	query = strings.TrimSpace(query)
	if query == "" {
		return Result{
			Answer:    "Please provide a question to answer.",
			RequestID: requestID,
			Duration:  time.Since(start),
		}, nil
	}

	if answer, ok := a.probeCache(ctx, query, requestID); ok {
		a.mu.Lock()
		a.stats.CacheHits++
		a.recordDurationLocked(start)
		a.mu.Unlock()

		return Result{
			Answer:    answer,
			Cached:    true,
			RequestID: requestID,
			Duration:  time.Since(start),
		}, nil
	}

	plan, planErr := a.plan(ctx, query, requestID, 1)

	// Admission guards the side-effecting phase. Cache hits above never
	// reach this point, so they are never charged against the window.
	if !a.admitted(requestID) {
		return Result{
			Answer:    AdvisoryRateLimit,
			Plan:      plan,
			RequestID: requestID,
			Duration:  time.Since(start),
		}, ErrRateLimited
	}

	observation, actErr := a.act(ctx, plan, requestID, 1)
	for attempt := 2; attempt <= a.config.MaxIterations && actErr != nil && ctx.Err() == nil; attempt++ {
		plan, planErr = a.plan(ctx, query, requestID, attempt)
		observation, actErr = a.act(ctx, plan, requestID, attempt)
	}

	answer, synthErr := a.synth.Synthesize(ctx, query, observation)
	a.countLLMCall()
	if synthErr != nil {
		a.logf("request %s: synthesis degraded: %v", requestID, synthErr)
	}

	if planErr != nil && actErr != nil && synthErr != nil {
		return Result{
			Answer:    advisoryFor(actErr),
			Plan:      plan,
			RequestID: requestID,
			Duration:  time.Since(start),
		}, fmt.Errorf("%w: plan: %v; act: %v; synthesize: %v", ErrBackendUnavailable, planErr, actErr, synthErr)
	}

	// Cache only clean answers. Degraded or failure-tainted text would be
	// served for the full TTL.
	if a.store != nil && synthErr == nil && actErr == nil {
		if err := a.store.Put(ctx, query, answer, time.Since(start).Seconds()); err != nil {
			a.logf("request %s: cache store failed: %v", requestID, err)
		}
	}

	a.mu.Lock()
	a.recordDurationLocked(start)
	a.mu.Unlock()

	return Result{
		Answer:    answer,
		Plan:      plan,
		RequestID: requestID,
		Duration:  time.Since(start),
	}, nil
}

// plan asks the planner for an action, falling back deterministically when
// the backend misbehaves. The returned error marks a fallback plan.
func (a *Agent) plan(ctx context.Context, query, requestID string, attempt int) (model.ActionPlan, error) {
	plan, err := a.planner.Plan(ctx, query)
	a.countLLMCall()
	if err != nil {
		a.logf("request %s: plan attempt %d fell back: %v", requestID, attempt, err)
	}
	a.logf("request %s: attempt %d action=%s input=%q (%s)", requestID, attempt, plan.Kind, plan.Input, plan.Rationale)
	return plan, err
}

// act executes the plan. The observation is non-empty even on failure.
func (a *Agent) act(ctx context.Context, plan model.ActionPlan, requestID string, attempt int) (string, error) {
	observation, err := a.executor.Execute(ctx, plan)
	a.mu.Lock()
	a.stats.ToolCalls++
	a.mu.Unlock()

	if err != nil {
		a.logf("request %s: attempt %d failed: %v", requestID, attempt, err)
	}
	return observation, err
}

// admitted charges one admission against the client window. Runs without a
// limiter or with a non-positive limit are always admitted.
func (a *Agent) admitted(requestID string) bool {
	if a.limiter == nil || a.config.RateLimit <= 0 {
		return true
	}
	if a.limiter.Admit(a.config.ClientKey, a.config.RateLimit, a.config.RateWindow) {
		return true
	}
	a.logf("request %s rejected: rate limit for key %q", requestID, a.config.ClientKey)
	return false
}

// probeCache looks the query up, treating any store failure as a miss.
func (a *Agent) probeCache(ctx context.Context, query, requestID string) (string, bool) {
	if a.store == nil {
		return "", false
	}

	answer, hit, err := a.store.Get(ctx, query)
	if err != nil {
		a.logf("request %s: cache probe failed, proceeding uncached: %v", requestID, err)
		return "", false
	}
	if hit {
		a.logf("request %s: cache hit", requestID)
	}
	return answer, hit
}

func (a *Agent) countLLMCall() {
	a.mu.Lock()
	a.stats.LLMCalls++
	a.mu.Unlock()
}

// recordDurationLocked folds this run into the rolling average. Caller must
// hold the mutex.
func (a *Agent) recordDurationLocked(start time.Time) {
	seconds := time.Since(start).Seconds()
	n := float64(a.stats.TotalQueries)
	a.stats.AvgResponseTime = (a.stats.AvgResponseTime*(n-1) + seconds) / n
}

func (a *Agent) logf(format string, args ...interface{}) {
	if a.config.Verbose {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}

// advisoryFor maps an execution failure to user-facing advisory text.
func advisoryFor(err error) string {
	switch {
	case errors.Is(err, tools.ErrActionTimeout):
		return AdvisoryTimeout
	case errors.Is(err, tools.ErrActionUnavailable):
		return AdvisoryNetwork
	default:
		return AdvisoryAPI
	}
}
