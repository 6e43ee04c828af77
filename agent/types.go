// Shared types and sentinel errors for the reasoning loop.

package agent

import (
	"errors"
	"time"

	"github.com/rfharris/delver/model"
)

// Sentinel errors surfaced by Agent.Run. Everything else degrades into a
// best-effort answer instead of an error.
var (
	// ErrRateLimited means the client key exhausted its admission window.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrBackendUnavailable means planning, action execution, and synthesis
	// all failed. The returned answer is still non-empty advisory text.
	ErrBackendUnavailable = errors.New("backends unavailable")
)

// Advisory responses returned when the loop cannot do real work. Worded for
// end users, not operators.
const (
	AdvisoryNetwork   = "I'm experiencing network connectivity issues. Please try again in a moment."
	AdvisoryAPI       = "I'm having trouble processing your request. Please try rephrasing your question."
	AdvisoryTimeout   = "Your request is taking longer than expected. Please try a simpler query."
	AdvisoryRateLimit = "I'm currently processing many requests. Please wait a moment and try again."
)

// Result is the outcome of one Run call.
type Result struct {
	// Answer is always non-empty.
	Answer string

	// Cached is true when the answer came from the result cache.
	Cached bool

	// Plan is the action plan that produced the answer (zero for cache hits).
	Plan model.ActionPlan

	// RequestID uniquely identifies this run for log correlation.
	RequestID string

	// Duration is the total wall time of the run.
	Duration time.Duration
}

// Stats tracks loop activity across runs.
type Stats struct {
	TotalQueries    uint64
	CacheHits       uint64
	ToolCalls       uint64
	LLMCalls        uint64
	AvgResponseTime float64 // seconds
}
