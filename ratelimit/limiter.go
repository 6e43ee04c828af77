// Package ratelimit provides sliding-window admission control per client key.
//
// Information Hiding:
// - Per-key timestamp bookkeeping hidden
// - Window pruning strategy hidden
// - Thread-safe via a single mutex around check-and-record
package ratelimit

import (
	"sync"
	"time"
)

// Limiter tracks admissions per client key within a trailing window.
// A fixed window slide (not a token bucket) is deliberate: admission
// granularity here is per-minute-scale API calls, not per-millisecond
// traffic.
//
// Windows are created on first use and kept for the process lifetime;
// memory is bounded by the number of distinct keys.
type Limiter struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	now     func() time.Time
}

// New creates a limiter with empty windows.
func New() *Limiter {
	return &Limiter{
		windows: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// Admit reports whether one more request for key is allowed under the given
// limit and trailing window, recording the admission timestamp if so.
// Nothing is recorded on rejection. The check-and-record sequence holds the
// mutex so two concurrent calls for the same key cannot both take the last
// slot.
func (l *Limiter) Admit(key string, limit int, window time.Duration) bool {
	if limit <= 0 || window <= 0 {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	timestamps := l.pruneLocked(key, now, window)

	if len(timestamps) >= limit {
		return false
	}

	l.windows[key] = append(timestamps, now)
	return true
}

// Remaining returns the number of admissions still available for key in the
// current window. Expired timestamps are pruned as a side effect; no
// admission is recorded.
func (l *Limiter) Remaining(key string, limit int, window time.Duration) int {
	if limit <= 0 || window <= 0 {
		return 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	timestamps := l.pruneLocked(key, l.now(), window)
	if remaining := limit - len(timestamps); remaining > 0 {
		return remaining
	}
	return 0
}

// pruneLocked drops timestamps older than the window start for key and
// returns the surviving slice. Caller must hold the mutex.
func (l *Limiter) pruneLocked(key string, now time.Time, window time.Duration) []time.Time {
	timestamps := l.windows[key]
	cutoff := now.Add(-window)

	kept := timestamps[:0]
	for _, ts := range timestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	l.windows[key] = kept
	return kept
}
