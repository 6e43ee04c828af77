// Agent configuration.

package agent

import (
	"time"
)

// Config holds reasoning loop configuration. Zero values get defaults from
// normalize.
type Config struct {
	// MaxIterations bounds plan-act attempts per query, clamped to 1..3.
	// More than three attempts has never produced a better observation,
	// just slower failures.
	MaxIterations int

	// MaxResponseChars caps the synthesized answer length.
	MaxResponseChars int

	// RateLimit is the number of queries allowed per RateWindow per client
	// key. Zero disables rate limiting.
	RateLimit int

	// RateWindow is the trailing admission window.
	RateWindow time.Duration

	// ClientKey identifies the caller for rate limiting.
	ClientKey string

	// Verbose enables progress logging to stderr.
	Verbose bool
}

func (c Config) normalize() Config {
	if c.MaxIterations < 1 {
		c.MaxIterations = 1
	}
	if c.MaxIterations > 3 {
		c.MaxIterations = 3
	}
	if c.MaxResponseChars <= 0 {
		c.MaxResponseChars = 2000
	}
	if c.RateWindow <= 0 {
		c.RateWindow = time.Minute
	}
	if c.ClientKey == "" {
		c.ClientKey = "default"
	}
	return c
}
