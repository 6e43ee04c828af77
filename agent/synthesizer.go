// Answer synthesis from gathered observations.
//
// Information Hiding:
// - Synthesis prompt wording hidden
// - Input and output clamping hidden

package agent

import (
	"context"
	"fmt"

	"github.com/rfharris/delver/llm"
)

const (
	// synthesisMaxTokens bounds the synthesis completion.
	synthesisMaxTokens = 400

	// maxObservationInput caps how much observation text goes into the
	// synthesis prompt.
	maxObservationInput = 2000

	// degradedPreviewChars is how much raw observation a degraded answer
	// carries when synthesis fails.
	degradedPreviewChars = 500

	responseTrimMarker = "\n... [response trimmed]"
)

// Synthesizer turns an observation into a user-facing answer.
type Synthesizer struct {
	client           *llm.Client
	maxResponseChars int
}

// NewSynthesizer creates a synthesizer. maxResponseChars caps answer length;
// values <= 0 default to 2000.
func NewSynthesizer(client *llm.Client, maxResponseChars int) *Synthesizer {
	if maxResponseChars <= 0 {
		maxResponseChars = 2000
	}
	return &Synthesizer{client: client, maxResponseChars: maxResponseChars}
}

// Synthesize produces an answer for query from observation. The answer is
// always non-empty: if the LLM call fails, a degraded answer carrying the
// raw observation is returned along with the error.
func (s *Synthesizer) Synthesize(ctx context.Context, query, observation string) (string, error) {
	clamped := observation
	if len(clamped) > maxObservationInput {
		clamped = clamped[:maxObservationInput]
	}

	prompt := fmt.Sprintf(`Provide a concise, helpful answer based on the information gathered.

Query: %q
Information: %s

Requirements:
- Be concise but comprehensive
- Include key facts and sources when available
- Maximum 300 words
- Structure clearly with bullet points if needed

Answer:`, query, clamped)

	response, err := s.client.Complete(ctx, prompt, synthesisMaxTokens)
	if err != nil {
		return s.degraded(observation), fmt.Errorf("synthesis call failed: %w", err)
	}
	if response == "" {
		return s.degraded(observation), fmt.Errorf("synthesis returned empty response")
	}

	if len(response) > s.maxResponseChars {
		response = response[:s.maxResponseChars] + responseTrimMarker
	}
	return response, nil
}

// degraded builds the fallback answer: a note plus the start of the raw
// observation, so the user still gets whatever was gathered.
func (s *Synthesizer) degraded(observation string) string {
	preview := observation
	if len(preview) > degradedPreviewChars {
		preview = preview[:degradedPreviewChars] + "..."
	}
	return fmt.Sprintf("I could not compose a full answer from the gathered information.\n\nRaw information:\n%s", preview)
}
