// Query planning: choose one action per attempt.
//
// Information Hiding:
// - Planning prompt wording hidden
// - JSON extraction and validation hidden
// - Heuristic fallback hidden

package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/rfharris/delver/internal/jsonx"
	"github.com/rfharris/delver/llm"
	"github.com/rfharris/delver/model"
)

// planningMaxTokens keeps planning calls cheap; the decision JSON is tiny.
const planningMaxTokens = 150

// Planner chooses the next action for a query. Plan always returns a usable
// plan: if the LLM call fails or returns garbage, a heuristic fallback plan
// is used and the error reports why.
type Planner struct {
	client *llm.Client
}

// NewPlanner creates a planner backed by the given LLM client.
func NewPlanner(client *llm.Client) *Planner {
	return &Planner{client: client}
}

// planDecision is the JSON shape the planning prompt asks for.
type planDecision struct {
	Tool      string `json:"tool"`
	Input     string `json:"input"`
	Reasoning string `json:"reasoning"`
}

// Plan asks the LLM to pick an action for query. The returned plan is always
// valid; a non-nil error means the heuristic fallback was used and says why.
func (p *Planner) Plan(ctx context.Context, query string) (model.ActionPlan, error) {
	prompt := fmt.Sprintf(`Analyze this query and choose the best tool. Be concise.

Available tools:
- search: Quick web search (use for simple questions)
- fetch: Get content from a specific URL (use if a URL is provided)
- search_and_fetch: Comprehensive research (use for complex topics)

Query: %q

Respond with JSON only:
{"tool": "tool_name", "input": "search terms or URL", "reasoning": "brief explanation"}`, query)

	response, err := p.client.Complete(ctx, prompt, planningMaxTokens)
	if err != nil {
		return fallbackPlan(query), fmt.Errorf("planning call failed: %w", err)
	}

	decision, err := jsonx.Unmarshal[planDecision](response)
	if err != nil {
		return fallbackPlan(query), fmt.Errorf("planning response unusable: %w", err)
	}

	kind, err := model.ParseActionKind(decision.Tool)
	if err != nil {
		return fallbackPlan(query), fmt.Errorf("planning chose unknown tool: %w", err)
	}

	input := strings.TrimSpace(decision.Input)
	if input == "" {
		input = query
	}

	return model.ActionPlan{
		Kind:      kind,
		Input:     input,
		Rationale: decision.Reasoning,
	}, nil
}

// fallbackPlan picks an action without the LLM: fetch if the query carries a
// URL, comprehensive research for long queries, plain search otherwise.
func fallbackPlan(query string) model.ActionPlan {
	switch {
	case strings.Contains(query, "http"):
		return model.ActionPlan{
			Kind:      model.ActionFetch,
			Input:     query,
			Rationale: "URL detected",
		}
	case len(strings.Fields(query)) > 8:
		return model.ActionPlan{
			Kind:      model.ActionSearchAndFetch,
			Input:     query,
			Rationale: "Complex query",
		}
	default:
		return model.ActionPlan{
			Kind:      model.ActionSearch,
			Input:     query,
			Rationale: "Simple query",
		}
	}
}
