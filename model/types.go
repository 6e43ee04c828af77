// Package model provides domain types shared across packages.
package model

import (
	"fmt"
	"strings"
)

// ActionKind identifies one of the executable action types.
type ActionKind int

const (
	// ActionSearch runs a web search and returns titles, links and snippets.
	ActionSearch ActionKind = iota
	// ActionFetch downloads and extracts the text of a single URL.
	ActionFetch
	// ActionSearchAndFetch searches and then fetches the top results.
	ActionSearchAndFetch
)

// String returns the wire name of the action kind.
func (k ActionKind) String() string {
	switch k {
	case ActionSearch:
		return "search"
	case ActionFetch:
		return "fetch"
	case ActionSearchAndFetch:
		return "search_and_fetch"
	default:
		return "unknown"
	}
}

// ParseActionKind parses an action kind from its wire name (case-insensitive).
// Accepts the aliases the planner prompt has historically produced.
func ParseActionKind(s string) (ActionKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "search", "web_search":
		return ActionSearch, nil
	case "fetch", "scrape_url", "scrape":
		return ActionFetch, nil
	case "search_and_fetch", "search_and_scrape":
		return ActionSearchAndFetch, nil
	default:
		return 0, fmt.Errorf("unknown action kind: %q", s)
	}
}

// ActionPlan is a validated decision produced by the planner.
// Rationale is diagnostic only and is never parsed.
type ActionPlan struct {
	Kind      ActionKind
	Input     string
	Rationale string
}

// SearchResult is a single item returned by a search service.
type SearchResult struct {
	Title   string
	URL     string
	Snippet string
}
