// Package tools provides the web actions available to the reasoning loop:
// search, fetch, and combined search-and-fetch.
//
// Information Hiding:
// - Search engine scraping details hidden behind SearchService
// - Page retrieval and HTML stripping hidden behind FetchService
// - Timeout and truncation policy encapsulated in the Executor
package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/rfharris/delver/model"
)

// SearchService returns ranked results for a query.
type SearchService interface {
	Search(ctx context.Context, query string, maxResults int) ([]model.SearchResult, error)
}

// FormatResults renders search results as numbered text blocks for use as an
// LLM observation.
func FormatResults(results []model.SearchResult) string {
	if len(results) == 0 {
		return "No results found."
	}

	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s\n", i+1, r.Title)
		fmt.Fprintf(&b, "   Link: %s\n", r.URL)
		if r.Snippet != "" {
			fmt.Fprintf(&b, "   Snippet: %s\n", r.Snippet)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
