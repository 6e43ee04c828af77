// DuckDuckGo search backend.
//
// Information Hiding:
// - Lite HTML endpoint and scraping patterns hidden
// - Global pacing between queries hidden

package tools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rfharris/delver/model"
)

const ddgEndpoint = "https://lite.duckduckgo.com/lite/"

// ddgPace spaces queries at least one second apart across all DuckDuckGo
// instances, so concurrent loops in one process don't hammer the endpoint.
var ddgPace struct {
	mu   sync.Mutex
	last time.Time
}

var (
	ddgResultLink = regexp.MustCompile(`<a[^>]*class=['"]result-link['"][^>]*href=['"]([^'"]+)['"][^>]*>([^<]+)</a>`)
	ddgLinkAlt    = regexp.MustCompile(`<a[^>]*href=['"]([^'"]+)['"][^>]*class=['"]result-link['"][^>]*>([^<]+)</a>`)
	ddgSnippet    = regexp.MustCompile(`<td[^>]*class=['"]result-snippet['"][^>]*>([^<]+(?:<[^>]+>[^<]*</[^>]+>)*[^<]*)</td>`)
	ddgAnyLink    = regexp.MustCompile(`<a[^>]+href=['"]([^'"]+)['"][^>]*>([^<]+)</a>`)
	htmlTag       = regexp.MustCompile(`<[^>]+>`)
)

// DuckDuckGoSearch scrapes DuckDuckGo's lite HTML interface. The lite page
// needs no API key and has a stable enough structure for regex extraction.
type DuckDuckGoSearch struct {
	client   *http.Client
	endpoint string
}

// NewDuckDuckGoSearch creates a searcher with a modest timeout.
func NewDuckDuckGoSearch() *DuckDuckGoSearch {
	return &DuckDuckGoSearch{
		client:   &http.Client{Timeout: 15 * time.Second},
		endpoint: ddgEndpoint,
	}
}

// NewDuckDuckGoSearchWithClient creates a searcher with the supplied HTTP
// client and endpoint, useful for tests against a local server.
func NewDuckDuckGoSearchWithClient(client *http.Client, endpoint string) *DuckDuckGoSearch {
	return &DuckDuckGoSearch{client: client, endpoint: endpoint}
}

var _ SearchService = (*DuckDuckGoSearch)(nil)

// Search posts the query to the lite endpoint and scrapes the result list.
func (d *DuckDuckGoSearch) Search(ctx context.Context, query string, maxResults int) ([]model.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("query cannot be empty")
	}
	if maxResults <= 0 {
		maxResults = 5
	}

	if err := pace(ctx); err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("q", query)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned http %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read search response: %w", err)
	}

	return parseResults(string(body), maxResults), nil
}

// pace blocks until one second has passed since the previous query.
func pace(ctx context.Context) error {
	ddgPace.mu.Lock()
	if wait := time.Until(ddgPace.last.Add(time.Second)); wait > 0 {
		ddgPace.mu.Unlock()
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
		ddgPace.mu.Lock()
	}
	ddgPace.last = time.Now()
	ddgPace.mu.Unlock()
	return nil
}

// parseResults extracts results from the lite HTML page. Falls back to
// scanning all external links if the result-link markup is absent.
func parseResults(html string, maxResults int) []model.SearchResult {
	matches := ddgResultLink.FindAllStringSubmatch(html, -1)
	if len(matches) == 0 {
		matches = ddgLinkAlt.FindAllStringSubmatch(html, -1)
	}
	snippets := ddgSnippet.FindAllStringSubmatch(html, -1)

	var results []model.SearchResult
	for i, m := range matches {
		if len(m) < 3 {
			continue
		}
		link := strings.TrimSpace(m[1])
		title := decodeEntities(strings.TrimSpace(m[2]))
		if link == "" || title == "" {
			continue
		}

		snippet := ""
		if i < len(snippets) && len(snippets[i]) > 1 {
			snippet = decodeEntities(htmlTag.ReplaceAllString(snippets[i][1], ""))
		}

		results = append(results, model.SearchResult{Title: title, URL: link, Snippet: snippet})
		if len(results) >= maxResults {
			return results
		}
	}

	if len(results) == 0 {
		results = parseAnyLinks(html, maxResults)
	}
	return results
}

func parseAnyLinks(html string, maxResults int) []model.SearchResult {
	var results []model.SearchResult
	seen := make(map[string]bool)

	for _, m := range ddgAnyLink.FindAllStringSubmatch(html, -1) {
		if len(m) < 3 {
			continue
		}
		link := strings.TrimSpace(m[1])
		title := decodeEntities(strings.TrimSpace(m[2]))

		if strings.Contains(link, "duckduckgo.com") ||
			strings.HasPrefix(link, "/") ||
			strings.HasPrefix(link, "#") ||
			strings.HasPrefix(link, "javascript:") {
			continue
		}
		if len(title) < 5 || seen[link] {
			continue
		}
		seen[link] = true

		results = append(results, model.SearchResult{Title: title, URL: link})
		if len(results) >= maxResults {
			break
		}
	}
	return results
}

func decodeEntities(s string) string {
	replacer := strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
		"&nbsp;", " ",
	)
	return strings.TrimSpace(replacer.Replace(s))
}
