// Page fetching and HTML-to-text conversion.
//
// Information Hiding:
// - HTTP client configuration hidden
// - HTML stripping heuristics hidden

package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// FetchService retrieves a page and returns its readable text, truncated to
// at most maxChars characters.
type FetchService interface {
	Fetch(ctx context.Context, pageURL string, maxChars int) (string, error)
}

// truncationMarker is appended when fetched content is cut to size.
const truncationMarker = "... [content trimmed]"

var (
	scriptBlock = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleBlock  = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	anyTag      = regexp.MustCompile(`<[^>]+>`)
	whitespace  = regexp.MustCompile(`\s+`)
)

// HTTPFetcher fetches pages over HTTP and strips markup with regex
// heuristics. Good enough for feeding page text to an LLM; not a real HTML
// parser.
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher creates a fetcher with the given timeout.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPFetcher{client: &http.Client{Timeout: timeout}}
}

// NewHTTPFetcherWithClient creates a fetcher using the supplied HTTP client.
func NewHTTPFetcherWithClient(client *http.Client) *HTTPFetcher {
	return &HTTPFetcher{client: client}
}

var _ FetchService = (*HTTPFetcher)(nil)

// Fetch retrieves pageURL, strips HTML, and returns at most maxChars of text.
func (f *HTTPFetcher) Fetch(ctx context.Context, pageURL string, maxChars int) (string, error) {
	if maxChars <= 0 {
		maxChars = 1500
	}

	if err := validateURL(pageURL); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create fetch request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetch returned http %d for %s", resp.StatusCode, pageURL)
	}

	// Cap the read well above maxChars so stripping markup still leaves
	// enough text, without buffering arbitrarily large pages.
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read page body: %w", err)
	}

	text := StripHTML(string(body))
	return Truncate(text, maxChars), nil
}

// validateURL rejects anything that isn't an absolute http(s) URL.
func validateURL(pageURL string) error {
	u, err := url.Parse(pageURL)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", pageURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported URL scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL %q has no host", pageURL)
	}
	return nil
}

// StripHTML converts an HTML document to plain text: script and style blocks
// go first, then remaining tags, then runs of whitespace collapse to single
// spaces.
func StripHTML(html string) string {
	text := scriptBlock.ReplaceAllString(html, " ")
	text = styleBlock.ReplaceAllString(text, " ")
	text = anyTag.ReplaceAllString(text, " ")
	text = decodeEntities(text)
	text = whitespace.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// Truncate cuts s to maxChars and appends the truncation marker. Content at
// or under the limit is returned unchanged.
func Truncate(s string, maxChars int) string {
	if maxChars <= 0 || len(s) <= maxChars {
		return s
	}
	return s[:maxChars] + truncationMarker
}
