package tools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

const liteResultsPage = `
<html><body><table>
<tr><td><a rel="nofollow" class="result-link" href="https://go.dev/">The Go Programming Language</a></td></tr>
<tr><td class="result-snippet">Go is an open source programming language.</td></tr>
<tr><td><a rel="nofollow" class="result-link" href="https://go.dev/doc/">Documentation</a></td></tr>
<tr><td class="result-snippet">Learn how to use Go.</td></tr>
<tr><td><a rel="nofollow" class="result-link" href="https://go.dev/blog/">The Go Blog</a></td></tr>
<tr><td class="result-snippet">News &amp; updates.</td></tr>
</table></body></html>`

func TestParseResults(t *testing.T) {
	results := parseResults(liteResultsPage, 5)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Title != "The Go Programming Language" {
		t.Errorf("unexpected title: %q", results[0].Title)
	}
	if results[0].URL != "https://go.dev/" {
		t.Errorf("unexpected URL: %q", results[0].URL)
	}
	if results[0].Snippet != "Go is an open source programming language." {
		t.Errorf("unexpected snippet: %q", results[0].Snippet)
	}
	if results[2].Snippet != "News & updates." {
		t.Errorf("entities not decoded in snippet: %q", results[2].Snippet)
	}
}

func TestParseResultsHonorsMax(t *testing.T) {
	results := parseResults(liteResultsPage, 2)
	if len(results) != 2 {
		t.Errorf("expected 2 results, got %d", len(results))
	}
}

func TestParseResultsFallback(t *testing.T) {
	page := `<html><body>
		<a href="/internal">Internal nav link</a>
		<a href="https://example.org/article">An interesting external article</a>
		<a href="https://duckduckgo.com/settings">Settings</a>
	</body></html>`

	results := parseResults(page, 5)
	if len(results) != 1 {
		t.Fatalf("expected 1 fallback result, got %d", len(results))
	}
	if results[0].URL != "https://example.org/article" {
		t.Errorf("unexpected fallback URL: %q", results[0].URL)
	}
}

func TestSearchAgainstLocalServer(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		gotQuery = r.FormValue("q")
		w.Write([]byte(liteResultsPage))
	}))
	defer server.Close()

	d := NewDuckDuckGoSearchWithClient(server.Client(), server.URL)
	results, err := d.Search(context.Background(), "golang", 5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if gotQuery != "golang" {
		t.Errorf("expected query forwarded, got %q", gotQuery)
	}
	if len(results) != 3 {
		t.Errorf("expected 3 results, got %d", len(results))
	}
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	d := NewDuckDuckGoSearch()
	if _, err := d.Search(context.Background(), "   ", 5); err == nil {
		t.Error("expected error for empty query")
	}
}
