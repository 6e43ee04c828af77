package jsonx

import (
	"strings"
	"testing"
)

func TestExtractObjectPureJSON(t *testing.T) {
	obj, err := ExtractObject(`{"tool": "search", "input": "golang"}`)
	if err != nil {
		t.Fatalf("ExtractObject failed: %v", err)
	}
	if !strings.Contains(obj, `"tool"`) {
		t.Errorf("expected tool field in %q", obj)
	}
}

func TestExtractObjectEmbeddedInText(t *testing.T) {
	response := `Sure, here is my decision: {"tool": "fetch", "input": "https://example.com"} Hope that helps!`
	obj, err := ExtractObject(response)
	if err != nil {
		t.Fatalf("ExtractObject failed: %v", err)
	}
	if obj != `{"tool": "fetch", "input": "https://example.com"}` {
		t.Errorf("unexpected extraction: %q", obj)
	}
}

func TestExtractObjectMarkdownFences(t *testing.T) {
	response := "```json\n{\"tool\": \"search\", \"input\": \"ai news\"}\n```"
	obj, err := ExtractObject(response)
	if err != nil {
		t.Fatalf("ExtractObject failed: %v", err)
	}
	if !strings.Contains(obj, `"ai news"`) {
		t.Errorf("unexpected extraction: %q", obj)
	}
}

func TestExtractObjectBracesInsideStrings(t *testing.T) {
	response := `{"input": "weird {not json}", "tool": "search"}`
	obj, err := ExtractObject(response)
	if err != nil {
		t.Fatalf("ExtractObject failed: %v", err)
	}
	if obj != response {
		t.Errorf("expected full object, got %q", obj)
	}
}

func TestExtractObjectSkipsInvalidCandidates(t *testing.T) {
	// The first balanced group is not valid JSON; the second is.
	response := `{oops} then {"tool": "search"}`
	obj, err := ExtractObject(response)
	if err != nil {
		t.Fatalf("ExtractObject failed: %v", err)
	}
	if obj != `{"tool": "search"}` {
		t.Errorf("unexpected extraction: %q", obj)
	}
}

func TestExtractObjectNoJSON(t *testing.T) {
	if _, err := ExtractObject("I could not decide on a tool, sorry."); err == nil {
		t.Error("expected error for response without JSON")
	}
}

func TestUnmarshalTypedDecision(t *testing.T) {
	type decision struct {
		Tool  string `json:"tool"`
		Input string `json:"input"`
	}

	d, err := Unmarshal[decision](`Thinking... {"tool": "search", "input": "go testing"}`)
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if d.Tool != "search" {
		t.Errorf("expected tool 'search', got %q", d.Tool)
	}
	if d.Input != "go testing" {
		t.Errorf("expected input 'go testing', got %q", d.Input)
	}
}

func TestUnmarshalTypeMismatch(t *testing.T) {
	type decision struct {
		Tool string `json:"tool"`
	}

	if _, err := Unmarshal[decision](`{"tool": 42}`); err == nil {
		t.Error("expected error for mismatched field type")
	}
}
