// Package jsonx provides JSON extraction utilities for parsing LLM responses.
//
// LLMs often return JSON embedded in prose, markdown fences, or with trailing
// commentary. Model output is treated as adversarial input: nothing here
// assumes the response is well-formed, non-empty, or of bounded size.
package jsonx

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractObject finds and returns the first balanced JSON object in response
// that parses successfully. It handles the common LLM response patterns:
//  1. Pure JSON response
//  2. JSON wrapped in markdown code fences (```json ... ```)
//  3. JSON object embedded in surrounding text
//
// Only objects are extracted, not arrays. Brace matching skips braces inside
// string literals, so `{"a": "}"}` is handled correctly.
func ExtractObject(response string) (string, error) {
	response = stripCodeFences(response)

	trimmed := strings.TrimSpace(response)
	if json.Valid([]byte(trimmed)) && strings.HasPrefix(trimmed, "{") {
		return trimmed, nil
	}

	for start := 0; start < len(response); start++ {
		if response[start] != '{' {
			continue
		}
		end := matchBrace(response, start)
		if end < 0 {
			continue
		}
		candidate := response[start : end+1]
		if json.Valid([]byte(candidate)) {
			return candidate, nil
		}
	}

	preview := response
	if len(preview) > 100 {
		preview = preview[:100] + "..."
	}
	return "", fmt.Errorf("no valid JSON object in response: %q", preview)
}

// Unmarshal extracts the first balanced JSON object from response and
// unmarshals it into T.
func Unmarshal[T any](response string) (T, error) {
	var result T
	obj, err := ExtractObject(response)
	if err != nil {
		return result, err
	}
	if err := json.Unmarshal([]byte(obj), &result); err != nil {
		return result, fmt.Errorf("failed to unmarshal extracted JSON: %w", err)
	}
	return result, nil
}

// matchBrace returns the index of the brace closing the object that opens at
// start, or -1 if the object is unbalanced. Braces inside string literals and
// escaped quotes are ignored.
func matchBrace(s string, start int) int {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// stripCodeFences removes markdown code fence markers from a response.
// Handles ```json\n...\n``` and plain ```\n...\n```.
func stripCodeFences(response string) string {
	trimmed := strings.TrimSpace(response)

	if strings.HasPrefix(trimmed, "```json") {
		trimmed = strings.TrimSpace(strings.TrimPrefix(trimmed, "```json"))
	} else if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimSpace(strings.TrimPrefix(trimmed, "```"))
	}

	if strings.HasSuffix(trimmed, "```") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, "```"))
	}

	return trimmed
}
