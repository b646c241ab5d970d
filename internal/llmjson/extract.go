// Package llmjson recovers JSON documents and fenced blocks from free-form
// model output and offers typed, error-returning access to JSON values.
package llmjson

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// EmptyObject is returned when no JSON value can be recovered.
const EmptyObject = "{}"

var (
	jsonFence = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")
	htmlFence = regexp.MustCompile("(?s)```html\\s*(.*?)\\s*```")
)

// Extract returns the best-effort single JSON value contained in text.
//
// A ```json fenced block wins. Otherwise the first '{' or '[' (whichever comes
// first) starts a span that ends when the count of that bracket type returns
// to zero. Brackets of the other type and brackets inside strings are not
// tracked. When nothing usable is found the result is "{}".
func Extract(text string) string {
	if text == "" {
		return EmptyObject
	}
	if m := jsonFence.FindStringSubmatch(text); m != nil {
		return m[1]
	}

	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return EmptyObject
	}

	open := text[start]
	closing := byte('}')
	if open == '[' {
		closing = ']'
	}

	depth := 0
	for i := start; i < len(text); i++ {
		switch text[i] {
		case open:
			depth++
		case closing:
			depth--
		}
		if depth == 0 {
			return text[start : i+1]
		}
	}
	return EmptyObject
}

// ExtractHTML returns the contents of the first ```html fenced block.
func ExtractHTML(text string) (string, bool) {
	m := htmlFence.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Canonical extracts the JSON value from text, parses it and re-serializes it
// compactly with object keys sorted. Numbers keep their original literal.
func Canonical(text string) (string, error) {
	dec := json.NewDecoder(strings.NewReader(Extract(text)))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return "", fmt.Errorf("parsing model output: %w", err)
	}
	if dec.More() {
		return "", fmt.Errorf("parsing model output: trailing data after JSON value")
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("encoding model output: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
