// Package recovery extracts a structured job response from the free-form
// output of an AI CLI tool. Tool output is unpredictable: it may be a clean
// JSON object, JSON buried in explanatory prose or log noise, or plain text
// with no structure at all. Recover tries the strictest interpretation first
// and degrades, never failing outright.
package recovery

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Mode identifies which strategy produced a Response.
type Mode string

const (
	ModeWholeJSON    Mode = "whole_json"
	ModeEmbeddedJSON Mode = "embedded_json"
	ModeLineJSON     Mode = "line_json"
	ModePlainText    Mode = "plain_text"
)

// Response is the recovered result of one tool invocation.
type Response struct {
	// JobResult is the primary human-readable payload. In ModePlainText it
	// is the raw tool output, untouched.
	JobResult string
	// MemoryUpdates holds key-value pairs the tool asked to persist. Values
	// are passed through as decoded, never reinterpreted here.
	MemoryUpdates map[string]any
	// Mode tags the strategy that produced this response.
	Mode Mode
}

// Candidate patterns for the embedded-object scan, ordered most-specific to
// least-specific. Trying the strict pattern first avoids latching onto the
// wrong brace span when the output contains several.
var embeddedPatterns = []*regexp.Regexp{
	// Flat object that mentions the jobResult key.
	regexp.MustCompile(`\{[^{}]*"jobResult"[^{}]*\}`),
	// Any object with one level of balanced nesting.
	regexp.MustCompile(`\{(?:[^{}]|\{[^{}]*\})*\}`),
	// Any brace-delimited span at all, greedy.
	regexp.MustCompile(`(?s)\{.*\}`),
}

// Recover converts raw tool output into a Response. It is pure and never
// fails: when no strategy yields structured data the whole input becomes the
// result under ModePlainText.
func Recover(raw string) Response {
	if obj, ok := parseObject(strings.TrimSpace(raw)); ok {
		// Whole-text parses are accepted even without a jobResult field;
		// the executor decides what an absent result means.
		result, updates := extractFields(obj)
		return Response{JobResult: result, MemoryUpdates: updates, Mode: ModeWholeJSON}
	}

	for _, pattern := range embeddedPatterns {
		for _, candidate := range pattern.FindAllString(raw, -1) {
			obj, ok := parseObject(candidate)
			if !ok {
				continue
			}
			result, updates := extractFields(obj)
			if result == "" {
				continue
			}
			return Response{JobResult: result, MemoryUpdates: updates, Mode: ModeEmbeddedJSON}
		}
	}

	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "{") || !strings.Contains(trimmed, "jobResult") {
			continue
		}
		obj, ok := parseObject(trimmed)
		if !ok {
			continue
		}
		result, updates := extractFields(obj)
		if result == "" {
			continue
		}
		return Response{JobResult: result, MemoryUpdates: updates, Mode: ModeLineJSON}
	}

	return Response{JobResult: raw, MemoryUpdates: map[string]any{}, Mode: ModePlainText}
}

// parseObject parses s as JSON and requires the top-level value to be an
// object. Bare numbers, strings and arrays are valid JSON but useless here.
func parseObject(s string) (map[string]any, bool) {
	if s == "" {
		return nil, false
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return nil, false
	}
	if obj == nil {
		return nil, false
	}
	return obj, true
}

// extractFields pulls jobResult and jobMemory out of a decoded object. A
// jobResult that is missing or not a string yields "".
func extractFields(obj map[string]any) (string, map[string]any) {
	result, _ := obj["jobResult"].(string)
	updates, _ := obj["jobMemory"].(map[string]any)
	if updates == nil {
		updates = map[string]any{}
	}
	return result, updates
}
