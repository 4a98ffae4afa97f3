// Package tocjson extracts and validates bare JSON from LLM responses,
// adapted from internal/providers/structured_output.go's lenient parser:
// it tolerates fenced code blocks and trailing commentary around the JSON
// payload the model was asked to emit.
package tocjson

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Extract parses JSON out of raw model output, trying the content verbatim,
// then with markdown fences stripped, then the largest bracketed substring,
// in that order, returning the first candidate that parses.
func Extract(content string) (json.RawMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("tocjson: empty model output")
	}

	candidates := []string{content}
	if stripped := stripCodeFences(content); stripped != "" && stripped != content {
		candidates = append(candidates, stripped)
	}
	if extracted := extractBracketed(content); extracted != "" && extracted != content {
		candidates = append(candidates, extracted)
	}

	seen := make(map[string]struct{}, len(candidates))
	for _, candidate := range candidates {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		if _, ok := seen[candidate]; ok {
			continue
		}
		seen[candidate] = struct{}{}

		var parsed any
		if err := json.Unmarshal([]byte(candidate), &parsed); err == nil {
			normalized, mErr := json.Marshal(parsed)
			if mErr != nil {
				return nil, fmt.Errorf("tocjson: failed to normalize model output: %w", mErr)
			}
			return normalized, nil
		}
	}

	return nil, fmt.Errorf("tocjson: failed to parse JSON from model output")
}

// ExtractInto extracts JSON from content and unmarshals it into v.
func ExtractInto(content string, v any) error {
	raw, err := Extract(content)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("tocjson: failed to decode model output: %w", err)
	}
	return nil
}

func stripCodeFences(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return ""
	}

	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return ""
	}

	lines = lines[1:]
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func extractBracketed(content string) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return ""
	}

	objectStart := strings.Index(trimmed, "{")
	arrayStart := strings.Index(trimmed, "[")

	start := -1
	closeChar := ""
	switch {
	case objectStart >= 0 && arrayStart >= 0:
		if objectStart < arrayStart {
			start, closeChar = objectStart, "}"
		} else {
			start, closeChar = arrayStart, "]"
		}
	case objectStart >= 0:
		start, closeChar = objectStart, "}"
	case arrayStart >= 0:
		start, closeChar = arrayStart, "]"
	default:
		return ""
	}

	end := strings.LastIndex(trimmed, closeChar)
	if end < start {
		return ""
	}
	return strings.TrimSpace(trimmed[start : end+1])
}

// LastCompleteObjectEnd returns the byte offset just past the last closing
// '}' in content, or -1 if none is found. Used by the structurer to
// truncate a partial response at the last complete JSON object before
// asking the model to continue (spec.md §4.3).
func LastCompleteObjectEnd(content string) int {
	idx := strings.LastIndex(content, "}")
	if idx < 0 {
		return -1
	}
	return idx + 1
}
