package tools

import (
	"encoding/json"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// queryKeys are the object fields a model tends to use when it wraps a
// plain-text tool input in JSON.
var queryKeys = []string{"query", "input", "q", "search", "text"}

// decodeJSONInput decodes a JSON-shaped tool input into dst, repairing
// sloppy JSON (single quotes, unquoted keys, trailing commas) first.
// It reports false when input does not look like a JSON object.
func decodeJSONInput(input string, dst any) bool {
	trimmed := strings.TrimSpace(input)
	if !strings.HasPrefix(trimmed, "{") {
		return false
	}
	if err := json.Unmarshal([]byte(trimmed), dst); err == nil {
		return true
	}
	repaired, err := jsonrepair.JSONRepair(trimmed)
	if err != nil {
		return false
	}
	return json.Unmarshal([]byte(repaired), dst) == nil
}

// NormalizeQuery turns a raw action input into a search query.
// Surrounding whitespace and quotes are dropped, and JSON objects such as
// {"query": "..."} are unwrapped to their query field.
func NormalizeQuery(input string) string {
	trimmed := strings.TrimSpace(input)

	var obj map[string]any
	if decodeJSONInput(trimmed, &obj) {
		for _, key := range queryKeys {
			if s, ok := obj[key].(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}

	if len(trimmed) >= 2 {
		first, last := trimmed[0], trimmed[len(trimmed)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			trimmed = strings.TrimSpace(trimmed[1 : len(trimmed)-1])
		}
	}
	return trimmed
}
