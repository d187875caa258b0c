// Package events maps source-specific raw payloads into the canonical Event
// record. Normalization is pure: no I/O, no clock reads beyond fallback
// timestamps, so every rule is unit-testable.
package events

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pulsewatch/pulsewatch/internal/database"
)

// Normalize maps a raw feed item into a canonical pending Event
func Normalize(source database.EventSource, raw map[string]interface{}) (*database.Event, error) {
	switch source {
	case database.EventSourceWikimedia:
		return normalizeWikimedia(raw)
	case database.EventSourceGitHub:
		return normalizeGitHub(raw)
	default:
		return nil, fmt.Errorf("unknown event source: %s", source)
	}
}

// ExtractNestedValue extracts a value using dot notation (e.g., "length.old")
func ExtractNestedValue(data map[string]interface{}, path string) interface{} {
	if path == "" {
		return nil
	}

	parts := strings.Split(path, ".")
	current := interface{}(data)

	for _, part := range parts {
		switch v := current.(type) {
		case map[string]interface{}:
			current = v[part]
		case map[string]string:
			current = v[part]
		default:
			return nil
		}
		if current == nil {
			return nil
		}
	}

	return current
}

// ExtractString extracts a string value using dot notation
func ExtractString(data map[string]interface{}, path string) string {
	val := ExtractNestedValue(data, path)
	if val == nil {
		return ""
	}
	if s, ok := val.(string); ok {
		return s
	}
	return ""
}

// ExtractInt extracts a numeric value using dot notation. JSON numbers decode
// as float64, so both representations are accepted.
func ExtractInt(data map[string]interface{}, path string) (int, bool) {
	val := ExtractNestedValue(data, path)
	switch v := val.(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case int64:
		return int(v), true
	default:
		return 0, false
	}
}

// ExtractBool extracts a boolean value using dot notation
func ExtractBool(data map[string]interface{}, path string) bool {
	val := ExtractNestedValue(data, path)
	if b, ok := val.(bool); ok {
		return b
	}
	return false
}

// truncate shortens s to at most max bytes without splitting a UTF-8 rune
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
