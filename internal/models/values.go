package models

import (
	"fmt"
	"strings"
)

// IsEmptyValue reports whether a model-supplied value counts as absent.
// The extraction model emits null, "", empty objects and the literal
// string "null" interchangeably.
func IsEmptyValue(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		s := strings.TrimSpace(t)
		return s == "" || s == "null"
	case map[string]interface{}:
		return len(t) == 0
	case []interface{}:
		return len(t) == 0
	default:
		return false
	}
}

// NormalizeValue renders a model-supplied value as a trimmed string,
// returning "" for empty markers. Numbers pass through fmt so meter
// readings extracted as JSON numbers survive.
func NormalizeValue(v interface{}) string {
	if IsEmptyValue(v) {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		// JSON numbers decode as float64; print integers without exponent.
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%v", t)
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", t))
	}
}
