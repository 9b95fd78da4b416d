package tracking

import "strings"

// IsTruthy interprets loosely typed config values the way the browser snippet
// does: empty, "false", "0", "null", "undefined" and "nan" (case-insensitive,
// trimmed) are false, any other non-empty string is true.
func IsTruthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "false", "0", "null", "undefined", "nan":
		return false
	default:
		return true
	}
}
