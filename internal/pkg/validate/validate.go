// Package validate provides input validation for API body and query parameters.
package validate

import (
	"strconv"
	"unicode"
)

// IDMaxLen is the maximum allowed length for user and run identifiers (stored in DB).
const IDMaxLen = 128

// ID validates a client-supplied identifier (user_id, run_id): non-empty,
// at most IDMaxLen bytes, no control characters.
func ID(id string) bool {
	if id == "" || len(id) > IDMaxLen {
		return false
	}
	for _, r := range id {
		if unicode.IsControl(r) {
			return false
		}
	}
	return true
}

// Limit resolves a raw limit query value. Absent, unparseable, or
// non-positive values fall back to def; values above max clamp to max.
func Limit(raw string, def, max int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
