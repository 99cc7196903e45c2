package sanitizer

import (
	"regexp"
	"strings"
)

var reCollapseSpaces = regexp.MustCompile(`\s+`)

func trimAndLower(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ToLower(s)
	return s
}

func collapseSpaces(s string) string {
	return reCollapseSpaces.ReplaceAllString(s, " ")
}

// SanitizeMakeOrModel normalizes a vehicle make or model for storage and
// exact-match filtering. "  Land  Rover " becomes "land rover".
func SanitizeMakeOrModel(input string) string {
	p := Pipeline{
		trimAndLower,
		collapseSpaces,
	}
	return p.Apply(input)
}

// SanitizeEmail lowercases and trims an email address. Validation happens
// separately.
func SanitizeEmail(input string) string {
	return trimAndLower(input)
}

// SanitizeName trims and collapses internal whitespace, preserving case.
func SanitizeName(input string) string {
	return collapseSpaces(strings.TrimSpace(input))
}

// EscapeSearchTerm escapes regex metacharacters in a free-text search term
// so it can be embedded in a query pattern literally.
func EscapeSearchTerm(input string) string {
	return regexp.QuoteMeta(strings.TrimSpace(input))
}
