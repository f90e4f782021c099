package domain

import (
	"regexp"
	"strings"
)

var (
	nonNameChars = regexp.MustCompile(`[^a-z0-9\s\p{Zs}]`)
	spaceRuns    = regexp.MustCompile(`[\s\p{Zs}]+`)
)

// NormalizeName canonicalizes a free-text candidate name for comparison.
// It lowercases, removes every character outside [a-z0-9] and whitespace
// (Unicode space separators included), collapses whitespace runs to one space and trims the result.
// NormalizeName is idempotent.
func NormalizeName(name string) string {
	s := strings.ToLower(name)
	s = nonNameChars.ReplaceAllString(s, "")
	s = spaceRuns.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// nameTokens splits a normalized name on single spaces.
func nameTokens(normalized string) []string {
	return strings.Split(normalized, " ")
}

func isBlank(s string) bool { return strings.TrimSpace(s) == "" }
