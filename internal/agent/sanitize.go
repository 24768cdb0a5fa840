package agent

import (
	"regexp"
	"strings"
)

// SanitizedPlaceholder replaces any final text containing characters outside
// the printable set.
const SanitizedPlaceholder = "[Response contained invalid characters and was sanitized.]"

var finalAnswerMarker = regexp.MustCompile(`(?i)^\s*final answer:\s*`)

// ContainsControlChars reports whether s has a rune outside printable ASCII
// and the whitespace characters \t \n \r \v \f.
func ContainsControlChars(s string) bool {
	for _, r := range s {
		if r >= 0x20 && r <= 0x7e {
			continue
		}
		switch r {
		case '\t', '\n', '\r', '\v', '\f':
			continue
		}
		return true
	}
	return false
}

// Sanitize returns s unchanged when it is printable and the placeholder
// otherwise. Sanitize(Sanitize(s)) == Sanitize(s).
func Sanitize(s string) string {
	if ContainsControlChars(s) {
		return SanitizedPlaceholder
	}
	return s
}

// IsFinalAnswer reports whether text starts with the "final answer:" marker,
// ignoring case and leading whitespace.
func IsFinalAnswer(text string) bool {
	return finalAnswerMarker.MatchString(text)
}

// StripFinalAnswer removes the marker and surrounding whitespace.
func StripFinalAnswer(text string) string {
	return strings.TrimSpace(finalAnswerMarker.ReplaceAllString(text, ""))
}
