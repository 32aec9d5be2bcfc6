package testcase

import "strings"

// NormalizeNewlines converts CRLF line endings to LF.
func NormalizeNewlines(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}

// Normalize prepares program output for comparison: CRLF becomes LF and
// surrounding whitespace of the whole stream is trimmed. Interior lines are
// left untouched.
func Normalize(s string) string {
	return strings.TrimSpace(NormalizeNewlines(s))
}

// Matches reports whether produced output is accepted for expected.
func Matches(output, expected string) bool {
	return Normalize(output) == Normalize(expected)
}
