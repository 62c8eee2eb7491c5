package identity

import "strings"

// NormalizeEmail performs case-insensitive canonicalization.
// Emails are stored in this form, so lookups must normalize too.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeName collapses inner whitespace runs so "Ada   Lovelace" and
// "Ada Lovelace" render the same in chat headers.
func NormalizeName(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
