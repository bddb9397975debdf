package utils

import (
	"regexp"
	"strings"
)

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// NormalizeEmail lowercases and trims an email address so lookups and
// uniqueness checks agree on one spelling.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsValidEmail reports whether the address has the basic user@host.tld shape.
func IsValidEmail(email string) bool {
	return emailRegex.MatchString(NormalizeEmail(email))
}
