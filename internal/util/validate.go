package util

import (
	"html"
	"regexp"
	"strings"
)

// Validation patterns shared by the verification and account flows. The
// mobile pattern is China-mainland specific and must not be loosened while
// legacy clients are still calling these endpoints.
var (
	mobilePattern   = regexp.MustCompile(`^1[3-9]\d{9}$`)
	passwordPattern = regexp.MustCompile(`^[0-9A-Za-z]{8,20}$`)
)

// IsValidMobile reports whether s is a well-formed mobile number
func IsValidMobile(s string) bool {
	return mobilePattern.MatchString(s)
}

// IsValidPassword reports whether s is an 8-20 char alphanumeric password
func IsValidPassword(s string) bool {
	return passwordPattern.MatchString(s)
}

// SanitizeInput trims and escapes HTML/script-like characters
func SanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return html.EscapeString(s)
}

// ContainsSuspicious detects obvious injection attempts in free-form input
func ContainsSuspicious(s string) bool {
	badChars := []string{"<", ">", "$", "{", "}", "script", "onerror", "onload"}
	lower := strings.ToLower(s)
	for _, c := range badChars {
		if strings.Contains(lower, c) {
			return true
		}
	}
	return false
}
