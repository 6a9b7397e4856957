// Package textx provides small text utilities used across the project.
package textx

import (
	"regexp"
	"strings"
)

var htmlTagRe = regexp.MustCompile(`<[^>]+>`)

// SanitizeText removes control characters except tab/newline/CR and trims spaces.
func SanitizeText(s string) string {
	// strip control chars outside tab/newline/carriage return
	var b strings.Builder
	for _, r := range s {
		if r == '\n' || r == '\r' || r == '\t' || (r >= 32 && r != 127) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// FilterQuestionText strips HTML markup and removes every Latin letter.
// Question text must stay Cyrillic-only; Latin fragments are leaked markup
// or instructions to the transcription vendor, never exam content. This is
// a content filter, not an encoding fix, and it is idempotent.
func FilterQuestionText(s string) string {
	noHTML := htmlTagRe.ReplaceAllString(s, "")
	var b strings.Builder
	b.Grow(len(noHTML))
	for _, r := range noHTML {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// FirstDigits returns the first run of ASCII digits in s, or "" when none.
func FirstDigits(s string) string {
	start := -1
	for i, r := range s {
		if r >= '0' && r <= '9' {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			return s[start:i]
		}
	}
	if start >= 0 {
		return s[start:]
	}
	return ""
}
