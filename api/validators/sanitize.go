package validators

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// SanitizeID trims an identifier taken from a path or query, drops control
// characters and truncates it to maxLen bytes without splitting a rune.
func SanitizeID(input string, maxLen int) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, strings.TrimSpace(input))

	if maxLen <= 0 || len(cleaned) <= maxLen {
		return cleaned
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(cleaned[cut]) {
		cut--
	}
	return cleaned[:cut]
}
