package validators

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// SanitizeString trims, NFC-normalizes and cuts input to maxLen runes so
// Turkish characters typed on different keyboards compare equal.
func SanitizeString(input string, maxLen int) string {
	trimmed := norm.NFC.String(strings.TrimSpace(input))
	if maxLen <= 0 || utf8.RuneCountInString(trimmed) <= maxLen {
		return trimmed
	}
	runes := []rune(trimmed)
	return strings.TrimSpace(string(runes[:maxLen]))
}
