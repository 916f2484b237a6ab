package utils

import (
	"strings"
	"unicode/utf8"
)

// CleanText strips NUL bytes and invalid UTF-8 (postgres rejects both in text
// columns), trims surrounding space and cuts the result to maxRunes when maxRunes > 0.
// The boolean reports whether the input had to be changed beyond trimming.
func CleanText(input string, maxRunes int) (string, bool) {
	changed := false

	if strings.Contains(input, "\x00") || !utf8.ValidString(input) {
		input = strings.ToValidUTF8(input, "")
		input = strings.ReplaceAll(input, "\x00", "")
		changed = true
	}

	input = strings.TrimSpace(input)

	if maxRunes > 0 && utf8.RuneCountInString(input) > maxRunes {
		input = string([]rune(input)[:maxRunes])
		changed = true
	}

	return input, changed
}
