package transcript

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Sanitize normalizes page text before it enters a prompt: NFC composition, then every run of
// whitespace (newlines and tabs included) collapsed to one space, then trimmed.
// Sanitize(Sanitize(s)) == Sanitize(s).
func Sanitize(text string) string {
	return strings.Join(strings.Fields(norm.NFC.String(text)), " ")
}

// WordCount counts whitespace-separated words.
func WordCount(text string) int {
	return len(strings.Fields(text))
}
