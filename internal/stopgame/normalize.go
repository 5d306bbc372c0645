package stopgame

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize returns the comparison form of a word: decomposed, stripped of
// combining marks, recomposed, lower-cased and trimmed. It is the only form
// used for cache keys and duplicate detection.
func Normalize(word string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, word)
	if err != nil {
		out = word
	}
	return strings.ToLower(strings.TrimSpace(out))
}

// NormalizeLetter returns the upper-case base form of a round letter.
func NormalizeLetter(letter string) string {
	return strings.ToUpper(Normalize(letter))
}
