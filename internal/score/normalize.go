package score

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// decompose splits precomposed characters into base letter plus combining
// marks (canonical NFD) and drops the marks, so "canción" strips to
// "cancion" instead of losing the accented letter entirely.
var decompose = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))

// Normalize canonicalizes raw text for comparison. The steps, in order:
// lowercase, canonical decomposition with combining marks removed, drop
// every rune that is neither a Unicode letter nor an ASCII space, then trim
// surrounding whitespace. The trailing trim matters: dropping non-letters
// can expose new edge spaces ("123 !?" filters to " "), and trimming after
// the filter collapses those to "", keeping Normalize idempotent.
//
// The result contains only lowercase letters and interior spaces. Normalize
// is idempotent and total: it never fails, empty input yields empty output,
// and malformed UTF-8 decodes to U+FFFD, which the letter filter drops.
func Normalize(text string) string {
	text = strings.ToLower(text)
	if stripped, _, err := transform.String(decompose, text); err == nil {
		text = stripped
	}

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r == ' ' || unicode.IsLetter(r) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
