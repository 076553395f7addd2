package index

import (
	"strings"
	"unicode"

	"github.com/gosimple/unidecode"
)

// Normalize returns the canonical matching form of a display string:
// diacritics folded to ASCII, lowercased, punctuation stripped and
// whitespace collapsed. Display strings are never normalized in place;
// this form is only used as a lookup and comparison key.
func Normalize(s string) string {
	s = unidecode.Unidecode(s)
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "&", " and ")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r), r == '-', r == '_', r == '/':
			b.WriteRune(' ')
		}
		// remaining punctuation is dropped entirely
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
