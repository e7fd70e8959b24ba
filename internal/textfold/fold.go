// Package textfold folds German special characters to their ASCII
// transliteration so that "Größe" and "Groesse" compare equal.
package textfold

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var germanReplacer = strings.NewReplacer(
	"ä", "ae",
	"ö", "oe",
	"ü", "ue",
	"Ä", "Ae",
	"Ö", "Oe",
	"Ü", "Ue",
	"ß", "ss",
	"ẞ", "SS",
)

// Fold replaces umlauts and sharp s with their two-letter transliteration.
// Decomposed umlauts (u + U+0308) are composed first so both forms fold.
// All other characters are left untouched.
func Fold(s string) string {
	return germanReplacer.Replace(norm.NFC.String(s))
}

// ASCII folds German characters like Fold and then strips the remaining
// combining marks, so "Renée" becomes "Renee". Characters without a
// decomposition (e.g. "ø") survive and are up to the caller to drop.
func ASCII(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, Fold(s))
	if err != nil {
		return Fold(s)
	}
	return out
}
