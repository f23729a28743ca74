package utils

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// dotless and dotted I do not decompose into a base letter plus a mark, so
// they are mapped by hand before the diacritics are stripped.
var turkishLetters = strings.NewReplacer(
	"İ", "i",
	"I", "i",
	"ı", "i",
)

var turkishTitle = cases.Title(language.Turkish)

// FoldName lowercases a name and strips diacritics so that "ESKİŞEHİR",
// "Eskişehir" and "eskisehir" compare equal. Inner whitespace is collapsed.
func FoldName(s string) string {
	s = turkishLetters.Replace(s)
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}

// DigitsOnly keeps the digits of a phone number and drops the formatting.
func DigitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// TurkishTitle title-cases text with Turkish casing rules ("AYDIN" -> "Aydın").
func TurkishTitle(s string) string {
	return turkishTitle.String(strings.TrimSpace(s))
}
