package columns

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize sprowadza nagłówek do postaci porównywalnej:
// bez znaków diakrytycznych, case-fold, "ı" -> "i", pojedyncze spacje.
// "SİPARİŞ  NO", "Sipariş No" i "siparis no" dają to samo.
//
// Transformery x/text są stanowe, więc budujemy łańcuch per wywołanie.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC, cases.Fold())
	out, _, err := transform.String(t, s)
	if err != nil {
		out = strings.ToLower(s)
	}
	out = strings.Map(func(r rune) rune {
		if r == 'ı' {
			return 'i'
		}
		return r
	}, out)
	return strings.Join(strings.Fields(out), " ")
}
