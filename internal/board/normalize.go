package board

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// letters that carry no combining mark under NFD and so need explicit folding.
var foldReplacer = strings.NewReplacer(
	"ß", "ss",
	"æ", "ae", "Æ", "AE",
	"œ", "oe", "Œ", "OE",
	"ø", "o", "Ø", "O",
	"đ", "d", "Đ", "D",
	"ð", "d", "Ð", "D",
	"ł", "l", "Ł", "L",
	"ħ", "h", "Ħ", "H",
	"ı", "i",
	"þ", "th", "Þ", "TH",
)

// NormalizeText folds accented and diacritic characters to their plain form
// so every client displays the same text. "Ádám" becomes "Adam".
func NormalizeText(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = norm.NFC.String(s)
	}
	return foldReplacer.Replace(out)
}
