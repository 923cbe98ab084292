package tokenizer

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// BasicTokenizer splits raw text on whitespace and punctuation boundaries,
// optionally lowercasing and stripping diacritics first. Punctuation runes
// become their own tokens.
type BasicTokenizer struct {
	Lowercase    bool
	StripAccents bool
}

// Split breaks text into basic tokens. It never fails; unknown or empty
// input yields an empty slice.
func (b BasicTokenizer) Split(text string) []string {
	if b.Lowercase {
		text = strings.ToLower(text)
	}
	if b.StripAccents {
		text = stripDiacritics(text)
	}

	var out []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
	}
	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			flush()
		case isPunctuation(r):
			flush()
			out = append(out, string(r))
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return out
}

// stripDiacritics removes combining marks after NFD decomposition, so
// "café" becomes "cafe".
func stripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// isPunctuation mirrors the BERT basic tokenizer: the four ASCII symbol
// blocks count as punctuation in addition to the unicode P category, so
// tokens like "$" and "`" split the same way the reference tokenizer splits
// them.
func isPunctuation(r rune) bool {
	if (r >= 33 && r <= 47) || (r >= 58 && r <= 64) || (r >= 91 && r <= 96) || (r >= 123 && r <= 126) {
		return true
	}
	return unicode.IsPunct(r)
}
