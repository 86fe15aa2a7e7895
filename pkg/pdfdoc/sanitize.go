package pdfdoc

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// Placeholder replaces any rune the core PDF fonts cannot draw.
const Placeholder = '?'

var typographic = strings.NewReplacer(
	"–", "-",
	"—", "--",
	"‘", "'",
	"’", "'",
	"“", `"`,
	"”", `"`,
	"…", "...",
)

var asciiOnly = runes.Map(func(r rune) rune {
	if r < utf8.RuneSelf {
		return r
	}
	return Placeholder
})

// Sanitize maps typographic punctuation to ASCII and replaces every other
// non-ASCII rune with Placeholder.
func Sanitize(text string) string {
	text = typographic.Replace(text)
	out, _, err := transform.String(asciiOnly, text)
	if err != nil {
		// runes.Map never fails on valid input; keep the replacer output.
		return text
	}
	return out
}
