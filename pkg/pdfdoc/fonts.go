package pdfdoc

import (
	"strconv"
	"strings"
	"unicode"

	pdffont "github.com/pdfcpu/pdfcpu/pkg/font"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"golang.org/x/text/encoding/charmap"
)

// font decodes the string operands shown with one page font. A nil *font is
// a simple WinAnsi font without metrics.
type font struct {
	composite    bool // Type0, two-byte codes
	cmap         *toUnicode
	encoding     *charmap.Charmap
	differences  map[int]string
	widths       map[int]float64 // glyph space, 1/1000 em
	missingWidth float64
	coreName     string
}

func (f *font) twoByte() bool { return f != nil && f.composite }

// codes splits a shown string into character codes.
func (f *font) codes(raw []byte) []int {
	if !f.twoByte() {
		out := make([]int, len(raw))
		for i, b := range raw {
			out[i] = int(b)
		}
		return out
	}
	out := make([]int, 0, len(raw)/2)
	for i := 0; i+1 < len(raw); i += 2 {
		out = append(out, int(raw[i])<<8|int(raw[i+1]))
	}
	return out
}

// text returns the Unicode text drawn for code, or "" when it has none.
func (f *font) text(code int) string {
	if f == nil {
		return string(decodeByte(byte(code)))
	}
	if s, ok := f.cmap.lookup(code); ok {
		return s
	}
	if s, ok := f.differences[code]; ok {
		return s
	}
	if f.composite {
		if r := rune(code); unicode.IsPrint(r) {
			return string(r)
		}
		return ""
	}
	enc := f.encoding
	if enc == nil {
		enc = charmap.Windows1252
	}
	r := enc.DecodeByte(byte(code))
	if r < ' ' || r == unicode.ReplacementChar {
		return ""
	}
	return string(r)
}

// advance is the horizontal advance of code in em. fallback covers fonts
// that carry no metrics.
func (f *font) advance(code int, fallback float64) float64 {
	if f == nil {
		return fallback
	}
	if w, ok := f.widths[code]; ok {
		return w / 1000
	}
	if f.coreName != "" {
		return float64(pdffont.CharWidth(f.coreName, rune(code))) / 1000
	}
	if f.missingWidth > 0 {
		return f.missingWidth / 1000
	}
	return fallback
}

// loadFonts reads the Font entry of a page resource dictionary, keyed by the
// resource name used with Tf.
func loadFonts(xr *model.XRefTable, res types.Dict) map[string]*font {
	fonts := make(map[string]*font)
	if res == nil {
		return fonts
	}
	o, ok := res.Find("Font")
	if !ok {
		return fonts
	}
	dict, err := xr.DereferenceDict(o)
	if err != nil {
		return fonts
	}
	for name, ref := range dict {
		d, err := xr.DereferenceDict(ref)
		if err != nil || d == nil {
			continue
		}
		fonts[name] = loadFont(xr, d)
	}
	return fonts
}

func loadFont(xr *model.XRefTable, d types.Dict) *font {
	f := &font{}
	if nameValue(xr, d["Subtype"]) == "Type0" {
		f.composite = true
		f.missingWidth = 1000
		if kids, err := xr.DereferenceArray(d["DescendantFonts"]); err == nil && len(kids) > 0 {
			if cid, err := xr.DereferenceDict(kids[0]); err == nil && cid != nil {
				if dw, ok := numberValue(xr, cid["DW"]); ok {
					f.missingWidth = dw
				}
				f.widths = cidWidths(xr, cid["W"])
			}
		}
	} else {
		f.widths = simpleWidths(xr, d)
		if base := nameValue(xr, d["BaseFont"]); len(f.widths) == 0 && pdffont.IsCoreFont(base) {
			f.coreName = base
		}
		f.encoding, f.differences = simpleEncoding(xr, d["Encoding"])
	}

	if o, ok := d.Find("ToUnicode"); ok {
		if sd, _, err := xr.DereferenceStreamDict(o); err == nil && sd != nil && sd.Decode() == nil {
			f.cmap = parseToUnicode(sd.Content)
		}
	}
	return f
}

func simpleWidths(xr *model.XRefTable, d types.Dict) map[int]float64 {
	first, ok := numberValue(xr, d["FirstChar"])
	if !ok {
		return nil
	}
	arr, err := xr.DereferenceArray(d["Widths"])
	if err != nil || len(arr) == 0 {
		return nil
	}
	widths := make(map[int]float64, len(arr))
	for i, o := range arr {
		if w, ok := numberValue(xr, o); ok {
			widths[int(first)+i] = w
		}
	}
	return widths
}

// cidWidths reads a CIDFont W array: "c [w1 w2 ...]" and "cFirst cLast w" runs.
func cidWidths(xr *model.XRefTable, o types.Object) map[int]float64 {
	arr, err := xr.DereferenceArray(o)
	if err != nil || len(arr) == 0 {
		return nil
	}
	widths := make(map[int]float64)
	for i := 0; i+1 < len(arr); {
		first, ok := numberValue(xr, arr[i])
		if !ok {
			break
		}
		next, _ := xr.Dereference(arr[i+1])
		if list, ok := next.(types.Array); ok {
			for j, w := range list {
				if v, ok := numberValue(xr, w); ok {
					widths[int(first)+j] = v
				}
			}
			i += 2
			continue
		}
		if i+2 >= len(arr) {
			break
		}
		last, ok1 := numberValue(xr, arr[i+1])
		w, ok2 := numberValue(xr, arr[i+2])
		if ok1 && ok2 {
			for c := int(first); c <= int(last) && c <= 0xFFFF; c++ {
				widths[c] = w
			}
		}
		i += 3
	}
	return widths
}

// simpleEncoding resolves a simple font's Encoding entry to a base code page
// plus any Differences overrides.
func simpleEncoding(xr *model.XRefTable, o types.Object) (*charmap.Charmap, map[int]string) {
	o, err := xr.Dereference(o)
	if err != nil {
		return charmap.Windows1252, nil
	}
	switch v := o.(type) {
	case types.Name:
		return baseEncoding(string(v)), nil
	case types.Dict:
		enc := baseEncoding(nameValue(xr, v["BaseEncoding"]))
		arr, err := xr.DereferenceArray(v["Differences"])
		if err != nil || len(arr) == 0 {
			return enc, nil
		}
		diffs := make(map[int]string)
		code := 0
		for _, el := range arr {
			el, _ = xr.Dereference(el)
			switch el := el.(type) {
			case types.Integer:
				code = int(el)
			case types.Float:
				code = int(el)
			case types.Name:
				if s := glyphText(string(el)); s != "" {
					diffs[code] = s
				}
				code++
			}
		}
		return enc, diffs
	}
	return charmap.Windows1252, nil
}

func baseEncoding(name string) *charmap.Charmap {
	if name == "MacRomanEncoding" {
		return charmap.Macintosh
	}
	return charmap.Windows1252
}

func nameValue(xr *model.XRefTable, o types.Object) string {
	o, err := xr.Dereference(o)
	if err != nil {
		return ""
	}
	if n, ok := o.(types.Name); ok {
		return string(n)
	}
	return ""
}

func numberValue(xr *model.XRefTable, o types.Object) (float64, bool) {
	o, err := xr.Dereference(o)
	if err != nil {
		return 0, false
	}
	switch v := o.(type) {
	case types.Integer:
		return float64(v), true
	case types.Float:
		return float64(v), true
	}
	return 0, false
}

// glyphNames covers the Adobe glyph names that Differences arrays use for
// ASCII punctuation, digits and common typographic marks.
var glyphNames = map[string]string{
	"space": " ", "exclam": "!", "quotedbl": "\"", "numbersign": "#", "dollar": "$",
	"percent": "%", "ampersand": "&", "quotesingle": "'", "quoteright": "’",
	"parenleft": "(", "parenright": ")", "asterisk": "*", "plus": "+", "comma": ",",
	"hyphen": "-", "minus": "−", "period": ".", "slash": "/", "colon": ":",
	"semicolon": ";", "less": "<", "equal": "=", "greater": ">", "question": "?",
	"at": "@", "bracketleft": "[", "backslash": "\\", "bracketright": "]",
	"asciicircum": "^", "underscore": "_", "grave": "`", "quoteleft": "‘",
	"braceleft": "{", "bar": "|", "braceright": "}", "asciitilde": "~",
	"zero": "0", "one": "1", "two": "2", "three": "3", "four": "4",
	"five": "5", "six": "6", "seven": "7", "eight": "8", "nine": "9",
	"quotedblleft": "“", "quotedblright": "”", "quotesinglbase": "‚",
	"quotedblbase": "„", "endash": "–", "emdash": "—", "bullet": "•",
	"ellipsis": "…", "dagger": "†", "daggerdbl": "‡", "section": "§",
	"paragraph": "¶", "copyright": "©", "registered": "®",
	"trademark": "™", "degree": "°", "euro": "€", "sterling": "£",
	"yen": "¥", "cent": "¢", "fi": "fi", "fl": "fl", "ff": "ff",
	"ffi": "ffi", "ffl": "ffl", "nbspace": " ",
}

// glyphText maps a glyph name to its text: the table above, single-character
// names, uniXXXX and uXXXX[XX] forms, and suffixed variants such as "a.sc".
func glyphText(name string) string {
	if s, ok := glyphNames[name]; ok {
		return s
	}
	if len(name) == 1 {
		return name
	}
	if hex, ok := strings.CutPrefix(name, "uni"); ok && len(hex) >= 4 {
		if v, err := strconv.ParseUint(hex[:4], 16, 32); err == nil {
			return string(rune(v))
		}
	}
	if hex, ok := strings.CutPrefix(name, "u"); ok && len(hex) >= 4 && len(hex) <= 6 {
		if v, err := strconv.ParseUint(hex, 16, 32); err == nil && v <= unicode.MaxRune {
			return string(rune(v))
		}
	}
	if base, _, ok := strings.Cut(name, "."); ok && base != "" {
		return glyphText(base)
	}
	return ""
}
