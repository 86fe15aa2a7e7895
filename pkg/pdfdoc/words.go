package pdfdoc

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

// WordTolerance is the clustering distance, in points, under which adjacent
// characters join into one word (X) or one line (Y).
type WordTolerance struct {
	X float64
	Y float64
}

// DefaultTolerance groups characters the way most text-layer extractors do.
var DefaultTolerance = WordTolerance{X: 3, Y: 3}

// Word is a run of non-space characters. Coordinates use a top-left origin.
type Word struct {
	Text   string
	X0     float64
	X1     float64
	Top    float64
	Bottom float64
	Line   int
}

// Page holds the words of one page in reading order.
type Page struct {
	Number int
	Width  float64
	Height float64
	Words  []Word
}

type char struct {
	ch                  rune
	x0, x1, top, bottom float64
}

// clusterWords groups glyphs into lines (by top within tol.Y) and then into
// words (split at whitespace or a horizontal gap wider than tol.X).
func clusterWords(glyphs []glyph, pageHeight float64, tol WordTolerance) []Word {
	chars := make([]char, 0, len(glyphs))
	for _, g := range glyphs {
		bottom := pageHeight - g.y
		chars = append(chars, char{
			ch:     g.ch,
			x0:     g.x,
			x1:     g.x + g.width,
			top:    bottom - g.fontSize,
			bottom: bottom,
		})
	}
	sort.SliceStable(chars, func(i, j int) bool { return chars[i].top < chars[j].top })

	var lines [][]char
	var lineTop float64
	for _, c := range chars {
		if len(lines) == 0 || c.top-lineTop > tol.Y {
			lines = append(lines, nil)
			lineTop = c.top
		}
		lines[len(lines)-1] = append(lines[len(lines)-1], c)
	}

	var words []Word
	for li, line := range lines {
		sort.SliceStable(line, func(i, j int) bool { return line[i].x0 < line[j].x0 })

		var cur *Word
		var text strings.Builder
		flush := func() {
			if cur != nil {
				cur.Text = text.String()
				words = append(words, *cur)
				cur = nil
				text.Reset()
			}
		}
		for _, c := range line {
			if unicode.IsSpace(c.ch) {
				flush()
				continue
			}
			if cur != nil && c.x0-cur.X1 > tol.X {
				flush()
			}
			if cur == nil {
				cur = &Word{X0: c.x0, X1: c.x1, Top: c.top, Bottom: c.bottom, Line: li}
			}
			text.WriteRune(c.ch)
			cur.X1 = max(cur.X1, c.x1)
			cur.Top = min(cur.Top, c.top)
			cur.Bottom = max(cur.Bottom, c.bottom)
		}
		flush()
	}
	return words
}

// PlainText joins words with single spaces and lines with newlines. A
// vertical gap spanning whole empty lines comes back as that many blank lines.
func PlainText(pages []Page) string {
	var b strings.Builder
	for pi, p := range pages {
		if pi > 0 && b.Len() > 0 {
			b.WriteByte('\n')
		}
		line := -1
		var prev Word
		for _, w := range p.Words {
			switch {
			case line == -1:
			case w.Line != line:
				b.WriteString(strings.Repeat("\n", 1+blankLines(prev, w)))
			default:
				b.WriteByte(' ')
			}
			if w.Line != line {
				prev = w
			}
			line = w.Line
			b.WriteString(w.Text)
		}
	}
	return b.String()
}

// blankLines counts the empty lines between the first words of two
// consecutive lines, taking the line pitch as 1.2 times the upper line's height.
func blankLines(upper, lower Word) int {
	pitch := 1.2 * (upper.Bottom - upper.Top)
	if pitch <= 0 {
		pitch = LineHeight
	}
	n := int(math.Round((lower.Top-upper.Top)/pitch)) - 1
	return max(n, 0)
}
