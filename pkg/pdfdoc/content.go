package pdfdoc

import (
	"math"
	"strconv"

	"golang.org/x/text/encoding/charmap"
)

// matrix is a PDF affine transform [a b c d e f].
type matrix [6]float64

func identity() matrix { return matrix{1, 0, 0, 1, 0, 0} }

func translate(tx, ty float64) matrix { return matrix{1, 0, 0, 1, tx, ty} }

// mul returns m×n.
func (m matrix) mul(n matrix) matrix {
	return matrix{
		m[0]*n[0] + m[1]*n[2],
		m[0]*n[1] + m[1]*n[3],
		m[2]*n[0] + m[3]*n[2],
		m[2]*n[1] + m[3]*n[3],
		m[4]*n[0] + m[5]*n[2] + n[4],
		m[4]*n[1] + m[5]*n[3] + n[5],
	}
}

// glyph is one shown character in user space (bottom-left origin).
type glyph struct {
	ch       rune
	x, y     float64 // origin on the baseline
	width    float64
	fontSize float64
}

type textState struct {
	size      float64
	charSpace float64
	wordSpace float64
	scale     float64
	leading   float64
	rise      float64
	tm, tlm   matrix
}

type operandKind int

const (
	opNumber operandKind = iota
	opName
	opString
	opArray
	opMark
	opDict
)

type operand struct {
	kind operandKind
	num  float64
	str  []byte
	arr  []operand
}

func (o operand) number() float64 {
	if o.kind == opNumber {
		return o.num
	}
	return 0
}

// interpreter walks a decoded page content stream and records the position
// of every glyph drawn by the text-showing operators.
type interpreter struct {
	advance float64 // glyph advance in em for fonts without metrics
	fonts   map[string]*font
	font    *font
	ctm     matrix
	gstack  []matrix
	ts      textState
	glyphs  []glyph
}

func newInterpreter(advance float64) *interpreter {
	return &interpreter{
		advance: advance,
		ctm:     identity(),
		ts:      textState{scale: 100, tm: identity(), tlm: identity()},
	}
}

func (in *interpreter) run(content []byte) []glyph {
	lx := &lexer{src: content}
	var stack []operand
	for {
		tok, ok := lx.next()
		if !ok {
			break
		}
		switch tok.kind {
		case tokNumber:
			stack = append(stack, operand{kind: opNumber, num: tok.num})
		case tokName:
			stack = append(stack, operand{kind: opName, str: tok.text})
		case tokString:
			stack = append(stack, operand{kind: opString, str: tok.text})
		case tokArrayStart, tokDictStart:
			stack = append(stack, operand{kind: opMark})
		case tokArrayEnd:
			stack = closeCollection(stack, opArray)
		case tokDictEnd:
			stack = closeCollection(stack, opDict)
		case tokOperator:
			op := string(tok.text)
			if op == "BI" {
				lx.skipInlineImage()
			} else {
				in.exec(op, stack)
			}
			stack = stack[:0]
		}
	}
	return in.glyphs
}

func closeCollection(stack []operand, kind operandKind) []operand {
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i].kind == opMark {
			items := append([]operand(nil), stack[i+1:]...)
			return append(stack[:i], operand{kind: kind, arr: items})
		}
	}
	return stack
}

func (in *interpreter) exec(op string, args []operand) {
	arg := func(i int) float64 {
		if i < len(args) {
			return args[i].number()
		}
		return 0
	}
	ts := &in.ts

	switch op {
	case "q":
		in.gstack = append(in.gstack, in.ctm)
	case "Q":
		if n := len(in.gstack); n > 0 {
			in.ctm = in.gstack[n-1]
			in.gstack = in.gstack[:n-1]
		}
	case "cm":
		if len(args) == 6 {
			in.ctm = toMatrix(args).mul(in.ctm)
		}
	case "BT":
		ts.tm, ts.tlm = identity(), identity()
	case "Tc":
		ts.charSpace = arg(0)
	case "Tw":
		ts.wordSpace = arg(0)
	case "Tz":
		ts.scale = arg(0)
	case "TL":
		ts.leading = arg(0)
	case "Ts":
		ts.rise = arg(0)
	case "Tf":
		if len(args) > 0 && args[0].kind == opName {
			in.font = in.fonts[string(args[0].str)]
		}
		ts.size = arg(1)
	case "Td":
		ts.tlm = translate(arg(0), arg(1)).mul(ts.tlm)
		ts.tm = ts.tlm
	case "TD":
		ts.leading = -arg(1)
		ts.tlm = translate(arg(0), arg(1)).mul(ts.tlm)
		ts.tm = ts.tlm
	case "Tm":
		if len(args) == 6 {
			ts.tm = toMatrix(args)
			ts.tlm = ts.tm
		}
	case "T*":
		in.nextLine()
	case "Tj":
		if len(args) > 0 {
			in.show(args[len(args)-1].str)
		}
	case "'":
		in.nextLine()
		if len(args) > 0 {
			in.show(args[len(args)-1].str)
		}
	case "\"":
		if len(args) == 3 {
			ts.wordSpace = args[0].number()
			ts.charSpace = args[1].number()
			in.nextLine()
			in.show(args[2].str)
		}
	case "TJ":
		if len(args) == 0 || args[0].kind != opArray {
			return
		}
		for _, el := range args[0].arr {
			switch el.kind {
			case opNumber:
				tx := -el.num / 1000 * ts.size * ts.scale / 100
				ts.tm = translate(tx, 0).mul(ts.tm)
			case opString:
				in.show(el.str)
			}
		}
	}
}

func (in *interpreter) nextLine() {
	ts := &in.ts
	ts.tlm = translate(0, -ts.leading).mul(ts.tlm)
	ts.tm = ts.tlm
}

func (in *interpreter) show(raw []byte) {
	ts := &in.ts
	f := in.font
	for _, code := range f.codes(raw) {
		trm := matrix{ts.size * ts.scale / 100, 0, 0, ts.size, 0, ts.rise}.mul(ts.tm).mul(in.ctm)
		tx := f.advance(code, in.advance)*ts.size + ts.charSpace
		if code == ' ' && !f.twoByte() {
			tx += ts.wordSpace
		}
		tx *= ts.scale / 100

		next := translate(tx, 0).mul(ts.tm)
		end := matrix{1, 0, 0, 1, 0, ts.rise}.mul(next).mul(in.ctm)
		width := math.Abs(end[4] - trm[4])
		size := math.Hypot(trm[2], trm[3])

		// ligatures map one code to several runes; they share its advance
		runes := []rune(f.text(code))
		for i, r := range runes {
			part := width / float64(len(runes))
			in.glyphs = append(in.glyphs, glyph{
				ch:       r,
				x:        trm[4] + part*float64(i),
				y:        trm[5],
				width:    part,
				fontSize: size,
			})
		}
		ts.tm = next
	}
}

// decodeByte maps a simple-font character code to a rune. The core fonts
// default to WinAnsiEncoding, which agrees with Windows-1252 on the printable range.
func decodeByte(b byte) rune {
	if b < 0x80 {
		return rune(b)
	}
	return charmap.Windows1252.DecodeByte(b)
}

func toMatrix(args []operand) matrix {
	var m matrix
	for i := 0; i < 6; i++ {
		m[i] = args[i].number()
	}
	return m
}

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokName
	tokString
	tokArrayStart
	tokArrayEnd
	tokDictStart
	tokDictEnd
	tokOperator
)

type token struct {
	kind tokenKind
	num  float64
	text []byte
}

type lexer struct {
	src []byte
	pos int
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', '\f', 0:
		return true
	}
	return false
}

func isDelim(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func (l *lexer) next() (token, bool) {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case isSpace(c):
			l.pos++
		case c == '%':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' && l.src[l.pos] != '\r' {
				l.pos++
			}
		case c == '(':
			l.pos++
			return token{kind: tokString, text: l.literal()}, true
		case c == '<':
			if l.peek(1) == '<' {
				l.pos += 2
				return token{kind: tokDictStart}, true
			}
			l.pos++
			return token{kind: tokString, text: l.hex()}, true
		case c == '>':
			l.pos++
			if l.peek(0) == '>' {
				l.pos++
				return token{kind: tokDictEnd}, true
			}
		case c == '[':
			l.pos++
			return token{kind: tokArrayStart}, true
		case c == ']':
			l.pos++
			return token{kind: tokArrayEnd}, true
		case c == '{' || c == '}' || c == ')':
			l.pos++
		case c == '/':
			l.pos++
			return token{kind: tokName, text: l.regular()}, true
		default:
			word := l.regular()
			if n, err := strconv.ParseFloat(string(word), 64); err == nil {
				return token{kind: tokNumber, num: n}, true
			}
			return token{kind: tokOperator, text: word}, true
		}
	}
	return token{}, false
}

func (l *lexer) peek(off int) byte {
	if l.pos+off < len(l.src) {
		return l.src[l.pos+off]
	}
	return 0
}

func (l *lexer) regular() []byte {
	start := l.pos
	for l.pos < len(l.src) && !isSpace(l.src[l.pos]) && !isDelim(l.src[l.pos]) {
		l.pos++
	}
	if l.pos == start {
		l.pos++
		return l.src[start:l.pos]
	}
	return l.src[start:l.pos]
}

// literal reads a (string) body after the opening paren.
func (l *lexer) literal() []byte {
	var out []byte
	depth := 1
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		l.pos++
		switch c {
		case '(':
			depth++
			out = append(out, c)
		case ')':
			depth--
			if depth == 0 {
				return out
			}
			out = append(out, c)
		case '\\':
			if l.pos >= len(l.src) {
				return out
			}
			e := l.src[l.pos]
			l.pos++
			switch e {
			case 'n':
				out = append(out, '\n')
			case 'r':
				out = append(out, '\r')
			case 't':
				out = append(out, '\t')
			case 'b':
				out = append(out, '\b')
			case 'f':
				out = append(out, '\f')
			case '\r':
				if l.peek(0) == '\n' {
					l.pos++
				}
			case '\n':
			default:
				if e >= '0' && e <= '7' {
					v := int(e - '0')
					for i := 0; i < 2 && l.pos < len(l.src) && l.src[l.pos] >= '0' && l.src[l.pos] <= '7'; i++ {
						v = v*8 + int(l.src[l.pos]-'0')
						l.pos++
					}
					out = append(out, byte(v))
				} else {
					out = append(out, e)
				}
			}
		default:
			out = append(out, c)
		}
	}
	return out
}

func (l *lexer) hex() []byte {
	var out []byte
	hi := -1
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		l.pos++
		if c == '>' {
			break
		}
		v, ok := hexVal(c)
		if !ok {
			continue
		}
		if hi < 0 {
			hi = v
		} else {
			out = append(out, byte(hi<<4|v))
			hi = -1
		}
	}
	if hi >= 0 {
		out = append(out, byte(hi<<4))
	}
	return out
}

func hexVal(c byte) (int, bool) {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0'), true
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10, true
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10, true
	}
	return 0, false
}

// skipInlineImage advances past BI ... ID <data> EI.
func (l *lexer) skipInlineImage() {
	for l.pos+1 < len(l.src) {
		if l.src[l.pos] == 'E' && l.src[l.pos+1] == 'I' &&
			(l.pos == 0 || isSpace(l.src[l.pos-1])) &&
			(l.pos+2 >= len(l.src) || isSpace(l.src[l.pos+2])) {
			l.pos += 2
			return
		}
		l.pos++
	}
	l.pos = len(l.src)
}
