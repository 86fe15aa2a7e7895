package pdfdoc

import "unicode/utf16"

// toUnicode maps character codes to text as declared by a font's ToUnicode CMap.
type toUnicode struct {
	chars  map[int]string
	ranges []cmapRange
}

// cmapRange covers codes lo..hi. Either list holds one destination per code,
// or base is the UTF-16 destination of lo and later codes bump its last unit.
type cmapRange struct {
	lo, hi int
	base   []uint16
	list   []string
}

// parseToUnicode reads the bfchar and bfrange sections of a CMap stream. The
// PostScript around them is skipped.
func parseToUnicode(data []byte) *toUnicode {
	m := &toUnicode{chars: make(map[int]string)}
	lx := &lexer{src: data}
	var stack []operand
	for {
		tok, ok := lx.next()
		if !ok {
			return m
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
			switch string(tok.text) {
			case "endbfchar":
				m.addChars(stack)
			case "endbfrange":
				m.addRanges(stack)
			}
			stack = stack[:0]
		}
	}
}

func (m *toUnicode) addChars(ops []operand) {
	for i := 0; i+1 < len(ops); i += 2 {
		src, dst := ops[i], ops[i+1]
		if src.kind != opString || dst.kind != opString {
			continue
		}
		m.chars[codeOf(src.str)] = decodeUTF16BE(dst.str)
	}
}

func (m *toUnicode) addRanges(ops []operand) {
	for i := 0; i+2 < len(ops); i += 3 {
		lo, hi, dst := ops[i], ops[i+1], ops[i+2]
		if lo.kind != opString || hi.kind != opString {
			continue
		}
		r := cmapRange{lo: codeOf(lo.str), hi: codeOf(hi.str)}
		switch dst.kind {
		case opString:
			r.base = utf16Units(dst.str)
			if len(r.base) == 0 {
				continue
			}
		case opArray:
			for _, el := range dst.arr {
				if el.kind == opString {
					r.list = append(r.list, decodeUTF16BE(el.str))
				}
			}
			if len(r.list) == 0 {
				continue
			}
		default:
			continue
		}
		m.ranges = append(m.ranges, r)
	}
}

func (m *toUnicode) lookup(code int) (string, bool) {
	if m == nil {
		return "", false
	}
	if s, ok := m.chars[code]; ok {
		return s, true
	}
	for _, r := range m.ranges {
		if code < r.lo || code > r.hi {
			continue
		}
		off := code - r.lo
		if r.list != nil {
			if off < len(r.list) {
				return r.list[off], true
			}
			return "", false
		}
		units := append([]uint16(nil), r.base...)
		units[len(units)-1] += uint16(off)
		return string(utf16.Decode(units)), true
	}
	return "", false
}

// codeOf reads a big-endian character code.
func codeOf(b []byte) int {
	v := 0
	for _, c := range b {
		v = v<<8 | int(c)
	}
	return v
}

func utf16Units(b []byte) []uint16 {
	if len(b)%2 != 0 {
		return nil
	}
	units := make([]uint16, len(b)/2)
	for i := range units {
		units[i] = uint16(b[2*i])<<8 | uint16(b[2*i+1])
	}
	return units
}

func decodeUTF16BE(b []byte) string {
	units := utf16Units(b)
	if units == nil {
		return string(b)
	}
	return string(utf16.Decode(units))
}
