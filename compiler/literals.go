package compiler

import (
	"strconv"
	"strings"
)

// parseNumber converts a number lexeme, which may carry a 0x, 0o or 0b
// prefix, to a float. Prefixed literals of any length are accepted and
// lose precision past 2^53 like every other number.
func parseNumber(lexeme string) (float64, error) {
	if len(lexeme) > 2 && lexeme[0] == '0' {
		base := 0
		switch lexeme[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 0 {
			var n float64
			for _, ch := range lexeme[2:] {
				d, err := strconv.ParseUint(string(ch), base, 8)
				if err != nil {
					return 0, err
				}
				n = n*float64(base) + float64(d)
			}
			return n, nil
		}
	}
	return strconv.ParseFloat(lexeme, 64)
}

// unquote strips the delimiters of a string lexeme and decodes its escape
// sequences. Unknown escapes are kept verbatim. It reports false for a
// malformed numeric escape.
func unquote(lexeme string) (string, bool) {
	if len(lexeme) < 2 {
		return "", false
	}
	body := lexeme[1 : len(lexeme)-1]
	if !strings.ContainsRune(body, '\\') {
		return body, true
	}
	var sb strings.Builder
	sb.Grow(len(body))
	for i := 0; i < len(body); i++ {
		ch := body[i]
		if ch != '\\' || i+1 == len(body) {
			sb.WriteByte(ch)
			continue
		}
		i++
		switch esc := body[i]; esc {
		case '\'', '"', '\\':
			sb.WriteByte(esc)
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case 'e':
			sb.WriteByte(0x1b)
		case 'x', 'u', 'U':
			width := escapeWidths[esc]
			if i+1+width > len(body) {
				return "", false
			}
			code, err := strconv.ParseUint(body[i+1:i+1+width], 16, 32)
			if err != nil {
				return "", false
			}
			if esc == 'x' {
				sb.WriteByte(byte(code))
			} else {
				sb.WriteRune(rune(code))
			}
			i += width
		default:
			sb.WriteByte('\\')
			sb.WriteByte(esc)
		}
	}
	return sb.String(), true
}

var escapeWidths = map[byte]int{'x': 2, 'u': 4, 'U': 8}
