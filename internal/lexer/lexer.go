// Package lexer converts source text into a lazy stream of tokens.
package lexer

import (
	"github.com/jmllang/jml/internal/token"
)

// Lexer produces tokens on demand. It only moves forward and keeps a single
// byte of lookahead plus the current line number.
type Lexer struct {
	input   string
	start   int // offset of the token being scanned
	pos     int // offset of the next unread byte
	line    int
	comment bool // inside a ?...? block comment
	done    bool // the final NEWLINE has been emitted
}

// New creates a lexer for the provided source text.
func New(input string) *Lexer {
	return &Lexer{input: input, line: 1}
}

// Line returns the line the lexer is currently on.
func (l *Lexer) Line() int {
	return l.line
}

// Next returns the next token from the input. Lexical problems are reported
// as ILLEGAL tokens whose literal is the diagnostic message. Once the input
// is exhausted a single NEWLINE is produced, followed by EOF forever.
func (l *Lexer) Next() token.Token {
	if l.done {
		l.start = l.pos
		return l.emit(token.EOF)
	}
	l.skip()
	l.start = l.pos
	if l.eof() {
		l.done = true
		if l.comment {
			return l.errorf("Unterminated comment.")
		}
		return l.emit(token.NEWLINE)
	}

	c := l.advance()
	if isIdent(c) {
		return l.identifier()
	}
	if isDigit(c) {
		return l.number()
	}

	switch c {
	case '(':
		return l.emit(token.LPAREN)
	case ')':
		return l.emit(token.RPAREN)
	case '[':
		return l.emit(token.LBRACKET)
	case ']':
		return l.emit(token.RBRACKET)
	case '{':
		return l.emit(token.LBRACE)
	case '}':
		return l.emit(token.RBRACE)
	case ';':
		return l.emit(token.SEMICOLON)
	case ',':
		return l.emit(token.COMMA)
	case '.':
		return l.emit(token.PERIOD)
	case '^':
		return l.emit(token.CARET)
	case '&':
		return l.emit(token.AMPERSAND)
	case '~':
		return l.emit(token.TILDE)
	case '#':
		return l.emit(token.HASH)
	case '@':
		return l.emit(token.AT)
	case '|':
		if l.match('>') {
			return l.emit(token.PIPE)
		}
		return l.emit(token.VBAR)
	case ':':
		if l.match(':') {
			if l.match('=') {
				return l.emit(token.CONCAT_EQUALS)
			}
			return l.emit(token.CONCAT)
		}
		return l.emit(token.COLON)
	case '+':
		if l.match('=') {
			return l.emit(token.PLUS_EQUALS)
		}
		return l.emit(token.PLUS)
	case '-':
		if l.match('>') {
			return l.emit(token.RARROW)
		}
		if l.match('=') {
			return l.emit(token.MINUS_EQUALS)
		}
		return l.emit(token.MINUS)
	case '*':
		if l.match('*') {
			if l.match('=') {
				return l.emit(token.POW_EQUALS)
			}
			return l.emit(token.POW)
		}
		if l.match('=') {
			return l.emit(token.ASTERISK_EQUALS)
		}
		return l.emit(token.ASTERISK)
	case '/':
		if l.match('=') {
			return l.emit(token.SLASH_EQUALS)
		}
		return l.emit(token.SLASH)
	case '%':
		if l.match('=') {
			return l.emit(token.MOD_EQUALS)
		}
		return l.emit(token.MOD)
	case '=':
		if l.match('=') {
			return l.emit(token.EQ)
		}
		return l.emit(token.ASSIGN)
	case '<':
		if l.match('-') {
			return l.emit(token.LARROW)
		}
		if l.match('=') {
			return l.emit(token.LT_EQUALS)
		}
		return l.emit(token.LT)
	case '>':
		if l.match('=') {
			return l.emit(token.GT_EQUALS)
		}
		return l.emit(token.GT)
	case '!':
		// skip() only leaves a '!' behind when it is followed by '='
		l.match('=')
		return l.emit(token.NOT_EQ)
	case '\'', '"':
		return l.str(c)
	case '\n':
		tok := l.emit(token.NEWLINE)
		l.line++
		return tok
	}
	return l.errorf("Unexpected character.")
}

// skip consumes whitespace and both comment forms. A newline outside of a
// block comment is significant and is left for Next to emit.
func (l *Lexer) skip() {
	for !l.eof() {
		c := l.peek()
		if l.comment && c != '?' {
			if c == '\n' {
				l.line++
			}
			l.pos++
			continue
		}
		switch c {
		case ' ', '\t', '\r':
			l.pos++
		case '!':
			if l.peekNext() == '=' {
				return
			}
			for !l.eof() && l.peek() != '\n' {
				l.pos++
			}
		case '?':
			l.comment = !l.comment
			l.pos++
		default:
			return
		}
	}
}

func (l *Lexer) identifier() token.Token {
	for isIdent(l.peek()) || isDigit(l.peek()) {
		l.pos++
	}
	return l.emit(token.LookupIdentifier(l.input[l.start:l.pos]))
}

func (l *Lexer) str(delimiter byte) token.Token {
	for {
		if l.eof() {
			return l.errorf("Unterminated string.")
		}
		c := l.peek()
		if c == delimiter {
			break
		}
		if c == '\n' {
			l.line++
		} else if c == '\\' && l.peekNext() == delimiter {
			l.pos++
		}
		l.pos++
	}
	l.pos++
	return l.emit(token.STRING)
}

func (l *Lexer) number() token.Token {
	if l.input[l.start] == '0' {
		switch l.peek() {
		case 'x', 'X':
			return l.radix(isHex, "hexadecimal")
		case 'o', 'O':
			return l.radix(isOct, "octal")
		case 'b', 'B':
			return l.radix(isBin, "binary")
		case '0':
			return l.errorf("Invalid leading zeroes.")
		}
	}
	for isDigit(l.peek()) {
		l.pos++
	}
	if l.peek() == '.' && isDigit(l.peekNext()) {
		l.pos++
		for isDigit(l.peek()) {
			l.pos++
		}
	}
	return l.emit(token.NUMBER)
}

func (l *Lexer) radix(valid func(byte) bool, name string) token.Token {
	l.pos++
	if !valid(l.peek()) {
		return l.errorf("Unterminated " + name + " literal.")
	}
	for valid(l.peek()) {
		l.pos++
	}
	if l.peek() == '.' {
		return l.errorf("Invalid dot after " + name + " literal.")
	}
	return l.emit(token.NUMBER)
}

func (l *Lexer) emit(t token.Type) token.Token {
	return token.Token{
		Type:    t,
		Literal: l.input[l.start:l.pos],
		Line:    l.line,
		Offset:  l.start,
	}
}

func (l *Lexer) errorf(message string) token.Token {
	return token.Token{
		Type:    token.ILLEGAL,
		Literal: message,
		Line:    l.line,
		Offset:  l.start,
	}
}

func (l *Lexer) eof() bool {
	return l.pos >= len(l.input)
}

func (l *Lexer) peek() byte {
	if l.eof() {
		return 0
	}
	return l.input[l.pos]
}

func (l *Lexer) peekNext() byte {
	if l.pos+1 >= len(l.input) {
		return 0
	}
	return l.input[l.pos+1]
}

func (l *Lexer) advance() byte {
	c := l.input[l.pos]
	l.pos++
	return c
}

func (l *Lexer) match(expected byte) bool {
	if l.eof() || l.input[l.pos] != expected {
		return false
	}
	l.pos++
	return true
}

func isIdent(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isHex(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func isOct(c byte) bool { return c >= '0' && c <= '7' }

func isBin(c byte) bool { return c == '0' || c == '1' }
