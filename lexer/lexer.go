package lexer

import (
	"strconv"

	"github.com/thiremani/cpsc/token"
)

type Lexer struct {
	file         string
	input        []rune
	position     int  // current position in input (points to current rune)
	readPosition int  // current reading position in input (after current rune)
	curr         rune // current rune under examination
	line         int
	column       int
}

func New(file, input string) *Lexer {
	l := &Lexer{file: file, input: []rune(input), line: 1}
	l.readRune()
	return l
}

func (l *Lexer) NextToken() token.Token {
	l.skipWhitespace()

	at := l.anchor()
	var tok token.Token
	switch {
	case l.curr == 0:
		tok = token.Token{Type: token.EOF}
	case l.curr == '(':
		tok = newToken(token.LPAREN, l.curr)
	case l.curr == ')':
		tok = newToken(token.RPAREN, l.curr)
	case l.curr == ':':
		tok = newToken(token.COLON, l.curr)
	case l.curr == '.':
		if l.peekRune() == '.' && l.peekRuneAt(2) == '.' {
			l.readRune()
			l.readRune()
			tok = token.Token{Type: token.ELLIPSIS, Literal: "..."}
		} else {
			tok = newToken(token.ILLEGAL, l.curr)
		}
	case l.curr == '"':
		tok = l.readString()
		tok.Anchor = at
		return tok
	case isDigit(l.curr) || (l.curr == '-' || l.curr == '+') && isDigit(l.peekRune()):
		tok = l.readNumber()
		tok.Anchor = at
		return tok
	case isLetter(l.curr):
		tok = token.Token{Type: token.IDENT, Literal: l.readIdentifier(), Anchor: at}
		return tok
	default:
		tok = newToken(token.ILLEGAL, l.curr)
	}

	tok.Anchor = at
	l.readRune()
	return tok
}

func (l *Lexer) anchor() token.Anchor {
	return token.Anchor{File: l.file, Line: l.line, Column: l.column}
}

// skipWhitespace also skips comments, which run from ';' to the end of the
// line.
func (l *Lexer) skipWhitespace() {
	for {
		switch l.curr {
		case ' ', '\t', '\n', '\r':
			l.readRune()
		case ';':
			for l.curr != '\n' && l.curr != 0 {
				l.readRune()
			}
		default:
			return
		}
	}
}

func (l *Lexer) readRune() {
	if l.curr == '\n' {
		l.line++
		l.column = 0
	}
	if l.readPosition >= len(l.input) {
		l.curr = 0
	} else {
		l.curr = l.input[l.readPosition]
	}
	l.position = l.readPosition
	l.readPosition++
	l.column++
}

func (l *Lexer) peekRune() rune {
	return l.peekRuneAt(1)
}

func (l *Lexer) peekRuneAt(n int) rune {
	i := l.position + n
	if i >= len(l.input) {
		return 0
	}
	return l.input[i]
}

func (l *Lexer) readIdentifier() string {
	position := l.position
	for isLetter(l.curr) || isDigit(l.curr) {
		l.readRune()
	}
	return string(l.input[position:l.position])
}

// readNumber reads a decimal or 0x-prefixed integer, or a decimal float
// with an optional exponent.
func (l *Lexer) readNumber() token.Token {
	position := l.position
	typ := token.INT
	if l.curr == '-' || l.curr == '+' {
		l.readRune()
	}
	if l.curr == '0' && (l.peekRune() == 'x' || l.peekRune() == 'X') {
		l.readRune()
		l.readRune()
		for isHexDigit(l.curr) {
			l.readRune()
		}
	} else {
		for isDigit(l.curr) {
			l.readRune()
		}
		if l.curr == '.' && isDigit(l.peekRune()) {
			typ = token.FLOAT
			l.readRune()
			for isDigit(l.curr) {
				l.readRune()
			}
		}
		if l.curr == 'e' || l.curr == 'E' {
			next := l.peekRune()
			if isDigit(next) || (next == '-' || next == '+') && isDigit(l.peekRuneAt(2)) {
				typ = token.FLOAT
				l.readRune()
				l.readRune()
				for isDigit(l.curr) {
					l.readRune()
				}
			}
		}
	}
	lit := string(l.input[position:l.position])
	if isLetter(l.curr) {
		// 12abc is neither a number nor a name
		for isLetter(l.curr) || isDigit(l.curr) {
			l.readRune()
		}
		return token.Token{Type: token.ILLEGAL, Literal: string(l.input[position:l.position])}
	}
	return token.Token{Type: typ, Literal: lit}
}

// readString reads a double-quoted literal with Go escapes. Literal holds
// the unquoted value.
func (l *Lexer) readString() token.Token {
	position := l.position
	l.readRune()
	for l.curr != '"' {
		if l.curr == 0 || l.curr == '\n' {
			return token.Token{Type: token.ILLEGAL, Literal: string(l.input[position:l.position])}
		}
		if l.curr == '\\' {
			l.readRune()
		}
		l.readRune()
	}
	l.readRune()
	raw := string(l.input[position:l.position])
	s, err := strconv.Unquote(raw)
	if err != nil {
		return token.Token{Type: token.ILLEGAL, Literal: raw}
	}
	return token.Token{Type: token.STRING, Literal: s}
}

// isLetter accepts every rune that may appear in a name, so builtins such
// as icmp<=s and constant? are plain identifiers.
func isLetter(ch rune) bool {
	if 'a' <= ch && ch <= 'z' || 'A' <= ch && ch <= 'Z' {
		return true
	}
	switch ch {
	case '_', '-', '+', '*', '/', '%', '!', '?', '<', '>', '=', '&', '|', '^', '~', '$', '@', '#', '\'':
		return true
	}
	return false
}

func isDigit(ch rune) bool {
	return '0' <= ch && ch <= '9'
}

func isHexDigit(ch rune) bool {
	return isDigit(ch) || 'a' <= ch && ch <= 'f' || 'A' <= ch && ch <= 'F'
}

func newToken(tokenType token.TokenType, curr rune) token.Token {
	return token.Token{Type: tokenType, Literal: string(curr)}
}
