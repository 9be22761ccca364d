package token

import "strconv"

type TokenType int

const (
	ILLEGAL TokenType = iota
	EOF
	COMMENT

	literal_beg
	// Identifiers + literals
	IDENT  // add, i32, icmp<s, ...
	INT    // 1343456, -7, 0x1f
	FLOAT  // 123.45
	STRING // "abc"
	literal_end

	delimiter_beg
	LPAREN   // (
	RPAREN   // )
	COLON    // :
	ELLIPSIS // ...
	delimiter_end
)

var tokens = [...]string{
	ILLEGAL: "ILLEGAL",

	EOF:     "EOF",
	COMMENT: "COMMENT",

	IDENT:  "IDENT",
	INT:    "INT",
	FLOAT:  "FLOAT",
	STRING: "STRING",

	LPAREN:   "(",
	RPAREN:   ")",
	COLON:    ":",
	ELLIPSIS: "...",
}

// Token is a lexeme together with the place it was read from.
type Token struct {
	Type    TokenType
	Literal string
	Anchor  Anchor
}

func (t Token) IsLiteral() bool {
	return literal_beg < t.Type && t.Type < literal_end
}

func (t Token) IsDelimiter() bool {
	return delimiter_beg < t.Type && t.Type < delimiter_end
}

func (t Token) String() string {
	if t.IsLiteral() || t.Type == ILLEGAL {
		return t.Type.String() + "(" + t.Literal + ")"
	}
	return t.Type.String()
}

func (tokenType TokenType) String() string {
	s := ""
	if 0 <= tokenType && tokenType < TokenType(len(tokens)) {
		s = tokens[tokenType]
	}

	if s == "" {
		s = "token(" + strconv.Itoa(int(tokenType)) + ")"
	}

	return s
}
