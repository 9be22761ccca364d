package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/thiremani/cpsc/token"
)

type Test struct {
	expectedType    token.TokenType
	expectedLiteral string
}

func checkInput(t *testing.T, input string, tests []Test) {
	l := New("test.cps", input)

	for i, tt := range tests {
		tok := l.NextToken()

		if tok.Type != tt.expectedType {
			t.Fatalf("tests[%d] - tokentype wrong. expected=%q, got=%q",
				i, tt.expectedType, tok.Type)
		}

		if tok.Literal != tt.expectedLiteral {
			t.Fatalf("tests[%d] - literal wrong. expected=%q, got=%q",
				i, tt.expectedLiteral, tok.Literal)
		}
	}
}

func TestNextToken(t *testing.T) {
	input := `; adds two numbers
(fn main (return x:i32)
    (add return x 3)) ; trailing comment
(block k (_ ys...) (icmp<=s k -7 0x1f))
(extern sin (fn f64 (f64)) pure)
(dump 1.5 -2.5e3 1e-3:f32 "hi\n" constant?)
`

	tests := []Test{
		{token.LPAREN, "("},
		{token.IDENT, "fn"},
		{token.IDENT, "main"},
		{token.LPAREN, "("},
		{token.IDENT, "return"},
		{token.IDENT, "x"},
		{token.COLON, ":"},
		{token.IDENT, "i32"},
		{token.RPAREN, ")"},
		{token.LPAREN, "("},
		{token.IDENT, "add"},
		{token.IDENT, "return"},
		{token.IDENT, "x"},
		{token.INT, "3"},
		{token.RPAREN, ")"},
		{token.RPAREN, ")"},
		{token.LPAREN, "("},
		{token.IDENT, "block"},
		{token.IDENT, "k"},
		{token.LPAREN, "("},
		{token.IDENT, "_"},
		{token.IDENT, "ys"},
		{token.ELLIPSIS, "..."},
		{token.RPAREN, ")"},
		{token.LPAREN, "("},
		{token.IDENT, "icmp<=s"},
		{token.IDENT, "k"},
		{token.INT, "-7"},
		{token.INT, "0x1f"},
		{token.RPAREN, ")"},
		{token.RPAREN, ")"},
		{token.LPAREN, "("},
		{token.IDENT, "extern"},
		{token.IDENT, "sin"},
		{token.LPAREN, "("},
		{token.IDENT, "fn"},
		{token.IDENT, "f64"},
		{token.LPAREN, "("},
		{token.IDENT, "f64"},
		{token.RPAREN, ")"},
		{token.RPAREN, ")"},
		{token.IDENT, "pure"},
		{token.RPAREN, ")"},
		{token.LPAREN, "("},
		{token.IDENT, "dump"},
		{token.FLOAT, "1.5"},
		{token.FLOAT, "-2.5e3"},
		{token.FLOAT, "1e-3"},
		{token.COLON, ":"},
		{token.IDENT, "f32"},
		{token.STRING, "hi\n"},
		{token.IDENT, "constant?"},
		{token.RPAREN, ")"},
		{token.EOF, ""},
		{token.EOF, ""},
	}

	checkInput(t, input, tests)
}

func TestIllegal(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		literal string
	}{
		{"single dot", ".", "."},
		{"two dots", "..", "."},
		{"bad number", "12ab", "12ab"},
		{"unterminated string", `"abc`, `"abc`},
		{"string across lines", "\"ab\ncd\"", `"ab`},
		{"bracket", "[", "["},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tok := New("", tc.input).NextToken()
			assert.Equal(t, token.ILLEGAL, tok.Type)
			assert.Equal(t, tc.literal, tok.Literal)
		})
	}
}

func TestAnchors(t *testing.T) {
	l := New("a.cps", "(fn\n  ; note\n\tmain)")
	want := []token.Anchor{
		{File: "a.cps", Line: 1, Column: 1},
		{File: "a.cps", Line: 1, Column: 2},
		{File: "a.cps", Line: 3, Column: 2},
		{File: "a.cps", Line: 3, Column: 6},
	}
	for i, a := range want {
		tok := l.NextToken()
		assert.Equal(t, a, tok.Anchor, "token %d (%s)", i, tok)
	}
}
