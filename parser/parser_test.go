package parser

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/thiremani/cpsc/ast"
	"github.com/thiremani/cpsc/lexer"
	"github.com/thiremani/cpsc/token"
)

func parse(t *testing.T, input string) (*ast.Program, []*token.CompileError) {
	t.Helper()
	p := New(lexer.New("test.cps", input))
	return p.ParseProgram("test.cps"), p.Errors()
}

func TestParseRoundTrip(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{
			"(fn main (return) (add return 2 3))",
			"(fn main (return) (add return 2 3))",
		},
		{
			"(fn id (ret x:i64) (ret _ x))",
			"(fn id (ret x:i64) (ret _ x))",
		},
		{
			"(block count (k xs...) (va-countof k xs))",
			"(block count (k xs...) (va-countof k xs))",
		},
		{
			"(fn f (ret p:(ptr (array f32 4))) (load ret p))",
			"(fn f (ret p:(ptr (array f32 4))) (load ret p))",
		},
		{
			"(extern sin (fn f64 (f64)) pure)",
			"(extern sin (fn f64 (f64)) pure)",
		},
		{
			"(extern printf (fn i32 ((ptr i8))) variadic)",
			"(extern printf (fn i32 ((ptr i8))) variadic)",
		},
		{
			`(fn m (ret) (dump ret 1.5:f32 -7:i8 0xff "a b" (sym x) (type (tuple i32 bool))))`,
			`(fn m (ret) (dump ret 1.5:f32 -7:i8 0xff "a b" (sym x) (type (tuple i32 bool))))`,
		},
		{
			`; factorial
(fn fact (ret n:i32)
  (icmp<=s (block k (_ c)
             (branch ret c
               (block base (r) (r _ 1))
               (block rec (r) (sub (block k2 (_ m) (fact (block k3 (_ f) (mul r n f)) m)) n 1))))
           n 1))`,
			"(fn fact (ret n:i32) (icmp<=s (block k (_ c) (branch ret c (block base (r) (r _ 1)) (block rec (r) (sub (block k2 (_ m) (fact (block k3 (_ f) (mul r n f)) m)) n 1)))) n 1))",
		},
	}

	for _, tt := range tests {
		program, errs := parse(t, tt.input)
		require.Empty(t, errs, tt.input)
		require.Equal(t, tt.expected, program.String())
	}
}

func TestParseLiterals(t *testing.T) {
	program, errs := parse(t, "(fn m (r) (r _ -1 18446744073709551615 2.5e2 true))")
	require.Empty(t, errs)
	require.Len(t, program.Statements, 1)

	lit := program.Statements[0].(*ast.LabelLiteral)
	require.Equal(t, ast.FuncLabel, lit.Kind)
	args := lit.Body.Args

	neg := args[1].(*ast.IntegerLiteral)
	require.True(t, neg.Negative)
	require.Equal(t, ^uint64(0), neg.Bits)

	big := args[2].(*ast.IntegerLiteral)
	require.False(t, big.Negative)
	require.Equal(t, ^uint64(0), big.Bits)

	require.Equal(t, 250.0, args[3].(*ast.FloatLiteral).Value)
	require.Equal(t, "true", args[4].(*ast.Identifier).Value)
}

func TestParseParams(t *testing.T) {
	program, errs := parse(t, "(merge m (_ v:(vector u8 16) rest...) (v _))")
	require.Empty(t, errs)
	lit := program.Statements[0].(*ast.LabelLiteral)
	require.Equal(t, ast.MergeLabel, lit.Kind)
	require.Len(t, lit.Params, 3)
	require.Equal(t, "_", lit.Params[0].Name)
	require.Equal(t, "(vector u8 16)", lit.Params[1].Type.String())
	require.True(t, lit.Params[2].Variadic)
	require.Equal(t, token.Anchor{File: "test.cps", Line: 1, Column: 2}, lit.Token.Anchor)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		input string
		errs  []string
	}{
		{"fn", []string{"expected a top-level form, got IDENT(fn)"}},
		{"(let x 1)", []string{`unknown top-level form "let"`}},
		{"(fn main (return))", []string{"expected next token to be (, got ) instead"}},
		{"(fn main (return) ())", []string{"empty body"}},
		{"(fn main (return) (add return 2", []string{"expected next token to be ), got EOF instead"}},
		{"(fn main (return x:(map i32)) (return _))", []string{"unknown type constructor map"}},
		{"(fn main (return) (return _ (let)))", []string{"expected a label, (type T) or (sym NAME), got (let ...)"}},
		{"(extern f (tuple i32))", []string{"extern f needs a function type"}},
		{"(extern f (fn i32 ()) fast)", []string{"unknown extern flag fast"}},
		{"(fn a (r) (r _ [)) (fn b (r) (r _ ]))", []string{
			"expected a value, got ILLEGAL([)",
			"expected a value, got ILLEGAL(])",
		}},
	}

	for _, tt := range tests {
		_, errs := parse(t, tt.input)
		require.Len(t, errs, len(tt.errs), tt.input)
		for i, msg := range tt.errs {
			require.Equal(t, msg, errs[i].Msg, tt.input)
		}
	}
}

func TestParseRecovers(t *testing.T) {
	program, errs := parse(t, "(fn a (r) (r _ [))\n(fn b (r) (r _ 1))")
	require.Len(t, errs, 1)
	require.Equal(t, token.Anchor{File: "test.cps", Line: 1, Column: 16}, errs[0].Anchor)
	require.Len(t, program.Statements, 1)
	require.Equal(t, "b", program.Statements[0].(*ast.LabelLiteral).Name.Value)
}
