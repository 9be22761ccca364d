package expand

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thiremani/cpsc/ir"
	"github.com/thiremani/cpsc/lexer"
	"github.com/thiremani/cpsc/parser"
	"github.com/thiremani/cpsc/specializer"
	"github.com/thiremani/cpsc/symbol"
	"github.com/thiremani/cpsc/types"
)

func expand(t *testing.T, input string) (*ir.Arena, *Expander) {
	t.Helper()
	cp := parser.NewCodeParser("test.cps", lexer.New("test.cps", input))
	program := cp.Parse()
	require.Empty(t, cp.Errors())

	a := ir.NewArena(types.NewTable(), symbol.NewTable())
	e := New(a)
	e.Expand(program)
	return a, e
}

func label(t *testing.T, a *ir.Arena, e *Expander, name string) *ir.Label {
	t.Helper()
	id, ok := e.Label(name)
	require.True(t, ok, "no label %s", name)
	return a.Label(id)
}

func specialize(t *testing.T, input, entry string) (*ir.Arena, *specializer.Result, error) {
	t.Helper()
	a, e := expand(t, input)
	require.Empty(t, e.Errors)
	id, ok := e.Label(entry)
	require.True(t, ok)
	s := specializer.New(a, e.Globals(), specializer.DefaultOptions())
	res, err := s.Specialize(context.Background(), id)
	return a, res, err
}

func TestExpandLabels(t *testing.T) {
	a, e := expand(t, `(fn f (ret x:i64 _ rest...)
  (add (block k (_ y) (ret _ y)) x 1:i64))`)
	require.Empty(t, e.Errors)

	f := label(t, a, e, "f")
	assert.Equal(t, "f", a.LabelName(f.ID))
	assert.False(t, f.IsInline())
	require.Len(t, f.Params, 4)
	assert.Equal(t, a.Types.I64, a.Param(f.Params[1]).Type)
	assert.Equal(t, symbol.Unnamed, a.Param(f.Params[2]).Name)
	assert.True(t, a.Param(f.Params[3]).Variadic)
	assert.Equal(t, 1, a.Param(f.Params[1]).Anchor.Line)

	add, ok := f.Body.Enter.(ir.BuiltinRef)
	require.True(t, ok)
	assert.Equal(t, ir.BAdd, add.B)

	k, ok := f.Body.Args[0].(ir.LabelRef)
	require.True(t, ok)
	kl := a.Label(k.ID)
	assert.True(t, kl.IsInline())
	assert.Equal(t, f.ID, kl.Scope)
	assert.Equal(t, ir.ParamRef{ID: f.Params[1]}, f.Body.Args[1])
	assert.Equal(t, ir.Int{Type: a.Types.I64, Bits: 1}, f.Body.Args[2])

	// ret inside k refers to the parameter of f
	assert.Equal(t, ir.ParamRef{ID: f.Params[0]}, kl.Body.Enter)
	assert.Equal(t, ir.None{}, kl.Body.Args[0])
	assert.Equal(t, ir.ParamRef{ID: kl.Params[1]}, kl.Body.Args[1])
}

func TestExpandMerge(t *testing.T) {
	a, e := expand(t, "(merge m (k v) (k _ v))")
	require.Empty(t, e.Errors)
	m := label(t, a, e, "m")
	assert.True(t, m.IsInline())
	assert.True(t, m.IsMerge())
}

func TestExpandValues(t *testing.T) {
	a, e := expand(t, `(fn m (ret)
  (dump ret -1:i8 0xff:u8 1.5:f32 0.1 "hi" (sym x) (type (ptr i32)) true false undefined-name m))`)
	require.Empty(t, e.Errors)
	m := label(t, a, e, "m")
	tt := a.Types

	args := m.Body.Args[1:]
	assert.Equal(t, ir.Int{Type: tt.I8, Bits: 0xff}, args[0])
	assert.Equal(t, ir.Int{Type: tt.U8, Bits: 0xff}, args[1])
	assert.Equal(t, ir.Real{Type: tt.F32, Value: 1.5}, args[2])
	assert.Equal(t, ir.Real{Type: tt.F64, Value: 0.1}, args[3])
	assert.Equal(t, ir.SymbolValue{Sym: a.Symbols.Intern("hi")}, args[4])
	assert.Equal(t, ir.SymbolValue{Sym: a.Symbols.Intern("x")}, args[5])
	assert.Equal(t, ir.TypeValue{T: tt.Pointer(tt.I32)}, args[6])
	assert.Equal(t, ir.NewInt(tt.Bool, 1), args[7])
	assert.Equal(t, ir.NewInt(tt.Bool, 0), args[8])

	g, ok := args[9].(ir.Global)
	require.True(t, ok)
	assert.Equal(t, "undefined-name", a.Symbols.Name(g.Name))
	assert.Equal(t, 2, g.Anchor.Line)

	assert.Equal(t, ir.LabelRef{ID: m.ID}, args[10])
}

func TestExpandTypes(t *testing.T) {
	a, e := expand(t, `(fn f (ret
  a:(array f32 4) v:(vector u8 16) p:(tuple i32 bool) u:(union i8 f64)
  c:(fn i32 (i32 i32)) r:(return i32 i64))
  (ret _))`)
	require.Empty(t, e.Errors)
	f := label(t, a, e, "f")
	tt := a.Types

	expected := []types.Type{
		tt.Array(tt.F32, 4),
		tt.Vector(tt.U8, 16),
		tt.Tuple(tt.I32, tt.Bool),
		tt.Union(tt.I8, tt.F64),
		tt.Function(tt.I32, []types.Type{tt.I32, tt.I32}, false, false),
		tt.ReturnLabel(tt.I32, tt.I64),
	}
	for i, want := range expected {
		assert.Equal(t, want, a.Param(f.Params[i+1]).Type, "param %d", i+1)
	}
}

func TestExpandExtern(t *testing.T) {
	a, e := expand(t, `(extern printf (fn i32 ((ptr i8))) variadic)
(extern sqrt (fn f64 (f64)) pure)`)
	require.Empty(t, e.Errors)

	v, ok := e.Globals()[0].Elems["printf"]
	require.True(t, ok)
	printf := v.(ir.Extern)
	assert.Equal(t, "printf", printf.Name)
	assert.True(t, printf.Sig.Variadic)
	assert.False(t, printf.Sig.Pure)

	sqrt := e.Globals()[0].Elems["sqrt"].(ir.Extern)
	assert.True(t, sqrt.Sig.Pure)
	assert.Equal(t, a.Types.F64, sqrt.Sig.Return)

	_, isLabel := e.Label("sqrt")
	assert.False(t, isLabel)
}

func TestExpandErrors(t *testing.T) {
	tests := []struct {
		input string
		err   string
	}{
		{"(fn f (ret x:strange) (ret _))", "unknown type strange"},
		{"(fn f (ret) (ret _ 256:i8))", "integer literal 256:i8 overflows i8"},
		{"(fn f (ret) (ret _ -1:u32))", "integer literal -1:u32 overflows u32"},
		{"(fn f (ret) (ret _ 256:u8))", "integer literal 256:u8 overflows u8"},
		{"(fn f (ret) (ret _ 1:f32))", "integer literal 1:f32 cannot have type f32"},
		{"(fn f (ret) (ret _ 1.0:i32))", "float literal 1.0:i32 cannot have type i32"},
		{"(extern f (fn nope ()))", "unknown type nope"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, e := expand(t, tt.input)
			require.Len(t, e.Errors, 1)
			assert.Equal(t, tt.err, e.Errors[0].Msg)
		})
	}
}

func TestLiteralFits(t *testing.T) {
	tt := types.NewTable()
	tests := []struct {
		bits     uint64
		negative bool
		typ      *types.Integer
		fits     bool
	}{
		{127, false, tt.I8, true},
		{0xff, false, tt.I8, true},
		{0x100, false, tt.I8, false},
		{uint64(1 << 63), true, tt.I64, true},
		{^uint64(0), false, tt.U64, true},
		{^uint64(0), true, tt.U64, false},
		{uint64(0xffffffffffffff80), true, tt.I8, true},
		{uint64(0xffffffffffffff7f), true, tt.I8, false},
		{1, false, tt.Bool, true},
		{2, false, tt.Bool, false},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.fits, fits(tc.bits, tc.negative, tc.typ), "%#x neg=%v %s", tc.bits, tc.negative, tc.typ)
	}
}

func TestSpecializeSource(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		entry  string
		result string
	}{
		{
			"constant",
			"(fn main (return) (add return 2 3))",
			"main",
			"(return i32)",
		},
		{
			"factorial",
			`; factorial
(fn fact (ret n:i32)
  (icmp<=s (block k (_ c)
             (branch ret c
               (block base (r) (r _ 1))
               (block rec (r) (sub (block k2 (_ m) (fact (block k3 (_ f) (mul r n f)) m)) n 1))))
           n 1))`,
			"fact",
			"(return i32)",
		},
		{
			"forward reference",
			`(fn main (ret x:f64) (half ret x))
(fn half (ret x) (fmul ret x 0.5))`,
			"main",
			"(return f64)",
		},
		{
			"mutual recursion",
			`(fn even (ret n:u32)
  (icmp== (block k (_ z)
    (branch ret z
      (block yes (r) (r _ true))
      (block no (r) (sub (block k2 (_ m) (odd r m)) n 1:u32))))
    n 0:u32))
(fn odd (ret n)
  (icmp== (block k (_ z)
    (branch ret z
      (block yes (r) (r _ false))
      (block no (r) (sub (block k2 (_ m) (even r m)) n 1:u32))))
    n 0:u32))`,
			"even",
			"(return bool)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, res, err := specialize(t, tt.input, tt.entry)
			require.NoError(t, err)
			assert.Equal(t, tt.result, a.ReturnType(a.Label(res.Entry)).String(), a.Dump(res.Entry))
		})
	}
}

func TestSpecializeSourceConstantResult(t *testing.T) {
	a, res, err := specialize(t, "(fn main (return) (add return 2 3))", "main")
	require.NoError(t, err)
	entry := a.Label(res.Entry)
	assert.Equal(t, []ir.Value{ir.None{}, ir.NewInt(a.Types.I32, 5)}, entry.Body.Args)
}

func TestSpecializeSourceUnboundName(t *testing.T) {
	_, _, err := specialize(t, "(fn main (return) (nowhere return))", "main")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unbound name nowhere")
}
