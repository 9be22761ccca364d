package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterning(t *testing.T) {
	tab := NewTable()

	assert.Same(t, tab.I32, tab.Int(32, true))
	assert.Same(t, tab.Bool, tab.Int(1, true), "i1 is always unsigned")
	assert.Same(t, tab.Pointer(tab.I8), tab.Pointer(tab.I8))
	assert.NotSame(t, tab.Pointer(tab.I8), tab.Pointer(tab.U8))
	assert.Same(t, tab.Tuple(tab.I32, tab.F64), tab.Tuple(tab.I32, tab.F64))
	assert.NotSame(t, tab.Tuple(tab.I32, tab.F64), tab.Tuple(tab.F64, tab.I32))
	assert.Same(t, tab.ReturnLabel(tab.I32), tab.ReturnLabel(tab.I32))
	assert.NotSame(t, tab.ReturnLabel(), tab.NoReturn)
	assert.Same(t,
		tab.Function(tab.I32, []Type{tab.I32}, false, true),
		tab.Function(tab.I32, []Type{tab.I32}, false, true))
	assert.NotSame(t,
		tab.Function(tab.I32, []Type{tab.I32}, false, true),
		tab.Function(tab.I32, []Type{tab.I32}, false, false))

	other := NewTable()
	assert.NotEqual(t, Key(tab.Pointer(tab.I8)), Key(tab.Array(tab.I8, 2)))
	assert.Equal(t, tab.I32.String(), other.I32.String())
}

func TestTypeStrings(t *testing.T) {
	tab := NewTable()
	tests := []struct {
		typ  Type
		want string
	}{
		{tab.Bool, "bool"},
		{tab.U16, "u16"},
		{tab.F32, "f32"},
		{tab.Pointer(tab.I8), "(ptr i8)"},
		{tab.Array(tab.I32, 4), "(array i32 4)"},
		{tab.Vector(tab.F32, 4), "(vector f32 4)"},
		{tab.Tuple(tab.I32, tab.F64), "(tuple i32 f64)"},
		{tab.Union(tab.I32, tab.F32), "(union i32 f32)"},
		{tab.Function(tab.I32, []Type{tab.I32, tab.I64}, true, false), "(fn i32 (i32 i64) variadic)"},
		{tab.ReturnLabel(tab.I32), "(return i32)"},
		{tab.NoReturn, "noreturn"},
		{tab.Unknown, "Unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.typ.String())
		})
	}
}

func TestReservedLookup(t *testing.T) {
	tab := NewTable()
	for _, name := range ReservedTypeNames() {
		typ, ok := tab.Lookup(name)
		require.True(t, ok, name)
		require.NotNil(t, typ)
		assert.True(t, IsReservedTypeName(name))
	}
	assert.True(t, IsReservedTypeName("ptr"))
	assert.False(t, IsReservedTypeName("fact"))
	_, ok := tab.Lookup("fact")
	assert.False(t, ok)
}

func TestFinalizeOnce(t *testing.T) {
	tab := NewTable()
	n := tab.Named("Point")
	assert.True(t, n.Opaque())
	assert.Same(t, n, tab.Named("Point"))

	_, err := SizeOf(n)
	require.Error(t, err)

	require.NoError(t, tab.Finalize(n, tab.Tuple(tab.I32, tab.I32)))
	assert.False(t, n.Opaque())
	assert.Same(t, tab.Tuple(tab.I32, tab.I32), StorageType(n))
	require.Error(t, tab.Finalize(n, tab.I64))
	require.Error(t, tab.Finalize(tab.Named("Self"), tab.Named("Self")))

	sz, err := SizeOf(n)
	require.NoError(t, err)
	assert.Equal(t, uint64(8), sz)
}

func TestLayout(t *testing.T) {
	tab := NewTable()
	tests := []struct {
		name  string
		typ   Type
		size  uint64
		align uint64
	}{
		{"bool", tab.Bool, 1, 1},
		{"i16", tab.I16, 2, 2},
		{"f64", tab.F64, 8, 8},
		{"ptr", tab.Pointer(tab.I8), 8, 8},
		{"array", tab.Array(tab.I16, 3), 6, 2},
		{"vector", tab.Vector(tab.F32, 3), 16, 16},
		{"tuple", tab.Tuple(tab.I8, tab.I32, tab.I8), 12, 4},
		{"union", tab.Union(tab.I8, tab.F64), 8, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sz, err := SizeOf(tt.typ)
			require.NoError(t, err)
			al, err := AlignOf(tt.typ)
			require.NoError(t, err)
			assert.Equal(t, tt.size, sz)
			assert.Equal(t, tt.align, al)
		})
	}

	off, err := FieldOffset(tab.Tuple(tab.I8, tab.I32, tab.I8), 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(8), off)

	_, err = SizeOf(tab.TypeT)
	assert.Error(t, err)
}

func TestClassify(t *testing.T) {
	tab := NewTable()
	tests := []struct {
		name string
		typ  Type
		want []Class
	}{
		{"int", tab.I32, []Class{IntegerClass}},
		{"double", tab.F64, []Class{SSEClass}},
		{"two floats", tab.Tuple(tab.F32, tab.F32), []Class{SSEClass}},
		{"int and float", tab.Tuple(tab.I32, tab.F32), []Class{IntegerClass}},
		{"ptr and double", tab.Tuple(tab.Pointer(tab.I8), tab.F64), []Class{IntegerClass, SSEClass}},
		{"large", tab.Array(tab.I64, 3), []Class{MemoryClass}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Classify(tt.typ)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
