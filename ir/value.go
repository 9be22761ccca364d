package ir

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/thiremani/cpsc/symbol"
	"github.com/thiremani/cpsc/token"
	"github.com/thiremani/cpsc/types"
)

// Value is an argument or enter slot of a Body. The set of implementations
// is closed.
type Value interface {
	isValue()
}

// Int is an integer constant. Bits holds the value truncated to the width
// of Type.
type Int struct {
	Type *types.Integer
	Bits uint64
}

type Real struct {
	Type  *types.Real
	Value float64
}

// Pointer is a compile-time address, e.g. null or a result of a foreign call.
type Pointer struct {
	Type types.Type
	Addr uint64
}

// Aggregate is a constant tuple, array or vector.
type Aggregate struct {
	Type   types.Type
	Fields []Value
}

type TypeValue struct{ T types.Type }

type SymbolValue struct{ Sym symbol.Symbol }

type LabelRef struct{ ID LabelID }

type ClosureRef struct{ ID ClosureID }

// ParamRef is the runtime value bound to a parameter.
type ParamRef struct{ ID ParamID }

type BuiltinRef struct{ B Builtin }

// Extern is a foreign function with a known signature.
type Extern struct {
	Name string
	Sig  *types.Function
}

// Global is a name left unresolved by the expander; it is looked up in the
// scope chain during specialization.
type Global struct {
	Name   symbol.Symbol
	Anchor token.Anchor
}

// Unknown stands for "some runtime value of type T" in instantiation keys.
type Unknown struct{ T types.Type }

// None is the absent value, e.g. an unbound continuation.
type None struct{}

func (Int) isValue() {}
func (Real) isValue() {}
func (Pointer) isValue() {}
func (Aggregate) isValue() {}
func (TypeValue) isValue() {}
func (SymbolValue) isValue() {}
func (LabelRef) isValue() {}
func (ClosureRef) isValue() {}
func (ParamRef) isValue() {}
func (BuiltinRef) isValue() {}
func (Extern) isValue() {}
func (Global) isValue() {}
func (Unknown) isValue() {}
func (None) isValue() {}

// NewInt builds an integer constant, truncating v to the width of t.
func NewInt(t *types.Integer, v int64) Int {
	return Int{Type: t, Bits: Mask(uint64(v), t.Width)}
}

// Mask truncates bits to width.
func Mask(bits uint64, width uint32) uint64 {
	if width >= 64 {
		return bits
	}
	return bits & (uint64(1)<<width - 1)
}

// SignExtend interprets the low width bits as a two's complement number.
func SignExtend(bits uint64, width uint32) int64 {
	if width >= 64 {
		return int64(bits)
	}
	shift := 64 - width
	return int64(bits<<shift) >> shift
}

// Signed returns the value as a signed integer of its width.
func (i Int) Signed() int64 { return SignExtend(i.Bits, i.Type.Width) }

// Bool reports whether the constant is non-zero.
func (i Int) Bool() bool { return i.Bits != 0 }

// IsConstant reports whether v is known at compile time.
func IsConstant(v Value) bool {
	switch v.(type) {
	case ParamRef, Unknown, Global:
		return false
	}
	return true
}

func IsNone(v Value) bool {
	_, ok := v.(None)
	return ok
}

// TypeOf returns the type of a value.
func (a *Arena) TypeOf(v Value) types.Type {
	t := a.Types
	switch v := v.(type) {
	case Int:
		return v.Type
	case Real:
		return v.Type
	case Pointer:
		return v.Type
	case Aggregate:
		return v.Type
	case TypeValue:
		return t.TypeT
	case SymbolValue:
		return t.SymbolT
	case LabelRef:
		return t.LabelT
	case ClosureRef:
		return t.ClosureT
	case ParamRef:
		return a.Param(v.ID).Type
	case BuiltinRef:
		return t.BuiltinT
	case Extern:
		return t.Pointer(v.Sig)
	case Unknown:
		return v.T
	case None:
		return t.Nothing
	}
	return t.Unknown
}

// Key renders v for use in memoization keys. A ParamRef keys by identity:
// inline instances bind the caller's runtime values directly.
func (a *Arena) Key(v Value) string {
	switch v := v.(type) {
	case Int:
		return "i" + types.Key(v.Type) + ":" + strconv.FormatUint(v.Bits, 16)
	case Real:
		return "r" + types.Key(v.Type) + ":" + strconv.FormatUint(math.Float64bits(v.Value), 16)
	case Pointer:
		return "p" + types.Key(v.Type) + ":" + strconv.FormatUint(v.Addr, 16)
	case Aggregate:
		parts := make([]string, len(v.Fields))
		for i, f := range v.Fields {
			parts[i] = a.Key(f)
		}
		return "a" + types.Key(v.Type) + "{" + strings.Join(parts, ",") + "}"
	case TypeValue:
		return "t" + types.Key(v.T)
	case SymbolValue:
		return "s" + strconv.FormatUint(uint64(v.Sym), 10)
	case LabelRef:
		return "l" + strconv.Itoa(v.ID.Index())
	case ClosureRef:
		return "c" + strconv.Itoa(v.ID.Index())
	case BuiltinRef:
		return "b" + strconv.Itoa(int(v.B))
	case Extern:
		return "x" + v.Name
	case Unknown:
		return "?" + types.Key(v.T)
	case None:
		return "_"
	case ParamRef:
		return "%" + strconv.Itoa(v.ID.Index())
	case Global:
		panic("ir: unresolved global in instantiation key")
	}
	panic(fmt.Sprintf("ir: unkeyable value %T", v))
}

// FormatValue renders v for dumps and diagnostics.
func (a *Arena) FormatValue(v Value) string {
	switch v := v.(type) {
	case Int:
		if types.IsBool(v.Type) {
			return strconv.FormatBool(v.Bool())
		}
		if v.Type.Signed {
			return strconv.FormatInt(v.Signed(), 10) + ":" + v.Type.String()
		}
		return strconv.FormatUint(v.Bits, 10) + ":" + v.Type.String()
	case Real:
		return strconv.FormatFloat(v.Value, 'g', -1, 64) + ":" + v.Type.String()
	case Pointer:
		return fmt.Sprintf("0x%x:%s", v.Addr, v.Type)
	case Aggregate:
		parts := make([]string, len(v.Fields))
		for i, f := range v.Fields {
			parts[i] = a.FormatValue(f)
		}
		return "{" + strings.Join(parts, " ") + "}:" + v.Type.String()
	case TypeValue:
		return v.T.String()
	case SymbolValue:
		return "'" + a.Symbols.Name(v.Sym)
	case LabelRef:
		return a.LabelName(v.ID) + "#" + strconv.Itoa(v.ID.Index())
	case ClosureRef:
		c := a.ClosureOf(v.ID)
		return fmt.Sprintf("<closure %s#%d@%d>", a.LabelName(c.Label), c.Label.Index(), c.Frame.Index())
	case ParamRef:
		p := a.Param(v.ID)
		name := a.Symbols.Name(p.Name)
		return "%" + name + "#" + strconv.Itoa(v.ID.Index())
	case BuiltinRef:
		return v.B.String()
	case Extern:
		return "extern " + v.Name
	case Global:
		return "global " + a.Symbols.Name(v.Name)
	case Unknown:
		return "?" + v.T.String()
	case None:
		return "_"
	}
	return fmt.Sprintf("%v", v)
}
