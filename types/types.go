// Package types implements the interned type algebra used by the
// specializer. Types are pointers owned by a Table; two types are equal if
// and only if they are the same pointer.
package types

import (
	"fmt"
	"strings"
)

type Kind int

const (
	UnknownKind Kind = iota
	NothingKind
	IntegerKind
	RealKind
	PointerKind
	ArrayKind
	VectorKind
	TupleKind
	UnionKind
	NamedKind
	FunctionKind
	ReturnLabelKind

	// compile-time only
	TypeKind
	SymbolKind
	ClosureKind
	LabelKind
	BuiltinKind
)

var kindNames = [...]string{
	UnknownKind:     "Unknown",
	NothingKind:     "Nothing",
	IntegerKind:     "Integer",
	RealKind:        "Real",
	PointerKind:     "Pointer",
	ArrayKind:       "Array",
	VectorKind:      "Vector",
	TupleKind:       "Tuple",
	UnionKind:       "Union",
	NamedKind:       "Named",
	FunctionKind:    "Function",
	ReturnLabelKind: "ReturnLabel",
	TypeKind:        "type",
	SymbolKind:      "Symbol",
	ClosureKind:     "Closure",
	LabelKind:       "Label",
	BuiltinKind:     "Builtin",
}

func (k Kind) String() string {
	if 0 <= k && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Type is implemented only by the types of this package.
type Type interface {
	String() string
	Kind() Kind
	id() uint32
}

type base struct {
	uid uint32
}

func (b *base) id() uint32 { return b.uid }

// Basic covers the types without structure: Unknown, Nothing and the
// compile-time meta types.
type Basic struct {
	base
	kind Kind
	name string
}

func (b *Basic) Kind() Kind { return b.kind }
func (b *Basic) String() string { return b.name }

// Integer is a fixed-width two's complement integer. Width 1 is bool.
type Integer struct {
	base
	Width  uint32
	Signed bool
}

func (i *Integer) Kind() Kind { return IntegerKind }

func (i *Integer) String() string {
	if i.Width == 1 {
		return "bool"
	}
	if i.Signed {
		return fmt.Sprintf("i%d", i.Width)
	}
	return fmt.Sprintf("u%d", i.Width)
}

type Real struct {
	base
	Width uint32
}

func (r *Real) Kind() Kind { return RealKind }
func (r *Real) String() string { return fmt.Sprintf("f%d", r.Width) }

type Pointer struct {
	base
	Elem Type
}

func (p *Pointer) Kind() Kind { return PointerKind }
func (p *Pointer) String() string { return "(ptr " + p.Elem.String() + ")" }

type Array struct {
	base
	Elem  Type
	Count uint64
}

func (a *Array) Kind() Kind { return ArrayKind }
func (a *Array) String() string {
	return fmt.Sprintf("(array %s %d)", a.Elem, a.Count)
}

type Vector struct {
	base
	Elem  Type
	Count uint64
}

func (v *Vector) Kind() Kind { return VectorKind }
func (v *Vector) String() string {
	return fmt.Sprintf("(vector %s %d)", v.Elem, v.Count)
}

type Tuple struct {
	base
	Fields []Type
}

func (t *Tuple) Kind() Kind { return TupleKind }
func (t *Tuple) String() string { return listString("tuple", t.Fields) }

type Union struct {
	base
	Fields []Type
}

func (u *Union) Kind() Kind { return UnionKind }
func (u *Union) String() string { return listString("union", u.Fields) }

// Named is a nominal type. It starts opaque; its storage is set once by
// Table.Finalize.
type Named struct {
	base
	Name    string
	storage Type
}

func (n *Named) Kind() Kind { return NamedKind }
func (n *Named) String() string { return n.Name }
func (n *Named) Opaque() bool { return n.storage == nil }
func (n *Named) Storage() Type { return n.storage }

type Function struct {
	base
	Return   Type
	Params   []Type
	Variadic bool
	Pure     bool
}

func (f *Function) Kind() Kind { return FunctionKind }

func (f *Function) String() string {
	var sb strings.Builder
	sb.WriteString("(fn ")
	sb.WriteString(f.Return.String())
	sb.WriteString(" ")
	sb.WriteString(listString("", f.Params))
	if f.Variadic {
		sb.WriteString(" variadic")
	}
	if f.Pure {
		sb.WriteString(" pure")
	}
	sb.WriteString(")")
	return sb.String()
}

// ReturnLabel is the type of a function's continuation parameter: the
// types of the values it returns, or the non-returning marker.
type ReturnLabel struct {
	base
	Values   []Type
	NoReturn bool
}

func (r *ReturnLabel) Kind() Kind { return ReturnLabelKind }

func (r *ReturnLabel) String() string {
	if r.NoReturn {
		return "noreturn"
	}
	return listString("return", r.Values)
}

func listString(head string, ts []Type) string {
	parts := make([]string, 0, len(ts)+1)
	if head != "" {
		parts = append(parts, head)
	}
	for _, t := range ts {
		parts = append(parts, t.String())
	}
	return "(" + strings.Join(parts, " ") + ")"
}

func IsInteger(t Type) bool { return t.Kind() == IntegerKind }
func IsReal(t Type) bool { return t.Kind() == RealKind }

func IsBool(t Type) bool {
	i, ok := t.(*Integer)
	return ok && i.Width == 1
}

// IsMeta reports whether values of t exist only at compile time.
func IsMeta(t Type) bool {
	switch t.Kind() {
	case TypeKind, SymbolKind, ClosureKind, LabelKind, BuiltinKind, ReturnLabelKind:
		return true
	}
	return false
}

// StorageType strips named types down to their storage.
func StorageType(t Type) Type {
	for {
		n, ok := t.(*Named)
		if !ok || n.storage == nil {
			return t
		}
		t = n.storage
	}
}
