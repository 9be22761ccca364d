package types

import (
	"fmt"
	"strconv"
	"strings"
)

type elemCount struct {
	elem  uint32
	count uint64
}

type intKey struct {
	width  uint32
	signed bool
}

// Table owns every type of one compilation and interns structural types,
// so that structurally equal types are pointer-equal.
type Table struct {
	next uint32

	Unknown  *Basic
	Nothing  *Basic
	TypeT    *Basic
	SymbolT  *Basic
	ClosureT *Basic
	LabelT   *Basic
	BuiltinT *Basic

	Bool *Integer
	I8   *Integer
	I16  *Integer
	I32  *Integer
	I64  *Integer
	U8   *Integer
	U16  *Integer
	U32  *Integer
	U64  *Integer
	F32  *Real
	F64  *Real

	NoReturn *ReturnLabel

	ints     map[intKey]*Integer
	reals    map[uint32]*Real
	pointers map[uint32]*Pointer
	arrays   map[elemCount]*Array
	vectors  map[elemCount]*Vector
	tuples   map[string]*Tuple
	unions   map[string]*Union
	funcs    map[string]*Function
	returns  map[string]*ReturnLabel
	named    map[string]*Named
}

func NewTable() *Table {
	t := &Table{
		ints:     make(map[intKey]*Integer),
		reals:    make(map[uint32]*Real),
		pointers: make(map[uint32]*Pointer),
		arrays:   make(map[elemCount]*Array),
		vectors:  make(map[elemCount]*Vector),
		tuples:   make(map[string]*Tuple),
		unions:   make(map[string]*Union),
		funcs:    make(map[string]*Function),
		returns:  make(map[string]*ReturnLabel),
		named:    make(map[string]*Named),
	}
	t.Unknown = t.basic(UnknownKind, "Unknown")
	t.Nothing = t.basic(NothingKind, "Nothing")
	t.TypeT = t.basic(TypeKind, "type")
	t.SymbolT = t.basic(SymbolKind, "Symbol")
	t.ClosureT = t.basic(ClosureKind, "Closure")
	t.LabelT = t.basic(LabelKind, "Label")
	t.BuiltinT = t.basic(BuiltinKind, "Builtin")

	t.Bool = t.Int(1, false)
	t.I8 = t.Int(8, true)
	t.I16 = t.Int(16, true)
	t.I32 = t.Int(32, true)
	t.I64 = t.Int(64, true)
	t.U8 = t.Int(8, false)
	t.U16 = t.Int(16, false)
	t.U32 = t.Int(32, false)
	t.U64 = t.Int(64, false)
	t.F32 = t.Real(32)
	t.F64 = t.Real(64)

	t.NoReturn = &ReturnLabel{base: t.newBase(), NoReturn: true}
	return t
}

func (t *Table) newBase() base {
	t.next++
	return base{uid: t.next}
}

func (t *Table) basic(k Kind, name string) *Basic {
	return &Basic{base: t.newBase(), kind: k, name: name}
}

func (t *Table) Int(width uint32, signed bool) *Integer {
	if width == 1 {
		signed = false
	}
	k := intKey{width, signed}
	if i, ok := t.ints[k]; ok {
		return i
	}
	i := &Integer{base: t.newBase(), Width: width, Signed: signed}
	t.ints[k] = i
	return i
}

func (t *Table) Real(width uint32) *Real {
	if r, ok := t.reals[width]; ok {
		return r
	}
	r := &Real{base: t.newBase(), Width: width}
	t.reals[width] = r
	return r
}

func (t *Table) Pointer(elem Type) *Pointer {
	if p, ok := t.pointers[elem.id()]; ok {
		return p
	}
	p := &Pointer{base: t.newBase(), Elem: elem}
	t.pointers[elem.id()] = p
	return p
}

func (t *Table) Array(elem Type, count uint64) *Array {
	k := elemCount{elem.id(), count}
	if a, ok := t.arrays[k]; ok {
		return a
	}
	a := &Array{base: t.newBase(), Elem: elem, Count: count}
	t.arrays[k] = a
	return a
}

func (t *Table) Vector(elem Type, count uint64) *Vector {
	k := elemCount{elem.id(), count}
	if v, ok := t.vectors[k]; ok {
		return v
	}
	v := &Vector{base: t.newBase(), Elem: elem, Count: count}
	t.vectors[k] = v
	return v
}

func (t *Table) Tuple(fields ...Type) *Tuple {
	k := listKey(fields)
	if tu, ok := t.tuples[k]; ok {
		return tu
	}
	tu := &Tuple{base: t.newBase(), Fields: append([]Type(nil), fields...)}
	t.tuples[k] = tu
	return tu
}

func (t *Table) Union(fields ...Type) *Union {
	k := listKey(fields)
	if u, ok := t.unions[k]; ok {
		return u
	}
	u := &Union{base: t.newBase(), Fields: append([]Type(nil), fields...)}
	t.unions[k] = u
	return u
}

func (t *Table) Function(ret Type, params []Type, variadic, pure bool) *Function {
	k := fmt.Sprintf("%d|%s|%t|%t", ret.id(), listKey(params), variadic, pure)
	if f, ok := t.funcs[k]; ok {
		return f
	}
	f := &Function{
		base:     t.newBase(),
		Return:   ret,
		Params:   append([]Type(nil), params...),
		Variadic: variadic,
		Pure:     pure,
	}
	t.funcs[k] = f
	return f
}

// ReturnLabel interns the continuation type returning values.
func (t *Table) ReturnLabel(values ...Type) *ReturnLabel {
	k := listKey(values)
	if r, ok := t.returns[k]; ok {
		return r
	}
	r := &ReturnLabel{base: t.newBase(), Values: append([]Type(nil), values...)}
	t.returns[k] = r
	return r
}

// Named returns the nominal type called name, creating it opaque.
func (t *Table) Named(name string) *Named {
	if n, ok := t.named[name]; ok {
		return n
	}
	n := &Named{base: t.newBase(), Name: name}
	t.named[name] = n
	return n
}

// Finalize sets the storage of an opaque named type. It may be called once.
func (t *Table) Finalize(n *Named, storage Type) error {
	if n.storage != nil {
		return fmt.Errorf("type %s is already finalized with storage %s", n.Name, n.storage)
	}
	if storage == n {
		return fmt.Errorf("type %s cannot be its own storage", n.Name)
	}
	n.storage = storage
	return nil
}

func listKey(ts []Type) string {
	var sb strings.Builder
	for i, t := range ts {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatUint(uint64(t.id()), 10))
	}
	return sb.String()
}

// Key is a stable identity string for t within its Table, for use in
// memoization keys.
func Key(t Type) string {
	return strconv.FormatUint(uint64(t.id()), 10)
}
