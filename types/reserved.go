package types

var reservedTypeNames = []string{
	"bool",
	"i1",
	"i8",
	"i16",
	"i32",
	"i64",
	"u8",
	"u16",
	"u32",
	"u64",
	"f32",
	"f64",
	"type",
	"Nothing",
	"Symbol",
	"Closure",
	"Label",
	"Builtin",
	"noreturn",
}

// type constructors used in (ptr T), (array T N), ...
var reservedTypeHeads = []string{
	"ptr",
	"array",
	"vector",
	"tuple",
	"union",
	"fn",
	"return",
}

var reservedTypeSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(reservedTypeNames)+len(reservedTypeHeads))
	for _, t := range reservedTypeNames {
		m[t] = struct{}{}
	}
	for _, t := range reservedTypeHeads {
		m[t] = struct{}{}
	}
	return m
}()

// ReservedTypeNames returns a copy of source-level reserved type names.
func ReservedTypeNames() []string {
	return append([]string(nil), reservedTypeNames...)
}

// IsReservedTypeName reports whether name is reserved for built-in types or
// type constructors.
func IsReservedTypeName(name string) bool {
	_, ok := reservedTypeSet[name]
	return ok
}

// Lookup resolves a reserved scalar or meta type name.
func (t *Table) Lookup(name string) (Type, bool) {
	switch name {
	case "bool", "i1":
		return t.Bool, true
	case "i8":
		return t.I8, true
	case "i16":
		return t.I16, true
	case "i32":
		return t.I32, true
	case "i64":
		return t.I64, true
	case "u8":
		return t.U8, true
	case "u16":
		return t.U16, true
	case "u32":
		return t.U32, true
	case "u64":
		return t.U64, true
	case "f32":
		return t.F32, true
	case "f64":
		return t.F64, true
	case "type":
		return t.TypeT, true
	case "Nothing":
		return t.Nothing, true
	case "Symbol":
		return t.SymbolT, true
	case "Closure":
		return t.ClosureT, true
	case "Label":
		return t.LabelT, true
	case "Builtin":
		return t.BuiltinT, true
	case "noreturn":
		return t.NoReturn, true
	}
	return nil, false
}
