package compiler

import (
	"fmt"

	"tinygo.org/x/go-llvm"

	"github.com/thiremani/cpsc/types"
)

// mapToLLVMType lowers a run-time type. Meta types have no representation
// and must be filtered out before lowering.
func (c *Compiler) mapToLLVMType(t types.Type) llvm.Type {
	if lt, ok := c.typeCache[t]; ok {
		return lt
	}
	lt := c.lowerType(t)
	c.typeCache[t] = lt
	return lt
}

func (c *Compiler) lowerType(t types.Type) llvm.Type {
	switch t := types.StorageType(t).(type) {
	case *types.Integer:
		if t.Width == 1 {
			return c.Context.Int1Type()
		}
		return c.Context.IntType(int(t.Width))
	case *types.Real:
		switch t.Width {
		case 32:
			return c.Context.FloatType()
		case 64:
			return c.Context.DoubleType()
		default:
			panic(fmt.Sprintf("unsupported float width: %d", t.Width))
		}
	case *types.Pointer:
		return llvm.PointerType(c.elemType(t.Elem), 0)
	case *types.Array:
		return llvm.ArrayType(c.mapToLLVMType(t.Elem), int(t.Count))
	case *types.Vector:
		return llvm.VectorType(c.mapToLLVMType(t.Elem), int(t.Count))
	case *types.Tuple:
		return c.Context.StructType(c.mapTypes(t.Fields), false)
	case *types.Union:
		// storage only: a byte array as large as the widest member, with an
		// alignment-sized lead field
		size, err := types.SizeOf(t)
		if err != nil {
			panic(err)
		}
		align, err := types.AlignOf(t)
		if err != nil {
			panic(err)
		}
		lead := c.Context.IntType(int(align * 8))
		rest := int(size - align)
		return c.Context.StructType([]llvm.Type{lead, llvm.ArrayType(c.Context.Int8Type(), rest)}, false)
	case *types.Function:
		return c.funcType(t)
	case *types.Named:
		// opaque named types only exist behind pointers
		st := c.Module.GetTypeByName(t.Name)
		if st.IsNil() {
			st = c.Context.StructCreateNamed(t.Name)
		}
		return st
	}
	panic("unknown type in mapToLLVMType: " + t.String())
}

// elemType lowers the pointee of a pointer. Functions and opaque types are
// allowed here even though they are not first class values.
func (c *Compiler) elemType(t types.Type) llvm.Type {
	if t.Kind() == types.NothingKind {
		return c.Context.Int8Type()
	}
	return c.mapToLLVMType(t)
}

func (c *Compiler) mapTypes(ts []types.Type) []llvm.Type {
	out := make([]llvm.Type, len(ts))
	for i, t := range ts {
		out[i] = c.mapToLLVMType(t)
	}
	return out
}

func (c *Compiler) funcType(f *types.Function) llvm.Type {
	ret := c.Context.VoidType()
	if f.Return.Kind() != types.NothingKind {
		ret = c.mapToLLVMType(f.Return)
	}
	return llvm.FunctionType(ret, c.mapTypes(f.Params), f.Variadic)
}

// returnType lowers the values a function passes to its continuation:
// nothing is void, one value is returned as is and several as a struct.
func (c *Compiler) returnType(rt *types.ReturnLabel) llvm.Type {
	switch {
	case rt.NoReturn || len(rt.Values) == 0:
		return c.Context.VoidType()
	case len(rt.Values) == 1:
		return c.mapToLLVMType(rt.Values[0])
	}
	return c.Context.StructType(c.mapTypes(rt.Values), false)
}

// lowerable reports the first type in ts that has no run-time form.
func lowerable(ts []types.Type) (types.Type, bool) {
	for _, t := range ts {
		if types.IsMeta(t) || t.Kind() == types.UnknownKind || t.Kind() == types.NothingKind {
			return t, false
		}
	}
	return nil, true
}
