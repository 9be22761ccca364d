package specializer

import (
	"context"
	"errors"
	"math"
	"strings"

	"goa.design/clue/log"

	"github.com/thiremani/cpsc/ffi"
	"github.com/thiremani/cpsc/ir"
	"github.com/thiremani/cpsc/token"
	"github.com/thiremani/cpsc/types"
)

// alwaysFolds reports builtins that are evaluated at compile time whatever
// their arguments.
func alwaysFolds(b ir.Builtin) bool {
	switch b {
	case ir.BTypeOf, ir.BSizeOf, ir.BAlignOf, ir.BIsConstant, ir.BVACountOf, ir.BVAAt,
		ir.BTupleType, ir.BPointerType, ir.BDump, ir.BCompilerError:
		return true
	}
	return false
}

// neverFolds reports builtins that always remain run-time instructions.
func neverFolds(b ir.Builtin) bool {
	switch b {
	case ir.BLoad, ir.BStore, ir.BAlloca, ir.BMalloc, ir.BBitcast, ir.BUnconst,
		ir.BUndef, ir.BUnreachable, ir.BBranch:
		return true
	}
	return false
}

// foldBuiltin folds or types a call of builtin bi in l. It reports again
// when the body was rewritten and must be folded once more.
func (s *Specializer) foldBuiltin(ctx context.Context, l *ir.Label, bi ir.Builtin) (*types.ReturnLabel, bool, error) {
	b := &l.Body
	var args []ir.Value
	if len(b.Args) > 1 {
		args = b.Args[1:]
	}
	switch {
	case alwaysFolds(bi):
		vals, err := s.foldMeta(ctx, bi, b.Anchor, args)
		if err != nil {
			return nil, false, err
		}
		s.replaceWithReturn(ctx, l, vals...)
		return nil, true, nil
	case bi == ir.BBranch:
		again, err := s.foldBranch(ctx, l)
		return nil, again, err
	case bi == ir.BUnreachable:
		b.SetCont(ir.None{})
		return nil, false, nil
	}

	rt, err := s.typeBuiltin(bi, b.Anchor, args)
	if err != nil {
		return nil, false, err
	}
	if neverFolds(bi) || !allConstant(args) {
		return rt, false, nil
	}
	v, err := s.evalBuiltin(bi, b.Anchor, rt.Values[0], args)
	if err != nil {
		return nil, false, err
	}
	s.replaceWithReturn(ctx, l, v)
	return nil, true, nil
}

func expectArgs(bi ir.Builtin, at token.Anchor, args []ir.Value, n int) error {
	if len(args) != n {
		return token.NewError(at, "%s expects %d arguments, got %d", bi, n, len(args))
	}
	return nil
}

func typeArg(bi ir.Builtin, at token.Anchor, v ir.Value) (types.Type, error) {
	tv, ok := v.(ir.TypeValue)
	if !ok {
		return nil, token.NewError(at, "%s expects a type argument", bi)
	}
	return tv.T, nil
}

func indexArg(bi ir.Builtin, at token.Anchor, v ir.Value) (int, error) {
	i, ok := v.(ir.Int)
	if !ok {
		return 0, token.NewError(at, "%s expects a constant integer index", bi)
	}
	if i.Type.Signed && i.Signed() < 0 {
		return 0, token.NewError(at, "%s: negative index %d", bi, i.Signed())
	}
	if i.Bits > math.MaxInt {
		return 0, token.NewError(at, "%s: index %d out of range", bi, i.Bits)
	}
	return int(i.Bits), nil
}

// foldMeta evaluates a compile-time query.
func (s *Specializer) foldMeta(ctx context.Context, bi ir.Builtin, at token.Anchor, args []ir.Value) ([]ir.Value, error) {
	a := s.arena
	tt := s.types
	switch bi {
	case ir.BTypeOf:
		if err := expectArgs(bi, at, args, 1); err != nil {
			return nil, err
		}
		return []ir.Value{ir.TypeValue{T: a.TypeOf(args[0])}}, nil
	case ir.BSizeOf, ir.BAlignOf:
		if err := expectArgs(bi, at, args, 1); err != nil {
			return nil, err
		}
		t, err := typeArg(bi, at, args[0])
		if err != nil {
			return nil, err
		}
		var n uint64
		if bi == ir.BSizeOf {
			n, err = types.SizeOf(t)
		} else {
			n, err = types.AlignOf(t)
		}
		if err != nil {
			return nil, token.NewError(at, "%s: %v", bi, err)
		}
		return []ir.Value{ir.Int{Type: tt.U64, Bits: n}}, nil
	case ir.BIsConstant:
		if err := expectArgs(bi, at, args, 1); err != nil {
			return nil, err
		}
		var bit int64
		if ir.IsConstant(args[0]) {
			bit = 1
		}
		return []ir.Value{ir.NewInt(tt.Bool, bit)}, nil
	case ir.BVACountOf:
		return []ir.Value{ir.NewInt(tt.I32, int64(len(args)))}, nil
	case ir.BVAAt:
		if len(args) == 0 {
			return nil, token.NewError(at, "%s expects an index", bi)
		}
		i, err := indexArg(bi, at, args[0])
		if err != nil {
			return nil, err
		}
		if i >= len(args)-1 {
			return nil, token.NewError(at, "%s: index %d out of range for %d values", bi, i, len(args)-1)
		}
		return []ir.Value{args[1+i]}, nil
	case ir.BTupleType:
		fields := make([]types.Type, 0, len(args))
		for _, v := range args {
			t, err := typeArg(bi, at, v)
			if err != nil {
				return nil, err
			}
			fields = append(fields, t)
		}
		return []ir.Value{ir.TypeValue{T: tt.Tuple(fields...)}}, nil
	case ir.BPointerType:
		if err := expectArgs(bi, at, args, 1); err != nil {
			return nil, err
		}
		t, err := typeArg(bi, at, args[0])
		if err != nil {
			return nil, err
		}
		return []ir.Value{ir.TypeValue{T: tt.Pointer(t)}}, nil
	case ir.BDump:
		parts := make([]string, len(args))
		for i, v := range args {
			parts[i] = a.FormatValue(v)
		}
		log.Printf(ctx, "%s: dump: %s", at, strings.Join(parts, " "))
		return args, nil
	case ir.BCompilerError:
		if err := expectArgs(bi, at, args, 1); err != nil {
			return nil, err
		}
		msg, ok := args[0].(ir.SymbolValue)
		if !ok {
			return nil, token.NewError(at, "%s expects a message", bi)
		}
		return nil, token.NewError(at, "%s", a.Symbols.Name(msg.Sym))
	}
	panic("specializer: " + bi.String() + " is not a compile-time builtin")
}

// sameOperands checks a binary operation and returns its operand type.
func (s *Specializer) sameOperands(bi ir.Builtin, at token.Anchor, args []ir.Value, ok func(types.Type) bool, what string) (types.Type, error) {
	if err := expectArgs(bi, at, args, 2); err != nil {
		return nil, err
	}
	x, y := s.arena.TypeOf(args[0]), s.arena.TypeOf(args[1])
	if x != y {
		return nil, token.NewError(at, "%s: operands must have the same type, got %s and %s", bi, x, y)
	}
	if !ok(types.StorageType(x)) {
		return nil, token.NewError(at, "%s expects %s operands, got %s", bi, what, x)
	}
	return x, nil
}

func isIntOrPointer(t types.Type) bool {
	return types.IsInteger(t) || t.Kind() == types.PointerKind
}

// typeBuiltin returns the result type of a run-time builtin, checking its
// operands.
func (s *Specializer) typeBuiltin(bi ir.Builtin, at token.Anchor, args []ir.Value) (*types.ReturnLabel, error) {
	a := s.arena
	tt := s.types
	switch {
	case bi.IsIntArith():
		t, err := s.sameOperands(bi, at, args, types.IsInteger, "integer")
		if err != nil {
			return nil, err
		}
		return tt.ReturnLabel(t), nil
	case bi.IsFloatArith():
		t, err := s.sameOperands(bi, at, args, types.IsReal, "real")
		if err != nil {
			return nil, err
		}
		return tt.ReturnLabel(t), nil
	case bi.IsICmp():
		if _, err := s.sameOperands(bi, at, args, isIntOrPointer, "integer"); err != nil {
			return nil, err
		}
		return tt.ReturnLabel(tt.Bool), nil
	case bi.IsFCmp():
		if _, err := s.sameOperands(bi, at, args, types.IsReal, "real"); err != nil {
			return nil, err
		}
		return tt.ReturnLabel(tt.Bool), nil
	case bi.IsCast():
		t, err := s.castType(bi, at, args)
		if err != nil {
			return nil, err
		}
		return tt.ReturnLabel(t), nil
	}

	switch bi {
	case ir.BLoad:
		if err := expectArgs(bi, at, args, 1); err != nil {
			return nil, err
		}
		p, ok := types.StorageType(a.TypeOf(args[0])).(*types.Pointer)
		if !ok {
			return nil, token.NewError(at, "%s expects a pointer, got %s", bi, a.TypeOf(args[0]))
		}
		return tt.ReturnLabel(p.Elem), nil
	case ir.BStore:
		if err := expectArgs(bi, at, args, 2); err != nil {
			return nil, err
		}
		p, ok := types.StorageType(a.TypeOf(args[1])).(*types.Pointer)
		if !ok {
			return nil, token.NewError(at, "%s expects a pointer, got %s", bi, a.TypeOf(args[1]))
		}
		if v := a.TypeOf(args[0]); v != p.Elem {
			return nil, token.NewError(at, "%s: cannot store %s through %s", bi, v, p)
		}
		return tt.ReturnLabel(), nil
	case ir.BAlloca, ir.BMalloc:
		if err := expectArgs(bi, at, args, 1); err != nil {
			return nil, err
		}
		t, err := typeArg(bi, at, args[0])
		if err != nil {
			return nil, err
		}
		if _, err := types.SizeOf(t); err != nil {
			return nil, token.NewError(at, "%s: %v", bi, err)
		}
		return tt.ReturnLabel(tt.Pointer(t)), nil
	case ir.BBitcast:
		if err := expectArgs(bi, at, args, 2); err != nil {
			return nil, err
		}
		to, err := typeArg(bi, at, args[1])
		if err != nil {
			return nil, err
		}
		from := a.TypeOf(args[0])
		fs, err1 := types.SizeOf(from)
		ts, err2 := types.SizeOf(to)
		if err := errors.Join(err1, err2); err != nil {
			return nil, token.NewError(at, "%s: %v", bi, err)
		}
		if fs != ts {
			return nil, token.NewError(at, "%s: cannot cast %s to %s of different size", bi, from, to)
		}
		return tt.ReturnLabel(to), nil
	case ir.BUnconst:
		if err := expectArgs(bi, at, args, 1); err != nil {
			return nil, err
		}
		t := a.TypeOf(args[0])
		if types.IsMeta(t) {
			return nil, token.NewError(at, "%s: values of type %s only exist at compile time", bi, t)
		}
		return tt.ReturnLabel(t), nil
	case ir.BUndef:
		if err := expectArgs(bi, at, args, 1); err != nil {
			return nil, err
		}
		t, err := typeArg(bi, at, args[0])
		if err != nil {
			return nil, err
		}
		return tt.ReturnLabel(t), nil
	case ir.BSelect:
		if err := expectArgs(bi, at, args, 3); err != nil {
			return nil, err
		}
		if c := a.TypeOf(args[0]); !types.IsBool(c) {
			return nil, token.NewError(at, "%s condition must be of type bool, got %s", bi, c)
		}
		x, y := a.TypeOf(args[1]), a.TypeOf(args[2])
		if x != y {
			return nil, token.NewError(at, "%s: operands must have the same type, got %s and %s", bi, x, y)
		}
		return tt.ReturnLabel(x), nil
	case ir.BExtractValue:
		if err := expectArgs(bi, at, args, 2); err != nil {
			return nil, err
		}
		f, err := s.fieldType(bi, at, args[0], args[1])
		if err != nil {
			return nil, err
		}
		return tt.ReturnLabel(f), nil
	case ir.BInsertValue:
		if err := expectArgs(bi, at, args, 3); err != nil {
			return nil, err
		}
		f, err := s.fieldType(bi, at, args[0], args[2])
		if err != nil {
			return nil, err
		}
		if v := a.TypeOf(args[1]); v != f {
			return nil, token.NewError(at, "%s: cannot insert %s into field of type %s", bi, v, f)
		}
		return tt.ReturnLabel(a.TypeOf(args[0])), nil
	}
	panic("specializer: no typing rule for " + bi.String())
}

func (s *Specializer) fieldType(bi ir.Builtin, at token.Anchor, agg, index ir.Value) (types.Type, error) {
	i, err := indexArg(bi, at, index)
	if err != nil {
		return nil, err
	}
	t := s.arena.TypeOf(agg)
	switch st := types.StorageType(t).(type) {
	case *types.Tuple:
		if i < len(st.Fields) {
			return st.Fields[i], nil
		}
	case *types.Array:
		if uint64(i) < st.Count {
			return st.Elem, nil
		}
	case *types.Vector:
		if uint64(i) < st.Count {
			return st.Elem, nil
		}
	default:
		return nil, token.NewError(at, "%s expects an aggregate, got %s", bi, t)
	}
	return nil, token.NewError(at, "%s: index %d out of range for %s", bi, i, t)
}

// castType checks a conversion (value, type) and returns the target type.
func (s *Specializer) castType(bi ir.Builtin, at token.Anchor, args []ir.Value) (types.Type, error) {
	if err := expectArgs(bi, at, args, 2); err != nil {
		return nil, err
	}
	to, err := typeArg(bi, at, args[1])
	if err != nil {
		return nil, err
	}
	from := s.arena.TypeOf(args[0])
	fi, fromInt := types.StorageType(from).(*types.Integer)
	ti, toInt := types.StorageType(to).(*types.Integer)
	fr, fromReal := types.StorageType(from).(*types.Real)
	tr, toReal := types.StorageType(to).(*types.Real)

	ok := false
	switch bi {
	case ir.BTrunc:
		ok = fromInt && toInt && ti.Width < fi.Width
	case ir.BZExt, ir.BSExt:
		ok = fromInt && toInt && ti.Width > fi.Width
	case ir.BFPTrunc:
		ok = fromReal && toReal && tr.Width < fr.Width
	case ir.BFPExt:
		ok = fromReal && toReal && tr.Width > fr.Width
	case ir.BFPToSI, ir.BFPToUI:
		ok = fromReal && toInt
	case ir.BSIToFP, ir.BUIToFP:
		ok = fromInt && toReal
	}
	if !ok {
		return nil, token.NewError(at, "%s: cannot convert %s to %s", bi, from, to)
	}
	return to, nil
}

// foldExtern calls a pure foreign function with constant arguments through
// the bridge. Anything else stays a run-time call typed by the signature.
func (s *Specializer) foldExtern(ctx context.Context, l *ir.Label, fn ir.Extern) (*types.ReturnLabel, bool, error) {
	a := s.arena
	b := &l.Body
	var args []ir.Value
	if len(b.Args) > 1 {
		args = b.Args[1:]
	}
	sig := fn.Sig
	if len(args) < len(sig.Params) || (!sig.Variadic && len(args) > len(sig.Params)) {
		return nil, false, token.NewError(b.Anchor, "%s expects %d arguments, got %d", fn.Name, len(sig.Params), len(args))
	}
	for i, p := range sig.Params {
		if t := a.TypeOf(args[i]); t != p {
			return nil, false, token.NewError(b.Anchor, "argument #%d of %s has type %s, expected %s", i+1, fn.Name, t, p)
		}
	}

	if sig.Pure && s.opts.Bridge != nil && allConstant(args) {
		v, err := s.opts.Bridge.Call(ctx, fn, args)
		switch {
		case errors.Is(err, ffi.ErrNotFound):
			log.Debugf(ctx, "no compile-time implementation of %s", fn.Name)
		case err != nil:
			return nil, false, token.NewError(b.Anchor, "foreign call to %s failed: %v", fn.Name, err)
		default:
			if err := checkResult(a, b.Anchor, fn, v); err != nil {
				return nil, false, err
			}
			log.Debugf(ctx, "folded foreign call %s = %s", fn.Name, a.FormatValue(v))
			if ir.IsNone(v) {
				s.replaceWithReturn(ctx, l)
			} else {
				s.replaceWithReturn(ctx, l, v)
			}
			return nil, true, nil
		}
	}

	if sig.Return.Kind() == types.NothingKind {
		return s.types.ReturnLabel(), false, nil
	}
	return s.types.ReturnLabel(sig.Return), false, nil
}

// checkResult rejects a bridge result that does not match the declared
// return type.
func checkResult(a *ir.Arena, at token.Anchor, fn ir.Extern, v ir.Value) error {
	want := fn.Sig.Return
	none := v == nil || ir.IsNone(v)
	switch {
	case want.Kind() == types.NothingKind && !none:
		return token.NewError(at, "foreign call to %s returned %s, expected nothing", fn.Name, a.TypeOf(v))
	case want.Kind() == types.NothingKind:
		return nil
	case none:
		return token.NewError(at, "foreign call to %s returned nothing, expected %s", fn.Name, want)
	}
	if got := a.TypeOf(v); got != want {
		return token.NewError(at, "foreign call to %s returned %s, expected %s", fn.Name, got, want)
	}
	return nil
}
