package specializer

import (
	"math"
	"slices"

	"github.com/thiremani/cpsc/ir"
	"github.com/thiremani/cpsc/token"
	"github.com/thiremani/cpsc/types"
)

// evalBuiltin computes a builtin over constant operands already checked by
// typeBuiltin. Integer results wrap to the width of their type.
func (s *Specializer) evalBuiltin(bi ir.Builtin, at token.Anchor, rt types.Type, args []ir.Value) (ir.Value, error) {
	switch {
	case bi.IsIntArith():
		x, xok := args[0].(ir.Int)
		y, yok := args[1].(ir.Int)
		if !xok || !yok {
			return nil, token.NewError(at, "%s: cannot fold non-integer constants", bi)
		}
		return evalInt(bi, at, x, y)
	case bi.IsFloatArith():
		return evalReal(bi, args[0].(ir.Real), args[1].(ir.Real)), nil
	case bi.IsICmp():
		x, y, ok := intOperands(args[0], args[1])
		if !ok {
			return nil, token.NewError(at, "%s: cannot fold operands", bi)
		}
		return boolValue(s.types, compareInt(bi, x, y, args[0])), nil
	case bi.IsFCmp():
		return boolValue(s.types, compareReal(bi, args[0].(ir.Real).Value, args[1].(ir.Real).Value)), nil
	case bi.IsCast():
		return evalCast(bi, args[0], rt), nil
	}

	switch bi {
	case ir.BSelect:
		if args[0].(ir.Int).Bool() {
			return args[1], nil
		}
		return args[2], nil
	case ir.BExtractValue, ir.BInsertValue:
		agg, ok := args[0].(ir.Aggregate)
		if !ok {
			return nil, token.NewError(at, "%s: cannot fold a non-aggregate constant", bi)
		}
		i, err := indexArg(bi, at, args[len(args)-1])
		if err != nil {
			return nil, err
		}
		if i >= len(agg.Fields) {
			return nil, token.NewError(at, "%s: index %d out of range", bi, i)
		}
		if bi == ir.BExtractValue {
			return agg.Fields[i], nil
		}
		fields := slices.Clone(agg.Fields)
		fields[i] = args[1]
		return ir.Aggregate{Type: agg.Type, Fields: fields}, nil
	}
	panic("specializer: cannot fold " + bi.String())
}

func boolValue(tt *types.Table, b bool) ir.Int {
	if b {
		return ir.NewInt(tt.Bool, 1)
	}
	return ir.NewInt(tt.Bool, 0)
}

func evalInt(bi ir.Builtin, at token.Anchor, x, y ir.Int) (ir.Value, error) {
	t := x.Type
	w := t.Width
	a, b := x.Bits, y.Bits
	sa, sb := x.Signed(), y.Signed()
	var r uint64
	switch bi {
	case ir.BAdd:
		r = a + b
	case ir.BSub:
		r = a - b
	case ir.BMul:
		r = a * b
	case ir.BUDiv, ir.BSDiv, ir.BURem, ir.BSRem:
		if b == 0 {
			return nil, token.NewError(at, "division by zero")
		}
		switch bi {
		case ir.BUDiv:
			r = a / b
		case ir.BSDiv:
			r = uint64(sa / sb)
		case ir.BURem:
			r = a % b
		default:
			r = uint64(sa % sb)
		}
	case ir.BShl:
		if b < uint64(w) {
			r = a << b
		}
	case ir.BLShr:
		if b < uint64(w) {
			r = a >> b
		}
	case ir.BAShr:
		r = uint64(sa >> min(b, uint64(w)-1))
	case ir.BBAnd:
		r = a & b
	case ir.BBOr:
		r = a | b
	case ir.BBXor:
		r = a ^ b
	}
	return ir.Int{Type: t, Bits: ir.Mask(r, w)}, nil
}

// roundReal rounds v to the precision of t.
func roundReal(t *types.Real, v float64) ir.Real {
	if t.Width == 32 {
		v = float64(float32(v))
	}
	return ir.Real{Type: t, Value: v}
}

func evalReal(bi ir.Builtin, x, y ir.Real) ir.Value {
	a, b := x.Value, y.Value
	var r float64
	switch bi {
	case ir.BFAdd:
		r = a + b
	case ir.BFSub:
		r = a - b
	case ir.BFMul:
		r = a * b
	case ir.BFDiv:
		r = a / b
	case ir.BFRem:
		r = math.Mod(a, b)
	}
	return roundReal(x.Type, r)
}

func intOperands(x, y ir.Value) (uint64, uint64, bool) {
	switch x := x.(type) {
	case ir.Int:
		if y, ok := y.(ir.Int); ok {
			return x.Bits, y.Bits, true
		}
	case ir.Pointer:
		if y, ok := y.(ir.Pointer); ok {
			return x.Addr, y.Addr, true
		}
	}
	return 0, 0, false
}

func compareInt(bi ir.Builtin, a, b uint64, operand ir.Value) bool {
	var sa, sb int64
	if i, ok := operand.(ir.Int); ok {
		sa, sb = ir.SignExtend(a, i.Type.Width), ir.SignExtend(b, i.Type.Width)
	} else {
		sa, sb = int64(a), int64(b)
	}
	switch bi {
	case ir.BICmpEQ:
		return a == b
	case ir.BICmpNE:
		return a != b
	case ir.BICmpSLT:
		return sa < sb
	case ir.BICmpSLE:
		return sa <= sb
	case ir.BICmpSGT:
		return sa > sb
	case ir.BICmpSGE:
		return sa >= sb
	case ir.BICmpULT:
		return a < b
	case ir.BICmpULE:
		return a <= b
	case ir.BICmpUGT:
		return a > b
	case ir.BICmpUGE:
		return a >= b
	}
	return false
}

// compareReal implements ordered comparisons: any NaN operand is false.
func compareReal(bi ir.Builtin, a, b float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return false
	}
	switch bi {
	case ir.BFCmpOEQ:
		return a == b
	case ir.BFCmpONE:
		return a != b
	case ir.BFCmpOLT:
		return a < b
	case ir.BFCmpOLE:
		return a <= b
	case ir.BFCmpOGT:
		return a > b
	case ir.BFCmpOGE:
		return a >= b
	}
	return false
}

func evalCast(bi ir.Builtin, v ir.Value, to types.Type) ir.Value {
	st := types.StorageType(to)
	switch bi {
	case ir.BTrunc, ir.BZExt:
		ti := st.(*types.Integer)
		return ir.Int{Type: ti, Bits: ir.Mask(v.(ir.Int).Bits, ti.Width)}
	case ir.BSExt:
		ti := st.(*types.Integer)
		return ir.Int{Type: ti, Bits: ir.Mask(uint64(v.(ir.Int).Signed()), ti.Width)}
	case ir.BFPTrunc, ir.BFPExt:
		return roundReal(st.(*types.Real), v.(ir.Real).Value)
	case ir.BFPToSI:
		return ir.NewInt(st.(*types.Integer), int64(v.(ir.Real).Value))
	case ir.BFPToUI:
		ti := st.(*types.Integer)
		return ir.Int{Type: ti, Bits: ir.Mask(uint64(v.(ir.Real).Value), ti.Width)}
	case ir.BSIToFP:
		return roundReal(st.(*types.Real), float64(v.(ir.Int).Signed()))
	case ir.BUIToFP:
		return roundReal(st.(*types.Real), float64(v.(ir.Int).Bits))
	}
	panic("specializer: not a conversion " + bi.String())
}
