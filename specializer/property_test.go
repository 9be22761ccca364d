package specializer

import (
	"context"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/thiremani/cpsc/ir"
)

// foldConstant specializes main(ret) = bi(ret, x, y) and returns the value
// main returns.
func foldConstant(t *testing.T, bi ir.Builtin, x, y ir.Value) (ir.Value, error) {
	g := newGraph(t)
	main := g.fn("main", "ret")
	g.call(main, bi, g.p(main, "ret"), x, y)
	_, res, err := g.specialize(main)
	if err != nil {
		return nil, err
	}
	args := g.a.Label(res.Entry).Body.Args
	if len(args) != 2 {
		return nil, nil
	}
	return args[1], nil
}

func TestFoldedArithmeticMatchesGoProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	ops := map[ir.Builtin]func(x, y int32) int32{
		ir.BAdd:  func(x, y int32) int32 { return x + y },
		ir.BSub:  func(x, y int32) int32 { return x - y },
		ir.BMul:  func(x, y int32) int32 { return x * y },
		ir.BBAnd: func(x, y int32) int32 { return x & y },
		ir.BBOr:  func(x, y int32) int32 { return x | y },
		ir.BBXor: func(x, y int32) int32 { return x ^ y },
	}
	builtins := []any{ir.BAdd, ir.BSub, ir.BMul, ir.BBAnd, ir.BBOr, ir.BBXor}

	properties.Property("i32 arithmetic wraps like int32", prop.ForAll(
		func(bi ir.Builtin, x, y int32) bool {
			g := newGraph(t)
			v, err := foldConstant(t, bi, g.i32(int64(x)), g.i32(int64(y)))
			if err != nil {
				return false
			}
			got, ok := v.(ir.Int)
			return ok && int32(got.Signed()) == ops[bi](x, y) && got.Type.Width == 32
		},
		gen.OneConstOf(builtins...),
		gen.Int32(),
		gen.Int32(),
	))

	properties.Property("signed division truncates like int32", prop.ForAll(
		func(x, y int32) bool {
			if y == 0 || (x == -1<<31 && y == -1) {
				return true
			}
			g := newGraph(t)
			q, err := foldConstant(t, ir.BSDiv, g.i32(int64(x)), g.i32(int64(y)))
			if err != nil {
				return false
			}
			r, err := foldConstant(t, ir.BSRem, g.i32(int64(x)), g.i32(int64(y)))
			if err != nil {
				return false
			}
			return int32(q.(ir.Int).Signed()) == x/y && int32(r.(ir.Int).Signed()) == x%y
		},
		gen.Int32(),
		gen.Int32(),
	))

	properties.Property("signed comparison agrees with int32", prop.ForAll(
		func(x, y int32) bool {
			g := newGraph(t)
			v, err := foldConstant(t, ir.BICmpSLT, g.i32(int64(x)), g.i32(int64(y)))
			if err != nil {
				return false
			}
			return v.(ir.Int).Bool() == (x < y)
		},
		gen.Int32(),
		gen.Int32(),
	))

	properties.TestingRun(t)
}

func TestInstantiateIsMemoizedProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("equal keys share a frame, distinct keys do not", prop.ForAll(
		func(x, y int64) bool {
			g := newGraph(t)
			id := g.block("id", nil, "k", "v")
			g.body(id, g.p(id, "k"), none(), g.p(id, "v"))
			s := g.specializer(DefaultOptions())
			ctx := context.Background()
			root := g.a.Root()

			f1, err := s.instantiate(ctx, root, id, []ir.Value{none(), g.i32(x)}, id.Anchor)
			if err != nil {
				return false
			}
			f2, err := s.instantiate(ctx, root, id, []ir.Value{none(), g.i32(x)}, id.Anchor)
			if err != nil {
				return false
			}
			f3, err := s.instantiate(ctx, root, id, []ir.Value{none(), g.i32(y)}, id.Anchor)
			if err != nil {
				return false
			}
			same := f1.ID == f2.ID && f1.Instance == f2.Instance
			distinct := (f1.ID == f3.ID) == (int32(x) == int32(y))
			return same && distinct
		},
		gen.Int64Range(-1000, 1000),
		gen.Int64Range(-1000, 1000),
	))

	properties.TestingRun(t)
}
