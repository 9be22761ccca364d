package ffi

import (
	"fmt"
	"math"

	"github.com/thiremani/cpsc/ir"
	"github.com/thiremani/cpsc/types"
)

// Math returns a registry of the double precision libm functions, evaluated
// with the Go math package. It needs no shared library and behaves the same
// on every platform.
func Math() *Registry {
	r := NewRegistry()
	unary := map[string]func(float64) float64{
		"sqrt":  math.Sqrt,
		"sin":   math.Sin,
		"cos":   math.Cos,
		"tan":   math.Tan,
		"exp":   math.Exp,
		"log":   math.Log,
		"fabs":  math.Abs,
		"floor": math.Floor,
		"ceil":  math.Ceil,
		"trunc": math.Trunc,
	}
	for name, f := range unary {
		r.RegisterFor(name, doubles(1), func(args []ir.Value) (ir.Value, error) {
			x, err := realArgs(name, args)
			if err != nil {
				return nil, err
			}
			return ir.Real{Type: args[0].(ir.Real).Type, Value: f(x[0])}, nil
		})
	}
	binary := map[string]func(float64, float64) float64{
		"pow":  math.Pow,
		"fmod": math.Mod,
		"fmin": math.Min,
		"fmax": math.Max,
	}
	for name, f := range binary {
		r.RegisterFor(name, doubles(2), func(args []ir.Value) (ir.Value, error) {
			x, err := realArgs(name, args)
			if err != nil {
				return nil, err
			}
			return ir.Real{Type: args[0].(ir.Real).Type, Value: f(x[0], x[1])}, nil
		})
	}
	return r
}

// doubles accepts the fixed signature (fn f64 (f64...)) with n parameters.
func doubles(n int) Accept {
	isF64 := func(t types.Type) bool {
		r, ok := t.(*types.Real)
		return ok && r.Width == 64
	}
	return func(sig *types.Function) bool {
		if sig == nil || sig.Variadic || len(sig.Params) != n || !isF64(sig.Return) {
			return false
		}
		for _, p := range sig.Params {
			if !isF64(p) {
				return false
			}
		}
		return true
	}
}

// realArgs unpacks f64 arguments. The single precision variants have their
// own names in libm and are not registered.
func realArgs(name string, args []ir.Value) ([]float64, error) {
	out := make([]float64, len(args))
	for i, arg := range args {
		r, ok := arg.(ir.Real)
		if !ok || r.Type.Width != 64 {
			return nil, fmt.Errorf("%s: argument #%d must be f64", name, i)
		}
		out[i] = r.Value
	}
	return out, nil
}
