// Package ffi executes foreign functions at compile time so that pure calls
// with constant arguments can be folded.
//
// Calls run in-process with no isolation: a foreign function that crashes or
// has side effects does so inside the compiler.
package ffi

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/thiremani/cpsc/ir"
	"github.com/thiremani/cpsc/types"
)

// ErrNotFound is returned when a bridge has no implementation for a symbol.
var ErrNotFound = errors.New("foreign symbol not found")

// Bridge calls a foreign function with constant arguments and returns its
// result, or ir.None for functions returning nothing.
type Bridge interface {
	Call(ctx context.Context, fn ir.Extern, args []ir.Value) (ir.Value, error)
}

// Func is a Go implementation of a foreign function.
type Func func(args []ir.Value) (ir.Value, error)

// Accept reports whether a Func implements a declared signature.
type Accept func(sig *types.Function) bool

// Registry is a Bridge backed by Go functions, keyed by symbol name.
type Registry struct {
	funcs   map[string]Func
	accepts map[string]Accept
}

func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]Func), accepts: make(map[string]Accept)}
}

func (r *Registry) Register(name string, fn Func) {
	r.funcs[name] = fn
	delete(r.accepts, name)
}

// RegisterFor registers fn only for externs whose signature passes accept.
// Other declarations of the same name are reported as ErrNotFound.
func (r *Registry) RegisterFor(name string, accept Accept, fn Func) {
	r.funcs[name] = fn
	r.accepts[name] = accept
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Call(ctx context.Context, fn ir.Extern, args []ir.Value) (ir.Value, error) {
	f, ok := r.funcs[fn.Name]
	if accept := r.accepts[fn.Name]; !ok || (accept != nil && !accept(fn.Sig)) {
		return nil, fmt.Errorf("%s: %w", fn.Name, ErrNotFound)
	}
	if err := checkArgs(fn, args); err != nil {
		return nil, err
	}
	return f(args)
}

// Chain tries each bridge in order until one knows the symbol.
type Chain []Bridge

func (c Chain) Call(ctx context.Context, fn ir.Extern, args []ir.Value) (ir.Value, error) {
	for _, b := range c {
		v, err := b.Call(ctx, fn, args)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		return v, err
	}
	return nil, fmt.Errorf("%s: %w", fn.Name, ErrNotFound)
}

func checkArgs(fn ir.Extern, args []ir.Value) error {
	params := fn.Sig.Params
	if len(args) < len(params) || (!fn.Sig.Variadic && len(args) != len(params)) {
		return fmt.Errorf("%s: expected %d arguments, got %d", fn.Name, len(params), len(args))
	}
	for i, arg := range args {
		if !ir.IsConstant(arg) {
			return fmt.Errorf("%s: argument #%d is not constant", fn.Name, i)
		}
	}
	return nil
}

// ToUint64 returns the raw bits of a scalar constant, sign extended for
// signed integers, as they would be passed in a register.
func ToUint64(v ir.Value) (uint64, bool) {
	switch v := v.(type) {
	case ir.Int:
		if v.Type.Signed {
			return uint64(v.Signed()), true
		}
		return v.Bits, true
	case ir.Pointer:
		return v.Addr, true
	case ir.None:
		return 0, true
	}
	return 0, false
}

// ToFloat64 returns the value of a real constant.
func ToFloat64(v ir.Value) (float64, bool) {
	r, ok := v.(ir.Real)
	if !ok {
		return 0, false
	}
	return r.Value, true
}

// FromUint64 builds a constant of scalar type t from register bits.
func FromUint64(t types.Type, bits uint64) (ir.Value, error) {
	switch t := types.StorageType(t).(type) {
	case *types.Integer:
		return ir.Int{Type: t, Bits: ir.Mask(bits, t.Width)}, nil
	case *types.Pointer:
		return ir.Pointer{Type: t, Addr: bits}, nil
	case *types.Real:
		if t.Width == 32 {
			return ir.Real{Type: t, Value: float64(math.Float32frombits(uint32(bits)))}, nil
		}
		return ir.Real{Type: t, Value: math.Float64frombits(bits)}, nil
	}
	return nil, fmt.Errorf("cannot pass %s in a register", t)
}
