//go:build darwin || linux || freebsd

package ffi

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/ebitengine/purego"
	"goa.design/clue/log"

	"github.com/thiremani/cpsc/ir"
	"github.com/thiremani/cpsc/types"
)

// Dynamic is a Bridge that resolves symbols in shared libraries and calls
// them directly.
type Dynamic struct {
	handles []uintptr
	syms    map[string]uintptr
}

// OpenDynamic loads libs in order. Symbols are looked up in the first
// library that defines them.
func OpenDynamic(libs ...string) (*Dynamic, error) {
	d := &Dynamic{syms: make(map[string]uintptr)}
	for _, lib := range libs {
		h, err := purego.Dlopen(lib, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("open %s: %w", lib, err)
		}
		d.handles = append(d.handles, h)
	}
	return d, nil
}

func (d *Dynamic) Close() error {
	var errs []error
	for _, h := range d.handles {
		if err := purego.Dlclose(h); err != nil {
			errs = append(errs, err)
		}
	}
	d.handles = nil
	return errors.Join(errs...)
}

func (d *Dynamic) lookup(name string) (uintptr, error) {
	if sym, ok := d.syms[name]; ok {
		return sym, nil
	}
	for _, h := range d.handles {
		if sym, err := purego.Dlsym(h, name); err == nil && sym != 0 {
			d.syms[name] = sym
			return sym, nil
		}
	}
	return 0, fmt.Errorf("%s: %w", name, ErrNotFound)
}

func (d *Dynamic) Call(ctx context.Context, fn ir.Extern, args []ir.Value) (ir.Value, error) {
	sym, err := d.lookup(fn.Name)
	if err != nil {
		return nil, err
	}
	if err := checkArgs(fn, args); err != nil {
		return nil, err
	}
	if fn.Sig.Variadic {
		return nil, fmt.Errorf("%s: variadic foreign calls are not supported at compile time", fn.Name)
	}

	in := make([]reflect.Type, len(fn.Sig.Params))
	vals := make([]reflect.Value, len(fn.Sig.Params))
	for i, pt := range fn.Sig.Params {
		gt, err := goType(pt)
		if err != nil {
			return nil, fmt.Errorf("%s: argument #%d: %w", fn.Name, i, err)
		}
		in[i] = gt
		vals[i], err = toReflect(args[i], gt)
		if err != nil {
			return nil, fmt.Errorf("%s: argument #%d: %w", fn.Name, i, err)
		}
	}
	var out []reflect.Type
	ret := fn.Sig.Return
	if ret.Kind() != types.NothingKind {
		gt, err := goType(ret)
		if err != nil {
			return nil, fmt.Errorf("%s: result: %w", fn.Name, err)
		}
		out = []reflect.Type{gt}
	}

	fptr := reflect.New(reflect.FuncOf(in, out, false))
	purego.RegisterFunc(fptr.Interface(), sym)
	log.Debugf(ctx, "ffi: calling %s%s", fn.Name, fn.Sig)
	res := fptr.Elem().Call(vals)
	if len(res) == 0 {
		return ir.None{}, nil
	}
	return fromReflect(ret, res[0])
}

// goType maps a scalar type to the Go type purego marshals the same way.
func goType(t types.Type) (reflect.Type, error) {
	classes, err := types.Classify(t)
	if err != nil {
		return nil, err
	}
	if len(classes) != 1 || classes[0] == types.MemoryClass {
		return nil, fmt.Errorf("aggregate %s cannot be passed at compile time", t)
	}
	switch t := types.StorageType(t).(type) {
	case *types.Integer:
		switch {
		case t.Width == 1:
			return reflect.TypeFor[bool](), nil
		case t.Width <= 8 && t.Signed:
			return reflect.TypeFor[int8](), nil
		case t.Width <= 8:
			return reflect.TypeFor[uint8](), nil
		case t.Width <= 16 && t.Signed:
			return reflect.TypeFor[int16](), nil
		case t.Width <= 16:
			return reflect.TypeFor[uint16](), nil
		case t.Width <= 32 && t.Signed:
			return reflect.TypeFor[int32](), nil
		case t.Width <= 32:
			return reflect.TypeFor[uint32](), nil
		case t.Signed:
			return reflect.TypeFor[int64](), nil
		default:
			return reflect.TypeFor[uint64](), nil
		}
	case *types.Real:
		if t.Width == 32 {
			return reflect.TypeFor[float32](), nil
		}
		return reflect.TypeFor[float64](), nil
	case *types.Pointer:
		return reflect.TypeFor[uintptr](), nil
	}
	return nil, fmt.Errorf("type %s cannot be passed at compile time", t)
}

func toReflect(v ir.Value, gt reflect.Type) (reflect.Value, error) {
	rv := reflect.New(gt).Elem()
	switch gt.Kind() {
	case reflect.Bool:
		bits, ok := ToUint64(v)
		if !ok {
			return rv, fmt.Errorf("expected bool constant")
		}
		rv.SetBool(bits != 0)
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		bits, ok := ToUint64(v)
		if !ok {
			return rv, fmt.Errorf("expected integer constant")
		}
		rv.SetInt(int64(bits))
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		bits, ok := ToUint64(v)
		if !ok {
			return rv, fmt.Errorf("expected integer constant")
		}
		rv.SetUint(bits)
	case reflect.Float32, reflect.Float64:
		f, ok := ToFloat64(v)
		if !ok {
			return rv, fmt.Errorf("expected real constant")
		}
		rv.SetFloat(f)
	default:
		return rv, fmt.Errorf("unsupported %s", gt)
	}
	return rv, nil
}

func fromReflect(t types.Type, rv reflect.Value) (ir.Value, error) {
	switch rv.Kind() {
	case reflect.Bool:
		var bits uint64
		if rv.Bool() {
			bits = 1
		}
		return FromUint64(t, bits)
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return FromUint64(t, uint64(rv.Int()))
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return FromUint64(t, rv.Uint())
	case reflect.Float32, reflect.Float64:
		rt, ok := types.StorageType(t).(*types.Real)
		if !ok {
			return nil, fmt.Errorf("expected real result type, got %s", t)
		}
		return ir.Real{Type: rt, Value: rv.Float()}, nil
	}
	return nil, fmt.Errorf("unsupported result %s", rv.Type())
}
