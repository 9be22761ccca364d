//go:build !(darwin || linux || freebsd)

package ffi

import (
	"context"
	"fmt"
	"runtime"

	"github.com/thiremani/cpsc/ir"
)

// Dynamic is unavailable on this platform.
type Dynamic struct{}

func OpenDynamic(libs ...string) (*Dynamic, error) {
	if len(libs) == 0 {
		return &Dynamic{}, nil
	}
	return nil, fmt.Errorf("loading foreign libraries is not supported on %s", runtime.GOOS)
}

func (d *Dynamic) Close() error { return nil }

func (d *Dynamic) Call(ctx context.Context, fn ir.Extern, args []ir.Value) (ir.Value, error) {
	return nil, fmt.Errorf("%s: %w", fn.Name, ErrNotFound)
}
