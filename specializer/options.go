package specializer

import "github.com/thiremani/cpsc/ffi"

const (
	DefaultMaxRecursions = 64
	DefaultMaxStackDepth = 1024
)

// Options tunes a Specializer. Zero limits take their defaults.
type Options struct {
	// MaxRecursions bounds how often a template may re-enter itself
	// through its own frame before specialization gives up.
	MaxRecursions int
	// MaxStackDepth bounds nested function normalization.
	MaxStackDepth int
	// Bridge executes pure foreign functions with constant arguments.
	// A nil Bridge leaves every foreign call to run time.
	Bridge ffi.Bridge
}

func DefaultOptions() Options {
	return Options{
		MaxRecursions: DefaultMaxRecursions,
		MaxStackDepth: DefaultMaxStackDepth,
	}
}

func (o Options) withDefaults() Options {
	if o.MaxRecursions <= 0 {
		o.MaxRecursions = DefaultMaxRecursions
	}
	if o.MaxStackDepth <= 0 {
		o.MaxStackDepth = DefaultMaxStackDepth
	}
	return o
}
