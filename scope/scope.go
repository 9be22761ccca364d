// Package scope provides lexically chained name bindings. The expander uses
// it for parameters and labels; the specializer uses it to resolve globals.
package scope

import (
	"maps"
	"slices"
)

type Kind int

const (
	// FuncScope ends a lookup: names beyond it are not visible.
	FuncScope Kind = iota
	BlockScope
)

type Scope[T any] struct {
	Elems map[string]T
	Kind  Kind
}

func New[T any](k Kind) Scope[T] {
	return Scope[T]{
		Elems: make(map[string]T),
		Kind:  k,
	}
}

// Root returns a chain holding a single function scope.
func Root[T any]() []Scope[T] {
	return []Scope[T]{New[T](FuncScope)}
}

func Push[T any](scopes *[]Scope[T], k Kind) {
	*scopes = append(*scopes, New[T](k))
}

func Pop[T any](scopes *[]Scope[T]) {
	if len(*scopes) == 1 {
		panic("cannot pop global scope")
	}
	*scopes = (*scopes)[:len(*scopes)-1]
}

// Put binds name in the innermost scope.
func Put[T any](scopes []Scope[T], name string, elem T) {
	scopes[len(scopes)-1].Elems[name] = elem
}

func PutBulk[T any](scopes []Scope[T], elems map[string]T) {
	maps.Copy(scopes[len(scopes)-1].Elems, elems)
}

// Get searches from the innermost scope outward, stopping after the first
// function scope.
func Get[T any](scopes []Scope[T], name string) (T, bool) {
	for i := len(scopes) - 1; i >= 0; i-- {
		if e, ok := scopes[i].Elems[name]; ok {
			return e, true
		}
		if scopes[i].Kind == FuncScope {
			break
		}
	}

	var zero T
	return zero, false
}

// Local reports whether name is bound in the innermost scope.
func Local[T any](scopes []Scope[T], name string) bool {
	_, ok := scopes[len(scopes)-1].Elems[name]
	return ok
}

// Names lists every visible name, sorted. Used for diagnostics.
func Names[T any](scopes []Scope[T]) []string {
	seen := make(map[string]struct{})
	for i := len(scopes) - 1; i >= 0; i-- {
		for name := range scopes[i].Elems {
			seen[name] = struct{}{}
		}
		if scopes[i].Kind == FuncScope {
			break
		}
	}
	return slices.Sorted(maps.Keys(seen))
}
