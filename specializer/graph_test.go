package specializer

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/thiremani/cpsc/ir"
	"github.com/thiremani/cpsc/symbol"
	"github.com/thiremani/cpsc/token"
	"github.com/thiremani/cpsc/types"
)

// graph builds template graphs by hand for specializer tests.
type graph struct {
	t    *testing.T
	a    *ir.Arena
	line int
}

func newGraph(t *testing.T) *graph {
	return &graph{t: t, a: ir.NewArena(types.NewTable(), symbol.NewTable())}
}

func (g *graph) anchor() token.Anchor {
	g.line++
	return token.Anchor{File: "test.cps", Line: g.line, Column: 1}
}

// label declares a template. Params are "name", "name:type" or "name...";
// "_" is an unnamed parameter.
func (g *graph) label(name string, scope *ir.Label, flags ir.Flags, params ...string) *ir.Label {
	l := g.a.NewLabel(g.a.Symbols.Intern(name), g.anchor())
	l.Flags = flags
	if scope != nil {
		l.Scope = scope.ID
	}
	for _, p := range params {
		variadic := strings.HasSuffix(p, "...")
		p = strings.TrimSuffix(p, "...")
		var typ types.Type
		if n, t, ok := strings.Cut(p, ":"); ok {
			tt, found := g.a.Types.Lookup(t)
			require.True(g.t, found, t)
			p, typ = n, tt
		}
		sym := symbol.Unnamed
		if p != "_" {
			sym = g.a.Symbols.Intern(p)
		}
		g.a.AddParam(l, sym, typ, variadic)
	}
	return l
}

func (g *graph) fn(name string, params ...string) *ir.Label {
	return g.label(name, nil, 0, params...)
}

func (g *graph) block(name string, scope *ir.Label, params ...string) *ir.Label {
	return g.label(name, scope, ir.FlagInline, params...)
}

func (g *graph) merge(name string, scope *ir.Label, params ...string) *ir.Label {
	return g.label(name, scope, ir.FlagInline|ir.FlagMerge, params...)
}

// p returns a reference to the parameter of l called name.
func (g *graph) p(l *ir.Label, name string) ir.ParamRef {
	for _, id := range l.Params {
		if g.a.Symbols.Name(g.a.Param(id).Name) == name {
			return ir.ParamRef{ID: id}
		}
	}
	g.t.Fatalf("%s has no parameter %s", g.a.LabelName(l.ID), name)
	return ir.ParamRef{}
}

func (g *graph) body(l *ir.Label, enter ir.Value, args ...ir.Value) {
	l.Body = ir.Body{Anchor: l.Anchor, Enter: enter, Args: args}
}

func (g *graph) call(l *ir.Label, b ir.Builtin, args ...ir.Value) {
	g.body(l, ir.BuiltinRef{B: b}, args...)
}

func ref(l *ir.Label) ir.LabelRef { return ir.LabelRef{ID: l.ID} }

func (g *graph) i32(v int64) ir.Int { return ir.NewInt(g.a.Types.I32, v) }

func (g *graph) f64(v float64) ir.Real { return ir.Real{Type: g.a.Types.F64, Value: v} }

func (g *graph) boolean(b bool) ir.Int {
	if b {
		return ir.NewInt(g.a.Types.Bool, 1)
	}
	return ir.NewInt(g.a.Types.Bool, 0)
}

func none() ir.None { return ir.None{} }

func (g *graph) specializer(opts Options) *Specializer {
	return New(g.a, nil, opts)
}

func (g *graph) specialize(entry *ir.Label) (*Specializer, *Result, error) {
	s := g.specializer(DefaultOptions())
	res, err := s.Specialize(context.Background(), entry.ID)
	return s, res, err
}

// originals lists the templates of every label reachable from entry.
func (g *graph) originals(entry ir.LabelID) map[ir.LabelID]bool {
	out := make(map[ir.LabelID]bool)
	for _, id := range g.a.Reachable(entry) {
		out[g.a.Label(id).Original] = true
	}
	return out
}
