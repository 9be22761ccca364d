// Package specializer infers types by partially evaluating the template
// graph. Templates are instantiated per frame and argument key, constant
// operations are folded, and result types flow backwards through explicit
// continuations until every reachable label is typed.
package specializer

import (
	"context"
	"errors"
	"slices"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"goa.design/clue/log"

	"github.com/thiremani/cpsc/ir"
	"github.com/thiremani/cpsc/scc"
	"github.com/thiremani/cpsc/scope"
	"github.com/thiremani/cpsc/token"
	"github.com/thiremani/cpsc/types"
)

const instrumentationName = "github.com/thiremani/cpsc/specializer"

// Result is a fully typed instance graph.
type Result struct {
	Entry  ir.LabelID
	Groups *scc.Builder
}

type mergeKey struct {
	frame ir.FrameID
	tmpl  ir.LabelID
}

// mergeSite is the first instantiation of a merge template under a frame.
type mergeSite struct {
	key    string
	desc   string
	anchor token.Anchor
}

// Specializer owns the specialization state of one arena. It is not safe
// for concurrent use.
type Specializer struct {
	arena   *ir.Arena
	types   *types.Table
	globals []scope.Scope[ir.Value]
	opts    Options

	depth       int
	completed   int // labels folded so far, used to detect stalls
	active      map[ir.LabelID]bool
	states      map[ir.LabelID]*fnState
	merges      map[mergeKey]mergeSite
	returnSites map[ir.ParamID]token.Anchor

	tracer    trace.Tracer
	instances metric.Int64Counter
	folds     metric.Int64Counter
}

// New returns a Specializer over a. globals resolves names the expander
// left unbound.
func New(a *ir.Arena, globals []scope.Scope[ir.Value], opts Options) *Specializer {
	if globals == nil {
		globals = scope.Root[ir.Value]()
	}
	s := &Specializer{
		arena:       a,
		types:       a.Types,
		globals:     globals,
		opts:        opts.withDefaults(),
		active:      make(map[ir.LabelID]bool),
		states:      make(map[ir.LabelID]*fnState),
		merges:      make(map[mergeKey]mergeSite),
		returnSites: make(map[ir.ParamID]token.Anchor),
		tracer:      otel.Tracer(instrumentationName),
	}
	meter := otel.Meter(instrumentationName)
	var err error
	if s.instances, err = meter.Int64Counter("cpsc.specializer.instances",
		metric.WithDescription("Template instances created")); err != nil {
		s.instances = noop.Int64Counter{}
	}
	if s.folds, err = meter.Int64Counter("cpsc.specializer.folds",
		metric.WithDescription("Calls folded at compile time")); err != nil {
		s.folds = noop.Int64Counter{}
	}
	return s
}

func (s *Specializer) Arena() *ir.Arena { return s.arena }

// Specialize types the template entry using the declared types of its
// parameters.
func (s *Specializer) Specialize(ctx context.Context, entry ir.LabelID) (*Result, error) {
	tmpl := s.arena.Label(entry)
	var argTypes []types.Type
	for i, pid := range tmpl.Params {
		if i == 0 {
			continue
		}
		p := s.arena.Param(pid)
		if !p.IsTyped() {
			return nil, token.NewError(p.Anchor, "parameter %s of entry %s needs a type",
				s.arena.Symbols.Name(p.Name), s.arena.LabelName(entry))
		}
		argTypes = append(argTypes, p.Type)
	}
	return s.Typify(ctx, entry, argTypes...)
}

// Typify types the template entry for runtime arguments of argTypes.
func (s *Specializer) Typify(ctx context.Context, entry ir.LabelID, argTypes ...types.Type) (*Result, error) {
	a := s.arena
	tmpl := a.Label(entry)
	ctx, span := s.tracer.Start(ctx, "specializer.Specialize",
		trace.WithAttributes(attribute.String("entry", a.LabelName(entry))))
	defer span.End()

	res, err := s.typify(ctx, tmpl, argTypes)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	log.Debugf(ctx, "specialized %s: %d labels, %d groups",
		a.LabelName(entry), a.NumLabels(), len(res.Groups.Groups()))
	return res, nil
}

func (s *Specializer) typify(ctx context.Context, tmpl *ir.Label, argTypes []types.Type) (*Result, error) {
	a := s.arena
	if !tmpl.IsTemplate() {
		return nil, token.NewError(tmpl.Anchor, "%s is already an instance", a.LabelName(tmpl.ID))
	}
	if len(tmpl.Params) == 0 {
		return nil, token.NewError(tmpl.Anchor, "entry %s must take a return continuation", a.LabelName(tmpl.ID))
	}
	keys := []ir.Value{ir.Unknown{T: s.types.Unknown}}
	for _, t := range argTypes {
		keys = append(keys, ir.Unknown{T: t})
	}
	f, err := s.instantiate(ctx, a.Root(), tmpl, keys, tmpl.Anchor)
	if err != nil {
		return nil, err
	}
	inst := a.Label(f.Instance)
	if err := s.normalize(ctx, inst); err != nil {
		return nil, err
	}
	if err := s.checkSuspended(); err != nil {
		return nil, err
	}
	if err := s.validate(inst.ID); err != nil {
		return nil, err
	}
	groups := scc.Build(a, inst.ID)
	groups.MarkLoops()
	return &Result{Entry: inst.ID, Groups: groups}, nil
}

// checkSuspended fails for functions whose recursion was never resolved.
func (s *Specializer) checkSuspended() error {
	if len(s.states) == 0 {
		return nil
	}
	ids := make([]ir.LabelID, 0, len(s.states))
	for id := range s.states {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(x, y ir.LabelID) int { return x.Index() - y.Index() })
	entry := s.states[ids[0]].entry
	return token.NewError(entry.Anchor, "recursive function never returns")
}

// validate checks that everything reachable from entry is fully typed.
func (s *Specializer) validate(entry ir.LabelID) error {
	a := s.arena
	for _, id := range a.Reachable(entry) {
		l := a.Label(id)
		if !l.Body.Complete {
			return token.NewError(l.Body.Anchor, "label %s was never typed", a.LabelName(id))
		}
		for _, pid := range l.Params {
			if !a.Param(pid).IsTyped() {
				return token.NewError(l.Anchor, "parameter %s of %s has not been typed",
					a.FormatValue(ir.ParamRef{ID: pid}), a.LabelName(id))
			}
		}
		if a.IsFunction(l) && a.ReturnType(l) == nil {
			return token.NewError(l.Anchor, "return type of %s is unknown", a.LabelName(id))
		}
		for _, v := range append([]ir.Value{l.Body.Enter}, l.Body.Args...) {
			switch v.(type) {
			case ir.Unknown, ir.Global:
				return token.NewError(l.Body.Anchor, "unresolved value %s", a.FormatValue(v))
			case ir.ClosureRef:
				return token.NewError(l.Body.Anchor, "closure %s cannot be used at run time", a.FormatValue(v))
			}
		}
	}
	return nil
}

// traced appends the evaluation site of l, and of its function entry, to a
// compile error propagating out of normalize.
func (s *Specializer) traced(err error, l, entry *ir.Label) error {
	var ce *token.CompileError
	if errors.As(err, &ce) {
		ce.PushTrace(l.Body.Anchor, s.arena.LabelName(l.ID))
		if l.ID != entry.ID {
			ce.PushTrace(entry.Anchor, s.arena.LabelName(entry.ID))
		}
	}
	return err
}
