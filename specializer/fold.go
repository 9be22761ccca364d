package specializer

import (
	"context"
	"slices"

	"goa.design/clue/log"

	"github.com/thiremani/cpsc/ir"
	"github.com/thiremani/cpsc/token"
	"github.com/thiremani/cpsc/types"
)

// foldLabelBody folds and types the body of instance l. When the body calls
// a function whose return type is not known yet, l stays incomplete and the
// callee is returned so l can be retried once it is typed.
func (s *Specializer) foldLabelBody(ctx context.Context, l *ir.Label) (ir.LabelID, error) {
	a := s.arena
	b := &l.Body
	for {
		for i := 1; i < len(b.Args); i++ {
			if pr, ok := b.Args[i].(ir.ParamRef); ok && !a.Param(pr.ID).IsTyped() {
				return ir.LabelID{}, token.NewError(b.Anchor,
					"parameter %s passed as argument %d has not been typed yet", a.FormatValue(pr), i)
			}
		}

		var (
			rtype *types.ReturnLabel
			again bool
			err   error
		)
		switch e := b.Enter.(type) {
		case ir.LabelRef:
			rtype, err = s.labelCallType(a.Label(e.ID), b.Anchor)
		case ir.BuiltinRef:
			rtype, again, err = s.foldBuiltin(ctx, l, e.B)
		case ir.Extern:
			rtype, again, err = s.foldExtern(ctx, l, e)
		case ir.ClosureRef:
			var dep ir.LabelID
			rtype, again, dep, err = s.foldClosureCall(ctx, l, e)
			if err == nil && dep.IsValid() {
				return dep, nil
			}
		case ir.ParamRef:
			p := a.Param(e.ID)
			if !isContinuation(p) {
				return ir.LabelID{}, token.NewError(b.Anchor, "unable to call variable of type %s", p.Type)
			}
			rtype = s.types.ReturnLabel(s.argTypes(b.Args)...)
			b.SetCont(ir.None{})
		default:
			return ir.LabelID{}, token.NewError(b.Anchor, "unable to call constant of type %s", a.TypeOf(b.Enter))
		}
		if err != nil {
			return ir.LabelID{}, err
		}
		if again {
			continue
		}

		if rtype != nil {
			if err := s.typeReturn(ctx, l, rtype); err != nil {
				return ir.LabelID{}, err
			}
		}
		b.Complete = true
		s.completed++
		s.collapseJumps(ctx, l)
		if s.jumpsImmediately(l) && len(b.Args) > 0 {
			b.Args[0] = ir.None{}
		}
		return ir.LabelID{}, nil
	}
}

// isContinuation reports whether p is a return continuation that can be
// called: the first parameter of a function, typed or not yet typed.
func isContinuation(p *ir.Parameter) bool {
	if p.Index != 0 {
		return false
	}
	k := p.Type.Kind()
	return k == types.UnknownKind || k == types.ReturnLabelKind
}

// argTypes lists the types of the values passed after the continuation.
func (s *Specializer) argTypes(args []ir.Value) []types.Type {
	if len(args) <= 1 {
		return nil
	}
	out := make([]types.Type, 0, len(args)-1)
	for _, v := range args[1:] {
		out = append(out, s.arena.TypeOf(v))
	}
	return out
}

func allConstant(vs []ir.Value) bool {
	for _, v := range vs {
		if !ir.IsConstant(v) {
			return false
		}
	}
	return true
}

// labelCallType is the result of entering an already specialized label:
// nothing for a jump, the return type for a call.
func (s *Specializer) labelCallType(target *ir.Label, at token.Anchor) (*types.ReturnLabel, error) {
	if target.IsTemplate() {
		panic("specializer: template label reached a body unevaluated")
	}
	if s.arena.IsBasicBlockLike(target) {
		return nil, nil
	}
	rt := s.arena.ReturnType(target)
	if rt == nil {
		return nil, token.NewError(at, "failed to propagate return type from untyped label")
	}
	if rt.NoReturn {
		return nil, nil
	}
	return rt, nil
}

// replaceWithReturn turns the body of l into a direct call of its
// continuation with vals.
func (s *Specializer) replaceWithReturn(ctx context.Context, l *ir.Label, vals ...ir.Value) {
	b := &l.Body
	b.Enter = b.Cont()
	b.Args = append([]ir.Value{ir.None{}}, vals...)
	s.folds.Add(ctx, 1)
}

// foldClosureCall instantiates the closure l enters. Inline templates
// become basic blocks of the caller keyed by the actual arguments;
// functions are keyed by argument types and normalized on the spot.
func (s *Specializer) foldClosureCall(ctx context.Context, l *ir.Label, ref ir.ClosureRef) (*types.ReturnLabel, bool, ir.LabelID, error) {
	a := s.arena
	b := &l.Body
	c := a.ClosureOf(ref.ID)
	tmpl := a.Label(c.Label)
	inlineConst := !tmpl.IsMerge() || a.Frame(c.Frame).InlineMerge
	cont := b.Cont()

	var keys, callargs []ir.Value
	if tmpl.IsInline() && inlineConst {
		keys = []ir.Value{cont}
		if len(b.Args) > 1 {
			keys = append(keys, b.Args[1:]...)
		}
		callargs = []ir.Value{ir.None{}}
	} else {
		keys = []ir.Value{ir.Unknown{T: s.types.Unknown}}
		callargs = []ir.Value{cont}
		if tmpl.IsInline() {
			keys[0] = cont
			callargs[0] = ir.None{}
		}
		if len(b.Args) > 1 {
			for _, arg := range b.Args[1:] {
				t := a.TypeOf(arg)
				if ir.IsNone(arg) || types.IsMeta(t) {
					keys = append(keys, arg)
					continue
				}
				keys = append(keys, ir.Unknown{T: t})
				callargs = append(callargs, arg)
			}
		}
	}

	f, err := s.instantiate(ctx, c.Frame, tmpl, keys, b.Anchor)
	if err != nil {
		return nil, false, ir.LabelID{}, err
	}
	newl := a.Label(f.Instance)
	if a.IsBasicBlockLike(newl) {
		b.Enter = ir.LabelRef{ID: newl.ID}
		b.Args = callargs
		return nil, false, ir.LabelID{}, nil
	}

	if s.active[newl.ID] {
		newl.Set(ir.FlagReentrant)
	}
	if err := s.normalize(ctx, newl); err != nil {
		return nil, false, ir.LabelID{}, err
	}
	rt := a.ReturnType(newl)
	if rt == nil {
		// the callee is still being typed further up
		return nil, false, newl.ID, nil
	}
	if !ir.IsNone(cont) && !newl.IsReentrant() {
		if vals, ok := s.emptyReturn(newl); ok {
			log.Debugf(ctx, "folding call to empty function %s", a.LabelName(newl.ID))
			s.replaceWithReturn(ctx, l, vals...)
			return nil, true, ir.LabelID{}, nil
		}
	}
	b.Enter = ir.LabelRef{ID: newl.ID}
	b.Args = callargs
	if rt.NoReturn {
		return nil, false, ir.LabelID{}, nil
	}
	return rt, false, ir.LabelID{}, nil
}

// emptyReturn reports whether fn does nothing but return constants, and
// returns them.
func (s *Specializer) emptyReturn(fn *ir.Label) ([]ir.Value, bool) {
	a := s.arena
	cont, ok := a.Cont(fn)
	if !ok {
		return nil, false
	}
	seen := map[ir.LabelID]bool{}
	l := fn
	for !seen[l.ID] {
		seen[l.ID] = true
		b := &l.Body
		switch e := b.Enter.(type) {
		case ir.ParamRef:
			if e.ID != cont.ID || len(b.Args) == 0 || !allConstant(b.Args[1:]) {
				return nil, false
			}
			return slices.Clone(b.Args[1:]), true
		case ir.LabelRef:
			next := a.Label(e.ID)
			if len(b.Args) > 1 || !a.IsBasicBlockLike(next) || len(next.Params) > 1 {
				return nil, false
			}
			l = next
		default:
			return nil, false
		}
	}
	return nil, false
}

// typeReturn hands the result type of the body of l to its continuation,
// or to the entered continuation when l returns directly.
func (s *Specializer) typeReturn(ctx context.Context, l *ir.Label, rt *types.ReturnLabel) error {
	b := &l.Body
	if ir.IsNone(b.Cont()) {
		if _, ok := b.Enter.(ir.ParamRef); !ok {
			return token.NewError(b.Anchor, "missing continuation for result of type %s", rt)
		}
		enter, err := s.foldTypeReturn(ctx, b.Enter, rt, b.Anchor)
		if err != nil {
			return err
		}
		b.Enter = enter
		return nil
	}
	cont, err := s.foldTypeReturn(ctx, b.Args[0], rt, b.Anchor)
	if err != nil {
		return err
	}
	b.Args[0] = cont
	return nil
}

// foldTypeReturn types the continuation dest as receiving rt and returns
// the value that replaces it. Closures are instantiated as basic blocks
// whose parameters receive the returned values; a block that only
// forwards them is bypassed.
func (s *Specializer) foldTypeReturn(ctx context.Context, dest ir.Value, rt *types.ReturnLabel, at token.Anchor) (ir.Value, error) {
	a := s.arena
	for {
		switch d := dest.(type) {
		case ir.ParamRef:
			p := a.Param(d.ID)
			if p.Type.Kind() == types.NothingKind {
				return nil, token.NewError(at, "attempting to type return continuation of non-returning label")
			}
			if !p.IsTyped() {
				p.Type = rt
				s.returnSites[p.ID] = at
				return dest, nil
			}
			if p.Type != rt {
				err := token.NewError(at, "attempting to retype return continuation as %s", rt)
				if site, ok := s.returnSites[p.ID]; ok {
					err.WithNote(site, "first typed here as %s", p.Type)
				}
				return nil, err
			}
			return dest, nil
		case ir.ClosureRef:
			if rt.NoReturn {
				return ir.None{}, nil
			}
			c := a.ClosureOf(d.ID)
			keys := []ir.Value{ir.None{}}
			for _, t := range rt.Values {
				keys = append(keys, ir.Unknown{T: t})
			}
			f, err := s.instantiate(ctx, c.Frame, a.Label(c.Label), keys, at)
			if err != nil {
				return nil, err
			}
			newl := a.Label(f.Instance)
			if next, ok := s.forwardsAll(newl); ok {
				dest = next
				continue
			}
			return ir.LabelRef{ID: newl.ID}, nil
		case ir.LabelRef:
			if rt.NoReturn {
				return ir.None{}, nil
			}
			target := a.Label(d.ID)
			if !a.IsBasicBlockLike(target) || !slices.Equal(a.ParamTypes(target), rt.Values) {
				return nil, token.NewError(at, "attempting to retype label %s as %s", a.LabelName(d.ID), rt)
			}
			return dest, nil
		default:
			return nil, token.NewError(at, "cannot return %s to constant of type %s", rt, a.TypeOf(dest))
		}
	}
}

// forwardsAll reports whether the freshly evaluated block l only passes its
// parameters on to another continuation, and returns that continuation.
func (s *Specializer) forwardsAll(l *ir.Label) (ir.Value, bool) {
	a := s.arena
	b := &l.Body
	if a.IsImportant(l) || len(b.Args) == 0 || !ir.IsNone(b.Args[0]) || len(b.Args) != len(l.Params) {
		return nil, false
	}
	switch e := b.Enter.(type) {
	case ir.ParamRef:
		p := a.Param(e.ID)
		if p.Label == l.ID || !isContinuation(p) {
			return nil, false
		}
	case ir.ClosureRef:
	default:
		return nil, false
	}
	for i := 1; i < len(b.Args); i++ {
		pr, ok := b.Args[i].(ir.ParamRef)
		if !ok || pr.ID != l.Params[i] {
			return nil, false
		}
	}
	return b.Enter, true
}

// collapseJumps replaces a jump to a complete parameterless block with that
// block's body.
func (s *Specializer) collapseJumps(ctx context.Context, l *ir.Label) {
	a := s.arena
	seen := map[ir.LabelID]bool{l.ID: true}
	for {
		ref, ok := l.Body.Enter.(ir.LabelRef)
		if !ok || len(l.Body.Args) > 1 || seen[ref.ID] {
			return
		}
		next := a.Label(ref.ID)
		if !next.Body.Complete || !a.IsBasicBlockLike(next) || a.IsImportant(next) || len(next.Params) > 1 {
			return
		}
		seen[next.ID] = true
		l.Body = ir.Body{
			Anchor:   l.Body.Anchor,
			Enter:    next.Body.Enter,
			Args:     slices.Clone(next.Body.Args),
			Complete: true,
		}
		s.folds.Add(ctx, 1)
	}
}

// jumpsImmediately reports whether l enters a basic block.
func (s *Specializer) jumpsImmediately(l *ir.Label) bool {
	ref, ok := l.Body.Enter.(ir.LabelRef)
	return ok && s.arena.IsBasicBlockLike(s.arena.Label(ref.ID))
}

func isContinuingToLabel(l *ir.Label) bool {
	_, ok := l.Body.Cont().(ir.LabelRef)
	return ok
}

func isBranching(l *ir.Label) bool {
	ref, ok := l.Body.Enter.(ir.BuiltinRef)
	return ok && ref.B == ir.BBranch && len(l.Body.Args) == 4
}

// foldBranch selects the taken arm of a constant condition. Otherwise both
// arms are instantiated as basic blocks sharing the continuation.
func (s *Specializer) foldBranch(ctx context.Context, l *ir.Label) (bool, error) {
	a := s.arena
	b := &l.Body
	if len(b.Args) != 4 {
		return false, token.NewError(b.Anchor, "branch expects a condition and two destinations")
	}
	cond := b.Args[1]
	if t := a.TypeOf(cond); !types.IsBool(t) {
		return false, token.NewError(b.Anchor, "branch condition must be of type bool, got %s", t)
	}
	if c, ok := cond.(ir.Int); ok {
		arm := b.Args[3]
		if c.Bool() {
			arm = b.Args[2]
		}
		if err := s.checkBranchArm(arm, b.Anchor); err != nil {
			return false, err
		}
		if cr, ok := b.Args[0].(ir.ClosureRef); ok {
			a.Frame(a.ClosureOf(cr.ID).Frame).InlineMerge = true
		}
		b.Enter = arm
		b.Args = []ir.Value{b.Args[0]}
		s.folds.Add(ctx, 1)
		return true, nil
	}
	for i := 2; i <= 3; i++ {
		if err := s.checkBranchArm(b.Args[i], b.Anchor); err != nil {
			return false, err
		}
		cr, ok := b.Args[i].(ir.ClosureRef)
		if !ok {
			continue
		}
		c := a.ClosureOf(cr.ID)
		f, err := s.instantiate(ctx, c.Frame, a.Label(c.Label), []ir.Value{b.Args[0]}, b.Anchor)
		if err != nil {
			return false, err
		}
		b.Args[i] = ir.LabelRef{ID: f.Instance}
	}
	b.Args[0] = ir.None{}
	return false, nil
}

func (s *Specializer) checkBranchArm(v ir.Value, at token.Anchor) error {
	a := s.arena
	switch v := v.(type) {
	case ir.ClosureRef:
		if a.Label(a.ClosureOf(v.ID).Label).IsInline() {
			return nil
		}
	case ir.LabelRef:
		if a.IsBasicBlockLike(a.Label(v.ID)) {
			return nil
		}
	}
	return token.NewError(at, "branch destination must be inline")
}
