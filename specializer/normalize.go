package specializer

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"goa.design/clue/log"

	"github.com/thiremani/cpsc/ir"
	"github.com/thiremani/cpsc/token"
)

// blockedLabel waits for the return type of dep.
type blockedLabel struct {
	label ir.LabelID
	dep   ir.LabelID
}

// fnState is the work list of a function being normalized. It outlives the
// call to normalize when the function is suspended.
type fnState struct {
	entry     *ir.Label
	todo      []ir.LabelID
	blocked   []blockedLabel
	suspended bool
}

func (st *fnState) blockedOnlyOn(id ir.LabelID) bool {
	for _, b := range st.blocked {
		if b.dep != id {
			return false
		}
	}
	return true
}

// normalize folds every label of the function fn reachable without
// entering other functions. A function that is already being normalized
// returns immediately; its callers block until it is typed.
func (s *Specializer) normalize(ctx context.Context, fn *ir.Label) error {
	a := s.arena
	st, ok := s.states[fn.ID]
	if !ok {
		if fn.Body.Complete {
			return nil
		}
		st = &fnState{entry: fn, todo: []ir.LabelID{fn.ID}}
		s.states[fn.ID] = st
	} else if s.active[fn.ID] {
		return nil
	}

	s.depth++
	defer func() { s.depth-- }()
	if s.depth > s.opts.MaxStackDepth {
		return token.NewError(fn.Anchor, "stack overflow during partial evaluation")
	}

	name := a.LabelName(fn.ID)
	ctx, span := s.tracer.Start(ctx, "specializer.normalize", trace.WithAttributes(attribute.String("label", name)))
	defer span.End()

	s.active[fn.ID] = true
	defer delete(s.active, fn.ID)
	if st.suspended {
		log.Debugf(ctx, "resuming %s", name)
		st.suspended = false
		for i := len(st.blocked) - 1; i >= 0; i-- {
			st.todo = append(st.todo, st.blocked[i].label)
		}
		st.blocked = st.blocked[:0]
	}

	if err := s.run(ctx, st); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if st.suspended {
		log.Debugf(ctx, "suspending %s with %d blocked labels", name, len(st.blocked))
		return nil
	}
	delete(s.states, fn.ID)

	if a.ReturnType(fn) == nil {
		// every exit is unreachable
		cont, _ := a.Cont(fn)
		cont.Type = s.types.NoReturn
	}
	return nil
}

// run drains the work list of st. Labels blocked on an untyped callee are
// retried once the list is empty; a retry without progress suspends the
// function while an outer function may still type the callee.
func (s *Specializer) run(ctx context.Context, st *fnState) error {
	a := s.arena
	entry := st.entry
	for {
		before := s.completed
		for len(st.todo) > 0 {
			id := st.todo[len(st.todo)-1]
			st.todo = st.todo[:len(st.todo)-1]
			l := a.Label(id)
			if err := s.process(ctx, st, l); err != nil {
				return s.traced(err, l, entry)
			}
		}
		if len(st.blocked) == 0 {
			return nil
		}
		if a.ReturnType(entry) == nil && st.blockedOnlyOn(entry.ID) {
			return token.NewError(entry.Anchor, "recursive function never returns")
		}
		if s.completed == before {
			if len(s.active) > 1 {
				st.suspended = true
				return nil
			}
			return token.NewError(entry.Anchor, "recursive function never returns")
		}
		entry.Set(ir.FlagReentrant)
		for i := len(st.blocked) - 1; i >= 0; i-- {
			st.todo = append(st.todo, st.blocked[i].label)
		}
		st.blocked = st.blocked[:0]
	}
}

// process folds l if needed and schedules its successors once.
func (s *Specializer) process(ctx context.Context, st *fnState, l *ir.Label) error {
	if !l.Body.Complete {
		dep, err := s.foldLabelBody(ctx, l)
		if err != nil {
			return err
		}
		if dep.IsValid() {
			s.block(ctx, st, l, dep)
			return nil
		}
	}
	if l.Body.Optimized {
		return nil
	}
	l.Body.Optimized = true

	b := &l.Body
	switch {
	case s.jumpsImmediately(l):
		id, err := s.skip(ctx, st, b.Enter.(ir.LabelRef).ID)
		if err != nil {
			return err
		}
		b.Enter = ir.LabelRef{ID: id}
	case isContinuingToLabel(l):
		id, err := s.skip(ctx, st, b.Args[0].(ir.LabelRef).ID)
		if err != nil {
			return err
		}
		b.Args[0] = ir.LabelRef{ID: id}
	case isBranching(l):
		for i := 2; i <= 3; i++ {
			id, err := s.skip(ctx, st, b.Args[i].(ir.LabelRef).ID)
			if err != nil {
				return err
			}
			b.Args[i] = ir.LabelRef{ID: id}
		}
	}
	return nil
}

func (s *Specializer) block(ctx context.Context, st *fnState, l *ir.Label, dep ir.LabelID) {
	a := s.arena
	st.blocked = append(st.blocked, blockedLabel{label: l.ID, dep: dep})
	if s.active[dep] {
		a.Label(dep).Set(ir.FlagReentrant)
	}
	log.Debugf(ctx, "%s#%d waits for the return type of %s#%d",
		a.LabelName(l.ID), l.ID.Index(), a.LabelName(dep), dep.Index())
}

// skip folds the successor id and follows it through parameterless blocks
// that only jump on. The label finally reached is queued if its successors
// were not scheduled yet.
func (s *Specializer) skip(ctx context.Context, st *fnState, id ir.LabelID) (ir.LabelID, error) {
	a := s.arena
	seen := map[ir.LabelID]bool{}
	for {
		l := a.Label(id)
		if !l.Body.Complete {
			dep, err := s.foldLabelBody(ctx, l)
			if err != nil {
				return id, err
			}
			if dep.IsValid() {
				s.block(ctx, st, l, dep)
				return id, nil
			}
		}
		seen[id] = true
		next, ok := s.skipTarget(l)
		if !ok || seen[next] {
			if !l.Body.Optimized {
				st.todo = append(st.todo, id)
			}
			return id, nil
		}
		id = next
	}
}

// skipTarget returns the block l jumps to when l can be bypassed.
func (s *Specializer) skipTarget(l *ir.Label) (ir.LabelID, bool) {
	a := s.arena
	if a.IsImportant(l) || !a.IsBasicBlockLike(l) || len(l.Params) > 1 || len(l.Body.Args) > 1 {
		return ir.LabelID{}, false
	}
	ref, ok := l.Body.Enter.(ir.LabelRef)
	if !ok || ref.ID == l.ID {
		return ir.LabelID{}, false
	}
	next := a.Label(ref.ID)
	if !a.IsBasicBlockLike(next) || len(next.Params) > 1 {
		return ir.LabelID{}, false
	}
	return next.ID, true
}
