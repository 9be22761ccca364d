package specializer

import (
	"context"
	"strconv"
	"strings"

	"goa.design/clue/log"

	"github.com/thiremani/cpsc/ir"
	"github.com/thiremani/cpsc/scope"
	"github.com/thiremani/cpsc/symbol"
	"github.com/thiremani/cpsc/token"
	"github.com/thiremani/cpsc/types"
)

// instantiate returns the frame of tmpl bound to args under parent. On a
// memo miss it creates the instance label, registers the frame and then
// evaluates the template body against it.
func (s *Specializer) instantiate(ctx context.Context, parent ir.FrameID, tmpl *ir.Label, args []ir.Value, at token.Anchor) (*ir.Frame, error) {
	a := s.arena
	pf := a.Frame(parent)
	loop := 0
	if !pf.IsRoot() && pf.Template == tmpl.ID {
		loop = pf.LoopCount + 1
		if loop > s.opts.MaxRecursions {
			return nil, token.NewError(at,
				"maximum number of recursions exceeded during compile time evaluation (%d). Use an explicit non-inlined call instead.",
				s.opts.MaxRecursions)
		}
		parent = pf.Parent
		pf = a.Frame(parent)
	}

	keys, err := s.bindArgs(tmpl, args, at)
	if err != nil {
		return nil, err
	}
	key := s.memoKey(tmpl, keys)

	if tmpl.IsMerge() && !pf.InlineMerge {
		if err := s.checkMerge(parent, tmpl, keys, key, at); err != nil {
			return nil, err
		}
	}

	if id, ok := pf.Child(key); ok {
		return a.Frame(id), nil
	}

	inst := a.NewLabel(tmpl.Name, tmpl.Anchor)
	inst.Original = tmpl.ID
	inst.Scope = tmpl.Scope
	inst.Flags = tmpl.Flags & (ir.FlagInline | ir.FlagMerge)
	if pf.InlineMerge {
		inst.Flags &^= ir.FlagMerge
	}

	f := a.NewFrame(parent, tmpl.ID)
	f.Instance = inst.ID
	f.LoopCount = loop
	inst.Frame = f.ID

	f.Args = make([]ir.Value, len(keys))
	for i, k := range keys {
		tp := s.templateParam(tmpl, i)
		name := symbol.Unnamed
		var declared types.Type
		if tp != nil && (!tp.Variadic || i == tp.Index) {
			name = tp.Name
			if !tp.Variadic {
				declared = tp.Type
			}
		}
		if u, ok := k.(ir.Unknown); ok {
			p := a.AddParam(inst, name, declared, false)
			if u.T.Kind() != types.UnknownKind {
				if err := p.SetType(u.T); err != nil {
					return nil, token.NewError(at, "%s", err.Error())
				}
			}
			f.Args[i] = ir.ParamRef{ID: p.ID}
			continue
		}
		if i == 0 {
			// a bound continuation leaves the instance without activation
			a.AddParam(inst, name, s.types.Nothing, false)
		} else if declared != nil && declared.Kind() != types.UnknownKind {
			if t := a.TypeOf(k); t != declared {
				return nil, token.NewError(at, "%s", (&ir.RetypeError{Old: declared, New: t}).Error())
			}
		}
		f.Args[i] = k
	}
	pf.SetChild(key, f.ID)
	s.instances.Add(ctx, 1)
	log.Debugf(ctx, "instantiate %s as #%d [%s]", a.LabelName(tmpl.ID), inst.ID.Index(), key)

	body, err := s.evaluateBody(f.ID, &tmpl.Body)
	if err != nil {
		return nil, err
	}
	inst.Body = body
	return f, nil
}

// bindArgs lines args up with the parameters of tmpl: missing arguments are
// None and a trailing variadic parameter absorbs the rest.
func (s *Specializer) bindArgs(tmpl *ir.Label, args []ir.Value, at token.Anchor) ([]ir.Value, error) {
	n := len(tmpl.Params)
	variadic := n > 0 && s.arena.Param(tmpl.Params[n-1]).Variadic
	if !variadic && len(args) > n {
		// a label without parameters may still be handed a continuation
		if n == 0 && len(args) == 1 {
			return nil, nil
		}
		return nil, token.NewError(at, "%s takes %d arguments, got %d",
			s.arena.LabelName(tmpl.ID), max(n-1, 0), len(args)-1)
	}
	keys := make([]ir.Value, 0, max(n, len(args)))
	for i := 0; i < n; i++ {
		if variadic && i == n-1 {
			if i < len(args) {
				keys = append(keys, args[i:]...)
			}
			break
		}
		if i < len(args) {
			keys = append(keys, args[i])
		} else {
			keys = append(keys, ir.None{})
		}
	}
	return keys, nil
}

// templateParam returns the parameter of tmpl bound by key slot i.
func (s *Specializer) templateParam(tmpl *ir.Label, i int) *ir.Parameter {
	n := len(tmpl.Params)
	if n == 0 {
		return nil
	}
	if i < n {
		return s.arena.Param(tmpl.Params[i])
	}
	last := s.arena.Param(tmpl.Params[n-1])
	if last.Variadic {
		return last
	}
	return nil
}

func (s *Specializer) memoKey(tmpl *ir.Label, keys []ir.Value) string {
	var sb strings.Builder
	sb.WriteString(strconv.Itoa(tmpl.ID.Index()))
	sb.WriteByte('(')
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(s.arena.Key(k))
	}
	sb.WriteByte(')')
	return sb.String()
}

// checkMerge enforces that every branch reaching a merge template under one
// frame passes runtime values of the same types.
func (s *Specializer) checkMerge(parent ir.FrameID, tmpl *ir.Label, keys []ir.Value, key string, at token.Anchor) error {
	a := s.arena
	for i := 1; i < len(keys); i++ {
		if ir.IsConstant(keys[i]) && !ir.IsNone(keys[i]) {
			return token.NewError(at, "attempting to return from branch, but returned argument #%d of type %s is constant",
				i, a.TypeOf(keys[i]))
		}
	}
	desc := s.describeKeys(keys)
	mk := mergeKey{frame: parent, tmpl: tmpl.ID}
	site, ok := s.merges[mk]
	if !ok {
		s.merges[mk] = mergeSite{key: key, desc: desc, anchor: at}
		return nil
	}
	if site.key != key {
		return token.NewError(at, "cannot merge conditional branches returning %s and %s", site.desc, desc).
			WithNote(site.anchor, "previously returned %s", site.desc)
	}
	return nil
}

func (s *Specializer) describeKeys(keys []ir.Value) string {
	if len(keys) <= 1 {
		return "nothing"
	}
	parts := make([]string, 0, len(keys)-1)
	for _, k := range keys[1:] {
		parts = append(parts, s.arena.TypeOf(k).String())
	}
	return strings.Join(parts, " ")
}

// evaluateBody substitutes the bindings of frame into a template body.
func (s *Specializer) evaluateBody(frame ir.FrameID, src *ir.Body) (ir.Body, error) {
	dst := ir.Body{Anchor: src.Anchor}
	enter, err := s.evaluate(frame, src.Enter, false, src.Anchor)
	if err != nil {
		return dst, err
	}
	if len(enter) == 0 {
		return dst, token.NewError(src.Anchor, "nothing to call")
	}
	dst.Enter = enter[0]
	for i, arg := range src.Args {
		vs, err := s.evaluate(frame, arg, i == len(src.Args)-1, src.Anchor)
		if err != nil {
			return dst, err
		}
		dst.Args = append(dst.Args, vs...)
	}
	return dst, nil
}

// evaluate resolves one template value in frame. Template labels become
// closures, template parameters their bound values and globals whatever the
// scope chain binds them to. A variadic parameter in last position forwards
// all of its values.
func (s *Specializer) evaluate(frame ir.FrameID, v ir.Value, last bool, at token.Anchor) ([]ir.Value, error) {
	a := s.arena
	switch v := v.(type) {
	case ir.LabelRef:
		l := a.Label(v.ID)
		if !l.IsTemplate() {
			return []ir.Value{v}, nil
		}
		c := a.Closure(l.ID, s.closureFrame(frame, l))
		return []ir.Value{ir.ClosureRef{ID: c}}, nil
	case ir.ParamRef:
		p := a.Param(v.ID)
		if !a.Label(p.Label).IsTemplate() {
			return []ir.Value{v}, nil
		}
		bound := s.findParentFrame(frame, p.Label)
		if !bound.IsValid() {
			return nil, token.NewError(at, "parameter %s is unbound", a.FormatValue(v))
		}
		args := a.Frame(bound).Args
		if p.Index >= len(args) {
			if p.Variadic && last {
				return nil, nil
			}
			return []ir.Value{ir.None{}}, nil
		}
		if p.Variadic && last {
			return append([]ir.Value(nil), args[p.Index:]...), nil
		}
		return []ir.Value{args[p.Index]}, nil
	case ir.Global:
		name := a.Symbols.Name(v.Name)
		bound, ok := scope.Get(s.globals, name)
		if !ok {
			return nil, token.NewError(v.Anchor, "unbound name %s", name)
		}
		if _, again := bound.(ir.Global); again {
			return nil, token.NewError(v.Anchor, "name %s is bound to itself", name)
		}
		return s.evaluate(frame, bound, last, v.Anchor)
	}
	return []ir.Value{v}, nil
}

// closureFrame picks the frame a template label is captured in: the frame
// of the label itself when it refers to itself, else the frame of its
// enclosing template. Top-level templates are captured by the root frame.
func (s *Specializer) closureFrame(frame ir.FrameID, l *ir.Label) ir.FrameID {
	if top := s.findParentFrame(frame, l.ID); top.IsValid() {
		return top
	}
	if l.Scope.IsValid() {
		if top := s.findParentFrame(frame, l.Scope); top.IsValid() {
			return top
		}
		return frame
	}
	return s.arena.Root()
}

func (s *Specializer) findParentFrame(frame ir.FrameID, tmpl ir.LabelID) ir.FrameID {
	for id := frame; id.IsValid(); id = s.arena.Frame(id).Parent {
		if s.arena.Frame(id).Template == tmpl {
			return id
		}
	}
	return ir.FrameID{}
}
