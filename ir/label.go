package ir

import (
	"fmt"

	"github.com/thiremani/cpsc/symbol"
	"github.com/thiremani/cpsc/token"
	"github.com/thiremani/cpsc/types"
)

type Flags uint8

const (
	// FlagInline marks a template whose instances become basic blocks of the
	// caller instead of functions.
	FlagInline Flags = 1 << iota
	// FlagMerge marks an inline template that joins conditional branches;
	// all of its instances under one parent must agree on argument types.
	FlagMerge
	// FlagReentrant marks a function instance that calls itself.
	FlagReentrant
	// FlagLoop marks an instance that is part of a recursive component.
	FlagLoop
)

// Body is the single call a label ends with: enter(args...). Args[0] is the
// continuation receiving the result.
type Body struct {
	Anchor    token.Anchor
	Enter     Value
	Args      []Value
	Complete  bool // enter and args are fully typed
	Optimized bool // successors were scheduled
}

// Cont returns the outgoing continuation, or None.
func (b *Body) Cont() Value {
	if len(b.Args) == 0 {
		return None{}
	}
	return b.Args[0]
}

// SetCont replaces the outgoing continuation.
func (b *Body) SetCont(v Value) {
	if len(b.Args) == 0 {
		b.Args = append(b.Args, v)
		return
	}
	b.Args[0] = v
}

type Label struct {
	ID       LabelID
	Name     symbol.Symbol
	Anchor   token.Anchor
	Params   []ParamID
	Body     Body
	Flags    Flags
	Original LabelID // template this instance was derived from
	Frame    FrameID // frame this instance belongs to
	Scope    LabelID // enclosing template of a nested template
}

func (l *Label) Has(f Flags) bool { return l.Flags&f != 0 }
func (l *Label) Set(f Flags) { l.Flags |= f }

func (l *Label) IsInline() bool { return l.Has(FlagInline) }
func (l *Label) IsMerge() bool { return l.Has(FlagMerge) }
func (l *Label) IsReentrant() bool { return l.Has(FlagReentrant) }
func (l *Label) IsTemplate() bool { return !l.Original.IsValid() }

// Parameter is owned by exactly one label. Its type is written once.
type Parameter struct {
	ID       ParamID
	Label    LabelID
	Index    int
	Name     symbol.Symbol
	Anchor   token.Anchor
	Type     types.Type
	Variadic bool
}

func (p *Parameter) IsTyped() bool {
	return p.Type != nil && p.Type.Kind() != types.UnknownKind
}

// RetypeError reports an attempt to change the type of a typed parameter.
type RetypeError struct {
	Old types.Type
	New types.Type
}

func (e *RetypeError) Error() string {
	return fmt.Sprintf("attempting to retype parameter of type %s as %s", e.Old, e.New)
}

// SetType types p. Setting the type it already has is a no-op.
func (p *Parameter) SetType(t types.Type) error {
	if !p.IsTyped() {
		p.Type = t
		return nil
	}
	if p.Type != t {
		return &RetypeError{Old: p.Type, New: t}
	}
	return nil
}

// Closure is a template label captured together with the frame in which it
// was referenced. Closures are interned by the arena.
type Closure struct {
	Label LabelID
	Frame FrameID
}

// Frame is one activation of a template during specialization.
type Frame struct {
	ID          FrameID
	Parent      FrameID
	Template    LabelID
	Instance    LabelID
	Args        []Value // bound to the template's parameters, by index
	LoopCount   int
	InlineMerge bool

	children map[string]FrameID
}

func (f *Frame) IsRoot() bool { return !f.Parent.IsValid() }

// Child looks up a memoized child frame.
func (f *Frame) Child(key string) (FrameID, bool) {
	id, ok := f.children[key]
	return id, ok
}

func (f *Frame) SetChild(key string, id FrameID) {
	f.children[key] = id
}

func (f *Frame) NumChildren() int { return len(f.children) }

// Children returns the memoized child frames in no particular order.
func (f *Frame) Children() []FrameID {
	out := make([]FrameID, 0, len(f.children))
	for _, id := range f.children {
		out = append(out, id)
	}
	return out
}

// Cont returns the continuation parameter of l.
func (a *Arena) Cont(l *Label) (*Parameter, bool) {
	if len(l.Params) == 0 {
		return nil, false
	}
	return a.Param(l.Params[0]), true
}

// IsBasicBlockLike reports whether l has no activation of its own: it has
// no parameters or its continuation is typed Nothing.
func (a *Arena) IsBasicBlockLike(l *Label) bool {
	p, ok := a.Cont(l)
	return !ok || p.Type.Kind() == types.NothingKind
}

// IsFunction reports whether l is a function entry.
func (a *Arena) IsFunction(l *Label) bool {
	return !a.IsBasicBlockLike(l)
}

// IsImportant reports whether l must survive jump collapsing.
func (a *Arena) IsImportant(l *Label) bool {
	return l.IsMerge() || l.IsReentrant()
}

// ReturnType is the type of l's continuation, or nil for basic blocks and
// functions whose return is still unknown.
func (a *Arena) ReturnType(l *Label) *types.ReturnLabel {
	p, ok := a.Cont(l)
	if !ok {
		return nil
	}
	rl, _ := p.Type.(*types.ReturnLabel)
	return rl
}

// ParamTypes lists the types of l's parameters after the continuation.
func (a *Arena) ParamTypes(l *Label) []types.Type {
	if len(l.Params) <= 1 {
		return nil
	}
	out := make([]types.Type, 0, len(l.Params)-1)
	for _, id := range l.Params[1:] {
		out = append(out, a.Param(id).Type)
	}
	return out
}
