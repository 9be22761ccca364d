// Package ir holds the continuation-passing label graph: template labels
// produced by the expander and the typed instances the specializer derives
// from them. Every object lives in an Arena for the whole compilation and is
// addressed by a generation-tagged handle.
package ir

import (
	"fmt"
	"sync/atomic"

	"github.com/thiremani/cpsc/symbol"
	"github.com/thiremani/cpsc/token"
	"github.com/thiremani/cpsc/types"
)

// ID is a handle into an Arena. The zero ID is invalid. gen ties the handle
// to the arena that allocated it.
type ID[T any] struct {
	index uint32
	gen   uint32
}

func (id ID[T]) IsValid() bool { return id.index != 0 }

// Index is the position of the object within its pool, for naming.
func (id ID[T]) Index() int { return int(id.index) }

type (
	LabelID   = ID[Label]
	ParamID   = ID[Parameter]
	FrameID   = ID[Frame]
	ClosureID = ID[Closure]
)

var arenaGen atomic.Uint32

type pool[T any] struct {
	items []*T
}

func (p *pool[T]) add(gen uint32, v *T) ID[T] {
	if len(p.items) == 0 {
		p.items = append(p.items, nil)
	}
	p.items = append(p.items, v)
	return ID[T]{index: uint32(len(p.items) - 1), gen: gen}
}

func (p *pool[T]) get(gen uint32, id ID[T]) *T {
	if id.gen != gen || id.index == 0 || int(id.index) >= len(p.items) {
		panic(fmt.Sprintf("ir: invalid handle %d/%d for arena generation %d", id.index, id.gen, gen))
	}
	return p.items[id.index]
}

type closureKey struct {
	label uint32
	frame uint32
}

// Arena owns the graph of one compilation.
type Arena struct {
	gen     uint32
	Types   *types.Table
	Symbols *symbol.Table

	labels   pool[Label]
	params   pool[Parameter]
	frames   pool[Frame]
	closures pool[Closure]

	closureIndex map[closureKey]ClosureID
	root         FrameID
}

func NewArena(tt *types.Table, st *symbol.Table) *Arena {
	a := &Arena{
		gen:          arenaGen.Add(1),
		Types:        tt,
		Symbols:      st,
		closureIndex: make(map[closureKey]ClosureID),
	}
	a.root = a.frames.add(a.gen, &Frame{children: make(map[string]FrameID)})
	a.frames.get(a.gen, a.root).ID = a.root
	return a
}

func (a *Arena) Label(id LabelID) *Label { return a.labels.get(a.gen, id) }
func (a *Arena) Param(id ParamID) *Parameter { return a.params.get(a.gen, id) }
func (a *Arena) Frame(id FrameID) *Frame { return a.frames.get(a.gen, id) }
func (a *Arena) ClosureOf(id ClosureID) *Closure { return a.closures.get(a.gen, id) }

// Root is the frame of top-level templates.
func (a *Arena) Root() FrameID { return a.root }

func (a *Arena) NumLabels() int { return max(len(a.labels.items)-1, 0) }

// NewLabel allocates a label named name. Parameters are added with AddParam.
func (a *Arena) NewLabel(name symbol.Symbol, anchor token.Anchor) *Label {
	l := &Label{Name: name, Anchor: anchor}
	l.ID = a.labels.add(a.gen, l)
	l.Body.Anchor = anchor
	return l
}

// AddParam appends a parameter to l. A nil typ means untyped.
func (a *Arena) AddParam(l *Label, name symbol.Symbol, typ types.Type, variadic bool) *Parameter {
	if typ == nil {
		typ = a.Types.Unknown
	}
	p := &Parameter{
		Label:    l.ID,
		Index:    len(l.Params),
		Name:     name,
		Anchor:   l.Anchor,
		Type:     typ,
		Variadic: variadic,
	}
	p.ID = a.params.add(a.gen, p)
	l.Params = append(l.Params, p.ID)
	return p
}

// Closure interns the pair (label, frame).
func (a *Arena) Closure(label LabelID, frame FrameID) ClosureID {
	k := closureKey{label.index, frame.index}
	if id, ok := a.closureIndex[k]; ok {
		return id
	}
	id := a.closures.add(a.gen, &Closure{Label: label, Frame: frame})
	a.closureIndex[k] = id
	return id
}

// NewFrame allocates a child frame of parent instantiating template. It is
// not registered in the parent's memo table.
func (a *Arena) NewFrame(parent FrameID, template LabelID) *Frame {
	f := &Frame{Parent: parent, Template: template, children: make(map[string]FrameID)}
	f.ID = a.frames.add(a.gen, f)
	return f
}

func (a *Arena) LabelName(id LabelID) string {
	l := a.Label(id)
	name := a.Symbols.Name(l.Name)
	if name == "" {
		name = "unnamed"
	}
	return name
}
