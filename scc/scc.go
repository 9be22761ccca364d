// Package scc computes strongly connected components of a label graph with
// the path-based algorithm, in time linear in the number of edges.
package scc

import (
	"fmt"
	"io"

	"github.com/thiremani/cpsc/ir"
)

// Group is one strongly connected component. Labels are listed in the
// order they were popped off the path stack.
type Group struct {
	Index  int
	Labels []ir.LabelID
}

// Builder holds the components reachable from one entry label. Groups are
// numbered in reverse topological order: a group only reaches groups with a
// smaller or equal index.
type Builder struct {
	arena  *ir.Arena
	groups []Group
	sccOf  map[ir.LabelID]int
	pre    map[ir.LabelID]int
	c      int
	s      []ir.LabelID
	p      []ir.LabelID
}

// Build walks the graph reachable from entry. Edges are the label
// references of a body's enter and arguments.
func Build(a *ir.Arena, entry ir.LabelID) *Builder {
	b := &Builder{
		arena: a,
		sccOf: make(map[ir.LabelID]int),
		pre:   make(map[ir.LabelID]int),
	}
	b.walk(entry)
	return b
}

func (b *Builder) walk(id ir.LabelID) {
	b.pre[id] = b.c
	b.c++
	b.s = append(b.s, id)
	b.p = append(b.p, id)

	for _, w := range b.arena.Successors(b.arena.Label(id)) {
		cw, visited := b.pre[w]
		if !visited {
			b.walk(w)
			continue
		}
		if _, done := b.sccOf[w]; done {
			continue
		}
		for b.pre[b.p[len(b.p)-1]] > cw {
			b.p = b.p[:len(b.p)-1]
		}
	}

	if b.p[len(b.p)-1] != id {
		return
	}
	g := Group{Index: len(b.groups)}
	for {
		q := b.s[len(b.s)-1]
		b.s = b.s[:len(b.s)-1]
		g.Labels = append(g.Labels, q)
		b.sccOf[q] = g.Index
		if q == id {
			break
		}
	}
	b.groups = append(b.groups, g)
	b.p = b.p[:len(b.p)-1]
}

func (b *Builder) Groups() []Group { return b.groups }

func (b *Builder) Contains(id ir.LabelID) bool {
	_, ok := b.sccOf[id]
	return ok
}

// GroupOf returns the component of id. id must be reachable from the entry.
func (b *Builder) GroupOf(id ir.LabelID) *Group {
	i, ok := b.sccOf[id]
	if !ok {
		panic(fmt.Sprintf("scc: label #%d was not walked", id.Index()))
	}
	return &b.groups[i]
}

// IsRecursive reports whether id shares its component with another label.
func (b *Builder) IsRecursive(id ir.LabelID) bool {
	return len(b.GroupOf(id).Labels) > 1
}

// MarkLoops flags every label of a multi-label component with ir.FlagLoop.
func (b *Builder) MarkLoops() {
	for _, g := range b.groups {
		if len(g.Labels) < 2 {
			continue
		}
		for _, id := range g.Labels {
			b.arena.Label(id).Set(ir.FlagLoop)
		}
	}
}

func (b *Builder) Stream(w io.Writer) error {
	for _, g := range b.groups {
		if _, err := fmt.Fprintf(w, "group #%d (%d labels):\n", g.Index, len(g.Labels)); err != nil {
			return err
		}
		for _, id := range g.Labels {
			if _, err := fmt.Fprintf(w, "  %s\n", b.arena.FormatLabelHeader(b.arena.Label(id))); err != nil {
				return err
			}
		}
	}
	return nil
}
