package ir

import (
	"fmt"
	"io"
	"strings"
)

// Successors lists the labels l refers to directly, in enter/argument order.
func (a *Arena) Successors(l *Label) []LabelID {
	var out []LabelID
	visit := func(v Value) {
		if ref, ok := v.(LabelRef); ok {
			out = append(out, ref.ID)
		}
	}
	visit(l.Body.Enter)
	for _, arg := range l.Body.Args {
		visit(arg)
	}
	return out
}

// Reachable returns entry and every label reachable from it, depth first.
func (a *Arena) Reachable(entry LabelID) []LabelID {
	seen := map[LabelID]bool{entry: true}
	order := []LabelID{entry}
	stack := []LabelID{entry}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		succ := a.Successors(a.Label(id))
		for i := len(succ) - 1; i >= 0; i-- {
			s := succ[i]
			if seen[s] {
				continue
			}
			seen[s] = true
			order = append(order, s)
			stack = append(stack, s)
		}
	}
	return order
}

// FormatLabelHeader renders "name#n (params) flags".
func (a *Arena) FormatLabelHeader(l *Label) string {
	var sb strings.Builder
	sb.WriteString(a.FormatValue(LabelRef{ID: l.ID}))
	sb.WriteString(" (")
	for i, pid := range l.Params {
		if i > 0 {
			sb.WriteString(" ")
		}
		p := a.Param(pid)
		sb.WriteString(a.FormatValue(ParamRef{ID: pid}))
		if p.Variadic {
			sb.WriteString("...")
		}
		if p.IsTyped() {
			sb.WriteString(":")
			sb.WriteString(p.Type.String())
		}
	}
	sb.WriteString(")")
	var flags []string
	if l.IsInline() {
		flags = append(flags, "inline")
	}
	if l.IsMerge() {
		flags = append(flags, "merge")
	}
	if l.IsReentrant() {
		flags = append(flags, "reentrant")
	}
	if l.Has(FlagLoop) {
		flags = append(flags, "loop")
	}
	if len(flags) > 0 {
		sb.WriteString(" [" + strings.Join(flags, " ") + "]")
	}
	return sb.String()
}

// FormatBody renders "enter arg0 arg1 ...".
func (a *Arena) FormatBody(b *Body) string {
	if b.Enter == nil {
		return "<empty>"
	}
	parts := []string{a.FormatValue(b.Enter)}
	for _, arg := range b.Args {
		parts = append(parts, a.FormatValue(arg))
	}
	return strings.Join(parts, " ")
}

// Stream writes the graph reachable from entry, one label per stanza.
func (a *Arena) Stream(w io.Writer, entry LabelID) error {
	for _, id := range a.Reachable(entry) {
		l := a.Label(id)
		if _, err := fmt.Fprintf(w, "%s\n    -> %s\n", a.FormatLabelHeader(l), a.FormatBody(&l.Body)); err != nil {
			return err
		}
	}
	return nil
}

// Dump returns the stream of entry as a string.
func (a *Arena) Dump(entry LabelID) string {
	var sb strings.Builder
	_ = a.Stream(&sb, entry)
	return sb.String()
}
