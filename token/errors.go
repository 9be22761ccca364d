package token

import (
	"fmt"
	"strings"
)

// Trace is one traceback entry: where evaluation was and in which label.
type Trace struct {
	Anchor Anchor
	Name   string
}

// Note is an additional location attached to an error, e.g. the other side
// of a conflict.
type Note struct {
	Anchor Anchor
	Msg    string
}

// CompileError is a user-facing compile error. Trace is ordered innermost
// first; entries are appended while the error propagates outwards.
type CompileError struct {
	Anchor Anchor
	Msg    string
	Notes  []Note
	Trace  []Trace
}

func NewError(a Anchor, format string, args ...any) *CompileError {
	return &CompileError{Anchor: a, Msg: fmt.Sprintf(format, args...)}
}

func (e *CompileError) Error() string {
	return e.Anchor.String() + ": " + e.Msg
}

func (e *CompileError) WithNote(a Anchor, format string, args ...any) *CompileError {
	e.Notes = append(e.Notes, Note{Anchor: a, Msg: fmt.Sprintf(format, args...)})
	return e
}

// PushTrace records an enclosing evaluation site.
func (e *CompileError) PushTrace(a Anchor, name string) {
	e.Trace = append(e.Trace, Trace{Anchor: a, Name: name})
}

// Format renders the error with source snippets and the traceback. Repeated
// anchors (recursion) are printed once; skipped runs are shown as "<...>".
func (e *CompileError) Format(sm *SourceMap) string {
	var sb strings.Builder
	if len(e.Trace) > 0 {
		sb.WriteString("Traceback (most recent call last):\n")
		visited := make(map[Anchor]bool)
		capped := 0
		for i := len(e.Trace) - 1; i >= 0; i-- {
			tr := e.Trace[i]
			if visited[tr.Anchor] {
				capped++
				continue
			}
			if capped > 0 {
				sb.WriteString("<...>\n")
				capped = 0
			}
			visited[tr.Anchor] = true
			name := tr.Name
			if name == "" {
				name = "unnamed"
			}
			fmt.Fprintf(&sb, "%s in %s\n", tr.Anchor, name)
			sb.WriteString(sm.Snippet(tr.Anchor))
		}
	}
	fmt.Fprintf(&sb, "%s: error: %s\n", e.Anchor, e.Msg)
	sb.WriteString(sm.Snippet(e.Anchor))
	for _, n := range e.Notes {
		fmt.Fprintf(&sb, "%s: note: %s\n", n.Anchor, n.Msg)
		sb.WriteString(sm.Snippet(n.Anchor))
	}
	return sb.String()
}
