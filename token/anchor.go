package token

import (
	"fmt"
	"strings"
)

// Anchor is a source position. The zero Anchor means "unknown".
type Anchor struct {
	File   string
	Line   int // 1-based
	Column int // 1-based, in runes
}

func (a Anchor) IsValid() bool {
	return a.Line > 0
}

func (a Anchor) String() string {
	if !a.IsValid() {
		return "<unknown>"
	}
	file := a.File
	if file == "" {
		file = "<string>"
	}
	return fmt.Sprintf("%s:%d:%d", file, a.Line, a.Column)
}

// SourceMap keeps the text of every compiled file so diagnostics can quote
// the offending line.
type SourceMap struct {
	files map[string][]string
}

func NewSourceMap() *SourceMap {
	return &SourceMap{files: make(map[string][]string)}
}

func (sm *SourceMap) Add(file, src string) {
	sm.files[file] = strings.Split(src, "\n")
}

// Line returns the 1-based line n of file.
func (sm *SourceMap) Line(file string, n int) (string, bool) {
	if sm == nil {
		return "", false
	}
	lines, ok := sm.files[file]
	if !ok || n < 1 || n > len(lines) {
		return "", false
	}
	return strings.TrimRight(lines[n-1], "\r"), true
}

// Snippet renders the source line of a with a caret under its column.
func (sm *SourceMap) Snippet(a Anchor) string {
	line, ok := sm.Line(a.File, a.Line)
	if !ok {
		return ""
	}
	col := a.Column
	if col < 1 {
		col = 1
	}
	pad := make([]rune, 0, col-1)
	for i, r := range []rune(line) {
		if i >= col-1 {
			break
		}
		if r == '\t' {
			pad = append(pad, '\t')
		} else {
			pad = append(pad, ' ')
		}
	}
	return "    " + line + "\n    " + string(pad) + "^\n"
}
