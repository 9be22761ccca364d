// Package symbol interns names. Symbols are small integers that compare by
// value; the zero Symbol is the unnamed symbol.
package symbol

// Symbol identifies an interned name within a Table.
type Symbol uint32

// Unnamed is the sentinel for anonymous labels and parameters.
const Unnamed Symbol = 0

func (s Symbol) IsValid() bool { return s != Unnamed }

// Table maps names to symbols and back. A Table belongs to one compilation.
type Table struct {
	names []string
	ids   map[string]Symbol
}

func NewTable() *Table {
	return &Table{
		names: []string{""},
		ids:   map[string]Symbol{"": Unnamed},
	}
}

// Intern returns the symbol for name, allocating it on first use.
func (t *Table) Intern(name string) Symbol {
	if s, ok := t.ids[name]; ok {
		return s
	}
	s := Symbol(len(t.names))
	t.names = append(t.names, name)
	t.ids[name] = s
	return s
}

// Lookup returns the symbol for name without allocating.
func (t *Table) Lookup(name string) (Symbol, bool) {
	s, ok := t.ids[name]
	return s, ok
}

func (t *Table) Name(s Symbol) string {
	if int(s) >= len(t.names) {
		return ""
	}
	return t.names[s]
}

func (t *Table) Len() int { return len(t.names) - 1 }
