package ast

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/thiremani/cpsc/token"
)

// The base Node interface
type Node interface {
	Tok() token.Token
	String() string
}

// All top-level forms implement this
type Statement interface {
	Node
	statementNode()
}

// All values implement this
type Expression interface {
	Node
	expressionNode()
}

// All type expressions implement this
type TypeExpr interface {
	Node
	typeNode()
}

type Program struct {
	File       string
	Statements []Statement
}

func (p *Program) Tok() token.Token {
	if len(p.Statements) > 0 {
		return p.Statements[0].Tok()
	}
	return token.Token{Type: token.EOF}
}

func (p *Program) String() string {
	var out bytes.Buffer
	for i, s := range p.Statements {
		if i > 0 {
			out.WriteString("\n")
		}
		out.WriteString(s.String())
	}
	return out.String()
}

func list(head string, nodes ...Node) string {
	parts := make([]string, 0, len(nodes)+1)
	if head != "" {
		parts = append(parts, head)
	}
	for _, n := range nodes {
		parts = append(parts, n.String())
	}
	return "(" + strings.Join(parts, " ") + ")"
}

type LabelKind int

const (
	FuncLabel LabelKind = iota
	BlockLabel
	MergeLabel
)

var labelKeywords = [...]string{
	FuncLabel:  "fn",
	BlockLabel: "block",
	MergeLabel: "merge",
}

func (k LabelKind) String() string { return labelKeywords[k] }

// LookupLabelKind maps a form keyword to its label kind.
func LookupLabelKind(keyword string) (LabelKind, bool) {
	for k, kw := range labelKeywords {
		if kw == keyword {
			return LabelKind(k), true
		}
	}
	return 0, false
}

type Param struct {
	Token    token.Token // the name
	Name     string
	Type     TypeExpr
	Variadic bool
}

func (p *Param) Tok() token.Token { return p.Token }
func (p *Param) String() string {
	s := p.Name
	if p.Type != nil {
		s += ":" + p.Type.String()
	}
	if p.Variadic {
		s += "..."
	}
	return s
}

// LabelLiteral is a label template: a top-level form or a value nested in
// a body.
type LabelLiteral struct {
	Token  token.Token // the fn, block or merge keyword
	Kind   LabelKind
	Name   *Identifier
	Params []*Param
	Body   *CallExpression
}

func (ll *LabelLiteral) statementNode()   {}
func (ll *LabelLiteral) expressionNode()  {}
func (ll *LabelLiteral) Tok() token.Token { return ll.Token }
func (ll *LabelLiteral) String() string {
	params := make([]Node, len(ll.Params))
	for i, p := range ll.Params {
		params[i] = p
	}
	return "(" + ll.Kind.String() + " " + ll.Name.String() + " " + list("", params...) + " " + ll.Body.String() + ")"
}

// ExternStatement declares a foreign function.
type ExternStatement struct {
	Token    token.Token // the extern keyword
	Name     *Identifier
	Type     *FuncType
	Pure     bool
	Variadic bool
}

func (es *ExternStatement) statementNode()   {}
func (es *ExternStatement) Tok() token.Token { return es.Token }
func (es *ExternStatement) String() string {
	var out bytes.Buffer
	out.WriteString("(extern ")
	out.WriteString(es.Name.String())
	out.WriteString(" ")
	out.WriteString(es.Type.String())
	if es.Pure {
		out.WriteString(" pure")
	}
	if es.Variadic {
		out.WriteString(" variadic")
	}
	out.WriteString(")")
	return out.String()
}

// CallExpression is a label body: enter followed by its arguments, the
// first of which is the continuation.
type CallExpression struct {
	Token token.Token // the ( token
	Enter Expression
	Args  []Expression
}

func (ce *CallExpression) expressionNode()  {}
func (ce *CallExpression) Tok() token.Token { return ce.Token }
func (ce *CallExpression) String() string {
	nodes := make([]Node, 0, len(ce.Args)+1)
	nodes = append(nodes, ce.Enter)
	for _, a := range ce.Args {
		nodes = append(nodes, a)
	}
	return list("", nodes...)
}

type Identifier struct {
	Token token.Token
	Value string
}

func (i *Identifier) expressionNode()  {}
func (i *Identifier) Tok() token.Token { return i.Token }
func (i *Identifier) String() string   { return i.Value }

// IntegerLiteral holds the two's complement bits of the literal.
type IntegerLiteral struct {
	Token    token.Token
	Bits     uint64
	Negative bool
	Type     TypeExpr
}

func (il *IntegerLiteral) expressionNode()  {}
func (il *IntegerLiteral) Tok() token.Token { return il.Token }
func (il *IntegerLiteral) String() string {
	if il.Type != nil {
		return il.Token.Literal + ":" + il.Type.String()
	}
	return il.Token.Literal
}

type FloatLiteral struct {
	Token token.Token
	Value float64
	Type  TypeExpr
}

func (fl *FloatLiteral) expressionNode()  {}
func (fl *FloatLiteral) Tok() token.Token { return fl.Token }
func (fl *FloatLiteral) String() string {
	if fl.Type != nil {
		return fl.Token.Literal + ":" + fl.Type.String()
	}
	return fl.Token.Literal
}

type StringLiteral struct {
	Token token.Token
	Value string
}

func (sl *StringLiteral) expressionNode()  {}
func (sl *StringLiteral) Tok() token.Token { return sl.Token }
func (sl *StringLiteral) String() string   { return strconv.Quote(sl.Value) }

// TypeLiteral is a type used as a value: (type T).
type TypeLiteral struct {
	Token token.Token
	Type  TypeExpr
}

func (tl *TypeLiteral) expressionNode()  {}
func (tl *TypeLiteral) Tok() token.Token { return tl.Token }
func (tl *TypeLiteral) String() string   { return list("type", tl.Type) }

// SymbolLiteral is a quoted name: (sym NAME).
type SymbolLiteral struct {
	Token token.Token
	Name  string
}

func (sl *SymbolLiteral) expressionNode()  {}
func (sl *SymbolLiteral) Tok() token.Token { return sl.Token }
func (sl *SymbolLiteral) String() string   { return "(sym " + sl.Name + ")" }

// Types

type TypeName struct {
	Token token.Token
	Name  string
}

func (tn *TypeName) typeNode()        {}
func (tn *TypeName) Tok() token.Token { return tn.Token }
func (tn *TypeName) String() string   { return tn.Name }

// CompositeType is (ptr T), (array T N), (vector T N), (tuple T...),
// (union T...) or (return T...).
type CompositeType struct {
	Token token.Token // the head
	Head  string
	Elems []TypeExpr
	Count uint64
}

func (ct *CompositeType) typeNode()        {}
func (ct *CompositeType) Tok() token.Token { return ct.Token }
func (ct *CompositeType) String() string {
	nodes := make([]Node, len(ct.Elems))
	for i, e := range ct.Elems {
		nodes[i] = e
	}
	s := list(ct.Head, nodes...)
	if ct.Head == "array" || ct.Head == "vector" {
		s = s[:len(s)-1] + " " + strconv.FormatUint(ct.Count, 10) + ")"
	}
	return s
}

type FuncType struct {
	Token  token.Token // the fn keyword
	Return TypeExpr
	Params []TypeExpr
}

func (ft *FuncType) typeNode()        {}
func (ft *FuncType) Tok() token.Token { return ft.Token }
func (ft *FuncType) String() string {
	params := make([]Node, len(ft.Params))
	for i, p := range ft.Params {
		params[i] = p
	}
	return "(fn " + ft.Return.String() + " " + list("", params...) + ")"
}
