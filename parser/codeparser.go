package parser

import (
	"github.com/thiremani/cpsc/ast"
	"github.com/thiremani/cpsc/lexer"
	"github.com/thiremani/cpsc/token"
)

// CodeParser parses a source file and checks its top-level definitions:
// names are unique across the file and parameter lists are well formed.
type CodeParser struct {
	p     *Parser
	file  string
	names map[string]token.Token
}

func NewCodeParser(file string, l *lexer.Lexer) *CodeParser {
	return &CodeParser{
		p:     New(l),
		file:  file,
		names: make(map[string]token.Token),
	}
}

func (cp *CodeParser) Errors() []*token.CompileError {
	return cp.p.Errors()
}

// Parse returns the program, or nil if any error was reported.
func (cp *CodeParser) Parse() *ast.Program {
	program := cp.p.ParseProgram(cp.file)
	for _, stmt := range program.Statements {
		switch s := stmt.(type) {
		case *ast.LabelLiteral:
			cp.addDefinition(s.Name)
			cp.checkLabel(s)
		case *ast.ExternStatement:
			cp.addDefinition(s.Name)
		}
	}

	if len(cp.p.errors) > 0 {
		return nil
	}
	return program
}

func (cp *CodeParser) addDefinition(id *ast.Identifier) {
	if prev, ok := cp.names[id.Value]; ok {
		cp.p.errorf(id.Token, "global redeclaration of %s", id.Value).
			WithNote(prev.Anchor, "previously declared here")
		return
	}
	cp.names[id.Value] = id.Token
}

// checkLabel validates the parameter lists of lit and its nested labels.
func (cp *CodeParser) checkLabel(lit *ast.LabelLiteral) {
	cp.p.checkNoDuplicates(lit.Params)
	for _, v := range append([]ast.Expression{lit.Body.Enter}, lit.Body.Args...) {
		if nested, ok := v.(*ast.LabelLiteral); ok {
			cp.checkLabel(nested)
		}
	}
}
