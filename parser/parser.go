package parser

import (
	"strconv"

	"github.com/thiremani/cpsc/ast"
	"github.com/thiremani/cpsc/lexer"
	"github.com/thiremani/cpsc/token"
)

type Parser struct {
	l      *lexer.Lexer
	errors []*token.CompileError

	curToken  token.Token
	peekToken token.Token
	depth     int // open parentheses up to and including curToken
}

func New(l *lexer.Lexer) *Parser {
	p := &Parser{l: l}

	// Read two tokens, so curToken and peekToken are both set
	p.nextToken()
	p.nextToken()

	return p
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
	switch p.curToken.Type {
	case token.LPAREN:
		p.depth++
	case token.RPAREN:
		p.depth = max(p.depth-1, 0)
	}
}

func (p *Parser) curTokenIs(t token.TokenType) bool {
	return p.curToken.Type == t
}

func (p *Parser) peekTokenIs(t token.TokenType) bool {
	return p.peekToken.Type == t
}

func (p *Parser) expectPeek(t token.TokenType) bool {
	if p.peekTokenIs(t) {
		p.nextToken()
		return true
	}
	p.peekError(t)
	return false
}

func (p *Parser) Errors() []*token.CompileError {
	return p.errors
}

func (p *Parser) errorf(tok token.Token, format string, args ...any) *token.CompileError {
	err := token.NewError(tok.Anchor, format, args...)
	p.errors = append(p.errors, err)
	return err
}

func (p *Parser) peekError(t token.TokenType) {
	p.errorf(p.peekToken, "expected next token to be %s, got %s instead", t, p.peekToken)
}

// ParseProgram reads top-level forms until EOF. A malformed form is
// reported and skipped.
func (p *Parser) ParseProgram(file string) *ast.Program {
	program := &ast.Program{File: file}

	for !p.curTokenIs(token.EOF) {
		prevLen := len(p.errors)
		stmt := p.parseStatement()
		if stmt != nil && len(p.errors) == prevLen {
			program.Statements = append(program.Statements, stmt)
			p.nextToken()
			continue
		}
		p.recover()
	}

	return program
}

// recover skips to the start of the next top-level form.
func (p *Parser) recover() {
	p.nextToken()
	for !p.curTokenIs(token.EOF) && !(p.curTokenIs(token.LPAREN) && p.depth == 1) {
		p.nextToken()
	}
}

func (p *Parser) parseStatement() ast.Statement {
	if !p.curTokenIs(token.LPAREN) {
		p.errorf(p.curToken, "expected a top-level form, got %s", p.curToken)
		return nil
	}
	if !p.expectPeek(token.IDENT) {
		return nil
	}
	if p.curToken.Literal == "extern" {
		return p.parseExtern()
	}
	kind, ok := ast.LookupLabelKind(p.curToken.Literal)
	if !ok {
		p.errorf(p.curToken, "unknown top-level form %q", p.curToken.Literal)
		return nil
	}
	if lit := p.parseLabel(kind); lit != nil {
		return lit
	}
	return nil
}

// parseLabel parses the rest of a label form. curToken is its keyword; on
// return it is the closing parenthesis.
func (p *Parser) parseLabel(kind ast.LabelKind) *ast.LabelLiteral {
	lit := &ast.LabelLiteral{Token: p.curToken, Kind: kind}

	if !p.expectPeek(token.IDENT) {
		return nil
	}
	lit.Name = &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}

	if !p.expectPeek(token.LPAREN) {
		return nil
	}
	params, ok := p.parseParams()
	if !ok {
		return nil
	}
	lit.Params = params

	if !p.expectPeek(token.LPAREN) {
		return nil
	}
	lit.Body = p.parseCall()
	if lit.Body == nil {
		return nil
	}

	if !p.expectPeek(token.RPAREN) {
		return nil
	}
	return lit
}

func (p *Parser) parseParams() ([]*ast.Param, bool) {
	params := []*ast.Param{}
	for !p.peekTokenIs(token.RPAREN) {
		if !p.expectPeek(token.IDENT) {
			return nil, false
		}
		param := &ast.Param{Token: p.curToken, Name: p.curToken.Literal}
		if p.peekTokenIs(token.COLON) {
			p.nextToken()
			p.nextToken()
			param.Type = p.parseType()
			if param.Type == nil {
				return nil, false
			}
		}
		if p.peekTokenIs(token.ELLIPSIS) {
			p.nextToken()
			param.Variadic = true
		}
		params = append(params, param)
	}
	p.nextToken()
	return params, true
}

// parseCall parses (ENTER ARG...). curToken is the opening parenthesis.
func (p *Parser) parseCall() *ast.CallExpression {
	call := &ast.CallExpression{Token: p.curToken}
	if p.peekTokenIs(token.RPAREN) {
		p.errorf(p.peekToken, "empty body")
		return nil
	}
	p.nextToken()
	call.Enter = p.parseValue()
	if call.Enter == nil {
		return nil
	}
	for !p.peekTokenIs(token.RPAREN) {
		if p.peekTokenIs(token.EOF) {
			p.peekError(token.RPAREN)
			return nil
		}
		p.nextToken()
		arg := p.parseValue()
		if arg == nil {
			return nil
		}
		call.Args = append(call.Args, arg)
	}
	p.nextToken()
	return call
}

func (p *Parser) parseValue() ast.Expression {
	switch p.curToken.Type {
	case token.IDENT:
		return &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}
	case token.INT:
		return p.parseIntegerLiteral()
	case token.FLOAT:
		return p.parseFloatLiteral()
	case token.STRING:
		return &ast.StringLiteral{Token: p.curToken, Value: p.curToken.Literal}
	case token.LPAREN:
		return p.parseCompoundValue()
	}
	p.errorf(p.curToken, "expected a value, got %s", p.curToken)
	return nil
}

func (p *Parser) parseCompoundValue() ast.Expression {
	if !p.expectPeek(token.IDENT) {
		return nil
	}
	head := p.curToken
	switch head.Literal {
	case "type":
		p.nextToken()
		t := p.parseType()
		if t == nil || !p.expectPeek(token.RPAREN) {
			return nil
		}
		return &ast.TypeLiteral{Token: head, Type: t}
	case "sym":
		if !p.expectPeek(token.IDENT) {
			return nil
		}
		name := p.curToken.Literal
		if !p.expectPeek(token.RPAREN) {
			return nil
		}
		return &ast.SymbolLiteral{Token: head, Name: name}
	}
	if kind, ok := ast.LookupLabelKind(head.Literal); ok {
		if lit := p.parseLabel(kind); lit != nil {
			return lit
		}
		return nil
	}
	p.errorf(head, "expected a label, (type T) or (sym NAME), got (%s ...)", head.Literal)
	return nil
}

func (p *Parser) parseIntegerLiteral() ast.Expression {
	lit := &ast.IntegerLiteral{Token: p.curToken}

	text := p.curToken.Literal
	if v, err := strconv.ParseInt(text, 0, 64); err == nil {
		lit.Bits = uint64(v)
		lit.Negative = v < 0
	} else if u, err := strconv.ParseUint(text, 0, 64); err == nil {
		lit.Bits = u
	} else {
		p.errorf(p.curToken, "could not parse %q as integer", text)
		return nil
	}

	if !p.parseSuffix(&lit.Type) {
		return nil
	}
	return lit
}

func (p *Parser) parseFloatLiteral() ast.Expression {
	lit := &ast.FloatLiteral{Token: p.curToken}

	value, err := strconv.ParseFloat(p.curToken.Literal, 64)
	if err != nil {
		p.errorf(p.curToken, "could not parse %q as float", p.curToken.Literal)
		return nil
	}
	lit.Value = value

	if !p.parseSuffix(&lit.Type) {
		return nil
	}
	return lit
}

// parseSuffix reads an optional :TYPE after a literal.
func (p *Parser) parseSuffix(dst *ast.TypeExpr) bool {
	if !p.peekTokenIs(token.COLON) {
		return true
	}
	p.nextToken()
	p.nextToken()
	*dst = p.parseType()
	return *dst != nil
}

// parseType parses a type expression starting at curToken.
func (p *Parser) parseType() ast.TypeExpr {
	switch p.curToken.Type {
	case token.IDENT:
		return &ast.TypeName{Token: p.curToken, Name: p.curToken.Literal}
	case token.LPAREN:
	default:
		p.errorf(p.curToken, "expected a type, got %s", p.curToken)
		return nil
	}

	if !p.expectPeek(token.IDENT) {
		return nil
	}
	head := p.curToken
	switch head.Literal {
	case "fn":
		if ft := p.parseFuncType(); ft != nil {
			return ft
		}
		return nil
	case "ptr":
		p.nextToken()
		elem := p.parseType()
		if elem == nil || !p.expectPeek(token.RPAREN) {
			return nil
		}
		return &ast.CompositeType{Token: head, Head: head.Literal, Elems: []ast.TypeExpr{elem}}
	case "array", "vector":
		p.nextToken()
		elem := p.parseType()
		if elem == nil || !p.expectPeek(token.INT) {
			return nil
		}
		count, err := strconv.ParseUint(p.curToken.Literal, 0, 64)
		if err != nil {
			p.errorf(p.curToken, "invalid element count %s", p.curToken.Literal)
			return nil
		}
		if !p.expectPeek(token.RPAREN) {
			return nil
		}
		return &ast.CompositeType{Token: head, Head: head.Literal, Elems: []ast.TypeExpr{elem}, Count: count}
	case "tuple", "union", "return":
		elems, ok := p.parseTypeList()
		if !ok {
			return nil
		}
		return &ast.CompositeType{Token: head, Head: head.Literal, Elems: elems}
	}
	p.errorf(head, "unknown type constructor %s", head.Literal)
	return nil
}

// parseTypeList reads types up to and including the closing parenthesis.
func (p *Parser) parseTypeList() ([]ast.TypeExpr, bool) {
	elems := []ast.TypeExpr{}
	for !p.peekTokenIs(token.RPAREN) {
		if p.peekTokenIs(token.EOF) {
			p.peekError(token.RPAREN)
			return nil, false
		}
		p.nextToken()
		t := p.parseType()
		if t == nil {
			return nil, false
		}
		elems = append(elems, t)
	}
	p.nextToken()
	return elems, true
}

// parseFuncType parses the rest of (fn RET (PARAM...)).
func (p *Parser) parseFuncType() *ast.FuncType {
	ft := &ast.FuncType{Token: p.curToken}
	p.nextToken()
	ft.Return = p.parseType()
	if ft.Return == nil || !p.expectPeek(token.LPAREN) {
		return nil
	}
	params, ok := p.parseTypeList()
	if !ok {
		return nil
	}
	ft.Params = params
	if !p.expectPeek(token.RPAREN) {
		return nil
	}
	return ft
}

// parseExtern parses the rest of (extern NAME (fn RET (PARAM...)) FLAG...).
func (p *Parser) parseExtern() ast.Statement {
	stmt := &ast.ExternStatement{Token: p.curToken}
	if !p.expectPeek(token.IDENT) {
		return nil
	}
	stmt.Name = &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}

	if !p.expectPeek(token.LPAREN) {
		return nil
	}
	if !p.expectPeek(token.IDENT) {
		return nil
	}
	if p.curToken.Literal != "fn" {
		p.errorf(p.curToken, "extern %s needs a function type", stmt.Name.Value)
		return nil
	}
	stmt.Type = p.parseFuncType()
	if stmt.Type == nil {
		return nil
	}

	for !p.peekTokenIs(token.RPAREN) {
		if !p.expectPeek(token.IDENT) {
			return nil
		}
		switch p.curToken.Literal {
		case "pure":
			stmt.Pure = true
		case "variadic":
			stmt.Variadic = true
		default:
			p.errorf(p.curToken, "unknown extern flag %s", p.curToken.Literal)
			return nil
		}
	}
	p.nextToken()
	return stmt
}

func (p *Parser) checkNoDuplicates(params []*ast.Param) {
	seen := make(map[string]bool, len(params))
	for i, param := range params {
		if param.Name == "_" {
			continue
		}
		if seen[param.Name] {
			p.errorf(param.Token, "duplicate parameter %s", param.Name)
		}
		seen[param.Name] = true
		if param.Variadic && i != len(params)-1 {
			p.errorf(param.Token, "variadic parameter %s must come last", param.Name)
		}
	}
}
