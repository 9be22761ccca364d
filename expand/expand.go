// Package expand turns parsed programs into template graphs. Names are
// resolved lexically: parameters and enclosing labels first, then the
// literals true and false, then builtins. Whatever remains becomes an
// ir.Global looked up in the root scope during specialization, so
// top-level definitions may refer to each other in any order.
package expand

import (
	"github.com/thiremani/cpsc/ast"
	"github.com/thiremani/cpsc/ir"
	"github.com/thiremani/cpsc/scope"
	"github.com/thiremani/cpsc/symbol"
	"github.com/thiremani/cpsc/token"
	"github.com/thiremani/cpsc/types"
)

type Expander struct {
	arena   *ir.Arena
	globals []scope.Scope[ir.Value]
	locals  []scope.Scope[ir.Value]
	Errors  []*token.CompileError
}

func New(a *ir.Arena) *Expander {
	return &Expander{
		arena:   a,
		globals: scope.Root[ir.Value](),
	}
}

// Globals is the root scope holding every top-level definition.
func (e *Expander) Globals() []scope.Scope[ir.Value] { return e.globals }

// Label returns the top-level label template called name.
func (e *Expander) Label(name string) (ir.LabelID, bool) {
	v, ok := scope.Get(e.globals, name)
	if !ok {
		return ir.LabelID{}, false
	}
	ref, ok := v.(ir.LabelRef)
	return ref.ID, ok
}

func (e *Expander) errorf(at token.Anchor, format string, args ...any) *token.CompileError {
	err := token.NewError(at, format, args...)
	e.Errors = append(e.Errors, err)
	return err
}

// Expand adds the definitions of prog to the root scope. Errors are
// collected in e.Errors.
func (e *Expander) Expand(prog *ast.Program) {
	for _, stmt := range prog.Statements {
		switch s := stmt.(type) {
		case *ast.LabelLiteral:
			e.locals = scope.Root[ir.Value]()
			l := e.expandLabel(s, nil)
			e.define(s.Name, ir.LabelRef{ID: l.ID})
		case *ast.ExternStatement:
			sig, err := e.funcType(s.Type, s.Variadic, s.Pure)
			if err != nil {
				e.Errors = append(e.Errors, err)
				continue
			}
			e.define(s.Name, ir.Extern{Name: s.Name.Value, Sig: sig})
		default:
			panic("expand: unexpected statement " + stmt.String())
		}
	}
}

func (e *Expander) define(id *ast.Identifier, v ir.Value) {
	if scope.Local(e.globals, id.Value) {
		e.errorf(id.Token.Anchor, "global redeclaration of %s", id.Value)
		return
	}
	scope.Put(e.globals, id.Value, v)
}

// expandLabel creates the template for lit. parent is the label whose body
// contains lit, nil at top level.
func (e *Expander) expandLabel(lit *ast.LabelLiteral, parent *ir.Label) *ir.Label {
	a := e.arena
	l := a.NewLabel(a.Symbols.Intern(lit.Name.Value), lit.Token.Anchor)
	switch lit.Kind {
	case ast.BlockLabel:
		l.Flags = ir.FlagInline
	case ast.MergeLabel:
		l.Flags = ir.FlagInline | ir.FlagMerge
	}
	if parent != nil {
		l.Scope = parent.ID
		scope.Push(&e.locals, scope.BlockScope)
		defer scope.Pop(&e.locals)
	}
	scope.Put(e.locals, lit.Name.Value, ir.Value(ir.LabelRef{ID: l.ID}))

	for _, p := range lit.Params {
		var typ types.Type
		if p.Type != nil {
			t, err := e.typeOf(p.Type)
			if err != nil {
				e.Errors = append(e.Errors, err)
			} else {
				typ = t
			}
		}
		name := symbol.Unnamed
		if p.Name != "_" {
			name = a.Symbols.Intern(p.Name)
		}
		param := a.AddParam(l, name, typ, p.Variadic)
		param.Anchor = p.Token.Anchor
		if p.Name != "_" {
			scope.Put(e.locals, p.Name, ir.Value(ir.ParamRef{ID: param.ID}))
		}
	}

	l.Body.Anchor = lit.Body.Token.Anchor
	l.Body.Enter = e.expandValue(lit.Body.Enter, l)
	for _, arg := range lit.Body.Args {
		l.Body.Args = append(l.Body.Args, e.expandValue(arg, l))
	}
	return l
}

// expandValue translates a value in the body of owner. Errors leave None
// in place so expansion can go on.
func (e *Expander) expandValue(expr ast.Expression, owner *ir.Label) ir.Value {
	a := e.arena
	tt := a.Types
	at := expr.Tok().Anchor
	switch x := expr.(type) {
	case *ast.Identifier:
		return e.resolve(x)
	case *ast.IntegerLiteral:
		t := tt.I32
		if x.Type != nil {
			typ, err := e.typeOf(x.Type)
			if err != nil {
				e.Errors = append(e.Errors, err)
				return ir.None{}
			}
			it, ok := typ.(*types.Integer)
			if !ok {
				e.errorf(at, "integer literal %s cannot have type %s", x, typ)
				return ir.None{}
			}
			t = it
		}
		if !fits(x.Bits, x.Negative, t) {
			e.errorf(at, "integer literal %s overflows %s", x, t)
			return ir.None{}
		}
		return ir.Int{Type: t, Bits: ir.Mask(x.Bits, t.Width)}
	case *ast.FloatLiteral:
		t := tt.F64
		if x.Type != nil {
			typ, err := e.typeOf(x.Type)
			if err != nil {
				e.Errors = append(e.Errors, err)
				return ir.None{}
			}
			rt, ok := typ.(*types.Real)
			if !ok {
				e.errorf(at, "float literal %s cannot have type %s", x, typ)
				return ir.None{}
			}
			t = rt
		}
		v := x.Value
		if t.Width == 32 {
			v = float64(float32(v))
		}
		return ir.Real{Type: t, Value: v}
	case *ast.StringLiteral:
		return ir.SymbolValue{Sym: a.Symbols.Intern(x.Value)}
	case *ast.SymbolLiteral:
		return ir.SymbolValue{Sym: a.Symbols.Intern(x.Name)}
	case *ast.TypeLiteral:
		typ, err := e.typeOf(x.Type)
		if err != nil {
			e.Errors = append(e.Errors, err)
			return ir.None{}
		}
		return ir.TypeValue{T: typ}
	case *ast.LabelLiteral:
		return ir.LabelRef{ID: e.expandLabel(x, owner).ID}
	}
	e.errorf(at, "unexpected %s", expr)
	return ir.None{}
}

func (e *Expander) resolve(id *ast.Identifier) ir.Value {
	a := e.arena
	name := id.Value
	if name == "_" {
		return ir.None{}
	}
	if v, ok := scope.Get(e.locals, name); ok {
		return v
	}
	switch name {
	case "true":
		return ir.NewInt(a.Types.Bool, 1)
	case "false":
		return ir.NewInt(a.Types.Bool, 0)
	}
	if b, ok := ir.LookupBuiltin(name); ok {
		return ir.BuiltinRef{B: b}
	}
	return ir.Global{Name: a.Symbols.Intern(name), Anchor: id.Token.Anchor}
}

// fits reports whether a literal with the given bits is representable in t.
// Unsigned literals may use the full width of signed types, as in 0xff:i8.
func fits(bits uint64, negative bool, t *types.Integer) bool {
	w := t.Width
	if w >= 64 {
		return !negative || t.Signed
	}
	if negative {
		return t.Signed && int64(bits) >= -(int64(1)<<(w-1))
	}
	return bits <= uint64(1)<<w-1
}

func (e *Expander) typeOf(t ast.TypeExpr) (types.Type, *token.CompileError) {
	tt := e.arena.Types
	at := t.Tok().Anchor
	switch x := t.(type) {
	case *ast.TypeName:
		typ, ok := tt.Lookup(x.Name)
		if !ok {
			return nil, token.NewError(at, "unknown type %s", x.Name)
		}
		return typ, nil
	case *ast.FuncType:
		return e.funcType(x, false, false)
	case *ast.CompositeType:
		elems := make([]types.Type, 0, len(x.Elems))
		for _, el := range x.Elems {
			typ, err := e.typeOf(el)
			if err != nil {
				return nil, err
			}
			elems = append(elems, typ)
		}
		switch x.Head {
		case "ptr":
			return tt.Pointer(elems[0]), nil
		case "array":
			return tt.Array(elems[0], x.Count), nil
		case "vector":
			return tt.Vector(elems[0], x.Count), nil
		case "tuple":
			return tt.Tuple(elems...), nil
		case "union":
			return tt.Union(elems...), nil
		case "return":
			return tt.ReturnLabel(elems...), nil
		}
		return nil, token.NewError(at, "unknown type constructor %s", x.Head)
	}
	return nil, token.NewError(at, "unexpected type %s", t)
}

func (e *Expander) funcType(ft *ast.FuncType, variadic, pure bool) (*types.Function, *token.CompileError) {
	ret, err := e.typeOf(ft.Return)
	if err != nil {
		return nil, err
	}
	params := make([]types.Type, 0, len(ft.Params))
	for _, p := range ft.Params {
		typ, err := e.typeOf(p)
		if err != nil {
			return nil, err
		}
		params = append(params, typ)
	}
	return e.arena.Types.Function(ret, params, variadic, pure), nil
}
