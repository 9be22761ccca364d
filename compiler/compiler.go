// Package compiler lowers a specialized instance graph to LLVM IR.
//
// Every function-like instance becomes an LLVM function whose parameters
// are its run-time parameters; its continuation decides the return type.
// Basic-block instances reached from a function become blocks of that
// function, their parameters phi nodes. Calls whose continuation is the
// caller's own continuation are emitted as call followed by ret.
package compiler

import (
	"context"
	"fmt"

	"goa.design/clue/log"
	"tinygo.org/x/go-llvm"

	"github.com/thiremani/cpsc/ir"
	"github.com/thiremani/cpsc/token"
	"github.com/thiremani/cpsc/types"
)

type Compiler struct {
	Context llvm.Context
	Module  llvm.Module
	builder llvm.Builder
	arena   *ir.Arena

	typeCache map[types.Type]llvm.Type
	names     map[string]int
	funcs     map[ir.LabelID]llvm.Value
	blocks    map[ir.LabelID]llvm.BasicBlock
	values    map[ir.ParamID]llvm.Value // function parameters and phis
	externs   map[string]llvm.Value

	// state of the function being emitted
	fn   *ir.Label
	fnLL llvm.Value
}

func NewCompiler(ctx llvm.Context, moduleName string, a *ir.Arena) *Compiler {
	return &Compiler{
		Context:   ctx,
		Module:    ctx.NewModule(moduleName),
		builder:   ctx.NewBuilder(),
		arena:     a,
		typeCache: make(map[types.Type]llvm.Type),
		names:     make(map[string]int),
		funcs:     make(map[ir.LabelID]llvm.Value),
		blocks:    make(map[ir.LabelID]llvm.BasicBlock),
		values:    make(map[ir.ParamID]llvm.Value),
		externs:   make(map[string]llvm.Value),
	}
}

// Dispose releases the builder and module. The context belongs to the
// caller.
func (c *Compiler) Dispose() {
	c.builder.Dispose()
	c.Module.Dispose()
}

// Compile lowers entry and every function it reaches. The entry keeps its
// label name with external linkage; every other function is internal and
// mangled by its parameter types.
func (c *Compiler) Compile(ctx context.Context, entry ir.LabelID) error {
	a := c.arena
	var fns []*ir.Label
	for _, id := range a.Reachable(entry) {
		if l := a.Label(id); a.IsFunction(l) {
			fns = append(fns, l)
		}
	}
	for _, l := range fns {
		if err := c.declare(l, l.ID == entry); err != nil {
			return err
		}
	}
	for _, l := range fns {
		c.emitFunction(l)
	}
	log.Debugf(ctx, "lowered %d functions of %s", len(fns), a.LabelName(entry))
	return nil
}

func (c *Compiler) declare(l *ir.Label, entry bool) error {
	a := c.arena
	rt := a.ReturnType(l)
	if rt == nil {
		return token.NewError(l.Anchor, "cannot lower %s: return type unknown", a.LabelName(l.ID))
	}
	params := a.ParamTypes(l)
	for _, ts := range [][]types.Type{params, rt.Values} {
		if t, ok := lowerable(ts); !ok {
			return token.NewError(l.Anchor, "cannot lower %s: values of type %s only exist at compile time",
				a.LabelName(l.ID), t)
		}
	}

	name := a.Symbols.Name(l.Name)
	if !entry || name == "" {
		name = mangle(name, params)
	}
	fnType := llvm.FunctionType(c.returnType(rt), c.mapTypes(params), false)
	fn := llvm.AddFunction(c.Module, c.uniqueName(name), fnType)
	if !entry {
		fn.SetLinkage(llvm.InternalLinkage)
	}
	for i, pid := range l.Params[1:] {
		p := fn.Param(i)
		if n := a.Symbols.Name(a.Param(pid).Name); n != "" {
			p.SetName(n)
		}
		c.values[pid] = p
	}
	c.funcs[l.ID] = fn
	return nil
}

// region lists the basic blocks owned by function fn in depth-first order,
// not descending into other functions.
func (c *Compiler) region(fn *ir.Label) []*ir.Label {
	a := c.arena
	seen := map[ir.LabelID]bool{fn.ID: true}
	var out []*ir.Label
	stack := []ir.LabelID{fn.ID}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		succ := a.Successors(a.Label(id))
		for i := len(succ) - 1; i >= 0; i-- {
			next := a.Label(succ[i])
			if seen[next.ID] || a.IsFunction(next) {
				continue
			}
			seen[next.ID] = true
			out = append(out, next)
			stack = append(stack, next.ID)
		}
	}
	return out
}

func (c *Compiler) emitFunction(l *ir.Label) {
	a := c.arena
	c.fn = l
	c.fnLL = c.funcs[l.ID]
	entry := c.Context.AddBasicBlock(c.fnLL, "entry")

	blocks := c.region(l)
	for _, b := range blocks {
		bb := c.Context.AddBasicBlock(c.fnLL, a.Symbols.Name(b.Name))
		c.blocks[b.ID] = bb
		c.builder.SetInsertPointAtEnd(bb)
		for _, pid := range b.Params[1:] {
			p := a.Param(pid)
			c.values[pid] = c.builder.CreatePHI(c.mapToLLVMType(p.Type), a.Symbols.Name(p.Name))
		}
	}

	c.builder.SetInsertPointAtEnd(entry)
	c.emitBody(&l.Body)
	for _, b := range blocks {
		c.builder.SetInsertPointAtEnd(c.blocks[b.ID])
		c.emitBody(&b.Body)
	}
}

func (c *Compiler) emitBody(b *ir.Body) {
	a := c.arena
	cont := b.Cont()
	var args []ir.Value
	if len(b.Args) > 1 {
		args = b.Args[1:]
	}

	switch e := b.Enter.(type) {
	case ir.ParamRef:
		c.checkOwnReturn(e)
		c.emitReturn(c.lowerArgs(args))
	case ir.LabelRef:
		target := a.Label(e.ID)
		if a.IsBasicBlockLike(target) {
			c.jump(target, c.lowerArgs(args))
			return
		}
		fn := c.funcs[e.ID]
		results := c.call(fn.GlobalValueType(), fn, c.lowerArgs(args), len(a.ReturnType(target).Values))
		c.deliver(cont, results)
	case ir.Extern:
		fn := c.extern(e)
		n := 0
		if e.Sig.Return.Kind() != types.NothingKind {
			n = 1
		}
		results := c.call(c.funcType(e.Sig), fn, c.lowerArgs(args), n)
		c.deliver(cont, results)
	case ir.BuiltinRef:
		c.emitBuiltin(e.B, cont, args)
	default:
		panic(fmt.Sprintf("compiler: cannot enter %s", a.FormatValue(b.Enter)))
	}
}

func (c *Compiler) emitBuiltin(bi ir.Builtin, cont ir.Value, args []ir.Value) {
	a := c.arena
	switch bi {
	case ir.BBranch:
		cond := c.value(args[0])
		then := c.blocks[args[1].(ir.LabelRef).ID]
		els := c.blocks[args[2].(ir.LabelRef).ID]
		c.builder.CreateCondBr(cond, then, els)
		return
	case ir.BUnreachable:
		c.builder.CreateUnreachable()
		return
	case ir.BStore:
		c.builder.CreateStore(c.value(args[0]), c.value(args[1]))
		c.deliver(cont, nil)
		return
	case ir.BAlloca, ir.BMalloc:
		t := c.mapToLLVMType(args[0].(ir.TypeValue).T)
		var v llvm.Value
		if bi == ir.BAlloca {
			v = c.builder.CreateAlloca(t, "alloca")
		} else {
			v = c.builder.CreateMalloc(t, "malloc")
		}
		c.deliver(cont, []llvm.Value{v})
		return
	case ir.BExtractValue:
		idx := int(args[1].(ir.Int).Bits)
		c.deliver(cont, []llvm.Value{c.builder.CreateExtractValue(c.value(args[0]), idx, "extract")})
		return
	case ir.BInsertValue:
		idx := int(args[2].(ir.Int).Bits)
		v := c.builder.CreateInsertValue(c.value(args[0]), c.value(args[1]), idx, "insert")
		c.deliver(cont, []llvm.Value{v})
		return
	}

	op, ok := defaultOps[bi]
	if !ok {
		panic("compiler: no lowering for builtin " + bi.String())
	}
	var ops []llvm.Value
	for _, arg := range args {
		if types.IsMeta(a.TypeOf(arg)) {
			continue
		}
		ops = append(ops, c.value(arg))
	}
	c.deliver(cont, []llvm.Value{op(c, ops, c.resultType(bi, args))})
}

// resultType is the lowered type of the single value a builtin produces.
func (c *Compiler) resultType(bi ir.Builtin, args []ir.Value) llvm.Type {
	a := c.arena
	switch {
	case bi.IsCast() || bi == ir.BBitcast:
		return c.mapToLLVMType(args[1].(ir.TypeValue).T)
	case bi == ir.BUndef:
		return c.mapToLLVMType(args[0].(ir.TypeValue).T)
	case bi == ir.BLoad:
		p := types.StorageType(a.TypeOf(args[0])).(*types.Pointer)
		return c.mapToLLVMType(p.Elem)
	}
	return llvm.Type{}
}

func (c *Compiler) call(fnType llvm.Type, fn llvm.Value, args []llvm.Value, results int) []llvm.Value {
	name := "call"
	if results == 0 {
		name = ""
	}
	v := c.builder.CreateCall(fnType, fn, args, name)
	switch results {
	case 0:
		return nil
	case 1:
		return []llvm.Value{v}
	}
	out := make([]llvm.Value, results)
	for i := range out {
		out[i] = c.builder.CreateExtractValue(v, i, "result")
	}
	return out
}

// deliver passes results to the continuation of a call.
func (c *Compiler) deliver(cont ir.Value, results []llvm.Value) {
	switch k := cont.(type) {
	case ir.None:
		// the callee never returns
		c.builder.CreateUnreachable()
	case ir.ParamRef:
		c.checkOwnReturn(k)
		c.emitReturn(results)
	case ir.LabelRef:
		c.jump(c.arena.Label(k.ID), results)
	default:
		panic(fmt.Sprintf("compiler: cannot continue to %s", c.arena.FormatValue(cont)))
	}
}

func (c *Compiler) checkOwnReturn(p ir.ParamRef) {
	if len(c.fn.Params) == 0 || c.fn.Params[0] != p.ID {
		panic(fmt.Sprintf("compiler: %s returns through foreign continuation %s",
			c.arena.LabelName(c.fn.ID), c.arena.FormatValue(p)))
	}
}

func (c *Compiler) emitReturn(vals []llvm.Value) {
	switch len(vals) {
	case 0:
		c.builder.CreateRetVoid()
	case 1:
		c.builder.CreateRet(vals[0])
	default:
		agg := llvm.Undef(c.fnLL.GlobalValueType().ReturnType())
		for i, v := range vals {
			agg = c.builder.CreateInsertValue(agg, v, i, "ret")
		}
		c.builder.CreateRet(agg)
	}
}

// jump branches to block target, feeding vals to its phis.
func (c *Compiler) jump(target *ir.Label, vals []llvm.Value) {
	from := c.builder.GetInsertBlock()
	for i, pid := range target.Params[1:] {
		c.values[pid].AddIncoming([]llvm.Value{vals[i]}, []llvm.BasicBlock{from})
	}
	c.builder.CreateBr(c.blocks[target.ID])
}

func (c *Compiler) extern(e ir.Extern) llvm.Value {
	if fn, ok := c.externs[e.Name]; ok {
		return fn
	}
	fn := c.Module.NamedFunction(e.Name)
	if fn.IsNil() {
		fn = llvm.AddFunction(c.Module, e.Name, c.funcType(e.Sig))
	}
	c.externs[e.Name] = fn
	return fn
}

// lowerArgs lowers run-time arguments.
func (c *Compiler) lowerArgs(vs []ir.Value) []llvm.Value {
	out := make([]llvm.Value, 0, len(vs))
	for _, v := range vs {
		out = append(out, c.value(v))
	}
	return out
}

func (c *Compiler) value(v ir.Value) llvm.Value {
	switch v := v.(type) {
	case ir.Int:
		return llvm.ConstInt(c.mapToLLVMType(v.Type), v.Bits, false)
	case ir.Real:
		return llvm.ConstFloat(c.mapToLLVMType(v.Type), v.Value)
	case ir.Pointer:
		t := c.mapToLLVMType(v.Type)
		if v.Addr == 0 {
			return llvm.ConstPointerNull(t)
		}
		return llvm.ConstIntToPtr(llvm.ConstInt(c.Context.Int64Type(), v.Addr, false), t)
	case ir.Aggregate:
		fields := c.lowerArgs(v.Fields)
		switch t := types.StorageType(v.Type).(type) {
		case *types.Tuple:
			return c.Context.ConstStruct(fields, false)
		case *types.Array:
			return llvm.ConstArray(c.mapToLLVMType(t.Elem), fields)
		case *types.Vector:
			return llvm.ConstVector(fields, false)
		}
	case ir.ParamRef:
		if lv, ok := c.values[v.ID]; ok {
			return lv
		}
	case ir.LabelRef:
		if fn, ok := c.funcs[v.ID]; ok {
			return fn
		}
	case ir.Extern:
		return c.extern(v)
	}
	panic(fmt.Sprintf("compiler: cannot lower value %s", c.arena.FormatValue(v)))
}

// GenerateIR renders the module as textual LLVM IR.
func (c *Compiler) GenerateIR() string {
	return c.Module.String()
}

// Verify runs the LLVM module verifier.
func (c *Compiler) Verify() error {
	return llvm.VerifyModule(c.Module, llvm.ReturnStatusAction)
}
