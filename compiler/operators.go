package compiler

import (
	"tinygo.org/x/go-llvm"

	"github.com/thiremani/cpsc/ir"
)

// opFunc lowers a pure builtin. ops are the lowered run-time operands and
// result is the lowered result type.
type opFunc func(c *Compiler, ops []llvm.Value, result llvm.Type) llvm.Value

type binaryBuilder func(llvm.Builder, llvm.Value, llvm.Value, string) llvm.Value

type castBuilder func(llvm.Builder, llvm.Value, llvm.Type, string) llvm.Value

func binary(f binaryBuilder, name string) opFunc {
	return func(c *Compiler, ops []llvm.Value, _ llvm.Type) llvm.Value {
		return f(c.builder, ops[0], ops[1], name)
	}
}

func icmp(pred llvm.IntPredicate, name string) opFunc {
	return func(c *Compiler, ops []llvm.Value, _ llvm.Type) llvm.Value {
		return c.builder.CreateICmp(pred, ops[0], ops[1], name)
	}
}

func fcmp(pred llvm.FloatPredicate, name string) opFunc {
	return func(c *Compiler, ops []llvm.Value, _ llvm.Type) llvm.Value {
		return c.builder.CreateFCmp(pred, ops[0], ops[1], name)
	}
}

func cast(f castBuilder, name string) opFunc {
	return func(c *Compiler, ops []llvm.Value, result llvm.Type) llvm.Value {
		return f(c.builder, ops[0], result, name)
	}
}

// defaultOps maps the builtins that compute one value from their operands
// to their lowering.
var defaultOps = map[ir.Builtin]opFunc{
	// --- Integer arithmetic ---
	ir.BAdd:  binary(llvm.Builder.CreateAdd, "add_tmp"),
	ir.BSub:  binary(llvm.Builder.CreateSub, "sub_tmp"),
	ir.BMul:  binary(llvm.Builder.CreateMul, "mul_tmp"),
	ir.BUDiv: binary(llvm.Builder.CreateUDiv, "udiv_tmp"),
	ir.BSDiv: binary(llvm.Builder.CreateSDiv, "sdiv_tmp"),
	ir.BURem: binary(llvm.Builder.CreateURem, "urem_tmp"),
	ir.BSRem: binary(llvm.Builder.CreateSRem, "srem_tmp"),
	ir.BShl:  binary(llvm.Builder.CreateShl, "shl_tmp"),
	ir.BLShr: binary(llvm.Builder.CreateLShr, "lshr_tmp"),
	ir.BAShr: binary(llvm.Builder.CreateAShr, "ashr_tmp"),
	ir.BBAnd: binary(llvm.Builder.CreateAnd, "and_tmp"),
	ir.BBOr:  binary(llvm.Builder.CreateOr, "or_tmp"),
	ir.BBXor: binary(llvm.Builder.CreateXor, "xor_tmp"),

	// --- Float arithmetic ---
	ir.BFAdd: binary(llvm.Builder.CreateFAdd, "fadd_tmp"),
	ir.BFSub: binary(llvm.Builder.CreateFSub, "fsub_tmp"),
	ir.BFMul: binary(llvm.Builder.CreateFMul, "fmul_tmp"),
	ir.BFDiv: binary(llvm.Builder.CreateFDiv, "fdiv_tmp"),
	ir.BFRem: binary(llvm.Builder.CreateFRem, "frem_tmp"),

	// --- Comparison ---
	ir.BICmpEQ:  icmp(llvm.IntEQ, "eq"),
	ir.BICmpNE:  icmp(llvm.IntNE, "ne"),
	ir.BICmpSLT: icmp(llvm.IntSLT, "slt"),
	ir.BICmpSLE: icmp(llvm.IntSLE, "sle"),
	ir.BICmpSGT: icmp(llvm.IntSGT, "sgt"),
	ir.BICmpSGE: icmp(llvm.IntSGE, "sge"),
	ir.BICmpULT: icmp(llvm.IntULT, "ult"),
	ir.BICmpULE: icmp(llvm.IntULE, "ule"),
	ir.BICmpUGT: icmp(llvm.IntUGT, "ugt"),
	ir.BICmpUGE: icmp(llvm.IntUGE, "uge"),

	ir.BFCmpOEQ: fcmp(llvm.FloatOEQ, "oeq"),
	ir.BFCmpONE: fcmp(llvm.FloatONE, "one"),
	ir.BFCmpOLT: fcmp(llvm.FloatOLT, "olt"),
	ir.BFCmpOLE: fcmp(llvm.FloatOLE, "ole"),
	ir.BFCmpOGT: fcmp(llvm.FloatOGT, "ogt"),
	ir.BFCmpOGE: fcmp(llvm.FloatOGE, "oge"),

	// --- Conversion ---
	ir.BTrunc:   cast(llvm.Builder.CreateTrunc, "trunc"),
	ir.BZExt:    cast(llvm.Builder.CreateZExt, "zext"),
	ir.BSExt:    cast(llvm.Builder.CreateSExt, "sext"),
	ir.BFPTrunc: cast(llvm.Builder.CreateFPTrunc, "fptrunc"),
	ir.BFPExt:   cast(llvm.Builder.CreateFPExt, "fpext"),
	ir.BFPToSI:  cast(llvm.Builder.CreateFPToSI, "fptosi"),
	ir.BFPToUI:  cast(llvm.Builder.CreateFPToUI, "fptoui"),
	ir.BSIToFP:  cast(llvm.Builder.CreateSIToFP, "sitofp"),
	ir.BUIToFP:  cast(llvm.Builder.CreateUIToFP, "uitofp"),
	ir.BBitcast: cast(llvm.Builder.CreateBitCast, "bitcast"),

	ir.BSelect: func(c *Compiler, ops []llvm.Value, _ llvm.Type) llvm.Value {
		return c.builder.CreateSelect(ops[0], ops[1], ops[2], "select")
	},
	ir.BUnconst: func(_ *Compiler, ops []llvm.Value, _ llvm.Type) llvm.Value {
		return ops[0]
	},
	ir.BUndef: func(_ *Compiler, _ []llvm.Value, result llvm.Type) llvm.Value {
		return llvm.Undef(result)
	},
	ir.BLoad: func(c *Compiler, ops []llvm.Value, result llvm.Type) llvm.Value {
		return c.builder.CreateLoad(result, ops[0], "load")
	},
}
