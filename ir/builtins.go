package ir

import "strconv"

// Builtin is a primitive operation the specializer understands.
type Builtin int

const (
	BuiltinInvalid Builtin = iota

	// compile-time queries
	BTypeOf
	BSizeOf
	BAlignOf
	BIsConstant
	BVACountOf
	BVAAt
	BTupleType
	BPointerType
	BDump
	BCompilerError

	// memory and opaque operations
	BLoad
	BStore
	BAlloca
	BMalloc
	BBitcast
	BUnconst
	BUndef
	BUnreachable
	BBranch

	// integer arithmetic
	BAdd
	BSub
	BMul
	BUDiv
	BSDiv
	BURem
	BSRem
	BShl
	BLShr
	BAShr
	BBAnd
	BBOr
	BBXor

	// float arithmetic
	BFAdd
	BFSub
	BFMul
	BFDiv
	BFRem

	// integer comparison
	BICmpEQ
	BICmpNE
	BICmpSLT
	BICmpSLE
	BICmpSGT
	BICmpSGE
	BICmpULT
	BICmpULE
	BICmpUGT
	BICmpUGE

	// ordered float comparison
	BFCmpOEQ
	BFCmpONE
	BFCmpOLT
	BFCmpOLE
	BFCmpOGT
	BFCmpOGE

	// conversions
	BTrunc
	BZExt
	BSExt
	BFPTrunc
	BFPExt
	BFPToSI
	BFPToUI
	BSIToFP
	BUIToFP

	BSelect
	BExtractValue
	BInsertValue

	numBuiltins
)

var builtinNames = [...]string{
	BTypeOf:        "typeof",
	BSizeOf:        "sizeof",
	BAlignOf:       "alignof",
	BIsConstant:    "constant?",
	BVACountOf:     "va-countof",
	BVAAt:          "va-at",
	BTupleType:     "tuple-type",
	BPointerType:   "pointer-type",
	BDump:          "dump",
	BCompilerError: "compiler-error",

	BLoad:        "load",
	BStore:       "store",
	BAlloca:      "alloca",
	BMalloc:      "malloc",
	BBitcast:     "bitcast",
	BUnconst:     "unconst",
	BUndef:       "undef",
	BUnreachable: "unreachable",
	BBranch:      "branch",

	BAdd:  "add",
	BSub:  "sub",
	BMul:  "mul",
	BUDiv: "udiv",
	BSDiv: "sdiv",
	BURem: "urem",
	BSRem: "srem",
	BShl:  "shl",
	BLShr: "lshr",
	BAShr: "ashr",
	BBAnd: "band",
	BBOr:  "bor",
	BBXor: "bxor",

	BFAdd: "fadd",
	BFSub: "fsub",
	BFMul: "fmul",
	BFDiv: "fdiv",
	BFRem: "frem",

	BICmpEQ:  "icmp==",
	BICmpNE:  "icmp!=",
	BICmpSLT: "icmp<s",
	BICmpSLE: "icmp<=s",
	BICmpSGT: "icmp>s",
	BICmpSGE: "icmp>=s",
	BICmpULT: "icmp<u",
	BICmpULE: "icmp<=u",
	BICmpUGT: "icmp>u",
	BICmpUGE: "icmp>=u",

	BFCmpOEQ: "fcmp==o",
	BFCmpONE: "fcmp!=o",
	BFCmpOLT: "fcmp<o",
	BFCmpOLE: "fcmp<=o",
	BFCmpOGT: "fcmp>o",
	BFCmpOGE: "fcmp>=o",

	BTrunc:   "trunc",
	BZExt:    "zext",
	BSExt:    "sext",
	BFPTrunc: "fptrunc",
	BFPExt:   "fpext",
	BFPToSI:  "fptosi",
	BFPToUI:  "fptoui",
	BSIToFP:  "sitofp",
	BUIToFP:  "uitofp",

	BSelect:       "select",
	BExtractValue: "extractvalue",
	BInsertValue:  "insertvalue",
}

var builtinByName = func() map[string]Builtin {
	m := make(map[string]Builtin, len(builtinNames))
	for b, name := range builtinNames {
		if name != "" {
			m[name] = Builtin(b)
		}
	}
	return m
}()

func (b Builtin) String() string {
	if 0 < b && b < numBuiltins {
		return builtinNames[b]
	}
	return "builtin(" + strconv.Itoa(int(b)) + ")"
}

// LookupBuiltin resolves a builtin by its source name.
func LookupBuiltin(name string) (Builtin, bool) {
	b, ok := builtinByName[name]
	return b, ok
}

// Builtins returns every builtin in declaration order.
func Builtins() []Builtin {
	out := make([]Builtin, 0, numBuiltins-1)
	for b := BuiltinInvalid + 1; b < numBuiltins; b++ {
		out = append(out, b)
	}
	return out
}

func (b Builtin) IsIntArith() bool { return BAdd <= b && b <= BBXor }
func (b Builtin) IsFloatArith() bool { return BFAdd <= b && b <= BFRem }
func (b Builtin) IsICmp() bool { return BICmpEQ <= b && b <= BICmpUGE }
func (b Builtin) IsFCmp() bool { return BFCmpOEQ <= b && b <= BFCmpOGE }
func (b Builtin) IsCast() bool { return BTrunc <= b && b <= BUIToFP }
