package compiler

import (
	"strconv"
	"strings"

	"github.com/thiremani/cpsc/types"
)

const (
	PREFIX = "$" // Prefix for function names and types
	DUP    = "." // separates the instance number of same-signature functions
)

// mangle encodes a function instance as $name{$type}. Composite types are
// written as Head[N]$arity$elems so the encoding stays unambiguous.
func mangle(funcName string, args []types.Type) string {
	var sb strings.Builder
	sb.WriteString(PREFIX + funcName)
	for _, t := range args {
		sb.WriteString(PREFIX)
		mangleType(&sb, t)
	}
	return sb.String()
}

func mangleType(sb *strings.Builder, t types.Type) {
	switch t := t.(type) {
	case *types.Integer, *types.Real:
		sb.WriteString(t.String())
	case *types.Named:
		sb.WriteString(t.Name)
	case *types.Pointer:
		mangleComposite(sb, "Ptr", "", t.Elem)
	case *types.Array:
		mangleComposite(sb, "Array", strconv.FormatUint(t.Count, 10), t.Elem)
	case *types.Vector:
		mangleComposite(sb, "Vector", strconv.FormatUint(t.Count, 10), t.Elem)
	case *types.Tuple:
		mangleComposite(sb, "Tuple", "", t.Fields...)
	case *types.Union:
		mangleComposite(sb, "Union", "", t.Fields...)
	case *types.Function:
		mangleComposite(sb, "Fn", "", append([]types.Type{t.Return}, t.Params...)...)
	default:
		sb.WriteString(t.String())
	}
}

func mangleComposite(sb *strings.Builder, head, count string, elems ...types.Type) {
	sb.WriteString(head)
	sb.WriteString(count)
	sb.WriteString(PREFIX)
	sb.WriteString(strconv.Itoa(len(elems)))
	for _, e := range elems {
		sb.WriteString(PREFIX)
		mangleType(sb, e)
	}
}

// uniqueName returns name, or name.N when name was handed out before.
// Instances of one template with equal parameter types differ in the
// constants they captured.
func (c *Compiler) uniqueName(name string) string {
	n := c.names[name]
	c.names[name] = n + 1
	if n == 0 {
		return name
	}
	return name + DUP + strconv.Itoa(n)
}
