package types

// Class is the System V x86-64 class of one eightbyte of an argument.
type Class int

const (
	NoClass Class = iota
	IntegerClass
	SSEClass
	MemoryClass
)

func (c Class) String() string {
	switch c {
	case IntegerClass:
		return "INTEGER"
	case SSEClass:
		return "SSE"
	case MemoryClass:
		return "MEMORY"
	}
	return "NO_CLASS"
}

func merge(a, b Class) Class {
	switch {
	case a == b:
		return a
	case a == NoClass:
		return b
	case b == NoClass:
		return a
	case a == MemoryClass || b == MemoryClass:
		return MemoryClass
	case a == IntegerClass || b == IntegerClass:
		return IntegerClass
	}
	return SSEClass
}

// Classify returns one class per eightbyte of t. Values larger than two
// eightbytes, or with misaligned members, are passed in memory.
func Classify(t Type) ([]Class, error) {
	size, err := SizeOf(t)
	if err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, nil
	}
	if size > 16 {
		return []Class{MemoryClass}, nil
	}
	classes := make([]Class, (size+7)/8)
	if !classifyAt(t, 0, classes) {
		return []Class{MemoryClass}, nil
	}
	for _, c := range classes {
		if c == MemoryClass {
			return []Class{MemoryClass}, nil
		}
	}
	return classes, nil
}

func classifyAt(t Type, offset uint64, classes []Class) bool {
	t = StorageType(t)
	al, err := AlignOf(t)
	if err != nil || offset%al != 0 {
		return false
	}
	switch t := t.(type) {
	case *Integer, *Pointer:
		i := offset / 8
		classes[i] = merge(classes[i], IntegerClass)
	case *Real:
		i := offset / 8
		classes[i] = merge(classes[i], SSEClass)
	case *Array:
		sz, _ := SizeOf(t.Elem)
		for k := uint64(0); k < t.Count; k++ {
			if !classifyAt(t.Elem, offset+k*sz, classes) {
				return false
			}
		}
	case *Vector:
		sz, _ := SizeOf(t.Elem)
		for k := uint64(0); k < t.Count; k++ {
			if !classifyAt(t.Elem, offset+k*sz, classes) {
				return false
			}
		}
	case *Tuple:
		for i, f := range t.Fields {
			fo, err := FieldOffset(t, i)
			if err != nil || !classifyAt(f, offset+fo, classes) {
				return false
			}
		}
	case *Union:
		for _, f := range t.Fields {
			if !classifyAt(f, offset, classes) {
				return false
			}
		}
	default:
		return false
	}
	return true
}
