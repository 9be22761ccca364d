package types

import "fmt"

const pointerSize = 8

func alignTo(offset, align uint64) uint64 {
	return (offset + align - 1) &^ (align - 1)
}

func nextPow2(n uint64) uint64 {
	p := uint64(1)
	for p < n {
		p <<= 1
	}
	return p
}

// SizeOf returns the storage size of t in bytes.
func SizeOf(t Type) (uint64, error) {
	switch t := t.(type) {
	case *Integer:
		return nextPow2((uint64(t.Width) + 7) / 8), nil
	case *Real:
		return uint64(t.Width) / 8, nil
	case *Pointer:
		return pointerSize, nil
	case *Array:
		sz, err := SizeOf(t.Elem)
		if err != nil {
			return 0, err
		}
		return sz * t.Count, nil
	case *Vector:
		sz, err := SizeOf(t.Elem)
		if err != nil {
			return 0, err
		}
		return nextPow2(sz * t.Count), nil
	case *Tuple:
		var offset, maxAlign uint64 = 0, 1
		for _, f := range t.Fields {
			sz, err := SizeOf(f)
			if err != nil {
				return 0, err
			}
			al, _ := AlignOf(f)
			offset = alignTo(offset, al) + sz
			maxAlign = max(maxAlign, al)
		}
		return alignTo(offset, maxAlign), nil
	case *Union:
		var size, maxAlign uint64 = 0, 1
		for _, f := range t.Fields {
			sz, err := SizeOf(f)
			if err != nil {
				return 0, err
			}
			al, _ := AlignOf(f)
			size = max(size, sz)
			maxAlign = max(maxAlign, al)
		}
		return alignTo(size, maxAlign), nil
	case *Named:
		if t.Opaque() {
			return 0, fmt.Errorf("opaque type %s has no size", t.Name)
		}
		return SizeOf(t.storage)
	}
	return 0, fmt.Errorf("type %s has no storage", t)
}

// AlignOf returns the alignment of t in bytes.
func AlignOf(t Type) (uint64, error) {
	switch t := t.(type) {
	case *Integer, *Real, *Pointer, *Vector:
		return SizeOf(t)
	case *Array:
		return AlignOf(t.Elem)
	case *Tuple:
		return maxAlignOf(t.Fields)
	case *Union:
		return maxAlignOf(t.Fields)
	case *Named:
		if t.Opaque() {
			return 0, fmt.Errorf("opaque type %s has no alignment", t.Name)
		}
		return AlignOf(t.storage)
	}
	return 0, fmt.Errorf("type %s has no storage", t)
}

func maxAlignOf(fields []Type) (uint64, error) {
	al := uint64(1)
	for _, f := range fields {
		a, err := AlignOf(f)
		if err != nil {
			return 0, err
		}
		al = max(al, a)
	}
	return al, nil
}

// FieldOffset returns the byte offset of field i of a tuple.
func FieldOffset(t *Tuple, i int) (uint64, error) {
	var offset uint64
	for j, f := range t.Fields {
		al, err := AlignOf(f)
		if err != nil {
			return 0, err
		}
		offset = alignTo(offset, al)
		if j == i {
			return offset, nil
		}
		sz, _ := SizeOf(f)
		offset += sz
	}
	return 0, fmt.Errorf("tuple %s has no field %d", t, i)
}
