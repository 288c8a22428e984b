// Package ir implements the in-memory module representation the analyzer
// operates on: a small SSA-style model of LLVM's textual IR, restricted to
// the instruction set the stack- and memory-safety passes need.
package ir

import "fmt"

// Type is the sum of the handful of LLVM type kinds the analyzer cares
// about. Passes switch on the concrete type rather than calling virtual
// methods, mirroring how the instruction set is dispatched.
type Type interface {
	isType()
	String() string
}

// IntType is an integer type of the given bit width (i1, i8, i32, i64, ...).
type IntType struct {
	Bits int
}

func (*IntType) isType() {}
func (t *IntType) String() string { return fmt.Sprintf("i%d", t.Bits) }

// PointerType is a pointer to Elem, in the given address space (0 = default).
type PointerType struct {
	Elem      Type
	AddrSpace int
}

func (*PointerType) isType() {}
func (t *PointerType) String() string {
	if t.AddrSpace != 0 {
		return fmt.Sprintf("%s addrspace(%d)*", t.Elem, t.AddrSpace)
	}
	return t.Elem.String() + "*"
}

// ArrayType is a fixed-length array [Count x Elem].
type ArrayType struct {
	Elem  Type
	Count uint64
}

func (*ArrayType) isType() {}
func (t *ArrayType) String() string { return fmt.Sprintf("[%d x %s]", t.Count, t.Elem) }

// StructField is one member of a StructType, at a known byte offset once
// laid out by DataLayout.Layout.
type StructField struct {
	Name   string
	Type   Type
	Offset uint64 // filled in by DataLayout.Layout
}

// StructType is a named or anonymous aggregate.
type StructType struct {
	Name   string
	Fields []StructField
	sized  bool
}

func (*StructType) isType() {}
func (t *StructType) String() string {
	if t.Name != "" {
		return "%" + t.Name
	}
	return "{...}"
}

// VoidType is the type of instructions with no result.
type VoidType struct{}

func (*VoidType) isType()          {}
func (*VoidType) String() string   { return "void" }

// FloatType covers float/double; the analyzer never needs more than the
// size for frame accounting.
type FloatType struct {
	Bits int
}

func (*FloatType) isType() {}
func (t *FloatType) String() string { return fmt.Sprintf("f%d", t.Bits) }

// DataLayout answers size/alignment queries the way LLVM's DataLayout does.
// StackAlign is the ABI stack alignment (16 on the x86-64/AArch64 targets
// this analyzer is built around).
type DataLayout struct {
	PointerSize int
	StackAlign  uint64
}

// DefaultDataLayout is a 64-bit little-endian target with 16-byte stack
// alignment, the common case for the C/C++ inputs this analyzer sees.
func DefaultDataLayout() *DataLayout {
	return &DataLayout{PointerSize: 8, StackAlign: 16}
}

// SizeOf returns the size in bytes of t, laying out struct fields lazily.
func (dl *DataLayout) SizeOf(t Type) uint64 {
	switch v := t.(type) {
	case *IntType:
		return uint64((v.Bits + 7) / 8)
	case *FloatType:
		return uint64((v.Bits + 7) / 8)
	case *PointerType:
		return uint64(dl.PointerSize)
	case *ArrayType:
		return dl.SizeOf(v.Elem) * v.Count
	case *StructType:
		dl.layoutStruct(v)
		if len(v.Fields) == 0 {
			return 0
		}
		last := v.Fields[len(v.Fields)-1]
		return dl.alignUp(last.Offset+dl.SizeOf(last.Type), dl.AlignOf(v))
	case *VoidType:
		return 0
	default:
		return 0
	}
}

// AlignOf returns the ABI alignment of t.
func (dl *DataLayout) AlignOf(t Type) uint64 {
	switch v := t.(type) {
	case *IntType:
		return minU64(uint64((v.Bits+7)/8), 8)
	case *FloatType:
		return minU64(uint64((v.Bits+7)/8), 8)
	case *PointerType:
		return uint64(dl.PointerSize)
	case *ArrayType:
		return dl.AlignOf(v.Elem)
	case *StructType:
		var best uint64 = 1
		for i := range v.Fields {
			if a := dl.AlignOf(v.Fields[i].Type); a > best {
				best = a
			}
		}
		return best
	default:
		return 1
	}
}

// layoutStruct assigns byte offsets to every field of t, once.
func (dl *DataLayout) layoutStruct(t *StructType) {
	if t.sized {
		return
	}
	var off uint64
	for i := range t.Fields {
		a := dl.AlignOf(t.Fields[i].Type)
		off = dl.alignUp(off, a)
		t.Fields[i].Offset = off
		off += dl.SizeOf(t.Fields[i].Type)
	}
	t.sized = true
}

func (dl *DataLayout) alignUp(v, a uint64) uint64 {
	if a == 0 {
		return v
	}
	return (v + a - 1) / a * a
}

// AlignStack rounds n up to the target's stack alignment.
func (dl *DataLayout) AlignStack(n uint64) uint64 {
	return dl.alignUp(n, dl.StackAlign)
}

func minU64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
