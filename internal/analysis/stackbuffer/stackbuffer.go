// Package stackbuffer implements the stack-buffer index-range analyzer:
// for every pointer-indexing GEP, resolve the true base allocation and
// flag indices that run outside the array it indexes. It also counts
// the distinct stores reaching each local buffer (the multiple-store
// analyzer), since both share the same base-resolution walk.
package stackbuffer

import (
	"ctrace/internal/ir"
	"ctrace/internal/ranges"
	"ctrace/internal/valueutil"
)

type Kind int

const (
	KindConstant Kind = iota
	KindUpper
	KindLower
)

// Overflow is one StackBufferOverflow finding.
type Overflow struct {
	FuncName        string
	Kind            Kind
	AllocaVarName   string
	AliasPath       []string
	IsWrite         bool
	Inst            ir.Instruction // the load/store whose address is out of range
	GEP             *ir.GEPInst
	Index           int64 // only meaningful for KindConstant
	ArraySize       uint64
	IndexIsConstant bool
}

// MultiStore is one MultipleStoresInfo finding: more than one store
// reaches the same resolved local buffer.
type MultiStore struct {
	FuncName      string
	AllocaVarName string
	Alloca        *ir.AllocaInst
	StoreCount    int
	IndexExprs    int
}

// Analyze runs both the index-range check and the multi-store count over
// every accepted function.
func Analyze(m *ir.Module, dl *ir.DataLayout, shouldAnalyze func(*ir.Function) bool) ([]Overflow, []MultiStore) {
	var overflows []Overflow
	var multi []MultiStore
	for _, f := range m.Functions {
		if f.IsDecl || !shouldAnalyze(f) {
			continue
		}
		facts := ranges.Infer(f)
		storeCounts := map[*ir.AllocaInst]map[ir.Instruction]bool{}
		indexExprs := map[*ir.AllocaInst]map[*ir.Value]bool{}

		for _, inst := range f.AllInstructions() {
			gep, ok := inst.(*ir.GEPInst)
			if !ok {
				continue
			}
			base, ok := valueutil.ResolveSingleBase(gep.Base, f, dl)
			if !ok || base.Alloca == nil {
				continue
			}
			size, innerIdx, ok := arraySizeFor(gep, base.Alloca, dl, f)
			if !ok {
				continue
			}

			for _, use := range loadStoreUsersOf(gep, f) {
				isWrite := false
				if _, ok := use.(*ir.StoreInst); ok {
					isWrite = true
				}
				if storeCounts[base.Alloca] == nil {
					storeCounts[base.Alloca] = map[ir.Instruction]bool{}
					indexExprs[base.Alloca] = map[*ir.Value]bool{}
				}
				if isWrite {
					storeCounts[base.Alloca][use] = true
				}
				indexExprs[base.Alloca][valueutil.StripIntCasts(innerIdx)] = true

				overflows = append(overflows, classify(f, base, gep, innerIdx, size, use, isWrite, facts)...)
			}
		}

		for alloc, geps := range storeCounts {
			if len(geps) > 1 {
				multi = append(multi, MultiStore{
					FuncName:      f.Name,
					AllocaVarName: valueutil.DeriveAllocaName(alloc),
					Alloca:        alloc,
					StoreCount:    len(geps),
					IndexExprs:    len(indexExprs[alloc]),
				})
			}
		}
	}
	return overflows, multi
}

func classify(f *ir.Function, base *valueutil.PointerOrigin, gep *ir.GEPInst, idxV *ir.Value, size uint64, use ir.Instruction, isWrite bool, facts *ranges.Facts) []Overflow {
	idx := valueutil.StripIntCasts(idxV)
	path := reversedPath(base.AliasPath)

	if idx.IsConstant {
		if idx.ConstInt < 0 || idx.ConstInt >= int64(size) {
			return []Overflow{{
				FuncName:        f.Name,
				Kind:            KindConstant,
				AllocaVarName:   valueutil.DeriveAllocaName(base.Alloca),
				AliasPath:       path,
				IsWrite:         isWrite,
				Inst:            use,
				GEP:             gep,
				Index:           idx.ConstInt,
				ArraySize:       size,
				IndexIsConstant: true,
			}}
		}
		return nil
	}

	r, ok := facts.RangeOf(idx)
	if !ok {
		return nil
	}
	var out []Overflow
	if r.HasUpper && r.Upper >= int64(size) {
		out = append(out, Overflow{
			FuncName:      f.Name,
			Kind:          KindUpper,
			AllocaVarName: valueutil.DeriveAllocaName(base.Alloca),
			AliasPath:     path,
			IsWrite:       isWrite,
			Inst:          use,
			GEP:           gep,
			ArraySize:     size,
		})
	}
	if r.HasLower && r.Lower < 0 {
		out = append(out, Overflow{
			FuncName:      f.Name,
			Kind:          KindLower,
			AllocaVarName: valueutil.DeriveAllocaName(base.Alloca),
			AliasPath:     path,
			IsWrite:       isWrite,
			Inst:          use,
			GEP:           gep,
			ArraySize:     size,
		})
	}
	return out
}

func reversedPath(path []string) []string {
	out := make([]string, len(path))
	for i, s := range path {
		out[len(path)-1-i] = s
	}
	return out
}

// arraySizeFor resolves the "array size" relevant to a GEP into alloc
// per the field/array/whole-allocation precedence.
func arraySizeFor(gep *ir.GEPInst, alloc *ir.AllocaInst, dl *ir.DataLayout, f *ir.Function) (size uint64, innerIdx *ir.Value, ok bool) {
	if len(gep.Indices) == 0 {
		return 0, nil, false
	}
	switch t := gep.SourceType.(type) {
	case *ir.ArrayType:
		return t.Count, gep.Indices[len(gep.Indices)-1], true
	case *ir.StructType:
		if len(gep.Indices) >= 3 {
			fieldIdxV := valueutil.StripIntCasts(gep.Indices[1])
			if fieldIdxV.IsConstant {
				dl.SizeOf(t)
				fi := int(fieldIdxV.ConstInt)
				if fi >= 0 && fi < len(t.Fields) {
					if arr, ok := t.Fields[fi].Type.(*ir.ArrayType); ok {
						return arr.Count, gep.Indices[len(gep.Indices)-1], true
					}
				}
			}
		}
	}
	if alloc.ArraySize != nil {
		if c, ok := valueutil.TryGetConstFromValue(alloc.ArraySize, f); ok {
			return uint64(c), gep.Indices[0], true
		}
		return 0, nil, false
	}
	return 1, gep.Indices[0], true
}

func loadStoreUsersOf(gep *ir.GEPInst, f *ir.Function) []ir.Instruction {
	var out []ir.Instruction
	gv := gep.Result()
	for _, inst := range f.AllInstructions() {
		switch in := inst.(type) {
		case *ir.LoadInst:
			if in.Ptr == gv {
				out = append(out, in)
			}
		case *ir.StoreInst:
			if in.Ptr == gv {
				out = append(out, in)
			}
		}
	}
	return out
}
