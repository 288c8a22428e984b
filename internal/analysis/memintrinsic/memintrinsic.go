// Package memintrinsic flags memcpy/memset/memmove calls whose destination
// is a local array allocation with a known total size and whose length
// argument is a constant larger than that size.
package memintrinsic

import (
	"strings"

	"ctrace/internal/ir"
	"ctrace/internal/valueutil"
)

// Finding is one MemIntrinsicOverflow result.
type Finding struct {
	FuncName      string
	Call          *ir.CallInst
	AllocaVarName string
	AllocaSize    uint64
	RequestedLen  int64
}

func Analyze(m *ir.Module, dl *ir.DataLayout, shouldAnalyze func(*ir.Function) bool) []Finding {
	var out []Finding
	for _, f := range m.Functions {
		if f.IsDecl || !shouldAnalyze(f) {
			continue
		}
		for _, inst := range f.AllInstructions() {
			call, ok := inst.(*ir.CallInst)
			if !ok || call.Indirect != nil {
				continue
			}
			if !isMemIntrinsicName(call.CalleeName()) {
				continue
			}
			if len(call.Args) < 3 {
				continue
			}
			dst, length := call.Args[0], call.Args[2]
			lenV := valueutil.StripIntCasts(length)
			if !lenV.IsConstant {
				continue
			}
			base, ok := valueutil.ResolveSingleBase(dst, f, dl)
			if !ok || base.Alloca == nil {
				continue
			}
			size := dl.SizeOf(base.Alloca.ElemType)
			if uint64(lenV.ConstInt) <= size {
				continue
			}
			out = append(out, Finding{
				FuncName:      f.Name,
				Call:          call,
				AllocaVarName: valueutil.DeriveAllocaName(base.Alloca),
				AllocaSize:    size,
				RequestedLen:  lenV.ConstInt,
			})
		}
	}
	return out
}

func isMemIntrinsicName(name string) bool {
	return strings.Contains(name, "memcpy") || strings.Contains(name, "memset") || strings.Contains(name, "memmove")
}
