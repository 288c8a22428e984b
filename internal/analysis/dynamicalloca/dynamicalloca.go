// Package dynamicalloca reports allocations whose element count cannot be
// resolved to a compile-time constant by either direct inspection or the
// single-local-slot recovery valueutil.TryGetConstFromValue performs.
package dynamicalloca

import (
	"ctrace/internal/ir"
	"ctrace/internal/valueutil"
)

// Finding is one dynamically-sized allocation.
type Finding struct {
	FuncName    string
	VarName     string
	Inst        *ir.AllocaInst
	ElemTypeStr string
}

// Analyze scans every function the filter accepts.
func Analyze(m *ir.Module, shouldAnalyze func(*ir.Function) bool) []Finding {
	var out []Finding
	for _, f := range m.Functions {
		if f.IsDecl || !shouldAnalyze(f) {
			continue
		}
		for _, inst := range f.AllInstructions() {
			alloc, ok := inst.(*ir.AllocaInst)
			if !ok || alloc.ArraySize == nil {
				continue
			}
			if alloc.ArraySize.IsConstant {
				continue
			}
			if _, ok := valueutil.TryGetConstFromValue(alloc.ArraySize, f); ok {
				continue
			}
			out = append(out, Finding{
				FuncName:    f.Name,
				VarName:     valueutil.DeriveAllocaName(alloc),
				Inst:        alloc,
				ElemTypeStr: alloc.ElemType.String(),
			})
		}
	}
	return out
}
