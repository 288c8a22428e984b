// Package allocausage implements the allocation-usage analyzer: for
// §4.5): for every array-typed local allocation, report its resolved
// size (or upper bound), whether that size is user-controlled, and
// whether the containing function is recursive.
package allocausage

import (
	"ctrace/internal/ir"
	"ctrace/internal/ranges"
	"ctrace/internal/valueutil"
)

// Issue is one AllocaUsageIssue finding.
type Issue struct {
	FuncName            string
	VarName             string
	Inst                *ir.AllocaInst
	UserControlled      bool
	SizeIsConst         bool
	HasUpperBound       bool
	IsRecursive         bool
	IsInfiniteRecursive bool
	SizeBytes           uint64
	UpperBoundBytes     uint64
}

// Analyze scans every function the filter accepts for array-typed
// allocations (a fixed-size array type, or a dynamic element count).
func Analyze(m *ir.Module, dl *ir.DataLayout, recursive, infinite map[*ir.Function]bool, shouldAnalyze func(*ir.Function) bool) []Issue {
	var out []Issue
	for _, f := range m.Functions {
		if f.IsDecl || !shouldAnalyze(f) {
			continue
		}
		facts := ranges.Infer(f)
		for _, inst := range f.AllInstructions() {
			alloc, ok := inst.(*ir.AllocaInst)
			if !ok || !isArrayAlloca(alloc) {
				continue
			}
			out = append(out, analyzeOne(f, alloc, dl, facts, recursive, infinite))
		}
	}
	return out
}

func isArrayAlloca(alloc *ir.AllocaInst) bool {
	if alloc.ArraySize != nil {
		return true
	}
	_, isArray := alloc.ElemType.(*ir.ArrayType)
	return isArray
}

func analyzeOne(f *ir.Function, alloc *ir.AllocaInst, dl *ir.DataLayout, facts *ranges.Facts, recursive, infinite map[*ir.Function]bool) Issue {
	issue := Issue{
		FuncName:            f.Name,
		VarName:             valueutil.DeriveAllocaName(alloc),
		Inst:                alloc,
		IsRecursive:         recursive[f],
		IsInfiniteRecursive: infinite[f],
	}

	if alloc.ArraySize == nil {
		// Fixed [N x T] local: the size is always a compile-time constant.
		issue.SizeIsConst = true
		issue.SizeBytes = dl.SizeOf(alloc.ElemType)
		return issue
	}

	issue.UserControlled = valueutil.IsUserControlled(alloc.ArraySize)

	elemSize := dl.SizeOf(alloc.ElemType)
	if alloc.ArraySize.IsConstant {
		issue.SizeIsConst = true
		issue.SizeBytes = uint64(alloc.ArraySize.ConstInt) * elemSize
		return issue
	}
	if c, ok := valueutil.TryGetConstFromValue(alloc.ArraySize, f); ok && c >= 0 {
		issue.SizeIsConst = true
		issue.SizeBytes = uint64(c) * elemSize
		return issue
	}
	if r, ok := facts.RangeOf(alloc.ArraySize); ok && r.HasUpper && r.Upper >= 0 {
		issue.HasUpperBound = true
		issue.UpperBoundBytes = uint64(r.Upper) * elemSize
	}
	return issue
}
