// Package callgraph builds the intra-module call graph and computes
// per-function stack usage: local frame sizes, transitive worst-case
// stack, recursion-cycle membership, and infinite-self-recursion
// grounded on the original analyzer's StackComputation pass.
package callgraph

import (
	"ctrace/internal/config"
	"ctrace/internal/ir"
	"ctrace/internal/valueutil"
)

// Graph maps each defined function to its unique direct callees.
// Declarations never appear as keys and are never listed as callees
// declarations (no body) contribute no edges.
type Graph map[*ir.Function][]*ir.Function

// Build collects unique direct callees from every call/invoke
// instruction in the module.
func Build(m *ir.Module) Graph {
	g := make(Graph)
	for _, f := range m.Functions {
		if f.IsDecl {
			continue
		}
		seen := map[*ir.Function]bool{}
		var callees []*ir.Function
		for _, inst := range f.AllInstructions() {
			call, ok := inst.(*ir.CallInst)
			if !ok || call.Callee == nil || call.Callee.IsDecl || seen[call.Callee] {
				continue
			}
			seen[call.Callee] = true
			callees = append(callees, call.Callee)
		}
		g[f] = callees
	}
	return g
}

// AllocaSize is one allocation site's name and resolved byte size,
// recorded for the alloca-usage detector.
type AllocaSize struct {
	Inst  *ir.AllocaInst
	Name  string
	Bytes uint64
}

// LocalFrame is one function's own stack-frame accounting.
type LocalFrame struct {
	Bytes            uint64
	Unknown          bool
	HasDynamicAlloca bool
	Allocas          []AllocaSize
}

// ComputeLocalFrame sums the byte sizes of f's allocation sites
// §4.3). Non-constant array counts are resolved through
// valueutil.TryGetConstFromValue; if that also fails the function is
// marked unknown and HasDynamicAlloca, and that allocation's size is
// simply omitted from the running sum (so the sum that remains is a
// lower bound.
func ComputeLocalFrame(f *ir.Function, dl *ir.DataLayout, mode config.Mode) LocalFrame {
	var frame LocalFrame
	if f.IsDecl {
		return frame
	}

	hasNonSelfCall := false
	for _, inst := range f.AllInstructions() {
		if alloc, ok := inst.(*ir.AllocaInst); ok {
			count, unknown := resolveArrayCount(alloc, f)
			size := dl.SizeOf(alloc.ElemType) * count
			name := valueutil.DeriveAllocaName(alloc)
			if unknown {
				frame.Unknown = true
				frame.HasDynamicAlloca = true
			} else {
				frame.Bytes += size
			}
			frame.Allocas = append(frame.Allocas, AllocaSize{Inst: alloc, Name: name, Bytes: size})
		}
		if call, ok := inst.(*ir.CallInst); ok {
			if call.Callee != f {
				hasNonSelfCall = true
			}
		}
	}

	if mode == config.ModeIR {
		frame.Bytes = dl.AlignStack(frame.Bytes)
		return frame
	}

	// ABI mode: every defined function gets at least one stack-aligned
	// slot, plus a caller-save slot when it performs non-self calls.
	if frame.Bytes < dl.StackAlign {
		frame.Bytes = dl.StackAlign
	}
	if hasNonSelfCall {
		frame.Bytes += dl.StackAlign
	}
	frame.Bytes = dl.AlignStack(frame.Bytes)
	return frame
}

// resolveArrayCount returns the alloca's element count: 1 if ArraySize is
// nil (a scalar or already-sized-array allocation), the constant if
// resolvable, or (0, true) if it's genuinely dynamic.
func resolveArrayCount(alloc *ir.AllocaInst, f *ir.Function) (uint64, bool) {
	if alloc.ArraySize == nil {
		return 1, false
	}
	if alloc.ArraySize.IsConstant {
		if alloc.ArraySize.ConstInt < 0 {
			return 0, true
		}
		return uint64(alloc.ArraySize.ConstInt), false
	}
	if c, ok := valueutil.TryGetConstFromValue(alloc.ArraySize, f); ok && c >= 0 {
		return uint64(c), false
	}
	return 0, true
}

// LargeAllocThreshold is the byte size above which a single allocation is
// classified "oversized": max(stackLimit/8, 64 KiB).
func LargeAllocThreshold(stackLimit uint64) uint64 {
	const sixtyFourKiB = 64 * 1024
	t := stackLimit / 8
	if t < sixtyFourKiB {
		return sixtyFourKiB
	}
	return t
}
