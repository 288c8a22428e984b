// Package valueutil holds the small pointer-chasing and constant-recovery
// utilities every defect detector in internal/analysis builds on: name
// recovery for unnamed allocations, constant-through-local-slot
// resolution, and the bounded backward walks (user-controlled values,
// allocation-origin resolution) that need a visited set to stay
// terminating across φ/select fan-out and load/store cycles.
package valueutil

import "ctrace/internal/ir"

// StripCasts unwraps bitcast/addrspacecast/trunc/zext/sext chains down to
// the first non-cast value.
func StripCasts(v *ir.Value) *ir.Value {
	for {
		if v == nil || v.Def == nil {
			return v
		}
		c, ok := v.Def.(*ir.CastInst)
		if !ok {
			return v
		}
		v = c.Src
	}
}

// StripIntCasts is StripCasts restricted to casts that preserve integer
// identity (everything but ptrtoint/inttoptr, which change domain).
func StripIntCasts(v *ir.Value) *ir.Value {
	for {
		if v == nil || v.Def == nil {
			return v
		}
		c, ok := v.Def.(*ir.CastInst)
		if !ok {
			return v
		}
		if c.Kind == ir.CastPtrToInt || c.Kind == ir.CastIntToPtr {
			return v
		}
		v = c.Src
	}
}

// DeriveAllocaName recovers a display name for an alloca: its own SSA
// name if present, else the name carried by the first dbg-value marking
// it, else the destination slot name of any store that places it into a
// named local (the common `T *p = alloca(...)` -> `store %a, %p.addr`
// shape when the frontend spills the pointer itself to a slot).
func DeriveAllocaName(alloc *ir.AllocaInst) string {
	if alloc.VarName != "" {
		return alloc.VarName
	}
	if alloc.Res != nil && alloc.Res.Name != "" {
		return alloc.Res.Name
	}

	seen := map[*ir.Value]bool{}
	worklist := []*ir.Value{alloc.Res}
	for len(worklist) > 0 {
		v := worklist[0]
		worklist = worklist[1:]
		if v == nil || seen[v] {
			continue
		}
		seen[v] = true
		for _, use := range usesOf(v) {
			switch inst := use.(type) {
			case *ir.DebugValueInst:
				if inst.Target == v && inst.VarName != "" {
					return inst.VarName
				}
			case *ir.StoreInst:
				if inst.Val == v && inst.Ptr != nil && inst.Ptr.Name != "" {
					return inst.Ptr.Name
				}
			case *ir.CastInst:
				if inst.Res != nil {
					worklist = append(worklist, inst.Res)
				}
			}
		}
	}
	return "<unnamed>"
}

// usesOf scans the owning function for instructions that use v. The IR
// model doesn't keep explicit use-lists, so this walks the block list; callers
// only invoke it for name recovery, never in a hot path.
func usesOf(v *ir.Value) []ir.Instruction {
	if v == nil || v.Def == nil {
		return nil
	}
	blk := v.Def.Block()
	if blk == nil || blk.Func == nil {
		return nil
	}
	var out []ir.Instruction
	for _, inst := range blk.Func.AllInstructions() {
		for _, op := range inst.Operands() {
			if op == v {
				out = append(out, inst)
				break
			}
		}
	}
	return out
}

// TryGetConstFromValue strips casts and resolves v to a compile-time
// integer constant: either v is itself a constant, or v is a load from a
// pointer P and the function contains at least one store of a constant
// into P, in which case the *last* such store found in instruction
// iteration order is returned. This mirrors the original analyzer's
// naive approximation exactly: it does not check that
// the store dominates the load, so branch-dependent initialization can
// make this report the wrong constant. Implementers revisiting this
// should consider requiring dominance.
func TryGetConstFromValue(v *ir.Value, f *ir.Function) (int64, bool) {
	v = StripIntCasts(v)
	if v == nil {
		return 0, false
	}
	if v.IsConstant {
		return v.ConstInt, true
	}
	load, ok := v.Def.(*ir.LoadInst)
	if !ok {
		return 0, false
	}
	ptr := load.Ptr
	var last int64
	found := false
	for _, inst := range f.AllInstructions() {
		st, ok := inst.(*ir.StoreInst)
		if !ok || st.Ptr != ptr {
			continue
		}
		c := StripIntCasts(st.Val)
		if c != nil && c.IsConstant {
			last = c.ConstInt
			found = true
		}
	}
	return last, found
}

// IsUserControlled reports whether v's data-flow predecessors transitively
// include a function argument, a load of non-local memory, or the result
// of a call — the working definition of "user-controlled".
// The walk is bounded to depth 20 and guarded by a visited set, since
// operand graphs can cycle through φ nodes.
func IsUserControlled(v *ir.Value) bool {
	return isUserControlled(v, map[*ir.Value]bool{}, 0)
}

const maxUserControlledDepth = 20

func isUserControlled(v *ir.Value, seen map[*ir.Value]bool, depth int) bool {
	if v == nil || depth > maxUserControlledDepth || seen[v] {
		return false
	}
	seen[v] = true

	if v.IsArg {
		return true
	}
	if v.Def == nil {
		return false
	}
	switch inst := v.Def.(type) {
	case *ir.LoadInst:
		if inst.Ptr.IsArg {
			return true
		}
		if origin := StripCasts(inst.Ptr); origin != nil && origin.Def != nil {
			if _, isAlloca := origin.Def.(*ir.AllocaInst); !isAlloca {
				// Load from something that isn't a traceable local
				// allocation: treat as non-local memory.
				if !isUserControlled(inst.Ptr, seen, depth+1) {
					return true
				}
			}
		} else if origin == nil || origin.IsGlobal {
			return true
		}
		return isUserControlled(inst.Ptr, seen, depth+1)
	case *ir.CallInst:
		return true
	}
	for _, op := range v.Def.Operands() {
		if isUserControlled(op, seen, depth+1) {
			return true
		}
	}
	return false
}
