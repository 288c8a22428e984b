package dupcond

import (
	"ctrace/internal/ir"
	"ctrace/internal/valueutil"
)

// Finding is one DuplicateIfCondition result: branch carries the same
// condition as a dominating branch's false arm, with an `else` between.
type Finding struct {
	FuncName string
	Branch   *ir.BrInst
	Dup      *ir.BrInst
}

// conditionKey is the canonical, order-independent identity of a branch
// condition: either an integer compare (predicate, operand pair, with
// loads replaced by the pointer they read and the pair sorted so the
// smaller-ID operand is first, swapping the predicate symmetrically), or
// a raw canonicalized value for anything else.
type conditionKey struct {
	isCompare bool
	pred      ir.Predicate
	a, b      *ir.Value
	raw       *ir.Value
	reads     []*ir.Value // memory operands read while building this key
}

func Analyze(m *ir.Module, cache *LineCache, shouldAnalyze func(*ir.Function) bool) []Finding {
	var out []Finding
	for _, f := range m.Functions {
		if f.IsDecl || !shouldAnalyze(f) {
			continue
		}
		out = append(out, analyzeFunc(f, cache)...)
	}
	return out
}

func analyzeFunc(f *ir.Function, cache *LineCache) []Finding {
	var out []Finding
	var branches []*ir.BrInst
	for _, blk := range f.Blocks {
		if br, ok := blk.Terminator().(*ir.BrInst); ok && br.Cond != nil {
			branches = append(branches, br)
		}
	}

	for _, b := range branches {
		bb := b.Block()
		key := keyOf(b.Cond)
		for _, d := range branches {
			if d == b {
				continue
			}
			dbb := d.Block()
			if !ir.Dominates(dbb, bb) || d.False == nil || !ir.Dominates(d.False, bb) {
				continue
			}
			dkey := keyOf(d.Cond)
			if !equivalent(key, dkey) {
				continue
			}
			if !betweenHasElseImpl(f, d, b, cache) {
				continue
			}
			if interferes(f, key, d.False, b) {
				continue
			}
			out = append(out, Finding{FuncName: f.Name, Branch: b, Dup: d})
			break
		}
	}
	return out
}

func keyOf(cond *ir.Value) conditionKey {
	v := valueutil.StripCasts(cond)
	var reads []*ir.Value
	if v.Def != nil {
		if load, ok := v.Def.(*ir.LoadInst); ok {
			reads = append(reads, load.Ptr)
			v = load.Ptr
		}
	}
	if v.Def != nil {
		if cmp, ok := v.Def.(*ir.ICmpInst); ok {
			lhs, lreads := canonOperand(cmp.LHS)
			rhs, rreads := canonOperand(cmp.RHS)
			reads = append(reads, lreads...)
			reads = append(reads, rreads...)
			pred := cmp.Pred
			if lhs.ID > rhs.ID {
				lhs, rhs = rhs, lhs
				pred = pred.Swap()
			}
			return conditionKey{isCompare: true, pred: pred, a: lhs, b: rhs, reads: reads}
		}
	}
	return conditionKey{raw: v, reads: reads}
}

func canonOperand(v *ir.Value) (*ir.Value, []*ir.Value) {
	v = valueutil.StripCasts(v)
	if v.Def != nil {
		if load, ok := v.Def.(*ir.LoadInst); ok {
			return load.Ptr, []*ir.Value{load.Ptr}
		}
	}
	return v, nil
}

func equivalent(a, b conditionKey) bool {
	if a.isCompare != b.isCompare {
		return false
	}
	if a.isCompare {
		return a.pred == b.pred && a.a == b.a && a.b == b.b
	}
	return a.raw == b.raw
}

// betweenHasElseImpl checks the source text between the two branches'
// debug locations for a whole-word `else` token.
func betweenHasElseImpl(f *ir.Function, d, b *ir.BrInst, cache *LineCache) bool {
	path := f.DebugFile
	dLoc := d.Loc()
	bLoc := b.Loc()
	if !dLoc.Valid() || !bLoc.Valid() {
		return false
	}
	file := dLoc.File
	if file == "" {
		file = path
	}
	return cache.ContainsElseToken(file, dLoc.Line, bLoc.Line)
}

// interferes reports whether some write reachable from pathBlock (the
// dominating branch's false successor, i.e. the path the duplicate
// condition is reached through) and able to reach at (the flagged
// branch) touches a memory operand read while building key. A condition
// with no memory reads (a pure register compare) can never be
// interfered with. Mirrors hasInterveningWrites/isInterferingWrite in
// the original DuplicateIfCondition.cpp: scoped to DT.dominates(pathBlock, BB)
// and isPotentiallyReachable(I, at), with calls only counted as
// interference when one of their own arguments aliases the tracked
// pointer.
func interferes(f *ir.Function, key conditionKey, pathBlock *ir.BasicBlock, at *ir.BrInst) bool {
	if len(key.reads) == 0 || pathBlock == nil {
		return false
	}
	atBlock := at.Block()
	canReachAt := blocksReaching(atBlock)

	for _, bb := range f.Blocks {
		if !ir.Dominates(pathBlock, bb) {
			continue
		}
		if bb != atBlock && !canReachAt[bb] {
			continue
		}
		for _, inst := range bb.Instructions {
			if bb == atBlock && inst == ir.Instruction(at) {
				break
			}
			if isInterferingWrite(inst, key.reads) {
				return true
			}
		}
	}
	return false
}

// blocksReaching returns the set of blocks (including target) from which
// target is reachable via the CFG, computed by a backward walk over
// Preds — the block-level stand-in for isPotentiallyReachable.
func blocksReaching(target *ir.BasicBlock) map[*ir.BasicBlock]bool {
	seen := map[*ir.BasicBlock]bool{target: true}
	queue := []*ir.BasicBlock{target}
	for len(queue) > 0 {
		bb := queue[0]
		queue = queue[1:]
		for _, p := range bb.Preds {
			if !seen[p] {
				seen[p] = true
				queue = append(queue, p)
			}
		}
	}
	return seen
}

// isInterferingWrite reports whether inst writes through one of reads,
// per-kind the way isInterferingWrite in the original does: a direct
// store through the tracked pointer, or a call that may write memory
// and has one of reads among its own (cast-stripped) arguments.
func isInterferingWrite(inst ir.Instruction, reads []*ir.Value) bool {
	switch in := inst.(type) {
	case *ir.StoreInst:
		ptr := valueutil.StripCasts(in.Ptr)
		for _, r := range reads {
			if ptr == r {
				return true
			}
		}
	case *ir.CallInst:
		if in.Callee != nil && (in.Callee.Attrs.DoesNotAccessMemory || in.Callee.Attrs.OnlyReadsMemory) {
			return false
		}
		for _, arg := range in.Args {
			stripped := valueutil.StripCasts(arg)
			for _, r := range reads {
				if stripped == r {
					return true
				}
			}
		}
	}
	return false
}
