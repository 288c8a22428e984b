// Package sizeminusk looks for writes whose length or index is computed
// as "size - k" for some positive constant k, a classic off-by-k
// underflow shape when size is attacker-influenced and can be smaller
// than k. It propagates sink positions through user-defined wrapper
// functions via a two-pass fixed-point summary before emitting.
package sizeminusk

import (
	"strings"

	"ctrace/internal/ir"
	"ctrace/internal/ranges"
	"ctrace/internal/valueutil"
)

// SinkPair names a (destination-argument-index, length-argument-index)
// pair a function's own body exercises as a memory-writing sink.
type SinkPair struct {
	DstIdx int
	LenIdx int
}

// Summaries maps a defined function to the sink-argument pairs it
// exposes to its callers, directly or transitively.
type Summaries map[*ir.Function][]SinkPair

// Finding is one SizeMinusKWriteIssue.
type Finding struct {
	FuncName   string
	Inst       ir.Instruction
	SizeBase   *ir.Value
	K          int64
	PtrNonNull bool
	SizeAboveK bool
}

// BuildSummaries runs the seed + propagate fixed point described for the
// interprocedural match.
func BuildSummaries(m *ir.Module) Summaries {
	sum := Summaries{}
	for _, f := range m.Functions {
		if f.IsDecl {
			continue
		}
		for _, inst := range f.AllInstructions() {
			call, ok := inst.(*ir.CallInst)
			if !ok || call.Indirect != nil || len(call.Args) < 3 {
				continue
			}
			if !isKnownSinkName(call.CalleeName()) {
				continue
			}
			dst := canonicalizeArg(call.Args[0], f)
			length := canonicalizeArg(call.Args[2], f)
			if dst.IsArg && length.IsArg && dst.ArgIndex != length.ArgIndex {
				addPair(sum, f, SinkPair{dst.ArgIndex, length.ArgIndex})
			}
		}
	}

	for changed := true; changed; {
		changed = false
		for _, f := range m.Functions {
			if f.IsDecl {
				continue
			}
			for _, inst := range f.AllInstructions() {
				call, ok := inst.(*ir.CallInst)
				if !ok || call.Callee == nil {
					continue
				}
				pairs := sum[call.Callee]
				for _, p := range pairs {
					if p.DstIdx >= len(call.Args) || p.LenIdx >= len(call.Args) {
						continue
					}
					dst := canonicalizeArg(call.Args[p.DstIdx], f)
					length := canonicalizeArg(call.Args[p.LenIdx], f)
					if dst.IsArg && length.IsArg && dst.ArgIndex != length.ArgIndex {
						if addPair(sum, f, SinkPair{dst.ArgIndex, length.ArgIndex}) {
							changed = true
						}
					}
				}
			}
		}
	}
	return sum
}

func addPair(sum Summaries, f *ir.Function, p SinkPair) bool {
	for _, existing := range sum[f] {
		if existing == p {
			return false
		}
	}
	sum[f] = append(sum[f], p)
	return true
}

// Analyze matches every known sink against the size-k shape and applies
// the emission policy: emit unless either the destination is provably
// non-null or the size base is provably above k. This implementation has
// no null-pointer value analysis, so ptrNonNull is conservatively always
// false; only the size-range proof can suppress a finding.
func Analyze(m *ir.Module, shouldAnalyze func(*ir.Function) bool, sum Summaries) []Finding {
	var out []Finding
	for _, f := range m.Functions {
		if f.IsDecl || !shouldAnalyze(f) {
			continue
		}
		facts := ranges.Infer(f)
		for _, inst := range f.AllInstructions() {
			switch call := inst.(type) {
			case *ir.CallInst:
				if call.Indirect != nil || len(call.Args) < 3 {
					continue
				}
				var sinks []SinkPair
				if isKnownSinkName(call.CalleeName()) {
					sinks = []SinkPair{{0, 2}}
				} else if call.Callee != nil {
					sinks = sum[call.Callee]
				}
				for _, p := range sinks {
					if p.DstIdx >= len(call.Args) || p.LenIdx >= len(call.Args) {
						continue
					}
					if f := matchAndEmit(f.Name, inst, call.Args[p.LenIdx], facts); f != nil {
						out = append(out, *f)
					}
				}
			case *ir.StoreInst:
				if call.Ptr.Def == nil {
					continue
				}
				gep, ok := call.Ptr.Def.(*ir.GEPInst)
				if !ok {
					continue
				}
				for _, idx := range gep.Indices {
					if f := matchAndEmit(f.Name, inst, idx, facts); f != nil {
						out = append(out, *f)
						break
					}
				}
			}
		}
	}
	return out
}

func matchAndEmit(funcName string, inst ir.Instruction, lenVal *ir.Value, facts *ranges.Facts) *Finding {
	base, k, ok := matchSizeMinusK(lenVal)
	if !ok {
		return nil
	}
	sizeAboveK := false
	if r, ok := facts.RangeOf(base); ok && r.HasLower && r.Lower > k {
		sizeAboveK = true
	}
	if sizeAboveK {
		return nil
	}
	return &Finding{
		FuncName:   funcName,
		Inst:       inst,
		SizeBase:   base,
		K:          k,
		PtrNonNull: false,
		SizeAboveK: false,
	}
}

// matchSizeMinusK recognizes Add(base, -k) / Sub(base, k) for a positive
// constant k, after canonicalization.
func matchSizeMinusK(v *ir.Value) (base *ir.Value, k int64, ok bool) {
	v = valueutil.StripIntCasts(v)
	if v.Def == nil {
		return nil, 0, false
	}
	bin, isBin := v.Def.(*ir.BinOpInst)
	if !isBin {
		return nil, 0, false
	}
	switch bin.Op {
	case ir.BinAdd:
		if rhs := valueutil.StripIntCasts(bin.RHS); rhs.IsConstant && rhs.ConstInt < 0 {
			return bin.LHS, -rhs.ConstInt, true
		}
		if lhs := valueutil.StripIntCasts(bin.LHS); lhs.IsConstant && lhs.ConstInt < 0 {
			return bin.RHS, -lhs.ConstInt, true
		}
	case ir.BinSub:
		if rhs := valueutil.StripIntCasts(bin.RHS); rhs.IsConstant && rhs.ConstInt > 0 {
			return bin.LHS, rhs.ConstInt, true
		}
	}
	return nil, 0, false
}

// canonicalizeArg strips casts and, for a load from a stack slot that has
// been initialized from a function argument, substitutes the argument.
func canonicalizeArg(v *ir.Value, f *ir.Function) *ir.Value {
	v = valueutil.StripCasts(v)
	load, ok := v.Def.(*ir.LoadInst)
	if !ok {
		return v
	}
	for _, inst := range f.AllInstructions() {
		st, ok := inst.(*ir.StoreInst)
		if !ok || st.Ptr != load.Ptr {
			continue
		}
		if st.Val.IsArg {
			return st.Val
		}
	}
	return v
}

func isKnownSinkName(name string) bool {
	for _, n := range []string{"memcpy", "memmove", "memset", "strncpy", "strncat", "stpncpy"} {
		if strings.Contains(name, n) {
			return true
		}
	}
	return false
}
