// Package ranges infers closed integer intervals for values from
// conditional comparisons against constants. It is
// deliberately not path-sensitive: a fact derived at one comparison site
// is treated as holding wherever the value is later used, which is a
// conservative over-approximation the detectors downstream are expected
// to tolerate (they only use ranges to decide whether to warn, never to
// prove absence of a defect).
package ranges

import "ctrace/internal/ir"

// Range is a closed interval fact, where either bound may be absent.
type Range struct {
	HasLower bool
	Lower    int64
	HasUpper bool
	Upper    int64
}

// Merge tightens r with other: the max of the lower bounds, the min of
// the upper bounds.
func (r Range) Merge(other Range) Range {
	out := r
	if other.HasLower && (!out.HasLower || other.Lower > out.Lower) {
		out.HasLower = true
		out.Lower = other.Lower
	}
	if other.HasUpper && (!out.HasUpper || other.Upper < out.Upper) {
		out.HasUpper = true
		out.Upper = other.Upper
	}
	return out
}

// Facts maps values to the tightest range fact derived for them anywhere
// in the function.
type Facts struct {
	byValue map[*ir.Value]Range
}

// RangeOf returns the derived range for v, if any.
func (fa *Facts) RangeOf(v *ir.Value) (Range, bool) {
	if fa == nil {
		return Range{}, false
	}
	r, ok := fa.byValue[v]
	return r, ok
}

// Infer scans every icmp in f and derives range facts:
//
//	V < C  => V <= C-1      V <= C => V <= C
//	V > C  => V >= C+1      V >= C => V >= C
//	V == C => V in [C, C]   V != C => V <= C (deliberately over-approximated)
//
// When V is itself a load from pointer P, the same fact is additionally
// attached to P, since later reads of P inherit the bound the comparison
// established for the loaded value.
func Infer(f *ir.Function) *Facts {
	facts := &Facts{byValue: map[*ir.Value]Range{}}
	for _, inst := range f.AllInstructions() {
		icmp, ok := inst.(*ir.ICmpInst)
		if !ok {
			continue
		}
		lhs, rhs := icmp.LHS, icmp.RHS
		pred := icmp.Pred

		var value *ir.Value
		var c int64
		switch {
		case rhs.IsConstant && !lhs.IsConstant:
			value, c = lhs, rhs.ConstInt
		case lhs.IsConstant && !rhs.IsConstant:
			value, c = rhs, lhs.ConstInt
			pred = pred.Swap()
		default:
			continue
		}

		fact, ok := factFor(pred, c)
		if !ok {
			continue
		}
		facts.add(value, fact)

		if load, ok := value.Def.(*ir.LoadInst); ok {
			facts.add(load.Ptr, fact)
		}
	}
	return facts
}

func (fa *Facts) add(v *ir.Value, r Range) {
	existing := fa.byValue[v]
	fa.byValue[v] = existing.Merge(r)
}

func factFor(pred ir.Predicate, c int64) (Range, bool) {
	switch pred {
	case ir.PredSLT, ir.PredULT:
		return Range{HasUpper: true, Upper: c - 1}, true
	case ir.PredSLE, ir.PredULE:
		return Range{HasUpper: true, Upper: c}, true
	case ir.PredSGT, ir.PredUGT:
		return Range{HasLower: true, Lower: c + 1}, true
	case ir.PredSGE, ir.PredUGE:
		return Range{HasLower: true, Lower: c}, true
	case ir.PredEQ:
		return Range{HasLower: true, Lower: c, HasUpper: true, Upper: c}, true
	case ir.PredNE:
		// Deliberately over-approximated.
		return Range{HasUpper: true, Upper: c}, true
	default:
		return Range{}, false
	}
}
