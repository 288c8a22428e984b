// Package basereconstruction targets the "container_of" idiom and
// ill-formed positive-offset GEP reconstructions: pointer arithmetic that
// walks away from an allocation's start and is later dereferenced.
package basereconstruction

import (
	"strings"

	"ctrace/internal/ir"
	"ctrace/internal/valueutil"
)

type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
)

// Finding is one InvalidBaseReconstruction result.
type Finding struct {
	FuncName      string
	Severity      Severity
	AllocaVarName string
	AllocaSize    uint64
	AppliedOffset int64
	ResultOffset  int64
	Deref         ir.Instruction
}

// candidate is a reconstruction attempt: base pointer value plus the
// constant byte offset applied to it.
type candidate struct {
	base   *ir.Value
	offset int64
}

func Analyze(m *ir.Module, dl *ir.DataLayout, shouldAnalyze func(*ir.Function) bool) []Finding {
	var out []Finding
	for _, f := range m.Functions {
		if f.IsDecl || !shouldAnalyze(f) {
			continue
		}
		out = append(out, analyzeFunc(f, dl)...)
	}
	return out
}

func analyzeFunc(f *ir.Function, dl *ir.DataLayout) []Finding {
	var findings []Finding

	for _, inst := range f.AllInstructions() {
		var cands []candidate
		var reconstructed *ir.Value

		switch in := inst.(type) {
		case *ir.CastInst:
			if in.Kind != ir.CastIntToPtr {
				continue
			}
			reconstructed = in.Result()
			cands = expandArith(in.Src, f, 0, false, map[*ir.Value]bool{})

		case *ir.GEPInst:
			delta, ok := gepConstantOffset(in, dl)
			if !ok {
				continue
			}
			if delta == 0 {
				continue
			}
			reconstructed = in.Result()
			cands = []candidate{{base: in.Base, offset: delta}}
		default:
			continue
		}

		if reconstructed == nil || len(cands) == 0 {
			continue
		}
		deref := findDereference(reconstructed, f)
		if deref == nil {
			continue
		}

		type key struct {
			alloc  *ir.AllocaInst
			offset int64
		}
		seen := map[key]bool{}

		hasError, hasWarning := false, false
		var worstAlloc *ir.AllocaInst
		var worstOffset, worstApplied int64

		for _, c := range cands {
			origins := valueutil.ResolveOrigins(c.base, f, dl)
			for _, o := range origins {
				resultOffset := o.ByteOffset + c.offset
				k := key{o.Alloca, resultOffset}
				if seen[k] {
					continue
				}
				seen[k] = true

				size := dl.SizeOf(o.Alloca.ElemType)
				if resultOffset < 0 || resultOffset >= int64(size) {
					hasError = true
					worstAlloc, worstOffset, worstApplied = o.Alloca, resultOffset, c.offset
				} else if resultOffset != 0 {
					hasWarning = true
					if worstAlloc == nil {
						worstAlloc, worstOffset, worstApplied = o.Alloca, resultOffset, c.offset
					}
				}
			}
		}

		if worstAlloc == nil {
			continue
		}
		sev := SeverityWarning
		if hasError {
			sev = SeverityError
		}
		_ = hasWarning
		findings = append(findings, Finding{
			FuncName:      f.Name,
			Severity:      sev,
			AllocaVarName: valueutil.DeriveAllocaName(worstAlloc),
			AllocaSize:    dl.SizeOf(worstAlloc.ElemType),
			AppliedOffset: worstApplied,
			ResultOffset:  worstOffset,
			Deref:         deref,
		})
	}
	return findings
}

const maxArithDepth = 32

// expandArith walks a ptrtoint-derived integer expression, accumulating a
// constant add/sub offset, and returns one candidate per reachable
// ptrtoint seed. sawOffset is unused by callers but threaded to match the
// described shape of the worklist.
func expandArith(v *ir.Value, f *ir.Function, offset int64, sawOffset bool, seen map[*ir.Value]bool) []candidate {
	if v == nil || seen[v] || len(seen) > maxArithDepth {
		return nil
	}
	seen = cloneSeen(seen)
	seen[v] = true

	vv := valueutil.StripIntCasts(v)
	if vv.IsConstant {
		return nil // a bare constant is not itself a reconstruction seed
	}
	if vv.Def == nil {
		return nil
	}

	switch inst := vv.Def.(type) {
	case *ir.CastInst:
		if inst.Kind == ir.CastPtrToInt {
			return []candidate{{base: inst.Src, offset: offset}}
		}
		return nil

	case *ir.BinOpInst:
		switch inst.Op {
		case ir.BinAdd:
			if c := valueutil.StripIntCasts(inst.RHS); c.IsConstant {
				return expandArith(inst.LHS, f, offset+c.ConstInt, true, seen)
			}
			if c := valueutil.StripIntCasts(inst.LHS); c.IsConstant {
				return expandArith(inst.RHS, f, offset+c.ConstInt, true, seen)
			}
		case ir.BinSub:
			if c := valueutil.StripIntCasts(inst.RHS); c.IsConstant {
				return expandArith(inst.LHS, f, offset-c.ConstInt, true, seen)
			}
			// C - ptrtoint(P) is explicitly not a reconstruction.
		}
		return nil

	case *ir.PhiInst:
		var out []candidate
		for _, name := range inst.Order {
			out = append(out, expandArith(inst.Incoming[name], f, offset, sawOffset, seen)...)
		}
		return out

	case *ir.SelectInst:
		out := expandArith(inst.TrueVal, f, offset, sawOffset, seen)
		return append(out, expandArith(inst.FalseVal, f, offset, sawOffset, seen)...)

	case *ir.LoadInst:
		var out []candidate
		for _, inst2 := range f.AllInstructions() {
			st, ok := inst2.(*ir.StoreInst)
			if !ok || st.Ptr != inst.Ptr {
				continue
			}
			out = append(out, expandArith(st.Val, f, offset, sawOffset, seen)...)
		}
		return out
	}
	return nil
}

func cloneSeen(seen map[*ir.Value]bool) map[*ir.Value]bool {
	out := make(map[*ir.Value]bool, len(seen)+1)
	for k := range seen {
		out[k] = true
	}
	return out
}

// gepConstantOffset is constantGEPOffset from the origin walker, exposed
// here on a *ir.GEPInst directly since this analyzer needs the offset of
// the GEP itself rather than of a pointer it eventually reaches.
func gepConstantOffset(gep *ir.GEPInst, dl *ir.DataLayout) (int64, bool) {
	if len(gep.Indices) == 0 {
		return 0, true
	}
	cur := gep.SourceType
	var total int64

	first := valueutil.StripIntCasts(gep.Indices[0])
	if !first.IsConstant {
		return 0, false
	}
	total += first.ConstInt * int64(dl.SizeOf(cur))

	for _, idxV := range gep.Indices[1:] {
		idx := valueutil.StripIntCasts(idxV)
		if !idx.IsConstant {
			return 0, false
		}
		switch t := cur.(type) {
		case *ir.StructType:
			dl.SizeOf(t)
			if int(idx.ConstInt) < 0 || int(idx.ConstInt) >= len(t.Fields) {
				return 0, false
			}
			field := t.Fields[idx.ConstInt]
			total += int64(field.Offset)
			cur = field.Type
		case *ir.ArrayType:
			total += idx.ConstInt * int64(dl.SizeOf(t.Elem))
			cur = t.Elem
		default:
			return 0, false
		}
	}
	return total, true
}

// findDereference looks for a use of v (through pointer-preserving casts
// and GEPs) as a load/store/call-memory-operand, reachable by a bounded
// forward walk over the function's instruction list.
func findDereference(v *ir.Value, f *ir.Function) ir.Instruction {
	frontier := []*ir.Value{v}
	visited := map[*ir.Value]bool{}
	for len(frontier) > 0 {
		cur := frontier[0]
		frontier = frontier[1:]
		if cur == nil || visited[cur] {
			continue
		}
		visited[cur] = true

		for _, inst := range f.AllInstructions() {
			switch in := inst.(type) {
			case *ir.LoadInst:
				if in.Ptr == cur {
					return in
				}
			case *ir.StoreInst:
				if in.Ptr == cur {
					return in
				}
			case *ir.CastInst:
				if in.Src == cur {
					frontier = append(frontier, in.Result())
				}
			case *ir.GEPInst:
				if in.Base == cur {
					frontier = append(frontier, in.Result())
				}
			case *ir.CallInst:
				for _, arg := range in.Args {
					if arg == cur && isMemIntrinsic(in) {
						return in
					}
				}
			}
		}
	}
	return nil
}

func isMemIntrinsic(call *ir.CallInst) bool {
	name := call.CalleeName()
	return strings.Contains(name, "memcpy") || strings.Contains(name, "memmove") || strings.Contains(name, "memset")
}
