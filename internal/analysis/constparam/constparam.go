// Package constparam implements the never-mutated parameter analyzer:
// for pointer/reference arguments whose pointee is not already const,
// check whether any write reaches them and, if not, suggest adding const.
package constparam

import (
	"strings"

	"ctrace/internal/ir"
)

// Finding is one ConstParameterNotModified result.
type Finding struct {
	FuncName         string
	ParamName        string
	ParamIndex       int
	Kind             ir.PointeeKind
	CurrentType      string
	SuggestedType    string
	AltSuggestion    string // rvalue-reference alternative: by-value or const-lvalue-ref
	PointerOnlyConst bool   // the pointer itself would be const, not (only) the pointee
}

func Analyze(m *ir.Module, shouldAnalyze func(*ir.Function) bool) []Finding {
	var out []Finding
	for _, f := range m.Functions {
		if f.IsDecl || !shouldAnalyze(f) {
			continue
		}
		for idx, p := range f.Params {
			if skip(p) {
				continue
			}
			if writeObserved(f, p.Value, idx) {
				continue
			}
			out = append(out, buildFinding(f, p, idx))
		}
	}
	return out
}

func skip(p *ir.Param) bool {
	if p.Debug.Kind == ir.NotPointerOrRef {
		return true
	}
	if p.Debug.IsDoublePointer || p.Debug.IsFunctionPtr {
		return true
	}
	if p.Debug.CanonicalName == "void" {
		return true
	}
	if p.Debug.PointeeConst {
		return true
	}
	return false
}

func buildFinding(f *ir.Function, p *ir.Param, idx int) Finding {
	suggested := "const " + p.Debug.PointeeTypeName
	alt := ""
	switch p.Debug.Kind {
	case ir.PointerKind:
		suggested += "*"
	case ir.ReferenceKind:
		suggested += "&"
	case ir.RvalueReferenceKind:
		alt = p.Debug.PointeeTypeName + " (by value), or const " + p.Debug.PointeeTypeName + "& (const lvalue reference)"
		suggested += "&&"
	}
	return Finding{
		FuncName:      f.Name,
		ParamName:     p.Name,
		ParamIndex:    idx,
		Kind:          p.Debug.Kind,
		CurrentType:   p.Debug.PointeeTypeName,
		SuggestedType: suggested,
		AltSuggestion: alt,
	}
}

const maxDepth = 32

// writeObserved runs the worklist starting at the parameter value,
// propagating through address-preserving transformations, and reports
// whether any write reaches it.
func writeObserved(f *ir.Function, v *ir.Value, paramIdx int) bool {
	frontier := []*ir.Value{v}
	visited := map[*ir.Value]bool{}
	for i := 0; len(frontier) > 0 && i < maxDepth*8; i++ {
		cur := frontier[0]
		frontier = frontier[1:]
		if cur == nil || visited[cur] {
			continue
		}
		visited[cur] = true

		for _, inst := range f.AllInstructions() {
			switch in := inst.(type) {
			case *ir.CastInst:
				if in.Src != cur {
					continue
				}
				if in.Kind == ir.CastPtrToInt {
					return true // conservatively treated as writable (escape)
				}
				frontier = append(frontier, in.Result())
			case *ir.GEPInst:
				if in.Base == cur {
					frontier = append(frontier, in.Result())
				}
			case *ir.PhiInst:
				for _, blk := range in.Order {
					if in.Incoming[blk] == cur {
						frontier = append(frontier, in.Result())
						break
					}
				}
			case *ir.SelectInst:
				if in.TrueVal == cur || in.FalseVal == cur {
					frontier = append(frontier, in.Result())
				}
			case *ir.StoreInst:
				if in.Ptr == cur {
					return true
				}
				if in.Val == cur {
					// stored into a local pointer slot: the slot's loads
					// continue carrying the parameter's address forward.
					frontier = append(frontier, loadsOf(f, in.Ptr)...)
				}
			case *ir.CallInst:
				for argIdx, arg := range in.Args {
					if arg != cur {
						continue
					}
					if callArgIsWrite(in, argIdx) {
						return true
					}
				}
			}
		}
	}
	return false
}

func loadsOf(f *ir.Function, slot *ir.Value) []*ir.Value {
	var out []*ir.Value
	for _, inst := range f.AllInstructions() {
		if ld, ok := inst.(*ir.LoadInst); ok && ld.Ptr == slot {
			out = append(out, ld.Result())
		}
	}
	return out
}

// callArgIsWrite decides whether passing the tracked pointer to this call
// argument position counts as a write: true unless the callee is known
// read-only for that position (intrinsic, explicit attribute, whole
// -function readonly/readnone, or the callee's own debug info says the
// corresponding parameter's pointee is const).
func callArgIsWrite(call *ir.CallInst, argIdx int) bool {
	name := call.CalleeName()
	if strings.Contains(name, "llvm.memcpy") && argIdx == 0 {
		return true // the copy destination is written
	}
	if isReadOnlyIntrinsic(name) {
		return false
	}
	if call.Callee != nil {
		attrs := call.Callee.Attrs
		if attrs.DoesNotAccessMemory || attrs.OnlyReadsMemory || attrs.ReadOnlyArg[argIdx] {
			return false
		}
		if argIdx < len(call.Callee.Params) && call.Callee.Params[argIdx].Debug.PointeeConst {
			return false
		}
	}
	return true
}

func isReadOnlyIntrinsic(name string) bool {
	for _, n := range []string{"llvm.memcpy", "strlen", "llvm.dbg"} {
		if strings.Contains(name, n) {
			return true
		}
	}
	return false
}
