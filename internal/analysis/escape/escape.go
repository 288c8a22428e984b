// Package escape implements the stack-pointer escape analyzer: for every
// local allocation, propagate values that are (equal to) its address and
// report when one reaches a return, a global store, an unknown store, or
// an uncaptured call argument.
package escape

import (
	"strings"

	"ctrace/internal/ir"
	"ctrace/internal/valueutil"
)

type Kind int

const (
	KindReturn Kind = iota
	KindStoreGlobal
	KindStoreUnknown
	KindCallArg
	KindCallCallback
)

// Finding is one StackPointerEscape result.
type Finding struct {
	FuncName      string
	Kind          Kind
	AllocaVarName string
	Target        string // global name for store_global, callee name for call_arg
	Inst          ir.Instruction
}

// EnableCallArg gates the call_arg (direct-call) escape report, mirroring
// a build-time flag in the original analyzer that left it off by default
// because of its false-positive rate against opaque C APIs.
var EnableCallArg = false

func Analyze(m *ir.Module, dl *ir.DataLayout, shouldAnalyze func(*ir.Function) bool) []Finding {
	var out []Finding
	for _, f := range m.Functions {
		if f.IsDecl || !shouldAnalyze(f) {
			continue
		}
		for _, inst := range f.AllInstructions() {
			alloc, ok := inst.(*ir.AllocaInst)
			if !ok {
				continue
			}
			out = append(out, analyzeAlloca(f, alloc, dl)...)
		}
	}
	return out
}

func analyzeAlloca(f *ir.Function, alloc *ir.AllocaInst, dl *ir.DataLayout) []Finding {
	var out []Finding
	varName := valueutil.DeriveAllocaName(alloc)

	type item struct{ v *ir.Value }
	frontier := []item{{alloc.Result()}}
	visited := map[*ir.Value]bool{}

	for len(frontier) > 0 {
		cur := frontier[0]
		frontier = frontier[1:]
		if cur.v == nil || visited[cur.v] {
			continue
		}
		visited[cur.v] = true

		for _, inst := range f.AllInstructions() {
			switch in := inst.(type) {
			case *ir.RetInst:
				if in.Val == cur.v {
					out = append(out, Finding{f.Name, KindReturn, varName, "", in})
				}
			case *ir.CastInst:
				if in.Src == cur.v {
					frontier = append(frontier, item{in.Result()})
				}
			case *ir.GEPInst:
				if in.Base == cur.v {
					frontier = append(frontier, item{in.Result()})
				}
			case *ir.PhiInst:
				for _, incoming := range in.Order {
					if in.Incoming[incoming] == cur.v {
						frontier = append(frontier, item{in.Result()})
						break
					}
				}
			case *ir.SelectInst:
				if in.TrueVal == cur.v || in.FalseVal == cur.v {
					frontier = append(frontier, item{in.Result()})
				}
			case *ir.StoreInst:
				if in.Val != cur.v {
					continue
				}
				if in.Ptr.IsGlobal {
					out = append(out, Finding{f.Name, KindStoreGlobal, varName, in.Ptr.Name, in})
					continue
				}
				if base, ok := valueutil.ResolveSingleBase(in.Ptr, f, dl); ok && base.Alloca != nil {
					frontier = append(frontier, item{in.Ptr})
					continue
				}
				out = append(out, Finding{f.Name, KindStoreUnknown, varName, "", in})
			case *ir.CallInst:
				for idx, arg := range in.Args {
					if arg != cur.v {
						continue
					}
					if in.Indirect != nil {
						out = append(out, Finding{f.Name, KindCallCallback, varName, "", in})
						continue
					}
					if in.Callee != nil && (in.Callee.Attrs.NoCapture[idx] || in.Callee.Attrs.ByVal[idx] || in.Callee.Attrs.ByRef[idx]) {
						continue
					}
					name := in.CalleeName()
					if isStdlibHelper(name) {
						continue
					}
					if EnableCallArg {
						out = append(out, Finding{f.Name, KindCallArg, varName, name, in})
					}
				}
			}
		}
	}
	return out
}

// isStdlibHelper matches the Itanium standard-namespace mangling prefixes
// (`_ZNSt`, `_ZSt`) and the Itanium C++ runtime prefix (`_ZTI`/`_ZTV`/...
// collapsed here to the `_ZT` family), plus smart-pointer helper names
// the original analyzer special-cased out.
func isStdlibHelper(name string) bool {
	if strings.HasPrefix(name, "_ZNSt") || strings.HasPrefix(name, "_ZSt") || strings.HasPrefix(name, "_ZT") {
		return true
	}
	return strings.Contains(name, "unique_ptr") || strings.Contains(name, "make_unique")
}
