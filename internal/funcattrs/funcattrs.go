// Package funcattrs implements the function-attrs pre-pass (spec §2
// step 2): it infers `nocapture` and `readonly` argument attributes, and
// the function-level `doesNotAccessMemory`/`onlyReadsMemory` classes,
// that the escape and const-parameter analyses depend on. This is the
// only pass in the pipeline that mutates the module (it stamps
// ir.Function.Attrs); every detector that follows treats the module as
// read-only.
package funcattrs

import (
	"strings"

	"ctrace/internal/ir"
)

// Infer runs the pass over every defined function in m. It must run
// before any detector that inspects FuncAttrs.
func Infer(m *ir.Module) {
	for _, f := range m.Functions {
		if f.IsDecl {
			continue
		}
		inferOne(f)
	}
}

func inferOne(f *ir.Function) {
	writesMemory := false
	callsUnknown := false

	for argIdx, p := range f.Params {
		if !isPointerLike(p.Value) {
			continue
		}
		captured, written := trackArg(f, p.Value)
		if !captured {
			f.Attrs.NoCapture[argIdx] = true
		}
		if !written {
			f.Attrs.ReadOnlyArg[argIdx] = true
		} else {
			writesMemory = true
		}
	}

	for _, inst := range f.AllInstructions() {
		switch in := inst.(type) {
		case *ir.StoreInst:
			writesMemory = true
		case *ir.CallInst:
			if isMemIntrinsicName(in.CalleeName()) {
				writesMemory = true
				continue
			}
			if in.Callee == nil || in.Callee == f {
				if in.Callee == nil {
					callsUnknown = true
				}
				continue
			}
			if !in.Callee.Attrs.DoesNotAccessMemory && !in.Callee.Attrs.OnlyReadsMemory {
				callsUnknown = true
			}
		}
	}

	f.Attrs.DoesNotAccessMemory = !writesMemory && !callsUnknown && !hasAnyLoad(f)
	f.Attrs.OnlyReadsMemory = !writesMemory && (!callsUnknown || f.Attrs.DoesNotAccessMemory)
}

func isMemIntrinsicName(name string) bool {
	return strings.Contains(name, "memcpy") || strings.Contains(name, "memset") || strings.Contains(name, "memmove")
}

func hasAnyLoad(f *ir.Function) bool {
	for _, inst := range f.AllInstructions() {
		if _, ok := inst.(*ir.LoadInst); ok {
			return true
		}
	}
	return false
}

func isPointerLike(v *ir.Value) bool {
	if v == nil {
		return false
	}
	_, ok := v.Type.(*ir.PointerType)
	return ok
}

const maxDepth = 256

// trackArg walks every address-preserving use of the argument value,
// reporting whether its address escapes the function (is captured: e.g.
// stored somewhere, returned, or passed to an uncaptured call argument)
// and whether a write is ever observed through it.
func trackArg(f *ir.Function, arg *ir.Value) (captured, written bool) {
	frontier := []*ir.Value{arg}
	visited := map[*ir.Value]bool{}
	for i := 0; len(frontier) > 0 && i < maxDepth; i++ {
		cur := frontier[0]
		frontier = frontier[1:]
		if cur == nil || visited[cur] {
			continue
		}
		visited[cur] = true

		for _, inst := range f.AllInstructions() {
			switch in := inst.(type) {
			case *ir.RetInst:
				if in.Val == cur {
					captured = true
				}
			case *ir.CastInst:
				if in.Src == cur {
					if in.Kind == ir.CastPtrToInt {
						captured = true
					}
					frontier = append(frontier, in.Result())
				}
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
					written = true
				}
				if in.Val == cur {
					captured = true
				}
			case *ir.CallInst:
				for argIdx, callArg := range in.Args {
					if callArg != cur {
						continue
					}
					if isMemIntrinsicName(in.CalleeName()) {
						if argIdx == 0 {
							written = true
						}
						continue
					}
					if in.Callee != nil && in.Callee.Attrs.NoCapture[argIdx] {
						continue
					}
					captured = true
				}
			}
		}
	}
	return captured, written
}
