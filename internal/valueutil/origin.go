package valueutil

import "ctrace/internal/ir"

// PointerOrigin is one allocation a pointer value can be traced back to,
// together with the constant byte offset applied along the way and the
// chain of named intermediate variables walked to reach it (outermost
// alloca last, the pointer of interest first — callers that print an
// alias path reverse this).
type PointerOrigin struct {
	Alloca     *ir.AllocaInst
	ByteOffset int64
	AliasPath  []string
}

// ResolveOrigins walks v backward through bitcasts, address-space casts,
// constant-offset GEPs, loads of local pointer slots (by scanning every
// store that feeds the slot), and φ/select fan-out, collecting every
// local allocation the pointer can be traced to. φ/select fan-out yields
// one origin per incoming value rather than aborting, so callers that
// need a single unambiguous base (§4.7, §4.12, §4.13) must check that
// every returned origin names the same allocation.
func ResolveOrigins(v *ir.Value, f *ir.Function, dl *ir.DataLayout) []PointerOrigin {
	return resolveOrigins(v, f, dl, 0, nil, map[*ir.Value]bool{})
}

const maxOriginDepth = 64

func resolveOrigins(v *ir.Value, f *ir.Function, dl *ir.DataLayout, offset int64, path []string, seen map[*ir.Value]bool) []PointerOrigin {
	if v == nil || seen[v] {
		return nil
	}
	if len(path) > maxOriginDepth {
		return nil
	}
	seen = cloneSeen(seen)
	seen[v] = true

	if v.Def == nil {
		return nil // argument, global, or constant: no local allocation reached
	}

	switch inst := v.Def.(type) {
	case *ir.AllocaInst:
		name := DeriveAllocaName(inst)
		return []PointerOrigin{{Alloca: inst, ByteOffset: offset, AliasPath: appendName(path, name)}}

	case *ir.CastInst:
		if inst.Kind == ir.CastBitCast || inst.Kind == ir.CastAddrSpace {
			return resolveOrigins(inst.Src, f, dl, offset, appendName(path, v.Name), seen)
		}
		return nil

	case *ir.GEPInst:
		delta, ok := constantGEPOffset(inst, dl)
		if !ok {
			delta = 0
		}
		return resolveOrigins(inst.Base, f, dl, offset+delta, appendName(path, v.Name), seen)

	case *ir.LoadInst:
		var out []PointerOrigin
		for _, inst2 := range f.AllInstructions() {
			st, ok := inst2.(*ir.StoreInst)
			if !ok || st.Ptr != inst.Ptr {
				continue
			}
			out = append(out, resolveOrigins(st.Val, f, dl, offset, appendName(path, v.Name), seen)...)
		}
		return out

	case *ir.PhiInst:
		var out []PointerOrigin
		for _, incoming := range inst.Order {
			out = append(out, resolveOrigins(inst.Incoming[incoming], f, dl, offset, appendName(path, v.Name), seen)...)
		}
		return out

	case *ir.SelectInst:
		out := resolveOrigins(inst.TrueVal, f, dl, offset, appendName(path, v.Name), seen)
		out = append(out, resolveOrigins(inst.FalseVal, f, dl, offset, appendName(path, v.Name), seen)...)
		return out
	}
	return nil
}

func appendName(path []string, name string) []string {
	if name == "" {
		return path
	}
	out := make([]string, len(path)+1)
	out[0] = name
	copy(out[1:], path)
	return out
}

func cloneSeen(seen map[*ir.Value]bool) map[*ir.Value]bool {
	out := make(map[*ir.Value]bool, len(seen)+1)
	for k := range seen {
		out[k] = true
	}
	return out
}

// constantGEPOffset computes the total byte offset of a GEP whose indices
// are all resolvable integer constants, for the source type's layout.
func constantGEPOffset(gep *ir.GEPInst, dl *ir.DataLayout) (int64, bool) {
	if len(gep.Indices) == 0 {
		return 0, true
	}
	cur := gep.SourceType
	var total int64

	first := StripIntCasts(gep.Indices[0])
	if !first.IsConstant {
		return 0, false
	}
	total += first.ConstInt * int64(dl.SizeOf(cur))

	for _, idxV := range gep.Indices[1:] {
		idx := StripIntCasts(idxV)
		if !idx.IsConstant {
			return 0, false
		}
		switch t := cur.(type) {
		case *ir.StructType:
			dl.SizeOf(t) // force layout
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

// ResolveSingleBase is ResolveOrigins restricted to the common case where
// every reachable origin must agree on one allocation (used by the
// stack-buffer, escape, and const-parameter analyses, which operate on a
// single object of interest rather than aggregating over several).
func ResolveSingleBase(v *ir.Value, f *ir.Function, dl *ir.DataLayout) (*PointerOrigin, bool) {
	origins := ResolveOrigins(v, f, dl)
	if len(origins) == 0 {
		return nil, false
	}
	first := origins[0]
	for _, o := range origins[1:] {
		if o.Alloca != first.Alloca {
			return nil, false
		}
	}
	return &first, true
}
