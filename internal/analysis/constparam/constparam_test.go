package constparam

import (
	"testing"

	"ctrace/internal/ir"
)

func i32() *ir.IntType { return &ir.IntType{Bits: 32} }

func acceptAll(*ir.Function) bool { return true }

func ptrDbg(typeName string) ir.DebugType {
	return ir.DebugType{Kind: ir.PointerKind, PointeeTypeName: typeName, CanonicalName: typeName}
}

func TestAnalyze_NeverWrittenPointerParamSuggestsConst(t *testing.T) {
	b := ir.NewFunctionBuilder("read_only")
	p := b.Param("p", &ir.PointerType{Elem: i32()}, ptrDbg("int"))
	blk := b.Block("entry")
	b.Load(blk, p, ir.DebugLoc{})
	b.Ret(blk, nil, ir.DebugLoc{})
	f := b.Finish()
	m := &ir.Module{Functions: []*ir.Function{f}}

	findings := Analyze(m, acceptAll)
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d: %+v", len(findings), findings)
	}
	got := findings[0]
	if got.ParamName != "p" || got.SuggestedType != "const int*" {
		t.Errorf("finding = %+v, want p/const int*", got)
	}
}

func TestAnalyze_DirectStoreThroughParamSuppresses(t *testing.T) {
	b := ir.NewFunctionBuilder("writer")
	p := b.Param("p", &ir.PointerType{Elem: i32()}, ptrDbg("int"))
	blk := b.Block("entry")
	b.Store(blk, ir.ConstValue(0, i32()), p, ir.DebugLoc{})
	b.Ret(blk, nil, ir.DebugLoc{})
	f := b.Finish()
	m := &ir.Module{Functions: []*ir.Function{f}}

	findings := Analyze(m, acceptAll)
	if len(findings) != 0 {
		t.Errorf("a directly-written parameter must not be suggested const, got %+v", findings)
	}
}

func TestAnalyze_WriteThroughStoredAliasSuppresses(t *testing.T) {
	b := ir.NewFunctionBuilder("aliasing")
	p := b.Param("p", &ir.PointerType{Elem: i32()}, ptrDbg("int"))
	blk := b.Block("entry")
	slot := b.Alloca(blk, &ir.PointerType{Elem: i32()}, nil, "slot", ir.DebugLoc{})
	b.Store(blk, p, slot.Res, ir.DebugLoc{})
	loaded := b.Load(blk, slot.Res, ir.DebugLoc{})
	b.Store(blk, ir.ConstValue(0, i32()), loaded.Res, ir.DebugLoc{})
	b.Ret(blk, nil, ir.DebugLoc{})
	f := b.Finish()
	m := &ir.Module{Functions: []*ir.Function{f}}

	findings := Analyze(m, acceptAll)
	if len(findings) != 0 {
		t.Errorf("a write reached through a stored-then-reloaded alias must suppress the finding, got %+v", findings)
	}
}

func TestAnalyze_PtrToIntOfParamIsConservativeEscape(t *testing.T) {
	b := ir.NewFunctionBuilder("escapes")
	p := b.Param("p", &ir.PointerType{Elem: i32()}, ptrDbg("int"))
	blk := b.Block("entry")
	b.Cast(blk, p, ir.CastPtrToInt, &ir.IntType{Bits: 64}, ir.DebugLoc{})
	b.Ret(blk, nil, ir.DebugLoc{})
	f := b.Finish()
	m := &ir.Module{Functions: []*ir.Function{f}}

	findings := Analyze(m, acceptAll)
	if len(findings) != 0 {
		t.Errorf("ptrtoint of the parameter must be treated conservatively as a write, got %+v", findings)
	}
}

func TestAnalyze_CallArgWriteSuppressesUnlessCalleeIsReadOnly(t *testing.T) {
	mutator := ir.NewFunction("mutate")
	mutator.IsDecl = true

	b := ir.NewFunctionBuilder("forwards")
	p := b.Param("p", &ir.PointerType{Elem: i32()}, ptrDbg("int"))
	blk := b.Block("entry")
	b.Call(blk, mutator, []*ir.Value{p}, nil, ir.DebugLoc{})
	b.Ret(blk, nil, ir.DebugLoc{})
	f := b.Finish()
	m := &ir.Module{Functions: []*ir.Function{f, mutator}}

	findings := Analyze(m, acceptAll)
	if len(findings) != 0 {
		t.Errorf("passing the param to an unknown call arg must be treated as a write, got %+v", findings)
	}
}

func TestAnalyze_CallArgToReadOnlyIntrinsicIsNotAWrite(t *testing.T) {
	strlenFn := ir.NewFunction("strlen")
	strlenFn.IsDecl = true

	b := ir.NewFunctionBuilder("measures")
	p := b.Param("p", &ir.PointerType{Elem: i32()}, ptrDbg("int"))
	blk := b.Block("entry")
	b.Call(blk, strlenFn, []*ir.Value{p}, nil, ir.DebugLoc{})
	b.Ret(blk, nil, ir.DebugLoc{})
	f := b.Finish()
	m := &ir.Module{Functions: []*ir.Function{f, strlenFn}}

	findings := Analyze(m, acceptAll)
	if len(findings) != 1 {
		t.Fatalf("strlen is read-only, parameter must still be suggested const, got %d findings", len(findings))
	}
}

func TestAnalyze_CallArgReadOnlyArgAttributeIsNotAWrite(t *testing.T) {
	callee := ir.NewFunction("inspect")
	callee.IsDecl = true
	callee.Attrs.ReadOnlyArg[0] = true

	b := ir.NewFunctionBuilder("passes_through")
	p := b.Param("p", &ir.PointerType{Elem: i32()}, ptrDbg("int"))
	blk := b.Block("entry")
	b.Call(blk, callee, []*ir.Value{p}, nil, ir.DebugLoc{})
	b.Ret(blk, nil, ir.DebugLoc{})
	f := b.Finish()
	m := &ir.Module{Functions: []*ir.Function{f, callee}}

	findings := Analyze(m, acceptAll)
	if len(findings) != 1 {
		t.Errorf("callee attribute ReadOnlyArg[0] must mark the call-arg position as non-writing, got %+v", findings)
	}
}

func TestAnalyze_SkipsAlreadyConstPointee(t *testing.T) {
	b := ir.NewFunctionBuilder("already_const")
	dbg := ptrDbg("int")
	dbg.PointeeConst = true
	b.Param("p", &ir.PointerType{Elem: i32()}, dbg)
	blk := b.Block("entry")
	b.Ret(blk, nil, ir.DebugLoc{})
	f := b.Finish()
	m := &ir.Module{Functions: []*ir.Function{f}}

	findings := Analyze(m, acceptAll)
	if len(findings) != 0 {
		t.Errorf("a parameter whose pointee is already const must not be reported, got %+v", findings)
	}
}

func TestAnalyze_SkipsDoublePointerAndFunctionPointerAndNonPointer(t *testing.T) {
	b := ir.NewFunctionBuilder("varied")
	dblDbg := ptrDbg("int")
	dblDbg.IsDoublePointer = true
	b.Param("pp", &ir.PointerType{Elem: &ir.PointerType{Elem: i32()}}, dblDbg)

	fnDbg := ptrDbg("void")
	fnDbg.IsFunctionPtr = true
	b.Param("cb", &ir.PointerType{Elem: i32()}, fnDbg)

	b.Param("n", i32(), ir.DebugType{Kind: ir.NotPointerOrRef})

	blk := b.Block("entry")
	b.Ret(blk, nil, ir.DebugLoc{})
	f := b.Finish()
	m := &ir.Module{Functions: []*ir.Function{f}}

	findings := Analyze(m, acceptAll)
	if len(findings) != 0 {
		t.Errorf("double pointers, function pointers, and non-pointer params must all be skipped, got %+v", findings)
	}
}

func TestAnalyze_ReferenceAndRvalueReferenceSuggestions(t *testing.T) {
	b := ir.NewFunctionBuilder("refs")
	refDbg := ptrDbg("Widget")
	refDbg.Kind = ir.ReferenceKind
	b.Param("r", &ir.PointerType{Elem: i32()}, refDbg)

	rvDbg := ptrDbg("Widget")
	rvDbg.Kind = ir.RvalueReferenceKind
	b.Param("rv", &ir.PointerType{Elem: i32()}, rvDbg)

	blk := b.Block("entry")
	b.Ret(blk, nil, ir.DebugLoc{})
	f := b.Finish()
	m := &ir.Module{Functions: []*ir.Function{f}}

	findings := Analyze(m, acceptAll)
	if len(findings) != 2 {
		t.Fatalf("expected 2 findings, got %d: %+v", len(findings), findings)
	}
	if findings[0].SuggestedType != "const Widget&" {
		t.Errorf("reference suggestion = %q, want const Widget&", findings[0].SuggestedType)
	}
	if findings[1].SuggestedType != "const Widget&&" || findings[1].AltSuggestion == "" {
		t.Errorf("rvalue-reference finding = %+v, want const Widget&& with a non-empty alt suggestion", findings[1])
	}
}
