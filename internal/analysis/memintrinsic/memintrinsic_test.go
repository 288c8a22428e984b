package memintrinsic

import (
	"testing"

	"ctrace/internal/ir"
)

func i8() *ir.IntType  { return &ir.IntType{Bits: 8} }
func i64() *ir.IntType { return &ir.IntType{Bits: 64} }

func acceptAll(*ir.Function) bool { return true }

func buildMemCall(t *testing.T, calleeName string, bufSize uint64, length *ir.Value) (*ir.Module, *ir.AllocaInst) {
	t.Helper()
	b := ir.NewFunctionBuilder("f")
	blk := b.Block("entry")
	buf := b.Alloca(blk, &ir.ArrayType{Elem: i8(), Count: bufSize}, nil, "buf", ir.DebugLoc{})
	callee := ir.NewFunction(calleeName)
	callee.IsDecl = true
	b.Call(blk, callee, []*ir.Value{buf.Res, ir.ConstValue(0, i8()), length}, nil, ir.DebugLoc{})
	b.Ret(blk, nil, ir.DebugLoc{})
	f := b.Finish()
	return &ir.Module{Functions: []*ir.Function{f, callee}}, buf
}

func TestAnalyze_OversizedMemcpyIsFlagged(t *testing.T) {
	m, _ := buildMemCall(t, "memcpy", 8, ir.ConstValue(16, i64()))
	findings := Analyze(m, ir.DefaultDataLayout(), acceptAll)
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(findings))
	}
	got := findings[0]
	if got.AllocaVarName != "buf" || got.AllocaSize != 8 || got.RequestedLen != 16 {
		t.Errorf("finding = %+v, want buf/8/16", got)
	}
}

func TestAnalyze_MemsetAndMemmoveNamesAreRecognized(t *testing.T) {
	for _, name := range []string{"memset", "memmove", "llvm.memcpy.p0i8.p0i8.i64"} {
		m, _ := buildMemCall(t, name, 4, ir.ConstValue(40, i64()))
		findings := Analyze(m, ir.DefaultDataLayout(), acceptAll)
		if len(findings) != 1 {
			t.Errorf("callee %q: expected 1 finding, got %d", name, len(findings))
		}
	}
}

func TestAnalyze_LengthWithinBoundsIsNotFlagged(t *testing.T) {
	m, _ := buildMemCall(t, "memcpy", 8, ir.ConstValue(8, i64()))
	findings := Analyze(m, ir.DefaultDataLayout(), acceptAll)
	if len(findings) != 0 {
		t.Errorf("a length equal to the buffer size must not be flagged, got %+v", findings)
	}
}

func TestAnalyze_NonConstantLengthIsNotFlagged(t *testing.T) {
	b := ir.NewFunctionBuilder("f")
	n := b.Param("n", i64(), ir.DebugType{})
	blk := b.Block("entry")
	buf := b.Alloca(blk, &ir.ArrayType{Elem: i8(), Count: 8}, nil, "buf", ir.DebugLoc{})
	callee := ir.NewFunction("memcpy")
	callee.IsDecl = true
	b.Call(blk, callee, []*ir.Value{buf.Res, ir.ConstValue(0, i8()), n}, nil, ir.DebugLoc{})
	b.Ret(blk, nil, ir.DebugLoc{})
	f := b.Finish()
	m := &ir.Module{Functions: []*ir.Function{f, callee}}

	findings := Analyze(m, ir.DefaultDataLayout(), acceptAll)
	if len(findings) != 0 {
		t.Errorf("a non-constant length cannot be size-checked and must not be flagged, got %+v", findings)
	}
}

func TestAnalyze_UnrelatedCallIsIgnored(t *testing.T) {
	m, _ := buildMemCall(t, "strlen", 8, ir.ConstValue(16, i64()))
	findings := Analyze(m, ir.DefaultDataLayout(), acceptAll)
	if len(findings) != 0 {
		t.Errorf("strlen is not a memory intrinsic and must not be flagged, got %+v", findings)
	}
}
