package dynamicalloca

import (
	"testing"

	"ctrace/internal/ir"
)

func i8() *ir.IntType  { return &ir.IntType{Bits: 8} }
func i32() *ir.IntType { return &ir.IntType{Bits: 32} }

func acceptAll(*ir.Function) bool { return true }

func TestAnalyze_TrulyDynamicSizeIsFlagged(t *testing.T) {
	b := ir.NewFunctionBuilder("vla")
	n := b.Param("n", i32(), ir.DebugType{})
	blk := b.Block("entry")
	b.Alloca(blk, i8(), n, "buf", ir.DebugLoc{})
	b.Ret(blk, nil, ir.DebugLoc{})
	f := b.Finish()
	m := &ir.Module{Functions: []*ir.Function{f}}

	findings := Analyze(m, acceptAll)
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(findings))
	}
	if findings[0].VarName != "buf" || findings[0].FuncName != "vla" {
		t.Errorf("finding = %+v", findings[0])
	}
}

func TestAnalyze_ResolvableThroughLocalSlotIsNotFlagged(t *testing.T) {
	b := ir.NewFunctionBuilder("resolvable")
	blk := b.Block("entry")
	slot := b.Alloca(blk, i32(), nil, "n", ir.DebugLoc{})
	b.Store(blk, ir.ConstValue(64, i32()), slot.Res, ir.DebugLoc{})
	count := b.Load(blk, slot.Res, ir.DebugLoc{})
	b.Alloca(blk, i8(), count.Res, "buf", ir.DebugLoc{})
	b.Ret(blk, nil, ir.DebugLoc{})
	f := b.Finish()
	m := &ir.Module{Functions: []*ir.Function{f}}

	findings := Analyze(m, acceptAll)
	if len(findings) != 0 {
		t.Errorf("a size recoverable via TryGetConstFromValue must not be flagged, got %+v", findings)
	}
}

func TestAnalyze_FixedArrayIsNotFlagged(t *testing.T) {
	b := ir.NewFunctionBuilder("fixed")
	blk := b.Block("entry")
	b.Alloca(blk, &ir.ArrayType{Elem: i8(), Count: 16}, nil, "buf", ir.DebugLoc{})
	b.Ret(blk, nil, ir.DebugLoc{})
	f := b.Finish()
	m := &ir.Module{Functions: []*ir.Function{f}}

	findings := Analyze(m, acceptAll)
	if len(findings) != 0 {
		t.Errorf("a fixed-size alloca has ArraySize == nil and must never be flagged, got %+v", findings)
	}
}

func TestAnalyze_ConstantArraySizeIsNotFlagged(t *testing.T) {
	b := ir.NewFunctionBuilder("constsize")
	blk := b.Block("entry")
	b.Alloca(blk, i8(), ir.ConstValue(32, i32()), "buf", ir.DebugLoc{})
	b.Ret(blk, nil, ir.DebugLoc{})
	f := b.Finish()
	m := &ir.Module{Functions: []*ir.Function{f}}

	findings := Analyze(m, acceptAll)
	if len(findings) != 0 {
		t.Errorf("a constant array size must never be flagged, got %+v", findings)
	}
}
