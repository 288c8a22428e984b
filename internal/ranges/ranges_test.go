package ranges

import (
	"testing"

	"ctrace/internal/ir"
)

func i32() *ir.IntType { return &ir.IntType{Bits: 32} }

func TestInfer_LowerAndUpperFromTwoCompares(t *testing.T) {
	b := ir.NewFunctionBuilder("f")
	blk := b.Block("entry")
	n := b.Param("n", i32(), ir.DebugType{})

	b.ICmp(blk, ir.PredSGE, n, ir.ConstValue(0, i32()), ir.DebugLoc{})
	b.ICmp(blk, ir.PredSLT, n, ir.ConstValue(20, i32()), ir.DebugLoc{})
	b.Ret(blk, nil, ir.DebugLoc{})
	f := b.Finish()

	facts := Infer(f)
	r, ok := facts.RangeOf(n)
	if !ok {
		t.Fatal("expected a derived range for n")
	}
	if !r.HasLower || r.Lower != 0 {
		t.Errorf("lower bound = %+v, want 0", r)
	}
	if !r.HasUpper || r.Upper != 19 {
		t.Errorf("upper bound = %+v, want 19 (n < 20 => n <= 19)", r)
	}
}

func TestInfer_ConstantOnLHSSwapsPredicate(t *testing.T) {
	b := ir.NewFunctionBuilder("f")
	blk := b.Block("entry")
	n := b.Param("n", i32(), ir.DebugType{})

	// 10 > n  <=>  n < 10
	b.ICmp(blk, ir.PredSGT, ir.ConstValue(10, i32()), n, ir.DebugLoc{})
	b.Ret(blk, nil, ir.DebugLoc{})
	f := b.Finish()

	r, ok := Infer(f).RangeOf(n)
	if !ok || !r.HasUpper || r.Upper != 9 {
		t.Errorf("range = %+v, ok=%v, want upper=9", r, ok)
	}
}

func TestInfer_NotEqualIsOverApproximated(t *testing.T) {
	b := ir.NewFunctionBuilder("f")
	blk := b.Block("entry")
	n := b.Param("n", i32(), ir.DebugType{})

	b.ICmp(blk, ir.PredNE, n, ir.ConstValue(5, i32()), ir.DebugLoc{})
	b.Ret(blk, nil, ir.DebugLoc{})
	f := b.Finish()

	r, ok := Infer(f).RangeOf(n)
	if !ok {
		t.Fatal("expected a (deliberately loose) range for n != 5")
	}
	if r.HasLower {
		t.Error("n != 5 must not establish a lower bound")
	}
	if !r.HasUpper || r.Upper != 5 {
		t.Errorf("n != 5 is over-approximated to n <= 5, got %+v", r)
	}
}

func TestInfer_PropagatesToLoadedPointer(t *testing.T) {
	b := ir.NewFunctionBuilder("f")
	blk := b.Block("entry")
	slot := b.Alloca(blk, i32(), nil, "n", ir.DebugLoc{})
	load := b.Load(blk, slot.Res, ir.DebugLoc{})
	b.ICmp(blk, ir.PredSLT, load.Res, ir.ConstValue(8, i32()), ir.DebugLoc{})
	b.Ret(blk, nil, ir.DebugLoc{})
	f := b.Finish()

	r, ok := Infer(f).RangeOf(slot.Res)
	if !ok || !r.HasUpper || r.Upper != 7 {
		t.Errorf("range attached to the pointer = %+v, ok=%v, want upper=7", r, ok)
	}
}

func TestRangeMerge_TightensBothBounds(t *testing.T) {
	a := Range{HasLower: true, Lower: 0, HasUpper: true, Upper: 100}
	b := Range{HasLower: true, Lower: 10, HasUpper: true, Upper: 50}
	m := a.Merge(b)
	if m.Lower != 10 || m.Upper != 50 {
		t.Errorf("Merge = %+v, want lower=10 upper=50", m)
	}
}
