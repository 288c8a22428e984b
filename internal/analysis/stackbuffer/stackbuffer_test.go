package stackbuffer

import (
	"testing"

	"ctrace/internal/ir"
)

func i32() *ir.IntType  { return &ir.IntType{Bits: 32} }
func i64() *ir.IntType  { return &ir.IntType{Bits: 64} }
func arr20() *ir.ArrayType { return &ir.ArrayType{Elem: i32(), Count: 20} }

func acceptAll(*ir.Function) bool { return true }

func buildIndexed(name string, idx *ir.Value, rangeEstablisher func(b *ir.Builder, blk *ir.BasicBlock, idx *ir.Value)) *ir.Function {
	b := ir.NewFunctionBuilder(name)
	blk := b.Block("entry")
	t := b.Alloca(blk, arr20(), nil, "t", ir.DebugLoc{})
	if rangeEstablisher != nil {
		rangeEstablisher(b, blk, idx)
	}
	gep := b.GEP(blk, t.Res, arr20(), []*ir.Value{ir.ConstValue(0, i64()), idx}, ir.DebugLoc{})
	b.Load(blk, gep.Res, ir.DebugLoc{})
	b.Ret(blk, nil, ir.DebugLoc{})
	return b.Finish()
}

func TestAnalyze_ConstantIndexAtUpperBoundaryIsSafe(t *testing.T) {
	f := buildIndexed("at19", ir.ConstValue(19, i64()), nil)
	overflows, _ := Analyze(&ir.Module{Functions: []*ir.Function{f}}, ir.DefaultDataLayout(), acceptAll)
	if len(overflows) != 0 {
		t.Errorf("index size-1 (19 into a 20-element array) must not overflow, got %+v", overflows)
	}
}

func TestAnalyze_ConstantIndexEqualToSizeOverflows(t *testing.T) {
	f := buildIndexed("at20", ir.ConstValue(20, i64()), nil)
	overflows, _ := Analyze(&ir.Module{Functions: []*ir.Function{f}}, ir.DefaultDataLayout(), acceptAll)
	if len(overflows) != 1 {
		t.Fatalf("expected 1 overflow for index == size, got %d", len(overflows))
	}
	got := overflows[0]
	if got.Kind != KindConstant || got.Index != 20 || got.ArraySize != 20 {
		t.Errorf("overflow = %+v, want KindConstant index=20 size=20", got)
	}
	if got.AllocaVarName != "t" {
		t.Errorf("alloca var name = %q, want t", got.AllocaVarName)
	}
}

func TestAnalyze_ConstantNegativeIndexOverflows(t *testing.T) {
	f := buildIndexed("atneg1", ir.ConstValue(-1, i64()), nil)
	overflows, _ := Analyze(&ir.Module{Functions: []*ir.Function{f}}, ir.DefaultDataLayout(), acceptAll)
	if len(overflows) != 1 || overflows[0].Kind != KindConstant || overflows[0].Index != -1 {
		t.Fatalf("expected 1 KindConstant overflow at index -1, got %+v", overflows)
	}
}

func TestAnalyze_RangeBoundedIndexAtBoundaryIsSafe(t *testing.T) {
	b := ir.NewFunctionBuilder("rangedParam19")
	idx := b.Param("i", i32(), ir.DebugType{})
	blk := b.Block("entry")
	tAlloc := b.Alloca(blk, arr20(), nil, "t", ir.DebugLoc{})
	b.ICmp(blk, ir.PredSLE, idx, ir.ConstValue(19, i32()), ir.DebugLoc{})
	gep := b.GEP(blk, tAlloc.Res, arr20(), []*ir.Value{ir.ConstValue(0, i64()), idx}, ir.DebugLoc{})
	b.Load(blk, gep.Res, ir.DebugLoc{})
	b.Ret(blk, nil, ir.DebugLoc{})
	f := b.Finish()

	overflows, _ := Analyze(&ir.Module{Functions: []*ir.Function{f}}, ir.DefaultDataLayout(), acceptAll)
	if len(overflows) != 0 {
		t.Errorf("an index proven <= 19 into a 20-element array must not overflow, got %+v", overflows)
	}
}

func TestAnalyze_RangeBoundedIndexAboveSizeOverflows(t *testing.T) {
	b := ir.NewFunctionBuilder("rangedOver")
	idx := b.Param("i", i32(), ir.DebugType{})
	blk := b.Block("entry")
	tAlloc := b.Alloca(blk, arr20(), nil, "t", ir.DebugLoc{})
	b.ICmp(blk, ir.PredSLE, idx, ir.ConstValue(25, i32()), ir.DebugLoc{})
	gep := b.GEP(blk, tAlloc.Res, arr20(), []*ir.Value{ir.ConstValue(0, i64()), idx}, ir.DebugLoc{})
	b.Store(blk, ir.ConstValue(0, i32()), gep.Res, ir.DebugLoc{})
	b.Ret(blk, nil, ir.DebugLoc{})
	f := b.Finish()

	overflows, _ := Analyze(&ir.Module{Functions: []*ir.Function{f}}, ir.DefaultDataLayout(), acceptAll)
	if len(overflows) != 1 || overflows[0].Kind != KindUpper || !overflows[0].IsWrite {
		t.Fatalf("expected 1 write KindUpper overflow, got %+v", overflows)
	}
}

func TestAnalyze_RangeBoundedNegativeIndexFlagsLower(t *testing.T) {
	b := ir.NewFunctionBuilder("rangedNeg")
	idx := b.Param("i", i32(), ir.DebugType{})
	blk := b.Block("entry")
	tAlloc := b.Alloca(blk, arr20(), nil, "t", ir.DebugLoc{})
	b.ICmp(blk, ir.PredSGE, idx, ir.ConstValue(-1, i32()), ir.DebugLoc{})
	gep := b.GEP(blk, tAlloc.Res, arr20(), []*ir.Value{ir.ConstValue(0, i64()), idx}, ir.DebugLoc{})
	b.Load(blk, gep.Res, ir.DebugLoc{})
	b.Ret(blk, nil, ir.DebugLoc{})
	f := b.Finish()

	overflows, _ := Analyze(&ir.Module{Functions: []*ir.Function{f}}, ir.DefaultDataLayout(), acceptAll)
	if len(overflows) != 1 || overflows[0].Kind != KindLower {
		t.Fatalf("expected 1 KindLower overflow, got %+v", overflows)
	}
}

func TestAnalyze_MultipleStoresToSameBufferAreCounted(t *testing.T) {
	b := ir.NewFunctionBuilder("multi")
	blk := b.Block("entry")
	tAlloc := b.Alloca(blk, arr20(), nil, "t", ir.DebugLoc{})
	gep1 := b.GEP(blk, tAlloc.Res, arr20(), []*ir.Value{ir.ConstValue(0, i64()), ir.ConstValue(1, i64())}, ir.DebugLoc{})
	b.Store(blk, ir.ConstValue(0, i32()), gep1.Res, ir.DebugLoc{})
	gep2 := b.GEP(blk, tAlloc.Res, arr20(), []*ir.Value{ir.ConstValue(0, i64()), ir.ConstValue(2, i64())}, ir.DebugLoc{})
	b.Store(blk, ir.ConstValue(0, i32()), gep2.Res, ir.DebugLoc{})
	b.Ret(blk, nil, ir.DebugLoc{})
	f := b.Finish()

	_, multi := Analyze(&ir.Module{Functions: []*ir.Function{f}}, ir.DefaultDataLayout(), acceptAll)
	if len(multi) != 1 {
		t.Fatalf("expected 1 MultiStore entry, got %d", len(multi))
	}
	if multi[0].StoreCount != 2 || multi[0].IndexExprs != 2 {
		t.Errorf("multi = %+v, want StoreCount=2 IndexExprs=2", multi[0])
	}
}
