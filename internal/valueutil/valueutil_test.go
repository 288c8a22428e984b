package valueutil

import (
	"testing"

	"ctrace/internal/ir"
)

func i32() *ir.IntType { return &ir.IntType{Bits: 32} }

func TestStripCasts_UnwrapsChain(t *testing.T) {
	b := ir.NewFunctionBuilder("f")
	blk := b.Block("entry")
	alloc := b.Alloca(blk, i32(), nil, "x", ir.DebugLoc{})
	c1 := b.Cast(blk, alloc.Res, ir.CastBitCast, &ir.PointerType{Elem: i32()}, ir.DebugLoc{})
	c2 := b.Cast(blk, c1.Res, ir.CastBitCast, &ir.PointerType{Elem: i32()}, ir.DebugLoc{})

	got := StripCasts(c2.Res)
	if got != alloc.Res {
		t.Fatalf("StripCasts did not unwrap to the alloca result, got %v", got)
	}
}

func TestStripIntCasts_StopsAtPtrToInt(t *testing.T) {
	b := ir.NewFunctionBuilder("f")
	blk := b.Block("entry")
	alloc := b.Alloca(blk, i32(), nil, "x", ir.DebugLoc{})
	p2i := b.Cast(blk, alloc.Res, ir.CastPtrToInt, &ir.IntType{Bits: 64}, ir.DebugLoc{})
	zext := b.Cast(blk, p2i.Res, ir.CastZExt, &ir.IntType{Bits: 64}, ir.DebugLoc{})

	got := StripIntCasts(zext.Res)
	if got != p2i.Res {
		t.Fatalf("StripIntCasts should stop at the ptrtoint result, got %v, want %v", got, p2i.Res)
	}
}

func TestTryGetConstFromValue_LastStoreWins(t *testing.T) {
	b := ir.NewFunctionBuilder("f")
	blk := b.Block("entry")
	slot := b.Alloca(blk, i32(), nil, "n", ir.DebugLoc{})
	b.Store(blk, ir.ConstValue(1, i32()), slot.Res, ir.DebugLoc{})
	b.Store(blk, ir.ConstValue(2, i32()), slot.Res, ir.DebugLoc{})
	load := b.Load(blk, slot.Res, ir.DebugLoc{})
	b.Ret(blk, nil, ir.DebugLoc{})
	f := b.Finish()

	c, ok := TryGetConstFromValue(load.Res, f)
	if !ok || c != 2 {
		t.Fatalf("TryGetConstFromValue = (%d, %v), want (2, true) since the last store wins without dominance checking", c, ok)
	}
}

func TestIsUserControlled(t *testing.T) {
	b := ir.NewFunctionBuilder("f")
	arg := b.Param("n", i32(), ir.DebugType{})
	blk := b.Block("entry")
	constSum := b.BinOp(blk, ir.BinAdd, ir.ConstValue(1, i32()), ir.ConstValue(2, i32()), ir.DebugLoc{})
	argSum := b.BinOp(blk, ir.BinAdd, arg, ir.ConstValue(1, i32()), ir.DebugLoc{})
	b.Ret(blk, nil, ir.DebugLoc{})
	b.Finish()

	if IsUserControlled(constSum.Res) {
		t.Error("a value built purely from constants should not be user-controlled")
	}
	if !IsUserControlled(arg) {
		t.Error("a function argument should be user-controlled")
	}
	if !IsUserControlled(argSum.Res) {
		t.Error("an expression derived from an argument should be user-controlled")
	}
}

func TestDeriveAllocaName(t *testing.T) {
	b := ir.NewFunctionBuilder("f")
	blk := b.Block("entry")

	named := b.Alloca(blk, i32(), nil, "buf", ir.DebugLoc{})
	if got := DeriveAllocaName(named); got != "buf" {
		t.Errorf("VarName-carrying alloca: got %q, want %q", got, "buf")
	}

	unnamed := b.Alloca(blk, i32(), nil, "", ir.DebugLoc{})
	b.DebugValue(blk, unnamed.Res, "recovered", ir.DebugLoc{})
	if got := DeriveAllocaName(unnamed); got != "recovered" {
		t.Errorf("dbg-value-recovered name: got %q, want %q", got, "recovered")
	}

	orphan := b.Alloca(blk, i32(), nil, "", ir.DebugLoc{})
	if got := DeriveAllocaName(orphan); got != "<unnamed>" {
		t.Errorf("alloca with no recoverable name: got %q, want <unnamed>", got)
	}
}

func TestResolveOrigins_GEPConstantOffset(t *testing.T) {
	structTy := &ir.StructType{Name: "S", Fields: []ir.StructField{
		{Name: "f0", Type: i32()},
		{Name: "f1", Type: i32()},
	}}
	b := ir.NewFunctionBuilder("f")
	blk := b.Block("entry")
	alloc := b.Alloca(blk, structTy, nil, "s", ir.DebugLoc{})
	gep := b.GEP(blk, alloc.Res, structTy, []*ir.Value{ir.ConstValue(0, &ir.IntType{Bits: 64}), ir.ConstValue(1, &ir.IntType{Bits: 64})}, ir.DebugLoc{})
	b.Ret(blk, nil, ir.DebugLoc{})
	f := b.Finish()
	dl := ir.DefaultDataLayout()

	base, ok := ResolveSingleBase(gep.Res, f, dl)
	if !ok {
		t.Fatal("expected a single resolvable base")
	}
	if base.Alloca != alloc {
		t.Error("resolved base alloca mismatch")
	}
	if base.ByteOffset != 4 {
		t.Errorf("resolved byte offset = %d, want 4 (field 1 of {i32,i32})", base.ByteOffset)
	}
}

func TestResolveSingleBase_PhiDisagreementFails(t *testing.T) {
	b := ir.NewFunctionBuilder("f")
	entry := b.Block("entry")
	left := b.Block("left")
	right := b.Block("right")
	join := b.Block("join")

	a1 := b.Alloca(entry, i32(), nil, "a", ir.DebugLoc{})
	a2 := b.Alloca(entry, i32(), nil, "b", ir.DebugLoc{})
	cond := b.ICmp(entry, ir.PredEQ, ir.ConstValue(0, i32()), ir.ConstValue(0, i32()), ir.DebugLoc{})
	b.CondBr(entry, cond.Res, left, right, ir.DebugLoc{})
	b.Br(left, join, ir.DebugLoc{})
	b.Br(right, join, ir.DebugLoc{})

	phi := b.Phi(join, &ir.PointerType{Elem: i32()}, map[*ir.BasicBlock]*ir.Value{
		left:  a1.Res,
		right: a2.Res,
	}, []*ir.BasicBlock{left, right}, ir.DebugLoc{})
	b.Ret(join, nil, ir.DebugLoc{})
	f := b.Finish()
	dl := ir.DefaultDataLayout()

	if _, ok := ResolveSingleBase(phi.Res, f, dl); ok {
		t.Error("a phi merging two distinct allocas must not resolve to a single base")
	}

	origins := ResolveOrigins(phi.Res, f, dl)
	if len(origins) != 2 {
		t.Fatalf("expected 2 origins from the phi fan-out, got %d", len(origins))
	}
}
