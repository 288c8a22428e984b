package ir

// Builder assembles a Function instruction-by-instruction. It exists so
// that unit tests (and the textual-IR loader) can construct IR without
// hand-wiring Value IDs, result values, and CFG edges every time —
// in the same role a parser's IR builder would play, just driven
// directly from test code instead of from a parsed AST.
type Builder struct {
	F *Function
}

// NewFunctionBuilder starts building a new defined function.
func NewFunctionBuilder(name string) *Builder {
	f := NewFunction(name)
	return &Builder{F: f}
}

// NewFunctionBuilderFor continues building into an already-allocated
// Function object, for forward-declared mutually recursive functions
// where the callee value must exist before its own body is built.
func NewFunctionBuilderFor(f *Function) *Builder {
	return &Builder{F: f}
}

func (b *Builder) nextID() int {
	id := b.F.nextValueID
	b.F.nextValueID++
	return id
}

// Block appends and returns a new basic block.
func (b *Builder) Block(label string) *BasicBlock {
	blk := &BasicBlock{Label: label, Func: b.F}
	b.F.Blocks = append(b.F.Blocks, blk)
	return blk
}

func (b *Builder) emit(blk *BasicBlock, inst Instruction) {
	blk.Instructions = append(blk.Instructions, inst)
}

// Param declares a parameter, wired with its SSA value.
func (b *Builder) Param(name string, t Type, dbg DebugType) *Value {
	v := &Value{ID: b.nextID(), Name: name, Type: t, IsArg: true, ArgIndex: len(b.F.Params), Func: b.F}
	b.F.Params = append(b.F.Params, &Param{Name: name, Type: t, Value: v, Debug: dbg})
	return v
}

func (b *Builder) result(t Type, name string) *Value {
	return &Value{ID: b.nextID(), Name: name, Type: t}
}

func (b *Builder) Alloca(blk *BasicBlock, elemType Type, arraySize *Value, varName string, loc DebugLoc) *AllocaInst {
	res := b.result(&PointerType{Elem: elemType}, "")
	inst := &AllocaInst{base: base{id: b.nextID(), blk: blk, loc: loc}, Res: res, ElemType: elemType, ArraySize: arraySize, VarName: varName}
	res.Def = inst
	b.emit(blk, inst)
	return inst
}

func (b *Builder) Load(blk *BasicBlock, ptr *Value, loc DebugLoc) *LoadInst {
	var elem Type = &IntType{Bits: 32}
	if pt, ok := ptr.Type.(*PointerType); ok {
		elem = pt.Elem
	}
	res := b.result(elem, "")
	inst := &LoadInst{base: base{id: b.nextID(), blk: blk, loc: loc}, Res: res, Ptr: ptr}
	res.Def = inst
	b.emit(blk, inst)
	return inst
}

func (b *Builder) Store(blk *BasicBlock, val, ptr *Value, loc DebugLoc) *StoreInst {
	inst := &StoreInst{base: base{id: b.nextID(), blk: blk, loc: loc}, Ptr: ptr, Val: val}
	b.emit(blk, inst)
	return inst
}

func (b *Builder) GEP(blk *BasicBlock, base_ *Value, sourceType Type, indices []*Value, loc DebugLoc) *GEPInst {
	res := b.result(&PointerType{Elem: sourceType}, "")
	inst := &GEPInst{base: base{id: b.nextID(), blk: blk, loc: loc}, Res: res, Base: base_, SourceType: sourceType, Indices: indices}
	res.Def = inst
	b.emit(blk, inst)
	return inst
}

func (b *Builder) Cast(blk *BasicBlock, src *Value, kind CastKind, resultType Type, loc DebugLoc) *CastInst {
	res := b.result(resultType, "")
	inst := &CastInst{base: base{id: b.nextID(), blk: blk, loc: loc}, Res: res, Src: src, Kind: kind}
	res.Def = inst
	b.emit(blk, inst)
	return inst
}

func (b *Builder) ICmp(blk *BasicBlock, pred Predicate, lhs, rhs *Value, loc DebugLoc) *ICmpInst {
	res := b.result(&IntType{Bits: 1}, "")
	inst := &ICmpInst{base: base{id: b.nextID(), blk: blk, loc: loc}, Res: res, Pred: pred, LHS: lhs, RHS: rhs}
	res.Def = inst
	b.emit(blk, inst)
	return inst
}

func (b *Builder) BinOp(blk *BasicBlock, op BinOp, lhs, rhs *Value, loc DebugLoc) *BinOpInst {
	res := b.result(lhs.Type, "")
	inst := &BinOpInst{base: base{id: b.nextID(), blk: blk, loc: loc}, Res: res, Op: op, LHS: lhs, RHS: rhs}
	res.Def = inst
	b.emit(blk, inst)
	return inst
}

func (b *Builder) Phi(blk *BasicBlock, t Type, incoming map[*BasicBlock]*Value, order []*BasicBlock, loc DebugLoc) *PhiInst {
	res := b.result(t, "")
	inst := &PhiInst{base: base{id: b.nextID(), blk: blk, loc: loc}, Res: res, Incoming: incoming, Order: order}
	res.Def = inst
	b.emit(blk, inst)
	return inst
}

func (b *Builder) Select(blk *BasicBlock, cond, tv, fv *Value, loc DebugLoc) *SelectInst {
	res := b.result(tv.Type, "")
	inst := &SelectInst{base: base{id: b.nextID(), blk: blk, loc: loc}, Res: res, Cond: cond, TrueVal: tv, FalseVal: fv}
	res.Def = inst
	b.emit(blk, inst)
	return inst
}

// Call emits a direct call to callee. If resultType is non-nil the call
// produces a value of that type.
func (b *Builder) Call(blk *BasicBlock, callee *Function, args []*Value, resultType Type, loc DebugLoc) *CallInst {
	var res *Value
	if resultType != nil {
		res = b.result(resultType, "")
	}
	inst := &CallInst{base: base{id: b.nextID(), blk: blk, loc: loc}, Res: res, Callee: callee, Args: args}
	if res != nil {
		res.Def = inst
	}
	b.emit(blk, inst)
	return inst
}

// IndirectCall emits a call through a function-pointer value.
func (b *Builder) IndirectCall(blk *BasicBlock, fnPtr *Value, args []*Value, resultType Type, loc DebugLoc) *CallInst {
	var res *Value
	if resultType != nil {
		res = b.result(resultType, "")
	}
	inst := &CallInst{base: base{id: b.nextID(), blk: blk, loc: loc}, Res: res, Indirect: fnPtr, Args: args}
	if res != nil {
		res.Def = inst
	}
	b.emit(blk, inst)
	return inst
}

func (b *Builder) Ret(blk *BasicBlock, val *Value, loc DebugLoc) *RetInst {
	inst := &RetInst{base: base{id: b.nextID(), blk: blk, loc: loc}, Val: val}
	b.emit(blk, inst)
	return inst
}

func (b *Builder) Br(blk *BasicBlock, target *BasicBlock, loc DebugLoc) *BrInst {
	inst := &BrInst{base: base{id: b.nextID(), blk: blk, loc: loc}, True: target}
	b.emit(blk, inst)
	return inst
}

func (b *Builder) CondBr(blk *BasicBlock, cond *Value, t, f *BasicBlock, loc DebugLoc) *BrInst {
	inst := &BrInst{base: base{id: b.nextID(), blk: blk, loc: loc}, Cond: cond, True: t, False: f}
	b.emit(blk, inst)
	return inst
}

func (b *Builder) Unreachable(blk *BasicBlock, loc DebugLoc) *UnreachableInst {
	inst := &UnreachableInst{base: base{id: b.nextID(), blk: blk, loc: loc}}
	b.emit(blk, inst)
	return inst
}

func (b *Builder) DebugValue(blk *BasicBlock, target *Value, varName string, loc DebugLoc) *DebugValueInst {
	inst := &DebugValueInst{base: base{id: b.nextID(), blk: blk, loc: loc}, Target: target, VarName: varName}
	b.emit(blk, inst)
	return inst
}

// Finish wires the CFG and dominator tree and returns the built function.
func (b *Builder) Finish() *Function {
	LinkCFG(b.F)
	BuildDominatorTree(b.F)
	return b.F
}
