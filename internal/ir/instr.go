package ir

// Opcode tags every concrete Instruction kind. Analyses dispatch on this
// (or on a type switch over the concrete struct) instead of calling
// virtual per-kind methods, the "tagged variant" shape the rest of the
// pass pipeline assumes.
type Opcode int

const (
	OpAlloca Opcode = iota
	OpLoad
	OpStore
	OpGEP
	OpBitCast
	OpAddrSpaceCast
	OpPtrToInt
	OpIntToPtr
	OpTrunc
	OpZExt
	OpSExt
	OpICmp
	OpBinOp
	OpPhi
	OpSelect
	OpCall
	OpRet
	OpBr
	OpUnreachable
	OpDebugValue
)

// Instruction is the capability set every pass needs: identity, the value
// it produces (if any), its operands, its parent block, and its opcode.
type Instruction interface {
	ID() int
	Block() *BasicBlock
	Result() *Value
	Operands() []*Value
	Opcode() Opcode
	IsTerminator() bool
	Loc() DebugLoc
}

type base struct {
	id    int
	blk   *BasicBlock
	loc   DebugLoc
}

func (b *base) ID() int          { return b.id }
func (b *base) Block() *BasicBlock { return b.blk }
func (b *base) Loc() DebugLoc    { return b.loc }
func (b *base) IsTerminator() bool { return false }

// AllocaInst reserves stack space for one object of ElemType, or an array
// of ArraySize elements when ArraySize is non-nil (nil means a scalar
// alloca of ElemType itself, e.g. a local struct or a fixed-size array
// type already baked into ElemType).
type AllocaInst struct {
	base
	Res       *Value
	ElemType  Type
	ArraySize *Value // element count operand; nil => 1
	VarName   string // recovered local variable name, if any
}

func (i *AllocaInst) Result() *Value   { return i.Res }
func (i *AllocaInst) Opcode() Opcode   { return OpAlloca }
func (i *AllocaInst) Operands() []*Value {
	if i.ArraySize != nil {
		return []*Value{i.ArraySize}
	}
	return nil
}

type LoadInst struct {
	base
	Res *Value
	Ptr *Value
}

func (i *LoadInst) Result() *Value     { return i.Res }
func (i *LoadInst) Opcode() Opcode     { return OpLoad }
func (i *LoadInst) Operands() []*Value { return []*Value{i.Ptr} }

type StoreInst struct {
	base
	Ptr *Value
	Val *Value
}

func (i *StoreInst) Result() *Value     { return nil }
func (i *StoreInst) Opcode() Opcode     { return OpStore }
func (i *StoreInst) Operands() []*Value { return []*Value{i.Val, i.Ptr} }

// GEPInst is getelementptr: Base indexed by Indices, typed according to
// SourceType (the pointee type of Base).
type GEPInst struct {
	base
	Res        *Value
	Base       *Value
	SourceType Type
	Indices    []*Value
	InBounds   bool
}

func (i *GEPInst) Result() *Value { return i.Res }
func (i *GEPInst) Opcode() Opcode { return OpGEP }
func (i *GEPInst) Operands() []*Value {
	ops := make([]*Value, 0, len(i.Indices)+1)
	ops = append(ops, i.Base)
	return append(ops, i.Indices...)
}

// CastKind distinguishes the cast instructions folded into CastInst.
type CastKind int

const (
	CastBitCast CastKind = iota
	CastAddrSpace
	CastPtrToInt
	CastIntToPtr
	CastTrunc
	CastZExt
	CastSExt
)

type CastInst struct {
	base
	Res  *Value
	Src  *Value
	Kind CastKind
}

func (i *CastInst) Result() *Value     { return i.Res }
func (i *CastInst) Operands() []*Value { return []*Value{i.Src} }
func (i *CastInst) Opcode() Opcode {
	switch i.Kind {
	case CastAddrSpace:
		return OpAddrSpaceCast
	case CastPtrToInt:
		return OpPtrToInt
	case CastIntToPtr:
		return OpIntToPtr
	case CastTrunc:
		return OpTrunc
	case CastZExt:
		return OpZExt
	case CastSExt:
		return OpSExt
	default:
		return OpBitCast
	}
}

// Predicate is an LLVM icmp predicate.
type Predicate int

const (
	PredEQ Predicate = iota
	PredNE
	PredSLT
	PredSLE
	PredSGT
	PredSGE
	PredULT
	PredULE
	PredUGT
	PredUGE
)

// Swap returns the predicate obtained by swapping the compared operands.
func (p Predicate) Swap() Predicate {
	switch p {
	case PredSLT:
		return PredSGT
	case PredSLE:
		return PredSGE
	case PredSGT:
		return PredSLT
	case PredSGE:
		return PredSLE
	case PredULT:
		return PredUGT
	case PredULE:
		return PredUGE
	case PredUGT:
		return PredULT
	case PredUGE:
		return PredULE
	default:
		return p // EQ, NE are symmetric
	}
}

type ICmpInst struct {
	base
	Res  *Value
	Pred Predicate
	LHS  *Value
	RHS  *Value
}

func (i *ICmpInst) Result() *Value     { return i.Res }
func (i *ICmpInst) Opcode() Opcode     { return OpICmp }
func (i *ICmpInst) Operands() []*Value { return []*Value{i.LHS, i.RHS} }

// BinOp is one of the arithmetic opcodes the offset/size passes reason
// about (add/sub; the rest pass through as opaque user-controlled values).
type BinOp int

const (
	BinAdd BinOp = iota
	BinSub
	BinMul
	BinOther
)

type BinOpInst struct {
	base
	Res *Value
	Op  BinOp
	LHS *Value
	RHS *Value
}

func (i *BinOpInst) Result() *Value     { return i.Res }
func (i *BinOpInst) Opcode() Opcode     { return OpBinOp }
func (i *BinOpInst) Operands() []*Value { return []*Value{i.LHS, i.RHS} }

type PhiInst struct {
	base
	Res      *Value
	Incoming map[*BasicBlock]*Value
	// Order preserves textual/insertion order for deterministic iteration.
	Order []*BasicBlock
}

func (i *PhiInst) Result() *Value { return i.Res }
func (i *PhiInst) Opcode() Opcode { return OpPhi }
func (i *PhiInst) Operands() []*Value {
	ops := make([]*Value, 0, len(i.Order))
	for _, b := range i.Order {
		ops = append(ops, i.Incoming[b])
	}
	return ops
}

type SelectInst struct {
	base
	Res       *Value
	Cond      *Value
	TrueVal   *Value
	FalseVal  *Value
}

func (i *SelectInst) Result() *Value     { return i.Res }
func (i *SelectInst) Opcode() Opcode     { return OpSelect }
func (i *SelectInst) Operands() []*Value { return []*Value{i.Cond, i.TrueVal, i.FalseVal} }

// CallInst covers both `call` and `invoke` (both are treated
// identically for call-graph purposes); Invoke records which it was, and
// neither the printer nor any pass reads it.
type CallInst struct {
	base
	Res      *Value // nil for void calls
	Callee   *Function
	Indirect *Value // non-nil when Callee is unknown (indirect/function pointer call)
	Args     []*Value
	Invoke   bool
}

func (i *CallInst) Result() *Value { return i.Res }
func (i *CallInst) Opcode() Opcode { return OpCall }
func (i *CallInst) Operands() []*Value {
	if i.Indirect != nil {
		return append([]*Value{i.Indirect}, i.Args...)
	}
	return i.Args
}

// CalleeName returns the best-effort display name for the call target,
// for intrinsic/library-function recognition.
func (i *CallInst) CalleeName() string {
	if i.Callee != nil {
		return i.Callee.Name
	}
	return ""
}

type RetInst struct {
	base
	Val *Value // nil for a void return
}

func (i *RetInst) Result() *Value   { return nil }
func (i *RetInst) Opcode() Opcode   { return OpRet }
func (i *RetInst) IsTerminator() bool { return true }
func (i *RetInst) Operands() []*Value {
	if i.Val != nil {
		return []*Value{i.Val}
	}
	return nil
}

type BrInst struct {
	base
	Cond  *Value // nil for unconditional branches
	True  *BasicBlock
	False *BasicBlock // nil for unconditional branches
}

func (i *BrInst) Result() *Value     { return nil }
func (i *BrInst) Opcode() Opcode     { return OpBr }
func (i *BrInst) IsTerminator() bool { return true }
func (i *BrInst) Operands() []*Value {
	if i.Cond != nil {
		return []*Value{i.Cond}
	}
	return nil
}

// Successors returns the blocks this branch can transfer control to.
func (i *BrInst) Successors() []*BasicBlock {
	if i.False == nil {
		return []*BasicBlock{i.True}
	}
	return []*BasicBlock{i.True, i.False}
}

type UnreachableInst struct{ base }

func (i *UnreachableInst) Result() *Value     { return nil }
func (i *UnreachableInst) Opcode() Opcode     { return OpUnreachable }
func (i *UnreachableInst) IsTerminator() bool { return true }
func (i *UnreachableInst) Operands() []*Value { return nil }

// DebugValueInst is a `llvm.dbg.value`/`llvm.dbg.declare`-equivalent
// marker naming a value, used to recover synthesized alloca names when
// the alloca itself carries none.
type DebugValueInst struct {
	base
	Target  *Value
	VarName string
}

func (i *DebugValueInst) Result() *Value     { return nil }
func (i *DebugValueInst) Opcode() Opcode     { return OpDebugValue }
func (i *DebugValueInst) Operands() []*Value { return []*Value{i.Target} }
