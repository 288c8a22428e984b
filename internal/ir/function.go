package ir

// Param is one formal parameter, carrying both its SSA value and the
// debug-info type description the const-parameter analysis needs.
type Param struct {
	Name  string
	Type  Type
	Value *Value
	Debug DebugType
}

// FuncAttrs records the subset of function/argument attributes the
// function-attrs pre-pass infers (or that the input IR already carried):
// nocapture per argument, and the function-level memory-access classes
// that gate the const-parameter and stack-escape analyses.
type FuncAttrs struct {
	NoCapture          map[int]bool // by argument index
	ByVal              map[int]bool
	ByRef              map[int]bool
	ReadOnlyArg        map[int]bool // argument proven only-read
	DoesNotAccessMemory bool
	OnlyReadsMemory    bool
}

func newFuncAttrs() FuncAttrs {
	return FuncAttrs{
		NoCapture:   map[int]bool{},
		ByVal:       map[int]bool{},
		ByRef:       map[int]bool{},
		ReadOnlyArg: map[int]bool{},
	}
}

// BasicBlock is a maximal straight-line instruction sequence ending in a
// terminator.
type BasicBlock struct {
	Label        string
	Func         *Function
	Instructions []Instruction // last entry is always the terminator

	Preds []*BasicBlock
	Succs []*BasicBlock

	// Dominator-tree links, computed by BuildDominatorTree.
	IDom      *BasicBlock
	Children  []*BasicBlock
	domOrder  int // preorder index, for fast ancestor checks
}

// Terminator returns the block's terminating instruction.
func (b *BasicBlock) Terminator() Instruction {
	if len(b.Instructions) == 0 {
		return nil
	}
	return b.Instructions[len(b.Instructions)-1]
}

// Function is one defined or declared function. Declarations (no Blocks)
// are never analyzed but still participate in the call graph as leaves.
type Function struct {
	Name        string // demangled/display name
	Symbol      string // raw mangled symbol, "" if the input has no mangling
	Module      *Module
	Params      []*Param
	ReturnType  Type
	IsDecl      bool
	Blocks      []*BasicBlock
	Attrs       FuncAttrs
	DebugFile   string
	DebugLine   int
	DebugCol    int

	nextValueID int
}

func NewFunction(name string) *Function {
	return &Function{Name: name, Attrs: newFuncAttrs()}
}

// Entry returns the function's entry block, or nil for a declaration.
func (f *Function) Entry() *BasicBlock {
	if len(f.Blocks) == 0 {
		return nil
	}
	return f.Blocks[0]
}

// AllInstructions yields every instruction in block order.
func (f *Function) AllInstructions() []Instruction {
	var out []Instruction
	for _, b := range f.Blocks {
		out = append(out, b.Instructions...)
	}
	return out
}

// FirstDebugLine scans the function for the first instruction carrying a
// valid debug location, used as the fallback source position when the
// function itself has none.
func (f *Function) FirstDebugLine() DebugLoc {
	for _, inst := range f.AllInstructions() {
		if loc := inst.Loc(); loc.Valid() {
			return loc
		}
	}
	return DebugLoc{File: f.DebugFile, Line: f.DebugLine, Col: f.DebugCol}
}

// GlobalVar is a module-level variable (used by the stack-escape analyzer
// to recognize `store_global` escapes).
type GlobalVar struct {
	Name string
	Type Type
}

// Module is a single translation unit: its functions, its globals, and
// the data layout used for size/alignment queries.
type Module struct {
	SourceFile string
	Functions  []*Function
	Globals    []*GlobalVar
	DataLayout *DataLayout
}

func NewModule(sourceFile string) *Module {
	return &Module{SourceFile: sourceFile, DataLayout: DefaultDataLayout()}
}

func (m *Module) FindGlobal(name string) *GlobalVar {
	for _, g := range m.Globals {
		if g.Name == name {
			return g
		}
	}
	return nil
}

func (m *Module) FindFunction(name string) *Function {
	for _, f := range m.Functions {
		if f.Name == name || f.Symbol == name {
			return f
		}
	}
	return nil
}
