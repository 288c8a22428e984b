package ir

// DebugLoc is a source position recovered from debug info. Line/Col are
// 1-based; a zero Line means "no debug info available here".
type DebugLoc struct {
	File string
	Line int
	Col  int
}

func (l DebugLoc) Valid() bool { return l.Line > 0 }

// PointeeKind distinguishes how a parameter's debug type describes its
// referent, for the const-parameter analysis.
type PointeeKind int

const (
	NotPointerOrRef PointeeKind = iota
	PointerKind
	ReferenceKind
	RvalueReferenceKind
)

// DebugType is the slice of DWARF-like parameter type info the
// const-parameter analyzer needs: is this a pointer/reference, is the
// pointee const, what is the pointee's printable (and typedef-stripped)
// name.
type DebugType struct {
	Kind            PointeeKind
	PointeeConst    bool
	PointeeTypeName string // as written, typedefs preserved
	CanonicalName   string // typedefs stripped, for the const check
	IsFunctionPtr   bool
	IsDoublePointer bool
	TypedefName     string // non-empty if the immediate type is itself a typedef
}

// Value is an SSA value: the result of an instruction, a function
// parameter, a global, or a constant.
type Value struct {
	ID   int
	Name string // empty for unnamed temporaries (%1, %2, ...)
	Type Type

	IsConstant bool
	ConstInt   int64 // valid when IsConstant and Type is *IntType

	IsGlobal bool
	IsArg    bool
	ArgIndex int // valid when IsArg

	Def  Instruction // nil for arguments, globals, and constants
	Func *Function   // owning function, for arguments
}

func (v *Value) String() string {
	if v.IsConstant {
		return itoa(v.ConstInt)
	}
	if v.Name != "" {
		if v.IsGlobal {
			return "@" + v.Name
		}
		return "%" + v.Name
	}
	return "%" + itoa(int64(v.ID))
}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [24]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// ConstValue creates an unnamed integer constant.
func ConstValue(n int64, t Type) *Value {
	return &Value{Type: t, IsConstant: true, ConstInt: n}
}
