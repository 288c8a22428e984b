package irtext

// Program is the top-level production: a sequence of module-level items
// in any order, mirroring the loose statement-sequence shape of
// grammar.Program in the teacher repo.
type Program struct {
	Items []*TopLevelItem `@@*`
}

type TopLevelItem struct {
	SourceFilename string     `  "source_filename" "=" @String`
	StructDef      *StructDef `| @@`
	Global         *GlobalDef `| @@`
	Func           *FuncDef   `| @@`
}

// StructDef: `%name = type { field, field, ... }`
type StructDef struct {
	Name   string  `@LocalID "=" "type"`
	Fields []*Type `"{" [ @@ { "," @@ } ] "}"`
}

// GlobalDef: `@name = global <type> [initializer]`
type GlobalDef struct {
	Name string `@GlobalID "=" "global"`
	Type *Type  `@@`
	Init string `[ ( @Ident | @Int ) ]`
}

// FuncDef covers both `define` (has a body) and `declare` (no body).
type FuncDef struct {
	Kind   string   `@("declare"|"define")`
	Ret    *Type    `@@`
	Name   string   `@GlobalID "("`
	Params []*Param `[ @@ { "," @@ } ] ")"`
	Dbg    *DbgLoc  `[ @@ ]`
	Blocks []*Block `[ "{" @@* "}" ]`
}

// Param's optional `ctype "<encoded>"` annotation carries the DWARF-like
// parameter-type facts (spec §4.13) this subset format has no other way
// to express; the encoded string is a small semicolon-separated
// key=value form parsed in convert.go, not by participle.
type Param struct {
	Type      *Type  `@@`
	Name      string `[ @LocalID ]`
	NoCapture bool   `[ @"nocapture" ]`
	ByVal     bool   `[ @"byval" ]`
	ByRef     bool   `[ @"byref" ]`
	ReadOnly  bool   `[ @"readonly" ]`
	CType     string `[ "ctype" @String ]`
}

type Block struct {
	Label string  `@Ident ":"`
	Insts []*Inst `@@*`
}

// DbgLoc is the inline `!dbg (line,col)` location annotation this
// subset format uses instead of a separate metadata-node graph.
type DbgLoc struct {
	Line int `"!dbg" "(" @Int`
	Col  int `"," @Int ")"`
}

// Type covers the handful of LLVM type shapes the analyzer needs:
// integers, pointers (postfix `*`), fixed arrays, named/literal structs,
// void, float/double.
type Type struct {
	Base  *BaseType `@@`
	Stars string    `{ @"*" }`
}

type BaseType struct {
	Int     string         `(  @("i1"|"i8"|"i16"|"i32"|"i64"|"i128")`
	Float   string         ` | @("float"|"double")`
	Void    bool           ` | @"void"`
	Array   *ArrayType     ` | @@`
	Literal *LiteralStruct ` | @@`
	Struct  string         ` | @LocalID )`
}

type ArrayType struct {
	Count uint64 `"[" @Int`
	Elem  *Type  `"x" @@ "]"`
}

type LiteralStruct struct {
	Fields []*Type `"{" [ @@ { "," @@ } ] "}"`
}

// Inst is the one-of-many instruction production. Each alternative's
// leading keyword disambiguates it, so no statement separators are
// needed between lines.
type Inst struct {
	Alloca      *AllocaI `  @@`
	Load        *LoadI   `| @@`
	Store       *StoreI  `| @@`
	GEP         *GEPI    `| @@`
	Cast        *CastI   `| @@`
	ICmp        *ICmpI   `| @@`
	BinOp       *BinOpI  `| @@`
	Phi         *PhiI    `| @@`
	Select      *SelectI `| @@`
	Call        *CallI   `| @@`
	Ret         *RetI    `| @@`
	Br          *BrI     `| @@`
	Unreachable bool     `| @"unreachable"`
}

type AllocaI struct {
	Result string   `@LocalID "=" "alloca"`
	Elem   *Type    `@@`
	Count  *Operand `[ "," "i64" @@ ]`
	Name   string   `[ "," "name" @String ]`
	Dbg    *DbgLoc  `[ @@ ]`
}

type LoadI struct {
	Result string  `@LocalID "=" "load"`
	Type   *Type   `@@ ","`
	PtrTy  *Type   `@@`
	Ptr    string  `@LocalID`
	Dbg    *DbgLoc `[ @@ ]`
}

type StoreI struct {
	ValTy *Type    `"store" @@`
	Val   *Operand `@@ ","`
	PtrTy *Type    `@@`
	Ptr   string   `@LocalID`
	Dbg   *DbgLoc  `[ @@ ]`
}

type GEPI struct {
	Result  string     `@LocalID "=" "getelementptr"`
	Elem    *Type      `@@ ","`
	BaseTy  *Type      `@@`
	Base    string     `@LocalID`
	Indices []*Operand `{ "," @@ }`
	Dbg     *DbgLoc    `[ @@ ]`
}

type CastI struct {
	Result string  `@LocalID "="`
	Op     string  `@("bitcast"|"addrspacecast"|"ptrtoint"|"inttoptr"|"trunc"|"zext"|"sext")`
	SrcTy  *Type   `@@`
	Src    string  `@LocalID`
	DstTy  *Type   `"to" @@`
	Dbg    *DbgLoc `[ @@ ]`
}

type ICmpI struct {
	Result string   `@LocalID "=" "icmp"`
	Pred   string   `@("eq"|"ne"|"slt"|"sle"|"sgt"|"sge"|"ult"|"ule"|"ugt"|"uge")`
	Type   *Type    `@@`
	LHS    *Operand `@@ ","`
	RHS    *Operand `@@`
	Dbg    *DbgLoc  `[ @@ ]`
}

type BinOpI struct {
	Result string   `@LocalID "="`
	Op     string   `@("add"|"sub"|"mul"|"or"|"and"|"xor"|"shl"|"lshr"|"ashr"|"udiv"|"sdiv")`
	Type   *Type    `@@`
	LHS    *Operand `@@ ","`
	RHS    *Operand `@@`
	Dbg    *DbgLoc  `[ @@ ]`
}

type PhiI struct {
	Result   string      `@LocalID "=" "phi"`
	Type     *Type       `@@`
	Incoming []*PhiEntry `@@ { "," @@ }`
	Dbg      *DbgLoc     `[ @@ ]`
}

type PhiEntry struct {
	Val   *Operand `"[" @@ ","`
	Block string   `@Ident "]"`
}

type SelectI struct {
	Result string   `@LocalID "=" "select" "i1"`
	Cond   *Operand `@@ ","`
	Type   *Type    `@@`
	TVal   *Operand `@@ ","`
	FType  *Type    `@@`
	FVal   *Operand `@@`
	Dbg    *DbgLoc  `[ @@ ]`
}

// CallI covers both void and value-producing calls (Result empty for
// void), and both direct (Callee a GlobalID) and indirect (Callee a
// LocalID function-pointer value) calls.
type CallI struct {
	Result string     `[ @LocalID "=" ]`
	Type   *Type      `"call" @@`
	Callee string     `( @GlobalID | @LocalID ) "("`
	Args   []*Operand `[ @@ { "," @@ } ] ")"`
	Dbg    *DbgLoc    `[ @@ ]`
}

type RetI struct {
	Void bool     `"ret" ( @"void"`
	Type *Type    ` | @@ )`
	Val  *Operand `[ @@ ]`
	Dbg  *DbgLoc  `[ @@ ]`
}

type BrI struct {
	Cond  *Operand `"br" [ "i1" @@ "," ]`
	True  string   `"label" @Ident`
	False string   `[ "," "label" @Ident ]`
	Dbg   *DbgLoc  `[ @@ ]`
}

// Operand is a typed use's value: a local reference, a global
// reference, or an integer constant.
type Operand struct {
	Local  string `(  @LocalID`
	Global string ` | @GlobalID`
	Int    *int64 ` | @Int )`
}
