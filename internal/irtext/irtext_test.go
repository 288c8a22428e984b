package irtext

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ctrace/internal/ir"
)

const sampleIR = `
source_filename = "t.c"

%Point = type { i32, i32 }

@counter = global i32

define i32 @add(i32 %a, i32 %b) !dbg (3,1) {
entry:
  %sum = add i32 %a, %b !dbg (4,3)
  ret i32 %sum !dbg (5,3)
}

declare i8* @malloc(i64)

define void @make_buf(i32 %n) !dbg (8,1) {
entry:
  %buf = alloca i8, i64 %n, name "buf" !dbg (9,3)
  %cmp = icmp sgt i32 %n, 0 !dbg (10,3)
  br i1 %cmp, label %pos, label %neg !dbg (10,3)
pos:
  br label %done
neg:
  br label %done
done:
  ret void !dbg (13,1)
}
`

func TestParseBasic(t *testing.T) {
	m, err := Parse("t.c", sampleIR)
	require.NoError(t, err)
	assert.Equal(t, "t.c", m.SourceFile)

	add := m.FindFunction("add")
	require.NotNil(t, add, "expected function add")
	assert.Len(t, add.Params, 2)
	assert.False(t, add.IsDecl, "add should be a definition")
	require.Len(t, add.Blocks, 1)

	ret := add.Blocks[0].Terminator()
	require.NotNil(t, ret)
	assert.Equal(t, ir.OpRet, ret.Opcode())

	malloc := m.FindFunction("malloc")
	require.NotNil(t, malloc, "expected declared function malloc")
	assert.True(t, malloc.IsDecl, "malloc should be a declaration")

	mkbuf := m.FindFunction("make_buf")
	require.NotNil(t, mkbuf, "expected function make_buf")
	assert.Len(t, mkbuf.Blocks, 4)
}

func TestParsePhiForwardReference(t *testing.T) {
	src := `
define i32 @loopy(i32 %n) {
entry:
  br label %loop
loop:
  %i = phi i32 [ 0, %entry ], [ %next, %loop ]
  %next = add i32 %i, 1
  %done = icmp sge i32 %next, %n
  br i1 %done, label %exit, label %loop
exit:
  ret i32 %i
}
`
	m, err := Parse("t.c", src)
	require.NoError(t, err)
	f := m.FindFunction("loopy")
	require.NotNil(t, f, "expected function loopy")

	var phi *ir.PhiInst
	for _, inst := range f.AllInstructions() {
		if p, ok := inst.(*ir.PhiInst); ok {
			phi = p
		}
	}
	require.NotNil(t, phi, "expected a phi instruction")
	require.Len(t, phi.Incoming, 2)
	for _, v := range phi.Incoming {
		assert.NotNil(t, v, "phi incoming value unresolved")
	}
}

func TestParseStructAndGlobal(t *testing.T) {
	m, err := Parse("t.c", sampleIR)
	require.NoError(t, err)
	g := m.FindGlobal("counter")
	require.NotNil(t, g, "expected global counter")
	_, ok := g.Type.(*ir.IntType)
	assert.True(t, ok, "counter type = %T, want *ir.IntType", g.Type)
}

func TestParseSyntaxError(t *testing.T) {
	_, err := Parse("bad.c", "define i32 @f( {\nret\n")
	assert.Error(t, err, "expected a parse error")
}

func TestDecodeCType(t *testing.T) {
	dt := decodeCType(`"kind=ptr;const=1;name=int;canonical=int"`, &ir.IntType{Bits: 32})
	assert.Equal(t, ir.PointerKind, dt.Kind)
	assert.True(t, dt.PointeeConst)
	assert.Equal(t, "int", dt.PointeeTypeName)
}
