package ir

import (
	"fmt"
	"strings"
)

// Printer renders a Module back to a readable textual form. The CLI does
// not call it: its `-dump-filter` flag (AnalysisConfig.DumpFilter)
// prints the filter settings, not the IR.
type Printer struct {
	indent int
	output strings.Builder
}

func NewPrinter() *Printer { return &Printer{} }

// Print renders an entire module.
func Print(m *Module) string {
	p := NewPrinter()
	p.printModule(m)
	return p.output.String()
}

// PrintFunction renders a single function.
func PrintFunction(f *Function) string {
	p := NewPrinter()
	p.printFunction(f)
	return p.output.String()
}

func (p *Printer) writeLine(format string, args ...interface{}) {
	p.output.WriteString(strings.Repeat("  ", p.indent))
	p.output.WriteString(fmt.Sprintf(format, args...))
	p.output.WriteString("\n")
}

func (p *Printer) printModule(m *Module) {
	p.writeLine("; source_filename = %q", m.SourceFile)
	for _, g := range m.Globals {
		p.writeLine("@%s = global %s", g.Name, g.Type)
	}
	for _, f := range m.Functions {
		p.printFunction(f)
	}
}

func (p *Printer) printFunction(f *Function) {
	params := make([]string, len(f.Params))
	for i, prm := range f.Params {
		params[i] = fmt.Sprintf("%s %%%s", prm.Type, prm.Name)
	}
	kw := "define"
	if f.IsDecl {
		kw = "declare"
	}
	p.writeLine("%s %s @%s(%s) {", kw, f.ReturnType, f.Name, strings.Join(params, ", "))
	p.indent++
	for _, b := range f.Blocks {
		p.writeLine("%s:", b.Label)
		p.indent++
		for _, inst := range b.Instructions {
			p.writeLine("%s", instString(inst))
		}
		p.indent--
	}
	p.indent--
	p.writeLine("}")
}

func instString(inst Instruction) string {
	switch v := inst.(type) {
	case *AllocaInst:
		if v.ArraySize != nil {
			return fmt.Sprintf("%s = alloca %s, %s", v.Res, v.ElemType, v.ArraySize)
		}
		return fmt.Sprintf("%s = alloca %s", v.Res, v.ElemType)
	case *LoadInst:
		return fmt.Sprintf("%s = load %s", v.Res, v.Ptr)
	case *StoreInst:
		return fmt.Sprintf("store %s, %s", v.Val, v.Ptr)
	case *GEPInst:
		return fmt.Sprintf("%s = getelementptr %s, %s", v.Res, v.SourceType, v.Base)
	case *CastInst:
		return fmt.Sprintf("%s = cast %s", v.Res, v.Src)
	case *ICmpInst:
		return fmt.Sprintf("%s = icmp %s, %s", v.Res, v.LHS, v.RHS)
	case *BinOpInst:
		return fmt.Sprintf("%s = binop %s, %s", v.Res, v.LHS, v.RHS)
	case *PhiInst:
		return fmt.Sprintf("%s = phi", v.Res)
	case *SelectInst:
		return fmt.Sprintf("%s = select %s, %s, %s", v.Res, v.Cond, v.TrueVal, v.FalseVal)
	case *CallInst:
		name := v.CalleeName()
		if name == "" {
			name = "<indirect>"
		}
		if v.Res != nil {
			return fmt.Sprintf("%s = call @%s", v.Res, name)
		}
		return fmt.Sprintf("call @%s", name)
	case *RetInst:
		if v.Val != nil {
			return fmt.Sprintf("ret %s", v.Val)
		}
		return "ret void"
	case *BrInst:
		if v.Cond != nil {
			return fmt.Sprintf("br %s, %s, %s", v.Cond, v.True.Label, v.False.Label)
		}
		return fmt.Sprintf("br %s", v.True.Label)
	case *UnreachableInst:
		return "unreachable"
	case *DebugValueInst:
		return fmt.Sprintf("dbg.value %s, %q", v.Target, v.VarName)
	default:
		return "<unknown>"
	}
}
