package irtext

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/fatih/color"

	"ctrace/internal/ir"
)

var irParser = participle.MustBuild[Program](
	participle.Lexer(IRLexer),
	participle.Elide("Whitespace", "Comment"),
	participle.UseLookahead(4),
)

// Parse lexes and parses source (the textual-IR-subset format spec §6
// describes, or this module's own compiler-output stand-in for it) and
// converts the resulting AST into an *ir.Module, the same two-stage
// shape as the teacher's grammar.ParseFile followed by its semantic
// checker — here the second stage builds an ir.Module instead of
// resolving a contract's AST.
func Parse(filename, source string) (*ir.Module, error) {
	prog, err := irParser.ParseString(filename, source)
	if err != nil {
		reportParseError(source, err)
		return nil, fmt.Errorf("parsing %s: %w", filename, err)
	}
	return convert(filename, prog)
}

// reportParseError prints a friendly caret-style parse error message,
// grounded on grammar.reportParseError in the teacher repo.
func reportParseError(src string, err error) {
	pe, ok := err.(participle.Error)
	if !ok {
		color.Red("unexpected error: %s", err)
		return
	}

	pos := pe.Position()
	lines := strings.Split(src, "\n")
	if pos.Line <= 0 || pos.Line > len(lines) {
		color.Red("syntax error at unknown location: %s", err)
		return
	}

	line := lines[pos.Line-1]
	caret := strings.Repeat(" ", max(pos.Column-1, 0)) + "^"

	color.Red("syntax error in %s at line %d, column %d:", pos.Filename, pos.Line, pos.Column)
	fmt.Println(line)
	color.HiRed(caret)
	fmt.Printf("-> %s\n", pe.Message())
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
