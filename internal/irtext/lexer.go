package irtext

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// IRLexer tokenizes the textual LLVM-IR-subset input format spec §6
// describes, built the same way the teacher's grammar.KansoLexer is: a
// flat stateful rule set over one "Root" state, comments and whitespace
// elided by the parser rather than filtered here.
var IRLexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		{"Comment", `;[^\n]*`, nil},
		{"String", `"(\\.|[^"\\])*"`, nil},
		{"Float", `[0-9]+\.[0-9]+`, nil},
		{"Int", `-?[0-9]+`, nil},
		{"LocalID", `%[a-zA-Z0-9_.]+`, nil},
		{"GlobalID", `@[a-zA-Z0-9_.]+`, nil},
		{"MetaID", `![a-zA-Z0-9_.]+`, nil},
		{"Ident", `[a-zA-Z_][a-zA-Z0-9_]*`, nil},
		{"Punct", `[{}()\[\]<>,*=:]`, nil},
		{"Whitespace", `[ \t\r\n]+`, nil},
	},
})
