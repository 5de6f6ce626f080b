// Package lexer builds the stateful Participle lexer shared by every WDL
// grammar version. Draft-2, 1.0, 1.1 and development documents differ only
// in which keywords/placeholder syntaxes the parser accepts; the token
// stream itself is identical, so one lexer definition serves all of them.
package lexer

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// WDL is the stateful lexer used by internal/parser. It pushes into the
// "DString"/"Command" states while inside quoted strings and command
// blocks so that `${}`/`~{}` placeholders can be recognized without a
// separate preprocessing pass, the usual push/pop pattern for lexing
// embedded foreign syntax.
var WDL = lexer.MustStateful(lexer.Rules{
	"Root": {
		{Name: "whitespace", Pattern: `[ \t\r\n]+`, Action: nil},
		{Name: "Comment", Pattern: `#[^\n]*`, Action: nil},

		{Name: "HeredocOpen", Pattern: `<<<`, Action: lexer.Push("Command")},
		{Name: "BraceCommandOpen", Pattern: `command\s*\{`, Action: lexer.Push("BraceCommand")},

		{Name: "DQuoteOpen", Pattern: `"`, Action: lexer.Push("DString")},
		{Name: "SQuoteOpen", Pattern: `'`, Action: lexer.Push("SString")},

		{Name: "Version", Pattern: `\bversion\b`, Action: nil},
		{Name: "Import", Pattern: `\bimport\b`, Action: nil},
		{Name: "As", Pattern: `\bas\b`, Action: nil},
		{Name: "Alias", Pattern: `\balias\b`, Action: nil},
		{Name: "Struct", Pattern: `\bstruct\b`, Action: nil},
		{Name: "Task", Pattern: `\btask\b`, Action: nil},
		{Name: "Workflow", Pattern: `\bworkflow\b`, Action: nil},
		{Name: "Input", Pattern: `\binput\b`, Action: nil},
		{Name: "Output", Pattern: `\boutput\b`, Action: nil},
		{Name: "Runtime", Pattern: `\bruntime\b`, Action: nil},
		{Name: "Meta", Pattern: `\bmeta\b`, Action: nil},
		{Name: "ParameterMeta", Pattern: `\bparameter_meta\b`, Action: nil},
		{Name: "Call", Pattern: `\bcall\b`, Action: nil},
		{Name: "Scatter", Pattern: `\bscatter\b`, Action: nil},
		{Name: "After", Pattern: `\bafter\b`, Action: nil},
		{Name: "If", Pattern: `\bif\b`, Action: nil},
		{Name: "Then", Pattern: `\bthen\b`, Action: nil},
		{Name: "Else", Pattern: `\belse\b`, Action: nil},
		{Name: "In", Pattern: `\bin\b`, Action: nil},
		{Name: "None", Pattern: `\bNone\b`, Action: nil},
		{Name: "True", Pattern: `\btrue\b`, Action: nil},
		{Name: "False", Pattern: `\bfalse\b`, Action: nil},
		{Name: "Object", Pattern: `\bobject\b`, Action: nil},

		{Name: "Boolean", Pattern: `\bBoolean\b`, Action: nil},
		{Name: "Int", Pattern: `\bInt\b`, Action: nil},
		{Name: "Float", Pattern: `\bFloat\b`, Action: nil},
		{Name: "StringType", Pattern: `\bString\b`, Action: nil},
		{Name: "FileType", Pattern: `\bFile\b`, Action: nil},
		{Name: "DirectoryType", Pattern: `\bDirectory\b`, Action: nil},
		{Name: "Array", Pattern: `\bArray\b`, Action: nil},
		{Name: "Map", Pattern: `\bMap\b`, Action: nil},
		{Name: "Pair", Pattern: `\bPair\b`, Action: nil},
		{Name: "AnyType", Pattern: `\bAny\b`, Action: nil},

		{Name: "Float64", Pattern: `[0-9]+\.[0-9]+([eE][+-]?[0-9]+)?|[0-9]+[eE][+-]?[0-9]+`, Action: nil},
		{Name: "HexInt", Pattern: `0[xX][0-9a-fA-F]+`, Action: nil},
		{Name: "DecInt", Pattern: `[0-9]+`, Action: nil},

		{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`, Action: nil},

		{Name: "AndAnd", Pattern: `&&`, Action: nil},
		{Name: "OrOr", Pattern: `\|\|`, Action: nil},
		{Name: "Eq", Pattern: `==`, Action: nil},
		{Name: "Ne", Pattern: `!=`, Action: nil},
		{Name: "Le", Pattern: `<=`, Action: nil},
		{Name: "Ge", Pattern: `>=`, Action: nil},
		{Name: "Lt", Pattern: `<`, Action: nil},
		{Name: "Gt", Pattern: `>`, Action: nil},
		{Name: "Not", Pattern: `!`, Action: nil},
		{Name: "Plus", Pattern: `\+`, Action: nil},
		{Name: "Minus", Pattern: `-`, Action: nil},
		{Name: "Star", Pattern: `\*`, Action: nil},
		{Name: "Slash", Pattern: `/`, Action: nil},
		{Name: "Percent", Pattern: `%`, Action: nil},
		{Name: "Question", Pattern: `\?`, Action: nil},
		{Name: "PlusSuffix", Pattern: `\+(?=[\s\]),}])`, Action: nil},

		{Name: "Dot", Pattern: `\.`, Action: nil},
		{Name: "Comma", Pattern: `,`, Action: nil},
		{Name: "Colon", Pattern: `:`, Action: nil},
		{Name: "Equals", Pattern: `=`, Action: nil},
		{Name: "LParen", Pattern: `\(`, Action: nil},
		{Name: "RParen", Pattern: `\)`, Action: nil},
		{Name: "LBrace", Pattern: `\{`, Action: nil},
		{Name: "RBrace", Pattern: `\}`, Action: nil},
		{Name: "LBracket", Pattern: `\[`, Action: nil},
		{Name: "RBracket", Pattern: `\]`, Action: nil},
	},
	"DString": {
		{Name: "DQuoteClose", Pattern: `"`, Action: lexer.Pop()},
		{Name: "TildePlaceholderOpen", Pattern: `~\{`, Action: lexer.Push("Root")},
		{Name: "DollarPlaceholderOpen", Pattern: `\$\{`, Action: lexer.Push("Root")},
		{Name: "StringChunk", Pattern: `([^"$~\\]|\\.|\$[^{]|~[^{])+`, Action: nil},
	},
	"SString": {
		{Name: "SQuoteClose", Pattern: `'`, Action: lexer.Pop()},
		{Name: "TildePlaceholderOpenS", Pattern: `~\{`, Action: lexer.Push("Root")},
		{Name: "DollarPlaceholderOpenS", Pattern: `\$\{`, Action: lexer.Push("Root")},
		{Name: "StringChunkS", Pattern: `([^'$~\\]|\\.|\$[^{]|~[^{])+`, Action: nil},
	},
	"Command": {
		{Name: "HeredocClose", Pattern: `>>>`, Action: lexer.Pop()},
		{Name: "TildePlaceholderOpenC", Pattern: `~\{`, Action: lexer.Push("Root")},
		{Name: "CommandChunk", Pattern: `([^~>]|~[^{]|>[^>]|>>[^>])+`, Action: nil},
	},
	"BraceCommand": {
		{Name: "BraceCommandClose", Pattern: `\}`, Action: lexer.Pop()},
		{Name: "TildePlaceholderOpenB", Pattern: `~\{`, Action: lexer.Push("Root")},
		{Name: "DollarPlaceholderOpenB", Pattern: `\$\{`, Action: lexer.Push("Root")},
		{Name: "BraceCommandChunk", Pattern: `([^~$}]|~[^{]|\$[^{])+`, Action: nil},
	},
})
