// Package token defines language keywords and tokens used when lexing source code.
package token

// Type describes the type of a token as a string.
type Type string

// Token represents one token lexed from the input source code.
type Token struct {
	Type    Type
	Literal string
	Line    int // 1-indexed line number
	Offset  int // byte offset of the first character
}

// Message returns the diagnostic carried by an ILLEGAL token.
func (t Token) Message() string {
	if t.Type != ILLEGAL {
		return ""
	}
	return t.Literal
}

// Token types
const (
	ILLEGAL Type = "ILLEGAL"
	EOF     Type = "EOF"
	NEWLINE Type = "EOL"

	NAME   Type = "NAME"
	NUMBER Type = "NUMBER"
	STRING Type = "STRING"

	// Delimiters
	LPAREN    Type = "("
	RPAREN    Type = ")"
	LBRACKET  Type = "["
	RBRACKET  Type = "]"
	LBRACE    Type = "{"
	RBRACE    Type = "}"
	SEMICOLON Type = ";"
	COMMA     Type = ","
	PERIOD    Type = "."
	CARET     Type = "^"
	AMPERSAND Type = "&"
	TILDE     Type = "~"
	HASH      Type = "#"
	AT        Type = "@"
	COLON     Type = ":"
	RARROW    Type = "->"
	LARROW    Type = "<-"
	VBAR      Type = "|"
	PIPE      Type = "|>"

	// Operators
	CONCAT           Type = "::"
	CONCAT_EQUALS    Type = "::="
	PLUS             Type = "+"
	PLUS_EQUALS      Type = "+="
	MINUS            Type = "-"
	MINUS_EQUALS     Type = "-="
	ASTERISK         Type = "*"
	ASTERISK_EQUALS  Type = "*="
	POW              Type = "**"
	POW_EQUALS       Type = "**="
	SLASH            Type = "/"
	SLASH_EQUALS     Type = "/="
	MOD              Type = "%"
	MOD_EQUALS       Type = "%="
	ASSIGN           Type = "="
	EQ               Type = "=="
	NOT_EQ           Type = "!="
	GT               Type = ">"
	GT_EQUALS        Type = ">="
	LT               Type = "<"
	LT_EQUALS        Type = "<="

	// Keywords
	AND      Type = "and"
	BREAK    Type = "break"
	CLASS    Type = "class"
	ELSE     Type = "else"
	FALSE    Type = "false"
	FN       Type = "fn"
	FOR      Type = "for"
	FROM     Type = "from"
	IF       Type = "if"
	IN       Type = "in"
	IMPORT   Type = "import"
	LET      Type = "let"
	MATCH    Type = "match"
	NONE     Type = "none"
	NOT      Type = "not"
	OR       Type = "or"
	RETURN   Type = "return"
	SELF     Type = "self"
	SKIP     Type = "skip"
	SUPER    Type = "super"
	TRUE     Type = "true"
	WHILE    Type = "while"
	WITH     Type = "with"
	WILDCARD Type = "_"

	// Reserved for future use; the compiler rejects them.
	ASYNC  Type = "async"
	AWAIT  Type = "await"
	TRY    Type = "try"
	SPREAD Type = "spread"
)

// Reserved keywords
var keywords = map[string]Type{
	"and":    AND,
	"async":  ASYNC,
	"await":  AWAIT,
	"break":  BREAK,
	"class":  CLASS,
	"else":   ELSE,
	"false":  FALSE,
	"fn":     FN,
	"for":    FOR,
	"from":   FROM,
	"if":     IF,
	"in":     IN,
	"import": IMPORT,
	"let":    LET,
	"match":  MATCH,
	"none":   NONE,
	"not":    NOT,
	"or":     OR,
	"return": RETURN,
	"self":   SELF,
	"skip":   SKIP,
	"spread": SPREAD,
	"super":  SUPER,
	"true":   TRUE,
	"try":    TRY,
	"while":  WHILE,
	"with":   WITH,
	"_":      WILDCARD,
}

// LookupIdentifier used to determinate whether identifier is keyword nor not
func LookupIdentifier(identifier string) Type {
	if tok, ok := keywords[identifier]; ok {
		return tok
	}
	return NAME
}

// IsKeyword reports whether the given type is a language keyword.
func IsKeyword(t Type) bool {
	_, ok := keywords[string(t)]
	return ok
}
