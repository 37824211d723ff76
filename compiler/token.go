package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Token types for the sylt lexer
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenError
	TokenNewline

	// Literals
	TokenInt        // 42
	TokenFloat      // 3.14, 1.5e10
	TokenString     // "hello"
	TokenIdentifier // foo, Bar

	// Delimiters
	TokenLParen     // (
	TokenRParen     // )
	TokenLBracket   // [
	TokenRBracket   // ]
	TokenLBrace     // {
	TokenRBrace     // }
	TokenComma      // ,
	TokenDot        // .
	TokenColon      // :
	TokenColonColon // ::
	TokenColonEqual // :=

	// Operators
	TokenPlus         // +
	TokenMinus        // -
	TokenStar         // *
	TokenSlash        // /
	TokenEqual        // =
	TokenEqualEqual   // ==
	TokenNotEqual     // !=
	TokenLess         // <
	TokenLessEqual    // <=
	TokenGreater      // >
	TokenGreaterEqual // >=
	TokenBang         // !
	TokenArrow        // ->
	TokenAssertEqual  // <=>

	// Reserved words
	TokenFn
	TokenIf
	TokenElse
	TokenLoop
	TokenBreak
	TokenRet
	TokenPrint
	TokenUse
	TokenBlob
	TokenAnd
	TokenOr
	TokenIn
	TokenTrue
	TokenFalse
	TokenNil
)

var tokenNames = map[TokenType]string{
	TokenEOF:        "EOF",
	TokenError:      "ERROR",
	TokenNewline:    "NEWLINE",
	TokenInt:        "INT",
	TokenFloat:      "FLOAT",
	TokenString:     "STRING",
	TokenIdentifier: "IDENTIFIER",
	TokenLParen:     "(",
	TokenRParen:     ")",
	TokenLBracket:   "[",
	TokenRBracket:   "]",
	TokenLBrace:     "{",
	TokenRBrace:     "}",
	TokenComma:      ",",
	TokenDot:        ".",
	TokenColon:      ":",
	TokenColonColon: "::",
	TokenColonEqual: ":=",

	TokenPlus:         "+",
	TokenMinus:        "-",
	TokenStar:         "*",
	TokenSlash:        "/",
	TokenEqual:        "=",
	TokenEqualEqual:   "==",
	TokenNotEqual:     "!=",
	TokenLess:         "<",
	TokenLessEqual:    "<=",
	TokenGreater:      ">",
	TokenGreaterEqual: ">=",
	TokenBang:         "!",
	TokenArrow:        "->",
	TokenAssertEqual:  "<=>",

	TokenFn:    "fn",
	TokenIf:    "if",
	TokenElse:  "else",
	TokenLoop:  "loop",
	TokenBreak: "break",
	TokenRet:   "ret",
	TokenPrint: "print",
	TokenUse:   "use",
	TokenBlob:  "blob",
	TokenAnd:   "and",
	TokenOr:    "or",
	TokenIn:    "in",
	TokenTrue:  "true",
	TokenFalse: "false",
	TokenNil:   "nil",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// Token represents a lexical token with its source line.
type Token struct {
	Type    TokenType
	Literal string // the raw text
	Line    int    // 1-based source line
}

func (t Token) String() string {
	if t.Type == TokenEOF {
		return "EOF"
	}
	if t.Type == TokenError {
		return fmt.Sprintf("ERROR(%s)", t.Literal)
	}
	if len(t.Literal) > 20 {
		return fmt.Sprintf("%s(%q...)", t.Type, t.Literal[:20])
	}
	return fmt.Sprintf("%s(%q)", t.Type, t.Literal)
}

// Reserved words mapped to their token types.
var reservedWords = map[string]TokenType{
	"fn":    TokenFn,
	"if":    TokenIf,
	"else":  TokenElse,
	"loop":  TokenLoop,
	"break": TokenBreak,
	"ret":   TokenRet,
	"print": TokenPrint,
	"use":   TokenUse,
	"blob":  TokenBlob,
	"and":   TokenAnd,
	"or":    TokenOr,
	"in":    TokenIn,
	"true":  TokenTrue,
	"false": TokenFalse,
	"nil":   TokenNil,
}
