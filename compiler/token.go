package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Token types for the Monkey lexer
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenIllegal

	// Identifiers and literals
	TokenIdent  // add, foobar, x
	TokenInt    // 1343456
	TokenString // "hello"

	// Operators
	TokenAssign   // =
	TokenPlus     // +
	TokenMinus    // -
	TokenBang     // !
	TokenAsterisk // *
	TokenSlash    // /
	TokenPercent  // %
	TokenLT       // <
	TokenGT       // >
	TokenEq       // ==
	TokenNotEq    // !=
	TokenAnd      // &&
	TokenOr       // ||

	// Delimiters
	TokenComma     // ,
	TokenSemicolon // ;
	TokenColon     // :
	TokenLParen    // (
	TokenRParen    // )
	TokenLBrace    // {
	TokenRBrace    // }
	TokenLBracket  // [
	TokenRBracket  // ]

	// Keywords
	TokenFunction
	TokenLet
	TokenTrue
	TokenFalse
	TokenIf
	TokenElse
	TokenReturn
)

var tokenNames = map[TokenType]string{
	TokenEOF:       "EOF",
	TokenIllegal:   "ILLEGAL",
	TokenIdent:     "IDENT",
	TokenInt:       "INT",
	TokenString:    "STRING",
	TokenAssign:    "=",
	TokenPlus:      "+",
	TokenMinus:     "-",
	TokenBang:      "!",
	TokenAsterisk:  "*",
	TokenSlash:     "/",
	TokenPercent:   "%",
	TokenLT:        "<",
	TokenGT:        ">",
	TokenEq:        "==",
	TokenNotEq:     "!=",
	TokenAnd:       "&&",
	TokenOr:        "||",
	TokenComma:     ",",
	TokenSemicolon: ";",
	TokenColon:     ":",
	TokenLParen:    "(",
	TokenRParen:    ")",
	TokenLBrace:    "{",
	TokenRBrace:    "}",
	TokenLBracket:  "[",
	TokenRBracket:  "]",
	TokenFunction:  "fn",
	TokenLet:       "let",
	TokenTrue:      "true",
	TokenFalse:     "false",
	TokenIf:        "if",
	TokenElse:      "else",
	TokenReturn:    "return",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// Token represents a lexical token.
type Token struct {
	Type    TokenType
	Literal string   // the raw text (unescaped for strings)
	Pos     Position // start position
}

func (t Token) String() string {
	if t.Type == TokenEOF {
		return "EOF"
	}
	if t.Type == TokenIllegal {
		return fmt.Sprintf("ILLEGAL(%s)", t.Literal)
	}
	if len(t.Literal) > 20 {
		return fmt.Sprintf("%s(%q...)", t.Type, t.Literal[:20])
	}
	return fmt.Sprintf("%s(%q)", t.Type, t.Literal)
}

// keywords maps reserved words to their token types.
var keywords = map[string]TokenType{
	"fn":     TokenFunction,
	"let":    TokenLet,
	"true":   TokenTrue,
	"false":  TokenFalse,
	"if":     TokenIf,
	"else":   TokenElse,
	"return": TokenReturn,
}

// LookupIdent returns the keyword token type for ident, or TokenIdent.
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return TokenIdent
}

// Keywords returns the reserved words, for completion.
func Keywords() []string {
	return []string{"fn", "let", "true", "false", "if", "else", "return"}
}
