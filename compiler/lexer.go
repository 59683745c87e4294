package compiler

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Lexer: Tokenizer for Monkey syntax
// ---------------------------------------------------------------------------

// Lexer tokenizes Monkey source code. It is lazy and finite: once the input
// is exhausted every further call to NextToken returns EOF.
type Lexer struct {
	input     string
	pos       int  // current position in input
	readPos   int  // reading position (after current char)
	ch        rune // current character
	line      int  // current line (1-based)
	col       int  // current column (1-based)
	lineStart int  // offset of current line start
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{
		input: input,
		line:  1,
		col:   0,
	}
	l.readChar()
	return l
}

// readChar reads the next character.
func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.col = 0
		l.lineStart = l.readPos
	}
	if l.readPos >= len(l.input) {
		l.ch = 0 // EOF
		l.pos = l.readPos
		l.col++
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.readPos:])
	l.ch = r
	l.pos = l.readPos
	l.readPos += size
	l.col++
}

// peekChar returns the next character without consuming it.
func (l *Lexer) peekChar() rune {
	if l.readPos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPos:])
	return r
}

// position returns the current position.
func (l *Lexer) position() Position {
	return Position{
		Offset: l.pos,
		Line:   l.line,
		Column: l.col,
	}
}

// NextToken returns the next token.
func (l *Lexer) NextToken() Token {
	l.skipWhitespaceAndComments()

	pos := l.position()

	switch {
	case l.ch == 0 && l.pos >= len(l.input):
		return Token{Type: TokenEOF, Literal: "", Pos: pos}

	case l.ch == '=':
		if l.peekChar() == '=' {
			return l.twoChar(TokenEq, pos)
		}
		return l.oneChar(TokenAssign, pos)

	case l.ch == '!':
		if l.peekChar() == '=' {
			return l.twoChar(TokenNotEq, pos)
		}
		return l.oneChar(TokenBang, pos)

	case l.ch == '&' && l.peekChar() == '&':
		return l.twoChar(TokenAnd, pos)

	case l.ch == '|' && l.peekChar() == '|':
		return l.twoChar(TokenOr, pos)

	case l.ch == '+':
		return l.oneChar(TokenPlus, pos)
	case l.ch == '-':
		return l.oneChar(TokenMinus, pos)
	case l.ch == '*':
		return l.oneChar(TokenAsterisk, pos)
	case l.ch == '/':
		return l.oneChar(TokenSlash, pos)
	case l.ch == '%':
		return l.oneChar(TokenPercent, pos)
	case l.ch == '<':
		return l.oneChar(TokenLT, pos)
	case l.ch == '>':
		return l.oneChar(TokenGT, pos)
	case l.ch == ',':
		return l.oneChar(TokenComma, pos)
	case l.ch == ';':
		return l.oneChar(TokenSemicolon, pos)
	case l.ch == ':':
		return l.oneChar(TokenColon, pos)
	case l.ch == '(':
		return l.oneChar(TokenLParen, pos)
	case l.ch == ')':
		return l.oneChar(TokenRParen, pos)
	case l.ch == '{':
		return l.oneChar(TokenLBrace, pos)
	case l.ch == '}':
		return l.oneChar(TokenRBrace, pos)
	case l.ch == '[':
		return l.oneChar(TokenLBracket, pos)
	case l.ch == ']':
		return l.oneChar(TokenRBracket, pos)

	case l.ch == '"':
		return l.readString(pos)

	case isDigit(l.ch):
		return l.readNumber(pos)

	case isLetter(l.ch):
		return l.readIdentifier(pos)

	default:
		ch := l.ch
		l.readChar()
		return Token{Type: TokenIllegal, Literal: fmt.Sprintf("unexpected character: %q", ch), Pos: pos}
	}
}

func (l *Lexer) oneChar(t TokenType, pos Position) Token {
	lit := string(l.ch)
	l.readChar()
	return Token{Type: t, Literal: lit, Pos: pos}
}

func (l *Lexer) twoChar(t TokenType, pos Position) Token {
	first := l.ch
	l.readChar()
	lit := string(first) + string(l.ch)
	l.readChar()
	return Token{Type: t, Literal: lit, Pos: pos}
}

// skipWhitespaceAndComments skips whitespace and // line comments.
func (l *Lexer) skipWhitespaceAndComments() {
	for {
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
			l.readChar()
		}

		if l.ch == '/' && l.peekChar() == '/' {
			for l.ch != '\n' && !l.atEOF() {
				l.readChar()
			}
			continue
		}

		break
	}
}

func (l *Lexer) atEOF() bool {
	return l.ch == 0 && l.pos >= len(l.input)
}

// readIdentifier reads an identifier or keyword.
func (l *Lexer) readIdentifier(pos Position) Token {
	start := l.pos
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	lit := l.input[start:l.pos]
	return Token{Type: LookupIdent(lit), Literal: lit, Pos: pos}
}

// readNumber reads a decimal integer literal.
func (l *Lexer) readNumber(pos Position) Token {
	start := l.pos
	for isDigit(l.ch) {
		l.readChar()
	}
	return Token{Type: TokenInt, Literal: l.input[start:l.pos], Pos: pos}
}

// readString reads a double-quoted string literal, resolving escapes.
func (l *Lexer) readString(pos Position) Token {
	l.readChar() // consume opening quote

	var sb strings.Builder
	for {
		if l.atEOF() {
			return Token{Type: TokenIllegal, Literal: "unterminated string", Pos: pos}
		}
		if l.ch == '"' {
			l.readChar()
			break
		}
		if l.ch == '\\' {
			l.readChar()
			switch l.ch {
			case 'n':
				sb.WriteRune('\n')
			case 't':
				sb.WriteRune('\t')
			case 'r':
				sb.WriteRune('\r')
			case '"':
				sb.WriteRune('"')
			case '\\':
				sb.WriteRune('\\')
			default:
				if l.atEOF() {
					return Token{Type: TokenIllegal, Literal: "unterminated string", Pos: pos}
				}
				sb.WriteRune('\\')
				sb.WriteRune(l.ch)
			}
			l.readChar()
			continue
		}
		sb.WriteRune(l.ch)
		l.readChar()
	}

	return Token{Type: TokenString, Literal: sb.String(), Pos: pos}
}

// Tokenize returns all tokens up to and including EOF.
func Tokenize(input string) []Token {
	l := NewLexer(input)
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			return tokens
		}
	}
}

func isLetter(ch rune) bool {
	return ch == '_' || unicode.IsLetter(ch)
}

func isDigit(ch rune) bool {
	return '0' <= ch && ch <= '9'
}
