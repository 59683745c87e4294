package compiler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/chazu/monkey/vm"
)

// ---------------------------------------------------------------------------
// Parser: Pratt parser for Monkey syntax
// ---------------------------------------------------------------------------

// Operator precedences, lowest first.
const (
	precLowest int = iota
	precOr         // ||
	precAnd        // &&
	precEquals     // ==
	precLessGreater
	precSum
	precProduct
	precPrefix // -x or !x
	precCall   // fn(x)
	precIndex  // array[index]
)

var precedences = map[TokenType]int{
	TokenOr:       precOr,
	TokenAnd:      precAnd,
	TokenEq:       precEquals,
	TokenNotEq:    precEquals,
	TokenLT:       precLessGreater,
	TokenGT:       precLessGreater,
	TokenPlus:     precSum,
	TokenMinus:    precSum,
	TokenAsterisk: precProduct,
	TokenSlash:    precProduct,
	TokenPercent:  precProduct,
	TokenLParen:   precCall,
	TokenLBracket: precIndex,
}

type (
	prefixParseFn func() Expr
	infixParseFn  func(Expr) Expr
)

// ParseError is a single syntax error with its source position.
type ParseError struct {
	Pos     Position
	Message string
}

func (e ParseError) String() string {
	return fmt.Sprintf("line %d, column %d: %s", e.Pos.Line, e.Pos.Column, e.Message)
}

// Parser parses Monkey source code into an AST.
type Parser struct {
	lexer     *Lexer
	curToken  Token
	peekToken Token
	errors    []ParseError
	atEOF     bool // an error was reported because input ran out

	prefixParseFns map[TokenType]prefixParseFn
	infixParseFns  map[TokenType]infixParseFn
}

// NewParser creates a new parser for the given input.
func NewParser(input string) *Parser {
	p := &Parser{
		lexer: NewLexer(input),
	}

	p.prefixParseFns = map[TokenType]prefixParseFn{
		TokenIdent:    p.parseIdentifier,
		TokenInt:      p.parseIntegerLiteral,
		TokenString:   p.parseStringLiteral,
		TokenTrue:     p.parseBoolean,
		TokenFalse:    p.parseBoolean,
		TokenBang:     p.parsePrefixExpression,
		TokenMinus:    p.parsePrefixExpression,
		TokenLParen:   p.parseGroupedExpression,
		TokenIf:       p.parseIfExpression,
		TokenFunction: p.parseFunctionLiteral,
		TokenLBracket: p.parseArrayLiteral,
	}

	p.infixParseFns = make(map[TokenType]infixParseFn)
	for _, t := range []TokenType{
		TokenPlus, TokenMinus, TokenAsterisk, TokenSlash, TokenPercent,
		TokenEq, TokenNotEq, TokenLT, TokenGT, TokenAnd, TokenOr,
	} {
		p.infixParseFns[t] = p.parseInfixExpression
	}
	p.infixParseFns[TokenLParen] = p.parseCallExpression
	p.infixParseFns[TokenLBracket] = p.parseIndexExpression

	// Read two tokens to fill curToken and peekToken
	p.nextToken()
	p.nextToken()
	return p
}

// nextToken advances to the next token.
func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.lexer.NextToken()
}

// curTokenIs checks if the current token is of the given type.
func (p *Parser) curTokenIs(t TokenType) bool {
	return p.curToken.Type == t
}

// peekTokenIs checks if the peek token is of the given type.
func (p *Parser) peekTokenIs(t TokenType) bool {
	return p.peekToken.Type == t
}

// expectPeek advances if the peek token matches, otherwise records an error.
func (p *Parser) expectPeek(t TokenType) bool {
	if p.peekTokenIs(t) {
		p.nextToken()
		return true
	}
	p.peekError(t)
	return false
}

func (p *Parser) peekError(t TokenType) {
	if p.peekToken.Type == TokenIllegal {
		p.errorAt(p.peekToken.Pos, "%s", p.peekToken.Literal)
		return
	}
	if p.peekToken.Type == TokenEOF {
		p.atEOF = true
	}
	p.errorAt(p.peekToken.Pos, "expected next token to be %s, got %s instead", t, p.peekToken.Type)
}

// errorAt records a parse error.
func (p *Parser) errorAt(pos Position, format string, args ...interface{}) {
	p.errors = append(p.errors, ParseError{Pos: pos, Message: fmt.Sprintf(format, args...)})
}

// Errors returns accumulated parse errors as "line L, column C: msg" strings.
func (p *Parser) Errors() []string {
	msgs := make([]string, len(p.errors))
	for i, e := range p.errors {
		msgs[i] = e.String()
	}
	return msgs
}

// ParseErrors returns accumulated parse errors with their positions.
func (p *Parser) ParseErrors() []ParseError {
	return p.errors
}

// Incomplete reports whether parsing failed only because the input ended
// early, e.g. an unclosed brace. The REPL keeps reading in that case.
func (p *Parser) Incomplete() bool {
	return p.atEOF
}

// ---------------------------------------------------------------------------
// Top-level parsing
// ---------------------------------------------------------------------------

// ParseProgram parses the whole input.
func (p *Parser) ParseProgram() *Program {
	program := &Program{}

	for !p.curTokenIs(TokenEOF) {
		if stmt := p.parseStatement(); stmt != nil {
			program.Statements = append(program.Statements, stmt)
		}
		p.nextToken()
	}

	return program
}

// Parse parses input and returns a SyntaxError positioned at the first parse
// error. Later errors are appended to the message with their positions.
func Parse(input string) (*Program, error) {
	p := NewParser(input)
	program := p.ParseProgram()
	if errs := p.ParseErrors(); len(errs) > 0 {
		msg := errs[0].Message
		if len(errs) > 1 {
			msg += "; " + strings.Join(p.Errors()[1:], "; ")
		}
		return nil, vm.Errorf(vm.SyntaxError, "%s", msg).At(errs[0].Pos.Line, errs[0].Pos.Column)
	}
	return program, nil
}

func (p *Parser) parseStatement() Stmt {
	switch p.curToken.Type {
	case TokenLet:
		return p.parseLetStatement()
	case TokenReturn:
		return p.parseReturnStatement()
	case TokenSemicolon:
		return nil
	default:
		return p.parseExpressionStatement()
	}
}

func (p *Parser) parseLetStatement() Stmt {
	start := p.curToken.Pos

	if !p.expectPeek(TokenIdent) {
		return nil
	}
	name := &Identifier{SpanVal: p.tokenSpan(p.curToken), Name: p.curToken.Literal}

	if !p.expectPeek(TokenAssign) {
		return nil
	}
	p.nextToken()

	value := p.parseExpression(precLowest)
	if value == nil {
		return nil
	}
	if fn, ok := value.(*FunctionLiteral); ok {
		fn.Name = name.Name
	}

	if p.peekTokenIs(TokenSemicolon) {
		p.nextToken()
	}

	return &LetStatement{SpanVal: MakeSpan(start, p.curToken.Pos), Name: name, Value: value}
}

func (p *Parser) parseReturnStatement() Stmt {
	start := p.curToken.Pos

	if p.peekTokenIs(TokenSemicolon) || p.peekTokenIs(TokenRBrace) || p.peekTokenIs(TokenEOF) {
		if p.peekTokenIs(TokenSemicolon) {
			p.nextToken()
		}
		return &ReturnStatement{SpanVal: MakeSpan(start, p.curToken.Pos)}
	}

	p.nextToken()
	value := p.parseExpression(precLowest)
	if value == nil {
		return nil
	}

	if p.peekTokenIs(TokenSemicolon) {
		p.nextToken()
	}

	return &ReturnStatement{SpanVal: MakeSpan(start, p.curToken.Pos), Value: value}
}

func (p *Parser) parseExpressionStatement() Stmt {
	start := p.curToken.Pos

	expr := p.parseExpression(precLowest)
	if expr == nil {
		return nil
	}

	if p.peekTokenIs(TokenSemicolon) {
		p.nextToken()
	}

	return &ExpressionStatement{SpanVal: MakeSpan(start, p.curToken.Pos), Expr: expr}
}

func (p *Parser) parseBlockStatement() *BlockStatement {
	block := &BlockStatement{SpanVal: Span{Start: p.curToken.Pos}}
	p.nextToken()

	for !p.curTokenIs(TokenRBrace) && !p.curTokenIs(TokenEOF) {
		if stmt := p.parseStatement(); stmt != nil {
			block.Statements = append(block.Statements, stmt)
		}
		p.nextToken()
	}

	if p.curTokenIs(TokenEOF) {
		p.atEOF = true
		p.errorAt(p.curToken.Pos, "expected }, got EOF")
	}

	block.SpanVal.End = p.curToken.Pos
	return block
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (p *Parser) parseExpression(precedence int) Expr {
	prefix := p.prefixParseFns[p.curToken.Type]
	if prefix == nil {
		p.noPrefixParseFnError(p.curToken)
		return nil
	}
	left := prefix()
	if left == nil {
		return nil
	}

	for !p.peekTokenIs(TokenSemicolon) && precedence < p.peekPrecedence() {
		infix := p.infixParseFns[p.peekToken.Type]
		if infix == nil {
			return left
		}
		p.nextToken()
		left = infix(left)
		if left == nil {
			return nil
		}
	}

	return left
}

func (p *Parser) noPrefixParseFnError(tok Token) {
	switch tok.Type {
	case TokenIllegal:
		p.errorAt(tok.Pos, "%s", tok.Literal)
	case TokenEOF:
		p.atEOF = true
		p.errorAt(tok.Pos, "unexpected end of input")
	default:
		p.errorAt(tok.Pos, "no prefix parse function for %s found", tok.Type)
	}
}

func (p *Parser) peekPrecedence() int {
	if prec, ok := precedences[p.peekToken.Type]; ok {
		return prec
	}
	return precLowest
}

func (p *Parser) curPrecedence() int {
	if prec, ok := precedences[p.curToken.Type]; ok {
		return prec
	}
	return precLowest
}

// tokenSpan returns the span covered by a single token.
func (p *Parser) tokenSpan(tok Token) Span {
	end := tok.Pos
	end.Offset += len(tok.Literal)
	end.Column += len(tok.Literal)
	return MakeSpan(tok.Pos, end)
}

func (p *Parser) parseIdentifier() Expr {
	return &Identifier{SpanVal: p.tokenSpan(p.curToken), Name: p.curToken.Literal}
}

func (p *Parser) parseIntegerLiteral() Expr {
	value, err := strconv.ParseInt(p.curToken.Literal, 10, 64)
	if err != nil {
		p.errorAt(p.curToken.Pos, "could not parse %q as integer", p.curToken.Literal)
		return nil
	}
	return &IntegerLiteral{SpanVal: p.tokenSpan(p.curToken), Literal: p.curToken.Literal, Value: value}
}

func (p *Parser) parseStringLiteral() Expr {
	return &StringLiteral{SpanVal: p.tokenSpan(p.curToken), Value: p.curToken.Literal}
}

func (p *Parser) parseBoolean() Expr {
	return &Boolean{SpanVal: p.tokenSpan(p.curToken), Value: p.curTokenIs(TokenTrue)}
}

func (p *Parser) parsePrefixExpression() Expr {
	start := p.curToken.Pos
	operator := p.curToken.Literal

	p.nextToken()
	right := p.parseExpression(precPrefix)
	if right == nil {
		return nil
	}

	return &PrefixExpression{SpanVal: MakeSpan(start, right.Span().End), Operator: operator, Right: right}
}

func (p *Parser) parseInfixExpression(left Expr) Expr {
	operator := p.curToken.Literal
	precedence := p.curPrecedence()

	p.nextToken()
	right := p.parseExpression(precedence)
	if right == nil {
		return nil
	}

	return &InfixExpression{
		SpanVal:  MakeSpan(left.Span().Start, right.Span().End),
		Left:     left,
		Operator: operator,
		Right:    right,
	}
}

func (p *Parser) parseGroupedExpression() Expr {
	p.nextToken()

	expr := p.parseExpression(precLowest)
	if expr == nil {
		return nil
	}
	if !p.expectPeek(TokenRParen) {
		return nil
	}
	return expr
}

func (p *Parser) parseIfExpression() Expr {
	start := p.curToken.Pos

	if !p.expectPeek(TokenLParen) {
		return nil
	}
	p.nextToken()
	condition := p.parseExpression(precLowest)
	if condition == nil {
		return nil
	}

	if !p.expectPeek(TokenRParen) {
		return nil
	}
	if !p.expectPeek(TokenLBrace) {
		return nil
	}
	consequence := p.parseBlockStatement()

	expr := &IfExpression{Condition: condition, Consequence: consequence}

	if p.peekTokenIs(TokenElse) {
		p.nextToken()
		if !p.expectPeek(TokenLBrace) {
			return nil
		}
		expr.Alternative = p.parseBlockStatement()
	}

	expr.SpanVal = MakeSpan(start, p.curToken.Pos)
	return expr
}

func (p *Parser) parseFunctionLiteral() Expr {
	start := p.curToken.Pos

	if !p.expectPeek(TokenLParen) {
		return nil
	}
	params, ok := p.parseFunctionParameters()
	if !ok {
		return nil
	}

	if !p.expectPeek(TokenLBrace) {
		return nil
	}
	body := p.parseBlockStatement()

	return &FunctionLiteral{SpanVal: MakeSpan(start, p.curToken.Pos), Parameters: params, Body: body}
}

func (p *Parser) parseFunctionParameters() ([]*Identifier, bool) {
	var params []*Identifier

	if p.peekTokenIs(TokenRParen) {
		p.nextToken()
		return params, true
	}

	if !p.expectPeek(TokenIdent) {
		return nil, false
	}
	params = append(params, &Identifier{SpanVal: p.tokenSpan(p.curToken), Name: p.curToken.Literal})

	for p.peekTokenIs(TokenComma) {
		p.nextToken()
		if !p.expectPeek(TokenIdent) {
			return nil, false
		}
		params = append(params, &Identifier{SpanVal: p.tokenSpan(p.curToken), Name: p.curToken.Literal})
	}

	if !p.expectPeek(TokenRParen) {
		return nil, false
	}
	return params, true
}

func (p *Parser) parseCallExpression(function Expr) Expr {
	args, ok := p.parseExpressionList(TokenRParen)
	if !ok {
		return nil
	}
	return &CallExpression{
		SpanVal:   MakeSpan(function.Span().Start, p.curToken.Pos),
		Function:  function,
		Arguments: args,
	}
}

func (p *Parser) parseArrayLiteral() Expr {
	start := p.curToken.Pos
	elems, ok := p.parseExpressionList(TokenRBracket)
	if !ok {
		return nil
	}
	return &ArrayLiteral{SpanVal: MakeSpan(start, p.curToken.Pos), Elements: elems}
}

func (p *Parser) parseIndexExpression(left Expr) Expr {
	p.nextToken()
	index := p.parseExpression(precLowest)
	if index == nil {
		return nil
	}
	if !p.expectPeek(TokenRBracket) {
		return nil
	}
	return &IndexExpression{SpanVal: MakeSpan(left.Span().Start, p.curToken.Pos), Left: left, Index: index}
}

// parseExpressionList parses a comma-separated list up to end.
func (p *Parser) parseExpressionList(end TokenType) ([]Expr, bool) {
	var list []Expr

	if p.peekTokenIs(end) {
		p.nextToken()
		return list, true
	}

	p.nextToken()
	expr := p.parseExpression(precLowest)
	if expr == nil {
		return nil, false
	}
	list = append(list, expr)

	for p.peekTokenIs(TokenComma) {
		p.nextToken()
		p.nextToken()
		expr := p.parseExpression(precLowest)
		if expr == nil {
			return nil, false
		}
		list = append(list, expr)
	}

	if !p.expectPeek(end) {
		return nil, false
	}
	return list, true
}
