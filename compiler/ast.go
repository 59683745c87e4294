package compiler

import (
	"strings"
)

// ---------------------------------------------------------------------------
// AST: Abstract Syntax Tree for Monkey
// ---------------------------------------------------------------------------

// Position represents a source location.
type Position struct {
	Offset int // byte offset
	Line   int // 1-based line number
	Column int // 1-based column number
}

// Span represents a range in source code.
type Span struct {
	Start Position
	End   Position
}

// MakeSpan creates a span from two positions.
func MakeSpan(start, end Position) Span {
	return Span{Start: start, End: end}
}

// Node is the interface implemented by all AST nodes.
type Node interface {
	Span() Span
	String() string
	node() // marker method
}

// Stmt is the interface for statement nodes.
type Stmt interface {
	Node
	stmt() // marker method
}

// Expr is the interface for expression nodes.
type Expr interface {
	Node
	expr() // marker method
}

// Program is the root node: one compile/execution unit.
type Program struct {
	Statements []Stmt
}

func (p *Program) Span() Span {
	if len(p.Statements) == 0 {
		return Span{}
	}
	return MakeSpan(p.Statements[0].Span().Start, p.Statements[len(p.Statements)-1].Span().End)
}
func (p *Program) node() {}

func (p *Program) String() string {
	var sb strings.Builder
	for _, s := range p.Statements {
		sb.WriteString(s.String())
	}
	return sb.String()
}

// ---------------------------------------------------------------------------
// Statement nodes
// ---------------------------------------------------------------------------

// LetStatement binds Name to Value: let x = 5;
type LetStatement struct {
	SpanVal Span
	Name    *Identifier
	Value   Expr
}

func (n *LetStatement) Span() Span { return n.SpanVal }
func (n *LetStatement) node()      {}
func (n *LetStatement) stmt()      {}

func (n *LetStatement) String() string {
	var sb strings.Builder
	sb.WriteString("let ")
	sb.WriteString(n.Name.String())
	sb.WriteString(" = ")
	if n.Value != nil {
		sb.WriteString(n.Value.String())
	}
	sb.WriteString(";")
	return sb.String()
}

// ReturnStatement returns Value from the enclosing function.
type ReturnStatement struct {
	SpanVal Span
	Value   Expr
}

func (n *ReturnStatement) Span() Span { return n.SpanVal }
func (n *ReturnStatement) node()      {}
func (n *ReturnStatement) stmt()      {}

func (n *ReturnStatement) String() string {
	if n.Value == nil {
		return "return;"
	}
	return "return " + n.Value.String() + ";"
}

// ExpressionStatement wraps an expression used as a statement.
type ExpressionStatement struct {
	SpanVal Span
	Expr    Expr
}

func (n *ExpressionStatement) Span() Span { return n.SpanVal }
func (n *ExpressionStatement) node()      {}
func (n *ExpressionStatement) stmt()      {}

func (n *ExpressionStatement) String() string {
	if n.Expr == nil {
		return ""
	}
	return n.Expr.String()
}

// BlockStatement is a braced statement list.
type BlockStatement struct {
	SpanVal    Span
	Statements []Stmt
}

func (n *BlockStatement) Span() Span { return n.SpanVal }
func (n *BlockStatement) node()      {}
func (n *BlockStatement) stmt()      {}

func (n *BlockStatement) String() string {
	var sb strings.Builder
	for _, s := range n.Statements {
		sb.WriteString(s.String())
	}
	return sb.String()
}

// ---------------------------------------------------------------------------
// Expression nodes
// ---------------------------------------------------------------------------

// Identifier represents a variable reference.
type Identifier struct {
	SpanVal Span
	Name    string
}

func (n *Identifier) Span() Span     { return n.SpanVal }
func (n *Identifier) node()          {}
func (n *Identifier) expr()          {}
func (n *Identifier) String() string { return n.Name }

// IntegerLiteral represents an integer literal.
type IntegerLiteral struct {
	SpanVal Span
	Literal string
	Value   int64
}

func (n *IntegerLiteral) Span() Span     { return n.SpanVal }
func (n *IntegerLiteral) node()          {}
func (n *IntegerLiteral) expr()          {}
func (n *IntegerLiteral) String() string { return n.Literal }

// StringLiteral represents a string literal.
type StringLiteral struct {
	SpanVal Span
	Value   string
}

func (n *StringLiteral) Span() Span     { return n.SpanVal }
func (n *StringLiteral) node()          {}
func (n *StringLiteral) expr()          {}
func (n *StringLiteral) String() string { return n.Value }

// Boolean represents true or false.
type Boolean struct {
	SpanVal Span
	Value   bool
}

func (n *Boolean) Span() Span { return n.SpanVal }
func (n *Boolean) node()      {}
func (n *Boolean) expr()      {}

func (n *Boolean) String() string {
	if n.Value {
		return "true"
	}
	return "false"
}

// PrefixExpression is a unary operator applied to Right: !x, -x.
type PrefixExpression struct {
	SpanVal  Span
	Operator string
	Right    Expr
}

func (n *PrefixExpression) Span() Span { return n.SpanVal }
func (n *PrefixExpression) node()      {}
func (n *PrefixExpression) expr()      {}

func (n *PrefixExpression) String() string {
	return "(" + n.Operator + n.Right.String() + ")"
}

// InfixExpression is a binary operator: a + b.
type InfixExpression struct {
	SpanVal  Span
	Left     Expr
	Operator string
	Right    Expr
}

func (n *InfixExpression) Span() Span { return n.SpanVal }
func (n *InfixExpression) node()      {}
func (n *InfixExpression) expr()      {}

func (n *InfixExpression) String() string {
	return "(" + n.Left.String() + " " + n.Operator + " " + n.Right.String() + ")"
}

// IfExpression is if (cond) { ... } else { ... }. Alternative may be nil.
type IfExpression struct {
	SpanVal     Span
	Condition   Expr
	Consequence *BlockStatement
	Alternative *BlockStatement
}

func (n *IfExpression) Span() Span { return n.SpanVal }
func (n *IfExpression) node()      {}
func (n *IfExpression) expr()      {}

func (n *IfExpression) String() string {
	var sb strings.Builder
	sb.WriteString("if")
	sb.WriteString(n.Condition.String())
	sb.WriteString(" ")
	sb.WriteString(n.Consequence.String())
	if n.Alternative != nil {
		sb.WriteString("else ")
		sb.WriteString(n.Alternative.String())
	}
	return sb.String()
}

// FunctionLiteral is fn(params) { body }.
type FunctionLiteral struct {
	SpanVal    Span
	Parameters []*Identifier
	Body       *BlockStatement
	Name       string // set when the literal is the value of a let binding
}

func (n *FunctionLiteral) Span() Span { return n.SpanVal }
func (n *FunctionLiteral) node()      {}
func (n *FunctionLiteral) expr()      {}

func (n *FunctionLiteral) String() string {
	params := make([]string, len(n.Parameters))
	for i, p := range n.Parameters {
		params[i] = p.String()
	}
	var sb strings.Builder
	sb.WriteString("fn")
	if n.Name != "" {
		sb.WriteString("<" + n.Name + ">")
	}
	sb.WriteString("(")
	sb.WriteString(strings.Join(params, ", "))
	sb.WriteString(") ")
	sb.WriteString(n.Body.String())
	return sb.String()
}

// CallExpression applies Function to Arguments.
type CallExpression struct {
	SpanVal   Span
	Function  Expr
	Arguments []Expr
}

func (n *CallExpression) Span() Span { return n.SpanVal }
func (n *CallExpression) node()      {}
func (n *CallExpression) expr()      {}

func (n *CallExpression) String() string {
	return n.Function.String() + "(" + joinExprs(n.Arguments) + ")"
}

// ArrayLiteral is [a, b, c].
type ArrayLiteral struct {
	SpanVal  Span
	Elements []Expr
}

func (n *ArrayLiteral) Span() Span { return n.SpanVal }
func (n *ArrayLiteral) node()      {}
func (n *ArrayLiteral) expr()      {}

func (n *ArrayLiteral) String() string {
	return "[" + joinExprs(n.Elements) + "]"
}

// IndexExpression is left[index].
type IndexExpression struct {
	SpanVal Span
	Left    Expr
	Index   Expr
}

func (n *IndexExpression) Span() Span { return n.SpanVal }
func (n *IndexExpression) node()      {}
func (n *IndexExpression) expr()      {}

func (n *IndexExpression) String() string {
	return "(" + n.Left.String() + "[" + n.Index.String() + "])"
}

func joinExprs(exprs []Expr) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = e.String()
	}
	return strings.Join(parts, ", ")
}

// ---------------------------------------------------------------------------
// Traversal
// ---------------------------------------------------------------------------

// Inspect walks the tree rooted at n in depth-first order, calling f for
// each node. If f returns false the children of that node are skipped.
func Inspect(n Node, f func(Node) bool) {
	if n == nil || !f(n) {
		return
	}
	switch n := n.(type) {
	case *Program:
		for _, s := range n.Statements {
			Inspect(s, f)
		}
	case *BlockStatement:
		for _, s := range n.Statements {
			Inspect(s, f)
		}
	case *LetStatement:
		Inspect(n.Name, f)
		if n.Value != nil {
			Inspect(n.Value, f)
		}
	case *ReturnStatement:
		if n.Value != nil {
			Inspect(n.Value, f)
		}
	case *ExpressionStatement:
		if n.Expr != nil {
			Inspect(n.Expr, f)
		}
	case *PrefixExpression:
		Inspect(n.Right, f)
	case *InfixExpression:
		Inspect(n.Left, f)
		Inspect(n.Right, f)
	case *IfExpression:
		Inspect(n.Condition, f)
		Inspect(n.Consequence, f)
		if n.Alternative != nil {
			Inspect(n.Alternative, f)
		}
	case *FunctionLiteral:
		for _, p := range n.Parameters {
			Inspect(p, f)
		}
		Inspect(n.Body, f)
	case *CallExpression:
		Inspect(n.Function, f)
		for _, a := range n.Arguments {
			Inspect(a, f)
		}
	case *ArrayLiteral:
		for _, e := range n.Elements {
			Inspect(e, f)
		}
	case *IndexExpression:
		Inspect(n.Left, f)
		Inspect(n.Index, f)
	}
}
