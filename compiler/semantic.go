package compiler

import (
	"fmt"
	"sort"

	"github.com/chazu/monkey/vm"
)

// ---------------------------------------------------------------------------
// Semantic Analyzer: Pre-codegen name checks for editors
// ---------------------------------------------------------------------------

// Severity of a semantic diagnostic.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	if s == SeverityWarning {
		return "warning"
	}
	return "error"
}

// Diagnostic is a positioned problem found in source.
type Diagnostic struct {
	Span     Span
	Severity Severity
	Message  string
}

func (d Diagnostic) String() string {
	pos := d.Span.Start
	if d.Severity == SeverityWarning {
		return fmt.Sprintf("warning: line %d, column %d: %s", pos.Line, pos.Column, d.Message)
	}
	return fmt.Sprintf("line %d, column %d: %s", pos.Line, pos.Column, d.Message)
}

// BindingKind says where a name was introduced.
type BindingKind int

const (
	BindingGlobal BindingKind = iota
	BindingLocal
	BindingParameter
)

var bindingKindNames = map[BindingKind]string{
	BindingGlobal:    "global",
	BindingLocal:     "local",
	BindingParameter: "parameter",
}

func (k BindingKind) String() string {
	return bindingKindNames[k]
}

// Binding is a name introduced by let or a parameter list.
type Binding struct {
	Name string
	Kind BindingKind
	Span Span
}

// SemanticAnalyzer checks that every identifier resolves, mirroring the
// bytecode compiler's scoping: let defines its name after its value is
// compiled, and a let-bound function literal can see its own name.
type SemanticAnalyzer struct {
	diagnostics []Diagnostic
	bindings    []Binding

	// Names always defined (builtins, globals from earlier units)
	knownGlobals map[string]bool

	globals map[string]bool
	scopes  []map[string]bool // function scopes, innermost last
}

// NewSemanticAnalyzer creates a new semantic analyzer. Built-in functions
// and the names in known are treated as already defined.
func NewSemanticAnalyzer(known ...string) *SemanticAnalyzer {
	s := &SemanticAnalyzer{
		knownGlobals: make(map[string]bool),
		globals:      make(map[string]bool),
	}
	for _, b := range vm.Builtins {
		s.knownGlobals[b.Name] = true
	}
	for _, name := range known {
		s.knownGlobals[name] = true
	}
	return s
}

// AddKnownGlobal adds a global to the known globals set.
func (s *SemanticAnalyzer) AddKnownGlobal(name string) {
	s.knownGlobals[name] = true
}

// Diagnostics returns accumulated findings.
func (s *SemanticAnalyzer) Diagnostics() []Diagnostic {
	return s.diagnostics
}

// Bindings returns every binding seen, in source order.
func (s *SemanticAnalyzer) Bindings() []Binding {
	out := make([]Binding, len(s.bindings))
	copy(out, s.bindings)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Span.Start.Offset < out[j].Span.Start.Offset
	})
	return out
}

func (s *SemanticAnalyzer) errorAt(node Node, format string, args ...interface{}) {
	s.diagnostics = append(s.diagnostics, Diagnostic{
		Span:     node.Span(),
		Severity: SeverityError,
		Message:  fmt.Sprintf(format, args...),
	})
}

func (s *SemanticAnalyzer) warnAt(node Node, format string, args ...interface{}) {
	s.diagnostics = append(s.diagnostics, Diagnostic{
		Span:     node.Span(),
		Severity: SeverityWarning,
		Message:  fmt.Sprintf(format, args...),
	})
}

// AnalyzeProgram analyzes a whole program at the global level.
func (s *SemanticAnalyzer) AnalyzeProgram(program *Program) {
	s.analyzeStatements(program.Statements)
}

func (s *SemanticAnalyzer) define(name string, kind BindingKind, span Span) {
	if len(s.scopes) == 0 {
		s.globals[name] = true
	} else {
		s.scopes[len(s.scopes)-1][name] = true
	}
	s.bindings = append(s.bindings, Binding{Name: name, Kind: kind, Span: span})
}

func (s *SemanticAnalyzer) analyzeStatements(stmts []Stmt) {
	for _, stmt := range stmts {
		s.analyzeStmt(stmt)
	}
	s.checkUnreachableCode(stmts)
}

func (s *SemanticAnalyzer) analyzeStmt(stmt Stmt) {
	switch st := stmt.(type) {
	case *LetStatement:
		kind := BindingGlobal
		if len(s.scopes) > 0 {
			kind = BindingLocal
		}
		s.analyzeExpr(st.Value)
		s.define(st.Name.Name, kind, st.Name.Span())
	case *ReturnStatement:
		if st.Value != nil {
			s.analyzeExpr(st.Value)
		}
	case *ExpressionStatement:
		s.analyzeExpr(st.Expr)
	case *BlockStatement:
		s.analyzeStatements(st.Statements)
	}
}

func (s *SemanticAnalyzer) analyzeExpr(expr Expr) {
	switch e := expr.(type) {
	case *Identifier:
		s.checkIdentifierDefined(e)
	case *PrefixExpression:
		s.analyzeExpr(e.Right)
	case *InfixExpression:
		s.analyzeExpr(e.Left)
		s.analyzeExpr(e.Right)
	case *IfExpression:
		s.analyzeExpr(e.Condition)
		s.analyzeStatements(e.Consequence.Statements)
		if e.Alternative != nil {
			s.analyzeStatements(e.Alternative.Statements)
		}
	case *FunctionLiteral:
		s.analyzeFunction(e)
	case *CallExpression:
		s.analyzeExpr(e.Function)
		for _, arg := range e.Arguments {
			s.analyzeExpr(arg)
		}
	case *ArrayLiteral:
		for _, elem := range e.Elements {
			s.analyzeExpr(elem)
		}
	case *IndexExpression:
		s.analyzeExpr(e.Left)
		s.analyzeExpr(e.Index)
	// Literals don't need checking
	case *IntegerLiteral, *StringLiteral, *Boolean:
	}
}

func (s *SemanticAnalyzer) analyzeFunction(fn *FunctionLiteral) {
	s.scopes = append(s.scopes, make(map[string]bool))

	if fn.Name != "" {
		s.scopes[len(s.scopes)-1][fn.Name] = true
	}
	for _, param := range fn.Parameters {
		s.define(param.Name, BindingParameter, param.Span())
	}

	s.analyzeStatements(fn.Body.Statements)

	s.scopes = s.scopes[:len(s.scopes)-1]
}

func (s *SemanticAnalyzer) checkIdentifierDefined(id *Identifier) {
	name := id.Name

	for i := len(s.scopes) - 1; i >= 0; i-- {
		if s.scopes[i][name] {
			return
		}
	}
	if s.globals[name] || s.knownGlobals[name] {
		return
	}

	s.errorAt(id, "identifier not found: %s", name)
}

// checkUnreachableCode warns about statements after a return.
func (s *SemanticAnalyzer) checkUnreachableCode(stmts []Stmt) {
	for i, stmt := range stmts {
		if _, isReturn := stmt.(*ReturnStatement); isReturn && i < len(stmts)-1 {
			s.warnAt(stmts[i+1], "unreachable code after return")
			return
		}
	}
}

// ---------------------------------------------------------------------------
// Convenience entry point
// ---------------------------------------------------------------------------

// Analyze runs semantic analysis over program and returns its diagnostics.
func Analyze(program *Program, known ...string) []Diagnostic {
	analyzer := NewSemanticAnalyzer(known...)
	analyzer.AnalyzeProgram(program)
	return analyzer.Diagnostics()
}
