// Package evaluator runs Monkey programs by walking the AST directly.
//
// It shares operator semantics, truthiness and the built-in table with the
// bytecode VM, so for programs that do not capture enclosing locals the two
// engines produce identical results. It serves as the reference engine for
// differential testing and as the -engine eval mode of the CLI.
package evaluator

import (
	"context"
	"io"

	"github.com/tliron/commonlog"

	"github.com/chazu/monkey/compiler"
	"github.com/chazu/monkey/vm"
)

const (
	// DefaultMaxDepth matches the VM's default frame limit.
	DefaultMaxDepth    = 1024
	contextCheckPeriod = 1024
)

// Function is a function value closed over its defining environment.
type Function struct {
	Parameters []*compiler.Identifier
	Body       *compiler.BlockStatement
	Env        *Environment
	Name       string
}

func (f *Function) Type() vm.Type    { return vm.FunctionType }
func (f *Function) Inspect() string { return "function" }

// returnValue carries a return statement's value up to the enclosing call.
type returnValue struct {
	value vm.Value
}

func (r *returnValue) Type() vm.Type    { return "RETURN_VALUE" }
func (r *returnValue) Inspect() string { return r.value.Inspect() }

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithOutput sets the writer used by puts.
func WithOutput(w io.Writer) Option {
	return func(e *Evaluator) { e.out = w }
}

// WithMaxDepth bounds the call depth.
func WithMaxDepth(n int) Option {
	return func(e *Evaluator) {
		if n > 0 {
			e.maxDepth = n
		}
	}
}

// WithMaxSteps bounds the number of evaluated nodes. Zero means unlimited.
func WithMaxSteps(n int64) Option {
	return func(e *Evaluator) { e.maxSteps = n }
}

// WithLogger sets the logger. Calls are traced at debug level.
func WithLogger(log commonlog.Logger) Option {
	return func(e *Evaluator) { e.log = log }
}

// Evaluator walks ASTs. It is not safe for concurrent use.
type Evaluator struct {
	out      io.Writer
	log      commonlog.Logger
	trace    bool
	maxDepth int
	maxSteps int64

	depth int
	steps int64
	ctx   context.Context
}

// New creates an Evaluator.
func New(opts ...Option) *Evaluator {
	e := &Evaluator{
		out:      io.Discard,
		log:      commonlog.GetLogger("monkey.evaluator"),
		maxDepth: DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.trace = e.log.AllowLevel(commonlog.Debug)
	return e
}

// Eval evaluates node in env. For a *compiler.Program the result is the
// value of the final expression statement, or of a top-level return; a
// program that ends in a let binding yields a nil Value. Every failure is a
// *vm.Error. Bindings made before a fault stay in env.
func (e *Evaluator) Eval(ctx context.Context, node compiler.Node, env *Environment) (result vm.Value, err error) {
	e.ctx = ctx
	e.steps = 0
	e.depth = 0

	defer func() {
		if r := recover(); r != nil {
			e.log.Error("evaluator panic", "panic", r)
			result, err = nil, vm.Errorf(vm.InternalError, "evaluator panic: %v", r)
		}
	}()

	if program, ok := node.(*compiler.Program); ok {
		return e.evalProgram(program, env)
	}
	result, err = e.eval(node, env)
	if rv, ok := result.(*returnValue); ok {
		result = rv.value
	}
	return result, err
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (e *Evaluator) evalProgram(program *compiler.Program, env *Environment) (vm.Value, error) {
	var result vm.Value
	for _, stmt := range program.Statements {
		v, err := e.eval(stmt, env)
		if err != nil {
			return nil, err
		}
		if rv, ok := v.(*returnValue); ok {
			return rv.value, nil
		}
		if _, isLet := stmt.(*compiler.LetStatement); isLet {
			result = nil
		} else {
			result = v
		}
	}
	return result, nil
}

// evalBlock yields the value of the final statement. An empty block, or one
// ending in a let binding, yields Nil.
func (e *Evaluator) evalBlock(block *compiler.BlockStatement, env *Environment) (vm.Value, error) {
	var result vm.Value = vm.Nil
	for _, stmt := range block.Statements {
		v, err := e.eval(stmt, env)
		if err != nil {
			return nil, err
		}
		if _, ok := v.(*returnValue); ok {
			return v, nil
		}
		result = v
	}
	return result, nil
}

// ---------------------------------------------------------------------------
// Dispatch
// ---------------------------------------------------------------------------

func (e *Evaluator) eval(node compiler.Node, env *Environment) (vm.Value, error) {
	if err := e.step(); err != nil {
		return nil, positioned(err, node)
	}

	switch node := node.(type) {
	// ============ Statements ============
	case *compiler.Program:
		return e.evalProgram(node, env)

	case *compiler.BlockStatement:
		return e.evalBlock(node, env)

	case *compiler.ExpressionStatement:
		return e.eval(node.Expr, env)

	case *compiler.LetStatement:
		val, err := e.eval(node.Value, env)
		if err != nil {
			return nil, err
		}
		env.Set(node.Name.Name, val)
		return vm.Nil, nil

	case *compiler.ReturnStatement:
		if node.Value == nil {
			return &returnValue{value: vm.Nil}, nil
		}
		val, err := e.eval(node.Value, env)
		if err != nil {
			return nil, err
		}
		return &returnValue{value: val}, nil

	// ============ Literals ============
	case *compiler.IntegerLiteral:
		return &vm.Integer{Value: node.Value}, nil

	case *compiler.StringLiteral:
		return &vm.String{Value: node.Value}, nil

	case *compiler.Boolean:
		return vm.NativeBool(node.Value), nil

	case *compiler.ArrayLiteral:
		elements, err := e.evalExpressions(node.Elements, env)
		if err != nil {
			return nil, err
		}
		return vm.NewArray(elements), nil

	case *compiler.FunctionLiteral:
		return &Function{Parameters: node.Parameters, Body: node.Body, Env: env, Name: node.Name}, nil

	// ============ Names ============
	case *compiler.Identifier:
		return e.evalIdentifier(node, env)

	// ============ Operators ============
	case *compiler.PrefixExpression:
		right, err := e.eval(node.Right, env)
		if err != nil {
			return nil, err
		}
		result, err := vm.Prefix(node.Operator, right)
		return result, positioned(err, node)

	case *compiler.InfixExpression:
		left, err := e.eval(node.Left, env)
		if err != nil {
			return nil, err
		}
		right, err := e.eval(node.Right, env)
		if err != nil {
			return nil, err
		}
		result, err := vm.Infix(node.Operator, left, right)
		return result, positioned(err, node)

	case *compiler.IndexExpression:
		left, err := e.eval(node.Left, env)
		if err != nil {
			return nil, err
		}
		index, err := e.eval(node.Index, env)
		if err != nil {
			return nil, err
		}
		result, err := vm.Index(left, index)
		return result, positioned(err, node)

	// ============ Control Flow ============
	case *compiler.IfExpression:
		cond, err := e.eval(node.Condition, env)
		if err != nil {
			return nil, err
		}
		if vm.IsTruthy(cond) {
			result, err := e.evalBlock(node.Consequence, env)
			if err == nil {
				declareSkipped(node.Alternative, env)
			}
			return result, err
		}
		declareSkipped(node.Consequence, env)
		if node.Alternative != nil {
			return e.evalBlock(node.Alternative, env)
		}
		return vm.Nil, nil

	case *compiler.CallExpression:
		fn, err := e.eval(node.Function, env)
		if err != nil {
			return nil, err
		}
		args, err := e.evalExpressions(node.Arguments, env)
		if err != nil {
			return nil, err
		}
		result, err := e.apply(fn, args)
		return result, positioned(err, node)
	}

	return nil, vm.Errorf(vm.InternalError, "cannot evaluate %T", node)
}

// declareSkipped declares the let names of an arm that did not run, so
// later reads see Null. At the top level a name that is already bound keeps
// its value; inside a function each such let starts a new binding. Function
// literals in the arm are not entered.
func declareSkipped(block *compiler.BlockStatement, env *Environment) {
	if block == nil {
		return
	}
	compiler.Inspect(block, func(n compiler.Node) bool {
		switch n := n.(type) {
		case *compiler.FunctionLiteral:
			return false
		case *compiler.LetStatement:
			if env.outer == nil {
				if _, ok := env.store[n.Name.Name]; ok {
					return true
				}
			}
			env.declare(n.Name.Name)
		}
		return true
	})
}

func (e *Evaluator) evalExpressions(exprs []compiler.Expr, env *Environment) ([]vm.Value, error) {
	out := make([]vm.Value, 0, len(exprs))
	for _, expr := range exprs {
		v, err := e.eval(expr, env)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (e *Evaluator) evalIdentifier(node *compiler.Identifier, env *Environment) (vm.Value, error) {
	if val, ok := env.Get(node.Name); ok {
		return val, nil
	}
	if builtin, _, ok := vm.LookupBuiltin(node.Name); ok {
		return builtin, nil
	}
	start := node.Span().Start
	return nil, vm.Errorf(vm.ResolutionError, "identifier not found: %s", node.Name).At(start.Line, start.Column)
}

// ---------------------------------------------------------------------------
// Calls
// ---------------------------------------------------------------------------

func (e *Evaluator) apply(fn vm.Value, args []vm.Value) (vm.Value, error) {
	switch fn := fn.(type) {
	case *Function:
		return e.applyFunction(fn, args)
	case *vm.Builtin:
		return fn.Call(e.out, args...)
	default:
		return nil, vm.Errorf(vm.TypeError, "calling non-function: %s", vm.TypeName(fn))
	}
}

func (e *Evaluator) applyFunction(fn *Function, args []vm.Value) (vm.Value, error) {
	if len(args) != len(fn.Parameters) {
		return nil, vm.Errorf(vm.TypeError, "wrong number of arguments: want=%d, got=%d",
			len(fn.Parameters), len(args))
	}
	// The top level counts as one frame, as in the VM.
	if e.depth+1 >= e.maxDepth {
		return nil, vm.Errorf(vm.ResourceError, "stack overflow: call depth exceeds %d frames", e.maxDepth)
	}
	e.depth++
	defer func() { e.depth-- }()

	if e.trace {
		e.log.Debug("call", "name", fn.Name, "args", len(args), "depth", e.depth)
	}

	callEnv := NewEnclosedEnvironment(fn.Env)
	if fn.Name != "" {
		callEnv.Set(fn.Name, fn)
	}
	for i, param := range fn.Parameters {
		callEnv.Set(param.Name, args[i])
	}

	result, err := e.evalBlock(fn.Body, callEnv)
	if err != nil {
		return nil, err
	}
	if rv, ok := result.(*returnValue); ok {
		return rv.value, nil
	}
	return result, nil
}

// ---------------------------------------------------------------------------
// Limits
// ---------------------------------------------------------------------------

func (e *Evaluator) step() error {
	e.steps++
	if e.steps%contextCheckPeriod == 0 && e.ctx != nil {
		if err := e.ctx.Err(); err != nil {
			return vm.WrapError(vm.ResourceError, err, "execution cancelled: %v", err)
		}
	}
	if e.maxSteps > 0 && e.steps > e.maxSteps {
		return vm.Errorf(vm.ResourceError, "step budget exhausted after %d steps", e.maxSteps)
	}
	return nil
}

// positioned attaches node's start position to err unless it already has one.
func positioned(err error, node compiler.Node) error {
	if err == nil {
		return nil
	}
	e, ok := err.(*vm.Error)
	if !ok || e.Line > 0 {
		return err
	}
	start := node.Span().Start
	return e.At(start.Line, start.Column)
}
