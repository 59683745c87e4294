// Package session holds the state a host keeps between compile units: the
// symbol table, constant pool and globals for the bytecode engine, or the
// top-level environment for the tree-walking engine.
//
// A REPL line, a script file and an RPC Evaluate call are each one unit.
// Units see the bindings of every earlier unit in the same session.
package session

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	"github.com/chazu/monkey/compiler"
	"github.com/chazu/monkey/pkg/bytecode"
	"github.com/chazu/monkey/pkg/evaluator"
	"github.com/chazu/monkey/vm"
)

// Engine selects how units are executed.
type Engine string

const (
	EngineVM   Engine = "vm"
	EngineEval Engine = "eval"
)

// ParseEngine converts a flag or config value into an Engine. The empty
// string selects the VM.
func ParseEngine(s string) (Engine, error) {
	switch Engine(s) {
	case "", EngineVM:
		return EngineVM, nil
	case EngineEval:
		return EngineEval, nil
	}
	return "", fmt.Errorf("unknown engine %q (want vm or eval)", s)
}

// Limits bounds execution. Zero fields use the engine defaults.
type Limits struct {
	StackSize int
	MaxFrames int
	MaxSteps  int64
}

// Global is a top-level binding and its current value.
type Global struct {
	Name  string
	Value vm.Value
}

// Option configures a Session.
type Option func(*Session)

// WithEngine selects the execution engine.
func WithEngine(e Engine) Option {
	return func(s *Session) { s.engine = e }
}

// WithOutput sets where puts writes.
func WithOutput(w io.Writer) Option {
	return func(s *Session) { s.out = w }
}

// WithLimits sets the execution limits.
func WithLimits(l Limits) Option {
	return func(s *Session) { s.limits = l }
}

// WithID sets the session ID instead of generating one.
func WithID(id string) Option {
	return func(s *Session) { s.id = id }
}

// WithLogger sets the session logger.
func WithLogger(log commonlog.Logger) Option {
	return func(s *Session) { s.log = log }
}

// Session is one persistent evaluation context. It is not safe for
// concurrent use.
type Session struct {
	id     string
	engine Engine
	out    io.Writer
	limits Limits
	log    commonlog.Logger

	// bytecode engine
	symbols   *bytecode.SymbolTable
	constants []vm.Value
	globals   []vm.Value

	// tree-walking engine
	env *evaluator.Environment
}

// New creates an empty session.
func New(opts ...Option) *Session {
	s := &Session{
		engine: EngineVM,
		out:    io.Discard,
		log:    commonlog.GetLogger("monkey.session"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.id == "" {
		s.id = uuid.NewString()
	}
	s.Reset()
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Engine returns the active engine.
func (s *Session) Engine() Engine {
	return s.engine
}

// SetEngine switches engines. The engines keep separate state, so switching
// starts from an empty session.
func (s *Session) SetEngine(e Engine) {
	if e == s.engine {
		return
	}
	s.engine = e
	s.Reset()
}

// Reset discards every binding.
func (s *Session) Reset() {
	s.symbols = bytecode.NewSymbolTable()
	s.constants = nil
	s.globals = nil
	s.env = evaluator.NewEnvironment()
}

// ---------------------------------------------------------------------------
// Evaluation
// ---------------------------------------------------------------------------

// Eval runs one unit and returns its value. The value is nil when the unit
// ends in a let binding without a top-level return.
//
// A syntax or resolution error leaves the session unchanged. A runtime
// fault keeps the globals written before it.
func (s *Session) Eval(ctx context.Context, source string) (vm.Value, error) {
	program, err := compiler.Parse(source)
	if err != nil {
		return nil, err
	}

	var result vm.Value
	if s.engine == EngineEval {
		result, err = s.evalTree(ctx, program)
	} else {
		result, err = s.evalBytecode(ctx, program)
	}
	if err != nil {
		s.log.Debug("unit faulted", "session", s.id, "engine", string(s.engine), "error", err.Error())
		return nil, err
	}
	return result, nil
}

func (s *Session) evalBytecode(ctx context.Context, program *compiler.Program) (vm.Value, error) {
	before := s.symbols.NumDefinitions()
	bc, err := s.compile(program, true)
	if err != nil {
		return nil, err
	}

	machine := bytecode.NewVMWithGlobals(bc, s.globals, s.vmOptions()...)
	err = machine.Run(ctx)
	s.globals = machine.Globals()
	if err != nil {
		s.forgetUnset(before)
		return nil, err
	}

	if machine.Returned() || endsInExpression(program) {
		return machine.LastPoppedStackElem(), nil
	}
	return nil, nil
}

// forgetUnset drops globals defined by the faulted unit that never received
// a value, so later units cannot resolve them.
func (s *Session) forgetUnset(firstNew int) {
	for _, sym := range s.symbols.Names() {
		if sym.Index < firstNew {
			continue
		}
		if sym.Index >= len(s.globals) || s.globals[sym.Index] == nil {
			s.symbols.Forget(sym.Name)
		}
	}
}

func (s *Session) evalTree(ctx context.Context, program *compiler.Program) (vm.Value, error) {
	if err := resolutionError(compiler.Analyze(program, s.env.Names()...)); err != nil {
		return nil, err
	}
	before := make(map[string]bool)
	for _, name := range s.env.Names() {
		before[name] = true
	}

	result, err := s.newEvaluator().Eval(ctx, program, s.env)
	if err != nil {
		for _, name := range s.env.Names() {
			if !before[name] && !s.env.IsSet(name) {
				s.env.Forget(name)
			}
		}
		return nil, err
	}
	return result, nil
}

func (s *Session) vmOptions() []bytecode.Option {
	return []bytecode.Option{
		bytecode.WithOutput(s.out),
		bytecode.WithStackSize(s.limits.StackSize),
		bytecode.WithMaxFrames(s.limits.MaxFrames),
		bytecode.WithMaxSteps(s.limits.MaxSteps),
	}
}

func (s *Session) newEvaluator() *evaluator.Evaluator {
	return evaluator.New(
		evaluator.WithOutput(s.out),
		evaluator.WithMaxDepth(s.limits.MaxFrames),
		evaluator.WithMaxSteps(s.limits.MaxSteps),
	)
}

// endsInExpression reports whether the last statement leaves a value for
// the unit.
func endsInExpression(program *compiler.Program) bool {
	n := len(program.Statements)
	if n == 0 {
		return false
	}
	_, ok := program.Statements[n-1].(*compiler.ExpressionStatement)
	return ok
}

// resolutionError converts the first error diagnostic into a positioned
// ResolutionError.
func resolutionError(diags []compiler.Diagnostic) error {
	for _, d := range diags {
		if d.Severity == compiler.SeverityError {
			start := d.Span.Start
			return vm.Errorf(vm.ResolutionError, "%s", d.Message).At(start.Line, start.Column)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Compilation
// ---------------------------------------------------------------------------

// compile compiles program against the session's symbol table and constant
// pool. With commit unset, or on failure, both are rolled back.
func (s *Session) compile(program *compiler.Program, commit bool) (*bytecode.Bytecode, error) {
	snap := s.symbols.Snapshot()

	// Capped so the compiler's appends never land in the session's array.
	constants := s.constants[:len(s.constants):len(s.constants)]

	c := bytecode.NewCompilerWithState(s.symbols, constants)
	if err := c.Compile(program); err != nil {
		s.symbols.Restore(snap)
		return nil, err
	}
	bc := c.Bytecode()

	if commit {
		s.constants = bc.Constants
	} else {
		s.symbols.Restore(snap)
	}
	return bc, nil
}

// Compile compiles source against the current session state without
// changing it.
func (s *Session) Compile(source string) (*bytecode.Bytecode, error) {
	program, err := compiler.Parse(source)
	if err != nil {
		return nil, err
	}
	return s.compile(program, false)
}

// Disassemble renders the bytecode source would compile to.
func (s *Session) Disassemble(source string) (string, error) {
	bc, err := s.Compile(source)
	if err != nil {
		return "", err
	}
	return bc.Disassemble(), nil
}

// DeclareAndDisassemble renders the bytecode for source and keeps the
// globals and constants it defines, so later units compile against them.
// Nothing runs: the new globals stay unset.
func (s *Session) DeclareAndDisassemble(source string) (string, error) {
	program, err := compiler.Parse(source)
	if err != nil {
		return "", err
	}
	bc, err := s.compile(program, true)
	if err != nil {
		return "", err
	}
	return bc.Disassemble(), nil
}

// ---------------------------------------------------------------------------
// Inspection
// ---------------------------------------------------------------------------

// Check parses and resolves source against the session's globals without
// running it. Syntax errors are reported first; resolution is only checked
// when the source parses.
func (s *Session) Check(source string) []compiler.Diagnostic {
	p := compiler.NewParser(source)
	program := p.ParseProgram()

	if errs := p.ParseErrors(); len(errs) > 0 {
		diags := make([]compiler.Diagnostic, len(errs))
		for i, e := range errs {
			diags[i] = compiler.Diagnostic{
				Span:     compiler.MakeSpan(e.Pos, e.Pos),
				Severity: compiler.SeverityError,
				Message:  e.Message,
			}
		}
		return diags
	}
	return compiler.Analyze(program, s.globalNames()...)
}

// Globals lists the top-level bindings, in definition order for the VM and
// by name for the evaluator. A binding declared by an if arm that did not
// run is listed as null.
func (s *Session) Globals() []Global {
	var out []Global
	if s.engine == EngineEval {
		for _, name := range s.env.Names() {
			if v, ok := s.env.Get(name); ok {
				out = append(out, Global{Name: name, Value: v})
			}
		}
		return out
	}

	for _, sym := range s.symbols.Names() {
		var v vm.Value = vm.Nil
		if sym.Index < len(s.globals) && s.globals[sym.Index] != nil {
			v = s.globals[sym.Index]
		}
		out = append(out, Global{Name: sym.Name, Value: v})
	}
	return out
}

func (s *Session) globalNames() []string {
	if s.engine == EngineEval {
		return s.env.Names()
	}
	syms := s.symbols.Names()
	names := make([]string, len(syms))
	for i, sym := range syms {
		names[i] = sym.Name
	}
	return names
}
