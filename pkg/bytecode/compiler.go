package bytecode

import (
	"github.com/chazu/monkey/compiler"
	"github.com/chazu/monkey/vm"
)

// Operand limits imposed by the instruction encoding.
const (
	maxConstants = 1 << 16
	maxGlobals   = 1 << 16
	maxLocals    = 1 << 8
	maxFree      = 1 << 8
	maxArgs      = 1 << 8
	maxElements  = 1 << 16
)

// EmittedInstruction records an opcode and where it starts.
type EmittedInstruction struct {
	Opcode   Opcode
	Position int
}

// CompilationScope is the instruction buffer of one function body (or the
// top level) while it is being compiled.
type CompilationScope struct {
	instructions        Instructions
	positions           []vm.SourcePos
	lastInstruction     EmittedInstruction
	previousInstruction EmittedInstruction
}

// Compiler translates an AST into bytecode in a single pass, back-patching
// forward jumps once their targets are known.
type Compiler struct {
	constants   []vm.Value
	symbolTable *SymbolTable

	scopes     []CompilationScope
	scopeIndex int

	// Source position of the node being compiled, for the debug map.
	pos compiler.Position
}

// NewCompiler creates a compiler with a fresh symbol table and constant pool.
func NewCompiler() *Compiler {
	return NewCompilerWithState(NewSymbolTable(), nil)
}

// NewCompilerWithState creates a compiler that continues an existing session: new
// globals are allocated after the ones already in symbols, and new
// constants are appended to constants.
func NewCompilerWithState(symbols *SymbolTable, constants []vm.Value) *Compiler {
	return &Compiler{
		constants:   constants,
		symbolTable: symbols,
		scopes:      []CompilationScope{{}},
	}
}

// SymbolTable returns the compiler's current symbol table level.
func (c *Compiler) SymbolTable() *SymbolTable {
	return c.symbolTable
}

// Bytecode returns the compiled top-level instructions and the constant pool.
func (c *Compiler) Bytecode() *Bytecode {
	return &Bytecode{
		Instructions: c.currentInstructions(),
		Constants:    c.constants,
		Positions:    c.scopes[c.scopeIndex].positions,
	}
}

// Compile compiles node and everything below it. Errors are *vm.Error
// values; an unresolved identifier is a ResolutionError carrying its
// source position.
func (c *Compiler) Compile(node compiler.Node) error {
	prev := c.pos
	if start := node.Span().Start; start.Line > 0 {
		c.pos = start
	}
	defer func() { c.pos = prev }()

	switch node := node.(type) {
	case *compiler.Program:
		for _, s := range node.Statements {
			if err := c.Compile(s); err != nil {
				return err
			}
		}

	case *compiler.ExpressionStatement:
		if err := c.Compile(node.Expr); err != nil {
			return err
		}
		c.emit(OpPop)

	case *compiler.BlockStatement:
		for _, s := range node.Statements {
			if err := c.Compile(s); err != nil {
				return err
			}
		}

	case *compiler.LetStatement:
		if err := c.Compile(node.Value); err != nil {
			return err
		}
		return c.compileBinding(node.Name)

	case *compiler.ReturnStatement:
		if node.Value == nil {
			c.emit(OpReturn)
			return nil
		}
		if err := c.Compile(node.Value); err != nil {
			return err
		}
		c.emit(OpReturnValue)

	case *compiler.Identifier:
		symbol, ok := c.symbolTable.Resolve(node.Name)
		if !ok {
			start := node.Span().Start
			return vm.Errorf(vm.ResolutionError, "identifier not found: %s", node.Name).
				At(start.Line, start.Column)
		}
		c.loadSymbol(symbol)

	case *compiler.IntegerLiteral:
		return c.emitConstant(&vm.Integer{Value: node.Value})

	case *compiler.StringLiteral:
		return c.emitConstant(&vm.String{Value: node.Value})

	case *compiler.Boolean:
		if node.Value {
			c.emit(OpTrue)
		} else {
			c.emit(OpFalse)
		}

	case *compiler.PrefixExpression:
		if err := c.Compile(node.Right); err != nil {
			return err
		}
		switch node.Operator {
		case "!":
			c.emit(OpBang)
		case "-":
			c.emit(OpMinus)
		default:
			return vm.Errorf(vm.InternalError, "unknown operator %s", node.Operator)
		}

	case *compiler.InfixExpression:
		return c.compileInfix(node)

	case *compiler.IfExpression:
		return c.compileIf(node)

	case *compiler.FunctionLiteral:
		return c.compileFunction(node)

	case *compiler.CallExpression:
		if len(node.Arguments) >= maxArgs {
			return c.limitError("too many arguments in call: %d", len(node.Arguments))
		}
		if err := c.Compile(node.Function); err != nil {
			return err
		}
		for _, a := range node.Arguments {
			if err := c.Compile(a); err != nil {
				return err
			}
		}
		c.emit(OpCall, len(node.Arguments))

	case *compiler.ArrayLiteral:
		if len(node.Elements) >= maxElements {
			return c.limitError("too many elements in array literal: %d", len(node.Elements))
		}
		for _, el := range node.Elements {
			if err := c.Compile(el); err != nil {
				return err
			}
		}
		c.emit(OpArray, len(node.Elements))

	case *compiler.IndexExpression:
		if err := c.Compile(node.Left); err != nil {
			return err
		}
		if err := c.Compile(node.Index); err != nil {
			return err
		}
		c.emit(OpIndex)

	default:
		return vm.Errorf(vm.InternalError, "cannot compile %T", node)
	}

	return nil
}

var infixOpcodes = map[string]Opcode{
	"+":  OpAdd,
	"-":  OpSub,
	"*":  OpMul,
	"/":  OpDiv,
	"%":  OpMod,
	"==": OpEqual,
	"!=": OpNotEqual,
	"<":  OpLessThan,
	">":  OpGreaterThan,
	"&&": OpAnd,
	"||": OpOr,
}

func (c *Compiler) compileInfix(node *compiler.InfixExpression) error {
	op, ok := infixOpcodes[node.Operator]
	if !ok {
		return vm.Errorf(vm.InternalError, "unknown operator %s", node.Operator)
	}
	if err := c.Compile(node.Left); err != nil {
		return err
	}
	if err := c.Compile(node.Right); err != nil {
		return err
	}
	c.emit(op)
	return nil
}

// compileIf lays out
//
//	<condition>
//	OpJumpNotTruthy else
//	<consequence>
//	OpJump end
//	else: <alternative or OpNull>
//	end:
func (c *Compiler) compileIf(node *compiler.IfExpression) error {
	if err := c.Compile(node.Condition); err != nil {
		return err
	}

	jumpNotTruthyPos := c.emitJump(OpJumpNotTruthy)

	if err := c.compileBranch(node.Consequence); err != nil {
		return err
	}

	jumpPos := c.emitJump(OpJump)
	c.patchJump(jumpNotTruthyPos)

	if node.Alternative == nil {
		c.emit(OpNull)
	} else if err := c.compileBranch(node.Alternative); err != nil {
		return err
	}

	c.patchJump(jumpPos)
	return nil
}

// compileBranch compiles an if/else arm so that it leaves exactly one value.
func (c *Compiler) compileBranch(block *compiler.BlockStatement) error {
	mark := len(c.currentInstructions())
	if err := c.Compile(block); err != nil {
		return err
	}
	switch {
	case len(c.currentInstructions()) > mark && c.lastInstructionIs(OpPop):
		c.removeLastPop()
	case len(c.currentInstructions()) > mark && c.lastInstructionIsReturn():
	default:
		// Empty arm, or one ending in a binding.
		c.emit(OpNull)
	}
	return nil
}

func (c *Compiler) compileFunction(node *compiler.FunctionLiteral) error {
	if len(node.Parameters) >= maxLocals {
		return c.limitError("too many parameters: %d", len(node.Parameters))
	}

	c.enterScope()

	if node.Name != "" {
		c.symbolTable.DefineFunctionName(node.Name)
	}
	for _, p := range node.Parameters {
		c.symbolTable.Define(p.Name)
	}

	if err := c.Compile(node.Body); err != nil {
		c.leaveScope()
		return err
	}

	if c.lastInstructionIs(OpPop) {
		c.replaceLastPopWithReturn()
	}
	if !c.lastInstructionIsReturn() {
		c.emit(OpReturn)
	}

	freeSymbols := c.symbolTable.FreeSymbols
	numLocals := c.symbolTable.NumDefinitions()
	positions := c.scopes[c.scopeIndex].positions
	instructions := c.leaveScope()

	if len(freeSymbols) >= maxFree {
		return c.limitError("too many captured variables: %d", len(freeSymbols))
	}
	for _, s := range freeSymbols {
		c.loadSymbol(s)
	}

	fn := &vm.CompiledFunction{
		Instructions:  instructions,
		NumLocals:     numLocals,
		NumParameters: len(node.Parameters),
		Name:          node.Name,
		Positions:     positions,
	}
	idx, err := c.addConstant(fn)
	if err != nil {
		return err
	}
	c.emit(OpClosure, idx, len(freeSymbols))
	return nil
}

// compileBinding defines name in the current level and stores the value on
// top of the stack into it.
func (c *Compiler) compileBinding(name *compiler.Identifier) error {
	symbol := c.symbolTable.Define(name.Name)
	if symbol.Scope == GlobalScope {
		if symbol.Index >= maxGlobals {
			return c.limitError("too many global bindings: %d", symbol.Index+1)
		}
		c.emit(OpSetGlobal, symbol.Index)
		return nil
	}
	if symbol.Index >= maxLocals {
		return c.limitError("too many local bindings: %d", symbol.Index+1)
	}
	c.emit(OpSetLocal, symbol.Index)
	return nil
}

func (c *Compiler) loadSymbol(s Symbol) {
	switch s.Scope {
	case GlobalScope:
		c.emit(OpGetGlobal, s.Index)
	case LocalScope:
		c.emit(OpGetLocal, s.Index)
	case BuiltinScope:
		c.emit(OpGetBuiltin, s.Index)
	case FreeScope:
		c.emit(OpGetFree, s.Index)
	case FunctionScope:
		c.emit(OpCurrentClosure)
	}
}

func (c *Compiler) limitError(format string, args ...any) error {
	return vm.Errorf(vm.ResourceError, format, args...).At(c.pos.Line, c.pos.Column)
}

// ---------------------------------------------------------------------------
// Constants
// ---------------------------------------------------------------------------

func (c *Compiler) addConstant(obj vm.Value) (int, error) {
	if len(c.constants) >= maxConstants {
		return 0, c.limitError("constant pool exhausted (%d entries)", len(c.constants))
	}
	c.constants = append(c.constants, obj)
	return len(c.constants) - 1, nil
}

func (c *Compiler) emitConstant(obj vm.Value) error {
	idx, err := c.addConstant(obj)
	if err != nil {
		return err
	}
	c.emit(OpConstant, idx)
	return nil
}

// ---------------------------------------------------------------------------
// Emission
// ---------------------------------------------------------------------------

func (c *Compiler) currentInstructions() Instructions {
	return c.scopes[c.scopeIndex].instructions
}

func (c *Compiler) emit(op Opcode, operands ...int) int {
	ins := Make(op, operands...)
	pos := c.addInstruction(ins)
	c.setLastInstruction(op, pos)
	return pos
}

func (c *Compiler) addInstruction(ins []byte) int {
	scope := &c.scopes[c.scopeIndex]
	posNewInstruction := len(scope.instructions)
	scope.instructions = append(scope.instructions, ins...)

	if c.pos.Line > 0 {
		n := len(scope.positions)
		if n == 0 || scope.positions[n-1].Line != c.pos.Line || scope.positions[n-1].Column != c.pos.Column {
			scope.positions = append(scope.positions, vm.SourcePos{
				Offset: posNewInstruction,
				Line:   c.pos.Line,
				Column: c.pos.Column,
			})
		}
	}
	return posNewInstruction
}

func (c *Compiler) setLastInstruction(op Opcode, pos int) {
	scope := &c.scopes[c.scopeIndex]
	scope.previousInstruction = scope.lastInstruction
	scope.lastInstruction = EmittedInstruction{Opcode: op, Position: pos}
}

func (c *Compiler) lastInstructionIs(op Opcode) bool {
	if len(c.currentInstructions()) == 0 {
		return false
	}
	return c.scopes[c.scopeIndex].lastInstruction.Opcode == op
}

func (c *Compiler) lastInstructionIsReturn() bool {
	return c.lastInstructionIs(OpReturnValue) || c.lastInstructionIs(OpReturn)
}

func (c *Compiler) removeLastPop() {
	scope := &c.scopes[c.scopeIndex]
	last := scope.lastInstruction.Position

	scope.instructions = scope.instructions[:last]
	for len(scope.positions) > 0 && scope.positions[len(scope.positions)-1].Offset >= last {
		scope.positions = scope.positions[:len(scope.positions)-1]
	}
	scope.lastInstruction = scope.previousInstruction
}

func (c *Compiler) replaceLastPopWithReturn() {
	scope := &c.scopes[c.scopeIndex]
	scope.instructions[scope.lastInstruction.Position] = byte(OpReturnValue)
	scope.lastInstruction.Opcode = OpReturnValue
}

// emitJump emits a jump with a placeholder target and returns the offset
// of the instruction for later patching.
func (c *Compiler) emitJump(op Opcode) int {
	return c.emit(op, jumpPlaceholder)
}

// patchJump points the jump at pos to the current end of the stream.
func (c *Compiler) patchJump(pos int) {
	c.currentInstructions().patchUint16(pos+1, len(c.currentInstructions()))
}

// ---------------------------------------------------------------------------
// Scopes
// ---------------------------------------------------------------------------

func (c *Compiler) enterScope() {
	c.scopes = append(c.scopes, CompilationScope{})
	c.scopeIndex++
	c.symbolTable = NewEnclosedSymbolTable(c.symbolTable)
}

func (c *Compiler) leaveScope() Instructions {
	instructions := c.currentInstructions()

	c.scopes = c.scopes[:len(c.scopes)-1]
	c.scopeIndex--
	c.symbolTable = c.symbolTable.Outer

	return instructions
}
