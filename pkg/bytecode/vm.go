package bytecode

import (
	"context"
	"io"

	"github.com/tliron/commonlog"

	"github.com/chazu/monkey/vm"
)

// Default limits.
const (
	DefaultStackSize   = 2048
	DefaultMaxFrames   = 1024
	contextCheckPeriod = 1024
)

// State is the lifecycle of a VM.
type State int

const (
	StateReady State = iota
	StateRunning
	StateHalted
	StateFaulted
)

var stateNames = map[State]string{
	StateReady:   "ready",
	StateRunning: "running",
	StateHalted:  "halted",
	StateFaulted: "faulted",
}

func (s State) String() string {
	return stateNames[s]
}

// Option configures a VM.
type Option func(*VM)

// WithStackSize bounds the operand stack.
func WithStackSize(n int) Option {
	return func(m *VM) {
		if n > 0 {
			m.stackSize = n
		}
	}
}

// WithMaxFrames bounds the call depth.
func WithMaxFrames(n int) Option {
	return func(m *VM) {
		if n > 0 {
			m.maxFrames = n
		}
	}
}

// WithMaxSteps bounds the number of dispatched instructions. Zero means
// unlimited.
func WithMaxSteps(n int64) Option {
	return func(m *VM) { m.maxSteps = n }
}

// WithOutput sets the writer used by puts.
func WithOutput(w io.Writer) Option {
	return func(m *VM) { m.out = w }
}

// WithLogger sets the logger. Per-instruction tracing is logged at debug
// level.
func WithLogger(log commonlog.Logger) Option {
	return func(m *VM) { m.log = log }
}

// VM executes bytecode. A VM runs once and is not safe for concurrent use;
// compiled Bytecode may be shared read-only between VMs.
type VM struct {
	constants []vm.Value
	globals   []vm.Value

	stack     []vm.Value
	sp        int // next free slot; top of stack is stack[sp-1]
	stackSize int

	frames    []*Frame
	maxFrames int

	maxSteps int64
	steps    int64

	out   io.Writer
	log   commonlog.Logger
	trace bool

	state      State
	lastPopped vm.Value
	returned   bool
}

// NewVM creates a VM for bc with empty globals.
func NewVM(bc *Bytecode, opts ...Option) *VM {
	return NewVMWithGlobals(bc, nil, opts...)
}

// NewVMWithGlobals creates a VM that reads and writes globals. The slice may
// grow while running; fetch it back with Globals.
func NewVMWithGlobals(bc *Bytecode, globals []vm.Value, opts ...Option) *VM {
	m := &VM{
		constants: bc.Constants,
		globals:   globals,
		stackSize: DefaultStackSize,
		maxFrames: DefaultMaxFrames,
		out:       io.Discard,
		log:       commonlog.GetLogger("monkey.vm"),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.trace = m.log.AllowLevel(commonlog.Debug)

	m.stack = make([]vm.Value, m.stackSize)

	mainFn := &vm.CompiledFunction{Instructions: bc.Instructions, Positions: bc.Positions}
	mainClosure := &vm.Closure{Fn: mainFn}
	m.frames = make([]*Frame, 0, 16)
	m.frames = append(m.frames, NewFrame(mainClosure, 0))
	return m
}

// State reports where the VM is in its lifecycle.
func (m *VM) State() State {
	return m.state
}

// Globals returns the globals array, including slots set by this run.
func (m *VM) Globals() []vm.Value {
	return m.globals
}

// LastPoppedStackElem returns the value most recently popped by OpPop, or
// the value of a top-level return. It is Nil when nothing was popped.
func (m *VM) LastPoppedStackElem() vm.Value {
	if m.lastPopped == nil {
		return vm.Nil
	}
	return m.lastPopped
}

// Returned reports whether the run ended at a top-level return statement.
func (m *VM) Returned() bool {
	return m.returned
}

// Steps returns the number of instructions dispatched so far.
func (m *VM) Steps() int64 {
	return m.steps
}

func (m *VM) currentFrame() *Frame {
	return m.frames[len(m.frames)-1]
}

func (m *VM) pushFrame(f *Frame) {
	m.frames = append(m.frames, f)
}

func (m *VM) popFrame() *Frame {
	f := m.frames[len(m.frames)-1]
	m.frames = m.frames[:len(m.frames)-1]
	return f
}

// Run executes the program to completion. Every failure is a *vm.Error;
// globals written before a fault stay written.
func (m *VM) Run(ctx context.Context) (err error) {
	if m.state != StateReady {
		return vm.Errorf(vm.InternalError, "vm is %s, not ready", m.state)
	}
	m.state = StateRunning

	defer func() {
		if r := recover(); r != nil {
			m.log.Error("vm panic", "panic", r)
			err = vm.Errorf(vm.InternalError, "vm panic: %v", r)
		}
		if err != nil {
			m.state = StateFaulted
			err = m.positioned(err)
			return
		}
		m.state = StateHalted
	}()

	return m.run(ctx)
}

// positioned attaches the source position of the faulting instruction.
func (m *VM) positioned(err error) error {
	e, ok := err.(*vm.Error)
	if !ok || e.Line > 0 || len(m.frames) == 0 {
		return err
	}
	frame := m.currentFrame()
	if line, col := vm.LookupPos(frame.cl.Fn.Positions, frame.ip); line > 0 {
		return e.At(line, col)
	}
	return err
}

var infixOperators = map[Opcode]string{
	OpAdd:         "+",
	OpSub:         "-",
	OpMul:         "*",
	OpDiv:         "/",
	OpMod:         "%",
	OpEqual:       "==",
	OpNotEqual:    "!=",
	OpLessThan:    "<",
	OpGreaterThan: ">",
	OpAnd:         "&&",
	OpOr:          "||",
}

// run is the main execution loop.
func (m *VM) run(ctx context.Context) error {
	for {
		frame := m.currentFrame()
		ins := frame.Instructions()
		if frame.ip >= len(ins)-1 {
			if len(m.frames) == 1 {
				return nil
			}
			return vm.Errorf(vm.InternalError, "function ran past its last instruction")
		}

		m.steps++
		if m.steps%contextCheckPeriod == 0 {
			if err := ctx.Err(); err != nil {
				return vm.WrapError(vm.ResourceError, err, "execution cancelled: %v", err)
			}
		}
		if m.maxSteps > 0 && m.steps > m.maxSteps {
			return vm.Errorf(vm.ResourceError, "step budget exhausted after %d instructions", m.maxSteps)
		}

		frame.ip++
		ip := frame.ip
		op := Opcode(ins[ip])

		if m.trace {
			m.log.Debug("dispatch", "ip", ip, "op", op.String(), "sp", m.sp, "depth", len(m.frames))
		}

		switch op {
		// ============ Constants ============
		case OpConstant:
			idx := int(ReadUint16(ins[ip+1:]))
			frame.ip += 2
			if err := m.push(m.constants[idx]); err != nil {
				return err
			}

		case OpTrue:
			if err := m.push(vm.True); err != nil {
				return err
			}

		case OpFalse:
			if err := m.push(vm.False); err != nil {
				return err
			}

		case OpNull:
			if err := m.push(vm.Nil); err != nil {
				return err
			}

		case OpPop:
			m.lastPopped = m.pop()

		// ============ Operators ============
		case OpAdd, OpSub, OpMul, OpDiv, OpMod,
			OpEqual, OpNotEqual, OpLessThan, OpGreaterThan, OpAnd, OpOr:
			right := m.pop()
			left := m.pop()
			result, err := vm.Infix(infixOperators[op], left, right)
			if err != nil {
				return err
			}
			if err := m.push(result); err != nil {
				return err
			}

		case OpBang, OpMinus:
			operator := "!"
			if op == OpMinus {
				operator = "-"
			}
			result, err := vm.Prefix(operator, m.pop())
			if err != nil {
				return err
			}
			if err := m.push(result); err != nil {
				return err
			}

		// ============ Control Flow ============
		case OpJump:
			pos := int(ReadUint16(ins[ip+1:]))
			frame.ip = pos - 1

		case OpJumpNotTruthy:
			pos := int(ReadUint16(ins[ip+1:]))
			frame.ip += 2
			if !vm.IsTruthy(m.pop()) {
				frame.ip = pos - 1
			}

		// ============ Bindings ============
		case OpSetGlobal:
			idx := int(ReadUint16(ins[ip+1:]))
			frame.ip += 2
			if idx >= len(m.globals) {
				m.globals = append(m.globals, make([]vm.Value, idx+1-len(m.globals))...)
			}
			m.globals[idx] = m.pop()

		case OpGetGlobal:
			idx := int(ReadUint16(ins[ip+1:]))
			frame.ip += 2
			var value vm.Value = vm.Nil
			if idx < len(m.globals) && m.globals[idx] != nil {
				value = m.globals[idx]
			}
			if err := m.push(value); err != nil {
				return err
			}

		case OpSetLocal:
			idx := int(ReadUint8(ins[ip+1:]))
			frame.ip++
			m.stack[frame.basePointer+idx] = m.pop()

		case OpGetLocal:
			idx := int(ReadUint8(ins[ip+1:]))
			frame.ip++
			if err := m.push(m.stack[frame.basePointer+idx]); err != nil {
				return err
			}

		case OpGetBuiltin:
			idx := int(ReadUint8(ins[ip+1:]))
			frame.ip++
			if idx >= len(vm.Builtins) {
				return vm.Errorf(vm.InternalError, "builtin index %d out of range", idx)
			}
			if err := m.push(vm.Builtins[idx]); err != nil {
				return err
			}

		case OpGetFree:
			idx := int(ReadUint8(ins[ip+1:]))
			frame.ip++
			if err := m.push(frame.cl.Free[idx]); err != nil {
				return err
			}

		case OpCurrentClosure:
			if err := m.push(frame.cl); err != nil {
				return err
			}

		// ============ Composite Values ============
		case OpArray:
			n := int(ReadUint16(ins[ip+1:]))
			frame.ip += 2
			elements := make([]vm.Value, n)
			copy(elements, m.stack[m.sp-n:m.sp])
			m.sp -= n
			if err := m.push(vm.NewArray(elements)); err != nil {
				return err
			}

		case OpIndex:
			index := m.pop()
			left := m.pop()
			result, err := vm.Index(left, index)
			if err != nil {
				return err
			}
			if err := m.push(result); err != nil {
				return err
			}

		// ============ Functions ============
		case OpClosure:
			constIdx := int(ReadUint16(ins[ip+1:]))
			numFree := int(ReadUint8(ins[ip+3:]))
			frame.ip += 3
			if err := m.pushClosure(constIdx, numFree); err != nil {
				return err
			}

		case OpCall:
			numArgs := int(ReadUint8(ins[ip+1:]))
			frame.ip++
			if err := m.executeCall(numArgs); err != nil {
				return err
			}

		case OpReturnValue, OpReturn:
			var value vm.Value = vm.Nil
			if op == OpReturnValue {
				value = m.pop()
			}
			if len(m.frames) == 1 {
				m.lastPopped = value
				m.returned = true
				return nil
			}
			callee := m.popFrame()
			m.sp = callee.basePointer - 1
			if err := m.push(value); err != nil {
				return err
			}

		default:
			return vm.Errorf(vm.InternalError, "unknown opcode 0x%02X at %d", byte(op), ip)
		}
	}
}

func (m *VM) pushClosure(constIdx, numFree int) error {
	fn, ok := m.constants[constIdx].(*vm.CompiledFunction)
	if !ok {
		return vm.Errorf(vm.InternalError, "constant %d is not a function: %s", constIdx, vm.Describe(m.constants[constIdx]))
	}
	free := make([]vm.Value, numFree)
	copy(free, m.stack[m.sp-numFree:m.sp])
	m.sp -= numFree
	return m.push(&vm.Closure{Fn: fn, Free: free})
}

// executeCall dispatches on the callee sitting below numArgs arguments.
func (m *VM) executeCall(numArgs int) error {
	callee := m.stack[m.sp-1-numArgs]
	switch callee := callee.(type) {
	case *vm.Closure:
		return m.callClosure(callee, numArgs)
	case *vm.Builtin:
		return m.callBuiltin(callee, numArgs)
	default:
		return vm.Errorf(vm.TypeError, "calling non-function: %s", vm.TypeName(callee))
	}
}

func (m *VM) callClosure(cl *vm.Closure, numArgs int) error {
	if numArgs != cl.Fn.NumParameters {
		return vm.Errorf(vm.TypeError, "wrong number of arguments: want=%d, got=%d",
			cl.Fn.NumParameters, numArgs)
	}
	if len(m.frames) >= m.maxFrames {
		return vm.Errorf(vm.ResourceError, "stack overflow: call depth exceeds %d frames", m.maxFrames)
	}

	basePointer := m.sp - numArgs
	top := basePointer + cl.Fn.NumLocals
	if top >= m.stackSize {
		return vm.Errorf(vm.ResourceError, "stack overflow: operand stack exceeds %d slots", m.stackSize)
	}
	for i := m.sp; i < top; i++ {
		m.stack[i] = vm.Nil
	}

	m.pushFrame(NewFrame(cl, basePointer))
	m.sp = top
	return nil
}

func (m *VM) callBuiltin(b *vm.Builtin, numArgs int) error {
	args := make([]vm.Value, numArgs)
	copy(args, m.stack[m.sp-numArgs:m.sp])

	result, err := b.Call(m.out, args...)
	if err != nil {
		return err
	}
	m.sp = m.sp - numArgs - 1
	return m.push(result)
}

func (m *VM) push(v vm.Value) error {
	if m.sp >= m.stackSize {
		return vm.Errorf(vm.ResourceError, "stack overflow: operand stack exceeds %d slots", m.stackSize)
	}
	m.stack[m.sp] = v
	m.sp++
	return nil
}

func (m *VM) pop() vm.Value {
	v := m.stack[m.sp-1]
	m.stack[m.sp-1] = nil
	m.sp--
	return v
}
