package bytecode

import "fmt"

// Opcode represents a bytecode instruction.
// Opcodes are organized into ranges by category for easy identification.
type Opcode byte

const (
	// ========================================================================
	// Stack and constants (0x00-0x0F)
	// ========================================================================

	OpConstant Opcode = 0x00 // Push constant from pool: OpConstant <index:u16>
	OpPop      Opcode = 0x01 // Pop top of stack into the last-popped register
	OpTrue     Opcode = 0x02 // Push true
	OpFalse    Opcode = 0x03 // Push false
	OpNull     Opcode = 0x04 // Push null

	// ========================================================================
	// Arithmetic (0x10-0x1F)
	// ========================================================================

	OpAdd   Opcode = 0x10 // Pop two, push sum (or string concatenation)
	OpSub   Opcode = 0x11 // Pop two, push difference (a - b where b is TOS)
	OpMul   Opcode = 0x12 // Pop two, push product
	OpDiv   Opcode = 0x13 // Pop two, push quotient, truncated toward zero
	OpMod   Opcode = 0x14 // Pop two, push remainder, sign of the dividend
	OpMinus Opcode = 0x15 // Negate top of stack

	// ========================================================================
	// Comparison and logic (0x20-0x2F)
	// ========================================================================

	OpEqual       Opcode = 0x20 // Pop two, push a == b
	OpNotEqual    Opcode = 0x21 // Pop two, push a != b
	OpLessThan    Opcode = 0x22 // Pop two integers, push a < b
	OpGreaterThan Opcode = 0x23 // Pop two integers, push a > b
	OpAnd         Opcode = 0x24 // Pop two booleans, push a && b
	OpOr          Opcode = 0x25 // Pop two booleans, push a || b
	OpBang        Opcode = 0x26 // Push true if TOS is falsy

	// ========================================================================
	// Control flow (0x30-0x3F)
	// ========================================================================

	OpJump          Opcode = 0x30 // Unconditional jump: OpJump <target:u16>
	OpJumpNotTruthy Opcode = 0x31 // Pop, jump if falsy: OpJumpNotTruthy <target:u16>

	// ========================================================================
	// Bindings (0x40-0x4F)
	// ========================================================================

	OpGetGlobal      Opcode = 0x40 // Push global: OpGetGlobal <index:u16>
	OpSetGlobal      Opcode = 0x41 // Pop and store global: OpSetGlobal <index:u16>
	OpGetLocal       Opcode = 0x42 // Push local: OpGetLocal <slot:u8>
	OpSetLocal       Opcode = 0x43 // Pop and store local: OpSetLocal <slot:u8>
	OpGetBuiltin     Opcode = 0x44 // Push built-in: OpGetBuiltin <index:u8>
	OpGetFree        Opcode = 0x45 // Push captured value: OpGetFree <index:u8>
	OpCurrentClosure Opcode = 0x46 // Push the closure of the running frame

	// ========================================================================
	// Composite values (0x50-0x5F)
	// ========================================================================

	OpArray Opcode = 0x50 // Pop n elements, push array: OpArray <count:u16>
	OpIndex Opcode = 0x51 // Pop index and target, push element

	// ========================================================================
	// Functions (0x60-0x6F)
	// ========================================================================

	OpClosure     Opcode = 0x60 // Pop free values, push closure: OpClosure <const:u16> <free:u8>
	OpCall        Opcode = 0x61 // Call the callee below argc args: OpCall <argc:u8>
	OpReturnValue Opcode = 0x62 // Return top of stack from the current frame
	OpReturn      Opcode = 0x63 // Return null from the current frame
)

// OpcodeInfo provides metadata about each opcode for debugging and validation.
type OpcodeInfo struct {
	Name          string // Human-readable name
	StackPop      int    // How many values popped from stack (-1 = variable)
	StackPush     int    // How many values pushed to stack
	OperandWidths []int  // Byte width of each operand following the opcode
}

// OperandLen returns the total number of operand bytes.
func (i OpcodeInfo) OperandLen() int {
	n := 0
	for _, w := range i.OperandWidths {
		n += w
	}
	return n
}

// opcodeInfoTable maps opcodes to their metadata.
var opcodeInfoTable = map[Opcode]OpcodeInfo{
	// Stack and constants
	OpConstant: {"OpConstant", 0, 1, []int{2}},
	OpPop:      {"OpPop", 1, 0, nil},
	OpTrue:     {"OpTrue", 0, 1, nil},
	OpFalse:    {"OpFalse", 0, 1, nil},
	OpNull:     {"OpNull", 0, 1, nil},

	// Arithmetic
	OpAdd:   {"OpAdd", 2, 1, nil},
	OpSub:   {"OpSub", 2, 1, nil},
	OpMul:   {"OpMul", 2, 1, nil},
	OpDiv:   {"OpDiv", 2, 1, nil},
	OpMod:   {"OpMod", 2, 1, nil},
	OpMinus: {"OpMinus", 1, 1, nil},

	// Comparison and logic
	OpEqual:       {"OpEqual", 2, 1, nil},
	OpNotEqual:    {"OpNotEqual", 2, 1, nil},
	OpLessThan:    {"OpLessThan", 2, 1, nil},
	OpGreaterThan: {"OpGreaterThan", 2, 1, nil},
	OpAnd:         {"OpAnd", 2, 1, nil},
	OpOr:          {"OpOr", 2, 1, nil},
	OpBang:        {"OpBang", 1, 1, nil},

	// Control flow
	OpJump:          {"OpJump", 0, 0, []int{2}},
	OpJumpNotTruthy: {"OpJumpNotTruthy", 1, 0, []int{2}},

	// Bindings
	OpGetGlobal:      {"OpGetGlobal", 0, 1, []int{2}},
	OpSetGlobal:      {"OpSetGlobal", 1, 0, []int{2}},
	OpGetLocal:       {"OpGetLocal", 0, 1, []int{1}},
	OpSetLocal:       {"OpSetLocal", 1, 0, []int{1}},
	OpGetBuiltin:     {"OpGetBuiltin", 0, 1, []int{1}},
	OpGetFree:        {"OpGetFree", 0, 1, []int{1}},
	OpCurrentClosure: {"OpCurrentClosure", 0, 1, nil},

	// Composite values
	OpArray: {"OpArray", -1, 1, []int{2}}, // Pops count elements
	OpIndex: {"OpIndex", 2, 1, nil},

	// Functions
	OpClosure:     {"OpClosure", -1, 1, []int{2, 1}}, // Pops free values
	OpCall:        {"OpCall", -1, 1, []int{1}},       // Pops callee + argc args
	OpReturnValue: {"OpReturnValue", 1, 0, nil},
	OpReturn:      {"OpReturn", 0, 0, nil},
}

// GetOpcodeInfo returns metadata for an opcode.
// Returns OpcodeInfo with name "UNKNOWN" if the opcode is not recognized.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%02X)", byte(op))}
}

// Lookup returns the metadata for op, or an error if op is undefined.
func Lookup(op Opcode) (OpcodeInfo, error) {
	info, ok := opcodeInfoTable[op]
	if !ok {
		return OpcodeInfo{}, fmt.Errorf("opcode 0x%02X undefined", byte(op))
	}
	return info, nil
}

// String returns the human-readable name of an opcode.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// OperandLen returns the number of operand bytes for this opcode.
func (op Opcode) OperandLen() int {
	return GetOpcodeInfo(op).OperandLen()
}

// InstructionLen returns the total length of an instruction (1 + operand bytes).
func (op Opcode) InstructionLen() int {
	return 1 + op.OperandLen()
}

// IsJump returns true if this opcode is a jump instruction.
func (op Opcode) IsJump() bool {
	return op == OpJump || op == OpJumpNotTruthy
}

// IsReturn returns true if this opcode leaves the current frame.
func (op Opcode) IsReturn() bool {
	return op == OpReturnValue || op == OpReturn
}

// AllOpcodes returns a slice of all defined opcodes.
// Useful for testing that all opcodes have metadata.
func AllOpcodes() []Opcode {
	opcodes := make([]Opcode, 0, len(opcodeInfoTable))
	for op := range opcodeInfoTable {
		opcodes = append(opcodes, op)
	}
	return opcodes
}

// OpcodeCount returns the number of defined opcodes.
func OpcodeCount() int {
	return len(opcodeInfoTable)
}
