package bytecode

import (
	"encoding/binary"

	"github.com/chazu/monkey/vm"
)

// Instructions is an encoded instruction stream: one opcode byte followed by
// its big-endian, fixed-width operands.
type Instructions []byte

// Bytecode is the output of one compile unit.
type Bytecode struct {
	Instructions Instructions
	Constants    []vm.Value
	Positions    []vm.SourcePos // debug positions for Instructions
}

// Make encodes a single instruction. Operands beyond the opcode's declared
// widths are ignored; missing operands encode as zero.
func Make(op Opcode, operands ...int) []byte {
	info, ok := opcodeInfoTable[op]
	if !ok {
		return []byte{}
	}

	instruction := make([]byte, 1+info.OperandLen())
	instruction[0] = byte(op)

	offset := 1
	for i, width := range info.OperandWidths {
		operand := 0
		if i < len(operands) {
			operand = operands[i]
		}
		switch width {
		case 2:
			binary.BigEndian.PutUint16(instruction[offset:], uint16(operand))
		case 1:
			instruction[offset] = byte(operand)
		}
		offset += width
	}
	return instruction
}

// ReadOperands decodes the operands of an instruction whose opcode has
// already been consumed. It returns the operands and the bytes read.
func ReadOperands(info OpcodeInfo, ins Instructions) ([]int, int) {
	operands := make([]int, len(info.OperandWidths))
	offset := 0
	for i, width := range info.OperandWidths {
		if offset+width > len(ins) {
			break
		}
		switch width {
		case 2:
			operands[i] = int(ReadUint16(ins[offset:]))
		case 1:
			operands[i] = int(ReadUint8(ins[offset:]))
		}
		offset += width
	}
	return operands, offset
}

// ReadUint16 reads a big-endian u16 operand.
func ReadUint16(ins Instructions) uint16 {
	return binary.BigEndian.Uint16(ins)
}

// ReadUint8 reads a u8 operand.
func ReadUint8(ins Instructions) uint8 {
	return ins[0]
}

// jumpPlaceholder is written into a forward jump until it is back-patched.
const jumpPlaceholder = 0xFFFF

// patchUint16 overwrites the u16 operand starting at pos.
func (ins Instructions) patchUint16(pos int, value int) {
	binary.BigEndian.PutUint16(ins[pos:], uint16(value))
}
