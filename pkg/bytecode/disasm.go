package bytecode

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/chazu/monkey/vm"
)

// String renders one instruction per line, e.g. "0000 OpConstant 1".
func (ins Instructions) String() string {
	var sb strings.Builder
	for _, line := range ins.Lines() {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Lines returns the disassembly as a slice of lines.
func (ins Instructions) Lines() []string {
	var lines []string
	offset := 0
	for offset < len(ins) {
		line, instrLen := ins.disassembleInstruction(offset)
		lines = append(lines, fmt.Sprintf("%04d %s", offset, line))
		offset += instrLen
	}
	return lines
}

// disassembleInstruction formats the instruction at offset and returns its
// length.
func (ins Instructions) disassembleInstruction(offset int) (string, int) {
	info, err := Lookup(Opcode(ins[offset]))
	if err != nil {
		return "ERROR: " + err.Error(), 1
	}

	operands, read := ReadOperands(info, ins[offset+1:])
	if len(info.OperandWidths) == 0 {
		return info.Name, 1 + read
	}

	parts := make([]string, 0, 1+len(operands))
	parts = append(parts, info.Name)
	for _, o := range operands {
		parts = append(parts, strconv.Itoa(o))
	}
	return strings.Join(parts, " "), 1 + read
}

// InstructionCount returns the number of instructions in the stream.
func (ins Instructions) InstructionCount() int {
	count := 0
	offset := 0
	for offset < len(ins) {
		offset += Opcode(ins[offset]).InstructionLen()
		count++
	}
	return count
}

// Disassemble renders the top-level stream followed by every compiled
// function in the constant pool.
func (bc *Bytecode) Disassemble() string {
	var sb strings.Builder

	sb.WriteString("; === main ===\n")
	sb.WriteString(bc.Instructions.String())

	var consts []string
	for i, c := range bc.Constants {
		switch c := c.(type) {
		case *vm.CompiledFunction:
			name := c.Name
			if name == "" {
				name = "<anonymous>"
			}
			fmt.Fprintf(&sb, "\n; === fn %s (constant %d) ===\n", name, i)
			fmt.Fprintf(&sb, "; Parameters: %d  Locals: %d\n", c.NumParameters, c.NumLocals)
			sb.WriteString(Instructions(c.Instructions).String())
		case *vm.String:
			display := c.Value
			if len(display) > 40 {
				display = display[:37] + "..."
			}
			consts = append(consts, fmt.Sprintf(";   [%3d] %q", i, display))
		default:
			consts = append(consts, fmt.Sprintf(";   [%3d] %s", i, c.Inspect()))
		}
	}

	if len(consts) > 0 {
		sb.WriteString("\n; Constants:\n")
		sb.WriteString(strings.Join(consts, "\n"))
		sb.WriteByte('\n')
	}
	return sb.String()
}
