package bytecode

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestInstructionsString(t *testing.T) {
	instructions := []Instructions{
		Make(OpAdd),
		Make(OpGetLocal, 1),
		Make(OpConstant, 2),
		Make(OpConstant, 65535),
		Make(OpClosure, 65535, 255),
	}

	expected := `0000 OpAdd
0001 OpGetLocal 1
0003 OpConstant 2
0006 OpConstant 65535
0009 OpClosure 65535 255
`

	if diff := cmp.Diff(expected, concatInstructions(instructions).String()); diff != "" {
		t.Errorf("instructions wrongly formatted (-want +got):\n%s", diff)
	}
}

func TestInstructionsStringUnknownOpcode(t *testing.T) {
	ins := Instructions{byte(OpPop), 0xEE}
	lines := ins.Lines()
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if lines[1] != "0001 ERROR: opcode 0xEE undefined" {
		t.Errorf("line = %q", lines[1])
	}
}

func TestInstructionCount(t *testing.T) {
	ins := concatInstructions([]Instructions{
		Make(OpConstant, 0),
		Make(OpConstant, 1),
		Make(OpAdd),
		Make(OpPop),
	})
	if got := ins.InstructionCount(); got != 4 {
		t.Errorf("InstructionCount() = %d, want 4", got)
	}
}

func TestDisassembleEmpty(t *testing.T) {
	bc := compileProgram(t, "")
	output := bc.Disassemble()

	if output != "; === main ===\n" {
		t.Errorf("Disassemble() = %q", output)
	}
}

func TestDisassembleProgram(t *testing.T) {
	bc := compileProgram(t, `let greet = fn(name) { "hi " + name }; greet("bob"); fn() { 1 }`)
	output := bc.Disassemble()

	for _, want := range []string{
		"; === main ===",
		"OpClosure 1 0",
		"OpSetGlobal 0",
		"; === fn greet (constant 1) ===",
		"; Parameters: 1  Locals: 1",
		"OpGetLocal 0",
		"OpReturnValue",
		"; === fn <anonymous> (constant 4) ===",
		"; Constants:",
		`;   [  0] "hi "`,
		`;   [  2] "bob"`,
		";   [  3] 1",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("disassembly missing %q:\n%s", want, output)
		}
	}
}

func TestDisassembleTruncatesLongStrings(t *testing.T) {
	bc := compileProgram(t, `"`+strings.Repeat("x", 60)+`"`)
	output := bc.Disassemble()

	if !strings.Contains(output, strings.Repeat("x", 37)+"...") {
		t.Errorf("long string not truncated:\n%s", output)
	}
	if strings.Contains(output, strings.Repeat("x", 38)) {
		t.Errorf("long string shown in full:\n%s", output)
	}
}
