package bytecode

import (
	"strings"
	"testing"
)

func TestAllOpcodesHaveMetadata(t *testing.T) {
	for _, op := range AllOpcodes() {
		info := GetOpcodeInfo(op)
		if info.Name == "" || strings.HasPrefix(info.Name, "UNKNOWN") {
			t.Errorf("Opcode 0x%02X has no metadata", byte(op))
		}
		if !strings.HasPrefix(info.Name, "Op") {
			t.Errorf("Opcode 0x%02X name %q lacks Op prefix", byte(op), info.Name)
		}
	}
}

func TestOpcodeCount(t *testing.T) {
	if got := OpcodeCount(); got != 33 {
		t.Errorf("OpcodeCount() = %d, want 33", got)
	}
	if got := len(AllOpcodes()); got != OpcodeCount() {
		t.Errorf("len(AllOpcodes()) = %d, want %d", got, OpcodeCount())
	}

	names := make(map[string]Opcode)
	for _, op := range AllOpcodes() {
		name := GetOpcodeInfo(op).Name
		if prev, ok := names[name]; ok {
			t.Errorf("opcodes 0x%02X and 0x%02X share the name %s", byte(prev), byte(op), name)
		}
		names[name] = op
	}
}

func TestOpcodeString(t *testing.T) {
	tests := []struct {
		op   Opcode
		want string
	}{
		{OpConstant, "OpConstant"},
		{OpPop, "OpPop"},
		{OpNull, "OpNull"},
		{OpAdd, "OpAdd"},
		{OpMinus, "OpMinus"},
		{OpEqual, "OpEqual"},
		{OpBang, "OpBang"},
		{OpJumpNotTruthy, "OpJumpNotTruthy"},
		{OpGetGlobal, "OpGetGlobal"},
		{OpCurrentClosure, "OpCurrentClosure"},
		{OpArray, "OpArray"},
		{OpClosure, "OpClosure"},
		{OpReturnValue, "OpReturnValue"},
	}

	for _, tt := range tests {
		if got := tt.op.String(); got != tt.want {
			t.Errorf("Opcode(0x%02X).String() = %q, want %q", byte(tt.op), got, tt.want)
		}
	}
}

func TestUnknownOpcode(t *testing.T) {
	op := Opcode(0xEE)
	if got := op.String(); !strings.HasPrefix(got, "UNKNOWN") {
		t.Errorf("unknown opcode String() = %q, want UNKNOWN prefix", got)
	}

	_, err := Lookup(op)
	if err == nil {
		t.Fatal("Lookup(0xEE) succeeded, want error")
	}
	if want := "opcode 0xEE undefined"; err.Error() != want {
		t.Errorf("Lookup error = %q, want %q", err.Error(), want)
	}
}

func TestOpcodeOperandLen(t *testing.T) {
	tests := []struct {
		op         Opcode
		operandLen int
		instrLen   int
	}{
		{OpPop, 0, 1},
		{OpAdd, 0, 1},
		{OpConstant, 2, 3},
		{OpJump, 2, 3},
		{OpJumpNotTruthy, 2, 3},
		{OpGetGlobal, 2, 3},
		{OpSetGlobal, 2, 3},
		{OpGetLocal, 1, 2},
		{OpSetLocal, 1, 2},
		{OpGetBuiltin, 1, 2},
		{OpGetFree, 1, 2},
		{OpArray, 2, 3},
		{OpClosure, 3, 4},
		{OpCall, 1, 2},
		{OpReturn, 0, 1},
	}

	for _, tt := range tests {
		if got := tt.op.OperandLen(); got != tt.operandLen {
			t.Errorf("%s.OperandLen() = %d, want %d", tt.op, got, tt.operandLen)
		}
		if got := tt.op.InstructionLen(); got != tt.instrLen {
			t.Errorf("%s.InstructionLen() = %d, want %d", tt.op, got, tt.instrLen)
		}
	}
}

func TestIsJump(t *testing.T) {
	for _, op := range AllOpcodes() {
		want := op == OpJump || op == OpJumpNotTruthy
		if got := op.IsJump(); got != want {
			t.Errorf("%s.IsJump() = %v, want %v", op, got, want)
		}
	}
}

func TestIsReturn(t *testing.T) {
	for _, op := range AllOpcodes() {
		want := op == OpReturnValue || op == OpReturn
		if got := op.IsReturn(); got != want {
			t.Errorf("%s.IsReturn() = %v, want %v", op, got, want)
		}
	}
}

func TestOpcodeRanges(t *testing.T) {
	tests := []struct {
		name     string
		ops      []Opcode
		min, max byte
	}{
		{"stack", []Opcode{OpConstant, OpPop, OpTrue, OpFalse, OpNull}, 0x00, 0x0F},
		{"arithmetic", []Opcode{OpAdd, OpSub, OpMul, OpDiv, OpMod, OpMinus}, 0x10, 0x1F},
		{"comparison", []Opcode{OpEqual, OpNotEqual, OpLessThan, OpGreaterThan, OpAnd, OpOr, OpBang}, 0x20, 0x2F},
		{"control", []Opcode{OpJump, OpJumpNotTruthy}, 0x30, 0x3F},
		{"bindings", []Opcode{OpGetGlobal, OpSetGlobal, OpGetLocal, OpSetLocal, OpGetBuiltin, OpGetFree, OpCurrentClosure}, 0x40, 0x4F},
		{"composite", []Opcode{OpArray, OpIndex}, 0x50, 0x5F},
		{"functions", []Opcode{OpClosure, OpCall, OpReturnValue, OpReturn}, 0x60, 0x6F},
	}

	for _, tt := range tests {
		for _, op := range tt.ops {
			if byte(op) < tt.min || byte(op) > tt.max {
				t.Errorf("%s opcode %s = 0x%02X outside 0x%02X-0x%02X", tt.name, op, byte(op), tt.min, tt.max)
			}
		}
	}
}
