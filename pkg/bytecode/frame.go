package bytecode

import "github.com/chazu/monkey/vm"

// Frame is one in-progress call: the running closure, its instruction
// pointer and the stack slot where its locals begin.
type Frame struct {
	cl          *vm.Closure
	ip          int
	basePointer int
}

// NewFrame creates a frame for cl whose locals start at basePointer.
func NewFrame(cl *vm.Closure, basePointer int) *Frame {
	return &Frame{cl: cl, ip: -1, basePointer: basePointer}
}

// Instructions returns the code of the running function.
func (f *Frame) Instructions() Instructions {
	return f.cl.Fn.Instructions
}

// Closure returns the running closure.
func (f *Frame) Closure() *vm.Closure {
	return f.cl
}
