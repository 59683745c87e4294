// Package bytecode compiles Monkey programs to a compact instruction stream
// and executes them on a stack-based virtual machine.
//
// # Architecture Overview
//
//   - Opcodes: stack-based instructions covering constants, arithmetic,
//     comparison, jumps, bindings, arrays, closures and calls. Each opcode
//     has an entry in the OpcodeInfo table giving its operand widths.
//
//   - Instructions: one opcode byte followed by big-endian fixed-width
//     operands. Make encodes and ReadOperands decodes.
//
//   - SymbolTable: resolves names to Global, Local, Free, Builtin or
//     Function symbols. A name found in an enclosing function level is
//     hoisted into the free list of every level in between; globals are
//     referenced directly at any depth.
//
//   - Compiler: a single pass over the AST. Forward jumps are emitted with
//     a placeholder target and back-patched once the target is known.
//
//   - VM: executes Bytecode with an explicit frame stack, so Monkey-level
//     recursion never consumes Go stack. The operand stack and frame stack
//     are bounded; exhausting either is a ResourceError.
//
// # Closures
//
// Function literals compile to a CompiledFunction constant. At run time
// OpClosure pairs it with the values of its free variables, loaded just
// before the instruction in capture order. Inside the body, OpGetFree reads
// them back and OpCurrentClosure pushes the running closure itself, which is
// how a let-bound function calls itself.
//
// # Faults
//
// Run never panics on user programs. Type mismatches, bad arity, stack
// overflow, an exhausted step budget and context cancellation all come back
// as *vm.Error values positioned at the source line of the faulting
// instruction. Globals written before the fault remain in place.
package bytecode
