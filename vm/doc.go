// Package vm implements the Monkey object model shared by the bytecode
// machine and the tree-walking evaluator.
//
// This package contains:
//   - The Value union (integers, booleans, strings, null, arrays, functions, closures)
//   - The Error value, which doubles as the Go error returned for every fault
//   - The built-in function table addressed by Builtin symbols
package vm
