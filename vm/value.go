package vm

import (
	"fmt"
	"strconv"
	"strings"
)

// Type is the tag reported by every Value.
type Type string

const (
	IntegerType          Type = "INTEGER"
	BooleanType          Type = "BOOLEAN"
	StringType           Type = "STRING"
	NullType             Type = "NULL"
	ArrayType            Type = "ARRAY"
	CompiledFunctionType Type = "COMPILED_FUNCTION"
	ClosureType          Type = "CLOSURE"
	BuiltinType          Type = "BUILTIN"
	ErrorType            Type = "ERROR"
	FunctionType         Type = "FUNCTION"
)

// Value is a Monkey runtime value.
// Every variant is self-describing; there is no implicit coercion between kinds.
type Value interface {
	Type() Type
	Inspect() string
}

// ---------------------------------------------------------------------------
// Scalars
// ---------------------------------------------------------------------------

// Integer is a 64-bit signed integer.
type Integer struct {
	Value int64
}

func (i *Integer) Type() Type      { return IntegerType }
func (i *Integer) Inspect() string { return strconv.FormatInt(i.Value, 10) }

// Boolean is a truth value. Only the True and False singletons exist.
type Boolean struct {
	Value bool
}

func (b *Boolean) Type() Type      { return BooleanType }
func (b *Boolean) Inspect() string { return strconv.FormatBool(b.Value) }

// String is an immutable piece of text.
type String struct {
	Value string
}

func (s *String) Type() Type      { return StringType }
func (s *String) Inspect() string { return s.Value }

// Null is the unit value.
type Null struct{}

func (n *Null) Type() Type      { return NullType }
func (n *Null) Inspect() string { return "null" }

// Pre-defined singletons
var (
	Nil   = &Null{}
	True  = &Boolean{Value: true}
	False = &Boolean{Value: false}
)

// NativeBool returns the Boolean singleton for b.
func NativeBool(b bool) *Boolean {
	if b {
		return True
	}
	return False
}

// IsTruthy reports whether v counts as true in a condition.
// Null and false are falsy; everything else, including 0 and "", is truthy.
func IsTruthy(v Value) bool {
	switch v := v.(type) {
	case *Boolean:
		return v.Value
	case *Null:
		return false
	case nil:
		return false
	default:
		return true
	}
}

// Equal implements == for every pair of values.
// Integers compare numerically, booleans by truth value, strings by content
// and null equals null. Everything else compares by identity.
func Equal(a, b Value) bool {
	switch a := a.(type) {
	case *Integer:
		if b, ok := b.(*Integer); ok {
			return a.Value == b.Value
		}
		return false
	case *Boolean:
		if b, ok := b.(*Boolean); ok {
			return a.Value == b.Value
		}
		return false
	case *String:
		if b, ok := b.(*String); ok {
			return a.Value == b.Value
		}
		return false
	case *Null:
		_, ok := b.(*Null)
		return ok
	}
	return a == b
}

// ---------------------------------------------------------------------------
// Arrays
// ---------------------------------------------------------------------------

// Array is an ordered, immutable sequence of values.
// Copying an *Array copies the handle, never the elements.
type Array struct {
	Elements []Value
}

// NewArray wraps elems without copying. The caller must not modify elems
// afterwards.
func NewArray(elems []Value) *Array {
	return &Array{Elements: elems}
}

func (a *Array) Type() Type { return ArrayType }

func (a *Array) Inspect() string {
	parts := make([]string, len(a.Elements))
	for i, e := range a.Elements {
		parts[i] = inspectElement(e)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// At returns the element at index, or Nil when index is out of range.
// Negative indexes never wrap.
func (a *Array) At(index int64) Value {
	if index < 0 || index >= int64(len(a.Elements)) {
		return Nil
	}
	return a.Elements[index]
}

// inspectElement quotes strings nested inside containers so that
// ["a", "b"] reads back unambiguously.
func inspectElement(v Value) string {
	if s, ok := v.(*String); ok {
		return strconv.Quote(s.Value)
	}
	return v.Inspect()
}

// ---------------------------------------------------------------------------
// Functions
// ---------------------------------------------------------------------------

// SourcePos maps the instruction at Offset back to a source position.
type SourcePos struct {
	Offset int
	Line   int
	Column int
}

// LookupPos returns the position of the last entry at or before offset.
// Entries must be sorted by Offset.
func LookupPos(positions []SourcePos, offset int) (line, column int) {
	for i := len(positions) - 1; i >= 0; i-- {
		if positions[i].Offset <= offset {
			return positions[i].Line, positions[i].Column
		}
	}
	return 0, 0
}

// CompiledFunction is a function body produced by the bytecode compiler.
type CompiledFunction struct {
	Instructions  []byte
	NumLocals     int
	NumParameters int
	Name          string      // binding name, empty for anonymous literals
	Positions     []SourcePos // debug positions, sorted by offset
}

func (f *CompiledFunction) Type() Type      { return CompiledFunctionType }
func (f *CompiledFunction) Inspect() string { return "compiled function" }

// Closure pairs a CompiledFunction with the free values it captured.
type Closure struct {
	Fn   *CompiledFunction
	Free []Value
}

func (c *Closure) Type() Type      { return ClosureType }
func (c *Closure) Inspect() string { return "function" }

// TypeName renders a type tag for error messages.
func TypeName(v Value) string {
	if v == nil {
		return "<nil>"
	}
	return string(v.Type())
}

// Describe renders v for debug logs, e.g. INTEGER(5).
func Describe(v Value) string {
	if v == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s(%s)", v.Type(), v.Inspect())
}
