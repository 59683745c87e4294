package vm

import (
	"fmt"
	"io"
)

// BuiltinFunc is the Go implementation of a built-in function.
// out receives anything the built-in prints.
type BuiltinFunc func(out io.Writer, args ...Value) (Value, error)

// Builtin is a host-implemented function value.
type Builtin struct {
	Name  string
	Arity int // -1 for variadic
	Fn    BuiltinFunc
}

func (b *Builtin) Type() Type      { return BuiltinType }
func (b *Builtin) Inspect() string { return "builtin function" }

// Call checks the argument count and invokes the built-in.
func (b *Builtin) Call(out io.Writer, args ...Value) (Value, error) {
	if b.Arity >= 0 && len(args) != b.Arity {
		return nil, Errorf(TypeError, "wrong number of arguments to `%s`: want=%d, got=%d",
			b.Name, b.Arity, len(args))
	}
	if out == nil {
		out = io.Discard
	}
	result, err := b.Fn(out, args...)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return Nil, nil
	}
	return result, nil
}

// Builtins is the fixed built-in table. A Builtin symbol's index is the
// position in this slice, so entries must only ever be appended.
var Builtins = []*Builtin{
	{Name: "len", Arity: 1, Fn: builtinLen},
	{Name: "puts", Arity: -1, Fn: builtinPuts},
	{Name: "first", Arity: 1, Fn: builtinFirst},
	{Name: "last", Arity: 1, Fn: builtinLast},
	{Name: "rest", Arity: 1, Fn: builtinRest},
	{Name: "push", Arity: 2, Fn: builtinPush},
}

// LookupBuiltin finds a built-in by name.
func LookupBuiltin(name string) (*Builtin, int, bool) {
	for i, b := range Builtins {
		if b.Name == name {
			return b, i, true
		}
	}
	return nil, -1, false
}

func builtinLen(_ io.Writer, args ...Value) (Value, error) {
	switch arg := args[0].(type) {
	case *String:
		return &Integer{Value: int64(len(arg.Value))}, nil
	case *Array:
		return &Integer{Value: int64(len(arg.Elements))}, nil
	default:
		return nil, Errorf(TypeError, "argument to `len` not supported, got %s", TypeName(arg))
	}
}

func builtinPuts(out io.Writer, args ...Value) (Value, error) {
	for _, arg := range args {
		if _, err := fmt.Fprintln(out, arg.Inspect()); err != nil {
			return nil, WrapError(InternalError, err, "puts: %v", err)
		}
	}
	return Nil, nil
}

func arrayArg(name string, v Value) (*Array, error) {
	arr, ok := v.(*Array)
	if !ok {
		return nil, Errorf(TypeError, "argument to `%s` must be ARRAY, got %s", name, TypeName(v))
	}
	return arr, nil
}

func builtinFirst(_ io.Writer, args ...Value) (Value, error) {
	arr, err := arrayArg("first", args[0])
	if err != nil {
		return nil, err
	}
	if len(arr.Elements) == 0 {
		return Nil, nil
	}
	return arr.Elements[0], nil
}

func builtinLast(_ io.Writer, args ...Value) (Value, error) {
	arr, err := arrayArg("last", args[0])
	if err != nil {
		return nil, err
	}
	n := len(arr.Elements)
	if n == 0 {
		return Nil, nil
	}
	return arr.Elements[n-1], nil
}

func builtinRest(_ io.Writer, args ...Value) (Value, error) {
	arr, err := arrayArg("rest", args[0])
	if err != nil {
		return nil, err
	}
	n := len(arr.Elements)
	if n == 0 {
		return Nil, nil
	}
	rest := make([]Value, n-1)
	copy(rest, arr.Elements[1:])
	return NewArray(rest), nil
}

func builtinPush(_ io.Writer, args ...Value) (Value, error) {
	arr, err := arrayArg("push", args[0])
	if err != nil {
		return nil, err
	}
	n := len(arr.Elements)
	elems := make([]Value, n+1)
	copy(elems, arr.Elements)
	elems[n] = args[1]
	return NewArray(elems), nil
}
