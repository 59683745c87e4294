package vm

import (
	"errors"
	"testing"
)

func TestInspect(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{&Integer{Value: 42}, "42"},
		{&Integer{Value: -7}, "-7"},
		{True, "true"},
		{False, "false"},
		{&String{Value: "hello"}, "hello"},
		{Nil, "null"},
		{NewArray([]Value{&Integer{Value: 1}, &String{Value: "two"}, Nil}), `[1, "two", null]`},
		{NewArray(nil), "[]"},
		{&Closure{Fn: &CompiledFunction{}}, "function"},
		{&CompiledFunction{}, "compiled function"},
		{Builtins[0], "builtin function"},
		{Errorf(TypeError, "boom"), "ERROR: boom"},
	}

	for _, tc := range tests {
		if got := tc.v.Inspect(); got != tc.want {
			t.Errorf("%T.Inspect() = %q, want %q", tc.v, got, tc.want)
		}
	}
}

func TestIsTruthy(t *testing.T) {
	tests := []struct {
		v    Value
		want bool
	}{
		{True, true},
		{False, false},
		{Nil, false},
		{&Integer{Value: 0}, true},
		{&String{Value: ""}, true},
		{NewArray(nil), true},
	}

	for _, tc := range tests {
		if got := IsTruthy(tc.v); got != tc.want {
			t.Errorf("IsTruthy(%s) = %v, want %v", Describe(tc.v), got, tc.want)
		}
	}
}

func TestNativeBoolSingletons(t *testing.T) {
	if NativeBool(true) != True {
		t.Error("NativeBool(true) is not the True singleton")
	}
	if NativeBool(false) != False {
		t.Error("NativeBool(false) is not the False singleton")
	}
}

func TestEqual(t *testing.T) {
	arr := NewArray([]Value{&Integer{Value: 1}})
	tests := []struct {
		a, b Value
		want bool
	}{
		{&Integer{Value: 3}, &Integer{Value: 3}, true},
		{&Integer{Value: 3}, &Integer{Value: 4}, false},
		{True, True, true},
		{True, False, false},
		{&String{Value: "a"}, &String{Value: "a"}, true},
		{&String{Value: "a"}, &String{Value: "b"}, false},
		{Nil, Nil, true},
		{Nil, False, false},
		{&Integer{Value: 1}, True, false},
		{arr, arr, true},
		{arr, NewArray([]Value{&Integer{Value: 1}}), false},
	}

	for _, tc := range tests {
		if got := Equal(tc.a, tc.b); got != tc.want {
			t.Errorf("Equal(%s, %s) = %v, want %v", Describe(tc.a), Describe(tc.b), got, tc.want)
		}
	}
}

func TestArrayAt(t *testing.T) {
	arr := NewArray([]Value{&Integer{Value: 1}, &Integer{Value: 2}, &Integer{Value: 3}})

	if got := arr.At(1); !Equal(got, &Integer{Value: 2}) {
		t.Errorf("At(1) = %s, want 2", got.Inspect())
	}
	for _, idx := range []int64{-1, 3, 100} {
		if got := arr.At(idx); got != Nil {
			t.Errorf("At(%d) = %s, want null", idx, got.Inspect())
		}
	}
}

func TestErrorUnwrapsToKindSentinel(t *testing.T) {
	tests := []struct {
		kind     ErrorKind
		sentinel error
	}{
		{SyntaxError, ErrSyntax},
		{ResolutionError, ErrResolution},
		{TypeError, ErrType},
		{ResourceError, ErrResource},
		{InternalError, ErrInternal},
	}

	for _, tc := range tests {
		err := error(Errorf(tc.kind, "x"))
		if !errors.Is(err, tc.sentinel) {
			t.Errorf("errors.Is(%v, %v) = false, want true", err, tc.sentinel)
		}
		if KindOf(err) != tc.kind {
			t.Errorf("KindOf(%v) = %v, want %v", err, KindOf(err), tc.kind)
		}
	}
}

func TestErrorCause(t *testing.T) {
	cause := errors.New("underlying")
	err := WrapError(ResourceError, cause, "stopped")

	if !errors.Is(err, cause) {
		t.Error("wrapped error does not match its cause")
	}
	if !errors.Is(err, ErrResource) {
		t.Error("wrapped error does not match its kind")
	}
}

func TestErrorString(t *testing.T) {
	err := Errorf(ResolutionError, "identifier not found: x").At(3, 5)
	if got, want := err.Error(), "ResolutionError: line 3: identifier not found: x"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if got, want := Errorf(TypeError, "bad").Error(), "TypeError: bad"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestAsErrorForeign(t *testing.T) {
	err := AsError(errors.New("plain"))
	if err.Kind != InternalError {
		t.Errorf("AsError(foreign).Kind = %v, want InternalError", err.Kind)
	}
	if AsError(nil) != nil {
		t.Error("AsError(nil) != nil")
	}
}
