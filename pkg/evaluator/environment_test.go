package evaluator

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/chazu/monkey/vm"
)

func TestEnvironmentScoping(t *testing.T) {
	outer := NewEnvironment()
	outer.Set("a", &vm.Integer{Value: 1})
	outer.Set("b", &vm.Integer{Value: 2})

	inner := NewEnclosedEnvironment(outer)
	inner.Set("b", &vm.Integer{Value: 20})

	tests := []struct {
		env  *Environment
		name string
		want string
		ok   bool
	}{
		{inner, "a", "1", true},
		{inner, "b", "20", true},
		{outer, "b", "2", true},
		{outer, "missing", "", false},
	}

	for _, tt := range tests {
		got, ok := tt.env.Get(tt.name)
		if ok != tt.ok {
			t.Errorf("Get(%q) ok = %v, want %v", tt.name, ok, tt.ok)
			continue
		}
		if ok && got.Inspect() != tt.want {
			t.Errorf("Get(%q) = %s, want %s", tt.name, got.Inspect(), tt.want)
		}
	}

	if diff := cmp.Diff([]string{"a", "b"}, outer.Names()); diff != "" {
		t.Errorf("outer names mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"b"}, inner.Names()); diff != "" {
		t.Errorf("inner names mismatch (-want +got):\n%s", diff)
	}
}

func TestEnvironmentDeclareAndForget(t *testing.T) {
	env := NewEnvironment()
	env.declare("d")
	env.Set("s", &vm.Integer{Value: 1})

	v, ok := env.Get("d")
	if !ok || v != vm.Nil {
		t.Errorf("Get(d) = %v, %v, want Nil, true", v, ok)
	}

	tests := []struct {
		name string
		want bool
	}{
		{"d", false},
		{"s", true},
		{"missing", false},
	}
	for _, tt := range tests {
		if got := env.IsSet(tt.name); got != tt.want {
			t.Errorf("IsSet(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}

	env.Forget("d")
	if _, ok := env.Get("d"); ok {
		t.Error("Get(d) after Forget found a binding")
	}
	if diff := cmp.Diff([]string{"s"}, env.Names()); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
}
