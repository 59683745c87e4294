package evaluator

import (
	"sort"

	"github.com/chazu/monkey/vm"
)

// Environment maps names to values for one lexical level. Function calls
// get a fresh Environment enclosed by the function's defining one.
type Environment struct {
	store map[string]vm.Value
	outer *Environment
}

// NewEnvironment creates a top-level environment.
func NewEnvironment() *Environment {
	return &Environment{store: make(map[string]vm.Value)}
}

// NewEnclosedEnvironment creates an environment whose misses fall through
// to outer.
func NewEnclosedEnvironment(outer *Environment) *Environment {
	env := NewEnvironment()
	env.outer = outer
	return env
}

// Get looks name up here and then outward. A declared name that was never
// set reads as Nil.
func (e *Environment) Get(name string) (vm.Value, bool) {
	v, ok := e.store[name]
	if !ok && e.outer != nil {
		return e.outer.Get(name)
	}
	if ok && v == nil {
		return vm.Nil, true
	}
	return v, ok
}

// Set binds name in this level, replacing any earlier binding here.
func (e *Environment) Set(name string, val vm.Value) vm.Value {
	e.store[name] = val
	return val
}

// declare binds name in this level without a value.
func (e *Environment) declare(name string) {
	e.store[name] = nil
}

// IsSet reports whether name is bound in this level and holds a value.
func (e *Environment) IsSet(name string) bool {
	v, ok := e.store[name]
	return ok && v != nil
}

// Forget removes name from this level.
func (e *Environment) Forget(name string) {
	delete(e.store, name)
}

// Names lists the names bound directly in this level, sorted.
func (e *Environment) Names() []string {
	names := make([]string, 0, len(e.store))
	for name := range e.store {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
