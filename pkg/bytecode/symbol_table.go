package bytecode

import (
	"sort"

	"github.com/chazu/monkey/vm"
)

// SymbolScope says where a resolved name lives at run time.
type SymbolScope string

const (
	GlobalScope   SymbolScope = "GLOBAL"
	LocalScope    SymbolScope = "LOCAL"
	FreeScope     SymbolScope = "FREE"
	BuiltinScope  SymbolScope = "BUILTIN"
	FunctionScope SymbolScope = "FUNCTION"
)

// Symbol is a resolved name.
type Symbol struct {
	Name  string
	Scope SymbolScope
	Index int
}

// SymbolTable is one lexical level: the global level or a function body.
type SymbolTable struct {
	Outer *SymbolTable

	// FreeSymbols holds the enclosing-scope symbols this level hoisted, in
	// capture order. The compiler loads them before OpClosure.
	FreeSymbols []Symbol

	store          map[string]Symbol
	numDefinitions int
}

// NewSymbolTable creates the global level.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{store: make(map[string]Symbol)}
}

// NewEnclosedSymbolTable creates a function level nested in outer.
func NewEnclosedSymbolTable(outer *SymbolTable) *SymbolTable {
	s := NewSymbolTable()
	s.Outer = outer
	return s
}

// Define allocates the next index for name. Redefining a local shadows the
// old binding with a fresh slot; redefining a global reuses its slot, so
// functions compiled earlier observe the new value.
func (s *SymbolTable) Define(name string) Symbol {
	if s.Outer == nil {
		if prev, ok := s.store[name]; ok && prev.Scope == GlobalScope {
			return prev
		}
	}
	symbol := Symbol{Name: name, Index: s.numDefinitions}
	if s.Outer == nil {
		symbol.Scope = GlobalScope
	} else {
		symbol.Scope = LocalScope
	}
	s.store[name] = symbol
	s.numDefinitions++
	return symbol
}

// DefineBuiltin binds name to the built-in at index.
func (s *SymbolTable) DefineBuiltin(index int, name string) Symbol {
	symbol := Symbol{Name: name, Index: index, Scope: BuiltinScope}
	s.store[name] = symbol
	return symbol
}

// DefineFunctionName binds the name of the function being compiled at this
// level, so the body can refer to its own closure.
func (s *SymbolTable) DefineFunctionName(name string) Symbol {
	symbol := Symbol{Name: name, Index: 0, Scope: FunctionScope}
	s.store[name] = symbol
	return symbol
}

func (s *SymbolTable) defineFree(original Symbol) Symbol {
	s.FreeSymbols = append(s.FreeSymbols, original)

	symbol := Symbol{Name: original.Name, Index: len(s.FreeSymbols) - 1, Scope: FreeScope}
	s.store[original.Name] = symbol
	return symbol
}

// Resolve looks name up in this level and then outward. A hit in an
// enclosing function level becomes a free variable of every level in
// between; globals and built-ins are never captured. Names unknown to every
// level resolve against the built-in table.
func (s *SymbolTable) Resolve(name string) (Symbol, bool) {
	if symbol, ok := s.store[name]; ok {
		return symbol, true
	}

	if s.Outer == nil {
		if _, index, ok := vm.LookupBuiltin(name); ok {
			return Symbol{Name: name, Index: index, Scope: BuiltinScope}, true
		}
		return Symbol{}, false
	}

	symbol, ok := s.Outer.Resolve(name)
	if !ok {
		return symbol, false
	}
	if symbol.Scope == GlobalScope || symbol.Scope == BuiltinScope {
		return symbol, true
	}
	return s.defineFree(symbol), true
}

// Forget removes name from this level. Its slot stays allocated, so later
// definitions never reuse it.
func (s *SymbolTable) Forget(name string) {
	delete(s.store, name)
}

// NumDefinitions is the number of slots allocated at this level. For a
// function level it is the local count, parameters included.
func (s *SymbolTable) NumDefinitions() int {
	return s.numDefinitions
}

// Names lists the global and local bindings visible at this level, ordered
// by index. Shadowed bindings are omitted.
func (s *SymbolTable) Names() []Symbol {
	out := make([]Symbol, 0, len(s.store))
	for _, symbol := range s.store {
		if symbol.Scope == GlobalScope || symbol.Scope == LocalScope {
			out = append(out, symbol)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// SymbolTableSnapshot is a saved copy of one level.
type SymbolTableSnapshot struct {
	store          map[string]Symbol
	numDefinitions int
	numFree        int
}

// Snapshot saves this level so a failed compile unit can be rolled back.
func (s *SymbolTable) Snapshot() SymbolTableSnapshot {
	store := make(map[string]Symbol, len(s.store))
	for k, v := range s.store {
		store[k] = v
	}
	return SymbolTableSnapshot{store: store, numDefinitions: s.numDefinitions, numFree: len(s.FreeSymbols)}
}

// Restore rolls this level back to snap.
func (s *SymbolTable) Restore(snap SymbolTableSnapshot) {
	s.store = snap.store
	s.numDefinitions = snap.numDefinitions
	s.FreeSymbols = s.FreeSymbols[:snap.numFree]
}
