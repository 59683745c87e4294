package evaluator

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/chazu/monkey/compiler"
	"github.com/chazu/monkey/vm"
)

func testEval(t *testing.T, input string, opts ...Option) (vm.Value, error) {
	t.Helper()
	program, err := compiler.Parse(input)
	if err != nil {
		t.Fatalf("parse %q: %v", input, err)
	}
	return New(opts...).Eval(context.Background(), program, NewEnvironment())
}

func runEvalTests(t *testing.T, tests []struct {
	input    string
	expected string
}) {
	t.Helper()
	for _, tt := range tests {
		got, err := testEval(t, tt.input)
		if err != nil {
			t.Errorf("%q: unexpected error %v", tt.input, err)
			continue
		}
		if got == nil {
			t.Errorf("%q: no value, want %s", tt.input, tt.expected)
			continue
		}
		if got.Inspect() != tt.expected {
			t.Errorf("%q = %s, want %s", tt.input, got.Inspect(), tt.expected)
		}
	}
}

func TestEvalIntegerExpression(t *testing.T) {
	runEvalTests(t, []struct {
		input    string
		expected string
	}{
		{"5", "5"},
		{"-5", "-5"},
		{"5 + 5 + 5 + 5 - 10", "10"},
		{"2 * 2 * 2 * 2 * 2", "32"},
		{"-50 + 100 + -50", "0"},
		{"20 + 2 * -10", "0"},
		{"3 * (3 * 3) + 10", "37"},
		{"(5 + 10 * 2 + 15 / 3) * 2 + -10", "50"},
		{"-7 / 2", "-3"},
		{"-7 % 3", "-1"},
	})
}

func TestEvalBooleanExpression(t *testing.T) {
	runEvalTests(t, []struct {
		input    string
		expected string
	}{
		{"true", "true"},
		{"1 < 2", "true"},
		{"1 > 2", "false"},
		{"1 == 1", "true"},
		{"1 != 2", "true"},
		{"(1 < 2) == true", "true"},
		{`"a" == "a"`, "true"},
		{`1 == "1"`, "false"},
		{"!5", "false"},
		{"!!true", "true"},
		{"true && false", "false"},
		{"false || true", "true"},
	})
}

func TestIfElseExpressions(t *testing.T) {
	runEvalTests(t, []struct {
		input    string
		expected string
	}{
		{"if (true) { 10 }", "10"},
		{"if (false) { 10 }", "null"},
		{"if (1) { 10 }", "10"},
		{"if (0) { 10 }", "10"},
		{"if (1 > 2) { 10 } else { 20 }", "20"},
		{"if (true) { }", "null"},
		{"if (true) { let a = 1; }", "null"},
	})
}

func TestReturnStatements(t *testing.T) {
	runEvalTests(t, []struct {
		input    string
		expected string
	}{
		{"return 10;", "10"},
		{"return 10; 9;", "10"},
		{"9; return 2 * 5; 9;", "10"},
		{"if (10 > 1) { if (10 > 1) { return 10; } return 1; }", "10"},
		{"let f = fn(x) { return x; x + 10; }; f(10);", "10"},
		{"let f = fn(x) { let result = x + 10; return result; return 10; }; f(10);", "20"},
		{"return;", "null"},
	})
}

func TestLetStatements(t *testing.T) {
	runEvalTests(t, []struct {
		input    string
		expected string
	}{
		{"let a = 5; a;", "5"},
		{"let a = 5 * 5; a;", "25"},
		{"let a = 5; let b = a; let c = a + b + 5; c;", "15"},
		{"let x = 5; let x = 10; x;", "10"},
		{"let x = 1; let x = x + 1; x", "2"},
	})
}

func TestLetInArmNotTaken(t *testing.T) {
	runEvalTests(t, []struct {
		input    string
		expected string
	}{
		{"if (false) { let z = 1 }; z", "null"},
		{"if (true) { 1 } else { let z = 1 }; z", "null"},
		{"let z = 5; if (false) { let z = 1 }; z", "5"},
		{"if (true) { let z = 1 } else { let z = 2 }; z", "1"},
		{"if (false) { if (true) { let z = 1 } }; z", "null"},
		{"fn() { if (false) { let z = 1 }; z }()", "null"},
		{"fn(p) { if (false) { let p = 1 }; p }(5)", "null"},
		{"let f = fn() { if (false) { let f = 1 }; f }; f()", "null"},
		{"let z = 7; fn() { if (false) { let z = 1 }; z }()", "null"},
	})

	_, err := testEval(t, "if (false) { let g = fn() { let inner = 1; inner } }; inner")
	if vm.KindOf(err) != vm.ResolutionError {
		t.Errorf("inner: err = %v, want ResolutionError", err)
	}
}

func TestSkippedLetIsDeclaredNotSet(t *testing.T) {
	program, err := compiler.Parse("if (false) { let z = 1 };")
	if err != nil {
		t.Fatal(err)
	}
	env := NewEnvironment()
	if _, err := New().Eval(context.Background(), program, env); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"z"}, env.Names()); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
	if env.IsSet("z") {
		t.Error("IsSet(z) = true, want false")
	}
}

func TestProgramEndingInLetHasNoValue(t *testing.T) {
	got, err := testEval(t, "let a = 5;")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("got %s, want no value", vm.Describe(got))
	}
}

func TestFunctionObject(t *testing.T) {
	got, err := testEval(t, "fn(x) { x + 2; };")
	if err != nil {
		t.Fatal(err)
	}
	fn, ok := got.(*Function)
	if !ok {
		t.Fatalf("got %s, want FUNCTION", vm.Describe(got))
	}
	if len(fn.Parameters) != 1 || fn.Parameters[0].Name != "x" {
		t.Errorf("parameters = %v", fn.Parameters)
	}
	if fn.Inspect() != "function" {
		t.Errorf("Inspect() = %q, want function", fn.Inspect())
	}
	if fn.Type() != vm.FunctionType {
		t.Errorf("Type() = %s", fn.Type())
	}
}

func TestFunctionApplication(t *testing.T) {
	runEvalTests(t, []struct {
		input    string
		expected string
	}{
		{"let identity = fn(x) { x; }; identity(5);", "5"},
		{"let identity = fn(x) { return x; }; identity(5);", "5"},
		{"let double = fn(x) { x * 2; }; double(5);", "10"},
		{"let add = fn(x, y) { x + y; }; add(5, 5);", "10"},
		{"let add = fn(x, y) { x + y; }; add(5 + 5, add(5, 5));", "20"},
		{"fn(x) { x; }(5)", "5"},
		{"let noReturn = fn() { }; noReturn();", "null"},
		{"let letOnly = fn() { let a = 1; }; letOnly();", "null"},
	})
}

func TestClosures(t *testing.T) {
	runEvalTests(t, []struct {
		input    string
		expected string
	}{
		{`let newAdder = fn(a) { fn(b) { a + b } };
		  let add2 = newAdder(2);
		  add2(3);`, "5"},
		{`let a = 1;
		  let newAdderOuter = fn(b) { fn(c) { fn(d) { a + b + c + d }; }; };
		  newAdderOuter(2)(3)(8);`, "14"},
	})
}

func TestRecursiveFunctionKeepsItsName(t *testing.T) {
	runEvalTests(t, []struct {
		input    string
		expected string
	}{
		{`let countDown = fn(x) { if (x == 0) { 0 } else { countDown(x - 1) } };
		  let g = countDown;
		  let countDown = 5;
		  g(3);`, "0"},
		{`let fibonacci = fn(x) {
		    if (x == 0) { return 0; }
		    if (x == 1) { return 1; }
		    fibonacci(x - 1) + fibonacci(x - 2);
		  };
		  fibonacci(15);`, "610"},
	})
}

func TestStringsAndArrays(t *testing.T) {
	runEvalTests(t, []struct {
		input    string
		expected string
	}{
		{`"Hello" + " " + "World!"`, "Hello World!"},
		{"[1, 2 * 2, 3 + 3]", "[1, 4, 6]"},
		{`["a", 1]`, `["a", 1]`},
		{"[1, 2, 3][0]", "1"},
		{"let i = 0; [1][i];", "1"},
		{"[1, 2, 3][3]", "null"},
		{"[1, 2, 3][-1]", "null"},
	})
}

func TestBuiltinFunctions(t *testing.T) {
	runEvalTests(t, []struct {
		input    string
		expected string
	}{
		{`len("")`, "0"},
		{`len("four")`, "4"},
		{`len([1, 2])`, "2"},
		{`first([1, 2, 3])`, "1"},
		{`last([1, 2, 3])`, "3"},
		{`rest([1, 2, 3])`, "[2, 3]"},
		{`push([1], 2)`, "[1, 2]"},
		{`let len = fn(x) { 42 }; len([1])`, "42"},
	})
}

func TestPutsWritesToOutput(t *testing.T) {
	var out bytes.Buffer
	got, err := testEval(t, `puts("hi", [1]); 3`, WithOutput(&out))
	if err != nil {
		t.Fatal(err)
	}
	if got.Inspect() != "3" {
		t.Errorf("result = %s, want 3", got.Inspect())
	}
	if out.String() != "hi\n[1]\n" {
		t.Errorf("output = %q", out.String())
	}
}

func TestErrorHandling(t *testing.T) {
	tests := []struct {
		input   string
		kind    vm.ErrorKind
		message string
		line    int
	}{
		{"5 + true;", vm.TypeError, "type mismatch: INTEGER + BOOLEAN", 1},
		{"5 + true; 5;", vm.TypeError, "type mismatch: INTEGER + BOOLEAN", 1},
		{"-true", vm.TypeError, "unknown operator: -BOOLEAN", 1},
		{"true + false;", vm.TypeError, "unknown operator: BOOLEAN + BOOLEAN", 1},
		{"1;\nif (10 > 1) { true + false; }", vm.TypeError, "unknown operator: BOOLEAN + BOOLEAN", 2},
		{`"Hello" - "World"`, vm.TypeError, "unknown operator: STRING - STRING", 1},
		{"foobar", vm.ResolutionError, "identifier not found: foobar", 1},
		{"1 / 0", vm.TypeError, "division by zero", 1},
		{"1[0]", vm.TypeError, "index operator not supported: INTEGER", 1},
		{"1(2)", vm.TypeError, "calling non-function: INTEGER", 1},
		{"fn(a) { a }(1, 2)", vm.TypeError, "wrong number of arguments: want=1, got=2", 1},
		{"let f = fn(x) {\n  x + true\n};\nf(1)", vm.TypeError, "type mismatch: INTEGER + BOOLEAN", 2},
		{`len(1)`, vm.TypeError, "argument to `len` not supported, got INTEGER", 1},
	}

	for _, tt := range tests {
		_, err := testEval(t, tt.input)
		if err == nil {
			t.Errorf("%q: expected error", tt.input)
			continue
		}
		var e *vm.Error
		if !errors.As(err, &e) {
			t.Errorf("%q: error %v is not *vm.Error", tt.input, err)
			continue
		}
		if e.Kind != tt.kind || e.Message != tt.message {
			t.Errorf("%q: got %s %q, want %s %q", tt.input, e.Kind, e.Message, tt.kind, tt.message)
		}
		if e.Line != tt.line {
			t.Errorf("%q: line = %d, want %d", tt.input, e.Line, tt.line)
		}
	}
}

func TestDeepRecursionIsResourceError(t *testing.T) {
	_, err := testEval(t, `let f = fn(n) { if (n == 0) { 0 } else { f(n - 1) } }; f(100000)`)
	if !errors.Is(err, vm.ErrResource) {
		t.Fatalf("err = %v, want ResourceError", err)
	}

	got, err := testEval(t, `let f = fn(n) { if (n == 0) { 0 } else { f(n - 1) } }; f(50)`, WithMaxDepth(100))
	if err != nil {
		t.Fatalf("f(50) with depth 100: %v", err)
	}
	if got.Inspect() != "0" {
		t.Errorf("f(50) = %s, want 0", got.Inspect())
	}
}

func TestStepBudget(t *testing.T) {
	_, err := testEval(t, `let f = fn(n) { if (n == 0) { 0 } else { f(n - 1) } }; f(500)`, WithMaxSteps(100))
	if vm.KindOf(err) != vm.ResourceError {
		t.Errorf("err = %v, want ResourceError", err)
	}
}

func TestContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	program, err := compiler.Parse(`let f = fn(n) { if (n == 0) { 0 } else { f(n - 1) } }; f(900)`)
	if err != nil {
		t.Fatal(err)
	}
	_, err = New().Eval(ctx, program, NewEnvironment())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if vm.KindOf(err) != vm.ResourceError {
		t.Errorf("kind = %s, want ResourceError", vm.KindOf(err))
	}
}

func TestBindingsSurviveFault(t *testing.T) {
	env := NewEnvironment()
	program, err := compiler.Parse("let a = 5; let b = a + true; let c = 3;")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := New().Eval(context.Background(), program, env); err == nil {
		t.Fatal("expected error")
	}
	if diff := cmp.Diff([]string{"a"}, env.Names()); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
}

func TestEnvironmentPersistsAcrossEvals(t *testing.T) {
	env := NewEnvironment()
	e := New()
	for _, step := range []struct {
		input    string
		expected string
	}{
		{"let a = 10;", ""},
		{"let add = fn(x) { x + a };", ""},
		{"add(5)", "15"},
		{"let a = 1; add(5)", "6"},
	} {
		program, err := compiler.Parse(step.input)
		if err != nil {
			t.Fatal(err)
		}
		got, err := e.Eval(context.Background(), program, env)
		if err != nil {
			t.Fatalf("%q: %v", step.input, err)
		}
		if step.expected == "" {
			if got != nil {
				t.Errorf("%q = %s, want no value", step.input, vm.Describe(got))
			}
			continue
		}
		if got == nil || got.Inspect() != step.expected {
			t.Errorf("%q = %v, want %s", step.input, got, step.expected)
		}
	}
}
