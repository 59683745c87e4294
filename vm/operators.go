package vm

// ---------------------------------------------------------------------------
// Operators shared by the bytecode VM and the tree-walking evaluator
// ---------------------------------------------------------------------------

// Infix applies a binary operator. Operands of different kinds only meet
// under == and !=; every other mixed pairing is a TypeError.
func Infix(operator string, left, right Value) (Value, error) {
	switch operator {
	case "==":
		return NativeBool(Equal(left, right)), nil
	case "!=":
		return NativeBool(!Equal(left, right)), nil
	}

	switch l := left.(type) {
	case *Integer:
		if r, ok := right.(*Integer); ok {
			return integerInfix(operator, l.Value, r.Value)
		}
	case *String:
		if r, ok := right.(*String); ok {
			if operator == "+" {
				return &String{Value: l.Value + r.Value}, nil
			}
			return nil, unknownInfix(operator, left, right)
		}
	case *Boolean:
		if r, ok := right.(*Boolean); ok {
			switch operator {
			case "&&":
				return NativeBool(l.Value && r.Value), nil
			case "||":
				return NativeBool(l.Value || r.Value), nil
			}
			return nil, unknownInfix(operator, left, right)
		}
	}

	if TypeName(left) != TypeName(right) {
		return nil, Errorf(TypeError, "type mismatch: %s %s %s", TypeName(left), operator, TypeName(right))
	}
	return nil, unknownInfix(operator, left, right)
}

func integerInfix(operator string, l, r int64) (Value, error) {
	switch operator {
	case "+":
		return &Integer{Value: l + r}, nil
	case "-":
		return &Integer{Value: l - r}, nil
	case "*":
		return &Integer{Value: l * r}, nil
	case "/":
		if r == 0 {
			return nil, Errorf(TypeError, "division by zero")
		}
		return &Integer{Value: l / r}, nil
	case "%":
		if r == 0 {
			return nil, Errorf(TypeError, "division by zero")
		}
		return &Integer{Value: l % r}, nil
	case "<":
		return NativeBool(l < r), nil
	case ">":
		return NativeBool(l > r), nil
	}
	return nil, Errorf(TypeError, "unknown operator: %s %s %s", IntegerType, operator, IntegerType)
}

func unknownInfix(operator string, left, right Value) error {
	return Errorf(TypeError, "unknown operator: %s %s %s", TypeName(left), operator, TypeName(right))
}

// Prefix applies a unary operator.
func Prefix(operator string, right Value) (Value, error) {
	switch operator {
	case "!":
		return NativeBool(!IsTruthy(right)), nil
	case "-":
		if i, ok := right.(*Integer); ok {
			return &Integer{Value: -i.Value}, nil
		}
	}
	return nil, Errorf(TypeError, "unknown operator: %s%s", operator, TypeName(right))
}

// Index evaluates left[index]. Out-of-range and negative indexes yield Nil.
func Index(left, index Value) (Value, error) {
	arr, ok := left.(*Array)
	if !ok {
		return nil, Errorf(TypeError, "index operator not supported: %s", TypeName(left))
	}
	i, ok := index.(*Integer)
	if !ok {
		return nil, Errorf(TypeError, "array index must be INTEGER, got %s", TypeName(index))
	}
	return arr.At(i.Value), nil
}
