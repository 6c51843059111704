package eval

import (
	"fmt"

	"github.com/cozylang/cozy/internal/syntax"
)

func evalBinOp(e *syntax.EBinOp, env *Env) (Value, error) {
	// and/or short-circuit.
	switch e.Op {
	case syntax.BOpAnd:
		b, err := evalBool(e.E1, env)
		if err != nil {
			return nil, err
		}
		if !b {
			return &Bool{Val: false}, nil
		}
		b2, err := evalBool(e.E2, env)
		return &Bool{Val: b2}, err
	case syntax.BOpOr:
		b, err := evalBool(e.E1, env)
		if err != nil {
			return nil, err
		}
		if b {
			return &Bool{Val: true}, nil
		}
		b2, err := evalBool(e.E2, env)
		return &Bool{Val: b2}, err
	case "=>":
		b, err := evalBool(e.E1, env)
		if err != nil {
			return nil, err
		}
		if !b {
			return &Bool{Val: true}, nil
		}
		b2, err := evalBool(e.E2, env)
		return &Bool{Val: b2}, err
	}

	v1, err := Eval(e.E1, env)
	if err != nil {
		return nil, err
	}
	v2, err := Eval(e.E2, env)
	if err != nil {
		return nil, err
	}

	switch e.Op {
	case "==":
		return &Bool{Val: Equal(v1, v2)}, nil
	case "===":
		return &Bool{Val: DeepEqual(v1, v2)}, nil
	case "!=":
		return &Bool{Val: !Equal(v1, v2)}, nil
	case "<", "<=", ">", ">=":
		return compare(e.Op, v1, v2)
	case syntax.BOpIn:
		bag, ok := v2.(*Bag)
		if !ok {
			return nil, fmt.Errorf("eval: `in` over %s", v2.Kind())
		}
		for _, x := range bag.Elems {
			if Equal(x, v1) {
				return &Bool{Val: true}, nil
			}
		}
		return &Bool{Val: false}, nil
	case "+":
		if i1, ok := v1.(*Int); ok {
			i2, ok := v2.(*Int)
			if !ok {
				return nil, fmt.Errorf("eval: cannot add %s and %s", v1.Kind(), v2.Kind())
			}
			return &Int{Val: i1.Val + i2.Val}, nil
		}
		b1, ok1 := v1.(*Bag)
		b2, ok2 := v2.(*Bag)
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("eval: cannot add %s and %s", v1.Kind(), v2.Kind())
		}
		return NewBag(append(append([]Value{}, b1.Elems...), b2.Elems...)), nil
	case "-":
		if i1, ok := v1.(*Int); ok {
			i2, ok := v2.(*Int)
			if !ok {
				return nil, fmt.Errorf("eval: cannot subtract %s from %s", v2.Kind(), v1.Kind())
			}
			return &Int{Val: i1.Val - i2.Val}, nil
		}
		b1, ok1 := v1.(*Bag)
		b2, ok2 := v2.(*Bag)
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("eval: cannot subtract %s from %s", v2.Kind(), v1.Kind())
		}
		remaining := append([]Value{}, b1.Elems...)
		for _, x := range b2.Elems {
			for i, y := range remaining {
				if Equal(x, y) {
					remaining = append(remaining[:i], remaining[i+1:]...)
					break
				}
			}
		}
		return NewBag(remaining), nil
	}
	return nil, fmt.Errorf("eval: unknown binary operator %s", e.Op)
}

func compare(op string, v1, v2 Value) (Value, error) {
	var lt, eq bool
	switch a := v1.(type) {
	case *Int:
		b, ok := v2.(*Int)
		if !ok {
			return nil, fmt.Errorf("eval: cannot compare %s and %s", v1.Kind(), v2.Kind())
		}
		lt, eq = a.Val < b.Val, a.Val == b.Val
	case *Str:
		b, ok := v2.(*Str)
		if !ok {
			return nil, fmt.Errorf("eval: cannot compare %s and %s", v1.Kind(), v2.Kind())
		}
		lt, eq = a.Val < b.Val, a.Val == b.Val
	default:
		return nil, fmt.Errorf("eval: cannot order %s", v1.Kind())
	}
	switch op {
	case "<":
		return &Bool{Val: lt}, nil
	case "<=":
		return &Bool{Val: lt || eq}, nil
	case ">":
		return &Bool{Val: !lt && !eq}, nil
	case ">=":
		return &Bool{Val: !lt}, nil
	}
	return nil, fmt.Errorf("eval: unknown comparison %s", op)
}

func evalUnaryOp(e *syntax.EUnaryOp, env *Env) (Value, error) {
	switch e.Op {
	case syntax.UOpNot:
		b, err := evalBool(e.E, env)
		if err != nil {
			return nil, err
		}
		return &Bool{Val: !b}, nil
	case syntax.UOpNegate:
		i, err := evalInt(e.E, env)
		if err != nil {
			return nil, err
		}
		return &Int{Val: -i}, nil
	}

	bag, err := evalBag(e.E, env)
	if err != nil {
		return nil, err
	}
	switch e.Op {
	case syntax.UOpSum:
		var total int64
		for _, x := range bag.Elems {
			i, ok := x.(*Int)
			if !ok {
				return nil, fmt.Errorf("eval: cannot sum %s", x.Kind())
			}
			total += i.Val
		}
		return &Int{Val: total}, nil
	case syntax.UOpLength:
		return &Int{Val: int64(len(bag.Elems))}, nil
	case syntax.UOpEmpty:
		return &Bool{Val: len(bag.Elems) == 0}, nil
	case syntax.UOpExists:
		return &Bool{Val: len(bag.Elems) > 0}, nil
	case syntax.UOpDistinct:
		var out []Value
		for _, x := range bag.Elems {
			dup := false
			for _, y := range out {
				if DeepEqual(x, y) {
					dup = true
					break
				}
			}
			if !dup {
				out = append(out, x)
			}
		}
		return NewBag(out), nil
	case syntax.UOpAreUnique:
		for i := range bag.Elems {
			for j := i + 1; j < len(bag.Elems); j++ {
				if DeepEqual(bag.Elems[i], bag.Elems[j]) {
					return &Bool{Val: false}, nil
				}
			}
		}
		return &Bool{Val: true}, nil
	case syntax.UOpAll:
		for _, x := range bag.Elems {
			b, ok := x.(*Bool)
			if !ok {
				return nil, fmt.Errorf("eval: `all` over %s", x.Kind())
			}
			if !b.Val {
				return &Bool{Val: false}, nil
			}
		}
		return &Bool{Val: true}, nil
	case syntax.UOpAny:
		for _, x := range bag.Elems {
			b, ok := x.(*Bool)
			if !ok {
				return nil, fmt.Errorf("eval: `any` over %s", x.Kind())
			}
			if b.Val {
				return &Bool{Val: true}, nil
			}
		}
		return &Bool{Val: false}, nil
	case syntax.UOpThe:
		if len(bag.Elems) == 0 {
			if e.Type() != nil {
				return ConstructValue(e.Type()), nil
			}
			return &Null{}, nil
		}
		return bag.Elems[0], nil
	}
	return nil, fmt.Errorf("eval: unknown unary operator %s", e.Op)
}
