package eval

import (
	"fmt"

	"github.com/cozylang/cozy/internal/prettyprinter"
	"github.com/cozylang/cozy/internal/syntax"
)

// FuncEntry is one point of an uninterpreted function's graph.
type FuncEntry struct {
	Args   []Value
	Result Value
}

// FuncInterp interprets an extern function symbol as a finite graph with a
// default result.
type FuncInterp struct {
	Entries []FuncEntry
	Default Value
}

// Apply looks up the entry matching args, falling back to the default.
func (f *FuncInterp) Apply(args []Value) Value {
	for _, e := range f.Entries {
		if len(e.Args) != len(args) {
			continue
		}
		match := true
		for i := range args {
			if !DeepEqual(e.Args[i], args[i]) {
				match = false
				break
			}
		}
		if match {
			return e.Result
		}
	}
	return f.Default
}

// Env assigns values to free variables and interpretations to function
// symbols.
type Env struct {
	Vars  map[string]Value
	Funcs map[string]*FuncInterp
}

func NewEnv() *Env {
	return &Env{Vars: map[string]Value{}, Funcs: map[string]*FuncInterp{}}
}

func (env *Env) with(name string, v Value) *Env {
	vars := make(map[string]Value, len(env.Vars)+1)
	for k, val := range env.Vars {
		vars[k] = val
	}
	vars[name] = v
	return &Env{Vars: vars, Funcs: env.Funcs}
}

// ConstructValue is the default value of a type: zero, false, the empty
// string, the empty collection, a map of defaults, the first enum case.
func ConstructValue(t syntax.Type) Value {
	switch t := t.(type) {
	case *syntax.TInt, *syntax.TLong:
		return &Int{}
	case *syntax.TBool:
		return &Bool{}
	case *syntax.TString:
		return &Str{}
	case *syntax.TNative:
		return &Native{}
	case *syntax.TBag, *syntax.TSet:
		return &Bag{}
	case *syntax.TMap:
		return &Map{Default: ConstructValue(t.Val)}
	case *syntax.THandle:
		return &Handle{Addr: 0, Val: ConstructValue(t.ValueType)}
	case *syntax.TEnum:
		if len(t.Cases) > 0 {
			return &Enum{Case: t.Cases[0]}
		}
		return &Null{}
	case *syntax.TTuple:
		elems := make([]Value, len(t.Types))
		for i, tt := range t.Types {
			elems[i] = ConstructValue(tt)
		}
		return &Tuple{Elems: elems}
	case *syntax.TRecord:
		fields := make([]FieldValue, len(t.Fields))
		for i, f := range t.Fields {
			fields[i] = FieldValue{Name: f.Name, Val: ConstructValue(f.Type)}
		}
		return &Record{Fields: fields}
	case *syntax.TVector:
		elems := make([]Value, t.N)
		for i := range elems {
			elems[i] = ConstructValue(t.Elem)
		}
		return &Tuple{Elems: elems}
	}
	return &Null{}
}

// Eval interprets e under env.
func Eval(e syntax.Exp, env *Env) (Value, error) {
	switch e := e.(type) {
	case *syntax.EVar:
		if v, ok := env.Vars[e.ID]; ok {
			return v, nil
		}
		return nil, fmt.Errorf("eval: no value for variable %s", e.ID)

	case *syntax.EBool:
		return &Bool{Val: e.Val}, nil
	case *syntax.ENum:
		return &Int{Val: e.Val}, nil
	case *syntax.EStr:
		return &Str{Val: e.Val}, nil
	case *syntax.ENull:
		return &Null{}, nil
	case *syntax.EEnumEntry:
		return &Enum{Case: e.Name}, nil

	case *syntax.ENative:
		seed, err := evalInt(e.E, env)
		if err != nil {
			return nil, err
		}
		return &Native{Seed: seed}, nil

	case *syntax.ECond:
		c, err := evalBool(e.Cond, env)
		if err != nil {
			return nil, err
		}
		if c {
			return Eval(e.Then, env)
		}
		return Eval(e.Else, env)

	case *syntax.EBinOp:
		return evalBinOp(e, env)

	case *syntax.EUnaryOp:
		return evalUnaryOp(e, env)

	case *syntax.EArgMin:
		return evalArgExtreme(e.E, e.F, env, true, e.Type())
	case *syntax.EArgMax:
		return evalArgExtreme(e.E, e.F, env, false, e.Type())

	case *syntax.EHandle:
		addr, err := evalInt(e.Addr, env)
		if err != nil {
			return nil, err
		}
		val, err := Eval(e.Value, env)
		if err != nil {
			return nil, err
		}
		return &Handle{Addr: addr, Val: val}, nil

	case *syntax.EGetField:
		v, err := Eval(e.E, env)
		if err != nil {
			return nil, err
		}
		switch v := v.(type) {
		case *Handle:
			if e.Field == "val" {
				return v.Val, nil
			}
		case *Record:
			for _, f := range v.Fields {
				if f.Name == e.Field {
					return f.Val, nil
				}
			}
		}
		return nil, fmt.Errorf("eval: no field %s on %s", e.Field, v.Kind())

	case *syntax.EMakeRecord:
		fields := make([]FieldValue, len(e.Fields))
		for i, f := range e.Fields {
			v, err := Eval(f.Val, env)
			if err != nil {
				return nil, err
			}
			fields[i] = FieldValue{Name: f.Name, Val: v}
		}
		return &Record{Fields: fields}, nil

	case *syntax.EListComprehension:
		var out []Value
		err := evalComprehension(e.Clauses, 0, e.E, env, &out)
		if err != nil {
			return nil, err
		}
		return NewBag(out), nil

	case *syntax.EEmptyList:
		return &Bag{}, nil

	case *syntax.ESingleton:
		v, err := Eval(e.E, env)
		if err != nil {
			return nil, err
		}
		return NewBag([]Value{v}), nil

	case *syntax.ECall:
		f, ok := env.Funcs[e.Func]
		if !ok {
			return nil, fmt.Errorf("eval: no interpretation for function %s", e.Func)
		}
		args := make([]Value, len(e.Args))
		for i, a := range e.Args {
			v, err := Eval(a, env)
			if err != nil {
				return nil, err
			}
			args[i] = v
		}
		return f.Apply(args), nil

	case *syntax.ETuple:
		elems := make([]Value, len(e.Es))
		for i, ee := range e.Es {
			v, err := Eval(ee, env)
			if err != nil {
				return nil, err
			}
			elems[i] = v
		}
		return &Tuple{Elems: elems}, nil

	case *syntax.ETupleGet:
		v, err := Eval(e.E, env)
		if err != nil {
			return nil, err
		}
		t, ok := v.(*Tuple)
		if !ok || e.N < 0 || e.N >= len(t.Elems) {
			return nil, fmt.Errorf("eval: bad tuple access .%d on %s", e.N, v.Kind())
		}
		return t.Elems[e.N], nil

	case *syntax.ELet:
		v, err := Eval(e.E, env)
		if err != nil {
			return nil, err
		}
		return Eval(e.F.Body, env.with(e.F.Arg.ID, v))

	case *syntax.EStateVar:
		return Eval(e.E, env)
	case *syntax.EEnumToInt:
		v, err := Eval(e.E, env)
		if err != nil {
			return nil, err
		}
		en, ok := v.(*Enum)
		if !ok {
			return nil, fmt.Errorf("eval: enum_to_int of %s", v.Kind())
		}
		if t, ok := e.E.Type().(*syntax.TEnum); ok {
			for i, c := range t.Cases {
				if c == en.Case {
					return &Int{Val: int64(i)}, nil
				}
			}
		}
		return nil, fmt.Errorf("eval: unknown enum case %s", en.Case)
	case *syntax.EBoolToInt:
		b, err := evalBool(e.E, env)
		if err != nil {
			return nil, err
		}
		if b {
			return &Int{Val: 1}, nil
		}
		return &Int{Val: 0}, nil

	case *syntax.EFilter:
		bag, err := evalBag(e.E, env)
		if err != nil {
			return nil, err
		}
		var out []Value
		for _, x := range bag.Elems {
			keep, err := evalBool(e.P.Body, env.with(e.P.Arg.ID, x))
			if err != nil {
				return nil, err
			}
			if keep {
				out = append(out, x)
			}
		}
		return NewBag(out), nil

	case *syntax.EMap:
		bag, err := evalBag(e.E, env)
		if err != nil {
			return nil, err
		}
		out := make([]Value, len(bag.Elems))
		for i, x := range bag.Elems {
			v, err := Eval(e.F.Body, env.with(e.F.Arg.ID, x))
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return NewBag(out), nil

	case *syntax.EFlatMap:
		bag, err := evalBag(e.E, env)
		if err != nil {
			return nil, err
		}
		var out []Value
		for _, x := range bag.Elems {
			v, err := Eval(e.F.Body, env.with(e.F.Arg.ID, x))
			if err != nil {
				return nil, err
			}
			inner, ok := v.(*Bag)
			if !ok {
				return nil, fmt.Errorf("eval: flatmap body produced %s", v.Kind())
			}
			out = append(out, inner.Elems...)
		}
		return NewBag(out), nil

	case *syntax.EWithAlteredValue:
		v, err := Eval(e.Handle, env)
		if err != nil {
			return nil, err
		}
		h, ok := v.(*Handle)
		if !ok {
			return nil, fmt.Errorf("eval: with-altered-value of %s", v.Kind())
		}
		nv, err := Eval(e.NewValue, env)
		if err != nil {
			return nil, err
		}
		return &Handle{Addr: h.Addr, Val: nv}, nil

	case *syntax.EMakeMap:
		return evalMakeMap(e, env)
	case *syntax.EMakeMap2:
		return evalMakeMap2(e, env)

	case *syntax.EMapGet:
		mv, err := Eval(e.Map, env)
		if err != nil {
			return nil, err
		}
		m, ok := mv.(*Map)
		if !ok {
			return nil, fmt.Errorf("eval: map-get of %s", mv.Kind())
		}
		k, err := Eval(e.Key, env)
		if err != nil {
			return nil, err
		}
		return MapGet(m, k), nil

	case *syntax.EMapKeys:
		mv, err := Eval(e.E, env)
		if err != nil {
			return nil, err
		}
		m, ok := mv.(*Map)
		if !ok {
			return nil, fmt.Errorf("eval: map-keys of %s", mv.Kind())
		}
		return NewBag(m.Keys), nil

	case *syntax.EVectorGet:
		v, err := Eval(e.E, env)
		if err != nil {
			return nil, err
		}
		t, ok := v.(*Tuple)
		if !ok {
			return nil, fmt.Errorf("eval: vector-get of %s", v.Kind())
		}
		i, err := evalInt(e.I, env)
		if err != nil {
			return nil, err
		}
		if i < 0 || int(i) >= len(t.Elems) {
			return nil, fmt.Errorf("eval: vector index %d out of range", i)
		}
		return t.Elems[i], nil
	}

	return nil, fmt.Errorf("eval: cannot evaluate %s", prettyprinter.Exp(e))
}

func evalBool(e syntax.Exp, env *Env) (bool, error) {
	v, err := Eval(e, env)
	if err != nil {
		return false, err
	}
	b, ok := v.(*Bool)
	if !ok {
		return false, fmt.Errorf("eval: expected boolean, got %s", v.Kind())
	}
	return b.Val, nil
}

func evalInt(e syntax.Exp, env *Env) (int64, error) {
	v, err := Eval(e, env)
	if err != nil {
		return 0, err
	}
	i, ok := v.(*Int)
	if !ok {
		return 0, fmt.Errorf("eval: expected integer, got %s", v.Kind())
	}
	return i.Val, nil
}

func evalBag(e syntax.Exp, env *Env) (*Bag, error) {
	v, err := Eval(e, env)
	if err != nil {
		return nil, err
	}
	b, ok := v.(*Bag)
	if !ok {
		return nil, fmt.Errorf("eval: expected collection, got %s", v.Kind())
	}
	return b, nil
}

func evalComprehension(clauses []syntax.Clause, i int, head syntax.Exp, env *Env, out *[]Value) error {
	if i >= len(clauses) {
		v, err := Eval(head, env)
		if err != nil {
			return err
		}
		*out = append(*out, v)
		return nil
	}
	switch c := clauses[i].(type) {
	case *syntax.CPull:
		bag, err := evalBag(c.E, env)
		if err != nil {
			return err
		}
		for _, x := range bag.Elems {
			if err := evalComprehension(clauses, i+1, head, env.with(c.ID, x), out); err != nil {
				return err
			}
		}
		return nil
	case *syntax.CCond:
		keep, err := evalBool(c.E, env)
		if err != nil {
			return err
		}
		if keep {
			return evalComprehension(clauses, i+1, head, env, out)
		}
		return nil
	}
	return fmt.Errorf("eval: unknown comprehension clause")
}

func evalMakeMap(e *syntax.EMakeMap, env *Env) (Value, error) {
	bag, err := evalBag(e.E, env)
	if err != nil {
		return nil, err
	}
	var keys []Value
	var groups [][]Value
	for _, x := range bag.Elems {
		k, err := Eval(e.Key.Body, env.with(e.Key.Arg.ID, x))
		if err != nil {
			return nil, err
		}
		found := false
		for i, existing := range keys {
			if DeepEqual(existing, k) {
				groups[i] = append(groups[i], x)
				found = true
				break
			}
		}
		if !found {
			keys = append(keys, k)
			groups = append(groups, []Value{x})
		}
	}
	vals := make([]Value, len(keys))
	for i, group := range groups {
		v, err := Eval(e.Value.Body, env.with(e.Value.Arg.ID, NewBag(group)))
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	// Missing keys map to the value function applied to the empty group.
	def, err := Eval(e.Value.Body, env.with(e.Value.Arg.ID, &Bag{}))
	if err != nil {
		return nil, err
	}
	return &Map{Keys: keys, Vals: vals, Default: def}, nil
}

func evalMakeMap2(e *syntax.EMakeMap2, env *Env) (Value, error) {
	bag, err := evalBag(e.E, env)
	if err != nil {
		return nil, err
	}
	var keys []Value
	var vals []Value
	for _, x := range bag.Elems {
		dup := false
		for _, existing := range keys {
			if DeepEqual(existing, x) {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		v, err := Eval(e.Value.Body, env.with(e.Value.Arg.ID, x))
		if err != nil {
			return nil, err
		}
		keys = append(keys, x)
		vals = append(vals, v)
	}
	var def Value = &Null{}
	if e.Type() != nil {
		if mt, ok := e.Type().(*syntax.TMap); ok {
			def = ConstructValue(mt.Val)
		}
	}
	return &Map{Keys: keys, Vals: vals, Default: def}, nil
}

func evalArgExtreme(bagE syntax.Exp, f *syntax.ELambda, env *Env, min bool, t syntax.Type) (Value, error) {
	bag, err := evalBag(bagE, env)
	if err != nil {
		return nil, err
	}
	if len(bag.Elems) == 0 {
		if t != nil {
			return ConstructValue(t), nil
		}
		return &Null{}, nil
	}
	best := bag.Elems[0]
	bestKey, err := Eval(f.Body, env.with(f.Arg.ID, best))
	if err != nil {
		return nil, err
	}
	for _, x := range bag.Elems[1:] {
		key, err := Eval(f.Body, env.with(f.Arg.ID, x))
		if err != nil {
			return nil, err
		}
		better := Less(key, bestKey)
		if !min {
			better = Less(bestKey, key)
		}
		if better {
			best, bestKey = x, key
		}
	}
	return best, nil
}
