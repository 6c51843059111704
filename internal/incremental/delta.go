// Package incremental turns mutations into maintenance plans: DeltaForm
// transports expressions over an op's execution, and SketchUpdate produces
// the statement (plus auxiliary queries) that repairs a stored value after
// the op runs.
package incremental

import (
	errors "gopkg.in/src-d/go-errors.v1"

	"github.com/cozylang/cozy/internal/prettyprinter"
	"github.com/cozylang/cozy/internal/syntax"
	"github.com/cozylang/cozy/internal/syntaxtools"
)

var (
	ErrUnsupportedStm    = errors.NewKind("cannot compute delta form of statement: %s")
	ErrUnsupportedTarget = errors.NewKind("cannot compute delta form of mutation target: %s")
)

// DeltaForm computes, for an op body, a substitution mapping each mutated
// variable to an expression for its post-state value in terms of the
// pre-state. Applying the substitution to any expression over the tracked
// variables transports it across the op. Local declarations participate in
// composition and are filtered out of the result.
func DeltaForm(tracked []syntax.Arg, op *syntax.Op) (map[string]syntax.Exp, error) {
	delta, err := deltaStm(op.Body)
	if err != nil {
		return nil, err
	}
	isTracked := map[string]bool{}
	for _, sv := range tracked {
		isTracked[sv.Name] = true
	}
	out := map[string]syntax.Exp{}
	for name, e := range delta {
		if isTracked[name] {
			out[name] = e
		}
	}
	return out, nil
}

func deltaStm(s syntax.Stm) (map[string]syntax.Exp, error) {
	switch s := s.(type) {
	case *syntax.SNoOp:
		return map[string]syntax.Exp{}, nil

	case *syntax.SSeq:
		d1, err := deltaStm(s.S1)
		if err != nil {
			return nil, err
		}
		d2, err := deltaStm(s.S2)
		if err != nil {
			return nil, err
		}
		return composeDeltas(d1, d2), nil

	case *syntax.SCall:
		target, ok := s.Target.(*syntax.EVar)
		if !ok {
			return nil, ErrUnsupportedTarget.New(prettyprinter.Exp(s.Target))
		}
		t := target.Type()
		switch s.Func {
		case "add":
			single := syntax.WithType(&syntax.ESingleton{E: s.Args[0]}, &syntax.TBag{Elem: s.Args[0].Type()})
			return map[string]syntax.Exp{
				target.ID: syntax.WithType(&syntax.EBinOp{E1: target, Op: "+", E2: single}, t),
			}, nil
		case "remove":
			single := syntax.WithType(&syntax.ESingleton{E: s.Args[0]}, &syntax.TBag{Elem: s.Args[0].Type()})
			return map[string]syntax.Exp{
				target.ID: syntax.WithType(&syntax.EBinOp{E1: target, Op: "-", E2: single}, t),
			}, nil
		case "remove_all":
			return map[string]syntax.Exp{
				target.ID: syntax.WithType(&syntax.EBinOp{E1: target, Op: "-", E2: s.Args[0]}, t),
			}, nil
		}
		return nil, ErrUnsupportedStm.New(prettyprinter.Stm(s))

	case *syntax.SAssign:
		switch lhs := s.LHS.(type) {
		case *syntax.EVar:
			return map[string]syntax.Exp{lhs.ID: s.RHS}, nil
		case *syntax.EGetField:
			// h.val = rhs transports h to a handle carrying rhs.
			base, ok := lhs.E.(*syntax.EVar)
			if !ok || lhs.Field != "val" {
				return nil, ErrUnsupportedTarget.New(prettyprinter.Exp(s.LHS))
			}
			return map[string]syntax.Exp{
				base.ID: syntax.WithType(&syntax.EWithAlteredValue{Handle: base, NewValue: s.RHS}, base.Type()),
			}, nil
		}
		return nil, ErrUnsupportedTarget.New(prettyprinter.Exp(s.LHS))

	case *syntax.SDecl:
		return map[string]syntax.Exp{s.ID: s.Val}, nil

	case *syntax.SIf:
		dThen, err := deltaStm(s.Then)
		if err != nil {
			return nil, err
		}
		dElse, err := deltaStm(s.Else)
		if err != nil {
			return nil, err
		}
		out := map[string]syntax.Exp{}
		for name, thenVal := range dThen {
			elseVal, ok := dElse[name]
			if !ok {
				elseVal = syntax.WithType(&syntax.EVar{ID: name}, thenVal.Type())
			}
			out[name] = syntax.WithType(&syntax.ECond{Cond: s.Cond, Then: thenVal, Else: elseVal}, thenVal.Type())
		}
		for name, elseVal := range dElse {
			if _, done := out[name]; done {
				continue
			}
			thenVal := syntax.WithType(&syntax.EVar{ID: name}, elseVal.Type())
			out[name] = syntax.WithType(&syntax.ECond{Cond: s.Cond, Then: thenVal, Else: elseVal}, elseVal.Type())
		}
		return out, nil

	case *syntax.SMapPut:
		return deltaMapWrite(s.Map, s.Key, func(m *syntax.TMap, key *syntax.EVar) syntax.Exp {
			return syntax.WithType(&syntax.ECond{
				Cond: syntax.EEq(key, s.Key),
				Then: s.Value,
				Else: syntax.WithType(&syntax.EMapGet{Map: s.Map, Key: key}, m.Val),
			}, m.Val)
		}, nil)

	case *syntax.SMapDel:
		return deltaMapWrite(s.Map, nil, func(m *syntax.TMap, key *syntax.EVar) syntax.Exp {
			return syntax.WithType(&syntax.EMapGet{Map: s.Map, Key: key}, m.Val)
		}, s.Key)

	case *syntax.SMapUpdate:
		// with m[k] as v: v = rhs  is  m[k] = rhs[v := m[k]].
		inner, err := deltaStm(s.Change)
		if err != nil {
			return nil, err
		}
		rhs, ok := inner[s.ValVar.ID]
		if !ok {
			return map[string]syntax.Exp{}, nil
		}
		target, isVar := s.Map.(*syntax.EVar)
		if !isVar {
			return nil, ErrUnsupportedTarget.New(prettyprinter.Exp(s.Map))
		}
		mt, isMap := target.Type().(*syntax.TMap)
		if !isMap {
			return nil, ErrUnsupportedTarget.New(prettyprinter.Exp(s.Map))
		}
		cur := syntax.WithType(&syntax.EMapGet{Map: s.Map, Key: s.Key}, mt.Val)
		newVal := syntaxtools.SubstExp(rhs, map[string]syntax.Exp{s.ValVar.ID: cur})
		return deltaMapWrite(s.Map, nil, func(m *syntax.TMap, key *syntax.EVar) syntax.Exp {
			return syntax.WithType(&syntax.ECond{
				Cond: syntax.EEq(key, s.Key),
				Then: newVal,
				Else: syntax.WithType(&syntax.EMapGet{Map: s.Map, Key: key}, m.Val),
			}, m.Val)
		}, nil)
	}

	return nil, ErrUnsupportedStm.New(prettyprinter.Stm(s))
}

// deltaMapWrite builds the symbolic post-state of a mutated map: a map over
// the (possibly extended, possibly shrunk) key set whose value at each key
// is given by valueAt.
func deltaMapWrite(mapExp syntax.Exp, addedKey syntax.Exp, valueAt func(*syntax.TMap, *syntax.EVar) syntax.Exp, removedKey syntax.Exp) (map[string]syntax.Exp, error) {
	target, ok := mapExp.(*syntax.EVar)
	if !ok {
		return nil, ErrUnsupportedTarget.New(prettyprinter.Exp(mapExp))
	}
	mt, ok := target.Type().(*syntax.TMap)
	if !ok {
		return nil, ErrUnsupportedTarget.New(prettyprinter.Exp(mapExp))
	}
	keyBag := &syntax.TBag{Elem: mt.Key}
	keys := syntax.WithType(&syntax.EMapKeys{E: target}, keyBag)
	var keySet syntax.Exp = keys
	if addedKey != nil {
		keySet = syntax.WithType(&syntax.EBinOp{
			E1: keys,
			Op: "+",
			E2: syntax.WithType(&syntax.ESingleton{E: addedKey}, keyBag),
		}, keyBag)
	}
	if removedKey != nil {
		k := syntaxtools.FreshVar(mt.Key, "k")
		keySet = syntax.WithType(&syntax.EFilter{
			E: keys,
			P: &syntax.ELambda{Arg: k, Body: syntax.ENot(syntax.EEq(k, removedKey))},
		}, keyBag)
	}
	kv := syntaxtools.FreshVar(mt.Key, "k")
	newMap := syntax.WithType(&syntax.EMakeMap2{
		E:     syntax.WithType(&syntax.EUnaryOp{Op: syntax.UOpDistinct, E: keySet}, keyBag),
		Value: &syntax.ELambda{Arg: kv, Body: valueAt(mt, kv)},
	}, target.Type())
	return map[string]syntax.Exp{target.ID: newMap}, nil
}

// composeDeltas gives the delta of running s1 then s2: s2's values are
// evaluated in s1's post-state, so s1's delta substitutes into them.
func composeDeltas(d1, d2 map[string]syntax.Exp) map[string]syntax.Exp {
	out := map[string]syntax.Exp{}
	for name, e := range d2 {
		out[name] = syntaxtools.SubstExp(e, d1)
	}
	for name, e := range d1 {
		if _, done := out[name]; !done {
			out[name] = e
		}
	}
	return out
}
