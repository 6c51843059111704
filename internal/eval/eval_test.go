package eval

import (
	"testing"

	"github.com/cozylang/cozy/internal/syntax"
)

func run(t *testing.T, e syntax.Exp, env *Env) Value {
	t.Helper()
	v, err := Eval(e, env)
	if err != nil {
		t.Fatalf("eval failed: %v", err)
	}
	return v
}

func intBag() *syntax.TBag { return &syntax.TBag{Elem: syntax.Int} }

func singleton(n int64) syntax.Exp {
	return syntax.WithType(&syntax.ESingleton{E: syntax.WithType(&syntax.ENum{Val: n}, syntax.Int)}, intBag())
}

func TestSumOfEmptyIsZero(t *testing.T) {
	e := syntax.WithType(&syntax.EUnaryOp{
		Op: syntax.UOpSum,
		E:  syntax.WithType(&syntax.EEmptyList{}, intBag()),
	}, syntax.Int)
	v := run(t, e, NewEnv())
	if i := v.(*Int); i.Val != 0 {
		t.Errorf("sum [] = %d, want 0", i.Val)
	}
}

func TestBagConcatAndDifference(t *testing.T) {
	cat := syntax.WithType(&syntax.EBinOp{E1: singleton(1), Op: "+", E2: singleton(1)}, intBag())
	v := run(t, cat, NewEnv()).(*Bag)
	if len(v.Elems) != 2 {
		t.Fatalf("bag + keeps duplicates, got %d elems", len(v.Elems))
	}
	diff := syntax.WithType(&syntax.EBinOp{E1: cat, Op: "-", E2: singleton(1)}, intBag())
	d := run(t, diff, NewEnv()).(*Bag)
	if len(d.Elems) != 1 {
		t.Errorf("multiset difference removes one occurrence, got %d", len(d.Elems))
	}
}

func TestDistinctAndUnique(t *testing.T) {
	cat := syntax.WithType(&syntax.EBinOp{E1: singleton(1), Op: "+", E2: singleton(1)}, intBag())
	distinct := syntax.WithType(&syntax.EUnaryOp{Op: syntax.UOpDistinct, E: cat}, intBag())
	if d := run(t, distinct, NewEnv()).(*Bag); len(d.Elems) != 1 {
		t.Errorf("distinct deduplicates")
	}
	unique := syntax.WithType(&syntax.EUnaryOp{Op: syntax.UOpAreUnique, E: cat}, syntax.Bool)
	if u := run(t, unique, NewEnv()).(*Bool); u.Val {
		t.Errorf("a bag with duplicates is not unique")
	}
}

func TestTheOfConcat(t *testing.T) {
	cat := syntax.WithType(&syntax.EBinOp{E1: singleton(0), Op: "+", E2: singleton(1)}, intBag())
	the := syntax.WithType(&syntax.EUnaryOp{Op: syntax.UOpThe, E: cat}, syntax.Int)
	if v := run(t, the, NewEnv()).(*Int); v.Val != 0 {
		t.Errorf("the([0]+[1]) = %d, want 0", v.Val)
	}
}

func TestTheOfEmptyIsDefault(t *testing.T) {
	the := syntax.WithType(&syntax.EUnaryOp{
		Op: syntax.UOpThe,
		E:  syntax.WithType(&syntax.EEmptyList{}, intBag()),
	}, syntax.Int)
	if v := run(t, the, NewEnv()).(*Int); v.Val != 0 {
		t.Errorf("the [] defaults to the type's default value")
	}
}

func TestFilterMapFlatMap(t *testing.T) {
	xs := NewBag([]Value{&Int{Val: 0}, &Int{Val: 1}, &Int{Val: 2}})
	env := NewEnv()
	env.Vars["xs"] = xs
	xsVar := syntax.WithType(&syntax.EVar{ID: "xs"}, intBag())

	filt := syntax.WithType(&syntax.EFilter{
		E: xsVar,
		P: &syntax.ELambda{
			Arg:  syntax.WithType(&syntax.EVar{ID: "v"}, syntax.Int),
			Body: syntax.EEq(syntax.WithType(&syntax.EVar{ID: "v"}, syntax.Int), syntax.Zero()),
		},
	}, intBag())
	if v := run(t, filt, env).(*Bag); len(v.Elems) != 1 {
		t.Errorf("filter kept %d elems, want 1", len(v.Elems))
	}

	mapped := syntax.WithType(&syntax.EMap{
		E: xsVar,
		F: &syntax.ELambda{
			Arg:  syntax.WithType(&syntax.EVar{ID: "v"}, syntax.Int),
			Body: syntax.One(),
		},
	}, intBag())
	sum := syntax.WithType(&syntax.EUnaryOp{Op: syntax.UOpSum, E: mapped}, syntax.Int)
	if v := run(t, sum, env).(*Int); v.Val != 3 {
		t.Errorf("sum(map 1) = %d, want 3", v.Val)
	}

	vVar := syntax.WithType(&syntax.EVar{ID: "v"}, syntax.Int)
	twice := syntax.WithType(&syntax.EBinOp{
		E1: syntax.WithType(&syntax.ESingleton{E: vVar}, intBag()),
		Op: "+",
		E2: syntax.WithType(&syntax.ESingleton{E: vVar}, intBag()),
	}, intBag())
	flat := syntax.WithType(&syntax.EFlatMap{E: xsVar, F: &syntax.ELambda{Arg: vVar, Body: twice}}, intBag())
	if v := run(t, flat, env).(*Bag); len(v.Elems) != 6 {
		t.Errorf("flatmap produced %d elems, want 6", len(v.Elems))
	}
}

func TestMapGetDefault(t *testing.T) {
	m := &Map{Keys: []Value{&Int{Val: 1}}, Vals: []Value{&Int{Val: 10}}, Default: &Int{Val: 0}}
	env := NewEnv()
	env.Vars["m"] = m
	mt := &syntax.TMap{Key: syntax.Int, Val: syntax.Int}
	get := func(k int64) syntax.Exp {
		return syntax.WithType(&syntax.EMapGet{
			Map: syntax.WithType(&syntax.EVar{ID: "m"}, mt),
			Key: syntax.WithType(&syntax.ENum{Val: k}, syntax.Int),
		}, syntax.Int)
	}
	if v := run(t, get(1), env).(*Int); v.Val != 10 {
		t.Errorf("present key reads its value")
	}
	if v := run(t, get(7), env).(*Int); v.Val != 0 {
		t.Errorf("absent key reads the default")
	}
}

func TestHandleEquality(t *testing.T) {
	h1 := &Handle{Addr: 1, Val: &Int{Val: 5}}
	h2 := &Handle{Addr: 1, Val: &Int{Val: 9}}
	h3 := &Handle{Addr: 2, Val: &Int{Val: 5}}
	if !Equal(h1, h2) {
		t.Errorf("handle equality is address equality")
	}
	if DeepEqual(h1, h2) {
		t.Errorf("deep equality sees the stored values")
	}
	if Equal(h1, h3) {
		t.Errorf("different addresses differ")
	}
}

func TestWithAlteredValue(t *testing.T) {
	env := NewEnv()
	ht := &syntax.THandle{StateVar: "hs", ValueType: syntax.Int}
	env.Vars["h"] = &Handle{Addr: 3, Val: &Int{Val: 1}}
	e := syntax.WithType(&syntax.EGetField{
		E: syntax.WithType(&syntax.EWithAlteredValue{
			Handle:   syntax.WithType(&syntax.EVar{ID: "h"}, ht),
			NewValue: syntax.WithType(&syntax.ENum{Val: 42}, syntax.Int),
		}, ht),
		Field: "val",
	}, syntax.Int)
	if v := run(t, e, env).(*Int); v.Val != 42 {
		t.Errorf("altered value must be visible through val, got %d", v.Val)
	}
}

func TestArgMinPicksMinimizer(t *testing.T) {
	xs := NewBag([]Value{&Int{Val: 3}, &Int{Val: 1}, &Int{Val: 2}})
	env := NewEnv()
	env.Vars["xs"] = xs
	v := syntax.WithType(&syntax.EVar{ID: "v"}, syntax.Int)
	e := syntax.WithType(&syntax.EArgMin{
		E: syntax.WithType(&syntax.EVar{ID: "xs"}, intBag()),
		F: &syntax.ELambda{Arg: v, Body: v},
	}, syntax.Int)
	if got := run(t, e, env).(*Int); got.Val != 1 {
		t.Errorf("argmin id = %d, want 1", got.Val)
	}
}

func TestComprehension(t *testing.T) {
	xs := NewBag([]Value{&Int{Val: 0}, &Int{Val: 1}})
	env := NewEnv()
	env.Vars["xs"] = xs
	x := syntax.WithType(&syntax.EVar{ID: "x"}, syntax.Int)
	e := syntax.WithType(&syntax.EListComprehension{
		E: syntax.WithType(&syntax.EBinOp{E1: x, Op: "+", E2: syntax.One()}, syntax.Int),
		Clauses: []syntax.Clause{
			&syntax.CPull{ID: "x", E: syntax.WithType(&syntax.EVar{ID: "xs"}, intBag())},
			&syntax.CCond{E: syntax.EEq(x, syntax.Zero())},
		},
	}, intBag())
	got := run(t, e, env).(*Bag)
	if len(got.Elems) != 1 || got.Elems[0].(*Int).Val != 1 {
		t.Errorf("[x+1 | x <- {0,1}, x == 0] = %s", got.Inspect())
	}
}
