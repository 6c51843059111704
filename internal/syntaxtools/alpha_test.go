package syntaxtools

import (
	"testing"

	"github.com/cozylang/cozy/internal/syntax"
)

func intBag() *syntax.TBag { return &syntax.TBag{Elem: syntax.Int} }

func lam(name string, t syntax.Type, body func(*syntax.EVar) syntax.Exp) *syntax.ELambda {
	v := syntax.WithType(&syntax.EVar{ID: name}, t)
	return &syntax.ELambda{Arg: v, Body: body(v)}
}

func TestAlphaIdentityLambdas(t *testing.T) {
	e1 := lam("x", syntax.Int, func(v *syntax.EVar) syntax.Exp { return v })
	e2 := lam("y", syntax.Int, func(v *syntax.EVar) syntax.Exp { return v })
	if !AlphaEquivalent(e1, e2) {
		t.Errorf("\\x.x and \\y.y must be alpha-equivalent")
	}
}

func TestAlphaMixedBinders(t *testing.T) {
	x := &syntax.EVar{ID: "x"}
	y := &syntax.EVar{ID: "y"}
	e1 := &syntax.ELambda{Arg: x, Body: &syntax.ELambda{Arg: y, Body: x}}
	e2 := &syntax.ELambda{Arg: x, Body: &syntax.ELambda{Arg: x, Body: x}}
	if AlphaEquivalent(e1, e2) {
		t.Errorf("\\x.\\y.x and \\x.\\x.x must not be alpha-equivalent")
	}
}

func TestAlphaFreeVarsMatchByName(t *testing.T) {
	if AlphaEquivalent(&syntax.EVar{ID: "_var3423"}, &syntax.EVar{ID: "_var3422"}) {
		t.Errorf("distinct free variables are not alpha-equivalent")
	}
	v := &syntax.EVar{ID: "foo"}
	if !AlphaEquivalent(v, &syntax.EVar{ID: "foo"}) {
		t.Errorf("identical free variables are alpha-equivalent")
	}
}

func TestAlphaFreshBinderNames(t *testing.T) {
	foo := syntax.WithType(&syntax.EVar{ID: "foo"}, intBag())
	e1 := &syntax.EMap{E: foo, F: MkLambda(syntax.Int, func(*syntax.EVar) syntax.Exp { return foo })}
	e2 := &syntax.EMap{E: foo, F: MkLambda(syntax.Int, func(*syntax.EVar) syntax.Exp { return foo })}
	if e1.F.Arg.ID == e2.F.Arg.ID {
		t.Fatalf("MkLambda must mint distinct binder names")
	}
	if !AlphaEquivalent(e1, e2) {
		t.Errorf("maps differing only in binder names are alpha-equivalent")
	}
}

func TestAlphaTuples(t *testing.T) {
	one := &syntax.ENum{Val: 1}
	e := &syntax.ETuple{Es: []syntax.Exp{one, one}}
	if !AlphaEquivalent(e, e) {
		t.Errorf("tuple must be alpha-equivalent to itself")
	}
	if AlphaEquivalent(e, one) {
		t.Errorf("tuple is not alpha-equivalent to a non-tuple")
	}
}

func TestAlphaRecordOrderDependent(t *testing.T) {
	r1 := &syntax.EMakeRecord{Fields: []syntax.FieldExp{
		{Name: "x", Val: &syntax.ENum{Val: 0}},
		{Name: "y", Val: syntax.ETrue()},
	}}
	r2 := &syntax.EMakeRecord{Fields: []syntax.FieldExp{
		{Name: "y", Val: syntax.ETrue()},
		{Name: "x", Val: &syntax.ENum{Val: 0}},
	}}
	r3 := &syntax.EMakeRecord{Fields: []syntax.FieldExp{
		{Name: "x", Val: &syntax.ENum{Val: 0}},
		{Name: "y", Val: syntax.ETrue()},
	}}
	if AlphaEquivalent(r1, r2) {
		t.Errorf("field order matters")
	}
	if !AlphaEquivalent(r1, r3) {
		t.Errorf("identical records are alpha-equivalent")
	}
	if AlphaEquivalent(r1, syntax.ETrue()) || AlphaEquivalent(syntax.ETrue(), r1) {
		t.Errorf("record vs non-record must not be alpha-equivalent")
	}
	r4 := &syntax.EMakeRecord{Fields: []syntax.FieldExp{
		{Name: "z", Val: &syntax.ENum{Val: 0}},
		{Name: "y", Val: syntax.ETrue()},
	}}
	if AlphaEquivalent(r1, r4) {
		t.Errorf("field names matter")
	}
}

func TestAlphaReflexiveSymmetricTransitive(t *testing.T) {
	e1 := lam("a", syntax.Int, func(v *syntax.EVar) syntax.Exp {
		return syntax.EEq(v, &syntax.ENum{Val: 0})
	})
	e2 := lam("b", syntax.Int, func(v *syntax.EVar) syntax.Exp {
		return syntax.EEq(v, &syntax.ENum{Val: 0})
	})
	e3 := lam("c", syntax.Int, func(v *syntax.EVar) syntax.Exp {
		return syntax.EEq(v, &syntax.ENum{Val: 0})
	})
	if !AlphaEquivalent(e1, e1) {
		t.Errorf("reflexivity")
	}
	if AlphaEquivalent(e1, e2) != AlphaEquivalent(e2, e1) {
		t.Errorf("symmetry")
	}
	if AlphaEquivalent(e1, e2) && AlphaEquivalent(e2, e3) && !AlphaEquivalent(e1, e3) {
		t.Errorf("transitivity")
	}
}

func TestAlphaComprehensions(t *testing.T) {
	l := syntax.WithType(&syntax.EVar{ID: "L"}, intBag())
	mk := func(name string) syntax.Exp {
		return &syntax.EListComprehension{
			E:       &syntax.EVar{ID: name},
			Clauses: []syntax.Clause{&syntax.CPull{ID: name, E: l}},
		}
	}
	if !AlphaEquivalent(mk("x"), mk("y")) {
		t.Errorf("[x | x <- L] and [y | y <- L] are alpha-equivalent")
	}
	if syntax.Equal(mk("x"), mk("y")) {
		t.Errorf("they are not structurally equal")
	}
}
