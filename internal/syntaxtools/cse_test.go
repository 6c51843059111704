package syntaxtools

import (
	"testing"

	"github.com/cozylang/cozy/internal/syntax"
)

func TestCseLiftsSharedSubterm(t *testing.T) {
	x := syntax.WithType(&syntax.EVar{ID: "x"}, syntax.Int)
	plus1 := func() syntax.Exp {
		return syntax.WithType(&syntax.EBinOp{E1: x, Op: "+", E2: syntax.One()}, syntax.Int)
	}
	e := syntax.WithType(&syntax.EBinOp{E1: plus1(), Op: "+", E2: plus1()}, syntax.Int)

	got := Cse(e)
	let, ok := got.(*syntax.ELet)
	if !ok {
		t.Fatalf("expected a let, got %T", got)
	}
	if !syntax.Equal(let.E, plus1()) {
		t.Errorf("let binds the shared subterm")
	}
	body, ok := let.F.Body.(*syntax.EBinOp)
	if !ok {
		t.Fatalf("let body should be the rebuilt sum, got %T", let.F.Body)
	}
	v1, ok1 := body.E1.(*syntax.EVar)
	v2, ok2 := body.E2.(*syntax.EVar)
	if !ok1 || !ok2 || v1.ID != let.F.Arg.ID || v2.ID != let.F.Arg.ID {
		t.Errorf("both occurrences must read the let-bound variable")
	}
}

func TestCseLeavesSingleUseAlone(t *testing.T) {
	x := syntax.WithType(&syntax.EVar{ID: "x"}, syntax.Int)
	e := syntax.WithType(&syntax.EBinOp{E1: x, Op: "+", E2: syntax.One()}, syntax.Int)
	got := Cse(e)
	if !syntax.Equal(got, e) {
		t.Errorf("nothing is shared, nothing to lift")
	}
}

func TestCseLambdaScopeBarrier(t *testing.T) {
	xs := syntax.WithType(&syntax.EVar{ID: "xs"}, intBag())
	e := syntax.WithType(&syntax.EFilter{
		E: xs,
		P: MkLambda(syntax.Int, func(v *syntax.EVar) syntax.Exp {
			sq := syntax.WithType(&syntax.EBinOp{E1: v, Op: "+", E2: v}, syntax.Int)
			return syntax.EEq(sq, sq)
		}),
	}, intBag())

	got := Cse(e).(*syntax.EFilter)
	// The shared v+v mentions the bound variable, so its binding must stay
	// inside the lambda.
	if _, ok := got.P.Body.(*syntax.ELet); !ok {
		t.Errorf("sharing under the binder is expressed inside the lambda, got %T", got.P.Body)
	}
}

func TestCsePreservesFreeVariables(t *testing.T) {
	x := syntax.WithType(&syntax.EVar{ID: "x"}, syntax.Int)
	y := syntax.WithType(&syntax.EVar{ID: "y"}, syntax.Int)
	sum := syntax.WithType(&syntax.EBinOp{E1: x, Op: "+", E2: y}, syntax.Int)
	e := syntax.WithType(&syntax.EBinOp{E1: sum, Op: "+", E2: sum}, syntax.Int)

	before := FreeVarNames(e)
	after := FreeVarNames(Cse(e))
	for name := range before {
		if !after[name] {
			t.Errorf("free variable %s lost", name)
		}
	}
	for name := range after {
		if !before[name] {
			t.Errorf("free variable %s invented", name)
		}
	}
}
