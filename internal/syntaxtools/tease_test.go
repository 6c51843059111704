package syntaxtools

import (
	"testing"

	"github.com/cozylang/cozy/internal/syntax"
)

func TestTeaseApartLiftsBarriers(t *testing.T) {
	xs := syntax.WithType(&syntax.EVar{ID: "xs"}, intBag())
	wrapped := syntax.WithType(&syntax.EStateVar{E: xs}, intBag())
	e := syntax.WithType(&syntax.EUnaryOp{Op: syntax.UOpLength, E: wrapped}, syntax.Int)

	rep, ret := TeaseApart(e)
	if len(rep) != 1 {
		t.Fatalf("one barrier, one binding; got %d", len(rep))
	}
	if !syntax.Equal(rep[0].Proj, xs) {
		t.Errorf("projection is the barrier contents")
	}
	u, ok := ret.(*syntax.EUnaryOp)
	if !ok {
		t.Fatalf("shape preserved, got %T", ret)
	}
	v, ok := u.E.(*syntax.EVar)
	if !ok || v.ID != rep[0].Var.ID {
		t.Errorf("ret must read the fresh state variable")
	}
}

func TestTeaseApartSharesEqualProjections(t *testing.T) {
	xs := syntax.WithType(&syntax.EVar{ID: "xs"}, intBag())
	w1 := syntax.WithType(&syntax.EStateVar{E: xs}, intBag())
	w2 := syntax.WithType(&syntax.EStateVar{E: xs}, intBag())
	e := syntax.WithType(&syntax.EBinOp{
		E1: syntax.WithType(&syntax.EUnaryOp{Op: syntax.UOpLength, E: w1}, syntax.Int),
		Op: "+",
		E2: syntax.WithType(&syntax.EUnaryOp{Op: syntax.UOpLength, E: w2}, syntax.Int),
	}, syntax.Int)

	rep, _ := TeaseApart(e)
	if len(rep) != 1 {
		t.Errorf("identical projections share one variable, got %d", len(rep))
	}
}

func TestWrapNakedStateVars(t *testing.T) {
	xs := syntax.WithType(&syntax.EVar{ID: "xs"}, intBag())
	k := syntax.WithType(&syntax.EVar{ID: "k"}, syntax.Int)
	e := syntax.EIn(k, xs)
	state := NewVarSet(xs)

	wrapped := WrapNakedStateVars(e, state)
	bin := wrapped.(*syntax.EBinOp)
	if _, ok := bin.E2.(*syntax.EStateVar); !ok {
		t.Errorf("state reads must gain a barrier")
	}
	if _, ok := bin.E1.(*syntax.EVar); !ok {
		t.Errorf("query arguments stay naked")
	}

	// Idempotent on already-wrapped expressions.
	again := WrapNakedStateVars(wrapped, state)
	if !syntax.Equal(again, wrapped) {
		t.Errorf("wrapping twice must not nest barriers")
	}
}

func TestExpWFStatePool(t *testing.T) {
	xs := syntax.WithType(&syntax.EVar{ID: "xs"}, intBag())
	k := syntax.WithType(&syntax.EVar{ID: "k"}, syntax.Int)
	state := NewVarSet(xs)
	args := NewVarSet(k)

	if err := ExpWF(xs, state, args, StatePool); err != nil {
		t.Errorf("plain state read is state-pool legal: %v", err)
	}
	if err := ExpWF(syntax.EIn(k, xs), state, args, StatePool); !ErrStateExpUsesArg.Is(err) {
		t.Errorf("state pool rejects query arguments, got %v", err)
	}
	barrier := syntax.WithType(&syntax.EStateVar{E: xs}, intBag())
	if err := ExpWF(barrier, state, args, StatePool); !ErrStateExpHasBarrier.Is(err) {
		t.Errorf("state pool rejects nested barriers, got %v", err)
	}
}

func TestExpWFRuntimePool(t *testing.T) {
	xs := syntax.WithType(&syntax.EVar{ID: "xs"}, intBag())
	k := syntax.WithType(&syntax.EVar{ID: "k"}, syntax.Int)
	state := NewVarSet(xs)
	args := NewVarSet(k)

	naked := syntax.EIn(k, xs)
	if err := ExpWF(naked, state, args, RuntimePool); !ErrNakedStateVar.Is(err) {
		t.Errorf("runtime pool demands barriers around state vars, got %v", err)
	}
	wrapped := WrapNakedStateVars(naked, state)
	if err := ExpWF(wrapped, state, args, RuntimePool); err != nil {
		t.Errorf("wrapped expression is runtime-pool legal: %v", err)
	}
}
