package invariants

import (
	"context"
	"strings"
	"testing"

	"github.com/cozylang/cozy/internal/solver"
	"github.com/cozylang/cozy/internal/syntax"
	"github.com/cozylang/cozy/internal/typecheck"
)

func checkedSpec(t *testing.T, spec *syntax.Spec) *syntax.Spec {
	t.Helper()
	if errs := typecheck.Typecheck(spec); len(errs) != 0 {
		t.Fatalf("spec does not typecheck: %v", errs)
	}
	return spec
}

func intBagT() syntax.Type { return &syntax.TApp{Ctor: "Bag", Arg: &syntax.TNamed{ID: "Int"}} }

func TestOpViolatingInvariantIsFlagged(t *testing.T) {
	// Invariant: xs is empty. insert obviously breaks it.
	spec := checkedSpec(t, &syntax.Spec{
		Name:      "Bad",
		StateVars: []syntax.Arg{{Name: "xs", Type: intBagT()}},
		Assumptions: []syntax.Exp{
			&syntax.EUnaryOp{Op: syntax.UOpEmpty, E: &syntax.EVar{ID: "xs"}},
		},
		Methods: []syntax.Method{
			&syntax.Op{
				Name: "insert",
				Args: []syntax.Arg{{Name: "x", Type: &syntax.TNamed{ID: "Int"}}},
				Body: &syntax.SCall{Target: &syntax.EVar{ID: "xs"}, Func: "add", Args: []syntax.Exp{&syntax.EVar{ID: "x"}}},
			},
		},
	})
	problems, err := CheckOpsPreserveInvariants(context.Background(), spec, solver.NewBounded())
	if err != nil {
		t.Fatal(err)
	}
	if len(problems) != 1 || !strings.Contains(problems[0], "insert") {
		t.Fatalf("expected one problem naming the op, got %v", problems)
	}
}

func TestOpPreservingInvariantPasses(t *testing.T) {
	// Invariant: 0 ∈ xs. Adding keeps membership.
	spec := checkedSpec(t, &syntax.Spec{
		Name:      "Ok",
		StateVars: []syntax.Arg{{Name: "xs", Type: intBagT()}},
		Assumptions: []syntax.Exp{
			&syntax.EBinOp{E1: syntax.Zero(), Op: syntax.BOpIn, E2: &syntax.EVar{ID: "xs"}},
		},
		Methods: []syntax.Method{
			&syntax.Op{
				Name: "insert",
				Args: []syntax.Arg{{Name: "x", Type: &syntax.TNamed{ID: "Int"}}},
				Body: &syntax.SCall{Target: &syntax.EVar{ID: "xs"}, Func: "add", Args: []syntax.Exp{&syntax.EVar{ID: "x"}}},
			},
		},
	})
	problems, err := CheckOpsPreserveInvariants(context.Background(), spec, solver.NewBounded())
	if err != nil {
		t.Fatal(err)
	}
	if len(problems) != 0 {
		t.Fatalf("insert preserves membership, got %v", problems)
	}
}

func TestPreservationCheckCanBeDisabled(t *testing.T) {
	old := PreservationCheck.Value()
	PreservationCheck.Set(false)
	defer PreservationCheck.Set(old)
	problems, err := CheckOpsPreserveInvariants(context.Background(), &syntax.Spec{Name: "X"}, solver.NewBounded())
	if err != nil || problems != nil {
		t.Errorf("disabled check reports nothing")
	}
}

func TestCheckTheWF(t *testing.T) {
	spec := checkedSpec(t, &syntax.Spec{
		Name:      "The",
		StateVars: []syntax.Arg{{Name: "xs", Type: intBagT()}},
		Methods: []syntax.Method{
			&syntax.Query{
				Name:       "pick",
				Visibility: syntax.VisPublic,
				Ret:        &syntax.EUnaryOp{Op: syntax.UOpThe, E: &syntax.EVar{ID: "xs"}},
			},
		},
	})
	problems, err := CheckTheWF(context.Background(), spec, solver.NewBounded())
	if err != nil {
		t.Fatal(err)
	}
	if len(problems) != 1 {
		t.Fatalf("`the` over an unconstrained bag must be flagged, got %v", problems)
	}

	guarded := checkedSpec(t, &syntax.Spec{
		Name:      "TheGuarded",
		StateVars: []syntax.Arg{{Name: "xs", Type: intBagT()}},
		Assumptions: []syntax.Exp{
			&syntax.EBinOp{
				E1: &syntax.EUnaryOp{Op: syntax.UOpLength, E: &syntax.EVar{ID: "xs"}},
				Op: "<=",
				E2: syntax.One(),
			},
		},
		Methods: []syntax.Method{
			&syntax.Query{
				Name:       "pick",
				Visibility: syntax.VisPublic,
				Ret:        &syntax.EUnaryOp{Op: syntax.UOpThe, E: &syntax.EVar{ID: "xs"}},
			},
		},
	})
	problems, err = CheckTheWF(context.Background(), guarded, solver.NewBounded())
	if err != nil {
		t.Fatal(err)
	}
	if len(problems) != 0 {
		t.Fatalf("a guarded `the` is fine, got %v", problems)
	}
}

func TestAddImplicitHandleAssumptions(t *testing.T) {
	ht := &syntax.THandle{StateVar: "hs", ValueType: syntax.Int}
	spec := &syntax.Spec{
		Name:      "H",
		StateVars: []syntax.Arg{{Name: "hs", Type: &syntax.TBag{Elem: ht}}},
		Methods: []syntax.Method{
			&syntax.Op{Name: "noop", Body: &syntax.SNoOp{}},
		},
	}
	out := AddImplicitHandleAssumptions(spec)
	op := out.Methods[0].(*syntax.Op)
	if len(op.Assumptions) != 1 {
		t.Fatalf("the op must gain the aliasing assumption, got %d", len(op.Assumptions))
	}
	if len(spec.Methods[0].(*syntax.Op).Assumptions) != 0 {
		t.Errorf("the input spec must not be mutated")
	}
}
