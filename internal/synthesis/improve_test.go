package synthesis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cozylang/cozy/internal/impls"
	"github.com/cozylang/cozy/internal/opts"
	"github.com/cozylang/cozy/internal/solver"
	"github.com/cozylang/cozy/internal/syntax"
	"github.com/cozylang/cozy/internal/syntaxtools"
	"github.com/cozylang/cozy/internal/typecheck"
)

func testSpec(t *testing.T) *syntax.Spec {
	t.Helper()
	spec := &syntax.Spec{
		Name:      "IntSet",
		StateVars: []syntax.Arg{{Name: "xs", Type: &syntax.TApp{Ctor: "Bag", Arg: &syntax.TNamed{ID: "Int"}}}},
		Methods: []syntax.Method{
			&syntax.Op{
				Name: "insert",
				Args: []syntax.Arg{{Name: "x", Type: &syntax.TNamed{ID: "Int"}}},
				Body: &syntax.SCall{Target: &syntax.EVar{ID: "xs"}, Func: "add", Args: []syntax.Exp{&syntax.EVar{ID: "x"}}},
			},
			&syntax.Query{
				Name:       "size",
				Visibility: syntax.VisPublic,
				Ret:        &syntax.EUnaryOp{Op: syntax.UOpLength, E: &syntax.EVar{ID: "xs"}},
			},
		},
	}
	require.Empty(t, typecheck.Typecheck(spec))
	return spec
}

func TestImproveImplementationTerminates(t *testing.T) {
	require.NoError(t, opts.Set("log-dir", t.TempDir()))
	ctx := context.Background()
	sol := solver.NewBounded()
	impl, err := impls.ConstructInitial(ctx, testSpec(t), sol)
	require.NoError(t, err)

	progressed := 0
	improved, err := ImproveImplementation(ctx, impl, sol, Options{
		Timeout:    10 * time.Second,
		OnProgress: func(*impls.Implementation) { progressed++ },
	})
	require.NoError(t, err)
	require.NotNil(t, improved)
	require.Contains(t, improved.QueryImpls, "size", "the public query survives improvement")

	// Invariants hold after the loop: implementations read only concrete
	// state and their own arguments.
	live := map[string]bool{}
	for _, b := range improved.ConcreteState {
		live[b.Var.ID] = true
	}
	for name, q := range improved.QueryImpls {
		for _, v := range syntaxtools.FreeVars(q).Vars() {
			require.True(t, live[v.ID], "query %s reads unknown variable %s", name, v.ID)
		}
	}
}

func TestImproveDoesNotMutateInput(t *testing.T) {
	require.NoError(t, opts.Set("log-dir", t.TempDir()))
	ctx := context.Background()
	sol := solver.NewBounded()
	impl, err := impls.ConstructInitial(ctx, testSpec(t), sol)
	require.NoError(t, err)
	stateBefore := len(impl.ConcreteState)
	queriesBefore := len(impl.QuerySpecs)

	_, err = ImproveImplementation(ctx, impl, sol, Options{Timeout: 5 * time.Second})
	require.NoError(t, err)
	require.Equal(t, stateBefore, len(impl.ConcreteState), "the driver works on a defensive copy")
	require.Equal(t, queriesBefore, len(impl.QuerySpecs))
}

func TestJobStopIsPrompt(t *testing.T) {
	j := newJob("stoppable")
	started := make(chan struct{})
	j.Start(func(j *Job) error {
		close(started)
		for !j.StopRequested() {
			time.Sleep(time.Millisecond)
		}
		return nil
	})
	<-started
	j.Stop()
	done := make(chan error, 1)
	go func() { done <- j.Wait() }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop promptly")
	}
}

func TestSizeCostDiscountsStateWork(t *testing.T) {
	xs := syntax.WithType(&syntax.EVar{ID: "xs"}, &syntax.TBag{Elem: syntax.Int})
	runtime := syntax.WithType(&syntax.EUnaryOp{Op: syntax.UOpLength, E: xs}, syntax.Int)
	precomputed := syntax.WithType(&syntax.EStateVar{E: runtime}, syntax.Int)

	cost := SizeCost{}
	require.Less(t, cost.Cost(precomputed), cost.Cost(runtime),
		"maintained state is cheaper than runtime recomputation")
}

func TestHintEnumeratorOnlyYieldsEquivalents(t *testing.T) {
	sol := solver.NewBounded()
	xs := syntax.WithType(&syntax.EVar{ID: "xs"}, &syntax.TBag{Elem: syntax.Int})
	target := syntax.WithType(&syntax.EUnaryOp{Op: syntax.UOpLength, E: xs}, syntax.Int)

	goodHint := syntax.WithType(&syntax.EStateVar{E: target}, syntax.Int)
	badHint := syntax.WithType(&syntax.EStateVar{E: syntax.Zero()}, syntax.Int)

	var got []syntax.Exp
	en := &HintEnumerator{Solver: sol}
	err := en.Enumerate(context.Background(), Problem{
		Target:      target,
		Assumptions: syntax.ETrue(),
		Hints:       []syntax.Exp{badHint, goodHint},
		Cost:        SizeCost{},
	}, func(e syntax.Exp) bool {
		got = append(got, e)
		return true
	})
	require.NoError(t, err)
	require.Len(t, got, 1, "only the equivalent, cheaper hint is yielded")
	require.True(t, syntax.Equal(got[0], goodHint))
}

func TestFixupBindersGrows(t *testing.T) {
	xs := syntax.WithType(&syntax.EVar{ID: "xs"}, &syntax.TBag{Elem: syntax.Int})
	e := syntax.WithType(&syntax.EUnaryOp{Op: syntax.UOpLength, E: xs}, syntax.Int)
	require.Error(t, fixupBinders(e, nil), "no binders for Int")
	require.NoError(t, fixupBinders(e, []*syntax.EVar{syntaxtools.FreshVar(syntax.Int, "b")}))
}
