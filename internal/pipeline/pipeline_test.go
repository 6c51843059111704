package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cozylang/cozy/internal/opts"
	"github.com/cozylang/cozy/internal/solver"
	"github.com/cozylang/cozy/internal/syntax"
)

func intSetSpec() *syntax.Spec {
	return &syntax.Spec{
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
}

func TestDefaultPipelineEndToEnd(t *testing.T) {
	require.NoError(t, opts.Set("log-dir", t.TempDir()))
	pctx := &Context{
		Spec:    intSetSpec(),
		Solver:  solver.NewBounded(),
		Timeout: 10 * time.Second,
	}
	require.NoError(t, Default().Run(context.Background(), pctx))
	require.NotNil(t, pctx.Impl)
	require.NotNil(t, pctx.Code)
	require.Empty(t, pctx.TypeErrors)
	require.NotEmpty(t, pctx.Code.StateVars, "emitted code declares concrete state")
	require.NotEmpty(t, pctx.Code.Queries(), "emitted code answers the public queries")
	require.NotEmpty(t, pctx.Code.Ops(), "emitted code implements the ops")
}

func TestPipelineAbortsOnTypeErrors(t *testing.T) {
	bad := &syntax.Spec{
		Name: "Bad",
		Methods: []syntax.Method{
			&syntax.Query{Name: "q", Visibility: syntax.VisPublic, Ret: &syntax.EVar{ID: "missing"}},
		},
	}
	pctx := &Context{Spec: bad, Solver: solver.NewBounded()}
	err := Default().Run(context.Background(), pctx)
	require.True(t, ErrTypecheck.Is(err))
	require.NotEmpty(t, pctx.TypeErrors)
	require.Nil(t, pctx.Code, "no code is emitted for inadmissible specs")
}
