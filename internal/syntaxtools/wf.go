package syntaxtools

import (
	errors "gopkg.in/src-d/go-errors.v1"

	"github.com/cozylang/cozy/internal/opts"
	"github.com/cozylang/cozy/internal/prettyprinter"
	"github.com/cozylang/cozy/internal/syntax"
)

// EnforceStateVarBoundaries turns on the aggressive well-formedness checks
// at EStateVar construction sites.
var EnforceStateVarBoundaries = opts.Bool("enforce-well-formed-state-var-boundaries", false)

var (
	ErrStateExpHasBarrier = errors.NewKind("state expression has a state-var barrier inside: %s")
	ErrStateExpUsesArg    = errors.NewKind("state expression mentions query argument %s")
	ErrNakedStateVar      = errors.NewKind("state var %s is not wrapped in a barrier")
)

// ExpWF checks the pool discipline of e. In the state pool the expression
// may contain no EStateVar nodes and no free query arguments; in the runtime
// pool every free state variable must be inside some EStateVar whose
// contents are themselves state-pool well formed.
func ExpWF(e syntax.Exp, stateVars, args *VarSet, pool Pool) error {
	if pool == StatePool {
		if !syntax.Equal(StripEStateVar(e), e) {
			return ErrStateExpHasBarrier.New(summary(e))
		}
		for _, v := range FreeVars(e).Vars() {
			if args.Has(v.ID) {
				return ErrStateExpUsesArg.New(v.ID)
			}
		}
		return nil
	}

	// Runtime pool: validate each barrier's contents, then replace barriers
	// with a neutral value and demand the remainder mentions no state var.
	var err error
	z := neutralizeBarriers(e, func(inner syntax.Exp) {
		if err == nil {
			err = ExpWF(inner, stateVars, args, StatePool)
		}
	})
	if err != nil {
		return err
	}
	for _, v := range FreeVars(z).Vars() {
		if stateVars.Has(v.ID) {
			return ErrNakedStateVar.New(v.ID)
		}
	}
	return nil
}

// neutralizeBarriers replaces every outermost EStateVar with a fresh opaque
// variable of the right type, reporting each barrier's contents to visit.
func neutralizeBarriers(e syntax.Exp, visit func(syntax.Exp)) syntax.Exp {
	var go_ func(x syntax.Exp) syntax.Exp
	go_ = func(x syntax.Exp) syntax.Exp {
		if sv, ok := x.(*syntax.EStateVar); ok {
			visit(sv.E)
			return FreshVar(sv.Type(), "barrier")
		}
		return mapChildExps(x, func(c syntax.Exp) syntax.Exp {
			if l, ok := c.(*syntax.ELambda); ok {
				return &syntax.ELambda{Arg: l.Arg, Body: go_(l.Body)}
			}
			return go_(c)
		})
	}
	return go_(e)
}

func summary(e syntax.Exp) string {
	return prettyprinter.Exp(e)
}
