// Package invariants holds the feature-flagged sanity checks run between
// type-checking and synthesis: ops must preserve the spec's global
// assumptions, and `the` may only be applied where its argument is at most
// a singleton.
package invariants

import (
	"context"
	"fmt"

	"github.com/cozylang/cozy/internal/handles"
	"github.com/cozylang/cozy/internal/incremental"
	"github.com/cozylang/cozy/internal/opts"
	"github.com/cozylang/cozy/internal/prettyprinter"
	"github.com/cozylang/cozy/internal/solver"
	"github.com/cozylang/cozy/internal/syntax"
	"github.com/cozylang/cozy/internal/syntaxtools"
)

// PreservationCheck gates CheckOpsPreserveInvariants.
var PreservationCheck = opts.Bool("invariant-preservation-check", true)

// AddImplicitHandleAssumptions returns spec extended so every method assumes
// that reachable handles with equal addresses carry equal values.
func AddImplicitHandleAssumptions(spec *syntax.Spec) *syntax.Spec {
	out := syntax.CopySpec(spec)
	var methods []syntax.Method
	for _, m := range spec.Methods {
		bags := handles.ReachableAtMethod(spec, m)
		extra := handles.ImplicitAssumptions(bags)
		switch m := m.(type) {
		case *syntax.Op:
			mm := syntax.CopyOp(m)
			mm.Assumptions = append(mm.Assumptions, extra...)
			methods = append(methods, mm)
		case *syntax.Query:
			mm := syntax.CopyQuery(m)
			mm.Assumptions = append(mm.Assumptions, extra...)
			methods = append(methods, mm)
		}
	}
	out.Methods = methods
	return out
}

// CheckOpsPreserveInvariants verifies that every op re-establishes every
// global assumption. Failures are reported as human-readable strings; they
// do not abort synthesis.
func CheckOpsPreserveInvariants(ctx context.Context, spec *syntax.Spec, sol solver.Solver) ([]string, error) {
	if !PreservationCheck.Value() {
		return nil, nil
	}
	var res []string
	for _, op := range spec.Ops() {
		tracked := append(append([]syntax.Arg{}, spec.StateVars...), op.Args...)
		delta, err := incremental.DeltaForm(tracked, op)
		if err != nil {
			return nil, err
		}
		for _, a := range spec.Assumptions {
			post := syntaxtools.SubstExp(a, delta)
			assumptions := append(append([]syntax.Exp{}, op.Assumptions...), spec.Assumptions...)
			holds, err := sol.Valid(ctx, syntaxtools.Cse(syntax.EImplies(syntax.EAll(assumptions), post)))
			if err != nil {
				return nil, err
			}
			if !holds {
				res = append(res, fmt.Sprintf("%q may not preserve invariant %s", op.Name, prettyprinter.Exp(a)))
			}
		}
	}
	return res, nil
}

// CheckTheWF flags every `the` whose argument is not provably empty or a
// singleton under the assumptions at its position.
func CheckTheWF(ctx context.Context, spec *syntax.Spec, sol solver.Solver) ([]string, error) {
	var res []string
	for _, frag := range syntaxtools.EnumerateFragmentsSpec(spec) {
		u, ok := frag.Exp.(*syntax.EUnaryOp)
		if !ok || u.Op != syntax.UOpThe {
			continue
		}
		claim := syntax.EImplies(
			syntax.EAll(frag.Assumptions),
			syntax.EAny([]syntax.Exp{syntax.EIsSingleton(u.E), syntax.EEmpty(u.E)}))
		holds, err := sol.Valid(ctx, syntaxtools.Cse(claim))
		if err != nil {
			return nil, err
		}
		if !holds {
			res = append(res, fmt.Sprintf(
				"at %s: `the` is illegal since its argument may not be singleton", prettyprinter.Exp(u)))
		}
	}
	return res, nil
}
