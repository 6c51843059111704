// Package simplify normalizes expressions with solver-validated rewrites:
// conditionals are pushed outward, maps and filters collapse over
// concatenations and singletons, and boolean constants fold away. Every
// rewrite preserves semantic equality under the ambient assumptions.
package simplify

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/cozylang/cozy/internal/prettyprinter"
	"github.com/cozylang/cozy/internal/solver"
	"github.com/cozylang/cozy/internal/syntax"
	"github.com/cozylang/cozy/internal/syntaxtools"
)

// Simplifier rewrites expressions bottom-up. With Validate set, each call
// cross-checks the result against the solver and falls back to the original
// expression when a rewrite cannot be proven sound; the miscompiled form is
// never returned.
type Simplifier struct {
	Solver   solver.Solver
	Validate bool
}

// New returns a validating simplifier over the given oracle.
func New(s solver.Solver) *Simplifier {
	return &Simplifier{Solver: s, Validate: true}
}

// Simplify rewrites e. The result has the same type and meaning as e.
func (s *Simplifier) Simplify(ctx context.Context, e syntax.Exp) syntax.Exp {
	res := visit(e)
	if s.Validate && s.Solver != nil {
		ok, err := s.Solver.Valid(ctx, syntax.EDeepEq(e, res))
		if err != nil || !ok {
			logrus.WithFields(logrus.Fields{
				"orig":    prettyprinter.Exp(e),
				"rewrite": prettyprinter.Exp(res),
				"error":   err,
			}).Error("simplify produced an unproven rewrite; keeping original")
			return e
		}
	}
	return res
}

func visit(e syntax.Exp) syntax.Exp {
	switch e := e.(type) {
	case *syntax.EArgMin:
		if e.NoSimpl {
			return e
		}
		return visitArgMin(e.E, e.F, e.Type(), true)
	case *syntax.EArgMax:
		if e.NoSimpl {
			return e
		}
		return visitArgMin(e.E, e.F, e.Type(), false)

	case *syntax.ELambda:
		return &syntax.ELambda{Arg: e.Arg, Body: visit(e.Body)}

	case *syntax.EBinOp:
		return visitBinOp(e)

	case *syntax.ECond:
		cond := visit(e.Cond)
		if syntax.IsTrue(cond) {
			return visit(e.Then)
		}
		if syntax.IsFalse(cond) {
			return visit(e.Else)
		}
		thenB := visit(e.Then)
		elseB := visit(e.Else)
		if syntaxtools.AlphaEquivalent(thenB, elseB) {
			return thenB
		}
		return syntax.WithType(&syntax.ECond{Cond: cond, Then: thenB, Else: elseB}, e.Type())

	case *syntax.EWithAlteredValue:
		t := e.Type()
		addr := visit(e.Handle)
		val := visit(e.NewValue)
		for {
			if w, ok := addr.(*syntax.EWithAlteredValue); ok {
				addr = w.Handle
				continue
			}
			break
		}
		if c, ok := addr.(*syntax.ECond); ok {
			return visit(syntax.WithType(&syntax.ECond{
				Cond: c.Cond,
				Then: syntax.WithType(&syntax.EWithAlteredValue{Handle: c.Then, NewValue: val}, t),
				Else: syntax.WithType(&syntax.EWithAlteredValue{Handle: c.Else, NewValue: val}, t),
			}, t))
		}
		return syntax.WithType(&syntax.EWithAlteredValue{Handle: addr, NewValue: val}, t)

	case *syntax.EGetField:
		record := visit(e.E)
		if c, ok := record.(*syntax.ECond); ok {
			return visit(syntax.WithType(&syntax.ECond{
				Cond: c.Cond,
				Then: syntax.WithType(&syntax.EGetField{E: c.Then, Field: e.Field}, e.Type()),
				Else: syntax.WithType(&syntax.EGetField{E: c.Else, Field: e.Field}, e.Type()),
			}, e.Type()))
		}
		if w, ok := record.(*syntax.EWithAlteredValue); ok && e.Field == "val" {
			return w.NewValue
		}
		if r, ok := record.(*syntax.EMakeRecord); ok {
			for _, f := range r.Fields {
				if f.Name == e.Field {
					return f.Val
				}
			}
		}
		return syntax.WithType(&syntax.EGetField{E: record, Field: e.Field}, e.Type())

	case *syntax.EFilter:
		return visitFilter(e)

	case *syntax.EMap:
		return visitMap(e)

	case *syntax.EMapKeys:
		ee := visit(e.E)
		if mk, ok := ee.(*syntax.EMakeMap2); ok {
			return visit(syntax.WithType(&syntax.EUnaryOp{Op: syntax.UOpDistinct, E: mk.E}, e.Type()))
		}
		return syntax.WithType(&syntax.EMapKeys{E: ee}, e.Type())

	case *syntax.EUnaryOp:
		return visitUnaryOp(e)
	}

	return mapChildren(e)
}

func mapChildren(e syntax.Exp) syntax.Exp {
	return syntaxtools.MapChildExps(e, func(c syntax.Exp) syntax.Exp {
		return visit(c)
	})
}
