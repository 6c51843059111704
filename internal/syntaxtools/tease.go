package syntaxtools

import (
	"github.com/cozylang/cozy/internal/syntax"
)

// Binding pairs a concrete state variable with its projection over abstract
// state.
type Binding struct {
	Var  *syntax.EVar
	Proj syntax.Exp
}

// TeaseApart splits an expression into the state portions and the runtime
// portion: every outermost EStateVar barrier becomes a fresh concrete state
// variable bound to its contents, and the returned expression reads those
// variables instead. Structurally identical projections share one variable.
func TeaseApart(e syntax.Exp) ([]Binding, syntax.Exp) {
	var rep []Binding
	table := newExpTable()

	var strip func(x syntax.Exp) syntax.Exp
	strip = func(x syntax.Exp) syntax.Exp {
		if sv, ok := x.(*syntax.EStateVar); ok {
			proj := sv.E
			if v, ok := table.get(proj); ok {
				return v
			}
			v := FreshVar(proj.Type(), "state")
			table.put(proj, v)
			rep = append(rep, Binding{Var: v, Proj: proj})
			return v
		}
		return mapChildExps(x, func(c syntax.Exp) syntax.Exp {
			if l, ok := c.(*syntax.ELambda); ok {
				return &syntax.ELambda{Arg: l.Arg, Body: strip(l.Body)}
			}
			return strip(c)
		})
	}

	ret := strip(e)
	return rep, ret
}

// WrapNakedStateVars wraps every free occurrence of a state variable that is
// not already under a barrier in EStateVar, making the expression well
// formed in the runtime pool.
func WrapNakedStateVars(e syntax.Exp, stateVars *VarSet) syntax.Exp {
	var wrap func(x syntax.Exp, depth int) syntax.Exp
	wrap = func(x syntax.Exp, depth int) syntax.Exp {
		switch x := x.(type) {
		case *syntax.EVar:
			if depth == 0 && stateVars.Has(x.ID) {
				return syntax.WithType(&syntax.EStateVar{E: x}, x.Type())
			}
			return x
		case *syntax.EStateVar:
			return retyped(&syntax.EStateVar{E: wrap(x.E, depth+1)}, x)
		}
		return mapChildExps(x, func(c syntax.Exp) syntax.Exp {
			if l, ok := c.(*syntax.ELambda); ok {
				return &syntax.ELambda{Arg: l.Arg, Body: wrap(l.Body, depth)}
			}
			return wrap(c, depth)
		})
	}
	return wrap(e, 0)
}
