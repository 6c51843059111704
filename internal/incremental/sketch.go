package incremental

import (
	"context"

	"github.com/cozylang/cozy/internal/names"
	"github.com/cozylang/cozy/internal/prettyprinter"
	"github.com/cozylang/cozy/internal/simplify"
	"github.com/cozylang/cozy/internal/solver"
	"github.com/cozylang/cozy/internal/syntax"
	"github.com/cozylang/cozy/internal/syntaxtools"
)

// Planner sketches update statements against a solver and simplifier.
type Planner struct {
	Solver     solver.Solver
	Simplifier *simplify.Simplifier
}

func NewPlanner(s solver.Solver) *Planner {
	return &Planner{Solver: s, Simplifier: simplify.New(s)}
}

// SketchUpdate produces a statement that, run in a state where lhs holds
// proj's value under assumptions, leaves lhs holding newProj's value. The
// auxiliary queries it returns are Internal, self-contained over the
// abstract state plus the op's arguments, and must be registered by the
// caller; the statement reads them by name.
func (p *Planner) SketchUpdate(
	ctx context.Context,
	lhs syntax.Exp,
	proj syntax.Exp,
	newProj syntax.Exp,
	stateVars []syntax.Arg,
	assumptions []syntax.Exp,
) (syntax.Stm, []*syntax.Query, error) {
	newProj = p.Simplifier.Simplify(ctx, newProj)

	if syntaxtools.AlphaEquivalent(proj, newProj) {
		return &syntax.SNoOp{}, nil, nil
	}
	if same, err := p.Solver.Valid(ctx, syntax.EImplies(syntax.EAll(assumptions), syntax.EEq(proj, newProj))); err == nil && same {
		return &syntax.SNoOp{}, nil, nil
	}

	sk := &sketcher{planner: p, stateVars: stateVars, assumptions: assumptions}
	stm, err := sk.update(ctx, lhs, proj, newProj)
	if err != nil {
		return nil, nil, err
	}
	return stm, sk.queries, nil
}

type sketcher struct {
	planner     *Planner
	stateVars   []syntax.Arg
	assumptions []syntax.Exp
	queries     []*syntax.Query
}

// defineQuery wraps an expression over abstract state into an Internal
// query whose arguments are its non-state free variables, and returns a
// call to it.
func (sk *sketcher) defineQuery(hint, docstring string, ret syntax.Exp) *syntax.ECall {
	isState := map[string]bool{}
	for _, sv := range sk.stateVars {
		isState[sv.Name] = true
	}
	var args []syntax.Arg
	var callArgs []syntax.Exp
	for _, v := range syntaxtools.FreeVars(ret).Vars() {
		if isState[v.ID] {
			continue
		}
		args = append(args, syntax.Arg{Name: v.ID, Type: v.Type()})
		callArgs = append(callArgs, v)
	}
	q := &syntax.Query{
		Name:        names.Fresh(hint),
		Visibility:  syntax.VisInternal,
		Args:        args,
		Assumptions: sk.assumptions,
		Ret:         ret,
		Docstring:   docstring,
	}
	sk.queries = append(sk.queries, q)
	return syntax.WithType(&syntax.ECall{Func: q.Name, Args: callArgs}, ret.Type())
}

func (sk *sketcher) update(ctx context.Context, lhs, proj, newProj syntax.Exp) (syntax.Stm, error) {
	p := sk.planner
	switch t := lhs.Type().(type) {
	case *syntax.TBag, *syntax.TSet:
		elem := syntax.ElemType(t)
		toDel := p.Simplifier.Simplify(ctx, syntax.WithType(&syntax.EBinOp{E1: proj, Op: "-", E2: newProj}, lhs.Type()))
		toAdd := p.Simplifier.Simplify(ctx, syntax.WithType(&syntax.EBinOp{E1: newProj, Op: "-", E2: proj}, lhs.Type()))
		var stms []syntax.Stm
		if !sk.provablyEmpty(ctx, toDel) {
			call := sk.defineQuery("deleted", "elements removed from "+prettyprinter.Exp(lhs), toDel)
			x := syntaxtools.FreshVar(elem, "x")
			stms = append(stms, &syntax.SForEach{
				Var:  x,
				Iter: call,
				Body: &syntax.SCall{Target: lhs, Func: "remove", Args: []syntax.Exp{x}},
			})
		}
		if !sk.provablyEmpty(ctx, toAdd) {
			call := sk.defineQuery("added", "elements added to "+prettyprinter.Exp(lhs), toAdd)
			x := syntaxtools.FreshVar(elem, "x")
			stms = append(stms, &syntax.SForEach{
				Var:  x,
				Iter: call,
				Body: &syntax.SCall{Target: lhs, Func: "add", Args: []syntax.Exp{x}},
			})
		}
		return syntax.Seq(stms...), nil

	case *syntax.TMap:
		keyBag := &syntax.TBag{Elem: t.Key}
		oldKeys := syntax.WithType(&syntax.EMapKeys{E: proj}, keyBag)
		newKeys := syntax.WithType(&syntax.EMapKeys{E: newProj}, keyBag)

		// Keys that disappear.
		kd := syntaxtools.FreshVar(t.Key, "k")
		deadKeys := p.Simplifier.Simplify(ctx, syntax.WithType(&syntax.EFilter{
			E: oldKeys,
			P: &syntax.ELambda{Arg: kd, Body: syntax.ENot(syntax.EIn(kd, newKeys))},
		}, keyBag))

		// Keys whose value is new or changed.
		kc := syntaxtools.FreshVar(t.Key, "k")
		changedKeys := p.Simplifier.Simplify(ctx, syntax.WithType(&syntax.EFilter{
			E: syntax.WithType(&syntax.EUnaryOp{Op: syntax.UOpDistinct, E: newKeys}, keyBag),
			P: &syntax.ELambda{
				Arg: kc,
				Body: syntax.ENot(syntax.EEq(
					syntax.WithType(&syntax.EMapGet{Map: proj, Key: kc}, t.Val),
					syntax.WithType(&syntax.EMapGet{Map: newProj, Key: kc}, t.Val))),
			},
		}, keyBag))

		var stms []syntax.Stm
		if !sk.provablyEmpty(ctx, deadKeys) {
			call := sk.defineQuery("deleted_keys", "map keys removed from "+prettyprinter.Exp(lhs), deadKeys)
			k := syntaxtools.FreshVar(t.Key, "k")
			stms = append(stms, &syntax.SForEach{
				Var:  k,
				Iter: call,
				Body: &syntax.SMapDel{Map: lhs, Key: k},
			})
		}
		if !sk.provablyEmpty(ctx, changedKeys) {
			keysCall := sk.defineQuery("changed_keys", "map keys whose value changed in "+prettyprinter.Exp(lhs), changedKeys)
			k := syntaxtools.FreshVar(t.Key, "k")
			newVal := p.Simplifier.Simplify(ctx, syntax.WithType(&syntax.EMapGet{Map: newProj, Key: k}, t.Val))
			valCall := sk.defineQuery("new_map_val", "new value stored at a changed key of "+prettyprinter.Exp(lhs), newVal)
			stms = append(stms, &syntax.SForEach{
				Var:  k,
				Iter: keysCall,
				Body: &syntax.SMapPut{Map: lhs, Key: k, Value: valCall},
			})
		}
		return syntax.Seq(stms...), nil
	}

	// Scalars, handle fields, and everything else: recompute through one
	// auxiliary query and assign.
	call := sk.defineQuery("new_val", "new value of "+prettyprinter.Exp(lhs), newProj)
	return &syntax.SAssign{LHS: lhs, RHS: call}, nil
}

func (sk *sketcher) provablyEmpty(ctx context.Context, bag syntax.Exp) bool {
	if _, ok := bag.(*syntax.EEmptyList); ok {
		return true
	}
	ok, err := sk.planner.Solver.Valid(ctx, syntax.EImplies(syntax.EAll(sk.assumptions), syntax.EEmpty(bag)))
	return err == nil && ok
}
