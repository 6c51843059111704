// Package impls maintains the evolving Implementation: the chosen concrete
// state, the query bodies that read it, and the per-op update code that
// keeps every concrete variable faithful to its projection.
package impls

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/cozylang/cozy/internal/handles"
	"github.com/cozylang/cozy/internal/incremental"
	"github.com/cozylang/cozy/internal/names"
	"github.com/cozylang/cozy/internal/opts"
	"github.com/cozylang/cozy/internal/prettyprinter"
	"github.com/cozylang/cozy/internal/simplify"
	"github.com/cozylang/cozy/internal/solver"
	"github.com/cozylang/cozy/internal/syntax"
	"github.com/cozylang/cozy/internal/syntaxtools"
)

// DedupQueries controls whether discovered sub-queries are deduplicated
// against existing ones.
var DedupQueries = opts.Bool("deduplicate-subqueries", true)

// UpdateKey addresses the update statement for one concrete variable under
// one op.
type UpdateKey struct {
	Var string
	Op  string
}

// HandleUpdate is the per-(handle type, op) assignment of new values to
// mutated handles.
type HandleUpdate struct {
	Type *syntax.THandle
	Op   string
	Code syntax.Stm
}

// Implementation pairs a spec with its concretization. All mutation happens
// on a single goroutine; workers receive read-only snapshots.
type Implementation struct {
	Spec          *syntax.Spec
	ConcreteState []syntaxtools.Binding
	QuerySpecs    []*syntax.Query
	QueryImpls    map[string]*syntax.Query
	queryOrder    []string
	Updates       map[UpdateKey]syntax.Stm
	HandleUpdates []*HandleUpdate

	sol     solver.Solver
	planner *incremental.Planner
	simpl   *simplify.Simplifier
}

// New returns an empty implementation over spec.
func New(spec *syntax.Spec, sol solver.Solver) *Implementation {
	return &Implementation{
		Spec:       spec,
		QueryImpls: map[string]*syntax.Query{},
		Updates:    map[UpdateKey]syntax.Stm{},
		sol:        sol,
		planner:    incremental.NewPlanner(sol),
		simpl:      simplify.New(sol),
	}
}

// ConstructInitial builds the trivial implementation of a typechecked spec:
// one concrete variable per state-var projection appearing in each query,
// verbatim query bodies, and handle update code for every op.
func ConstructInitial(ctx context.Context, spec *syntax.Spec, sol solver.Solver) (*Implementation, error) {
	impl := New(spec, sol)
	for _, q := range spec.Queries() {
		if err := impl.AddQuery(ctx, q); err != nil {
			return nil, err
		}
	}
	if err := impl.setupHandleUpdates(ctx); err != nil {
		return nil, err
	}
	impl.Cleanup()
	return impl, nil
}

// Clone copies the mutable containers so improvement rounds can work on a
// defensive copy.
func (impl *Implementation) Clone() *Implementation {
	out := New(impl.Spec, impl.sol)
	out.ConcreteState = append([]syntaxtools.Binding{}, impl.ConcreteState...)
	out.QuerySpecs = append([]*syntax.Query{}, impl.QuerySpecs...)
	out.queryOrder = append([]string{}, impl.queryOrder...)
	for k, v := range impl.QueryImpls {
		out.QueryImpls[k] = v
	}
	for k, v := range impl.Updates {
		out.Updates[k] = v
	}
	out.HandleUpdates = append([]*HandleUpdate{}, impl.HandleUpdates...)
	return out
}

// AbstractState returns the spec's state variables as typed expressions.
func (impl *Implementation) AbstractState() []*syntax.EVar {
	out := make([]*syntax.EVar, len(impl.Spec.StateVars))
	for i, sv := range impl.Spec.StateVars {
		out[i] = syntax.WithType(&syntax.EVar{ID: sv.Name}, sv.Type)
	}
	return out
}

// ConcretizationFunctions maps each concrete state variable to its
// projection over abstract state.
func (impl *Implementation) ConcretizationFunctions() []syntaxtools.Binding {
	return impl.ConcreteState
}

// AddQuery registers a query given over abstract state and installs its
// initial concrete implementation.
func (impl *Implementation) AddQuery(ctx context.Context, q *syntax.Query) error {
	impl.QuerySpecs = append(impl.QuerySpecs, q)
	rep, ret := syntaxtools.TeaseApart(
		syntaxtools.WrapNakedStateVars(q.Ret, syntaxtools.NewVarSet(impl.AbstractState()...)))
	return impl.SetImpl(ctx, q, rep, ret)
}

// findQuery returns the registered query spec with the given name.
func (impl *Implementation) findQuery(name string) *syntax.Query {
	for _, q := range impl.QuerySpecs {
		if q.Name == name {
			return q
		}
	}
	return nil
}

// SetImpl installs a (rep, ret) implementation of q: rep entries are
// deduplicated against the existing concrete state through the solver,
// survivors extend it, and every op gains incremental update code for every
// new concrete variable. Discovered sub-queries are registered recursively.
func (impl *Implementation) SetImpl(ctx context.Context, q *syntax.Query, rep []syntaxtools.Binding, ret syntax.Exp) error {
	if syntaxtools.EnforceStateVarBoundaries.Value() {
		stateVars := syntaxtools.NewVarSet(impl.AbstractState()...)
		var args []*syntax.EVar
		for _, a := range q.Args {
			args = append(args, syntax.WithType(&syntax.EVar{ID: a.Name}, a.Type))
		}
		argSet := syntaxtools.NewVarSet(args...)
		for _, b := range rep {
			if err := syntaxtools.ExpWF(b.Proj, stateVars, argSet, syntaxtools.StatePool); err != nil {
				return err
			}
		}
	}

	specAssumptions := syntax.EAll(impl.Spec.Assumptions)

	var fresh []syntaxtools.Binding
	for _, b := range rep {
		var equiv *syntax.EVar
		for _, existing := range impl.ConcreteState {
			if !syntax.Equal(typeOf(existing.Proj), typeOf(b.Proj)) {
				continue
			}
			same, err := impl.sol.Valid(ctx, syntax.EImplies(specAssumptions, syntax.EEq(b.Proj, existing.Proj)))
			if err != nil {
				return err
			}
			if same {
				equiv = existing.Var
				break
			}
		}
		if equiv != nil {
			logrus.WithFields(logrus.Fields{
				"var":   b.Var.ID,
				"alias": equiv.ID,
			}).Debug("concrete state deduplicated")
			ret = syntaxtools.SubstExp(ret, map[string]syntax.Exp{b.Var.ID: equiv})
		} else {
			fresh = append(fresh, b)
		}
	}

	impl.ConcreteState = append(impl.ConcreteState, fresh...)
	impl.installImpl(q.Name, rewriteRet(q, ret))

	for _, op := range impl.Spec.Ops() {
		tracked := append(append([]syntax.Arg{}, impl.Spec.StateVars...), op.Args...)
		delta, err := incremental.DeltaForm(tracked, op)
		if err != nil {
			return err
		}
		for _, b := range fresh {
			newProj := syntaxtools.SubstExp(b.Proj, delta)
			stm, subqueries, err := impl.planner.SketchUpdate(
				ctx, b.Var, b.Proj, newProj, impl.Spec.StateVars, op.Assumptions)
			if err != nil {
				return err
			}
			for _, subQ := range subqueries {
				subQ.Docstring = "[" + op.Name + "] " + subQ.Docstring
				stm, err = impl.addSubquery(ctx, subQ, stm)
				if err != nil {
					return err
				}
			}
			impl.Updates[UpdateKey{Var: b.Var.ID, Op: op.Name}] = stm
		}
	}
	return nil
}

// installImpl records a query implementation, preserving first-install
// order.
func (impl *Implementation) installImpl(name string, q *syntax.Query) {
	if _, seen := impl.QueryImpls[name]; !seen {
		impl.queryOrder = append(impl.queryOrder, name)
	}
	impl.QueryImpls[name] = q
}

// addSubquery registers a discovered sub-query, deduplicating it against
// existing queries; usedBy is rewritten to call whichever query survives.
func (impl *Implementation) addSubquery(ctx context.Context, subQ *syntax.Query, usedBy syntax.Stm) (syntax.Stm, error) {
	logrus.WithField("query", subQ.Name).Debug("adding sub-query")
	q := syntax.CopyQuery(subQ)
	bags := handles.ReachableAtMethod(impl.Spec, q)
	q.Assumptions = append(q.Assumptions, handles.ImplicitAssumptions(bags)...)
	q.Ret = impl.simpl.Simplify(ctx, q.Ret)

	if DedupQueries.Value() {
		for _, existing := range impl.QuerySpecs {
			reorder, same, err := impl.queriesEquivalent(ctx, existing, q)
			if err != nil {
				return nil, err
			}
			if !same {
				continue
			}
			logrus.WithFields(logrus.Fields{
				"query": q.Name,
				"alias": existing.Name,
			}).Debug("sub-query deduplicated")
			target := existing
			return syntaxtools.RewriteStmExps(usedBy, func(e syntax.Exp) syntax.Exp {
				call, ok := e.(*syntax.ECall)
				if !ok || call.Func != q.Name {
					return e
				}
				args := make([]syntax.Exp, len(reorder))
				for j, idx := range reorder {
					args[j] = call.Args[idx]
				}
				return syntax.WithType(&syntax.ECall{Func: target.Name, Args: args}, call.Type())
			}), nil
		}
	}

	if err := impl.AddQuery(ctx, q); err != nil {
		return nil, err
	}
	return usedBy, nil
}

// queriesEquivalent decides whether q2 computes the same function as q1
// modulo a permutation of arguments. On success reorder[j] gives, for q1's
// j-th argument, the index of the matching q2 argument, so call sites of q2
// can be permuted into calls of q1.
func (impl *Implementation) queriesEquivalent(ctx context.Context, q1, q2 *syntax.Query) ([]int, bool, error) {
	if len(q1.Args) != len(q2.Args) {
		return nil, false, nil
	}
	if !syntax.Equal(typeOf(q1.Ret), typeOf(q2.Ret)) {
		return nil, false, nil
	}
	assumptions := syntax.EAll(impl.Spec.Assumptions)

	n := len(q1.Args)
	perm := make([]int, n)
	used := make([]bool, n)
	var try func(j int) ([]int, bool, error)
	try = func(j int) ([]int, bool, error) {
		if j == n {
			m := map[string]syntax.Exp{}
			for jj, idx := range perm {
				m[q2.Args[idx].Name] = syntax.WithType(&syntax.EVar{ID: q1.Args[jj].Name}, q1.Args[jj].Type)
			}
			q2ret := syntaxtools.SubstExp(q2.Ret, m)
			same, err := impl.sol.Valid(ctx, syntax.EImplies(assumptions, syntax.EEq(q1.Ret, q2ret)))
			if err != nil {
				return nil, false, err
			}
			if same {
				out := make([]int, n)
				copy(out, perm)
				return out, true, nil
			}
			return nil, false, nil
		}
		for idx := 0; idx < n; idx++ {
			if used[idx] || !syntax.Equal(q1.Args[j].Type, q2.Args[idx].Type) {
				continue
			}
			used[idx] = true
			perm[j] = idx
			out, ok, err := try(j + 1)
			used[idx] = false
			if err != nil || ok {
				return out, ok, err
			}
		}
		return nil, false, nil
	}
	return try(0)
}

// setupHandleUpdates creates, for every op and reachable handle type, the
// code that reassigns the val field of each handle the op modifies. Must run
// once, after all user queries are added.
func (impl *Implementation) setupHandleUpdates(ctx context.Context) error {
	abstract := syntaxtools.NewVarSet(impl.AbstractState()...)
	for _, op := range impl.Spec.Ops() {
		bags := handles.ReachableAtMethod(impl.Spec, op)
		for _, ht := range bags.Types {
			bag := bags.Bag(ht)
			h := syntaxtools.FreshVar(ht, "h")
			tracked := append(append([]syntax.Arg{}, impl.Spec.StateVars...), op.Args...)
			tracked = append(tracked, syntax.Arg{Name: h.ID, Type: ht})
			delta, err := incremental.DeltaForm(tracked, op)
			if err != nil {
				return err
			}
			lval := syntax.WithType(&syntax.EGetField{E: h, Field: "val"}, ht.ValueType)
			newVal := impl.simpl.Simplify(ctx, syntaxtools.SubstExp(lval, delta))

			distinctBag := syntax.WithType(&syntax.EUnaryOp{Op: syntax.UOpDistinct, E: bag}, typeOf(bag))
			modified := &syntax.Query{
				Name:        names.Fresh("modified_handles"),
				Visibility:  syntax.VisInternal,
				Assumptions: append([]syntax.Exp{}, op.Assumptions...),
				Ret: syntax.WithType(&syntax.EFilter{
					E: distinctBag,
					P: &syntax.ELambda{Arg: h, Body: syntax.ENot(syntax.EEq(lval, newVal))},
				}, typeOf(bag)),
				Docstring: "[" + op.Name + "] modified handles of type " + prettyprinter.Type(ht),
			}
			var queryVars []syntax.Exp
			for _, v := range syntaxtools.FreeVars(modified).Vars() {
				if !abstract.Has(v.ID) {
					modified.Args = append(modified.Args, syntax.Arg{Name: v.ID, Type: v.Type()})
					queryVars = append(queryVars, v)
				}
			}

			assumptions := append([]syntax.Exp{}, op.Assumptions...)
			assumptions = append(assumptions, syntaxtools.EDeepIn(h, bag), syntax.EIn(h, modified.Ret))
			stm, subqueries, err := impl.planner.SketchUpdate(
				ctx, lval, lval, newVal, impl.Spec.StateVars, assumptions)
			if err != nil {
				return err
			}
			for _, subQ := range subqueries {
				subQ.Docstring = "[" + op.Name + "] " + subQ.Docstring
				stm, err = impl.addSubquery(ctx, subQ, stm)
				if err != nil {
					return err
				}
			}
			if _, noop := stm.(*syntax.SNoOp); !noop {
				loop := &syntax.SForEach{
					Var:  h,
					Iter: syntax.WithType(&syntax.ECall{Func: modified.Name, Args: queryVars}, typeOf(bag)),
					Body: stm,
				}
				stm, err = impl.addSubquery(ctx, modified, loop)
				if err != nil {
					return err
				}
			}
			impl.HandleUpdates = append(impl.HandleUpdates, &HandleUpdate{Type: ht, Op: op.Name, Code: stm})
		}
	}
	return nil
}

func typeOf(e syntax.Exp) syntax.Type { return e.Type() }

// rewriteRet returns q with a new body, dropping assumptions: installed
// implementations are unconditional code.
func rewriteRet(q *syntax.Query, ret syntax.Exp) *syntax.Query {
	out := *q
	out.Assumptions = nil
	out.Ret = ret
	return &out
}
