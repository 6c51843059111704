package impls

import (
	"github.com/cozylang/cozy/internal/graph"
	"github.com/cozylang/cozy/internal/names"
	"github.com/cozylang/cozy/internal/syntax"
	"github.com/cozylang/cozy/internal/syntaxtools"
)

// Code assembles the final spec: concrete state variables, rewritten query
// implementations, and op bodies that run each variable's update code in an
// order with no read-after-write hazard. Cyclic read dependencies are broken
// by a small feedback arc set (the Eades–Lin–Smyth heuristic, not a proven
// minimum); each broken edge's read is hoisted into a
// local capturing the pre-state value.
func (impl *Implementation) Code() *syntax.Spec {
	stateReadByQuery := map[string]*syntaxtools.VarSet{}
	for name, q := range impl.QueryImpls {
		stateReadByQuery[name] = syntaxtools.FreeVars(q)
	}
	isQuery := map[string]bool{}
	for _, q := range impl.QuerySpecs {
		isQuery[q.Name] = true
	}

	queriesUsedBy := func(s syntax.Stm) []string {
		var out []string
		for called := range syntaxtools.CalledQueries(s) {
			if isQuery[called] {
				out = append(out, called)
			}
		}
		return out
	}

	var newOps []*syntax.Op
	for _, op := range impl.Spec.Ops() {
		updates := map[UpdateKey]syntax.Stm{}
		for k, v := range impl.Updates {
			updates[k] = v
		}

		// v1 -> v2 when v1's update reads v2 through a query, i.e. v1 must
		// run before v2 clobbers what it reads.
		g := graph.New(len(impl.ConcreteState))
		for i, b1 := range impl.ConcreteState {
			stm := updates[UpdateKey{Var: b1.Var.ID, Op: op.Name}]
			if stm == nil {
				continue
			}
			reads := queriesUsedBy(stm)
			for j, b2 := range impl.ConcreteState {
				for _, q := range reads {
					if fv := stateReadByQuery[q]; fv != nil && fv.Has(b2.Var.ID) {
						g.AddEdge(i, j)
						break
					}
				}
			}
		}
		broken := g.FeedbackArcSet()
		order := g.TopoSort(broken)
		// TopoSort yields successors first; emission wants readers before
		// the variables they read are overwritten.
		for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
			order[i], order[j] = order[j], order[i]
		}

		// Hoist reads of already-updated state into pre-state locals.
		var temps []syntax.Stm
		var updated []string
		for _, idx := range order {
			v := impl.ConcreteState[idx].Var
			key := UpdateKey{Var: v.ID, Op: op.Name}
			stm := updates[key]
			if stm == nil {
				continue
			}
			for _, e := range syntaxtools.AllExps(stm) {
				call, ok := e.(*syntax.ECall)
				if !ok || !isQuery[call.Func] {
					continue
				}
				fv := stateReadByQuery[call.Func]
				if fv == nil {
					continue
				}
				conflict := false
				for _, u := range updated {
					if fv.Has(u) {
						conflict = true
						break
					}
				}
				if conflict {
					tmp := names.Fresh("prestate")
					temps = append(temps, &syntax.SDecl{ID: tmp, Val: call})
					stm = syntaxtools.ReplaceInStm(stm, call, syntax.WithType(&syntax.EVar{ID: tmp}, call.Type()))
					updates[key] = stm
				}
			}
			updated = append(updated, v.ID)
		}

		stms := append([]syntax.Stm{}, temps...)
		for _, idx := range order {
			v := impl.ConcreteState[idx].Var
			if stm := updates[UpdateKey{Var: v.ID, Op: op.Name}]; stm != nil {
				stms = append(stms, stm)
			}
		}
		for _, hu := range impl.HandleUpdates {
			if hu.Op == op.Name {
				stms = append(stms, hu.Code)
			}
		}
		newOps = append(newOps, &syntax.Op{
			Name:      op.Name,
			Args:      op.Args,
			Body:      syntax.Seq(stms...),
			Docstring: op.Docstring,
		})
	}

	stateVars := make([]syntax.Arg, len(impl.ConcreteState))
	for i, b := range impl.ConcreteState {
		stateVars[i] = syntax.Arg{Name: b.Var.ID, Type: b.Proj.Type()}
	}
	var methods []syntax.Method
	for _, name := range impl.queryOrder {
		methods = append(methods, impl.QueryImpls[name])
	}
	for _, op := range newOps {
		methods = append(methods, op)
	}
	return &syntax.Spec{
		Name:        impl.Spec.Name,
		Types:       impl.Spec.Types,
		ExternFuncs: impl.Spec.ExternFuncs,
		StateVars:   stateVars,
		Methods:     methods,
		Header:      impl.Spec.Header,
		Footer:      impl.Spec.Footer,
		Docstring:   impl.Spec.Docstring,
	}
}
