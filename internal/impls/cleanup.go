package impls

import (
	"github.com/cozylang/cozy/internal/syntax"
	"github.com/cozylang/cozy/internal/syntaxtools"
)

// Cleanup removes state, queries, and update code that no Public query can
// reach, transitively through query bodies, update statements, and handle
// updates. It is a fixed point: running it twice changes nothing.
func (impl *Implementation) Cleanup() {
	keepQueries := map[string]bool{}
	for _, q := range impl.QuerySpecs {
		if q.Visibility == syntax.VisPublic {
			keepQueries[q.Name] = true
		}
	}
	keepVars := map[string]bool{}

	changed := true
	for changed {
		changed = false
		for name := range keepQueries {
			q, ok := impl.QueryImpls[name]
			if !ok {
				continue
			}
			for _, v := range syntaxtools.FreeVars(q).Vars() {
				if !keepVars[v.ID] {
					keepVars[v.ID] = true
					changed = true
				}
			}
			for called := range syntaxtools.CalledQueries(q.Ret) {
				if impl.findQuery(called) != nil && !keepQueries[called] {
					keepQueries[called] = true
					changed = true
				}
			}
		}
		for _, hu := range impl.HandleUpdates {
			for called := range syntaxtools.CalledQueries(hu.Code) {
				if impl.findQuery(called) != nil && !keepQueries[called] {
					keepQueries[called] = true
					changed = true
				}
			}
		}
		for _, op := range impl.Spec.Ops() {
			for v := range keepVars {
				stm, ok := impl.Updates[UpdateKey{Var: v, Op: op.Name}]
				if !ok {
					continue
				}
				for called := range syntaxtools.CalledQueries(stm) {
					if impl.findQuery(called) != nil && !keepQueries[called] {
						keepQueries[called] = true
						changed = true
					}
				}
			}
		}
	}

	var specs []*syntax.Query
	for _, q := range impl.QuerySpecs {
		if keepQueries[q.Name] {
			specs = append(specs, q)
		}
	}
	impl.QuerySpecs = specs

	var order []string
	for _, name := range impl.queryOrder {
		if keepQueries[name] {
			order = append(order, name)
		} else {
			delete(impl.QueryImpls, name)
		}
	}
	impl.queryOrder = order

	// A concrete variable survives only while some kept implementation
	// reads it.
	var state []syntaxtools.Binding
	for _, b := range impl.ConcreteState {
		if keepVars[b.Var.ID] {
			state = append(state, b)
		}
	}
	impl.ConcreteState = state

	liveVar := map[string]bool{}
	for _, b := range impl.ConcreteState {
		liveVar[b.Var.ID] = true
	}
	for key := range impl.Updates {
		if !liveVar[key.Var] {
			delete(impl.Updates, key)
		}
	}
}
