package synthesis

import (
	"context"
	"fmt"
	"math"

	"github.com/cozylang/cozy/internal/opts"
	"github.com/cozylang/cozy/internal/prettyprinter"
	"github.com/cozylang/cozy/internal/simplify"
	"github.com/cozylang/cozy/internal/solver"
	"github.com/cozylang/cozy/internal/syntax"
	"github.com/cozylang/cozy/internal/syntaxtools"
)

// Accelerate composes the candidate enumerator with the acceleration layer
// of domain-specific rewrites.
var Accelerate = opts.Bool("acceleration-rules", true)

// CostModel ranks candidate expressions; lower is better. Only the
// enumerator consults it.
type CostModel interface {
	Cost(e syntax.Exp) float64
}

// SizeCost is the default cost model: tree size, with state-pool work
// discounted since it is maintained incrementally rather than recomputed.
type SizeCost struct{}

func (SizeCost) Cost(e syntax.Exp) float64 {
	cost := 0.0
	var walk func(x syntax.Exp, inState bool)
	walk = func(x syntax.Exp, inState bool) {
		if _, ok := x.(*syntax.EStateVar); ok {
			inState = true
		}
		if inState {
			cost += 0.01
		} else {
			cost++
		}
		syntaxtools.MapChildExps(x, func(c syntax.Exp) syntax.Exp {
			walk(c, inState)
			return c
		})
	}
	walk(e, false)
	return cost
}

// Problem is the immutable snapshot handed to an enumerator.
type Problem struct {
	Target      syntax.Exp
	Assumptions syntax.Exp
	Hints       []syntax.Exp
	Examples    []*solver.Model
	Binders     []*syntax.EVar
	StateVars   []*syntax.EVar
	Args        []*syntax.EVar
	Cost        CostModel
}

// Enumerator produces a stream of candidate expressions, each semantically
// equivalent to the target under the assumptions and each strictly better
// by the cost model than all previous ones. yield returning false stops the
// stream; implementations must also honor ctx.
type Enumerator interface {
	Enumerate(ctx context.Context, p Problem, yield func(syntax.Exp) bool) error
}

// HintEnumerator is the built-in candidate source: it proposes the
// simplified target and each hint-derived rewrite that the solver proves
// equivalent, in decreasing cost order. A search-based enumerator plugs in
// through the same interface.
type HintEnumerator struct {
	Solver solver.Solver
}

func (h *HintEnumerator) Enumerate(ctx context.Context, p Problem, yield func(syntax.Exp) bool) error {
	best := p.Cost.Cost(p.Target)
	propose := func(cand syntax.Exp) (bool, error) {
		if cand == nil || cand.Type() == nil || !syntax.Equal(cand.Type(), p.Target.Type()) {
			return true, nil
		}
		cost := p.Cost.Cost(cand)
		if cost >= best {
			return true, nil
		}
		equiv, err := h.Solver.Valid(ctx, syntax.EImplies(p.Assumptions, syntax.EDeepEq(p.Target, cand)))
		if err != nil {
			return false, err
		}
		if !equiv {
			return true, nil
		}
		best = cost
		return yield(cand), nil
	}

	simpl := simplify.New(h.Solver)
	if cont, err := propose(simpl.Simplify(ctx, p.Target)); err != nil || !cont {
		return err
	}
	for _, hint := range p.Hints {
		if err := ctx.Err(); err != nil {
			return err
		}
		if cont, err := propose(hint); err != nil || !cont {
			return err
		}
	}
	return nil
}

// AcceleratedEnumerator layers cheap domain-specific rewrites over another
// enumerator: when a candidate's CSE'd form is cheaper by the cost model it
// is offered in place of the candidate, and anything not strictly cheaper
// than what was already yielded is dropped. Candidates are not simplified
// here.
type AcceleratedEnumerator struct {
	Inner  Enumerator
	Solver solver.Solver
}

func (a *AcceleratedEnumerator) Enumerate(ctx context.Context, p Problem, yield func(syntax.Exp) bool) error {
	best := math.Inf(1)
	return a.Inner.Enumerate(ctx, p, func(cand syntax.Exp) bool {
		accel := syntaxtools.Cse(cand)
		if p.Cost.Cost(accel) < p.Cost.Cost(cand) {
			cand = accel
		}
		cost := p.Cost.Cost(cand)
		if cost >= best {
			return true
		}
		best = cost
		return yield(cand)
	})
}

// fixupBinders checks that the binder pool is rich enough for the candidate
// expression: every basic scalar type occurring in it needs at least one
// binder. Tuples and records are excluded since candidates bind their
// components, not the aggregates.
func fixupBinders(e syntax.Exp, binders []*syntax.EVar) error {
	have := map[uint64]bool{}
	for _, b := range binders {
		if b.Type() != nil {
			have[syntax.Hash(b.Type())] = true
		}
	}
	for _, t := range syntaxtools.AllTypes(e) {
		switch t.(type) {
		case *syntax.TTuple, *syntax.TRecord:
			continue
		}
		if syntaxtools.IsScalar(t) && !have[syntax.Hash(t)] {
			return fmt.Errorf("synthesis: no binder available for type %s", prettyprinter.Type(t))
		}
	}
	return nil
}
