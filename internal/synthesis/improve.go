// Package synthesis runs the improvement loop: one worker job per public
// query proposes ever-cheaper equivalent bodies, and the main thread folds
// accepted candidates back into the Implementation.
package synthesis

import (
	"context"
	"sort"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/sirupsen/logrus"

	"github.com/cozylang/cozy/internal/impls"
	"github.com/cozylang/cozy/internal/prettyprinter"
	"github.com/cozylang/cozy/internal/solver"
	"github.com/cozylang/cozy/internal/syntax"
	"github.com/cozylang/cozy/internal/syntaxtools"
)

// Ctx carries the type context shared by all improvement jobs.
type Ctx struct {
	AllTypes   []syntax.Type
	BasicTypes []syntax.Type
}

// Result is one candidate implementation produced by a worker: the query it
// improves and the teased-apart (rep, ret) pair.
type Result struct {
	QueryName string
	Rep       []syntaxtools.Binding
	Ret       syntax.Exp
}

// Progress is invoked on the main thread after every accepted improvement.
type Progress func(impl *impls.Implementation)

// Options configures an improvement run.
type Options struct {
	Timeout    time.Duration
	Enumerator Enumerator
	Cost       CostModel
	Examples   []*solver.Model
	OnProgress Progress
}

// drainTimeout bounds each blocking read of the result channel so the main
// thread can poll job completion and the wall clock.
const drainTimeout = 500 * time.Millisecond

type improveJob struct {
	job         *Job
	ctx         Ctx
	state       []*syntax.EVar
	assumptions []syntax.Exp
	q           *syntax.Query
	hints       []syntax.Exp
	examples    []*solver.Model
	enumerator  Enumerator
	cost        CostModel
	results     chan<- Result
}

func (ij *improveJob) run(j *Job) error {
	log, closeLog, err := j.logger()
	if err != nil {
		return err
	}
	defer closeLog()
	log.WithFields(logrus.Fields{
		"job":      j.ID,
		"query":    ij.q.Name,
		"examples": len(ij.examples),
		"nice":     NiceChildren.Value(),
	}).Info("starting improvement job")
	log.Info(prettyprinter.Print(ij.q))

	// Candidates must read abstract state only through barriers.
	target := syntaxtools.WrapNakedStateVars(ij.q.Ret, syntaxtools.NewVarSet(ij.state...))

	// Grow the binder pool until the well-formedness check accepts the
	// target under it.
	probe := syntax.WithType(&syntax.ETuple{
		Es: []syntax.Exp{syntax.EAll(ij.assumptions), target},
	}, &syntax.TTuple{Types: []syntax.Type{syntax.Bool, ij.q.Ret.Type()}})
	nBinders := 1
	var binders []*syntax.EVar
	for {
		binders = binders[:0]
		for _, t := range ij.ctx.BasicTypes {
			for i := 0; i < nBinders; i++ {
				binders = append(binders, syntaxtools.FreshVar(t, "binder"))
			}
		}
		if err := fixupBinders(probe, binders); err == nil {
			break
		}
		nBinders++
	}
	log.WithField("binders", len(binders)).Info("binder pool fixed")

	used := syntaxtools.FreeVars(ij.q.Ret)
	usedAsm := syntaxtools.NewVarSet()
	for _, a := range ij.q.Assumptions {
		for _, v := range syntaxtools.FreeVars(a).Vars() {
			usedAsm.Add(v)
		}
	}
	var stateVars []*syntax.EVar
	for _, v := range ij.state {
		if used.Has(v.ID) || usedAsm.Has(v.ID) {
			stateVars = append(stateVars, v)
		}
	}
	var args []*syntax.EVar
	for _, a := range ij.q.Args {
		if used.Has(a.Name) {
			args = append(args, syntax.WithType(&syntax.EVar{ID: a.Name}, a.Type))
		}
	}

	problem := Problem{
		Target:      target,
		Assumptions: syntax.EAll(ij.assumptions),
		Hints:       ij.hints,
		Examples:    ij.examples,
		Binders:     binders,
		StateVars:   stateVars,
		Args:        args,
		Cost:        ij.cost,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	emit := func(cand syntax.Exp) bool {
		if j.StopRequested() {
			return false
		}
		rep, ret := syntaxtools.TeaseApart(cand)
		select {
		case ij.results <- Result{QueryName: ij.q.Name, Rep: rep, Ret: ret}:
		case <-j.Stopped():
			return false
		}
		return !j.StopRequested()
	}

	// The verbatim body always produces at least one (possibly trivial)
	// solution before enumeration starts.
	if !emit(target) {
		log.Info("stopped before enumeration")
		return nil
	}
	if err := ij.enumerator.Enumerate(ctx, problem, emit); err != nil {
		log.WithError(err).Warn("enumerator stopped")
		return err
	}
	log.WithField("query", ij.q.Name).Info("candidate stream exhausted")
	return nil
}

// ImproveImplementation launches one worker per query and folds results
// into a defensive copy of impl until every job finishes or the timeout
// elapses. Results are re-ordered canonically (by position in the query
// list) before application, so outcomes are deterministic up to solver
// nondeterminism. The last completed application defines the result.
func ImproveImplementation(ctx context.Context, impl *impls.Implementation, sol solver.Solver, options Options) (*impls.Implementation, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "improve_implementation")
	defer span.Finish()

	impl = impl.Clone()

	types := syntaxtools.AllTypes(impl.Spec)
	var basic []syntax.Type
	seen := map[uint64]bool{}
	for _, t := range append([]syntax.Type{syntax.Bool, syntax.Int}, types...) {
		if syntaxtools.IsScalar(t) && !seen[syntax.Hash(t)] {
			seen[syntax.Hash(t)] = true
			basic = append(basic, t)
		}
	}
	synthCtx := Ctx{AllTypes: types, BasicTypes: basic}
	logrus.WithField("types", len(basic)).Debug("basic type context assembled")

	enumerator := options.Enumerator
	if enumerator == nil {
		enumerator = &HintEnumerator{Solver: sol}
	}
	if Accelerate.Value() {
		enumerator = &AcceleratedEnumerator{Inner: enumerator, Solver: sol}
	}
	cost := options.Cost
	if cost == nil {
		cost = SizeCost{}
	}
	examples := dedupeExamples(options.Examples)

	results := make(chan Result, 64)
	var active []*improveJob

	launch := func(q *syntax.Query) {
		hints := make([]syntax.Exp, 0, len(impl.ConcreteState))
		for _, b := range impl.ConcretizationFunctions() {
			hints = append(hints, syntax.WithType(&syntax.EStateVar{E: b.Proj}, b.Proj.Type()))
		}
		assumptions := append(append([]syntax.Exp{}, impl.Spec.Assumptions...), q.Assumptions...)
		ij := &improveJob{
			job:         newJob(q.Name),
			ctx:         synthCtx,
			state:       impl.AbstractState(),
			assumptions: assumptions,
			q:           q,
			hints:       hints,
			examples:    examples,
			enumerator:  enumerator,
			cost:        cost,
			results:     results,
		}
		ij.job.Start(ij.run)
		active = append(active, ij)
	}

	reconcile := func() {
		running := map[string]bool{}
		for _, ij := range active {
			running[ij.q.Name] = true
		}
		current := map[string]bool{}
		for _, q := range impl.QuerySpecs {
			current[q.Name] = true
			if q.Visibility == syntax.VisPublic && !running[q.Name] {
				launch(q)
			}
		}
		var kept []*improveJob
		for _, ij := range active {
			if !current[ij.q.Name] {
				ij.job.Stop()
				continue
			}
			kept = append(kept, ij)
		}
		active = kept
	}

	reconcile()
	defer func() {
		var js []*Job
		for _, ij := range active {
			js = append(js, ij.job)
		}
		stopJobs(js)
	}()

	deadline := time.Now().Add(options.Timeout)
	for {
		allDone := true
		for _, ij := range active {
			if !ij.job.Done() {
				allDone = false
				break
			}
		}
		if allDone || time.Now().After(deadline) {
			break
		}
		if err := ctx.Err(); err != nil {
			return impl, err
		}

		batch := drain(results, drainTimeout)
		if len(batch) == 0 {
			continue
		}

		// Later results dominate earlier ones for the same query.
		byName := map[string]Result{}
		var order []string
		for _, r := range batch {
			if _, seen := byName[r.QueryName]; !seen {
				order = append(order, r.QueryName)
			}
			byName[r.QueryName] = r
		}
		position := map[string]int{}
		for i, q := range impl.QuerySpecs {
			position[q.Name] = i
		}
		sort.SliceStable(order, func(i, j int) bool {
			return position[order[i]] < position[order[j]]
		})

		for _, name := range order {
			r := byName[name]
			q := querySpecNamed(impl, name)
			// A better solution can arrive after its query was already
			// replaced and cleaned away.
			if q == nil {
				continue
			}
			logrus.WithFields(logrus.Fields{
				"query": name,
				"size":  solutionSize(r),
			}).Info("applying improvement")
			applySpan := opentracing.StartSpan("set_impl", opentracing.ChildOf(span.Context()))
			err := impl.SetImpl(ctx, q, r.Rep, r.Ret)
			applySpan.Finish()
			if err != nil {
				return impl, err
			}
			impl.Cleanup()
			if options.OnProgress != nil {
				options.OnProgress(impl)
			}
			reconcile()
		}
	}
	return impl, nil
}

func querySpecNamed(impl *impls.Implementation, name string) *syntax.Query {
	for _, q := range impl.QuerySpecs {
		if q.Name == name {
			return q
		}
	}
	return nil
}

func solutionSize(r Result) int {
	size := syntax.Size(r.Ret)
	for _, b := range r.Rep {
		size += syntax.Size(b.Proj)
	}
	return size
}

// dedupeExamples drops models with identical fingerprints, preserving
// order.
func dedupeExamples(examples []*solver.Model) []*solver.Model {
	seen := map[uint64]bool{}
	var out []*solver.Model
	for _, m := range examples {
		key := m.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, m)
	}
	return out
}

// drain reads everything currently queued, blocking at most timeout for the
// first element.
func drain(ch <-chan Result, timeout time.Duration) []Result {
	var out []Result
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case r := <-ch:
		out = append(out, r)
	case <-timer.C:
		return nil
	}
	for {
		select {
		case r := <-ch:
			out = append(out, r)
		default:
			return out
		}
	}
}
