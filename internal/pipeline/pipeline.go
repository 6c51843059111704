// Package pipeline chains the synthesis stages: type-check, implicit
// assumption injection, invariant checks, initial implementation,
// improvement, emission.
package pipeline

import (
	"context"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/sirupsen/logrus"
	errors "gopkg.in/src-d/go-errors.v1"

	"github.com/cozylang/cozy/internal/impls"
	"github.com/cozylang/cozy/internal/invariants"
	"github.com/cozylang/cozy/internal/solver"
	"github.com/cozylang/cozy/internal/syntax"
	"github.com/cozylang/cozy/internal/synthesis"
	"github.com/cozylang/cozy/internal/typecheck"
)

// ErrTypecheck aborts synthesis before it begins: the spec is not
// admissible.
var ErrTypecheck = errors.NewKind("specification has %d type errors")

// Context flows through the stages, accumulating diagnostics and results.
type Context struct {
	Spec       *syntax.Spec
	Solver     solver.Solver
	Timeout    time.Duration
	OnProgress synthesis.Progress

	TypeErrors []string
	Warnings   []string
	Impl       *impls.Implementation
	Code       *syntax.Spec
}

// Processor is one stage.
type Processor interface {
	Name() string
	Process(ctx context.Context, p *Context) error
}

// Pipeline is an ordered sequence of processing stages.
type Pipeline struct {
	processors []Processor
}

func New(processors ...Processor) *Pipeline {
	return &Pipeline{processors: processors}
}

// Default is the standard synthesis pipeline.
func Default() *Pipeline {
	return New(
		typecheckStage{},
		implicitAssumptionsStage{},
		invariantStage{},
		constructStage{},
		improveStage{},
		emitStage{},
	)
}

// Run executes the stages in order, stopping at the first error. Warnings
// do not stop the run; they accumulate on the context.
func (p *Pipeline) Run(ctx context.Context, pctx *Context) error {
	for _, proc := range p.processors {
		span, stageCtx := opentracing.StartSpanFromContext(ctx, "stage."+proc.Name())
		err := proc.Process(stageCtx, pctx)
		span.Finish()
		if err != nil {
			return err
		}
	}
	return nil
}

type typecheckStage struct{}

func (typecheckStage) Name() string { return "typecheck" }

func (typecheckStage) Process(_ context.Context, p *Context) error {
	p.TypeErrors = typecheck.Typecheck(p.Spec)
	for _, e := range p.TypeErrors {
		logrus.WithField("error", e).Error("type error")
	}
	if len(p.TypeErrors) > 0 {
		return ErrTypecheck.New(len(p.TypeErrors))
	}
	return nil
}

type implicitAssumptionsStage struct{}

func (implicitAssumptionsStage) Name() string { return "implicit-assumptions" }

func (implicitAssumptionsStage) Process(_ context.Context, p *Context) error {
	p.Spec = invariants.AddImplicitHandleAssumptions(p.Spec)
	return nil
}

type invariantStage struct{}

func (invariantStage) Name() string { return "invariant-checks" }

func (invariantStage) Process(ctx context.Context, p *Context) error {
	problems, err := invariants.CheckOpsPreserveInvariants(ctx, p.Spec, p.Solver)
	if err != nil {
		return err
	}
	theProblems, err := invariants.CheckTheWF(ctx, p.Spec, p.Solver)
	if err != nil {
		return err
	}
	p.Warnings = append(p.Warnings, problems...)
	p.Warnings = append(p.Warnings, theProblems...)
	for _, w := range p.Warnings {
		logrus.Warn(w)
	}
	return nil
}

type constructStage struct{}

func (constructStage) Name() string { return "construct-initial" }

func (constructStage) Process(ctx context.Context, p *Context) error {
	impl, err := impls.ConstructInitial(ctx, p.Spec, p.Solver)
	if err != nil {
		return err
	}
	p.Impl = impl
	return nil
}

type improveStage struct{}

func (improveStage) Name() string { return "improve" }

func (improveStage) Process(ctx context.Context, p *Context) error {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	impl, err := synthesis.ImproveImplementation(ctx, p.Impl, p.Solver, synthesis.Options{
		Timeout:    timeout,
		OnProgress: p.OnProgress,
	})
	if err != nil {
		return err
	}
	p.Impl = impl
	return nil
}

type emitStage struct{}

func (emitStage) Name() string { return "emit" }

func (emitStage) Process(_ context.Context, p *Context) error {
	p.Code = p.Impl.Code()
	return nil
}
