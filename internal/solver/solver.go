// Package solver defines the oracle contract the synthesizer relies on:
// deciding validity and finding satisfying models for IR formulas. The
// logical fragment covers booleans, integers, handles (address/value pairs),
// bags as multisets, maps as total functions with a default, records and
// tuples as projections, and uninterpreted extern function symbols.
//
// Bounded is the in-process implementation: an exhaustive finite-model
// checker. A production SMT backend implements the same interface.
package solver

import (
	"context"

	"github.com/mitchellh/hashstructure/v2"
	"github.com/spf13/cast"

	"github.com/cozylang/cozy/internal/eval"
	"github.com/cozylang/cozy/internal/syntax"
)

// Model assigns values to free variables and interpretations to function
// symbols.
type Model struct {
	Vars  map[string]eval.Value
	Funcs map[string]*eval.FuncInterp
}

// Env converts the model into an evaluation environment.
func (m *Model) Env() *eval.Env {
	return &eval.Env{Vars: m.Vars, Funcs: m.Funcs}
}

// Int reads a variable as an integer, coercing through its printed form
// when the value is not a plain Int.
func (m *Model) Int(name string) int64 {
	if v, ok := m.Vars[name].(*eval.Int); ok {
		return v.Val
	}
	return cast.ToInt64(m.inspect(name))
}

// Bool reads a variable as a boolean.
func (m *Model) Bool(name string) bool {
	if v, ok := m.Vars[name].(*eval.Bool); ok {
		return v.Val
	}
	return cast.ToBool(m.inspect(name))
}

// Str reads a variable as a string.
func (m *Model) Str(name string) string {
	if v, ok := m.Vars[name].(*eval.Str); ok {
		return v.Val
	}
	return cast.ToString(m.inspect(name))
}

// Key is a structural fingerprint of the model, used to deduplicate
// example sets before they are handed to enumerators.
func (m *Model) Key() uint64 {
	h, err := hashstructure.Hash(m, hashstructure.FormatV2, nil)
	if err != nil {
		return 0
	}
	return h
}

func (m *Model) inspect(name string) any {
	if v, ok := m.Vars[name]; ok {
		return v.Inspect()
	}
	return nil
}

// Solver is the oracle. Valid reports whether e holds in every model of its
// free variables and function symbols; Satisfy returns a witness model, or
// nil when e is unsatisfiable. Expressions must be boolean-typed and fully
// type-checked. Implementations acquire whatever session state they need
// per call and release it on every exit path.
type Solver interface {
	Valid(ctx context.Context, e syntax.Exp) (bool, error)
	Satisfy(ctx context.Context, e syntax.Exp) (*Model, error)
	Satisfiable(ctx context.Context, e syntax.Exp) (bool, error)
}
