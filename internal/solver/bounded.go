package solver

import (
	"context"
	"fmt"

	"github.com/cozylang/cozy/internal/eval"
	"github.com/cozylang/cozy/internal/prettyprinter"
	"github.com/cozylang/cozy/internal/syntax"
	"github.com/cozylang/cozy/internal/syntaxtools"
)

// Bounded decides formulas by exhausting every model whose scalar and
// collection components stay within CollectionDepth. Its verdicts are exact
// on the finite fragment the core exercises in tests; unbounded validity is
// approximated by bounded validity, which is the usual trade a finite
// checker makes.
type Bounded struct {
	// CollectionDepth bounds integer magnitudes, bag sizes, map entry
	// counts, and handle address ranges.
	CollectionDepth int
	// ModelBudget caps how many candidate models a single call may visit.
	ModelBudget int
}

// NewBounded returns a checker with the defaults used across the test
// suites.
func NewBounded() *Bounded {
	return &Bounded{CollectionDepth: 2, ModelBudget: 500000}
}

func (s *Bounded) depth() int {
	if s.CollectionDepth > 0 {
		return s.CollectionDepth
	}
	return 2
}

// Valid reports whether e holds under every bounded model.
func (s *Bounded) Valid(ctx context.Context, e syntax.Exp) (bool, error) {
	m, err := s.Satisfy(ctx, syntax.ENot(e))
	if err != nil {
		return false, err
	}
	return m == nil, nil
}

// Satisfiable reports whether some bounded model satisfies e.
func (s *Bounded) Satisfiable(ctx context.Context, e syntax.Exp) (bool, error) {
	m, err := s.Satisfy(ctx, e)
	if err != nil {
		return false, err
	}
	return m != nil, nil
}

// Satisfy searches bounded models of e's free variables and function
// symbols for one under which e evaluates to true.
func (s *Bounded) Satisfy(ctx context.Context, e syntax.Exp) (*Model, error) {
	if e.Type() != nil && !syntax.Equal(e.Type(), syntax.Bool) {
		return nil, fmt.Errorf("solver: formula has non-boolean type %s", prettyprinter.Type(e.Type()))
	}

	vars := syntaxtools.FreeVars(e).Vars()
	varDomains := make([][]eval.Value, len(vars))
	for i, v := range vars {
		if v.Type() == nil {
			return nil, fmt.Errorf("solver: free variable %s has no type in %s", v.ID, prettyprinter.Exp(e))
		}
		varDomains[i] = s.domain(v.Type())
	}

	funcs := syntaxtools.FreeFuncs(e)
	var funcNames []string
	var funcDomains [][]*eval.FuncInterp
	for name, t := range funcs {
		funcNames = append(funcNames, name)
		funcDomains = append(funcDomains, s.funcDomain(t))
	}

	budget := s.ModelBudget
	if budget <= 0 {
		budget = 500000
	}

	env := eval.NewEnv()
	var search func(i int) (*Model, error)
	search = func(i int) (*Model, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if budget <= 0 {
			return nil, fmt.Errorf("solver: model budget exhausted for %s", prettyprinter.Exp(e))
		}
		if i < len(vars) {
			for _, val := range varDomains[i] {
				env.Vars[vars[i].ID] = val
				if m, err := search(i + 1); err != nil || m != nil {
					return m, err
				}
			}
			delete(env.Vars, vars[i].ID)
			return nil, nil
		}
		j := i - len(vars)
		if j < len(funcNames) {
			for _, interp := range funcDomains[j] {
				env.Funcs[funcNames[j]] = interp
				if m, err := search(i + 1); err != nil || m != nil {
					return m, err
				}
			}
			delete(env.Funcs, funcNames[j])
			return nil, nil
		}

		budget--
		ok, err := eval.Eval(e, env)
		if err != nil {
			return nil, err
		}
		if b, isBool := ok.(*eval.Bool); isBool && b.Val {
			m := &Model{Vars: map[string]eval.Value{}, Funcs: map[string]*eval.FuncInterp{}}
			for k, v := range env.Vars {
				m.Vars[k] = v
			}
			for k, v := range env.Funcs {
				m.Funcs[k] = v
			}
			return m, nil
		}
		return nil, nil
	}
	return search(0)
}

// domain enumerates the bounded values of a type.
func (s *Bounded) domain(t syntax.Type) []eval.Value {
	d := s.depth()
	switch t := t.(type) {
	case *syntax.TInt, *syntax.TLong:
		var out []eval.Value
		for i := -1; i <= d; i++ {
			out = append(out, &eval.Int{Val: int64(i)})
		}
		return out
	case *syntax.TBool:
		return []eval.Value{&eval.Bool{Val: false}, &eval.Bool{Val: true}}
	case *syntax.TString:
		return []eval.Value{&eval.Str{}, &eval.Str{Val: "a"}, &eval.Str{Val: "b"}}
	case *syntax.TNative:
		return []eval.Value{&eval.Native{Seed: 0}, &eval.Native{Seed: 1}}
	case *syntax.TEnum:
		out := make([]eval.Value, len(t.Cases))
		for i, c := range t.Cases {
			out[i] = &eval.Enum{Case: c}
		}
		return out
	case *syntax.THandle:
		var out []eval.Value
		for addr := 0; addr < d; addr++ {
			for _, v := range s.domain(t.ValueType) {
				out = append(out, &eval.Handle{Addr: int64(addr), Val: v})
			}
		}
		return out
	case *syntax.TBag, *syntax.TSet:
		elems := s.domain(syntax.ElemType(t))
		_, isSet := t.(*syntax.TSet)
		out := []eval.Value{&eval.Bag{}}
		// Multisets (or subsets) up to size d, built by non-decreasing
		// element index so each bag appears once.
		var build func(start, size int, acc []eval.Value)
		build = func(start, size int, acc []eval.Value) {
			if size == 0 {
				out = append(out, eval.NewBag(append([]eval.Value{}, acc...)))
				return
			}
			for i := start; i < len(elems); i++ {
				next := i
				if isSet {
					next = i + 1
				}
				build(next, size-1, append(acc, elems[i]))
			}
		}
		for size := 1; size <= d; size++ {
			build(0, size, nil)
		}
		return out
	case *syntax.TMap:
		keys := s.domain(t.Key)
		vals := s.domain(t.Val)
		def := eval.ConstructValue(t.Val)
		out := []eval.Value{&eval.Map{Default: def}}
		// Single-entry and two-entry maps over the bounded key domain.
		for i, k := range keys {
			for _, v := range vals {
				out = append(out, &eval.Map{Keys: []eval.Value{k}, Vals: []eval.Value{v}, Default: def})
				for i2 := i + 1; i2 < len(keys) && d >= 2; i2++ {
					for _, v2 := range vals {
						out = append(out, &eval.Map{
							Keys:    []eval.Value{k, keys[i2]},
							Vals:    []eval.Value{v, v2},
							Default: def,
						})
					}
				}
			}
		}
		return out
	case *syntax.TTuple:
		out := []eval.Value{}
		var build func(i int, acc []eval.Value)
		build = func(i int, acc []eval.Value) {
			if i == len(t.Types) {
				out = append(out, &eval.Tuple{Elems: append([]eval.Value{}, acc...)})
				return
			}
			for _, v := range s.domain(t.Types[i]) {
				build(i+1, append(acc, v))
			}
		}
		build(0, nil)
		return out
	case *syntax.TRecord:
		out := []eval.Value{}
		var build func(i int, acc []eval.FieldValue)
		build = func(i int, acc []eval.FieldValue) {
			if i == len(t.Fields) {
				out = append(out, &eval.Record{Fields: append([]eval.FieldValue{}, acc...)})
				return
			}
			for _, v := range s.domain(t.Fields[i].Type) {
				build(i+1, append(acc, eval.FieldValue{Name: t.Fields[i].Name, Val: v}))
			}
		}
		build(0, nil)
		return out
	}
	return []eval.Value{&eval.Null{}}
}

// funcDomain enumerates interpretations for an uninterpreted function
// symbol: every constant function over the bounded result domain. This is
// the coarsest family that still distinguishes satisfiable constraints on
// extern functions in the fragment the core checks.
func (s *Bounded) funcDomain(t *syntax.TFunc) []*eval.FuncInterp {
	results := s.domain(t.RetType)
	out := make([]*eval.FuncInterp, len(results))
	for i, r := range results {
		out[i] = &eval.FuncInterp{Default: r}
	}
	return out
}
