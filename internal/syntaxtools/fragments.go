package syntaxtools

import (
	"github.com/cozylang/cozy/internal/names"
	"github.com/cozylang/cozy/internal/syntax"
)

// Pool is the evaluation regime an expression belongs to. State-pool
// expressions are computed ahead of time and maintained as concrete state;
// runtime-pool expressions are evaluated when a query runs.
type Pool int

const (
	RuntimePool Pool = iota
	StatePool
)

// Fragment is a subexpression together with its context: the boolean facts
// provably true whenever control reaches it, a function rebuilding the whole
// tree around a replacement, the variables bound at its position, and its
// pool. Assumptions may be conservative but are always sound.
type Fragment struct {
	Assumptions []syntax.Exp
	Exp         syntax.Exp
	Replace     func(syntax.Exp) syntax.Exp // nil for spec-level enumeration
	Bound       *VarSet
	Pool        Pool
}

// EnumerateFragments yields every non-lambda subexpression of e in top-down
// order (each expression before its own subexpressions).
func EnumerateFragments(e syntax.Exp) []Fragment {
	en := &fragmentEnumerator{}
	en.visitExp(e, func(x syntax.Exp) syntax.Exp { return x })
	return en.out
}

// EnumerateFragmentsSpec enumerates fragments across a whole spec: state
// variables are in scope everywhere, spec assumptions hold inside methods,
// and each method's arguments and assumptions extend the context. Replacers
// are not provided at this level.
func EnumerateFragmentsSpec(s *syntax.Spec) []Fragment {
	en := &fragmentEnumerator{specLevel: true}
	var stateVars []*syntax.EVar
	for _, sv := range s.StateVars {
		stateVars = append(stateVars, syntax.WithType(&syntax.EVar{ID: sv.Name}, sv.Type))
	}
	en.introVars(stateVars, func() {
		for _, a := range s.Assumptions {
			en.visitExp(a, nil)
		}
		en.withAssumptions(s.Assumptions, func() {
			for _, m := range s.Methods {
				en.visitMethod(m)
			}
		})
	})
	return en.out
}

type fragmentEnumerator struct {
	bound       []*syntax.EVar
	assumptions []syntax.Exp
	svDepth     int
	specLevel   bool
	out         []Fragment
}

func (en *fragmentEnumerator) pool(e syntax.Exp) Pool {
	d := en.svDepth
	if _, ok := e.(*syntax.EStateVar); ok {
		d--
	}
	if d > 0 {
		return StatePool
	}
	return RuntimePool
}

func (en *fragmentEnumerator) snapshot() ([]syntax.Exp, *VarSet) {
	asm := make([]syntax.Exp, len(en.assumptions))
	copy(asm, en.assumptions)
	return asm, NewVarSet(en.bound...)
}

func (en *fragmentEnumerator) withAssumptions(extra []syntax.Exp, body func()) {
	old := len(en.assumptions)
	en.assumptions = append(en.assumptions, extra...)
	body()
	en.assumptions = en.assumptions[:old]
}

// introVars brings vars into scope and drops assumptions that mention them:
// the new binding shadows whatever the assumption was about.
func (en *fragmentEnumerator) introVars(vars []*syntax.EVar, body func()) {
	byName := map[string]bool{}
	for _, v := range vars {
		byName[v.ID] = true
	}
	oldAsm := en.assumptions
	var kept []syntax.Exp
	for _, a := range oldAsm {
		mentions := false
		for name := range FreeVarNames(a) {
			if byName[name] {
				mentions = true
				break
			}
		}
		if !mentions {
			kept = append(kept, a)
		}
	}
	oldBound := len(en.bound)
	en.assumptions = kept
	en.bound = append(en.bound, vars...)
	body()
	en.bound = en.bound[:oldBound]
	en.assumptions = oldAsm
}

// EDeepIn states that x is drawn from bag, encoded over deep equality so it
// stays true under value mutation.
func EDeepIn(x syntax.Exp, bag syntax.Exp) syntax.Exp {
	return deepIn(x, bag)
}

// deepIn states that x is drawn from bag, encoded over deep equality (===)
// so it stays true under value mutation.
func deepIn(x syntax.Exp, bag syntax.Exp) syntax.Exp {
	arg := syntax.WithType(&syntax.EVar{ID: names.Fresh("fragarg")}, x.Type())
	return syntax.WithType(&syntax.EUnaryOp{
		Op: syntax.UOpAny,
		E: syntax.WithType(&syntax.EMap{
			E: bag,
			F: &syntax.ELambda{Arg: arg, Body: syntax.EDeepEq(arg, x)},
		}, syntax.BoolBag),
	}, syntax.Bool)
}

func (en *fragmentEnumerator) emit(e syntax.Exp, rebuild func(syntax.Exp) syntax.Exp) {
	asm, bound := en.snapshot()
	en.out = append(en.out, Fragment{
		Assumptions: asm,
		Exp:         e,
		Replace:     rebuild,
		Bound:       bound,
		Pool:        en.pool(e),
	})
}

// visitLambda visits l's body with its argument in scope and assume as extra
// context. Lambdas themselves are not emitted.
func (en *fragmentEnumerator) visitLambda(l *syntax.ELambda, assume []syntax.Exp, rebuild func(*syntax.ELambda) syntax.Exp) {
	en.introVars([]*syntax.EVar{l.Arg}, func() {
		en.withAssumptions(assume, func() {
			var rb func(syntax.Exp) syntax.Exp
			if rebuild != nil {
				rb = func(x syntax.Exp) syntax.Exp {
					return rebuild(&syntax.ELambda{Arg: l.Arg, Body: x})
				}
			}
			en.visitExp(l.Body, rb)
		})
	})
}

// pullAssume returns the membership assumption for a lambda over a bag, or
// nothing when the bag itself mentions the bound name.
func pullAssume(l *syntax.ELambda, bag syntax.Exp) []syntax.Exp {
	if FreeVarNames(bag)[l.Arg.ID] {
		return nil
	}
	return []syntax.Exp{deepIn(l.Arg, bag)}
}

func (en *fragmentEnumerator) visitExp(e syntax.Exp, rebuild func(syntax.Exp) syntax.Exp) {
	if e == nil {
		return
	}
	if l, ok := e.(*syntax.ELambda); ok {
		var rb func(*syntax.ELambda) syntax.Exp
		if rebuild != nil {
			rb = func(nl *syntax.ELambda) syntax.Exp { return rebuild(nl) }
		}
		en.visitLambda(l, nil, rb)
		return
	}
	en.emit(e, rebuild)

	sub := func(get syntax.Exp, put func(syntax.Exp) syntax.Exp) {
		var rb func(syntax.Exp) syntax.Exp
		if rebuild != nil {
			rb = func(x syntax.Exp) syntax.Exp { return rebuild(put(x)) }
		}
		en.visitExp(get, rb)
	}

	switch e := e.(type) {
	case *syntax.ECond:
		sub(e.Cond, func(x syntax.Exp) syntax.Exp {
			return retyped(&syntax.ECond{Cond: x, Then: e.Then, Else: e.Else}, e)
		})
		en.withAssumptions([]syntax.Exp{e.Cond}, func() {
			sub(e.Then, func(x syntax.Exp) syntax.Exp {
				return retyped(&syntax.ECond{Cond: e.Cond, Then: x, Else: e.Else}, e)
			})
		})
		en.withAssumptions([]syntax.Exp{syntax.ENot(e.Cond)}, func() {
			sub(e.Else, func(x syntax.Exp) syntax.Exp {
				return retyped(&syntax.ECond{Cond: e.Cond, Then: e.Then, Else: x}, e)
			})
		})

	case *syntax.EStateVar:
		// Scope barrier: bound variables outside the barrier do not exist
		// inside it. Assumptions over state still hold.
		oldBound := en.bound
		en.bound = nil
		en.svDepth++
		sub(e.E, func(x syntax.Exp) syntax.Exp {
			return retyped(&syntax.EStateVar{E: x}, e)
		})
		en.svDepth--
		en.bound = oldBound

	case *syntax.EFilter:
		sub(e.E, func(x syntax.Exp) syntax.Exp {
			return retyped(&syntax.EFilter{E: x, P: e.P}, e)
		})
		var rb func(*syntax.ELambda) syntax.Exp
		if rebuild != nil {
			rb = func(nl *syntax.ELambda) syntax.Exp {
				return rebuild(retyped(&syntax.EFilter{E: e.E, P: nl}, e))
			}
		}
		en.visitLambda(e.P, pullAssume(e.P, e.E), rb)

	case *syntax.EMap:
		sub(e.E, func(x syntax.Exp) syntax.Exp {
			return retyped(&syntax.EMap{E: x, F: e.F}, e)
		})
		var rb func(*syntax.ELambda) syntax.Exp
		if rebuild != nil {
			rb = func(nl *syntax.ELambda) syntax.Exp {
				return rebuild(retyped(&syntax.EMap{E: e.E, F: nl}, e))
			}
		}
		en.visitLambda(e.F, pullAssume(e.F, e.E), rb)

	case *syntax.EFlatMap:
		sub(e.E, func(x syntax.Exp) syntax.Exp {
			return retyped(&syntax.EFlatMap{E: x, F: e.F}, e)
		})
		var rb func(*syntax.ELambda) syntax.Exp
		if rebuild != nil {
			rb = func(nl *syntax.ELambda) syntax.Exp {
				return rebuild(retyped(&syntax.EFlatMap{E: e.E, F: nl}, e))
			}
		}
		en.visitLambda(e.F, pullAssume(e.F, e.E), rb)

	case *syntax.EMakeMap2:
		sub(e.E, func(x syntax.Exp) syntax.Exp {
			return retyped(&syntax.EMakeMap2{E: x, Value: e.Value}, e)
		})
		var rb func(*syntax.ELambda) syntax.Exp
		if rebuild != nil {
			rb = func(nl *syntax.ELambda) syntax.Exp {
				return rebuild(retyped(&syntax.EMakeMap2{E: e.E, Value: nl}, e))
			}
		}
		en.visitLambda(e.Value, pullAssume(e.Value, e.E), rb)

	case *syntax.EListComprehension:
		en.visitComprehension(e, 0, rebuild)

	default:
		// Positional descent; lambda children (argmin/argmax selectors, let
		// bodies, make-map functions) go through visitLambda with no extra
		// assumptions.
		kids := childExpsOf(e)
		for i, kid := range kids {
			i := i
			var rb func(syntax.Exp) syntax.Exp
			if rebuild != nil {
				rb = func(x syntax.Exp) syntax.Exp {
					return rebuild(replaceChildAt(e, i, x))
				}
			}
			en.visitExp(kid, rb)
		}
	}
}

// visitComprehension walks clauses left to right, introducing pull bindings
// for everything to their right and the head.
func (en *fragmentEnumerator) visitComprehension(e *syntax.EListComprehension, i int, rebuild func(syntax.Exp) syntax.Exp) {
	if i >= len(e.Clauses) {
		var rb func(syntax.Exp) syntax.Exp
		if rebuild != nil {
			rb = func(x syntax.Exp) syntax.Exp {
				return rebuild(retyped(&syntax.EListComprehension{E: x, Clauses: e.Clauses}, e))
			}
		}
		en.visitExp(e.E, rb)
		return
	}
	withClause := func(x syntax.Exp, j int) syntax.Exp {
		clauses := make([]syntax.Clause, len(e.Clauses))
		copy(clauses, e.Clauses)
		switch c := clauses[j].(type) {
		case *syntax.CPull:
			clauses[j] = &syntax.CPull{ID: c.ID, E: x}
		case *syntax.CCond:
			clauses[j] = &syntax.CCond{E: x}
		}
		return retyped(&syntax.EListComprehension{E: e.E, Clauses: clauses}, e)
	}
	var rb func(syntax.Exp) syntax.Exp
	if rebuild != nil {
		rb = func(x syntax.Exp) syntax.Exp { return rebuild(withClause(x, i)) }
	}
	switch c := e.Clauses[i].(type) {
	case *syntax.CPull:
		en.visitExp(c.E, rb)
		v := syntax.WithType(&syntax.EVar{ID: c.ID}, syntax.ElemType(c.E.Type()))
		en.introVars([]*syntax.EVar{v}, func() {
			var assume []syntax.Exp
			if !FreeVarNames(c.E)[c.ID] {
				assume = []syntax.Exp{deepIn(v, c.E)}
			}
			en.withAssumptions(assume, func() {
				en.visitComprehension(e, i+1, rebuild)
			})
		})
	case *syntax.CCond:
		en.visitExp(c.E, rb)
		en.withAssumptions([]syntax.Exp{c.E}, func() {
			en.visitComprehension(e, i+1, rebuild)
		})
	}
}

func (en *fragmentEnumerator) visitMethod(m syntax.Method) {
	var args []*syntax.EVar
	for _, a := range m.MethodArgs() {
		args = append(args, syntax.WithType(&syntax.EVar{ID: a.Name}, a.Type))
	}
	en.introVars(args, func() {
		switch m := m.(type) {
		case *syntax.Query:
			for _, a := range m.Assumptions {
				en.visitExp(a, nil)
			}
			en.withAssumptions(m.Assumptions, func() {
				en.visitExp(m.Ret, nil)
			})
		case *syntax.Op:
			for _, a := range m.Assumptions {
				en.visitExp(a, nil)
			}
			en.withAssumptions(m.Assumptions, func() {
				en.visitStm(m.Body)
			})
		}
	})
}

func (en *fragmentEnumerator) visitStm(s syntax.Stm) {
	switch s := s.(type) {
	case *syntax.SForEach:
		en.visitExp(s.Iter, nil)
		en.introVars([]*syntax.EVar{s.Var}, func() {
			en.withAssumptions(pullAssume(&syntax.ELambda{Arg: s.Var, Body: s.Iter}, s.Iter), func() {
				en.visitStm(s.Body)
			})
		})
	case *syntax.SMapUpdate:
		en.visitExp(s.Map, nil)
		en.visitExp(s.Key, nil)
		en.introVars([]*syntax.EVar{s.ValVar}, func() {
			en.visitStm(s.Change)
		})
	case *syntax.SIf:
		en.visitExp(s.Cond, nil)
		en.withAssumptions([]syntax.Exp{s.Cond}, func() { en.visitStm(s.Then) })
		en.withAssumptions([]syntax.Exp{syntax.ENot(s.Cond)}, func() { en.visitStm(s.Else) })
	case *syntax.SSeq:
		if d, ok := s.S1.(*syntax.SDecl); ok {
			en.visitExp(d.Val, nil)
			v := syntax.WithType(&syntax.EVar{ID: d.ID}, d.Val.Type())
			en.introVars([]*syntax.EVar{v}, func() {
				en.withAssumptions([]syntax.Exp{syntax.EEq(v, d.Val)}, func() {
					en.visitStm(s.S2)
				})
			})
			return
		}
		en.visitStm(s.S1)
		en.visitStm(s.S2)
	default:
		RewriteStmExpsShallow(s, func(e syntax.Exp) syntax.Exp {
			en.visitExp(e, nil)
			return e
		}, func(c syntax.Stm) syntax.Stm {
			en.visitStm(c)
			return c
		})
	}
}

func childExpsOf(e syntax.Exp) []syntax.Exp {
	var out []syntax.Exp
	mapChildExps(e, func(c syntax.Exp) syntax.Exp {
		out = append(out, c)
		return c
	})
	return out
}

func replaceChildAt(e syntax.Exp, idx int, repl syntax.Exp) syntax.Exp {
	j := -1
	return mapChildExps(e, func(c syntax.Exp) syntax.Exp {
		j++
		if j == idx {
			return repl
		}
		return c
	})
}
