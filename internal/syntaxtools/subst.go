package syntaxtools

import (
	errors "gopkg.in/src-d/go-errors.v1"

	"github.com/cozylang/cozy/internal/names"
	"github.com/cozylang/cozy/internal/syntax"
)

// ErrArgumentCapture is fatal: a substitution would capture a method
// argument, and method arguments are never silently renamed.
var ErrArgumentCapture = errors.NewKind("substitution would capture argument %s in method %s")

// SubstExp performs capture-avoiding substitution of variables by
// expressions. Lambda and comprehension binders that would capture a free
// variable of a replacement are alpha-renamed to fresh names.
func SubstExp(e syntax.Exp, m map[string]syntax.Exp) syntax.Exp {
	if len(m) == 0 {
		return e
	}
	return substExp(e, m, replacementFreeVars(m))
}

// SubstStm is SubstExp over statements. Local binders (for-each variables,
// map-update value variables, declarations) shadow the map and are renamed
// on capture, except declarations, whose names are unique by construction.
func SubstStm(s syntax.Stm, m map[string]syntax.Exp) syntax.Stm {
	if len(m) == 0 {
		return s
	}
	return substStm(s, m, replacementFreeVars(m))
}

// SubstQuery substitutes into a query's assumptions and return expression.
// Mappings for the query's own arguments are dropped; a replacement that
// mentions an argument name is a fatal capture.
func SubstQuery(q *syntax.Query, m map[string]syntax.Exp) (*syntax.Query, error) {
	mm, err := dropArgs(m, q.Args, q.Name)
	if err != nil {
		return nil, err
	}
	out := syntax.CopyQuery(q)
	out.Assumptions = substExpList(q.Assumptions, mm, replacementFreeVars(mm))
	out.Ret = SubstExp(q.Ret, mm)
	return out, nil
}

// SubstOp substitutes into an op's assumptions and body under the same
// argument discipline as SubstQuery.
func SubstOp(op *syntax.Op, m map[string]syntax.Exp) (*syntax.Op, error) {
	mm, err := dropArgs(m, op.Args, op.Name)
	if err != nil {
		return nil, err
	}
	out := syntax.CopyOp(op)
	out.Assumptions = substExpList(op.Assumptions, mm, replacementFreeVars(mm))
	out.Body = SubstStm(op.Body, mm)
	return out, nil
}

func dropArgs(m map[string]syntax.Exp, args []syntax.Arg, method string) (map[string]syntax.Exp, error) {
	mm := make(map[string]syntax.Exp, len(m))
	argNames := map[string]bool{}
	for _, a := range args {
		argNames[a.Name] = true
	}
	for name, repl := range m {
		if argNames[name] {
			continue
		}
		mm[name] = repl
	}
	for _, a := range args {
		for _, repl := range mm {
			if FreeVarNames(repl)[a.Name] {
				return nil, ErrArgumentCapture.New(a.Name, method)
			}
		}
	}
	return mm, nil
}

// replacementFreeVars unions the free variable names of every replacement.
func replacementFreeVars(m map[string]syntax.Exp) map[string]bool {
	all := map[string]bool{}
	for _, repl := range m {
		for name := range FreeVarNames(repl) {
			all[name] = true
		}
	}
	return all
}

func substExpList(es []syntax.Exp, m map[string]syntax.Exp, fvs map[string]bool) []syntax.Exp {
	out := make([]syntax.Exp, len(es))
	for i, e := range es {
		out[i] = substExp(e, m, fvs)
	}
	return out
}

func substExp(e syntax.Exp, m map[string]syntax.Exp, fvs map[string]bool) syntax.Exp {
	switch e := e.(type) {
	case *syntax.EVar:
		if repl, ok := m[e.ID]; ok {
			return repl
		}
		return e

	case *syntax.ELambda:
		return substLambda(e, m, fvs)

	case *syntax.EListComprehension:
		mm, ffs := m, fvs
		clauses := make([]syntax.Clause, len(e.Clauses))
		head := e.E
		rest := e.Clauses
		for i := 0; i < len(e.Clauses); i++ {
			switch c := rest[i].(type) {
			case *syntax.CPull:
				src := substExp(c.E, mm, ffs)
				id := c.ID
				if _, shadows := mm[id]; shadows || ffs[id] {
					// The pull shadows a mapping or would capture a
					// replacement; rename it through the tail.
					fresh := names.Fresh("pull")
					rename := map[string]syntax.Exp{id: syntax.WithType(&syntax.EVar{ID: fresh}, elemOf(src))}
					rfvs := replacementFreeVars(rename)
					tail := make([]syntax.Clause, len(rest))
					copy(tail, rest)
					for j := i + 1; j < len(tail); j++ {
						switch d := tail[j].(type) {
						case *syntax.CPull:
							tail[j] = &syntax.CPull{ID: d.ID, E: substExp(d.E, rename, rfvs)}
						case *syntax.CCond:
							tail[j] = &syntax.CCond{E: substExp(d.E, rename, rfvs)}
						}
					}
					rest = tail
					head = substExp(head, rename, rfvs)
					id = fresh
				}
				clauses[i] = &syntax.CPull{ID: id, E: src}
			case *syntax.CCond:
				clauses[i] = &syntax.CCond{E: substExp(c.E, mm, ffs)}
			}
		}
		return retyped(&syntax.EListComprehension{E: substExp(head, mm, ffs), Clauses: clauses}, e)

	case *syntax.EStm:
		return retyped(&syntax.EStm{Stm: substStm(e.Stm, m, fvs), E: substExp(e.E, m, fvs)}, e)
	}

	return mapChildExps(e, func(c syntax.Exp) syntax.Exp {
		return substExp(c, m, fvs)
	})
}

func substLambda(l *syntax.ELambda, m map[string]syntax.Exp, fvs map[string]bool) *syntax.ELambda {
	mm := m
	if _, bound := m[l.Arg.ID]; bound {
		mm = make(map[string]syntax.Exp, len(m))
		for k, v := range m {
			if k != l.Arg.ID {
				mm[k] = v
			}
		}
	}
	arg, body := l.Arg, l.Body
	for fvs[arg.ID] {
		fresh := syntax.WithType(&syntax.EVar{ID: names.Fresh("var")}, arg.Type())
		rename := map[string]syntax.Exp{arg.ID: fresh}
		body = substExp(body, rename, replacementFreeVars(rename))
		arg = fresh
	}
	return &syntax.ELambda{Arg: arg, Body: substExp(body, mm, replacementFreeVars(mm))}
}

func substStm(s syntax.Stm, m map[string]syntax.Exp, fvs map[string]bool) syntax.Stm {
	switch s := s.(type) {
	case *syntax.SForEach:
		iter := substExp(s.Iter, m, fvs)
		v, body := s.Var, s.Body
		if fvs[v.ID] {
			fresh := syntax.WithType(&syntax.EVar{ID: names.Fresh("x")}, v.Type())
			rename := map[string]syntax.Exp{v.ID: fresh}
			body = substStm(body, rename, replacementFreeVars(rename))
			v = fresh
		}
		mm := without(m, v.ID)
		return &syntax.SForEach{Var: v, Iter: iter, Body: substStm(body, mm, replacementFreeVars(mm))}

	case *syntax.SMapUpdate:
		mp := substExp(s.Map, m, fvs)
		key := substExp(s.Key, m, fvs)
		v, change := s.ValVar, s.Change
		if fvs[v.ID] {
			fresh := syntax.WithType(&syntax.EVar{ID: names.Fresh("v")}, v.Type())
			rename := map[string]syntax.Exp{v.ID: fresh}
			change = substStm(change, rename, replacementFreeVars(rename))
			v = fresh
		}
		mm := without(m, v.ID)
		return &syntax.SMapUpdate{Map: mp, Key: key, ValVar: v, Change: substStm(change, mm, replacementFreeVars(mm))}

	case *syntax.SSeq:
		if d, ok := s.S1.(*syntax.SDecl); ok {
			s1 := &syntax.SDecl{ID: d.ID, Val: substExp(d.Val, m, fvs)}
			mm := without(m, d.ID)
			return &syntax.SSeq{S1: s1, S2: substStm(s.S2, mm, replacementFreeVars(mm))}
		}
		return &syntax.SSeq{S1: substStm(s.S1, m, fvs), S2: substStm(s.S2, m, fvs)}
	}

	return RewriteStmExpsShallow(s, func(c syntax.Exp) syntax.Exp {
		return substExp(c, m, fvs)
	}, func(c syntax.Stm) syntax.Stm {
		return substStm(c, m, fvs)
	})
}

func without(m map[string]syntax.Exp, key string) map[string]syntax.Exp {
	if _, ok := m[key]; !ok {
		return m
	}
	mm := make(map[string]syntax.Exp, len(m))
	for k, v := range m {
		if k != key {
			mm[k] = v
		}
	}
	return mm
}

func elemOf(collection syntax.Exp) syntax.Type {
	if t := syntax.ElemType(collection.Type()); t != nil {
		return t
	}
	return nil
}

// QSubst substitutes repl for needle in haystack, introducing a let binding
// instead when the replacement is nontrivial and used more than once.
func QSubst(haystack syntax.Exp, needle *syntax.EVar, repl syntax.Exp) syntax.Exp {
	if syntax.Size(repl) <= 1 || FreeVars(haystack).Count(needle.ID) <= 1 {
		return SubstExp(haystack, map[string]syntax.Exp{needle.ID: repl})
	}
	return retyped(&syntax.ELet{E: repl, F: &syntax.ELambda{Arg: needle, Body: haystack}}, haystack)
}
