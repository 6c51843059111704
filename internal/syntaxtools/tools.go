package syntaxtools

import (
	"github.com/cozylang/cozy/internal/names"
	"github.com/cozylang/cozy/internal/syntax"
)

// FreshVar mints a typed variable with a fresh name.
func FreshVar(t syntax.Type, hint string) *syntax.EVar {
	v := &syntax.EVar{ID: names.Fresh(hint)}
	if t != nil {
		syntax.WithType(v, t)
	}
	return v
}

// MkLambda builds a lambda over a fresh variable of type t.
func MkLambda(t syntax.Type, body func(*syntax.EVar) syntax.Exp) *syntax.ELambda {
	v := FreshVar(t, "var")
	return &syntax.ELambda{Arg: v, Body: body(v)}
}

// Apply substitutes arg for l's parameter in its body.
func Apply(l *syntax.ELambda, arg syntax.Exp) syntax.Exp {
	return SubstExp(l.Body, map[string]syntax.Exp{l.Arg.ID: arg})
}

// Compose is function composition: Compose(f, g) = \v -> f(g(v)).
func Compose(f, g *syntax.ELambda) *syntax.ELambda {
	return MkLambda(g.Arg.Type(), func(v *syntax.EVar) syntax.Exp {
		return Apply(f, Apply(g, v))
	})
}

// IsScalar reports whether t is a scalar (non-collection, non-map) type.
// Tuples and records of scalars are scalars.
func IsScalar(t syntax.Type) bool {
	switch t := t.(type) {
	case *syntax.TInt, *syntax.TLong, *syntax.TBool, *syntax.TString,
		*syntax.TNative, *syntax.THandle, *syntax.TEnum:
		return true
	case *syntax.TTuple:
		for _, tt := range t.Types {
			if !IsScalar(tt) {
				return false
			}
		}
		return true
	case *syntax.TRecord:
		for _, f := range t.Fields {
			if !IsScalar(f.Type) {
				return false
			}
		}
		return true
	}
	return false
}

// AllTypes collects every distinct type mentioned anywhere in n, including
// the attached types of expressions, in first-occurrence order.
func AllTypes(n syntax.Node) []syntax.Type {
	var out []syntax.Type
	seen := map[uint64][]syntax.Type{}
	add := func(t syntax.Type) {
		if t == nil {
			return
		}
		h := syntax.Hash(t)
		for _, prev := range seen[h] {
			if syntax.Equal(prev, t) {
				return
			}
		}
		seen[h] = append(seen[h], t)
		out = append(out, t)
	}
	var visit func(x syntax.Node)
	visit = func(x syntax.Node) {
		if x == nil {
			return
		}
		if t, ok := x.(syntax.Type); ok {
			add(t)
		}
		if e, ok := x.(syntax.Exp); ok {
			add(e.Type())
		}
		_, _, kids := syntax.Describe(x)
		for _, k := range kids {
			visit(k)
		}
	}
	visit(n)
	// Component types of discovered types count too.
	for i := 0; i < len(out); i++ {
		_, _, kids := syntax.Describe(out[i])
		for _, k := range kids {
			if t, ok := k.(syntax.Type); ok {
				add(t)
			}
		}
	}
	return out
}

// NNF converts a boolean expression to negation normal form.
func NNF(e syntax.Exp) syntax.Exp {
	return nnf(e, false)
}

func nnf(e syntax.Exp, negate bool) syntax.Exp {
	if u, ok := e.(*syntax.EUnaryOp); ok && u.Op == syntax.UOpNot {
		return nnf(u.E, !negate)
	}
	if b, ok := e.(*syntax.EBool); ok {
		return syntax.WithType(&syntax.EBool{Val: b.Val != negate}, syntax.Bool)
	}
	if bin, ok := e.(*syntax.EBinOp); ok {
		switch bin.Op {
		case syntax.BOpAnd:
			op := syntax.BOpAnd
			if negate {
				op = syntax.BOpOr
			}
			return syntax.WithType(&syntax.EBinOp{E1: nnf(bin.E1, negate), Op: op, E2: nnf(bin.E2, negate)}, syntax.Bool)
		case syntax.BOpOr:
			op := syntax.BOpOr
			if negate {
				op = syntax.BOpAnd
			}
			return syntax.WithType(&syntax.EBinOp{E1: nnf(bin.E1, negate), Op: op, E2: nnf(bin.E2, negate)}, syntax.Bool)
		case ">":
			if negate {
				return syntax.WithType(&syntax.EBinOp{E1: bin.E1, Op: "<=", E2: bin.E2}, syntax.Bool)
			}
		case ">=":
			if negate {
				return syntax.WithType(&syntax.EBinOp{E1: bin.E1, Op: "<", E2: bin.E2}, syntax.Bool)
			}
		case "<":
			if negate {
				return syntax.WithType(&syntax.EBinOp{E1: bin.E1, Op: ">=", E2: bin.E2}, syntax.Bool)
			}
		case "<=":
			if negate {
				return syntax.WithType(&syntax.EBinOp{E1: bin.E1, Op: ">", E2: bin.E2}, syntax.Bool)
			}
		}
	}
	if negate {
		return syntax.ENot(e)
	}
	return e
}

// DNF converts an NNF boolean expression to disjunctive normal form: a list
// of conjunct lists. This can blow up exponentially.
func DNF(e syntax.Exp) [][]syntax.Exp {
	if bin, ok := e.(*syntax.EBinOp); ok {
		switch bin.Op {
		case syntax.BOpOr:
			return append(DNF(bin.E1), DNF(bin.E2)...)
		case syntax.BOpAnd:
			var out [][]syntax.Exp
			for _, c1 := range DNF(bin.E1) {
				for _, c2 := range DNF(bin.E2) {
					conj := make([]syntax.Exp, 0, len(c1)+len(c2))
					conj = append(conj, c1...)
					conj = append(conj, c2...)
					out = append(out, conj)
				}
			}
			return out
		}
	}
	return [][]syntax.Exp{{e}}
}

// BreakConj splits a conjunction into its conjuncts.
func BreakConj(e syntax.Exp) []syntax.Exp {
	if bin, ok := e.(*syntax.EBinOp); ok && bin.Op == syntax.BOpAnd {
		return append(BreakConj(bin.E1), BreakConj(bin.E2)...)
	}
	return []syntax.Exp{e}
}
