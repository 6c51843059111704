package syntaxtools

import (
	"github.com/cozylang/cozy/internal/syntax"
)

// AlphaEquivalent reports whether two nodes are equal up to a consistent
// renaming of bound variables. Free variables must match by name; record
// field order matters.
func AlphaEquivalent(a, b syntax.Node) bool {
	v := &alphaVisitor{
		remapL: map[string]int{},
		remapR: map[string]int{},
	}
	return v.visit(a, b)
}

type alphaVisitor struct {
	depth  int
	remapL map[string]int // a-side bound names -> binder depth
	remapR map[string]int // b-side bound names -> binder depth
}

// unified runs body with n1 and n2 identified as the same binder.
func (v *alphaVisitor) unified(n1, n2 string, body func() bool) bool {
	v.depth++
	oldL, hadL := v.remapL[n1]
	oldR, hadR := v.remapR[n2]
	v.remapL[n1] = v.depth
	v.remapR[n2] = v.depth
	res := body()
	if hadL {
		v.remapL[n1] = oldL
	} else {
		delete(v.remapL, n1)
	}
	if hadR {
		v.remapR[n2] = oldR
	} else {
		delete(v.remapR, n2)
	}
	v.depth--
	return res
}

func (v *alphaVisitor) visit(a, b syntax.Node) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	switch a := a.(type) {
	case *syntax.EVar:
		bv, ok := b.(*syntax.EVar)
		if !ok {
			return false
		}
		dl, boundL := v.remapL[a.ID]
		dr, boundR := v.remapR[bv.ID]
		if boundL != boundR {
			return false
		}
		if boundL {
			return dl == dr
		}
		return a.ID == bv.ID

	case *syntax.ELambda:
		bl, ok := b.(*syntax.ELambda)
		if !ok {
			return false
		}
		return v.unified(a.Arg.ID, bl.Arg.ID, func() bool {
			return v.visit(a.Body, bl.Body)
		})

	case *syntax.EListComprehension:
		bc, ok := b.(*syntax.EListComprehension)
		if !ok || len(a.Clauses) != len(bc.Clauses) {
			return false
		}
		return v.visitClauses(a.Clauses, bc.Clauses, a.E, bc.E)

	case *syntax.Query:
		bq, ok := b.(*syntax.Query)
		if !ok || len(a.Args) != len(bq.Args) {
			return false
		}
		for i := range a.Args {
			if !syntax.Equal(a.Args[i].Type, bq.Args[i].Type) {
				return false
			}
		}
		var unify func(i int) bool
		unify = func(i int) bool {
			if i >= len(a.Args) {
				return v.visit(a.Ret, bq.Ret)
			}
			return v.unified(a.Args[i].Name, bq.Args[i].Name, func() bool {
				return unify(i + 1)
			})
		}
		return unify(0)
	}

	ta, sa, ka := syntax.Describe(a)
	tb, sb, kb := syntax.Describe(b)
	if ta != tb || len(sa) != len(sb) || len(ka) != len(kb) {
		return false
	}
	for i := range sa {
		if sa[i] != sb[i] {
			return false
		}
	}
	for i := range ka {
		if !v.visit(ka[i], kb[i]) {
			return false
		}
	}
	return true
}

func (v *alphaVisitor) visitClauses(cs1, cs2 []syntax.Clause, e1, e2 syntax.Exp) bool {
	if len(cs1) == 0 {
		return v.visit(e1, e2)
	}
	switch c1 := cs1[0].(type) {
	case *syntax.CPull:
		c2, ok := cs2[0].(*syntax.CPull)
		if !ok || !v.visit(c1.E, c2.E) {
			return false
		}
		return v.unified(c1.ID, c2.ID, func() bool {
			return v.visitClauses(cs1[1:], cs2[1:], e1, e2)
		})
	case *syntax.CCond:
		c2, ok := cs2[0].(*syntax.CCond)
		if !ok || !v.visit(c1.E, c2.E) {
			return false
		}
		return v.visitClauses(cs1[1:], cs2[1:], e1, e2)
	}
	return false
}
