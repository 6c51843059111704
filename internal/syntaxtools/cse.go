package syntaxtools

import (
	"github.com/cozylang/cozy/internal/names"
	"github.com/cozylang/cozy/internal/syntax"
)

// expTable is an insertion-ordered map from expression structure to the
// temporary variable standing for it.
type expTable struct {
	buckets map[uint64][]expTableEntry
	order   []expTableEntry
}

type expTableEntry struct {
	exp syntax.Exp
	v   *syntax.EVar
}

func newExpTable() *expTable {
	return &expTable{buckets: map[uint64][]expTableEntry{}}
}

func (t *expTable) get(e syntax.Exp) (*syntax.EVar, bool) {
	for _, entry := range t.buckets[syntax.Hash(e)] {
		if syntax.Equal(entry.exp, e) {
			return entry.v, true
		}
	}
	return nil, false
}

func (t *expTable) put(e syntax.Exp, v *syntax.EVar) {
	entry := expTableEntry{exp: e, v: v}
	t.buckets[syntax.Hash(e)] = append(t.buckets[syntax.Hash(e)], entry)
	t.order = append(t.order, entry)
}

// Cse performs common-subexpression elimination: repeated subterms of
// meaningful size are lifted into enclosing let bindings, e.g.
// (x+1)+(x+1) becomes let a = x+1 in a+a. Lambdas are scope barriers:
// bindings discovered under a lambda are emitted inside its body and never
// escape. The result is semantically equal to the input.
func Cse(e syntax.Exp) syntax.Exp {
	table := newExpTable()
	res := cseVisit(e, table)
	return cseFinish(res, table)
}

func cseVisit(e syntax.Exp, avail *expTable) syntax.Exp {
	switch e := e.(type) {
	case *syntax.EVar, *syntax.EBool, *syntax.ENum, *syntax.EStr, *syntax.ENull,
		*syntax.EEnumEntry, *syntax.EEmptyList:
		return e
	case *syntax.ELambda:
		inner := newExpTable()
		for _, entry := range avail.order {
			if !FreeVarNames(entry.exp)[e.Arg.ID] {
				inner.put(entry.exp, entry.v)
			}
		}
		mark := len(inner.order)
		body := cseVisit(e.Body, inner)
		// Only bindings minted under this lambda are emitted here; the rest
		// belong to the enclosing scope.
		added := newExpTable()
		for _, entry := range inner.order[mark:] {
			added.put(entry.exp, entry.v)
		}
		return &syntax.ELambda{Arg: e.Arg, Body: cseFinish(body, added)}
	}

	ee := mapChildExps(e, func(c syntax.Exp) syntax.Exp {
		return cseVisit(c, avail)
	})
	if v, ok := avail.get(ee); ok {
		return v
	}
	v := &syntax.EVar{ID: names.Fresh("tmp")}
	if e.Type() != nil {
		syntax.WithType(v, e.Type())
	}
	avail.put(ee, v)
	return v
}

// cseFinish turns the availability table into let bindings around e,
// inlining temporaries that are used at most once or stand for trivial
// expressions.
func cseFinish(e syntax.Exp, avail *expTable) syntax.Exp {
	if len(avail.order) == 0 {
		return e
	}
	counts := map[string]int{}
	fv := FreeVars(e)
	for _, v := range fv.Vars() {
		counts[v.ID] += fv.Count(v.ID)
	}
	for i := len(avail.order) - 1; i >= 0; i-- {
		vfv := FreeVars(avail.order[i].exp)
		for _, v := range vfv.Vars() {
			counts[v.ID] += vfv.Count(v.ID)
		}
	}

	inline := map[string]syntax.Exp{}
	for _, entry := range avail.order {
		if counts[entry.v.ID] <= 1 || syntax.Size(entry.exp) < 2 {
			inline[entry.v.ID] = entry.exp
		}
	}

	var inliner func(x syntax.Exp) syntax.Exp
	skip := map[string]bool{}
	inliner = func(x syntax.Exp) syntax.Exp {
		switch x := x.(type) {
		case *syntax.EVar:
			if repl, ok := inline[x.ID]; ok && !skip[x.ID] {
				return inliner(repl)
			}
			return x
		case *syntax.ELambda:
			old := skip[x.Arg.ID]
			skip[x.Arg.ID] = true
			body := inliner(x.Body)
			skip[x.Arg.ID] = old
			return &syntax.ELambda{Arg: x.Arg, Body: body}
		}
		return mapChildExps(x, inliner)
	}

	e = inliner(e)
	for i := len(avail.order) - 1; i >= 0; i-- {
		entry := avail.order[i]
		if _, inlined := inline[entry.v.ID]; inlined {
			continue
		}
		value := inliner(entry.exp)
		e = retyped(&syntax.ELet{E: value, F: &syntax.ELambda{Arg: entry.v, Body: e}}, e)
	}
	return e
}
