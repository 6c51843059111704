// Package handles computes which handle values are reachable from a
// method's view of the world, and the implicit aliasing assumptions they
// carry: two handles with the same address always store the same value.
package handles

import (
	"github.com/cozylang/cozy/internal/syntax"
	"github.com/cozylang/cozy/internal/syntaxtools"
)

// Bags maps each handle type to a bag expression collecting every reachable
// handle of that type. Iteration respects first-discovery order.
type Bags struct {
	Types []*syntax.THandle
	ByKey map[uint64]syntax.Exp
}

func newBags() *Bags {
	return &Bags{ByKey: map[uint64]syntax.Exp{}}
}

// Bag returns the bag of reachable handles for t, or nil.
func (b *Bags) Bag(t *syntax.THandle) syntax.Exp {
	return b.ByKey[syntax.Hash(t)]
}

func (b *Bags) add(t *syntax.THandle, bag syntax.Exp) {
	key := syntax.Hash(t)
	if existing, ok := b.ByKey[key]; ok {
		b.ByKey[key] = syntax.WithType(&syntax.EBinOp{E1: existing, Op: "+", E2: bag}, bag.Type())
		return
	}
	b.Types = append(b.Types, t)
	b.ByKey[key] = bag
}

// ReachableAtMethod collects, for each handle type, the bag of handles
// visible to m: those stored in state plus those passed as arguments.
func ReachableAtMethod(spec *syntax.Spec, m syntax.Method) *Bags {
	bags := newBags()
	roots := make([]syntax.Arg, 0, len(spec.StateVars))
	roots = append(roots, spec.StateVars...)
	if m != nil {
		roots = append(roots, m.MethodArgs()...)
	}
	for _, root := range roots {
		v := syntax.WithType(&syntax.EVar{ID: root.Name}, root.Type)
		collect(v, root.Type, bags)
	}
	return bags
}

// collect walks a value's type, emitting a bag expression for every handle
// position reachable from it.
func collect(e syntax.Exp, t syntax.Type, bags *Bags) {
	switch t := t.(type) {
	case *syntax.THandle:
		bags.add(t, syntax.WithType(&syntax.ESingleton{E: e}, &syntax.TBag{Elem: t}))
		collect(syntax.WithType(&syntax.EGetField{E: e, Field: "val"}, t.ValueType), t.ValueType, bags)

	case *syntax.TBag, *syntax.TSet:
		elem := syntax.ElemType(t)
		if h, ok := elem.(*syntax.THandle); ok {
			bagT := &syntax.TBag{Elem: h}
			bag := e
			if _, isSet := t.(*syntax.TSet); isSet {
				bag = syntax.WithType(&syntax.EMap{
					E: e,
					F: syntaxtools.MkLambda(h, func(x *syntax.EVar) syntax.Exp { return x }),
				}, bagT)
			}
			bags.add(h, bag)
			// Handles nested behind the stored values.
			inner := newBags()
			probe := syntaxtools.FreshVar(h, "h")
			collect(syntax.WithType(&syntax.EGetField{E: probe, Field: "val"}, h.ValueType), h.ValueType, inner)
			for _, it := range inner.Types {
				innerBag := inner.Bag(it)
				bags.add(it, syntax.WithType(&syntax.EFlatMap{
					E: e,
					F: &syntax.ELambda{Arg: probe, Body: innerBag},
				}, innerBag.Type()))
			}
			return
		}
		// Non-handle elements may still contain handles.
		inner := newBags()
		probe := syntaxtools.FreshVar(elem, "x")
		collect(probe, elem, inner)
		for _, it := range inner.Types {
			innerBag := inner.Bag(it)
			bags.add(it, syntax.WithType(&syntax.EFlatMap{
				E: e,
				F: &syntax.ELambda{Arg: probe, Body: innerBag},
			}, innerBag.Type()))
		}

	case *syntax.TMap:
		inner := newBags()
		probe := syntaxtools.FreshVar(t.Key, "k")
		collect(syntax.WithType(&syntax.EMapGet{Map: e, Key: probe}, t.Val), t.Val, inner)
		keys := syntax.WithType(&syntax.EMapKeys{E: e}, &syntax.TBag{Elem: t.Key})
		for _, it := range inner.Types {
			innerBag := inner.Bag(it)
			bags.add(it, syntax.WithType(&syntax.EFlatMap{
				E: keys,
				F: &syntax.ELambda{Arg: probe, Body: innerBag},
			}, innerBag.Type()))
		}

	case *syntax.TTuple:
		for i, tt := range t.Types {
			collect(syntax.WithType(&syntax.ETupleGet{E: e, N: i}, tt), tt, bags)
		}

	case *syntax.TRecord:
		for _, f := range t.Fields {
			collect(syntax.WithType(&syntax.EGetField{E: e, Field: f.Name}, f.Type), f.Type, bags)
		}
	}
}

// forAll builds: every element of e satisfies p.
func forAll(e syntax.Exp, elem syntax.Type, p func(*syntax.EVar) syntax.Exp) syntax.Exp {
	return syntax.WithType(&syntax.EUnaryOp{
		Op: syntax.UOpAll,
		E: syntax.WithType(&syntax.EMap{
			E: e,
			F: syntaxtools.MkLambda(elem, func(v *syntax.EVar) syntax.Exp { return p(v) }),
		}, syntax.BoolBag),
	}, syntax.Bool)
}

// ImplicitAssumptions states, for every reachable handle type, that equal
// handles carry equal values.
func ImplicitAssumptions(bags *Bags) []syntax.Exp {
	var out []syntax.Exp
	for _, t := range bags.Types {
		t := t
		bag := bags.Bag(t)
		out = append(out, forAll(bag, t, func(h1 *syntax.EVar) syntax.Exp {
			return forAll(bag, t, func(h2 *syntax.EVar) syntax.Exp {
				v1 := syntax.WithType(&syntax.EGetField{E: h1, Field: "val"}, t.ValueType)
				v2 := syntax.WithType(&syntax.EGetField{E: h2, Field: "val"}, t.ValueType)
				return syntax.EImplies(syntax.EEq(h1, h2), syntax.EEq(v1, v2))
			})
		}))
	}
	return out
}
