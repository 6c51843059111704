package simplify

import (
	"github.com/cozylang/cozy/internal/syntax"
	"github.com/cozylang/cozy/internal/syntaxtools"
)

func visitBinOp(e *syntax.EBinOp) syntax.Exp {
	t := e.Type()

	if e.Op == syntax.BOpIn {
		if cat, ok := e.E2.(*syntax.EBinOp); ok && cat.Op == "+" {
			return visit(syntax.EAny([]syntax.Exp{
				syntax.EIn(e.E1, cat.E1),
				syntax.EIn(e.E1, cat.E2),
			}))
		}
		if d, ok := e.E2.(*syntax.EUnaryOp); ok && d.Op == syntax.UOpDistinct {
			return visit(syntax.EIn(e.E1, d.E))
		}
	}

	e1, e2 := e.E1, e.E2
	if e.Op == "==" || e.Op == "===" {
		e1 = visit(e1)
		e2 = visit(e2)
		if syntaxtools.AlphaEquivalent(e1, e2) {
			return syntax.ETrue()
		}
		if e.Op == "==" {
			// Handle equality is address equality; altered values do not
			// change the address.
			for {
				if w, ok := e1.(*syntax.EWithAlteredValue); ok {
					e1 = w.Handle
					continue
				}
				break
			}
			for {
				if w, ok := e2.(*syntax.EWithAlteredValue); ok {
					e2 = w.Handle
					continue
				}
				break
			}
		}
	}

	if c, ok := e1.(*syntax.ECond); ok {
		return visit(syntax.WithType(&syntax.ECond{
			Cond: c.Cond,
			Then: syntax.WithType(&syntax.EBinOp{E1: c.Then, Op: e.Op, E2: e2}, t),
			Else: syntax.WithType(&syntax.EBinOp{E1: c.Else, Op: e.Op, E2: e2}, t),
		}, t))
	}
	if c, ok := e2.(*syntax.ECond); ok {
		return visit(syntax.WithType(&syntax.ECond{
			Cond: c.Cond,
			Then: syntax.WithType(&syntax.EBinOp{E1: e1, Op: e.Op, E2: c.Then}, t),
			Else: syntax.WithType(&syntax.EBinOp{E1: e1, Op: e.Op, E2: c.Else}, t),
		}, t))
	}
	if e.Op == "==" || e.Op == "===" {
		return syntax.WithType(&syntax.EBinOp{E1: e1, Op: e.Op, E2: e2}, t)
	}
	return syntax.WithType(&syntax.EBinOp{E1: visit(e.E1), Op: e.Op, E2: visit(e.E2)}, t)
}

func visitFilter(e *syntax.EFilter) syntax.Exp {
	t := e.Type()
	ee := visit(e.E)
	p := visit(e.P).(*syntax.ELambda)

	if cat, ok := ee.(*syntax.EBinOp); ok && cat.Op == "+" {
		return visit(syntax.WithType(&syntax.EBinOp{
			E1: syntax.WithType(&syntax.EFilter{E: cat.E1, P: p}, cat.E1.Type()),
			Op: "+",
			E2: syntax.WithType(&syntax.EFilter{E: cat.E2, P: p}, cat.E2.Type()),
		}, t))
	}
	if s, ok := ee.(*syntax.ESingleton); ok {
		return visit(syntax.WithType(&syntax.ECond{
			Cond: syntaxtools.Apply(p, s.E),
			Then: s,
			Else: syntax.WithType(&syntax.EEmptyList{}, t),
		}, t))
	}
	if m, ok := ee.(*syntax.EMap); ok {
		return visit(syntax.WithType(&syntax.EMap{
			E: syntax.WithType(&syntax.EFilter{E: m.E, P: syntaxtools.Compose(p, m.F)}, m.E.Type()),
			F: m.F,
		}, t))
	}
	return syntax.WithType(&syntax.EFilter{E: ee, P: p}, t)
}

func visitMap(e *syntax.EMap) syntax.Exp {
	t := e.Type()
	ee := visit(e.E)
	f := visit(e.F).(*syntax.ELambda)

	if cat, ok := ee.(*syntax.EBinOp); ok && cat.Op == "+" {
		return visit(syntax.WithType(&syntax.EBinOp{
			E1: syntax.WithType(&syntax.EMap{E: cat.E1, F: f}, t),
			Op: "+",
			E2: syntax.WithType(&syntax.EMap{E: cat.E2, F: f}, t),
		}, t))
	}
	if s, ok := ee.(*syntax.ESingleton); ok {
		return visit(syntax.WithType(&syntax.ESingleton{E: syntaxtools.Apply(f, s.E)}, t))
	}
	if m, ok := ee.(*syntax.EMap); ok {
		return visit(syntax.WithType(&syntax.EMap{E: m.E, F: syntaxtools.Compose(f, m.F)}, t))
	}
	return syntax.WithType(&syntax.EMap{E: ee, F: f}, t)
}

// visitArgMin covers argmax too; only the constructor differs.
func visitArgMin(bagE syntax.Exp, f *syntax.ELambda, t syntax.Type, min bool) syntax.Exp {
	mk := func(bag syntax.Exp, sel *syntax.ELambda, nosimpl bool) syntax.Exp {
		if min {
			return syntax.WithType(&syntax.EArgMin{E: bag, F: sel, NoSimpl: nosimpl}, t)
		}
		return syntax.WithType(&syntax.EArgMax{E: bag, F: sel, NoSimpl: nosimpl}, t)
	}

	ee := visit(bagE)
	sel := visit(f).(*syntax.ELambda)

	if s, ok := ee.(*syntax.ESingleton); ok {
		return s.E
	}
	if cat, ok := ee.(*syntax.EBinOp); ok && cat.Op == "+" {
		xs, ys := cat.E1, cat.E2
		bagT := &syntax.TBag{Elem: t}
		// The fallback has the same a+b shape it came from; left alone it
		// would re-trigger this rule forever.
		fallback := mk(syntax.WithType(&syntax.EBinOp{
			E1: syntax.WithType(&syntax.ESingleton{E: mk(xs, sel, false)}, bagT),
			Op: "+",
			E2: syntax.WithType(&syntax.ESingleton{E: mk(ys, sel, false)}, bagT),
		}, bagT), sel, true)
		return syntax.WithType(&syntax.ECond{
			Cond: visit(syntax.EEmpty(xs)),
			Then: mk(ys, sel, false),
			Else: syntax.WithType(&syntax.ECond{
				Cond: visit(syntax.EEmpty(ys)),
				Then: mk(xs, sel, false),
				Else: fallback,
			}, t),
		}, t)
	}
	return mk(ee, sel, false)
}

func visitUnaryOp(e *syntax.EUnaryOp) syntax.Exp {
	t := e.Type()
	if c, ok := e.E.(*syntax.ECond); ok {
		return visit(syntax.WithType(&syntax.ECond{
			Cond: c.Cond,
			Then: syntax.WithType(&syntax.EUnaryOp{Op: e.Op, E: c.Then}, t),
			Else: syntax.WithType(&syntax.EUnaryOp{Op: e.Op, E: c.Else}, t),
		}, t))
	}
	ee := visit(e.E)

	switch e.Op {
	case syntax.UOpNot:
		if b, ok := ee.(*syntax.EBool); ok {
			if b.Val {
				return syntax.EFalse()
			}
			return syntax.ETrue()
		}

	case syntax.UOpLength, syntax.UOpSum:
		if cat, ok := ee.(*syntax.EBinOp); ok && cat.Op == "+" {
			return visit(syntax.WithType(&syntax.EBinOp{
				E1: syntax.WithType(&syntax.EUnaryOp{Op: e.Op, E: cat.E1}, t),
				Op: "+",
				E2: syntax.WithType(&syntax.EUnaryOp{Op: e.Op, E: cat.E2}, t),
			}, t))
		}
		if s, ok := ee.(*syntax.ESingleton); ok {
			if e.Op == syntax.UOpLength {
				return syntax.One()
			}
			return s.E
		}
		if _, ok := ee.(*syntax.EEmptyList); ok {
			return syntax.Zero()
		}
		if m, ok := ee.(*syntax.EMap); ok && e.Op == syntax.UOpLength {
			return visit(syntax.WithType(&syntax.EUnaryOp{Op: e.Op, E: m.E}, t))
		}

	case syntax.UOpExists, syntax.UOpEmpty:
		if m, ok := ee.(*syntax.EMap); ok {
			return visit(syntax.WithType(&syntax.EUnaryOp{Op: e.Op, E: m.E}, t))
		}
		if d, ok := ee.(*syntax.EUnaryOp); ok && d.Op == syntax.UOpDistinct {
			return visit(syntax.WithType(&syntax.EUnaryOp{Op: e.Op, E: d.E}, t))
		}
		if cat, ok := ee.(*syntax.EBinOp); ok && cat.Op == "+" {
			left := syntax.WithType(&syntax.EUnaryOp{Op: e.Op, E: cat.E1}, syntax.Bool)
			right := syntax.WithType(&syntax.EUnaryOp{Op: e.Op, E: cat.E2}, syntax.Bool)
			if e.Op == syntax.UOpExists {
				return visit(syntax.EAny([]syntax.Exp{left, right}))
			}
			return visit(syntax.EAll([]syntax.Exp{left, right}))
		}
		if _, ok := ee.(*syntax.EEmptyList); ok {
			if e.Op == syntax.UOpEmpty {
				return syntax.ETrue()
			}
			return syntax.EFalse()
		}
		if _, ok := ee.(*syntax.ESingleton); ok {
			if e.Op == syntax.UOpExists {
				return syntax.ETrue()
			}
			return syntax.EFalse()
		}
	}
	return syntax.WithType(&syntax.EUnaryOp{Op: e.Op, E: ee}, t)
}
