package syntax

// Constructor helpers. Each returns a fresh node with its type attached, so
// callers can build well-typed trees without touching the checker.

func ETrue() *EBool  { return WithType(&EBool{Val: true}, Bool) }
func EFalse() *EBool { return WithType(&EBool{Val: false}, Bool) }
func Zero() *ENum    { return WithType(&ENum{Val: 0}, Int) }
func One() *ENum     { return WithType(&ENum{Val: 1}, Int) }

// IsTrue reports whether e is the literal true.
func IsTrue(e Exp) bool {
	b, ok := e.(*EBool)
	return ok && b.Val
}

// IsFalse reports whether e is the literal false.
func IsFalse(e Exp) bool {
	b, ok := e.(*EBool)
	return ok && !b.Val
}

// ENot negates e, collapsing double negation.
func ENot(e Exp) Exp {
	if u, ok := e.(*EUnaryOp); ok && u.Op == UOpNot {
		return u.E
	}
	return WithType(&EUnaryOp{Op: UOpNot, E: e}, Bool)
}

func EEq(e1, e2 Exp) Exp {
	return WithType(&EBinOp{E1: e1, Op: "==", E2: e2}, Bool)
}

func EDeepEq(e1, e2 Exp) Exp {
	return WithType(&EBinOp{E1: e1, Op: "===", E2: e2}, Bool)
}

func EIn(e1, e2 Exp) Exp {
	return WithType(&EBinOp{E1: e1, Op: BOpIn, E2: e2}, Bool)
}

func EImplies(e1, e2 Exp) Exp {
	return WithType(&EBinOp{E1: ENot(e1), Op: BOpOr, E2: e2}, Bool)
}

// EIsSubset encodes e1 ⊆ e2 as (e1 - e2) == [].
func EIsSubset(e1, e2 Exp) Exp {
	return EEq(
		WithType(&EBinOp{E1: e1, Op: "-", E2: e2}, e1.Type()),
		WithType(&EEmptyList{}, e1.Type()))
}

// EIsSingleton encodes |e| <= 1 as the comparison len(e) <= 1.
func EIsSingleton(e Exp) Exp {
	return WithType(&EBinOp{
		E1: WithType(&EUnaryOp{Op: UOpLength, E: e}, Int),
		Op: "<=",
		E2: One(),
	}, Bool)
}

func EEmpty(e Exp) Exp {
	return WithType(&EUnaryOp{Op: UOpEmpty, E: e}, Bool)
}

func EExists(e Exp) Exp {
	return WithType(&EUnaryOp{Op: UOpExists, E: e}, Bool)
}

// BuildBalancedTree folds es with an associative operator into a balanced
// tree. Stick-shaped trees defeat the iterative traversals' constant stack
// budget, so conjunction builders favor balance; consumers may re-balance.
func BuildBalancedTree(t Type, op string, es []Exp) Exp {
	if len(es) == 0 {
		panic("syntax: cannot build balanced tree out of empty list")
	}
	if len(es) == 1 {
		return es[0]
	}
	cut := len(es) / 2
	return WithType(&EBinOp{
		E1: BuildBalancedTree(t, op, es[:cut]),
		Op: op,
		E2: BuildBalancedTree(t, op, es[cut:]),
	}, t)
}

// EAll is the conjunction of exps (true when empty).
func EAll(exps []Exp) Exp {
	var kept []Exp
	for _, e := range exps {
		if IsTrue(e) {
			continue
		}
		if IsFalse(e) {
			return EFalse()
		}
		kept = append(kept, e)
	}
	if len(kept) == 0 {
		return ETrue()
	}
	return BuildBalancedTree(Bool, BOpAnd, kept)
}

// EAny is the disjunction of exps (false when empty).
func EAny(exps []Exp) Exp {
	neg := make([]Exp, len(exps))
	for i, e := range exps {
		neg[i] = ENot(e)
	}
	return ENot(EAll(neg))
}
