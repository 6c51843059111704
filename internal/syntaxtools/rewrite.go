// Package syntaxtools implements the term algebra over the IR: free
// variables, capture-avoiding substitution, alpha-equivalence, fragment
// enumeration, common-subexpression elimination, and the state/runtime pool
// discipline.
package syntaxtools

import (
	"fmt"

	"github.com/cozylang/cozy/internal/syntax"
)

// RewriteExps rebuilds n bottom-up, passing every rebuilt expression through
// f. Lambda binders are left untouched; f sees only proper expression
// positions. Attached types are copied onto the rebuilt nodes.
func RewriteExps(n syntax.Node, f func(syntax.Exp) syntax.Exp) syntax.Node {
	switch n := n.(type) {
	case syntax.Exp:
		return rewriteExp(n, f)
	case syntax.Stm:
		return RewriteStmExps(n, f)
	case *syntax.Query:
		return rewriteQueryExps(n, f)
	case *syntax.Op:
		return rewriteOpExps(n, f)
	case syntax.Type:
		return n
	}
	panic(fmt.Sprintf("syntaxtools: RewriteExps: unhandled node %T", n))
}

func retyped[E syntax.Exp](out E, orig syntax.Exp) E {
	if out.Type() == nil && orig.Type() != nil {
		syntax.WithType(out, orig.Type())
	}
	return out
}

func rewriteLambda(l *syntax.ELambda, f func(syntax.Exp) syntax.Exp) *syntax.ELambda {
	if l == nil {
		return nil
	}
	return &syntax.ELambda{Arg: l.Arg, Body: rewriteExp(l.Body, f)}
}

func rewriteExp(e syntax.Exp, f func(syntax.Exp) syntax.Exp) syntax.Exp {
	var out syntax.Exp
	switch e := e.(type) {
	case *syntax.EVar, *syntax.EBool, *syntax.ENum, *syntax.EStr, *syntax.ENull,
		*syntax.EEnumEntry, *syntax.EEmptyList:
		out = e
	case *syntax.ENative:
		out = retyped(&syntax.ENative{E: rewriteExp(e.E, f)}, e)
	case *syntax.ECond:
		out = retyped(&syntax.ECond{
			Cond: rewriteExp(e.Cond, f),
			Then: rewriteExp(e.Then, f),
			Else: rewriteExp(e.Else, f),
		}, e)
	case *syntax.EBinOp:
		out = retyped(&syntax.EBinOp{E1: rewriteExp(e.E1, f), Op: e.Op, E2: rewriteExp(e.E2, f)}, e)
	case *syntax.EUnaryOp:
		out = retyped(&syntax.EUnaryOp{Op: e.Op, E: rewriteExp(e.E, f)}, e)
	case *syntax.EArgMin:
		out = retyped(&syntax.EArgMin{E: rewriteExp(e.E, f), F: rewriteLambda(e.F, f), NoSimpl: e.NoSimpl}, e)
	case *syntax.EArgMax:
		out = retyped(&syntax.EArgMax{E: rewriteExp(e.E, f), F: rewriteLambda(e.F, f), NoSimpl: e.NoSimpl}, e)
	case *syntax.EHandle:
		out = retyped(&syntax.EHandle{Addr: rewriteExp(e.Addr, f), Value: rewriteExp(e.Value, f)}, e)
	case *syntax.EGetField:
		out = retyped(&syntax.EGetField{E: rewriteExp(e.E, f), Field: e.Field}, e)
	case *syntax.EMakeRecord:
		fields := make([]syntax.FieldExp, len(e.Fields))
		for i, fe := range e.Fields {
			fields[i] = syntax.FieldExp{Name: fe.Name, Val: rewriteExp(fe.Val, f)}
		}
		out = retyped(&syntax.EMakeRecord{Fields: fields}, e)
	case *syntax.EListComprehension:
		clauses := make([]syntax.Clause, len(e.Clauses))
		for i, c := range e.Clauses {
			switch c := c.(type) {
			case *syntax.CPull:
				clauses[i] = &syntax.CPull{ID: c.ID, E: rewriteExp(c.E, f)}
			case *syntax.CCond:
				clauses[i] = &syntax.CCond{E: rewriteExp(c.E, f)}
			}
		}
		out = retyped(&syntax.EListComprehension{E: rewriteExp(e.E, f), Clauses: clauses}, e)
	case *syntax.ESingleton:
		out = retyped(&syntax.ESingleton{E: rewriteExp(e.E, f)}, e)
	case *syntax.ECall:
		out = retyped(&syntax.ECall{Func: e.Func, Args: rewriteExpList(e.Args, f)}, e)
	case *syntax.ETuple:
		out = retyped(&syntax.ETuple{Es: rewriteExpList(e.Es, f)}, e)
	case *syntax.ETupleGet:
		out = retyped(&syntax.ETupleGet{E: rewriteExp(e.E, f), N: e.N}, e)
	case *syntax.ELet:
		out = retyped(&syntax.ELet{E: rewriteExp(e.E, f), F: rewriteLambda(e.F, f)}, e)
	case *syntax.ELambda:
		out = rewriteLambda(e, f)
	case *syntax.EStateVar:
		out = retyped(&syntax.EStateVar{E: rewriteExp(e.E, f)}, e)
	case *syntax.EEnumToInt:
		out = retyped(&syntax.EEnumToInt{E: rewriteExp(e.E, f)}, e)
	case *syntax.EBoolToInt:
		out = retyped(&syntax.EBoolToInt{E: rewriteExp(e.E, f)}, e)
	case *syntax.EStm:
		out = retyped(&syntax.EStm{Stm: RewriteStmExps(e.Stm, f), E: rewriteExp(e.E, f)}, e)
	case *syntax.EFilter:
		out = retyped(&syntax.EFilter{E: rewriteExp(e.E, f), P: rewriteLambda(e.P, f)}, e)
	case *syntax.EMap:
		out = retyped(&syntax.EMap{E: rewriteExp(e.E, f), F: rewriteLambda(e.F, f)}, e)
	case *syntax.EFlatMap:
		out = retyped(&syntax.EFlatMap{E: rewriteExp(e.E, f), F: rewriteLambda(e.F, f)}, e)
	case *syntax.EWithAlteredValue:
		out = retyped(&syntax.EWithAlteredValue{Handle: rewriteExp(e.Handle, f), NewValue: rewriteExp(e.NewValue, f)}, e)
	case *syntax.EMakeMap:
		out = retyped(&syntax.EMakeMap{E: rewriteExp(e.E, f), Key: rewriteLambda(e.Key, f), Value: rewriteLambda(e.Value, f)}, e)
	case *syntax.EMakeMap2:
		out = retyped(&syntax.EMakeMap2{E: rewriteExp(e.E, f), Value: rewriteLambda(e.Value, f)}, e)
	case *syntax.EMapGet:
		out = retyped(&syntax.EMapGet{Map: rewriteExp(e.Map, f), Key: rewriteExp(e.Key, f)}, e)
	case *syntax.EMapKeys:
		out = retyped(&syntax.EMapKeys{E: rewriteExp(e.E, f)}, e)
	case *syntax.EVectorGet:
		out = retyped(&syntax.EVectorGet{E: rewriteExp(e.E, f), I: rewriteExp(e.I, f)}, e)
	default:
		panic(fmt.Sprintf("syntaxtools: rewriteExp: unhandled expression %T", e))
	}
	if _, isLambda := out.(*syntax.ELambda); isLambda {
		return out
	}
	return f(out)
}

func rewriteExpList(es []syntax.Exp, f func(syntax.Exp) syntax.Exp) []syntax.Exp {
	out := make([]syntax.Exp, len(es))
	for i, e := range es {
		out[i] = rewriteExp(e, f)
	}
	return out
}

// RewriteStmExps rebuilds s, passing every contained expression through the
// bottom-up rewriter. Statement structure is preserved.
func RewriteStmExps(s syntax.Stm, f func(syntax.Exp) syntax.Exp) syntax.Stm {
	switch s := s.(type) {
	case *syntax.SNoOp:
		return s
	case *syntax.SSeq:
		return &syntax.SSeq{S1: RewriteStmExps(s.S1, f), S2: RewriteStmExps(s.S2, f)}
	case *syntax.SCall:
		return &syntax.SCall{Target: rewriteExp(s.Target, f), Func: s.Func, Args: rewriteExpList(s.Args, f)}
	case *syntax.SAssign:
		return &syntax.SAssign{LHS: rewriteExp(s.LHS, f), RHS: rewriteExp(s.RHS, f)}
	case *syntax.SDecl:
		return &syntax.SDecl{ID: s.ID, Val: rewriteExp(s.Val, f)}
	case *syntax.SForEach:
		return &syntax.SForEach{Var: s.Var, Iter: rewriteExp(s.Iter, f), Body: RewriteStmExps(s.Body, f)}
	case *syntax.SIf:
		return &syntax.SIf{Cond: rewriteExp(s.Cond, f), Then: RewriteStmExps(s.Then, f), Else: RewriteStmExps(s.Else, f)}
	case *syntax.SWhile:
		return &syntax.SWhile{Cond: rewriteExp(s.Cond, f), Body: RewriteStmExps(s.Body, f)}
	case *syntax.SEscapableBlock:
		return &syntax.SEscapableBlock{Label: s.Label, Body: RewriteStmExps(s.Body, f)}
	case *syntax.SEscapeBlock:
		return s
	case *syntax.SMapPut:
		return &syntax.SMapPut{Map: rewriteExp(s.Map, f), Key: rewriteExp(s.Key, f), Value: rewriteExp(s.Value, f)}
	case *syntax.SMapDel:
		return &syntax.SMapDel{Map: rewriteExp(s.Map, f), Key: rewriteExp(s.Key, f)}
	case *syntax.SMapUpdate:
		return &syntax.SMapUpdate{Map: rewriteExp(s.Map, f), Key: rewriteExp(s.Key, f), ValVar: s.ValVar, Change: RewriteStmExps(s.Change, f)}
	}
	panic(fmt.Sprintf("syntaxtools: RewriteStmExps: unhandled statement %T", s))
}

func rewriteQueryExps(q *syntax.Query, f func(syntax.Exp) syntax.Exp) *syntax.Query {
	out := syntax.CopyQuery(q)
	out.Assumptions = rewriteExpList(q.Assumptions, f)
	out.Ret = rewriteExp(q.Ret, f)
	return out
}

func rewriteOpExps(op *syntax.Op, f func(syntax.Exp) syntax.Exp) *syntax.Op {
	out := syntax.CopyOp(op)
	out.Assumptions = rewriteExpList(op.Assumptions, f)
	out.Body = RewriteStmExps(op.Body, f)
	return out
}

// mapChildExps rebuilds exactly one level of e, applying f to each direct
// child expression. Lambda children are passed to f whole, so callers with
// binding discipline can intercept them.
func mapChildExps(e syntax.Exp, f func(syntax.Exp) syntax.Exp) syntax.Exp {
	lam := func(l *syntax.ELambda) *syntax.ELambda {
		if l == nil {
			return nil
		}
		return f(l).(*syntax.ELambda)
	}
	list := func(es []syntax.Exp) []syntax.Exp {
		out := make([]syntax.Exp, len(es))
		for i, c := range es {
			out[i] = f(c)
		}
		return out
	}
	switch e := e.(type) {
	case *syntax.EVar, *syntax.EBool, *syntax.ENum, *syntax.EStr, *syntax.ENull,
		*syntax.EEnumEntry, *syntax.EEmptyList:
		return e
	case *syntax.ENative:
		return retyped(&syntax.ENative{E: f(e.E)}, e)
	case *syntax.ECond:
		return retyped(&syntax.ECond{Cond: f(e.Cond), Then: f(e.Then), Else: f(e.Else)}, e)
	case *syntax.EBinOp:
		return retyped(&syntax.EBinOp{E1: f(e.E1), Op: e.Op, E2: f(e.E2)}, e)
	case *syntax.EUnaryOp:
		return retyped(&syntax.EUnaryOp{Op: e.Op, E: f(e.E)}, e)
	case *syntax.EArgMin:
		return retyped(&syntax.EArgMin{E: f(e.E), F: lam(e.F), NoSimpl: e.NoSimpl}, e)
	case *syntax.EArgMax:
		return retyped(&syntax.EArgMax{E: f(e.E), F: lam(e.F), NoSimpl: e.NoSimpl}, e)
	case *syntax.EHandle:
		return retyped(&syntax.EHandle{Addr: f(e.Addr), Value: f(e.Value)}, e)
	case *syntax.EGetField:
		return retyped(&syntax.EGetField{E: f(e.E), Field: e.Field}, e)
	case *syntax.EMakeRecord:
		fields := make([]syntax.FieldExp, len(e.Fields))
		for i, fe := range e.Fields {
			fields[i] = syntax.FieldExp{Name: fe.Name, Val: f(fe.Val)}
		}
		return retyped(&syntax.EMakeRecord{Fields: fields}, e)
	case *syntax.EListComprehension:
		clauses := make([]syntax.Clause, len(e.Clauses))
		for i, c := range e.Clauses {
			switch c := c.(type) {
			case *syntax.CPull:
				clauses[i] = &syntax.CPull{ID: c.ID, E: f(c.E)}
			case *syntax.CCond:
				clauses[i] = &syntax.CCond{E: f(c.E)}
			}
		}
		return retyped(&syntax.EListComprehension{E: f(e.E), Clauses: clauses}, e)
	case *syntax.ESingleton:
		return retyped(&syntax.ESingleton{E: f(e.E)}, e)
	case *syntax.ECall:
		return retyped(&syntax.ECall{Func: e.Func, Args: list(e.Args)}, e)
	case *syntax.ETuple:
		return retyped(&syntax.ETuple{Es: list(e.Es)}, e)
	case *syntax.ETupleGet:
		return retyped(&syntax.ETupleGet{E: f(e.E), N: e.N}, e)
	case *syntax.ELet:
		return retyped(&syntax.ELet{E: f(e.E), F: lam(e.F)}, e)
	case *syntax.ELambda:
		return &syntax.ELambda{Arg: e.Arg, Body: f(e.Body)}
	case *syntax.EStateVar:
		return retyped(&syntax.EStateVar{E: f(e.E)}, e)
	case *syntax.EEnumToInt:
		return retyped(&syntax.EEnumToInt{E: f(e.E)}, e)
	case *syntax.EBoolToInt:
		return retyped(&syntax.EBoolToInt{E: f(e.E)}, e)
	case *syntax.EStm:
		return retyped(&syntax.EStm{Stm: e.Stm, E: f(e.E)}, e)
	case *syntax.EFilter:
		return retyped(&syntax.EFilter{E: f(e.E), P: lam(e.P)}, e)
	case *syntax.EMap:
		return retyped(&syntax.EMap{E: f(e.E), F: lam(e.F)}, e)
	case *syntax.EFlatMap:
		return retyped(&syntax.EFlatMap{E: f(e.E), F: lam(e.F)}, e)
	case *syntax.EWithAlteredValue:
		return retyped(&syntax.EWithAlteredValue{Handle: f(e.Handle), NewValue: f(e.NewValue)}, e)
	case *syntax.EMakeMap:
		return retyped(&syntax.EMakeMap{E: f(e.E), Key: lam(e.Key), Value: lam(e.Value)}, e)
	case *syntax.EMakeMap2:
		return retyped(&syntax.EMakeMap2{E: f(e.E), Value: lam(e.Value)}, e)
	case *syntax.EMapGet:
		return retyped(&syntax.EMapGet{Map: f(e.Map), Key: f(e.Key)}, e)
	case *syntax.EMapKeys:
		return retyped(&syntax.EMapKeys{E: f(e.E)}, e)
	case *syntax.EVectorGet:
		return retyped(&syntax.EVectorGet{E: f(e.E), I: f(e.I)}, e)
	}
	panic(fmt.Sprintf("syntaxtools: mapChildExps: unhandled expression %T", e))
}

// MapChildExps is the exported one-level rewriter: it rebuilds e applying f
// to each direct child expression, passing lambda children to f whole.
func MapChildExps(e syntax.Exp, f func(syntax.Exp) syntax.Exp) syntax.Exp {
	return mapChildExps(e, f)
}

// RewriteStmExpsShallow rebuilds exactly one level of s, applying fe to
// direct child expressions and fs to direct child statements.
func RewriteStmExpsShallow(s syntax.Stm, fe func(syntax.Exp) syntax.Exp, fs func(syntax.Stm) syntax.Stm) syntax.Stm {
	switch s := s.(type) {
	case *syntax.SNoOp, *syntax.SEscapeBlock:
		return s
	case *syntax.SSeq:
		return &syntax.SSeq{S1: fs(s.S1), S2: fs(s.S2)}
	case *syntax.SCall:
		args := make([]syntax.Exp, len(s.Args))
		for i, a := range s.Args {
			args[i] = fe(a)
		}
		return &syntax.SCall{Target: fe(s.Target), Func: s.Func, Args: args}
	case *syntax.SAssign:
		return &syntax.SAssign{LHS: fe(s.LHS), RHS: fe(s.RHS)}
	case *syntax.SDecl:
		return &syntax.SDecl{ID: s.ID, Val: fe(s.Val)}
	case *syntax.SForEach:
		return &syntax.SForEach{Var: s.Var, Iter: fe(s.Iter), Body: fs(s.Body)}
	case *syntax.SIf:
		return &syntax.SIf{Cond: fe(s.Cond), Then: fs(s.Then), Else: fs(s.Else)}
	case *syntax.SWhile:
		return &syntax.SWhile{Cond: fe(s.Cond), Body: fs(s.Body)}
	case *syntax.SEscapableBlock:
		return &syntax.SEscapableBlock{Label: s.Label, Body: fs(s.Body)}
	case *syntax.SMapPut:
		return &syntax.SMapPut{Map: fe(s.Map), Key: fe(s.Key), Value: fe(s.Value)}
	case *syntax.SMapDel:
		return &syntax.SMapDel{Map: fe(s.Map), Key: fe(s.Key)}
	case *syntax.SMapUpdate:
		return &syntax.SMapUpdate{Map: fe(s.Map), Key: fe(s.Key), ValVar: s.ValVar, Change: fs(s.Change)}
	}
	panic(fmt.Sprintf("syntaxtools: RewriteStmExpsShallow: unhandled statement %T", s))
}

// Identity is the expression identity function, handy as a rewriter hook.
func Identity(e syntax.Exp) syntax.Exp { return e }

// StripEStateVar removes every state-var barrier from e, splicing the
// wrapped expressions back in.
func StripEStateVar(e syntax.Exp) syntax.Exp {
	return rewriteExp(e, func(e syntax.Exp) syntax.Exp {
		if sv, ok := e.(*syntax.EStateVar); ok {
			return sv.E
		}
		return e
	})
}

// Replace substitutes every subexpression structurally equal to old with new.
// It does not look through binders' argument positions.
func Replace(n syntax.Node, old, new syntax.Exp) syntax.Node {
	return RewriteExps(n, func(e syntax.Exp) syntax.Exp {
		if syntax.Equal(e, old) {
			return new
		}
		return e
	})
}

// ReplaceInStm is Replace restricted to statements.
func ReplaceInStm(s syntax.Stm, old, new syntax.Exp) syntax.Stm {
	return RewriteStmExps(s, func(e syntax.Exp) syntax.Exp {
		if syntax.Equal(e, old) {
			return new
		}
		return e
	})
}

// AllExps yields every expression in n, children before parents.
func AllExps(n syntax.Node) []syntax.Exp {
	var out []syntax.Exp
	switch n := n.(type) {
	case syntax.Exp:
		rewriteExp(n, func(e syntax.Exp) syntax.Exp {
			out = append(out, e)
			return e
		})
		// rewriteExp skips lambdas and does not call f on them, but their
		// bodies are visited; top-level lambdas still count themselves.
		if l, ok := n.(*syntax.ELambda); ok {
			out = append(out, l)
		}
	case syntax.Stm:
		RewriteStmExps(n, func(e syntax.Exp) syntax.Exp {
			out = append(out, e)
			return e
		})
	case *syntax.Query:
		rewriteQueryExps(n, func(e syntax.Exp) syntax.Exp {
			out = append(out, e)
			return e
		})
	case *syntax.Op:
		rewriteOpExps(n, func(e syntax.Exp) syntax.Exp {
			out = append(out, e)
			return e
		})
	}
	return out
}

// CalledQueries collects the names of all functions called anywhere in n.
func CalledQueries(n syntax.Node) map[string]bool {
	out := map[string]bool{}
	for _, e := range AllExps(n) {
		if c, ok := e.(*syntax.ECall); ok {
			out[c.Func] = true
		}
	}
	return out
}
